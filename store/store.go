// Package store keeps the live state of one replica: a map from id to
// entity, where an entity is either a plain object or an ordered array.
// The store is mutated by the merge engine only and is not synchronized.
package store

import (
	"slices"

	"github.com/drpcorg/objgraph/op"
)

type Entity interface {
	EntityID() op.ID
	isEntity()
}

type Store struct {
	entities map[op.ID]Entity
	order    []op.ID
	deleted  map[op.ID]op.Stamp
}

func New() *Store {
	return &Store{
		entities: make(map[op.ID]Entity),
		deleted:  make(map[op.ID]op.Stamp),
	}
}

func (s *Store) Get(id op.ID) (Entity, bool) {
	e, ok := s.entities[id]
	return e, ok
}

func (s *Store) Object(id op.ID) (*Object, bool) {
	o, ok := s.entities[id].(*Object)
	return o, ok
}

func (s *Store) Array(id op.ID) (*Array, bool) {
	a, ok := s.entities[id].(*Array)
	return a, ok
}

// Put adds a new entity; it goes last in enumeration order.
func (s *Store) Put(e Entity) {
	id := e.EntityID()
	if _, ok := s.entities[id]; !ok {
		s.order = append(s.order, id)
	}
	s.entities[id] = e
}

// Remove drops the entity with everything it holds and remembers the id
// as deleted, so late ops referencing it can be told apart from early ones.
func (s *Store) Remove(id op.ID, stamp op.Stamp) bool {
	if _, ok := s.entities[id]; !ok {
		return false
	}
	delete(s.entities, id)
	if i := slices.Index(s.order, id); i >= 0 {
		s.order = slices.Delete(s.order, i, i+1)
	}
	s.deleted[id] = stamp
	return true
}

func (s *Store) WasDeleted(id op.ID) bool {
	_, ok := s.deleted[id]
	return ok
}

func (s *Store) Len() int {
	return len(s.order)
}

// IDs lists live entity ids in creation order.
func (s *Store) IDs() []op.ID {
	return slices.Clone(s.order)
}

// Range walks live entities in creation order until f returns false.
func (s *Store) Range(f func(e Entity) bool) {
	for _, id := range s.order {
		if !f(s.entities[id]) {
			return
		}
	}
}
