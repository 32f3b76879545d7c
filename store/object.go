package store

import (
	"slices"

	"github.com/drpcorg/objgraph/op"
)

// Cell is a property slot: the value and the stamp of the write that won.
// A deleted property keeps its cell with Deleted set, so that an older
// write arriving late cannot bring it back.
type Cell struct {
	Value   any
	Stamp   op.Stamp
	Deleted bool
}

type Object struct {
	ID    op.ID
	cells map[string]*Cell
	names []string
}

func NewObject(id op.ID) *Object {
	return &Object{ID: id, cells: make(map[string]*Cell)}
}

func (o *Object) EntityID() op.ID { return o.ID }
func (o *Object) isEntity()       {}

// Cell returns the slot for name, deleted or not.
func (o *Object) Cell(name string) (Cell, bool) {
	c, ok := o.cells[name]
	if !ok {
		return Cell{}, false
	}
	return *c, true
}

// Live returns the slot only if the property currently exists.
func (o *Object) Live(name string) (Cell, bool) {
	c, ok := o.cells[name]
	if !ok || c.Deleted {
		return Cell{}, false
	}
	return *c, true
}

// Put installs, overwrites, revives or buries a slot.
func (o *Object) Put(name string, cell Cell) {
	c, ok := o.cells[name]
	wasLive := ok && !c.Deleted
	if !ok {
		c = &Cell{}
		o.cells[name] = c
	}
	*c = cell
	switch {
	case !wasLive && !cell.Deleted:
		o.names = append(o.names, name)
	case wasLive && cell.Deleted:
		if i := slices.Index(o.names, name); i >= 0 {
			o.names = slices.Delete(o.names, i, i+1)
		}
	}
}

// Names lists live property names, oldest first.
func (o *Object) Names() []string {
	return slices.Clone(o.names)
}

func (o *Object) Len() int {
	return len(o.names)
}
