// Package undo keeps an undo/redo queue of property edits over a graph.
//
// The queue listens to the graph's change feed, so it sees local and
// replicated edits alike. Undo and redo are ordinary SetProperty ops: they
// replicate like any other edit and are not recorded themselves.
package undo

import (
	"errors"
	"fmt"

	"github.com/drpcorg/objgraph"
	"github.com/drpcorg/objgraph/op"
)

var (
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrNothingToRedo = errors.New("nothing to redo")
	ErrUnsupported   = errors.New("change can not be undone")
)

// Entry is one recorded change. OldValue and NewValue are set for
// SetProperty entries, Value for CreateProperty ones.
type Entry struct {
	Kind     op.Kind
	Object   op.ID
	Name     string
	Value    any
	OldValue any
	NewValue any
}

type cellKey struct {
	object op.ID
	name   string
}

type Queue struct {
	g        *objgraph.Graph
	sub      objgraph.Subscription
	entries  []Entry
	current  int
	last     map[cellKey]any
	applying bool
}

// New attaches a queue to g. Like the graph itself, the queue must be used
// from one goroutine at a time.
func New(g *objgraph.Graph) *Queue {
	q := &Queue{g: g, last: make(map[cellKey]any)}
	q.sub = g.OnChange(q.observe)
	return q
}

func (q *Queue) observe(o op.Op) {
	var e *Entry
	switch o.Kind {
	case op.CreateObject, op.CreateArray:
		e = &Entry{Kind: o.Kind, Object: o.ID}
	case op.CreateProperty:
		e = &Entry{Kind: o.Kind, Object: o.Object, Name: o.Name, Value: o.Value}
		q.last[cellKey{o.Object, o.Name}] = o.Value
	case op.SetProperty:
		key := cellKey{o.Object, o.Name}
		e = &Entry{Kind: o.Kind, Object: o.Object, Name: o.Name, OldValue: q.last[key], NewValue: o.Value}
		q.last[key] = o.Value
	case op.SetProperties:
		for name, v := range o.Props {
			q.last[cellKey{o.Object, name}] = v
		}
	case op.DeleteProperty:
		delete(q.last, cellKey{o.Object, o.Name})
	}
	if e == nil || q.applying {
		return
	}
	// a fresh edit forks history, the redo tail is gone
	q.entries = append(q.entries[:q.current], *e)
	q.current = len(q.entries)
}

// Undo reverts the change before the cursor.
func (q *Queue) Undo() error {
	if q.current == 0 {
		return ErrNothingToUndo
	}
	e := q.entries[q.current-1]
	if e.Kind != op.SetProperty {
		return fmt.Errorf("%w: %s", ErrUnsupported, e.Kind)
	}
	if err := q.set(e.Object, e.Name, e.OldValue); err != nil {
		return err
	}
	q.current--
	return nil
}

// Redo reapplies the change at the cursor.
func (q *Queue) Redo() error {
	if q.current == len(q.entries) {
		return ErrNothingToRedo
	}
	e := q.entries[q.current]
	if e.Kind != op.SetProperty {
		return fmt.Errorf("%w: %s", ErrUnsupported, e.Kind)
	}
	if err := q.set(e.Object, e.Name, e.NewValue); err != nil {
		return err
	}
	q.current++
	return nil
}

func (q *Queue) set(object op.ID, name string, v any) error {
	q.applying = true
	defer func() { q.applying = false }()
	return q.g.SetProperty(object, name, v)
}

// Entries returns the recorded changes, oldest first.
func (q *Queue) Entries() []Entry {
	return append([]Entry(nil), q.entries...)
}

// Cursor is the number of changes currently applied.
func (q *Queue) Cursor() int {
	return q.current
}

func (q *Queue) Close() error {
	return q.g.OffChange(q.sub)
}
