// Package throttle coalesces bursts of property writes. While paused, only
// the last value written to each property is kept; Unpause commits one
// SetProperty per touched property, in the order they were first touched.
package throttle

import (
	"errors"

	"github.com/drpcorg/objgraph"
	"github.com/drpcorg/objgraph/op"
)

type cellKey struct {
	object op.ID
	name   string
}

// Throttle wraps a graph. Calls other than SetProperty pass straight
// through, paused or not.
type Throttle struct {
	g      *objgraph.Graph
	paused bool
	order  []cellKey
	values map[cellKey]any
}

func New(g *objgraph.Graph) *Throttle {
	return &Throttle{g: g, values: make(map[cellKey]any)}
}

func (t *Throttle) NewObject() (op.ID, error) {
	return t.g.NewObject()
}

func (t *Throttle) CreateProperty(id op.ID, name string, v any) error {
	return t.g.CreateProperty(id, name, v)
}

func (t *Throttle) SetProperty(id op.ID, name string, v any) error {
	if !t.paused {
		return t.g.SetProperty(id, name, v)
	}
	key := cellKey{id, name}
	if _, ok := t.values[key]; !ok {
		t.order = append(t.order, key)
	}
	t.values[key] = v
	return nil
}

func (t *Throttle) Pause() {
	t.paused = true
}

func (t *Throttle) Paused() bool {
	return t.paused
}

// Pending is the number of coalesced writes waiting for Unpause.
func (t *Throttle) Pending() int {
	return len(t.order)
}

// Unpause commits the coalesced writes. A write that fails does not stop
// the others; all failures are returned together.
func (t *Throttle) Unpause() error {
	var errs []error
	for _, key := range t.order {
		if err := t.g.SetProperty(key.object, key.name, t.values[key]); err != nil {
			errs = append(errs, err)
		}
	}
	t.paused = false
	t.order = nil
	clear(t.values)
	return errors.Join(errs...)
}
