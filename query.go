package objgraph

import (
	"fmt"

	"github.com/drpcorg/objgraph/op"
	"github.com/drpcorg/objgraph/store"
)

// EntityKind tells a plain object from an array.
type EntityKind string

const (
	KindObject EntityKind = "object"
	KindArray  EntityKind = "array"
)

// Entity is a read-only snapshot of one graph entity. Props is set for
// objects, Elements for arrays.
type Entity struct {
	ID       op.ID
	Kind     EntityKind
	Props    map[string]any
	Elements []any
}

func (g *Graph) GetByID(id op.ID) (Entity, bool) {
	e, ok := g.store.Get(id)
	if !ok {
		return Entity{}, false
	}
	return snapshot(e), true
}

func snapshot(e store.Entity) Entity {
	switch e := e.(type) {
	case *store.Object:
		return Entity{ID: e.ID, Kind: KindObject, Props: objectProps(e)}
	case *store.Array:
		return Entity{ID: e.ID, Kind: KindArray, Elements: arrayValues(e)}
	}
	return Entity{}
}

func objectProps(o *store.Object) map[string]any {
	props := make(map[string]any, o.Len())
	for _, name := range o.Names() {
		c, _ := o.Live(name)
		props[name] = op.CopyValue(c.Value)
	}
	return props
}

func arrayValues(a *store.Array) []any {
	vals := a.Values()
	for i, v := range vals {
		vals[i] = op.CopyValue(v)
	}
	return vals
}

// GetByProperty finds the first object, in creation order, whose property
// name currently equals value.
func (g *Graph) GetByProperty(name string, value any) (op.ID, bool) {
	want, err := op.Canonical(value)
	if err != nil {
		return "", false
	}
	var found op.ID
	g.store.Range(func(e store.Entity) bool {
		obj, ok := e.(*store.Object)
		if !ok {
			return true
		}
		if c, ok := obj.Live(name); ok && op.Equal(c.Value, want) {
			found = obj.ID
			return false
		}
		return true
	})
	return found, found != ""
}

func (g *Graph) object(id op.ID) (*store.Object, error) {
	e, ok := g.store.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrObjectUnknown, id)
	}
	obj, ok := e.(*store.Object)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotObject, id)
	}
	return obj, nil
}

func (g *Graph) array(id op.ID) (*store.Array, error) {
	e, ok := g.store.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrObjectUnknown, id)
	}
	arr, ok := e.(*store.Array)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotArray, id)
	}
	return arr, nil
}

// PropertyNames lists the live properties of an object, oldest first.
func (g *Graph) PropertyNames(id op.ID) ([]string, error) {
	obj, err := g.object(id)
	if err != nil {
		return nil, err
	}
	return obj.Names(), nil
}

func (g *Graph) PropertyValue(id op.ID, name string) (any, error) {
	obj, err := g.object(id)
	if err != nil {
		return nil, err
	}
	c, ok := obj.Live(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrPropertyUnknown, id, name)
	}
	return op.CopyValue(c.Value), nil
}

func (g *Graph) HasProperty(id op.ID, name string) (bool, error) {
	obj, err := g.object(id)
	if err != nil {
		return false, err
	}
	_, ok := obj.Live(name)
	return ok, nil
}

// PropertyStamp is the stamp of the write that set the current value.
func (g *Graph) PropertyStamp(id op.ID, name string) (op.Stamp, error) {
	obj, err := g.object(id)
	if err != nil {
		return op.Stamp{}, err
	}
	c, ok := obj.Live(name)
	if !ok {
		return op.Stamp{}, fmt.Errorf("%w: %s.%s", ErrPropertyUnknown, id, name)
	}
	return c.Stamp, nil
}

func (g *Graph) ArrayLength(id op.ID) (int, error) {
	arr, err := g.array(id)
	if err != nil {
		return 0, err
	}
	return arr.Len(), nil
}

func (g *Graph) ElementAt(id op.ID, index int) (any, error) {
	e, err := g.liveEntry(id, index)
	if err != nil {
		return nil, err
	}
	return op.CopyValue(e.Value), nil
}

// EntryIDAt is the stable id of the index-th live element; local inserts
// and deletes address elements through it.
func (g *Graph) EntryIDAt(id op.ID, index int) (op.ID, error) {
	e, err := g.liveEntry(id, index)
	if err != nil {
		return "", err
	}
	return e.ID, nil
}

func (g *Graph) liveEntry(id op.ID, index int) (*store.Entry, error) {
	arr, err := g.array(id)
	if err != nil {
		return nil, err
	}
	e, ok := arr.LiveAt(index)
	if !ok {
		return nil, fmt.Errorf("%w: %s[%d], length %d", ErrIndexOutOfRange, id, index, arr.Len())
	}
	return e, nil
}

func (g *Graph) Elements(id op.ID) ([]any, error) {
	arr, err := g.array(id)
	if err != nil {
		return nil, err
	}
	return arrayValues(arr), nil
}

// IDs lists live entities in creation order.
func (g *Graph) IDs() []op.ID {
	return g.store.IDs()
}

// Waiting lists the parked ops in arrival order.
func (g *Graph) Waiting() []op.Op {
	return g.waiting.snapshot()
}
