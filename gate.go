package objgraph

import (
	"fmt"

	"github.com/drpcorg/objgraph/op"
	"github.com/drpcorg/objgraph/store"
)

// gate tells whether o can be applied to the current store. ErrCausality
// means "not yet": something o depends on has not arrived. Any other error
// is final.
func (g *Graph) gate(o op.Op) error {
	switch o.Kind {
	case op.CreateObject, op.CreateArray:
		return nil
	case op.DeleteObject:
		if g.store.WasDeleted(o.ID) {
			return fmt.Errorf("%w: %s", ErrObjectDeleted, o.ID)
		}
		if _, ok := g.store.Get(o.ID); !ok {
			return fmt.Errorf("%w: %s", ErrCausality, o.ID)
		}
		return nil
	case op.CreateProperty, op.SetProperties:
		_, err := g.gateObject(o.Object)
		return err
	case op.SetProperty, op.DeleteProperty:
		obj, err := g.gateObject(o.Object)
		if err != nil {
			return err
		}
		if _, ok := obj.Cell(o.Name); !ok {
			return fmt.Errorf("%w: property %s.%s", ErrCausality, o.Object, o.Name)
		}
		return nil
	case op.InsertElement:
		arr, err := g.gateArray(o.Array)
		if err != nil {
			return err
		}
		if o.PredecessorID != op.Head {
			if _, ok := arr.Entry(o.PredecessorID); !ok {
				return fmt.Errorf("%w: entry %s in %s", ErrCausality, o.PredecessorID, o.Array)
			}
		}
		return nil
	case op.DeleteElement:
		arr, err := g.gateArray(o.Array)
		if err != nil {
			return err
		}
		if _, ok := arr.Entry(o.EntryID); !ok {
			return fmt.Errorf("%w: entry %s in %s", ErrCausality, o.EntryID, o.Array)
		}
		return nil
	}
	return fmt.Errorf("%w: unknown kind %q", ErrMalformed, o.Kind)
}

func (g *Graph) gateEntity(id op.ID) (store.Entity, error) {
	if g.store.WasDeleted(id) {
		return nil, fmt.Errorf("%w: %s", ErrObjectDeleted, id)
	}
	e, ok := g.store.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCausality, id)
	}
	return e, nil
}

func (g *Graph) gateObject(id op.ID) (*store.Object, error) {
	e, err := g.gateEntity(id)
	if err != nil {
		return nil, err
	}
	obj, ok := e.(*store.Object)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotObject, id)
	}
	return obj, nil
}

func (g *Graph) gateArray(id op.ID) (*store.Array, error) {
	e, err := g.gateEntity(id)
	if err != nil {
		return nil, err
	}
	arr, ok := e.(*store.Array)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotArray, id)
	}
	return arr, nil
}
