package objgraph

import (
	"fmt"

	"github.com/drpcorg/objgraph/op"
	"github.com/google/uuid"
)

// The helpers below mint ops on behalf of this replica and run them
// through Process. They check their arguments against the current state
// first, so a local edit never ends up parked.

func (g *Graph) newOp(kind op.Kind) (op.Op, error) {
	if g.closed {
		return op.Op{}, ErrClosed
	}
	u, err := uuid.NewV7()
	if err != nil {
		return op.Op{}, err
	}
	return op.Op{
		Kind:      kind,
		Host:      g.host,
		Timestamp: g.clock.Now(),
		Seq:       g.seq.Next(),
		UUID:      u.String(),
	}, nil
}

func (g *Graph) commit(o op.Op) (op.ID, error) {
	id, err := g.Process(o)
	if err != nil {
		return "", fmt.Errorf("commit %s: %w", o.Kind, err)
	}
	return id, nil
}

func (g *Graph) NewObject() (op.ID, error) {
	return g.create(op.CreateObject, "")
}

// NewObjectWithID creates an object under a caller-chosen id. Creating an
// id that exists already is a no-op.
func (g *Graph) NewObjectWithID(id op.ID) (op.ID, error) {
	return g.create(op.CreateObject, id)
}

func (g *Graph) NewArray() (op.ID, error) {
	return g.create(op.CreateArray, "")
}

func (g *Graph) NewArrayWithID(id op.ID) (op.ID, error) {
	return g.create(op.CreateArray, id)
}

func (g *Graph) create(kind op.Kind, id op.ID) (op.ID, error) {
	o, err := g.newOp(kind)
	if err != nil {
		return "", err
	}
	if id == "" {
		id = op.MakeID(g.host, o.Seq)
	}
	o.ID = id
	return g.commit(o)
}

func (g *Graph) DeleteObject(id op.ID) error {
	if _, ok := g.store.Get(id); !ok {
		return fmt.Errorf("%w: %s", ErrObjectUnknown, id)
	}
	o, err := g.newOp(op.DeleteObject)
	if err != nil {
		return err
	}
	o.ID = id
	_, err = g.commit(o)
	return err
}

func (g *Graph) propertyOp(kind op.Kind, id op.ID, name string, value any) error {
	obj, err := g.object(id)
	if err != nil {
		return err
	}
	if kind != op.CreateProperty {
		if _, ok := obj.Live(name); !ok {
			return fmt.Errorf("%w: %s.%s", ErrPropertyUnknown, id, name)
		}
	}
	o, err := g.newOp(kind)
	if err != nil {
		return err
	}
	o.Object, o.Name, o.Value = id, name, value
	_, err = g.commit(o)
	return err
}

func (g *Graph) CreateProperty(id op.ID, name string, value any) error {
	return g.propertyOp(op.CreateProperty, id, name, value)
}

func (g *Graph) SetProperty(id op.ID, name string, value any) error {
	return g.propertyOp(op.SetProperty, id, name, value)
}

func (g *Graph) DeleteProperty(id op.ID, name string) error {
	return g.propertyOp(op.DeleteProperty, id, name, nil)
}

// SetProperties writes several properties in one op, creating the missing
// ones.
func (g *Graph) SetProperties(id op.ID, props map[string]any) error {
	if _, err := g.object(id); err != nil {
		return err
	}
	if len(props) == 0 {
		return nil
	}
	o, err := g.newOp(op.SetProperties)
	if err != nil {
		return err
	}
	o.Object, o.Props = id, props
	_, err = g.commit(o)
	return err
}

// InsertElement puts value at logical index, 0 through the array length,
// and returns the new entry id.
func (g *Graph) InsertElement(array op.ID, index int, value any) (op.ID, error) {
	arr, err := g.array(array)
	if err != nil {
		return "", err
	}
	pred := op.Head
	if index < 0 || index > arr.Len() {
		return "", fmt.Errorf("%w: insert at %d into %s of length %d", ErrIndexOutOfRange, index, array, arr.Len())
	}
	if index > 0 {
		e, _ := arr.LiveAt(index - 1)
		pred = e.ID
	}
	return g.insert(array, pred, value)
}

// InsertAfter puts value right after the entry pred, which may be deleted
// already; op.Head inserts at the front.
func (g *Graph) InsertAfter(array op.ID, pred op.ID, value any) (op.ID, error) {
	arr, err := g.array(array)
	if err != nil {
		return "", err
	}
	if pred != op.Head {
		if _, ok := arr.Entry(pred); !ok {
			return "", fmt.Errorf("%w: %s in %s", ErrEntryUnknown, pred, array)
		}
	}
	return g.insert(array, pred, value)
}

func (g *Graph) insert(array, pred op.ID, value any) (op.ID, error) {
	o, err := g.newOp(op.InsertElement)
	if err != nil {
		return "", err
	}
	o.Array, o.PredecessorID, o.Value = array, pred, value
	o.EntryID = op.MakeID(g.host, o.Seq)
	return g.commit(o)
}

func (g *Graph) RemoveElement(array op.ID, index int) error {
	entry, err := g.EntryIDAt(array, index)
	if err != nil {
		return err
	}
	return g.RemoveEntry(array, entry)
}

func (g *Graph) RemoveEntry(array op.ID, entry op.ID) error {
	arr, err := g.array(array)
	if err != nil {
		return err
	}
	if _, ok := arr.Entry(entry); !ok {
		return fmt.Errorf("%w: %s in %s", ErrEntryUnknown, entry, array)
	}
	o, err := g.newOp(op.DeleteElement)
	if err != nil {
		return err
	}
	o.Array, o.EntryID = array, entry
	_, err = g.commit(o)
	return err
}
