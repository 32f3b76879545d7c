package objgraph

import (
	"slices"

	"github.com/drpcorg/objgraph/op"
	"github.com/drpcorg/objgraph/store"
)

// The merge functions run after the gate let the op through. They return
// whether the store changed; an op that changes nothing is absorbed
// silently.

func (g *Graph) mergeCreate(o op.Op) bool {
	if _, ok := g.store.Get(o.ID); ok || g.store.WasDeleted(o.ID) {
		return false
	}
	if o.Kind == op.CreateArray {
		g.store.Put(store.NewArray(o.ID))
	} else {
		g.store.Put(store.NewObject(o.ID))
	}
	return true
}

func (g *Graph) mergeDelete(o op.Op) bool {
	return g.store.Remove(o.ID, o.Stamp())
}

// writeCell is the last-writer-wins step shared by every property op.
func writeCell(obj *store.Object, name string, cell store.Cell) bool {
	cur, ok := obj.Cell(name)
	if ok && !cell.Stamp.Newer(cur.Stamp) {
		return false
	}
	if ok && cur.Deleted && cell.Deleted {
		// Still gone, but the later stamp must be kept.
		obj.Put(name, cell)
		return false
	}
	obj.Put(name, cell)
	return true
}

func (g *Graph) mergeProperty(o op.Op) bool {
	obj, _ := g.store.Object(o.Object)
	stamp := o.Stamp()
	switch o.Kind {
	case op.CreateProperty, op.SetProperty:
		return writeCell(obj, o.Name, store.Cell{Value: o.Value, Stamp: stamp})
	case op.DeleteProperty:
		return writeCell(obj, o.Name, store.Cell{Stamp: stamp, Deleted: true})
	case op.SetProperties:
		changed := false
		for _, name := range sortedKeys(o.Props) {
			if writeCell(obj, name, store.Cell{Value: o.Props[name], Stamp: stamp}) {
				changed = true
			}
		}
		return changed
	}
	return false
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
