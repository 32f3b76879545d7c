package objgraph

import (
	"github.com/drpcorg/objgraph/op"
	"github.com/drpcorg/objgraph/store"
)

// Dump renders the whole graph as plain values: objects become
// map[string]any, arrays become []any with deleted elements left out. Two
// replicas that applied the same ops produce equal dumps.
func (g *Graph) Dump() map[op.ID]any {
	out := make(map[op.ID]any, g.store.Len())
	g.store.Range(func(e store.Entity) bool {
		switch e := e.(type) {
		case *store.Object:
			out[e.ID] = objectProps(e)
		case *store.Array:
			out[e.ID] = arrayValues(e)
		}
		return true
	})
	return out
}
