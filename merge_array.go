package objgraph

import (
	"fmt"

	"github.com/drpcorg/objgraph/op"
	"github.com/drpcorg/objgraph/store"
)

// sortsBefore is the sibling order: of two entries hanging off the same
// predecessor, the later insert goes closer to it; equal timestamps fall
// back to the greater entry id.
func sortsBefore(a, b *store.Entry) bool {
	if a.Stamp.Timestamp != b.Stamp.Timestamp {
		return a.Stamp.Timestamp > b.Stamp.Timestamp
	}
	return a.ID > b.ID
}

func (g *Graph) mergeInsert(o op.Op) (bool, error) {
	arr, _ := g.store.Array(o.Array)
	if e, ok := arr.Entry(o.EntryID); ok {
		if e.Pred == o.PredecessorID {
			return false, nil
		}
		return false, fmt.Errorf("%w: %s in %s is after %q, not %q",
			ErrEntryConflict, o.EntryID, o.Array, e.Pred, o.PredecessorID)
	}
	ne := &store.Entry{
		ID:    o.EntryID,
		Pred:  o.PredecessorID,
		Value: o.Value,
		Stamp: o.Stamp(),
	}
	arr.InsertAt(insertPosition(arr, ne), ne)
	return true, nil
}

// insertPosition walks right from the predecessor. Siblings that sort
// before ne are passed over together with everything inserted after them;
// ne lands in front of the first sibling it beats or the first entry that
// belongs to neither.
func insertPosition(arr *store.Array, ne *store.Entry) int {
	pos := arr.Position(ne.Pred) + 1
	skipped := make(map[op.ID]struct{})
	for ; pos < arr.Physical(); pos++ {
		cur := arr.At(pos)
		if cur.Pred == ne.Pred {
			if sortsBefore(ne, cur) {
				break
			}
			skipped[cur.ID] = struct{}{}
			continue
		}
		if _, ok := skipped[cur.Pred]; ok {
			skipped[cur.ID] = struct{}{}
			continue
		}
		break
	}
	return pos
}

func (g *Graph) mergeRemove(o op.Op) bool {
	arr, _ := g.store.Array(o.Array)
	e, _ := arr.Entry(o.EntryID)
	return arr.Kill(e)
}
