package store

import (
	"testing"

	"github.com/drpcorg/objgraph/op"
	"github.com/stretchr/testify/assert"
)

func TestStore_PutRemove(t *testing.T) {
	s := New()
	s.Put(NewObject("a"))
	s.Put(NewArray("b"))
	s.Put(NewObject("c"))
	assert.Equal(t, []op.ID{"a", "b", "c"}, s.IDs())

	_, ok := s.Object("b")
	assert.False(t, ok)
	_, ok = s.Array("b")
	assert.True(t, ok)

	assert.True(t, s.Remove("b", op.Stamp{Timestamp: 1, Host: "x", Seq: 1}))
	assert.False(t, s.Remove("b", op.Stamp{}))
	assert.True(t, s.WasDeleted("b"))
	assert.False(t, s.WasDeleted("a"))
	assert.Equal(t, []op.ID{"a", "c"}, s.IDs())
	assert.Equal(t, 2, s.Len())

	var seen []op.ID
	s.Range(func(e Entity) bool {
		seen = append(seen, e.EntityID())
		return false
	})
	assert.Equal(t, []op.ID{"a"}, seen)
}

func TestObject_Cells(t *testing.T) {
	o := NewObject("o")
	st := op.Stamp{Timestamp: 1, Host: "h", Seq: 1}
	o.Put("x", Cell{Value: int64(1), Stamp: st})
	o.Put("y", Cell{Value: "y", Stamp: st})
	assert.Equal(t, []string{"x", "y"}, o.Names())

	o.Put("x", Cell{Stamp: st, Deleted: true})
	assert.Equal(t, []string{"y"}, o.Names())
	_, live := o.Live("x")
	assert.False(t, live)
	c, ok := o.Cell("x")
	assert.True(t, ok)
	assert.True(t, c.Deleted)

	// revived properties go to the end
	o.Put("x", Cell{Value: int64(2), Stamp: st})
	assert.Equal(t, []string{"y", "x"}, o.Names())
	assert.Equal(t, 2, o.Len())
}

func TestArray_LiveView(t *testing.T) {
	a := NewArray("a")
	for i, id := range []op.ID{"e1", "e2", "e3"} {
		a.InsertAt(i, &Entry{ID: id, Value: i})
	}
	a.InsertAt(1, &Entry{ID: "e0", Value: "mid"})
	assert.Equal(t, []any{0, "mid", 1, 2}, a.Values())
	assert.Equal(t, 1, a.Position("e0"))
	assert.Equal(t, -1, a.Position(op.Head))
	assert.Equal(t, -1, a.Position("nope"))

	e, _ := a.Entry("e0")
	assert.True(t, a.Kill(e))
	assert.False(t, a.Kill(e))
	assert.Equal(t, 3, a.Len())
	assert.Equal(t, 4, a.Physical())

	got, ok := a.LiveAt(1)
	assert.True(t, ok)
	assert.Equal(t, op.ID("e2"), got.ID)
	_, ok = a.LiveAt(3)
	assert.False(t, ok)
	assert.Len(t, a.Entries(), 4)
}
