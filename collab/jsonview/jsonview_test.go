package jsonview

import (
	"testing"

	"github.com/drpcorg/objgraph"
	"github.com/drpcorg/objgraph/op"
	"github.com/drpcorg/objgraph/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGraph() *objgraph.Graph {
	return objgraph.New(objgraph.Options{
		HostID: "a",
		Logger: utils.NewDiscardLogger(),
		Clock:  &op.LogicalClock{},
	})
}

func object(t *testing.T, g *objgraph.Graph, props ...any) op.ID {
	id, err := g.NewObject()
	require.NoError(t, err)
	for i := 0; i+1 < len(props); i += 2 {
		require.NoError(t, g.CreateProperty(id, props[i].(string), props[i+1]))
	}
	return id
}

func TestView_Tree(t *testing.T) {
	g := newGraph()
	v := New(g)

	o1 := object(t, g, "id", "O1", "x", 100)
	require.NoError(t, g.SetProperty(o1, "x", 200))
	root := object(t, g, "id", "ROOT", "x", 300, "children", []op.ID{o1})

	view, err := v.ByID("ROOT")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"id": "ROOT",
		"x":  int64(300),
		"children": []any{
			map[string]any{"id": "O1", "x": int64(200)},
		},
	}, view)

	o2 := object(t, g, "id", "O2", "x", 400)
	require.NoError(t, g.SetProperty(root, "children", []op.ID{o1, o2}))
	view, err = v.ByID("ROOT")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"id": "ROOT",
		"x":  int64(300),
		"children": []any{
			map[string]any{"id": "O1", "x": int64(200)},
			map[string]any{"id": "O2", "x": int64(400)},
		},
	}, view)

	require.NoError(t, g.DeleteObject(o1))
	view, err = v.ByID("ROOT")
	require.NoError(t, err)
	// a dangling reference is skipped
	assert.Len(t, view["children"], 1)

	require.NoError(t, g.SetProperty(root, "children", []op.ID{o2}))
	view, err = v.ByID("ROOT")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"id": "ROOT",
		"x":  int64(300),
		"children": []any{
			map[string]any{"id": "O2", "x": int64(400)},
		},
	}, view)

	_, err = v.ByID("nope")
	assert.ErrorIs(t, err, ErrRootNotFound)
}

func TestView_ArrayChildren(t *testing.T) {
	g := newGraph()
	v := New(g)

	list, err := g.NewArray()
	require.NoError(t, err)
	a := object(t, g, "id", "A")
	b := object(t, g, "id", "B")
	_, err = g.InsertElement(list, 0, b)
	require.NoError(t, err)
	_, err = g.InsertElement(list, 0, a)
	require.NoError(t, err)
	object(t, g, "id", "ROOT", "children", list)

	view, err := v.ByID("ROOT")
	require.NoError(t, err)
	assert.Equal(t, []any{
		map[string]any{"id": "A"},
		map[string]any{"id": "B"},
	}, view["children"])
}

func TestView_Cycle(t *testing.T) {
	g := newGraph()
	v := New(g)

	a := object(t, g, "id", "A")
	b := object(t, g, "id", "B", "children", []op.ID{a})
	require.NoError(t, g.CreateProperty(a, "children", []op.ID{b}))

	_, err := v.ByID("A")
	assert.ErrorIs(t, err, ErrCycle)

	arr, err := g.NewArray()
	require.NoError(t, err)
	_, err = v.Render(arr)
	assert.ErrorIs(t, err, objgraph.ErrNotObject)
}
