package objgraph

import (
	"errors"
	"testing"

	"github.com/drpcorg/objgraph/op"
	"github.com/drpcorg/objgraph/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGraph(host string) *Graph {
	return New(Options{
		HostID: host,
		Logger: utils.NewDiscardLogger(),
		Clock:  &op.LogicalClock{},
	})
}

func remote(kind op.Kind, host string, ts int64, seq uint64) op.Op {
	return op.Op{Kind: kind, Host: host, Timestamp: ts, Seq: seq}
}

func createObject(id op.ID, host string, ts int64, seq uint64) op.Op {
	o := remote(op.CreateObject, host, ts, seq)
	o.ID = id
	return o
}

func createArray(id op.ID, host string, ts int64, seq uint64) op.Op {
	o := remote(op.CreateArray, host, ts, seq)
	o.ID = id
	return o
}

func propOp(kind op.Kind, obj op.ID, name string, v any, host string, ts int64, seq uint64) op.Op {
	o := remote(kind, host, ts, seq)
	o.Object, o.Name, o.Value = obj, name, v
	return o
}

func insertOp(arr, entry, pred op.ID, v any, host string, ts int64, seq uint64) op.Op {
	o := remote(op.InsertElement, host, ts, seq)
	o.Array, o.EntryID, o.PredecessorID, o.Value = arr, entry, pred, v
	return o
}

func mustProcess(t *testing.T, g *Graph, ops ...op.Op) {
	t.Helper()
	for _, o := range ops {
		_, err := g.Process(o)
		require.NoError(t, err, o.String())
	}
}

func TestGraph_Basic(t *testing.T) {
	g := newTestGraph("a")
	root, err := g.NewObjectWithID("root")
	require.NoError(t, err)
	assert.NoError(t, g.CreateProperty(root, "id", "root"))

	a, err := g.NewObjectWithID("A")
	require.NoError(t, err)
	assert.NoError(t, g.CreateProperty(a, "id", "A"))
	assert.NoError(t, g.CreateProperty(a, "x", 100))

	assert.NoError(t, g.CreateProperty(root, "children", []any{}))
	assert.NoError(t, g.SetProperty(root, "children", []any{string(a)}))

	assert.Equal(t, map[op.ID]any{
		"root": map[string]any{"id": "root", "children": []any{"A"}},
		"A":    map[string]any{"id": "A", "x": int64(100)},
	}, g.Dump())
}

func TestGraph_CreateThenDump(t *testing.T) {
	g := newTestGraph("a")
	mustProcess(t, g,
		createObject("R", "a", 1, 1),
		propOp(op.CreateProperty, "R", "x", 100, "a", 2, 2),
	)
	assert.Equal(t, map[op.ID]any{"R": map[string]any{"x": int64(100)}}, g.Dump())
}

func TestGraph_SetIncreasingSeq(t *testing.T) {
	g := newTestGraph("a")
	mustProcess(t, g,
		createObject("A", "a", 1, 1),
		propOp(op.CreateProperty, "A", "x", 0, "a", 1, 2),
		propOp(op.SetProperty, "A", "x", 100, "a", 1, 3),
		propOp(op.SetProperty, "A", "x", 200, "a", 1, 4),
	)
	v, err := g.PropertyValue("A", "x")
	assert.NoError(t, err)
	assert.Equal(t, int64(200), v)
}

func TestGraph_History(t *testing.T) {
	g := newTestGraph("a")
	var seen []op.Op
	g.OnChange(func(o op.Op) { seen = append(seen, o) })

	a, err := g.NewObject()
	require.NoError(t, err)
	assert.NoError(t, g.CreateProperty(a, "id", "A"))
	assert.NoError(t, g.CreateProperty(a, "x", 100))
	assert.NoError(t, g.SetProperty(a, "x", 200))

	kinds := func(ops []op.Op) (out []op.Kind) {
		for _, o := range ops {
			out = append(out, o.Kind)
		}
		return
	}
	want := []op.Kind{op.CreateObject, op.CreateProperty, op.CreateProperty, op.SetProperty}
	assert.Equal(t, want, kinds(seen))
	assert.Equal(t, want, kinds(g.History()))
	assert.Equal(t, "x", seen[3].Name)
	assert.Equal(t, int64(200), seen[3].Value)
}

func TestGraph_DeletedObjectRejectsWrites(t *testing.T) {
	g := newTestGraph("a")
	mustProcess(t, g,
		createObject("R", "a", 1, 1),
		propOp(op.CreateProperty, "R", "id", "R", "a", 2, 2),
		propOp(op.CreateProperty, "R", "x", 100, "a", 3, 3),
		propOp(op.SetProperty, "R", "x", 200, "a", 4, 4),
	)
	assert.Equal(t, map[op.ID]any{"R": map[string]any{"id": "R", "x": int64(200)}}, g.Dump())

	del := remote(op.DeleteObject, "a", 5, 5)
	del.ID = "R"
	mustProcess(t, g, del)

	fired := 0
	g.OnChange(func(op.Op) { fired++ })
	_, err := g.Process(propOp(op.SetProperty, "R", "x", 300, "a", 6, 6))
	assert.ErrorIs(t, err, ErrObjectDeleted)
	assert.Empty(t, g.Waiting())
	assert.Empty(t, g.Dump())
	assert.Zero(t, fired)

	assert.ErrorIs(t, g.SetProperty("R", "x", 300), ErrObjectUnknown)
	_, err = g.Process(del)
	assert.ErrorIs(t, err, ErrObjectDeleted)

	// a late create of the same id does not bring it back
	mustProcess(t, g, createObject("R", "a", 1, 1))
	assert.Empty(t, g.Dump())
}

func TestGraph_DeleteDropsWaitingOps(t *testing.T) {
	g := newTestGraph("a")
	mustProcess(t, g, createObject("X", "b", 1, 1))

	_, err := g.Process(propOp(op.SetProperty, "X", "p", 1, "b", 3, 3))
	assert.ErrorIs(t, err, ErrBuffered)
	assert.Len(t, g.Waiting(), 1)

	del := remote(op.DeleteObject, "b", 4, 4)
	del.ID = "X"
	mustProcess(t, g, del)
	assert.Empty(t, g.Waiting())

	_, err = g.Process(propOp(op.CreateProperty, "X", "p", 0, "b", 2, 2))
	assert.ErrorIs(t, err, ErrObjectDeleted)
	assert.Empty(t, g.Waiting())
	assert.Empty(t, g.Dump())
}

func TestGraph_BufferUntilCreated(t *testing.T) {
	g := newTestGraph("a")
	fired := 0
	g.OnChange(func(op.Op) { fired++ })

	_, err := g.Process(propOp(op.CreateProperty, "Z", "x", 1, "b", 2, 2))
	assert.ErrorIs(t, err, ErrBuffered)
	assert.ErrorIs(t, err, ErrCausality)
	assert.Len(t, g.Waiting(), 1)
	assert.Empty(t, g.Dump())
	assert.Empty(t, g.History())
	assert.Zero(t, fired)

	mustProcess(t, g, createObject("Z", "b", 1, 1))
	assert.Equal(t, map[op.ID]any{"Z": map[string]any{"x": int64(1)}}, g.Dump())
	assert.Empty(t, g.Waiting())
	assert.Equal(t, 2, fired)
	assert.Len(t, g.History(), 2)
}

func TestGraph_BufferChain(t *testing.T) {
	g := newTestGraph("a")
	// deliver a dependency chain back to front
	ops := []op.Op{
		createArray("L", "b", 1, 1),
		insertOp("L", "e1", op.Head, "x", "b", 2, 2),
		insertOp("L", "e2", "e1", "y", "b", 3, 3),
		insertOp("L", "e3", "e2", "z", "b", 4, 4),
	}
	for i := len(ops) - 1; i > 0; i-- {
		_, err := g.Process(ops[i])
		assert.ErrorIs(t, err, ErrBuffered)
	}
	assert.Len(t, g.Waiting(), 3)

	mustProcess(t, g, ops[0])
	assert.Empty(t, g.Waiting())
	vals, err := g.Elements("L")
	assert.NoError(t, err)
	assert.Equal(t, []any{"x", "y", "z"}, vals)
}

func TestGraph_WaitingDeduplicated(t *testing.T) {
	g := newTestGraph("a")
	o := propOp(op.CreateProperty, "Z", "x", 1, "b", 2, 2)
	for i := 0; i < 3; i++ {
		_, err := g.Process(o)
		assert.ErrorIs(t, err, ErrBuffered)
	}
	assert.Len(t, g.Waiting(), 1)
}

func TestGraph_ReplayTwice(t *testing.T) {
	src := newTestGraph("a")
	r, err := src.NewObjectWithID("R")
	require.NoError(t, err)
	assert.NoError(t, src.CreateProperty(r, "id", "R"))
	assert.NoError(t, src.CreateProperty(r, "x", 100))
	assert.NoError(t, src.SetProperty(r, "x", 200))
	arr, err := src.NewArrayWithID("arr")
	require.NoError(t, err)
	_, err = src.InsertElement(arr, 0, "first")
	assert.NoError(t, err)
	_, err = src.InsertElement(arr, 1, "second")
	assert.NoError(t, err)
	assert.NoError(t, src.RemoveElement(arr, 0))

	dst := newTestGraph("b")
	fired := 0
	dst.OnChange(func(op.Op) { fired++ })

	require.NoError(t, Replay(dst, src.History()))
	first := dst.Dump()
	firedFirst := fired
	assert.Equal(t, src.Dump(), first)

	require.NoError(t, Replay(dst, src.History()))
	assert.Equal(t, first, dst.Dump())
	assert.Equal(t, firedFirst, fired)
	assert.Equal(t, 1, arrLen(t, dst, arr))
	// no-ops are recorded too
	assert.Len(t, dst.History(), 2*len(src.History()))
}

func arrLen(t *testing.T, g *Graph, id op.ID) int {
	n, err := g.ArrayLength(id)
	require.NoError(t, err)
	return n
}

func TestGraph_Clone(t *testing.T) {
	g := newTestGraph("a")
	r, err := g.NewObjectWithID("R")
	require.NoError(t, err)
	assert.NoError(t, g.CreateProperty(r, "id", "R"))
	assert.NoError(t, g.CreateProperty(r, "x", 100))
	assert.NoError(t, g.SetProperty(r, "x", 200))

	c, err := g.Clone("b")
	require.NoError(t, err)
	assert.Equal(t, "b", c.HostID())
	assert.Equal(t, map[op.ID]any{"R": map[string]any{"id": "R", "x": int64(200)}}, c.Dump())

	// the clone is independent
	assert.NoError(t, c.SetProperty(r, "x", 300))
	v, err := g.PropertyValue(r, "x")
	assert.NoError(t, err)
	assert.Equal(t, int64(200), v)
}

func TestGraph_Malformed(t *testing.T) {
	g := newTestGraph("a")
	cases := []op.Op{
		createObject("R", "a", 1, 0),
		createObject("R", "", 1, 1),
		createObject("", "a", 1, 1),
		remote("NOPE", "a", 1, 1),
		propOp(op.SetProperty, "R", "", 1, "a", 1, 1),
		insertOp("L", "", op.Head, 1, "a", 1, 1),
	}
	for _, o := range cases {
		_, err := g.Process(o)
		assert.ErrorIs(t, err, ErrMalformed, o.String())
	}
	assert.Empty(t, g.Waiting())
	assert.Empty(t, g.History())

	mustProcess(t, g, createObject("R", "a", 1, 1))
	_, err := g.Process(propOp(op.CreateProperty, "R", "x", struct{ C chan int }{}, "a", 2, 2))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestGraph_WrongEntityKind(t *testing.T) {
	g := newTestGraph("a")
	mustProcess(t, g, createObject("O", "a", 1, 1), createArray("L", "a", 2, 2))

	_, err := g.Process(propOp(op.CreateProperty, "L", "x", 1, "a", 3, 3))
	assert.ErrorIs(t, err, ErrNotObject)
	_, err = g.Process(insertOp("O", "e", op.Head, 1, "a", 4, 4))
	assert.ErrorIs(t, err, ErrNotArray)

	_, err = g.ArrayLength("O")
	assert.ErrorIs(t, err, ErrNotArray)
	_, err = g.PropertyValue("L", "x")
	assert.ErrorIs(t, err, ErrNotObject)
	_, err = g.PropertyValue("nope", "x")
	assert.ErrorIs(t, err, ErrObjectUnknown)
}

func TestGraph_Observers(t *testing.T) {
	g := newTestGraph("a")
	var order []string
	s1 := g.OnChange(func(op.Op) { order = append(order, "first") })
	g.OnChange(func(op.Op) { order = append(order, "second") })

	_, err := g.NewObject()
	assert.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, order)

	assert.NoError(t, g.OffChange(s1))
	assert.ErrorIs(t, g.OffChange(s1), ErrSubscriptionUnknown)

	order = nil
	_, err = g.NewObject()
	assert.NoError(t, err)
	assert.Equal(t, []string{"second"}, order)
}

func TestGraph_ObserverMayProcess(t *testing.T) {
	a := newTestGraph("a")
	b := newTestGraph("b")
	// a two-way bridge with no echo suppression; idempotence stops the loop
	a.OnChange(func(o op.Op) { _, _ = b.Process(o) })
	b.OnChange(func(o op.Op) { _, _ = a.Process(o) })

	r, err := a.NewObjectWithID("R")
	require.NoError(t, err)
	assert.NoError(t, a.CreateProperty(r, "x", 1))
	assert.NoError(t, b.SetProperty(r, "x", 2))

	assert.Equal(t, a.Dump(), b.Dump())
	v, err := a.PropertyValue(r, "x")
	assert.NoError(t, err)
	assert.Equal(t, int64(2), v)
}

func TestGraph_NoopCreateRecordedNotFired(t *testing.T) {
	g := newTestGraph("a")
	fired := 0
	g.OnChange(func(op.Op) { fired++ })

	c := createObject("R", "a", 1, 1)
	id, err := g.Process(c)
	assert.NoError(t, err)
	assert.Equal(t, op.ID("R"), id)
	id, err = g.Process(c)
	assert.NoError(t, err)
	assert.Equal(t, op.ID("R"), id)

	assert.Equal(t, 1, fired)
	assert.Len(t, g.History(), 2)
}

func TestGraph_EvictAfterSweeps(t *testing.T) {
	g := New(Options{HostID: "a", Logger: utils.NewDiscardLogger(), Clock: &op.LogicalClock{}, MaxWaitSweeps: 2})
	_, err := g.Process(propOp(op.CreateProperty, "never", "x", 1, "b", 1, 1))
	assert.ErrorIs(t, err, ErrBuffered)

	_, err = g.NewObject()
	assert.NoError(t, err)
	assert.Len(t, g.Waiting(), 1)

	_, err = g.NewObject()
	assert.NoError(t, err)
	assert.Empty(t, g.Waiting())
}

func TestGraph_Queries(t *testing.T) {
	g := newTestGraph("a")
	a, _ := g.NewObjectWithID("A")
	b, _ := g.NewObjectWithID("B")
	assert.NoError(t, g.SetProperties(a, map[string]any{"id": "A", "n": 1}))
	assert.NoError(t, g.SetProperties(b, map[string]any{"id": "B", "n": 1}))
	assert.NoError(t, g.CreateProperty(b, "z", true))

	id, ok := g.GetByProperty("n", 1.0)
	assert.True(t, ok)
	assert.Equal(t, a, id)
	id, ok = g.GetByProperty("id", "B")
	assert.True(t, ok)
	assert.Equal(t, b, id)
	_, ok = g.GetByProperty("id", "C")
	assert.False(t, ok)

	names, err := g.PropertyNames(b)
	assert.NoError(t, err)
	assert.Equal(t, []string{"id", "n", "z"}, names)

	has, err := g.HasProperty(b, "z")
	assert.NoError(t, err)
	assert.True(t, has)
	_, err = g.PropertyValue(b, "missing")
	assert.ErrorIs(t, err, ErrPropertyUnknown)

	e, ok := g.GetByID(b)
	assert.True(t, ok)
	assert.Equal(t, KindObject, e.Kind)
	assert.Equal(t, map[string]any{"id": "B", "n": int64(1), "z": true}, e.Props)
	_, ok = g.GetByID("C")
	assert.False(t, ok)

	assert.Equal(t, []op.ID{a, b}, g.IDs())
}

func TestGraph_SnapshotsAreCopies(t *testing.T) {
	g := newTestGraph("a")
	r, _ := g.NewObjectWithID("R")
	assert.NoError(t, g.CreateProperty(r, "list", []any{1, 2}))

	v, err := g.PropertyValue(r, "list")
	require.NoError(t, err)
	v.([]any)[0] = "changed"
	g.Dump()["R"].(map[string]any)["list"] = nil

	v, err = g.PropertyValue(r, "list")
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(2)}, v)
}

func TestGraph_HistoryIsCopied(t *testing.T) {
	g := newTestGraph("a")
	var seen []op.Op
	g.OnChange(func(o op.Op) { seen = append(seen, o) })

	r, _ := g.NewObjectWithID("R")
	assert.NoError(t, g.CreateProperty(r, "m", map[string]any{"k": 1}))

	h := g.History()
	h[len(h)-1].Value.(map[string]any)["k"] = "changed"
	seen[len(seen)-1].Value.(map[string]any)["k"] = "changed too"

	v, err := g.PropertyValue(r, "m")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"k": int64(1)}, v)
	h = g.History()
	assert.Equal(t, map[string]any{"k": int64(1)}, h[len(h)-1].Value)
}

func TestGraph_LargeWholeFloatsConverge(t *testing.T) {
	a, b := newTestGraph("a"), newTestGraph("b")
	var ops []op.Op
	a.OnChange(func(o op.Op) { ops = append(ops, o) })

	r, _ := a.NewObjectWithID("R")
	assert.NoError(t, a.CreateProperty(r, "big", float64(1<<60)))
	assert.NoError(t, a.CreateProperty(r, "huge", 1e19))
	assert.NoError(t, a.CreateProperty(r, "list", []any{float64(1<<53 + 2), 0.5}))

	for _, o := range ops {
		rec, err := op.Encode(o)
		require.NoError(t, err)
		back, err := op.Decode(rec)
		require.NoError(t, err)
		mustProcess(t, b, back)
	}
	assert.Equal(t, a.Dump(), b.Dump())
	v, err := b.PropertyValue(r, "big")
	require.NoError(t, err)
	assert.Equal(t, int64(1<<60), v)
}

// kindLabels lists the kind label values ProcessDuration has series for.
func kindLabels(t *testing.T) map[string]bool {
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(ProcessDuration))
	mfs, err := reg.Gather()
	require.NoError(t, err)
	kinds := make(map[string]bool)
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "kind" {
					kinds[l.GetValue()] = true
				}
			}
		}
	}
	return kinds
}

func TestGraph_InvalidKindLabel(t *testing.T) {
	g := newTestGraph("a")
	for _, kind := range []op.Kind{"BOGUS-1", "BOGUS-2"} {
		_, err := g.Process(remote(kind, "a", 1, 1))
		assert.ErrorIs(t, err, ErrMalformed)
	}
	kinds := kindLabels(t)
	assert.True(t, kinds[kindInvalid])
	assert.False(t, kinds["BOGUS-1"])
	assert.False(t, kinds["BOGUS-2"])
	assert.False(t, OpsProcessed.DeleteLabelValues("BOGUS-1", resultRejected))
}

func TestGraph_Closed(t *testing.T) {
	g := newTestGraph("a")
	assert.NoError(t, g.Close())
	assert.ErrorIs(t, g.Close(), ErrClosed)
	_, err := g.NewObject()
	assert.True(t, errors.Is(err, ErrClosed))
	_, err = g.Process(createObject("R", "a", 1, 1))
	assert.ErrorIs(t, err, ErrClosed)
}
