package objgraph

import (
	"github.com/drpcorg/objgraph/op"
)

type waitKey struct {
	host string
	seq  uint64
}

type waiting struct {
	op     op.Op
	sweeps int
}

// waitList keeps ops whose prerequisites have not arrived, in arrival
// order. An op is held at most once no matter how often it is delivered.
type waitList struct {
	ops  []*waiting
	keys map[waitKey]struct{}
}

func (w *waitList) add(o op.Op) bool {
	if w.keys == nil {
		w.keys = make(map[waitKey]struct{})
	}
	k := waitKey{o.Host, o.Seq}
	if _, ok := w.keys[k]; ok {
		return false
	}
	w.keys[k] = struct{}{}
	w.ops = append(w.ops, &waiting{op: o})
	return true
}

func (w *waitList) has(o op.Op) bool {
	_, ok := w.keys[waitKey{o.Host, o.Seq}]
	return ok
}

// take hands out the parked ops and empties the list. The ops stay known
// to has until released, so a copy delivered meanwhile is not parked twice.
func (w *waitList) take() []*waiting {
	ops := w.ops
	w.ops = nil
	return ops
}

func (w *waitList) release(o op.Op) {
	delete(w.keys, waitKey{o.Host, o.Seq})
}

// requeue puts taken ops back in front of anything parked since.
func (w *waitList) requeue(kept []*waiting) {
	w.ops = append(kept, w.ops...)
}

func (w *waitList) len() int {
	return len(w.ops)
}

func (w *waitList) snapshot() []op.Op {
	out := make([]op.Op, len(w.ops))
	for i, e := range w.ops {
		out[i] = e.op.Clone()
	}
	return out
}
