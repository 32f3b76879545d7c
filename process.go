package objgraph

import (
	"errors"
	"fmt"
	"time"

	"github.com/drpcorg/objgraph/op"
)

// Process applies one op, local or remote, and returns the id of whatever
// it created (the entity for CreateObject/CreateArray, the entry for
// InsertElement).
//
// An op whose prerequisites are missing is parked and Process returns an
// error matching both ErrBuffered and ErrCausality; the op is applied by a
// later Process call that supplies the missing piece. Duplicates and writes
// that lose the last-writer-wins comparison are absorbed with a nil error.
func (g *Graph) Process(o op.Op) (op.ID, error) {
	if g.closed {
		return "", ErrClosed
	}
	start := time.Now()
	// peers choose o.Kind, only known kinds may become label values
	kind := kindInvalid
	defer func() {
		ProcessDuration.WithLabelValues(kind).Observe(float64(time.Since(start).Microseconds()))
	}()

	o, err := normalize(o)
	if err != nil {
		g.log.Warn("op rejected", "op", o.String(), "err", err)
		OpsProcessed.WithLabelValues(kind, resultRejected).Inc()
		return "", err
	}
	kind = string(o.Kind)
	g.clock.See(o.Timestamp)
	g.seq.See(o.Host, o.Seq)

	if g.waiting.has(o) {
		OpsProcessed.WithLabelValues(string(o.Kind), resultBuffered).Inc()
		return "", fmt.Errorf("%w: %w: %s already waiting", ErrBuffered, ErrCausality, o)
	}

	changed, err := g.apply(o)
	switch {
	case errors.Is(err, ErrCausality):
		g.waiting.add(o)
		g.waitingGauge().Set(float64(g.waiting.len()))
		g.log.Debug("op buffered", "op", o.String(), "err", err)
		OpsProcessed.WithLabelValues(string(o.Kind), resultBuffered).Inc()
		return "", fmt.Errorf("%w: %w", ErrBuffered, err)
	case err != nil:
		g.log.Warn("op rejected", "op", o.String(), "err", err)
		OpsProcessed.WithLabelValues(string(o.Kind), resultRejected).Inc()
		return "", err
	}
	OpsProcessed.WithLabelValues(string(o.Kind), result(changed)).Inc()

	if changed && settles(o) {
		g.sweep()
	}
	return createdID(o), nil
}

// normalize copies o and canonicalizes its values so that every replica
// stores the same representation whatever transport carried the op.
func normalize(o op.Op) (op.Op, error) {
	o = o.Clone()
	if err := o.Validate(); err != nil {
		return o, err
	}
	v, err := op.Canonical(o.Value)
	if err != nil {
		return o, fmt.Errorf("%w: value: %w", ErrMalformed, err)
	}
	o.Value = v
	for name, pv := range o.Props {
		if o.Props[name], err = op.Canonical(pv); err != nil {
			return o, fmt.Errorf("%w: props.%s: %w", ErrMalformed, name, err)
		}
	}
	return o, nil
}

// apply runs the gate and the merge. If the op got through, it goes to the
// history (and journal) even when it changed nothing; observers only hear
// about changes.
func (g *Graph) apply(o op.Op) (changed bool, err error) {
	if err = g.gate(o); err != nil {
		return false, err
	}
	switch o.Kind {
	case op.CreateObject, op.CreateArray:
		changed = g.mergeCreate(o)
	case op.DeleteObject:
		changed = g.mergeDelete(o)
	case op.CreateProperty, op.SetProperty, op.SetProperties, op.DeleteProperty:
		changed = g.mergeProperty(o)
	case op.InsertElement:
		changed, err = g.mergeInsert(o)
	case op.DeleteElement:
		changed = g.mergeRemove(o)
	}
	if err != nil {
		return false, err
	}
	g.record(o)
	if changed {
		g.fire(o)
	}
	return changed, nil
}

func (g *Graph) record(o op.Op) {
	g.history = append(g.history, o)
	if g.opts.Journal == nil {
		return
	}
	if err := g.opts.Journal.Append(o); err != nil {
		g.log.Error("journal append failed", "op", o.String(), "err", err)
	}
}

// settles tells whether applying o may resolve parked ops. A creation can
// unblock them; a delete turns the ones aimed at the deleted id into
// rejections.
func settles(o op.Op) bool {
	return o.Creates() || o.Kind == op.DeleteObject
}

// sweep retries parked ops until a pass applies nothing. Nested calls from
// observers only flag another pass for the outermost sweep.
func (g *Graph) sweep() {
	if g.sweeping {
		g.resweep = true
		return
	}
	g.sweeping = true
	defer func() { g.sweeping = false }()

	for {
		g.resweep = false
		progress := false
		var kept []*waiting
		for _, w := range g.waiting.take() {
			changed, err := g.apply(w.op)
			switch {
			case errors.Is(err, ErrCausality):
				kept = append(kept, w)
				continue
			case errors.Is(err, ErrObjectDeleted):
				g.log.Debug("buffered op dropped", "op", w.op.String(), "err", err)
				OpsProcessed.WithLabelValues(string(w.op.Kind), resultRejected).Inc()
			case err != nil:
				g.log.Warn("buffered op rejected", "op", w.op.String(), "err", err)
				OpsProcessed.WithLabelValues(string(w.op.Kind), resultRejected).Inc()
			default:
				progress = true
				OpsProcessed.WithLabelValues(string(w.op.Kind), result(changed)).Inc()
			}
			g.waiting.release(w.op)
		}
		g.waiting.requeue(kept)
		SweepRounds.WithLabelValues(g.host).Inc()
		if !progress && !g.resweep {
			break
		}
	}
	g.age()
	g.waitingGauge().Set(float64(g.waiting.len()))
}

// age counts one more failed sweep against every parked op and evicts the
// ones that ran out of patience.
func (g *Graph) age() {
	if g.opts.MaxWaitSweeps <= 0 {
		return
	}
	var kept []*waiting
	for _, w := range g.waiting.take() {
		w.sweeps++
		if w.sweeps < g.opts.MaxWaitSweeps {
			kept = append(kept, w)
			continue
		}
		g.waiting.release(w.op)
		g.log.Warn("buffered op evicted", "op", w.op.String(), "sweeps", w.sweeps)
		OpsProcessed.WithLabelValues(string(w.op.Kind), resultEvicted).Inc()
	}
	g.waiting.requeue(kept)
}

func result(changed bool) string {
	if changed {
		return resultApplied
	}
	return resultNoop
}

func createdID(o op.Op) op.ID {
	switch o.Kind {
	case op.CreateObject, op.CreateArray:
		return o.ID
	case op.InsertElement:
		return o.EntryID
	}
	return ""
}
