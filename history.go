package objgraph

import (
	"errors"
	"fmt"

	"github.com/drpcorg/objgraph/op"
)

// History is every op this replica accepted, in the order it applied them.
// The slice is a copy.
func (g *Graph) History() []op.Op {
	out := make([]op.Op, len(g.history))
	for i, o := range g.history {
		out[i] = o.Clone()
	}
	return out
}

// HistoryLen saves a copy when only the length is needed.
func (g *Graph) HistoryLen() int {
	return len(g.history)
}

// Replay feeds ops into g in order. Ops that end up parked, or that touch
// objects g has already deleted, are not failures: replaying histories of
// several replicas into one graph produces both. Everything else is
// collected into the returned error.
func Replay(g *Graph, ops []op.Op) error {
	var errs []error
	for _, o := range ops {
		_, err := g.Process(o)
		if err == nil || errors.Is(err, ErrBuffered) || errors.Is(err, ErrObjectDeleted) {
			continue
		}
		errs = append(errs, fmt.Errorf("replay %s: %w", o, err))
	}
	return errors.Join(errs...)
}

// Clone builds a new replica named hostID out of g's history. The clone
// shares nothing with g.
func (g *Graph) Clone(hostID string) (*Graph, error) {
	opts := g.opts
	opts.HostID = hostID
	opts.Journal = nil
	opts.Clock = nil
	c := New(opts)
	if err := Replay(c, g.history); err != nil {
		return nil, err
	}
	return c, nil
}

// Restore builds a replica from a journal and keeps appending to it.
// Ops already in the journal are not written again.
func Restore(opts Options, journal Journal) (*Graph, error) {
	opts.Journal = nil
	g := New(opts)
	var errs []error
	err := journal.Replay(func(o op.Op) error {
		if _, err := g.Process(o); err != nil &&
			!errors.Is(err, ErrBuffered) && !errors.Is(err, ErrObjectDeleted) {
			errs = append(errs, fmt.Errorf("restore %s: %w", o, err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err = errors.Join(errs...); err != nil {
		return nil, err
	}
	g.opts.Journal = journal
	g.log.Info("restored", "ops", len(g.history), "waiting", g.waiting.len())
	return g, nil
}
