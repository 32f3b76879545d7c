// Package objgraph is a replicated object graph: objects with
// last-writer-wins properties and ordered arrays, kept by several replicas
// that exchange operations in any order and converge to the same state.
//
// Every change goes through Graph.Process. An op whose prerequisites are
// not there yet waits in a buffer and is retried when something new gets
// created; an op that is applied is appended to the history and handed to
// the observers.
package objgraph

import (
	"log/slog"

	"github.com/drpcorg/objgraph/objgraph_errors"
	"github.com/drpcorg/objgraph/op"
	"github.com/drpcorg/objgraph/store"
	"github.com/drpcorg/objgraph/utils"
	"github.com/google/uuid"
)

var (
	ErrMalformed           = objgraph_errors.ErrMalformed
	ErrObjectDeleted       = objgraph_errors.ErrObjectDeleted
	ErrCausality           = objgraph_errors.ErrCausality
	ErrBuffered            = objgraph_errors.ErrBuffered
	ErrObjectUnknown       = objgraph_errors.ErrObjectUnknown
	ErrPropertyUnknown     = objgraph_errors.ErrPropertyUnknown
	ErrEntryUnknown        = objgraph_errors.ErrEntryUnknown
	ErrEntryConflict       = objgraph_errors.ErrEntryConflict
	ErrNotObject           = objgraph_errors.ErrNotObject
	ErrNotArray            = objgraph_errors.ErrNotArray
	ErrIndexOutOfRange     = objgraph_errors.ErrIndexOutOfRange
	ErrSubscriptionUnknown = objgraph_errors.ErrSubscriptionUnknown
	ErrClosed              = objgraph_errors.ErrClosed
)

// Journal mirrors the history somewhere durable.
type Journal interface {
	Append(o op.Op) error
	Replay(f func(o op.Op) error) error
	Len() int
	Close() error
}

type Options struct {
	// HostID names this replica; it must be unique among replicas.
	HostID string
	Logger utils.Logger
	Clock  op.Clock
	// Journal, if set, receives every op appended to the history.
	Journal Journal
	// MaxWaitSweeps > 0 evicts a buffered op after it stayed blocked
	// through that many retry sweeps. Zero keeps ops forever.
	MaxWaitSweeps int
}

func (o *Options) SetDefaults() {
	if o.HostID == "" {
		o.HostID = uuid.NewString()
	}
	if o.Logger == nil {
		o.Logger = utils.NewDefaultLogger(slog.LevelWarn)
	}
	if o.Clock == nil {
		o.Clock = &op.HybridClock{}
	}
}

// Graph is one replica. It is not safe for concurrent use: callers on
// several goroutines must serialize Process and any reads that need a
// consistent view (see replication.Locked). Observers may call Process
// from inside a notification.
type Graph struct {
	host  string
	opts  Options
	log   utils.Logger
	clock op.Clock
	seq   op.Sequencer

	store   *store.Store
	waiting waitList
	history []op.Op

	sweeping bool
	resweep  bool

	observers []observer
	lastSub   uint64

	closed bool
}

func New(opts Options) *Graph {
	opts.SetDefaults()
	return &Graph{
		host:  opts.HostID,
		opts:  opts,
		log:   opts.Logger.With("host", opts.HostID),
		clock: opts.Clock,
		seq:   op.Sequencer{Host: opts.HostID},
		store: store.New(),
	}
}

// HostID is this replica's identifier, fixed for its lifetime.
func (g *Graph) HostID() string {
	return g.host
}

// Close releases the journal. The graph rejects ops afterwards.
func (g *Graph) Close() error {
	if g.closed {
		return ErrClosed
	}
	g.closed = true
	g.waitingGauge().Set(0)
	if g.opts.Journal != nil {
		return g.opts.Journal.Close()
	}
	return nil
}
