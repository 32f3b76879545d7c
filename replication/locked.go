// Package replication moves ops between replicas: in process through
// Link, or over a connection through Syncer. A Graph is single-threaded,
// so anything that touches one from several goroutines goes through Locked.
package replication

import (
	"sync"

	"github.com/drpcorg/objgraph"
	"github.com/drpcorg/objgraph/op"
)

// Locked serializes access to a graph. Observers run with the lock held,
// so they must not call back into the same Locked.
type Locked struct {
	mu sync.Mutex
	g  *objgraph.Graph
}

func NewLocked(g *objgraph.Graph) *Locked {
	return &Locked{g: g}
}

func (l *Locked) Process(o op.Op) (op.ID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.g.Process(o)
}

func (l *Locked) Dump() map[op.ID]any {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.g.Dump()
}

func (l *Locked) History() []op.Op {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.g.History()
}

func (l *Locked) HostID() string {
	return l.g.HostID()
}

// Do runs f with exclusive access to the graph.
func (l *Locked) Do(f func(g *objgraph.Graph) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return f(l.g)
}

func (l *Locked) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.g.Close()
}
