package objgraph

import (
	"slices"

	"github.com/drpcorg/objgraph/op"
)

// Observer is told about every op that changed the graph, in the order the
// changes happened. It runs synchronously inside Process.
type Observer func(o op.Op)

// Subscription identifies a registered observer; pass it to OffChange.
type Subscription uint64

type observer struct {
	sub Subscription
	fn  Observer
}

func (g *Graph) OnChange(fn Observer) Subscription {
	g.lastSub++
	g.observers = append(g.observers, observer{sub: Subscription(g.lastSub), fn: fn})
	return Subscription(g.lastSub)
}

func (g *Graph) OffChange(sub Subscription) error {
	i := slices.IndexFunc(g.observers, func(ob observer) bool { return ob.sub == sub })
	if i < 0 {
		return ErrSubscriptionUnknown
	}
	// fire works on its own copy, so removing mid-notification is safe
	g.observers = slices.Delete(slices.Clone(g.observers), i, i+1)
	return nil
}

func (g *Graph) fire(o op.Op) {
	for _, ob := range g.observers {
		ob.fn(o.Clone())
	}
}
