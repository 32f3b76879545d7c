package replication

import (
	"errors"
	"fmt"

	"github.com/drpcorg/objgraph"
	"github.com/drpcorg/objgraph/op"
	"github.com/drpcorg/objgraph/utils"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSeenSize bounds the memory of ops that already crossed a link.
const DefaultSeenSize = 1 << 14

// Disconnectable is a replication channel that can be cut and restored.
// Ops produced while it is down are held and delivered on Reconnect.
type Disconnectable interface {
	Disconnect()
	Reconnect() error
}

// opKey names an op for duplicate detection. Ops minted by a replica carry
// a uuid; hand-built ones fall back to host and seq.
func opKey(o op.Op) string {
	if o.UUID != "" {
		return o.UUID
	}
	return fmt.Sprintf("%s/%d", o.Host, o.Seq)
}

type direction struct {
	from, to *objgraph.Graph
	sub      objgraph.Subscription
	held     []op.Op
}

// Link mirrors every change of one graph into another and back, within
// one goroutine. An op is not sent to the replica that minted it, and an
// op crosses the link at most once.
type Link struct {
	ab, ba    direction
	seen      *lru.Cache[string, struct{}]
	connected bool
	log       utils.Logger
}

var _ Disconnectable = (*Link)(nil)

func NewLink(a, b *objgraph.Graph, log utils.Logger) (*Link, error) {
	if log == nil {
		log = utils.NewDiscardLogger()
	}
	seen, err := lru.New[string, struct{}](DefaultSeenSize)
	if err != nil {
		return nil, err
	}
	l := &Link{
		ab:        direction{from: a, to: b},
		ba:        direction{from: b, to: a},
		seen:      seen,
		connected: true,
		log:       log.With("link", a.HostID()+"<->"+b.HostID()),
	}
	l.ab.sub = a.OnChange(func(o op.Op) { l.relay(&l.ab, o) })
	l.ba.sub = b.OnChange(func(o op.Op) { l.relay(&l.ba, o) })
	return l, nil
}

func (l *Link) relay(d *direction, o op.Op) {
	if o.Host == d.to.HostID() {
		return
	}
	if ok, _ := l.seen.ContainsOrAdd(opKey(o), struct{}{}); ok {
		return
	}
	if !l.connected {
		d.held = append(d.held, o)
		return
	}
	l.send(d, o)
}

func (l *Link) send(d *direction, o op.Op) {
	_, err := d.to.Process(o)
	if err != nil && !errors.Is(err, objgraph.ErrBuffered) {
		l.log.Warn("relay failed", "to", d.to.HostID(), "op", o.String(), "err", err)
	}
}

// Disconnect holds changes on both sides instead of relaying them.
func (l *Link) Disconnect() {
	l.connected = false
}

// Reconnect delivers what both sides did meanwhile, a's changes first.
func (l *Link) Reconnect() error {
	l.connected = true
	for _, d := range []*direction{&l.ab, &l.ba} {
		held := d.held
		d.held = nil
		for _, o := range held {
			l.send(d, o)
		}
	}
	return nil
}

// Close detaches the link from both graphs.
func (l *Link) Close() error {
	return errors.Join(
		l.ab.from.OffChange(l.ab.sub),
		l.ba.from.OffChange(l.ba.sub),
	)
}
