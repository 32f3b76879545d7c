package replication

import (
	"context"
	"errors"
	"time"

	"github.com/drpcorg/objgraph"
	"github.com/drpcorg/objgraph/op"
	"github.com/drpcorg/objgraph/protocol"
	"github.com/drpcorg/objgraph/utils"
	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	DefaultOutQueueLimit = 1 << 24
	DefaultFeedWait      = time.Second
)

// Syncer speaks for one replica on one connection. Feed yields the
// replica's full history followed by its live changes, as TLV op records;
// Drain applies ops received from the peer. Ops that came from the peer are
// not sent back to it.
type Syncer struct {
	Name string

	host *Locked
	log  utils.Logger
	outq *utils.RecordQueue[protocol.Records]
	from *lru.Cache[string, struct{}]
	sub  objgraph.Subscription
}

var _ protocol.FeedDrainCloser = (*Syncer)(nil)

func NewSyncer(name string, host *Locked, log utils.Logger) (*Syncer, error) {
	if log == nil {
		log = utils.NewDiscardLogger()
	}
	from, err := lru.New[string, struct{}](DefaultSeenSize)
	if err != nil {
		return nil, err
	}
	s := &Syncer{
		Name: name,
		host: host,
		log:  log.With("peer", name),
		outq: utils.NewRecordQueue[protocol.Records](DefaultOutQueueLimit, DefaultFeedWait),
		from: from,
	}
	err = host.Do(func(g *objgraph.Graph) error {
		recs, err := op.EncodeAll(g.History())
		if err != nil {
			return err
		}
		if err = s.outq.Drain(context.Background(), recs); err != nil {
			return err
		}
		s.sub = g.OnChange(s.onChange)
		return nil
	})
	if err != nil {
		_ = s.outq.Close()
		return nil, err
	}
	s.log.Info("sync: started")
	return s, nil
}

// onChange runs under the host lock.
func (s *Syncer) onChange(o op.Op) {
	if s.from.Contains(opKey(o)) {
		return
	}
	rec, err := op.Encode(o)
	if err != nil {
		s.log.Error("sync: encode failed", "op", o.String(), "err", err)
		return
	}
	if err = s.outq.Drain(context.Background(), protocol.Records{rec}); err != nil {
		s.log.Error("sync: outgoing op dropped", "op", o.String(), "err", err)
	}
}

func (s *Syncer) Feed(ctx context.Context) (protocol.Records, error) {
	return s.outq.Feed(ctx)
}

func (s *Syncer) Drain(ctx context.Context, recs protocol.Records) error {
	for _, rec := range recs {
		o, err := op.Decode(rec)
		if err != nil {
			return err
		}
		s.from.Add(opKey(o), struct{}{})
		_, err = s.host.Process(o)
		switch {
		case err == nil, errors.Is(err, objgraph.ErrBuffered), errors.Is(err, objgraph.ErrObjectDeleted):
		case errors.Is(err, objgraph.ErrClosed):
			return err
		default:
			s.log.WarnCtx(ctx, "sync: op rejected", "op", o.String(), "err", err)
		}
	}
	return nil
}

func (s *Syncer) Close() error {
	err := s.host.Do(func(g *objgraph.Graph) error {
		return g.OffChange(s.sub)
	})
	s.log.Info("sync: closed")
	return errors.Join(err, s.outq.Close())
}
