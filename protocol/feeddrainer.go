package protocol

import (
	"context"
	"io"
)

// Feeder produces record batches. The EOF convention follows io.Reader:
// either `recs, EOF` or `recs, nil` followed by `nil, EOF`.
type Feeder interface {
	Feed(ctx context.Context) (recs Records, err error)
}

// Drainer consumes record batches.
type Drainer interface {
	Drain(ctx context.Context, recs Records) error
}

type FeedCloser interface {
	Feeder
	io.Closer
}

type DrainCloser interface {
	Drainer
	io.Closer
}

type FeedDrainCloser interface {
	Feeder
	Drainer
	io.Closer
}

// Relay moves one batch from feeder to drainer.
func Relay(ctx context.Context, feeder Feeder, drainer Drainer) error {
	recs, err := feeder.Feed(ctx)
	if len(recs) > 0 {
		if derr := drainer.Drain(ctx, recs); derr != nil && err == nil {
			err = derr
		}
	}
	return err
}

// Pump relays until either side fails, the feeder is exhausted or ctx is
// done.
func Pump(ctx context.Context, feeder Feeder, drainer Drainer) (err error) {
	for err == nil && ctx.Err() == nil {
		err = Relay(ctx, feeder, drainer)
	}
	return
}
