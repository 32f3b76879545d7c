package utils

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrClosed = errors.New("[objgraph] record queue is closed")
var ErrOverflow = errors.New("[objgraph] record queue is overflowed")

// RecordQueue is a bounded in-memory FIFO of byte records with the
// Feed/Drain shape of the network layer. Drain never blocks: a full queue
// is an error, the consumer is too slow to keep up with live traffic.
type RecordQueue[T ~[][]byte] struct {
	mu        sync.Mutex
	recs      T
	size      int
	limit     int
	timelimit time.Duration
	closed    bool
	wake      chan struct{}
}

// NewRecordQueue holds up to limit bytes. Feed waits at most timelimit for
// something to arrive.
func NewRecordQueue[T ~[][]byte](limit int, timelimit time.Duration) *RecordQueue[T] {
	return &RecordQueue[T]{
		limit:     limit,
		timelimit: timelimit,
		wake:      make(chan struct{}, 1),
	}
}

func (q *RecordQueue[T]) Drain(ctx context.Context, recs T) error {
	size := 0
	for _, rec := range recs {
		size += len(rec)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	if q.size+size > q.limit {
		return ErrOverflow
	}
	q.recs = append(q.recs, recs...)
	q.size += size
	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}

// Feed returns everything queued so far, waiting for the first record up
// to the time limit. An empty batch with a nil error means "nothing yet".
func (q *RecordQueue[T]) Feed(ctx context.Context) (T, error) {
	timer := time.NewTimer(q.timelimit)
	defer timer.Stop()
	for {
		q.mu.Lock()
		if len(q.recs) > 0 {
			recs := q.recs
			q.recs, q.size = nil, 0
			q.mu.Unlock()
			return recs, nil
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return nil, ErrClosed
		}
		select {
		case <-q.wake:
		case <-ctx.Done():
			return nil, nil
		case <-timer.C:
			return nil, nil
		}
	}
}

// Size is the number of queued bytes.
func (q *RecordQueue[T]) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Close drops what is queued; pending and later calls get ErrClosed.
func (q *RecordQueue[T]) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.recs, q.size = nil, 0
	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}
