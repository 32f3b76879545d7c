package network

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/drpcorg/objgraph/protocol"
	"github.com/drpcorg/objgraph/utils"
)

var ErrRecordTooBig = errors.New("incoming record does not fit the read buffer")

// Peer runs one connection: a read loop draining complete TLV records into
// the protocol handler and a write loop feeding the handler's records to
// the socket with vectored writes.
type Peer struct {
	closed    atomic.Bool
	wg        sync.WaitGroup
	closeOnce sync.Once

	conn               net.Conn
	inout              protocol.FeedDrainCloser
	incoming           atomic.Int32
	writeBatchSize     utils.AvgVal
	readAccumTimeLimit time.Duration
	bufferMaxSize      int
	bufferMinToProcess int
	writeTimeout       time.Duration
}

// IncomingBufferSize is the number of read bytes not yet drained.
func (p *Peer) IncomingBufferSize() int32 {
	return p.incoming.Load()
}

func (p *Peer) keepRead(ctx context.Context) error {
	var buf bytes.Buffer
	var since time.Time
	for !p.closed.Load() && ctx.Err() == nil {
		if buf.Available() < TYPICAL_MTU {
			buf.Grow(TYPICAL_MTU)
		}
		idle := buf.AvailableBuffer()[:buf.Available()]
		_ = p.conn.SetReadDeadline(time.Now().Add(p.readAccumTimeLimit))
		n, err := p.conn.Read(idle)
		buf.Write(idle[:n])
		switch {
		case err == nil, errors.Is(err, os.ErrDeadlineExceeded):
		case errors.Is(err, io.EOF):
			return nil
		default:
			return err
		}
		if n > 0 && since.IsZero() {
			since = time.Now()
		}
		p.incoming.Store(int32(buf.Len()))
		if buf.Len() == 0 ||
			(buf.Len() < p.bufferMinToProcess && time.Since(since) < p.readAccumTimeLimit) {
			continue
		}

		recs, err := protocol.Split(&buf)
		if err != nil {
			return err
		}
		if buf.Len() >= p.bufferMaxSize {
			return ErrRecordTooBig
		}
		since = time.Time{}
		p.incoming.Store(int32(buf.Len()))
		if len(recs) > 0 {
			if err = p.inout.Drain(ctx, recs); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Peer) keepWrite(ctx context.Context) error {
	for !p.closed.Load() && ctx.Err() == nil {
		recs, err := p.inout.Feed(ctx)
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			continue
		}
		p.writeBatchSize.Add(float64(recs.TotalLen()))

		b := net.Buffers(recs)
		if p.writeTimeout != 0 {
			_ = p.conn.SetWriteDeadline(time.Now().Add(p.writeTimeout))
		}
		for len(b) > 0 {
			if _, err = b.WriteTo(p.conn); err != nil {
				return err
			}
		}
	}
	return nil
}

// Keep runs both loops until either ends. The socket is closed once the
// writer is done, which also unblocks the reader.
func (p *Peer) Keep(ctx context.Context) (rerr, werr, cerr error) {
	p.wg.Add(1)
	defer p.wg.Done()
	if p.closed.Load() {
		return
	}

	readErrCh, writeErrCh := make(chan error, 1), make(chan error, 1)
	go func() { readErrCh <- p.keepRead(ctx) }()
	go func() { writeErrCh <- p.keepWrite(ctx) }()

	for i := 0; i < 2; i++ {
		select {
		case rerr = <-readErrCh:
			if errors.Is(rerr, net.ErrClosed) {
				rerr = nil
			}
		case werr = <-writeErrCh:
			if err := p.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
				cerr = err
			}
		}
		p.closed.Store(true)
	}
	return
}

func (p *Peer) Close() {
	p.closed.Store(true)
	p.wg.Wait()
	p.closeOnce.Do(func() {
		_ = p.conn.Close()
		_ = p.inout.Close()
	})
}
