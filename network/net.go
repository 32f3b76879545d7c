// Package network carries replica sync traffic over long-lived TCP or TLS
// connections. It knows nothing about ops: every connection gets a
// protocol.FeedDrainCloser from the install callback, records it feeds are
// written to the socket and complete TLV records read off the socket are
// drained into it.
//
// Outgoing connections are kept alive: when one drops, it is redialed with
// exponential backoff until the Net is closed or the address is
// disconnected.
package network

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/drpcorg/objgraph/protocol"
	"github.com/drpcorg/objgraph/utils"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
)

type ConnType = uint

var (
	ErrAddressInvalid    = errors.New("the address invalid")
	ErrAddressDuplicated = errors.New("the address already used")
	ErrAddressUnknown    = errors.New("address unknown")
)

const (
	TCP ConnType = iota + 1
	TLS
)

const (
	TYPICAL_MTU = 1500

	MAX_RETRY_PERIOD = time.Minute
	MIN_RETRY_PERIOD = time.Second / 2

	DefaultReadAccumTimeLimit = 50 * time.Millisecond
	DefaultBufferMaxSize      = 1 << 24
	DefaultBufferMinToProcess = 1 << 12
)

// InstallCallback makes the protocol handler for a new connection.
type InstallCallback func(name string) protocol.FeedDrainCloser

// DestroyCallback runs after a connection is gone and its handler closed.
type DestroyCallback func(name string)

type Net struct {
	wg        sync.WaitGroup
	log       utils.Logger
	onInstall InstallCallback
	onDestroy DestroyCallback

	// a nil value reserves the name while dialing
	conns   *xsync.MapOf[string, *Peer]
	listens *xsync.MapOf[string, net.Listener]
	ctx     context.Context
	cancel  context.CancelFunc

	tlsConfig          *tls.Config
	readAccumTimeLimit time.Duration
	writeTimeout       time.Duration
	bufferMaxSize      int
	bufferMinToProcess int
}

type NetOpt interface {
	Apply(*Net)
}

type NetWriteTimeoutOpt struct {
	Timeout time.Duration
}

func (opt *NetWriteTimeoutOpt) Apply(n *Net) {
	n.writeTimeout = opt.Timeout
}

type NetTlsConfigOpt struct {
	Config *tls.Config
}

func (opt *NetTlsConfigOpt) Apply(n *Net) {
	n.tlsConfig = opt.Config
}

// NetReadBatchOpt tunes read batching: incoming bytes are handed to the
// protocol once BufferMinToProcess bytes piled up or ReadAccumTimeLimit
// passed, whichever comes first.
type NetReadBatchOpt struct {
	ReadAccumTimeLimit time.Duration
	BufferMaxSize      int
	BufferMinToProcess int
}

func (opt *NetReadBatchOpt) Apply(n *Net) {
	n.readAccumTimeLimit = opt.ReadAccumTimeLimit
	n.bufferMaxSize = opt.BufferMaxSize
	n.bufferMinToProcess = opt.BufferMinToProcess
}

func NewNet(log utils.Logger, install InstallCallback, destroy DestroyCallback, opts ...NetOpt) *Net {
	if log == nil {
		log = utils.NewDiscardLogger()
	}
	if destroy == nil {
		destroy = func(string) {}
	}
	ctx, cancel := context.WithCancel(context.Background())
	n := &Net{
		log:                log,
		onInstall:          install,
		onDestroy:          destroy,
		conns:              xsync.NewMapOf[string, *Peer](),
		listens:            xsync.NewMapOf[string, net.Listener](),
		ctx:                ctx,
		cancel:             cancel,
		readAccumTimeLimit: DefaultReadAccumTimeLimit,
		bufferMaxSize:      DefaultBufferMaxSize,
		bufferMinToProcess: DefaultBufferMinToProcess,
	}
	for _, o := range opts {
		o.Apply(n)
	}
	return n
}

type NetStats struct {
	ReadBuffers  map[string]int32
	WriteBatches map[string]float64
}

func (n *Net) GetStats() NetStats {
	stats := NetStats{
		ReadBuffers:  make(map[string]int32),
		WriteBatches: make(map[string]float64),
	}
	n.conns.Range(func(name string, peer *Peer) bool {
		if peer != nil {
			stats.ReadBuffers[name] = peer.IncomingBufferSize()
			stats.WriteBatches[name] = peer.writeBatchSize.Val()
		}
		return true
	})
	return stats
}

// Peers lists the names of live connections.
func (n *Net) Peers() (names []string) {
	n.conns.Range(func(name string, peer *Peer) bool {
		if peer != nil {
			names = append(names, name)
		}
		return true
	})
	return
}

func (n *Net) Close() error {
	n.cancel()

	n.listens.Range(func(_ string, l net.Listener) bool {
		if l != nil {
			_ = l.Close()
		}
		return true
	})
	n.listens.Clear()

	n.conns.Range(func(_ string, p *Peer) bool {
		if p != nil {
			p.Close()
		}
		return true
	})
	n.conns.Clear()

	n.wg.Wait()
	return nil
}

// Connect keeps a connection to addr open until Disconnect or Close.
func (n *Net) Connect(addr string) error {
	if _, _, err := parseAddr(addr); err != nil {
		return err
	}
	if _, ok := n.conns.LoadOrStore(addr, nil); ok {
		return ErrAddressDuplicated
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.keepConnecting(addr)
	}()
	return nil
}

func (n *Net) Disconnect(addr string) error {
	peer, ok := n.conns.LoadAndDelete(addr)
	if !ok {
		return ErrAddressUnknown
	}
	if peer != nil {
		peer.Close()
	}
	return nil
}

func (n *Net) Listen(addr string) error {
	if _, ok := n.listens.LoadOrStore(addr, nil); ok {
		return ErrAddressDuplicated
	}
	listener, err := n.createListener(addr)
	if err != nil {
		n.listens.Delete(addr)
		return err
	}
	n.listens.Store(addr, listener)
	n.log.Info("net: listening", "addr", addr, "local", listener.Addr().String())

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.keepListening(addr, listener)
	}()
	return nil
}

// ListenAddr is the bound address of a listener; useful with port 0.
func (n *Net) ListenAddr(addr string) (net.Addr, error) {
	l, ok := n.listens.Load(addr)
	if !ok || l == nil {
		return nil, ErrAddressUnknown
	}
	return l.Addr(), nil
}

func (n *Net) Unlisten(addr string) error {
	listener, ok := n.listens.LoadAndDelete(addr)
	if !ok || listener == nil {
		return ErrAddressUnknown
	}
	return listener.Close()
}

func (n *Net) keepConnecting(addr string) {
	ctx := utils.WithDefaultArgs(n.ctx, "name", addr)
	backoff := MIN_RETRY_PERIOD
	for n.ctx.Err() == nil {
		// Disconnect drops the reservation
		if _, ok := n.conns.Load(addr); !ok {
			return
		}
		conn, err := n.createConn(addr)
		if err != nil {
			n.log.WarnCtx(ctx, "net: couldn't connect", "err", err, "retry", backoff)
			select {
			case <-time.After(backoff):
			case <-n.ctx.Done():
			}
			backoff = min(MAX_RETRY_PERIOD, backoff*2)
			continue
		}
		n.log.InfoCtx(ctx, "net: connected")
		backoff = MIN_RETRY_PERIOD
		n.keepPeer(ctx, addr, conn, true)
	}
}

func (n *Net) keepListening(addr string, listener net.Listener) {
	for n.ctx.Err() == nil {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				break
			}
			// reconnects are the client's problem
			n.log.Error("net: couldn't accept", "addr", addr, "err", err)
			continue
		}
		remote := conn.RemoteAddr().String()
		name := fmt.Sprintf("listen:%s:%s", uuid.Must(uuid.NewV7()).String(), remote)
		n.log.Info("net: accepted", "addr", addr, "remote", remote)
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			n.keepPeer(utils.WithDefaultArgs(n.ctx, "name", name), name, conn, false)
		}()
	}
	n.listens.Delete(addr)
	n.log.Info("net: listener closed", "addr", addr)
}

func (n *Net) keepPeer(ctx context.Context, name string, conn net.Conn, dialed bool) {
	inout := n.onInstall(name)
	if inout == nil {
		n.log.WarnCtx(ctx, "net: no protocol handler, connection dropped")
		_ = conn.Close()
		if !dialed {
			return
		}
		select {
		case <-time.After(MIN_RETRY_PERIOD):
		case <-n.ctx.Done():
		}
		return
	}
	peer := &Peer{
		conn:               conn,
		inout:              inout,
		readAccumTimeLimit: n.readAccumTimeLimit,
		bufferMaxSize:      n.bufferMaxSize,
		bufferMinToProcess: n.bufferMinToProcess,
		writeTimeout:       n.writeTimeout,
	}
	if !n.attach(name, peer, dialed) {
		n.log.InfoCtx(ctx, "net: disconnected while dialing")
		peer.Close()
		n.onDestroy(name)
		return
	}

	rerr, werr, cerr := peer.Keep(n.ctx)
	if rerr != nil {
		n.log.ErrorCtx(ctx, "net: couldn't read from peer", "err", rerr)
	}
	if werr != nil {
		n.log.ErrorCtx(ctx, "net: couldn't write to peer", "err", werr)
	}
	if cerr != nil {
		n.log.ErrorCtx(ctx, "net: couldn't close peer", "err", cerr)
	}

	// a dialed address stays reserved for the redial
	n.conns.Compute(name, func(old *Peer, loaded bool) (*Peer, bool) {
		if loaded && old != peer {
			return old, false
		}
		return nil, !dialed || !loaded
	})
	peer.Close()
	n.onDestroy(name)
	n.log.InfoCtx(ctx, "net: peer gone")
}

// attach registers the peer. A dialed peer only takes the place of its
// reservation; if Disconnect dropped that meanwhile, nothing is stored.
func (n *Net) attach(name string, peer *Peer, dialed bool) (ok bool) {
	n.conns.Compute(name, func(old *Peer, loaded bool) (*Peer, bool) {
		if dialed && (!loaded || old != nil) {
			return old, !loaded
		}
		ok = true
		return peer, false
	})
	return
}

func (n *Net) createListener(addr string) (net.Listener, error) {
	connType, address, err := parseAddr(addr)
	if err != nil {
		return nil, err
	}
	var config net.ListenConfig
	listener, err := config.Listen(n.ctx, "tcp", address)
	if err != nil {
		return nil, err
	}
	if connType == TLS {
		listener = tls.NewListener(listener, n.tlsConfig)
	}
	return listener, nil
}

func (n *Net) createConn(addr string) (net.Conn, error) {
	connType, address, err := parseAddr(addr)
	if err != nil {
		return nil, err
	}
	if connType == TLS {
		d := tls.Dialer{Config: n.tlsConfig}
		return d.DialContext(n.ctx, "tcp", address)
	}
	d := net.Dialer{Timeout: time.Minute}
	return d.DialContext(n.ctx, "tcp", address)
}

// parseAddr accepts "tcp://host:port", "tls://host:port" and a bare
// "host:port", which means TCP.
func parseAddr(addr string) (ConnType, string, error) {
	if !strings.Contains(addr, "://") {
		return TCP, addr, nil
	}
	u, err := url.Parse(addr)
	if err != nil {
		return 0, "", errors.Join(ErrAddressInvalid, err)
	}
	switch u.Scheme {
	case "tcp", "tcp4", "tcp6":
		return TCP, u.Host, nil
	case "tls":
		return TLS, u.Host, nil
	default:
		return 0, "", ErrAddressInvalid
	}
}
