package oplog

import (
	"encoding/binary"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/drpcorg/objgraph/op"
	"github.com/drpcorg/objgraph/utils"
	"github.com/pkg/errors"
)

const historyPrefix = 'H'

func historyKey(n uint64) []byte {
	return binary.BigEndian.AppendUint64([]byte{historyPrefix}, n)
}

var WriteOptions = pebble.WriteOptions{Sync: false}

// Pebble keeps the history in a pebble database, one key per op in
// application order.
type Pebble struct {
	db  *pebble.DB
	dir string
	log utils.Logger

	mu   sync.Mutex
	next uint64
}

// OpenPebble opens or creates the journal in dir. opts may be nil.
func OpenPebble(dir string, opts *pebble.Options, log utils.Logger) (*Pebble, error) {
	if opts == nil {
		opts = &pebble.Options{}
	}
	if log == nil {
		log = utils.NewDiscardLogger()
	}
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "oplog: open %s", dir)
	}
	p := &Pebble{db: db, dir: dir, log: log.With("journal", dir)}
	if p.next, err = p.lastIndex(); err != nil {
		_ = db.Close()
		return nil, err
	}
	p.log.Info("journal open", "ops", p.next)
	return p, nil
}

func (p *Pebble) lastIndex() (uint64, error) {
	it, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte{historyPrefix},
		UpperBound: []byte{historyPrefix + 1},
	})
	if err != nil {
		return 0, errors.Wrap(err, "oplog: iterate")
	}
	defer it.Close()
	if !it.Last() {
		return 0, nil
	}
	key := it.Key()
	if len(key) != 9 {
		return 0, errors.Wrapf(ErrCorrupt, "oplog: bad key %x", key)
	}
	return binary.BigEndian.Uint64(key[1:]) + 1, nil
}

func (p *Pebble) Append(o op.Op) error {
	rec, err := frame(o)
	if err != nil {
		return errors.Wrap(err, "oplog: encode")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err = p.db.Set(historyKey(p.next), rec, &WriteOptions); err != nil {
		return errors.Wrap(err, "oplog: write")
	}
	p.next++
	return nil
}

func (p *Pebble) Replay(f func(o op.Op) error) error {
	it, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte{historyPrefix},
		UpperBound: []byte{historyPrefix + 1},
	})
	if err != nil {
		return errors.Wrap(err, "oplog: iterate")
	}
	defer it.Close()
	for valid := it.First(); valid; valid = it.Next() {
		o, err := unframe(it.Value())
		if err != nil {
			return errors.Wrapf(err, "oplog: key %x", it.Key())
		}
		if err = f(o); err != nil {
			return err
		}
	}
	return it.Error()
}

func (p *Pebble) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return int(p.next)
}

// Sync flushes everything appended so far to stable storage.
func (p *Pebble) Sync() error {
	return p.db.Flush()
}

// DB exposes the database, e.g. for NewPebbleCollector.
func (p *Pebble) DB() *pebble.DB {
	return p.db
}

func (p *Pebble) Close() error {
	if err := p.db.Close(); err != nil {
		return errors.Wrap(err, "oplog: close")
	}
	return nil
}
