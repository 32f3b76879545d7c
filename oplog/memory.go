package oplog

import (
	"sync"

	"github.com/drpcorg/objgraph/op"
	"github.com/pkg/errors"
)

// Memory holds encoded records in a slice. Good for tests and for
// replicas that only need Restore within one process.
type Memory struct {
	mu   sync.Mutex
	recs [][]byte
}

func (m *Memory) Append(o op.Op) error {
	rec, err := frame(o)
	if err != nil {
		return errors.Wrap(err, "oplog: encode")
	}
	m.mu.Lock()
	m.recs = append(m.recs, rec)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Replay(f func(o op.Op) error) error {
	m.mu.Lock()
	recs := m.recs[:len(m.recs):len(m.recs)]
	m.mu.Unlock()
	for i, rec := range recs {
		o, err := unframe(rec)
		if err != nil {
			return errors.Wrapf(err, "oplog: record %d", i)
		}
		if err = f(o); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.recs)
}

func (m *Memory) Close() error {
	return nil
}
