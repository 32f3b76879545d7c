package op

import (
	"fmt"
	"time"
)

// Clock hands out timestamps for local ops. See reports timestamps of ops
// received from elsewhere so the next local stamp lands after them.
type Clock interface {
	Now() int64
	See(ts int64)
}

// HybridClock follows wall time in milliseconds but never goes backwards
// and never repeats, even if the wall clock does.
type HybridClock struct {
	Wall func() time.Time
	last int64
}

func (hc *HybridClock) Now() int64 {
	wall := time.Now
	if hc.Wall != nil {
		wall = hc.Wall
	}
	ms := wall().UnixMilli()
	if ms <= hc.last {
		ms = hc.last + 1
	}
	hc.last = ms
	return ms
}

func (hc *HybridClock) See(ts int64) {
	if ts > hc.last {
		hc.last = ts
	}
}

// LogicalClock is a Lamport counter. Tests use it to get predictable stamps.
type LogicalClock struct {
	last int64
}

func (lc *LogicalClock) Now() int64 {
	lc.last++
	return lc.last
}

func (lc *LogicalClock) See(ts int64) {
	if ts > lc.last {
		lc.last = ts
	}
}

// Sequencer allocates the per-host sequence numbers and the ids derived
// from them. One per replica, never shared.
type Sequencer struct {
	Host string
	last uint64
}

func (s *Sequencer) Next() uint64 {
	s.last++
	return s.last
}

func (s *Sequencer) Last() uint64 {
	return s.last
}

// See keeps the sequencer ahead of ops this host issued in an earlier life
// (e.g. restored from a journal).
func (s *Sequencer) See(host string, seq uint64) {
	if host == s.Host && seq > s.last {
		s.last = seq
	}
}

func MakeID(host string, seq uint64) ID {
	return ID(fmt.Sprintf("%s-%x", host, seq))
}
