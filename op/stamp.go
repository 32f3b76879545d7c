package op

import (
	"cmp"
	"fmt"
)

// Stamp orders writes. The order is total: timestamp first, then host,
// then the host's sequence number.
type Stamp struct {
	Timestamp int64
	Host      string
	Seq       uint64
}

func (s Stamp) Compare(b Stamp) int {
	if c := cmp.Compare(s.Timestamp, b.Timestamp); c != 0 {
		return c
	}
	if c := cmp.Compare(s.Host, b.Host); c != 0 {
		return c
	}
	return cmp.Compare(s.Seq, b.Seq)
}

// Newer is the last-writer-wins test: does a write stamped s replace one
// stamped b? An identical stamp is the same write, hence not newer.
func (s Stamp) Newer(b Stamp) bool {
	return s.Compare(b) > 0
}

func (s Stamp) IsZero() bool {
	return s == Stamp{}
}

func (s Stamp) String() string {
	return fmt.Sprintf("%d-%s-%x", s.Timestamp, s.Host, s.Seq)
}
