package protocol

// Records is a batch of TLV records. Batches travel as a unit through the
// feed/drain plumbing and turn into net.Buffers for vectored writes.
type Records [][]byte

func (recs Records) TotalLen() (total int64) {
	for _, r := range recs {
		total += int64(len(r))
	}
	return
}
