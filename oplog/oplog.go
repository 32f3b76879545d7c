// Package oplog keeps a replica's history outside of memory so that it
// survives restarts. Every record is an op in its TLV form followed by an
// xxhash of those bytes; a record whose hash does not match is reported as
// corrupt instead of being replayed.
package oplog

import (
	"encoding/binary"

	"github.com/cespare/xxhash"
	"github.com/drpcorg/objgraph/op"
	"github.com/pkg/errors"
)

var ErrCorrupt = errors.New("oplog: record checksum mismatch")

const sumLen = 8

func frame(o op.Op) ([]byte, error) {
	rec, err := op.Encode(o)
	if err != nil {
		return nil, err
	}
	return binary.BigEndian.AppendUint64(rec, xxhash.Sum64(rec)), nil
}

func unframe(data []byte) (op.Op, error) {
	if len(data) < sumLen {
		return op.Op{}, ErrCorrupt
	}
	rec, sum := data[:len(data)-sumLen], data[len(data)-sumLen:]
	if xxhash.Sum64(rec) != binary.BigEndian.Uint64(sum) {
		return op.Op{}, ErrCorrupt
	}
	o, err := op.Decode(rec)
	if err != nil {
		return op.Op{}, errors.Wrap(ErrCorrupt, err.Error())
	}
	return o, nil
}
