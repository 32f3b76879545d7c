package op

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/drpcorg/objgraph/protocol"
)

// Field letters of an encoded op. The envelope is an 'O' record.
const (
	litOp        = 'O'
	litKind      = 'K'
	litHost      = 'H'
	litTimestamp = 'T'
	litSeq       = 'Q'
	litUUID      = 'U'
	litID        = 'I'
	litObject    = 'B'
	litArray     = 'A'
	litName      = 'N'
	litValue     = 'V'
	litProps     = 'P'
	litEntry     = 'E'
	litPred      = 'R'
)

var ErrBadOpRecord = errors.New("bad op record")

func appendString(into []byte, lit byte, s string) []byte {
	if s == "" {
		return into
	}
	return protocol.Append(into, lit, []byte(s))
}

// Encode renders the op as one TLV record. Value and Props travel as JSON.
func Encode(o Op) ([]byte, error) {
	var body []byte
	body = appendString(body, litKind, string(o.Kind))
	body = appendString(body, litHost, o.Host)
	body = protocol.Append(body, litTimestamp, binary.AppendVarint(nil, o.Timestamp))
	body = protocol.Append(body, litSeq, binary.AppendUvarint(nil, o.Seq))
	body = appendString(body, litUUID, o.UUID)
	body = appendString(body, litID, string(o.ID))
	body = appendString(body, litObject, string(o.Object))
	body = appendString(body, litArray, string(o.Array))
	body = appendString(body, litName, o.Name)
	if o.Value != nil {
		raw, err := json.Marshal(o.Value)
		if err != nil {
			return nil, fmt.Errorf("encode %s value: %w", o.Kind, err)
		}
		body = protocol.Append(body, litValue, raw)
	}
	if o.Props != nil {
		raw, err := json.Marshal(o.Props)
		if err != nil {
			return nil, fmt.Errorf("encode %s props: %w", o.Kind, err)
		}
		body = protocol.Append(body, litProps, raw)
	}
	body = appendString(body, litEntry, string(o.EntryID))
	body = appendString(body, litPred, string(o.PredecessorID))
	return protocol.Record(litOp, body), nil
}

// Decode parses one op record off untrusted bytes. Unknown field letters
// are skipped.
func Decode(rec []byte) (o Op, err error) {
	body, _, err := protocol.TakeWary(litOp, rec)
	if err != nil {
		return o, errors.Join(ErrBadOpRecord, err)
	}
	for len(body) > 0 {
		var lit byte
		var field []byte
		lit, field, body, err = protocol.TakeAnyWary(body)
		if err != nil {
			return o, errors.Join(ErrBadOpRecord, err)
		}
		switch lit {
		case litKind:
			o.Kind = Kind(field)
		case litHost:
			o.Host = string(field)
		case litTimestamp:
			ts, n := binary.Varint(field)
			if n <= 0 {
				return o, fmt.Errorf("%w: timestamp", ErrBadOpRecord)
			}
			o.Timestamp = ts
		case litSeq:
			seq, n := binary.Uvarint(field)
			if n <= 0 {
				return o, fmt.Errorf("%w: seq", ErrBadOpRecord)
			}
			o.Seq = seq
		case litUUID:
			o.UUID = string(field)
		case litID:
			o.ID = ID(field)
		case litObject:
			o.Object = ID(field)
		case litArray:
			o.Array = ID(field)
		case litName:
			o.Name = string(field)
		case litValue:
			if o.Value, err = DecodeValue(field); err != nil {
				return o, errors.Join(ErrBadOpRecord, err)
			}
		case litProps:
			v, err := DecodeValue(field)
			if err != nil {
				return o, errors.Join(ErrBadOpRecord, err)
			}
			props, ok := v.(map[string]any)
			if !ok {
				return o, fmt.Errorf("%w: props is not a map", ErrBadOpRecord)
			}
			o.Props = props
		case litEntry:
			o.EntryID = ID(field)
		case litPred:
			o.PredecessorID = ID(field)
		}
	}
	return o, nil
}

// EncodeAll encodes a batch, e.g. a history, for the network.
func EncodeAll(ops []Op) (recs protocol.Records, err error) {
	recs = make(protocol.Records, 0, len(ops))
	for _, o := range ops {
		rec, err := Encode(o)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}
