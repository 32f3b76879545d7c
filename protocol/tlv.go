/*
Package protocol frames operation records as TLV (type-length-value) bytes.

A record header comes in three sizes picked by the body length:

	tiny   [ '0'+len ]                 body 0..9 bytes, lowercase type only
	short  [ lowercase type, len ]     body up to 255 bytes
	long   [ uppercase type, len LE32 ] body up to 2GB

Types are letters A..Z. A tiny header carries no type; readers accept it in
place of any expected type. Readers come in two flavours: Take/TakeAny for
bytes this process produced and TakeWary/TakeAnyWary for bytes that came off
the wire.
*/
package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const CaseBit uint8 = 'a' - 'A'

var (
	ErrIncomplete = errors.New("incomplete data")
	ErrBadRecord  = errors.New("bad TLV record format")
)

// ProbeHeader reads a header: lit is 'A'..'Z', '0' for tiny, '-' for garbage
// and 0 when the header itself is not complete yet.
func ProbeHeader(data []byte) (lit byte, hdrlen, bodylen int) {
	if len(data) == 0 {
		return 0, 0, 0
	}
	dlit := data[0]
	switch {
	case dlit >= '0' && dlit <= '9':
		return '0', 1, int(dlit - '0')
	case dlit >= 'a' && dlit <= 'z':
		if len(data) < 2 {
			return 0, 0, 0
		}
		return dlit - CaseBit, 2, int(data[1])
	case dlit >= 'A' && dlit <= 'Z':
		if len(data) < 5 {
			return 0, 0, 0
		}
		bl := binary.LittleEndian.Uint32(data[1:5])
		if bl > 0x7fffffff {
			return '-', 0, 0
		}
		return dlit, 5, int(bl)
	default:
		return '-', 0, 0
	}
}

// Split consumes every complete record in data. A trailing partial record
// stays in the buffer for the next read.
func Split(data *bytes.Buffer) (recs Records, err error) {
	for data.Len() > 0 {
		lit, hlen, blen := ProbeHeader(data.Bytes())
		if lit == '-' {
			if len(recs) == 0 {
				err = ErrBadRecord
			}
			return
		}
		if lit == 0 || hlen+blen > data.Len() {
			return
		}
		record := make([]byte, hlen+blen)
		if _, err = data.Read(record); err != nil {
			return
		}
		recs = append(recs, record)
	}
	return
}

// AppendHeader picks the smallest header for bodylen. Lowercase lit allows
// the tiny form.
func AppendHeader(into []byte, lit byte, bodylen int) []byte {
	biglit := lit &^ CaseBit
	if biglit < 'A' || biglit > 'Z' {
		panic("TLV record type is A..Z")
	}
	switch {
	case bodylen < 10 && (lit&CaseBit) != 0:
		return append(into, byte('0'+bodylen))
	case bodylen > 0xff:
		if bodylen > 0x7fffffff {
			panic("oversized TLV record")
		}
		into = append(into, biglit)
		return binary.LittleEndian.AppendUint32(into, uint32(bodylen))
	default:
		return append(into, biglit|CaseBit, byte(bodylen))
	}
}

func TotalLen(inputs [][]byte) (sum int) {
	for _, input := range inputs {
		sum += len(input)
	}
	return
}

// Append writes a whole record (header and body parts) to into.
func Append(into []byte, lit byte, body ...[]byte) []byte {
	into = AppendHeader(into, lit, TotalLen(body))
	for _, b := range body {
		into = append(into, b...)
	}
	return into
}

// Record is Append into a fresh buffer.
func Record(lit byte, body ...[]byte) []byte {
	return Append(make([]byte, 0, TotalLen(body)+5), lit, body...)
}

// TinyRecord allows the one-byte header for short bodies.
func TinyRecord(lit byte, body []byte) []byte {
	return Record(lit|CaseBit, body)
}

// Concat glues records into one buffer.
func Concat(msg ...[]byte) []byte {
	ret := make([]byte, 0, TotalLen(msg))
	for _, b := range msg {
		ret = append(ret, b...)
	}
	return ret
}

// Take cuts a record of type lit off the front of trusted data.
// Incomplete data gives (nil, data); a type mismatch gives (nil, nil).
func Take(lit byte, data []byte) (body, rest []byte) {
	flit, hdrlen, bodylen := ProbeHeader(data)
	if flit == 0 || hdrlen+bodylen > len(data) {
		return nil, data
	}
	if flit != lit && flit != '0' {
		return nil, nil
	}
	return data[hdrlen : hdrlen+bodylen], data[hdrlen+bodylen:]
}

// TakeAny cuts whatever record comes first.
func TakeAny(data []byte) (lit byte, body, rest []byte) {
	if len(data) == 0 {
		return 0, nil, nil
	}
	lit = data[0] &^ CaseBit
	body, rest = Take(lit, data)
	return
}

// TakeWary is Take for untrusted bytes.
func TakeWary(lit byte, data []byte) (body, rest []byte, err error) {
	flit, hdrlen, bodylen := ProbeHeader(data)
	if flit == '-' {
		return nil, nil, ErrBadRecord
	}
	if flit == 0 || hdrlen+bodylen > len(data) {
		return nil, data, ErrIncomplete
	}
	if flit != lit && flit != '0' {
		return nil, nil, ErrBadRecord
	}
	return data[hdrlen : hdrlen+bodylen], data[hdrlen+bodylen:], nil
}

// TakeAnyWary is TakeAny for untrusted bytes. Tiny records report lit '0'.
func TakeAnyWary(data []byte) (lit byte, body, rest []byte, err error) {
	flit, hdrlen, bodylen := ProbeHeader(data)
	switch {
	case flit == '-':
		return 0, nil, nil, ErrBadRecord
	case flit == 0 || hdrlen+bodylen > len(data):
		return 0, nil, data, ErrIncomplete
	}
	return flit, data[hdrlen : hdrlen+bodylen], data[hdrlen+bodylen:], nil
}

// Lit is the canonical type of a record: 'A'..'Z', '0' or '-'.
func Lit(rec []byte) byte {
	if len(rec) == 0 {
		return '-'
	}
	lit, _, _ := ProbeHeader(rec)
	if lit == 0 {
		return '-'
	}
	return lit
}

func (recs Records) String() string {
	return fmt.Sprintf("%d records, %d bytes", len(recs), recs.TotalLen())
}
