package protocol

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTLV_HeaderForms(t *testing.T) {
	tiny := TinyRecord('X', []byte("abc"))
	assert.Equal(t, []byte{'3', 'a', 'b', 'c'}, tiny)

	short := Record('N', []byte("name"))
	assert.Equal(t, []byte{'n', 4, 'n', 'a', 'm', 'e'}, short)

	big := Record('V', make([]byte, 300))
	lit, hlen, blen := ProbeHeader(big)
	assert.Equal(t, byte('V'), lit)
	assert.Equal(t, 5, hlen)
	assert.Equal(t, 300, blen)
}

func TestTLV_TakeNested(t *testing.T) {
	rec := Record('O',
		Record('H', []byte("alice")),
		Record('N', []byte("x")),
	)
	body, rest := Take('O', rec)
	assert.Empty(t, rest)
	h, body := Take('H', body)
	assert.Equal(t, "alice", string(h))
	lit, n, body := TakeAny(body)
	assert.Equal(t, byte('N'), lit)
	assert.Equal(t, "x", string(n))
	assert.Empty(t, body)
}

func TestTLV_Wary(t *testing.T) {
	rec := Record('O', []byte("payload"))
	_, _, err := TakeWary('O', rec[:3])
	assert.ErrorIs(t, err, ErrIncomplete)
	_, _, err = TakeWary('P', rec)
	assert.ErrorIs(t, err, ErrBadRecord)
	_, _, _, err = TakeAnyWary([]byte{0x01, 0x02})
	assert.ErrorIs(t, err, ErrBadRecord)
	lit, body, rest, err := TakeAnyWary(rec)
	assert.NoError(t, err)
	assert.Equal(t, byte('O'), lit)
	assert.Equal(t, "payload", string(body))
	assert.Empty(t, rest)
}

func TestTLV_SplitKeepsPartialTail(t *testing.T) {
	a := Record('O', []byte("first"))
	b := Record('O', []byte("second"))
	var buf bytes.Buffer
	buf.Write(a)
	buf.Write(b[:4])
	recs, err := Split(&buf)
	assert.NoError(t, err)
	assert.Equal(t, Records{a}, recs)
	assert.Equal(t, 4, buf.Len())

	buf.Write(b[4:])
	recs, err = Split(&buf)
	assert.NoError(t, err)
	assert.Equal(t, Records{b}, recs)
	assert.Equal(t, 0, buf.Len())
}
