// Package codec implements the canonical deterministic binary encoding used
// for every record the relay persists, together with the wire formats produced
// by the appchain side (message batches, header partials, MMR proofs).
//
// Persisted records use a little-endian tagged layout: fixed-width integers
// little-endian, 128-bit balances as 16 little-endian bytes, strings and byte
// strings with a u32 length prefix, sequences as a u32 count followed by the
// elements, and variants as a single tag byte followed by the body. The layout
// is part of the storage contract: migrations rely on records round-tripping
// byte for byte.
package codec

import (
	"encoding/binary"
	"fmt"
	"math/big"
)

// DecodeError reports the byte offset at which decoding failed together with a
// short reason. Malformed input never yields a partial result.
type DecodeError struct {
	Offset int
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode error at offset %d: %s", e.Offset, e.Reason)
}

var maxU128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// Writer accumulates the canonical encoding of a record.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty writer.
func NewWriter() *Writer { return &Writer{} }

// Bytes returns the accumulated encoding.
func (w *Writer) Bytes() []byte { return w.buf }

func (w *Writer) WriteU8(v uint8) { w.buf = append(w.buf, v) }

func (w *Writer) WriteBool(v bool) {
	if v {
		w.WriteU8(1)
	} else {
		w.WriteU8(0)
	}
}

func (w *Writer) WriteU32(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

func (w *Writer) WriteU64(v uint64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
}

// WriteU128 appends a 128-bit unsigned integer as 16 little-endian bytes. A
// nil value encodes as zero; values outside the 128-bit range panic since they
// can only arise from a bookkeeping bug, never from user input.
func (w *Writer) WriteU128(v *big.Int) {
	if v == nil {
		v = new(big.Int)
	}
	if v.Sign() < 0 || v.Cmp(maxU128) > 0 {
		panic(fmt.Sprintf("codec: value out of u128 range: %s", v))
	}
	var be [16]byte
	v.FillBytes(be[:])
	// big.Int serialises big-endian; the wire wants little-endian.
	for i := 15; i >= 0; i-- {
		w.buf = append(w.buf, be[i])
	}
}

func (w *Writer) WriteString(s string) {
	w.WriteU32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *Writer) WriteBytes(b []byte) {
	w.WriteU32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

// WriteRaw appends bytes without a length prefix.
func (w *Writer) WriteRaw(b []byte) { w.buf = append(w.buf, b...) }

// Reader decodes the canonical encoding, tracking the current offset so that
// failures can be reported precisely.
type Reader struct {
	data []byte
	off  int
}

// NewReader wraps the supplied bytes.
func NewReader(data []byte) *Reader { return &Reader{data: data} }

// Offset returns the number of bytes consumed so far.
func (r *Reader) Offset() int { return r.off }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.data) - r.off }

// Done returns an error unless the input has been consumed entirely.
func (r *Reader) Done() error {
	if r.off != len(r.data) {
		return &DecodeError{Offset: r.off, Reason: "trailing bytes"}
	}
	return nil
}

func (r *Reader) errf(format string, args ...interface{}) error {
	return &DecodeError{Offset: r.off, Reason: fmt.Sprintf(format, args...)}
}

func (r *Reader) take(n int) ([]byte, error) {
	if n < 0 || r.Remaining() < n {
		return nil, r.errf("need %d bytes, have %d", n, r.Remaining())
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *Reader) ReadU8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) ReadBool() (bool, error) {
	v, err := r.ReadU8()
	if err != nil {
		return false, err
	}
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, r.errf("invalid bool tag %d", v)
	}
}

func (r *Reader) ReadU32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *Reader) ReadU64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *Reader) ReadU128() (*big.Int, error) {
	b, err := r.take(16)
	if err != nil {
		return nil, err
	}
	var be [16]byte
	for i := 0; i < 16; i++ {
		be[i] = b[15-i]
	}
	return new(big.Int).SetBytes(be[:]), nil
}

func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadU32()
	if err != nil {
		return "", err
	}
	b, err := r.take(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *Reader) ReadBytes() ([]byte, error) {
	n, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	b, err := r.take(int(n))
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}

// ReadRaw consumes exactly n bytes without a length prefix.
func (r *Reader) ReadRaw(n int) ([]byte, error) {
	b, err := r.take(n)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}
