package codec

import "math/big"

// Compact integer encoding as used by the appchain wire formats: the two low
// bits of the first byte select the mode (single byte, two bytes, four bytes,
// or big-integer with an explicit byte count), the remaining bits carry the
// value shifted left by two.

// WriteCompact appends the compact encoding of v.
func (w *Writer) WriteCompact(v uint64) {
	switch {
	case v < 1<<6:
		w.WriteU8(uint8(v << 2))
	case v < 1<<14:
		u := uint16(v)<<2 | 0b01
		w.WriteU8(uint8(u))
		w.WriteU8(uint8(u >> 8))
	case v < 1<<30:
		u := uint32(v)<<2 | 0b10
		for i := 0; i < 4; i++ {
			w.WriteU8(uint8(u >> (8 * i)))
		}
	default:
		n := 0
		for tmp := v; tmp > 0; tmp >>= 8 {
			n++
		}
		w.WriteU8(uint8((n-4)<<2) | 0b11)
		for i := 0; i < n; i++ {
			w.WriteU8(uint8(v >> (8 * i)))
		}
	}
}

// ReadCompact decodes a compact integer, rejecting values beyond 64 bits.
func (r *Reader) ReadCompact() (uint64, error) {
	first, err := r.ReadU8()
	if err != nil {
		return 0, err
	}
	switch first & 0b11 {
	case 0b00:
		return uint64(first >> 2), nil
	case 0b01:
		b, err := r.ReadU8()
		if err != nil {
			return 0, err
		}
		return uint64(first)>>2 | uint64(b)<<6, nil
	case 0b10:
		v := uint64(first)
		for i := 1; i < 4; i++ {
			b, err := r.ReadU8()
			if err != nil {
				return 0, err
			}
			v |= uint64(b) << (8 * i)
		}
		return v >> 2, nil
	default:
		n := int(first>>2) + 4
		if n > 8 {
			return 0, r.errf("compact integer of %d bytes exceeds u64", n)
		}
		var v uint64
		for i := 0; i < n; i++ {
			b, err := r.ReadU8()
			if err != nil {
				return 0, err
			}
			v |= uint64(b) << (8 * i)
		}
		return v, nil
	}
}

// ReadCompactBig decodes a compact integer of arbitrary width. Only needed for
// foreign digest payloads; the relay itself never produces values beyond u64.
func (r *Reader) ReadCompactBig() (*big.Int, error) {
	first, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	if first&0b11 != 0b11 {
		// Rewind one byte and reuse the fixed-width path.
		r.off--
		v, err := r.ReadCompact()
		if err != nil {
			return nil, err
		}
		return new(big.Int).SetUint64(v), nil
	}
	n := int(first>>2) + 4
	raw, err := r.take(n)
	if err != nil {
		return nil, err
	}
	be := make([]byte, n)
	for i, b := range raw {
		be[n-1-i] = b
	}
	return new(big.Int).SetBytes(be), nil
}
