package codec

// MMRProof is the wire form of a single-leaf MMR proof: the leaf's index, the
// total number of leaves at the time the root was produced, and the sibling
// and peak hashes needed to rebuild the root.
type MMRProof struct {
	LeafIndex uint64
	LeafCount uint64
	Items     [][32]byte
}

// DecodeMMRProof decodes a leaf proof: two u64 counters followed by a
// compact-prefixed list of 32-byte hashes.
func DecodeMMRProof(encoded []byte) (*MMRProof, error) {
	r := NewReader(encoded)
	p := &MMRProof{}
	var err error
	if p.LeafIndex, err = r.ReadU64(); err != nil {
		return nil, err
	}
	if p.LeafCount, err = r.ReadU64(); err != nil {
		return nil, err
	}
	count, err := r.ReadCompact()
	if err != nil {
		return nil, err
	}
	p.Items = make([][32]byte, 0, count)
	for i := uint64(0); i < count; i++ {
		var item [32]byte
		b, err := r.ReadRaw(32)
		if err != nil {
			return nil, err
		}
		copy(item[:], b)
		p.Items = append(p.Items, item)
	}
	if err := r.Done(); err != nil {
		return nil, err
	}
	return p, nil
}

// Encode produces the wire form of the proof.
func (p *MMRProof) Encode() []byte {
	w := NewWriter()
	w.WriteU64(p.LeafIndex)
	w.WriteU64(p.LeafCount)
	w.WriteCompact(uint64(len(p.Items)))
	for _, item := range p.Items {
		w.WriteRaw(item[:])
	}
	return w.Bytes()
}
