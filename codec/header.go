package codec

import (
	"golang.org/x/crypto/blake2b"
)

// Digest item kinds follow the upstream chain's digest layout. The relay only
// ever inspects DigestOther entries; the remaining kinds are decoded solely so
// the header re-encodes (and therefore hashes) exactly as the appchain built
// it.
const (
	DigestOther             uint8 = 0
	DigestChangesTrieRoot   uint8 = 2
	DigestConsensus         uint8 = 4
	DigestSeal              uint8 = 5
	DigestPreRuntime        uint8 = 6
	DigestRuntimeEnvUpdated uint8 = 8
)

// DigestItem is a single entry of a header digest. ConsensusID is only
// meaningful for the consensus, seal and pre-runtime kinds; Payload carries
// the kind-specific bytes.
type DigestItem struct {
	Kind        uint8
	ConsensusID [4]byte
	Payload     []byte
}

// HeaderPartial carries the header fields the appchain commits into its MMR.
type HeaderPartial struct {
	ParentHash     [32]byte
	Number         uint32
	StateRoot      [32]byte
	ExtrinsicsRoot [32]byte
	Digest         []DigestItem
}

// DecodeHeaderPartial decodes the wire form of a header partial: three 32-byte
// roots around a compact-encoded block number, followed by the digest list.
func DecodeHeaderPartial(encoded []byte) (*HeaderPartial, error) {
	r := NewReader(encoded)
	h := &HeaderPartial{}
	if err := readHash(r, &h.ParentHash); err != nil {
		return nil, err
	}
	number, err := r.ReadCompact()
	if err != nil {
		return nil, err
	}
	if number > 0xffffffff {
		return nil, &DecodeError{Offset: r.Offset(), Reason: "block number exceeds u32"}
	}
	h.Number = uint32(number)
	if err := readHash(r, &h.StateRoot); err != nil {
		return nil, err
	}
	if err := readHash(r, &h.ExtrinsicsRoot); err != nil {
		return nil, err
	}
	count, err := r.ReadCompact()
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < count; i++ {
		item, err := decodeDigestItem(r)
		if err != nil {
			return nil, err
		}
		h.Digest = append(h.Digest, item)
	}
	if err := r.Done(); err != nil {
		return nil, err
	}
	return h, nil
}

func readHash(r *Reader, out *[32]byte) error {
	b, err := r.ReadRaw(32)
	if err != nil {
		return err
	}
	copy(out[:], b)
	return nil
}

func decodeDigestItem(r *Reader) (DigestItem, error) {
	item := DigestItem{}
	kind, err := r.ReadU8()
	if err != nil {
		return item, err
	}
	item.Kind = kind
	switch kind {
	case DigestOther:
		n, err := r.ReadCompact()
		if err != nil {
			return item, err
		}
		item.Payload, err = r.ReadRaw(int(n))
		if err != nil {
			return item, err
		}
	case DigestChangesTrieRoot:
		item.Payload, err = r.ReadRaw(32)
		if err != nil {
			return item, err
		}
	case DigestConsensus, DigestSeal, DigestPreRuntime:
		id, err := r.ReadRaw(4)
		if err != nil {
			return item, err
		}
		copy(item.ConsensusID[:], id)
		n, err := r.ReadCompact()
		if err != nil {
			return item, err
		}
		item.Payload, err = r.ReadRaw(int(n))
		if err != nil {
			return item, err
		}
	case DigestRuntimeEnvUpdated:
		// no payload
	default:
		return item, &DecodeError{Offset: r.Offset(), Reason: "unknown digest item kind"}
	}
	return item, nil
}

// Encode re-encodes the header in its wire layout.
func (h *HeaderPartial) Encode() []byte {
	w := NewWriter()
	w.WriteRaw(h.ParentHash[:])
	w.WriteCompact(uint64(h.Number))
	w.WriteRaw(h.StateRoot[:])
	w.WriteRaw(h.ExtrinsicsRoot[:])
	w.WriteCompact(uint64(len(h.Digest)))
	for _, item := range h.Digest {
		w.WriteU8(item.Kind)
		switch item.Kind {
		case DigestOther:
			w.WriteCompact(uint64(len(item.Payload)))
			w.WriteRaw(item.Payload)
		case DigestChangesTrieRoot:
			w.WriteRaw(item.Payload)
		case DigestConsensus, DigestSeal, DigestPreRuntime:
			w.WriteRaw(item.ConsensusID[:])
			w.WriteCompact(uint64(len(item.Payload)))
			w.WriteRaw(item.Payload)
		}
	}
	return w.Bytes()
}

// Hash returns the blake2b-256 digest of the encoded header. The appchain
// hashes headers with blake2 even though its MMR merges nodes with keccak.
func (h *HeaderPartial) Hash() [32]byte {
	return blake2b.Sum256(h.Encode())
}

// FirstOtherDigest returns the payload of the first DigestOther entry, which
// is where the appchain places the keccak commitment of the message batch.
func (h *HeaderPartial) FirstOtherDigest() ([]byte, bool) {
	for _, item := range h.Digest {
		if item.Kind == DigestOther {
			return item.Payload, true
		}
	}
	return nil, false
}

// EncodeMMRLeaf builds the leaf payload the appchain inserts into its MMR for
// a block: the pair (number, header hash).
func EncodeMMRLeaf(number uint32, headerHash [32]byte) []byte {
	w := NewWriter()
	w.WriteU32(number)
	w.WriteRaw(headerHash[:])
	return w.Bytes()
}
