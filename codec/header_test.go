package codec

import (
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
)

func sampleHeader(commitment []byte) *HeaderPartial {
	h := &HeaderPartial{Number: 492}
	for i := range h.ParentHash {
		h.ParentHash[i] = byte(i)
		h.StateRoot[i] = byte(i * 2)
		h.ExtrinsicsRoot[i] = byte(i * 3)
	}
	h.Digest = []DigestItem{
		{Kind: DigestPreRuntime, ConsensusID: [4]byte{'a', 'u', 'r', 'a'}, Payload: []byte{1, 2, 3, 4}},
		{Kind: DigestOther, Payload: commitment},
		{Kind: DigestSeal, ConsensusID: [4]byte{'a', 'u', 'r', 'a'}, Payload: []byte{9, 9}},
	}
	return h
}

func TestHeaderRoundTrip(t *testing.T) {
	commitment := ethcrypto.Keccak256([]byte("messages"))
	h := sampleHeader(commitment)

	encoded := h.Encode()
	decoded, err := DecodeHeaderPartial(encoded)
	require.NoError(t, err)
	require.Equal(t, h.Number, decoded.Number)
	require.Equal(t, h.ParentHash, decoded.ParentHash)
	require.Equal(t, h.StateRoot, decoded.StateRoot)
	require.Equal(t, h.ExtrinsicsRoot, decoded.ExtrinsicsRoot)
	require.Len(t, decoded.Digest, 3)
	require.Equal(t, encoded, decoded.Encode())
}

func TestHeaderHashIsBlake2bOfEncoding(t *testing.T) {
	h := sampleHeader([]byte{1})
	require.Equal(t, blake2b.Sum256(h.Encode()), h.Hash())
}

func TestFirstOtherDigest(t *testing.T) {
	commitment := ethcrypto.Keccak256([]byte("batch"))
	h := sampleHeader(commitment)
	got, ok := h.FirstOtherDigest()
	require.True(t, ok)
	require.Equal(t, commitment, got)

	h.Digest = h.Digest[:1]
	_, ok = h.FirstOtherDigest()
	require.False(t, ok)
}

func TestUnknownDigestKindRejected(t *testing.T) {
	h := sampleHeader([]byte{1})
	encoded := h.Encode()
	// Corrupt the kind byte of the first digest item: it sits right after the
	// two roots, the compact number and the digest count byte.
	offset := 32 + 2 + 32 + 32 + 1
	encoded[offset] = 77
	_, err := DecodeHeaderPartial(encoded)
	var de *DecodeError
	require.ErrorAs(t, err, &de)
}

func TestMMRProofRoundTrip(t *testing.T) {
	p := &MMRProof{LeafIndex: 491, LeafCount: 492}
	for i := 0; i < 11; i++ {
		var item [32]byte
		item[0] = byte(i + 1)
		p.Items = append(p.Items, item)
	}
	decoded, err := DecodeMMRProof(p.Encode())
	require.NoError(t, err)
	require.Equal(t, p, decoded)
}
