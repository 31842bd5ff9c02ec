package relay

import (
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"relayhub/codec"
	"relayhub/core/errors"
	"relayhub/crypto/mmr"
)

func committedHeader(encodedMessages []byte) *codec.HeaderPartial {
	h := &codec.HeaderPartial{Number: 42}
	h.Digest = []codec.DigestItem{
		{Kind: codec.DigestPreRuntime, ConsensusID: [4]byte{'a', 'u', 'r', 'a'}, Payload: []byte{1}},
		{Kind: codec.DigestOther, Payload: ethcrypto.Keccak256(encodedMessages)},
	}
	return h
}

func TestVerifyRelaySingleLeaf(t *testing.T) {
	encoded := codec.EncodeMessages([]codec.Message{mintMessage(1, "alice.testnet", 10)})
	header := committedHeader(encoded)
	leaf := codec.EncodeMMRLeaf(header.Number, header.Hash())
	root := mmr.DataNode(leaf).Hash()
	proof := &codec.MMRProof{LeafIndex: 0, LeafCount: 1}

	require.NoError(t, verifyRelay(encoded, header.Encode(), proof.Encode(), root))
}

func TestVerifyRelayTwoLeaves(t *testing.T) {
	encoded := codec.EncodeMessages([]codec.Message{mintMessage(1, "alice.testnet", 10)})
	header := committedHeader(encoded)

	// The header sits at leaf index 1 next to an unrelated sibling; the root
	// is the merged peak of the two-leaf range.
	sibling := mmr.DataNode([]byte("other-block")).Hash()
	headerLeaf := mmr.DataNode(codec.EncodeMMRLeaf(header.Number, header.Hash())).Hash()
	var root [32]byte
	copy(root[:], ethcrypto.Keccak256(sibling[:], headerLeaf[:]))

	proof := &codec.MMRProof{LeafIndex: 1, LeafCount: 2, Items: [][32]byte{sibling}}
	require.NoError(t, verifyRelay(encoded, header.Encode(), proof.Encode(), root))
}

func TestVerifyRelayCommitmentMismatch(t *testing.T) {
	encoded := codec.EncodeMessages([]codec.Message{mintMessage(1, "alice.testnet", 10)})
	header := committedHeader(codec.EncodeMessages([]codec.Message{mintMessage(2, "bob.testnet", 20)}))
	leaf := codec.EncodeMMRLeaf(header.Number, header.Hash())
	root := mmr.DataNode(leaf).Hash()
	proof := &codec.MMRProof{LeafIndex: 0, LeafCount: 1}

	err := verifyRelay(encoded, header.Encode(), proof.Encode(), root)
	require.True(t, errors.HasCode(err, errors.CodeCommitmentMismatch))
}

func TestVerifyRelayMissingCommitmentDigest(t *testing.T) {
	encoded := codec.EncodeMessages(nil)
	header := &codec.HeaderPartial{Number: 1}
	proof := &codec.MMRProof{LeafIndex: 0, LeafCount: 1}
	root := mmr.DataNode(codec.EncodeMMRLeaf(1, header.Hash())).Hash()

	err := verifyRelay(encoded, header.Encode(), proof.Encode(), root)
	require.True(t, errors.HasCode(err, errors.CodeCommitmentMismatch))
}

func TestVerifyRelayGarbageInputs(t *testing.T) {
	encoded := codec.EncodeMessages(nil)
	header := committedHeader(encoded)
	proof := &codec.MMRProof{LeafIndex: 0, LeafCount: 1}
	root := mmr.DataNode(codec.EncodeMMRLeaf(header.Number, header.Hash())).Hash()

	err := verifyRelay(encoded, []byte{1, 2, 3}, proof.Encode(), root)
	require.True(t, errors.HasCode(err, errors.CodeDecode))

	err = verifyRelay(encoded, header.Encode(), []byte{1, 2, 3}, root)
	require.True(t, errors.HasCode(err, errors.CodeDecode))
}

func TestVerifyRelayWrongRoot(t *testing.T) {
	encoded := codec.EncodeMessages([]codec.Message{mintMessage(1, "alice.testnet", 10)})
	header := committedHeader(encoded)
	leaf := codec.EncodeMMRLeaf(header.Number, header.Hash())
	root := mmr.DataNode(leaf).Hash()
	root[0] ^= 0x01
	proof := &codec.MMRProof{LeafIndex: 0, LeafCount: 1}

	err := verifyRelay(encoded, header.Encode(), proof.Encode(), root)
	require.True(t, errors.HasCode(err, errors.CodeProofInvalid))
}

func TestVerifyRelayCorruptProofStructure(t *testing.T) {
	encoded := codec.EncodeMessages([]codec.Message{mintMessage(1, "alice.testnet", 10)})
	header := committedHeader(encoded)
	leaf := codec.EncodeMMRLeaf(header.Number, header.Hash())
	root := mmr.DataNode(leaf).Hash()

	// A leaf index past the declared count is structurally invalid.
	proof := &codec.MMRProof{LeafIndex: 5, LeafCount: 1}
	err := verifyRelay(encoded, header.Encode(), proof.Encode(), root)
	require.True(t, errors.HasCode(err, errors.CodeProofInvalid))
}
