package relay

import (
	"bytes"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"relayhub/codec"
	"relayhub/core/errors"
	"relayhub/crypto/mmr"
)

// verifyRelay proves that a message batch was committed by the appchain:
// the header's first Other digest must carry the keccak commitment of the
// batch, and the header itself must sit in the MMR under the declared root.
func verifyRelay(encodedMessages, headerPartial, leafProof []byte, root [32]byte) error {
	header, err := codec.DecodeHeaderPartial(headerPartial)
	if err != nil {
		return errors.Newf(errors.CodeDecode, "header: %s", err)
	}
	commitment, ok := header.FirstOtherDigest()
	if !ok {
		return errors.New(errors.CodeCommitmentMismatch, "header carries no commitment digest")
	}
	if !bytes.Equal(commitment, ethcrypto.Keccak256(encodedMessages)) {
		return errors.New(errors.CodeCommitmentMismatch, "commitment digest does not match the message batch")
	}
	proof, err := codec.DecodeMMRProof(leafProof)
	if err != nil {
		return errors.Newf(errors.CodeDecode, "proof: %s", err)
	}
	leaf := mmr.DataNode(codec.EncodeMMRLeaf(header.Number, header.Hash()))
	valid, err := mmr.Verify(root, leaf, mmr.Proof{
		LeafIndex: proof.LeafIndex,
		LeafCount: proof.LeafCount,
		Items:     proof.Items,
	})
	if err != nil {
		return errors.Newf(errors.CodeProofInvalid, "proof rejected: %s", err)
	}
	if !valid {
		return errors.New(errors.CodeProofInvalid, "proof does not reach the declared root")
	}
	return nil
}
