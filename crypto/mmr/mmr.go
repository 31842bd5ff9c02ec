// Package mmr implements stateless verification of single-leaf Merkle
// Mountain Range proofs using the keccak256 merging rule of the appchain's
// accumulator. Positions are zero-based node positions in the flattened MMR.
package mmr

import (
	"errors"
	"math/bits"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

var (
	// ErrCorruptProof signals that the proof has too few or too many items
	// for the declared leaf count.
	ErrCorruptProof = errors.New("mmr: corrupt proof")
	// ErrLeafOutOfRange signals a leaf index beyond the declared leaf count.
	ErrLeafOutOfRange = errors.New("mmr: leaf index out of range")
)

// Node is an MMR node: either opaque data hashed on demand or an already
// computed hash.
type Node interface {
	Hash() [32]byte
}

// DataNode is a leaf payload; its node hash is the keccak256 of the payload.
type DataNode []byte

func (d DataNode) Hash() [32]byte {
	var out [32]byte
	copy(out[:], ethcrypto.Keccak256(d))
	return out
}

// HashNode is an internal hash-only node.
type HashNode [32]byte

func (h HashNode) Hash() [32]byte { return h }

// Proof is a single-leaf proof: the leaf's index, the leaf count the root was
// built over, and the sibling/peak hashes in consumption order.
type Proof struct {
	LeafIndex uint64
	LeafCount uint64
	Items     [][32]byte
}

func merge(left, right [32]byte) [32]byte {
	var out [32]byte
	copy(out[:], ethcrypto.Keccak256(left[:], right[:]))
	return out
}

// LeafCountToSize returns the total number of MMR nodes for the given number
// of leaves: 2n minus the number of peaks (the popcount of n).
func LeafCountToSize(leafCount uint64) uint64 {
	return 2*leafCount - uint64(bits.OnesCount64(leafCount))
}

// LeafIndexToPos translates a leaf index to its node position.
func LeafIndexToPos(index uint64) uint64 {
	return LeafCountToSize(index+1) - uint64(bits.TrailingZeros64(index+1)) - 1
}

// PosHeight returns the height of the node at pos, leaves having height 0.
func PosHeight(pos uint64) uint32 {
	pos++
	for !allOnes(pos) {
		pos = jumpLeft(pos)
	}
	return uint32(bits.Len64(pos)) - 1
}

func allOnes(v uint64) bool {
	return v != 0 && bits.OnesCount64(v) == bits.Len64(v)
}

func jumpLeft(v uint64) uint64 {
	return v - ((1 << (bits.Len64(v) - 1)) - 1)
}

func parentOffset(height uint32) uint64  { return 2 << height }
func siblingOffset(height uint32) uint64 { return (2 << height) - 1 }

func peakPosByHeight(height uint32) uint64 { return (1 << (height + 1)) - 2 }

func leftPeak(size uint64) (uint32, uint64) {
	height := uint32(1)
	prev := uint64(0)
	pos := peakPosByHeight(height)
	for pos < size {
		height++
		prev = pos
		pos = peakPosByHeight(height)
	}
	return height - 1, prev
}

func rightPeak(height uint32, pos, size uint64) (uint32, uint64, bool) {
	pos += siblingOffset(height)
	for pos > size-1 {
		if height == 0 {
			return 0, 0, false
		}
		pos -= parentOffset(height - 1)
		height--
	}
	return height, pos, true
}

// Peaks returns the peak positions of an MMR of the given size, left to right.
func Peaks(size uint64) []uint64 {
	if size == 0 {
		return nil
	}
	height, pos := leftPeak(size)
	peaks := []uint64{pos}
	for height > 0 {
		var ok bool
		height, pos, ok = rightPeak(height, pos, size)
		if !ok {
			break
		}
		peaks = append(peaks, pos)
	}
	return peaks
}

type itemIter struct {
	items [][32]byte
	next  int
}

func (it *itemIter) take() ([32]byte, bool) {
	if it.next >= len(it.items) {
		return [32]byte{}, false
	}
	item := it.items[it.next]
	it.next++
	return item, true
}

// climb recomputes the root of the peak containing the leaf by walking from
// the leaf position to the peak, merging in one proof item per level.
func climb(leafHash [32]byte, pos, peakPos uint64, iter *itemIter) ([32]byte, error) {
	node := leafHash
	height := uint32(0)
	for pos < peakPos {
		sibling, ok := iter.take()
		if !ok {
			return [32]byte{}, ErrCorruptProof
		}
		if PosHeight(pos+1) > height {
			// pos is a right child; the sibling sits to the left.
			node = merge(sibling, node)
			pos++
		} else {
			node = merge(node, sibling)
			pos += parentOffset(height)
		}
		height++
	}
	return node, nil
}

// Verify checks the leaf against the declared root. It is deterministic and
// returns false (never an error) for structurally valid proofs that simply do
// not match the root.
func Verify(root [32]byte, leaf Node, proof Proof) (bool, error) {
	if proof.LeafCount == 0 || proof.LeafIndex >= proof.LeafCount {
		return false, ErrLeafOutOfRange
	}
	size := LeafCountToSize(proof.LeafCount)
	leafPos := LeafIndexToPos(proof.LeafIndex)
	iter := &itemIter{items: proof.Items}

	peakHashes := make([][32]byte, 0, 8)
	consumed := false
	for _, peakPos := range Peaks(size) {
		if !consumed && leafPos <= peakPos {
			node, err := climb(leaf.Hash(), leafPos, peakPos, iter)
			if err != nil {
				return false, err
			}
			peakHashes = append(peakHashes, node)
			consumed = true
			continue
		}
		item, ok := iter.take()
		if !ok {
			return false, ErrCorruptProof
		}
		peakHashes = append(peakHashes, item)
	}
	if !consumed || iter.next != len(iter.items) {
		return false, ErrCorruptProof
	}

	// Bag the peaks right to left.
	for len(peakHashes) > 1 {
		right := peakHashes[len(peakHashes)-1]
		left := peakHashes[len(peakHashes)-2]
		peakHashes = peakHashes[:len(peakHashes)-2]
		peakHashes = append(peakHashes, merge(right, left))
	}
	return peakHashes[0] == root, nil
}
