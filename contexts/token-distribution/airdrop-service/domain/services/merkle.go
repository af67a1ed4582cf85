package services

import (
	"encoding/binary"

	"dropvest/contexts/token-distribution/airdrop-service/domain/entities"

	"golang.org/x/crypto/sha3"
)

// Wire contract shared with the offline tree builder. Changing any width,
// order or prefix breaks every previously published proof and needs a new
// version.
const (
	leafPrefix byte = 0x00
	nodePrefix byte = 0x01

	LeafEncodingLength = 1 + entities.AddressLength + 8 + 8
)

// EncodeLeaf is the canonical fixed-width encoding of a claim triple:
// 0x00 || address[32] || le_u64(amount) || le_u64(index).
func EncodeLeaf(address entities.Address, amount uint64, index uint64) []byte {
	buf := make([]byte, LeafEncodingLength)
	buf[0] = leafPrefix
	copy(buf[1:1+entities.AddressLength], address[:])
	binary.LittleEndian.PutUint64(buf[1+entities.AddressLength:], amount)
	binary.LittleEndian.PutUint64(buf[1+entities.AddressLength+8:], index)
	return buf
}

func ComputeLeaf(address entities.Address, amount uint64, index uint64) entities.Hash {
	return entities.Hash(sha3.Sum256(EncodeLeaf(address, amount, index)))
}

// HashNode combines two children in the given order.
func HashNode(left entities.Hash, right entities.Hash) entities.Hash {
	var buf [1 + 2*entities.HashLength]byte
	buf[0] = nodePrefix
	copy(buf[1:], left[:])
	copy(buf[1+entities.HashLength:], right[:])
	return entities.Hash(sha3.Sum256(buf[:]))
}

// ComputeRoot folds a leaf-to-root proof. The side of each sibling comes from
// the parity of the running index, never from the proof content.
func ComputeRoot(leaf entities.Hash, proof []entities.Hash, index uint64) entities.Hash {
	current := leaf
	for _, sibling := range proof {
		if index%2 == 0 {
			current = HashNode(current, sibling)
		} else {
			current = HashNode(sibling, current)
		}
		index /= 2
	}
	return current
}

func VerifyProof(root entities.Hash, leaf entities.Hash, proof []entities.Hash, index uint64) bool {
	return ComputeRoot(leaf, proof, index) == root
}
