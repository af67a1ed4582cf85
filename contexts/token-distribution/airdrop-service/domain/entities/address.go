package entities

import (
	"encoding/hex"
	"strings"

	domainerrors "dropvest/contexts/token-distribution/airdrop-service/domain/errors"
)

const (
	AddressLength = 32
	HashLength    = 32
)

// Address is a fixed-width account address. The fixed width is part of the
// leaf encoding, so it must never become variable length.
type Address [AddressLength]byte

// ParseAddress accepts "0x"-prefixed or bare hex. Short forms are left-padded
// with zeros, so "0x1" and "0x000...01" name the same account.
func ParseAddress(value string) (Address, error) {
	raw := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(value), "0x"), "0X")
	if raw == "" || len(raw) > AddressLength*2 {
		return Address{}, domainerrors.ErrInvalidAddress
	}
	if len(raw)%2 == 1 {
		raw = "0" + raw
	}
	decoded, err := hex.DecodeString(raw)
	if err != nil {
		return Address{}, domainerrors.ErrInvalidAddress
	}

	var addr Address
	copy(addr[AddressLength-len(decoded):], decoded)
	return addr, nil
}

func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

func (a Address) IsZero() bool {
	return a == Address{}
}

// Hash is a SHA3-256 digest used for leaves, nodes and roots.
type Hash [HashLength]byte

func ParseHash(value string) (Hash, error) {
	raw := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(value), "0x"), "0X")
	if len(raw) != HashLength*2 {
		return Hash{}, domainerrors.ErrInvalidHash
	}
	decoded, err := hex.DecodeString(raw)
	if err != nil {
		return Hash{}, domainerrors.ErrInvalidHash
	}
	var h Hash
	copy(h[:], decoded)
	return h, nil
}

// ParseProof decodes a leaf-to-root sibling path.
func ParseProof(values []string) ([]Hash, error) {
	proof := make([]Hash, 0, len(values))
	for _, value := range values {
		h, err := ParseHash(value)
		if err != nil {
			return nil, err
		}
		proof = append(proof, h)
	}
	return proof, nil
}

func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

func (h Hash) IsZero() bool {
	return h == Hash{}
}
