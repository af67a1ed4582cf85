package v1

import (
	"context"
	"errors"
)

// Asset is a quantity of tokens withdrawn from (or minted into) the host ledger
// and not yet deposited anywhere. Reference ties the asset to the operation
// that produced it so retries are recognised by the ledger.
type Asset struct {
	Denom     string
	Amount    uint64
	Reference string
}

// TokenLedger is the host-provided token movement collaborator.
// Implementations must treat a repeated reference as a no-op that returns the
// original result.
type TokenLedger interface {
	Withdraw(ctx context.Context, from string, amount uint64, reference string) (Asset, error)
	Deposit(ctx context.Context, to string, asset Asset) error
	Mint(ctx context.Context, amount uint64, reference string) (Asset, error)
	Burn(ctx context.Context, asset Asset) error
}

// EscrowHandle authorises moving funds out of an escrow sub-account owned by
// Owner. Only the service that opened the escrow holds the handle.
type EscrowHandle struct {
	Account string
	Owner   string
}

const (
	EscrowKindVesting = "vesting"
	EscrowKindLock    = "lock"
)

// EscrowAccount derives the sub-ledger account holding funds for owner.
func EscrowAccount(kind string, owner string) EscrowHandle {
	return EscrowHandle{
		Account: "escrow/" + kind + "/" + owner,
		Owner:   owner,
	}
}

var (
	ErrInsufficientFunds = errors.New("insufficient ledger funds")
	ErrInvalidAsset      = errors.New("invalid ledger asset")
)
