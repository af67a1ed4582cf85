package entities

import (
	"strings"
	"time"

	domainerrors "dropvest/contexts/token-distribution/airdrop-service/domain/errors"
)

type ClaimVariant string

const (
	ClaimVariantFull    ClaimVariant = "full"
	ClaimVariantSlashed ClaimVariant = "slashed"
	ClaimVariantVesting ClaimVariant = "vesting"
	ClaimVariantLock    ClaimVariant = "lock"
)

func (v ClaimVariant) Valid() bool {
	switch v {
	case ClaimVariantFull, ClaimVariantSlashed, ClaimVariantVesting, ClaimVariantLock:
		return true
	default:
		return false
	}
}

type SettlementStatus string

const (
	SettlementPending SettlementStatus = "pending"
	SettlementSettled SettlementStatus = "settled"
	// SettlementRefundRequired parks a claim whose settlement can never
	// complete. The retrier skips it and an operator returns the escrowed
	// funds.
	SettlementRefundRequired SettlementStatus = "refund_required"
)

// Payout is how a declared amount is split between destinations.
// Received+Burned+Vested+Locked always equals the declared amount.
type Payout struct {
	Received uint64
	Burned   uint64
	Vested   uint64
	Locked   uint64
}

func (p Payout) Total() uint64 {
	return p.Received + p.Burned + p.Vested + p.Locked
}

// ClaimRecord is the durable trace of one consumed index.
type ClaimRecord struct {
	ClaimID          string
	CampaignID       string
	Index            uint64
	Address          Address
	DeclaredAmount   uint64
	Variant          ClaimVariant
	Payout           Payout
	LockDuration     time.Duration
	RequestID        string
	SettlementStatus SettlementStatus
	ClaimedAt        time.Time
	SettledAt        *time.Time
}

func NewClaimRecord(
	claimID string,
	campaignID string,
	index uint64,
	address Address,
	declared uint64,
	variant ClaimVariant,
	payout Payout,
	lockDuration time.Duration,
	requestID string,
	claimedAt time.Time,
) (ClaimRecord, error) {
	if strings.TrimSpace(claimID) == "" ||
		strings.TrimSpace(campaignID) == "" ||
		strings.TrimSpace(requestID) == "" {
		return ClaimRecord{}, domainerrors.ErrInvalidClaimRequest
	}
	if !variant.Valid() || payout.Total() != declared {
		return ClaimRecord{}, domainerrors.ErrInvalidClaimRequest
	}

	return ClaimRecord{
		ClaimID:          claimID,
		CampaignID:       campaignID,
		Index:            index,
		Address:          address,
		DeclaredAmount:   declared,
		Variant:          variant,
		Payout:           payout,
		LockDuration:     lockDuration,
		RequestID:        requestID,
		SettlementStatus: SettlementPending,
		ClaimedAt:        claimedAt.UTC(),
	}, nil
}

func (c ClaimRecord) IsSettled() bool {
	return c.SettlementStatus == SettlementSettled
}
