package services

import (
	"math/bits"
	"time"

	"dropvest/contexts/token-distribution/airdrop-service/domain/entities"
	domainerrors "dropvest/contexts/token-distribution/airdrop-service/domain/errors"
)

// ClaimedIndexView is the read side of a campaign's claim set.
type ClaimedIndexView interface {
	Contains(index uint64) bool
}

// ClaimRequest is the claimant-supplied triple plus its membership proof.
type ClaimRequest struct {
	Address entities.Address
	Amount  uint64
	Index   uint64
	Proof   []entities.Hash
}

// AuthorizeClaim runs every claim precondition in a fixed order and mutates
// nothing. The first failing check decides the error.
func AuthorizeClaim(
	campaign entities.Campaign,
	claimed ClaimedIndexView,
	req ClaimRequest,
	now time.Time,
) error {
	if campaign.HasEnded(now) {
		return domainerrors.ErrEnded
	}
	if req.Index >= campaign.MaxIndex {
		return domainerrors.ErrIndexOutOfRange
	}
	if claimed != nil && claimed.Contains(req.Index) {
		return domainerrors.ErrAlreadyClaimed
	}
	total, carry := bits.Add64(campaign.TotalClaimed, req.Amount, 0)
	if carry != 0 {
		return domainerrors.ErrArithmeticOverflow
	}
	if total > campaign.TotalAllocation {
		return domainerrors.ErrAllocationExceeded
	}
	leaf := ComputeLeaf(req.Address, req.Amount, req.Index)
	if !VerifyProof(campaign.Root, leaf, req.Proof, req.Index) {
		return domainerrors.ErrInvalidProof
	}
	return nil
}

// CommitClaim is the single mutating step of a claim: it consumes the index
// and books the declared amount. Both happen or neither does.
func CommitClaim(
	campaign *entities.Campaign,
	claimed entities.ClaimSet,
	index uint64,
	payout entities.Payout,
	now time.Time,
) error {
	if claimed.Contains(index) {
		return domainerrors.ErrAlreadyClaimed
	}
	next := *campaign
	if err := next.ApplyClaim(payout.Total(), payout.Burned, now); err != nil {
		return err
	}
	if !claimed.Add(index) {
		return domainerrors.ErrIndexOutOfRange
	}
	*campaign = next
	return nil
}
