package services

import (
	"dropvest/contexts/token-distribution/airdrop-service/domain/entities"
	domainerrors "dropvest/contexts/token-distribution/airdrop-service/domain/errors"
)

// SplitPayout decides where a declared amount goes. The whole declared amount
// is always consumed from the campaign budget; only its destinations differ.
func SplitPayout(variant entities.ClaimVariant, amount uint64) (entities.Payout, error) {
	switch variant {
	case entities.ClaimVariantFull:
		return entities.Payout{Received: amount}, nil
	case entities.ClaimVariantSlashed:
		// Odd amounts burn the extra unit.
		receive := amount / 2
		return entities.Payout{Received: receive, Burned: amount - receive}, nil
	case entities.ClaimVariantVesting:
		return entities.Payout{Vested: amount}, nil
	case entities.ClaimVariantLock:
		return entities.Payout{Locked: amount}, nil
	default:
		return entities.Payout{}, domainerrors.ErrInvalidClaimRequest
	}
}
