package errors

import "errors"

var (
	ErrCampaignNotFound         = errors.New("campaign not found")
	ErrClaimNotFound            = errors.New("claim not found")
	ErrInvalidCampaign          = errors.New("invalid campaign definition")
	ErrInvalidClaimRequest      = errors.New("invalid claim request")
	ErrInvalidAddress           = errors.New("invalid address")
	ErrInvalidHash              = errors.New("invalid hash")
	ErrEnded                    = errors.New("airdrop has ended")
	ErrIndexOutOfRange          = errors.New("claim index out of range")
	ErrAlreadyClaimed           = errors.New("claim index already consumed")
	ErrAllocationExceeded       = errors.New("claim exceeds remaining allocation")
	ErrInvalidProof             = errors.New("invalid merkle proof")
	ErrAlreadyHasPosition       = errors.New("claimant already has a vesting position")
	ErrInvalidLockDuration      = errors.New("lock duration outside allowed range")
	ErrCampaignWithdrawn        = errors.New("campaign funds already withdrawn")
	ErrForbidden                = errors.New("forbidden")
	ErrArithmeticOverflow       = errors.New("arithmetic overflow")
	ErrIdempotencyKeyConflict   = errors.New("idempotency key reused with different request")
	ErrDuplicateRequestID       = errors.New("request_id already used")
	ErrRepositoryInvariantBroke = errors.New("repository invariant violated")
)
