package commands

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	application "dropvest/contexts/token-distribution/airdrop-service/application"
	"dropvest/contexts/token-distribution/airdrop-service/domain/entities"
	domainerrors "dropvest/contexts/token-distribution/airdrop-service/domain/errors"
	"dropvest/contexts/token-distribution/airdrop-service/domain/services"
	"dropvest/contexts/token-distribution/airdrop-service/ports"
	contractsv1 "dropvest/contracts/gen/events/v1"
)

type ClaimAirdropCommand struct {
	CampaignID     string
	Address        string
	Amount         uint64
	Index          uint64
	Proof          []string
	Variant        entities.ClaimVariant
	LockDuration   time.Duration
	RequestID      string
	IdempotencyKey string
}

type ClaimAirdropResult struct {
	Claim    entities.ClaimRecord
	Created  bool
	Replayed bool
	Settled  bool
}

type ClaimAirdropUseCase struct {
	Campaigns      ports.CampaignRepository
	Idempotency    ports.IdempotencyStore
	Vesting        ports.VestingGateway
	Settler        ClaimSettler
	Clock          ports.Clock
	IDGenerator    ports.IDGenerator
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

// Execute runs the claim workflow in this order:
// 1) idempotency lookup/replay, only for a client-supplied key
// 2) request_id replay, only for a client-supplied request_id
// 3) claim authorization (no mutation)
// 4) variant pre-checks (lock bounds, single vesting position)
// 5) atomic index consumption + claim + outbox persistence
// 6) idempotency record write
// 7) settlement; a failed settlement leaves the claim pending for retry.
//
// Without client-supplied dedupe values every attempt on a consumed index is
// authorized afresh and fails with ErrAlreadyClaimed.
func (u ClaimAirdropUseCase) Execute(ctx context.Context, cmd ClaimAirdropCommand) (ClaimAirdropResult, error) {
	logger := application.ResolveLogger(u.Logger)
	if strings.TrimSpace(cmd.CampaignID) == "" || !cmd.Variant.Valid() {
		return ClaimAirdropResult{}, domainerrors.ErrInvalidClaimRequest
	}
	address, err := entities.ParseAddress(cmd.Address)
	if err != nil {
		return ClaimAirdropResult{}, err
	}
	proof, err := entities.ParseProof(cmd.Proof)
	if err != nil {
		return ClaimAirdropResult{}, domainerrors.ErrInvalidProof
	}
	cmd.IdempotencyKey = strings.TrimSpace(cmd.IdempotencyKey)
	clientRequestID := strings.TrimSpace(cmd.RequestID) != ""
	if !clientRequestID {
		cmd.RequestID = fmt.Sprintf("%s:%d", cmd.CampaignID, cmd.Index)
	}

	now := now(u.Clock)
	idempotencyKey := cmd.IdempotencyKey
	requestHash := hashRequest(cmd, address)

	logger.Info("airdrop claim started",
		"event", "airdrop_claim_started",
		"module", "token-distribution/airdrop-service",
		"layer", "application",
		"campaign_id", cmd.CampaignID,
		"index", cmd.Index,
		"variant", string(cmd.Variant),
		"idempotency_key", idempotencyKey,
	)

	if idempotencyKey != "" {
		record, found, err := u.Idempotency.Get(ctx, idempotencyKey, now)
		if err != nil {
			logger.Error("idempotency get failed",
				"event", "airdrop_claim_idempotency_get_failed",
				"module", "token-distribution/airdrop-service",
				"layer", "application",
				"campaign_id", cmd.CampaignID,
				"error", err.Error(),
			)
			return ClaimAirdropResult{}, err
		}
		if found {
			if record.RequestHash != requestHash {
				logger.Warn("idempotency key conflict",
					"event", "airdrop_claim_idempotency_conflict",
					"module", "token-distribution/airdrop-service",
					"layer", "application",
					"campaign_id", cmd.CampaignID,
					"index", cmd.Index,
				)
				return ClaimAirdropResult{}, domainerrors.ErrIdempotencyKeyConflict
			}
			claim, err := u.Campaigns.GetClaim(ctx, record.ClaimID)
			if err != nil {
				return ClaimAirdropResult{}, err
			}
			return ClaimAirdropResult{Claim: claim, Replayed: true, Settled: claim.IsSettled()}, nil
		}
	}

	if clientRequestID {
		byRequest, requestFound, err := u.Campaigns.GetClaimByRequestID(ctx, cmd.CampaignID, cmd.RequestID)
		if err != nil {
			return ClaimAirdropResult{}, err
		}
		if requestFound {
			if byRequest.Index != cmd.Index || byRequest.Address != address || byRequest.Variant != cmd.Variant {
				return ClaimAirdropResult{}, domainerrors.ErrDuplicateRequestID
			}
			if err := u.putIdempotency(ctx, idempotencyKey, requestHash, byRequest.ClaimID, now); err != nil {
				return ClaimAirdropResult{}, err
			}
			return ClaimAirdropResult{Claim: byRequest, Replayed: true, Settled: byRequest.IsSettled()}, nil
		}
	}

	campaign, err := u.Campaigns.GetCampaign(ctx, cmd.CampaignID)
	if err != nil {
		return ClaimAirdropResult{}, err
	}
	claimed, err := u.Campaigns.IsClaimed(ctx, cmd.CampaignID, cmd.Index)
	if err != nil {
		return ClaimAirdropResult{}, err
	}

	authErr := services.AuthorizeClaim(campaign, indexLookup{index: cmd.Index, claimed: claimed}, services.ClaimRequest{
		Address: address,
		Amount:  cmd.Amount,
		Index:   cmd.Index,
		Proof:   proof,
	}, now)
	if authErr == nil {
		authErr = u.checkVariant(ctx, campaign, cmd, address)
	}
	if authErr != nil {
		logger.Warn("airdrop claim rejected",
			"event", "airdrop_claim_rejected",
			"module", "token-distribution/airdrop-service",
			"layer", "application",
			"campaign_id", cmd.CampaignID,
			"index", cmd.Index,
			"address", address.String(),
			"error", authErr.Error(),
		)
		return ClaimAirdropResult{}, authErr
	}

	payout, err := services.SplitPayout(cmd.Variant, cmd.Amount)
	if err != nil {
		return ClaimAirdropResult{}, err
	}
	claimID, err := u.IDGenerator.NewID(ctx)
	if err != nil {
		return ClaimAirdropResult{}, err
	}
	lockDuration := time.Duration(0)
	if cmd.Variant == entities.ClaimVariantLock {
		lockDuration = cmd.LockDuration
	}
	claim, err := entities.NewClaimRecord(
		claimID,
		cmd.CampaignID,
		cmd.Index,
		address,
		cmd.Amount,
		cmd.Variant,
		payout,
		lockDuration,
		cmd.RequestID,
		now,
	)
	if err != nil {
		return ClaimAirdropResult{}, err
	}

	eventID, err := u.IDGenerator.NewID(ctx)
	if err != nil {
		return ClaimAirdropResult{}, err
	}
	event := ports.ClaimedEvent{
		EventID:      eventID,
		EventType:    contractsv1.EventTypeAirdropClaimed,
		ClaimID:      claim.ClaimID,
		CampaignID:   claim.CampaignID,
		Index:        claim.Index,
		Address:      address.String(),
		Variant:      string(claim.Variant),
		Declared:     claim.DeclaredAmount,
		Received:     payout.Received,
		Burned:       payout.Burned,
		Vested:       payout.Vested,
		Locked:       payout.Locked,
		PartitionKey: claim.CampaignID,
		OccurredAt:   now,
	}

	// Commit point: a concurrent claim of the same index loses here with
	// ErrAlreadyClaimed and nothing of it is persisted.
	if _, err := u.Campaigns.CommitClaim(ctx, ports.ClaimCommit{
		Claim:        claim,
		Event:        event,
		VestingGrant: cmd.Variant == entities.ClaimVariantVesting,
	}); err != nil {
		level := slog.LevelError
		if isClaimRejection(err) {
			level = slog.LevelWarn
		}
		logger.Log(ctx, level, "airdrop claim commit failed",
			"event", "airdrop_claim_commit_failed",
			"module", "token-distribution/airdrop-service",
			"layer", "application",
			"campaign_id", cmd.CampaignID,
			"index", cmd.Index,
			"error", err.Error(),
		)
		return ClaimAirdropResult{}, err
	}

	if err := u.putIdempotency(ctx, idempotencyKey, requestHash, claim.ClaimID, now); err != nil {
		return ClaimAirdropResult{}, err
	}

	logger.Info("airdrop claim committed",
		"event", "airdrop_claim_committed",
		"module", "token-distribution/airdrop-service",
		"layer", "application",
		"claim_id", claim.ClaimID,
		"campaign_id", claim.CampaignID,
		"index", claim.Index,
		"declared", claim.DeclaredAmount,
		"variant", string(claim.Variant),
	)

	settled := true
	if err := u.Settler.Settle(ctx, claim); err != nil {
		// The claim is already committed; the settlement retrier finishes it
		// unless the settler parked it for refund.
		settled = false
		if current, getErr := u.Campaigns.GetClaim(ctx, claim.ClaimID); getErr == nil {
			claim = current
		}
	} else {
		claim.SettlementStatus = entities.SettlementSettled
	}

	return ClaimAirdropResult{
		Claim:   claim,
		Created: true,
		Settled: settled,
	}, nil
}

func (u ClaimAirdropUseCase) checkVariant(
	ctx context.Context,
	campaign entities.Campaign,
	cmd ClaimAirdropCommand,
	address entities.Address,
) error {
	switch cmd.Variant {
	case entities.ClaimVariantLock:
		if !campaign.LockDurationAllowed(cmd.LockDuration) {
			return domainerrors.ErrInvalidLockDuration
		}
	case entities.ClaimVariantVesting:
		if u.Vesting == nil {
			return domainerrors.ErrInvalidClaimRequest
		}
		exists, err := u.Vesting.HasPosition(ctx, address.String())
		if err != nil {
			return err
		}
		if exists {
			return domainerrors.ErrAlreadyHasPosition
		}
	}
	return nil
}

func (u ClaimAirdropUseCase) putIdempotency(ctx context.Context, key string, requestHash string, claimID string, now time.Time) error {
	if key == "" {
		return nil
	}
	ttl := u.IdempotencyTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return u.Idempotency.Put(ctx, ports.IdempotencyRecord{
		Key:         key,
		RequestHash: requestHash,
		ClaimID:     claimID,
		ExpiresAt:   now.Add(ttl),
	})
}

type indexLookup struct {
	index   uint64
	claimed bool
}

func (l indexLookup) Contains(index uint64) bool {
	return l.claimed && index == l.index
}

func isClaimRejection(err error) bool {
	return errors.Is(err, domainerrors.ErrAlreadyClaimed) ||
		errors.Is(err, domainerrors.ErrAllocationExceeded) ||
		errors.Is(err, domainerrors.ErrAlreadyHasPosition) ||
		errors.Is(err, domainerrors.ErrEnded)
}

func hashRequest(cmd ClaimAirdropCommand, address entities.Address) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d|%d|%s|%d|%s",
		cmd.CampaignID,
		address.String(),
		cmd.Amount,
		cmd.Index,
		cmd.Variant,
		int64(cmd.LockDuration/time.Second),
		cmd.RequestID,
	)))
	return hex.EncodeToString(sum[:])
}
