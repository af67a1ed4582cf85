package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	application "dropvest/contexts/token-distribution/airdrop-service/application"
	"dropvest/contexts/token-distribution/airdrop-service/domain/entities"
	domainerrors "dropvest/contexts/token-distribution/airdrop-service/domain/errors"
	"dropvest/contexts/token-distribution/airdrop-service/ports"
	ledgerv1 "dropvest/contracts/gen/ledger/v1"
)

// ClaimSettler moves the tokens for a committed claim. Every ledger call uses
// a reference derived from the claim id, so re-running a partially settled
// claim only applies the legs that did not land the first time.
type ClaimSettler struct {
	Campaigns ports.CampaignRepository
	Ledger    ports.TokenLedger
	Vesting   ports.VestingGateway
	Locker    ports.EscrowLocker
	Clock     ports.Clock
	Logger    *slog.Logger
}

func (s ClaimSettler) Settle(ctx context.Context, claim entities.ClaimRecord) error {
	logger := application.ResolveLogger(s.Logger)
	if claim.IsSettled() {
		return nil
	}

	campaign, err := s.Campaigns.GetCampaign(ctx, claim.CampaignID)
	if err != nil {
		return err
	}
	beneficiary := claim.Address.String()
	payout := claim.Payout

	if payout.Received > 0 {
		if err := s.transfer(ctx, campaign.TreasuryAccount, beneficiary, payout.Received, legReference(claim, "receive")); err != nil {
			return s.fail(logger, claim, "receive", err)
		}
	}
	if payout.Burned > 0 {
		asset, err := s.Ledger.Withdraw(ctx, campaign.TreasuryAccount, payout.Burned, legReference(claim, "burn"))
		if err != nil {
			return s.fail(logger, claim, "burn", err)
		}
		if err := s.Ledger.Burn(ctx, asset); err != nil {
			return s.fail(logger, claim, "burn", err)
		}
	}
	if payout.Vested > 0 {
		escrow := ledgerv1.EscrowAccount(ledgerv1.EscrowKindVesting, beneficiary)
		if err := s.transfer(ctx, campaign.TreasuryAccount, escrow.Account, payout.Vested, legReference(claim, "vest")); err != nil {
			return s.fail(logger, claim, "vest", err)
		}
		if err := s.Vesting.OpenPosition(ctx, ports.VestingGrant{
			Beneficiary:   beneficiary,
			Amount:        payout.Vested,
			StartTime:     claim.ClaimedAt,
			EscrowAccount: escrow.Account,
			SourceRef:     claim.ClaimID,
		}); err != nil {
			if errors.Is(err, domainerrors.ErrAlreadyHasPosition) {
				return s.park(ctx, logger, claim, err)
			}
			return s.fail(logger, claim, "open_position", err)
		}
	}
	if payout.Locked > 0 {
		escrow := ledgerv1.EscrowAccount(ledgerv1.EscrowKindLock, beneficiary)
		if err := s.transfer(ctx, campaign.TreasuryAccount, escrow.Account, payout.Locked, legReference(claim, "lock")); err != nil {
			return s.fail(logger, claim, "lock", err)
		}
		if err := s.Locker.CreateLock(ctx, ports.LockRequest{
			Owner:         beneficiary,
			Amount:        payout.Locked,
			Duration:      claim.LockDuration,
			EscrowAccount: escrow.Account,
			SourceRef:     claim.ClaimID,
		}); err != nil {
			return s.fail(logger, claim, "create_lock", err)
		}
	}

	if err := s.Campaigns.MarkClaimSettled(ctx, claim.ClaimID, now(s.Clock)); err != nil {
		return s.fail(logger, claim, "mark_settled", err)
	}

	logger.Info("airdrop claim settled",
		"event", "airdrop_claim_settled",
		"module", "token-distribution/airdrop-service",
		"layer", "application",
		"claim_id", claim.ClaimID,
		"campaign_id", claim.CampaignID,
		"variant", string(claim.Variant),
	)
	return nil
}

func (s ClaimSettler) transfer(ctx context.Context, from string, to string, amount uint64, reference string) error {
	asset, err := s.Ledger.Withdraw(ctx, from, amount, reference)
	if err != nil {
		return err
	}
	return s.Ledger.Deposit(ctx, to, asset)
}

func (s ClaimSettler) fail(logger *slog.Logger, claim entities.ClaimRecord, leg string, err error) error {
	logger.Error("airdrop claim settlement leg failed",
		"event", "airdrop_claim_settlement_failed",
		"module", "token-distribution/airdrop-service",
		"layer", "application",
		"claim_id", claim.ClaimID,
		"campaign_id", claim.CampaignID,
		"leg", leg,
		"error", err.Error(),
	)
	return fmt.Errorf("settle claim %s leg %s: %w", claim.ClaimID, leg, err)
}

// park handles a vesting grant that lost its beneficiary to a position opened
// elsewhere after the claim was committed. Retrying can never succeed, so the
// claim leaves the retry queue with its escrowed amount flagged for refund.
func (s ClaimSettler) park(ctx context.Context, logger *slog.Logger, claim entities.ClaimRecord, cause error) error {
	if err := s.Campaigns.MarkClaimRefundRequired(ctx, claim.ClaimID, now(s.Clock)); err != nil {
		return s.fail(logger, claim, "mark_refund_required", err)
	}
	logger.Error("airdrop claim requires refund",
		"event", "airdrop_claim_refund_required",
		"module", "token-distribution/airdrop-service",
		"layer", "application",
		"claim_id", claim.ClaimID,
		"campaign_id", claim.CampaignID,
		"beneficiary", claim.Address.String(),
		"escrowed", claim.Payout.Vested,
		"error", cause.Error(),
	)
	return fmt.Errorf("settle claim %s: %w", claim.ClaimID, cause)
}

func legReference(claim entities.ClaimRecord, leg string) string {
	return "airdrop:" + claim.ClaimID + ":" + leg
}
