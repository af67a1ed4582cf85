package workers

import (
	"context"
	"log/slog"

	application "dropvest/contexts/token-distribution/airdrop-service/application"
	"dropvest/contexts/token-distribution/airdrop-service/application/commands"
	"dropvest/contexts/token-distribution/airdrop-service/ports"
)

// SettlementRetrier re-drives committed claims whose ledger legs did not all
// land. Legs are idempotent by reference, so a claim may be retried any number
// of times.
type SettlementRetrier struct {
	Campaigns ports.CampaignRepository
	Settler   commands.ClaimSettler
	BatchSize int
	Logger    *slog.Logger
}

func (r SettlementRetrier) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(r.Logger)
	limit := r.BatchSize
	if limit <= 0 {
		limit = 50
	}

	pending, err := r.Campaigns.ListPendingSettlements(ctx, limit)
	if err != nil {
		logger.Error("list pending settlements failed",
			"event", "airdrop_settlement_list_failed",
			"module", "token-distribution/airdrop-service",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	settled := 0
	failed := 0
	for _, claim := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}
		// Settle logs each failing leg; keep going so one stuck claim does
		// not starve the rest of the batch.
		if err := r.Settler.Settle(ctx, claim); err != nil {
			failed++
			continue
		}
		settled++
	}

	if len(pending) > 0 {
		logger.Info("settlement retry cycle completed",
			"event", "airdrop_settlement_retry_completed",
			"module", "token-distribution/airdrop-service",
			"layer", "worker",
			"settled_count", settled,
			"failed_count", failed,
		)
	}
	return nil
}
