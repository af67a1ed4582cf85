package workers

import (
	"context"
	"log/slog"

	application "dropvest/contexts/token-distribution/vesting-service/application"
	"dropvest/contexts/token-distribution/vesting-service/application/commands"
	"dropvest/contexts/token-distribution/vesting-service/ports"
)

// ReleaseRetrier settles releases whose escrow transfer did not land when
// they were committed.
type ReleaseRetrier struct {
	Positions ports.PositionRepository
	Settler   commands.ReleaseSettler
	BatchSize int
	Logger    *slog.Logger
}

func (r ReleaseRetrier) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(r.Logger)
	limit := r.BatchSize
	if limit <= 0 {
		limit = 50
	}
	pending, err := r.Positions.ListPendingReleases(ctx, limit)
	if err != nil {
		logger.Error("list pending releases failed",
			"event", "vesting_release_list_failed",
			"module", "token-distribution/vesting-service",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	settled := 0
	failed := 0
	for _, release := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.Settler.Settle(ctx, release); err != nil {
			failed++
			continue
		}
		settled++
	}
	if len(pending) > 0 {
		logger.Info("release retry cycle completed",
			"event", "vesting_release_retry_completed",
			"module", "token-distribution/vesting-service",
			"layer", "worker",
			"settled_count", settled,
			"failed_count", failed,
		)
	}
	return nil
}
