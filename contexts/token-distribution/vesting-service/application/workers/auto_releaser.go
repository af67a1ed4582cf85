package workers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	application "dropvest/contexts/token-distribution/vesting-service/application"
	"dropvest/contexts/token-distribution/vesting-service/application/commands"
	"dropvest/contexts/token-distribution/vesting-service/domain/entities"
	domainerrors "dropvest/contexts/token-distribution/vesting-service/domain/errors"
	"dropvest/contexts/token-distribution/vesting-service/domain/services"
	"dropvest/contexts/token-distribution/vesting-service/ports"
)

type AutoReleaseSummary struct {
	Scanned  int
	Released int
	Skipped  int
	Failed   int
}

type releaseOutcome int

const (
	outcomeSkipped releaseOutcome = iota
	outcomeReleased
	outcomeFailed
)

// AutoReleaser sweeps open positions and releases whatever is unlocked.
// Positions with nothing releasable are skipped without touching storage;
// NothingToClaim and Completed are never counted as failures.
type AutoReleaser struct {
	Schedules ports.ScheduleRepository
	Positions ports.PositionRepository
	Release   commands.ReleaseUseCase
	Clock     ports.Clock
	BatchSize int
	Logger    *slog.Logger
}

func (a AutoReleaser) RunOnce(ctx context.Context) (AutoReleaseSummary, error) {
	logger := application.ResolveLogger(a.Logger)
	limit := a.BatchSize
	if limit <= 0 {
		limit = 200
	}

	summary := AutoReleaseSummary{}
	schedules := map[string]entities.Schedule{}
	afterID := ""
	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		page, err := a.Positions.ListOpenPositions(ctx, afterID, limit)
		if err != nil {
			logger.Error("list open positions failed",
				"event", "vesting_auto_release_list_failed",
				"module", "token-distribution/vesting-service",
				"layer", "worker",
				"error", err.Error(),
			)
			return summary, err
		}
		for _, position := range page {
			summary.Scanned++
			switch a.releaseOne(ctx, logger, schedules, position) {
			case outcomeReleased:
				summary.Released++
			case outcomeFailed:
				summary.Failed++
			default:
				summary.Skipped++
			}
		}
		if len(page) < limit {
			break
		}
		afterID = page[len(page)-1].PositionID
	}

	if summary.Released > 0 || summary.Failed > 0 {
		logger.Info("vesting auto-release cycle completed",
			"event", "vesting_auto_release_completed",
			"module", "token-distribution/vesting-service",
			"layer", "worker",
			"scanned", summary.Scanned,
			"released", summary.Released,
			"failed", summary.Failed,
		)
	}
	return summary, nil
}

func (a AutoReleaser) releaseOne(
	ctx context.Context,
	logger *slog.Logger,
	schedules map[string]entities.Schedule,
	position entities.Position,
) releaseOutcome {
	schedule, ok := schedules[position.ScheduleID]
	if !ok {
		loaded, err := a.Schedules.GetSchedule(ctx, position.ScheduleID)
		if err != nil {
			logger.Error("auto-release schedule lookup failed",
				"event", "vesting_auto_release_schedule_failed",
				"module", "token-distribution/vesting-service",
				"layer", "worker",
				"position_id", position.PositionID,
				"schedule_id", position.ScheduleID,
				"error", err.Error(),
			)
			return outcomeFailed
		}
		schedules[position.ScheduleID] = loaded
		schedule = loaded
	}

	current := time.Now().UTC()
	if a.Clock != nil {
		current = a.Clock.Now().UTC()
	}
	releasable, err := services.Releasable(schedule, position, current)
	if err != nil {
		return outcomeFailed
	}
	if releasable == 0 {
		return outcomeSkipped
	}

	if _, err := a.Release.Execute(ctx, commands.ReleaseCommand{Beneficiary: position.Beneficiary}); err != nil {
		if commands.IsInformational(err) || errors.Is(err, domainerrors.ErrConcurrentRelease) {
			logger.Debug("auto-release skipped position",
				"event", "vesting_auto_release_skipped",
				"module", "token-distribution/vesting-service",
				"layer", "worker",
				"position_id", position.PositionID,
				"reason", err.Error(),
			)
			return outcomeSkipped
		}
		return outcomeFailed
	}
	return outcomeReleased
}
