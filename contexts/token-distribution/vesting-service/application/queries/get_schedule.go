package queries

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "dropvest/contexts/token-distribution/vesting-service/application"
	"dropvest/contexts/token-distribution/vesting-service/domain/entities"
	domainerrors "dropvest/contexts/token-distribution/vesting-service/domain/errors"
	"dropvest/contexts/token-distribution/vesting-service/ports"
)

type GetScheduleUseCase struct {
	Schedules ports.ScheduleRepository
	Logger    *slog.Logger
}

// Execute loads a schedule by id; the literal id "default" resolves to the
// shared default schedule.
func (u GetScheduleUseCase) Execute(ctx context.Context, scheduleID string) (entities.Schedule, error) {
	logger := application.ResolveLogger(u.Logger)
	scheduleID = strings.TrimSpace(scheduleID)
	if scheduleID == "" {
		return entities.Schedule{}, domainerrors.ErrScheduleNotFound
	}
	var (
		schedule entities.Schedule
		err      error
	)
	if scheduleID == "default" {
		schedule, err = u.Schedules.GetDefaultSchedule(ctx)
	} else {
		schedule, err = u.Schedules.GetSchedule(ctx, scheduleID)
	}
	if err != nil {
		logger.Debug("get vesting schedule failed",
			"event", "vesting_get_schedule_failed",
			"module", "token-distribution/vesting-service",
			"layer", "application",
			"schedule_id", scheduleID,
			"error", err.Error(),
		)
		return entities.Schedule{}, err
	}
	return schedule, nil
}

func now(clock ports.Clock) time.Time {
	if clock == nil {
		return time.Now().UTC()
	}
	return clock.Now().UTC()
}
