package commands

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	application "dropvest/contexts/token-distribution/vesting-service/application"
	"dropvest/contexts/token-distribution/vesting-service/domain/entities"
	domainerrors "dropvest/contexts/token-distribution/vesting-service/domain/errors"
	"dropvest/contexts/token-distribution/vesting-service/ports"
)

type CreateScheduleCommand struct {
	ScheduleID       string
	Name             string
	TGEBasisPoints   uint16
	CliffBasisPoints uint16
	CliffDuration    time.Duration
	PeriodDuration   time.Duration
	NumPeriods       uint32
	IsDefault        bool
}

type CreateScheduleUseCase struct {
	Schedules   ports.ScheduleRepository
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

// Execute stores a new immutable schedule. The first schedule ever created
// becomes the default even when not asked to.
func (u CreateScheduleUseCase) Execute(ctx context.Context, cmd CreateScheduleCommand) (entities.Schedule, error) {
	logger := application.ResolveLogger(u.Logger)

	_, err := u.Schedules.GetDefaultSchedule(ctx)
	switch {
	case err == nil:
		if cmd.IsDefault {
			return entities.Schedule{}, domainerrors.ErrDefaultScheduleExists
		}
	case errors.Is(err, domainerrors.ErrNoDefaultSchedule):
		cmd.IsDefault = true
	default:
		return entities.Schedule{}, err
	}

	scheduleID := strings.TrimSpace(cmd.ScheduleID)
	if scheduleID == "" {
		scheduleID, err = u.IDGenerator.NewID(ctx)
		if err != nil {
			return entities.Schedule{}, err
		}
	}
	schedule, err := entities.NewSchedule(entities.NewScheduleInput{
		ScheduleID:       scheduleID,
		Name:             cmd.Name,
		TGEBasisPoints:   cmd.TGEBasisPoints,
		CliffBasisPoints: cmd.CliffBasisPoints,
		CliffDuration:    cmd.CliffDuration,
		PeriodDuration:   cmd.PeriodDuration,
		NumPeriods:       cmd.NumPeriods,
		IsDefault:        cmd.IsDefault,
	}, now(u.Clock))
	if err != nil {
		return entities.Schedule{}, err
	}

	if err := u.Schedules.CreateSchedule(ctx, schedule); err != nil {
		logger.Error("create vesting schedule failed",
			"event", "vesting_schedule_create_failed",
			"module", "token-distribution/vesting-service",
			"layer", "application",
			"schedule_id", schedule.ScheduleID,
			"error", err.Error(),
		)
		return entities.Schedule{}, err
	}

	logger.Info("vesting schedule created",
		"event", "vesting_schedule_created",
		"module", "token-distribution/vesting-service",
		"layer", "application",
		"schedule_id", schedule.ScheduleID,
		"is_default", schedule.IsDefault,
		"tge_bp", schedule.TGEBasisPoints,
		"cliff_bp", schedule.CliffBasisPoints,
		"num_periods", schedule.NumPeriods,
	)
	return schedule, nil
}

func now(clock ports.Clock) time.Time {
	if clock == nil {
		return time.Now().UTC()
	}
	return clock.Now().UTC()
}
