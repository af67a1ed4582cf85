package queries

import (
	"context"
	"log/slog"
	"time"

	application "dropvest/contexts/token-distribution/vesting-service/application"
	"dropvest/contexts/token-distribution/vesting-service/domain/entities"
	domainerrors "dropvest/contexts/token-distribution/vesting-service/domain/errors"
	"dropvest/contexts/token-distribution/vesting-service/domain/services"
	"dropvest/contexts/token-distribution/vesting-service/ports"
)

// PositionView is a position plus its unlock state at AsOf. A zero
// NextUnlockTime means nothing further is scheduled.
type PositionView struct {
	Position       entities.Position
	Schedule       entities.Schedule
	Unlocked       uint64
	Releasable     uint64
	NextUnlockTime time.Time
	AsOf           time.Time
}

type GetPositionUseCase struct {
	Schedules ports.ScheduleRepository
	Positions ports.PositionRepository
	Clock     ports.Clock
	Logger    *slog.Logger
}

func (u GetPositionUseCase) Execute(ctx context.Context, beneficiary string) (PositionView, error) {
	logger := application.ResolveLogger(u.Logger)
	beneficiary = entities.NormalizeAccount(beneficiary)
	if beneficiary == "" {
		return PositionView{}, domainerrors.ErrPositionNotFound
	}
	position, err := u.Positions.GetPosition(ctx, beneficiary)
	if err != nil {
		return PositionView{}, err
	}
	schedule, err := u.Schedules.GetSchedule(ctx, position.ScheduleID)
	if err != nil {
		logger.Error("vesting position schedule missing",
			"event", "vesting_position_schedule_missing",
			"module", "token-distribution/vesting-service",
			"layer", "application",
			"position_id", position.PositionID,
			"schedule_id", position.ScheduleID,
			"error", err.Error(),
		)
		return PositionView{}, err
	}

	current := now(u.Clock)
	unlocked, err := services.UnlockedAt(schedule, position, current)
	if err != nil {
		return PositionView{}, err
	}
	releasable, err := services.Releasable(schedule, position, current)
	if err != nil {
		return PositionView{}, err
	}
	if current.Before(position.StartTime) {
		unlocked = 0
	}
	return PositionView{
		Position:       position,
		Schedule:       schedule,
		Unlocked:       unlocked,
		Releasable:     releasable,
		NextUnlockTime: services.NextUnlockTime(schedule, position, current),
		AsOf:           current,
	}, nil
}
