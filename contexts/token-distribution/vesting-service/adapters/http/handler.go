package httpadapter

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	application "dropvest/contexts/token-distribution/vesting-service/application"
	"dropvest/contexts/token-distribution/vesting-service/application/commands"
	"dropvest/contexts/token-distribution/vesting-service/application/queries"
	"dropvest/contexts/token-distribution/vesting-service/domain/entities"
	domainerrors "dropvest/contexts/token-distribution/vesting-service/domain/errors"
	httptransport "dropvest/contexts/token-distribution/vesting-service/transport/http"
)

type Handler struct {
	CreateSchedule commands.CreateScheduleUseCase
	CreatePosition commands.CreatePositionUseCase
	Release        commands.ReleaseUseCase
	WithdrawLock   commands.WithdrawLockUseCase
	GetSchedule    queries.GetScheduleUseCase
	GetPosition    queries.GetPositionUseCase
	ListLocks      queries.ListLocksUseCase
	Logger         *slog.Logger
}

// CreateScheduleHandler godoc
// @Summary Create a vesting schedule
// @Description Schedules are immutable. The first schedule, or one flagged
// @Description is_default, becomes the shared default used by vesting claims.
// @Tags vesting
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body httptransport.CreateScheduleRequest true "Schedule definition"
// @Success 201 {object} httptransport.ScheduleResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Router /v1/vesting/schedules [post]
func (h Handler) CreateScheduleHandler(ctx context.Context, req httptransport.CreateScheduleRequest) (httptransport.ScheduleResponse, error) {
	logger := application.ResolveLogger(h.Logger)
	cliff, cliffOK := secondsToDuration(req.CliffDurationSec)
	period, periodOK := secondsToDuration(req.PeriodDurationSec)
	if !cliffOK || !periodOK {
		return httptransport.ScheduleResponse{}, domainerrors.ErrInvalidSchedule
	}
	schedule, err := h.CreateSchedule.Execute(ctx, commands.CreateScheduleCommand{
		ScheduleID:       req.ScheduleID,
		Name:             req.Name,
		TGEBasisPoints:   req.TGEBasisPoints,
		CliffBasisPoints: req.CliffBasisPoints,
		CliffDuration:    cliff,
		PeriodDuration:   period,
		NumPeriods:       req.NumPeriods,
		IsDefault:        req.IsDefault,
	})
	if err != nil {
		logger.Warn("create schedule request failed",
			"event", "http_create_schedule_failed",
			"module", "token-distribution/vesting-service",
			"layer", "transport",
			"error", err.Error(),
		)
		return httptransport.ScheduleResponse{}, err
	}
	return httptransport.ScheduleResponse{Item: mapSchedule(schedule)}, nil
}

// GetScheduleHandler godoc
// @Summary Get a vesting schedule
// @Tags vesting
// @Produce json
// @Param schedule_id path string true "Schedule id or \"default\""
// @Success 200 {object} httptransport.ScheduleResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Router /v1/vesting/schedules/{schedule_id} [get]
func (h Handler) GetScheduleHandler(ctx context.Context, scheduleID string) (httptransport.ScheduleResponse, error) {
	schedule, err := h.GetSchedule.Execute(ctx, scheduleID)
	if err != nil {
		return httptransport.ScheduleResponse{}, err
	}
	return httptransport.ScheduleResponse{Item: mapSchedule(schedule)}, nil
}

// CreatePositionHandler godoc
// @Summary Open an admin-funded vesting position
// @Tags vesting
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body httptransport.CreatePositionRequest true "Position definition"
// @Success 201 {object} httptransport.PositionResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Failure 422 {object} httptransport.ErrorResponse
// @Router /v1/vesting/positions [post]
func (h Handler) CreatePositionHandler(ctx context.Context, adminID string, req httptransport.CreatePositionRequest) (httptransport.PositionResponse, error) {
	total, err := strconv.ParseUint(strings.TrimSpace(req.TotalAmount), 10, 64)
	if err != nil {
		return httptransport.PositionResponse{}, domainerrors.ErrInvalidPosition
	}
	var start time.Time
	if strings.TrimSpace(req.StartTime) != "" {
		if start, err = time.Parse(time.RFC3339, req.StartTime); err != nil {
			return httptransport.PositionResponse{}, domainerrors.ErrInvalidPosition
		}
	}
	position, err := h.CreatePosition.Execute(ctx, commands.CreatePositionCommand{
		ActorID:        adminID,
		Beneficiary:    req.Beneficiary,
		TotalAmount:    total,
		ScheduleID:     req.ScheduleID,
		StartTime:      start,
		FundingAccount: req.FundingAccount,
	})
	if err != nil {
		return httptransport.PositionResponse{}, err
	}
	return httptransport.PositionResponse{Item: mapPosition(position)}, nil
}

// GetPositionHandler godoc
// @Summary Get a beneficiary's vesting position and unlock state
// @Tags vesting
// @Produce json
// @Param beneficiary path string true "Beneficiary account"
// @Success 200 {object} httptransport.PositionStatusResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Router /v1/vesting/positions/{beneficiary} [get]
func (h Handler) GetPositionHandler(ctx context.Context, beneficiary string) (httptransport.PositionStatusResponse, error) {
	view, err := h.GetPosition.Execute(ctx, beneficiary)
	if err != nil {
		return httptransport.PositionStatusResponse{}, err
	}
	resp := httptransport.PositionStatusResponse{
		Item:       mapPosition(view.Position),
		Unlocked:   strconv.FormatUint(view.Unlocked, 10),
		Releasable: strconv.FormatUint(view.Releasable, 10),
		AsOf:       view.AsOf.UTC().Format(time.RFC3339),
	}
	if !view.NextUnlockTime.IsZero() {
		next := view.NextUnlockTime.UTC().Format(time.RFC3339)
		resp.NextUnlockTime = &next
	}
	return resp, nil
}

// ReleaseHandler godoc
// @Summary Release the unlocked amount of a position
// @Tags vesting
// @Produce json
// @Param beneficiary path string true "Beneficiary account"
// @Success 200 {object} httptransport.ReleaseResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Failure 422 {object} httptransport.ErrorResponse
// @Router /v1/vesting/positions/{beneficiary}/release [post]
func (h Handler) ReleaseHandler(ctx context.Context, beneficiary string) (httptransport.ReleaseResponse, error) {
	result, err := h.Release.Execute(ctx, commands.ReleaseCommand{Beneficiary: beneficiary})
	if err != nil {
		return httptransport.ReleaseResponse{}, err
	}
	return httptransport.ReleaseResponse{
		Item: mapPosition(result.Position),
		Release: httptransport.ReleaseDTO{
			ReleaseID:        result.Release.ReleaseID,
			PositionID:       result.Release.PositionID,
			Amount:           strconv.FormatUint(result.Release.Amount, 10),
			ReleasedBefore:   strconv.FormatUint(result.Release.ReleasedBefore, 10),
			SettlementStatus: string(result.Release.SettlementStatus),
			ReleasedAt:       result.Release.ReleasedAt.UTC().Format(time.RFC3339),
		},
		Settled: result.Settled,
	}, nil
}

// ListLocksHandler godoc
// @Summary List token locks of an owner
// @Tags vesting
// @Produce json
// @Param owner query string true "Owner account"
// @Success 200 {object} httptransport.ListLocksResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Router /v1/vesting/locks [get]
func (h Handler) ListLocksHandler(ctx context.Context, owner string) (httptransport.ListLocksResponse, error) {
	locks, err := h.ListLocks.Execute(ctx, owner)
	if err != nil {
		return httptransport.ListLocksResponse{}, err
	}
	items := make([]httptransport.LockDTO, 0, len(locks))
	for _, lock := range locks {
		items = append(items, mapLock(lock))
	}
	return httptransport.ListLocksResponse{Items: items}, nil
}

// WithdrawLockHandler godoc
// @Summary Withdraw an expired token lock
// @Tags vesting
// @Produce json
// @Param lock_id path string true "Lock id"
// @Param X-User-Id header string true "Owner account"
// @Success 200 {object} httptransport.LockResponse
// @Failure 403 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Router /v1/vesting/locks/{lock_id}/withdraw [post]
func (h Handler) WithdrawLockHandler(ctx context.Context, owner string, lockID string) (httptransport.LockResponse, error) {
	lock, err := h.WithdrawLock.Execute(ctx, commands.WithdrawLockCommand{
		Owner:  owner,
		LockID: lockID,
	})
	if err != nil {
		return httptransport.LockResponse{}, err
	}
	return httptransport.LockResponse{Item: mapLock(lock)}, nil
}

func mapSchedule(schedule entities.Schedule) httptransport.ScheduleDTO {
	return httptransport.ScheduleDTO{
		ScheduleID:        schedule.ScheduleID,
		Name:              schedule.Name,
		TGEBasisPoints:    schedule.TGEBasisPoints,
		CliffBasisPoints:  schedule.CliffBasisPoints,
		CliffDurationSec:  int64(schedule.CliffDuration / time.Second),
		PeriodDurationSec: int64(schedule.PeriodDuration / time.Second),
		NumPeriods:        schedule.NumPeriods,
		IsDefault:         schedule.IsDefault,
		CreatedAt:         schedule.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func mapPosition(position entities.Position) httptransport.PositionDTO {
	return httptransport.PositionDTO{
		PositionID:     position.PositionID,
		Beneficiary:    position.Beneficiary,
		ScheduleID:     position.ScheduleID,
		TotalAmount:    strconv.FormatUint(position.TotalAmount, 10),
		ReleasedAmount: strconv.FormatUint(position.ReleasedAmount, 10),
		StartTime:      position.StartTime.UTC().Format(time.RFC3339),
		Source:         string(position.Source),
		Completed:      position.IsCompleted(),
		CreatedAt:      position.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      position.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func mapLock(lock entities.TokenLock) httptransport.LockDTO {
	item := httptransport.LockDTO{
		LockID:    lock.LockID,
		Owner:     lock.Owner,
		Amount:    strconv.FormatUint(lock.Amount, 10),
		UnlockAt:  lock.UnlockAt.UTC().Format(time.RFC3339),
		SourceRef: lock.SourceRef,
		CreatedAt: lock.CreatedAt.UTC().Format(time.RFC3339),
	}
	if lock.WithdrawnAt != nil {
		item.WithdrawnAt = lock.WithdrawnAt.UTC().Format(time.RFC3339)
	}
	return item
}

func secondsToDuration(seconds int64) (time.Duration, bool) {
	if seconds < 0 || seconds > math.MaxInt64/int64(time.Second) {
		return 0, false
	}
	return time.Duration(seconds) * time.Second, true
}
