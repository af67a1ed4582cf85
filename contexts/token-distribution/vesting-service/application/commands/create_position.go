package commands

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	application "dropvest/contexts/token-distribution/vesting-service/application"
	"dropvest/contexts/token-distribution/vesting-service/domain/entities"
	domainerrors "dropvest/contexts/token-distribution/vesting-service/domain/errors"
	"dropvest/contexts/token-distribution/vesting-service/ports"
	contractsv1 "dropvest/contracts/gen/events/v1"
	ledgerv1 "dropvest/contracts/gen/ledger/v1"
)

type CreatePositionCommand struct {
	ActorID        string
	Beneficiary    string
	TotalAmount    uint64
	ScheduleID     string
	StartTime      time.Time
	FundingAccount string
}

// CreatePositionUseCase opens an admin-funded position. Funding moves into the
// beneficiary's vesting escrow before the position is written; the funding
// reference is keyed by beneficiary, so retrying a failed request never funds
// twice.
type CreatePositionUseCase struct {
	Schedules   ports.ScheduleRepository
	Positions   ports.PositionRepository
	Ledger      ports.TokenLedger
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

func (u CreatePositionUseCase) Execute(ctx context.Context, cmd CreatePositionCommand) (entities.Position, error) {
	logger := application.ResolveLogger(u.Logger)
	beneficiary := entities.NormalizeAccount(cmd.Beneficiary)
	if beneficiary == "" || strings.TrimSpace(cmd.ActorID) == "" || cmd.TotalAmount == 0 {
		return entities.Position{}, domainerrors.ErrInvalidPosition
	}
	funding := strings.TrimSpace(cmd.FundingAccount)
	if funding == "" {
		funding = cmd.ActorID
	}

	exists, err := u.Positions.HasPosition(ctx, beneficiary)
	if err != nil {
		return entities.Position{}, err
	}
	if exists {
		return entities.Position{}, domainerrors.ErrAlreadyHasPosition
	}

	schedule, err := resolveSchedule(ctx, u.Schedules, cmd.ScheduleID)
	if err != nil {
		return entities.Position{}, err
	}
	positionID, err := u.IDGenerator.NewID(ctx)
	if err != nil {
		return entities.Position{}, err
	}
	current := now(u.Clock)
	escrow := ledgerv1.EscrowAccount(ledgerv1.EscrowKindVesting, beneficiary)
	position, err := entities.NewPosition(entities.NewPositionInput{
		PositionID:    positionID,
		Beneficiary:   beneficiary,
		ScheduleID:    schedule.ScheduleID,
		TotalAmount:   cmd.TotalAmount,
		StartTime:     cmd.StartTime,
		EscrowAccount: escrow.Account,
		Source:        entities.PositionSourceAdmin,
		SourceRef:     "admin:" + beneficiary,
	}, current)
	if err != nil {
		return entities.Position{}, err
	}

	asset, err := u.Ledger.Withdraw(ctx, funding, position.TotalAmount, "vesting:fund:"+beneficiary)
	if err == nil {
		err = u.Ledger.Deposit(ctx, escrow.Account, asset)
	}
	if err != nil {
		logger.Error("vesting position funding failed",
			"event", "vesting_position_funding_failed",
			"module", "token-distribution/vesting-service",
			"layer", "application",
			"beneficiary", beneficiary,
			"funding_account", funding,
			"amount", position.TotalAmount,
			"error", err.Error(),
		)
		return entities.Position{}, err
	}

	event, err := positionOpenedEvent(ctx, u.IDGenerator, position, current)
	if err != nil {
		return entities.Position{}, err
	}
	if err := u.Positions.CreatePosition(ctx, position, event); err != nil {
		logger.Error("create vesting position failed",
			"event", "vesting_position_create_failed",
			"module", "token-distribution/vesting-service",
			"layer", "application",
			"beneficiary", beneficiary,
			"error", err.Error(),
		)
		return entities.Position{}, err
	}

	logger.Info("vesting position opened",
		"event", "vesting_position_opened",
		"module", "token-distribution/vesting-service",
		"layer", "application",
		"position_id", position.PositionID,
		"beneficiary", beneficiary,
		"schedule_id", position.ScheduleID,
		"total_amount", position.TotalAmount,
		"source", string(position.Source),
	)
	return position, nil
}

type OpenPositionFromGrantCommand struct {
	Beneficiary   string
	Amount        uint64
	StartTime     time.Time
	EscrowAccount string
	SourceRef     string
}

// OpenPositionFromGrantUseCase opens the position for a vesting airdrop claim
// on the default schedule. The escrow is already funded by the claim
// settlement. Replaying the same SourceRef returns the existing position.
type OpenPositionFromGrantUseCase struct {
	Schedules   ports.ScheduleRepository
	Positions   ports.PositionRepository
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

func (u OpenPositionFromGrantUseCase) Execute(ctx context.Context, cmd OpenPositionFromGrantCommand) (entities.Position, error) {
	logger := application.ResolveLogger(u.Logger)
	sourceRef := strings.TrimSpace(cmd.SourceRef)
	if sourceRef == "" {
		return entities.Position{}, domainerrors.ErrInvalidPosition
	}

	if existing, found, err := u.Positions.GetPositionBySourceRef(ctx, sourceRef); err != nil {
		return entities.Position{}, err
	} else if found {
		return existing, nil
	}

	schedule, err := u.Schedules.GetDefaultSchedule(ctx)
	if err != nil {
		return entities.Position{}, err
	}
	positionID, err := u.IDGenerator.NewID(ctx)
	if err != nil {
		return entities.Position{}, err
	}
	current := now(u.Clock)
	position, err := entities.NewPosition(entities.NewPositionInput{
		PositionID:    positionID,
		Beneficiary:   cmd.Beneficiary,
		ScheduleID:    schedule.ScheduleID,
		TotalAmount:   cmd.Amount,
		StartTime:     cmd.StartTime,
		EscrowAccount: cmd.EscrowAccount,
		Source:        entities.PositionSourceAirdrop,
		SourceRef:     sourceRef,
	}, current)
	if err != nil {
		return entities.Position{}, err
	}
	event, err := positionOpenedEvent(ctx, u.IDGenerator, position, current)
	if err != nil {
		return entities.Position{}, err
	}

	if err := u.Positions.CreatePosition(ctx, position, event); err != nil {
		if errors.Is(err, domainerrors.ErrAlreadyHasPosition) {
			// Lost a race against a replay of the same grant.
			if existing, found, lookupErr := u.Positions.GetPositionBySourceRef(ctx, sourceRef); lookupErr == nil && found {
				return existing, nil
			}
		}
		logger.Error("open vesting position from grant failed",
			"event", "vesting_grant_position_failed",
			"module", "token-distribution/vesting-service",
			"layer", "application",
			"beneficiary", position.Beneficiary,
			"source_ref", sourceRef,
			"error", err.Error(),
		)
		return entities.Position{}, err
	}

	logger.Info("vesting position opened",
		"event", "vesting_position_opened",
		"module", "token-distribution/vesting-service",
		"layer", "application",
		"position_id", position.PositionID,
		"beneficiary", position.Beneficiary,
		"schedule_id", position.ScheduleID,
		"total_amount", position.TotalAmount,
		"source", string(position.Source),
		"source_ref", sourceRef,
	)
	return position, nil
}

func resolveSchedule(ctx context.Context, schedules ports.ScheduleRepository, scheduleID string) (entities.Schedule, error) {
	if strings.TrimSpace(scheduleID) == "" {
		return schedules.GetDefaultSchedule(ctx)
	}
	return schedules.GetSchedule(ctx, scheduleID)
}

func positionOpenedEvent(ctx context.Context, ids ports.IDGenerator, position entities.Position, occurredAt time.Time) (ports.DomainEvent, error) {
	eventID, err := ids.NewID(ctx)
	if err != nil {
		return ports.DomainEvent{}, err
	}
	return ports.DomainEvent{
		EventID:      eventID,
		EventType:    contractsv1.EventTypeVestingPositionNew,
		PartitionKey: position.Beneficiary,
		OccurredAt:   occurredAt,
		Data: map[string]string{
			"position_id":  position.PositionID,
			"beneficiary":  position.Beneficiary,
			"schedule_id":  position.ScheduleID,
			"total_amount": strconv.FormatUint(position.TotalAmount, 10),
			"start_time":   position.StartTime.Format(time.RFC3339),
			"source":       string(position.Source),
			"source_ref":   position.SourceRef,
		},
	}, nil
}
