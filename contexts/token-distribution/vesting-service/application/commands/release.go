package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	application "dropvest/contexts/token-distribution/vesting-service/application"
	"dropvest/contexts/token-distribution/vesting-service/domain/entities"
	domainerrors "dropvest/contexts/token-distribution/vesting-service/domain/errors"
	"dropvest/contexts/token-distribution/vesting-service/domain/services"
	"dropvest/contexts/token-distribution/vesting-service/ports"
	contractsv1 "dropvest/contracts/gen/events/v1"
	ledgerv1 "dropvest/contracts/gen/ledger/v1"
)

type ReleaseCommand struct {
	Beneficiary string
}

type ReleaseResult struct {
	Position entities.Position
	Release  entities.ReleaseRecord
	Settled  bool
}

type ReleaseUseCase struct {
	Schedules   ports.ScheduleRepository
	Positions   ports.PositionRepository
	Settler     ReleaseSettler
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

// Execute books the releasable delta against the position and then moves it
// out of escrow. The booking is compare-and-set on the released amount; the
// transfer is retried by the release settlement worker if it fails here.
func (u ReleaseUseCase) Execute(ctx context.Context, cmd ReleaseCommand) (ReleaseResult, error) {
	logger := application.ResolveLogger(u.Logger)
	beneficiary := entities.NormalizeAccount(cmd.Beneficiary)
	if beneficiary == "" {
		return ReleaseResult{}, domainerrors.ErrInvalidPosition
	}

	position, err := u.Positions.GetPosition(ctx, beneficiary)
	if err != nil {
		return ReleaseResult{}, err
	}
	schedule, err := u.Schedules.GetSchedule(ctx, position.ScheduleID)
	if err != nil {
		return ReleaseResult{}, err
	}

	current := now(u.Clock)
	releasedBefore := position.ReleasedAmount
	amount, err := services.Release(schedule, &position, current)
	if err != nil {
		if IsInformational(err) {
			logger.Debug("vesting release skipped",
				"event", "vesting_release_skipped",
				"module", "token-distribution/vesting-service",
				"layer", "application",
				"position_id", position.PositionID,
				"beneficiary", beneficiary,
				"reason", err.Error(),
			)
		}
		return ReleaseResult{}, err
	}

	releaseID, err := u.IDGenerator.NewID(ctx)
	if err != nil {
		return ReleaseResult{}, err
	}
	eventID, err := u.IDGenerator.NewID(ctx)
	if err != nil {
		return ReleaseResult{}, err
	}
	release := entities.ReleaseRecord{
		ReleaseID:        releaseID,
		PositionID:       position.PositionID,
		Beneficiary:      beneficiary,
		EscrowAccount:    position.EscrowAccount,
		Amount:           amount,
		ReleasedBefore:   releasedBefore,
		SettlementStatus: entities.SettlementPending,
		ReleasedAt:       current,
	}
	event := ports.DomainEvent{
		EventID:      eventID,
		EventType:    contractsv1.EventTypeVestingReleased,
		PartitionKey: beneficiary,
		OccurredAt:   current,
		Data: map[string]string{
			"release_id":      releaseID,
			"position_id":     position.PositionID,
			"beneficiary":     beneficiary,
			"amount":          strconv.FormatUint(amount, 10),
			"released_amount": strconv.FormatUint(position.ReleasedAmount, 10),
			"total_amount":    strconv.FormatUint(position.TotalAmount, 10),
		},
	}

	if err := u.Positions.CommitRelease(ctx, ports.ReleaseCommit{
		Position:         position,
		ExpectedReleased: releasedBefore,
		Release:          release,
		Event:            event,
	}); err != nil {
		level := slog.LevelError
		if errors.Is(err, domainerrors.ErrConcurrentRelease) {
			level = slog.LevelWarn
		}
		logger.Log(ctx, level, "vesting release commit failed",
			"event", "vesting_release_commit_failed",
			"module", "token-distribution/vesting-service",
			"layer", "application",
			"position_id", position.PositionID,
			"beneficiary", beneficiary,
			"error", err.Error(),
		)
		return ReleaseResult{}, err
	}

	logger.Info("vesting release committed",
		"event", "vesting_release_committed",
		"module", "token-distribution/vesting-service",
		"layer", "application",
		"position_id", position.PositionID,
		"release_id", release.ReleaseID,
		"beneficiary", beneficiary,
		"amount", amount,
		"released_amount", position.ReleasedAmount,
	)

	settled := true
	if err := u.Settler.Settle(ctx, release); err != nil {
		settled = false
	} else {
		release.SettlementStatus = entities.SettlementSettled
	}
	return ReleaseResult{Position: position, Release: release, Settled: settled}, nil
}

// ReleaseSettler moves a committed release out of the beneficiary's vesting
// escrow. The ledger reference is position id plus the released amount before
// the release, which is unique per position.
type ReleaseSettler struct {
	Positions ports.PositionRepository
	Ledger    ports.TokenLedger
	Clock     ports.Clock
	Logger    *slog.Logger
}

func (s ReleaseSettler) Settle(ctx context.Context, release entities.ReleaseRecord) error {
	logger := application.ResolveLogger(s.Logger)
	if release.IsSettled() {
		return nil
	}

	escrow := ledgerv1.EscrowAccount(ledgerv1.EscrowKindVesting, release.Beneficiary)
	if escrow.Account != release.EscrowAccount {
		return s.fail(logger, release, domainerrors.ErrForbidden)
	}
	reference := fmt.Sprintf("vesting:%s:%d", release.PositionID, release.ReleasedBefore)
	asset, err := s.Ledger.Withdraw(ctx, escrow.Account, release.Amount, reference)
	if err == nil {
		err = s.Ledger.Deposit(ctx, escrow.Owner, asset)
	}
	if err != nil {
		return s.fail(logger, release, err)
	}
	if err := s.Positions.MarkReleaseSettled(ctx, release.ReleaseID, now(s.Clock)); err != nil {
		return s.fail(logger, release, err)
	}

	logger.Info("vesting release settled",
		"event", "vesting_release_settled",
		"module", "token-distribution/vesting-service",
		"layer", "application",
		"release_id", release.ReleaseID,
		"position_id", release.PositionID,
		"amount", release.Amount,
	)
	return nil
}

func (s ReleaseSettler) fail(logger *slog.Logger, release entities.ReleaseRecord, err error) error {
	logger.Error("vesting release settlement failed",
		"event", "vesting_release_settlement_failed",
		"module", "token-distribution/vesting-service",
		"layer", "application",
		"release_id", release.ReleaseID,
		"position_id", release.PositionID,
		"error", err.Error(),
	)
	return fmt.Errorf("settle release %s: %w", release.ReleaseID, err)
}

// IsInformational reports vesting outcomes that are expected in normal
// operation and must not be treated as faults.
func IsInformational(err error) bool {
	return errors.Is(err, domainerrors.ErrNothingToClaim) ||
		errors.Is(err, domainerrors.ErrCompleted) ||
		errors.Is(err, domainerrors.ErrNotStarted)
}
