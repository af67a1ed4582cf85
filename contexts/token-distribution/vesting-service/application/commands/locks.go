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

type CreateLockCommand struct {
	Owner         string
	Amount        uint64
	Duration      time.Duration
	EscrowAccount string
	SourceRef     string
}

type CreateLockResult struct {
	Lock    entities.TokenLock
	Created bool
}

// CreateLockUseCase records a time lock over funds already moved into the
// owner's lock escrow. Replaying the same SourceRef returns the original lock.
type CreateLockUseCase struct {
	Locks       ports.LockRepository
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

func (u CreateLockUseCase) Execute(ctx context.Context, cmd CreateLockCommand) (CreateLockResult, error) {
	logger := application.ResolveLogger(u.Logger)
	sourceRef := strings.TrimSpace(cmd.SourceRef)
	if sourceRef == "" {
		return CreateLockResult{}, domainerrors.ErrInvalidLock
	}
	if existing, found, err := u.Locks.GetLockBySourceRef(ctx, sourceRef); err != nil {
		return CreateLockResult{}, err
	} else if found {
		return CreateLockResult{Lock: existing}, nil
	}

	lockID, err := u.IDGenerator.NewID(ctx)
	if err != nil {
		return CreateLockResult{}, err
	}
	current := now(u.Clock)
	escrowAccount := strings.TrimSpace(cmd.EscrowAccount)
	if escrowAccount == "" {
		escrowAccount = ledgerv1.EscrowAccount(ledgerv1.EscrowKindLock, entities.NormalizeAccount(cmd.Owner)).Account
	}
	lock, err := entities.NewLock(entities.NewLockInput{
		LockID:        lockID,
		Owner:         cmd.Owner,
		Amount:        cmd.Amount,
		Duration:      cmd.Duration,
		EscrowAccount: escrowAccount,
		SourceRef:     sourceRef,
	}, current)
	if err != nil {
		return CreateLockResult{}, err
	}

	eventID, err := u.IDGenerator.NewID(ctx)
	if err != nil {
		return CreateLockResult{}, err
	}
	event := ports.DomainEvent{
		EventID:      eventID,
		EventType:    contractsv1.EventTypeTokenLockCreated,
		PartitionKey: lock.Owner,
		OccurredAt:   current,
		Data: map[string]string{
			"lock_id":    lock.LockID,
			"owner":      lock.Owner,
			"amount":     strconv.FormatUint(lock.Amount, 10),
			"unlock_at":  lock.UnlockAt.Format(time.RFC3339),
			"source_ref": lock.SourceRef,
		},
	}
	if err := u.Locks.CreateLock(ctx, lock, event); err != nil {
		if errors.Is(err, domainerrors.ErrLockExists) {
			if existing, found, lookupErr := u.Locks.GetLockBySourceRef(ctx, sourceRef); lookupErr == nil && found {
				return CreateLockResult{Lock: existing}, nil
			}
		}
		logger.Error("create token lock failed",
			"event", "vesting_lock_create_failed",
			"module", "token-distribution/vesting-service",
			"layer", "application",
			"owner", lock.Owner,
			"source_ref", sourceRef,
			"error", err.Error(),
		)
		return CreateLockResult{}, err
	}

	logger.Info("token lock created",
		"event", "vesting_lock_created",
		"module", "token-distribution/vesting-service",
		"layer", "application",
		"lock_id", lock.LockID,
		"owner", lock.Owner,
		"amount", lock.Amount,
		"unlock_at", lock.UnlockAt,
	)
	return CreateLockResult{Lock: lock, Created: true}, nil
}

type WithdrawLockCommand struct {
	Owner  string
	LockID string
}

// WithdrawLockUseCase pays an expired lock back to its owner. The transfer
// runs first with a reference derived from the lock id, so a retry after a
// failed mark never pays twice.
type WithdrawLockUseCase struct {
	Locks  ports.LockRepository
	Ledger ports.TokenLedger
	Clock  ports.Clock
	Logger *slog.Logger
}

func (u WithdrawLockUseCase) Execute(ctx context.Context, cmd WithdrawLockCommand) (entities.TokenLock, error) {
	logger := application.ResolveLogger(u.Logger)
	if strings.TrimSpace(cmd.LockID) == "" || entities.NormalizeAccount(cmd.Owner) == "" {
		return entities.TokenLock{}, domainerrors.ErrInvalidLock
	}
	lock, err := u.Locks.GetLock(ctx, cmd.LockID)
	if err != nil {
		return entities.TokenLock{}, err
	}
	current := now(u.Clock)
	if err := lock.CheckWithdraw(cmd.Owner, current); err != nil {
		return entities.TokenLock{}, err
	}

	asset, err := u.Ledger.Withdraw(ctx, lock.EscrowAccount, lock.Amount, "lock:"+lock.LockID+":withdraw")
	if err == nil {
		err = u.Ledger.Deposit(ctx, lock.Owner, asset)
	}
	if err != nil {
		logger.Error("token lock withdraw transfer failed",
			"event", "vesting_lock_withdraw_failed",
			"module", "token-distribution/vesting-service",
			"layer", "application",
			"lock_id", lock.LockID,
			"owner", lock.Owner,
			"error", err.Error(),
		)
		return entities.TokenLock{}, err
	}
	if err := u.Locks.MarkLockWithdrawn(ctx, lock.LockID, current); err != nil {
		return entities.TokenLock{}, err
	}
	lock.WithdrawnAt = &current

	logger.Info("token lock withdrawn",
		"event", "vesting_lock_withdrawn",
		"module", "token-distribution/vesting-service",
		"layer", "application",
		"lock_id", lock.LockID,
		"owner", lock.Owner,
		"amount", lock.Amount,
	)
	return lock, nil
}
