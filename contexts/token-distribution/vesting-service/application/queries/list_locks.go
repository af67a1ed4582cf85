package queries

import (
	"context"
	"log/slog"

	application "dropvest/contexts/token-distribution/vesting-service/application"
	"dropvest/contexts/token-distribution/vesting-service/domain/entities"
	domainerrors "dropvest/contexts/token-distribution/vesting-service/domain/errors"
	"dropvest/contexts/token-distribution/vesting-service/ports"
)

type ListLocksUseCase struct {
	Locks  ports.LockRepository
	Logger *slog.Logger
}

func (u ListLocksUseCase) Execute(ctx context.Context, owner string) ([]entities.TokenLock, error) {
	logger := application.ResolveLogger(u.Logger)
	owner = entities.NormalizeAccount(owner)
	if owner == "" {
		return nil, domainerrors.ErrInvalidLock
	}
	locks, err := u.Locks.ListLocksByOwner(ctx, owner)
	if err != nil {
		logger.Error("list token locks failed",
			"event", "vesting_list_locks_failed",
			"module", "token-distribution/vesting-service",
			"layer", "application",
			"owner", owner,
			"error", err.Error(),
		)
		return nil, err
	}
	return locks, nil
}
