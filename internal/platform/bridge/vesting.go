// Package bridge adapts the vesting module to the ports the airdrop module
// consumes. It is the only place the two contexts meet.
package bridge

import (
	"context"
	"errors"
	"fmt"

	airdroperrors "dropvest/contexts/token-distribution/airdrop-service/domain/errors"
	airdropports "dropvest/contexts/token-distribution/airdrop-service/ports"
	vestingservice "dropvest/contexts/token-distribution/vesting-service"
	"dropvest/contexts/token-distribution/vesting-service/application/commands"
	vestingerrors "dropvest/contexts/token-distribution/vesting-service/domain/errors"
)

// Vesting implements airdropports.VestingGateway and airdropports.EscrowLocker.
type Vesting struct {
	module vestingservice.Module
}

var (
	_ airdropports.VestingGateway = Vesting{}
	_ airdropports.EscrowLocker   = Vesting{}
)

func NewVesting(module vestingservice.Module) Vesting {
	return Vesting{module: module}
}

func (v Vesting) HasPosition(ctx context.Context, beneficiary string) (bool, error) {
	return v.module.Positions.HasPosition(ctx, beneficiary)
}

func (v Vesting) OpenPosition(ctx context.Context, grant airdropports.VestingGrant) error {
	_, err := v.module.OpenPosition.Execute(ctx, commands.OpenPositionFromGrantCommand{
		Beneficiary:   grant.Beneficiary,
		Amount:        grant.Amount,
		StartTime:     grant.StartTime,
		EscrowAccount: grant.EscrowAccount,
		SourceRef:     grant.SourceRef,
	})
	if errors.Is(err, vestingerrors.ErrAlreadyHasPosition) {
		return fmt.Errorf("%w: %w", airdroperrors.ErrAlreadyHasPosition, err)
	}
	return err
}

func (v Vesting) CreateLock(ctx context.Context, req airdropports.LockRequest) error {
	_, err := v.module.CreateLock.Execute(ctx, commands.CreateLockCommand{
		Owner:         req.Owner,
		Amount:        req.Amount,
		Duration:      req.Duration,
		EscrowAccount: req.EscrowAccount,
		SourceRef:     req.SourceRef,
	})
	return err
}
