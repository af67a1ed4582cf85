package services

import (
	"math/bits"
	"time"

	"dropvest/contexts/token-distribution/vesting-service/domain/entities"
	domainerrors "dropvest/contexts/token-distribution/vesting-service/domain/errors"
)

// UnlockedAt returns the cumulative amount a position may have released by
// now. The curve is a step function: TGE at start, the cliff tranche at
// start+cliff, then equal tranches at every whole period boundary. Boundary
// instants count as unlocked.
//
// Truncated per-period dust is folded into the final period, so a fully
// elapsed schedule always unlocks exactly TotalAmount.
func UnlockedAt(schedule entities.Schedule, position entities.Position, now time.Time) (uint64, error) {
	if err := schedule.Validate(); err != nil {
		return 0, err
	}
	total := position.TotalAmount
	tge, err := basisPointsOf(total, schedule.TGEBasisPoints)
	if err != nil {
		return 0, err
	}
	cliffEnd := schedule.CliffEnd(position.StartTime)
	if now.Before(cliffEnd) {
		return tge, nil
	}

	cliff, err := basisPointsOf(total, schedule.CliffBasisPoints)
	if err != nil {
		return 0, err
	}
	upfront, carry := bits.Add64(tge, cliff, 0)
	if carry != 0 || upfront > total {
		return 0, domainerrors.ErrArithmeticOverflow
	}

	periodsDone := PeriodsElapsed(schedule, position.StartTime, now)
	if periodsDone >= uint64(schedule.NumPeriods) {
		return total, nil
	}
	perPeriod := (total - upfront) / uint64(schedule.NumPeriods)
	hi, vested := bits.Mul64(perPeriod, periodsDone)
	if hi != 0 {
		return 0, domainerrors.ErrArithmeticOverflow
	}
	unlocked, carry := bits.Add64(upfront, vested, 0)
	if carry != 0 || unlocked > total {
		return 0, domainerrors.ErrArithmeticOverflow
	}
	return unlocked, nil
}

// PeriodsElapsed counts whole periods completed since the cliff ended, capped
// at the schedule's period count.
func PeriodsElapsed(schedule entities.Schedule, start time.Time, now time.Time) uint64 {
	cliffEnd := schedule.CliffEnd(start)
	if now.Before(cliffEnd) {
		return 0
	}
	elapsed := now.Sub(cliffEnd)
	done := uint64(elapsed / schedule.PeriodDuration)
	if done > uint64(schedule.NumPeriods) {
		return uint64(schedule.NumPeriods)
	}
	return done
}

// Releasable is the unlocked amount not yet released. Before the start time
// nothing is releasable, including the TGE tranche.
func Releasable(schedule entities.Schedule, position entities.Position, now time.Time) (uint64, error) {
	if now.Before(position.StartTime) {
		return 0, nil
	}
	unlocked, err := UnlockedAt(schedule, position, now)
	if err != nil {
		return 0, err
	}
	if unlocked <= position.ReleasedAmount {
		return 0, nil
	}
	return unlocked - position.ReleasedAmount, nil
}

// Release books the releasable delta on the position and returns it. The
// caller owns moving the tokens.
func Release(schedule entities.Schedule, position *entities.Position, now time.Time) (uint64, error) {
	if now.Before(position.StartTime) {
		return 0, domainerrors.ErrNotStarted
	}
	if position.IsCompleted() {
		return 0, domainerrors.ErrCompleted
	}
	delta, err := Releasable(schedule, *position, now)
	if err != nil {
		return 0, err
	}
	if delta == 0 {
		return 0, domainerrors.ErrNothingToClaim
	}
	released, carry := bits.Add64(position.ReleasedAmount, delta, 0)
	if carry != 0 || released > position.TotalAmount {
		return 0, domainerrors.ErrArithmeticOverflow
	}
	position.ReleasedAmount = released
	position.UpdatedAt = now.UTC()
	return delta, nil
}

// NextUnlockTime returns the next instant at which the unlocked amount grows.
// Before the start that is the start itself only when a TGE tranche exists,
// otherwise the cliff. The zero time means nothing further is scheduled.
func NextUnlockTime(schedule entities.Schedule, position entities.Position, now time.Time) time.Time {
	cliffEnd := schedule.CliffEnd(position.StartTime)
	if now.Before(position.StartTime) {
		if tge, err := basisPointsOf(position.TotalAmount, schedule.TGEBasisPoints); err == nil && tge > 0 {
			return position.StartTime
		}
		return cliffEnd
	}
	if now.Before(cliffEnd) {
		return cliffEnd
	}
	done := PeriodsElapsed(schedule, position.StartTime, now)
	if done >= uint64(schedule.NumPeriods) {
		return time.Time{}
	}
	return cliffEnd.Add(schedule.PeriodDuration * time.Duration(done+1))
}

// basisPointsOf computes amount*bp/10000 through a 128-bit intermediate.
func basisPointsOf(amount uint64, bp uint16) (uint64, error) {
	if uint32(bp) > entities.MaxBasisPoints {
		return 0, domainerrors.ErrInvalidSchedule
	}
	hi, lo := bits.Mul64(amount, uint64(bp))
	if hi >= entities.MaxBasisPoints {
		return 0, domainerrors.ErrArithmeticOverflow
	}
	quo, _ := bits.Div64(hi, lo, entities.MaxBasisPoints)
	return quo, nil
}
