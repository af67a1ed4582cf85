package entities

import (
	"math"
	"math/bits"
	"strings"
	"time"

	domainerrors "dropvest/contexts/token-distribution/vesting-service/domain/errors"
)

// MaxBasisPoints is 100% expressed in basis points.
const MaxBasisPoints = 10000

// Schedule is an unlock curve shared read-only by every position that
// references it. It is never mutated after creation.
type Schedule struct {
	ScheduleID       string
	Name             string
	TGEBasisPoints   uint16
	CliffBasisPoints uint16
	CliffDuration    time.Duration
	PeriodDuration   time.Duration
	NumPeriods       uint32
	IsDefault        bool
	CreatedAt        time.Time
}

type NewScheduleInput struct {
	ScheduleID       string
	Name             string
	TGEBasisPoints   uint16
	CliffBasisPoints uint16
	CliffDuration    time.Duration
	PeriodDuration   time.Duration
	NumPeriods       uint32
	IsDefault        bool
}

func NewSchedule(input NewScheduleInput, now time.Time) (Schedule, error) {
	if strings.TrimSpace(input.ScheduleID) == "" {
		return Schedule{}, domainerrors.ErrInvalidSchedule
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = input.ScheduleID
	}
	schedule := Schedule{
		ScheduleID:       input.ScheduleID,
		Name:             name,
		TGEBasisPoints:   input.TGEBasisPoints,
		CliffBasisPoints: input.CliffBasisPoints,
		CliffDuration:    input.CliffDuration,
		PeriodDuration:   input.PeriodDuration,
		NumPeriods:       input.NumPeriods,
		IsDefault:        input.IsDefault,
		CreatedAt:        now.UTC(),
	}
	if err := schedule.Validate(); err != nil {
		return Schedule{}, err
	}
	return schedule, nil
}

// Validate re-checks the creation invariants on a schedule loaded from
// storage before any unlock math runs against it.
func (s Schedule) Validate() error {
	if uint32(s.TGEBasisPoints)+uint32(s.CliffBasisPoints) > MaxBasisPoints {
		return domainerrors.ErrInvalidSchedule
	}
	if s.CliffDuration <= 0 || s.PeriodDuration <= 0 || s.NumPeriods == 0 {
		return domainerrors.ErrInvalidSchedule
	}
	if _, ok := s.span(); !ok {
		return domainerrors.ErrInvalidSchedule
	}
	return nil
}

// span is cliff + period*num_periods. It must fit a time.Duration so every
// instant of the curve is computed without wrapping or saturating.
func (s Schedule) span() (time.Duration, bool) {
	hi, periods := bits.Mul64(uint64(s.PeriodDuration), uint64(s.NumPeriods))
	if hi != 0 || periods > math.MaxInt64 {
		return 0, false
	}
	total, carry := bits.Add64(periods, uint64(s.CliffDuration), 0)
	if carry != 0 || total > math.MaxInt64 {
		return 0, false
	}
	return time.Duration(total), true
}

// CliffEnd is the instant the cliff tranche unlocks.
func (s Schedule) CliffEnd(start time.Time) time.Time {
	return start.Add(s.CliffDuration)
}

// FullyVestedAt is the first instant at which the whole amount is unlocked.
// Only meaningful for a schedule that passed Validate.
func (s Schedule) FullyVestedAt(start time.Time) time.Time {
	span, _ := s.span()
	return start.Add(span)
}
