package services

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"dropvest/contexts/token-distribution/vesting-service/domain/entities"
	domainerrors "dropvest/contexts/token-distribution/vesting-service/domain/errors"
)

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func scenarioSchedule(t *testing.T) entities.Schedule {
	t.Helper()
	schedule, err := entities.NewSchedule(entities.NewScheduleInput{
		ScheduleID:       "default",
		TGEBasisPoints:   1000,
		CliffBasisPoints: 1000,
		CliffDuration:    time.Hour,
		PeriodDuration:   time.Hour,
		NumPeriods:       10,
		IsDefault:        true,
	}, t0)
	if err != nil {
		t.Fatalf("new schedule: %v", err)
	}
	return schedule
}

func position(total uint64) entities.Position {
	return entities.Position{
		PositionID:  "pos-1",
		Beneficiary: "alice",
		ScheduleID:  "default",
		TotalAmount: total,
		StartTime:   t0,
	}
}

func mustReleasable(t *testing.T, schedule entities.Schedule, p entities.Position, at time.Time) uint64 {
	t.Helper()
	value, err := Releasable(schedule, p, at)
	if err != nil {
		t.Fatalf("releasable at %s: %v", at, err)
	}
	return value
}

func TestScenarioAThousandTokens(t *testing.T) {
	schedule := scenarioSchedule(t)
	p := position(1000)

	if got := mustReleasable(t, schedule, p, t0); got != 100 {
		t.Fatalf("at T0 expected 100, got %d", got)
	}
	if got := mustReleasable(t, schedule, p, t0.Add(3599*time.Second)); got != 100 {
		t.Fatalf("at T0+3599 expected 100, got %d", got)
	}
	if got := mustReleasable(t, schedule, p, t0.Add(3600*time.Second)); got != 200 {
		t.Fatalf("at T0+3600 expected 200, got %d", got)
	}

	delta, err := Release(schedule, &p, t0.Add(3600*time.Second))
	if err != nil || delta != 200 {
		t.Fatalf("expected release of 200, got %d err=%v", delta, err)
	}

	at := t0.Add(7200 * time.Second)
	unlocked, err := UnlockedAt(schedule, p, at)
	if err != nil || unlocked != 280 {
		t.Fatalf("at T0+7200 expected 280 unlocked, got %d err=%v", unlocked, err)
	}
	if got := mustReleasable(t, schedule, p, at); got != 80 {
		t.Fatalf("at T0+7200 expected 80 releasable after claiming 200, got %d", got)
	}

	end := t0.Add(3600*time.Second + 10*3600*time.Second)
	delta, err = Release(schedule, &p, end)
	if err != nil || delta != 800 {
		t.Fatalf("expected final release of 800, got %d err=%v", delta, err)
	}
	if p.ReleasedAmount != 1000 || !p.IsCompleted() {
		t.Fatalf("expected position fully released, got %d", p.ReleasedAmount)
	}
}

func TestScenarioANonDivisibleTotalFoldsDustIntoLastPeriod(t *testing.T) {
	schedule := scenarioSchedule(t)
	p := position(999)

	// tge = cliff = floor(999*0.1) = 99; per period = floor(801/10) = 80.
	checks := []struct {
		at   time.Duration
		want uint64
	}{
		{0, 99},
		{time.Hour, 198},
		{2 * time.Hour, 278},
		{10 * time.Hour, 918},
		{11*time.Hour - time.Second, 918},
		{11 * time.Hour, 999},
		{100 * time.Hour, 999},
	}
	for _, check := range checks {
		got, err := UnlockedAt(schedule, p, t0.Add(check.at))
		if err != nil {
			t.Fatalf("unlocked at +%s: %v", check.at, err)
		}
		if got != check.want {
			t.Fatalf("unlocked at +%s expected %d, got %d", check.at, check.want, got)
		}
	}
}

func TestUnlockIsMonotoneAndBounded(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		tge := uint16(rng.Intn(5001))
		cliffBP := uint16(rng.Intn(5000))
		schedule, err := entities.NewSchedule(entities.NewScheduleInput{
			ScheduleID:       "s",
			TGEBasisPoints:   tge,
			CliffBasisPoints: cliffBP,
			CliffDuration:    time.Duration(1+rng.Intn(1000)) * time.Second,
			PeriodDuration:   time.Duration(1+rng.Intn(1000)) * time.Second,
			NumPeriods:       uint32(1 + rng.Intn(50)),
		}, t0)
		if err != nil {
			t.Fatalf("schedule: %v", err)
		}
		p := position(rng.Uint64())
		fullyVested := schedule.FullyVestedAt(t0)

		var previous uint64
		for step := time.Duration(0); step <= fullyVested.Sub(t0)+time.Hour; step += time.Duration(1+rng.Intn(700)) * time.Second {
			got, err := UnlockedAt(schedule, p, t0.Add(step))
			if err != nil {
				t.Fatalf("unlocked: %v", err)
			}
			if got < previous {
				t.Fatalf("unlock decreased from %d to %d at +%s", previous, got, step)
			}
			if got > p.TotalAmount {
				t.Fatalf("unlock %d exceeds total %d", got, p.TotalAmount)
			}
			previous = got
		}
		got, err := UnlockedAt(schedule, p, fullyVested)
		if err != nil || got != p.TotalAmount {
			t.Fatalf("expected full unlock %d at %s, got %d err=%v", p.TotalAmount, fullyVested, got, err)
		}
	}
}

func TestUnlockIsConstantWithinAPeriod(t *testing.T) {
	schedule := scenarioSchedule(t)
	p := position(1_000_000)
	boundary := schedule.CliffEnd(t0).Add(3 * time.Hour)

	atBoundary, _ := UnlockedAt(schedule, p, boundary)
	for _, offset := range []time.Duration{time.Nanosecond, time.Second, 30 * time.Minute, time.Hour - time.Nanosecond} {
		got, _ := UnlockedAt(schedule, p, boundary.Add(offset))
		if got != atBoundary {
			t.Fatalf("unlock changed mid-period at +%s: %d != %d", offset, got, atBoundary)
		}
	}
	before, _ := UnlockedAt(schedule, p, boundary.Add(-time.Nanosecond))
	if before >= atBoundary {
		t.Fatalf("expected boundary instant to unlock a new tranche")
	}
}

func TestReleaseAfterCompletionAlwaysFails(t *testing.T) {
	schedule := scenarioSchedule(t)
	p := position(1000)
	end := schedule.FullyVestedAt(t0)

	if _, err := Release(schedule, &p, end); err != nil {
		t.Fatalf("full release: %v", err)
	}
	for i := 0; i < 3; i++ {
		delta, err := Release(schedule, &p, end.Add(time.Duration(i)*time.Hour))
		if !errors.Is(err, domainerrors.ErrCompleted) || delta != 0 {
			t.Fatalf("expected ErrCompleted with zero delta, got %d err=%v", delta, err)
		}
	}
	if p.ReleasedAmount != 1000 {
		t.Fatalf("released amount drifted to %d", p.ReleasedAmount)
	}
}

func TestReleaseErrorOrdering(t *testing.T) {
	schedule := scenarioSchedule(t)
	p := position(1000)

	if _, err := Release(schedule, &p, t0.Add(-time.Second)); !errors.Is(err, domainerrors.ErrNotStarted) {
		t.Fatalf("expected ErrNotStarted, got %v", err)
	}
	if _, err := Release(schedule, &p, t0); err != nil {
		t.Fatalf("tge release: %v", err)
	}
	if _, err := Release(schedule, &p, t0.Add(time.Minute)); !errors.Is(err, domainerrors.ErrNothingToClaim) {
		t.Fatalf("expected ErrNothingToClaim, got %v", err)
	}
}

func TestNextUnlockTime(t *testing.T) {
	schedule := scenarioSchedule(t)
	p := position(1000)
	cliffEnd := t0.Add(time.Hour)

	if got := NextUnlockTime(schedule, p, t0.Add(-time.Minute)); !got.Equal(t0) {
		t.Fatalf("before start expected %s, got %s", t0, got)
	}
	if got := NextUnlockTime(schedule, p, t0.Add(time.Minute)); !got.Equal(cliffEnd) {
		t.Fatalf("before cliff expected %s, got %s", cliffEnd, got)
	}
	if got := NextUnlockTime(schedule, p, cliffEnd); !got.Equal(cliffEnd.Add(time.Hour)) {
		t.Fatalf("at cliff expected first period boundary, got %s", got)
	}
	if got := NextUnlockTime(schedule, p, schedule.FullyVestedAt(t0)); !got.IsZero() {
		t.Fatalf("expected zero time once fully vested, got %s", got)
	}

	noTGE, err := entities.NewSchedule(entities.NewScheduleInput{
		ScheduleID:       "cliff-only",
		CliffBasisPoints: 5000,
		CliffDuration:    time.Hour,
		PeriodDuration:   time.Hour,
		NumPeriods:       4,
	}, t0)
	if err != nil {
		t.Fatalf("new schedule: %v", err)
	}
	if got := NextUnlockTime(noTGE, p, t0.Add(-time.Minute)); !got.Equal(cliffEnd) {
		t.Fatalf("without a tge tranche expected the cliff %s before start, got %s", cliffEnd, got)
	}
}

func TestScheduleSpanMustFitDuration(t *testing.T) {
	const year = 365 * 24 * time.Hour
	input := entities.NewScheduleInput{
		ScheduleID:     "centuries",
		CliffDuration:  time.Hour,
		PeriodDuration: 100 * year,
		NumPeriods:     10,
	}
	if _, err := entities.NewSchedule(input, t0); !errors.Is(err, domainerrors.ErrInvalidSchedule) {
		t.Fatalf("expected ErrInvalidSchedule for a span past the duration range, got %v", err)
	}

	stored := entities.Schedule{
		ScheduleID:     input.ScheduleID,
		CliffDuration:  input.CliffDuration,
		PeriodDuration: input.PeriodDuration,
		NumPeriods:     input.NumPeriods,
	}
	if _, err := UnlockedAt(stored, position(1000), t0.Add(200*year)); !errors.Is(err, domainerrors.ErrInvalidSchedule) {
		t.Fatalf("expected stored oversized schedule to fail loudly, got %v", err)
	}

	input.PeriodDuration = 25 * year
	long, err := entities.NewSchedule(input, t0)
	if err != nil {
		t.Fatalf("250 year schedule should fit: %v", err)
	}
	p := position(1000)
	end := long.FullyVestedAt(t0)
	if !end.After(t0) {
		t.Fatalf("expected full vesting after start, got %s", end)
	}
	if got, err := UnlockedAt(long, p, end); err != nil || got != 1000 {
		t.Fatalf("expected full unlock at %s, got %d err=%v", end, got, err)
	}
	if got, err := UnlockedAt(long, p, end.Add(100*year)); err != nil || got != 1000 {
		t.Fatalf("expected full unlock long after the schedule, got %d err=%v", got, err)
	}
	if got := NextUnlockTime(long, p, t0.Add(30*year)); !got.After(t0.Add(30*year)) {
		t.Fatalf("next unlock must be in the future, got %s", got)
	}
}

func TestBasisPointsOfLargeAmounts(t *testing.T) {
	got, err := basisPointsOf(^uint64(0), 10000)
	if err != nil || got != ^uint64(0) {
		t.Fatalf("expected max u64 at 100%%, got %d err=%v", got, err)
	}
	got, err = basisPointsOf(^uint64(0), 5000)
	if err != nil || got != ^uint64(0)/2 {
		t.Fatalf("expected half of max u64, got %d err=%v", got, err)
	}
}
