package entities

import (
	"strings"
	"time"

	domainerrors "dropvest/contexts/token-distribution/vesting-service/domain/errors"
)

type PositionSource string

const (
	PositionSourceAdmin   PositionSource = "admin"
	PositionSourceAirdrop PositionSource = "airdrop"
)

// Position is one beneficiary's vesting allocation. ReleasedAmount only grows
// and never exceeds TotalAmount; a drained position is kept as a terminal
// record.
type Position struct {
	PositionID     string
	Beneficiary    string
	ScheduleID     string
	TotalAmount    uint64
	ReleasedAmount uint64
	StartTime      time.Time
	EscrowAccount  string
	Source         PositionSource
	SourceRef      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type NewPositionInput struct {
	PositionID    string
	Beneficiary   string
	ScheduleID    string
	TotalAmount   uint64
	StartTime     time.Time
	EscrowAccount string
	Source        PositionSource
	SourceRef     string
}

func NewPosition(input NewPositionInput, now time.Time) (Position, error) {
	beneficiary := NormalizeAccount(input.Beneficiary)
	if strings.TrimSpace(input.PositionID) == "" ||
		beneficiary == "" ||
		strings.TrimSpace(input.ScheduleID) == "" ||
		strings.TrimSpace(input.EscrowAccount) == "" {
		return Position{}, domainerrors.ErrInvalidPosition
	}
	if input.TotalAmount == 0 {
		return Position{}, domainerrors.ErrInvalidPosition
	}
	switch input.Source {
	case PositionSourceAdmin, PositionSourceAirdrop:
	default:
		return Position{}, domainerrors.ErrInvalidPosition
	}
	start := input.StartTime
	if start.IsZero() {
		start = now
	}
	return Position{
		PositionID:    input.PositionID,
		Beneficiary:   beneficiary,
		ScheduleID:    input.ScheduleID,
		TotalAmount:   input.TotalAmount,
		StartTime:     start.UTC(),
		EscrowAccount: input.EscrowAccount,
		Source:        input.Source,
		SourceRef:     strings.TrimSpace(input.SourceRef),
		CreatedAt:     now.UTC(),
		UpdatedAt:     now.UTC(),
	}, nil
}

func (p Position) IsCompleted() bool {
	return p.ReleasedAmount >= p.TotalAmount
}

func (p Position) Remaining() uint64 {
	if p.IsCompleted() {
		return 0
	}
	return p.TotalAmount - p.ReleasedAmount
}

// NormalizeAccount canonicalizes account identifiers so the same beneficiary
// always maps to the same position key.
func NormalizeAccount(account string) string {
	return strings.ToLower(strings.TrimSpace(account))
}
