package entities

import "time"

type SettlementStatus string

const (
	SettlementPending SettlementStatus = "pending"
	SettlementSettled SettlementStatus = "settled"
)

// ReleaseRecord books one successful release. ReleasedBefore is the
// position's released amount before this release and makes the record's
// ledger reference unique per position.
type ReleaseRecord struct {
	ReleaseID        string
	PositionID       string
	Beneficiary      string
	EscrowAccount    string
	Amount           uint64
	ReleasedBefore   uint64
	SettlementStatus SettlementStatus
	ReleasedAt       time.Time
	SettledAt        *time.Time
}

func (r ReleaseRecord) IsSettled() bool {
	return r.SettlementStatus == SettlementSettled
}
