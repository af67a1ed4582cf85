package ports

import (
	"context"
	"encoding/json"
	"time"

	"dropvest/contexts/token-distribution/vesting-service/domain/entities"
	contractsv1 "dropvest/contracts/gen/events/v1"
	ledgerv1 "dropvest/contracts/gen/ledger/v1"
)

// DomainEvent is an outbound vesting integration event. Data values are
// strings so amounts never round through float64 on the consumer side.
type DomainEvent struct {
	EventID      string
	EventType    string
	PartitionKey string
	OccurredAt   time.Time
	Data         map[string]string
}

func (e DomainEvent) Envelope() (EventEnvelope, error) {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return EventEnvelope{}, err
	}
	return EventEnvelope{
		EventID:          e.EventID,
		EventType:        e.EventType,
		OccurredAt:       e.OccurredAt.UTC(),
		SourceService:    "vesting-service",
		SchemaVersion:    1,
		PartitionKeyPath: "beneficiary",
		PartitionKey:     e.PartitionKey,
		Data:             data,
	}, nil
}

// ScheduleRepository stores immutable schedules. At most one schedule is the
// default and it can never be replaced.
type ScheduleRepository interface {
	CreateSchedule(ctx context.Context, schedule entities.Schedule) error
	GetSchedule(ctx context.Context, scheduleID string) (entities.Schedule, error)
	GetDefaultSchedule(ctx context.Context) (entities.Schedule, error)
}

// ReleaseCommit applies one release: the position's released amount moves
// from ExpectedReleased to Position.ReleasedAmount, the release row and its
// outbox event are written, all atomically. A stale ExpectedReleased fails
// with ErrConcurrentRelease.
type ReleaseCommit struct {
	Position         entities.Position
	ExpectedReleased uint64
	Release          entities.ReleaseRecord
	Event            DomainEvent
}

// PositionRepository keys positions by beneficiary; a beneficiary holds at
// most one position over its lifetime.
type PositionRepository interface {
	CreatePosition(ctx context.Context, position entities.Position, event DomainEvent) error
	GetPosition(ctx context.Context, beneficiary string) (entities.Position, error)
	GetPositionBySourceRef(ctx context.Context, sourceRef string) (entities.Position, bool, error)
	HasPosition(ctx context.Context, beneficiary string) (bool, error)
	// ListOpenPositions pages through positions with a remaining balance,
	// ordered by position id, starting after afterID.
	ListOpenPositions(ctx context.Context, afterID string, limit int) ([]entities.Position, error)
	CommitRelease(ctx context.Context, commit ReleaseCommit) error
	ListPendingReleases(ctx context.Context, limit int) ([]entities.ReleaseRecord, error)
	MarkReleaseSettled(ctx context.Context, releaseID string, settledAt time.Time) error
}

// LockRepository stores escrow locks. Source refs are unique.
type LockRepository interface {
	CreateLock(ctx context.Context, lock entities.TokenLock, event DomainEvent) error
	GetLock(ctx context.Context, lockID string) (entities.TokenLock, error)
	GetLockBySourceRef(ctx context.Context, sourceRef string) (entities.TokenLock, bool, error)
	ListLocksByOwner(ctx context.Context, owner string) ([]entities.TokenLock, error)
	// MarkLockWithdrawn fails with ErrLockWithdrawn if the lock was already
	// marked.
	MarkLockWithdrawn(ctx context.Context, lockID string, withdrawnAt time.Time) error
}

type TokenLedger = ledgerv1.TokenLedger

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxSent(ctx context.Context, outboxID string, sentAt time.Time) error
}

type EventEnvelope = contractsv1.Envelope

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}
