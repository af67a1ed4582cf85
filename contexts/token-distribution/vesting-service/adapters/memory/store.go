package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	application "dropvest/contexts/token-distribution/vesting-service/application"
	"dropvest/contexts/token-distribution/vesting-service/domain/entities"
	domainerrors "dropvest/contexts/token-distribution/vesting-service/domain/errors"
	"dropvest/contexts/token-distribution/vesting-service/ports"
)

// Store is an in-memory adapter implementing vesting ports for local runtime
// and tests. It is not intended as production persistence.
type Store struct {
	mu                sync.RWMutex
	schedules         map[string]entities.Schedule
	defaultScheduleID string
	positions         map[string]entities.Position
	positionsByRef    map[string]string
	releases          map[string]entities.ReleaseRecord
	releaseOrder      []string
	locks             map[string]entities.TokenLock
	lockOrder         []string
	locksByRef        map[string]string
	outbox            map[string]ports.OutboxMessage
	outboxOrder       []string
	outboxSent        map[string]time.Time
	sequence          uint64
	clock             func() time.Time
	logger            *slog.Logger
}

func NewStore(logger *slog.Logger) *Store {
	return &Store{
		schedules:      make(map[string]entities.Schedule),
		positions:      make(map[string]entities.Position),
		positionsByRef: make(map[string]string),
		releases:       make(map[string]entities.ReleaseRecord),
		locks:          make(map[string]entities.TokenLock),
		locksByRef:     make(map[string]string),
		outbox:         make(map[string]ports.OutboxMessage),
		outboxSent:     make(map[string]time.Time),
		logger:         application.ResolveLogger(logger),
	}
}

// SetClock pins Now for tests.
func (s *Store) SetClock(clock func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = clock
}

func (s *Store) CreateSchedule(_ context.Context, schedule entities.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.schedules[schedule.ScheduleID]; exists {
		return domainerrors.ErrScheduleExists
	}
	if schedule.IsDefault && s.defaultScheduleID != "" {
		return domainerrors.ErrDefaultScheduleExists
	}
	s.schedules[schedule.ScheduleID] = schedule
	if schedule.IsDefault {
		s.defaultScheduleID = schedule.ScheduleID
	}
	return nil
}

func (s *Store) GetSchedule(_ context.Context, scheduleID string) (entities.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	schedule, ok := s.schedules[scheduleID]
	if !ok {
		return entities.Schedule{}, domainerrors.ErrScheduleNotFound
	}
	return schedule, nil
}

func (s *Store) GetDefaultSchedule(_ context.Context) (entities.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.defaultScheduleID == "" {
		return entities.Schedule{}, domainerrors.ErrNoDefaultSchedule
	}
	schedule, ok := s.schedules[s.defaultScheduleID]
	if !ok {
		return entities.Schedule{}, domainerrors.ErrRepositoryInvariantBroke
	}
	return schedule, nil
}

func (s *Store) CreatePosition(_ context.Context, position entities.Position, event ports.DomainEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.positions[position.Beneficiary]; exists {
		return domainerrors.ErrAlreadyHasPosition
	}
	if position.SourceRef != "" {
		if _, exists := s.positionsByRef[position.SourceRef]; exists {
			return domainerrors.ErrAlreadyHasPosition
		}
	}
	if _, ok := s.schedules[position.ScheduleID]; !ok {
		return domainerrors.ErrScheduleNotFound
	}
	if err := s.appendOutbox(event); err != nil {
		return err
	}
	s.positions[position.Beneficiary] = position
	if position.SourceRef != "" {
		s.positionsByRef[position.SourceRef] = position.Beneficiary
	}

	s.logger.Debug("vesting position stored in memory",
		"event", "memory_create_position",
		"module", "token-distribution/vesting-service",
		"layer", "adapter",
		"position_id", position.PositionID,
		"beneficiary", position.Beneficiary,
	)
	return nil
}

func (s *Store) GetPosition(_ context.Context, beneficiary string) (entities.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	position, ok := s.positions[beneficiary]
	if !ok {
		return entities.Position{}, domainerrors.ErrPositionNotFound
	}
	return position, nil
}

func (s *Store) GetPositionBySourceRef(_ context.Context, sourceRef string) (entities.Position, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	beneficiary, ok := s.positionsByRef[sourceRef]
	if !ok {
		return entities.Position{}, false, nil
	}
	position, exists := s.positions[beneficiary]
	if !exists {
		return entities.Position{}, false, domainerrors.ErrRepositoryInvariantBroke
	}
	return position, true, nil
}

func (s *Store) HasPosition(_ context.Context, beneficiary string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.positions[beneficiary]
	return ok, nil
}

func (s *Store) ListOpenPositions(_ context.Context, afterID string, limit int) ([]entities.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 200
	}
	open := make([]entities.Position, 0)
	for _, position := range s.positions {
		if position.IsCompleted() || position.PositionID <= afterID {
			continue
		}
		open = append(open, position)
	}
	sort.Slice(open, func(i, j int) bool {
		return open[i].PositionID < open[j].PositionID
	})
	if len(open) > limit {
		open = open[:limit]
	}
	return open, nil
}

func (s *Store) CommitRelease(_ context.Context, commit ports.ReleaseCommit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	position := commit.Position
	current, ok := s.positions[position.Beneficiary]
	if !ok {
		return domainerrors.ErrPositionNotFound
	}
	if current.PositionID != position.PositionID || current.ReleasedAmount != commit.ExpectedReleased {
		return domainerrors.ErrConcurrentRelease
	}
	if position.ReleasedAmount < current.ReleasedAmount || position.ReleasedAmount > current.TotalAmount {
		return domainerrors.ErrRepositoryInvariantBroke
	}
	if _, exists := s.releases[commit.Release.ReleaseID]; exists {
		return domainerrors.ErrRepositoryInvariantBroke
	}
	if err := s.appendOutbox(commit.Event); err != nil {
		return err
	}

	current.ReleasedAmount = position.ReleasedAmount
	current.UpdatedAt = position.UpdatedAt
	s.positions[position.Beneficiary] = current
	s.releases[commit.Release.ReleaseID] = commit.Release
	s.releaseOrder = append(s.releaseOrder, commit.Release.ReleaseID)
	return nil
}

func (s *Store) ListPendingReleases(_ context.Context, limit int) ([]entities.ReleaseRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	result := make([]entities.ReleaseRecord, 0)
	for _, id := range s.releaseOrder {
		release := s.releases[id]
		if release.IsSettled() {
			continue
		}
		result = append(result, release)
		if len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (s *Store) MarkReleaseSettled(_ context.Context, releaseID string, settledAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	release, ok := s.releases[releaseID]
	if !ok {
		return domainerrors.ErrRepositoryInvariantBroke
	}
	if release.IsSettled() {
		return nil
	}
	at := settledAt.UTC()
	release.SettlementStatus = entities.SettlementSettled
	release.SettledAt = &at
	s.releases[releaseID] = release
	return nil
}

func (s *Store) CreateLock(_ context.Context, lock entities.TokenLock, event ports.DomainEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.locks[lock.LockID]; exists {
		return domainerrors.ErrLockExists
	}
	if lock.SourceRef != "" {
		if _, exists := s.locksByRef[lock.SourceRef]; exists {
			return domainerrors.ErrLockExists
		}
	}
	if err := s.appendOutbox(event); err != nil {
		return err
	}
	s.locks[lock.LockID] = lock
	s.lockOrder = append(s.lockOrder, lock.LockID)
	if lock.SourceRef != "" {
		s.locksByRef[lock.SourceRef] = lock.LockID
	}
	return nil
}

func (s *Store) GetLock(_ context.Context, lockID string) (entities.TokenLock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lock, ok := s.locks[lockID]
	if !ok {
		return entities.TokenLock{}, domainerrors.ErrLockNotFound
	}
	return lock, nil
}

func (s *Store) GetLockBySourceRef(_ context.Context, sourceRef string) (entities.TokenLock, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lockID, ok := s.locksByRef[sourceRef]
	if !ok {
		return entities.TokenLock{}, false, nil
	}
	lock, exists := s.locks[lockID]
	if !exists {
		return entities.TokenLock{}, false, domainerrors.ErrRepositoryInvariantBroke
	}
	return lock, true, nil
}

func (s *Store) ListLocksByOwner(_ context.Context, owner string) ([]entities.TokenLock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]entities.TokenLock, 0)
	for _, id := range s.lockOrder {
		if lock := s.locks[id]; lock.Owner == owner {
			result = append(result, lock)
		}
	}
	return result, nil
}

func (s *Store) MarkLockWithdrawn(_ context.Context, lockID string, withdrawnAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[lockID]
	if !ok {
		return domainerrors.ErrLockNotFound
	}
	if lock.IsWithdrawn() {
		return domainerrors.ErrLockWithdrawn
	}
	at := withdrawnAt.UTC()
	lock.WithdrawnAt = &at
	s.locks[lockID] = lock
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	messages := make([]ports.OutboxMessage, 0, limit)
	for _, id := range s.outboxOrder {
		if _, sent := s.outboxSent[id]; sent {
			continue
		}
		if msg, ok := s.outbox[id]; ok {
			messages = append(messages, msg)
		}
		if len(messages) >= limit {
			break
		}
	}
	return messages, nil
}

func (s *Store) MarkOutboxSent(_ context.Context, outboxID string, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.outbox[outboxID]; !ok {
		return domainerrors.ErrRepositoryInvariantBroke
	}
	s.outboxSent[outboxID] = sentAt.UTC()
	return nil
}

func (s *Store) Now() time.Time {
	s.mu.RLock()
	clock := s.clock
	s.mu.RUnlock()
	if clock != nil {
		return clock().UTC()
	}
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	value := atomic.AddUint64(&s.sequence, 1)
	return fmt.Sprintf("vesting-%06d", value), nil
}

func (s *Store) OutboxEvents() []ports.OutboxMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]ports.OutboxMessage, 0, len(s.outboxOrder))
	for _, id := range s.outboxOrder {
		if evt, ok := s.outbox[id]; ok {
			events = append(events, evt)
		}
	}
	return events
}

// appendOutbox must be called with mu held.
func (s *Store) appendOutbox(event ports.DomainEvent) error {
	if event.EventID == "" {
		return nil
	}
	envelope, err := event.Envelope()
	if err != nil {
		return err
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	if _, exists := s.outbox[event.EventID]; exists {
		return domainerrors.ErrRepositoryInvariantBroke
	}
	s.outbox[event.EventID] = ports.OutboxMessage{
		OutboxID:     event.EventID,
		EventType:    event.EventType,
		PartitionKey: event.PartitionKey,
		Payload:      payload,
		CreatedAt:    event.OccurredAt,
	}
	s.outboxOrder = append(s.outboxOrder, event.EventID)
	return nil
}
