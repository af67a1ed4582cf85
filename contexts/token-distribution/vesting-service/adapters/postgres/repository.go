package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"time"

	"dropvest/contexts/token-distribution/vesting-service/domain/entities"
	domainerrors "dropvest/contexts/token-distribution/vesting-service/domain/errors"
	"dropvest/contexts/token-distribution/vesting-service/ports"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending = "pending"
	outboxStatusSent    = "sent"

	constraintSingleDefault       = "vesting_schedules_single_default"
	constraintPositionBeneficiary = "vesting_positions_unique_beneficiary"
	constraintPositionSourceRef   = "vesting_positions_unique_source_ref"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Migrate creates the vesting tables and their uniqueness constraints.
func (r *Repository) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(
		&scheduleModel{},
		&positionModel{},
		&releaseModel{},
		&lockModel{},
		&outboxModel{},
	)
}

func (r *Repository) CreateSchedule(ctx context.Context, schedule entities.Schedule) error {
	row := scheduleModelFromEntity(schedule)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			if constraintName(err) == constraintSingleDefault {
				return domainerrors.ErrDefaultScheduleExists
			}
			return domainerrors.ErrScheduleExists
		}
		return err
	}
	return nil
}

func (r *Repository) GetSchedule(ctx context.Context, scheduleID string) (entities.Schedule, error) {
	var row scheduleModel
	err := r.db.WithContext(ctx).
		Where("schedule_id = ?", scheduleID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Schedule{}, domainerrors.ErrScheduleNotFound
		}
		return entities.Schedule{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) GetDefaultSchedule(ctx context.Context) (entities.Schedule, error) {
	var row scheduleModel
	err := r.db.WithContext(ctx).
		Where("is_default = ?", true).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Schedule{}, domainerrors.ErrNoDefaultSchedule
		}
		return entities.Schedule{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) CreatePosition(ctx context.Context, position entities.Position, event ports.DomainEvent) error {
	outboxRow, err := outboxRowFromEvent(event)
	if err != nil {
		return err
	}
	row := positionModelFromEntity(position)
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				switch constraintName(err) {
				case constraintPositionBeneficiary, constraintPositionSourceRef:
					return domainerrors.ErrAlreadyHasPosition
				}
				return domainerrors.ErrRepositoryInvariantBroke
			}
			return err
		}
		return createOutbox(tx, outboxRow)
	})
	if err != nil {
		return err
	}

	r.logger.Debug("vesting position created",
		"event", "postgres_create_position",
		"module", "token-distribution/vesting-service",
		"layer", "adapter",
		"position_id", position.PositionID,
		"beneficiary", position.Beneficiary,
	)
	return nil
}

func (r *Repository) GetPosition(ctx context.Context, beneficiary string) (entities.Position, error) {
	position, found, err := r.findPosition(ctx, "beneficiary = ?", beneficiary)
	if err != nil {
		return entities.Position{}, err
	}
	if !found {
		return entities.Position{}, domainerrors.ErrPositionNotFound
	}
	return position, nil
}

func (r *Repository) GetPositionBySourceRef(ctx context.Context, sourceRef string) (entities.Position, bool, error) {
	return r.findPosition(ctx, "source_ref = ?", sourceRef)
}

func (r *Repository) HasPosition(ctx context.Context, beneficiary string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&positionModel{}).
		Where("beneficiary = ?", beneficiary).
		Count(&count).
		Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *Repository) findPosition(ctx context.Context, query string, args ...any) (entities.Position, bool, error) {
	var row positionModel
	err := r.db.WithContext(ctx).
		Where(query, args...).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Position{}, false, nil
		}
		return entities.Position{}, false, err
	}
	position, err := row.toEntity()
	if err != nil {
		return entities.Position{}, false, err
	}
	return position, true, nil
}

func (r *Repository) ListOpenPositions(ctx context.Context, afterID string, limit int) ([]entities.Position, error) {
	if limit <= 0 {
		limit = 200
	}
	var rows []positionModel
	if err := r.db.WithContext(ctx).
		Where("released_amount < total_amount AND position_id > ?", afterID).
		Order("position_id ASC").
		Limit(limit).
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	items := make([]entities.Position, 0, len(rows))
	for _, row := range rows {
		position, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		items = append(items, position)
	}
	return items, nil
}

func (r *Repository) CommitRelease(ctx context.Context, commit ports.ReleaseCommit) error {
	outboxRow, err := outboxRowFromEvent(commit.Event)
	if err != nil {
		return err
	}
	position := commit.Position
	if position.ReleasedAmount > position.TotalAmount || position.ReleasedAmount < commit.ExpectedReleased {
		return domainerrors.ErrRepositoryInvariantBroke
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Compare-and-set on the released amount: a concurrent release that
		// committed first leaves zero rows to update.
		result := tx.Model(&positionModel{}).
			Where("position_id = ? AND released_amount = ?", position.PositionID, toNumeric(commit.ExpectedReleased)).
			Updates(map[string]any{
				"released_amount": toNumeric(position.ReleasedAmount),
				"updated_at":      position.UpdatedAt.UTC(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domainerrors.ErrConcurrentRelease
		}

		releaseRow := releaseModelFromEntity(commit.Release)
		if err := tx.Create(&releaseRow).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrConcurrentRelease
			}
			return err
		}
		return createOutbox(tx, outboxRow)
	})
}

func (r *Repository) ListPendingReleases(ctx context.Context, limit int) ([]entities.ReleaseRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []releaseModel
	if err := r.db.WithContext(ctx).
		Where("settlement_status = ?", string(entities.SettlementPending)).
		Order("released_at ASC").
		Limit(limit).
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	items := make([]entities.ReleaseRecord, 0, len(rows))
	for _, row := range rows {
		release, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		items = append(items, release)
	}
	return items, nil
}

func (r *Repository) MarkReleaseSettled(ctx context.Context, releaseID string, settledAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&releaseModel{}).
		Where("release_id = ? AND settlement_status = ?", releaseID, string(entities.SettlementPending)).
		Updates(map[string]any{
			"settlement_status": string(entities.SettlementSettled),
			"settled_at":        settledAt.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&releaseModel{}).Where("release_id = ?", releaseID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return domainerrors.ErrRepositoryInvariantBroke
		}
	}
	return nil
}

func (r *Repository) CreateLock(ctx context.Context, lock entities.TokenLock, event ports.DomainEvent) error {
	outboxRow, err := outboxRowFromEvent(event)
	if err != nil {
		return err
	}
	row := lockModelFromEntity(lock)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrLockExists
			}
			return err
		}
		return createOutbox(tx, outboxRow)
	})
}

func (r *Repository) GetLock(ctx context.Context, lockID string) (entities.TokenLock, error) {
	lock, found, err := r.findLock(ctx, "lock_id = ?", lockID)
	if err != nil {
		return entities.TokenLock{}, err
	}
	if !found {
		return entities.TokenLock{}, domainerrors.ErrLockNotFound
	}
	return lock, nil
}

func (r *Repository) GetLockBySourceRef(ctx context.Context, sourceRef string) (entities.TokenLock, bool, error) {
	return r.findLock(ctx, "source_ref = ?", sourceRef)
}

func (r *Repository) findLock(ctx context.Context, query string, args ...any) (entities.TokenLock, bool, error) {
	var row lockModel
	err := r.db.WithContext(ctx).
		Where(query, args...).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.TokenLock{}, false, nil
		}
		return entities.TokenLock{}, false, err
	}
	lock, err := row.toEntity()
	if err != nil {
		return entities.TokenLock{}, false, err
	}
	return lock, true, nil
}

func (r *Repository) ListLocksByOwner(ctx context.Context, owner string) ([]entities.TokenLock, error) {
	var rows []lockModel
	if err := r.db.WithContext(ctx).
		Where("owner = ?", owner).
		Order("created_at ASC").
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	items := make([]entities.TokenLock, 0, len(rows))
	for _, row := range rows {
		lock, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		items = append(items, lock)
	}
	return items, nil
}

func (r *Repository) MarkLockWithdrawn(ctx context.Context, lockID string, withdrawnAt time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row lockModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("lock_id = ?", lockID).
			First(&row).
			Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrLockNotFound
			}
			return err
		}
		if row.WithdrawnAt != nil {
			return domainerrors.ErrLockWithdrawn
		}
		return tx.Model(&lockModel{}).
			Where("lock_id = ?", lockID).
			Update("withdrawn_at", withdrawnAt.UTC()).
			Error
	})
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).
		Error; err != nil {
		return nil, err
	}

	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toPort())
	}
	return items, nil
}

func (r *Repository) MarkOutboxSent(ctx context.Context, outboxID string, sentAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", outboxID).
		Updates(map[string]any{
			"status":  outboxStatusSent,
			"sent_at": sentAt.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrRepositoryInvariantBroke
	}
	return nil
}

type scheduleModel struct {
	ScheduleID       string    `gorm:"column:schedule_id;primaryKey"`
	Name             string    `gorm:"column:name"`
	TGEBasisPoints   int32     `gorm:"column:tge_bp"`
	CliffBasisPoints int32     `gorm:"column:cliff_bp"`
	CliffSeconds     int64     `gorm:"column:cliff_seconds"`
	PeriodSeconds    int64     `gorm:"column:period_seconds"`
	NumPeriods       int64     `gorm:"column:num_periods"`
	IsDefault        bool      `gorm:"column:is_default;uniqueIndex:vesting_schedules_single_default,where:is_default"`
	CreatedAt        time.Time `gorm:"column:created_at"`
}

func (scheduleModel) TableName() string {
	return "vesting_schedules"
}

func scheduleModelFromEntity(schedule entities.Schedule) scheduleModel {
	return scheduleModel{
		ScheduleID:       schedule.ScheduleID,
		Name:             schedule.Name,
		TGEBasisPoints:   int32(schedule.TGEBasisPoints),
		CliffBasisPoints: int32(schedule.CliffBasisPoints),
		CliffSeconds:     int64(schedule.CliffDuration / time.Second),
		PeriodSeconds:    int64(schedule.PeriodDuration / time.Second),
		NumPeriods:       int64(schedule.NumPeriods),
		IsDefault:        schedule.IsDefault,
		CreatedAt:        schedule.CreatedAt.UTC(),
	}
}

func (m scheduleModel) toEntity() entities.Schedule {
	return entities.Schedule{
		ScheduleID:       m.ScheduleID,
		Name:             m.Name,
		TGEBasisPoints:   uint16(m.TGEBasisPoints),
		CliffBasisPoints: uint16(m.CliffBasisPoints),
		CliffDuration:    time.Duration(m.CliffSeconds) * time.Second,
		PeriodDuration:   time.Duration(m.PeriodSeconds) * time.Second,
		NumPeriods:       uint32(m.NumPeriods),
		IsDefault:        m.IsDefault,
		CreatedAt:        m.CreatedAt.UTC(),
	}
}

type positionModel struct {
	PositionID     string          `gorm:"column:position_id;primaryKey"`
	Beneficiary    string          `gorm:"column:beneficiary;uniqueIndex:vesting_positions_unique_beneficiary"`
	ScheduleID     string          `gorm:"column:schedule_id;index"`
	TotalAmount    decimal.Decimal `gorm:"column:total_amount;type:numeric(20,0)"`
	ReleasedAmount decimal.Decimal `gorm:"column:released_amount;type:numeric(20,0)"`
	StartTime      time.Time       `gorm:"column:start_time"`
	EscrowAccount  string          `gorm:"column:escrow_account"`
	Source         string          `gorm:"column:source"`
	SourceRef      string          `gorm:"column:source_ref;uniqueIndex:vesting_positions_unique_source_ref"`
	CreatedAt      time.Time       `gorm:"column:created_at"`
	UpdatedAt      time.Time       `gorm:"column:updated_at"`
}

func (positionModel) TableName() string {
	return "vesting_positions"
}

func positionModelFromEntity(position entities.Position) positionModel {
	return positionModel{
		PositionID:     position.PositionID,
		Beneficiary:    position.Beneficiary,
		ScheduleID:     position.ScheduleID,
		TotalAmount:    toNumeric(position.TotalAmount),
		ReleasedAmount: toNumeric(position.ReleasedAmount),
		StartTime:      position.StartTime.UTC(),
		EscrowAccount:  position.EscrowAccount,
		Source:         string(position.Source),
		SourceRef:      position.SourceRef,
		CreatedAt:      position.CreatedAt.UTC(),
		UpdatedAt:      position.UpdatedAt.UTC(),
	}
}

func (m positionModel) toEntity() (entities.Position, error) {
	total, err := fromNumeric(m.TotalAmount)
	if err != nil {
		return entities.Position{}, err
	}
	released, err := fromNumeric(m.ReleasedAmount)
	if err != nil {
		return entities.Position{}, err
	}
	if released > total {
		return entities.Position{}, domainerrors.ErrRepositoryInvariantBroke
	}
	return entities.Position{
		PositionID:     m.PositionID,
		Beneficiary:    m.Beneficiary,
		ScheduleID:     m.ScheduleID,
		TotalAmount:    total,
		ReleasedAmount: released,
		StartTime:      m.StartTime.UTC(),
		EscrowAccount:  m.EscrowAccount,
		Source:         entities.PositionSource(m.Source),
		SourceRef:      m.SourceRef,
		CreatedAt:      m.CreatedAt.UTC(),
		UpdatedAt:      m.UpdatedAt.UTC(),
	}, nil
}

type releaseModel struct {
	ReleaseID        string          `gorm:"column:release_id;primaryKey"`
	PositionID       string          `gorm:"column:position_id;uniqueIndex:vesting_releases_unique_step,priority:1"`
	Beneficiary      string          `gorm:"column:beneficiary;index"`
	EscrowAccount    string          `gorm:"column:escrow_account"`
	Amount           decimal.Decimal `gorm:"column:amount;type:numeric(20,0)"`
	ReleasedBefore   decimal.Decimal `gorm:"column:released_before;type:numeric(20,0);uniqueIndex:vesting_releases_unique_step,priority:2"`
	SettlementStatus string          `gorm:"column:settlement_status;index"`
	ReleasedAt       time.Time       `gorm:"column:released_at"`
	SettledAt        *time.Time      `gorm:"column:settled_at"`
}

func (releaseModel) TableName() string {
	return "vesting_releases"
}

func releaseModelFromEntity(release entities.ReleaseRecord) releaseModel {
	return releaseModel{
		ReleaseID:        release.ReleaseID,
		PositionID:       release.PositionID,
		Beneficiary:      release.Beneficiary,
		EscrowAccount:    release.EscrowAccount,
		Amount:           toNumeric(release.Amount),
		ReleasedBefore:   toNumeric(release.ReleasedBefore),
		SettlementStatus: string(release.SettlementStatus),
		ReleasedAt:       release.ReleasedAt.UTC(),
		SettledAt:        release.SettledAt,
	}
}

func (m releaseModel) toEntity() (entities.ReleaseRecord, error) {
	amount, err := fromNumeric(m.Amount)
	if err != nil {
		return entities.ReleaseRecord{}, err
	}
	before, err := fromNumeric(m.ReleasedBefore)
	if err != nil {
		return entities.ReleaseRecord{}, err
	}
	var settledAt *time.Time
	if m.SettledAt != nil {
		at := m.SettledAt.UTC()
		settledAt = &at
	}
	return entities.ReleaseRecord{
		ReleaseID:        m.ReleaseID,
		PositionID:       m.PositionID,
		Beneficiary:      m.Beneficiary,
		EscrowAccount:    m.EscrowAccount,
		Amount:           amount,
		ReleasedBefore:   before,
		SettlementStatus: entities.SettlementStatus(m.SettlementStatus),
		ReleasedAt:       m.ReleasedAt.UTC(),
		SettledAt:        settledAt,
	}, nil
}

type lockModel struct {
	LockID        string          `gorm:"column:lock_id;primaryKey"`
	Owner         string          `gorm:"column:owner;index"`
	Amount        decimal.Decimal `gorm:"column:amount;type:numeric(20,0)"`
	UnlockAt      time.Time       `gorm:"column:unlock_at"`
	EscrowAccount string          `gorm:"column:escrow_account"`
	SourceRef     string          `gorm:"column:source_ref;uniqueIndex:vesting_locks_unique_source_ref"`
	CreatedAt     time.Time       `gorm:"column:created_at"`
	WithdrawnAt   *time.Time      `gorm:"column:withdrawn_at"`
}

func (lockModel) TableName() string {
	return "vesting_locks"
}

func lockModelFromEntity(lock entities.TokenLock) lockModel {
	return lockModel{
		LockID:        lock.LockID,
		Owner:         lock.Owner,
		Amount:        toNumeric(lock.Amount),
		UnlockAt:      lock.UnlockAt.UTC(),
		EscrowAccount: lock.EscrowAccount,
		SourceRef:     lock.SourceRef,
		CreatedAt:     lock.CreatedAt.UTC(),
		WithdrawnAt:   lock.WithdrawnAt,
	}
}

func (m lockModel) toEntity() (entities.TokenLock, error) {
	amount, err := fromNumeric(m.Amount)
	if err != nil {
		return entities.TokenLock{}, err
	}
	var withdrawnAt *time.Time
	if m.WithdrawnAt != nil {
		at := m.WithdrawnAt.UTC()
		withdrawnAt = &at
	}
	return entities.TokenLock{
		LockID:        m.LockID,
		Owner:         m.Owner,
		Amount:        amount,
		UnlockAt:      m.UnlockAt.UTC(),
		EscrowAccount: m.EscrowAccount,
		SourceRef:     m.SourceRef,
		CreatedAt:     m.CreatedAt.UTC(),
		WithdrawnAt:   withdrawnAt,
	}, nil
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status;index"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	SentAt       *time.Time `gorm:"column:sent_at"`
}

func (outboxModel) TableName() string {
	return "vesting_outbox"
}

func (m outboxModel) toPort() ports.OutboxMessage {
	return ports.OutboxMessage{
		OutboxID:     m.OutboxID,
		EventType:    m.EventType,
		PartitionKey: m.PartitionKey,
		Payload:      append([]byte(nil), m.Payload...),
		CreatedAt:    m.CreatedAt.UTC(),
	}
}

func outboxRowFromEvent(event ports.DomainEvent) (*outboxModel, error) {
	if event.EventID == "" {
		return nil, nil
	}
	envelope, err := event.Envelope()
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return nil, err
	}
	return &outboxModel{
		OutboxID:     event.EventID,
		EventType:    event.EventType,
		PartitionKey: event.PartitionKey,
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    event.OccurredAt.UTC(),
	}, nil
}

func createOutbox(tx *gorm.DB, row *outboxModel) error {
	if row == nil {
		return nil
	}
	if err := tx.Create(row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrRepositoryInvariantBroke
		}
		return err
	}
	return nil
}

func toNumeric(value uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(value), 0)
}

func fromNumeric(value decimal.Decimal) (uint64, error) {
	if !value.IsInteger() {
		return 0, domainerrors.ErrRepositoryInvariantBroke
	}
	n := value.BigInt()
	if n.Sign() < 0 || !n.IsUint64() {
		return 0, domainerrors.ErrRepositoryInvariantBroke
	}
	return n.Uint64(), nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func constraintName(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}
