package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"time"

	"dropvest/contexts/token-distribution/airdrop-service/domain/entities"
	domainerrors "dropvest/contexts/token-distribution/airdrop-service/domain/errors"
	"dropvest/contexts/token-distribution/airdrop-service/domain/services"
	"dropvest/contexts/token-distribution/airdrop-service/ports"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending = "pending"
	outboxStatusSent    = "sent"

	constraintClaimIndex   = "airdrop_claims_unique_index"
	constraintClaimRequest = "airdrop_claims_unique_request"
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

// Migrate creates the airdrop tables and their uniqueness constraints.
func (r *Repository) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(
		&campaignModel{},
		&claimModel{},
		&vestingGrantModel{},
		&idempotencyModel{},
		&outboxModel{},
	)
}

func (r *Repository) CreateCampaign(ctx context.Context, campaign entities.Campaign) error {
	row := campaignModelFromEntity(campaign)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrInvalidCampaign
		}
		return err
	}
	return nil
}

func (r *Repository) GetCampaign(ctx context.Context, campaignID string) (entities.Campaign, error) {
	var row campaignModel
	err := r.db.WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Campaign{}, domainerrors.ErrCampaignNotFound
		}
		return entities.Campaign{}, err
	}
	return row.toEntity()
}

func (r *Repository) IsClaimed(ctx context.Context, campaignID string, index uint64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&claimModel{}).
		Where("campaign_id = ? AND claim_index = ?", campaignID, toNumeric(index)).
		Count(&count).
		Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *Repository) CommitClaim(ctx context.Context, commit ports.ClaimCommit) (entities.Campaign, error) {
	envelope, err := commit.Event.Envelope()
	if err != nil {
		return entities.Campaign{}, err
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return entities.Campaign{}, err
	}
	claim := commit.Claim

	var committed entities.Campaign
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row campaignModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("campaign_id = ?", claim.CampaignID).
			First(&row).
			Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrCampaignNotFound
			}
			return err
		}
		campaign, err := row.toEntity()
		if err != nil {
			return err
		}
		if campaign.HasEnded(claim.ClaimedAt) {
			return domainerrors.ErrEnded
		}
		if claim.Index >= campaign.MaxIndex {
			return domainerrors.ErrIndexOutOfRange
		}

		// Uniqueness of the index is enforced by the claims table; the
		// transient set only lets the domain apply its accounting.
		if err := services.CommitClaim(&campaign, entities.NewSparseClaimSet(), claim.Index, claim.Payout, claim.ClaimedAt); err != nil {
			return err
		}

		claimRow := claimModelFromEntity(claim)
		if err := tx.Create(&claimRow).Error; err != nil {
			if isUniqueViolation(err) {
				switch constraintName(err) {
				case constraintClaimIndex:
					return domainerrors.ErrAlreadyClaimed
				case constraintClaimRequest:
					return domainerrors.ErrDuplicateRequestID
				}
				return domainerrors.ErrRepositoryInvariantBroke
			}
			return err
		}

		if commit.VestingGrant {
			grant := vestingGrantModel{
				CampaignID: claim.CampaignID,
				Address:    claim.Address.String(),
				ClaimID:    claim.ClaimID,
				CreatedAt:  claim.ClaimedAt.UTC(),
			}
			if err := tx.Create(&grant).Error; err != nil {
				if isUniqueViolation(err) {
					return domainerrors.ErrAlreadyHasPosition
				}
				return err
			}
		}

		result := tx.Model(&campaignModel{}).
			Where("campaign_id = ?", campaign.CampaignID).
			Updates(map[string]any{
				"total_claimed": toNumeric(campaign.TotalClaimed),
				"total_burned":  toNumeric(campaign.TotalBurned),
				"claim_count":   toNumeric(campaign.ClaimCount),
				"updated_at":    campaign.UpdatedAt.UTC(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domainerrors.ErrRepositoryInvariantBroke
		}

		outboxRow := outboxModel{
			OutboxID:     commit.Event.EventID,
			EventType:    commit.Event.EventType,
			PartitionKey: commit.Event.PartitionKey,
			Payload:      payload,
			Status:       outboxStatusPending,
			CreatedAt:    commit.Event.OccurredAt.UTC(),
		}
		if err := tx.Create(&outboxRow).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrRepositoryInvariantBroke
			}
			return err
		}
		committed = campaign
		return nil
	})
	if err != nil {
		return entities.Campaign{}, err
	}

	r.logger.Debug("claim committed",
		"event", "postgres_commit_claim",
		"module", "token-distribution/airdrop-service",
		"layer", "adapter",
		"claim_id", claim.ClaimID,
		"campaign_id", claim.CampaignID,
	)
	return committed, nil
}

func (r *Repository) UpdateCampaignStatus(ctx context.Context, campaign entities.Campaign) error {
	result := r.db.WithContext(ctx).
		Model(&campaignModel{}).
		Where("campaign_id = ?", campaign.CampaignID).
		Updates(map[string]any{
			"status":     string(campaign.Status),
			"end_time":   campaign.EndTime.UTC(),
			"updated_at": campaign.UpdatedAt.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrCampaignNotFound
	}
	return nil
}

func (r *Repository) GetClaim(ctx context.Context, claimID string) (entities.ClaimRecord, error) {
	var row claimModel
	err := r.db.WithContext(ctx).
		Where("claim_id = ?", claimID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.ClaimRecord{}, domainerrors.ErrClaimNotFound
		}
		return entities.ClaimRecord{}, err
	}
	return row.toEntity()
}

func (r *Repository) GetClaimByIndex(ctx context.Context, campaignID string, index uint64) (entities.ClaimRecord, bool, error) {
	return r.findClaim(ctx, "campaign_id = ? AND claim_index = ?", campaignID, toNumeric(index))
}

func (r *Repository) GetClaimByRequestID(ctx context.Context, campaignID string, requestID string) (entities.ClaimRecord, bool, error) {
	return r.findClaim(ctx, "campaign_id = ? AND request_id = ?", campaignID, requestID)
}

func (r *Repository) findClaim(ctx context.Context, query string, args ...any) (entities.ClaimRecord, bool, error) {
	var row claimModel
	err := r.db.WithContext(ctx).
		Where(query, args...).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.ClaimRecord{}, false, nil
		}
		return entities.ClaimRecord{}, false, err
	}
	claim, err := row.toEntity()
	if err != nil {
		return entities.ClaimRecord{}, false, err
	}
	return claim, true, nil
}

func (r *Repository) ListClaimsByAddress(ctx context.Context, campaignID string, address entities.Address) ([]entities.ClaimRecord, error) {
	var rows []claimModel
	if err := r.db.WithContext(ctx).
		Where("campaign_id = ? AND address = ?", campaignID, address.String()).
		Order("claim_index ASC").
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	return claimsFromRows(rows)
}

func (r *Repository) ListPendingSettlements(ctx context.Context, limit int) ([]entities.ClaimRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []claimModel
	if err := r.db.WithContext(ctx).
		Where("settlement_status = ?", string(entities.SettlementPending)).
		Order("claimed_at ASC").
		Limit(limit).
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	return claimsFromRows(rows)
}

func (r *Repository) MarkClaimSettled(ctx context.Context, claimID string, settledAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&claimModel{}).
		Where("claim_id = ?", claimID).
		Updates(map[string]any{
			"settlement_status": string(entities.SettlementSettled),
			"settled_at":        settledAt.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrClaimNotFound
	}
	return nil
}

func (r *Repository) MarkClaimRefundRequired(ctx context.Context, claimID string, _ time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&claimModel{}).
		Where("claim_id = ? AND settlement_status = ?", claimID, string(entities.SettlementPending)).
		Update("settlement_status", string(entities.SettlementRefundRequired))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := r.GetClaim(ctx, claimID); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	var row idempotencyModel
	err := r.db.WithContext(ctx).
		Where("key = ?", key).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.IdempotencyRecord{}, false, nil
		}
		return ports.IdempotencyRecord{}, false, err
	}

	if !row.ExpiresAt.IsZero() && now.UTC().After(row.ExpiresAt.UTC()) {
		if err := r.db.WithContext(ctx).
			Where("key = ?", key).
			Delete(&idempotencyModel{}).
			Error; err != nil {
			return ports.IdempotencyRecord{}, false, err
		}
		return ports.IdempotencyRecord{}, false, nil
	}

	return row.toPort(), true, nil
}

func (r *Repository) Put(ctx context.Context, record ports.IdempotencyRecord) error {
	row := idempotencyModel{
		Key:         record.Key,
		RequestHash: record.RequestHash,
		ClaimID:     record.ClaimID,
		ExpiresAt:   record.ExpiresAt.UTC(),
	}
	createResult := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoNothing: true,
		}).
		Create(&row)
	if createResult.Error != nil {
		return createResult.Error
	}
	if createResult.RowsAffected > 0 {
		return nil
	}

	var existing idempotencyModel
	if err := r.db.WithContext(ctx).
		Where("key = ?", record.Key).
		First(&existing).
		Error; err != nil {
		return err
	}
	if existing.RequestHash != record.RequestHash {
		return domainerrors.ErrIdempotencyKeyConflict
	}
	return nil
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

type campaignModel struct {
	CampaignID      string          `gorm:"column:campaign_id;primaryKey"`
	AdminID         string          `gorm:"column:admin_id"`
	Root            string          `gorm:"column:merkle_root;size:66"`
	TreasuryAccount string          `gorm:"column:treasury_account"`
	TokenDenom      string          `gorm:"column:token_denom"`
	TokenDecimals   int16           `gorm:"column:token_decimals"`
	TotalAllocation decimal.Decimal `gorm:"column:total_allocation;type:numeric(20,0)"`
	TotalClaimed    decimal.Decimal `gorm:"column:total_claimed;type:numeric(20,0)"`
	TotalBurned     decimal.Decimal `gorm:"column:total_burned;type:numeric(20,0)"`
	ClaimCount      decimal.Decimal `gorm:"column:claim_count;type:numeric(20,0)"`
	MaxIndex        decimal.Decimal `gorm:"column:max_index;type:numeric(20,0)"`
	StartTime       time.Time       `gorm:"column:start_time"`
	EndTime         time.Time       `gorm:"column:end_time"`
	LockMinSeconds  int64           `gorm:"column:lock_min_seconds"`
	LockMaxSeconds  int64           `gorm:"column:lock_max_seconds"`
	Status          string          `gorm:"column:status"`
	CreatedAt       time.Time       `gorm:"column:created_at"`
	UpdatedAt       time.Time       `gorm:"column:updated_at"`
}

func (campaignModel) TableName() string {
	return "airdrop_campaigns"
}

func campaignModelFromEntity(campaign entities.Campaign) campaignModel {
	return campaignModel{
		CampaignID:      campaign.CampaignID,
		AdminID:         campaign.AdminID,
		Root:            campaign.Root.String(),
		TreasuryAccount: campaign.TreasuryAccount,
		TokenDenom:      campaign.TokenDenom,
		TokenDecimals:   int16(campaign.TokenDecimals),
		TotalAllocation: toNumeric(campaign.TotalAllocation),
		TotalClaimed:    toNumeric(campaign.TotalClaimed),
		TotalBurned:     toNumeric(campaign.TotalBurned),
		ClaimCount:      toNumeric(campaign.ClaimCount),
		MaxIndex:        toNumeric(campaign.MaxIndex),
		StartTime:       campaign.StartTime.UTC(),
		EndTime:         campaign.EndTime.UTC(),
		LockMinSeconds:  int64(campaign.LockMinDuration / time.Second),
		LockMaxSeconds:  int64(campaign.LockMaxDuration / time.Second),
		Status:          string(campaign.Status),
		CreatedAt:       campaign.CreatedAt.UTC(),
		UpdatedAt:       campaign.UpdatedAt.UTC(),
	}
}

func (m campaignModel) toEntity() (entities.Campaign, error) {
	root, err := entities.ParseHash(m.Root)
	if err != nil {
		return entities.Campaign{}, domainerrors.ErrRepositoryInvariantBroke
	}
	var amounts [5]uint64
	for i, value := range []decimal.Decimal{m.TotalAllocation, m.TotalClaimed, m.TotalBurned, m.ClaimCount, m.MaxIndex} {
		if amounts[i], err = fromNumeric(value); err != nil {
			return entities.Campaign{}, err
		}
	}
	return entities.Campaign{
		CampaignID:      m.CampaignID,
		AdminID:         m.AdminID,
		Root:            root,
		TreasuryAccount: m.TreasuryAccount,
		TokenDenom:      m.TokenDenom,
		TokenDecimals:   uint8(m.TokenDecimals),
		TotalAllocation: amounts[0],
		TotalClaimed:    amounts[1],
		TotalBurned:     amounts[2],
		ClaimCount:      amounts[3],
		MaxIndex:        amounts[4],
		StartTime:       m.StartTime.UTC(),
		EndTime:         m.EndTime.UTC(),
		LockMinDuration: time.Duration(m.LockMinSeconds) * time.Second,
		LockMaxDuration: time.Duration(m.LockMaxSeconds) * time.Second,
		Status:          entities.CampaignStatus(m.Status),
		CreatedAt:       m.CreatedAt.UTC(),
		UpdatedAt:       m.UpdatedAt.UTC(),
	}, nil
}

type claimModel struct {
	ClaimID          string          `gorm:"column:claim_id;primaryKey"`
	CampaignID       string          `gorm:"column:campaign_id;uniqueIndex:airdrop_claims_unique_index,priority:1;uniqueIndex:airdrop_claims_unique_request,priority:1"`
	ClaimIndex       decimal.Decimal `gorm:"column:claim_index;type:numeric(20,0);uniqueIndex:airdrop_claims_unique_index,priority:2"`
	Address          string          `gorm:"column:address;size:66;index"`
	DeclaredAmount   decimal.Decimal `gorm:"column:declared_amount;type:numeric(20,0)"`
	Variant          string          `gorm:"column:variant"`
	Received         decimal.Decimal `gorm:"column:received_amount;type:numeric(20,0)"`
	Burned           decimal.Decimal `gorm:"column:burned_amount;type:numeric(20,0)"`
	Vested           decimal.Decimal `gorm:"column:vested_amount;type:numeric(20,0)"`
	Locked           decimal.Decimal `gorm:"column:locked_amount;type:numeric(20,0)"`
	LockSeconds      int64           `gorm:"column:lock_seconds"`
	RequestID        string          `gorm:"column:request_id;uniqueIndex:airdrop_claims_unique_request,priority:2"`
	SettlementStatus string          `gorm:"column:settlement_status;index"`
	ClaimedAt        time.Time       `gorm:"column:claimed_at"`
	SettledAt        *time.Time      `gorm:"column:settled_at"`
}

func (claimModel) TableName() string {
	return "airdrop_claims"
}

func claimModelFromEntity(claim entities.ClaimRecord) claimModel {
	return claimModel{
		ClaimID:          claim.ClaimID,
		CampaignID:       claim.CampaignID,
		ClaimIndex:       toNumeric(claim.Index),
		Address:          claim.Address.String(),
		DeclaredAmount:   toNumeric(claim.DeclaredAmount),
		Variant:          string(claim.Variant),
		Received:         toNumeric(claim.Payout.Received),
		Burned:           toNumeric(claim.Payout.Burned),
		Vested:           toNumeric(claim.Payout.Vested),
		Locked:           toNumeric(claim.Payout.Locked),
		LockSeconds:      int64(claim.LockDuration / time.Second),
		RequestID:        claim.RequestID,
		SettlementStatus: string(claim.SettlementStatus),
		ClaimedAt:        claim.ClaimedAt.UTC(),
		SettledAt:        claim.SettledAt,
	}
}

func (m claimModel) toEntity() (entities.ClaimRecord, error) {
	address, err := entities.ParseAddress(m.Address)
	if err != nil {
		return entities.ClaimRecord{}, domainerrors.ErrRepositoryInvariantBroke
	}
	var values [6]uint64
	for i, value := range []decimal.Decimal{m.ClaimIndex, m.DeclaredAmount, m.Received, m.Burned, m.Vested, m.Locked} {
		if values[i], err = fromNumeric(value); err != nil {
			return entities.ClaimRecord{}, err
		}
	}
	var settledAt *time.Time
	if m.SettledAt != nil {
		at := m.SettledAt.UTC()
		settledAt = &at
	}
	return entities.ClaimRecord{
		ClaimID:        m.ClaimID,
		CampaignID:     m.CampaignID,
		Index:          values[0],
		Address:        address,
		DeclaredAmount: values[1],
		Variant:        entities.ClaimVariant(m.Variant),
		Payout: entities.Payout{
			Received: values[2],
			Burned:   values[3],
			Vested:   values[4],
			Locked:   values[5],
		},
		LockDuration:     time.Duration(m.LockSeconds) * time.Second,
		RequestID:        m.RequestID,
		SettlementStatus: entities.SettlementStatus(m.SettlementStatus),
		ClaimedAt:        m.ClaimedAt.UTC(),
		SettledAt:        settledAt,
	}, nil
}

// vestingGrantModel reserves a claimant's one vesting claim across campaigns.
type vestingGrantModel struct {
	Address    string    `gorm:"column:address;primaryKey;size:66"`
	CampaignID string    `gorm:"column:campaign_id;index"`
	ClaimID    string    `gorm:"column:claim_id"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

func (vestingGrantModel) TableName() string {
	return "airdrop_vesting_grants"
}

type idempotencyModel struct {
	Key         string    `gorm:"column:key;primaryKey"`
	RequestHash string    `gorm:"column:request_hash"`
	ClaimID     string    `gorm:"column:claim_id"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
}

func (idempotencyModel) TableName() string {
	return "airdrop_idempotency"
}

func (m idempotencyModel) toPort() ports.IdempotencyRecord {
	return ports.IdempotencyRecord{
		Key:         m.Key,
		RequestHash: m.RequestHash,
		ClaimID:     m.ClaimID,
		ExpiresAt:   m.ExpiresAt.UTC(),
	}
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
	return "airdrop_outbox"
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

func claimsFromRows(rows []claimModel) ([]entities.ClaimRecord, error) {
	items := make([]entities.ClaimRecord, 0, len(rows))
	for _, row := range rows {
		claim, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		items = append(items, claim)
	}
	return items, nil
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
