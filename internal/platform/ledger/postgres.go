package ledger

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"strings"
	"time"

	ledgerv1 "dropvest/contracts/gen/ledger/v1"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	operationOutstanding = "outstanding"
	operationDeposited   = "deposited"
	operationBurned      = "burned"
)

// Postgres is the durable host ledger shared by the api and worker processes.
// It keeps the same reference semantics as Memory.
type Postgres struct {
	db     *gorm.DB
	denom  string
	logger *slog.Logger
}

func NewPostgres(db *gorm.DB, denom string, logger *slog.Logger) *Postgres {
	if strings.TrimSpace(denom) == "" {
		denom = "DROP"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Postgres{db: db, denom: denom, logger: logger}
}

func (p *Postgres) Migrate(ctx context.Context) error {
	return p.db.WithContext(ctx).AutoMigrate(&balanceModel{}, &operationModel{})
}

func (p *Postgres) Withdraw(ctx context.Context, from string, amount uint64, reference string) (ledgerv1.Asset, error) {
	if amount == 0 || strings.TrimSpace(reference) == "" || strings.TrimSpace(from) == "" {
		return ledgerv1.Asset{}, ledgerv1.ErrInvalidAsset
	}
	if asset, found, err := p.findIssued(ctx, reference); err != nil || found {
		return asset, err
	}

	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row balanceModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("account = ?", from).
			First(&row).
			Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ledgerv1.ErrInsufficientFunds
			}
			return err
		}
		if row.Amount.LessThan(toNumeric(amount)) {
			return ledgerv1.ErrInsufficientFunds
		}
		if err := tx.Model(&balanceModel{}).
			Where("account = ?", from).
			Update("amount", row.Amount.Sub(toNumeric(amount))).
			Error; err != nil {
			return err
		}
		return tx.Create(&operationModel{
			Reference: reference,
			Denom:     p.denom,
			Amount:    toNumeric(amount),
			Source:    from,
			Status:    operationOutstanding,
			CreatedAt: time.Now().UTC(),
		}).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			// A concurrent call with the same reference won.
			asset, _, findErr := p.findIssued(ctx, reference)
			return asset, findErr
		}
		if errors.Is(err, ledgerv1.ErrInsufficientFunds) {
			p.logger.Warn("ledger withdraw rejected",
				"event", "ledger_withdraw_insufficient",
				"module", "internal/platform/ledger",
				"layer", "platform",
				"account", from,
				"amount", amount,
				"reference", reference,
			)
		}
		return ledgerv1.Asset{}, err
	}
	return ledgerv1.Asset{Denom: p.denom, Amount: amount, Reference: reference}, nil
}

func (p *Postgres) Mint(ctx context.Context, amount uint64, reference string) (ledgerv1.Asset, error) {
	if amount == 0 || strings.TrimSpace(reference) == "" {
		return ledgerv1.Asset{}, ledgerv1.ErrInvalidAsset
	}
	if asset, found, err := p.findIssued(ctx, reference); err != nil || found {
		return asset, err
	}
	err := p.db.WithContext(ctx).Create(&operationModel{
		Reference: reference,
		Denom:     p.denom,
		Amount:    toNumeric(amount),
		Source:    "mint",
		Status:    operationOutstanding,
		CreatedAt: time.Now().UTC(),
	}).Error
	if err != nil && !isUniqueViolation(err) {
		return ledgerv1.Asset{}, err
	}
	asset, _, err := p.findIssued(ctx, reference)
	return asset, err
}

func (p *Postgres) Deposit(ctx context.Context, to string, asset ledgerv1.Asset) error {
	if strings.TrimSpace(to) == "" {
		return ledgerv1.ErrInvalidAsset
	}
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		consumed, err := consume(tx, asset, operationDeposited)
		if err != nil || consumed {
			return err
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "account"}},
			DoUpdates: clause.Assignments(map[string]any{"amount": gorm.Expr("ledger_balances.amount + excluded.amount")}),
		}).Create(&balanceModel{Account: to, Amount: toNumeric(asset.Amount)}).Error; err != nil {
			return err
		}
		var row balanceModel
		if err := tx.Where("account = ?", to).First(&row).Error; err != nil {
			return err
		}
		if _, err := fromNumeric(row.Amount); err != nil {
			return ErrBalanceOverflow
		}
		return nil
	})
}

func (p *Postgres) Burn(ctx context.Context, asset ledgerv1.Asset) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, err := consume(tx, asset, operationBurned)
		return err
	})
}

// Fund mints amount straight into account. Replays of reference are no-ops.
func (p *Postgres) Fund(ctx context.Context, account string, amount uint64, reference string) error {
	asset, err := p.Mint(ctx, amount, reference)
	if err != nil {
		return err
	}
	return p.Deposit(ctx, account, asset)
}

func (p *Postgres) Balance(ctx context.Context, account string) (uint64, error) {
	var row balanceModel
	err := p.db.WithContext(ctx).Where("account = ?", account).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return fromNumeric(row.Amount)
}

func (p *Postgres) findIssued(ctx context.Context, reference string) (ledgerv1.Asset, bool, error) {
	var row operationModel
	err := p.db.WithContext(ctx).Where("reference = ?", reference).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ledgerv1.Asset{}, false, nil
	}
	if err != nil {
		return ledgerv1.Asset{}, false, err
	}
	asset, err := row.toAsset()
	return asset, err == nil, err
}

// consume retires an outstanding operation row inside tx. It reports true
// when the row was already retired.
func consume(tx *gorm.DB, asset ledgerv1.Asset, status string) (bool, error) {
	var row operationModel
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("reference = ?", asset.Reference).
		First(&row).
		Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ledgerv1.ErrInvalidAsset
		}
		return false, err
	}
	issued, err := row.toAsset()
	if err != nil {
		return false, err
	}
	if issued != asset {
		return false, ledgerv1.ErrInvalidAsset
	}
	if row.Status != operationOutstanding {
		return true, nil
	}
	return false, tx.Model(&operationModel{}).
		Where("reference = ?", asset.Reference).
		Update("status", status).
		Error
}

type balanceModel struct {
	Account string          `gorm:"column:account;primaryKey"`
	Amount  decimal.Decimal `gorm:"column:amount;type:numeric(20,0)"`
}

func (balanceModel) TableName() string {
	return "ledger_balances"
}

type operationModel struct {
	Reference string          `gorm:"column:reference;primaryKey"`
	Denom     string          `gorm:"column:denom"`
	Amount    decimal.Decimal `gorm:"column:amount;type:numeric(20,0)"`
	Source    string          `gorm:"column:source"`
	Status    string          `gorm:"column:status;index"`
	CreatedAt time.Time       `gorm:"column:created_at"`
}

func (operationModel) TableName() string {
	return "ledger_operations"
}

func (m operationModel) toAsset() (ledgerv1.Asset, error) {
	amount, err := fromNumeric(m.Amount)
	if err != nil {
		return ledgerv1.Asset{}, err
	}
	return ledgerv1.Asset{Denom: m.Denom, Amount: amount, Reference: m.Reference}, nil
}

func toNumeric(value uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(value), 0)
}

func fromNumeric(value decimal.Decimal) (uint64, error) {
	n := value.BigInt()
	if !value.IsInteger() || n.Sign() < 0 || !n.IsUint64() {
		return 0, ErrBalanceOverflow
	}
	return n.Uint64(), nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
