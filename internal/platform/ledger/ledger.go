package ledger

import (
	"context"
	"errors"
	"log/slog"
	"math/bits"
	"sort"
	"strings"
	"sync"

	ledgerv1 "dropvest/contracts/gen/ledger/v1"
)

var ErrBalanceOverflow = errors.New("ledger balance overflow")

// Host is a TokenLedger that can also credit accounts directly.
type Host interface {
	ledgerv1.TokenLedger
	Fund(ctx context.Context, account string, amount uint64, reference string) error
}

var (
	_ Host = (*Memory)(nil)
	_ Host = (*Postgres)(nil)
)

// Seed funds each account once. The reference is derived from the account so
// restarting with the same seed does not mint again.
func Seed(ctx context.Context, host Host, seed map[string]uint64) error {
	accounts := make([]string, 0, len(seed))
	for account := range seed {
		accounts = append(accounts, account)
	}
	sort.Strings(accounts)
	for _, account := range accounts {
		if err := host.Fund(ctx, account, seed[account], "seed:"+account); err != nil {
			return err
		}
	}
	return nil
}

// Memory is an in-process host ledger. Balances are keyed by account string;
// escrow sub-accounts are ordinary accounts named by ledgerv1.EscrowAccount.
//
// Every operation is keyed by a reference. Replaying a Withdraw or Mint returns
// the original asset without moving funds again; replaying a Deposit or Burn of
// an asset that was already consumed is a no-op.
type Memory struct {
	mu          sync.Mutex
	denom       string
	balances    map[string]uint64
	issued      map[string]ledgerv1.Asset
	outstanding map[string]struct{}
	burned      uint64
	logger      *slog.Logger
}

func NewMemory(denom string, logger *slog.Logger) *Memory {
	if strings.TrimSpace(denom) == "" {
		denom = "DROP"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Memory{
		denom:       denom,
		balances:    make(map[string]uint64),
		issued:      make(map[string]ledgerv1.Asset),
		outstanding: make(map[string]struct{}),
		logger:      logger,
	}
}

func (m *Memory) Withdraw(_ context.Context, from string, amount uint64, reference string) (ledgerv1.Asset, error) {
	if amount == 0 || strings.TrimSpace(reference) == "" || strings.TrimSpace(from) == "" {
		return ledgerv1.Asset{}, ledgerv1.ErrInvalidAsset
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if asset, ok := m.issued[reference]; ok {
		return asset, nil
	}
	balance := m.balances[from]
	if balance < amount {
		m.logger.Warn("ledger withdraw rejected",
			"event", "ledger_withdraw_insufficient",
			"module", "internal/platform/ledger",
			"layer", "platform",
			"account", from,
			"amount", amount,
			"balance", balance,
			"reference", reference,
		)
		return ledgerv1.Asset{}, ledgerv1.ErrInsufficientFunds
	}
	m.balances[from] = balance - amount
	return m.issue(amount, reference), nil
}

func (m *Memory) Deposit(_ context.Context, to string, asset ledgerv1.Asset) error {
	if strings.TrimSpace(to) == "" {
		return ledgerv1.ErrInvalidAsset
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	consumed, err := m.consume(asset)
	if err != nil || consumed {
		return err
	}
	next, carry := bits.Add64(m.balances[to], asset.Amount, 0)
	if carry != 0 {
		// Put the asset back so the caller can retry elsewhere.
		m.outstanding[asset.Reference] = struct{}{}
		return ErrBalanceOverflow
	}
	m.balances[to] = next
	return nil
}

func (m *Memory) Mint(_ context.Context, amount uint64, reference string) (ledgerv1.Asset, error) {
	if amount == 0 || strings.TrimSpace(reference) == "" {
		return ledgerv1.Asset{}, ledgerv1.ErrInvalidAsset
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if asset, ok := m.issued[reference]; ok {
		return asset, nil
	}
	return m.issue(amount, reference), nil
}

func (m *Memory) Burn(_ context.Context, asset ledgerv1.Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	consumed, err := m.consume(asset)
	if err != nil || consumed {
		return err
	}
	m.burned += asset.Amount
	return nil
}

// Fund mints amount straight into account. Replays of reference are no-ops.
func (m *Memory) Fund(ctx context.Context, account string, amount uint64, reference string) error {
	asset, err := m.Mint(ctx, amount, reference)
	if err != nil {
		return err
	}
	return m.Deposit(ctx, account, asset)
}

func (m *Memory) Balance(account string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[account]
}

func (m *Memory) Burned() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.burned
}

// issue must be called with mu held.
func (m *Memory) issue(amount uint64, reference string) ledgerv1.Asset {
	asset := ledgerv1.Asset{Denom: m.denom, Amount: amount, Reference: reference}
	m.issued[reference] = asset
	m.outstanding[reference] = struct{}{}
	return asset
}

// consume retires an outstanding asset. It reports true when the asset was
// already retired by an earlier call. Must be called with mu held.
func (m *Memory) consume(asset ledgerv1.Asset) (bool, error) {
	issued, ok := m.issued[asset.Reference]
	if !ok || issued != asset {
		return false, ledgerv1.ErrInvalidAsset
	}
	if _, pending := m.outstanding[asset.Reference]; !pending {
		return true, nil
	}
	delete(m.outstanding, asset.Reference)
	return false, nil
}
