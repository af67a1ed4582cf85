package vestingservice

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"dropvest/contexts/token-distribution/vesting-service/application/commands"
	domainerrors "dropvest/contexts/token-distribution/vesting-service/domain/errors"
	"dropvest/contexts/token-distribution/vesting-service/ports"
	httptransport "dropvest/contexts/token-distribution/vesting-service/transport/http"
	ledgerv1 "dropvest/contracts/gen/ledger/v1"
	"dropvest/internal/platform/ledger"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestModule(t *testing.T) (Module, *ledger.Memory, *testClock) {
	t.Helper()
	hostLedger := ledger.NewMemory("DROP", nil)
	if err := hostLedger.Fund(context.Background(), "treasury", 1_000_000, "seed:treasury"); err != nil {
		t.Fatalf("fund treasury: %v", err)
	}
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	module := NewInMemoryModule(hostLedger, nil, nil)
	module.Store.SetClock(clock.Now)
	return module, hostLedger, clock
}

func createDefaultSchedule(t *testing.T, module Module) {
	t.Helper()
	_, err := module.Handler.CreateScheduleHandler(context.Background(), httptransport.CreateScheduleRequest{
		ScheduleID:        "standard",
		TGEBasisPoints:    1000,
		CliffBasisPoints:  1000,
		CliffDurationSec:  3600,
		PeriodDurationSec: 3600,
		NumPeriods:        10,
	})
	if err != nil {
		t.Fatalf("create schedule: %v", err)
	}
}

func TestFirstScheduleBecomesImmutableDefault(t *testing.T) {
	module, _, _ := newTestModule(t)
	createDefaultSchedule(t, module)

	resp, err := module.Handler.GetScheduleHandler(context.Background(), "default")
	if err != nil {
		t.Fatalf("get default schedule: %v", err)
	}
	if resp.Item.ScheduleID != "standard" || !resp.Item.IsDefault {
		t.Fatalf("expected standard to be the default, got %+v", resp.Item)
	}

	_, err = module.Handler.CreateScheduleHandler(context.Background(), httptransport.CreateScheduleRequest{
		ScheduleID:        "replacement",
		TGEBasisPoints:    0,
		CliffBasisPoints:  0,
		CliffDurationSec:  60,
		PeriodDurationSec: 60,
		NumPeriods:        1,
		IsDefault:         true,
	})
	if !errors.Is(err, domainerrors.ErrDefaultScheduleExists) {
		t.Fatalf("expected ErrDefaultScheduleExists, got %v", err)
	}

	_, err = module.Handler.CreateScheduleHandler(context.Background(), httptransport.CreateScheduleRequest{
		ScheduleID:        "too-generous",
		TGEBasisPoints:    6000,
		CliffBasisPoints:  5000,
		CliffDurationSec:  60,
		PeriodDurationSec: 60,
		NumPeriods:        1,
	})
	if !errors.Is(err, domainerrors.ErrInvalidSchedule) {
		t.Fatalf("expected ErrInvalidSchedule, got %v", err)
	}
}

func TestAdminPositionReleaseFlow(t *testing.T) {
	ctx := context.Background()
	module, hostLedger, clock := newTestModule(t)
	createDefaultSchedule(t, module)

	_, err := module.Handler.CreatePositionHandler(ctx, "admin-1", httptransport.CreatePositionRequest{
		Beneficiary:    "Alice",
		TotalAmount:    "1000",
		FundingAccount: "treasury",
	})
	if err != nil {
		t.Fatalf("create position: %v", err)
	}
	escrow := ledgerv1.EscrowAccount(ledgerv1.EscrowKindVesting, "alice").Account
	if hostLedger.Balance(escrow) != 1000 {
		t.Fatalf("expected escrow funded with 1000, got %d", hostLedger.Balance(escrow))
	}

	_, err = module.Handler.CreatePositionHandler(ctx, "admin-1", httptransport.CreatePositionRequest{
		Beneficiary:    "alice",
		TotalAmount:    "5",
		FundingAccount: "treasury",
	})
	if !errors.Is(err, domainerrors.ErrAlreadyHasPosition) {
		t.Fatalf("expected ErrAlreadyHasPosition, got %v", err)
	}

	release, err := module.Handler.ReleaseHandler(ctx, "alice")
	if err != nil {
		t.Fatalf("tge release: %v", err)
	}
	if release.Release.Amount != "100" || !release.Settled {
		t.Fatalf("expected settled tge release of 100, got %+v", release)
	}
	if hostLedger.Balance("alice") != 100 {
		t.Fatalf("expected alice to hold 100, got %d", hostLedger.Balance("alice"))
	}

	if _, err := module.Handler.ReleaseHandler(ctx, "alice"); !errors.Is(err, domainerrors.ErrNothingToClaim) {
		t.Fatalf("expected ErrNothingToClaim, got %v", err)
	}

	clock.Advance(2 * time.Hour)
	status, err := module.Handler.GetPositionHandler(ctx, "alice")
	if err != nil {
		t.Fatalf("get position: %v", err)
	}
	if status.Unlocked != "280" || status.Releasable != "180" {
		t.Fatalf("expected unlocked=280 releasable=180, got %s/%s", status.Unlocked, status.Releasable)
	}
	if status.NextUnlockTime == nil {
		t.Fatalf("expected a next unlock time mid-schedule")
	}

	clock.Advance(20 * time.Hour)
	if _, err := module.Handler.ReleaseHandler(ctx, "alice"); err != nil {
		t.Fatalf("final release: %v", err)
	}
	if hostLedger.Balance("alice") != 1000 || hostLedger.Balance(escrow) != 0 {
		t.Fatalf("expected escrow drained to alice, got alice=%d escrow=%d", hostLedger.Balance("alice"), hostLedger.Balance(escrow))
	}
	if _, err := module.Handler.ReleaseHandler(ctx, "alice"); !errors.Is(err, domainerrors.ErrCompleted) {
		t.Fatalf("expected ErrCompleted, got %v", err)
	}

	status, _ = module.Handler.GetPositionHandler(ctx, "alice")
	if status.NextUnlockTime != nil {
		t.Fatalf("expected null next unlock time after full vesting")
	}
}

func TestOpenPositionFromGrantIsIdempotent(t *testing.T) {
	ctx := context.Background()
	module, _, clock := newTestModule(t)
	createDefaultSchedule(t, module)

	cmd := commands.OpenPositionFromGrantCommand{
		Beneficiary:   "0xbeef",
		Amount:        400,
		StartTime:     clock.Now(),
		EscrowAccount: ledgerv1.EscrowAccount(ledgerv1.EscrowKindVesting, "0xbeef").Account,
		SourceRef:     "airdrop:claim-1",
	}
	first, err := module.OpenPosition.Execute(ctx, cmd)
	if err != nil {
		t.Fatalf("open position: %v", err)
	}
	second, err := module.OpenPosition.Execute(ctx, cmd)
	if err != nil {
		t.Fatalf("replay open position: %v", err)
	}
	if first.PositionID != second.PositionID || second.ScheduleID != "standard" {
		t.Fatalf("expected replay to return the same default-schedule position")
	}

	cmd.SourceRef = "airdrop:claim-2"
	if _, err := module.OpenPosition.Execute(ctx, cmd); !errors.Is(err, domainerrors.ErrAlreadyHasPosition) {
		t.Fatalf("expected ErrAlreadyHasPosition for a second grant, got %v", err)
	}
}

func TestAutoReleaserSkipsNothingToClaim(t *testing.T) {
	ctx := context.Background()
	module, hostLedger, clock := newTestModule(t)
	createDefaultSchedule(t, module)

	for _, beneficiary := range []string{"bob", "carol"} {
		if _, err := module.Handler.CreatePositionHandler(ctx, "admin-1", httptransport.CreatePositionRequest{
			Beneficiary:    beneficiary,
			TotalAmount:    "1000",
			FundingAccount: "treasury",
		}); err != nil {
			t.Fatalf("create position %s: %v", beneficiary, err)
		}
	}
	if _, err := module.Handler.ReleaseHandler(ctx, "bob"); err != nil {
		t.Fatalf("release bob: %v", err)
	}

	summary, err := module.AutoReleaser.RunOnce(ctx)
	if err != nil {
		t.Fatalf("auto release: %v", err)
	}
	if summary.Scanned != 2 || summary.Released != 1 || summary.Skipped != 1 || summary.Failed != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if hostLedger.Balance("carol") != 100 {
		t.Fatalf("expected carol's tge released, got %d", hostLedger.Balance("carol"))
	}

	clock.Advance(time.Hour)
	summary, err = module.AutoReleaser.RunOnce(ctx)
	if err != nil || summary.Released != 2 {
		t.Fatalf("expected both cliff tranches released, got %+v err=%v", summary, err)
	}
}

func TestLockLifecycle(t *testing.T) {
	ctx := context.Background()
	module, hostLedger, clock := newTestModule(t)

	escrow := ledgerv1.EscrowAccount(ledgerv1.EscrowKindLock, "dave").Account
	if err := hostLedger.Fund(ctx, escrow, 300, "test:lock-escrow"); err != nil {
		t.Fatalf("fund lock escrow: %v", err)
	}
	cmd := commands.CreateLockCommand{
		Owner:         "dave",
		Amount:        300,
		Duration:      48 * time.Hour,
		EscrowAccount: escrow,
		SourceRef:     "airdrop:claim-9",
	}
	created, err := module.CreateLock.Execute(ctx, cmd)
	if err != nil || !created.Created {
		t.Fatalf("create lock: created=%v err=%v", created.Created, err)
	}
	replayed, err := module.CreateLock.Execute(ctx, cmd)
	if err != nil || replayed.Created || replayed.Lock.LockID != created.Lock.LockID {
		t.Fatalf("expected idempotent lock replay, got %+v err=%v", replayed, err)
	}

	lockID := created.Lock.LockID
	if _, err := module.Handler.WithdrawLockHandler(ctx, "dave", lockID); !errors.Is(err, domainerrors.ErrLockActive) {
		t.Fatalf("expected ErrLockActive, got %v", err)
	}
	clock.Advance(48 * time.Hour)
	if _, err := module.Handler.WithdrawLockHandler(ctx, "mallory", lockID); !errors.Is(err, domainerrors.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := module.Handler.WithdrawLockHandler(ctx, "dave", lockID); err != nil {
		t.Fatalf("withdraw lock: %v", err)
	}
	if hostLedger.Balance("dave") != 300 {
		t.Fatalf("expected dave to receive 300, got %d", hostLedger.Balance("dave"))
	}
	if _, err := module.Handler.WithdrawLockHandler(ctx, "dave", lockID); !errors.Is(err, domainerrors.ErrLockWithdrawn) {
		t.Fatalf("expected ErrLockWithdrawn, got %v", err)
	}

	list, err := module.Handler.ListLocksHandler(ctx, "dave")
	if err != nil || len(list.Items) != 1 {
		t.Fatalf("expected one lock listed, got %+v err=%v", list, err)
	}
}

func TestReleaseRetrierSettlesPendingRelease(t *testing.T) {
	ctx := context.Background()
	module, hostLedger, _ := newTestModule(t)
	createDefaultSchedule(t, module)

	// An airdrop grant whose escrow was never funded leaves the release pending.
	escrow := ledgerv1.EscrowAccount(ledgerv1.EscrowKindVesting, "erin").Account
	if _, err := module.OpenPosition.Execute(ctx, commands.OpenPositionFromGrantCommand{
		Beneficiary:   "erin",
		Amount:        1000,
		EscrowAccount: escrow,
		SourceRef:     "airdrop:claim-3",
	}); err != nil {
		t.Fatalf("open position: %v", err)
	}
	resp, err := module.Handler.ReleaseHandler(ctx, "erin")
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if resp.Settled {
		t.Fatalf("expected unsettled release against an empty escrow")
	}

	if err := hostLedger.Fund(ctx, escrow, 1000, "test:late-funding"); err != nil {
		t.Fatalf("fund escrow: %v", err)
	}
	if err := module.Releases.RunOnce(ctx); err != nil {
		t.Fatalf("retry releases: %v", err)
	}
	if hostLedger.Balance("erin") != 100 {
		t.Fatalf("expected retried release to pay 100, got %d", hostLedger.Balance("erin"))
	}
	if err := module.Releases.RunOnce(ctx); err != nil {
		t.Fatalf("second retry pass: %v", err)
	}
	if hostLedger.Balance("erin") != 100 {
		t.Fatalf("release paid twice: %d", hostLedger.Balance("erin"))
	}
}

func TestOutboxRelayPublishesOnce(t *testing.T) {
	ctx := context.Background()
	module, _, _ := newTestModule(t)
	createDefaultSchedule(t, module)

	publisher := &recordingPublisher{}
	module.OutboxRelay.Publisher = publisher
	if _, err := module.Handler.CreatePositionHandler(ctx, "admin-1", httptransport.CreatePositionRequest{
		Beneficiary:    "frank",
		TotalAmount:    "10",
		FundingAccount: "treasury",
	}); err != nil {
		t.Fatalf("create position: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := module.OutboxRelay.RunOnce(ctx); err != nil {
			t.Fatalf("relay pass %d: %v", i, err)
		}
	}
	if len(publisher.events) != 1 || publisher.topics[0] != "vesting.events" {
		t.Fatalf("expected one event on vesting.events, got %d %v", len(publisher.events), publisher.topics)
	}
}

type recordingPublisher struct {
	topics []string
	events []string
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, event ports.EventEnvelope) error {
	p.topics = append(p.topics, topic)
	p.events = append(p.events, event.EventType)
	return nil
}
