package airdropservice

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"dropvest/contexts/token-distribution/airdrop-service/domain/entities"
	domainerrors "dropvest/contexts/token-distribution/airdrop-service/domain/errors"
	"dropvest/contexts/token-distribution/airdrop-service/ports"
	httptransport "dropvest/contexts/token-distribution/airdrop-service/transport/http"
	vestingservice "dropvest/contexts/token-distribution/vesting-service"
	vestingtransport "dropvest/contexts/token-distribution/vesting-service/transport/http"
	ledgerv1 "dropvest/contracts/gen/ledger/v1"
	"dropvest/internal/merkletree"
	"dropvest/internal/platform/bridge"
	"dropvest/internal/platform/ledger"
)

type fixture struct {
	airdrop Module
	vesting vestingservice.Module
	ledger  *ledger.Memory
	entries []merkletree.Entry
	tree    *merkletree.Tree
	now     time.Time
}

func newFixture(t *testing.T, treasuryFunding uint64) *fixture {
	t.Helper()
	f := &fixture{
		ledger: ledger.NewMemory("DROP", nil),
		now:    time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }

	f.vesting = vestingservice.NewInMemoryModule(f.ledger, nil, nil)
	f.vesting.Store.SetClock(clock)
	if _, err := f.vesting.Handler.CreateScheduleHandler(context.Background(), vestingtransport.CreateScheduleRequest{
		ScheduleID:        "standard",
		TGEBasisPoints:    1000,
		CliffBasisPoints:  1000,
		CliffDurationSec:  3600,
		PeriodDurationSec: 3600,
		NumPeriods:        10,
	}); err != nil {
		t.Fatalf("create default schedule: %v", err)
	}

	gateway := bridge.NewVesting(f.vesting)
	f.airdrop = NewInMemoryModule(f.ledger, gateway, gateway, nil, nil)
	f.airdrop.Store.SetClock(clock)

	for i := 0; i < 5; i++ {
		addr, err := entities.ParseAddress(fmt.Sprintf("0x%x", 0xc1a1+i))
		if err != nil {
			t.Fatalf("parse address: %v", err)
		}
		f.entries = append(f.entries, merkletree.Entry{Address: addr, Amount: uint64(200 * (i + 1)), Index: uint64(i)})
	}
	// Index 1 carries an odd amount for the slashed split.
	f.entries[1].Amount = 1001
	tree, err := merkletree.Build(f.entries, nil)
	if err != nil {
		t.Fatalf("build tree: %v", err)
	}
	f.tree = tree

	if treasuryFunding > 0 {
		if err := f.ledger.Fund(context.Background(), "treasury", treasuryFunding, "seed:treasury"); err != nil {
			t.Fatalf("fund treasury: %v", err)
		}
	}
	return f
}

// staleGateway reports no existing position, as a pre-check that ran before
// a concurrent position was opened would.
type staleGateway struct {
	bridge.Vesting
}

func (staleGateway) HasPosition(context.Context, string) (bool, error) {
	return false, nil
}

func (f *fixture) rewire(vesting ports.VestingGateway, locker ports.EscrowLocker) {
	f.airdrop = NewInMemoryModule(f.ledger, vesting, locker, nil, nil)
	f.airdrop.Store.SetClock(func() time.Time { return f.now })
}

func (f *fixture) createCampaign(t *testing.T, campaignID string) httptransport.CampaignDTO {
	t.Helper()
	resp, err := f.airdrop.Handler.CreateCampaignHandler(context.Background(), "admin-1", httptransport.CreateCampaignRequest{
		CampaignID:         campaignID,
		MerkleRoot:         f.tree.Root().String(),
		TreasuryAccount:    "treasury",
		TokenDenom:         "DROP",
		TokenDecimals:      2,
		TotalAllocation:    strconv.FormatUint(f.tree.TotalAllocation(), 10),
		MaxIndex:           strconv.FormatUint(f.tree.MaxIndex(), 10),
		EndTime:            f.now.Add(72 * time.Hour).Format(time.RFC3339),
		LockMinDurationSec: 3600,
		LockMaxDurationSec: 86400,
	})
	if err != nil {
		t.Fatalf("create campaign: %v", err)
	}
	return resp.Item
}

func (f *fixture) claimRequest(t *testing.T, index int, variant entities.ClaimVariant) httptransport.ClaimRequest {
	t.Helper()
	entry := f.entries[index]
	proof, err := f.tree.Proof(entry.Index)
	if err != nil {
		t.Fatalf("proof: %v", err)
	}
	encoded := make([]string, 0, len(proof))
	for _, h := range proof {
		encoded = append(encoded, h.String())
	}
	return httptransport.ClaimRequest{
		Address: entry.Address.String(),
		Amount:  strconv.FormatUint(entry.Amount, 10),
		Index:   strconv.FormatUint(entry.Index, 10),
		Proof:   encoded,
		Variant: string(variant),
	}
}

func TestFullClaimPaysClaimantAndReplays(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1_000_000)
	f.createCampaign(t, "camp-1")
	claimant := f.entries[0].Address.String()

	req := f.claimRequest(t, 0, entities.ClaimVariantFull)
	resp, err := f.airdrop.Handler.ClaimHandler(ctx, "camp-1", req, "claim-0")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if !resp.Settled || resp.Item.Payout.Received != "200" {
		t.Fatalf("expected settled claim of 200, got %+v", resp)
	}
	if f.ledger.Balance(claimant) != 200 {
		t.Fatalf("expected claimant balance 200, got %d", f.ledger.Balance(claimant))
	}

	replay, err := f.airdrop.Handler.ClaimHandler(ctx, "camp-1", req, "claim-0")
	if err != nil {
		t.Fatalf("replay claim: %v", err)
	}
	if !replay.Replayed || replay.Item.ClaimID != resp.Item.ClaimID {
		t.Fatalf("expected replay of %s, got %+v", resp.Item.ClaimID, replay)
	}
	if f.ledger.Balance(claimant) != 200 {
		t.Fatalf("replay paid twice: %d", f.ledger.Balance(claimant))
	}

	other := f.claimRequest(t, 0, entities.ClaimVariantSlashed)
	if _, err := f.airdrop.Handler.ClaimHandler(ctx, "camp-1", other, "claim-0"); !errors.Is(err, domainerrors.ErrIdempotencyKeyConflict) {
		t.Fatalf("expected ErrIdempotencyKeyConflict, got %v", err)
	}
	other.RequestID = "second-attempt"
	if _, err := f.airdrop.Handler.ClaimHandler(ctx, "camp-1", other, "fresh-key"); !errors.Is(err, domainerrors.ErrAlreadyClaimed) {
		t.Fatalf("expected ErrAlreadyClaimed, got %v", err)
	}
	if f.ledger.Balance(claimant) != 200 {
		t.Fatalf("rejected claims moved funds: %d", f.ledger.Balance(claimant))
	}

	status, err := f.airdrop.Handler.GetClaimStatusHandler(ctx, "camp-1", "0")
	if err != nil || !status.Claimed || status.Claim == nil {
		t.Fatalf("expected index 0 claimed, got %+v err=%v", status, err)
	}
	if _, err := f.airdrop.Handler.GetClaimStatusHandler(ctx, "camp-1", "5"); !errors.Is(err, domainerrors.ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestSlashedClaimBurnsHalfAndBooksDeclaredAmount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1_000_000)
	f.createCampaign(t, "camp-1")

	resp, err := f.airdrop.Handler.ClaimHandler(ctx, "camp-1", f.claimRequest(t, 1, entities.ClaimVariantSlashed), "")
	if err != nil {
		t.Fatalf("slashed claim: %v", err)
	}
	if resp.Item.Payout.Received != "500" || resp.Item.Payout.Burned != "501" {
		t.Fatalf("unexpected payout %+v", resp.Item.Payout)
	}
	if f.ledger.Balance(f.entries[1].Address.String()) != 500 || f.ledger.Burned() != 501 {
		t.Fatalf("expected 500 received and 501 burned, got %d/%d", f.ledger.Balance(f.entries[1].Address.String()), f.ledger.Burned())
	}

	campaign, err := f.airdrop.Handler.GetCampaignHandler(ctx, "camp-1")
	if err != nil {
		t.Fatalf("get campaign: %v", err)
	}
	if campaign.Item.TotalClaimed != "1001" || campaign.Item.TotalBurned != "501" {
		t.Fatalf("expected claimed=1001 burned=501, got %s/%s", campaign.Item.TotalClaimed, campaign.Item.TotalBurned)
	}
}

func TestVestingClaimOpensSinglePosition(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1_000_000)
	f.createCampaign(t, "camp-1")
	f.createCampaign(t, "camp-2")
	claimant := f.entries[2].Address.String()

	resp, err := f.airdrop.Handler.ClaimHandler(ctx, "camp-1", f.claimRequest(t, 2, entities.ClaimVariantVesting), "")
	if err != nil {
		t.Fatalf("vesting claim: %v", err)
	}
	if !resp.Settled || resp.Item.Payout.Vested != "600" {
		t.Fatalf("expected settled vesting claim of 600, got %+v", resp)
	}
	escrow := ledgerv1.EscrowAccount(ledgerv1.EscrowKindVesting, claimant).Account
	if f.ledger.Balance(escrow) != 600 || f.ledger.Balance(claimant) != 0 {
		t.Fatalf("expected 600 escrowed and nothing liquid, got escrow=%d claimant=%d", f.ledger.Balance(escrow), f.ledger.Balance(claimant))
	}

	release, err := f.vesting.Handler.ReleaseHandler(ctx, claimant)
	if err != nil {
		t.Fatalf("release tge: %v", err)
	}
	if release.Release.Amount != "60" || f.ledger.Balance(claimant) != 60 {
		t.Fatalf("expected tge release of 60, got %s (balance %d)", release.Release.Amount, f.ledger.Balance(claimant))
	}

	if _, err := f.airdrop.Handler.ClaimHandler(ctx, "camp-2", f.claimRequest(t, 2, entities.ClaimVariantVesting), ""); !errors.Is(err, domainerrors.ErrAlreadyHasPosition) {
		t.Fatalf("expected ErrAlreadyHasPosition, got %v", err)
	}
	status, _ := f.airdrop.Handler.GetClaimStatusHandler(ctx, "camp-2", "2")
	if status.Claimed {
		t.Fatalf("rejected vesting claim must not consume the index")
	}
}

func TestLockClaimEnforcesBoundsAndEscrows(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1_000_000)
	f.createCampaign(t, "camp-1")
	claimant := f.entries[3].Address.String()

	req := f.claimRequest(t, 3, entities.ClaimVariantLock)
	req.LockDurationSec = 60
	if _, err := f.airdrop.Handler.ClaimHandler(ctx, "camp-1", req, "short-lock"); !errors.Is(err, domainerrors.ErrInvalidLockDuration) {
		t.Fatalf("expected ErrInvalidLockDuration, got %v", err)
	}

	req.LockDurationSec = 7200
	resp, err := f.airdrop.Handler.ClaimHandler(ctx, "camp-1", req, "")
	if err != nil {
		t.Fatalf("lock claim: %v", err)
	}
	if !resp.Settled || resp.Item.LockDurationSec != 7200 {
		t.Fatalf("expected settled two hour lock, got %+v", resp.Item)
	}

	locks, err := f.vesting.Handler.ListLocksHandler(ctx, claimant)
	if err != nil || len(locks.Items) != 1 || locks.Items[0].Amount != "800" {
		t.Fatalf("expected one 800 lock, got %+v err=%v", locks, err)
	}
	f.now = f.now.Add(2 * time.Hour)
	if _, err := f.vesting.Handler.WithdrawLockHandler(ctx, claimant, locks.Items[0].LockID); err != nil {
		t.Fatalf("withdraw lock: %v", err)
	}
	if f.ledger.Balance(claimant) != 800 {
		t.Fatalf("expected 800 after unlock, got %d", f.ledger.Balance(claimant))
	}
}

func TestUnsettledClaimIsFinishedByRetrier(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	f.createCampaign(t, "camp-1")
	claimant := f.entries[4].Address.String()

	resp, err := f.airdrop.Handler.ClaimHandler(ctx, "camp-1", f.claimRequest(t, 4, entities.ClaimVariantFull), "")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if resp.Settled || resp.Item.SettlementStatus != string(entities.SettlementPending) {
		t.Fatalf("expected pending settlement against an empty treasury, got %+v", resp)
	}

	if err := f.ledger.Fund(ctx, "treasury", 5000, "seed:treasury"); err != nil {
		t.Fatalf("fund treasury: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := f.airdrop.Settlements.RunOnce(ctx); err != nil {
			t.Fatalf("settlement pass %d: %v", i, err)
		}
	}
	if f.ledger.Balance(claimant) != 1000 {
		t.Fatalf("expected exactly one payout of 1000, got %d", f.ledger.Balance(claimant))
	}
	status, _ := f.airdrop.Handler.GetClaimStatusHandler(ctx, "camp-1", "4")
	if status.Claim == nil || status.Claim.SettlementStatus != string(entities.SettlementSettled) {
		t.Fatalf("expected settled claim, got %+v", status.Claim)
	}
}

func TestEmergencyWithdrawReturnsRemainderAndClosesClaims(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1_000_000)
	f.createCampaign(t, "camp-1")
	if _, err := f.airdrop.Handler.ClaimHandler(ctx, "camp-1", f.claimRequest(t, 0, entities.ClaimVariantFull), ""); err != nil {
		t.Fatalf("claim: %v", err)
	}

	if _, err := f.airdrop.Handler.EmergencyWithdrawHandler(ctx, "intruder", "camp-1"); !errors.Is(err, domainerrors.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	resp, err := f.airdrop.Handler.EmergencyWithdrawHandler(ctx, "admin-1", "camp-1")
	if err != nil {
		t.Fatalf("emergency withdraw: %v", err)
	}
	remaining := f.tree.TotalAllocation() - 200
	if resp.Withdrawn != strconv.FormatUint(remaining, 10) || f.ledger.Balance("admin-1") != remaining {
		t.Fatalf("expected %d returned to admin, got %s (balance %d)", remaining, resp.Withdrawn, f.ledger.Balance("admin-1"))
	}
	if _, err := f.airdrop.Handler.EmergencyWithdrawHandler(ctx, "admin-1", "camp-1"); !errors.Is(err, domainerrors.ErrCampaignWithdrawn) {
		t.Fatalf("expected ErrCampaignWithdrawn, got %v", err)
	}
	if _, err := f.airdrop.Handler.ClaimHandler(ctx, "camp-1", f.claimRequest(t, 1, entities.ClaimVariantFull), ""); !errors.Is(err, domainerrors.ErrEnded) {
		t.Fatalf("expected ErrEnded after withdraw, got %v", err)
	}
}

func TestListClaimsByAddress(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1_000_000)
	f.createCampaign(t, "camp-1")
	if _, err := f.airdrop.Handler.ClaimHandler(ctx, "camp-1", f.claimRequest(t, 0, entities.ClaimVariantFull), ""); err != nil {
		t.Fatalf("claim: %v", err)
	}
	list, err := f.airdrop.Handler.ListClaimsHandler(ctx, "camp-1", f.entries[0].Address.String())
	if err != nil || len(list.Items) != 1 || list.Items[0].Index != "0" {
		t.Fatalf("expected one listed claim, got %+v err=%v", list, err)
	}
	if len(f.airdrop.Store.OutboxEvents()) != 1 {
		t.Fatalf("expected one outbox event, got %d", len(f.airdrop.Store.OutboxEvents()))
	}
}

func TestConsumedIndexRejectsEveryResubmissionWithoutDedupeValues(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1_000_000)
	f.createCampaign(t, "camp-1")

	if _, err := f.airdrop.Handler.ClaimHandler(ctx, "camp-1", f.claimRequest(t, 0, entities.ClaimVariantFull), ""); err != nil {
		t.Fatalf("claim: %v", err)
	}

	variants := []entities.ClaimVariant{
		entities.ClaimVariantFull,
		entities.ClaimVariantSlashed,
		entities.ClaimVariantVesting,
		entities.ClaimVariantLock,
	}
	for _, variant := range variants {
		req := f.claimRequest(t, 0, variant)
		req.LockDurationSec = 7200
		if _, err := f.airdrop.Handler.ClaimHandler(ctx, "camp-1", req, ""); !errors.Is(err, domainerrors.ErrAlreadyClaimed) {
			t.Fatalf("%s without key: expected ErrAlreadyClaimed, got %v", variant, err)
		}
		if _, err := f.airdrop.Handler.ClaimHandler(ctx, "camp-1", req, "key-"+string(variant)); !errors.Is(err, domainerrors.ErrAlreadyClaimed) {
			t.Fatalf("%s with fresh key: expected ErrAlreadyClaimed, got %v", variant, err)
		}
	}
	if f.ledger.Balance(f.entries[0].Address.String()) != 200 {
		t.Fatalf("expected a single payout of 200, got %d", f.ledger.Balance(f.entries[0].Address.String()))
	}
}

func TestConcurrentClaimsOnOneIndexHaveSingleWinner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1_000_000)
	f.createCampaign(t, "camp-1")

	const attempts = 16
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		req := f.claimRequest(t, 3, entities.ClaimVariantFull)
		req.RequestID = fmt.Sprintf("attempt-%d", i)
		wg.Add(1)
		go func(i int, req httptransport.ClaimRequest) {
			defer wg.Done()
			_, errs[i] = f.airdrop.Handler.ClaimHandler(ctx, "camp-1", req, fmt.Sprintf("key-%d", i))
		}(i, req)
	}
	wg.Wait()

	wins := 0
	for i, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, domainerrors.ErrAlreadyClaimed):
		default:
			t.Fatalf("attempt %d: unexpected error %v", i, err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winning claim, got %d", wins)
	}

	campaign, err := f.airdrop.Handler.GetCampaignHandler(ctx, "camp-1")
	if err != nil {
		t.Fatalf("get campaign: %v", err)
	}
	if campaign.Item.ClaimCount != "1" || campaign.Item.TotalClaimed != "800" {
		t.Fatalf("expected one claim of 800, got count=%s claimed=%s", campaign.Item.ClaimCount, campaign.Item.TotalClaimed)
	}
	if f.ledger.Balance(f.entries[3].Address.String()) != 800 {
		t.Fatalf("expected one payout of 800, got %d", f.ledger.Balance(f.entries[3].Address.String()))
	}
}

func TestVestingGrantIsReservedAcrossCampaigns(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1_000_000)
	gateway := bridge.NewVesting(f.vesting)
	f.rewire(staleGateway{Vesting: gateway}, gateway)
	f.createCampaign(t, "camp-1")
	f.createCampaign(t, "camp-2")

	if _, err := f.airdrop.Handler.ClaimHandler(ctx, "camp-1", f.claimRequest(t, 2, entities.ClaimVariantVesting), ""); err != nil {
		t.Fatalf("first vesting claim: %v", err)
	}
	if _, err := f.airdrop.Handler.ClaimHandler(ctx, "camp-2", f.claimRequest(t, 2, entities.ClaimVariantVesting), ""); !errors.Is(err, domainerrors.ErrAlreadyHasPosition) {
		t.Fatalf("expected ErrAlreadyHasPosition from the commit, got %v", err)
	}
	status, _ := f.airdrop.Handler.GetClaimStatusHandler(ctx, "camp-2", "2")
	if status.Claimed {
		t.Fatalf("rejected grant must not consume the index")
	}
	escrow := ledgerv1.EscrowAccount(ledgerv1.EscrowKindVesting, f.entries[2].Address.String()).Account
	if f.ledger.Balance(escrow) != 600 {
		t.Fatalf("expected only the first grant escrowed, got %d", f.ledger.Balance(escrow))
	}
}

func TestGrantLosingToAdminPositionIsParkedForRefund(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1_000_000)
	gateway := bridge.NewVesting(f.vesting)
	f.rewire(staleGateway{Vesting: gateway}, gateway)
	f.createCampaign(t, "camp-1")
	claimant := f.entries[2].Address.String()

	if _, err := f.vesting.Handler.CreatePositionHandler(ctx, "admin-1", vestingtransport.CreatePositionRequest{
		Beneficiary:    claimant,
		TotalAmount:    "50",
		FundingAccount: "treasury",
	}); err != nil {
		t.Fatalf("admin position: %v", err)
	}

	resp, err := f.airdrop.Handler.ClaimHandler(ctx, "camp-1", f.claimRequest(t, 2, entities.ClaimVariantVesting), "")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if resp.Settled || resp.Item.SettlementStatus != string(entities.SettlementRefundRequired) {
		t.Fatalf("expected claim parked for refund, got %+v", resp)
	}

	pending, err := f.airdrop.Store.ListPendingSettlements(ctx, 10)
	if err != nil || len(pending) != 0 {
		t.Fatalf("expected nothing left to retry, got %d err=%v", len(pending), err)
	}
	if err := f.airdrop.Settlements.RunOnce(ctx); err != nil {
		t.Fatalf("settlement pass: %v", err)
	}

	position, err := f.vesting.Handler.GetPositionHandler(ctx, claimant)
	if err != nil {
		t.Fatalf("get position: %v", err)
	}
	if position.Item.TotalAmount != "50" {
		t.Fatalf("admin position must be untouched, got %+v", position.Item)
	}
	escrow := ledgerv1.EscrowAccount(ledgerv1.EscrowKindVesting, claimant).Account
	if f.ledger.Balance(escrow) != 650 {
		t.Fatalf("expected the grant held in escrow for refund, got %d", f.ledger.Balance(escrow))
	}
}
