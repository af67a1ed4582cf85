package services_test

import (
	"errors"
	"testing"
	"time"

	"dropvest/contexts/token-distribution/airdrop-service/domain/entities"
	domainerrors "dropvest/contexts/token-distribution/airdrop-service/domain/errors"
	"dropvest/contexts/token-distribution/airdrop-service/domain/services"
)

func TestAuthorizeClaimCheckOrder(t *testing.T) {
	entries, tree := buildTree(t, 4)
	campaign := testCampaign(t, tree)
	proof, _ := tree.Proof(1)
	valid := services.ClaimRequest{
		Address: entries[1].Address,
		Amount:  entries[1].Amount,
		Index:   1,
		Proof:   proof,
	}
	claimed := entities.NewClaimSet(campaign.MaxIndex)

	if err := services.AuthorizeClaim(campaign, claimed, valid, campaign.EndTime); err != nil {
		t.Fatalf("claim at the end instant should pass, got %v", err)
	}
	if err := services.AuthorizeClaim(campaign, claimed, valid, campaign.EndTime.Add(time.Second)); !errors.Is(err, domainerrors.ErrEnded) {
		t.Fatalf("expected ErrEnded, got %v", err)
	}

	outOfRange := valid
	outOfRange.Index = campaign.MaxIndex
	if err := services.AuthorizeClaim(campaign, claimed, outOfRange, campaign.StartTime); !errors.Is(err, domainerrors.ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}

	greedy := valid
	greedy.Amount = campaign.TotalAllocation + 1
	if err := services.AuthorizeClaim(campaign, claimed, greedy, campaign.StartTime); !errors.Is(err, domainerrors.ErrAllocationExceeded) {
		t.Fatalf("expected ErrAllocationExceeded before proof check, got %v", err)
	}

	claimed.Add(1)
	if err := services.AuthorizeClaim(campaign, claimed, greedy, campaign.StartTime); !errors.Is(err, domainerrors.ErrAlreadyClaimed) {
		t.Fatalf("expected ErrAlreadyClaimed to win over allocation, got %v", err)
	}
}

func TestCommitClaimConsumesIndexOnce(t *testing.T) {
	entries, tree := buildTree(t, 3)
	campaign := testCampaign(t, tree)
	claimed := entities.NewClaimSet(campaign.MaxIndex)
	payout, err := services.SplitPayout(entities.ClaimVariantFull, entries[0].Amount)
	if err != nil {
		t.Fatalf("split payout: %v", err)
	}

	if err := services.CommitClaim(&campaign, claimed, 0, payout, campaign.StartTime); err != nil {
		t.Fatalf("first commit: %v", err)
	}
	before := campaign
	if err := services.CommitClaim(&campaign, claimed, 0, payout, campaign.StartTime); !errors.Is(err, domainerrors.ErrAlreadyClaimed) {
		t.Fatalf("expected ErrAlreadyClaimed, got %v", err)
	}
	if campaign.TotalClaimed != before.TotalClaimed || campaign.ClaimCount != 1 {
		t.Fatalf("rejected commit mutated the campaign: %+v", campaign)
	}
	if campaign.TotalClaimed != entries[0].Amount {
		t.Fatalf("expected total claimed %d, got %d", entries[0].Amount, campaign.TotalClaimed)
	}
}

func TestSlashedPayoutBurnsTheOddUnit(t *testing.T) {
	payout, err := services.SplitPayout(entities.ClaimVariantSlashed, 1001)
	if err != nil {
		t.Fatalf("split payout: %v", err)
	}
	if payout.Received != 500 || payout.Burned != 501 || payout.Total() != 1001 {
		t.Fatalf("unexpected slashed split %+v", payout)
	}

	_, tree := buildTree(t, 2)
	campaign := testCampaign(t, tree)
	claimed := entities.NewClaimSet(campaign.MaxIndex)
	campaign.TotalAllocation = 5000
	if err := services.CommitClaim(&campaign, claimed, 0, payout, campaign.StartTime); err != nil {
		t.Fatalf("commit slashed claim: %v", err)
	}
	if campaign.TotalClaimed != 1001 || campaign.TotalBurned != 501 {
		t.Fatalf("expected claimed=1001 burned=501, got %d/%d", campaign.TotalClaimed, campaign.TotalBurned)
	}
}

func TestSplitPayoutRoutesEachVariant(t *testing.T) {
	cases := []struct {
		variant entities.ClaimVariant
		want    entities.Payout
	}{
		{entities.ClaimVariantFull, entities.Payout{Received: 40}},
		{entities.ClaimVariantSlashed, entities.Payout{Received: 20, Burned: 20}},
		{entities.ClaimVariantVesting, entities.Payout{Vested: 40}},
		{entities.ClaimVariantLock, entities.Payout{Locked: 40}},
	}
	for _, tc := range cases {
		got, err := services.SplitPayout(tc.variant, 40)
		if err != nil {
			t.Fatalf("%s: %v", tc.variant, err)
		}
		if got != tc.want {
			t.Fatalf("%s: expected %+v, got %+v", tc.variant, tc.want, got)
		}
	}
	if _, err := services.SplitPayout("airdrop", 40); !errors.Is(err, domainerrors.ErrInvalidClaimRequest) {
		t.Fatalf("expected ErrInvalidClaimRequest, got %v", err)
	}
}
