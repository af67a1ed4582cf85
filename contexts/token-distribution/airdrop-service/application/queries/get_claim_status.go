package queries

import (
	"context"
	"log/slog"
	"time"

	application "dropvest/contexts/token-distribution/airdrop-service/application"
	"dropvest/contexts/token-distribution/airdrop-service/domain/entities"
	domainerrors "dropvest/contexts/token-distribution/airdrop-service/domain/errors"
	"dropvest/contexts/token-distribution/airdrop-service/ports"
)

type GetClaimStatusQuery struct {
	CampaignID string
	Index      uint64
}

// GetClaimStatusResult reports whether an index is consumed. Claim is only
// populated when Claimed is true.
type GetClaimStatusResult struct {
	CampaignID string
	Index      uint64
	Claimed    bool
	Claim      entities.ClaimRecord
}

type GetClaimStatusUseCase struct {
	Campaigns ports.CampaignRepository
	Logger    *slog.Logger
}

func (u GetClaimStatusUseCase) Execute(ctx context.Context, query GetClaimStatusQuery) (GetClaimStatusResult, error) {
	logger := application.ResolveLogger(u.Logger)
	campaign, err := u.Campaigns.GetCampaign(ctx, query.CampaignID)
	if err != nil {
		return GetClaimStatusResult{}, err
	}
	if query.Index >= campaign.MaxIndex {
		return GetClaimStatusResult{}, domainerrors.ErrIndexOutOfRange
	}

	claim, found, err := u.Campaigns.GetClaimByIndex(ctx, query.CampaignID, query.Index)
	if err != nil {
		logger.Error("get claim status failed",
			"event", "airdrop_get_claim_status_failed",
			"module", "token-distribution/airdrop-service",
			"layer", "application",
			"campaign_id", query.CampaignID,
			"index", query.Index,
			"error", err.Error(),
		)
		return GetClaimStatusResult{}, err
	}
	return GetClaimStatusResult{
		CampaignID: query.CampaignID,
		Index:      query.Index,
		Claimed:    found,
		Claim:      claim,
	}, nil
}

func now(clock ports.Clock) time.Time {
	if clock == nil {
		return time.Now().UTC()
	}
	return clock.Now().UTC()
}
