package queries

import (
	"context"
	"log/slog"

	application "dropvest/contexts/token-distribution/airdrop-service/application"
	"dropvest/contexts/token-distribution/airdrop-service/domain/entities"
	"dropvest/contexts/token-distribution/airdrop-service/ports"
)

type GetCampaignQuery struct {
	CampaignID string
}

type GetCampaignResult struct {
	Campaign entities.Campaign
	Ended    bool
}

type GetCampaignUseCase struct {
	Campaigns ports.CampaignRepository
	Clock     ports.Clock
	Logger    *slog.Logger
}

func (u GetCampaignUseCase) Execute(ctx context.Context, query GetCampaignQuery) (GetCampaignResult, error) {
	logger := application.ResolveLogger(u.Logger)
	campaign, err := u.Campaigns.GetCampaign(ctx, query.CampaignID)
	if err != nil {
		logger.Error("get campaign failed",
			"event", "airdrop_get_campaign_failed",
			"module", "token-distribution/airdrop-service",
			"layer", "application",
			"campaign_id", query.CampaignID,
			"error", err.Error(),
		)
		return GetCampaignResult{}, err
	}
	return GetCampaignResult{
		Campaign: campaign,
		Ended:    campaign.HasEnded(now(u.Clock)),
	}, nil
}
