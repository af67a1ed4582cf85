package queries

import (
	"context"
	"log/slog"

	application "dropvest/contexts/token-distribution/airdrop-service/application"
	"dropvest/contexts/token-distribution/airdrop-service/domain/entities"
	"dropvest/contexts/token-distribution/airdrop-service/ports"
)

type ListClaimsByAddressQuery struct {
	CampaignID string
	Address    string
}

type ListClaimsByAddressResult struct {
	Items []entities.ClaimRecord
}

type ListClaimsByAddressUseCase struct {
	Campaigns ports.CampaignRepository
	Logger    *slog.Logger
}

func (u ListClaimsByAddressUseCase) Execute(ctx context.Context, query ListClaimsByAddressQuery) (ListClaimsByAddressResult, error) {
	logger := application.ResolveLogger(u.Logger)
	address, err := entities.ParseAddress(query.Address)
	if err != nil {
		return ListClaimsByAddressResult{}, err
	}
	if _, err := u.Campaigns.GetCampaign(ctx, query.CampaignID); err != nil {
		return ListClaimsByAddressResult{}, err
	}

	items, err := u.Campaigns.ListClaimsByAddress(ctx, query.CampaignID, address)
	if err != nil {
		logger.Error("list claims failed",
			"event", "airdrop_list_claims_failed",
			"module", "token-distribution/airdrop-service",
			"layer", "application",
			"campaign_id", query.CampaignID,
			"address", address.String(),
			"error", err.Error(),
		)
		return ListClaimsByAddressResult{}, err
	}

	logger.Info("list claims completed",
		"event", "airdrop_list_claims_completed",
		"module", "token-distribution/airdrop-service",
		"layer", "application",
		"campaign_id", query.CampaignID,
		"items_count", len(items),
	)
	return ListClaimsByAddressResult{Items: items}, nil
}
