package commands

import (
	"context"
	"log/slog"
	"strings"

	application "dropvest/contexts/token-distribution/airdrop-service/application"
	"dropvest/contexts/token-distribution/airdrop-service/domain/entities"
	domainerrors "dropvest/contexts/token-distribution/airdrop-service/domain/errors"
	"dropvest/contexts/token-distribution/airdrop-service/ports"
)

type EndCampaignCommand struct {
	CampaignID string
	ActorID    string
}

type EndCampaignUseCase struct {
	Campaigns ports.CampaignRepository
	Clock     ports.Clock
	Logger    *slog.Logger
}

func (u EndCampaignUseCase) Execute(ctx context.Context, cmd EndCampaignCommand) (entities.Campaign, error) {
	logger := application.ResolveLogger(u.Logger)
	campaign, err := loadOwnedCampaign(ctx, u.Campaigns, cmd.CampaignID, cmd.ActorID)
	if err != nil {
		return entities.Campaign{}, err
	}
	if campaign.Status != entities.CampaignStatusActive {
		return campaign, nil
	}

	campaign.End(now(u.Clock))
	if err := u.Campaigns.UpdateCampaignStatus(ctx, campaign); err != nil {
		logger.Error("end campaign failed",
			"event", "airdrop_campaign_end_failed",
			"module", "token-distribution/airdrop-service",
			"layer", "application",
			"campaign_id", campaign.CampaignID,
			"error", err.Error(),
		)
		return entities.Campaign{}, err
	}

	logger.Info("airdrop campaign ended",
		"event", "airdrop_campaign_ended",
		"module", "token-distribution/airdrop-service",
		"layer", "application",
		"campaign_id", campaign.CampaignID,
		"total_claimed", campaign.TotalClaimed,
		"claim_count", campaign.ClaimCount,
	)
	return campaign, nil
}

type EmergencyWithdrawCommand struct {
	CampaignID string
	ActorID    string
}

type EmergencyWithdrawResult struct {
	Campaign  entities.Campaign
	Withdrawn uint64
}

// EmergencyWithdrawUseCase closes a campaign and returns the unclaimed
// allocation to the admin account. The campaign is ended before any funds
// move, so the remainder cannot shrink underneath the transfer.
type EmergencyWithdrawUseCase struct {
	Campaigns ports.CampaignRepository
	Ledger    ports.TokenLedger
	Clock     ports.Clock
	Logger    *slog.Logger
}

func (u EmergencyWithdrawUseCase) Execute(ctx context.Context, cmd EmergencyWithdrawCommand) (EmergencyWithdrawResult, error) {
	logger := application.ResolveLogger(u.Logger)
	campaign, err := loadOwnedCampaign(ctx, u.Campaigns, cmd.CampaignID, cmd.ActorID)
	if err != nil {
		return EmergencyWithdrawResult{}, err
	}
	if campaign.Status == entities.CampaignStatusWithdrawn {
		return EmergencyWithdrawResult{}, domainerrors.ErrCampaignWithdrawn
	}

	current := now(u.Clock)
	if campaign.Status == entities.CampaignStatusActive {
		campaign.End(current)
		if err := u.Campaigns.UpdateCampaignStatus(ctx, campaign); err != nil {
			return EmergencyWithdrawResult{}, err
		}
	}

	remaining, err := campaign.Withdraw(current)
	if err != nil {
		return EmergencyWithdrawResult{}, err
	}
	if remaining > 0 {
		reference := "airdrop:" + campaign.CampaignID + ":emergency-withdraw"
		asset, err := u.Ledger.Withdraw(ctx, campaign.TreasuryAccount, remaining, reference)
		if err == nil {
			err = u.Ledger.Deposit(ctx, campaign.AdminID, asset)
		}
		if err != nil {
			logger.Error("emergency withdraw transfer failed",
				"event", "airdrop_emergency_withdraw_failed",
				"module", "token-distribution/airdrop-service",
				"layer", "application",
				"campaign_id", campaign.CampaignID,
				"amount", remaining,
				"error", err.Error(),
			)
			return EmergencyWithdrawResult{}, err
		}
	}
	if err := u.Campaigns.UpdateCampaignStatus(ctx, campaign); err != nil {
		return EmergencyWithdrawResult{}, err
	}

	logger.Warn("airdrop emergency withdraw completed",
		"event", "airdrop_emergency_withdraw_completed",
		"module", "token-distribution/airdrop-service",
		"layer", "application",
		"campaign_id", campaign.CampaignID,
		"admin_id", campaign.AdminID,
		"amount", remaining,
	)
	return EmergencyWithdrawResult{Campaign: campaign, Withdrawn: remaining}, nil
}

func loadOwnedCampaign(ctx context.Context, campaigns ports.CampaignRepository, campaignID string, actorID string) (entities.Campaign, error) {
	if strings.TrimSpace(campaignID) == "" || strings.TrimSpace(actorID) == "" {
		return entities.Campaign{}, domainerrors.ErrInvalidClaimRequest
	}
	campaign, err := campaigns.GetCampaign(ctx, campaignID)
	if err != nil {
		return entities.Campaign{}, err
	}
	if campaign.AdminID != actorID {
		return entities.Campaign{}, domainerrors.ErrForbidden
	}
	return campaign, nil
}
