package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "dropvest/contexts/token-distribution/airdrop-service/application"
	"dropvest/contexts/token-distribution/airdrop-service/domain/entities"
	domainerrors "dropvest/contexts/token-distribution/airdrop-service/domain/errors"
	"dropvest/contexts/token-distribution/airdrop-service/ports"
)

type CreateCampaignCommand struct {
	CampaignID      string
	AdminID         string
	Root            string
	TreasuryAccount string
	TokenDenom      string
	TokenDecimals   uint8
	TotalAllocation uint64
	MaxIndex        uint64
	StartTime       time.Time
	EndTime         time.Time
	LockMinDuration time.Duration
	LockMaxDuration time.Duration
}

type CreateCampaignUseCase struct {
	Campaigns   ports.CampaignRepository
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

func (u CreateCampaignUseCase) Execute(ctx context.Context, cmd CreateCampaignCommand) (entities.Campaign, error) {
	logger := application.ResolveLogger(u.Logger)

	root, err := entities.ParseHash(cmd.Root)
	if err != nil {
		return entities.Campaign{}, domainerrors.ErrInvalidCampaign
	}
	campaignID := strings.TrimSpace(cmd.CampaignID)
	if campaignID == "" {
		campaignID, err = u.IDGenerator.NewID(ctx)
		if err != nil {
			return entities.Campaign{}, err
		}
	}

	campaign, err := entities.NewCampaign(entities.NewCampaignInput{
		CampaignID:      campaignID,
		AdminID:         cmd.AdminID,
		Root:            root,
		TreasuryAccount: cmd.TreasuryAccount,
		TokenDenom:      cmd.TokenDenom,
		TokenDecimals:   cmd.TokenDecimals,
		TotalAllocation: cmd.TotalAllocation,
		MaxIndex:        cmd.MaxIndex,
		StartTime:       cmd.StartTime,
		EndTime:         cmd.EndTime,
		LockMinDuration: cmd.LockMinDuration,
		LockMaxDuration: cmd.LockMaxDuration,
	}, now(u.Clock))
	if err != nil {
		return entities.Campaign{}, err
	}

	if err := u.Campaigns.CreateCampaign(ctx, campaign); err != nil {
		logger.Error("create campaign failed",
			"event", "airdrop_campaign_create_failed",
			"module", "token-distribution/airdrop-service",
			"layer", "application",
			"campaign_id", campaign.CampaignID,
			"error", err.Error(),
		)
		return entities.Campaign{}, err
	}

	logger.Info("airdrop campaign created",
		"event", "airdrop_campaign_created",
		"module", "token-distribution/airdrop-service",
		"layer", "application",
		"campaign_id", campaign.CampaignID,
		"root", campaign.Root.String(),
		"total_allocation", campaign.TotalAllocation,
		"max_index", campaign.MaxIndex,
	)
	return campaign, nil
}

func now(clock ports.Clock) time.Time {
	if clock == nil {
		return time.Now().UTC()
	}
	return clock.Now().UTC()
}
