package httpadapter

import (
	"context"
	"log/slog"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	application "dropvest/contexts/token-distribution/airdrop-service/application"
	"dropvest/contexts/token-distribution/airdrop-service/application/commands"
	"dropvest/contexts/token-distribution/airdrop-service/application/queries"
	"dropvest/contexts/token-distribution/airdrop-service/domain/entities"
	domainerrors "dropvest/contexts/token-distribution/airdrop-service/domain/errors"
	httptransport "dropvest/contexts/token-distribution/airdrop-service/transport/http"

	"github.com/shopspring/decimal"
)

type Handler struct {
	CreateCampaign    commands.CreateCampaignUseCase
	ClaimAirdrop      commands.ClaimAirdropUseCase
	EndCampaign       commands.EndCampaignUseCase
	EmergencyWithdraw commands.EmergencyWithdrawUseCase
	GetCampaign       queries.GetCampaignUseCase
	GetClaimStatus    queries.GetClaimStatusUseCase
	ListClaims        queries.ListClaimsByAddressUseCase
	Logger            *slog.Logger
}

// CreateCampaignHandler godoc
// @Summary Create an airdrop campaign
// @Description Registers a merkle root and its allocation. Admin only.
// @Tags airdrop
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body httptransport.CreateCampaignRequest true "Campaign definition"
// @Success 201 {object} httptransport.CampaignResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 401 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /v1/airdrops [post]
func (h Handler) CreateCampaignHandler(
	ctx context.Context,
	adminID string,
	req httptransport.CreateCampaignRequest,
) (httptransport.CampaignResponse, error) {
	logger := application.ResolveLogger(h.Logger)
	total, err := parseUint(req.TotalAllocation)
	if err != nil {
		return httptransport.CampaignResponse{}, domainerrors.ErrInvalidCampaign
	}
	maxIndex, err := parseUint(req.MaxIndex)
	if err != nil {
		return httptransport.CampaignResponse{}, domainerrors.ErrInvalidCampaign
	}
	var start time.Time
	if strings.TrimSpace(req.StartTime) != "" {
		if start, err = time.Parse(time.RFC3339, req.StartTime); err != nil {
			return httptransport.CampaignResponse{}, domainerrors.ErrInvalidCampaign
		}
	}
	end, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		return httptransport.CampaignResponse{}, domainerrors.ErrInvalidCampaign
	}

	lockMin, minOK := secondsToDuration(req.LockMinDurationSec)
	lockMax, maxOK := secondsToDuration(req.LockMaxDurationSec)
	if !minOK || !maxOK {
		return httptransport.CampaignResponse{}, domainerrors.ErrInvalidCampaign
	}

	campaign, err := h.CreateCampaign.Execute(ctx, commands.CreateCampaignCommand{
		CampaignID:      req.CampaignID,
		AdminID:         adminID,
		Root:            req.MerkleRoot,
		TreasuryAccount: req.TreasuryAccount,
		TokenDenom:      req.TokenDenom,
		TokenDecimals:   req.TokenDecimals,
		TotalAllocation: total,
		MaxIndex:        maxIndex,
		StartTime:       start,
		EndTime:         end,
		LockMinDuration: lockMin,
		LockMaxDuration: lockMax,
	})
	if err != nil {
		logger.Warn("create campaign request failed",
			"event", "http_create_campaign_failed",
			"module", "token-distribution/airdrop-service",
			"layer", "transport",
			"error", err.Error(),
		)
		return httptransport.CampaignResponse{}, err
	}
	return httptransport.CampaignResponse{Item: mapCampaign(campaign, campaign.HasEnded(time.Now()))}, nil
}

// GetCampaignHandler godoc
// @Summary Get an airdrop campaign
// @Tags airdrop
// @Produce json
// @Param campaign_id path string true "Campaign id"
// @Success 200 {object} httptransport.CampaignResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Router /v1/airdrops/{campaign_id} [get]
func (h Handler) GetCampaignHandler(ctx context.Context, campaignID string) (httptransport.CampaignResponse, error) {
	result, err := h.GetCampaign.Execute(ctx, queries.GetCampaignQuery{CampaignID: campaignID})
	if err != nil {
		return httptransport.CampaignResponse{}, err
	}
	return httptransport.CampaignResponse{Item: mapCampaign(result.Campaign, result.Ended)}, nil
}

// GetClaimStatusHandler godoc
// @Summary Check whether a claim index is consumed
// @Tags airdrop
// @Produce json
// @Param campaign_id path string true "Campaign id"
// @Param index path string true "Leaf index"
// @Success 200 {object} httptransport.ClaimStatusResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Router /v1/airdrops/{campaign_id}/claims/{index} [get]
func (h Handler) GetClaimStatusHandler(ctx context.Context, campaignID string, rawIndex string) (httptransport.ClaimStatusResponse, error) {
	index, err := parseUint(rawIndex)
	if err != nil {
		return httptransport.ClaimStatusResponse{}, domainerrors.ErrInvalidClaimRequest
	}
	result, err := h.GetClaimStatus.Execute(ctx, queries.GetClaimStatusQuery{
		CampaignID: campaignID,
		Index:      index,
	})
	if err != nil {
		return httptransport.ClaimStatusResponse{}, err
	}
	resp := httptransport.ClaimStatusResponse{
		CampaignID: result.CampaignID,
		Index:      strconv.FormatUint(result.Index, 10),
		Claimed:    result.Claimed,
	}
	if result.Claimed {
		item := mapClaim(result.Claim)
		resp.Claim = &item
	}
	return resp, nil
}

// ListClaimsHandler godoc
// @Summary List claims of an address within a campaign
// @Tags airdrop
// @Produce json
// @Param campaign_id path string true "Campaign id"
// @Param address path string true "Claimant address (hex)"
// @Success 200 {object} httptransport.ListClaimsResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Router /v1/airdrops/{campaign_id}/addresses/{address}/claims [get]
func (h Handler) ListClaimsHandler(ctx context.Context, campaignID string, address string) (httptransport.ListClaimsResponse, error) {
	result, err := h.ListClaims.Execute(ctx, queries.ListClaimsByAddressQuery{
		CampaignID: campaignID,
		Address:    address,
	})
	if err != nil {
		return httptransport.ListClaimsResponse{}, err
	}
	items := make([]httptransport.ClaimDTO, 0, len(result.Items))
	for _, claim := range result.Items {
		items = append(items, mapClaim(claim))
	}
	return httptransport.ListClaimsResponse{Items: items}, nil
}

// ClaimHandler godoc
// @Summary Claim an airdrop allocation
// @Description Verifies the merkle proof, consumes the index and settles the
// @Description selected variant (full, slashed, vesting or lock).
// @Tags airdrop
// @Accept json
// @Produce json
// @Param Idempotency-Key header string false "Idempotency key"
// @Param campaign_id path string true "Campaign id"
// @Param request body httptransport.ClaimRequest true "Claim payload"
// @Success 200 {object} httptransport.ClaimResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Failure 410 {object} httptransport.ErrorResponse
// @Failure 422 {object} httptransport.ErrorResponse
// @Router /v1/airdrops/{campaign_id}/claims [post]
func (h Handler) ClaimHandler(
	ctx context.Context,
	campaignID string,
	req httptransport.ClaimRequest,
	idempotencyKey string,
) (httptransport.ClaimResponse, error) {
	amount, err := parseUint(req.Amount)
	if err != nil {
		return httptransport.ClaimResponse{}, domainerrors.ErrInvalidClaimRequest
	}
	index, err := parseUint(req.Index)
	if err != nil {
		return httptransport.ClaimResponse{}, domainerrors.ErrInvalidClaimRequest
	}
	variant := entities.ClaimVariant(strings.ToLower(strings.TrimSpace(req.Variant)))
	if variant == "" {
		variant = entities.ClaimVariantFull
	}
	lockDuration, ok := secondsToDuration(req.LockDurationSec)
	if !ok {
		return httptransport.ClaimResponse{}, domainerrors.ErrInvalidClaimRequest
	}

	result, err := h.ClaimAirdrop.Execute(ctx, commands.ClaimAirdropCommand{
		CampaignID:     campaignID,
		Address:        req.Address,
		Amount:         amount,
		Index:          index,
		Proof:          req.Proof,
		Variant:        variant,
		LockDuration:   lockDuration,
		RequestID:      req.RequestID,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return httptransport.ClaimResponse{}, err
	}
	return httptransport.ClaimResponse{
		Item:     mapClaim(result.Claim),
		Replayed: result.Replayed,
		Settled:  result.Settled,
	}, nil
}

// EndCampaignHandler godoc
// @Summary End an airdrop campaign early
// @Tags airdrop
// @Produce json
// @Security BearerAuth
// @Param campaign_id path string true "Campaign id"
// @Success 200 {object} httptransport.CampaignResponse
// @Failure 403 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Router /v1/airdrops/{campaign_id}/end [post]
func (h Handler) EndCampaignHandler(ctx context.Context, adminID string, campaignID string) (httptransport.CampaignResponse, error) {
	campaign, err := h.EndCampaign.Execute(ctx, commands.EndCampaignCommand{
		CampaignID: campaignID,
		ActorID:    adminID,
	})
	if err != nil {
		return httptransport.CampaignResponse{}, err
	}
	return httptransport.CampaignResponse{Item: mapCampaign(campaign, true)}, nil
}

// EmergencyWithdrawHandler godoc
// @Summary Withdraw the unclaimed allocation
// @Description Ends the campaign and returns total_allocation - total_claimed
// @Description to the admin account.
// @Tags airdrop
// @Produce json
// @Security BearerAuth
// @Param campaign_id path string true "Campaign id"
// @Success 200 {object} httptransport.EmergencyWithdrawResponse
// @Failure 403 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Router /v1/airdrops/{campaign_id}/emergency-withdraw [post]
func (h Handler) EmergencyWithdrawHandler(ctx context.Context, adminID string, campaignID string) (httptransport.EmergencyWithdrawResponse, error) {
	result, err := h.EmergencyWithdraw.Execute(ctx, commands.EmergencyWithdrawCommand{
		CampaignID: campaignID,
		ActorID:    adminID,
	})
	if err != nil {
		return httptransport.EmergencyWithdrawResponse{}, err
	}
	return httptransport.EmergencyWithdrawResponse{
		Item:      mapCampaign(result.Campaign, true),
		Withdrawn: strconv.FormatUint(result.Withdrawn, 10),
	}, nil
}

func mapCampaign(campaign entities.Campaign, ended bool) httptransport.CampaignDTO {
	return httptransport.CampaignDTO{
		CampaignID:         campaign.CampaignID,
		AdminID:            campaign.AdminID,
		MerkleRoot:         campaign.Root.String(),
		TokenDenom:         campaign.TokenDenom,
		TotalAllocation:    strconv.FormatUint(campaign.TotalAllocation, 10),
		TotalClaimed:       strconv.FormatUint(campaign.TotalClaimed, 10),
		TotalBurned:        strconv.FormatUint(campaign.TotalBurned, 10),
		Remaining:          strconv.FormatUint(campaign.RemainingAllocation(), 10),
		RemainingDisplay:   displayAmount(campaign.RemainingAllocation(), campaign.TokenDecimals),
		ClaimCount:         strconv.FormatUint(campaign.ClaimCount, 10),
		MaxIndex:           strconv.FormatUint(campaign.MaxIndex, 10),
		StartTime:          campaign.StartTime.UTC().Format(time.RFC3339),
		EndTime:            campaign.EndTime.UTC().Format(time.RFC3339),
		LockMinDurationSec: int64(campaign.LockMinDuration / time.Second),
		LockMaxDurationSec: int64(campaign.LockMaxDuration / time.Second),
		Status:             string(campaign.Status),
		Ended:              ended,
	}
}

func mapClaim(claim entities.ClaimRecord) httptransport.ClaimDTO {
	item := httptransport.ClaimDTO{
		ClaimID:        claim.ClaimID,
		CampaignID:     claim.CampaignID,
		Index:          strconv.FormatUint(claim.Index, 10),
		Address:        claim.Address.String(),
		DeclaredAmount: strconv.FormatUint(claim.DeclaredAmount, 10),
		Variant:        string(claim.Variant),
		Payout: httptransport.PayoutDTO{
			Received: strconv.FormatUint(claim.Payout.Received, 10),
			Burned:   strconv.FormatUint(claim.Payout.Burned, 10),
			Vested:   strconv.FormatUint(claim.Payout.Vested, 10),
			Locked:   strconv.FormatUint(claim.Payout.Locked, 10),
		},
		LockDurationSec:  int64(claim.LockDuration / time.Second),
		SettlementStatus: string(claim.SettlementStatus),
		ClaimedAt:        claim.ClaimedAt.UTC().Format(time.RFC3339),
	}
	if claim.SettledAt != nil {
		item.SettledAt = claim.SettledAt.UTC().Format(time.RFC3339)
	}
	return item
}

// displayAmount renders base units as a human amount, e.g. 1500000 with 6
// decimals is "1.5".
func displayAmount(amount uint64, decimals uint8) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -int32(decimals)).String()
}

func parseUint(raw string) (uint64, error) {
	return strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
}

// secondsToDuration rejects negative counts and counts that do not fit a
// time.Duration.
func secondsToDuration(seconds int64) (time.Duration, bool) {
	if seconds < 0 || seconds > math.MaxInt64/int64(time.Second) {
		return 0, false
	}
	return time.Duration(seconds) * time.Second, true
}
