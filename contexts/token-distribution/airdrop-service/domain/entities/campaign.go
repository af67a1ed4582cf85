package entities

import (
	"math/bits"
	"strings"
	"time"

	domainerrors "dropvest/contexts/token-distribution/airdrop-service/domain/errors"
)

type CampaignStatus string

const (
	CampaignStatusActive    CampaignStatus = "active"
	CampaignStatusEnded     CampaignStatus = "ended"
	CampaignStatusWithdrawn CampaignStatus = "withdrawn"
)

// Campaign is one airdrop commitment. Root and MaxIndex are fixed at
// creation; EndTime only moves through End/Withdraw.
type Campaign struct {
	CampaignID      string
	AdminID         string
	Root            Hash
	TreasuryAccount string
	TokenDenom      string
	TokenDecimals   uint8
	TotalAllocation uint64
	TotalClaimed    uint64
	TotalBurned     uint64
	ClaimCount      uint64
	MaxIndex        uint64
	StartTime       time.Time
	EndTime         time.Time
	LockMinDuration time.Duration
	LockMaxDuration time.Duration
	Status          CampaignStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type NewCampaignInput struct {
	CampaignID      string
	AdminID         string
	Root            Hash
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

func NewCampaign(input NewCampaignInput, now time.Time) (Campaign, error) {
	if strings.TrimSpace(input.CampaignID) == "" ||
		strings.TrimSpace(input.AdminID) == "" ||
		strings.TrimSpace(input.TreasuryAccount) == "" ||
		strings.TrimSpace(input.TokenDenom) == "" {
		return Campaign{}, domainerrors.ErrInvalidCampaign
	}
	if input.Root.IsZero() || input.TotalAllocation == 0 || input.MaxIndex == 0 {
		return Campaign{}, domainerrors.ErrInvalidCampaign
	}
	start := input.StartTime
	if start.IsZero() {
		start = now
	}
	if !input.EndTime.After(start) {
		return Campaign{}, domainerrors.ErrInvalidCampaign
	}
	if input.LockMinDuration <= 0 || input.LockMaxDuration < input.LockMinDuration {
		return Campaign{}, domainerrors.ErrInvalidCampaign
	}

	return Campaign{
		CampaignID:      input.CampaignID,
		AdminID:         input.AdminID,
		Root:            input.Root,
		TreasuryAccount: input.TreasuryAccount,
		TokenDenom:      input.TokenDenom,
		TokenDecimals:   input.TokenDecimals,
		TotalAllocation: input.TotalAllocation,
		MaxIndex:        input.MaxIndex,
		StartTime:       start.UTC(),
		EndTime:         input.EndTime.UTC(),
		LockMinDuration: input.LockMinDuration,
		LockMaxDuration: input.LockMaxDuration,
		Status:          CampaignStatusActive,
		CreatedAt:       now.UTC(),
		UpdatedAt:       now.UTC(),
	}, nil
}

// HasEnded reports whether claims are closed. The end instant itself is still
// claimable.
func (c Campaign) HasEnded(now time.Time) bool {
	return c.Status != CampaignStatusActive || now.After(c.EndTime)
}

func (c Campaign) RemainingAllocation() uint64 {
	return c.TotalAllocation - c.TotalClaimed
}

// ApplyClaim books a successful claim. Callers must have authorized the claim;
// the checks here only protect the accounting invariants.
func (c *Campaign) ApplyClaim(declared uint64, burned uint64, now time.Time) error {
	claimed, carry := bits.Add64(c.TotalClaimed, declared, 0)
	if carry != 0 {
		return domainerrors.ErrArithmeticOverflow
	}
	if claimed > c.TotalAllocation {
		return domainerrors.ErrAllocationExceeded
	}
	totalBurned, carry := bits.Add64(c.TotalBurned, burned, 0)
	if carry != 0 || totalBurned > claimed {
		return domainerrors.ErrArithmeticOverflow
	}
	c.TotalClaimed = claimed
	c.TotalBurned = totalBurned
	c.ClaimCount++
	c.UpdatedAt = now.UTC()
	return nil
}

// End closes the campaign early. Ending an already closed campaign keeps the
// earlier end time.
func (c *Campaign) End(now time.Time) {
	if c.Status != CampaignStatusActive {
		return
	}
	if now.Before(c.EndTime) {
		c.EndTime = now.UTC()
	}
	c.Status = CampaignStatusEnded
	c.UpdatedAt = now.UTC()
}

// Withdraw ends the campaign and returns the unclaimed remainder that the
// admin may pull back.
func (c *Campaign) Withdraw(now time.Time) (uint64, error) {
	if c.Status == CampaignStatusWithdrawn {
		return 0, domainerrors.ErrCampaignWithdrawn
	}
	c.End(now)
	c.Status = CampaignStatusWithdrawn
	return c.RemainingAllocation(), nil
}

// LockDurationAllowed enforces the admin-fixed lock bounds.
func (c Campaign) LockDurationAllowed(duration time.Duration) bool {
	return duration >= c.LockMinDuration && duration <= c.LockMaxDuration
}
