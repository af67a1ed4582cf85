package httptransport

// Amounts travel as base-10 strings so uint64 values survive JSON clients
// that decode numbers as float64.

type CreateCampaignRequest struct {
	CampaignID         string `json:"campaign_id,omitempty"`
	MerkleRoot         string `json:"merkle_root"`
	TreasuryAccount    string `json:"treasury_account"`
	TokenDenom         string `json:"token_denom"`
	TokenDecimals      uint8  `json:"token_decimals"`
	TotalAllocation    string `json:"total_allocation"`
	MaxIndex           string `json:"max_index"`
	StartTime          string `json:"start_time,omitempty"`
	EndTime            string `json:"end_time"`
	LockMinDurationSec int64  `json:"lock_min_duration_seconds"`
	LockMaxDurationSec int64  `json:"lock_max_duration_seconds"`
}

type CampaignDTO struct {
	CampaignID         string `json:"campaign_id"`
	AdminID            string `json:"admin_id"`
	MerkleRoot         string `json:"merkle_root"`
	TokenDenom         string `json:"token_denom"`
	TotalAllocation    string `json:"total_allocation"`
	TotalClaimed       string `json:"total_claimed"`
	TotalBurned        string `json:"total_burned"`
	Remaining          string `json:"remaining"`
	RemainingDisplay   string `json:"remaining_display"`
	ClaimCount         string `json:"claim_count"`
	MaxIndex           string `json:"max_index"`
	StartTime          string `json:"start_time"`
	EndTime            string `json:"end_time"`
	LockMinDurationSec int64  `json:"lock_min_duration_seconds"`
	LockMaxDurationSec int64  `json:"lock_max_duration_seconds"`
	Status             string `json:"status"`
	Ended              bool   `json:"ended"`
}

type CampaignResponse struct {
	Item CampaignDTO `json:"item"`
}

type ClaimRequest struct {
	Address         string   `json:"address"`
	Amount          string   `json:"amount"`
	Index           string   `json:"index"`
	Proof           []string `json:"proof"`
	Variant         string   `json:"variant"`
	LockDurationSec int64    `json:"lock_duration_seconds,omitempty"`
	RequestID       string   `json:"request_id,omitempty"`
}

type PayoutDTO struct {
	Received string `json:"received"`
	Burned   string `json:"burned"`
	Vested   string `json:"vested"`
	Locked   string `json:"locked"`
}

type ClaimDTO struct {
	ClaimID          string    `json:"claim_id"`
	CampaignID       string    `json:"campaign_id"`
	Index            string    `json:"index"`
	Address          string    `json:"address"`
	DeclaredAmount   string    `json:"declared_amount"`
	Variant          string    `json:"variant"`
	Payout           PayoutDTO `json:"payout"`
	LockDurationSec  int64     `json:"lock_duration_seconds,omitempty"`
	SettlementStatus string    `json:"settlement_status"`
	ClaimedAt        string    `json:"claimed_at"`
	SettledAt        string    `json:"settled_at,omitempty"`
}

type ClaimResponse struct {
	Item     ClaimDTO `json:"item"`
	Replayed bool     `json:"replayed,omitempty"`
	Settled  bool     `json:"settled"`
}

type ClaimStatusResponse struct {
	CampaignID string    `json:"campaign_id"`
	Index      string    `json:"index"`
	Claimed    bool      `json:"claimed"`
	Claim      *ClaimDTO `json:"claim,omitempty"`
}

type ListClaimsResponse struct {
	Items []ClaimDTO `json:"items"`
}

type EmergencyWithdrawResponse struct {
	Item      CampaignDTO `json:"item"`
	Withdrawn string      `json:"withdrawn"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
