package httptransport

// Amounts travel as base-10 strings; durations are whole seconds.

type CreateScheduleRequest struct {
	ScheduleID        string `json:"schedule_id,omitempty"`
	Name              string `json:"name"`
	TGEBasisPoints    uint16 `json:"tge_bp"`
	CliffBasisPoints  uint16 `json:"cliff_bp"`
	CliffDurationSec  int64  `json:"cliff_duration_seconds"`
	PeriodDurationSec int64  `json:"period_duration_seconds"`
	NumPeriods        uint32 `json:"num_periods"`
	IsDefault         bool   `json:"is_default"`
}

type ScheduleDTO struct {
	ScheduleID        string `json:"schedule_id"`
	Name              string `json:"name"`
	TGEBasisPoints    uint16 `json:"tge_bp"`
	CliffBasisPoints  uint16 `json:"cliff_bp"`
	CliffDurationSec  int64  `json:"cliff_duration_seconds"`
	PeriodDurationSec int64  `json:"period_duration_seconds"`
	NumPeriods        uint32 `json:"num_periods"`
	IsDefault         bool   `json:"is_default"`
	CreatedAt         string `json:"created_at"`
}

type ScheduleResponse struct {
	Item ScheduleDTO `json:"item"`
}

type CreatePositionRequest struct {
	Beneficiary    string `json:"beneficiary"`
	TotalAmount    string `json:"total_amount"`
	ScheduleID     string `json:"schedule_id,omitempty"`
	StartTime      string `json:"start_time,omitempty"`
	FundingAccount string `json:"funding_account,omitempty"`
}

type PositionDTO struct {
	PositionID     string `json:"position_id"`
	Beneficiary    string `json:"beneficiary"`
	ScheduleID     string `json:"schedule_id"`
	TotalAmount    string `json:"total_amount"`
	ReleasedAmount string `json:"released_amount"`
	StartTime      string `json:"start_time"`
	Source         string `json:"source"`
	Completed      bool   `json:"completed"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

type PositionResponse struct {
	Item PositionDTO `json:"item"`
}

// PositionStatusResponse carries the unlock state. NextUnlockTime is null once
// nothing further is scheduled.
type PositionStatusResponse struct {
	Item           PositionDTO `json:"item"`
	Unlocked       string      `json:"unlocked"`
	Releasable     string      `json:"releasable"`
	NextUnlockTime *string     `json:"next_unlock_time"`
	AsOf           string      `json:"as_of"`
}

type ReleaseDTO struct {
	ReleaseID        string `json:"release_id"`
	PositionID       string `json:"position_id"`
	Amount           string `json:"amount"`
	ReleasedBefore   string `json:"released_before"`
	SettlementStatus string `json:"settlement_status"`
	ReleasedAt       string `json:"released_at"`
}

type ReleaseResponse struct {
	Item    PositionDTO `json:"item"`
	Release ReleaseDTO  `json:"release"`
	Settled bool        `json:"settled"`
}

type LockDTO struct {
	LockID      string `json:"lock_id"`
	Owner       string `json:"owner"`
	Amount      string `json:"amount"`
	UnlockAt    string `json:"unlock_at"`
	SourceRef   string `json:"source_ref,omitempty"`
	CreatedAt   string `json:"created_at"`
	WithdrawnAt string `json:"withdrawn_at,omitempty"`
}

type LockResponse struct {
	Item LockDTO `json:"item"`
}

type ListLocksResponse struct {
	Items []LockDTO `json:"items"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
