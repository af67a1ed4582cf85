package ports

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"dropvest/contexts/token-distribution/airdrop-service/domain/entities"
	contractsv1 "dropvest/contracts/gen/events/v1"
	ledgerv1 "dropvest/contracts/gen/ledger/v1"
)

// ClaimCommit is everything the claim write boundary persists in one
// transaction: the consumed index, the campaign counters, the claim record and
// its outbox event.
type ClaimCommit struct {
	Claim entities.ClaimRecord
	Event ClaimedEvent
	// VestingGrant reserves the claimant's single vesting slot across every
	// campaign. Set only for vesting claims.
	VestingGrant bool
}

// ClaimedEvent is the outbound integration payload persisted to outbox.
type ClaimedEvent struct {
	EventID      string
	EventType    string
	ClaimID      string
	CampaignID   string
	Index        uint64
	Address      string
	Variant      string
	Declared     uint64
	Received     uint64
	Burned       uint64
	Vested       uint64
	Locked       uint64
	PartitionKey string
	OccurredAt   time.Time
}

// Envelope renders the event in the canonical outbox envelope. Amounts are
// carried as decimal strings so consumers never round through float64.
func (e ClaimedEvent) Envelope() (EventEnvelope, error) {
	data, err := json.Marshal(map[string]any{
		"claim_id":    e.ClaimID,
		"campaign_id": e.CampaignID,
		"index":       strconv.FormatUint(e.Index, 10),
		"address":     e.Address,
		"variant":     e.Variant,
		"declared":    strconv.FormatUint(e.Declared, 10),
		"received":    strconv.FormatUint(e.Received, 10),
		"burned":      strconv.FormatUint(e.Burned, 10),
		"vested":      strconv.FormatUint(e.Vested, 10),
		"locked":      strconv.FormatUint(e.Locked, 10),
	})
	if err != nil {
		return EventEnvelope{}, err
	}
	return EventEnvelope{
		EventID:          e.EventID,
		EventType:        e.EventType,
		OccurredAt:       e.OccurredAt.UTC(),
		SourceService:    "airdrop-service",
		SchemaVersion:    1,
		PartitionKeyPath: "campaign_id",
		PartitionKey:     e.PartitionKey,
		Data:             data,
	}, nil
}

// CampaignRepository owns campaign state, the claimed-index set and claim
// records.
type CampaignRepository interface {
	CreateCampaign(ctx context.Context, campaign entities.Campaign) error
	GetCampaign(ctx context.Context, campaignID string) (entities.Campaign, error)
	IsClaimed(ctx context.Context, campaignID string, index uint64) (bool, error)
	// CommitClaim must re-check the index and allocation under the write lock
	// and apply the index consumption, counters, claim row and outbox row
	// atomically. A concurrent winner surfaces as ErrAlreadyClaimed.
	CommitClaim(ctx context.Context, commit ClaimCommit) (entities.Campaign, error)
	// UpdateCampaignStatus persists End/Withdraw transitions.
	UpdateCampaignStatus(ctx context.Context, campaign entities.Campaign) error
	GetClaim(ctx context.Context, claimID string) (entities.ClaimRecord, error)
	GetClaimByIndex(ctx context.Context, campaignID string, index uint64) (entities.ClaimRecord, bool, error)
	GetClaimByRequestID(ctx context.Context, campaignID string, requestID string) (entities.ClaimRecord, bool, error)
	ListClaimsByAddress(ctx context.Context, campaignID string, address entities.Address) ([]entities.ClaimRecord, error)
	ListPendingSettlements(ctx context.Context, limit int) ([]entities.ClaimRecord, error)
	MarkClaimSettled(ctx context.Context, claimID string, settledAt time.Time) error
	// MarkClaimRefundRequired takes a pending claim out of the retry queue.
	MarkClaimRefundRequired(ctx context.Context, claimID string, at time.Time) error
}

// IdempotencyRecord captures dedupe metadata for mutating requests.
type IdempotencyRecord struct {
	Key         string
	RequestHash string
	ClaimID     string
	ExpiresAt   time.Time
}

// IdempotencyStore abstracts idempotency persistence with TTL handling.
type IdempotencyStore interface {
	Get(ctx context.Context, key string, now time.Time) (IdempotencyRecord, bool, error)
	Put(ctx context.Context, record IdempotencyRecord) error
}

// TokenLedger is the host ledger collaborator. Asset/escrow types are shared
// with every context through the ledger contract.
type TokenLedger = ledgerv1.TokenLedger

type Asset = ledgerv1.Asset

// VestingGrant asks the vesting side to open a position funded by a claim.
type VestingGrant struct {
	Beneficiary   string
	Amount        uint64
	StartTime     time.Time
	EscrowAccount string
	SourceRef     string
}

// VestingGateway is the vesting engine as seen from claim orchestration.
type VestingGateway interface {
	HasPosition(ctx context.Context, beneficiary string) (bool, error)
	// OpenPosition must be idempotent on SourceRef.
	OpenPosition(ctx context.Context, grant VestingGrant) error
}

// LockRequest hands claimed funds to the escrow/lock collaborator.
type LockRequest struct {
	Owner         string
	Amount        uint64
	Duration      time.Duration
	EscrowAccount string
	SourceRef     string
}

// EscrowLocker must be idempotent on SourceRef.
type EscrowLocker interface {
	CreateLock(ctx context.Context, req LockRequest) error
}

// Clock allows deterministic testing of time rules.
type Clock interface {
	Now() time.Time
}

// IDGenerator abstracts claim/event identifier generation.
type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// OutboxMessage is a row ready to relay from the module outbox.
type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

// OutboxRepository models worker-side outbox polling/acknowledgement.
type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxSent(ctx context.Context, outboxID string, sentAt time.Time) error
}

// EventEnvelope reuses the canonical cross-runtime envelope contract.
type EventEnvelope = contractsv1.Envelope

// EventPublisher publishes canonical envelopes to a topic.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}
