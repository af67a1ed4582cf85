package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	application "dropvest/contexts/token-distribution/airdrop-service/application"
	"dropvest/contexts/token-distribution/airdrop-service/domain/entities"
	domainerrors "dropvest/contexts/token-distribution/airdrop-service/domain/errors"
	"dropvest/contexts/token-distribution/airdrop-service/domain/services"
	"dropvest/contexts/token-distribution/airdrop-service/ports"
)

// Store is an in-memory adapter implementing airdrop ports for local runtime
// and tests. It is not intended as production persistence.
type Store struct {
	mu            sync.RWMutex
	campaigns     map[string]entities.Campaign
	claimSets     map[string]entities.ClaimSet
	claims        map[string]entities.ClaimRecord
	claimOrder    []string
	claimsByIndex map[string]string
	claimsByReqID map[string]string
	vestingGrants map[string]string
	idempotency   map[string]ports.IdempotencyRecord
	outbox        map[string]ports.OutboxMessage
	outboxOrder   []string
	outboxSent    map[string]time.Time
	sequence      uint64
	clock         func() time.Time
	logger        *slog.Logger
}

func NewStore(logger *slog.Logger) *Store {
	return &Store{
		campaigns:     make(map[string]entities.Campaign),
		claimSets:     make(map[string]entities.ClaimSet),
		claims:        make(map[string]entities.ClaimRecord),
		claimsByIndex: make(map[string]string),
		claimsByReqID: make(map[string]string),
		vestingGrants: make(map[string]string),
		idempotency:   make(map[string]ports.IdempotencyRecord),
		outbox:        make(map[string]ports.OutboxMessage),
		outboxSent:    make(map[string]time.Time),
		logger:        application.ResolveLogger(logger),
	}
}

// SetClock pins Now for tests.
func (s *Store) SetClock(clock func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = clock
}

func (s *Store) CreateCampaign(_ context.Context, campaign entities.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.campaigns[campaign.CampaignID]; exists {
		return domainerrors.ErrInvalidCampaign
	}
	s.campaigns[campaign.CampaignID] = campaign
	s.claimSets[campaign.CampaignID] = entities.NewClaimSet(campaign.MaxIndex)

	s.logger.Debug("campaign stored in memory",
		"event", "memory_create_campaign",
		"module", "token-distribution/airdrop-service",
		"layer", "adapter",
		"campaign_id", campaign.CampaignID,
		"claim_set", s.claimSets[campaign.CampaignID].Kind(),
	)
	return nil
}

func (s *Store) GetCampaign(_ context.Context, campaignID string) (entities.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	campaign, ok := s.campaigns[campaignID]
	if !ok {
		return entities.Campaign{}, domainerrors.ErrCampaignNotFound
	}
	return campaign, nil
}

func (s *Store) IsClaimed(_ context.Context, campaignID string, index uint64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set, ok := s.claimSets[campaignID]
	if !ok {
		return false, domainerrors.ErrCampaignNotFound
	}
	return set.Contains(index), nil
}

func (s *Store) CommitClaim(_ context.Context, commit ports.ClaimCommit) (entities.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// A single mutex critical section approximates transactional semantics:
	// index, counters, claim row and outbox row succeed or fail together.
	claim := commit.Claim
	campaign, ok := s.campaigns[claim.CampaignID]
	if !ok {
		return entities.Campaign{}, domainerrors.ErrCampaignNotFound
	}
	set := s.claimSets[claim.CampaignID]
	if campaign.HasEnded(claim.ClaimedAt) {
		return entities.Campaign{}, domainerrors.ErrEnded
	}
	if claim.Index >= campaign.MaxIndex {
		return entities.Campaign{}, domainerrors.ErrIndexOutOfRange
	}
	if _, exists := s.claims[claim.ClaimID]; exists {
		return entities.Campaign{}, domainerrors.ErrRepositoryInvariantBroke
	}
	if set.Contains(claim.Index) {
		return entities.Campaign{}, domainerrors.ErrAlreadyClaimed
	}
	if existing, ok := s.claimsByReqID[requestKey(claim.CampaignID, claim.RequestID)]; ok && existing != claim.ClaimID {
		return entities.Campaign{}, domainerrors.ErrDuplicateRequestID
	}
	grantKey := claim.Address.String()
	if commit.VestingGrant {
		if _, taken := s.vestingGrants[grantKey]; taken {
			return entities.Campaign{}, domainerrors.ErrAlreadyHasPosition
		}
	}

	envelope, err := commit.Event.Envelope()
	if err != nil {
		return entities.Campaign{}, err
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return entities.Campaign{}, err
	}

	if err := services.CommitClaim(&campaign, set, claim.Index, claim.Payout, claim.ClaimedAt); err != nil {
		return entities.Campaign{}, err
	}

	s.campaigns[campaign.CampaignID] = campaign
	s.claims[claim.ClaimID] = claim
	s.claimOrder = append(s.claimOrder, claim.ClaimID)
	s.claimsByIndex[indexKey(claim.CampaignID, claim.Index)] = claim.ClaimID
	s.claimsByReqID[requestKey(claim.CampaignID, claim.RequestID)] = claim.ClaimID
	if commit.VestingGrant {
		s.vestingGrants[grantKey] = claim.ClaimID
	}
	s.outbox[commit.Event.EventID] = ports.OutboxMessage{
		OutboxID:     commit.Event.EventID,
		EventType:    commit.Event.EventType,
		PartitionKey: commit.Event.PartitionKey,
		Payload:      payload,
		CreatedAt:    commit.Event.OccurredAt,
	}
	s.outboxOrder = append(s.outboxOrder, commit.Event.EventID)

	s.logger.Info("claim and outbox persisted in memory store",
		"event", "memory_commit_claim",
		"module", "token-distribution/airdrop-service",
		"layer", "adapter",
		"claim_id", claim.ClaimID,
		"campaign_id", claim.CampaignID,
		"index", claim.Index,
		"outbox_event_id", commit.Event.EventID,
	)
	return campaign, nil
}

func (s *Store) UpdateCampaignStatus(_ context.Context, campaign entities.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.campaigns[campaign.CampaignID]
	if !ok {
		return domainerrors.ErrCampaignNotFound
	}
	current.Status = campaign.Status
	current.EndTime = campaign.EndTime
	current.UpdatedAt = campaign.UpdatedAt
	s.campaigns[campaign.CampaignID] = current
	return nil
}

func (s *Store) GetClaim(_ context.Context, claimID string) (entities.ClaimRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	claim, ok := s.claims[claimID]
	if !ok {
		return entities.ClaimRecord{}, domainerrors.ErrClaimNotFound
	}
	return claim, nil
}

func (s *Store) GetClaimByIndex(_ context.Context, campaignID string, index uint64) (entities.ClaimRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookup(s.claimsByIndex, indexKey(campaignID, index))
}

func (s *Store) GetClaimByRequestID(_ context.Context, campaignID string, requestID string) (entities.ClaimRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookup(s.claimsByReqID, requestKey(campaignID, requestID))
}

func (s *Store) lookup(index map[string]string, key string) (entities.ClaimRecord, bool, error) {
	claimID, ok := index[key]
	if !ok {
		return entities.ClaimRecord{}, false, nil
	}
	claim, exists := s.claims[claimID]
	if !exists {
		return entities.ClaimRecord{}, false, domainerrors.ErrRepositoryInvariantBroke
	}
	return claim, true, nil
}

func (s *Store) ListClaimsByAddress(_ context.Context, campaignID string, address entities.Address) ([]entities.ClaimRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]entities.ClaimRecord, 0)
	for _, claimID := range s.claimOrder {
		claim := s.claims[claimID]
		if claim.CampaignID == campaignID && claim.Address == address {
			result = append(result, claim)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Index < result[j].Index
	})
	return result, nil
}

func (s *Store) ListPendingSettlements(_ context.Context, limit int) ([]entities.ClaimRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	result := make([]entities.ClaimRecord, 0)
	for _, claimID := range s.claimOrder {
		claim := s.claims[claimID]
		if claim.SettlementStatus != entities.SettlementPending {
			continue
		}
		result = append(result, claim)
		if len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (s *Store) MarkClaimSettled(_ context.Context, claimID string, settledAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	claim, ok := s.claims[claimID]
	if !ok {
		return domainerrors.ErrClaimNotFound
	}
	if claim.IsSettled() {
		return nil
	}
	at := settledAt.UTC()
	claim.SettlementStatus = entities.SettlementSettled
	claim.SettledAt = &at
	s.claims[claimID] = claim
	return nil
}

func (s *Store) MarkClaimRefundRequired(_ context.Context, claimID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	claim, ok := s.claims[claimID]
	if !ok {
		return domainerrors.ErrClaimNotFound
	}
	if claim.SettlementStatus != entities.SettlementPending {
		return nil
	}
	claim.SettlementStatus = entities.SettlementRefundRequired
	s.claims[claimID] = claim
	return nil
}

func (s *Store) Get(_ context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.idempotency[key]
	if !ok {
		return ports.IdempotencyRecord{}, false, nil
	}
	// Expired keys are lazily evicted on read.
	if !record.ExpiresAt.IsZero() && now.After(record.ExpiresAt) {
		delete(s.idempotency, key)
		return ports.IdempotencyRecord{}, false, nil
	}
	return record, true, nil
}

func (s *Store) Put(_ context.Context, record ports.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.idempotency[record.Key]; ok {
		if existing.RequestHash != record.RequestHash {
			return domainerrors.ErrIdempotencyKeyConflict
		}
		return nil
	}
	s.idempotency[record.Key] = record
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	messages := make([]ports.OutboxMessage, 0, limit)
	for _, id := range s.outboxOrder {
		if _, sent := s.outboxSent[id]; sent {
			continue
		}
		if msg, ok := s.outbox[id]; ok {
			messages = append(messages, msg)
		}
		if len(messages) >= limit {
			break
		}
	}
	return messages, nil
}

func (s *Store) MarkOutboxSent(_ context.Context, outboxID string, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.outbox[outboxID]; !ok {
		return domainerrors.ErrRepositoryInvariantBroke
	}
	s.outboxSent[outboxID] = sentAt.UTC()
	return nil
}

func (s *Store) Now() time.Time {
	s.mu.RLock()
	clock := s.clock
	s.mu.RUnlock()
	if clock != nil {
		return clock().UTC()
	}
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	value := atomic.AddUint64(&s.sequence, 1)
	return fmt.Sprintf("airdrop-%d", value), nil
}

// ClaimedIndices exposes the consumed index set of a campaign for inspection.
func (s *Store) ClaimedIndices(campaignID string) []uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set, ok := s.claimSets[campaignID]
	if !ok {
		return nil
	}
	return set.Indices()
}

func (s *Store) OutboxEvents() []ports.OutboxMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]ports.OutboxMessage, 0, len(s.outboxOrder))
	for _, id := range s.outboxOrder {
		if evt, ok := s.outbox[id]; ok {
			events = append(events, evt)
		}
	}
	return events
}

func indexKey(campaignID string, index uint64) string {
	return fmt.Sprintf("%s/%d", campaignID, index)
}

func requestKey(campaignID string, value string) string {
	return campaignID + "/" + value
}
