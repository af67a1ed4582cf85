package airdropservice

import (
	"log/slog"
	"time"

	httpadapter "dropvest/contexts/token-distribution/airdrop-service/adapters/http"
	"dropvest/contexts/token-distribution/airdrop-service/adapters/memory"
	"dropvest/contexts/token-distribution/airdrop-service/application/commands"
	"dropvest/contexts/token-distribution/airdrop-service/application/queries"
	"dropvest/contexts/token-distribution/airdrop-service/application/workers"
	"dropvest/contexts/token-distribution/airdrop-service/ports"
)

// Module is the composition surface for the airdrop service.
// Runtime wiring consumes Handler and the workers; Store is exposed for
// tests/inspection when the in-memory adapters are used.
type Module struct {
	Handler     httpadapter.Handler
	Settler     commands.ClaimSettler
	OutboxRelay workers.OutboxRelay
	Settlements workers.SettlementRetrier
	Store       *memory.Store
}

type Dependencies struct {
	Campaigns      ports.CampaignRepository
	Idempotency    ports.IdempotencyStore
	Outbox         ports.OutboxRepository
	Publisher      ports.EventPublisher
	Ledger         ports.TokenLedger
	Vesting        ports.VestingGateway
	Locker         ports.EscrowLocker
	Clock          ports.Clock
	IDGenerator    ports.IDGenerator
	IdempotencyTTL time.Duration
	ClaimTopic     string
	Logger         *slog.Logger
}

// NewModule wires airdrop use-cases against explicit ports.
func NewModule(deps Dependencies) Module {
	settler := commands.ClaimSettler{
		Campaigns: deps.Campaigns,
		Ledger:    deps.Ledger,
		Vesting:   deps.Vesting,
		Locker:    deps.Locker,
		Clock:     deps.Clock,
		Logger:    deps.Logger,
	}

	handler := httpadapter.Handler{
		CreateCampaign: commands.CreateCampaignUseCase{
			Campaigns:   deps.Campaigns,
			Clock:       deps.Clock,
			IDGenerator: deps.IDGenerator,
			Logger:      deps.Logger,
		},
		ClaimAirdrop: commands.ClaimAirdropUseCase{
			Campaigns:      deps.Campaigns,
			Idempotency:    deps.Idempotency,
			Vesting:        deps.Vesting,
			Settler:        settler,
			Clock:          deps.Clock,
			IDGenerator:    deps.IDGenerator,
			IdempotencyTTL: deps.IdempotencyTTL,
			Logger:         deps.Logger,
		},
		EndCampaign: commands.EndCampaignUseCase{
			Campaigns: deps.Campaigns,
			Clock:     deps.Clock,
			Logger:    deps.Logger,
		},
		EmergencyWithdraw: commands.EmergencyWithdrawUseCase{
			Campaigns: deps.Campaigns,
			Ledger:    deps.Ledger,
			Clock:     deps.Clock,
			Logger:    deps.Logger,
		},
		GetCampaign: queries.GetCampaignUseCase{
			Campaigns: deps.Campaigns,
			Clock:     deps.Clock,
			Logger:    deps.Logger,
		},
		GetClaimStatus: queries.GetClaimStatusUseCase{
			Campaigns: deps.Campaigns,
			Logger:    deps.Logger,
		},
		ListClaims: queries.ListClaimsByAddressUseCase{
			Campaigns: deps.Campaigns,
			Logger:    deps.Logger,
		},
		Logger: deps.Logger,
	}

	return Module{
		Handler: handler,
		Settler: settler,
		OutboxRelay: workers.OutboxRelay{
			Outbox:    deps.Outbox,
			Publisher: deps.Publisher,
			Clock:     deps.Clock,
			Topic:     deps.ClaimTopic,
			Logger:    deps.Logger,
		},
		Settlements: workers.SettlementRetrier{
			Campaigns: deps.Campaigns,
			Settler:   settler,
			Logger:    deps.Logger,
		},
	}
}

// NewInMemoryModule wires the airdrop use cases against in-memory adapters.
// Ledger, vesting and lock collaborators are supplied by the caller.
func NewInMemoryModule(
	ledger ports.TokenLedger,
	vesting ports.VestingGateway,
	locker ports.EscrowLocker,
	publisher ports.EventPublisher,
	logger *slog.Logger,
) Module {
	store := memory.NewStore(logger)
	module := NewModule(Dependencies{
		Campaigns:      store,
		Idempotency:    store,
		Outbox:         store,
		Publisher:      publisher,
		Ledger:         ledger,
		Vesting:        vesting,
		Locker:         locker,
		Clock:          store,
		IDGenerator:    store,
		IdempotencyTTL: 7 * 24 * time.Hour,
		Logger:         logger,
	})
	module.Store = store
	return module
}
