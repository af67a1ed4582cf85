package vestingservice

import (
	"log/slog"

	httpadapter "dropvest/contexts/token-distribution/vesting-service/adapters/http"
	"dropvest/contexts/token-distribution/vesting-service/adapters/memory"
	"dropvest/contexts/token-distribution/vesting-service/application/commands"
	"dropvest/contexts/token-distribution/vesting-service/application/queries"
	"dropvest/contexts/token-distribution/vesting-service/application/workers"
	"dropvest/contexts/token-distribution/vesting-service/ports"
)

// Module is the composition surface for the vesting service. OpenPosition and
// CreateLock are consumed by the airdrop bridge; Store is only set for the
// in-memory wiring.
type Module struct {
	Handler      httpadapter.Handler
	OpenPosition commands.OpenPositionFromGrantUseCase
	CreateLock   commands.CreateLockUseCase
	Positions    ports.PositionRepository
	AutoReleaser workers.AutoReleaser
	Releases     workers.ReleaseRetrier
	OutboxRelay  workers.OutboxRelay
	Store        *memory.Store
}

type Dependencies struct {
	Schedules    ports.ScheduleRepository
	Positions    ports.PositionRepository
	Locks        ports.LockRepository
	Outbox       ports.OutboxRepository
	Publisher    ports.EventPublisher
	Ledger       ports.TokenLedger
	Clock        ports.Clock
	IDGenerator  ports.IDGenerator
	VestingTopic string
	Logger       *slog.Logger
}

func NewModule(deps Dependencies) Module {
	settler := commands.ReleaseSettler{
		Positions: deps.Positions,
		Ledger:    deps.Ledger,
		Clock:     deps.Clock,
		Logger:    deps.Logger,
	}
	release := commands.ReleaseUseCase{
		Schedules:   deps.Schedules,
		Positions:   deps.Positions,
		Settler:     settler,
		Clock:       deps.Clock,
		IDGenerator: deps.IDGenerator,
		Logger:      deps.Logger,
	}

	handler := httpadapter.Handler{
		CreateSchedule: commands.CreateScheduleUseCase{
			Schedules:   deps.Schedules,
			Clock:       deps.Clock,
			IDGenerator: deps.IDGenerator,
			Logger:      deps.Logger,
		},
		CreatePosition: commands.CreatePositionUseCase{
			Schedules:   deps.Schedules,
			Positions:   deps.Positions,
			Ledger:      deps.Ledger,
			Clock:       deps.Clock,
			IDGenerator: deps.IDGenerator,
			Logger:      deps.Logger,
		},
		Release: release,
		WithdrawLock: commands.WithdrawLockUseCase{
			Locks:  deps.Locks,
			Ledger: deps.Ledger,
			Clock:  deps.Clock,
			Logger: deps.Logger,
		},
		GetSchedule: queries.GetScheduleUseCase{
			Schedules: deps.Schedules,
			Logger:    deps.Logger,
		},
		GetPosition: queries.GetPositionUseCase{
			Schedules: deps.Schedules,
			Positions: deps.Positions,
			Clock:     deps.Clock,
			Logger:    deps.Logger,
		},
		ListLocks: queries.ListLocksUseCase{
			Locks:  deps.Locks,
			Logger: deps.Logger,
		},
		Logger: deps.Logger,
	}

	return Module{
		Handler: handler,
		OpenPosition: commands.OpenPositionFromGrantUseCase{
			Schedules:   deps.Schedules,
			Positions:   deps.Positions,
			Clock:       deps.Clock,
			IDGenerator: deps.IDGenerator,
			Logger:      deps.Logger,
		},
		CreateLock: commands.CreateLockUseCase{
			Locks:       deps.Locks,
			Clock:       deps.Clock,
			IDGenerator: deps.IDGenerator,
			Logger:      deps.Logger,
		},
		Positions: deps.Positions,
		AutoReleaser: workers.AutoReleaser{
			Schedules: deps.Schedules,
			Positions: deps.Positions,
			Release:   release,
			Clock:     deps.Clock,
			Logger:    deps.Logger,
		},
		Releases: workers.ReleaseRetrier{
			Positions: deps.Positions,
			Settler:   settler,
			Logger:    deps.Logger,
		},
		OutboxRelay: workers.OutboxRelay{
			Outbox:    deps.Outbox,
			Publisher: deps.Publisher,
			Clock:     deps.Clock,
			Topic:     deps.VestingTopic,
			Logger:    deps.Logger,
		},
	}
}

// NewInMemoryModule wires the vesting use cases against the in-memory store.
func NewInMemoryModule(ledger ports.TokenLedger, publisher ports.EventPublisher, logger *slog.Logger) Module {
	store := memory.NewStore(logger)
	module := NewModule(Dependencies{
		Schedules:   store,
		Positions:   store,
		Locks:       store,
		Outbox:      store,
		Publisher:   publisher,
		Ledger:      ledger,
		Clock:       store,
		IDGenerator: store,
		Logger:      logger,
	})
	module.Store = store
	return module
}
