package bootstrap

import (
	"context"
	"log/slog"
	"time"

	airdropservice "dropvest/contexts/token-distribution/airdrop-service"
	airdropcache "dropvest/contexts/token-distribution/airdrop-service/adapters/cache"
	airdropmemory "dropvest/contexts/token-distribution/airdrop-service/adapters/memory"
	airdroppostgres "dropvest/contexts/token-distribution/airdrop-service/adapters/postgres"
	airdropports "dropvest/contexts/token-distribution/airdrop-service/ports"
	vestingservice "dropvest/contexts/token-distribution/vesting-service"
	vestingmemory "dropvest/contexts/token-distribution/vesting-service/adapters/memory"
	vestingpostgres "dropvest/contexts/token-distribution/vesting-service/adapters/postgres"
	contractsv1 "dropvest/contracts/gen/events/v1"
	"dropvest/internal/platform/bridge"
	"dropvest/internal/platform/cache"
	"dropvest/internal/platform/config"
	"dropvest/internal/platform/db"
	"dropvest/internal/platform/ledger"
	"dropvest/internal/platform/messaging"
	"dropvest/internal/platform/scheduler"

	"github.com/redis/go-redis/v9"
)

type publisher interface {
	Publish(ctx context.Context, topic string, event contractsv1.Envelope) error
}

// runtime holds the wired modules and the infrastructure handles that must be
// closed on shutdown.
type runtime struct {
	cfg      config.Config
	logger   *slog.Logger
	postgres *db.Postgres
	redis    *redis.Client
	kafka    *messaging.KafkaPublisher
	bus      *messaging.Bus
	ledger   ledger.Host
	airdrop  airdropservice.Module
	vesting  vestingservice.Module
}

func buildRuntime(ctx context.Context, cfg config.Config, logger *slog.Logger) (rt *runtime, err error) {
	rt = &runtime{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = rt.Close()
		}
	}()

	var pub publisher
	if len(cfg.KafkaBrokers) > 0 {
		rt.kafka, err = messaging.NewKafkaPublisher(cfg.KafkaBrokers, logger)
		if err != nil {
			return nil, err
		}
		pub = rt.kafka
	} else {
		rt.bus = messaging.NewBus(logger)
		pub = rt.bus
	}

	var idempotency airdropports.IdempotencyStore
	if cfg.RedisURL != "" {
		rt.redis, err = cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		idempotency = airdropcache.NewRedisIdempotencyStore(rt.redis)
	}

	if cfg.UseInMemory {
		rt.wireInMemory(pub, idempotency)
	} else if err := rt.wirePostgres(ctx, pub, idempotency); err != nil {
		return nil, err
	}

	if err := ledger.Seed(ctx, rt.ledger, cfg.LedgerSeed); err != nil {
		return nil, err
	}

	logger.Info("runtime wired",
		"event", "bootstrap_runtime_wired",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"in_memory", cfg.UseInMemory,
		"kafka", rt.kafka != nil,
		"redis", rt.redis != nil,
		"seeded_accounts", len(cfg.LedgerSeed),
	)
	return rt, nil
}

func (rt *runtime) wireInMemory(pub publisher, idempotency airdropports.IdempotencyStore) {
	rt.ledger = ledger.NewMemory(rt.cfg.LedgerDenom, rt.logger)

	vestingStore := vestingmemory.NewStore(rt.logger)
	rt.vesting = vestingservice.NewModule(vestingservice.Dependencies{
		Schedules:    vestingStore,
		Positions:    vestingStore,
		Locks:        vestingStore,
		Outbox:       vestingStore,
		Publisher:    pub,
		Ledger:       rt.ledger,
		Clock:        vestingStore,
		IDGenerator:  vestingStore,
		VestingTopic: rt.cfg.VestingTopic,
		Logger:       rt.logger,
	})
	rt.vesting.Store = vestingStore

	airdropStore := airdropmemory.NewStore(rt.logger)
	if idempotency == nil {
		idempotency = airdropStore
	}
	gateway := bridge.NewVesting(rt.vesting)
	rt.airdrop = airdropservice.NewModule(airdropservice.Dependencies{
		Campaigns:      airdropStore,
		Idempotency:    idempotency,
		Outbox:         airdropStore,
		Publisher:      pub,
		Ledger:         rt.ledger,
		Vesting:        gateway,
		Locker:         gateway,
		Clock:          airdropStore,
		IDGenerator:    airdropStore,
		IdempotencyTTL: rt.cfg.IdempotencyTTL,
		ClaimTopic:     rt.cfg.ClaimTopic,
		Logger:         rt.logger,
	})
	rt.airdrop.Store = airdropStore
}

func (rt *runtime) wirePostgres(ctx context.Context, pub publisher, idempotency airdropports.IdempotencyStore) error {
	pg, err := db.Connect(ctx, rt.cfg.PostgresDSN, db.PoolOptions{
		MaxOpenConns:    20,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
	})
	if err != nil {
		return err
	}
	rt.postgres = pg

	hostLedger := ledger.NewPostgres(pg.DB, rt.cfg.LedgerDenom, rt.logger)
	vestingRepo := vestingpostgres.NewRepository(pg.DB, rt.logger)
	airdropRepo := airdroppostgres.NewRepository(pg.DB, rt.logger)
	if err := db.RunMigrations(ctx, rt.logger, hostLedger, airdropRepo, vestingRepo); err != nil {
		return err
	}
	rt.ledger = hostLedger

	rt.vesting = vestingservice.NewModule(vestingservice.Dependencies{
		Schedules:    vestingRepo,
		Positions:    vestingRepo,
		Locks:        vestingRepo,
		Outbox:       vestingRepo,
		Publisher:    pub,
		Ledger:       hostLedger,
		Clock:        vestingpostgres.SystemClock{},
		IDGenerator:  vestingpostgres.UUIDGenerator{},
		VestingTopic: rt.cfg.VestingTopic,
		Logger:       rt.logger,
	})

	if idempotency == nil {
		idempotency = airdropRepo
	}
	gateway := bridge.NewVesting(rt.vesting)
	rt.airdrop = airdropservice.NewModule(airdropservice.Dependencies{
		Campaigns:      airdropRepo,
		Idempotency:    idempotency,
		Outbox:         airdropRepo,
		Publisher:      pub,
		Ledger:         hostLedger,
		Vesting:        gateway,
		Locker:         gateway,
		Clock:          airdroppostgres.SystemClock{},
		IDGenerator:    airdroppostgres.UUIDGenerator{},
		IdempotencyTTL: rt.cfg.IdempotencyTTL,
		ClaimTopic:     rt.cfg.ClaimTopic,
		Logger:         rt.logger,
	})
	return nil
}

// sweeps are the cron-scheduled background jobs.
func (rt *runtime) sweeps() []scheduler.Job {
	var jobs []scheduler.Job
	if rt.cfg.EnableSettlementRetry {
		jobs = append(jobs,
			scheduler.Job{
				Name:     "airdrop-settlement-retry",
				Schedule: rt.cfg.SettlementRetrySchedule,
				Timeout:  time.Minute,
				Run:      rt.airdrop.Settlements.RunOnce,
			},
			scheduler.Job{
				Name:     "vesting-release-retry",
				Schedule: rt.cfg.SettlementRetrySchedule,
				Timeout:  time.Minute,
				Run:      rt.vesting.Releases.RunOnce,
			},
		)
	}
	if rt.cfg.EnableAutoRelease {
		jobs = append(jobs, scheduler.Job{
			Name:     "vesting-auto-release",
			Schedule: rt.cfg.VestingAutoReleaseSchedule,
			Timeout:  5 * time.Minute,
			Run: func(ctx context.Context) error {
				summary, err := rt.vesting.AutoReleaser.RunOnce(ctx)
				rt.logger.Info("vesting auto-release sweep finished",
					"event", "bootstrap_auto_release_sweep",
					"module", "internal/app/bootstrap",
					"layer", "platform",
					"scanned", summary.Scanned,
					"released", summary.Released,
					"skipped", summary.Skipped,
					"failed", summary.Failed,
				)
				return err
			},
		})
	}
	return jobs
}

// relayOutboxes publishes pending events of both contexts.
func (rt *runtime) relayOutboxes(ctx context.Context) error {
	if err := rt.airdrop.OutboxRelay.RunOnce(ctx); err != nil {
		return err
	}
	return rt.vesting.OutboxRelay.RunOnce(ctx)
}

func (rt *runtime) Close() error {
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if rt.kafka != nil {
		record(rt.kafka.Close())
	}
	if rt.bus != nil {
		record(rt.bus.Close())
	}
	if rt.redis != nil {
		record(rt.redis.Close())
	}
	if rt.postgres != nil {
		record(rt.postgres.Close())
	}
	return firstErr
}
