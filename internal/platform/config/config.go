package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName    string
	HTTPPort       string
	PostgresDSN    string
	RedisURL       string
	KafkaBrokers   []string
	AdminJWTSecret string

	ClaimTopic         string
	VestingTopic       string
	OutboxPollInterval time.Duration
	IdempotencyTTL     time.Duration

	VestingAutoReleaseSchedule string
	SettlementRetrySchedule    string

	EnableAutoRelease     bool
	EnableSettlementRetry bool
	UseInMemory           bool

	// LedgerSeed funds accounts at startup, e.g. "treasury=1000000,ops=50".
	LedgerDenom string
	LedgerSeed  map[string]uint64
}

// Load reads an optional .env file, an optional config file named by
// CONFIG_FILE, then the process environment. Environment values win.
func Load() (Config, error) {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("SERVICE_NAME", "dropvest")
	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("CLAIM_TOPIC", "airdrop.claims")
	v.SetDefault("VESTING_TOPIC", "vesting.events")
	v.SetDefault("OUTBOX_POLL_INTERVAL", "2s")
	v.SetDefault("IDEMPOTENCY_TTL", "168h")
	v.SetDefault("VESTING_AUTO_RELEASE_SCHEDULE", "@every 1m")
	v.SetDefault("SETTLEMENT_RETRY_SCHEDULE", "@every 30s")
	v.SetDefault("ENABLE_AUTO_RELEASE", true)
	v.SetDefault("ENABLE_SETTLEMENT_RETRY", true)
	v.SetDefault("USE_IN_MEMORY", false)
	v.SetDefault("LEDGER_DENOM", "DROP")
	v.SetDefault("LEDGER_SEED", "")

	if file := strings.TrimSpace(v.GetString("CONFIG_FILE")); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config file %s: %w", file, err)
			}
		}
	}

	pollInterval, err := parseDuration(v, "OUTBOX_POLL_INTERVAL")
	if err != nil {
		return Config{}, err
	}
	idempotencyTTL, err := parseDuration(v, "IDEMPOTENCY_TTL")
	if err != nil {
		return Config{}, err
	}

	var brokers []string
	for _, value := range strings.Split(v.GetString("KAFKA_BROKERS"), ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			brokers = append(brokers, value)
		}
	}

	seed, err := parseSeed(v.GetString("LEDGER_SEED"))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		ServiceName:    v.GetString("SERVICE_NAME"),
		HTTPPort:       v.GetString("HTTP_PORT"),
		PostgresDSN:    v.GetString("POSTGRES_DSN"),
		RedisURL:       v.GetString("REDIS_URL"),
		KafkaBrokers:   brokers,
		AdminJWTSecret: v.GetString("ADMIN_JWT_SECRET"),

		ClaimTopic:         v.GetString("CLAIM_TOPIC"),
		VestingTopic:       v.GetString("VESTING_TOPIC"),
		OutboxPollInterval: pollInterval,
		IdempotencyTTL:     idempotencyTTL,

		VestingAutoReleaseSchedule: v.GetString("VESTING_AUTO_RELEASE_SCHEDULE"),
		SettlementRetrySchedule:    v.GetString("SETTLEMENT_RETRY_SCHEDULE"),

		EnableAutoRelease:     v.GetBool("ENABLE_AUTO_RELEASE"),
		EnableSettlementRetry: v.GetBool("ENABLE_SETTLEMENT_RETRY"),
		UseInMemory:           v.GetBool("USE_IN_MEMORY"),

		LedgerDenom: v.GetString("LEDGER_DENOM"),
		LedgerSeed:  seed,
	}
	if cfg.PostgresDSN == "" {
		cfg.UseInMemory = true
	}
	return cfg, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("invalid %s %q", key, raw)
	}
	return value, nil
}

func parseSeed(raw string) (map[string]uint64, error) {
	seed := make(map[string]uint64)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		account, amount, ok := strings.Cut(entry, "=")
		account = strings.TrimSpace(account)
		if !ok || account == "" {
			return nil, fmt.Errorf("invalid LEDGER_SEED entry %q", entry)
		}
		value, err := strconv.ParseUint(strings.TrimSpace(amount), 10, 64)
		if err != nil || value == 0 {
			return nil, fmt.Errorf("invalid LEDGER_SEED amount for %s", account)
		}
		seed[account] = value
	}
	return seed, nil
}
