package cache

import (
	"context"
	"errors"
	"time"

	domainerrors "dropvest/contexts/token-distribution/airdrop-service/domain/errors"
	"dropvest/contexts/token-distribution/airdrop-service/ports"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

const idempotencyPrefix = "airdrop:idempotency:"

// RedisIdempotencyStore keeps claim idempotency records in Redis with the
// record's expiry as key TTL.
type RedisIdempotencyStore struct {
	client redis.UniversalClient
}

func NewRedisIdempotencyStore(client redis.UniversalClient) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client}
}

type idempotencyEntry struct {
	RequestHash string `msgpack:"h"`
	ClaimID     string `msgpack:"c"`
	ExpiresAt   int64  `msgpack:"e"`
}

func (s *RedisIdempotencyStore) Get(ctx context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	raw, err := s.client.Get(ctx, idempotencyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ports.IdempotencyRecord{}, false, nil
		}
		return ports.IdempotencyRecord{}, false, err
	}
	var entry idempotencyEntry
	if err := msgpack.Unmarshal(raw, &entry); err != nil {
		return ports.IdempotencyRecord{}, false, err
	}
	record := entry.toPort(key)
	if !record.ExpiresAt.IsZero() && now.After(record.ExpiresAt) {
		return ports.IdempotencyRecord{}, false, nil
	}
	return record, true, nil
}

func (s *RedisIdempotencyStore) Put(ctx context.Context, record ports.IdempotencyRecord) error {
	raw, err := msgpack.Marshal(idempotencyEntry{
		RequestHash: record.RequestHash,
		ClaimID:     record.ClaimID,
		ExpiresAt:   record.ExpiresAt.UTC().UnixMilli(),
	})
	if err != nil {
		return err
	}
	ttl := time.Until(record.ExpiresAt)
	if record.ExpiresAt.IsZero() {
		ttl = 0
	} else if ttl <= 0 {
		return nil
	}

	created, err := s.client.SetNX(ctx, idempotencyPrefix+record.Key, raw, ttl).Result()
	if err != nil {
		return err
	}
	if created {
		return nil
	}
	existing, found, err := s.Get(ctx, record.Key, time.Now().UTC())
	if err != nil {
		return err
	}
	if found && existing.RequestHash != record.RequestHash {
		return domainerrors.ErrIdempotencyKeyConflict
	}
	return nil
}

func (e idempotencyEntry) toPort(key string) ports.IdempotencyRecord {
	record := ports.IdempotencyRecord{
		Key:         key,
		RequestHash: e.RequestHash,
		ClaimID:     e.ClaimID,
	}
	if e.ExpiresAt > 0 {
		record.ExpiresAt = time.UnixMilli(e.ExpiresAt).UTC()
	}
	return record
}
