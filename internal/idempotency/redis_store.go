package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "idempotency:"

// Returns 1 when the marker was replaced, 0 when another token owns it.
var completeScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if current then
	local rec = cjson.decode(current)
	if rec.token ~= ARGV[1] then
		return 0
	end
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

var releaseScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if not current then
	return 0
end
local rec = cjson.decode(current)
if rec.token == ARGV[1] and rec.state == 'in_progress' then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisKeyStore keeps idempotency records in Redis so that every process of a
// deployment sees the same reservations. Expiry is left to Redis.
type RedisKeyStore struct {
	client *redis.Client
}

func NewRedisKeyStore(client *redis.Client) *RedisKeyStore {
	return &RedisKeyStore{client: client}
}

func (s *RedisKeyStore) Reserve(ctx context.Context, key string, rec Record, lease time.Duration) (bool, *Record, error) {
	rec.ExpiresAt = time.Now().Add(lease).UTC()
	data, err := json.Marshal(rec)
	if err != nil {
		return false, nil, err
	}

	// The existing record can expire between SETNX and GET; try again once.
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := s.client.SetNX(ctx, keyPrefix+key, data, lease).Result()
		if err != nil {
			return false, nil, fmt.Errorf("failed to reserve idempotency key: %w", err)
		}
		if ok {
			return true, nil, nil
		}

		raw, err := s.client.Get(ctx, keyPrefix+key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return false, nil, fmt.Errorf("failed to read idempotency key: %w", err)
		}

		var existing Record
		if err := json.Unmarshal(raw, &existing); err != nil {
			return false, nil, fmt.Errorf("corrupt idempotency record: %w", err)
		}
		return false, &existing, nil
	}
	return false, nil, fmt.Errorf("idempotency key %q changed during reservation", key)
}

func (s *RedisKeyStore) Complete(ctx context.Context, key, token string, rec Record, ttl time.Duration) error {
	rec.ExpiresAt = time.Now().Add(ttl).UTC()
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	res, err := completeScript.Run(ctx, s.client, []string{keyPrefix + key}, token, data, ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("failed to complete idempotency key: %w", err)
	}
	if res == 0 {
		return ErrLeaseLost
	}
	return nil
}

func (s *RedisKeyStore) Release(ctx context.Context, key, token string) error {
	if err := releaseScript.Run(ctx, s.client, []string{keyPrefix + key}, token).Err(); err != nil {
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}
	return nil
}
