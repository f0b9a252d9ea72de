// README: Smoothing state backed by Redis hashes with WATCH/MULTI compare-and-swap.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const smoothingKeyPrefix = "pricing:smoothing:%s"

type RedisStateStore struct {
	redis *redis.Client
}

func NewRedisStateStore(redis *redis.Client) *RedisStateStore {
	return &RedisStateStore{redis: redis}
}

func (s *RedisStateStore) LoadState(ctx context.Context, scope string) (SmoothingState, bool, error) {
	vals, err := s.redis.HGetAll(ctx, smoothingKey(scope)).Result()
	if err != nil {
		return SmoothingState{}, false, transient("redis load state", err)
	}
	if len(vals) == 0 {
		return SmoothingState{}, false, nil
	}
	st, err := decodeState(scope, vals)
	if err != nil {
		return SmoothingState{}, false, transient("redis decode state", err)
	}
	return st, true, nil
}

// CompareAndSwap watches the scope key; a concurrent writer either changes the
// version we compare against or aborts our EXEC, both reported as a conflict.
func (s *RedisStateStore) CompareAndSwap(ctx context.Context, expectedVersion int64, next SmoothingState) error {
	key := smoothingKey(next.Scope)
	err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, key, "version").Int64()
		if err == redis.Nil {
			current = 0
		} else if err != nil {
			return err
		}
		if current != expectedVersion {
			return ErrConcurrencyConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, map[string]interface{}{
				"multiplier": strconv.FormatFloat(next.Multiplier, 'g', -1, 64),
				"version":    expectedVersion + 1,
				"updated_at": next.UpdatedAt.UTC().Format(time.RFC3339Nano),
			})
			return nil
		})
		return err
	}, key)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrConcurrencyConflict), errors.Is(err, redis.TxFailedErr):
		return ErrConcurrencyConflict
	default:
		return transient("redis compare-and-swap", err)
	}
}

func decodeState(scope string, vals map[string]string) (SmoothingState, error) {
	st := SmoothingState{Scope: scope}
	var err error
	if st.Multiplier, err = strconv.ParseFloat(vals["multiplier"], 64); err != nil {
		return st, fmt.Errorf("multiplier: %w", err)
	}
	if st.Version, err = strconv.ParseInt(vals["version"], 10, 64); err != nil {
		return st, fmt.Errorf("version: %w", err)
	}
	if st.UpdatedAt, err = time.Parse(time.RFC3339Nano, vals["updated_at"]); err != nil {
		return st, fmt.Errorf("updated_at: %w", err)
	}
	return st, nil
}

func smoothingKey(scope string) string {
	return fmt.Sprintf(smoothingKeyPrefix, scope)
}
