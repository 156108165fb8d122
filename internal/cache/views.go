// Package cache keeps computed availability ranges in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"sessionbook/backend/internal/domain"
	"sessionbook/backend/internal/service/availability"
)

const keyPrefix = "sessionbook:views:"

type kv interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
}

// Views caches availability ranges per provider. Each provider has a version
// counter that is part of every range key, so invalidating is a single INCR
// and stale ranges age out through their TTL.
type Views struct {
	client kv
	ttl    time.Duration
}

func NewViews(client *redis.Client, ttl time.Duration) *Views {
	return newViews(client, ttl)
}

func newViews(client kv, ttl time.Duration) *Views {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Views{client: client, ttl: ttl}
}

func versionKey(providerID uuid.UUID) string {
	return keyPrefix + providerID.String() + ":version"
}

func rangeKey(providerID uuid.UUID, version int64, from, to domain.Date) string {
	return fmt.Sprintf("%s%s:%d:%s:%s", keyPrefix, providerID, version, from, to)
}

func (v *Views) version(ctx context.Context, providerID uuid.UUID) (int64, error) {
	n, err := v.client.Get(ctx, versionKey(providerID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

func (v *Views) GetRange(ctx context.Context, providerID uuid.UUID, from, to domain.Date) ([]availability.DayView, bool, error) {
	ver, err := v.version(ctx, providerID)
	if err != nil {
		return nil, false, fmt.Errorf("read view version: %w", err)
	}
	data, err := v.client.Get(ctx, rangeKey(providerID, ver, from, to)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read range: %w", err)
	}
	var views []availability.DayView
	if err := json.Unmarshal(data, &views); err != nil {
		return nil, false, fmt.Errorf("decode range: %w", err)
	}
	return views, true, nil
}

func (v *Views) PutRange(ctx context.Context, providerID uuid.UUID, from, to domain.Date, views []availability.DayView) error {
	ver, err := v.version(ctx, providerID)
	if err != nil {
		return fmt.Errorf("read view version: %w", err)
	}
	data, err := json.Marshal(views)
	if err != nil {
		return err
	}
	return v.client.Set(ctx, rangeKey(providerID, ver, from, to), data, v.ttl).Err()
}

func (v *Views) Invalidate(ctx context.Context, providerID uuid.UUID) error {
	if err := v.client.Incr(ctx, versionKey(providerID)).Err(); err != nil {
		return fmt.Errorf("bump view version: %w", err)
	}
	return nil
}
