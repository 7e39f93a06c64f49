// Package expiry maintains a Redis-backed deadline index for reservations.
//
// Orders are added with their expiry deadline as the sorted-set score, so a
// sweeper can ask "which orders are overdue as of now" with a single range
// query instead of scanning the orders table. The index only schedules work;
// the database status transition decides whether an order actually expires.
package expiry

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKey is the sorted set holding order deadlines.
const DefaultKey = "liveshop:order_deadlines"

// RedisIndex tracks order expiry deadlines in a Redis sorted set.
type RedisIndex struct {
	client RedisClient
	key    string
}

// RedisClient is the minimal client surface used by RedisIndex.
type RedisClient interface {
	ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd
	ZRangeByScore(ctx context.Context, key string, opt *redis.ZRangeBy) *redis.StringSliceCmd
	ZRem(ctx context.Context, key string, members ...any) *redis.IntCmd
}

// NewRedisIndex constructs a deadline index over the given client.
func NewRedisIndex(client RedisClient, key string) *RedisIndex {
	if key == "" {
		key = DefaultKey
	}
	return &RedisIndex{client: client, key: key}
}

// Add records the deadline after which the order may be expired.
func (r *RedisIndex) Add(ctx context.Context, orderID string, deadline time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.client.ZAdd(ctx, r.key, redis.Z{
		Score:  float64(deadline.UnixMilli()),
		Member: orderID,
	}).Err()
}

// Due returns up to limit order IDs whose deadline is at or before now,
// oldest first. A limit of zero or less means no cap.
func (r *RedisIndex) Due(ctx context.Context, now time.Time, limit int64) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opt := &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}
	if limit > 0 {
		opt.Count = limit
	}
	return r.client.ZRangeByScore(ctx, r.key, opt).Result()
}

// Remove drops orders from the index once they reach a terminal status.
func (r *RedisIndex) Remove(ctx context.Context, orderIDs ...string) error {
	if len(orderIDs) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	members := make([]any, len(orderIDs))
	for i, id := range orderIDs {
		members[i] = id
	}
	return r.client.ZRem(ctx, r.key, members...).Err()
}
