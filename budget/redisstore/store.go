// Package redisstore implements the budget ledger Store on Redis. The
// ledger is a single Hash so day and spend always update together.
//
// Usage:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	gate := budget.NewGate(50, budget.WithStore(redisstore.New(client)))
package redisstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/almlog/ai-dynamic-painting-sub000/budget"
)

// Compile-time interface check.
var _ budget.Store = (*Store)(nil)

const (
	ledgerKey  = "genclient:budget:ledger"
	fieldDay   = "day"
	fieldSpend = "spend"
)

// Store persists the daily spend total in a Redis hash.
type Store struct {
	client redis.Cmdable
}

// New creates a Redis-backed ledger store. The caller owns the Redis
// client lifecycle.
func New(client redis.Cmdable) *Store {
	return &Store{client: client}
}

// Load implements budget.Store.
func (s *Store) Load(ctx context.Context) (time.Time, float64, error) {
	fields, err := s.client.HGetAll(ctx, ledgerKey).Result()
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("redisstore: load ledger: %w", err)
	}
	if len(fields) == 0 {
		return time.Time{}, 0, budget.ErrNoRecord
	}

	day, err := time.Parse(time.RFC3339, fields[fieldDay])
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("redisstore: parse day %q: %w", fields[fieldDay], err)
	}
	spend, err := strconv.ParseFloat(fields[fieldSpend], 64)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("redisstore: parse spend %q: %w", fields[fieldSpend], err)
	}
	return day, spend, nil
}

// Save implements budget.Store.
func (s *Store) Save(ctx context.Context, day time.Time, spend float64) error {
	err := s.client.HSet(ctx, ledgerKey,
		fieldDay, day.UTC().Format(time.RFC3339),
		fieldSpend, strconv.FormatFloat(spend, 'f', -1, 64),
	).Err()
	if err != nil {
		return fmt.Errorf("redisstore: save ledger: %w", err)
	}
	return nil
}
