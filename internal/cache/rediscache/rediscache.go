package rediscache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const lastSummaryKey = "trackrecon:run:last"

// Store keeps reconciler state that outlives a single process: the last run summary.
type Store struct {
	c          *redis.Client
	summaryTTL time.Duration
}

func NewClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func New(c *redis.Client, summaryTTL time.Duration) *Store {
	if summaryTTL <= 0 {
		summaryTTL = 7 * 24 * time.Hour
	}
	return &Store{c: c, summaryTTL: summaryTTL}
}

func (s *Store) Ping(ctx context.Context) error {
	return errors.Wrap(s.c.Ping(ctx).Err(), "redis ping")
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.c.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "redis get")
	}
	return val, true, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.c.Set(ctx, key, value, ttl).Err(); err != nil {
		return errors.Wrap(err, "redis set")
	}
	return nil
}

func (s *Store) SaveSummary(ctx context.Context, value []byte) error {
	return s.Set(ctx, lastSummaryKey, value, s.summaryTTL)
}

// LastSummary returns the JSON summary of the last finished run across all reconciler processes.
func (s *Store) LastSummary(ctx context.Context) ([]byte, bool, error) {
	return s.Get(ctx, lastSummaryKey)
}
