// Copyright 2026 The PublicBridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package history provides the Redis-backed long-term conversation store.
// Turns are stored as JSON entries on a per-user list, so append order is
// preserved and retrieval is a bounded range read.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/Bouric0076/publicbridge-core/internal/session"
)

// Config describes the Redis connection and key layout.
type Config struct {
	Address   string
	Password  string
	DB        int
	KeyPrefix string
	// TTL bounds how long an idle user's history is retained. Zero keeps
	// it forever.
	TTL time.Duration
}

// Store is the Redis session.HistoryStore implementation.
type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ session.HistoryStore = (*Store)(nil)

// New connects to Redis and verifies the connection.
func New(cfg Config) (*Store, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("history: redis address is required")
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "history:"
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("history: redis connection failed: %w", err)
	}

	log.WithField("address", cfg.Address).Info("connected to redis history store")
	return &Store{client: client, prefix: cfg.KeyPrefix, ttl: cfg.TTL}, nil
}

// NewFromClient wraps an existing client, used by tests.
func NewFromClient(client *redis.Client, prefix string, ttl time.Duration) *Store {
	if prefix == "" {
		prefix = "history:"
	}
	return &Store{client: client, prefix: prefix, ttl: ttl}
}

func (s *Store) key(userID string) string { return s.prefix + userID }

// Append pushes turns onto the end of the user's history list.
func (s *Store) Append(ctx context.Context, userID string, turns []session.Turn) error {
	if len(turns) == 0 {
		return nil
	}
	payloads := make([]interface{}, 0, len(turns))
	for _, t := range turns {
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("history: marshal turn %s: %w", t.ID, err)
		}
		payloads = append(payloads, data)
	}

	key := s.key(userID)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, payloads...)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("history: append for %s: %w", userID, err)
	}
	return nil
}

// Recent returns up to limit of the most recent turns, oldest first.
func (s *Store) Recent(ctx context.Context, userID string, limit int) ([]session.Turn, error) {
	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}
	raw, err := s.client.LRange(ctx, s.key(userID), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("history: range for %s: %w", userID, err)
	}

	out := make([]session.Turn, 0, len(raw))
	for _, item := range raw {
		var t session.Turn
		if err := json.Unmarshal([]byte(item), &t); err != nil {
			log.WithError(err).WithField("user", userID).
				Warn("skipping undecodable history entry")
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// Count returns the stored turn count for the user.
func (s *Store) Count(ctx context.Context, userID string) (int, error) {
	n, err := s.client.LLen(ctx, s.key(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("history: count for %s: %w", userID, err)
	}
	return int(n), nil
}

// Ping verifies the connection is healthy.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}
