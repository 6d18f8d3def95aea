// Package redisstore provides a Redis-backed record store.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JakeFAU/catalog-range-crawler/internal/crawler"
)

// DefaultPrefix namespaces keys when Config.Prefix is empty.
const DefaultPrefix = "rangecrawler"

// Config controls the Redis connection and key layout.
type Config struct {
	Addr   string
	Prefix string
}

// client is the subset of *redis.Client the store uses.
type client interface {
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	SAdd(ctx context.Context, key string, members ...any) *redis.IntCmd
	Close() error
}

// RecordStore keeps the id set at <prefix>:ids and each record as JSON at
// <prefix>:record:<id>. The record is written before its id joins the set, so a
// known id always has a record.
type RecordStore struct {
	client client
	prefix string
}

var _ crawler.Store = (*RecordStore)(nil)

// New connects to Redis at cfg.Addr.
func New(cfg Config) (*RecordStore, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, errors.New("store.redis.addr is required")
	}
	return newWithClient(redis.NewClient(&redis.Options{Addr: cfg.Addr}), cfg.Prefix), nil
}

func newWithClient(c client, prefix string) *RecordStore {
	prefix = strings.TrimSuffix(prefix, ":")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &RecordStore{client: c, prefix: prefix}
}

// Close closes the Redis client.
func (s *RecordStore) Close() error {
	return s.client.Close()
}

func (s *RecordStore) idsKey() string {
	return s.prefix + ":ids"
}

func (s *RecordStore) recordKey(id int64) string {
	return s.prefix + ":record:" + strconv.FormatInt(id, 10)
}

// KnownIDs returns the members of the id set.
func (s *RecordStore) KnownIDs(ctx context.Context) ([]int64, error) {
	members, err := s.client.SMembers(ctx, s.idsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("read id set: %w", err)
	}
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse id %q: %w", m, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Append stores rec unless a record for its id already exists.
func (s *RecordStore) Append(ctx context.Context, rec crawler.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record %d: %w", rec.ID, err)
	}
	if err := s.client.SetNX(ctx, s.recordKey(rec.ID), payload, 0).Err(); err != nil {
		return fmt.Errorf("write record %d: %w", rec.ID, err)
	}
	if err := s.client.SAdd(ctx, s.idsKey(), strconv.FormatInt(rec.ID, 10)).Err(); err != nil {
		return fmt.Errorf("add id %d: %w", rec.ID, err)
	}
	return nil
}
