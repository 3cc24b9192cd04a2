package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JonMunkholm/tabimport/internal/core"
)

// DefaultAuditKey is the Redis list holding the audit log.
const DefaultAuditKey = "tabimport:audit"

// maxPurgeRetries bounds optimistic-lock retries in PurgeBefore.
const maxPurgeRetries = 5

// RedisAudit keeps the audit log in a Redis list, newest entry at the head.
type RedisAudit struct {
	rdb *redis.Client
	key string
	max int
}

// NewRedisAudit creates a Redis audit store. An empty key uses
// DefaultAuditKey.
func NewRedisAudit(rdb *redis.Client, key string, max int) *RedisAudit {
	if key == "" {
		key = DefaultAuditKey
	}
	if max <= 0 {
		max = DefaultAuditEntries
	}
	return &RedisAudit{rdb: rdb, key: key, max: max}
}

var _ core.AuditStore = (*RedisAudit)(nil)

func (s *RedisAudit) Append(ctx context.Context, e core.AuditLog) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, s.key, data)
		pipe.LTrim(ctx, s.key, 0, int64(s.max-1))
		return nil
	})
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

func (s *RedisAudit) List(ctx context.Context, limit int) ([]core.AuditLog, error) {
	if limit <= 0 || limit > s.max {
		limit = s.max
	}
	raw, err := s.rdb.LRange(ctx, s.key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return decodeAudit(raw)
}

// PurgeBefore rewrites the list without entries older than cutoff. The
// rewrite is retried when another client changes the list meanwhile.
func (s *RedisAudit) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var removed int64

	purge := func(tx *redis.Tx) error {
		raw, err := tx.LRange(ctx, s.key, 0, -1).Result()
		if err != nil {
			return err
		}
		entries, err := decodeAudit(raw)
		if err != nil {
			return err
		}

		keep := make([]any, 0, len(raw))
		for i, e := range entries {
			if !e.Timestamp.Before(cutoff) {
				keep = append(keep, raw[i])
			}
		}
		removed = int64(len(raw) - len(keep))
		if removed == 0 {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, s.key)
			if len(keep) > 0 {
				pipe.RPush(ctx, s.key, keep...)
			}
			return nil
		})
		return err
	}

	for i := 0; i < maxPurgeRetries; i++ {
		err := s.rdb.Watch(ctx, purge, s.key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("purge audit entries: %w", err)
		}
		return removed, nil
	}
	return 0, fmt.Errorf("purge audit entries: %w", redis.TxFailedErr)
}

func decodeAudit(raw []string) ([]core.AuditLog, error) {
	entries := make([]core.AuditLog, 0, len(raw))
	for _, r := range raw {
		var e core.AuditLog
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			return nil, fmt.Errorf("decode audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
