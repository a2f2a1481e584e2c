// Package conversation persists conversation turns in Redis, one list per thread.
package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"fds-analytics/internal/common/config"
	apperrors "fds-analytics/internal/common/errors"
	"fds-analytics/internal/common/logger"
	"fds-analytics/internal/models"
)

const (
	defaultKeyPrefix = "analytics:thread"
	defaultMaxTurns  = 50
)

// Store reads and appends turns. Turns are JSON entries in a Redis list,
// oldest first, capped at maxTurns and expiring ttl after the last write.
type Store struct {
	rdb      redis.Cmdable
	prefix   string
	maxTurns int
	ttl      time.Duration
	now      func() time.Time
	logger   logger.Logger
}

func NewStore(rdb redis.Cmdable, cfg config.ConversationConfig, log logger.Logger) *Store {
	prefix := strings.TrimSuffix(cfg.KeyPrefix, ":")
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	maxTurns := cfg.MaxTurns
	if maxTurns < 2 {
		maxTurns = defaultMaxTurns
	}
	return &Store{
		rdb:      rdb,
		prefix:   prefix,
		maxTurns: maxTurns,
		ttl:      time.Duration(cfg.TTLHours) * time.Hour,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   log.WithFields(map[string]interface{}{"component": "conversation-store"}),
	}
}

// Key returns the list key for a thread.
func (s *Store) Key(threadID string) string {
	return fmt.Sprintf("%s:%s:turns", s.prefix, threadID)
}

// GetHistory returns the stored turns oldest first. A missing thread is an
// empty history. Entries that fail to decode are skipped.
func (s *Store) GetHistory(ctx context.Context, threadID string) ([]models.Turn, error) {
	raw, err := s.rdb.LRange(ctx, s.Key(threadID), 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, apperrors.NewConversationStoreError("get_history", err)
	}

	turns := make([]models.Turn, 0, len(raw))
	for i, entry := range raw {
		var t models.Turn
		if err := json.Unmarshal([]byte(entry), &t); err != nil {
			s.logger.Warn("skipping malformed conversation entry", map[string]interface{}{
				"threadId": threadID,
				"index":    i,
				"error":    err.Error(),
			})
			continue
		}
		if t.Role != models.RoleUser && t.Role != models.RoleModel {
			continue
		}
		turns = append(turns, t)
	}
	return turns, nil
}

// Append adds turns in order, trims the list to the newest maxTurns entries
// and refreshes the TTL in one transaction.
func (s *Store) Append(ctx context.Context, threadID string, turns ...models.Turn) error {
	if len(turns) == 0 {
		return nil
	}

	values := make([]interface{}, 0, len(turns))
	for _, t := range turns {
		if t.Timestamp.IsZero() {
			t.Timestamp = s.now()
		}
		data, err := json.Marshal(t)
		if err != nil {
			return apperrors.NewConversationStoreError("encode", err)
		}
		values = append(values, string(data))
	}

	key := s.Key(threadID)
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, values...)
		pipe.LTrim(ctx, key, int64(-s.maxTurns), -1)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return apperrors.NewConversationStoreError("append", err)
	}

	s.logger.Debug("conversation turns appended", map[string]interface{}{
		"threadId": threadID,
		"count":    len(turns),
	})
	return nil
}
