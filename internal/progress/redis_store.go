package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisKeyPrefix = "progress:"

var _ Store = (*RedisStore)(nil)

// RedisStore хранит прогресс в Redis, чтобы его видели все реплики сервиса.
// Истечение записей выполняет сам Redis (SET ... EX).
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

func NewRedisStore(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{
		client: client,
		ttl:    ttl,
		now:    time.Now,
		logger: logger.Named("RedisProgressStore"),
	}
}

func redisKey(sessionID string) string {
	return redisKeyPrefix + sessionID
}

func (s *RedisStore) Set(ctx context.Context, sessionID string, percent int, status Status, message string) (Entry, error) {
	if err := validate(sessionID, status); err != nil {
		return Entry{}, err
	}
	entry := Entry{
		SessionID: sessionID,
		Percent:   ClampPercent(percent),
		Status:    status,
		Message:   message,
		Timestamp: s.now().UTC(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return Entry{}, fmt.Errorf("error marshaling progress entry: %w", err)
	}
	if err := s.client.Set(ctx, redisKey(sessionID), data, s.ttl).Err(); err != nil {
		s.logger.Error("Failed to store progress entry", zap.String("session_id", sessionID), zap.Error(err))
		return Entry{}, fmt.Errorf("error storing progress entry: %w", err)
	}
	return entry, nil
}

func (s *RedisStore) Get(ctx context.Context, sessionID string) (Entry, error) {
	data, err := s.client.Get(ctx, redisKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Entry{}, notFound(sessionID)
		}
		s.logger.Error("Failed to read progress entry", zap.String("session_id", sessionID), zap.Error(err))
		return Entry{}, fmt.Errorf("error reading progress entry: %w", err)
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		s.logger.Warn("Corrupted progress entry in redis", zap.String("session_id", sessionID), zap.Error(err))
		return Entry{}, fmt.Errorf("error decoding progress entry: %w", err)
	}
	return entry, nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	removed, err := s.client.Del(ctx, redisKey(sessionID)).Result()
	if err != nil {
		s.logger.Error("Failed to delete progress entry", zap.String("session_id", sessionID), zap.Error(err))
		return fmt.Errorf("error deleting progress entry: %w", err)
	}
	if removed == 0 {
		return notFound(sessionID)
	}
	return nil
}
