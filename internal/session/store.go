package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// TTL bounds how long an abandoned conversation survives before the flow
// resets.
const TTL = 10 * time.Minute

const sessionKeyPattern = "session:%d"

// ErrNotFound indicates the operator has no conversation in flight.
var ErrNotFound = errors.New("session not found")

// Store defines the persistence contract for command conversations.
type Store interface {
	Get(ctx context.Context, userID int64) (*Session, error)
	Set(ctx context.Context, session *Session) error
	Clear(ctx context.Context, userID int64) error
}

// RedisStore persists sessions in Redis; the TTL makes abandonment cleanup
// automatic.
type RedisStore struct {
	client *redis.Client
	log    *slog.Logger
}

// NewRedisStore initializes a Redis-backed session store.
func NewRedisStore(client *redis.Client, log *slog.Logger) Store {
	if log == nil {
		log = slog.Default()
	}

	return &RedisStore{
		client: client,
		log:    log,
	}
}

// Get returns the stored session or ErrNotFound when absent or expired.
func (s *RedisStore) Get(ctx context.Context, userID int64) (*Session, error) {
	data, err := s.client.Get(ctx, sessionKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}

		s.log.Error("failed to get session from redis", slog.Int64("user_id", userID), slog.Any("error", err))
		return nil, err
	}

	var session Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		s.log.Error("failed to decode session", slog.Int64("user_id", userID), slog.Any("error", err))
		return nil, err
	}

	return &session, nil
}

// Set saves the session, refreshing the abandonment TTL.
func (s *RedisStore) Set(ctx context.Context, session *Session) error {
	session.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(session)
	if err != nil {
		s.log.Error("failed to encode session", slog.Int64("user_id", session.UserID), slog.Any("error", err))
		return err
	}

	if err := s.client.Set(ctx, sessionKey(session.UserID), data, TTL).Err(); err != nil {
		s.log.Error("failed to save session in redis", slog.Int64("user_id", session.UserID), slog.Any("error", err))
		return err
	}

	return nil
}

// Clear removes the stored session for the given operator.
func (s *RedisStore) Clear(ctx context.Context, userID int64) error {
	if err := s.client.Del(ctx, sessionKey(userID)).Err(); err != nil {
		s.log.Error("failed to clear session", slog.Int64("user_id", userID), slog.Any("error", err))
		return err
	}

	return nil
}

func sessionKey(userID int64) string {
	return fmt.Sprintf(sessionKeyPattern, userID)
}
