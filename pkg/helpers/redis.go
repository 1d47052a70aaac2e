package helpers

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrSessionNotFound is returned when no session hash exists for a user.
var ErrSessionNotFound = errors.New("session not found")

// NewRedisClient initializes a redis client
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// SessionKey is the redis hash holding the active session of a user.
func SessionKey(userID string) string {
	return "user:session:" + userID
}

// SaveSession overwrites the session hash for a user and refreshes its TTL.
func SaveSession(ctx context.Context, rdb *redis.Client, userID string, fields map[string]any, ttl time.Duration) error {
	key := SessionKey(userID)
	pipe := rdb.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// LoadSession returns the session hash of a user.
func LoadSession(ctx context.Context, rdb *redis.Client, userID string) (map[string]string, error) {
	data, err := rdb.HGetAll(ctx, SessionKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrSessionNotFound
	}
	return data, nil
}

// DeleteSession drops the session of a user; missing sessions are not an error.
func DeleteSession(ctx context.Context, rdb *redis.Client, userID string) error {
	return rdb.Del(ctx, SessionKey(userID)).Err()
}
