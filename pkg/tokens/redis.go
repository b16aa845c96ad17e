package tokens

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// retention keeps an expired record around for a day so Status can still report it as expired.
const retention = 24 * time.Hour

type RedisBackend struct {
	client *redis.Client
}

// NewRedisBackend connects to the Redis instance at url (redis://host:port/db).
func NewRedisBackend(ctx context.Context, url string) (*RedisBackend, error) {
	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(options)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = client.Ping(pingCtx).Err()
	if err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisBackend{client: client}, nil
}

func NewRedisBackendWithClient(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

func (r *RedisBackend) Load(ctx context.Context, userID, workflowID string) (*Record, error) {
	data, err := r.client.Get(ctx, recordKey(userID, workflowID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrTokenNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}

	var record Record

	err = json.Unmarshal(data, &record)
	if err != nil {
		return nil, fmt.Errorf("unmarshal token: %w", err)
	}

	return &record, nil
}

func (r *RedisBackend) Store(ctx context.Context, record *Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}

	var ttl time.Duration
	if record.ExpiresAt != nil {
		ttl = max(time.Until(*record.ExpiresAt)+retention, time.Second)
	}

	err = r.client.Set(ctx, recordKey(record.UserID, record.WorkflowID), data, ttl).Err()
	if err != nil {
		return fmt.Errorf("set token: %w", err)
	}

	return nil
}

func (r *RedisBackend) Remove(ctx context.Context, userID, workflowID string) error {
	deleted, err := r.client.Del(ctx, recordKey(userID, workflowID)).Result()
	if err != nil {
		return fmt.Errorf("delete token: %w", err)
	}

	if deleted == 0 {
		return ErrTokenNotFound
	}

	return nil
}

func (r *RedisBackend) Close() error {
	return r.client.Close()
}
