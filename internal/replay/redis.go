package replay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"switchyard/internal/constants"
)

// RedisCheckpoints keeps each config's checkpoints in a list trimmed to the ring size.
type RedisCheckpoints struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCheckpoints(client *redis.Client, ttl time.Duration) *RedisCheckpoints {
	return &RedisCheckpoints{client: client, ttl: ttl}
}

func checkpointKey(configID string) string {
	return constants.CacheKeyPrefixCheckpoint + configID
}

func (s *RedisCheckpoints) Save(ctx context.Context, configID string, cp Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	key := checkpointKey(configID)
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, constants.CheckpointRingSize-1)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store checkpoint: %w", err)
	}
	return nil
}

func (s *RedisCheckpoints) Latest(ctx context.Context, configID string) (*Checkpoint, error) {
	data, err := s.client.LIndex(ctx, checkpointKey(configID), 0).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	return &cp, nil
}

func (s *RedisCheckpoints) List(ctx context.Context, configID string) ([]Checkpoint, error) {
	raw, err := s.client.LRange(ctx, checkpointKey(configID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}

	out := make([]Checkpoint, 0, len(raw))
	for _, item := range raw {
		var cp Checkpoint
		if err := json.Unmarshal([]byte(item), &cp); err != nil {
			return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
		}
		out = append(out, cp)
	}
	return out, nil
}

// RedisSessions stores session snapshots as JSON strings.
type RedisSessions struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSessions(client *redis.Client, ttl time.Duration) *RedisSessions {
	return &RedisSessions{client: client, ttl: ttl}
}

func (s *RedisSessions) Save(ctx context.Context, session Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.client.Set(ctx, constants.CacheKeyPrefixSession+session.ID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

func (s *RedisSessions) Load(ctx context.Context, id string) (*Session, error) {
	data, err := s.client.Get(ctx, constants.CacheKeyPrefixSession+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &session, nil
}
