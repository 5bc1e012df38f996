package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix  = "concierge:quiz:user:"
	redisMaxRetries = 3
)

// RedisStore keeps one JSON document per user. Save runs in a WATCH/MULTI
// transaction so the awarded flag cannot be lost to a concurrent writer.
type RedisStore struct {
	client *redis.Client
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(client *redis.Client) *RedisStore {
	if client == nil {
		panic("quiz: redis client cannot be nil")
	}
	return &RedisStore{client: client}
}

func redisKey(userID int64) string {
	return redisKeyPrefix + strconv.FormatInt(userID, 10)
}

func (r *RedisStore) Load(ctx context.Context, userID int64) (State, error) {
	ctx, span := tracer.Start(ctx, "quiz.redis.load")
	defer span.End()

	s, err := getState(ctx, r.client, userID)
	if err != nil {
		span.RecordError(err)
	}
	return s, err
}

func (r *RedisStore) Save(ctx context.Context, s State) error {
	ctx, span := tracer.Start(ctx, "quiz.redis.save")
	defer span.End()

	key := redisKey(s.UserID)
	txf := func(tx *redis.Tx) error {
		prev, err := getState(ctx, tx, s.UserID)
		if err != nil {
			return err
		}
		data, err := json.Marshal(sticky(prev, s))
		if err != nil {
			return fmt.Errorf("quiz: marshal state: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < redisMaxRetries; attempt++ {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("quiz: save state: %w", err)
		}
		return nil
	}
	return fmt.Errorf("quiz: save state: %w", redis.TxFailedErr)
}

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func getState(ctx context.Context, c stringGetter, userID int64) (State, error) {
	raw, err := c.Get(ctx, redisKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return State{UserID: userID}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("quiz: load state: %w", err)
	}
	var s State
	if err := json.Unmarshal(raw, &s); err != nil {
		return State{}, fmt.Errorf("quiz: decode state: %w", err)
	}
	s.UserID = userID
	return s, nil
}
