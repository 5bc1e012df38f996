package webchat

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	transcriptKeyPrefix = "concierge:webchat:transcript:"
	transcriptMaxLen    = 200
	transcriptTTL       = 7 * 24 * time.Hour
)

// Entry is one line of a web chat transcript.
type Entry struct {
	Role      string    `json:"role"` // "user", "bot" or "button"
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// TranscriptStore keeps recent chat history per chat id.
type TranscriptStore interface {
	Append(ctx context.Context, chatID int64, e Entry) error
	List(ctx context.Context, chatID int64, limit int64) ([]Entry, error)
}

// RedisTranscript stores each chat as a capped Redis list.
type RedisTranscript struct {
	client *redis.Client
}

func NewRedisTranscript(client *redis.Client) *RedisTranscript {
	if client == nil {
		panic("webchat: redis client cannot be nil")
	}
	return &RedisTranscript{client: client}
}

func transcriptKey(chatID int64) string {
	return transcriptKeyPrefix + strconv.FormatInt(chatID, 10)
}

func (s *RedisTranscript) Append(ctx context.Context, chatID int64, e Entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("webchat: marshal transcript entry: %w", err)
	}
	key := transcriptKey(chatID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, raw)
		pipe.LTrim(ctx, key, -transcriptMaxLen, -1)
		pipe.Expire(ctx, key, transcriptTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("webchat: append transcript: %w", err)
	}
	return nil
}

// List returns up to limit most recent entries, oldest first.
func (s *RedisTranscript) List(ctx context.Context, chatID int64, limit int64) ([]Entry, error) {
	if limit <= 0 {
		limit = transcriptMaxLen
	}
	raw, err := s.client.LRange(ctx, transcriptKey(chatID), -limit, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("webchat: list transcript: %w", err)
	}
	out := make([]Entry, 0, len(raw))
	for _, r := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
