package dialog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// StateStore persists conversation state between tool invocations.
type StateStore interface {
	// Load returns the state for a call id. An unknown call id yields a
	// fresh default state, never an error.
	Load(ctx context.Context, callID string) (*ConversationState, error)
	// Save persists the state. Last write wins; handlers compute their
	// next state purely from the snapshot they loaded.
	Save(ctx context.Context, state *ConversationState) error
}

const stateKeyPrefix = "call:state:"

// RedisStateStore keeps conversation state in Redis with a TTL. Calls are
// short-lived; retention beyond the TTL is an external concern.
type RedisStateStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStateStore creates a Redis-backed state store.
func NewRedisStateStore(rdb *redis.Client, ttl time.Duration) *RedisStateStore {
	if ttl <= 0 {
		ttl = 4 * time.Hour
	}
	return &RedisStateStore{rdb: rdb, ttl: ttl}
}

func stateKey(callID string) string {
	return stateKeyPrefix + callID
}

// Load retrieves conversation state, defaulting on a miss.
func (s *RedisStateStore) Load(ctx context.Context, callID string) (*ConversationState, error) {
	data, err := s.rdb.Get(ctx, stateKey(callID)).Bytes()
	if err == redis.Nil {
		return DefaultState(callID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("dialog: load state: %w", err)
	}

	var state ConversationState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("dialog: unmarshal state: %w", err)
	}
	return &state, nil
}

// Save persists conversation state.
func (s *RedisStateStore) Save(ctx context.Context, state *ConversationState) error {
	if state == nil || state.CallID == "" {
		return fmt.Errorf("dialog: state requires a call id")
	}
	now := time.Now().UTC()
	if state.CreatedAt.IsZero() {
		state.CreatedAt = now
	}
	state.UpdatedAt = now

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("dialog: marshal state: %w", err)
	}
	if err := s.rdb.Set(ctx, stateKey(state.CallID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("dialog: save state: %w", err)
	}
	return nil
}
