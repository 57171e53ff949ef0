package practice

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Store provides persistence for practice configurations.
type Store struct {
	redis *redis.Client
}

// NewStore creates a new practice config store.
func NewStore(redisClient *redis.Client) *Store {
	return &Store{redis: redisClient}
}

func (s *Store) key(practiceID string) string {
	return fmt.Sprintf("practice:config:%s", practiceID)
}

func (s *Store) numberKey(phone string) string {
	return fmt.Sprintf("practice:number:%s", phone)
}

// Get retrieves practice config, returning a default if not found.
func (s *Store) Get(ctx context.Context, practiceID string) (*Config, error) {
	data, err := s.redis.Get(ctx, s.key(practiceID)).Bytes()
	if err == redis.Nil {
		return DefaultConfig(practiceID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("practice: get config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("practice: unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Set saves practice config and indexes its inbound number.
func (s *Store) Set(ctx context.Context, cfg *Config) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("practice: marshal config: %w", err)
	}

	if err := s.redis.Set(ctx, s.key(cfg.PracticeID), data, 0).Err(); err != nil {
		return fmt.Errorf("practice: set config: %w", err)
	}

	if phone := NormalizeE164(cfg.Phone); phone != "" {
		if err := s.redis.Set(ctx, s.numberKey(phone), cfg.PracticeID, 0).Err(); err != nil {
			return fmt.Errorf("practice: index number: %w", err)
		}
	}

	return nil
}

// LookupByNumber resolves a practice id from the called phone number.
func (s *Store) LookupByNumber(ctx context.Context, phone string) (string, error) {
	phone = NormalizeE164(phone)
	practiceID, err := s.redis.Get(ctx, s.numberKey(phone)).Result()
	if err == redis.Nil {
		return "", fmt.Errorf("practice: no practice for number %s", phone)
	}
	if err != nil {
		return "", fmt.Errorf("practice: lookup number: %w", err)
	}
	return practiceID, nil
}
