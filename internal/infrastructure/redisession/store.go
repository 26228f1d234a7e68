package redisession

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/benilbaisil/car/internal/domain/cart"
)

// Store keeps per-session state in redis: the cart snapshot, a read-once
// flash message, and a marker for the order currently awaiting payment.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

func New(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{client: client, ttl: ttl}
}

func (s *Store) Get(ctx context.Context, sessionID string) (*cart.Snapshot, error) {
	data, err := s.client.Get(ctx, cartKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return cart.New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get cart failed: %w", err)
	}

	snapshot := cart.New()
	if err := json.Unmarshal(data, snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return snapshot, nil
}

func (s *Store) Save(ctx context.Context, sessionID string, snapshot *cart.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}
	if err := s.client.Set(ctx, cartKey(sessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set cart failed: %w", err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, cartKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis delete cart failed: %w", err)
	}
	return nil
}

// SetFlash stores a message shown once on the next page load.
func (s *Store) SetFlash(ctx context.Context, sessionID, message string) error {
	if err := s.client.Set(ctx, flashKey(sessionID), message, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set flash failed: %w", err)
	}
	return nil
}

// TakeFlash returns the stored message and deletes it. An empty string means
// no flash was pending.
func (s *Store) TakeFlash(ctx context.Context, sessionID string) (string, error) {
	message, err := s.client.GetDel(ctx, flashKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis take flash failed: %w", err)
	}
	return message, nil
}

// SetPendingOrder marks the order the session is currently paying for.
func (s *Store) SetPendingOrder(ctx context.Context, sessionID string, orderID int64) error {
	if err := s.client.Set(ctx, pendingKey(sessionID), orderID, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set pending order failed: %w", err)
	}
	return nil
}

// PendingOrder returns 0 when no order is awaiting payment for the session.
func (s *Store) PendingOrder(ctx context.Context, sessionID string) (int64, error) {
	id, err := s.client.Get(ctx, pendingKey(sessionID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get pending order failed: %w", err)
	}
	return id, nil
}

func (s *Store) ClearPendingOrder(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, pendingKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis delete pending order failed: %w", err)
	}
	return nil
}

func cartKey(sessionID string) string    { return fmt.Sprintf("cart:%s", sessionID) }
func flashKey(sessionID string) string   { return fmt.Sprintf("flash:%s", sessionID) }
func pendingKey(sessionID string) string { return fmt.Sprintf("pending_order:%s", sessionID) }
