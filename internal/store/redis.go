package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Lion17-ca/Billetterie-JO-Paris-2024/internal/models"
	"github.com/redis/go-redis/v9"
)

// RedisStore is a read-through cache for ticket records on the scan hot path.
// Postgres stays authoritative; every entry here is invalidated the moment the
// ticket's status changes.
type RedisStore struct {
	Client *redis.Client
}

func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{Client: client}
}

func (s *RedisStore) Close() error {
	if s.Client != nil {
		return s.Client.Close()
	}
	return nil
}

func ticketCacheKey(ticketID string) string {
	return fmt.Sprintf("ticket:%s", ticketID)
}

func (s *RedisStore) CacheTicket(ctx context.Context, ticket *models.Ticket, ttl time.Duration) error {
	ticketJSON, err := json.Marshal(ticket)
	if err != nil {
		return fmt.Errorf("failed to marshal ticket: %w", err)
	}

	if err := s.Client.Set(ctx, ticketCacheKey(ticket.ID), ticketJSON, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache ticket in redis: %w", err)
	}
	return nil
}

// GetCachedTicket returns (nil, nil) on a cache miss.
func (s *RedisStore) GetCachedTicket(ctx context.Context, ticketID string) (*models.Ticket, error) {
	val, err := s.Client.Get(ctx, ticketCacheKey(ticketID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get ticket from redis: %w", err)
	}

	var ticket models.Ticket
	if err := json.Unmarshal([]byte(val), &ticket); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached ticket: %w", err)
	}
	return &ticket, nil
}

func (s *RedisStore) InvalidateTicket(ctx context.Context, ticketID string) error {
	if err := s.Client.Del(ctx, ticketCacheKey(ticketID)).Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("failed to invalidate cached ticket: %w", err)
	}
	return nil
}
