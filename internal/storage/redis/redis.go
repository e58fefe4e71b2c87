// Package redis keeps subscription lists as Redis sets so that several
// instances of the server share them.
package redis

import (
	"context"
	"fmt"
	"slices"

	"github.com/redis/go-redis/v9"
)

type Storage struct {
	client *redis.Client
}

func New(addr, password string, db int) *Storage {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &Storage{client: client}
}

// Ping checks that the server is reachable
func (s *Storage) Ping(ctx context.Context) error {
	const op = "storage.redis.Ping"

	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func subscriptionsKey(subscriber string) string {
	return fmt.Sprintf("subscriptions:%s", subscriber)
}

func (s *Storage) Subscribe(ctx context.Context, subscriber, eventID string) error {
	const op = "storage.redis.Subscribe"

	if err := s.client.SAdd(ctx, subscriptionsKey(subscriber), eventID).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Storage) Unsubscribe(ctx context.Context, subscriber, eventID string) error {
	const op = "storage.redis.Unsubscribe"

	if err := s.client.SRem(ctx, subscriptionsKey(subscriber), eventID).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Subscriptions returns the subscriber's event ids, sorted
func (s *Storage) Subscriptions(ctx context.Context, subscriber string) ([]string, error) {
	const op = "storage.redis.Subscriptions"

	ids, err := s.client.SMembers(ctx, subscriptionsKey(subscriber)).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if ids == nil {
		ids = []string{}
	}
	slices.Sort(ids)

	return ids, nil
}

func (s *Storage) IsSubscribed(ctx context.Context, subscriber, eventID string) (bool, error) {
	const op = "storage.redis.IsSubscribed"

	ok, err := s.client.SIsMember(ctx, subscriptionsKey(subscriber), eventID).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return ok, nil
}

func (s *Storage) Close() error {
	const op = "storage.redis.Close"

	if err := s.client.Close(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
