// Package subscriptions keeps the per-subscriber list of followed events.
// A subscriber is a user id or an anonymous visitor id.
package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/klabast/wb-services/calendar42/internal/events"
	"github.com/klabast/wb-services/calendar42/internal/lib/logger/sl"
)

var (
	ErrEventNotFound = errors.New("event not found")
	ErrNoSubscriber  = errors.New("subscriber is required")
)

type Storage interface {
	Subscribe(ctx context.Context, subscriber, eventID string) error
	Unsubscribe(ctx context.Context, subscriber, eventID string) error
	Subscriptions(ctx context.Context, subscriber string) ([]string, error)
	IsSubscribed(ctx context.Context, subscriber, eventID string) (bool, error)
}

// EventLookup resolves ids against the current catalog snapshot
type EventLookup interface {
	Lookup(id string) (events.Event, bool)
}

type Subscriptions struct {
	log     *slog.Logger
	storage Storage
	catalog EventLookup
}

func New(log *slog.Logger, storage Storage, catalog EventLookup) *Subscriptions {
	return &Subscriptions{log: log, storage: storage, catalog: catalog}
}

func (s *Subscriptions) Subscribe(ctx context.Context, subscriber, eventID string) error {
	const op = "subscriptions.Subscribe"

	if subscriber == "" {
		return fmt.Errorf("%s: %w", op, ErrNoSubscriber)
	}
	if _, ok := s.catalog.Lookup(eventID); !ok {
		return fmt.Errorf("%s: %w", op, ErrEventNotFound)
	}

	if err := s.storage.Subscribe(ctx, subscriber, eventID); err != nil {
		s.log.Error("failed to subscribe", slog.String("op", op), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Unsubscribe succeeds for ids that were never subscribed
func (s *Subscriptions) Unsubscribe(ctx context.Context, subscriber, eventID string) error {
	const op = "subscriptions.Unsubscribe"

	if subscriber == "" {
		return fmt.Errorf("%s: %w", op, ErrNoSubscriber)
	}

	if err := s.storage.Unsubscribe(ctx, subscriber, eventID); err != nil {
		s.log.Error("failed to unsubscribe", slog.String("op", op), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// List returns the subscribed ids that still exist in the catalog
func (s *Subscriptions) List(ctx context.Context, subscriber string) ([]string, error) {
	const op = "subscriptions.List"

	list, err := s.Events(ctx, subscriber)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ids := make([]string, len(list))
	for i, e := range list {
		ids[i] = e.ID
	}
	return ids, nil
}

// Events resolves the subscriber's list against the catalog. Ids of deleted
// events are skipped.
func (s *Subscriptions) Events(ctx context.Context, subscriber string) ([]events.Event, error) {
	const op = "subscriptions.Events"

	if subscriber == "" {
		return []events.Event{}, nil
	}

	ids, err := s.storage.Subscriptions(ctx, subscriber)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	list := make([]events.Event, 0, len(ids))
	for _, id := range ids {
		if e, ok := s.catalog.Lookup(id); ok {
			list = append(list, e)
		}
	}
	return list, nil
}

func (s *Subscriptions) IsSubscribed(ctx context.Context, subscriber, eventID string) (bool, error) {
	const op = "subscriptions.IsSubscribed"

	if subscriber == "" {
		return false, nil
	}

	ok, err := s.storage.IsSubscribed(ctx, subscriber, eventID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return ok, nil
}
