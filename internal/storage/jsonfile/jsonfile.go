// Package jsonfile keeps the whole catalog (events, users, roles and
// subscriptions) in a single JSON document on disk. Every mutation is written
// to a temporary file first and then renamed over the main file; the previous
// version is kept as a backup.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/klabast/wb-services/calendar42/internal/domain/models"
	"github.com/klabast/wb-services/calendar42/internal/events"
	"github.com/klabast/wb-services/calendar42/internal/lib/logger/sl"
	"github.com/klabast/wb-services/calendar42/internal/storage"
)

const (
	BackupSuffix    = ".backup"
	TmpSuffix       = ".tmp.json"
	FilePermissions = 0644

	MetadataUpdatedAt = "updated_at"
)

type document struct {
	Events        []events.Event      `json:"events"`
	Users         []models.User       `json:"users"`
	Roles         map[string]string   `json:"roles"`
	Subscriptions map[string][]string `json:"subscriptions"`
	Metadata      map[string]string   `json:"metadata"`
}

func newDocument() document {
	return document{
		Events:        []events.Event{},
		Users:         []models.User{},
		Roles:         make(map[string]string),
		Subscriptions: make(map[string][]string),
		Metadata:      make(map[string]string),
	}
}

func (d document) clone() document {
	c := document{
		Events:        slices.Clone(d.Events),
		Users:         slices.Clone(d.Users),
		Roles:         make(map[string]string, len(d.Roles)),
		Subscriptions: make(map[string][]string, len(d.Subscriptions)),
		Metadata:      make(map[string]string, len(d.Metadata)),
	}
	for k, v := range d.Roles {
		c.Roles[k] = v
	}
	for k, v := range d.Subscriptions {
		c.Subscriptions[k] = slices.Clone(v)
	}
	for k, v := range d.Metadata {
		c.Metadata[k] = v
	}
	return c
}

// Storage is safe for concurrent use.
type Storage struct {
	log  *slog.Logger
	path string

	mu  sync.RWMutex
	doc document
}

// New opens the document at path. A missing file starts an empty catalog;
// an empty path keeps everything in memory.
func New(log *slog.Logger, path string) (*Storage, error) {
	const op = "storage.jsonfile.New"

	s := &Storage{log: log, path: path, doc: newDocument()}
	if path == "" {
		return s, nil
	}

	doc, err := s.loadWithTmpCheck()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.doc = doc

	return s, nil
}

// loadWithTmpCheck prefers a leftover tmp file (a write that never got
// renamed) when it holds a valid document.
func (s *Storage) loadWithTmpCheck() (document, error) {
	tmpFile := s.path + TmpSuffix
	if _, err := os.Stat(tmpFile); err == nil {
		doc, err := loadFromFile(tmpFile)
		if err == nil {
			s.log.Warn("found temporary catalog file, loading unsaved changes", slog.String("file", tmpFile))
			return doc, nil
		}
		s.log.Warn("ignoring unreadable temporary catalog file", slog.String("file", tmpFile), sl.Err(err))
	}

	doc, err := loadFromFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.log.Info("no catalog file found, starting empty", slog.String("file", s.path))
		return newDocument(), nil
	}
	return doc, err
}

func loadFromFile(filename string) (document, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return document{}, err
	}

	doc := newDocument()
	if err := json.Unmarshal(data, &doc); err != nil {
		return document{}, err
	}
	// null in the file leaves nil maps behind
	if doc.Roles == nil {
		doc.Roles = make(map[string]string)
	}
	if doc.Subscriptions == nil {
		doc.Subscriptions = make(map[string][]string)
	}
	if doc.Metadata == nil {
		doc.Metadata = make(map[string]string)
	}
	return doc, nil
}

// persist writes doc to disk (caller must hold the write lock)
func (s *Storage) persist(doc document) error {
	if s.path == "" {
		return nil
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	// Write to temp file first
	tmpFile := s.path + TmpSuffix
	if err := os.WriteFile(tmpFile, data, FilePermissions); err != nil {
		return err
	}

	// Keep the previous version
	if _, err := os.Stat(s.path); err == nil {
		if err := os.Rename(s.path, s.path+BackupSuffix); err != nil {
			s.log.Warn("failed to create backup", sl.Err(err))
		}
	}

	return os.Rename(tmpFile, s.path)
}

// update applies fn to a copy of the document and only swaps it in once the
// copy has been written successfully.
func (s *Storage) update(fn func(doc *document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.doc.clone()
	if err := fn(&next); err != nil {
		return err
	}
	next.Metadata[MetadataUpdatedAt] = events.FormatTimestamp(time.Now())

	if err := s.persist(next); err != nil {
		return err
	}
	s.doc = next
	return nil
}

// Close is a no-op; every mutation is already on disk.
func (s *Storage) Close() error {
	return nil
}

// Events returns all stored events in insertion order
func (s *Storage) Events(ctx context.Context) ([]events.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.doc.Events), nil
}

// Event returns the event with the given id
func (s *Storage) Event(ctx context.Context, id string) (events.Event, error) {
	const op = "storage.jsonfile.Event"

	s.mu.RLock()
	defer s.mu.RUnlock()

	i := indexOfEvent(s.doc.Events, id)
	if i < 0 {
		return events.Event{}, fmt.Errorf("%s: %w", op, storage.ErrEventNotFound)
	}
	return s.doc.Events[i], nil
}

// SaveEvent stores a new event
func (s *Storage) SaveEvent(ctx context.Context, event events.Event) error {
	const op = "storage.jsonfile.SaveEvent"

	err := s.update(func(doc *document) error {
		if indexOfEvent(doc.Events, event.ID) >= 0 {
			return storage.ErrEventExists
		}
		doc.Events = append(doc.Events, event)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// UpdateEvent replaces the stored event with the same id
func (s *Storage) UpdateEvent(ctx context.Context, event events.Event) error {
	const op = "storage.jsonfile.UpdateEvent"

	err := s.update(func(doc *document) error {
		i := indexOfEvent(doc.Events, event.ID)
		if i < 0 {
			return storage.ErrEventNotFound
		}
		doc.Events[i] = event
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// DeleteEvent removes the event with the given id
func (s *Storage) DeleteEvent(ctx context.Context, id string) error {
	const op = "storage.jsonfile.DeleteEvent"

	err := s.update(func(doc *document) error {
		i := indexOfEvent(doc.Events, id)
		if i < 0 {
			return storage.ErrEventNotFound
		}
		doc.Events = slices.Delete(doc.Events, i, i+1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func indexOfEvent(list []events.Event, id string) int {
	return slices.IndexFunc(list, func(e events.Event) bool { return e.ID == id })
}

// SaveUser stores a new user; emails are unique case-insensitively
func (s *Storage) SaveUser(ctx context.Context, user models.User) (models.User, error) {
	const op = "storage.jsonfile.SaveUser"

	err := s.update(func(doc *document) error {
		for _, u := range doc.Users {
			if u.ID == user.ID || strings.EqualFold(u.Email, user.Email) {
				return storage.ErrUserExists
			}
		}
		doc.Users = append(doc.Users, user)
		return nil
	})
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

// User looks a user up by email
func (s *Storage) User(ctx context.Context, email string) (models.User, error) {
	const op = "storage.jsonfile.User"

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.doc.Users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return models.User{}, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
}

// UserByID looks a user up by id
func (s *Storage) UserByID(ctx context.Context, id string) (models.User, error) {
	const op = "storage.jsonfile.UserByID"

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.doc.Users {
		if u.ID == id {
			return u, nil
		}
	}
	return models.User{}, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
}

// SetRole assigns role to an existing user
func (s *Storage) SetRole(ctx context.Context, userID, role string) error {
	const op = "storage.jsonfile.SetRole"

	err := s.update(func(doc *document) error {
		if !slices.ContainsFunc(doc.Users, func(u models.User) bool { return u.ID == userID }) {
			return storage.ErrUserNotFound
		}
		doc.Roles[userID] = role
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Role returns the user's role, or "" when none has been assigned
func (s *Storage) Role(ctx context.Context, userID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Roles[userID], nil
}

// Subscribe adds eventID to the subscriber's list; repeated calls are no-ops
func (s *Storage) Subscribe(ctx context.Context, subscriber, eventID string) error {
	const op = "storage.jsonfile.Subscribe"

	s.mu.RLock()
	already := slices.Contains(s.doc.Subscriptions[subscriber], eventID)
	s.mu.RUnlock()
	if already {
		return nil
	}

	err := s.update(func(doc *document) error {
		if !slices.Contains(doc.Subscriptions[subscriber], eventID) {
			doc.Subscriptions[subscriber] = append(doc.Subscriptions[subscriber], eventID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Unsubscribe removes eventID from the subscriber's list
func (s *Storage) Unsubscribe(ctx context.Context, subscriber, eventID string) error {
	const op = "storage.jsonfile.Unsubscribe"

	err := s.update(func(doc *document) error {
		list := slices.DeleteFunc(doc.Subscriptions[subscriber], func(id string) bool { return id == eventID })
		if len(list) == 0 {
			delete(doc.Subscriptions, subscriber)
		} else {
			doc.Subscriptions[subscriber] = list
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Subscriptions returns the subscriber's event ids in subscription order
func (s *Storage) Subscriptions(ctx context.Context, subscriber string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := slices.Clone(s.doc.Subscriptions[subscriber])
	if list == nil {
		list = []string{}
	}
	return list, nil
}

// IsSubscribed reports whether the subscriber follows eventID
func (s *Storage) IsSubscribed(ctx context.Context, subscriber, eventID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Contains(s.doc.Subscriptions[subscriber], eventID), nil
}
