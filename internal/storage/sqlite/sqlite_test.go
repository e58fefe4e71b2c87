package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klabast/wb-services/calendar42/internal/domain/models"
	"github.com/klabast/wb-services/calendar42/internal/events"
	"github.com/klabast/wb-services/calendar42/internal/storage"
	"github.com/klabast/wb-services/calendar42/internal/storage/migrations"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	path := filepath.Join(t.TempDir(), "calendar.db")
	require.NoError(t, migrations.Up(storage.DriverSQLite, path))

	s, err := New(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func fakeEvent() events.Event {
	return events.Event{
		ID:          uuid.NewString(),
		Title:       gofakeit.LetterN(12),
		Description: gofakeit.LetterN(40),
		Date:        "2025-05-01T10:00:00Z",
		Location:    gofakeit.City(),
		Category:    events.CategoryWorkshop,
		CreatedAt:   events.FormatTimestamp(time.Now()),
	}
}

func TestEvents_CRUD(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	e := fakeEvent()
	require.NoError(t, s.SaveEvent(ctx, e))
	assert.ErrorIs(t, s.SaveEvent(ctx, e), storage.ErrEventExists)

	got, err := s.Event(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, e, got)

	e.Title = "Renamed"
	e.Category = events.CategoryConference
	require.NoError(t, s.UpdateEvent(ctx, e))
	got, err = s.Event(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, e, got)

	require.NoError(t, s.DeleteEvent(ctx, e.ID))
	_, err = s.Event(ctx, e.ID)
	assert.ErrorIs(t, err, storage.ErrEventNotFound)
	assert.ErrorIs(t, s.DeleteEvent(ctx, e.ID), storage.ErrEventNotFound)
	assert.ErrorIs(t, s.UpdateEvent(ctx, e), storage.ErrEventNotFound)
}

func TestEvents_KeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	list, err := s.Events(ctx)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	var want []string
	for i := 0; i < 4; i++ {
		e := fakeEvent()
		want = append(want, e.ID)
		require.NoError(t, s.SaveEvent(ctx, e))
	}

	list, err = s.Events(ctx)
	require.NoError(t, err)
	got := make([]string, len(list))
	for i, e := range list {
		got[i] = e.ID
	}
	assert.Equal(t, want, got)
}

func TestUsersAndRoles(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	user := models.User{
		ID:        uuid.NewString(),
		Email:     "Admin@Example.com",
		PassHash:  "hash",
		CreatedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	_, err := s.SaveUser(ctx, user)
	require.NoError(t, err)

	_, err = s.SaveUser(ctx, models.User{ID: uuid.NewString(), Email: "admin@example.com", PassHash: "x"})
	assert.ErrorIs(t, err, storage.ErrUserExists)

	got, err := s.User(ctx, "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.True(t, user.CreatedAt.Equal(got.CreatedAt))

	got, err = s.UserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, got.Email)

	_, err = s.User(ctx, gofakeit.Email())
	assert.ErrorIs(t, err, storage.ErrUserNotFound)

	role, err := s.Role(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, role)

	require.NoError(t, s.SetRole(ctx, user.ID, models.RoleUser))
	require.NoError(t, s.SetRole(ctx, user.ID, models.RoleAdmin))
	role, err = s.Role(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, role)

	assert.ErrorIs(t, s.SetRole(ctx, uuid.NewString(), models.RoleAdmin), storage.ErrUserNotFound)
}

func TestSubscriptions(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	require.NoError(t, s.Subscribe(ctx, "alice", "e2"))
	require.NoError(t, s.Subscribe(ctx, "alice", "e1"))
	require.NoError(t, s.Subscribe(ctx, "alice", "e2"))
	require.NoError(t, s.Subscribe(ctx, "bob", "e1"))

	ids, err := s.Subscriptions(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"e2", "e1"}, ids)

	ok, err := s.IsSubscribed(ctx, "bob", "e1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.IsSubscribed(ctx, "bob", "e2")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Unsubscribe(ctx, "alice", "e2"))
	require.NoError(t, s.Unsubscribe(ctx, "alice", "e2"))
	ids, err = s.Subscriptions(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"e1"}, ids)

	ids, err = s.Subscriptions(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, ids)
	assert.Empty(t, ids)
}
