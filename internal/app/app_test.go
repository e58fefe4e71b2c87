package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klabast/wb-services/calendar42/internal/config"
	"github.com/klabast/wb-services/calendar42/internal/events"
	"github.com/klabast/wb-services/calendar42/internal/lib/logger/sl"
	"github.com/klabast/wb-services/calendar42/internal/services/catalog"
	"github.com/klabast/wb-services/calendar42/internal/storage"
)

func testConfig(t *testing.T, driver, file string) *config.Config {
	t.Helper()
	return &config.Config{
		Env:      sl.EnvLocal,
		LogLevel: "info",
		HTTP:     config.HTTPConfig{Host: "127.0.0.1", Port: 8080, ReadTimeout: time.Second, WriteTimeout: time.Second},
		Storage:  config.StorageConfig{Driver: driver, Path: filepath.Join(t.TempDir(), file)},
		Auth:     config.AuthConfig{JWTSecret: "secret", TokenTTL: time.Hour, CookieName: "calendar42_session"},
	}
}

func TestOpenStorage(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		driver string
		file   string
	}{
		{storage.DriverJSON, "calendar_data.json"},
		{storage.DriverSQLite, "calendar.db"},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			cfg := testConfig(t, tt.driver, tt.file)
			st, err := OpenStorage(ctx, sl.Discard(), cfg.Storage)
			require.NoError(t, err)
			defer st.Close()

			list, err := st.Events(ctx)
			require.NoError(t, err)
			assert.Empty(t, list)
		})
	}

	_, err := OpenStorage(ctx, sl.Discard(), config.StorageConfig{Driver: "mongo"})
	assert.ErrorIs(t, err, storage.ErrUnknownDriver)
}

func TestMigrate_JSONIsNoop(t *testing.T) {
	assert.NoError(t, Migrate(config.StorageConfig{Driver: storage.DriverJSON}, false))
	assert.NoError(t, Migrate(config.StorageConfig{Driver: storage.DriverJSON}, true))
}

func TestNew_ServesPersistedCatalog(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, storage.DriverSQLite, "calendar.db")

	first, err := New(ctx, sl.Discard(), cfg, Assets{})
	require.NoError(t, err)
	_, err = first.catalog.Create(ctx, catalog.Input{Title: "Go Meetup", Description: "Lightning talks", Date: "2025-03-10", Location: "Hamburg", Category: events.CategoryMeetup})
	require.NoError(t, err)
	require.NoError(t, first.Stop(ctx))

	// a second instance loads the snapshot from the same database
	second, err := New(ctx, sl.Discard(), cfg, Assets{})
	require.NoError(t, err)
	defer second.Stop(ctx)

	rec := httptest.NewRecorder()
	second.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Go Meetup")
}

func TestNew_MetricsServer(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, storage.DriverJSON, "calendar_data.json")
	cfg.Metrics.Port = 9090

	a, err := New(ctx, sl.Discard(), cfg, Assets{})
	require.NoError(t, err)
	defer a.Stop(ctx)

	require.NotNil(t, a.metricsServer)
	rec := httptest.NewRecorder()
	a.metricsServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "calendar42_failed_logins_total")
}
