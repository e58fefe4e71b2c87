// Package app wires storage, services and the HTTP servers together.
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/klabast/wb-services/calendar42/internal/config"
	"github.com/klabast/wb-services/calendar42/internal/kafka"
	"github.com/klabast/wb-services/calendar42/internal/lib/logger/sl"
	"github.com/klabast/wb-services/calendar42/internal/server"
	"github.com/klabast/wb-services/calendar42/internal/services/auth"
	"github.com/klabast/wb-services/calendar42/internal/services/catalog"
	"github.com/klabast/wb-services/calendar42/internal/services/subscriptions"
	"github.com/klabast/wb-services/calendar42/internal/storage/redis"
)

// Assets are the embedded web pages
type Assets struct {
	IndexHTML []byte
	AdminHTML []byte
	Static    fs.FS
}

type App struct {
	log *slog.Logger
	cfg *config.Config

	storage  Storage
	redis    *redis.Storage
	producer *kafka.Producer

	catalog *catalog.Catalog
	auth    *auth.Auth

	httpServer    *http.Server
	metricsServer *http.Server

	refreshCtx  context.Context
	stopRefresh context.CancelFunc
}

// New opens storage, loads the catalog snapshot and prepares the servers.
// Nothing listens until Run is called.
func New(ctx context.Context, log *slog.Logger, cfg *config.Config, assets Assets) (*App, error) {
	const op = "app.New"

	st, err := OpenStorage(ctx, log, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	a := &App{log: log, cfg: cfg, storage: st}
	a.refreshCtx, a.stopRefresh = context.WithCancel(context.Background())

	var subsStorage subscriptions.Storage = st
	if cfg.Redis.Addr != "" {
		a.redis = redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err := a.redis.Ping(ctx); err != nil {
			_ = a.close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		log.Info("subscriptions stored in redis", slog.String("addr", cfg.Redis.Addr))
		subsStorage = a.redis
	}

	// a nil *kafka.Producer must not end up in the interface
	var publisher catalog.ChangePublisher
	if len(cfg.Kafka.Brokers) > 0 {
		a.producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		publisher = a.producer
		log.Info("publishing catalog changes", slog.String("topic", cfg.Kafka.Topic))
	}

	a.catalog = catalog.New(log, st, publisher)
	if err := a.catalog.Refresh(ctx); err != nil {
		_ = a.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	a.auth = auth.New(log, st, st, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	subs := subscriptions.New(log, subsStorage, a.catalog)

	var metrics *server.Metrics
	if cfg.Metrics.Port > 0 {
		metrics = server.NewMetrics()
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", metrics.Handler())
		a.metricsServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler: mux,
		}
	}

	srv := server.New(log, a.catalog, a.auth, subs, metrics, server.Options{
		CookieName:   cfg.Auth.CookieName,
		SecureCookie: cfg.Auth.SecureCookie,
		TokenTTL:     cfg.Auth.TokenTTL,
		IndexHTML:    assets.IndexHTML,
		AdminHTML:    assets.AdminHTML,
		Static:       assets.Static,
	})
	a.httpServer = &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return a, nil
}

// MustRun starts the servers and the periodic refresh; it panics if the
// HTTP server cannot start.
func (a *App) MustRun() {
	if err := a.Run(); err != nil {
		panic(err)
	}
}

// Run blocks until the HTTP server is shut down
func (a *App) Run() error {
	const op = "app.Run"
	log := a.log.With(slog.String("op", op))

	a.catalog.StartRefreshing(a.refreshCtx, a.cfg.Catalog.RefreshInterval)

	if a.metricsServer != nil {
		go func() {
			log.Info("exposing Prometheus metrics", slog.String("addr", a.metricsServer.Addr))
			if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server failed", sl.Err(err))
			}
		}()
	}

	log.Info("http server started", slog.String("addr", a.httpServer.Addr))
	if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Stop shuts the servers down gracefully and releases every backend
func (a *App) Stop(ctx context.Context) error {
	const op = "app.Stop"
	a.log.With(slog.String("op", op)).Info("stopping application")

	a.stopRefresh()

	var errs []error
	if err := a.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if a.metricsServer != nil {
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.close(); err != nil {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (a *App) close() error {
	a.stopRefresh()

	var errs []error
	if a.producer != nil {
		errs = append(errs, a.producer.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	errs = append(errs, a.storage.Close())
	return errors.Join(errs...)
}
