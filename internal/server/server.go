package server

import (
	"context"
	"io/fs"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/klabast/wb-services/calendar42/internal/domain/models"
	"github.com/klabast/wb-services/calendar42/internal/events"
	"github.com/klabast/wb-services/calendar42/internal/lib/jwt"
	"github.com/klabast/wb-services/calendar42/internal/services/catalog"
)

type Catalog interface {
	View(search string, category events.Category, sort events.SortOption) (events.State, error)
	Event(ctx context.Context, id string) (events.Event, error)
	Create(ctx context.Context, input catalog.Input) (events.Event, error)
	Update(ctx context.Context, id string, input catalog.Input) (events.Event, error)
	Delete(ctx context.Context, id string) error
	Refresh(ctx context.Context) error
	Snapshot() []events.Event
}

type Auth interface {
	Register(ctx context.Context, email, pass string) (models.User, error)
	Login(ctx context.Context, email, pass string) (string, models.User, error)
	ParseToken(token string) (jwt.Claims, error)
	User(ctx context.Context, userID string) (models.User, error)
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

type Subscriptions interface {
	Subscribe(ctx context.Context, subscriber, eventID string) error
	Unsubscribe(ctx context.Context, subscriber, eventID string) error
	List(ctx context.Context, subscriber string) ([]string, error)
	Events(ctx context.Context, subscriber string) ([]events.Event, error)
	IsSubscribed(ctx context.Context, subscriber, eventID string) (bool, error)
}

type Options struct {
	CookieName   string
	SecureCookie bool
	TokenTTL     time.Duration

	IndexHTML []byte
	AdminHTML []byte
	// Static is served under /static/; nil disables it
	Static fs.FS
}

type Server struct {
	log     *slog.Logger
	catalog Catalog
	auth    Auth
	subs    Subscriptions
	metrics *Metrics
	opts    Options
}

func New(log *slog.Logger, catalog Catalog, auth Auth, subs Subscriptions, metrics *Metrics, opts Options) *Server {
	if opts.CookieName == "" {
		opts.CookieName = "calendar42_session"
	}
	if opts.TokenTTL == 0 {
		opts.TokenTTL = 24 * time.Hour
	}
	return &Server{
		log:     log,
		catalog: catalog,
		auth:    auth,
		subs:    subs,
		metrics: metrics,
		opts:    opts,
	}
}

// Handler builds the routing table wrapped in metrics and panic recovery
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	handle := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, s.withSession(h))
	}

	// Pages
	handle("GET /{$}", s.ServeIndex)
	handle("GET /admin", s.ServeAdmin)
	if s.opts.Static != nil {
		mux.Handle("GET /static/", http.FileServer(http.FS(s.opts.Static)))
	}
	mux.HandleFunc("GET /healthz", s.HandleHealth)

	// Catalog
	handle("GET /api/config", s.GetConfig)
	handle("GET /api/events", s.HandleEvents)
	handle("GET /api/events/{id}", s.HandleEvent)
	handle("GET /api/download", s.HandleDownload)

	// Admin
	handle("POST /api/events", s.RequireAdmin(s.CreateEvent))
	handle("PUT /api/events/{id}", s.RequireAdmin(s.UpdateEvent))
	handle("DELETE /api/events/{id}", s.RequireAdmin(s.DeleteEvent))
	handle("POST /api/events/refresh", s.RequireAdmin(s.RefreshEvents))

	// Accounts
	handle("POST /api/auth/signup", s.Signup)
	handle("POST /api/auth/login", s.Login)
	handle("POST /api/auth/logout", s.Logout)
	handle("GET /api/auth/me", s.Me)

	// Subscriptions
	handle("GET /api/subscriptions", s.ListSubscriptions)
	handle("PUT /api/subscriptions/{id}", s.Subscribe)
	handle("DELETE /api/subscriptions/{id}", s.Unsubscribe)
	handle("GET /api/subscribe/{subscriber}", s.HandleSubscribe)

	var h http.Handler = s.recoverer(mux)
	if s.metrics != nil {
		h = s.metrics.Middleware(h)
	}
	return h
}

// recoverer turns handler panics into 500 responses
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				if p == http.ErrAbortHandler {
					panic(p)
				}
				if s.metrics != nil {
					s.metrics.panics.Inc()
				}
				s.log.Error("recovered from panic",
					slog.Any("panic", p),
					slog.String("path", r.URL.Path),
					slog.String("stack", string(debug.Stack())),
				)
				http.Error(w, ErrInternalServer, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
