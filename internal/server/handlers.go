package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/klabast/wb-services/calendar42/internal/events"
	"github.com/klabast/wb-services/calendar42/internal/lib/logger/sl"
	"github.com/klabast/wb-services/calendar42/internal/services/auth"
	"github.com/klabast/wb-services/calendar42/internal/services/catalog"
	"github.com/klabast/wb-services/calendar42/internal/services/subscriptions"
)

// ServeIndex serves the public calendar page
func (s *Server) ServeIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(s.opts.IndexHTML); err != nil {
		s.log.Error("failed to write index page", sl.Err(err))
	}
}

// ServeAdmin serves the admin page; everyone else is sent back to the
// public page
func (s *Server) ServeAdmin(w http.ResponseWriter, r *http.Request) {
	if !s.isAdmin(r) {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(s.opts.AdminHTML); err != nil {
		s.log.Error("failed to write admin page", sl.Err(err))
	}
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeStatus(s.log, w)
}

type option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// GetConfig returns the filter and sort choices for the UI
func (s *Server) GetConfig(w http.ResponseWriter, r *http.Request) {
	categories := []option{{Value: string(events.CategoryAll), Label: "All categories"}}
	for _, c := range events.Categories {
		categories = append(categories, option{Value: string(c), Label: events.CategoryLabels[c]})
	}

	sorts := make([]option, 0, len(events.SortOptions))
	for _, o := range events.SortOptions {
		sorts = append(sorts, option{Value: string(o), Label: events.SortLabels[o]})
	}

	sess, loggedIn := sessionFrom(r.Context())
	config := map[string]any{
		"categories":      categories,
		"sortOptions":     sorts,
		"defaultCategory": events.CategoryAll,
		"defaultSort":     events.DefaultSort,
		"loggedIn":        loggedIn,
		"email":           sess.Email,
		"isAdmin":         s.isAdmin(r),
	}
	writeJSON(s.log, w, http.StatusOK, config)
}

// view reads search, category and sort from the query string
func (s *Server) view(w http.ResponseWriter, r *http.Request) (events.State, bool) {
	q := r.URL.Query()
	state, err := s.catalog.View(
		q.Get("search"),
		events.Category(q.Get("category")),
		events.SortOption(q.Get("sort")),
	)
	if err != nil {
		if errors.Is(err, catalog.ErrInvalidView) {
			http.Error(w, clientMessage(err, catalog.ErrInvalidView), http.StatusBadRequest)
			return events.State{}, false
		}
		s.log.Error("failed to build view", sl.Err(err))
		http.Error(w, ErrInternalServer, http.StatusInternalServerError)
		return events.State{}, false
	}
	return state, true
}

// HandleEvents returns the filtered and sorted catalog
// Query params: search, category, sort (all optional)
func (s *Server) HandleEvents(w http.ResponseWriter, r *http.Request) {
	state, ok := s.view(w, r)
	if !ok {
		return
	}

	writeJSON(s.log, w, http.StatusOK, map[string]any{
		"events":     state.Visible,
		"total":      len(state.Visible),
		"searchTerm": state.SearchTerm,
		"category":   state.Category,
		"sort":       state.Sort,
	})
}

// eventResponse is a single event plus whether the caller follows it
type eventResponse struct {
	events.Event
	Subscribed bool `json:"subscribed"`
}

func (s *Server) HandleEvent(w http.ResponseWriter, r *http.Request) {
	event, err := s.catalog.Event(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeCatalogError(w, err)
		return
	}

	subscribed, err := s.subs.IsSubscribed(r.Context(), s.subscriber(w, r, false), event.ID)
	if err != nil {
		s.log.Error("failed to check subscription", sl.Err(err))
		http.Error(w, ErrInternalServer, http.StatusInternalServerError)
		return
	}

	writeJSON(s.log, w, http.StatusOK, eventResponse{Event: event, Subscribed: subscribed})
}

// HandleDownload exports the current view as ICS, CSV or JSON
func (s *Server) HandleDownload(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	switch format {
	case "ics", "csv", "json":
	default:
		http.Error(w, ErrInvalidFormat, http.StatusBadRequest)
		return
	}

	state, ok := s.view(w, r)
	if !ok {
		return
	}

	var err error
	switch format {
	case "ics":
		err = GenerateICS(w, r, state.Visible)
	case "csv":
		err = GenerateCSV(w, state.Visible)
	case "json":
		err = GenerateJSON(w, exportMeta{SearchTerm: state.SearchTerm, Category: state.Category, Sort: state.Sort}, state.Visible)
	}
	if err != nil {
		s.log.Error("failed to generate export", slog.String("format", format), sl.Err(err))
		http.Error(w, ErrInternalServer, http.StatusInternalServerError)
	}
}

func (s *Server) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var input catalog.Input
	if err := readJSON(w, r, &input); err != nil {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}

	event, err := s.catalog.Create(r.Context(), input)
	if err != nil {
		s.writeCatalogError(w, err)
		return
	}
	writeJSON(s.log, w, http.StatusCreated, event)
}

func (s *Server) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	var input catalog.Input
	if err := readJSON(w, r, &input); err != nil {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}

	event, err := s.catalog.Update(r.Context(), r.PathValue("id"), input)
	if err != nil {
		s.writeCatalogError(w, err)
		return
	}
	writeJSON(s.log, w, http.StatusOK, event)
}

func (s *Server) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeCatalogError(w, err)
		return
	}
	writeStatus(s.log, w)
}

// RefreshEvents reloads the snapshot from storage
func (s *Server) RefreshEvents(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.Refresh(r.Context()); err != nil {
		s.log.Error("failed to refresh catalog", sl.Err(err))
		http.Error(w, ErrInternalServer, http.StatusInternalServerError)
		return
	}
	writeJSON(s.log, w, http.StatusOK, map[string]any{
		"status": "ok",
		"events": len(s.catalog.Snapshot()),
	})
}

func (s *Server) writeCatalogError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrEventNotFound):
		http.Error(w, ErrEventNotFound, http.StatusNotFound)
	case errors.Is(err, catalog.ErrInvalidEvent):
		http.Error(w, clientMessage(err, catalog.ErrInvalidEvent), http.StatusBadRequest)
	default:
		s.log.Error("catalog operation failed", sl.Err(err))
		http.Error(w, ErrInternalServer, http.StatusInternalServerError)
	}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"isAdmin"`
}

func (s *Server) Signup(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := readJSON(w, r, &req); err != nil {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}

	user, err := s.auth.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidInput):
			http.Error(w, clientMessage(err, auth.ErrInvalidInput), http.StatusBadRequest)
		case errors.Is(err, auth.ErrUserExists):
			http.Error(w, ErrUserExists, http.StatusConflict)
		default:
			http.Error(w, ErrInternalServer, http.StatusInternalServerError)
		}
		return
	}

	writeJSON(s.log, w, http.StatusCreated, userResponse{ID: user.ID, Email: user.Email})
}

// Login sets the session cookie and also returns the token for API clients
func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := readJSON(w, r, &req); err != nil {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}

	token, user, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			if s.metrics != nil {
				s.metrics.failedLogins.Inc()
			}
			s.log.Warn("failed login attempt", slog.String("remote", r.RemoteAddr))
			http.Error(w, ErrInvalidCredentials, http.StatusUnauthorized)
			return
		}
		http.Error(w, ErrInternalServer, http.StatusInternalServerError)
		return
	}

	s.setSessionCookie(w, token)

	admin, err := s.auth.IsAdmin(r.Context(), user.ID)
	if err != nil {
		s.log.Error("failed to check admin role", sl.Err(err))
	}
	writeJSON(s.log, w, http.StatusOK, map[string]any{
		"token": token,
		"user":  userResponse{ID: user.ID, Email: user.Email, IsAdmin: admin},
	})
}

func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	s.clearSessionCookie(w)
	writeStatus(s.log, w)
}

func (s *Server) Me(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(r.Context())
	if !ok {
		http.Error(w, ErrUnauthorized, http.StatusUnauthorized)
		return
	}

	user, err := s.auth.User(r.Context(), sess.UserID)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			// token outlived its account
			s.clearSessionCookie(w)
			http.Error(w, ErrUnauthorized, http.StatusUnauthorized)
			return
		}
		http.Error(w, ErrInternalServer, http.StatusInternalServerError)
		return
	}

	writeJSON(s.log, w, http.StatusOK, userResponse{ID: user.ID, Email: user.Email, IsAdmin: s.isAdmin(r)})
}

// ListSubscriptions returns the caller's subscribed event ids and the id of
// their subscription feed
func (s *Server) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subscriber := s.subscriber(w, r, false)

	ids := []string{}
	if subscriber != "" {
		var err error
		ids, err = s.subs.List(r.Context(), subscriber)
		if err != nil {
			s.log.Error("failed to list subscriptions", sl.Err(err))
			http.Error(w, ErrInternalServer, http.StatusInternalServerError)
			return
		}
	}

	writeJSON(s.log, w, http.StatusOK, map[string]any{
		"subscriber": subscriber,
		"eventIds":   ids,
	})
}

func (s *Server) Subscribe(w http.ResponseWriter, r *http.Request) {
	subscriber := s.subscriber(w, r, true)

	if err := s.subs.Subscribe(r.Context(), subscriber, r.PathValue("id")); err != nil {
		if errors.Is(err, subscriptions.ErrEventNotFound) {
			http.Error(w, ErrEventNotFound, http.StatusNotFound)
			return
		}
		http.Error(w, ErrInternalServer, http.StatusInternalServerError)
		return
	}
	writeStatus(s.log, w)
}

func (s *Server) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	subscriber := s.subscriber(w, r, false)
	if subscriber == "" {
		writeStatus(s.log, w)
		return
	}

	if err := s.subs.Unsubscribe(r.Context(), subscriber, r.PathValue("id")); err != nil {
		http.Error(w, ErrInternalServer, http.StatusInternalServerError)
		return
	}
	writeStatus(s.log, w)
}

// HandleSubscribe serves a subscriber's events as an iCalendar feed
// URL: /api/subscribe/{subscriber}
func (s *Server) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	list, err := s.subs.Events(r.Context(), r.PathValue("subscriber"))
	if err != nil {
		s.log.Error("failed to load subscription feed", sl.Err(err))
		http.Error(w, ErrInternalServer, http.StatusInternalServerError)
		return
	}

	if err := GenerateSubscriptionICS(w, r, events.Sort(list, events.SortDateAsc)); err != nil {
		s.log.Error("failed to generate subscription feed", sl.Err(err))
		http.Error(w, ErrInternalServer, http.StatusInternalServerError)
	}
}
