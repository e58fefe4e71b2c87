package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/klabast/wb-services/calendar42/internal/lib/logger/sl"
)

const VisitorCookieName = "calendar42_visitor"

// visitor ids live for a year
const visitorCookieTTL = 365 * 24 * time.Hour

type session struct {
	UserID string
	Email  string
}

type sessionKey struct{}

func sessionFrom(ctx context.Context) (session, bool) {
	s, ok := ctx.Value(sessionKey{}).(session)
	return s, ok
}

// bearerToken returns the session token from the Authorization header or,
// failing that, the session cookie
func (s *Server) bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(s.opts.CookieName); err == nil {
		return c.Value
	}
	return ""
}

// withSession attaches the caller's session to the request context. Missing
// or invalid tokens leave the request anonymous.
func (s *Server) withSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := s.bearerToken(r)
		if token == "" {
			next(w, r)
			return
		}

		claims, err := s.auth.ParseToken(token)
		if err != nil {
			next(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), sessionKey{}, session{UserID: claims.UserID, Email: claims.Email})
		next(w, r.WithContext(ctx))
	}
}

func (s *Server) isAdmin(r *http.Request) bool {
	sess, ok := sessionFrom(r.Context())
	if !ok {
		return false
	}

	admin, err := s.auth.IsAdmin(r.Context(), sess.UserID)
	if err != nil {
		s.log.Error("failed to check admin role", slog.String("uid", sess.UserID), sl.Err(err))
		return false
	}
	return admin
}

// RequireAdmin is a middleware that rejects anonymous callers with 401 and
// logged-in non-admins with 403
func (s *Server) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := sessionFrom(r.Context()); !ok {
			w.Header().Set("WWW-Authenticate", `Bearer realm="calendar42"`)
			http.Error(w, ErrUnauthorized, http.StatusUnauthorized)
			return
		}
		if !s.isAdmin(r) {
			s.log.Warn("non-admin access attempt", slog.String("path", r.URL.Path), slog.String("remote", r.RemoteAddr))
			http.Error(w, ErrForbidden, http.StatusForbidden)
			return
		}
		next(w, r)
	}
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.opts.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.opts.TokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.opts.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.opts.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.opts.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// subscriber identifies whose subscription list a request works on: the
// logged-in user, or the anonymous visitor cookie. With create set, a new
// visitor id is issued when none exists.
func (s *Server) subscriber(w http.ResponseWriter, r *http.Request, create bool) string {
	if sess, ok := sessionFrom(r.Context()); ok {
		return sess.UserID
	}

	if c, err := r.Cookie(VisitorCookieName); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			return c.Value
		}
	}
	if !create {
		return ""
	}

	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     VisitorCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(visitorCookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.opts.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}
