package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/klabast/wb-services/calendar42/internal/lib/logger/sl"
)

// Error messages
const (
	ErrInternalServer     = "Internal server error"
	ErrInvalidJSON        = "Invalid JSON body"
	ErrInvalidFormat      = "Invalid format"
	ErrEventNotFound      = "Event not found"
	ErrUnauthorized       = "Unauthorized"
	ErrForbidden          = "Forbidden"
	ErrInvalidCredentials = "Invalid email or password"
	ErrUserExists         = "User already exists"
)

const maxBodyBytes = 1 << 20

// writeJSON encodes v with the given status code
func writeJSON(log *slog.Logger, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to encode response", sl.Err(err))
	}
}

// readJSON decodes the request body into v, rejecting unknown fields and
// oversized bodies
func readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}

func writeStatus(log *slog.Logger, w http.ResponseWriter) {
	writeJSON(log, w, http.StatusOK, map[string]string{"status": "ok"})
}

// clientMessage strips the operation prefixes from err so that only the
// sentinel and its details reach the client
func clientMessage(err, sentinel error) string {
	msg := err.Error()
	if i := strings.Index(msg, sentinel.Error()); i >= 0 {
		return msg[i:]
	}
	return sentinel.Error()
}
