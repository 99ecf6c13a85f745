// Package httpx holds the JSON response helpers, the caller identity
// middleware and the domain error to HTTP status mapping shared by every
// handler package.
package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/meditrade/trading-engine/internal/model"
)

// UserHeader carries the caller's user id. Authentication happens upstream.
const UserHeader = "X-User-ID"

type contextKey string

const userContextKey contextKey = "user"

// WriteJSON writes a JSON response with the given status code and data.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes an error response with a machine-readable code and a
// human-readable message.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, ErrorResponse{Error: code, Message: message})
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind model.Kind) int {
	switch kind {
	case model.KindValidation, model.KindInsufficientFunds, model.KindInsufficientHoldings:
		return http.StatusBadRequest
	case model.KindNotFound:
		return http.StatusNotFound
	case model.KindConflict:
		return http.StatusConflict
	case model.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// WriteDomainError classifies err and writes the matching response. Server
// side failures are logged and their details withheld from the client.
func WriteDomainError(w http.ResponseWriter, r *http.Request, err error) {
	kind := model.KindOf(err)
	status := StatusFor(kind)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"kind", string(kind),
			"err", err,
		)
		msg = "internal error"
		if kind == model.KindPersistence {
			msg = "storage unavailable, the operation was not confirmed"
		}
	}
	WriteError(w, status, string(kind), msg)
}

// DecodeJSON decodes the request body into v, rejecting unknown fields and
// trailing data. Failures are returned as *model.ValidationError.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return &model.ValidationError{Field: "body", Message: "request body is required"}
		}
		return &model.ValidationError{Field: "body", Message: fmt.Sprintf("invalid JSON: %v", err)}
	}
	if dec.More() {
		return &model.ValidationError{Field: "body", Message: "unexpected data after JSON object"}
	}
	return nil
}

// RequireUser rejects requests without a caller identity and stores it in
// the request context.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid := strings.TrimSpace(r.Header.Get(UserHeader))
		if uid == "" {
			WriteError(w, http.StatusUnauthorized, "unauthorized", "missing "+UserHeader+" header")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), uid)))
	})
}

// WithUser returns a context carrying the caller's user id.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userContextKey, userID)
}

// UserID returns the caller's user id, or "" outside RequireUser.
func UserID(ctx context.Context) string {
	uid, _ := ctx.Value(userContextKey).(string)
	return uid
}

// Page reads 1-based ?page and ?limit query parameters. Missing or
// non-positive values fall back to 1 and defLimit; limit is capped at
// maxLimit.
func Page(r *http.Request, defLimit, maxLimit int) (page, limit int, err error) {
	page, err = positiveQuery(r, "page", 1)
	if err != nil {
		return 0, 0, err
	}
	limit, err = positiveQuery(r, "limit", defLimit)
	if err != nil {
		return 0, 0, err
	}
	if maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}
	return page, limit, nil
}

func positiveQuery(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &model.ValidationError{Field: name, Message: "must be an integer"}
	}
	if n < 1 {
		return def, nil
	}
	return n, nil
}
