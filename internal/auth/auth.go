package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/asarvarbek/tgshop-backend/internal/domain"
)

type contextKey struct{}

// UserFromContext returns the identity attached by CheckUser or CheckAdmin.
func UserFromContext(ctx context.Context) (*domain.User, bool) {
	u, ok := ctx.Value(contextKey{}).(*domain.User)
	return u, ok
}

// Middleware authenticates requests from the chat-embedded web app. The
// identity arrives as a JSON object in the "user" header; it is trusted
// as-is, since the launch context is supplied by the messaging platform.
// Admin rights come from a static allow-list of identity ids.
type Middleware struct {
	adminIDs map[string]struct{}
	logger   *slog.Logger
}

func New(adminIDs []string, logger *slog.Logger) *Middleware {
	ids := make(map[string]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		ids[id] = struct{}{}
	}
	return &Middleware{adminIDs: ids, logger: logger}
}

func (m *Middleware) IsAdmin(u *domain.User) bool {
	_, ok := m.adminIDs[strconv.FormatInt(u.ID, 10)]
	return ok
}

// CheckUser requires a parseable identity header and attaches the identity
// to the request context. Missing or malformed headers yield 401.
func (m *Middleware) CheckUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := m.identify(w, r)
		if !ok {
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, user)))
	}
}

// CheckAdmin additionally requires the identity id to be allow-listed,
// yielding 403 for valid non-admin identities.
func (m *Middleware) CheckAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := m.identify(w, r)
		if !ok {
			return
		}
		if !m.IsAdmin(user) {
			m.writeError(w, http.StatusForbidden, "User is not an admin")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, user)))
	}
}

// HandleVerify tells the web app whether the caller should see the admin UI.
func (m *Middleware) HandleVerify(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		m.writeError(w, http.StatusUnauthorized, "User data not provided")
		return
	}

	isAdmin := m.IsAdmin(user)
	message := "User is not admin"
	if isAdmin {
		message = "User is admin"
	}

	m.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"isAdmin": isAdmin,
		"message": message,
	})
}

func (m *Middleware) identify(w http.ResponseWriter, r *http.Request) (*domain.User, bool) {
	header := r.Header.Get("user")
	if header == "" {
		m.writeError(w, http.StatusUnauthorized, "User data not provided")
		return nil, false
	}

	var user domain.User
	if err := json.Unmarshal([]byte(header), &user); err != nil {
		m.logger.Error("failed to parse identity header", "error", err)
		m.writeError(w, http.StatusUnauthorized, "Invalid user data")
		return nil, false
	}
	return &user, true
}

func (m *Middleware) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		m.logger.Error("failed to encode response", "error", err)
	}
}

func (m *Middleware) writeError(w http.ResponseWriter, status int, message string) {
	m.writeJSON(w, status, map[string]any{"success": false, "message": message})
}
