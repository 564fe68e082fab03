package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/joao-fontenele/storefront/internal/domain"
)

const CookieName = "jwt"

type UserLookup interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

type Middleware struct {
	tokens   *Tokens
	users    UserLookup
	denylist Denylist
	logger   *slog.Logger
}

// NewMiddleware builds the request authenticator. denylist may be nil.
func NewMiddleware(tokens *Tokens, users UserLookup, denylist Denylist, logger *slog.Logger) *Middleware {
	return &Middleware{
		tokens:   tokens,
		users:    users,
		denylist: denylist,
		logger:   logger,
	}
}

// Authenticate rejects requests without a valid session and attaches the
// caller's Principal to the context. The admin flag is read from storage on
// every request.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := tokenFromRequest(r)
		if raw == "" {
			writeUnauthorized(w, "unauthorized: no token provided")
			return
		}

		claims, err := m.tokens.Parse(raw)
		if err != nil {
			writeUnauthorized(w, "unauthorized: invalid token")
			return
		}

		if m.denylist != nil {
			revoked, err := m.denylist.IsRevoked(r.Context(), claims.ID)
			if err != nil {
				m.logger.Error("failed to check token denylist", "error", err)
				writeJSONError(w, http.StatusInternalServerError, "internal server error")
				return
			}
			if revoked {
				writeUnauthorized(w, "unauthorized: token revoked")
				return
			}
		}

		user, err := m.users.GetByID(r.Context(), claims.UserID)
		if err != nil {
			m.logger.Error("failed to load user", "error", err, "user_id", claims.UserID)
			writeJSONError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		if user == nil {
			writeUnauthorized(w, "unauthorized: user not found")
			return
		}

		ctx := WithPrincipal(r.Context(), Principal{ID: user.ID, Email: user.Email, IsAdmin: user.IsAdmin})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin must run after Authenticate.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFrom(r.Context())
		if !ok || !p.IsAdmin {
			writeJSONError(w, http.StatusForbidden, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func tokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	writeJSONError(w, http.StatusUnauthorized, message)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
