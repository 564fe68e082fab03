package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/joao-fontenele/storefront/internal/domain"
)

const (
	minPasswordLength = 8
	bcryptCost        = 10
)

type UserStore interface {
	Create(ctx context.Context, user *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

type Handler struct {
	users        UserStore
	tokens       *Tokens
	denylist     Denylist
	secureCookie bool
	logger       *slog.Logger
}

// NewHandler builds the signup/login/logout handlers. denylist may be nil, in
// which case logout only clears the cookie.
func NewHandler(users UserStore, tokens *Tokens, denylist Denylist, secureCookie bool, logger *slog.Logger) *Handler {
	return &Handler{
		users:        users,
		tokens:       tokens,
		denylist:     denylist,
		secureCookie: secureCookie,
		logger:       logger,
	}
}

type signupRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID         string  `json:"_id"`
	FullName   string  `json:"fullName"`
	Email      string  `json:"email"`
	ProfilePic *string `json:"profilePic"`
}

func newUserResponse(u *domain.User) userResponse {
	return userResponse{ID: u.ID, FullName: u.FullName, Email: u.Email, ProfilePic: u.ProfilePic}
}

func (h *Handler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.FullName == "" || req.Email == "" || req.Password == "" {
		h.writeError(w, http.StatusBadRequest, "all fields are required")
		return
	}
	if utf8.RuneCountInString(req.Password) < minPasswordLength {
		h.writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		h.logger.Error("failed to hash password", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	user := &domain.User{
		FullName:     req.FullName,
		Email:        req.Email,
		PasswordHash: string(hash),
	}
	if err := h.users.Create(r.Context(), user); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			h.writeError(w, http.StatusBadRequest, "this email is already in use")
			return
		}
		h.logger.Error("failed to create user", "error", err)
		h.writeError(w, http.StatusBadRequest, "failed to create user")
		return
	}

	if err := h.setSession(w, user.ID); err != nil {
		h.logger.Error("failed to issue token", "error", err, "user_id", user.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("user signed up", "user_id", user.ID)
	h.writeJSON(w, http.StatusCreated, newUserResponse(user))
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.users.GetByEmail(r.Context(), strings.TrimSpace(req.Email))
	if err != nil {
		h.logger.Error("failed to look up user", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		h.writeError(w, http.StatusBadRequest, "invalid email or password")
		return
	}

	if err := h.setSession(w, user.ID); err != nil {
		h.logger.Error("failed to issue token", "error", err, "user_id", user.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("user logged in", "user_id", user.ID)
	h.writeJSON(w, http.StatusOK, newUserResponse(user))
}

func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if raw := tokenFromRequest(r); raw != "" && h.denylist != nil {
		if claims, err := h.tokens.Parse(raw); err == nil {
			if err := h.denylist.Revoke(r.Context(), claims.ID, claims.ExpiresAt.Time); err != nil {
				h.logger.Error("failed to revoke token", "error", err, "user_id", claims.UserID)
				h.writeError(w, http.StatusInternalServerError, "internal server error")
				return
			}
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
	})
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "logged out successfully"})
}

func (h *Handler) setSession(w http.ResponseWriter, userID string) error {
	token, claims, err := h.tokens.Issue(userID)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  claims.ExpiresAt.Time,
		MaxAge:   int(time.Until(claims.ExpiresAt.Time).Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
	})
	return nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
