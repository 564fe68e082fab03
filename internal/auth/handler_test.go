package auth

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == CookieName {
			return c
		}
	}
	return nil
}

func TestHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens := NewTokens([]byte("secret"), 24*time.Hour)

	t.Run("signup sets session cookie", func(t *testing.T) {
		users := newMemUsers()
		h := NewHandler(users, tokens, nil, true, logger)
		body := `{"fullName":"Ayesha Khan","email":"ayesha@example.com","password":"correct-horse"}`
		rec := httptest.NewRecorder()

		h.HandleSignup(rec, httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(body)))

		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var resp map[string]any
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "Ayesha Khan", resp["fullName"])
		assert.NotEmpty(t, resp["_id"])

		cookie := sessionCookie(rec)
		require.NotNil(t, cookie)
		assert.True(t, cookie.HttpOnly)
		assert.True(t, cookie.Secure)
		claims, err := tokens.Parse(cookie.Value)
		require.NoError(t, err)
		assert.Equal(t, resp["_id"], claims.UserID)

		stored, _ := users.GetByEmail(t.Context(), "ayesha@example.com")
		require.NotNil(t, stored)
		assert.NotEqual(t, "correct-horse", stored.PasswordHash)
	})

	t.Run("signup validates input", func(t *testing.T) {
		h := NewHandler(newMemUsers(), tokens, nil, false, logger)
		for _, body := range []string{
			`{"email":"a@example.com","password":"longenough"}`,
			`{"fullName":"A","email":"a@example.com","password":"short"}`,
			`not json`,
		} {
			rec := httptest.NewRecorder()
			h.HandleSignup(rec, httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(body)))
			assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		}
	})

	t.Run("signup rejects taken email", func(t *testing.T) {
		h := NewHandler(newMemUsers(), tokens, nil, false, logger)
		body := `{"fullName":"A","email":"a@example.com","password":"longenough"}`

		rec := httptest.NewRecorder()
		h.HandleSignup(rec, httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(body)))
		require.Equal(t, http.StatusCreated, rec.Code)

		rec = httptest.NewRecorder()
		h.HandleSignup(rec, httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "already in use")
	})

	t.Run("login checks password", func(t *testing.T) {
		h := NewHandler(newMemUsers(), tokens, nil, false, logger)
		rec := httptest.NewRecorder()
		h.HandleSignup(rec, httptest.NewRequest(http.MethodPost, "/signup",
			strings.NewReader(`{"fullName":"A","email":"a@example.com","password":"longenough"}`)))
		require.Equal(t, http.StatusCreated, rec.Code)

		rec = httptest.NewRecorder()
		h.HandleLogin(rec, httptest.NewRequest(http.MethodPost, "/login",
			strings.NewReader(`{"email":"a@example.com","password":"longenough"}`)))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.NotNil(t, sessionCookie(rec))

		rec = httptest.NewRecorder()
		h.HandleLogin(rec, httptest.NewRequest(http.MethodPost, "/login",
			strings.NewReader(`{"email":"a@example.com","password":"wrong-password"}`)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Nil(t, sessionCookie(rec))

		rec = httptest.NewRecorder()
		h.HandleLogin(rec, httptest.NewRequest(http.MethodPost, "/login",
			strings.NewReader(`{"email":"nobody@example.com","password":"longenough"}`)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("logout clears cookie and revokes token", func(t *testing.T) {
		denylist := newMemDenylist()
		h := NewHandler(newMemUsers(), tokens, denylist, false, logger)
		raw, claims, err := tokens.Issue("u1")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/logout", nil)
		req.AddCookie(&http.Cookie{Name: CookieName, Value: raw})
		rec := httptest.NewRecorder()
		h.HandleLogout(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		cookie := sessionCookie(rec)
		require.NotNil(t, cookie)
		assert.Empty(t, cookie.Value)
		assert.Less(t, cookie.MaxAge, 0)

		revoked, err := denylist.IsRevoked(t.Context(), claims.ID)
		require.NoError(t, err)
		assert.True(t, revoked)
	})
}
