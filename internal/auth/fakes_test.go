package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type memUsers struct {
	mu    sync.Mutex
	users map[string]*domain.User
	seq   int
}

func newMemUsers(users ...*domain.User) *memUsers {
	m := &memUsers{users: make(map[string]*domain.User)}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *memUsers) Create(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, user.Email) {
			return ErrEmailTaken
		}
	}
	m.seq++
	user.ID = "user-" + string(rune('0'+m.seq))
	m.users[user.ID] = user
	return nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return nil, nil
}

func (m *memUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id], nil
}

type memDenylist struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

func newMemDenylist() *memDenylist {
	return &memDenylist{revoked: make(map[string]time.Time)}
}

func (d *memDenylist) Revoke(_ context.Context, tokenID string, until time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.revoked[tokenID] = until
	return nil
}

func (d *memDenylist) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.revoked[tokenID]
	return ok, nil
}
