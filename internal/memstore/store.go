// Package memstore keeps products and orders in memory. It satisfies the
// checkout collaborators and is meant for tests and local experiments.
package memstore

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/joao-fontenele/storefront/internal/checkout"
	"github.com/joao-fontenele/storefront/internal/domain"
)

var errTxDone = errors.New("memstore: transaction already finished")

type Store struct {
	mu       sync.Mutex
	products map[string]domain.Product
	orders   map[string]domain.Order
	items    map[string][]domain.OrderItem
	users    map[string]domain.UserSummary
}

func New() *Store {
	return &Store{
		products: make(map[string]domain.Product),
		orders:   make(map[string]domain.Order),
		items:    make(map[string][]domain.OrderItem),
		users:    make(map[string]domain.UserSummary),
	}
}

func (s *Store) PutProduct(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

// PutUser registers the owner summary attached by ListAll.
func (s *Store) PutUser(u domain.UserSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// DecrementStock subtracts quantity under the store lock, so two concurrent
// calls can never both take the last unit.
func (s *Store) DecrementStock(_ context.Context, productID string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok {
		return checkout.ErrProductNotFound
	}
	if p.Stock < quantity {
		return checkout.ErrInsufficientStock
	}
	p.Stock -= quantity
	s.products[productID] = p
	return nil
}

func (s *Store) Begin(_ context.Context) (checkout.Tx, error) {
	return &tx{store: s}, nil
}

// Order returns a committed order with its items, or nil.
func (s *Store) Order(id string) *domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil
	}
	s.fill(&o)
	return &o
}

// Orders returns every committed order, oldest first.
func (s *Store) Orders() []domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted(func(domain.Order) bool { return true }, false)
}

func (s *Store) GetByID(_ context.Context, id string) (*domain.Order, error) {
	return s.Order(id), nil
}

// ListByUser returns the orders of one user, newest first.
func (s *Store) ListByUser(_ context.Context, userID string) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted(func(o domain.Order) bool { return o.UserID == userID }, true), nil
}

// ListAll returns every order with its owner summary, newest first.
func (s *Store) ListAll(_ context.Context) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.sorted(func(domain.Order) bool { return true }, true)
	for i := range out {
		if u, ok := s.users[out[i].UserID]; ok {
			out[i].User = &u
		}
	}
	return out, nil
}

func (s *Store) UpdateStatus(_ context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, nil
	}
	o.Status = status
	o.UpdatedAt = time.Now().UTC()
	s.orders[id] = o
	s.fill(&o)
	return &o, nil
}

// DeleteIfEmpty removes an order that has no items.
func (s *Store) DeleteIfEmpty(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[id]; !ok || len(s.items[id]) > 0 {
		return false, nil
	}
	delete(s.orders, id)
	delete(s.items, id)
	return true, nil
}

// PutOrder stores an order header without items, as a crashed checkout might
// leave behind.
func (s *Store) PutOrder(o domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = o
}

func (s *Store) sorted(keep func(domain.Order) bool, newestFirst bool) []domain.Order {
	out := make([]domain.Order, 0, len(s.orders))
	for _, o := range s.orders {
		if !keep(o) {
			continue
		}
		s.fill(&o)
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if newestFirst {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// fill copies the order's items and attaches the product they reference.
// Callers hold s.mu.
func (s *Store) fill(o *domain.Order) {
	items := s.items[o.ID]
	o.Items = make([]domain.OrderItem, len(items))
	for i, item := range items {
		if p, ok := s.products[item.ProductID]; ok {
			item.Product = &p
		}
		o.Items[i] = item
	}
}

// tx buffers writes until Commit.
type tx struct {
	store *Store
	order *domain.Order
	items []domain.OrderItem
	done  bool
}

func (t *tx) CreateOrder(_ context.Context, order *domain.Order) error {
	if t.done {
		return errTxDone
	}
	o := *order
	t.order = &o
	return nil
}

func (t *tx) InsertOrderItems(_ context.Context, items []domain.OrderItem) error {
	if t.done {
		return errTxDone
	}
	if t.order == nil {
		return errors.New("memstore: items inserted before order header")
	}
	t.items = append(t.items, items...)
	return nil
}

func (t *tx) Commit() error {
	if t.done {
		return errTxDone
	}
	t.done = true
	if t.order == nil {
		return nil
	}

	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	t.store.orders[t.order.ID] = *t.order
	t.store.items[t.order.ID] = t.items
	return nil
}

func (t *tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.order = nil
	t.items = nil
	return nil
}
