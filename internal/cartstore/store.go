// Package cartstore holds the shopper's cart between page views. The cart is
// client-owned state; the server never persists it.
package cartstore

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/splat-labs/storefront/internal/domain"
)

// ErrItemNotFound is returned when mutating a line that is not in the cart.
var ErrItemNotFound = errors.New("cartstore: item not found")

// Persistence stores cart snapshots between sessions.
type Persistence interface {
	Load(ctx context.Context, cartID string) ([]domain.CartItem, error)
	Save(ctx context.Context, cartID string, items []domain.CartItem) error
	Clear(ctx context.Context, cartID string) error
}

// MemoryPersistence keeps snapshots in memory. Used in tests and as the
// default when no backing store is configured.
type MemoryPersistence struct {
	mu        sync.Mutex
	snapshots map[string][]domain.CartItem
}

// NewMemoryPersistence constructs an empty in-memory persistence backend.
func NewMemoryPersistence() *MemoryPersistence {
	return &MemoryPersistence{snapshots: make(map[string][]domain.CartItem)}
}

// Load implements the Persistence interface.
func (p *MemoryPersistence) Load(_ context.Context, cartID string) ([]domain.CartItem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.CartItem(nil), p.snapshots[cartID]...), nil
}

// Save implements the Persistence interface.
func (p *MemoryPersistence) Save(_ context.Context, cartID string, items []domain.CartItem) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshots[cartID] = append([]domain.CartItem(nil), items...)
	return nil
}

// Clear implements the Persistence interface.
func (p *MemoryPersistence) Clear(_ context.Context, cartID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.snapshots, cartID)
	return nil
}

// Store is an explicit, injectable cart with a defined lifecycle: construct
// at startup, hydrate from persistence, mutate, clear after submission.
type Store struct {
	mu          sync.Mutex
	id          string
	items       []domain.CartItem
	persistence Persistence
}

// NewStore constructs an empty cart with a fresh identifier. A nil
// persistence falls back to the in-memory backend.
func NewStore(persistence Persistence) *Store {
	if persistence == nil {
		persistence = NewMemoryPersistence()
	}
	return &Store{
		id:          newCartID(),
		persistence: persistence,
	}
}

func newCartID() string {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// ID returns the cart identifier.
func (s *Store) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Hydrate replaces the cart contents with the snapshot stored under the
// given identifier and adopts that identifier.
func (s *Store) Hydrate(ctx context.Context, cartID string) error {
	items, err := s.persistence.Load(ctx, cartID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = cartID
	s.items = items
	return nil
}

// Add inserts a line or, when a line with the same product and combination
// already exists, merges quantities into it.
func (s *Store) Add(ctx context.Context, item domain.CartItem) error {
	if item.Quantity <= 0 {
		item.Quantity = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	merged := false
	for i := range s.items {
		if s.items[i].Key() == item.Key() {
			s.items[i].Quantity += item.Quantity
			merged = true
			break
		}
	}
	if !merged {
		s.items = append(s.items, item)
	}

	return s.persistLocked(ctx)
}

// UpdateQuantity sets the quantity of an existing line. A non-positive
// quantity removes the line.
func (s *Store) UpdateQuantity(ctx context.Context, key string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].Key() != key {
			continue
		}
		if quantity <= 0 {
			s.items = append(s.items[:i], s.items[i+1:]...)
		} else {
			s.items[i].Quantity = quantity
		}
		return s.persistLocked(ctx)
	}
	return ErrItemNotFound
}

// Remove deletes a line from the cart.
func (s *Store) Remove(ctx context.Context, key string) error {
	return s.UpdateQuantity(ctx, key, 0)
}

// Items returns a copy of the cart lines.
func (s *Store) Items() []domain.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.CartItem(nil), s.items...)
}

// Len returns the number of distinct lines.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Subtotal returns the sum of unit price times quantity over all lines.
func (s *Store) Subtotal() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var subtotal float64
	for _, item := range s.items {
		subtotal += item.UnitPrice * float64(item.Quantity)
	}
	return subtotal
}

// Clear empties the cart and drops its persisted snapshot.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = nil
	return s.persistence.Clear(ctx, s.id)
}

func (s *Store) persistLocked(ctx context.Context) error {
	return s.persistence.Save(ctx, s.id, s.items)
}
