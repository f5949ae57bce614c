package booking

import (
	"context"
	"sync"

	"github.com/DevBasitali/swiftride-mobile-sub000/internal/models"
)

// Store defines persistence operations for bookings. Update must only apply
// when the stored status still equals prev, so concurrent transitions surface
// as ErrStale instead of silently clobbering each other.
type Store interface {
	Create(ctx context.Context, b *models.Booking) error
	Get(ctx context.Context, id string) (*models.Booking, error)
	Update(ctx context.Context, b *models.Booking, prev models.BookingStatus, change models.StatusChange) error
	ListByRenter(ctx context.Context, renterID string) ([]*models.Booking, error)
	ListByHost(ctx context.Context, hostID string) ([]*models.Booking, error)
}

type MemoryStore struct {
	mu       sync.RWMutex
	bookings map[string]*models.Booking
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{bookings: make(map[string]*models.Booking)}
}

func (m *MemoryStore) Create(ctx context.Context, b *models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[b.ID] = clone(b)
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*models.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(b), nil
}

func (m *MemoryStore) Update(ctx context.Context, b *models.Booking, prev models.BookingStatus, change models.StatusChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.bookings[b.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.Status != prev {
		return ErrStale
	}
	m.bookings[b.ID] = clone(b)
	return nil
}

func (m *MemoryStore) ListByRenter(ctx context.Context, renterID string) ([]*models.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Booking
	for _, b := range m.bookings {
		if b.RenterID == renterID {
			out = append(out, clone(b))
		}
	}
	return out, nil
}

func (m *MemoryStore) ListByHost(ctx context.Context, hostID string) ([]*models.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Booking
	for _, b := range m.bookings {
		if b.HostID == hostID {
			out = append(out, clone(b))
		}
	}
	return out, nil
}

func clone(b *models.Booking) *models.Booking {
	cp := *b
	cp.Timeline = append([]models.StatusChange(nil), b.Timeline...)
	return &cp
}
