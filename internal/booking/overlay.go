package booking

import (
	"sync"

	"github.com/DevBasitali/swiftride-mobile-sub000/internal/models"
)

// PendingOverlay tracks status changes that have been requested but not yet
// acknowledged by the authoritative store. Reads merge the overlay instead of
// the canonical collection being mutated speculatively; once the response
// arrives the entry is resolved and the canonical state wins either way.
type PendingOverlay struct {
	mu      sync.RWMutex
	pending map[string]models.BookingStatus
}

func NewPendingOverlay() *PendingOverlay {
	return &PendingOverlay{pending: make(map[string]models.BookingStatus)}
}

// Propose records an in-flight status request for a booking.
func (o *PendingOverlay) Propose(bookingID string, target models.BookingStatus) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pending[bookingID] = target
}

// Resolve clears the in-flight entry once the server answered, regardless of
// outcome. The next read reflects whatever the store says.
func (o *PendingOverlay) Resolve(bookingID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.pending, bookingID)
}

// Apply returns bookings with any in-flight status layered on top. The input
// slice is not modified.
func (o *PendingOverlay) Apply(bookings []*models.Booking) []*models.Booking {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if len(o.pending) == 0 {
		return bookings
	}
	out := make([]*models.Booking, len(bookings))
	for i, b := range bookings {
		if target, ok := o.pending[b.ID]; ok && b.Status != target {
			cp := *b
			cp.Status = target
			out[i] = &cp
			continue
		}
		out[i] = b
	}
	return out
}

// Pending reports the in-flight status for a booking, if any.
func (o *PendingOverlay) Pending(bookingID string) (models.BookingStatus, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	s, ok := o.pending[bookingID]
	return s, ok
}
