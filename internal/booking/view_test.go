package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DevBasitali/swiftride-mobile-sub000/internal/models"
)

// blockingRemote parks UpdateStatus until release is closed, so tests can
// read the view while a request is in flight.
type blockingRemote struct {
	mu        sync.Mutex
	bookings  map[string]*models.Booking
	release   chan struct{}
	updateErr error
}

func newBlockingRemote(bookings ...*models.Booking) *blockingRemote {
	r := &blockingRemote{bookings: make(map[string]*models.Booking), release: make(chan struct{})}
	for _, b := range bookings {
		r.bookings[b.ID] = b
	}
	return r
}

func (r *blockingRemote) List(ctx context.Context) ([]*models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Booking
	for _, b := range r.bookings {
		cp := *b
		out = append(out, &cp)
	}
	return out, nil
}

func (r *blockingRemote) UpdateStatus(ctx context.Context, bookingID string, target models.BookingStatus, note string) (*models.Booking, error) {
	<-r.release
	if r.updateErr != nil {
		return nil, r.updateErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	b := r.bookings[bookingID]
	b.Status = target
	cp := *b
	return &cp, nil
}

func viewStatus(t *testing.T, v *View, bookingID string) models.BookingStatus {
	t.Helper()
	list, err := v.Bookings(context.Background())
	require.NoError(t, err)
	for _, b := range list {
		if b.ID == bookingID {
			return b.Status
		}
	}
	t.Fatalf("booking %s not in view", bookingID)
	return ""
}

func waitPending(t *testing.T, v *View, bookingID string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := v.Pending(bookingID); ok {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("status request never proposed")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestViewLayersInFlightRequest(t *testing.T) {
	remote := newBlockingRemote(&models.Booking{ID: "b1", Status: models.StatusPending})
	v := NewView(remote, nil)

	done := make(chan error, 1)
	go func() {
		_, err := v.RequestStatus(context.Background(), "b1", models.StatusConfirmed, "")
		done <- err
	}()
	waitPending(t, v, "b1")

	// the server has not answered yet; reads already show the proposed status
	assert.Equal(t, models.StatusConfirmed, viewStatus(t, v, "b1"))

	close(remote.release)
	require.NoError(t, <-done)

	// resolved: canonical state carries the same answer now
	assert.Equal(t, models.StatusConfirmed, viewStatus(t, v, "b1"))
	_, pending := v.Pending("b1")
	assert.False(t, pending)
}

func TestViewRejectedRequestNeedsNoRollback(t *testing.T) {
	remote := newBlockingRemote(&models.Booking{ID: "b1", Status: models.StatusPending})
	remote.updateErr = errors.New("403 forbidden")
	v := NewView(remote, nil)

	done := make(chan error, 1)
	go func() {
		_, err := v.RequestStatus(context.Background(), "b1", models.StatusConfirmed, "")
		done <- err
	}()
	waitPending(t, v, "b1")
	assert.Equal(t, models.StatusConfirmed, viewStatus(t, v, "b1"))

	close(remote.release)
	assert.Error(t, <-done)

	// canonical state shows through again, nothing was mutated locally
	assert.Equal(t, models.StatusPending, viewStatus(t, v, "b1"))
	_, pending := v.Pending("b1")
	assert.False(t, pending)
}
