package booking

import (
	"context"
	"log/slog"

	"github.com/DevBasitali/swiftride-mobile-sub000/internal/models"
)

// RemoteBookings is the slice of the booking API a device talks to.
type RemoteBookings interface {
	List(ctx context.Context) ([]*models.Booking, error)
	UpdateStatus(ctx context.Context, bookingID string, target models.BookingStatus, note string) (*models.Booking, error)
}

// View is the device-side read model over the remote booking API. A status
// request is recorded in the pending overlay instead of mutating any cached
// collection: reads issued while the request is in flight see the proposed
// status layered over the canonical list, and the server's answer wins as
// soon as it arrives.
type View struct {
	remote  RemoteBookings
	overlay *PendingOverlay
	logger  *slog.Logger
}

func NewView(remote RemoteBookings, logger *slog.Logger) *View {
	if logger == nil {
		logger = slog.Default()
	}
	return &View{remote: remote, overlay: NewPendingOverlay(), logger: logger}
}

// Bookings returns the canonical list with any in-flight status layered on top.
func (v *View) Bookings(ctx context.Context) ([]*models.Booking, error) {
	list, err := v.remote.List(ctx)
	if err != nil {
		return nil, err
	}
	return v.overlay.Apply(list), nil
}

// RequestStatus proposes the transition locally, sends it, and resolves the
// proposal whatever the server answers. A rejected request needs no rollback;
// resolving simply lets the canonical state show through again.
func (v *View) RequestStatus(ctx context.Context, bookingID string, target models.BookingStatus, note string) (*models.Booking, error) {
	v.overlay.Propose(bookingID, target)
	defer v.overlay.Resolve(bookingID)

	b, err := v.remote.UpdateStatus(ctx, bookingID, target, note)
	if err != nil {
		v.logger.Warn("status request rejected", "booking_id", bookingID, "target", string(target), "error", err)
		return nil, err
	}
	return b, nil
}

// Pending reports an in-flight status request for the booking, if any.
func (v *View) Pending(bookingID string) (models.BookingStatus, bool) {
	return v.overlay.Pending(bookingID)
}
