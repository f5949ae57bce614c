// Package transport carries location samples from the producing device to
// the subscribed counterparty: a room-based duplex channel first, a discrete
// authenticated HTTP push when the channel is down.
package transport

import (
	"context"
	"errors"
	"time"

	"github.com/DevBasitali/swiftride-mobile-sub000/internal/models"
)

// ErrChannelUnavailable means the duplex channel cannot deliver right now.
// It is handled inside the failover wrapper and only surfaces to a caller if
// the fallback path fails too.
var ErrChannelUnavailable = errors.New("transport channel unavailable")

const (
	EventJoinTracking   = "join-tracking"
	EventLocationUpdate = "location-update"
)

// Event is the wire shape shared by the duplex channel and the room hub.
type Event struct {
	Type       string    `json:"type"`
	BookingID  string    `json:"booking_id"`
	Lat        float64   `json:"lat,omitempty"`
	Lng        float64   `json:"lng,omitempty"`
	Heading    float64   `json:"heading,omitempty"`
	SpeedMps   float64   `json:"speed_mps,omitempty"`
	CapturedAt time.Time `json:"captured_at,omitempty"`
}

func LocationEvent(bookingID string, s models.LocationSample) Event {
	return Event{
		Type:       EventLocationUpdate,
		BookingID:  bookingID,
		Lat:        s.Lat,
		Lng:        s.Lng,
		Heading:    s.Heading,
		SpeedMps:   s.SpeedMps,
		CapturedAt: s.CapturedAt,
	}
}

func (e Event) Sample() models.LocationSample {
	return models.LocationSample{
		BookingID:  e.BookingID,
		Lat:        e.Lat,
		Lng:        e.Lng,
		Heading:    e.Heading,
		SpeedMps:   e.SpeedMps,
		CapturedAt: e.CapturedAt,
	}
}

// Channel is the producer-side transport. Emit is best-effort and must never
// block sample production; staleness is tolerated because the consumer keeps
// only the latest sample.
type Channel interface {
	// Connect is idempotent; connecting while connected is a no-op.
	Connect(ctx context.Context) error
	// JoinRoom subscribes to one tracking room; joining another room
	// implicitly leaves the prior one.
	JoinRoom(ctx context.Context, bookingID string) error
	Emit(ctx context.Context, bookingID string, s models.LocationSample) error
	// Disconnect releases room and connection; idempotent.
	Disconnect() error
	Connected() bool
}
