package tracking

import (
	"context"
	"log/slog"
	"sync"

	"github.com/DevBasitali/swiftride-mobile-sub000/internal/models"
	"github.com/DevBasitali/swiftride-mobile-sub000/internal/transport"
)

// UpdateChannel is the consumer side of the duplex transport: a Channel that
// also surfaces inbound room events. Satisfied by *transport.WSChannel.
type UpdateChannel interface {
	transport.Channel
	Updates() <-chan transport.Event
}

// Watcher is the consumer side of a tracking room: the host's live view of
// the rented car. It keeps only the latest sample and applies the same
// ordering rule as the producer: a sample whose timestamp does not exceed
// the last delivered one is discarded.
//
// Receiving nothing indefinitely is normal; the renter may simply not have
// started the pickup yet.
type Watcher struct {
	channel   UpdateChannel
	bookingID string
	logger    *slog.Logger

	mu   sync.RWMutex
	last *models.LocationSample
}

func NewWatcher(channel UpdateChannel, bookingID string, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{channel: channel, bookingID: bookingID, logger: logger}
}

// Watch joins the tracking room and consumes updates until ctx ends or the
// connection drops.
func (w *Watcher) Watch(ctx context.Context) error {
	if err := w.channel.Connect(ctx); err != nil {
		return err
	}
	if err := w.channel.JoinRoom(ctx, w.bookingID); err != nil {
		return err
	}
	updates := w.channel.Updates()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-updates:
			if !ok {
				return transport.ErrChannelUnavailable
			}
			if ev.BookingID != w.bookingID {
				continue
			}
			w.observe(ev.Sample())
		}
	}
}

func (w *Watcher) observe(s models.LocationSample) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.last != nil && !s.CapturedAt.After(w.last.CapturedAt) {
		return
	}
	w.last = &s
}

// Latest returns the freshest sample seen, if any.
func (w *Watcher) Latest() (models.LocationSample, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.last == nil {
		return models.LocationSample{}, false
	}
	return *w.last, true
}

func (w *Watcher) Connected() bool { return w.channel.Connected() }
