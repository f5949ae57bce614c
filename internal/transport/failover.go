package transport

import (
	"context"
	"errors"
	"log/slog"

	"github.com/DevBasitali/swiftride-mobile-sub000/internal/models"
	"github.com/DevBasitali/swiftride-mobile-sub000/internal/observability"
)

// Pusher is the discrete fallback path.
type Pusher interface {
	Push(ctx context.Context, bookingID string, s models.LocationSample) error
}

// FailoverChannel presents the dual-path transport as one Channel so
// producers never branch on transport type. Emits go over the duplex channel
// while it is up and fall back to the HTTP pusher when it is not.
type FailoverChannel struct {
	primary  Channel
	fallback Pusher
	logger   *slog.Logger
}

func NewFailoverChannel(primary Channel, fallback Pusher, logger *slog.Logger) *FailoverChannel {
	if logger == nil {
		logger = slog.Default()
	}
	return &FailoverChannel{primary: primary, fallback: fallback, logger: logger}
}

// Connect failing is not fatal: the fallback path still delivers, and a
// later Emit may find the channel reconnected.
func (f *FailoverChannel) Connect(ctx context.Context) error {
	if err := f.primary.Connect(ctx); err != nil {
		f.logger.Warn("duplex channel unavailable, operating on fallback", "error", err)
	}
	return nil
}

func (f *FailoverChannel) JoinRoom(ctx context.Context, bookingID string) error {
	if !f.primary.Connected() {
		return nil
	}
	if err := f.primary.JoinRoom(ctx, bookingID); err != nil && !errors.Is(err, ErrChannelUnavailable) {
		return err
	}
	return nil
}

func (f *FailoverChannel) Emit(ctx context.Context, bookingID string, s models.LocationSample) error {
	if f.primary.Connected() {
		if err := f.primary.Emit(ctx, bookingID, s); err == nil {
			return nil
		}
	}
	if f.fallback == nil {
		return ErrChannelUnavailable
	}
	observability.FallbackPushes.Inc()
	if err := f.fallback.Push(ctx, bookingID, s); err != nil {
		return errors.Join(ErrChannelUnavailable, err)
	}
	return nil
}

func (f *FailoverChannel) Disconnect() error {
	return f.primary.Disconnect()
}

func (f *FailoverChannel) Connected() bool {
	return f.primary.Connected()
}
