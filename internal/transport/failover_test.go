package transport

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

type stubChannel struct {
	mu         sync.Mutex
	connected  bool
	connectErr error
	emitErr    error
	emits      int
}

func (s *stubChannel) Connect(ctx context.Context) error {
	if s.connectErr != nil {
		return s.connectErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	return nil
}

func (s *stubChannel) JoinRoom(ctx context.Context, bookingID string) error { return nil }

func (s *stubChannel) Emit(ctx context.Context, bookingID string, smp models.LocationSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.emitErr != nil {
		return s.emitErr
	}
	s.emits++
	return nil
}

func (s *stubChannel) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	return nil
}

func (s *stubChannel) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

type stubPusher struct {
	pushes int
	err    error
}

func (p *stubPusher) Push(ctx context.Context, bookingID string, s models.LocationSample) error {
	if p.err != nil {
		return p.err
	}
	p.pushes++
	return nil
}

func testSample() models.LocationSample {
	return models.LocationSample{Lat: 48.2, Lng: 16.37, CapturedAt: time.Now()}
}

func TestEmitPrefersDuplexChannel(t *testing.T) {
	ctx := context.Background()
	primary := &stubChannel{}
	fallback := &stubPusher{}
	f := NewFailoverChannel(primary, fallback, nil)

	require.NoError(t, f.Connect(ctx))
	require.NoError(t, f.Emit(ctx, "b-1", testSample()))
	assert.Equal(t, 1, primary.emits)
	assert.Zero(t, fallback.pushes)
}

func TestEmitFallsBackWhenDisconnected(t *testing.T) {
	ctx := context.Background()
	primary := &stubChannel{connectErr: errors.New("dial refused")}
	fallback := &stubPusher{}
	f := NewFailoverChannel(primary, fallback, nil)

	require.NoError(t, f.Connect(ctx), "connect failure must not be fatal")
	require.NoError(t, f.Emit(ctx, "b-1", testSample()))
	assert.Zero(t, primary.emits)
	assert.Equal(t, 1, fallback.pushes)
}

func TestEmitFallsBackOnChannelError(t *testing.T) {
	ctx := context.Background()
	primary := &stubChannel{emitErr: ErrChannelUnavailable}
	fallback := &stubPusher{}
	f := NewFailoverChannel(primary, fallback, nil)

	require.NoError(t, f.Connect(ctx))
	require.NoError(t, f.Emit(ctx, "b-1", testSample()))
	assert.Equal(t, 1, fallback.pushes)
}

func TestEmitSurfacesDoubleFailure(t *testing.T) {
	ctx := context.Background()
	primary := &stubChannel{emitErr: ErrChannelUnavailable}
	fallback := &stubPusher{err: errors.New("503")}
	f := NewFailoverChannel(primary, fallback, nil)

	require.NoError(t, f.Connect(ctx))
	err := f.Emit(ctx, "b-1", testSample())
	assert.ErrorIs(t, err, ErrChannelUnavailable)
}

func TestJoinRoomSkippedWhileDisconnected(t *testing.T) {
	primary := &stubChannel{connectErr: errors.New("dial refused")}
	f := NewFailoverChannel(primary, &stubPusher{}, nil)
	assert.NoError(t, f.JoinRoom(context.Background(), "b-1"))
}

func TestLocationEventRoundTrip(t *testing.T) {
	s := models.LocationSample{Lat: 1, Lng: 2, Heading: 90, SpeedMps: 8, CapturedAt: time.Unix(1700000000, 0).UTC()}
	e := LocationEvent("b-1", s)
	assert.Equal(t, EventLocationUpdate, e.Type)

	got := e.Sample()
	s.BookingID = "b-1"
	assert.Equal(t, s, got)
}
