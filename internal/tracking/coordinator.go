// Package tracking owns the one live location session a device may run and
// the observer view of the counterparty's position.
package tracking

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/DevBasitali/swiftride-mobile-sub000/internal/models"
	"github.com/DevBasitali/swiftride-mobile-sub000/internal/observability"
	"github.com/DevBasitali/swiftride-mobile-sub000/internal/transport"
)

type State string

const (
	StateIdle     State = "idle"
	StateStarting State = "starting"
	StateActive   State = "active"
	StateStopped  State = "stopped"
)

// SampleStream is the producing side of the pipeline, satisfied by
// *sampler.Sampler. Each Run starts a fresh pass.
type SampleStream interface {
	Run(ctx context.Context) (<-chan models.LocationSample, error)
}

// TaskRegistrar is the OS long-running task registration. Register must be
// idempotent: re-registering while registered is a safe no-op.
type TaskRegistrar interface {
	Register(bookingID string) error
	Unregister() error
}

// Snapshot is what local observers (the map view) read.
type Snapshot struct {
	State      State
	BookingID  string
	LastSample *models.LocationSample
	Connected  bool
}

// Coordinator runs at most one active session per device. Start and Stop are
// serialized; a start arriving while a stop is in flight waits for it. Every
// session carries a generation number, so a sample produced after Stop but
// before the OS subscription actually tears down is discarded, not forwarded.
type Coordinator struct {
	channel transport.Channel
	stream  SampleStream
	tasks   TaskRegistrar
	logger  *slog.Logger

	mu        sync.Mutex // serializes Start/Stop
	state     State
	bookingID string
	cancel    context.CancelFunc
	done      chan struct{}

	gen atomic.Uint64

	obsMu sync.RWMutex
	last  *models.LocationSample
}

func NewCoordinator(channel transport.Channel, stream SampleStream, tasks TaskRegistrar, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{channel: channel, stream: stream, tasks: tasks, logger: logger, state: StateIdle}
}

// Start begins streaming for bookingID. Starting for the booking already
// active is a no-op; starting for a different booking stops the old session
// first (last-start-wins).
func (c *Coordinator) Start(ctx context.Context, bookingID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateActive && c.bookingID == bookingID {
		return nil
	}
	c.stopLocked()

	c.state = StateStarting
	gen := c.gen.Add(1)

	// the session outlives the caller's context; Stop is the only way out
	runCtx, cancel := context.WithCancel(context.Background())
	samples, err := c.stream.Run(runCtx)
	if err != nil {
		cancel()
		c.state = StateIdle
		return err
	}

	_ = c.channel.Connect(runCtx)
	if err := c.channel.JoinRoom(runCtx, bookingID); err != nil {
		c.logger.Warn("join room failed, emits will fall back", "booking_id", bookingID, "error", err)
	}
	if c.tasks != nil {
		if err := c.tasks.Register(bookingID); err != nil {
			c.logger.Warn("background task registration failed", "booking_id", bookingID, "error", err)
		}
	}

	c.bookingID = bookingID
	c.cancel = cancel
	c.done = make(chan struct{})
	c.state = StateActive
	c.obsMu.Lock()
	c.last = nil
	c.obsMu.Unlock()
	observability.ActiveSessions.Set(1)
	c.logger.Info("tracking session started", "booking_id", bookingID, "generation", gen)

	go c.forward(runCtx, gen, bookingID, samples, c.done)
	return nil
}

// Stop tears the session down and waits until the forward loop has exited,
// so no sample from the stopped session can race a subsequent start.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	c.state = StateIdle
}

// StopFor stops only if the active session belongs to bookingID. Used by the
// return-handover side effect, which must not kill an unrelated session.
func (c *Coordinator) StopFor(bookingID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bookingID != bookingID {
		return
	}
	c.stopLocked()
	c.state = StateIdle
}

func (c *Coordinator) stopLocked() {
	if c.cancel == nil {
		return
	}
	c.gen.Add(1) // invalidate in-flight samples before the sampler notices
	c.cancel()
	<-c.done
	c.cancel = nil
	c.done = nil
	c.state = StateStopped
	_ = c.channel.Disconnect()
	if c.tasks != nil {
		_ = c.tasks.Unregister()
	}
	observability.ActiveSessions.Set(0)
	c.logger.Info("tracking session stopped", "booking_id", c.bookingID)
	c.bookingID = ""
}

// forward pumps samples to the channel. Ordering within the session is
// enforced here: non-increasing capture timestamps are dropped, never
// reordered. Emission is decoupled through a small drop-oldest queue so a
// slow or disconnected channel never stalls the sampler.
func (c *Coordinator) forward(ctx context.Context, gen uint64, bookingID string, samples <-chan models.LocationSample, done chan struct{}) {
	defer close(done)

	queue := make(chan models.LocationSample, 16)
	emitDone := make(chan struct{})
	go func() {
		defer close(emitDone)
		for s := range queue {
			if c.gen.Load() != gen {
				observability.SamplesDropped.WithLabelValues("stale_generation").Inc()
				continue
			}
			if err := c.channel.Emit(ctx, bookingID, s); err != nil {
				c.logger.Warn("sample emit failed", "booking_id", bookingID, "error", err)
				continue
			}
			observability.SamplesForwarded.Inc()
		}
	}()
	defer func() {
		close(queue)
		<-emitDone
	}()

	var lastTS int64
	for s := range samples {
		if c.gen.Load() != gen {
			observability.SamplesDropped.WithLabelValues("stale_generation").Inc()
			continue
		}
		ts := s.CapturedAt.UnixNano()
		if lastTS != 0 && ts <= lastTS {
			observability.SamplesDropped.WithLabelValues("out_of_order").Inc()
			continue
		}
		lastTS = ts

		c.obsMu.Lock()
		if c.gen.Load() == gen {
			cp := s
			c.last = &cp
		}
		c.obsMu.Unlock()

		select {
		case queue <- s:
		default:
			// queue full: shed the oldest, keep the freshest
			select {
			case <-queue:
				observability.SamplesDropped.WithLabelValues("queue_full").Inc()
			default:
			}
			queue <- s
		}
	}
}

// Snapshot reports the coordinator state for local observers. No samples yet
// is a valid waiting state, not an error.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	state, bookingID := c.state, c.bookingID
	c.mu.Unlock()
	c.obsMu.RLock()
	var last *models.LocationSample
	if c.last != nil {
		cp := *c.last
		last = &cp
	}
	c.obsMu.RUnlock()
	return Snapshot{State: state, BookingID: bookingID, LastSample: last, Connected: c.channel.Connected()}
}

// StartTracking and StopTracking adapt the coordinator to the handover
// verifier's SessionControl hook.
func (c *Coordinator) StartTracking(bookingID string) {
	if err := c.Start(context.Background(), bookingID); err != nil {
		c.logger.Error("tracking start rejected", "booking_id", bookingID, "error", err)
	}
}

func (c *Coordinator) StopTracking(bookingID string) { c.StopFor(bookingID) }
