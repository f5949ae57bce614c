// Command tracker simulates one party's device. As the renter (default) it
// runs the full producer pipeline: gated location sampling into the tracking
// coordinator, streamed over the duplex channel with HTTP fallback. With
// DEVICE_ROLE=host it runs the consumer side instead: the bookings view with
// its in-flight overlay, and a watcher on the booking's tracking room.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/DevBasitali/swiftride-mobile-sub000/internal/booking"
	"github.com/DevBasitali/swiftride-mobile-sub000/internal/config"
	"github.com/DevBasitali/swiftride-mobile-sub000/internal/logging"
	"github.com/DevBasitali/swiftride-mobile-sub000/internal/models"
	"github.com/DevBasitali/swiftride-mobile-sub000/internal/sampler"
	"github.com/DevBasitali/swiftride-mobile-sub000/internal/tracking"
	"github.com/DevBasitali/swiftride-mobile-sub000/internal/transport"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadTrackerConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.NewLogger(cfg.LogLevel)

	bookingID := os.Getenv("BOOKING_ID")
	if bookingID == "" {
		log.Fatal("BOOKING_ID must be set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if strings.EqualFold(os.Getenv("DEVICE_ROLE"), "host") {
		runHostView(ctx, cfg, bookingID, logger)
		return
	}

	mode := sampler.ModeForeground
	smpCfg := sampler.Config{Mode: mode, MinInterval: cfg.ForegroundInterval, MinDisplacement: cfg.ForegroundDisplacement}
	if strings.EqualFold(os.Getenv("SAMPLER_MODE"), "background") {
		smpCfg = sampler.Config{Mode: sampler.ModeBackground, MinInterval: cfg.BackgroundInterval, MinDisplacement: cfg.BackgroundDisplacement}
	}

	src := &simulatedSource{start: models.Point{Lat: 48.2082, Lng: 16.3738}, speedMps: 12}
	perms := envPermissions{}
	smp := sampler.New(src, perms, smpCfg, logger)

	ws := transport.NewWSChannel(cfg.WSURL, cfg.Token, logger)
	fallback := transport.NewHTTPFallback(cfg.ServerURL, cfg.Token)
	channel := transport.NewFailoverChannel(ws, fallback, logger)

	coord := tracking.NewCoordinator(channel, smp, tracking.NewBackgroundTask(), logger)

	if err := coord.Start(ctx, bookingID); err != nil {
		log.Fatalf("start tracking: %v", err)
	}
	logger.Info("tracker running", "booking_id", bookingID, "mode", string(smpCfg.Mode))

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			coord.Stop()
			logger.Info("tracker stopped")
			return
		case <-ticker.C:
			snap := coord.Snapshot()
			if snap.LastSample != nil {
				logger.Info("snapshot", "state", string(snap.State), "connected", snap.Connected,
					"lat", snap.LastSample.Lat, "lng", snap.LastSample.Lng)
			} else {
				logger.Info("snapshot", "state", string(snap.State), "connected", snap.Connected)
			}
		}
	}
}

// runHostView is the counterparty side: list bookings through the pending
// overlay view and follow the rented car's tracking room.
func runHostView(ctx context.Context, cfg config.TrackerConfig, bookingID string, logger *slog.Logger) {
	api := &apiClient{baseURL: cfg.ServerURL, token: cfg.Token, client: &http.Client{Timeout: 5 * time.Second}}
	view := booking.NewView(api, logger)

	if list, err := view.Bookings(ctx); err != nil {
		logger.Warn("booking list failed", "error", err)
	} else {
		for _, b := range list {
			logger.Info("booking", "booking_id", b.ID, "status", string(b.Status), "renter_id", b.RenterID)
		}
	}

	ws := transport.NewWSChannel(cfg.WSURL, cfg.Token, logger)
	watcher := tracking.NewWatcher(ws, bookingID, logger)
	go func() {
		for ctx.Err() == nil {
			if err := watcher.Watch(ctx); err != nil && ctx.Err() == nil {
				logger.Warn("tracking room dropped, reconnecting", "booking_id", bookingID, "error", err)
				time.Sleep(2 * time.Second)
			}
		}
	}()
	logger.Info("host view running", "booking_id", bookingID)

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("host view stopped")
			return
		case <-ticker.C:
			if s, ok := watcher.Latest(); ok {
				logger.Info("counterparty position", "lat", s.Lat, "lng", s.Lng, "captured_at", s.CapturedAt)
			} else {
				// nothing yet is normal: the renter may not have started pickup
				logger.Info("waiting for position", "connected", watcher.Connected())
			}
		}
	}
}

// apiClient talks to the booking API with the device's bearer token.
type apiClient struct {
	baseURL string
	token   string
	client  *http.Client
}

func (c *apiClient) List(ctx context.Context) ([]*models.Booking, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/bookings", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list bookings: %s", resp.Status)
	}
	var out []*models.Booking
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *apiClient) UpdateStatus(ctx context.Context, bookingID string, target models.BookingStatus, note string) (*models.Booking, error) {
	body, _ := json.Marshal(map[string]string{"status": string(target), "note": note})
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.baseURL+"/api/v1/bookings/"+bookingID+"/status", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("update status: %s", resp.Status)
	}
	var b models.Booking
	if err := json.NewDecoder(resp.Body).Decode(&b); err != nil {
		return nil, err
	}
	return &b, nil
}

// simulatedSource drives a fix roughly northeast at a steady speed.
type simulatedSource struct {
	start    models.Point
	speedMps float64
}

func (s *simulatedSource) Subscribe(ctx context.Context, acc sampler.Accuracy) (<-chan models.LocationSample, error) {
	out := make(chan models.LocationSample)
	tick := 500 * time.Millisecond
	if acc == sampler.AccuracyBalanced {
		tick = 2 * time.Second
	}
	go func() {
		defer close(out)
		pos := s.start
		t := time.NewTicker(tick)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-t.C:
				// ~1e-5 degrees latitude per meter
				pos.Lat += s.speedMps * tick.Seconds() * 1e-5
				pos.Lng += s.speedMps * tick.Seconds() * 0.4e-5
				fix := models.LocationSample{Lat: pos.Lat, Lng: pos.Lng, Heading: 33, SpeedMps: s.speedMps, CapturedAt: now.UTC()}
				select {
				case out <- fix:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// envPermissions grants based on env flags, defaulting to granted, so the
// degradation paths can be exercised locally.
type envPermissions struct{}

func (envPermissions) RequestForeground(ctx context.Context) (bool, error) {
	return !strings.EqualFold(os.Getenv("DENY_FOREGROUND_LOCATION"), "true"), nil
}

func (envPermissions) RequestBackground(ctx context.Context) (bool, error) {
	return !strings.EqualFold(os.Getenv("DENY_BACKGROUND_LOCATION"), "true"), nil
}
