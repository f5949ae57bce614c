// Package sampler turns a raw OS location stream into the gated, restartable
// sample sequence the tracking pipeline consumes.
package sampler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/DevBasitali/swiftride-mobile-sub000/internal/geo"
	"github.com/DevBasitali/swiftride-mobile-sub000/internal/models"
)

// ErrPermissionDenied is a hard failure: without the foreground grant there
// is nothing to sample.
var ErrPermissionDenied = errors.New("location permission denied")

type Accuracy string

const (
	AccuracyHigh     Accuracy = "high"
	AccuracyBalanced Accuracy = "balanced"
)

type Mode string

const (
	ModeForeground Mode = "foreground"
	ModeBackground Mode = "background"
)

// Source is the OS location stream. Fixes are pushed, never polled; the
// channel closes when ctx is cancelled.
type Source interface {
	Subscribe(ctx context.Context, acc Accuracy) (<-chan models.LocationSample, error)
}

// Permissions models the grant dialogs. The background grant is distinct
// from (and requires) the foreground one.
type Permissions interface {
	RequestForeground(ctx context.Context) (bool, error)
	RequestBackground(ctx context.Context) (bool, error)
}

type Config struct {
	Mode            Mode
	MinInterval     time.Duration
	MinDisplacement float64 // meters
}

func ForegroundConfig() Config {
	return Config{Mode: ModeForeground, MinInterval: time.Second, MinDisplacement: 10}
}

func BackgroundConfig() Config {
	return Config{Mode: ModeBackground, MinInterval: 10 * time.Second, MinDisplacement: 20}
}

type Sampler struct {
	source Source
	perms  Permissions
	cfg    Config
	logger *slog.Logger
}

func New(source Source, perms Permissions, cfg Config, logger *slog.Logger) *Sampler {
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sampler{source: source, perms: perms, cfg: cfg, logger: logger}
}

// Run starts one sampling pass and returns the gated sample stream. The
// stream ends when ctx is cancelled; calling Run again starts a fresh pass.
//
// Foreground permission refusal is a hard error. Background refusal degrades
// to foreground-only operation: tighter gates, high accuracy, and a warning
// log so the degradation is observable.
func (s *Sampler) Run(ctx context.Context) (<-chan models.LocationSample, error) {
	granted, err := s.perms.RequestForeground(ctx)
	if err != nil {
		return nil, err
	}
	if !granted {
		return nil, ErrPermissionDenied
	}

	cfg := s.cfg
	acc := AccuracyHigh
	if cfg.Mode == ModeBackground {
		bg, err := s.perms.RequestBackground(ctx)
		if err != nil {
			return nil, err
		}
		if bg {
			acc = AccuracyBalanced
		} else {
			s.logger.Warn("background location refused, continuing foreground-only",
				"interval", s.cfg.MinInterval, "displacement_m", s.cfg.MinDisplacement)
			fg := ForegroundConfig()
			cfg.Mode = ModeForeground
			cfg.MinInterval = fg.MinInterval
			cfg.MinDisplacement = fg.MinDisplacement
		}
	}

	fixes, err := s.source.Subscribe(ctx, acc)
	if err != nil {
		return nil, err
	}

	out := make(chan models.LocationSample)
	go s.gate(ctx, cfg, fixes, out)
	return out, nil
}

// gate forwards a fix when either the minimum interval has elapsed or the
// device moved at least the displacement threshold, whichever comes first.
func (s *Sampler) gate(ctx context.Context, cfg Config, in <-chan models.LocationSample, out chan<- models.LocationSample) {
	defer close(out)
	var (
		haveLast bool
		last     models.LocationSample
	)
	for {
		select {
		case <-ctx.Done():
			return
		case fix, ok := <-in:
			if !ok {
				return
			}
			if haveLast {
				elapsed := fix.CapturedAt.Sub(last.CapturedAt)
				moved := geo.Haversine(last.Lat, last.Lng, fix.Lat, fix.Lng)
				if elapsed < cfg.MinInterval && moved < cfg.MinDisplacement {
					continue
				}
			}
			select {
			case out <- fix:
				last = fix
				haveLast = true
			case <-ctx.Done():
				return
			}
		}
	}
}
