package booking

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/DevBasitali/swiftride-mobile-sub000/internal/models"
	"github.com/DevBasitali/swiftride-mobile-sub000/internal/observability"
)

type Role string

const (
	RoleRenter Role = "renter"
	RoleHost   Role = "host"
	// roleSystem transitions are reachable only through handover verification.
	roleSystem Role = "system"
)

// Actor identifies who is requesting a transition.
type Actor struct {
	UserID string
	Role   Role
}

// Deposits is the hook into the payments layer. Calls are best-effort: the
// paid flag is owned by the billing backend, so a failed deposit call never
// vetoes a transition.
type Deposits interface {
	Hold(ctx context.Context, b *models.Booking) (string, error)
	Capture(ctx context.Context, bookingID string) error
	Release(ctx context.Context, bookingID string) error
}

// legalTransitions is the full transition graph. Anything absent fails with
// InvalidTransitionError and leaves the booking untouched.
var legalTransitions = map[models.BookingStatus][]models.BookingStatus{
	models.StatusPending:   {models.StatusConfirmed, models.StatusCancelled},
	models.StatusConfirmed: {models.StatusOngoing, models.StatusCancelled},
	models.StatusOngoing:   {models.StatusCompleted},
}

func transitionLegal(from, to models.BookingStatus) bool {
	for _, t := range legalTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Service owns the authoritative status field of every booking.
type Service struct {
	store    Store
	deposits Deposits
	logger   *slog.Logger

	// serializes transitions so timeline timestamps stay strictly increasing
	mu sync.Mutex
}

func NewService(store Store, deposits Deposits, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, deposits: deposits, logger: logger}
}

type CreateInput struct {
	CarID      string
	HostID     string
	StartDate  time.Time
	EndDate    time.Time
	TotalPrice int64
	Currency   string
}

func (s *Service) Create(ctx context.Context, renterID string, in CreateInput) (*models.Booking, error) {
	now := time.Now().UTC()
	b := &models.Booking{
		ID:         uuid.NewString(),
		RenterID:   renterID,
		HostID:     in.HostID,
		CarID:      in.CarID,
		Status:     models.StatusPending,
		StartDate:  in.StartDate,
		EndDate:    in.EndDate,
		TotalPrice: in.TotalPrice,
		Currency:   in.Currency,
		Timeline:   []models.StatusChange{{Status: models.StatusPending, ChangedAt: now}},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.Create(ctx, b); err != nil {
		return nil, err
	}
	s.logger.Info("booking created", "booking_id", b.ID, "renter_id", renterID, "car_id", in.CarID)
	return b, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Booking, error) {
	return s.store.Get(ctx, id)
}

// List returns the actor's own bookings for renters, the fleet's incoming
// bookings for hosts.
func (s *Service) List(ctx context.Context, actor Actor) ([]*models.Booking, error) {
	if actor.Role == RoleHost {
		return s.store.ListByHost(ctx, actor.UserID)
	}
	return s.store.ListByRenter(ctx, actor.UserID)
}

// UpdateStatus handles the client-invocable transitions: accept, reject and
// cancel. ongoing/completed are never reachable through here.
func (s *Service) UpdateStatus(ctx context.Context, actor Actor, bookingID string, target models.BookingStatus, note string) (*models.Booking, error) {
	if target != models.StatusConfirmed && target != models.StatusCancelled {
		return nil, &InvalidTransitionError{From: "", To: target}
	}
	return s.transition(ctx, actor, bookingID, target, note)
}

// BeginRental moves a confirmed booking to ongoing. It is driven exclusively
// by a successful pickup handover verification.
func (s *Service) BeginRental(ctx context.Context, bookingID string) (*models.Booking, error) {
	return s.transition(ctx, Actor{Role: roleSystem}, bookingID, models.StatusOngoing, "pickup handover verified")
}

// CompleteRental moves an ongoing booking to completed, driven by the return
// handover verification.
func (s *Service) CompleteRental(ctx context.Context, bookingID string) (*models.Booking, error) {
	return s.transition(ctx, Actor{Role: roleSystem}, bookingID, models.StatusCompleted, "return handover verified")
}

func (s *Service) transition(ctx context.Context, actor Actor, bookingID string, target models.BookingStatus, note string) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.store.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if err := authorize(actor, b, target); err != nil {
		return nil, err
	}

	// duplicate request (e.g. network retry): no-op, return current state.
	// Checked only after authorization so a duplicate cannot be used to read
	// a booking past the role gate.
	if b.Status == target {
		return b, nil
	}

	if !transitionLegal(b.Status, target) {
		observability.TransitionsRejected.Inc()
		return nil, &InvalidTransitionError{From: b.Status, To: target}
	}

	prev := b.Status
	now := time.Now().UTC()
	if n := len(b.Timeline); n > 0 && !now.After(b.Timeline[n-1].ChangedAt) {
		now = b.Timeline[n-1].ChangedAt.Add(time.Millisecond)
	}
	change := models.StatusChange{Status: target, ChangedAt: now, Note: note}
	b.Status = target
	b.Timeline = append(b.Timeline, change)
	b.UpdatedAt = now

	if err := s.store.Update(ctx, b, prev, change); err != nil {
		if errors.Is(err, ErrStale) {
			// somebody beat us to it; report against the fresh state
			cur, gerr := s.store.Get(ctx, bookingID)
			if gerr != nil {
				return nil, gerr
			}
			if cur.Status == target {
				return cur, nil
			}
			return nil, &InvalidTransitionError{From: cur.Status, To: target}
		}
		return nil, err
	}

	observability.TransitionsTotal.WithLabelValues(string(prev), string(target)).Inc()
	s.logger.Info("booking transition", "booking_id", b.ID, "from", prev, "to", target, "actor", string(actor.Role))
	s.settleDeposit(ctx, b, target)
	return b, nil
}

func authorize(actor Actor, b *models.Booking, target models.BookingStatus) error {
	switch actor.Role {
	case roleSystem:
		return nil
	case RoleHost:
		if actor.UserID != b.HostID {
			return ErrNotAllowed
		}
	case RoleRenter:
		if actor.UserID != b.RenterID {
			return ErrNotAllowed
		}
		// renters may only cancel, and only before pickup
		if target != models.StatusCancelled {
			return ErrNotAllowed
		}
	default:
		return ErrNotAllowed
	}
	if target == models.StatusOngoing || target == models.StatusCompleted {
		return ErrNotAllowed
	}
	return nil
}

func (s *Service) settleDeposit(ctx context.Context, b *models.Booking, target models.BookingStatus) {
	if s.deposits == nil {
		return
	}
	var err error
	switch target {
	case models.StatusConfirmed:
		_, err = s.deposits.Hold(ctx, b)
	case models.StatusCompleted:
		err = s.deposits.Capture(ctx, b.ID)
	case models.StatusCancelled:
		err = s.deposits.Release(ctx, b.ID)
	default:
		return
	}
	if err != nil {
		s.logger.Warn("deposit call failed", "booking_id", b.ID, "status", target, "error", err)
	}
}
