package handover

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/DevBasitali/swiftride-mobile-sub000/internal/booking"
	"github.com/DevBasitali/swiftride-mobile-sub000/internal/models"
	"github.com/DevBasitali/swiftride-mobile-sub000/internal/observability"
)

// BookingService is the slice of the booking state machine the verifier
// drives. BeginRental/CompleteRental are the only way ongoing/completed are
// ever reached.
type BookingService interface {
	Get(ctx context.Context, id string) (*models.Booking, error)
	BeginRental(ctx context.Context, id string) (*models.Booking, error)
	CompleteRental(ctx context.Context, id string) (*models.Booking, error)
}

// SessionControl receives the tracking side effects of a successful handover.
type SessionControl interface {
	StartTracking(bookingID string)
	StopTracking(bookingID string)
}

// VerifyResult is returned to the scanning party on a successful scan.
type VerifyResult struct {
	BookingID      string              `json:"booking_id"`
	Step           models.HandoverStep `json:"step"`
	CounterpartyID string              `json:"counterparty_id"`
	CarID          string              `json:"car_id"`
}

type Verifier struct {
	decoder  Decoder
	tokens   TokenStore
	records  RecordStore
	bookings BookingService
	sessions SessionControl
	logger   *slog.Logger
}

func NewVerifier(decoder Decoder, tokens TokenStore, records RecordStore, bookings BookingService, sessions SessionControl, logger *slog.Logger) *Verifier {
	if decoder == nil {
		decoder = Base64JSONDecoder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{decoder: decoder, tokens: tokens, records: records, bookings: bookings, sessions: sessions, logger: logger}
}

// expectedStatus is the booking pre-state a scan for the given step requires.
func expectedStatus(step models.HandoverStep) models.BookingStatus {
	if step == models.StepPickup {
		return models.StatusConfirmed
	}
	return models.StatusOngoing
}

// VerifyCredential validates a scanned token and consumes it. Consumption
// happens last so a scan against a booking in the wrong state does not burn
// the token; once consumed, every later presentation fails.
func (v *Verifier) VerifyCredential(ctx context.Context, token string) (VerifyResult, error) {
	cred, err := v.decoder.Decode(token)
	if err != nil {
		observability.HandoverOutcomes.WithLabelValues("unknown", "invalid_credential").Inc()
		return VerifyResult{}, err
	}

	b, err := v.bookings.Get(ctx, cred.BookingID)
	if err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			observability.HandoverOutcomes.WithLabelValues(string(cred.Step), "invalid_credential").Inc()
			return VerifyResult{}, ErrInvalidCredential
		}
		return VerifyResult{}, err
	}
	if b.Status != expectedStatus(cred.Step) {
		observability.HandoverOutcomes.WithLabelValues(string(cred.Step), "invalid_credential").Inc()
		return VerifyResult{}, ErrInvalidCredential
	}

	first, err := v.tokens.Consume(ctx, token)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("consume credential: %w", err)
	}
	if !first {
		observability.HandoverOutcomes.WithLabelValues(string(cred.Step), "invalid_credential").Inc()
		return VerifyResult{}, ErrInvalidCredential
	}

	res := VerifyResult{BookingID: b.ID, Step: cred.Step, CarID: b.CarID}
	if cred.Step == models.StepPickup {
		res.CounterpartyID = b.HostID
	} else {
		res.CounterpartyID = b.RenterID
	}
	observability.HandoverOutcomes.WithLabelValues(string(cred.Step), "verified").Inc()
	v.logger.Info("handover credential verified", "booking_id", b.ID, "step", cred.Step)
	return res, nil
}

// SubmitEvidence accepts the photo set for a verified scan and drives the
// matching booking transition. The record is persisted before the transition
// and discarded again if the transition is rejected, so a rejected submission
// never leaves authoritative evidence behind.
func (v *Verifier) SubmitEvidence(ctx context.Context, bookingID string, step models.HandoverStep, photos []string) (*models.Booking, error) {
	if len(photos) < models.MinEvidencePhotos {
		observability.HandoverOutcomes.WithLabelValues(string(step), "insufficient_evidence").Inc()
		return nil, fmt.Errorf("%w: got %d, need %d", ErrInsufficientEvidence, len(photos), models.MinEvidencePhotos)
	}

	rec := &models.HandoverRecord{
		ID:          uuid.NewString(),
		BookingID:   bookingID,
		Step:        step,
		PhotoRefs:   photos,
		CompletedAt: time.Now().UTC(),
	}
	if err := v.records.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("persist handover record: %w", err)
	}

	var (
		b   *models.Booking
		err error
	)
	if step == models.StepPickup {
		b, err = v.bookings.BeginRental(ctx, bookingID)
	} else {
		b, err = v.bookings.CompleteRental(ctx, bookingID)
	}
	if err != nil {
		// booking moved concurrently; the evidence is not authoritative
		if derr := v.records.Delete(ctx, rec.ID); derr != nil {
			v.logger.Warn("orphan handover record", "record_id", rec.ID, "error", derr)
		}
		observability.HandoverOutcomes.WithLabelValues(string(step), "transition_rejected").Inc()
		return nil, fmt.Errorf("%w: %v", ErrTransitionRejected, err)
	}

	if v.sessions != nil {
		if step == models.StepPickup {
			v.sessions.StartTracking(bookingID)
		} else {
			v.sessions.StopTracking(bookingID)
		}
	}
	observability.HandoverOutcomes.WithLabelValues(string(step), "completed").Inc()
	v.logger.Info("handover completed", "booking_id", bookingID, "step", step, "photos", len(photos))
	return b, nil
}
