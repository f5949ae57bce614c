package handover

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DevBasitali/swiftride-mobile-sub000/internal/booking"
	"github.com/DevBasitali/swiftride-mobile-sub000/internal/models"
)

type fakeSessions struct {
	mu      sync.Mutex
	started []string
	stopped []string
}

func (f *fakeSessions) StartTracking(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, id)
}

func (f *fakeSessions) StopTracking(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, id)
}

type fixture struct {
	svc      *booking.Service
	verifier *Verifier
	sessions *fakeSessions
	records  *MemoryRecordStore
	booking  *models.Booking
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	svc := booking.NewService(booking.NewMemoryStore(), nil, nil)
	b, err := svc.Create(context.Background(), "renter-1", booking.CreateInput{
		CarID: "car-1", HostID: "host-1",
		StartDate: time.Now(), EndDate: time.Now().Add(24 * time.Hour),
	})
	require.NoError(t, err)

	sessions := &fakeSessions{}
	records := NewMemoryRecordStore()
	v := NewVerifier(nil, NewMemoryTokenStore(), records, svc, sessions, nil)
	return &fixture{svc: svc, verifier: v, sessions: sessions, records: records, booking: b}
}

func (f *fixture) confirm(t *testing.T) {
	t.Helper()
	_, err := f.svc.UpdateStatus(context.Background(), booking.Actor{UserID: "host-1", Role: booking.RoleHost}, f.booking.ID, models.StatusConfirmed, "")
	require.NoError(t, err)
}

func pickupToken(bookingID string) string {
	return EncodeCredential(Credential{BookingID: bookingID, Step: models.StepPickup, Nonce: "n-1"})
}

func returnToken(bookingID string) string {
	return EncodeCredential(Credential{BookingID: bookingID, Step: models.StepReturn, Nonce: "n-2"})
}

func fourPhotos() []string {
	return []string{"p1.jpg", "p2.jpg", "p3.jpg", "p4.jpg"}
}

func TestVerifyMalformedToken(t *testing.T) {
	f := newFixture(t)
	_, err := f.verifier.VerifyCredential(context.Background(), "not base64!!")
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestVerifyWrongPreState(t *testing.T) {
	f := newFixture(t)
	// booking still pending, pickup expects confirmed
	_, err := f.verifier.VerifyCredential(context.Background(), pickupToken(f.booking.ID))
	assert.ErrorIs(t, err, ErrInvalidCredential)

	// token was not burned by the failed scan
	f.confirm(t)
	res, err := f.verifier.VerifyCredential(context.Background(), pickupToken(f.booking.ID))
	require.NoError(t, err)
	assert.Equal(t, f.booking.ID, res.BookingID)
	assert.Equal(t, "host-1", res.CounterpartyID)
}

func TestCredentialIsSingleUse(t *testing.T) {
	f := newFixture(t)
	f.confirm(t)
	tok := pickupToken(f.booking.ID)

	_, err := f.verifier.VerifyCredential(context.Background(), tok)
	require.NoError(t, err)

	_, err = f.verifier.VerifyCredential(context.Background(), tok)
	assert.ErrorIs(t, err, ErrInvalidCredential, "second presentation must fail")
}

func TestInsufficientEvidenceHasNoSideEffects(t *testing.T) {
	f := newFixture(t)
	f.confirm(t)

	_, err := f.verifier.SubmitEvidence(context.Background(), f.booking.ID, models.StepPickup, []string{"a", "b", "c"})
	assert.ErrorIs(t, err, ErrInsufficientEvidence)

	b, err := f.svc.Get(context.Background(), f.booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, b.Status)
	assert.Empty(t, f.sessions.started)
	recs, _ := f.records.ListByBooking(context.Background(), f.booking.ID)
	assert.Empty(t, recs)
}

func TestFullHandoverLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.confirm(t)

	pickup := pickupToken(f.booking.ID)
	res, err := f.verifier.VerifyCredential(ctx, pickup)
	require.NoError(t, err)
	assert.Equal(t, models.StepPickup, res.Step)

	b, err := f.verifier.SubmitEvidence(ctx, f.booking.ID, models.StepPickup, fourPhotos())
	require.NoError(t, err)
	assert.Equal(t, models.StatusOngoing, b.Status)
	assert.Equal(t, []string{f.booking.ID}, f.sessions.started)

	res, err = f.verifier.VerifyCredential(ctx, returnToken(f.booking.ID))
	require.NoError(t, err)
	assert.Equal(t, "renter-1", res.CounterpartyID)

	b, err = f.verifier.SubmitEvidence(ctx, f.booking.ID, models.StepReturn, fourPhotos())
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, b.Status)
	assert.Equal(t, []string{f.booking.ID}, f.sessions.stopped)

	// re-presenting the consumed pickup token after completion
	_, err = f.verifier.VerifyCredential(ctx, pickup)
	assert.ErrorIs(t, err, ErrInvalidCredential)

	recs, err := f.records.ListByBooking(ctx, f.booking.ID)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestConcurrentCancelRejectsEvidence(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.confirm(t)

	_, err := f.verifier.VerifyCredential(ctx, pickupToken(f.booking.ID))
	require.NoError(t, err)

	// host cancels while the renter is uploading photos
	_, err = f.svc.UpdateStatus(ctx, booking.Actor{UserID: "host-1", Role: booking.RoleHost}, f.booking.ID, models.StatusCancelled, "no-show")
	require.NoError(t, err)

	_, err = f.verifier.SubmitEvidence(ctx, f.booking.ID, models.StepPickup, fourPhotos())
	assert.ErrorIs(t, err, ErrTransitionRejected)

	b, err := f.svc.Get(ctx, f.booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, b.Status)
	assert.Empty(t, f.sessions.started)

	// the rejected record was discarded
	recs, _ := f.records.ListByBooking(ctx, f.booking.ID)
	assert.Empty(t, recs)
}

func TestDecoderRoundTrip(t *testing.T) {
	c := Credential{BookingID: "b-9", Step: models.StepReturn, Nonce: "x"}
	got, err := Base64JSONDecoder{}.Decode(EncodeCredential(c))
	require.NoError(t, err)
	assert.Equal(t, c, got)

	_, err = Base64JSONDecoder{}.Decode(EncodeCredential(Credential{BookingID: "b", Step: "swap", Nonce: "x"}))
	assert.ErrorIs(t, err, ErrInvalidCredential)
}
