package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DevBasitali/swiftride-mobile-sub000/internal/auth"
	"github.com/DevBasitali/swiftride-mobile-sub000/internal/booking"
	"github.com/DevBasitali/swiftride-mobile-sub000/internal/geo"
	"github.com/DevBasitali/swiftride-mobile-sub000/internal/handover"
	"github.com/DevBasitali/swiftride-mobile-sub000/internal/hub"
	"github.com/DevBasitali/swiftride-mobile-sub000/internal/logging"
	"github.com/DevBasitali/swiftride-mobile-sub000/internal/models"
	"github.com/DevBasitali/swiftride-mobile-sub000/internal/transport"
)

type apiFixture struct {
	srv       *httptest.Server
	svc       *booking.Service
	hub       *hub.RoomHub
	renterTok string
	hostTok   string
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	logger := logging.NewLogger("error")
	svc := booking.NewService(booking.NewMemoryStore(), nil, logger)
	verifier := handover.NewVerifier(nil, handover.NewMemoryTokenStore(), handover.NewMemoryRecordStore(), svc, nil, logger)
	authMgr := auth.NewManager("test-secret", time.Hour)
	roomHub := hub.NewRoomHub(logger)
	server := NewServer(svc, verifier, roomHub, nil, geo.NewMemoryLastKnown(), authMgr, logger)

	srv := httptest.NewServer(server)
	t.Cleanup(srv.Close)

	renterTok, err := authMgr.Issue("renter-1", "renter")
	require.NoError(t, err)
	hostTok, err := authMgr.Issue("host-1", "host")
	require.NoError(t, err)
	return &apiFixture{srv: srv, svc: svc, hub: roomHub, renterTok: renterTok, hostTok: hostTok}
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(buf)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, rd)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBooking(t *testing.T, resp *http.Response) models.Booking {
	t.Helper()
	var b models.Booking
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&b))
	return b
}

func (f *apiFixture) createBooking(t *testing.T) models.Booking {
	t.Helper()
	resp := f.do(t, "POST", "/api/v1/bookings", f.renterTok, map[string]any{
		"car_id":      "car-1",
		"host_id":     "host-1",
		"start_date":  time.Now().UTC().Format(time.RFC3339),
		"end_date":    time.Now().UTC().Add(48 * time.Hour).Format(time.RFC3339),
		"total_price": 9900,
		"currency":    "eur",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decodeBooking(t, resp)
}

func (f *apiFixture) submitEvidence(t *testing.T, bookingID string, step models.HandoverStep, token string, photos int) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for i := 0; i < photos; i++ {
		fw, err := mw.CreateFormFile("photos", fmt.Sprintf("photo-%d.jpg", i))
		require.NoError(t, err)
		_, err = fw.Write([]byte("jpeg-bytes"))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req, err := http.NewRequest("POST", fmt.Sprintf("%s/api/v1/bookings/%s/handover/%s/evidence", f.srv.URL, bookingID, step), &buf)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestRequestsWithoutTokenRejected(t *testing.T) {
	f := newAPIFixture(t)
	resp := f.do(t, "GET", "/api/v1/bookings", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestBookingLifecycleOverHTTP(t *testing.T) {
	f := newAPIFixture(t)
	b := f.createBooking(t)
	assert.Equal(t, models.StatusPending, b.Status)

	// renter accepting own request is forbidden
	resp := f.do(t, "PATCH", "/api/v1/bookings/"+b.ID+"/status", f.renterTok, map[string]any{"status": "confirmed"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = f.do(t, "PATCH", "/api/v1/bookings/"+b.ID+"/status", f.hostTok, map[string]any{"status": "confirmed"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.StatusConfirmed, decodeBooking(t, resp).Status)

	// cancelled bookings accept nothing further
	resp = f.do(t, "PATCH", "/api/v1/bookings/"+b.ID+"/status", f.hostTok, map[string]any{"status": "cancelled"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = f.do(t, "PATCH", "/api/v1/bookings/"+b.ID+"/status", f.hostTok, map[string]any{"status": "confirmed"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestListScopedByRole(t *testing.T) {
	f := newAPIFixture(t)
	f.createBooking(t)

	for _, token := range []string{f.renterTok, f.hostTok} {
		resp := f.do(t, "GET", "/api/v1/bookings", token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var list []models.Booking
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
		assert.Len(t, list, 1)
	}
}

func TestHandoverOverHTTP(t *testing.T) {
	f := newAPIFixture(t)
	b := f.createBooking(t)
	resp := f.do(t, "PATCH", "/api/v1/bookings/"+b.ID+"/status", f.hostTok, map[string]any{"status": "confirmed"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	tok := handover.EncodeCredential(handover.Credential{BookingID: b.ID, Step: models.StepPickup, Nonce: "n-1"})
	resp = f.do(t, "POST", "/api/v1/handover/verify", f.renterTok, map[string]any{"token": tok})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var vr handover.VerifyResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&vr))
	assert.Equal(t, "host-1", vr.CounterpartyID)

	// host cannot submit the renter's pickup evidence
	resp = f.submitEvidence(t, b.ID, models.StepPickup, f.hostTok, 4)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// three photos are not enough, status unchanged
	resp = f.submitEvidence(t, b.ID, models.StepPickup, f.renterTok, 3)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = f.submitEvidence(t, b.ID, models.StepPickup, f.renterTok, 4)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.StatusOngoing, decodeBooking(t, resp).Status)

	// consumed token fails on re-presentation
	resp = f.do(t, "POST", "/api/v1/handover/verify", f.renterTok, map[string]any{"token": tok})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestLocationPushAndLastKnown(t *testing.T) {
	f := newAPIFixture(t)
	b := f.createBooking(t)

	// nothing tracked yet: 204, not an error
	resp := f.do(t, "GET", "/api/v1/bookings/"+b.ID+"/location", f.hostTok, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	// pushing before the rental is ongoing is a conflict
	resp = f.do(t, "POST", "/api/v1/bookings/"+b.ID+"/location", f.renterTok, map[string]any{"lat": 48.2, "lng": 16.37})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	f.beginRental(t, b.ID)

	// only the renter streams
	resp = f.do(t, "POST", "/api/v1/bookings/"+b.ID+"/location", f.hostTok, map[string]any{"lat": 48.2, "lng": 16.37})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = f.do(t, "POST", "/api/v1/bookings/"+b.ID+"/location", f.renterTok, map[string]any{
		"lat": 48.2, "lng": 16.37, "heading": 270.0, "speed_mps": 9.5,
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp = f.do(t, "GET", "/api/v1/bookings/"+b.ID+"/location", f.hostTok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got models.LocationSample
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, 48.2, got.Lat)
	assert.Equal(t, 270.0, got.Heading)
	assert.False(t, got.CapturedAt.IsZero(), "server stamps samples without a capture time")
}

func (f *apiFixture) beginRental(t *testing.T, bookingID string) {
	t.Helper()
	ctx := context.Background()
	_, err := f.svc.UpdateStatus(ctx, booking.Actor{UserID: "host-1", Role: booking.RoleHost}, bookingID, models.StatusConfirmed, "")
	require.NoError(t, err)
	_, err = f.svc.BeginRental(ctx, bookingID)
	require.NoError(t, err)
}

func TestWebsocketRoomReceivesPushedSamples(t *testing.T) {
	f := newAPIFixture(t)
	b := f.createBooking(t)
	f.beginRental(t, b.ID)

	wsURL := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws/tracking"
	hdr := http.Header{"Authorization": {"Bearer " + f.hostTok}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, hdr)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(transport.Event{Type: transport.EventJoinTracking, BookingID: b.ID}))

	// the join is processed asynchronously; push until the broadcast lands
	deadline := time.Now().Add(2 * time.Second)
	got := make(chan transport.Event, 1)
	go func() {
		var ev transport.Event
		conn.SetReadDeadline(deadline)
		if err := conn.ReadJSON(&ev); err == nil {
			got <- ev
		}
	}()

	for time.Now().Before(deadline) {
		resp := f.do(t, "POST", "/api/v1/bookings/"+b.ID+"/location", f.renterTok, map[string]any{"lat": 48.2, "lng": 16.37})
		require.Equal(t, http.StatusAccepted, resp.StatusCode)
		select {
		case ev := <-got:
			assert.Equal(t, transport.EventLocationUpdate, ev.Type)
			assert.Equal(t, b.ID, ev.BookingID)
			assert.Equal(t, 48.2, ev.Lat)
			return
		case <-time.After(100 * time.Millisecond):
		}
	}
	t.Fatal("no broadcast received")
}

func TestWebsocketProducerRequiresOngoing(t *testing.T) {
	f := newAPIFixture(t)
	b := f.createBooking(t)
	resp := f.do(t, "PATCH", "/api/v1/bookings/"+b.ID+"/status", f.hostTok, map[string]any{"status": "confirmed"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	wsURL := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws/tracking"
	hdr := http.Header{"Authorization": {"Bearer " + f.renterTok}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, hdr)
	require.NoError(t, err)
	defer conn.Close()

	// booking is only confirmed, so this must be dropped like the fallback's 409
	require.NoError(t, conn.WriteJSON(transport.Event{Type: transport.EventLocationUpdate, BookingID: b.ID, Lat: 10, Lng: 10}))

	// the read loop is in-order per connection: once this join is visible in
	// the hub, the update above has been handled
	require.NoError(t, conn.WriteJSON(transport.Event{Type: transport.EventJoinTracking, BookingID: "sentinel"}))
	deadline := time.Now().Add(2 * time.Second)
	for f.hub.RoomSize("sentinel") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("join event never processed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	resp = f.do(t, "GET", "/api/v1/bookings/"+b.ID+"/location", f.hostTok, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode, "sample for a non-ongoing booking must not be accepted")

	// once the rental begins the same producer path goes through
	_, err = f.svc.BeginRental(context.Background(), b.ID)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(transport.Event{Type: transport.EventLocationUpdate, BookingID: b.ID, Lat: 48.2, Lng: 16.37}))

	for time.Now().Before(deadline) {
		resp = f.do(t, "GET", "/api/v1/bookings/"+b.ID+"/location", f.hostTok, nil)
		if resp.StatusCode == http.StatusOK {
			var got models.LocationSample
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
			assert.Equal(t, 48.2, got.Lat)
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("sample for ongoing booking never accepted")
}

func TestWebsocketRejectsUnauthenticated(t *testing.T) {
	f := newAPIFixture(t)
	wsURL := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws/tracking"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
