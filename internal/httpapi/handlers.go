package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/DevBasitali/swiftride-mobile-sub000/internal/booking"
	"github.com/DevBasitali/swiftride-mobile-sub000/internal/handover"
	"github.com/DevBasitali/swiftride-mobile-sub000/internal/models"
	"github.com/DevBasitali/swiftride-mobile-sub000/internal/transport"
)

type createBookingRequest struct {
	CarID      string    `json:"car_id"`
	HostID     string    `json:"host_id"`
	StartDate  time.Time `json:"start_date"`
	EndDate    time.Time `json:"end_date"`
	TotalPrice int64     `json:"total_price"`
	Currency   string    `json:"currency"`
}

func (s *Server) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.CarID == "" || req.HostID == "" || !req.EndDate.After(req.StartDate) {
		http.Error(w, "car_id, host_id and a valid date range are required", http.StatusBadRequest)
		return
	}
	b, err := s.Bookings.Create(r.Context(), actor.UserID, booking.CreateInput{
		CarID:      req.CarID,
		HostID:     req.HostID,
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
		TotalPrice: req.TotalPrice,
		Currency:   req.Currency,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *Server) handleListBookings(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	list, err := s.Bookings.List(r.Context(), actor)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	b, err := s.Bookings.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

type updateStatusRequest struct {
	Status models.BookingStatus `json:"status"`
	Note   string               `json:"note,omitempty"`
}

// handleUpdateStatus covers the client-invocable transitions only: accept,
// reject, cancel. ongoing and completed are handover outcomes.
func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	b, err := s.Bookings.UpdateStatus(r.Context(), actor, mux.Vars(r)["id"], req.Status, req.Note)
	if err != nil {
		writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

type verifyRequest struct {
	Token string `json:"token"`
}

func (s *Server) handleVerifyCredential(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	res, err := s.Verifier.VerifyCredential(r.Context(), req.Token)
	if err != nil {
		writeHandoverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleSubmitEvidence accepts the multipart photo set for a handover step.
// Pickup evidence must come from the renter, return evidence from the host.
func (s *Server) handleSubmitEvidence(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	bookingID := vars["id"]
	step := models.HandoverStep(vars["step"])
	if step != models.StepPickup && step != models.StepReturn {
		http.Error(w, "unknown handover step", http.StatusBadRequest)
		return
	}

	actor := actorFromContext(r.Context())
	b, err := s.Bookings.Get(r.Context(), bookingID)
	if err != nil {
		writeBookingError(w, err)
		return
	}
	if (step == models.StepPickup && actor.UserID != b.RenterID) ||
		(step == models.StepReturn && actor.UserID != b.HostID) {
		http.Error(w, "wrong party for this handover step", http.StatusForbidden)
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	files := r.MultipartForm.File["photos"]
	refs := make([]string, 0, len(files))
	for _, f := range files {
		// blob storage is external; we persist references only
		refs = append(refs, uuid.NewString()+"/"+f.Filename)
	}

	updated, err := s.Verifier.SubmitEvidence(r.Context(), bookingID, step, refs)
	if err != nil {
		writeHandoverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func writeBookingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, booking.ErrNotAllowed):
		http.Error(w, err.Error(), http.StatusForbidden)
	case booking.IsInvalidTransition(err):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeHandoverError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, handover.ErrInvalidCredential):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, handover.ErrInsufficientEvidence):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, handover.ErrTransitionRejected):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, booking.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// handlePushLocation is the HTTP fallback for producers whose duplex channel
// is down. The payload shape is identical to the channel event.
func (s *Server) handlePushLocation(w http.ResponseWriter, r *http.Request) {
	bookingID := mux.Vars(r)["id"]
	actor := actorFromContext(r.Context())

	b, err := s.Bookings.Get(r.Context(), bookingID)
	if err != nil {
		writeBookingError(w, err)
		return
	}
	if actor.UserID != b.RenterID {
		http.Error(w, "only the renter streams location", http.StatusForbidden)
		return
	}
	if b.Status != models.StatusOngoing {
		http.Error(w, "booking is not ongoing", http.StatusConflict)
		return
	}

	var ev transport.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ev.Type = transport.EventLocationUpdate
	ev.BookingID = bookingID
	if ev.CapturedAt.IsZero() {
		ev.CapturedAt = time.Now().UTC()
	}
	s.acceptSample(ev)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleLastKnown(w http.ResponseWriter, r *http.Request) {
	bookingID := mux.Vars(r)["id"]
	sample, ok := s.LastKnown.Get(bookingID)
	if !ok {
		// valid waiting state: tracking has produced nothing yet
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, sample)
}

// acceptSample is the single sink for producer samples from either path:
// cache the latest, feed the ingest topic, fan out to the room.
func (s *Server) acceptSample(ev transport.Event) {
	sample := ev.Sample()
	if err := s.LastKnown.Set(ev.BookingID, sample); err != nil {
		s.logger.Warn("last-known update failed", "booking_id", ev.BookingID, "error", err)
	}
	if s.Kafka != nil {
		if err := s.Kafka.PublishSample(ev.BookingID, sample); err != nil {
			s.logger.Warn("sample publish failed", "booking_id", ev.BookingID, "error", err)
		}
	}
	s.Hub.Broadcast(ev)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
