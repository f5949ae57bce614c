package httpapi

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DevBasitali/swiftride-mobile-sub000/internal/auth"
	"github.com/DevBasitali/swiftride-mobile-sub000/internal/booking"
	"github.com/DevBasitali/swiftride-mobile-sub000/internal/geo"
	"github.com/DevBasitali/swiftride-mobile-sub000/internal/handover"
	"github.com/DevBasitali/swiftride-mobile-sub000/internal/hub"
	"github.com/DevBasitali/swiftride-mobile-sub000/internal/ingest"
)

// Server wires the booking, handover and tracking surfaces onto one router.
// Kafka is optional; without brokers the ingest pipeline is simply skipped.
type Server struct {
	Bookings  *booking.Service
	Verifier  *handover.Verifier
	Hub       *hub.RoomHub
	Kafka     *ingest.KafkaProducer
	LastKnown geo.LastKnown
	Auth      *auth.Manager

	logger *slog.Logger
	mux    *mux.Router
}

func NewServer(bookings *booking.Service, verifier *handover.Verifier, h *hub.RoomHub, kafka *ingest.KafkaProducer, lastKnown geo.LastKnown, authMgr *auth.Manager, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		Bookings:  bookings,
		Verifier:  verifier,
		Hub:       h,
		Kafka:     kafka,
		LastKnown: lastKnown,
		Auth:      authMgr,
		logger:    logger,
		mux:       mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.mux.PathPrefix("/api/v1").Subrouter()
	api.Use(s.authMiddleware)
	api.HandleFunc("/bookings", s.handleCreateBooking).Methods("POST")
	api.HandleFunc("/bookings", s.handleListBookings).Methods("GET")
	api.HandleFunc("/bookings/{id}", s.handleGetBooking).Methods("GET")
	api.HandleFunc("/bookings/{id}/status", s.handleUpdateStatus).Methods("PATCH")
	api.HandleFunc("/handover/verify", s.handleVerifyCredential).Methods("POST")
	api.HandleFunc("/bookings/{id}/handover/{step}/evidence", s.handleSubmitEvidence).Methods("POST")
	api.HandleFunc("/bookings/{id}/location", s.handlePushLocation).Methods("POST")
	api.HandleFunc("/bookings/{id}/location", s.handleLastKnown).Methods("GET")

	s.mux.HandleFunc("/ws/tracking", s.handleWS)
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }
