package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/DevBasitali/swiftride-mobile-sub000/internal/models"
	"github.com/DevBasitali/swiftride-mobile-sub000/internal/transport"
)

var upgrader = websocket.Upgrader{}

// handleWS serves the duplex tracking channel. Producers emit
// location-update events, consumers send join-tracking and receive the
// room's updates. A connection sits in at most one room.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actorFromRequest(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "upgrade failed", http.StatusBadRequest)
		return
	}
	sess := s.Hub.Add(conn)
	defer func() {
		sess.Remove()
		_ = conn.Close()
	}()

	for {
		var ev transport.Event
		if err := conn.ReadJSON(&ev); err != nil {
			return
		}
		switch ev.Type {
		case transport.EventJoinTracking:
			if ev.BookingID == "" {
				continue
			}
			sess.Join(ev.BookingID)
		case transport.EventLocationUpdate:
			if ev.BookingID == "" {
				continue
			}
			// same precondition as the HTTP fallback: only the renter of an
			// ongoing booking produces samples
			b, err := s.Bookings.Get(r.Context(), ev.BookingID)
			if err != nil || actor.UserID != b.RenterID || b.Status != models.StatusOngoing {
				continue
			}
			if ev.CapturedAt.IsZero() {
				ev.CapturedAt = time.Now().UTC()
			}
			s.acceptSample(ev)
		}
	}
}
