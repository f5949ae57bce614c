// Package hub fans location-update events out to the websocket clients
// subscribed to a booking's tracking room.
package hub

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/DevBasitali/swiftride-mobile-sub000/internal/transport"
)

// session is one connected client. gorilla allows a single concurrent
// writer, hence the mutex.
type session struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *session) send(ev transport.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(ev)
}

// RoomHub tracks which connection is in which tracking room. A connection
// may be in at most one room; joining another implicitly leaves the first.
type RoomHub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*session]struct{}
	members map[*session]string
	logger  *slog.Logger
}

func NewRoomHub(logger *slog.Logger) *RoomHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &RoomHub{
		rooms:   make(map[string]map[*session]struct{}),
		members: make(map[*session]string),
		logger:  logger,
	}
}

// Add registers a raw websocket connection and returns its handle.
func (h *RoomHub) Add(conn *websocket.Conn) *Session {
	return &Session{hub: h, s: &session{conn: conn}}
}

// Session is the public handle the websocket handler holds per connection.
type Session struct {
	hub *RoomHub
	s   *session
}

// Join moves the session into the room for bookingID.
func (s *Session) Join(bookingID string) {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if prev, ok := h.members[s.s]; ok {
		h.leaveLocked(s.s, prev)
	}
	if h.rooms[bookingID] == nil {
		h.rooms[bookingID] = make(map[*session]struct{})
	}
	h.rooms[bookingID][s.s] = struct{}{}
	h.members[s.s] = bookingID
}

// Remove drops the session from its room on disconnect.
func (s *Session) Remove() {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if room, ok := h.members[s.s]; ok {
		h.leaveLocked(s.s, room)
	}
}

func (h *RoomHub) leaveLocked(s *session, room string) {
	if members, ok := h.rooms[room]; ok {
		delete(members, s)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(h.members, s)
}

// Broadcast sends the event to every member of the booking's room. Failed
// writes evict the member; a slow consumer only costs itself.
func (h *RoomHub) Broadcast(ev transport.Event) {
	h.mu.RLock()
	members := make([]*session, 0, len(h.rooms[ev.BookingID]))
	for s := range h.rooms[ev.BookingID] {
		members = append(members, s)
	}
	h.mu.RUnlock()

	for _, s := range members {
		if err := s.send(ev); err != nil {
			h.logger.Debug("ws send failed, evicting member", "booking_id", ev.BookingID, "error", err)
			h.mu.Lock()
			h.leaveLocked(s, ev.BookingID)
			h.mu.Unlock()
		}
	}
}

// RoomSize reports the member count of a room.
func (h *RoomHub) RoomSize(bookingID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[bookingID])
}
