package transport

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/DevBasitali/swiftride-mobile-sub000/internal/models"
)

// WSChannel is the duplex room channel over a websocket. One connection per
// device; writes are serialized behind a mutex because gorilla connections
// allow a single concurrent writer.
type WSChannel struct {
	url    string
	header http.Header
	dialer *websocket.Dialer
	logger *slog.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	room    string
	updates chan Event
}

func NewWSChannel(url, bearerToken string, logger *slog.Logger) *WSChannel {
	h := http.Header{}
	if bearerToken != "" {
		h.Set("Authorization", "Bearer "+bearerToken)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WSChannel{url: url, header: h, dialer: websocket.DefaultDialer, logger: logger}
}

func (c *WSChannel) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}
	conn, _, err := c.dialer.DialContext(ctx, c.url, c.header)
	if err != nil {
		return ErrChannelUnavailable
	}
	c.conn = conn
	c.updates = make(chan Event, 64)
	go c.readPump(conn, c.updates)
	return nil
}

// readPump delivers inbound location-update events until the connection
// drops, then marks the channel disconnected.
func (c *WSChannel) readPump(conn *websocket.Conn, updates chan Event) {
	defer close(updates)
	for {
		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			c.mu.Lock()
			if c.conn == conn {
				c.conn = nil
				c.room = ""
			}
			c.mu.Unlock()
			return
		}
		if ev.Type != EventLocationUpdate {
			continue
		}
		select {
		case updates <- ev:
		default:
			// consumer is slow; latest-wins, drop
		}
	}
}

func (c *WSChannel) JoinRoom(ctx context.Context, bookingID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrChannelUnavailable
	}
	if c.room == bookingID {
		return nil
	}
	if err := c.conn.WriteJSON(Event{Type: EventJoinTracking, BookingID: bookingID}); err != nil {
		return ErrChannelUnavailable
	}
	c.room = bookingID
	return nil
}

func (c *WSChannel) Emit(ctx context.Context, bookingID string, s models.LocationSample) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrChannelUnavailable
	}
	if err := c.conn.WriteJSON(LocationEvent(bookingID, s)); err != nil {
		return ErrChannelUnavailable
	}
	return nil
}

func (c *WSChannel) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.room = ""
	return err
}

func (c *WSChannel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Updates exposes inbound samples for the consumer side (the host's map
// view). The channel closes when the connection drops.
func (c *WSChannel) Updates() <-chan Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updates
}
