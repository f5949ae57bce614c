package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/DevBasitali/swiftride-mobile-sub000/internal/models"
)

// HTTPFallback pushes single samples to the location endpoint when the
// duplex channel is down (backgrounded process, dropped connection). The
// payload shape matches the channel events so the consumer side stays
// channel-agnostic.
type HTTPFallback struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewHTTPFallback(baseURL, bearerToken string) *HTTPFallback {
	return &HTTPFallback{BaseURL: baseURL, Token: bearerToken, Client: &http.Client{Timeout: 3 * time.Second}}
}

func (f *HTTPFallback) Push(ctx context.Context, bookingID string, s models.LocationSample) error {
	body, _ := json.Marshal(LocationEvent(bookingID, s))
	url := fmt.Sprintf("%s/api/v1/bookings/%s/location", f.BaseURL, bookingID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if f.Token != "" {
		req.Header.Set("Authorization", "Bearer "+f.Token)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("location push rejected: %s", resp.Status)
	}
	return nil
}
