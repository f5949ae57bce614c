package geo

import (
	"math"
	"sync"

	"github.com/DevBasitali/swiftride-mobile-sub000/internal/models"
)

// LastKnown stores the most recent location sample per booking. The value is
// overwritten on every accepted sample; history lives in the ingest topic.
type LastKnown interface {
	Set(bookingID string, s models.LocationSample) error
	Get(bookingID string) (models.LocationSample, bool)
}

type MemoryLastKnown struct {
	mu      sync.RWMutex
	samples map[string]models.LocationSample
}

func NewMemoryLastKnown() *MemoryLastKnown {
	return &MemoryLastKnown{samples: make(map[string]models.LocationSample)}
}

func (m *MemoryLastKnown) Set(bookingID string, s models.LocationSample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// latest-sample-wins: an older fix never replaces a newer one
	if prev, ok := m.samples[bookingID]; ok && !s.CapturedAt.After(prev.CapturedAt) {
		return nil
	}
	m.samples[bookingID] = s
	return nil
}

func (m *MemoryLastKnown) Get(bookingID string) (models.LocationSample, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.samples[bookingID]
	return s, ok
}

// Haversine distance in meters
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	const R = 6371000.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}
