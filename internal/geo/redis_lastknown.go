package geo

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/DevBasitali/swiftride-mobile-sub000/internal/models"
)

// RedisLastKnown keeps the freshest sample per booking in Redis so every API
// replica serves the same "where is my car" answer. Positions also go into a
// GEO set keyed by car, which the fleet map queries.
type RedisLastKnown struct {
	client *redis.Client
	geoKey string
	ctx    context.Context
}

func NewRedisLastKnown(addr, password, geoKey string) *RedisLastKnown {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisLastKnown{client: c, geoKey: geoKey, ctx: context.Background()}
}

func (r *RedisLastKnown) Set(bookingID string, s models.LocationSample) error {
	if prev, ok := r.Get(bookingID); ok && !s.CapturedAt.After(prev.CapturedAt) {
		return nil
	}
	if _, err := r.client.GeoAdd(r.ctx, r.geoKey, &redis.GeoLocation{Longitude: s.Lng, Latitude: s.Lat, Name: bookingID}).Result(); err != nil {
		return err
	}
	return r.client.HSet(r.ctx, sampleKey(bookingID), map[string]interface{}{
		"lat":         strconv.FormatFloat(s.Lat, 'f', -1, 64),
		"lng":         strconv.FormatFloat(s.Lng, 'f', -1, 64),
		"heading":     strconv.FormatFloat(s.Heading, 'f', -1, 64),
		"speed_mps":   strconv.FormatFloat(s.SpeedMps, 'f', -1, 64),
		"captured_at": s.CapturedAt.UnixMilli(),
	}).Err()
}

func (r *RedisLastKnown) Get(bookingID string) (models.LocationSample, bool) {
	m, err := r.client.HGetAll(r.ctx, sampleKey(bookingID)).Result()
	if err != nil || len(m) == 0 {
		return models.LocationSample{}, false
	}
	s := models.LocationSample{BookingID: bookingID}
	s.Lat = parseFloat(m["lat"])
	s.Lng = parseFloat(m["lng"])
	s.Heading = parseFloat(m["heading"])
	s.SpeedMps = parseFloat(m["speed_mps"])
	if ms, err := strconv.ParseInt(m["captured_at"], 10, 64); err == nil {
		s.CapturedAt = time.UnixMilli(ms).UTC()
	}
	return s, true
}

func sampleKey(bookingID string) string { return "tracking:last:" + bookingID }

func parseFloat(v string) float64 {
	f, _ := strconv.ParseFloat(v, 64)
	return f
}
