package models

import "time"

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// BookingStatus values are mutually exclusive; completed and cancelled are terminal.
type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusConfirmed BookingStatus = "confirmed"
	StatusOngoing   BookingStatus = "ongoing"
	StatusCompleted BookingStatus = "completed"
	StatusCancelled BookingStatus = "cancelled"
)

func (s BookingStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// StatusChange is one entry of a booking's append-only status timeline.
type StatusChange struct {
	Status    BookingStatus `json:"status"`
	ChangedAt time.Time     `json:"changed_at"`
	Note      string        `json:"note,omitempty"`
}

type Booking struct {
	ID       string `json:"id"`
	RenterID string `json:"renter_id"`
	HostID   string `json:"host_id"`
	CarID    string `json:"car_id"`

	Status BookingStatus `json:"status"`

	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`

	// Financial summary is owned by the billing backend; read-only here.
	TotalPrice int64  `json:"total_price"`
	Currency   string `json:"currency"`
	Paid       bool   `json:"paid"`

	Timeline []StatusChange `json:"timeline"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HandoverStep identifies which physical exchange a handover record proves.
type HandoverStep string

const (
	StepPickup HandoverStep = "pickup"
	StepReturn HandoverStep = "return"
)

// MinEvidencePhotos is the smallest photo set accepted for a handover.
const MinEvidencePhotos = 4

// HandoverRecord is transient until verification succeeds, immutable after.
type HandoverRecord struct {
	ID          string       `json:"id"`
	BookingID   string       `json:"booking_id"`
	Step        HandoverStep `json:"step"`
	PhotoRefs   []string     `json:"photo_refs"`
	Credential  string       `json:"-"`
	CompletedAt time.Time    `json:"completed_at"`
}

// LocationSample is one position fix produced by the renter's device.
type LocationSample struct {
	BookingID  string    `json:"booking_id,omitempty"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	Heading    float64   `json:"heading,omitempty"`
	SpeedMps   float64   `json:"speed_mps,omitempty"`
	CapturedAt time.Time `json:"captured_at"`
}

func (s LocationSample) Point() Point { return Point{Lat: s.Lat, Lng: s.Lng} }
