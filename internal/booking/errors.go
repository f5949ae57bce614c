package booking

import (
	"errors"
	"fmt"

	"github.com/DevBasitali/swiftride-mobile-sub000/internal/models"
)

var (
	ErrNotFound = errors.New("booking not found")

	// ErrNotAllowed means the acting party may not request this transition.
	ErrNotAllowed = errors.New("transition not allowed for this role")

	// ErrStale is returned by stores when the booking changed under us.
	ErrStale = errors.New("booking status changed concurrently")
)

// InvalidTransitionError reports a status change outside the legal graph.
// The booking is left untouched; retrying with the same target cannot succeed.
type InvalidTransitionError struct {
	From models.BookingStatus
	To   models.BookingStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s", e.From, e.To)
}

// IsInvalidTransition reports whether err wraps an InvalidTransitionError.
func IsInvalidTransition(err error) bool {
	var ite *InvalidTransitionError
	return errors.As(err, &ite)
}
