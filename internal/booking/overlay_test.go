package booking

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/DevBasitali/swiftride-mobile-sub000/internal/models"
)

func TestOverlayLayersPendingStatusOnRead(t *testing.T) {
	o := NewPendingOverlay()
	canonical := []*models.Booking{
		{ID: "b1", Status: models.StatusPending},
		{ID: "b2", Status: models.StatusPending},
	}

	o.Propose("b1", models.StatusConfirmed)
	out := o.Apply(canonical)
	assert.Equal(t, models.StatusConfirmed, out[0].Status)
	assert.Equal(t, models.StatusPending, out[1].Status)

	// canonical slice untouched
	assert.Equal(t, models.StatusPending, canonical[0].Status)
}

func TestOverlayResolveRestoresCanonicalState(t *testing.T) {
	o := NewPendingOverlay()
	canonical := []*models.Booking{{ID: "b1", Status: models.StatusPending}}

	o.Propose("b1", models.StatusConfirmed)
	o.Resolve("b1")

	out := o.Apply(canonical)
	assert.Equal(t, models.StatusPending, out[0].Status)
	_, pending := o.Pending("b1")
	assert.False(t, pending)
}
