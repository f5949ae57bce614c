// Package handover gates the confirmed->ongoing and ongoing->completed
// booking transitions on proof of physical key exchange: a single-use scanned
// credential plus a minimum set of photos.
package handover

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/DevBasitali/swiftride-mobile-sub000/internal/models"
)

var (
	// ErrInvalidCredential covers malformed, already-consumed and
	// wrong-state tokens alike so a scanner cannot probe which it was.
	ErrInvalidCredential = errors.New("invalid handover credential")

	// ErrInsufficientEvidence means fewer photos than the required minimum.
	ErrInsufficientEvidence = errors.New("insufficient handover evidence")

	// ErrTransitionRejected means the evidence was fine but the booking
	// moved concurrently (e.g. cancelled mid-scan). The evidence is not
	// authoritative and the caller must not treat it as accepted.
	ErrTransitionRejected = errors.New("booking transition rejected")
)

// Credential is the decoded form of a scanned token.
type Credential struct {
	BookingID string              `json:"booking_id"`
	Step      models.HandoverStep `json:"step"`
	Nonce     string              `json:"nonce"`
}

// Decoder turns an opaque scanned token into a credential. The encoding rule
// is owned by the backend that mints the codes; only uniqueness and
// single-use semantics matter here.
type Decoder interface {
	Decode(token string) (Credential, error)
}

// Base64JSONDecoder decodes base64(JSON{booking_id, step, nonce}) tokens,
// the format the current backend prints into pickup/return QR codes.
type Base64JSONDecoder struct{}

func (Base64JSONDecoder) Decode(token string) (Credential, error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return Credential{}, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	var c Credential
	if err := json.Unmarshal(raw, &c); err != nil {
		return Credential{}, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	if c.BookingID == "" || c.Nonce == "" || (c.Step != models.StepPickup && c.Step != models.StepReturn) {
		return Credential{}, ErrInvalidCredential
	}
	return c, nil
}

// EncodeCredential is the inverse of Base64JSONDecoder, used by the backend
// when minting codes and by tests.
func EncodeCredential(c Credential) string {
	raw, _ := json.Marshal(c)
	return base64.StdEncoding.EncodeToString(raw)
}

// TokenStore enforces exactly-once consumption of credentials.
type TokenStore interface {
	// Consume marks the token used. It returns false if it was already
	// consumed; a first consumption returns true.
	Consume(ctx context.Context, token string) (bool, error)
}
