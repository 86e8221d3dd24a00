package travel

import (
	"errors"

	"github.com/kelsiar/fasttravel/internal/game"
)

// ErrAlreadyInFlight is returned when a request arrives while another is in
// flight. By policy this is a rejected precondition, not a failure: the
// caller ignores it silently.
var ErrAlreadyInFlight = errors.New("teleport already in flight")

type Reason uint8

const (
	ReasonNone Reason = iota
	ReasonInsufficientFunds
	ReasonLoadTimeout
	ReasonSceneLoadRejected
	ReasonPlacementFailed
	ReasonAlreadyInFlight
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonInsufficientFunds:
		return "insufficient-funds"
	case ReasonLoadTimeout:
		return "load-timeout"
	case ReasonSceneLoadRejected:
		return "scene-load-rejected"
	case ReasonPlacementFailed:
		return "placement-failed"
	case ReasonAlreadyInFlight:
		return "already-in-flight"
	default:
		return "unknown"
	}
}

// Outcome is the single terminal value of a teleport request.
type Outcome struct {
	Succeeded     bool
	FinalPosition *game.Position
	Reason        Reason

	// Charged is false on the soft-success path where the move landed but
	// the debit afterwards failed.
	Charged bool
}

// Message is the short inline status shown to the player.
func (o Outcome) Message() string {
	if o.Succeeded {
		return ""
	}
	switch o.Reason {
	case ReasonInsufficientFunds:
		return "not enough resources to travel"
	case ReasonLoadTimeout:
		return "Teleport failed (timeout)"
	default:
		return "Teleport failed"
	}
}
