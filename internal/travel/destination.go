package travel

import (
	"errors"
	"time"

	"github.com/kelsiar/fasttravel/internal/game"
	"github.com/kelsiar/fasttravel/internal/scene"
)

// Destination is a named travel target. At least one of AnchorName or Coords
// must resolve to a position, unless SceneID names a scene other than the
// active one (the position is then resolved after the load) or Name matches a
// live world object (legacy lookup).
type Destination struct {
	Name       string
	SceneID    string
	AnchorName string
	Coords     *game.Position
	Cost       *int
}

var ErrUnresolvableDestination = errors.New("destination has no resolvable position")

func (d Destination) CostOrDefault(defaultCost int) int {
	if d.Cost != nil {
		return *d.Cost
	}
	return defaultCost
}

// Validate checks the destination invariant against the active scene. A bare
// Name passes: it may still resolve through the legacy world lookup.
func (d Destination) Validate(activeScene string) error {
	if d.Coords != nil || d.AnchorName != "" || d.Name != "" {
		return nil
	}
	if d.SceneID != "" && d.SceneID != activeScene {
		return nil
	}
	return ErrUnresolvableDestination
}

// EnsureScene fills in a guessed scene id for destinations that name an
// anchor but no scene, searching the registry outward from the active scene.
// The guess is an in-memory fix only; nothing is persisted.
func (d *Destination) EnsureScene(activeScene string, registry *scene.Registry) bool {
	if d.SceneID != "" || d.AnchorName == "" || registry == nil {
		return false
	}

	guessed, ok := registry.GuessScene(activeScene, d.AnchorName)
	if !ok {
		return false
	}
	d.SceneID = guessed
	return true
}

// Request is one accepted teleport request, owned exclusively by the
// in-flight orchestration run.
type Request struct {
	Destination Destination
	Cost        int
	RequestedAt time.Time
}
