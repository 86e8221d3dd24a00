package travel

import (
	"fmt"

	"github.com/kelsiar/fasttravel/internal/game"
)

// resolutionStrategy decides where the landing hint comes from. It is chosen
// once at request time, so the timeout/refund logic of the state machine is
// written exactly once regardless of how the destination resolves.
type resolutionStrategy interface {
	name() string
	// sceneToLoad returns the scene that must become active first, or "".
	sceneToLoad() string
	// resolveHint resolves the landing hint once the scene is ready.
	resolveHint() (game.Position, error)
}

// sameSceneStrategy serves destinations that resolve inside the active scene.
type sameSceneStrategy struct {
	dest   Destination
	scenes game.ScenePort
}

func (s sameSceneStrategy) name() string        { return "same-scene" }
func (s sameSceneStrategy) sceneToLoad() string { return "" }

func (s sameSceneStrategy) resolveHint() (game.Position, error) {
	return resolveInScene(s.dest, s.scenes)
}

// sceneLoadStrategy serves destinations in a scene that is not active yet.
// The hint is resolved only after the load completed, against the newly
// active scene.
type sceneLoadStrategy struct {
	dest   Destination
	scenes game.ScenePort
}

func (s sceneLoadStrategy) name() string        { return "scene-load" }
func (s sceneLoadStrategy) sceneToLoad() string { return s.dest.SceneID }

func (s sceneLoadStrategy) resolveHint() (game.Position, error) {
	return resolveInScene(s.dest, s.scenes)
}

// legacyStrategy serves destinations lacking scene metadata entirely: the
// landing point is looked up by object name in the live world.
type legacyStrategy struct {
	dest  Destination
	world game.WorldQuery
}

func (s legacyStrategy) name() string        { return "legacy-lookup" }
func (s legacyStrategy) sceneToLoad() string { return "" }

func (s legacyStrategy) resolveHint() (game.Position, error) {
	pattern := s.dest.AnchorName
	if pattern == "" {
		pattern = s.dest.Name
	}
	if pattern == "" {
		return game.Position{}, ErrUnresolvableDestination
	}

	if pos, ok := s.world.FindByName(pattern); ok {
		return pos, nil
	}
	return game.Position{}, fmt.Errorf("no world object matches %q: %w", pattern, ErrUnresolvableDestination)
}

func resolveInScene(dest Destination, scenes game.ScenePort) (game.Position, error) {
	if dest.AnchorName != "" {
		if pos, ok := scenes.FindAnchor(dest.AnchorName); ok {
			return pos, nil
		}
		// Anchor missing from the loaded scene, fall back to configured
		// coordinates when present.
	}
	if dest.Coords != nil {
		return *dest.Coords, nil
	}
	return game.Position{}, fmt.Errorf("destination %q: %w", dest.Name, ErrUnresolvableDestination)
}

func selectStrategy(dest Destination, scenes game.ScenePort, world game.WorldQuery) resolutionStrategy {
	if dest.SceneID != "" && !scenes.IsSceneActive(dest.SceneID) {
		return sceneLoadStrategy{dest: dest, scenes: scenes}
	}
	if dest.SceneID == "" && dest.Coords == nil {
		return legacyStrategy{dest: dest, world: world}
	}
	return sameSceneStrategy{dest: dest, scenes: scenes}
}
