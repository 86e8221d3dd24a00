package placement

import "github.com/kelsiar/fasttravel/internal/game"

// Source records which strategy of the grounding cascade produced a
// candidate.
type Source uint8

const (
	SourceUserSupplied Source = iota
	SourceNavMesh
	SourceRaycastDown
	SourceRaycastUp
	SourceGridScan
	SourceSpawnAnchor
)

func (s Source) String() string {
	switch s {
	case SourceUserSupplied:
		return "user-supplied"
	case SourceNavMesh:
		return "navmesh"
	case SourceRaycastDown:
		return "raycast-down"
	case SourceRaycastUp:
		return "raycast-up"
	case SourceGridScan:
		return "grid-scan"
	case SourceSpawnAnchor:
		return "spawn-anchor"
	default:
		return "unknown"
	}
}

// Candidate is a position produced by the grounding cascade. Immutable;
// consumed once by the overlap resolver.
type Candidate struct {
	Position game.Position
	Source   Source

	// GroundY is the identified ground surface height, when one was found.
	GroundY    float64
	HasGroundY bool
}

// Grounded reports whether the candidate was produced by the grounding
// cascade rather than taken verbatim from caller-supplied data.
func (c Candidate) Grounded() bool {
	return c.Source != SourceUserSupplied
}
