package placement

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kelsiar/fasttravel/internal/config"
	"github.com/kelsiar/fasttravel/internal/game"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubNav struct {
	hitRadius float64
	hit       game.Position
	radii     []float64
}

func (s *stubNav) Sample(_ game.Position, radius float64) (game.Position, bool) {
	s.radii = append(s.radii, radius)
	if s.hitRadius > 0 && radius >= s.hitRadius {
		return s.hit, true
	}
	return game.Position{}, false
}

type stubPhysics struct {
	down    func(origin game.Position) (game.RaycastHit, bool)
	up      func(origin game.Position) (game.RaycastHit, bool)
	overlap func(center game.Position, radius float64) bool

	downCalls int
	upCalls   int
}

func (s *stubPhysics) RaycastDown(origin game.Position, _ float64) (game.RaycastHit, bool) {
	s.downCalls++
	if s.down == nil {
		return game.RaycastHit{}, false
	}
	return s.down(origin)
}

func (s *stubPhysics) RaycastUp(origin game.Position, _ float64) (game.RaycastHit, bool) {
	s.upCalls++
	if s.up == nil {
		return game.RaycastHit{}, false
	}
	return s.up(origin)
}

func (s *stubPhysics) OverlapSphere(center game.Position, radius float64) bool {
	if s.overlap == nil {
		return false
	}
	return s.overlap(center, radius)
}

type stubWorld struct {
	objects map[string]game.Position
}

func (s *stubWorld) FindControlledActor() (game.Actor, bool) {
	return nil, false
}

func (s *stubWorld) FindByName(pattern string) (game.Position, bool) {
	p, ok := s.objects[pattern]
	return p, ok
}

func newTestProber(nav game.NavMesh, physics game.Physics, world game.WorldQuery) *Prober {
	if nav == nil {
		nav = &stubNav{}
	}
	if physics == nil {
		physics = &stubPhysics{}
	}
	if world == nil {
		world = &stubWorld{}
	}
	return NewProber(nav, physics, world, config.Default().Placement, discardLogger())
}

func TestFindGroundPrefersNavMesh(t *testing.T) {
	nav := &stubNav{hitRadius: 15, hit: game.Position{X: 12, Y: 1, Z: 8}}
	physics := &stubPhysics{}
	p := newTestProber(nav, physics, nil)

	candidate, err := p.FindGround(game.Position{X: 10, Y: 0, Z: 10})
	require.NoError(t, err)

	assert.Equal(t, SourceNavMesh, candidate.Source)
	assert.Equal(t, game.Position{X: 12, Y: 1, Z: 8}, candidate.Position)
	assert.True(t, candidate.HasGroundY)
	assert.Equal(t, 1.0, candidate.GroundY)

	assert.Equal(t, []float64{5, 15}, nav.radii, "search stops at the first radius that samples")
	assert.Zero(t, physics.downCalls, "raycasts must not run when the navmesh answered")
	assert.Zero(t, physics.upCalls)
}

func TestFindGroundRaycastDown(t *testing.T) {
	physics := &stubPhysics{
		down: func(origin game.Position) (game.RaycastHit, bool) {
			return game.RaycastHit{Point: origin.WithY(3)}, true
		},
	}
	p := newTestProber(nil, physics, nil)

	candidate, err := p.FindGround(game.Position{X: 4, Y: 10, Z: 4})
	require.NoError(t, err)

	assert.Equal(t, SourceRaycastDown, candidate.Source)
	assert.Equal(t, 1, physics.downCalls, "first probe already hits")
	assert.InDelta(t, 3.5, candidate.Position.Y, 1e-9, "clearance is added above the surface")
	assert.Equal(t, 3.0, candidate.GroundY)
}

func TestFindGroundRaycastUp(t *testing.T) {
	physics := &stubPhysics{
		up: func(origin game.Position) (game.RaycastHit, bool) {
			return game.RaycastHit{Point: origin.WithY(2)}, true
		},
	}
	p := newTestProber(nil, physics, nil)

	candidate, err := p.FindGround(game.Position{X: 4, Y: 10, Z: 4})
	require.NoError(t, err)

	assert.Equal(t, SourceRaycastUp, candidate.Source)
	assert.InDelta(t, 2.5, candidate.Position.Y, 1e-9)
}

func TestFindGroundGridScan(t *testing.T) {
	hint := game.Position{X: 4, Y: 0, Z: 4}
	physics := &stubPhysics{
		down: func(origin game.Position) (game.RaycastHit, bool) {
			// Only columns away from the hint have ground.
			if origin.X == hint.X && origin.Z == hint.Z {
				return game.RaycastHit{}, false
			}
			return game.RaycastHit{Point: origin.WithY(1)}, true
		},
	}
	p := newTestProber(nil, physics, nil)

	candidate, err := p.FindGround(hint)
	require.NoError(t, err)

	assert.Equal(t, SourceGridScan, candidate.Source)
	assert.InDelta(t, 1.5, candidate.Position.Y, 1e-9)
	assert.InDelta(t, 1.0, game.HorizontalDistance(candidate.Position, hint), 1e-9, "nearest offset wins")
}

func TestFindGroundSpawnAnchorFallback(t *testing.T) {
	world := &stubWorld{objects: map[string]game.Position{
		"PlayerSpawn": {X: 50, Y: 2, Z: 50},
	}}
	p := newTestProber(nil, nil, world)

	candidate, err := p.FindGround(game.Position{X: 4, Y: 0, Z: 4})
	require.NoError(t, err)

	assert.Equal(t, SourceSpawnAnchor, candidate.Source)
	assert.Equal(t, game.Position{X: 50, Y: 2, Z: 50}, candidate.Position)
}

func TestFindGroundExhausted(t *testing.T) {
	p := newTestProber(nil, nil, nil)

	_, err := p.FindGround(game.Position{X: 4, Y: 0, Z: 4})
	assert.ErrorIs(t, err, ErrNoGround)

	trace, ok := p.LastTrace()
	require.True(t, ok)
	assert.Nil(t, trace.Result)
	assert.NotEmpty(t, trace.Attempts)
}

func TestLastTraceRecordsResult(t *testing.T) {
	nav := &stubNav{hitRadius: 5, hit: game.Position{X: 1, Y: 0, Z: 1}}
	p := newTestProber(nav, nil, nil)

	_, err := p.FindGround(game.Position{X: 1, Y: 0, Z: 1})
	require.NoError(t, err)

	trace, ok := p.LastTrace()
	require.True(t, ok)
	require.NotNil(t, trace.Result)
	assert.Equal(t, SourceNavMesh, trace.Result.Source)
	assert.Len(t, trace.Attempts, 1)
}

func TestSignedOffsets(t *testing.T) {
	assert.Equal(t, []float64{0, 1, -1, 2, -2}, signedOffsets([]float64{0, 1, 2}))
}
