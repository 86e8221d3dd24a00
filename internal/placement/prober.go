package placement

import (
	"errors"
	"log/slog"
	"time"

	"github.com/kelsiar/fasttravel/internal/config"
	"github.com/kelsiar/fasttravel/internal/game"
)

var ErrNoGround = errors.New("no walkable ground near hint")

// Prober finds walkable ground near a hinted point. Hints usually come from
// destination config of unknown quality, so the search runs a cascade of
// strategies, first success wins:
//
//  1. navigation-mesh sampling within an expanding radius set
//  2. vertical raycast scan above and below the hint
//  3. horizontal grid scan of nearby columns
//  4. conventional spawn-anchor names via world query
type Prober struct {
	nav     game.NavMesh
	physics game.Physics
	world   game.WorldQuery
	cfg     config.Placement
	logger  *slog.Logger

	traces traceRecorder
}

func NewProber(nav game.NavMesh, physics game.Physics, world game.WorldQuery, cfg config.Placement, logger *slog.Logger) *Prober {
	return &Prober{
		nav:     nav,
		physics: physics,
		world:   world,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "prober")),
	}
}

// LastTrace returns a copy of the most recently finished search.
func (p *Prober) LastTrace() (Trace, bool) {
	return p.traces.lastTrace()
}

func (p *Prober) FindGround(hint game.Position) (Candidate, error) {
	trace := &Trace{Hint: hint, Started: time.Now()}
	defer p.traces.store(trace)

	if candidate, ok := p.sampleNavMesh(hint, trace); ok {
		trace.Result = &candidate
		return candidate, nil
	}

	if candidate, ok := p.verticalScan(hint, trace); ok {
		trace.Result = &candidate
		return candidate, nil
	}

	if candidate, ok := p.gridScan(hint, trace); ok {
		trace.Result = &candidate
		return candidate, nil
	}

	if candidate, ok := p.spawnAnchorFallback(trace); ok {
		trace.Result = &candidate
		return candidate, nil
	}

	p.logger.Debug("Ground search exhausted",
		slog.Any("hint", hint),
		slog.Int("attempts", len(trace.Attempts)))
	return Candidate{}, ErrNoGround
}

func (p *Prober) sampleNavMesh(hint game.Position, trace *Trace) (Candidate, bool) {
	for _, radius := range p.cfg.NavMeshRadii {
		pos, ok := p.nav.Sample(hint, radius)
		trace.record("navmesh", pos, ok)
		if !ok {
			continue
		}

		return Candidate{
			Position:   pos,
			Source:     SourceNavMesh,
			GroundY:    pos.Y,
			HasGroundY: true,
		}, true
	}
	return Candidate{}, false
}

// verticalScan probes down from above the hint and up from below it, walking
// the probe origins outward one unit at a time. The first surface hit wins,
// with a fixed clearance added above it.
func (p *Prober) verticalScan(hint game.Position, trace *Trace) (Candidate, bool) {
	reach := p.cfg.VerticalReach

	for offset := 0.0; offset <= float64(p.cfg.VerticalScanSteps); offset++ {
		downOrigin := hint.WithY(hint.Y + reach + offset)
		hit, ok := p.physics.RaycastDown(downOrigin, p.cfg.RayLength)
		trace.record("raycast-down", downOrigin, ok)
		if ok {
			return p.groundedCandidate(hit.Point, SourceRaycastDown), true
		}

		upOrigin := hint.WithY(hint.Y - reach - offset)
		hit, ok = p.physics.RaycastUp(upOrigin, p.cfg.RayLength)
		trace.record("raycast-up", upOrigin, ok)
		if ok {
			return p.groundedCandidate(hit.Point, SourceRaycastUp), true
		}
	}

	return Candidate{}, false
}

// gridScan probes a small grid of columns around the hint, each with a
// downward raycast.
func (p *Prober) gridScan(hint game.Position, trace *Trace) (Candidate, bool) {
	for _, dx := range signedOffsets(p.cfg.GridOffsets) {
		for _, dz := range signedOffsets(p.cfg.GridOffsets) {
			if dx == 0 && dz == 0 {
				// Covered by the vertical scan already.
				continue
			}

			origin := game.Position{
				X: hint.X + dx,
				Y: hint.Y + p.cfg.VerticalReach,
				Z: hint.Z + dz,
			}
			hit, ok := p.physics.RaycastDown(origin, p.cfg.RayLength)
			trace.record("grid-scan", origin, ok)
			if ok {
				return p.groundedCandidate(hit.Point, SourceGridScan), true
			}
		}
	}

	return Candidate{}, false
}

func (p *Prober) spawnAnchorFallback(trace *Trace) (Candidate, bool) {
	for _, name := range p.cfg.SpawnAnchorNames {
		pos, ok := p.world.FindByName(name)
		trace.record("spawn-anchor", pos, ok)
		if !ok {
			continue
		}

		p.logger.Info("Falling back to spawn anchor", slog.String("anchor", name))
		return Candidate{
			Position:   pos,
			Source:     SourceSpawnAnchor,
			GroundY:    pos.Y,
			HasGroundY: true,
		}, true
	}
	return Candidate{}, false
}

func (p *Prober) groundedCandidate(surface game.Position, source Source) Candidate {
	return Candidate{
		Position:   surface.WithY(surface.Y + p.cfg.GroundClearance),
		Source:     source,
		GroundY:    surface.Y,
		HasGroundY: true,
	}
}

// signedOffsets expands {0,1,2} into {0,1,-1,2,-2}.
func signedOffsets(offsets []float64) []float64 {
	out := make([]float64, 0, len(offsets)*2)
	for _, off := range offsets {
		out = append(out, off)
		if off != 0 {
			out = append(out, -off)
		}
	}
	return out
}
