package placement

import (
	"log/slog"

	"github.com/kelsiar/fasttravel/internal/config"
	"github.com/kelsiar/fasttravel/internal/game"
)

// Resolver nudges a candidate out of intersecting geometry. It raises the
// position in fixed steps up to a bounded maximum; when no clear height is
// found within the bound it returns the original candidate and leaves the
// decision to the caller. Aborting here would strand a request the player may
// already have paid for, so the orchestrator proceeds with a warning.
type Resolver struct {
	physics game.Physics
	cfg     config.Overlap
	logger  *slog.Logger
}

func NewResolver(physics game.Physics, cfg config.Overlap, logger *slog.Logger) *Resolver {
	return &Resolver{
		physics: physics,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "overlap")),
	}
}

// Resolve returns a clear position for the candidate, raised at most
// MaxRaiseGrounded above the input for grounded candidates and MaxRaise
// otherwise. footprintRadius <= 0 falls back to the configured footprint.
func (r *Resolver) Resolve(candidate Candidate, footprintRadius float64) game.Position {
	radius := footprintRadius
	if radius <= 0 {
		radius = r.cfg.FootprintRadius
	}

	if !r.physics.OverlapSphere(candidate.Position, radius) {
		return candidate.Position
	}

	maxRaise := r.cfg.MaxRaise
	if candidate.Grounded() {
		maxRaise = r.cfg.MaxRaiseGrounded
	}

	const epsilon = 1e-9
	for raise := r.cfg.RaiseStep; raise <= maxRaise+epsilon; raise += r.cfg.RaiseStep {
		raised := candidate.Position.Add(0, raise, 0)
		if !r.physics.OverlapSphere(raised, radius) {
			return raised
		}
	}

	r.logger.Warn("Candidate still embedded after raise bound",
		slog.Any("position", candidate.Position),
		slog.String("source", candidate.Source.String()),
		slog.Float64("maxRaise", maxRaise))
	return candidate.Position
}
