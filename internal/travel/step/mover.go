// Package step holds the low-level actions the orchestrator sequences. A
// step talks to the engine directly and reports failure through errors; the
// policy of what a failure means belongs to the caller.
package step

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelsiar/fasttravel/internal/config"
	"github.com/kelsiar/fasttravel/internal/game"
)

var (
	ErrActorNotFound = errors.New("controlled actor not found")
	ErrSettleTimeout = errors.New("actor did not settle near the target")
)

// Mover writes the actor to a target position without fighting the engine's
// movement systems: the nav agent sync and the denylisted movement bodies are
// suspended around the write and restored afterwards.
type Mover struct {
	world  game.WorldQuery
	cfg    *config.Config
	logger *slog.Logger

	// sleep is swapped out in tests.
	sleep func(d time.Duration)
}

func NewMover(world game.WorldQuery, cfg *config.Config, logger *slog.Logger) *Mover {
	return &Mover{
		world:  world,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "mover")),
		sleep:  time.Sleep,
	}
}

// Move relocates the controlled actor to target and blocks until it settled
// within the configured distance. Suspended systems are restored on every
// return path, including errors.
func (m *Mover) Move(ctx context.Context, target game.Position) error {
	actor, found := m.world.FindControlledActor()
	if !found {
		return ErrActorNotFound
	}

	if agent, ok := actor.NavAgent(); ok && agent.SyncEnabled() {
		agent.SetSyncEnabled(false)
		defer agent.SetSyncEnabled(true)
	}

	for _, body := range actor.Bodies() {
		body.ZeroVelocity()
	}

	suspended := m.suspendMovementBodies(actor)
	defer m.resumeMovementBodies(suspended)

	if err := m.writePosition(actor, target); err != nil {
		return err
	}

	return m.waitForSettle(ctx, actor, target)
}

// suspendMovementBodies disables every driven body whose name matches the
// movement denylist and returns the list for later restore.
func (m *Mover) suspendMovementBodies(actor game.Actor) []game.Body {
	var suspended []game.Body
	for _, body := range actor.Bodies() {
		if !body.Driven() || !m.isMovementBody(body.Name()) {
			continue
		}
		body.SetDriven(false)
		suspended = append(suspended, body)
		m.logger.Debug("Suspended movement body", slog.String("body", body.Name()))
	}
	return suspended
}

func (m *Mover) resumeMovementBodies(suspended []game.Body) {
	if len(suspended) == 0 {
		return
	}

	// Give the physics a moment at the new position before movement scripts
	// take over again.
	m.sleep(m.cfg.Mover.ResumeDelay())
	for _, body := range suspended {
		body.SetDriven(true)
	}
}

func (m *Mover) isMovementBody(name string) bool {
	lower := strings.ToLower(name)
	for _, pattern := range m.cfg.Mover.MovementDenylist {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

// writePosition prefers the nav agent warp, which keeps the agent's internal
// state consistent with the new location. The raw transform write is the
// fallback.
func (m *Mover) writePosition(actor game.Actor, target game.Position) error {
	if agent, ok := actor.NavAgent(); ok {
		err := agent.Warp(target)
		if err == nil {
			return nil
		}
		m.logger.Debug("Agent warp failed, writing transform directly", slog.Any("error", err))
	}

	if err := actor.SetPosition(target); err != nil {
		return fmt.Errorf("write actor position: %w", err)
	}
	return nil
}

func (m *Mover) waitForSettle(ctx context.Context, actor game.Actor, target game.Position) error {
	deadline := time.Now().Add(m.cfg.Travel.SettleTimeout())

	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if game.Distance(actor.Position(), target) <= m.cfg.Mover.SettleDistance {
			return nil
		}
		m.sleep(m.cfg.Mover.SettlePoll())
	}

	return fmt.Errorf("%w after %s", ErrSettleTimeout, m.cfg.Travel.SettleTimeout())
}
