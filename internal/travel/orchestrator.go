package travel

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/kelsiar/fasttravel/internal/config"
	"github.com/kelsiar/fasttravel/internal/event"
	"github.com/kelsiar/fasttravel/internal/game"
	"github.com/kelsiar/fasttravel/internal/placement"
	"github.com/kelsiar/fasttravel/internal/scene"
	"github.com/kelsiar/fasttravel/internal/travel/step"
)

type State int32

const (
	StateIdle State = iota
	StateFundsChecked
	StateSameScenePlacing
	StateSceneLoading
	StatePostLoadPlacing
	StateSettling
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFundsChecked:
		return "funds-checked"
	case StateSameScenePlacing:
		return "same-scene-placing"
	case StateSceneLoading:
		return "scene-loading"
	case StatePostLoadPlacing:
		return "post-load-placing"
	case StateSettling:
		return "settling"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Dependencies are the engine capabilities the orchestrator drives. Registry
// and Bus are optional.
type Dependencies struct {
	NavMesh  game.NavMesh
	Physics  game.Physics
	Scenes   game.ScenePort
	World    game.WorldQuery
	Ledger   game.Ledger
	Registry *scene.Registry
	Bus      *event.Bus
}

// Orchestrator turns a teleport request into exactly one terminal outcome.
// It owns the single-flight guard: at most one request is in flight, and
// every terminal path (success, abort, timeout) releases the guard.
type Orchestrator struct {
	cfg    *config.Config
	logger *slog.Logger

	scenes   game.ScenePort
	world    game.WorldQuery
	ledger   game.Ledger
	registry *scene.Registry
	bus      *event.Bus

	prober   *placement.Prober
	resolver *placement.Resolver
	mover    *step.Mover

	inFlight *semaphore.Weighted
	state    atomic.Int32

	lastMu sync.Mutex
	last   *Outcome
}

func New(cfg *config.Config, logger *slog.Logger, deps Dependencies) *Orchestrator {
	logger = logger.With(slog.String("component", "travel"))

	return &Orchestrator{
		cfg:      cfg,
		logger:   logger,
		scenes:   deps.Scenes,
		world:    deps.World,
		ledger:   deps.Ledger,
		registry: deps.Registry,
		bus:      deps.Bus,
		prober:   placement.NewProber(deps.NavMesh, deps.Physics, deps.World, cfg.Placement, logger),
		resolver: placement.NewResolver(deps.Physics, cfg.Overlap, logger),
		mover:    step.NewMover(deps.World, cfg, logger),
		inFlight: semaphore.NewWeighted(1),
	}
}

// Prober exposes the ground prober for diagnostics.
func (o *Orchestrator) Prober() *placement.Prober {
	return o.prober
}

func (o *Orchestrator) StateName() string {
	return State(o.state.Load()).String()
}

// LastOutcome returns the most recent terminal outcome.
func (o *Orchestrator) LastOutcome() (Outcome, bool) {
	o.lastMu.Lock()
	defer o.lastMu.Unlock()
	if o.last == nil {
		return Outcome{}, false
	}
	return *o.last, true
}

// Travel runs one teleport request to its terminal outcome. Substep failures
// are folded into the outcome; the returned error is non-nil only for the
// rejected precondition ErrAlreadyInFlight, which has no side effects and
// produces no events.
func (o *Orchestrator) Travel(ctx context.Context, dest Destination) (Outcome, error) {
	if !o.inFlight.TryAcquire(1) {
		o.logger.Debug("Travel request ignored, another request is in flight",
			slog.String("destination", dest.Name))
		return Outcome{Reason: ReasonAlreadyInFlight}, ErrAlreadyInFlight
	}
	defer o.inFlight.Release(1)
	defer o.state.Store(int32(StateIdle))

	req := Request{
		Destination: dest,
		Cost:        dest.CostOrDefault(o.cfg.Travel.DefaultCost),
		RequestedAt: time.Now(),
	}

	o.bus.Send(event.TravelStarted(dest.Name, req.Cost))
	outcome := o.run(ctx, req)
	o.storeOutcome(outcome)
	o.bus.Send(event.TravelFinished(dest.Name, outcome.Succeeded, outcome.Reason.String(), outcome.Message()))

	return outcome, nil
}

func (o *Orchestrator) run(ctx context.Context, req Request) Outcome {
	if err := req.Destination.Validate(o.scenes.ActiveScene()); err != nil {
		o.logger.Warn("Rejecting malformed destination",
			slog.String("destination", req.Destination.Name),
			slog.Any("error", err))
		o.state.Store(int32(StateAborted))
		return Outcome{Reason: ReasonPlacementFailed}
	}

	o.state.Store(int32(StateFundsChecked))
	if !o.ledger.CheckAffordable(req.Cost) {
		o.logger.Info("Travel rejected, not affordable",
			slog.String("destination", req.Destination.Name),
			slog.Int("cost", req.Cost))
		o.state.Store(int32(StateAborted))
		return Outcome{Reason: ReasonInsufficientFunds}
	}

	dest := req.Destination
	if dest.EnsureScene(o.scenes.ActiveScene(), o.registry) {
		o.logger.Debug("Guessed scene for destination",
			slog.String("destination", dest.Name),
			slog.String("scene", dest.SceneID))
	}

	strat := selectStrategy(dest, o.scenes, o.world)
	o.logger.Debug("Resolution strategy selected",
		slog.String("strategy", strat.name()),
		slog.String("destination", dest.Name))

	charged := false
	fail := func(reason Reason) Outcome {
		o.state.Store(int32(StateAborted))
		if charged {
			// Best effort: a failed refund is logged, never retried.
			if !o.ledger.Refund(req.Cost) {
				o.logger.Warn("Refund failed",
					slog.String("destination", dest.Name),
					slog.Int("amount", req.Cost))
			}
		}
		return Outcome{Reason: reason}
	}

	if o.cfg.Travel.PaymentPolicy == config.PayUpFront {
		if !o.ledger.Debit(req.Cost) {
			return fail(ReasonInsufficientFunds)
		}
		charged = true
	}

	if sceneName := strat.sceneToLoad(); sceneName != "" {
		o.state.Store(int32(StateSceneLoading))
		loaded, err := o.waitSceneLoad(ctx, sceneName)
		if err != nil {
			o.logger.Warn("Scene load did not complete",
				slog.String("scene", sceneName),
				slog.Any("error", err))
			return fail(ReasonLoadTimeout)
		}
		if !loaded {
			return fail(ReasonSceneLoadRejected)
		}
		o.state.Store(int32(StatePostLoadPlacing))
	} else {
		o.state.Store(int32(StateSameScenePlacing))
	}

	hint, err := strat.resolveHint()
	if err != nil {
		o.logger.Warn("Destination did not resolve to a position",
			slog.String("destination", dest.Name),
			slog.Any("error", err))
		return fail(ReasonPlacementFailed)
	}

	actor, found := o.world.FindControlledActor()
	if !found {
		o.logger.Warn("Controlled actor not found")
		return fail(ReasonPlacementFailed)
	}

	final, err := o.place(hint, actor.Position())
	if err != nil {
		o.logger.Warn("No safe placement found",
			slog.String("destination", dest.Name),
			slog.Any("hint", hint),
			slog.Any("error", err))
		return fail(ReasonPlacementFailed)
	}

	o.state.Store(int32(StateSettling))
	if err := o.mover.Move(ctx, final); err != nil {
		o.logger.Warn("Move failed",
			slog.String("destination", dest.Name),
			slog.Any("error", err))
		return fail(ReasonPlacementFailed)
	}

	outcome := Outcome{Succeeded: true, FinalPosition: &final, Charged: charged}
	if o.cfg.Travel.PaymentPolicy == config.PayAfterPlacement {
		if o.ledger.Debit(req.Cost) {
			outcome.Charged = true
		} else {
			// Reversing the player's position would be worse UX than a
			// missed charge; surface a soft success instead.
			o.logger.Warn("Teleported but not charged",
				slog.String("destination", dest.Name),
				slog.Int("cost", req.Cost))
		}
	}

	o.logger.Info("Travel complete",
		slog.String("destination", dest.Name),
		slog.Any("position", final),
		slog.Bool("charged", outcome.Charged))
	return outcome
}

func (o *Orchestrator) waitSceneLoad(ctx context.Context, name string) (bool, error) {
	loaded := o.scenes.LoadSceneAsync(name)

	timer := time.NewTimer(o.cfg.Travel.LoadTimeout())
	defer timer.Stop()

	select {
	case ok := <-loaded:
		return ok, nil
	case <-timer.C:
		return false, fmt.Errorf("scene %q load timed out after %s", name, o.cfg.Travel.LoadTimeout())
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// place runs the grounding cascade and overlap resolution. A candidate
// displacing the actor vertically beyond the configured cap is rejected and
// the cascade retried once with the original hint before giving up.
func (o *Orchestrator) place(hint, current game.Position) (game.Position, error) {
	candidate, err := o.prober.FindGround(hint)
	if err != nil {
		return game.Position{}, err
	}

	if game.VerticalDelta(candidate.Position, current) > o.cfg.Travel.MaxVerticalShift {
		o.logger.Warn("Placement exceeds vertical shift cap, retrying cascade",
			slog.Any("candidate", candidate.Position),
			slog.Float64("cap", o.cfg.Travel.MaxVerticalShift))

		candidate, err = o.prober.FindGround(hint)
		if err != nil {
			return game.Position{}, err
		}
		if delta := game.VerticalDelta(candidate.Position, current); delta > o.cfg.Travel.MaxVerticalShift {
			return game.Position{}, fmt.Errorf("placement displaced %.0f units vertically, cap is %.0f",
				delta, o.cfg.Travel.MaxVerticalShift)
		}
	}

	return o.resolver.Resolve(candidate, o.cfg.Overlap.FootprintRadius), nil
}

func (o *Orchestrator) storeOutcome(outcome Outcome) {
	o.lastMu.Lock()
	o.last = &outcome
	o.lastMu.Unlock()
}
