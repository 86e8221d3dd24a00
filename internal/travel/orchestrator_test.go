package travel

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kelsiar/fasttravel/internal/config"
	"github.com/kelsiar/fasttravel/internal/event"
	"github.com/kelsiar/fasttravel/internal/game"
	"github.com/kelsiar/fasttravel/internal/scene"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func intPtr(v int) *int {
	return &v
}

func flatScene(name string, size int, groundY float64, anchors, objects map[string]game.Position) *game.SimScene {
	cells := make([][]game.Cell, size)
	for z := range cells {
		cells[z] = make([]game.Cell, size)
		for x := range cells[z] {
			cells[z][x] = game.Cell{Type: game.CellWalkable, GroundY: groundY}
		}
	}
	return &game.SimScene{
		Name:    name,
		Grid:    game.NewGridFromProcessed(cells, 0, 0),
		Anchors: anchors,
		Objects: objects,
	}
}

type rig struct {
	engine *game.SimEngine
	actor  *game.SimActor
	agent  *game.SimNavAgent
	ledger *game.SimLedger
	bus    *event.Bus
	cfg    *config.Config
	orch   *Orchestrator
}

func newRig(balance int) *rig {
	town := flatScene("town", 64, 0,
		map[string]game.Position{"PlazaWaypoint": {X: 10, Y: 0, Z: 10}},
		map[string]game.Position{"Old Shrine": {X: 20, Y: 0, Z: 20}})
	dungeon := flatScene("dungeon", 64, 0,
		map[string]game.Position{"DungeonEntry": {X: 5, Y: 0, Z: 5}}, nil)

	engine := game.NewSimEngine("town", town, dungeon)
	actor := game.NewSimActor(game.Position{X: 2, Y: 0, Z: 2})
	agent := actor.AttachNavAgent()
	actor.AddBody("LocomotionRig")
	engine.SetActor(actor)

	ledger := game.NewSimLedger(balance)
	bus := event.NewBus()

	cfg := config.Default()
	cfg.Travel.LoadTimeoutMs = 200
	cfg.Travel.SettleTimeoutMs = 500
	cfg.Mover.ResumeDelayMs = 1
	cfg.Mover.SettlePollMs = 1

	registry := scene.NewRegistry(
		scene.Info{Name: "town", Links: []string{"dungeon"}, Anchors: []string{"PlazaWaypoint"}},
		scene.Info{Name: "dungeon", Links: []string{"town"}, Anchors: []string{"DungeonEntry"}},
	)

	orch := New(cfg, discardLogger(), Dependencies{
		NavMesh:  engine,
		Physics:  engine,
		Scenes:   engine,
		World:    engine,
		Ledger:   ledger,
		Registry: registry,
		Bus:      bus,
	})

	return &rig{
		engine: engine,
		actor:  actor,
		agent:  agent,
		ledger: ledger,
		bus:    bus,
		cfg:    cfg,
		orch:   orch,
	}
}

func (r *rig) collectEvents() func() []event.Event {
	var mu sync.Mutex
	var events []event.Event
	r.bus.Subscribe(func(e event.Event) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})
	return func() []event.Event {
		mu.Lock()
		defer mu.Unlock()
		out := make([]event.Event, len(events))
		copy(out, events)
		return out
	}
}

func TestTravelInsufficientFunds(t *testing.T) {
	r := newRig(30)

	outcome, err := r.orch.Travel(context.Background(), Destination{
		Name:       "Plaza",
		AnchorName: "PlazaWaypoint",
		Cost:       intPtr(50),
	})
	require.NoError(t, err)

	assert.False(t, outcome.Succeeded)
	assert.Equal(t, ReasonInsufficientFunds, outcome.Reason)
	assert.Equal(t, "not enough resources to travel", outcome.Message())
	assert.Empty(t, r.ledger.Debits())
	assert.Equal(t, 30, r.ledger.Balance())
	assert.Equal(t, "idle", r.orch.StateName(), "guard is released after rejection")
}

func TestTravelSameSceneSuccess(t *testing.T) {
	r := newRig(100)
	events := r.collectEvents()

	outcome, err := r.orch.Travel(context.Background(), Destination{
		Name:       "Plaza",
		AnchorName: "PlazaWaypoint",
		Cost:       intPtr(50),
	})
	require.NoError(t, err)

	require.True(t, outcome.Succeeded)
	assert.True(t, outcome.Charged)
	require.NotNil(t, outcome.FinalPosition)
	assert.LessOrEqual(t, game.HorizontalDistance(*outcome.FinalPosition, game.Position{X: 10, Z: 10}), 1.0)
	assert.Equal(t, *outcome.FinalPosition, r.actor.Position())

	assert.Equal(t, 50, r.ledger.Balance())
	assert.Equal(t, []int{50}, r.ledger.Debits(), "exactly one debit")
	assert.Empty(t, r.ledger.Refunds())
	assert.Equal(t, 1, r.agent.Warps, "exactly one move")

	got := events()
	require.Len(t, got, 2)
	started, ok := got[0].(event.TravelStartedEvent)
	require.True(t, ok)
	assert.Equal(t, "Plaza", started.Destination)
	assert.Equal(t, 50, started.Cost)
	finished, ok := got[1].(event.TravelFinishedEvent)
	require.True(t, ok)
	assert.True(t, finished.Succeeded)
	assert.Empty(t, finished.Message)
}

func TestTravelSceneLoadSuccess(t *testing.T) {
	r := newRig(150)

	outcome, err := r.orch.Travel(context.Background(), Destination{
		Name:       "Dungeon",
		SceneID:    "dungeon",
		AnchorName: "DungeonEntry",
	})
	require.NoError(t, err)

	require.True(t, outcome.Succeeded)
	assert.Equal(t, "dungeon", r.engine.ActiveScene())
	assert.LessOrEqual(t, game.HorizontalDistance(r.actor.Position(), game.Position{X: 5, Z: 5}), 1.0)
	assert.Equal(t, 50, r.ledger.Balance(), "default cost applies when the destination sets none")
}

func TestTravelGuessesSceneFromAnchor(t *testing.T) {
	r := newRig(150)

	outcome, err := r.orch.Travel(context.Background(), Destination{
		Name:       "Dungeon Entry",
		AnchorName: "DungeonEntry",
	})
	require.NoError(t, err)

	require.True(t, outcome.Succeeded)
	assert.Equal(t, "dungeon", r.engine.ActiveScene(), "scene is guessed from the anchor catalog")
}

func TestTravelLegacyLookup(t *testing.T) {
	r := newRig(150)

	outcome, err := r.orch.Travel(context.Background(), Destination{Name: "Old Shrine"})
	require.NoError(t, err)

	require.True(t, outcome.Succeeded)
	assert.LessOrEqual(t, game.HorizontalDistance(r.actor.Position(), game.Position{X: 20, Z: 20}), 1.0)
}

func TestTravelLoadTimeout(t *testing.T) {
	r := newRig(150)
	r.cfg.Travel.LoadTimeoutMs = 50
	r.engine.StallSceneLoad("dungeon")

	outcome, err := r.orch.Travel(context.Background(), Destination{
		Name:       "Dungeon",
		SceneID:    "dungeon",
		AnchorName: "DungeonEntry",
	})
	require.NoError(t, err)

	assert.False(t, outcome.Succeeded)
	assert.Equal(t, ReasonLoadTimeout, outcome.Reason)
	assert.Equal(t, "Teleport failed (timeout)", outcome.Message())
	assert.Empty(t, r.ledger.Debits(), "no charge without a landing")
	assert.Equal(t, 150, r.ledger.Balance())
}

func TestTravelSceneLoadRejected(t *testing.T) {
	r := newRig(150)
	r.engine.RejectSceneLoad("dungeon")

	outcome, err := r.orch.Travel(context.Background(), Destination{
		Name:       "Dungeon",
		SceneID:    "dungeon",
		AnchorName: "DungeonEntry",
	})
	require.NoError(t, err)

	assert.False(t, outcome.Succeeded)
	assert.Equal(t, ReasonSceneLoadRejected, outcome.Reason)
	assert.Equal(t, 150, r.ledger.Balance())
}

func TestTravelPlacementFailed(t *testing.T) {
	r := newRig(150)

	outcome, err := r.orch.Travel(context.Background(), Destination{
		Name:   "Nowhere",
		Coords: &game.Position{X: 500, Y: 0, Z: 500},
	})
	require.NoError(t, err)

	assert.False(t, outcome.Succeeded)
	assert.Equal(t, ReasonPlacementFailed, outcome.Reason)
	assert.Empty(t, r.ledger.Debits())
	assert.Equal(t, 150, r.ledger.Balance())
	assert.Equal(t, game.Position{X: 2, Y: 0, Z: 2}, r.actor.Position(), "actor did not move")
}

func TestTravelPlacementFailedRefundsUpFront(t *testing.T) {
	r := newRig(150)
	r.cfg.Travel.PaymentPolicy = config.PayUpFront

	outcome, err := r.orch.Travel(context.Background(), Destination{
		Name:   "Nowhere",
		Coords: &game.Position{X: 500, Y: 0, Z: 500},
		Cost:   intPtr(40),
	})
	require.NoError(t, err)

	assert.False(t, outcome.Succeeded)
	assert.Equal(t, ReasonPlacementFailed, outcome.Reason)
	assert.Equal(t, []int{40}, r.ledger.Debits())
	assert.Equal(t, []int{40}, r.ledger.Refunds())
	assert.Equal(t, 150, r.ledger.Balance())
}

func TestTravelRefundFailureNotRetried(t *testing.T) {
	r := newRig(150)
	r.cfg.Travel.PaymentPolicy = config.PayUpFront
	r.ledger.FailRefunds()

	outcome, err := r.orch.Travel(context.Background(), Destination{
		Name:   "Nowhere",
		Coords: &game.Position{X: 500, Y: 0, Z: 500},
		Cost:   intPtr(40),
	})
	require.NoError(t, err)

	assert.False(t, outcome.Succeeded)
	assert.Empty(t, r.ledger.Refunds())
	assert.Equal(t, 110, r.ledger.Balance(), "failed refund is logged, not retried")
}

func TestTravelSoftSuccess(t *testing.T) {
	r := newRig(100)
	r.ledger.FailDebits()

	outcome, err := r.orch.Travel(context.Background(), Destination{
		Name:       "Plaza",
		AnchorName: "PlazaWaypoint",
		Cost:       intPtr(50),
	})
	require.NoError(t, err)

	assert.True(t, outcome.Succeeded, "landed moves are never rolled back")
	assert.False(t, outcome.Charged)
	assert.Empty(t, outcome.Message())
	assert.Equal(t, 100, r.ledger.Balance())
}

func TestTravelSingleFlight(t *testing.T) {
	r := newRig(300)
	r.cfg.Travel.LoadTimeoutMs = 300
	r.engine.StallSceneLoad("dungeon")
	events := r.collectEvents()

	first := make(chan Outcome, 1)
	go func() {
		outcome, _ := r.orch.Travel(context.Background(), Destination{
			Name:       "Dungeon",
			SceneID:    "dungeon",
			AnchorName: "DungeonEntry",
		})
		first <- outcome
	}()

	// Let the first request reach the scene-loading wait.
	time.Sleep(50 * time.Millisecond)

	outcome, err := r.orch.Travel(context.Background(), Destination{
		Name:       "Plaza",
		AnchorName: "PlazaWaypoint",
	})
	assert.ErrorIs(t, err, ErrAlreadyInFlight)
	assert.Equal(t, ReasonAlreadyInFlight, outcome.Reason)

	select {
	case got := <-first:
		assert.Equal(t, ReasonLoadTimeout, got.Reason)
	case <-time.After(2 * time.Second):
		t.Fatal("first request never finished")
	}

	got := events()
	require.Len(t, got, 2, "the rejected request emits no events")
	assert.Equal(t, "travel_started", got[0].Name())
	assert.Equal(t, "travel_finished", got[1].Name())
}

func TestTravelVerticalShiftGuard(t *testing.T) {
	cliff := flatScene("cliff", 64, 500, nil, nil)
	engine := game.NewSimEngine("cliff", cliff)
	actor := game.NewSimActor(game.Position{X: 2, Y: 0, Z: 2})
	actor.AttachNavAgent()
	engine.SetActor(actor)
	ledger := game.NewSimLedger(150)

	cfg := config.Default()
	cfg.Travel.SettleTimeoutMs = 500
	cfg.Mover.ResumeDelayMs = 1
	cfg.Mover.SettlePollMs = 1

	orch := New(cfg, discardLogger(), Dependencies{
		NavMesh: engine,
		Physics: engine,
		Scenes:  engine,
		World:   engine,
		Ledger:  ledger,
	})

	outcome, err := orch.Travel(context.Background(), Destination{
		Name:   "Cliff Top",
		Coords: &game.Position{X: 10, Y: 500, Z: 10},
	})
	require.NoError(t, err)

	assert.False(t, outcome.Succeeded)
	assert.Equal(t, ReasonPlacementFailed, outcome.Reason)
	assert.Equal(t, game.Position{X: 2, Y: 0, Z: 2}, actor.Position())
	assert.Empty(t, ledger.Debits())
}

func TestTravelRejectsMalformedDestination(t *testing.T) {
	r := newRig(150)

	outcome, err := r.orch.Travel(context.Background(), Destination{})
	require.NoError(t, err)

	assert.False(t, outcome.Succeeded)
	assert.Equal(t, ReasonPlacementFailed, outcome.Reason)
	assert.Empty(t, r.ledger.Debits())
	assert.Zero(t, r.agent.Warps)
	assert.Equal(t, "idle", r.orch.StateName())
}

func TestTravelLastOutcome(t *testing.T) {
	r := newRig(100)

	_, ok := r.orch.LastOutcome()
	assert.False(t, ok)

	outcome, err := r.orch.Travel(context.Background(), Destination{
		Name:       "Plaza",
		AnchorName: "PlazaWaypoint",
		Cost:       intPtr(50),
	})
	require.NoError(t, err)

	last, ok := r.orch.LastOutcome()
	require.True(t, ok)
	assert.Equal(t, outcome, last)
}
