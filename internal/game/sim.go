package game

import (
	"strings"
	"sync"
	"time"
)

// SimScene is one loadable scene of the simulated engine.
type SimScene struct {
	Name    string
	Grid    *Grid
	Anchors map[string]Position
	Objects map[string]Position
}

// SimEngine implements the full engine capability surface over scene grids.
// It plays the role the live-engine binding plays in production and is what
// the tests and the diagnostics overlay drive.
type SimEngine struct {
	mu     sync.RWMutex
	scenes map[string]*SimScene
	active string
	actor  *SimActor

	noNavMesh map[string]bool
	rejected  map[string]bool
	stalled   map[string]bool
	loadDelay time.Duration
}

func NewSimEngine(active string, scenes ...*SimScene) *SimEngine {
	e := &SimEngine{
		scenes:    make(map[string]*SimScene, len(scenes)),
		active:    active,
		noNavMesh: map[string]bool{},
		rejected:  map[string]bool{},
		stalled:   map[string]bool{},
	}
	for _, s := range scenes {
		e.scenes[s.Name] = s
	}
	return e
}

func (e *SimEngine) AddScene(s *SimScene) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scenes[s.Name] = s
}

func (e *SimEngine) SetActor(a *SimActor) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.actor = a
}

// DisableNavMesh marks a scene as having no baked navigation data, so
// Sample always misses there.
func (e *SimEngine) DisableNavMesh(scene string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.noNavMesh[scene] = true
}

// RejectSceneLoad makes LoadSceneAsync report false for the named scene.
func (e *SimEngine) RejectSceneLoad(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rejected[name] = true
}

// StallSceneLoad makes LoadSceneAsync never deliver for the named scene.
func (e *SimEngine) StallSceneLoad(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stalled[name] = true
}

func (e *SimEngine) SetLoadDelay(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loadDelay = d
}

func (e *SimEngine) activeScene() *SimScene {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.scenes[e.active]
}

// Sample implements NavMesh over the active scene grid: nearest walkable
// cell center within radius of center, distance measured in all three axes.
func (e *SimEngine) Sample(center Position, radius float64) (Position, bool) {
	e.mu.RLock()
	scene := e.scenes[e.active]
	disabled := e.noNavMesh[e.active]
	e.mu.RUnlock()

	if scene == nil || scene.Grid == nil || disabled {
		return Position{}, false
	}

	grid := scene.Grid
	best := Position{}
	bestDist := radius + 1
	found := false

	scan := floorInt(radius) + 1
	for dz := -scan; dz <= scan; dz++ {
		for dx := -scan; dx <= scan; dx++ {
			probe := center.Add(float64(dx), 0, float64(dz))
			cellCenter, ok := grid.CellCenter(probe)
			if !ok || !grid.IsWalkable(probe) {
				continue
			}
			dist := Distance(center, cellCenter)
			if dist <= radius && (!found || dist < bestDist) {
				best = cellCenter
				bestDist = dist
				found = true
			}
		}
	}

	return best, found
}

func (e *SimEngine) RaycastDown(origin Position, maxDistance float64) (RaycastHit, bool) {
	scene := e.activeScene()
	if scene == nil || scene.Grid == nil {
		return RaycastHit{}, false
	}

	cell, ok := scene.Grid.CellAt(origin)
	if !ok {
		return RaycastHit{}, false
	}

	// Obstacle tops are hit before the ground when the ray starts above them.
	if cell.HasObstacle() && origin.Y >= cell.ObstacleHighY {
		if origin.Y-cell.ObstacleHighY <= maxDistance {
			return RaycastHit{Point: origin.WithY(cell.ObstacleHighY)}, true
		}
		return RaycastHit{}, false
	}

	if !isWalkableType(cell.Type) {
		return RaycastHit{}, false
	}
	if origin.Y < cell.GroundY || origin.Y-cell.GroundY > maxDistance {
		return RaycastHit{}, false
	}
	return RaycastHit{Point: origin.WithY(cell.GroundY)}, true
}

func (e *SimEngine) RaycastUp(origin Position, maxDistance float64) (RaycastHit, bool) {
	scene := e.activeScene()
	if scene == nil || scene.Grid == nil {
		return RaycastHit{}, false
	}

	cell, ok := scene.Grid.CellAt(origin)
	if !ok || !isWalkableType(cell.Type) {
		return RaycastHit{}, false
	}
	if origin.Y > cell.GroundY || cell.GroundY-origin.Y > maxDistance {
		return RaycastHit{}, false
	}
	return RaycastHit{Point: origin.WithY(cell.GroundY)}, true
}

// OverlapSphere reports blocking geometry at the sphere. The walkable ground
// surface itself does not count; being below it does, as does intersecting a
// cell's obstacle span.
func (e *SimEngine) OverlapSphere(center Position, radius float64) bool {
	scene := e.activeScene()
	if scene == nil || scene.Grid == nil {
		return false
	}

	cell, ok := scene.Grid.CellAt(center)
	if !ok {
		return false
	}

	if isWalkableType(cell.Type) && center.Y < cell.GroundY {
		return true
	}
	if cell.HasObstacle() && center.Y+radius > cell.ObstacleLowY && center.Y-radius < cell.ObstacleHighY {
		return true
	}
	return false
}

// ActiveGrid returns the active scene grid, for diagnostics rendering.
func (e *SimEngine) ActiveGrid() (*Grid, bool) {
	scene := e.activeScene()
	if scene == nil || scene.Grid == nil {
		return nil, false
	}
	return scene.Grid, true
}

func (e *SimEngine) ActiveScene() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.active
}

func (e *SimEngine) IsSceneActive(name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.active == name
}

func (e *SimEngine) LoadSceneAsync(name string) <-chan bool {
	ch := make(chan bool, 1)

	e.mu.RLock()
	stalled := e.stalled[name]
	rejected := e.rejected[name]
	delay := e.loadDelay
	e.mu.RUnlock()

	if stalled {
		return ch
	}
	if rejected {
		ch <- false
		return ch
	}

	go func() {
		if delay > 0 {
			time.Sleep(delay)
		}
		e.mu.Lock()
		_, known := e.scenes[name]
		if known {
			e.active = name
		}
		e.mu.Unlock()
		ch <- known
	}()

	return ch
}

func (e *SimEngine) FindAnchor(name string) (Position, bool) {
	scene := e.activeScene()
	if scene == nil {
		return Position{}, false
	}
	p, ok := scene.Anchors[name]
	return p, ok
}

func (e *SimEngine) FindControlledActor() (Actor, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.actor == nil {
		return nil, false
	}
	return e.actor, true
}

func (e *SimEngine) FindByName(pattern string) (Position, bool) {
	scene := e.activeScene()
	if scene == nil {
		return Position{}, false
	}

	lowered := strings.ToLower(pattern)
	for name, p := range scene.Objects {
		if strings.Contains(strings.ToLower(name), lowered) {
			return p, true
		}
	}
	for name, p := range scene.Anchors {
		if strings.Contains(strings.ToLower(name), lowered) {
			return p, true
		}
	}
	return Position{}, false
}

// SimActor is the simulated controlled avatar.
type SimActor struct {
	mu        sync.Mutex
	pos       Position
	agent     *SimNavAgent
	bodies    []*SimBody
	failWrite bool
}

func NewSimActor(pos Position) *SimActor {
	return &SimActor{pos: pos}
}

// AttachNavAgent gives the actor an autonomous navigation controller.
func (a *SimActor) AttachNavAgent() *SimNavAgent {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.agent = &SimNavAgent{owner: a, syncEnabled: true}
	return a.agent
}

func (a *SimActor) AddBody(name string) *SimBody {
	a.mu.Lock()
	defer a.mu.Unlock()
	b := &SimBody{name: name, driven: true}
	a.bodies = append(a.bodies, b)
	return b
}

// FailPositionWrites makes SetPosition return an error, simulating a write
// that throws inside the engine.
func (a *SimActor) FailPositionWrites() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failWrite = true
}

func (a *SimActor) Position() Position {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pos
}

func (a *SimActor) SetPosition(p Position) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failWrite {
		return errPositionWrite
	}
	a.pos = p
	return nil
}

func (a *SimActor) NavAgent() (NavAgent, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.agent == nil {
		return nil, false
	}
	return a.agent, true
}

func (a *SimActor) Bodies() []Body {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Body, len(a.bodies))
	for i, b := range a.bodies {
		out[i] = b
	}
	return out
}

// SimNavAgent records sync toggles and warps.
type SimNavAgent struct {
	mu          sync.Mutex
	owner       *SimActor
	syncEnabled bool
	failWarp    bool
	Warps       int
}

func (n *SimNavAgent) FailWarps() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failWarp = true
}

func (n *SimNavAgent) SetSyncEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.syncEnabled = enabled
}

func (n *SimNavAgent) SyncEnabled() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.syncEnabled
}

func (n *SimNavAgent) Warp(p Position) error {
	n.mu.Lock()
	if n.failWarp {
		n.mu.Unlock()
		return errWarpFailed
	}
	n.Warps++
	owner := n.owner
	n.mu.Unlock()

	return owner.SetPosition(p)
}

// SimBody records velocity zeroing and driven toggles.
type SimBody struct {
	mu             sync.Mutex
	name           string
	driven         bool
	VelocityZeroed int
	DrivenHistory  []bool
}

func (b *SimBody) Name() string {
	return b.name
}

func (b *SimBody) ZeroVelocity() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.VelocityZeroed++
}

func (b *SimBody) SetDriven(enabled bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.driven = enabled
	b.DrivenHistory = append(b.DrivenHistory, enabled)
}

func (b *SimBody) Driven() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.driven
}

// SimLedger is an in-memory currency ledger with failure toggles.
type SimLedger struct {
	mu         sync.Mutex
	balance    int
	failDebit  bool
	failRefund bool
	debits     []int
	refunds    []int
}

func NewSimLedger(balance int) *SimLedger {
	return &SimLedger{balance: balance}
}

// FailDebits makes Debit return false without touching the balance.
func (l *SimLedger) FailDebits() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failDebit = true
}

func (l *SimLedger) FailRefunds() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failRefund = true
}

func (l *SimLedger) CheckAffordable(cost int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance >= cost
}

func (l *SimLedger) Debit(cost int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failDebit || l.balance < cost {
		return false
	}
	l.balance -= cost
	l.debits = append(l.debits, cost)
	return true
}

func (l *SimLedger) Refund(amount int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failRefund {
		return false
	}
	l.balance += amount
	l.refunds = append(l.refunds, amount)
	return true
}

func (l *SimLedger) Balance() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance
}

func (l *SimLedger) Debits() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]int, len(l.debits))
	copy(out, l.debits)
	return out
}

func (l *SimLedger) Refunds() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]int, len(l.refunds))
	copy(out, l.refunds)
	return out
}
