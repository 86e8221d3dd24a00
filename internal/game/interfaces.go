package game

// The interfaces below are the capability surface the travel core consumes
// from the host engine. The live binding is provided by the integration
// layer; SimEngine implements the same surface for tests and diagnostics.

// RaycastHit describes the first surface hit by a ray.
type RaycastHit struct {
	Point Position
}

// NavMesh samples walkable positions from the engine navigation data.
type NavMesh interface {
	// Sample returns the nearest navigation-mesh point within radius of
	// center, if any.
	Sample(center Position, radius float64) (Position, bool)
}

// Physics exposes the collision queries used by placement.
type Physics interface {
	RaycastDown(origin Position, maxDistance float64) (RaycastHit, bool)
	RaycastUp(origin Position, maxDistance float64) (RaycastHit, bool)

	// OverlapSphere reports whether blocking geometry intersects the sphere.
	// Implementations exclude trigger volumes and the controlled actor's own
	// body.
	OverlapSphere(center Position, radius float64) bool
}

// ScenePort drives scene activation and lookup of named anchors in the
// active scene.
type ScenePort interface {
	ActiveScene() string
	IsSceneActive(name string) bool

	// LoadSceneAsync starts loading the named scene. The returned channel
	// delivers true when the scene finished loading and became active, false
	// when the engine rejected the request. The channel may never deliver;
	// callers are expected to bound the wait themselves.
	LoadSceneAsync(name string) <-chan bool

	FindAnchor(name string) (Position, bool)
}

// WorldQuery looks up live objects in the active scene.
type WorldQuery interface {
	FindControlledActor() (Actor, bool)
	// FindByName returns the position of the first object whose name
	// contains pattern (case-insensitive).
	FindByName(pattern string) (Position, bool)
}

// Body is a physics-driven piece of the actor hierarchy.
type Body interface {
	Name() string
	ZeroVelocity()
	// SetDriven toggles whether movement scripts drive this body.
	SetDriven(enabled bool)
	Driven() bool
}

// NavAgent is the actor's autonomous navigation controller.
type NavAgent interface {
	// SetSyncEnabled toggles the agent's automatic position/rotation sync
	// with the actor transform.
	SetSyncEnabled(enabled bool)
	SyncEnabled() bool
	// Warp relocates the agent while keeping its internal state consistent.
	Warp(p Position) error
}

// Actor is the controlled avatar.
type Actor interface {
	Position() Position
	SetPosition(p Position) error
	// NavAgent returns the autonomous navigation controller, if the actor
	// has one.
	NavAgent() (NavAgent, bool)
	// Bodies returns the physics bodies of the actor and its children.
	Bodies() []Body
}

// Ledger is the in-game currency capability.
type Ledger interface {
	CheckAffordable(cost int) bool
	Debit(cost int) bool
	Refund(amount int) bool
}
