package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// PaymentPolicy selects when the travel cost is collected.
type PaymentPolicy string

const (
	// PayAfterPlacement debits only after the move succeeded. Nothing to
	// refund on the common failure paths.
	PayAfterPlacement PaymentPolicy = "pay-after-placement"
	// PayUpFront debits before placement and refunds best-effort on failure.
	PayUpFront PaymentPolicy = "pay-up-front"
)

type Config struct {
	Travel    Travel    `yaml:"travel"`
	Placement Placement `yaml:"placement"`
	Overlap   Overlap   `yaml:"overlap"`
	Mover     Mover     `yaml:"mover"`
}

type Travel struct {
	DefaultCost   int           `yaml:"defaultCost"`
	PaymentPolicy PaymentPolicy `yaml:"paymentPolicy"`

	LoadTimeoutMs   int `yaml:"loadTimeoutMs"`
	SettleTimeoutMs int `yaml:"settleTimeoutMs"`

	// MaxVerticalShift rejects placements displacing the actor vertically by
	// more than this many units from its current position.
	MaxVerticalShift float64 `yaml:"maxVerticalShift"`
}

func (t Travel) LoadTimeout() time.Duration {
	return time.Duration(t.LoadTimeoutMs) * time.Millisecond
}

func (t Travel) SettleTimeout() time.Duration {
	return time.Duration(t.SettleTimeoutMs) * time.Millisecond
}

type Placement struct {
	// NavMeshRadii is the expanding radius set for navigation-mesh sampling.
	NavMeshRadii []float64 `yaml:"navMeshRadii"`

	// VerticalReach and VerticalScanSteps shape the raycast scan: probes run
	// downward from hint.y+reach+offset and upward from hint.y-reach-offset
	// for offset 0..steps.
	VerticalReach     float64 `yaml:"verticalReach"`
	VerticalScanSteps int     `yaml:"verticalScanSteps"`
	RayLength         float64 `yaml:"rayLength"`

	// GroundClearance is added above a raycast hit surface.
	GroundClearance float64 `yaml:"groundClearance"`

	// GridOffsets is the horizontal search pattern, applied in both signed X
	// and Z directions around the hint.
	GridOffsets []float64 `yaml:"gridOffsets"`

	SpawnAnchorNames []string `yaml:"spawnAnchorNames"`
}

type Overlap struct {
	FootprintRadius float64 `yaml:"footprintRadius"`
	RaiseStep       float64 `yaml:"raiseStep"`
	// MaxRaiseGrounded bounds the vertical nudge for candidates produced by
	// the grounding cascade; MaxRaise applies to everything else.
	MaxRaiseGrounded float64 `yaml:"maxRaiseGrounded"`
	MaxRaise         float64 `yaml:"maxRaise"`
}

type Mover struct {
	// ResumeDelayMs is how long suspended movement components stay disabled
	// after the position write, letting the body settle before scripts
	// resume driving it.
	ResumeDelayMs  int     `yaml:"resumeDelayMs"`
	SettlePollMs   int     `yaml:"settlePollMs"`
	SettleDistance float64 `yaml:"settleDistance"`

	// MovementDenylist holds name substrings of components that must be
	// suspended during the move.
	MovementDenylist []string `yaml:"movementDenylist"`
}

func (m Mover) ResumeDelay() time.Duration {
	return time.Duration(m.ResumeDelayMs) * time.Millisecond
}

func (m Mover) SettlePoll() time.Duration {
	return time.Duration(m.SettlePollMs) * time.Millisecond
}

func Default() *Config {
	return &Config{
		Travel: Travel{
			DefaultCost:      100,
			PaymentPolicy:    PayAfterPlacement,
			LoadTimeoutMs:    30000,
			SettleTimeoutMs:  30000,
			MaxVerticalShift: 100,
		},
		Placement: Placement{
			NavMeshRadii:      []float64{5, 15, 50},
			VerticalReach:     200,
			VerticalScanSteps: 60,
			RayLength:         600,
			GroundClearance:   0.5,
			GridOffsets:       []float64{0, 1, 2, 4, 6, 8},
			SpawnAnchorNames:  []string{"SpawnPoint", "PlayerSpawn", "Respawn", "StartPosition"},
		},
		Overlap: Overlap{
			FootprintRadius:  0.4,
			RaiseStep:        0.25,
			MaxRaiseGrounded: 3.0,
			MaxRaise:         2.0,
		},
		Mover: Mover{
			ResumeDelayMs:  400,
			SettlePollMs:   100,
			SettleDistance: 1.0,
			MovementDenylist: []string{
				"locomotion",
				"motor",
				"charactercontroller",
				"rigidbodymovement",
			},
		},
	}
}

// Load reads a yaml file over the defaults. Missing keys keep their default
// values.
func Load(path string) (*Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Travel.PaymentPolicy {
	case PayAfterPlacement, PayUpFront:
	default:
		return fmt.Errorf("unknown payment policy %q", c.Travel.PaymentPolicy)
	}
	if c.Travel.DefaultCost < 0 {
		return fmt.Errorf("defaultCost must not be negative, got %d", c.Travel.DefaultCost)
	}
	if c.Overlap.RaiseStep <= 0 {
		return fmt.Errorf("overlap raiseStep must be positive, got %v", c.Overlap.RaiseStep)
	}
	if len(c.Placement.NavMeshRadii) == 0 {
		return fmt.Errorf("placement navMeshRadii must not be empty")
	}
	return nil
}
