// Package config loads simulation settings and scene descriptions from TOML.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Sim     SimConfig     `toml:"sim"`
	Scene   SceneConfig   `toml:"scene"`
	Logging LoggingConfig `toml:"logging"`
}

type SimConfig struct {
	TimeStep          float64 `toml:"time_step"`
	Duration          float64 `toml:"duration"`
	DistanceTol       float64 `toml:"distance_tol"`
	VelocityTol       float64 `toml:"velocity_tol"`
	Accuracy          float64 `toml:"collision_accuracy"`
	Handling          string  `toml:"collision_handling"` // serial, simultaneous, serial-grouped-lastpass
	ExtraAccel        string  `toml:"extra_accel"`        // none, velocity, velocity-and-distance
	JointSmallImpacts bool    `toml:"joint_small_impacts"`
	Solver            string  `toml:"solver"` // euler, modified-euler, runge-kutta
	Seed              int64   `toml:"seed"`
	MaxSearchIters    int     `toml:"max_search_iterations"`
}

type SceneConfig struct {
	Gravity       float64      `toml:"gravity"`
	MutualGravity float64      `toml:"mutual_gravity"`
	Damping       float64      `toml:"damping"`
	Elasticity    float64      `toml:"elasticity"`
	Walls         []float64    `toml:"walls"` // x_min, x_max, y_min, y_max; empty disables walls
	Balls         []BallConfig `toml:"balls"`
	Ropes         []RopeConfig `toml:"ropes"`
}

type BallConfig struct {
	Name   string    `toml:"name"`
	Mass   float64   `toml:"mass"` // <= 0 marks an immovable anchor
	Radius float64   `toml:"radius"`
	Pos    []float64 `toml:"pos"`
	Vel    []float64 `toml:"vel"`
}

type RopeConfig struct {
	A      string  `toml:"a"`
	B      string  `toml:"b"`
	Length float64 `toml:"length"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

// Load reads and validates a config file, applying defaults for anything
// the file leaves unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns the baseline configuration: two elastic balls bouncing in
// a unit box under gravity.
func Default() *Config {
	return &Config{
		Sim: SimConfig{
			TimeStep:       0.025,
			Duration:       10,
			DistanceTol:    0.01,
			VelocityTol:    0.05,
			Accuracy:       0.6,
			Handling:       "serial",
			ExtraAccel:     "velocity",
			Solver:         "runge-kutta",
			Seed:           1,
			MaxSearchIters: 50,
		},
		Scene: SceneConfig{
			Gravity:    3,
			Elasticity: 0.8,
			Walls:      []float64{-3, 3, -3, 3},
			Balls: []BallConfig{
				{Name: "ball1", Mass: 1, Radius: 0.5, Pos: []float64{-1, 1}, Vel: []float64{1.5, 0}},
				{Name: "ball2", Mass: 2, Radius: 0.6, Pos: []float64{1, 0}, Vel: []float64{-0.5, 0.5}},
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate checks ranges and cross references.
func (c *Config) Validate() error {
	if c.Sim.TimeStep <= 0 {
		return fmt.Errorf("sim.time_step %v must be positive", c.Sim.TimeStep)
	}
	if c.Sim.Duration <= 0 {
		return fmt.Errorf("sim.duration %v must be positive", c.Sim.Duration)
	}
	if c.Sim.Accuracy <= 0 || c.Sim.Accuracy > 1 {
		return fmt.Errorf("sim.collision_accuracy %v outside (0,1]", c.Sim.Accuracy)
	}
	if c.Scene.Elasticity < 0 || c.Scene.Elasticity > 1 {
		return fmt.Errorf("scene.elasticity %v outside [0,1]", c.Scene.Elasticity)
	}
	if n := len(c.Scene.Walls); n != 0 && n != 4 {
		return fmt.Errorf("scene.walls needs 4 values (x_min, x_max, y_min, y_max), got %d", n)
	}
	if len(c.Scene.Walls) == 4 {
		w := c.Scene.Walls
		if w[0] >= w[1] || w[2] >= w[3] {
			return fmt.Errorf("scene.walls %v is not a valid rectangle", w)
		}
	}
	names := make(map[string]bool)
	for i, b := range c.Scene.Balls {
		if b.Name == "" {
			return fmt.Errorf("scene.balls[%d] has no name", i)
		}
		if names[b.Name] {
			return fmt.Errorf("duplicate ball name %q", b.Name)
		}
		names[b.Name] = true
		if b.Radius <= 0 {
			return fmt.Errorf("ball %q radius %v must be positive", b.Name, b.Radius)
		}
		if len(b.Pos) != 2 || len(b.Vel) != 2 {
			return fmt.Errorf("ball %q needs pos and vel as [x, y]", b.Name)
		}
	}
	for i, r := range c.Scene.Ropes {
		if !names[r.A] || !names[r.B] {
			return fmt.Errorf("scene.ropes[%d] references unknown ball (%q, %q)", i, r.A, r.B)
		}
		if r.A == r.B {
			return fmt.Errorf("scene.ropes[%d] connects %q to itself", i, r.A)
		}
		if r.Length <= 0 {
			return fmt.Errorf("scene.ropes[%d] length %v must be positive", i, r.Length)
		}
	}
	switch c.Sim.Solver {
	case "euler", "modified-euler", "runge-kutta":
	default:
		return fmt.Errorf("unknown solver %q", c.Sim.Solver)
	}
	return nil
}
