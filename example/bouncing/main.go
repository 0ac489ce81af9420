// Command bouncing runs a ball scene described by a TOML config through the
// collision advance engine and reports totals and energy drift at the end.
package main

import (
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/myphysicslab/impact"
	"github.com/myphysicslab/impact/ball"
	"github.com/myphysicslab/impact/config"
	"github.com/myphysicslab/impact/ode"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "bouncing: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to a TOML config; built-in scene when empty")
	flag.Parse()

	cfg := config.Default()
	if configPath != "" {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
	}

	log, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer log.Sync()

	sys, err := buildSystem(cfg, log)
	if err != nil {
		return err
	}

	adv, err := buildAdvance(cfg, sys, log)
	if err != nil {
		return err
	}

	var impacts int
	sys.Events().Subscribe(ball.IMPACT, func(ev ball.Event) {
		impacts++
		imp := ev.(ball.ImpactEvent)
		other := "wall"
		if imp.B != nil {
			other = imp.B.Name
		}
		log.Debug("impact",
			zap.String("a", imp.A.Name),
			zap.String("b", other),
			zap.Float64("impulse", imp.Impulse))
	})
	sys.Events().Subscribe(ball.CONTACT_ENTER, func(ev ball.Event) {
		enter := ev.(ball.ContactEnterEvent)
		other := "wall"
		if enter.B != nil {
			other = enter.B.Name
		}
		log.Debug("contact enter", zap.String("a", enter.A.Name), zap.String("b", other))
	})

	startEnergy := sys.Energy().Total
	steps := int(math.Ceil(cfg.Sim.Duration / cfg.Sim.TimeStep))
	for i := 0; i < steps; i++ {
		if err := adv.AdvanceStep(); err != nil {
			return err
		}
		sys.Events().Flush()
	}

	endEnergy := sys.Energy().Total
	stats := adv.Stats()
	log.Info("run complete",
		zap.Float64("time", sys.Vars().Time()),
		zap.Int("impacts", impacts),
		zap.Float64("energyStart", startEnergy),
		zap.Float64("energyEnd", endEnergy),
		zap.Float64("energyDrift", endEnergy-startEnergy),
		zap.Int("contacts", stats.NumContacts),
		zap.String("totals", adv.Totals().String()))
	for _, b := range sys.Bodies() {
		log.Info("body",
			zap.String("name", b.Name),
			zap.Float64("x", b.Pos.X()),
			zap.Float64("y", b.Pos.Y()),
			zap.Float64("vx", b.Vel.X()),
			zap.Float64("vy", b.Vel.Y()))
	}
	return nil
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var zc zap.Config
	if cfg.Format == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", cfg.Level, err)
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func buildSystem(cfg *config.Config, log *zap.Logger) (*ball.System, error) {
	sys := ball.NewSystem()
	sys.SetLogger(log.Named("ball"))
	sys.SetGravity(cfg.Scene.Gravity)
	sys.SetMutualGravity(cfg.Scene.MutualGravity)
	sys.SetDamping(cfg.Scene.Damping)
	sys.SetElasticity(cfg.Scene.Elasticity)
	sys.SetSeed(cfg.Sim.Seed)
	if len(cfg.Scene.Walls) == 4 {
		w := cfg.Scene.Walls
		sys.SetEnclosure(w[0], w[1], w[2], w[3])
	}

	byName := make(map[string]*ball.Body)
	for _, bc := range cfg.Scene.Balls {
		mass := bc.Mass
		if mass <= 0 {
			mass = math.Inf(1)
		}
		b := sys.AddBody(bc.Name, mass, bc.Radius,
			mgl64.Vec2{bc.Pos[0], bc.Pos[1]}, mgl64.Vec2{bc.Vel[0], bc.Vel[1]})
		byName[bc.Name] = b
	}
	for _, rc := range cfg.Scene.Ropes {
		if _, err := sys.AddRope(byName[rc.A], byName[rc.B], rc.Length); err != nil {
			return nil, err
		}
	}
	return sys, nil
}

func buildAdvance(cfg *config.Config, sys *ball.System, log *zap.Logger) (*impact.Advance, error) {
	solver, err := solverByName(cfg.Sim.Solver)
	if err != nil {
		return nil, err
	}
	handling, err := impact.ParseHandling(cfg.Sim.Handling)
	if err != nil {
		return nil, err
	}
	extra, err := impact.ParseExtraAccel(cfg.Sim.ExtraAccel)
	if err != nil {
		return nil, err
	}

	adv := impact.New(sys, solver)
	adv.SetLogger(log.Named("advance"))
	adv.SetTimeStep(cfg.Sim.TimeStep)
	adv.SetDistanceTol(cfg.Sim.DistanceTol)
	adv.SetVelocityTol(cfg.Sim.VelocityTol)
	if err := adv.SetCollisionAccuracy(cfg.Sim.Accuracy); err != nil {
		return nil, err
	}
	adv.SetCollisionHandling(handling)
	adv.SetExtraAccel(extra)
	adv.SetJointSmallImpacts(cfg.Sim.JointSmallImpacts)
	adv.SetMaxSearchIterations(cfg.Sim.MaxSearchIters)
	return adv, nil
}

func solverByName(name string) (ode.Solver, error) {
	switch name {
	case "euler":
		return ode.Euler{}, nil
	case "modified-euler":
		return ode.ModifiedEuler{}, nil
	case "runge-kutta":
		return ode.RungeKutta{}, nil
	}
	return nil, fmt.Errorf("unknown solver %q", name)
}
