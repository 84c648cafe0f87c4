// Package sim orchestrates the per-timestep solver pipeline: kinematics
// update, influence assembly, Kutta solve, FSI sub-iteration loop and wake
// rollup. Geometry generation and the beam finite-element solve remain
// external collaborators supplied through interfaces.
package sim

import (
	"context"
	"fmt"
	"log"

	"github.com/flexswim/bem2d/beam"
	"github.com/flexswim/bem2d/config"
	"github.com/flexswim/bem2d/fsi"
	"github.com/flexswim/bem2d/influence"
	"github.com/flexswim/bem2d/kutta"
	"github.com/flexswim/bem2d/swimmer"
	"github.com/flexswim/bem2d/wake"
)

// ViscousModel supplies the optional per-panel viscous force correction,
// flattened (x, z) pairs over the body panels.
type ViscousModel interface {
	Forces(b *swimmer.Body) []float64
}

// Kinematics positions a swimmer's body (and, when a structural mesh is
// coupled, its kinematic node positions) for a point in time, and supplies
// the panel source strengths. Returns the pitch angle and heave offset.
type Kinematics interface {
	Update(s *swimmer.Swimmer, solid *beam.Solid, t float64) (theta, heave float64, err error)
}

// StepStats summarizes one completed timestep.
type StepStats struct {
	Step         int
	KuttaIters   int
	KuttaOK      bool
	DeltaCp      float64
	OuterCorr    int
	FsiNorm      float64
	FsiConverged bool
}

// Driver runs the coupled simulation. Solid, Beam and Coupling may all be
// nil for a rigid-body run; they must be set together for a flexible one.
type Driver struct {
	Swimmer  *swimmer.Swimmer
	Kin      Kinematics
	Solver   *kutta.Solver
	Solid    *beam.Solid
	Beam     beam.Solver
	Coupling *fsi.Coupling
	State    *beam.State
	Viscous  ViscousModel
	Cfg      *config.Config

	scheme fsi.Scheme
	method fsi.InterpMethod
	step   int
	rigidX []float64
	rigidZ []float64
}

// NewDriver validates the collaborator wiring and parses the configured
// coupling scheme and interpolation method once.
func NewDriver(s *swimmer.Swimmer, kin Kinematics, solver *kutta.Solver, cfg *config.Config) (*Driver, error) {
	if s == nil || kin == nil || solver == nil {
		return nil, fmt.Errorf("driver needs a swimmer, kinematics and a kutta solver")
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	scheme, err := cfg.Scheme()
	if err != nil {
		return nil, err
	}
	method, err := cfg.Method()
	if err != nil {
		return nil, err
	}
	return &Driver{
		Swimmer: s,
		Kin:     kin,
		Solver:  solver,
		Cfg:     cfg,
		scheme:  scheme,
		method:  method,
		rigidX:  make([]float64, s.Body.N+1),
		rigidZ:  make([]float64, s.Body.N+1),
	}, nil
}

// AttachStructure wires the flexible-body collaborators into the driver.
func (d *Driver) AttachStructure(solid *beam.Solid, solver beam.Solver, c *fsi.Coupling) error {
	if solid == nil || solver == nil || c == nil {
		return fmt.Errorf("flexible coupling needs solid, beam solver and coupling state together")
	}
	if err := c.ReadControls(d.Cfg.RelaxationFactor, d.Cfg.MaxOuterCorr); err != nil {
		return err
	}
	d.Solid = solid
	d.Beam = solver
	d.Coupling = c
	d.State = &beam.State{}
	return nil
}

// Run advances the simulation the configured number of timesteps, checking
// for cancellation between steps.
func (d *Driver) Run(ctx context.Context, onStep func(StepStats)) error {
	for i := 0; i < d.Cfg.Steps; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		stats, err := d.Step()
		if err != nil {
			return fmt.Errorf("step %d: %w", d.step, err)
		}
		if onStep != nil {
			onStep(stats)
		}
	}
	return nil
}

// Step advances one timestep.
func (d *Driver) Step() (StepStats, error) {
	d.step++
	s := d.Swimmer
	t := float64(d.step) * d.Cfg.Dt
	stats := StepStats{Step: d.step}

	theta, heave, err := d.Kin.Update(s, d.Solid, t)
	if err != nil {
		return stats, fmt.Errorf("kinematics: %w", err)
	}
	copy(d.rigidX, s.Body.X)
	copy(d.rigidZ, s.Body.Z)

	// Shed: the trailing-edge strength convects into a new wake element and
	// the current strength slot opens for this step's solve.
	s.Edge.Mu[1] = s.Edge.Mu[0]
	s.Wake.Append(s.Edge.X[swimmer.EdgePanels], s.Edge.Z[swimmer.EdgePanels])

	if d.Coupling == nil {
		res, err := d.solveFlow()
		if err != nil {
			return stats, err
		}
		stats.KuttaIters, stats.KuttaOK, stats.DeltaCp = res.Iterations, res.Converged, res.DeltaCp
	} else {
		d.Coupling.ResetRelaxation()
		for outer := 1; ; outer++ {
			stats.OuterCorr = outer
			res, err := d.solveFlow()
			if err != nil {
				return stats, err
			}
			stats.KuttaIters, stats.KuttaOK, stats.DeltaCp = res.Iterations, res.Converged, res.DeltaCp

			err = d.Coupling.SetInterfaceForce(d.Solid, s.Body, d.State, theta, heave,
				outer, d.viscousForces(), d.method, d.Cfg.Chord, d.step)
			if err != nil {
				return stats, fmt.Errorf("load transfer: %w", err)
			}
			if err := d.Beam.Solve(d.State, d.Solid); err != nil {
				return stats, fmt.Errorf("beam solve: %w", err)
			}
			err = d.Coupling.GetDisplacements(d.Solid, s.Body, d.State, theta, heave,
				d.method, d.Cfg.FlexRatio)
			if err != nil {
				return stats, fmt.Errorf("displacement transfer: %w", err)
			}
			d.Coupling.CalcResidual(d.Solid, outer)
			stats.FsiNorm = d.Coupling.Norm
			if d.Coupling.Norm < d.Cfg.FsiTol {
				stats.FsiConverged = true
				break
			}
			if outer >= d.Cfg.MaxOuterCorr {
				log.Printf("fsi: sub-iteration cap %d reached at step %d, residual norm %.3e",
					d.Cfg.MaxOuterCorr, d.step, d.Coupling.Norm)
				break
			}
			if err := d.Coupling.SetInterfaceDisplacement(outer, d.scheme); err != nil {
				return stats, err
			}
			if err := d.applyInterfaceDisplacement(); err != nil {
				return stats, fmt.Errorf("interface update: %w", err)
			}
		}
	}

	if err := wake.Rollup([]*swimmer.Swimmer{s}, d.Cfg.Dt, d.step); err != nil {
		return stats, fmt.Errorf("wake rollup: %w", err)
	}
	return stats, nil
}

func (d *Driver) solveFlow() (kutta.Result, error) {
	sws := []*swimmer.Swimmer{d.Swimmer}
	wake.BodyParticleVelocity(sws, d.step)
	lay := influence.NewLayout(sws, d.step)
	m, err := influence.Assemble(sws, lay, d.step, false)
	if err != nil {
		return kutta.Result{}, fmt.Errorf("influence assembly: %w", err)
	}
	res, err := d.Solver.Solve(sws, lay, m, d.Cfg.Dt, d.step)
	if err != nil {
		return res, fmt.Errorf("kutta solve: %w", err)
	}
	return res, nil
}

// applyInterfaceDisplacement moves the fluid panels to the relaxed interface
// position: the rigid kinematic geometry plus the current displacement
// field.
func (d *Driver) applyInterfaceDisplacement() error {
	b := d.Swimmer.Body
	x := make([]float64, b.N+1)
	z := make([]float64, b.N+1)
	for i := 0; i <= b.N; i++ {
		x[i] = d.rigidX[i] + d.Coupling.FluidDispl[2*i]
		z[i] = d.rigidZ[i] + d.Coupling.FluidDispl[2*i+1]
	}
	return b.SetGeometry(x, z)
}

// viscousForces returns the externally supplied viscous force correction,
// or nil for pressure-only loads. No skin-friction model ships with the
// solver; the switch only enables a caller-provided one.
func (d *Driver) viscousForces() []float64 {
	if !d.Cfg.ViscousDrag || d.Viscous == nil {
		return nil
	}
	return d.Viscous.Forces(d.Swimmer.Body)
}
