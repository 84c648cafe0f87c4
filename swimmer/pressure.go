package swimmer

import (
	"fmt"
	"math"
)

// PressureModel computes per-panel pressure and pressure coefficient from
// the current and historical doublet strengths. The Kutta solver calls it
// after every circulation guess and reads only Cp at the trailing panels, so
// alternative formulations can be swapped in without touching the solver.
type PressureModel interface {
	Pressure(b *Body, rho, delT float64, step int) error
}

// UnsteadyBernoulli is the default pressure model: tangential perturbation
// velocity from the surface gradient of the doublet sheet plus the unsteady
// potential term from the doublet-strength time derivative, referenced to
// the swimming speed URef.
type UnsteadyBernoulli struct {
	URef float64
}

// Pressure fills b.P and b.Cp.
func (m UnsteadyBernoulli) Pressure(b *Body, rho, delT float64, step int) error {
	if m.URef <= 0 {
		return fmt.Errorf("reference speed must be positive, got %g", m.URef)
	}
	if delT <= 0 {
		return fmt.Errorf("timestep must be positive, got %g", delT)
	}
	// Arclength positions of the collocation points.
	s := make([]float64, b.N)
	run := 0.0
	for j := 0; j < b.N; j++ {
		seg := math.Hypot(b.X[j+1]-b.X[j], b.Z[j+1]-b.Z[j])
		s[j] = run + 0.5*seg
		run += seg
	}
	u2 := m.URef * m.URef
	for j := 0; j < b.N; j++ {
		var qt float64
		switch {
		case j == 0:
			qt = (b.Mu[1] - b.Mu[0]) / (s[1] - s[0])
		case j == b.N-1:
			qt = (b.Mu[j] - b.Mu[j-1]) / (s[j] - s[j-1])
		default:
			qt = (b.Mu[j+1] - b.Mu[j-1]) / (s[j+1] - s[j-1])
		}
		var phiT float64
		if step > 0 {
			phiT = (b.Mu[j] - b.MuPast[0][j]) / delT
		}
		b.Cp[j] = 1 - qt*qt/u2 - 2*phiT/u2
		b.P[j] = 0.5 * rho * u2 * b.Cp[j]
	}
	return nil
}
