// Package wake advects the shed vortex elements under the velocity induced
// by all singularities in the flow: body source panels, body and edge point
// vortices, and the shed particle history itself. One formulation is
// implemented throughout: the full-history particle model, where the wake
// acts on targets through a regularized vector-potential kernel.
package wake

import (
	"fmt"
	"math"

	"github.com/flexswim/bem2d/geom"
	"github.com/flexswim/bem2d/swimmer"
)

// dStep is the central finite-difference step for the vector-potential
// velocity evaluation.
const dStep = 1e-5

// VectorPotential computes the vector potential induced at each target point
// by a set of vortex particles, regularized with the squared core radius.
func VectorPotential(xt, zt, xi, zi, alpha []float64, deltaCore float64) []float64 {
	psi := make([]float64, len(xt))
	d2 := deltaCore * deltaCore
	for t := range xt {
		var sum float64
		for i := range xi {
			dx := xt[t] - xi[i]
			dz := zt[t] - zi[i]
			r := math.Sqrt(dx*dx + dz*dz + d2)
			sum += alpha[i] / (4 * math.Pi * r)
		}
		psi[t] = sum
	}
	return psi
}

// particleInfluences gathers the vortex particle set every swimmer exposes to
// the flow: the shed history prefixed by the last trailing-edge point, which
// carries the previous step's edge strength.
func particleInfluences(swimmers []*swimmer.Swimmer, step int) (xi, zi, alpha []float64, deltaCore float64) {
	for _, s := range swimmers {
		ni := s.Wake.Relevant(step)
		xi = append(xi, s.Edge.X[swimmer.EdgePanels])
		zi = append(zi, s.Edge.Z[swimmer.EdgePanels])
		alpha = append(alpha, s.Edge.Mu[1])
		xi = append(xi, s.Wake.X[:ni]...)
		zi = append(zi, s.Wake.Z[:ni]...)
		alpha = append(alpha, s.Wake.Alpha[:ni]...)
		deltaCore = s.DeltaCore
	}
	return xi, zi, alpha, deltaCore
}

// ParticleVelocity evaluates the wake-particle induced velocity at the given
// target points by central finite differencing of the vector potential.
// Returns zero velocity for step <= 1, before any particle has convected.
func ParticleVelocity(xt, zt []float64, swimmers []*swimmer.Swimmer, step int) (ux, uz []float64) {
	ux = make([]float64, len(xt))
	uz = make([]float64, len(xt))
	if step <= 1 {
		return ux, uz
	}
	xi, zi, alpha, deltaCore := particleInfluences(swimmers, step)
	shift := func(pts []float64, d float64) []float64 {
		out := make([]float64, len(pts))
		for i, p := range pts {
			out[i] = p + d
		}
		return out
	}
	psiXPlus := VectorPotential(shift(xt, dStep), zt, xi, zi, alpha, deltaCore)
	psiXMinus := VectorPotential(shift(xt, -dStep), zt, xi, zi, alpha, deltaCore)
	psiZPlus := VectorPotential(xt, shift(zt, dStep), xi, zi, alpha, deltaCore)
	psiZMinus := VectorPotential(xt, shift(zt, -dStep), xi, zi, alpha, deltaCore)
	for t := range xt {
		ux[t] = (psiZMinus[t] - psiZPlus[t]) / (2 * dStep)
		uz[t] = (psiXPlus[t] - psiXMinus[t]) / (2 * dStep)
	}
	return ux, uz
}

// BodyParticleVelocity fills each body's UPsi arrays with the wake-particle
// induced velocity at its collocation points.
func BodyParticleVelocity(swimmers []*swimmer.Swimmer, step int) {
	for _, s := range swimmers {
		ux, uz := ParticleVelocity(s.Body.XCol, s.Body.ZCol, swimmers, step)
		copy(s.Body.UPsiX, ux)
		copy(s.Body.UPsiZ, uz)
	}
}

// Rollup advances every active wake element by one explicit Euler step under
// the total induced velocity. All velocities are evaluated at the current
// positions before any element moves; elements beyond the active prefix are
// untouched, so the wake only ever grows in shed order.
func Rollup(swimmers []*swimmer.Swimmer, delT float64, step int) error {
	if step == 0 {
		return nil
	}
	type motion struct{ vx, vz []float64 }
	moves := make([]motion, len(swimmers))

	for ti, st := range swimmers {
		nt := st.Wake.Relevant(step)
		if nt == 0 {
			continue
		}
		wx := st.Wake.X[:nt]
		wz := st.Wake.Z[:nt]
		vx := make([]float64, nt)
		vz := make([]float64, nt)
		d2 := st.DeltaCore * st.DeltaCore

		for ii, si := range swimmers {
			// Source panel contribution, evaluated in each panel's local
			// frame and rotated back by the panel normal angle.
			lf, err := geom.Transformation(wx, wz, si.Body.X, si.Body.Z)
			if err != nil {
				return fmt.Errorf("wake targets %d against body %d: %w", ti, ii, err)
			}
			pg, err := geom.PanelVectors(si.Body.X, si.Body.Z)
			if err != nil {
				return err
			}
			for j := 0; j < si.Body.N; j++ {
				beta := math.Atan2(-pg.Nx[j], pg.Nz[j])
				cb, sb := math.Cos(beta), math.Sin(beta)
				for t := 0; t < nt; t++ {
					xp1, xp2, zp := lf.Xp1[j][t], lf.Xp2[j][t], lf.Zp[j][t]
					d1 := math.Log((xp1*xp1+zp*zp)/(xp2*xp2+zp*zp)) / (4 * math.Pi)
					d2k := (math.Atan2(zp, xp2) - math.Atan2(zp, xp1)) / (2 * math.Pi)
					vx[t] += (d1*cb - d2k*sb) * si.Body.Sigma[j]
					vz[t] += (d1*sb + d2k*cb) * si.Body.Sigma[j]
				}
			}

			// Body doublet sheet as point vortices at the panel endpoints.
			for k := 0; k <= si.Body.N; k++ {
				addVortex(vx, vz, wx, wz, si.Body.X[k], si.Body.Z[k], si.Body.Gamma[k], d2)
			}
			// Trailing-edge vortices.
			for k := 0; k < swimmer.EdgePanels; k++ {
				addVortex(vx, vz, wx, wz, si.Edge.X[k], si.Edge.Z[k], si.Edge.Gamma[k], d2)
			}
		}

		ux, uz := ParticleVelocity(wx, wz, swimmers, step)
		for t := 0; t < nt; t++ {
			vx[t] += ux[t]
			vz[t] += uz[t]
		}
		moves[ti] = motion{vx: vx, vz: vz}
	}

	for ti, st := range swimmers {
		mv := moves[ti]
		for t := range mv.vx {
			st.Wake.X[t] += mv.vx[t] * delT
			st.Wake.Z[t] += mv.vz[t] * delT
		}
	}
	return nil
}

// addVortex accumulates the regularized point-vortex velocity induced at
// every target by a single vortex of strength gamma.
func addVortex(vx, vz, xt, zt []float64, x0, z0, gamma, core2 float64) {
	for t := range xt {
		dx := xt[t] - x0
		dz := zt[t] - z0
		r2 := dx*dx + dz*dz
		denom := 2 * math.Pi * (r2 + core2)
		vx[t] += dz / denom * gamma
		vz[t] += -dx / denom * gamma
	}
}
