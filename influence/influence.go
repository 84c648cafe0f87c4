// Package influence builds the dense boundary-element influence matrices
// coupling every panel singularity to every collocation point across all
// simulated bodies. Rows index the panel receiving the influence.
package influence

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/flexswim/bem2d/geom"
	"github.com/flexswim/bem2d/swimmer"
)

// Layout is the immutable per-step index layout of the assembled global
// matrices: the offset of each swimmer's body, edge and wake blocks, and the
// block totals. Recomputed once per timestep (the wake grows by one element
// per step) and passed by value into assembly and solve.
type Layout struct {
	NB, NE, NW       int
	Body, Edge, Wake []int
}

// NewLayout computes the global block offsets for the given timestep.
func NewLayout(swimmers []*swimmer.Swimmer, step int) Layout {
	lay := Layout{
		Body: make([]int, len(swimmers)),
		Edge: make([]int, len(swimmers)),
		Wake: make([]int, len(swimmers)),
	}
	for i, s := range swimmers {
		lay.Body[i] = lay.NB
		lay.Edge[i] = lay.NE
		lay.Wake[i] = lay.NW
		lay.NB += s.Body.N
		lay.NE += swimmer.EdgePanels
		lay.NW += s.Wake.Relevant(step)
	}
	return lay
}

// Matrices holds the assembled influence matrices for one timestep.
//
//	Bs  : body source      -> potential at body collocation points (NB x NB)
//	A   : body doublet     -> potential, the system matrix before Kutta
//	      augmentation (NB x NB)
//	Bde : edge doublet     -> potential (NB x NE)
//	Bdw : wake doublet     -> potential (NB x NW); nil unless assembled with
//	      wake doublet panels (the extended multi-step formulation)
type Matrices struct {
	Bs, A, Bde *mat.Dense
	Bdw        *mat.Dense
	SigmaAll   *mat.VecDense
	MuWakeAll  *mat.VecDense
}

// sourcePotential is the closed-form potential of a constant-strength source
// panel evaluated at a point in the panel's local frame.
func sourcePotential(xp1, xp2, zp float64) float64 {
	return (xp1*math.Log(xp1*xp1+zp*zp) - xp2*math.Log(xp2*xp2+zp*zp) +
		2*zp*(math.Atan2(zp, xp2)-math.Atan2(zp, xp1))) / (4 * math.Pi)
}

// doubletPotential is the closed-form potential of a constant-strength
// doublet panel evaluated at a point in the panel's local frame. The
// four-quadrant arctangent makes the self-influence limit reduce to -1/2.
func doubletPotential(xp1, xp2, zp float64) float64 {
	return -(math.Atan2(zp, xp2) - math.Atan2(zp, xp1)) / (2 * math.Pi)
}

// Assemble builds the influence matrices for one timestep. When wakeDoublets
// is set and the wake is non-empty, the wake history is additionally
// represented as doublet panels chained from the trailing edge (Bdw,
// MuWakeAll); otherwise wake influence is left to the particle kernels and
// Bdw is nil.
func Assemble(swimmers []*swimmer.Swimmer, lay Layout, step int, wakeDoublets bool) (*Matrices, error) {
	if len(swimmers) == 0 {
		return nil, fmt.Errorf("no swimmers to assemble")
	}
	m := &Matrices{
		Bs:       mat.NewDense(lay.NB, lay.NB, nil),
		A:        mat.NewDense(lay.NB, lay.NB, nil),
		Bde:      mat.NewDense(lay.NB, lay.NE, nil),
		SigmaAll: mat.NewVecDense(lay.NB, nil),
	}
	for ii, si := range swimmers {
		for j := 0; j < si.Body.N; j++ {
			m.SigmaAll.SetVec(lay.Body[ii]+j, si.Body.Sigma[j])
		}
	}

	// Body singularities influencing all bodies' collocation points.
	for ii, si := range swimmers {
		for ti, st := range swimmers {
			lf, err := geom.Transformation(st.Body.XCol, st.Body.ZCol, si.Body.X, si.Body.Z)
			if err != nil {
				return nil, fmt.Errorf("body %d onto body %d: %w", ii, ti, err)
			}
			for j := 0; j < si.Body.N; j++ {
				for t := 0; t < st.Body.N; t++ {
					xp1, xp2, zp := lf.Xp1[j][t], lf.Xp2[j][t], lf.Zp[j][t]
					m.Bs.Set(lay.Body[ti]+t, lay.Body[ii]+j, sourcePotential(xp1, xp2, zp))
					m.A.Set(lay.Body[ti]+t, lay.Body[ii]+j, doubletPotential(xp1, xp2, zp))
				}
			}
		}
	}

	// Edge doublet panels influencing the bodies.
	for ii, si := range swimmers {
		for ti, st := range swimmers {
			lf, err := geom.Transformation(st.Body.XCol, st.Body.ZCol, si.Edge.X, si.Edge.Z)
			if err != nil {
				return nil, fmt.Errorf("edge %d onto body %d: %w", ii, ti, err)
			}
			for j := 0; j < swimmer.EdgePanels; j++ {
				for t := 0; t < st.Body.N; t++ {
					m.Bde.Set(lay.Body[ti]+t, lay.Edge[ii]+j,
						doubletPotential(lf.Xp1[j][t], lf.Xp2[j][t], lf.Zp[j][t]))
				}
			}
		}
	}

	if !wakeDoublets || lay.NW == 0 {
		return m, nil
	}

	// Wake doublet panels influencing the bodies: the shed history chained
	// from the last trailing-edge point.
	m.Bdw = mat.NewDense(lay.NB, lay.NW, nil)
	m.MuWakeAll = mat.NewVecDense(lay.NW, nil)
	for ii, si := range swimmers {
		nw := si.Wake.Relevant(step)
		if nw == 0 {
			continue
		}
		wx := make([]float64, nw+1)
		wz := make([]float64, nw+1)
		wx[0] = si.Edge.X[swimmer.EdgePanels]
		wz[0] = si.Edge.Z[swimmer.EdgePanels]
		copy(wx[1:], si.Wake.X[:nw])
		copy(wz[1:], si.Wake.Z[:nw])
		for k := 0; k < nw; k++ {
			m.MuWakeAll.SetVec(lay.Wake[ii]+k, si.Wake.Mu[k])
		}
		for ti, st := range swimmers {
			lf, err := geom.Transformation(st.Body.XCol, st.Body.ZCol, wx, wz)
			if err != nil {
				return nil, fmt.Errorf("wake %d onto body %d: %w", ii, ti, err)
			}
			for k := 0; k < nw; k++ {
				for t := 0; t < st.Body.N; t++ {
					m.Bdw.Set(lay.Body[ti]+t, lay.Wake[ii]+k,
						doubletPotential(lf.Xp1[k][t], lf.Xp2[k][t], lf.Zp[k][t]))
				}
			}
		}
	}
	return m, nil
}
