// Package kutta solves for the body doublet strengths satisfying the
// unsteady Kutta condition: equal pressure on both sides of the trailing-edge
// wake cut. The circulation shed at the trailing edge is the scalar unknown,
// found by an explicit-Kutta first guess followed by secant iteration on the
// trailing-edge pressure jump.
package kutta

import (
	"fmt"
	"log"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/flexswim/bem2d/influence"
	"github.com/flexswim/bem2d/swimmer"
)

const (
	// DefaultTol is the trailing-edge pressure jump below which the
	// circulation iteration is converged.
	DefaultTol = 1e-4
	// DefaultMaxIter bounds the circulation iteration so the solve always
	// terminates. Hitting the cap is a soft failure: the last solution is
	// kept and a warning is logged.
	DefaultMaxIter = 1000
	// secondGuessRatio scales the explicit-Kutta guess to seed the secant
	// iteration.
	secondGuessRatio = 0.8
)

// Solver iterates the Kutta condition for a set of swimmers sharing a flow
// domain. Zero-valued Tol and MaxIter fall back to the defaults.
type Solver struct {
	Pressure swimmer.PressureModel
	Rho      float64
	Tol      float64
	MaxIter  int
}

// Result reports how the circulation iteration ended.
type Result struct {
	Iterations int
	Converged  bool
	DeltaCp    float64
}

// Solve computes the body doublet strengths for one timestep and performs
// the post-convergence circulation bookkeeping. Only the single-body case
// with the Kutta condition enabled iterates; multi-body and Kutta-disabled
// configurations take the explicit-Kutta solution directly.
func (s *Solver) Solve(swimmers []*swimmer.Swimmer, lay influence.Layout, m *influence.Matrices, delT float64, step int) (Result, error) {
	if s.Pressure == nil {
		return Result{}, fmt.Errorf("no pressure model configured")
	}
	tol := s.Tol
	if tol == 0 {
		tol = DefaultTol
	}
	maxIter := s.MaxIter
	if maxIter == 0 {
		maxIter = DefaultMaxIter
	}

	// Right-hand side terms that do not change across circulation guesses:
	// the source contribution, the previous shed strength on the second edge
	// panel and, in the panel-wake formulation, the wake doublet history.
	base := mat.NewVecDense(lay.NB, nil)
	base.MulVec(m.Bs, m.SigmaAll)
	base.ScaleVec(-1, base)
	for i, sw := range swimmers {
		addScaledCol(base, m.Bde, lay.Edge[i]+1, -sw.Edge.Mu[1])
	}
	if m.Bdw != nil {
		var wakeTerm mat.VecDense
		wakeTerm.MulVec(m.Bdw, m.MuWakeAll)
		base.SubVec(base, &wakeTerm)
	}

	iterating := len(swimmers) == 1 && swimmers[0].KuttaEnabled
	var lu mat.LU
	res := Result{}

	for n := 1; ; n++ {
		res.Iterations = n
		switch {
		case n == 1:
			// Explicit Kutta: fold the edge influence into the system matrix
			// by forcing equal-and-opposite doublet strength at the panels
			// adjacent to the trailing edge.
			aug := mat.DenseCopyOf(m.A)
			for i := range swimmers {
				addMatCol(aug, m.Bde, lay.Body[i], lay.Edge[i], -1)
				addMatCol(aug, m.Bde, lay.Body[i]+swimmers[i].Body.N-1, lay.Edge[i], 1)
			}
			lu.Factorize(aug)
			var muAll mat.VecDense
			if err := lu.SolveVecTo(&muAll, false, base); err != nil {
				return res, fmt.Errorf("explicit Kutta solve: %w", err)
			}
			for i, sw := range swimmers {
				for j := 0; j < sw.Body.N; j++ {
					sw.Body.Mu[j] = muAll.AtVec(lay.Body[i] + j)
				}
				sw.MuGuess[0] = sw.Body.Mu[sw.Body.N-1] - sw.Body.Mu[0]
			}
		case n == 2:
			// The guess now enters through the right-hand side, so the bare
			// system matrix is factorized from here on.
			lu.Factorize(m.A)
			sw := swimmers[0]
			sw.MuGuess[1] = sw.MuGuess[0]
			sw.DeltaCp[1] = sw.DeltaCp[0]
			sw.MuGuess[0] = secondGuessRatio * sw.MuGuess[1]
		default:
			sw := swimmers[0]
			dMu := sw.MuGuess[0] - sw.MuGuess[1]
			dCp := sw.DeltaCp[0] - sw.DeltaCp[1]
			if dMu == 0 || dCp == 0 {
				log.Printf("kutta: secant stalled at iteration %d (delta_cp=%.3e), keeping last solution", n, sw.DeltaCp[0])
				res.DeltaCp = sw.DeltaCp[0]
				bookkeeping(swimmers, step)
				return res, nil
			}
			slope := dCp / dMu
			sw.MuGuess[1] = sw.MuGuess[0]
			sw.DeltaCp[1] = sw.DeltaCp[0]
			sw.MuGuess[0] = sw.MuGuess[1] - sw.DeltaCp[0]/slope
		}

		if n >= 2 {
			sw := swimmers[0]
			rhs := mat.VecDenseCopyOf(base)
			addScaledCol(rhs, m.Bde, lay.Edge[0], -sw.MuGuess[0])
			var muAll mat.VecDense
			if err := lu.SolveVecTo(&muAll, false, rhs); err != nil {
				return res, fmt.Errorf("circulation iteration %d: %w", n, err)
			}
			for j := 0; j < sw.Body.N; j++ {
				sw.Body.Mu[j] = muAll.AtVec(j)
			}
		}

		for _, sw := range swimmers {
			if err := s.Pressure.Pressure(sw.Body, s.Rho, delT, step); err != nil {
				return res, fmt.Errorf("pressure model: %w", err)
			}
		}
		if !iterating {
			break
		}
		sw := swimmers[0]
		sw.DeltaCp[0] = math.Abs(sw.Body.Cp[sw.Body.N-1] - sw.Body.Cp[0])
		res.DeltaCp = sw.DeltaCp[0]
		if sw.DeltaCp[0] < tol {
			res.Converged = true
			break
		}
		if n >= maxIter {
			log.Printf("kutta: iteration cap %d reached, delta_cp=%.3e; keeping last solution", maxIter, sw.DeltaCp[0])
			break
		}
	}
	if !iterating {
		res.Converged = true
	}
	bookkeeping(swimmers, step)
	return res, nil
}

// bookkeeping shifts the doublet-strength history, assigns the shed wake
// element its circulation and derives the point-vortex strengths used by the
// wake rollup.
func bookkeeping(swimmers []*swimmer.Swimmer, step int) {
	for _, sw := range swimmers {
		b := sw.Body
		b.ShiftMuHistory()

		sw.Edge.Mu[0] = sw.MuGuess[0]
		if step >= 1 && sw.Wake.Len() > 0 {
			last := sw.Wake.Len() - 1
			sw.Wake.Alpha[last] = sw.Edge.Mu[1] - sw.Edge.Mu[0]
			sw.Wake.Mu[last] = sw.Edge.Mu[1]
		}
		sw.Edge.Gamma[0] = -sw.Edge.Mu[0]
		sw.Edge.Gamma[1] = sw.Edge.Mu[0]

		b.Gamma[0] = -b.Mu[0]
		for j := 1; j < b.N; j++ {
			b.Gamma[j] = b.Mu[j-1] - b.Mu[j]
		}
		b.Gamma[b.N] = b.Mu[b.N-1]
	}
}

// addScaledCol adds scale times column col of m to dst.
func addScaledCol(dst *mat.VecDense, m *mat.Dense, col int, scale float64) {
	r, _ := m.Dims()
	for i := 0; i < r; i++ {
		dst.SetVec(i, dst.AtVec(i)+scale*m.At(i, col))
	}
}

// addMatCol adds scale times column srcCol of src to column dstCol of dst.
func addMatCol(dst, src *mat.Dense, dstCol, srcCol int, scale float64) {
	r, _ := src.Dims()
	for i := 0; i < r; i++ {
		dst.Set(i, dstCol, dst.At(i, dstCol)+scale*src.At(i, srcCol))
	}
}
