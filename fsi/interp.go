package fsi

import (
	"fmt"

	"gonum.org/v1/gonum/interp"
)

// outsideMode fixes what an interpolation query outside the fitted arclength
// range returns: zero (loads beyond the meanline carry no force) or the
// boundary value (surface positions are clamped, never extrapolated).
type outsideMode int

const (
	outsideZero outsideMode = iota
	outsideClamp
)

// interpolate fits the selected 1D predictor to (xs, ys) and evaluates it at
// the query points. xs must be strictly increasing; queries may be in any
// order.
func interpolate(method InterpMethod, xs, ys, query []float64, mode outsideMode) ([]float64, error) {
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("interpolation needs matching abscissa/ordinate lengths, got %d and %d", len(xs), len(ys))
	}
	if len(xs) < 2 {
		return nil, fmt.Errorf("interpolation needs at least 2 points, got %d", len(xs))
	}
	for i := 1; i < len(xs); i++ {
		if xs[i] <= xs[i-1] {
			return nil, fmt.Errorf("interpolation abscissae must be strictly increasing (xs[%d]=%g, xs[%d]=%g)", i-1, xs[i-1], i, xs[i])
		}
	}

	var pred interp.FittablePredictor
	switch method {
	case MethodLinear:
		pred = &interp.PiecewiseLinear{}
	case MethodCubicSpline:
		pred = &interp.NaturalCubic{}
	default:
		return nil, fmt.Errorf("invalid interpolation method %q: valid methods are %q and %q",
			method.String(), MethodLinear.String(), MethodCubicSpline.String())
	}
	if err := pred.Fit(xs, ys); err != nil {
		return nil, fmt.Errorf("interpolation fit: %w", err)
	}

	out := make([]float64, len(query))
	lo, hi := xs[0], xs[len(xs)-1]
	for i, q := range query {
		switch {
		case q < lo:
			if mode == outsideClamp {
				out[i] = ys[0]
			}
		case q > hi:
			if mode == outsideClamp {
				out[i] = ys[len(ys)-1]
			}
		default:
			out[i] = pred.Predict(q)
		}
	}
	return out, nil
}
