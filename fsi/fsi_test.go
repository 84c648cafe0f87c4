package fsi

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flexswim/bem2d/beam"
	"github.com/flexswim/bem2d/swimmer"
)

func diamondBody(t *testing.T) *swimmer.Body {
	t.Helper()
	x := []float64{1, 0.5, 0, 0.5, 1}
	z := []float64{0, -0.25, 0, 0.25, 0}
	b, err := swimmer.NewBody(x, z)
	require.NoError(t, err)
	return b
}

// testSolid builds a 2-element structural mesh matched to the 4-panel diamond
// body: nodes along the chord, camber-line parametrizations on both grids.
func testSolid(t *testing.T) *beam.Solid {
	t.Helper()
	solid, err := beam.NewSolid(2, 1)
	require.NoError(t, err)
	for i, x := range []float64{0, 0.5, 1} {
		n := beam.Node{X: x, S: x}
		solid.Nodes[i] = n
		solid.NodesNew[i] = n
		solid.Nodes0[i] = n
	}
	solid.MeanlineC0 = []float64{0.75, 0.25, 0.25, 0.75}
	solid.MeanlineP0 = []float64{1, 0.5, 0, 0.5, 1}
	solid.TBeam = []float64{0.1, 0.1}
	solid.TBeamStruct = []float64{0.1, 0.1}
	return solid
}

func TestParseScheme(t *testing.T) {
	s, err := ParseScheme("FixedRelaxation")
	require.NoError(t, err)
	assert.Equal(t, SchemeFixedRelaxation, s)

	s, err = ParseScheme("Aitken")
	require.NoError(t, err)
	assert.Equal(t, SchemeAitken, s)
	assert.Equal(t, "Aitken", s.String())

	_, err = ParseScheme("Gauss-Seidel")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FixedRelaxation")
	assert.Contains(t, err.Error(), "Aitken")
}

func TestParseInterpMethod(t *testing.T) {
	m, err := ParseInterpMethod("spline")
	require.NoError(t, err)
	assert.Equal(t, MethodCubicSpline, m)

	_, err = ParseInterpMethod("pchip")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "linear")
	assert.Contains(t, err.Error(), "spline")
}

func TestInterpolateModes(t *testing.T) {
	xs := []float64{0, 1, 2}
	ys := []float64{0, 2, 4}

	out, err := interpolate(MethodLinear, xs, ys, []float64{0.5, 1.5}, outsideZero)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, out[0], 1e-14)
	assert.InDelta(t, 3.0, out[1], 1e-14)

	// Loads vanish outside the fitted range; positions clamp to the boundary.
	out, err = interpolate(MethodLinear, xs, ys, []float64{-1, 3}, outsideZero)
	require.NoError(t, err)
	assert.Zero(t, out[0])
	assert.Zero(t, out[1])

	out, err = interpolate(MethodLinear, xs, ys, []float64{-1, 3}, outsideClamp)
	require.NoError(t, err)
	assert.Equal(t, 0.0, out[0])
	assert.Equal(t, 4.0, out[1])

	_, err = interpolate(MethodLinear, []float64{0, 0, 1}, []float64{0, 1, 2}, []float64{0.5}, outsideZero)
	assert.Error(t, err)
	_, err = interpolate(MethodLinear, []float64{0}, []float64{0}, []float64{0.5}, outsideZero)
	assert.Error(t, err)
}

func TestNewCouplingValidation(t *testing.T) {
	_, err := NewCoupling(3, 2)
	assert.Error(t, err)
	_, err = NewCoupling(0, 2)
	assert.Error(t, err)
	_, err = NewCoupling(4, 0)
	assert.Error(t, err)

	c, err := NewCoupling(4, 2)
	require.NoError(t, err)
	assert.Len(t, c.FluidDispl, 10)
	assert.Len(t, c.NodeDispl, 6)
}

func TestReadControlsAndReset(t *testing.T) {
	c, err := NewCoupling(4, 2)
	require.NoError(t, err)

	assert.Error(t, c.ReadControls(0, 10))
	assert.Error(t, c.ReadControls(1.5, 10))
	assert.Error(t, c.ReadControls(0.5, 0))

	require.NoError(t, c.ReadControls(0.5, 10))
	c.RelaxationFactor = 0.01
	c.ResetRelaxation()
	assert.Equal(t, 0.5, c.RelaxationFactor)
	assert.Equal(t, 10, c.MaxOuter)
}

func TestFirstSubiterationNormIsOne(t *testing.T) {
	c, err := NewCoupling(4, 2)
	require.NoError(t, err)
	solid := testSolid(t)

	for i := range c.DU {
		c.DU[i] = 0.1 * float64(i+1)
	}
	c.CalcResidual(solid, 1)
	assert.Equal(t, 1.0, c.Norm)
	assert.Equal(t, 1.0, c.MaxNorm)
	assert.Greater(t, c.MaxMagResidual, 0.0)

	// Halving the interface mismatch halves the scaled norm.
	for i := range c.DU {
		c.DU[i] *= 0.5
	}
	c.CalcResidual(solid, 2)
	assert.InDelta(t, 0.5, c.Norm, 1e-12)
	assert.InDelta(t, 0.5, c.MaxNorm, 1e-12)
}

func TestZeroInterfaceMismatchReadsConverged(t *testing.T) {
	c, err := NewCoupling(4, 2)
	require.NoError(t, err)
	solid := testSolid(t)

	c.CalcResidual(solid, 1)
	assert.Zero(t, c.Norm)
	assert.Zero(t, c.MaxNorm)
	assert.Zero(t, c.MaxMagResidual)
}

func TestFixedRelaxationUpdate(t *testing.T) {
	c, err := NewCoupling(4, 2)
	require.NoError(t, err)
	require.NoError(t, c.ReadControls(0.5, 10))

	c.Residual[0] = 1
	c.NodeResidual[0] = 2
	require.NoError(t, c.SetInterfaceDisplacement(1, SchemeFixedRelaxation))
	assert.Equal(t, 0.5, c.FluidDispl[0])
	assert.Equal(t, 1.0, c.NodeDispl[0])
	assert.Zero(t, c.FluidDisplOld[0])

	require.NoError(t, c.SetInterfaceDisplacement(2, SchemeFixedRelaxation))
	assert.Equal(t, 1.0, c.FluidDispl[0])
	assert.Equal(t, 0.5, c.FluidDisplOld[0])
}

func TestAitkenFactorClampedToOne(t *testing.T) {
	c, err := NewCoupling(4, 2)
	require.NoError(t, err)
	require.NoError(t, c.ReadControls(0.8, 10))

	// rOld = 1, r = 0.5: the secant ratio is 2, so the factor would grow to
	// 1.6 and must clamp.
	c.ResidualOld[0] = 1
	c.Residual[0] = 0.5
	require.NoError(t, c.SetInterfaceDisplacement(3, SchemeAitken))
	assert.Equal(t, 1.0, c.RelaxationFactor)
}

func TestAitkenFactorShrinksOnOscillation(t *testing.T) {
	c, err := NewCoupling(4, 2)
	require.NoError(t, err)
	require.NoError(t, c.ReadControls(0.8, 10))

	// Sign-flipping residual: ratio 0.5, factor 0.4.
	c.ResidualOld[0] = 1
	c.Residual[0] = -1
	require.NoError(t, c.SetInterfaceDisplacement(3, SchemeAitken))
	assert.InDelta(t, 0.4, c.RelaxationFactor, 1e-14)
	assert.True(t, c.RelaxationFactor > 0 && c.RelaxationFactor <= 1)
}

func TestAitkenStationaryResidualKeepsFactor(t *testing.T) {
	c, err := NewCoupling(4, 2)
	require.NoError(t, err)
	require.NoError(t, c.ReadControls(0.8, 10))

	c.ResidualOld[0] = 0.3
	c.Residual[0] = 0.3
	require.NoError(t, c.SetInterfaceDisplacement(3, SchemeAitken))
	assert.Equal(t, 0.8, c.RelaxationFactor)
}

func TestAitkenFallsBackToFixedEarly(t *testing.T) {
	c, err := NewCoupling(4, 2)
	require.NoError(t, err)
	require.NoError(t, c.ReadControls(0.7, 10))

	c.ResidualOld[0] = 1
	c.Residual[0] = 0.5
	require.NoError(t, c.SetInterfaceDisplacement(2, SchemeAitken))
	assert.Equal(t, 0.7, c.RelaxationFactor)
}

func TestSetInterfaceDisplacementRejectsUnknownScheme(t *testing.T) {
	c, err := NewCoupling(4, 2)
	require.NoError(t, err)
	require.NoError(t, c.ReadControls(0.5, 10))

	err = c.SetInterfaceDisplacement(3, Scheme(7))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "valid schemes")
}

func TestSetInterfaceForceZeroPressure(t *testing.T) {
	c, err := NewCoupling(4, 2)
	require.NoError(t, err)
	solid := testSolid(t)
	body := diamondBody(t)
	st := &beam.State{}

	err = c.SetInterfaceForce(solid, body, st, 0, 0, 1, nil, MethodLinear, 1.0, 1)
	require.NoError(t, err)

	// No pressure, no load.
	require.Len(t, st.Fload, 9)
	for i, f := range st.Fload {
		assert.Zero(t, f, "Fload[%d]", i)
	}

	// Section properties per element.
	require.Len(t, st.I, 2)
	assert.InDelta(t, 0.1*0.1*0.1/12, st.I[0], 1e-15)
	assert.Equal(t, []float64{0.5, 0.5}, st.L)
	assert.Equal(t, solid.TBeamStruct, st.A)

	// First-step initial conditions are zeroed, free DOFs exclude the clamp.
	assert.Len(t, st.UN, 9)
	assert.Len(t, st.UNPlus, 6)

	// Viscous correction array must match the panel count.
	err = c.SetInterfaceForce(solid, body, st, 0, 0, 1, make([]float64, 3), MethodLinear, 1.0, 1)
	assert.Error(t, err)
}

func TestSetInterfaceForcePitchSeedsNodes(t *testing.T) {
	c, err := NewCoupling(4, 2)
	require.NoError(t, err)
	solid := testSolid(t)
	body := diamondBody(t)
	st := &beam.State{}

	theta := 0.3
	heave := 0.05
	require.NoError(t, c.SetInterfaceForce(solid, body, st, theta, heave, 1, nil, MethodLinear, 1.0, 1))

	// The node chain follows the prescribed pitch and heave about the
	// leading edge.
	assert.InDelta(t, body.XLe, solid.Nodes[0].X, 1e-15)
	assert.InDelta(t, heave+body.ZLe, solid.Nodes[0].Z, 1e-15)
	assert.InDelta(t, body.XLe+1.0*math.Cos(theta), solid.Nodes[2].X, 1e-14)
	assert.InDelta(t, heave+body.ZLe+1.0*math.Sin(theta), solid.Nodes[2].Z, 1e-14)
}

func TestGetDisplacementsRigidOverride(t *testing.T) {
	c, err := NewCoupling(4, 2)
	require.NoError(t, err)
	solid := testSolid(t)
	body := diamondBody(t)
	st := &beam.State{UNPlus: make([]float64, 6)}

	// A fully rigid chordwise fraction pins every panel node to its
	// rigid-body position regardless of the structural solution.
	st.UNPlus[1] = 0.02
	require.NoError(t, c.GetDisplacements(solid, body, st, 0, 0, MethodLinear, 1.0))
	assert.Zero(t, c.MaxDU)
	for i, d := range c.DU {
		assert.Zero(t, d, "DU[%d]", i)
	}
}

func TestGetDisplacementsDeflection(t *testing.T) {
	c, err := NewCoupling(4, 2)
	require.NoError(t, err)
	solid := testSolid(t)
	body := diamondBody(t)

	// Pure z deflection of the free nodes with everything flexible.
	st := &beam.State{UNPlus: make([]float64, 6)}
	st.UNPlus[1] = 0.1
	st.UNPlus[4] = 0.2
	require.NoError(t, c.GetDisplacements(solid, body, st, 0, 0, MethodLinear, 0))
	assert.Greater(t, c.MaxDU, 0.0)

	// The trailing-edge panel node moves with the tip deflection.
	assert.InDelta(t, 0.2, c.DU[2*4+1], 0.1)

	// A truncated structural solution vector is rejected.
	short := &beam.State{UNPlus: make([]float64, 2)}
	assert.Error(t, c.GetDisplacements(solid, body, short, 0, 0, MethodLinear, 0))
}
