package swimmer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func diamondBody(t *testing.T) *Body {
	t.Helper()
	x := []float64{1, 0.5, 0, 0.5, 1}
	z := []float64{0, -0.25, 0, 0.25, 0}
	b, err := NewBody(x, z)
	require.NoError(t, err)
	return b
}

func TestNewBodyRejectsDegenerateGeometry(t *testing.T) {
	_, err := NewBody([]float64{0, 0, 1}, []float64{0, 0, 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "degenerate")
}

func TestBodyCollocationAtMidpoints(t *testing.T) {
	b := diamondBody(t)
	assert.Equal(t, 4, b.N)
	assert.Len(t, b.XCol, 4)
	assert.InDelta(t, 0.75, b.XCol[0], 1e-15)
	assert.InDelta(t, -0.125, b.ZCol[0], 1e-15)
}

func TestSetGeometryKeepsPanelCount(t *testing.T) {
	b := diamondBody(t)
	err := b.SetGeometry([]float64{0, 1}, []float64{0, 0})
	assert.Error(t, err)

	x := append([]float64(nil), b.X...)
	z := append([]float64(nil), b.Z...)
	for i := range x {
		x[i] += 0.1
	}
	require.NoError(t, b.SetGeometry(x, z))
	assert.InDelta(t, 0.85, b.XCol[0], 1e-15)
}

func TestShiftMuHistory(t *testing.T) {
	b := diamondBody(t)
	copy(b.Mu, []float64{1, 2, 3, 4})
	b.ShiftMuHistory()
	copy(b.Mu, []float64{5, 6, 7, 8})
	b.ShiftMuHistory()

	assert.Equal(t, []float64{5, 6, 7, 8}, b.MuPast[0])
	assert.Equal(t, []float64{1, 2, 3, 4}, b.MuPast[1])
}

func TestWakeAppendOnly(t *testing.T) {
	w := &Wake{}
	assert.Equal(t, 0, w.Len())
	assert.Equal(t, 0, w.Relevant(5))

	w.Append(1, 0)
	w.Append(2, 0)
	w.Append(3, 0)
	assert.Equal(t, 3, w.Len())
	assert.Equal(t, 2, w.Relevant(2))
	assert.Equal(t, 3, w.Relevant(10))
	// Shed order is preserved.
	assert.Equal(t, []float64{1, 2, 3}, w.X)
}

func TestNewEdgeValidation(t *testing.T) {
	_, err := NewEdge([]float64{0, 1}, []float64{0, 0})
	assert.Error(t, err)
	_, err = NewEdge([]float64{0, 0, 1}, []float64{0, 0, 0})
	assert.Error(t, err)

	e, err := NewEdge([]float64{1, 1.1, 1.2}, []float64{0, 0, 0})
	require.NoError(t, err)
	assert.Len(t, e.X, 3)
}

func TestNewSwimmer(t *testing.T) {
	b := diamondBody(t)
	e, err := NewEdge([]float64{1, 1.1, 1.2}, []float64{0, 0, 0})
	require.NoError(t, err)

	_, err = New(b, e, -1, true)
	assert.Error(t, err)

	s, err := New(b, e, 0.05, true)
	require.NoError(t, err)
	assert.True(t, s.KuttaEnabled)
	assert.Equal(t, 0, s.Wake.Len())
}

func TestUnsteadyBernoulliPressure(t *testing.T) {
	b := diamondBody(t)
	m := UnsteadyBernoulli{URef: 1}

	require.Error(t, m.Pressure(b, 1000, 0, 1))
	require.Error(t, UnsteadyBernoulli{}.Pressure(b, 1000, 0.01, 1))

	// Uniform doublet strength and no history: no tangential gradient, no
	// unsteady term at step 0, so cp == 1 everywhere.
	copy(b.Mu, []float64{2, 2, 2, 2})
	require.NoError(t, m.Pressure(b, 1000, 0.01, 0))
	for j := 0; j < b.N; j++ {
		assert.InDelta(t, 1.0, b.Cp[j], 1e-12)
		assert.InDelta(t, 500.0, b.P[j], 1e-9)
	}

	// A doublet step in time enters through the unsteady term.
	copy(b.MuPast[0], []float64{2, 2, 2, 2})
	copy(b.Mu, []float64{2.01, 2.01, 2.01, 2.01})
	require.NoError(t, m.Pressure(b, 1000, 0.01, 1))
	for j := 0; j < b.N; j++ {
		assert.InDelta(t, 1.0-2.0, b.Cp[j], 1e-9)
	}
}
