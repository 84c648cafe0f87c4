package wake

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flexswim/bem2d/swimmer"
)

func diamondSwimmer(t *testing.T) *swimmer.Swimmer {
	t.Helper()
	x := []float64{1, 0.5, 0, 0.5, 1}
	z := []float64{0, -0.25, 0, 0.25, 0}
	b, err := swimmer.NewBody(x, z)
	require.NoError(t, err)
	e, err := swimmer.NewEdge([]float64{1, 1.05, 1.1}, []float64{0, 0, 0})
	require.NoError(t, err)
	s, err := swimmer.New(b, e, 0.05, true)
	require.NoError(t, err)
	return s
}

func TestVectorPotentialRegularized(t *testing.T) {
	xi := []float64{0}
	zi := []float64{0}
	alpha := []float64{1}

	// At the particle itself the core radius bounds the potential.
	psi := VectorPotential([]float64{0}, []float64{0}, xi, zi, alpha, 0.1)
	assert.InDelta(t, 1/(4*math.Pi*0.1), psi[0], 1e-12)

	// Far away the kernel is the free point-vortex potential 1/(4*pi*r).
	psi = VectorPotential([]float64{10}, []float64{0}, xi, zi, alpha, 0.1)
	assert.InDelta(t, 1/(4*math.Pi*10), psi[0], 1e-5)

	// Symmetry about the particle.
	left := VectorPotential([]float64{-2}, []float64{0}, xi, zi, alpha, 0.1)
	right := VectorPotential([]float64{2}, []float64{0}, xi, zi, alpha, 0.1)
	assert.Equal(t, left[0], right[0])
}

func TestParticleVelocityZeroBeforeConvection(t *testing.T) {
	s := diamondSwimmer(t)
	s.Wake.Append(1.2, 0)
	s.Wake.Alpha[0] = 1

	for _, step := range []int{0, 1} {
		ux, uz := ParticleVelocity([]float64{2}, []float64{0}, []*swimmer.Swimmer{s}, step)
		assert.Zero(t, ux[0], "step %d", step)
		assert.Zero(t, uz[0], "step %d", step)
	}

	ux, uz := ParticleVelocity([]float64{2}, []float64{0.3}, []*swimmer.Swimmer{s}, 2)
	assert.NotZero(t, ux[0])
	assert.NotZero(t, uz[0])
}

func TestParticleVelocityCirculationSense(t *testing.T) {
	// A single positive vortex at the origin induces clockwise-positive flow:
	// above the vortex the x velocity follows the sign convention of the
	// vector-potential curl.
	s := diamondSwimmer(t)
	s.Wake.Append(0, 0)
	s.Wake.Alpha[0] = 1
	s.Edge.Mu[1] = 0

	ux, _ := ParticleVelocity([]float64{0}, []float64{1}, []*swimmer.Swimmer{s}, 2)
	uxBelow, _ := ParticleVelocity([]float64{0}, []float64{-1}, []*swimmer.Swimmer{s}, 2)
	assert.InDelta(t, -ux[0], uxBelow[0], 1e-8)
	assert.NotZero(t, ux[0])
}

func TestBodyParticleVelocityFillsArrays(t *testing.T) {
	s := diamondSwimmer(t)
	s.Wake.Append(1.2, 0.1)
	s.Wake.Append(1.35, 0.12)
	s.Wake.Alpha[0] = 0.5
	s.Wake.Alpha[1] = 0.3

	BodyParticleVelocity([]*swimmer.Swimmer{s}, 3)
	for j := 0; j < s.Body.N; j++ {
		assert.False(t, math.IsNaN(s.Body.UPsiX[j]))
		assert.NotZero(t, s.Body.UPsiX[j], "panel %d", j)
	}
}

func TestRollupMovesOnlyActivePrefix(t *testing.T) {
	s := diamondSwimmer(t)
	for j := 0; j < s.Body.N; j++ {
		s.Body.Sigma[j] = 0.1
		s.Body.Gamma[j] = 0.05
	}
	s.Body.Gamma[s.Body.N] = 0.05
	s.Edge.Gamma[0] = -0.2
	s.Edge.Gamma[1] = 0.2

	s.Wake.Append(1.2, 0.02)
	s.Wake.Append(1.35, 0.04)
	s.Wake.Append(1.5, 0.06)
	for i := range s.Wake.Alpha {
		s.Wake.Alpha[i] = 0.1
	}
	frozenX, frozenZ := s.Wake.X[2], s.Wake.Z[2]
	before := append([]float64(nil), s.Wake.X...)

	// Two elements are active at step 2; the third stays put.
	require.NoError(t, Rollup([]*swimmer.Swimmer{s}, 0.01, 2))
	assert.NotEqual(t, before[0], s.Wake.X[0])
	assert.NotEqual(t, before[1], s.Wake.X[1])
	assert.Equal(t, frozenX, s.Wake.X[2])
	assert.Equal(t, frozenZ, s.Wake.Z[2])

	for i := 0; i < 2; i++ {
		assert.False(t, math.IsNaN(s.Wake.X[i]), "element %d", i)
		assert.False(t, math.IsNaN(s.Wake.Z[i]), "element %d", i)
	}
}

func TestRollupNoOpAtStepZero(t *testing.T) {
	s := diamondSwimmer(t)
	s.Wake.Append(1.2, 0.02)
	x0 := s.Wake.X[0]
	require.NoError(t, Rollup([]*swimmer.Swimmer{s}, 0.01, 0))
	assert.Equal(t, x0, s.Wake.X[0])
}
