package sim

import (
	"fmt"
	"math"

	"github.com/flexswim/bem2d/beam"
	"github.com/flexswim/bem2d/geom"
	"github.com/flexswim/bem2d/swimmer"
)

// PlateSpec describes the teardrop flat-plate test body used by the CLI and
// the end-to-end tests: an elliptical-thickness section with cosine panel
// spacing, traversed bottom trailing edge -> nose -> top trailing edge.
type PlateSpec struct {
	N         int     // Panel count, even
	Chord     float64
	Thickness float64
	EdgeLen   float64 // Trailing-edge panel length (typically 0.5*U*dt)
}

// referencePoints returns the unrotated panel endpoints with the leading
// edge at the origin and the chord along +x.
func (p PlateSpec) referencePoints() (x, z []float64) {
	half := p.N / 2
	x = make([]float64, p.N+1)
	z = make([]float64, p.N+1)
	zt := func(xc float64) float64 {
		arg := 1 - math.Pow(2*xc/p.Chord-1, 2)
		if arg < 0 {
			arg = 0
		}
		return 0.5 * p.Thickness * math.Sqrt(arg)
	}
	for j := 0; j <= half; j++ {
		xc := p.Chord * 0.5 * (1 + math.Cos(math.Pi*float64(j)/float64(half)))
		x[j] = xc
		z[j] = -zt(xc)
	}
	for j := half; j <= p.N; j++ {
		xc := p.Chord * 0.5 * (1 - math.Cos(math.Pi*float64(j-half)/float64(half)))
		x[j] = xc
		z[j] = zt(xc)
	}
	return x, z
}

// NewPlate builds the body and trailing-edge geometry for a plate spec.
func NewPlate(p PlateSpec) (*swimmer.Body, *swimmer.Edge, error) {
	if p.N < 4 || p.N%2 != 0 {
		return nil, nil, fmt.Errorf("plate needs an even panel count >= 4, got %d", p.N)
	}
	if p.Chord <= 0 || p.Thickness <= 0 || p.EdgeLen <= 0 {
		return nil, nil, fmt.Errorf("plate dimensions must be positive")
	}
	x, z := p.referencePoints()
	body, err := swimmer.NewBody(x, z)
	if err != nil {
		return nil, nil, err
	}
	ex := []float64{p.Chord, p.Chord + p.EdgeLen, p.Chord + 2*p.EdgeLen}
	ez := []float64{0, 0, 0}
	edge, err := swimmer.NewEdge(ex, ez)
	if err != nil {
		return nil, nil, err
	}
	return body, edge, nil
}

// NewPlateSolid builds the structural counterpart of a plate: beam elements
// along the chord with the plate's thickness profile, plus the arclength
// parametrizations linking structural nodes to fluid panels.
func NewPlateSolid(p PlateSpec, nelements, fixedCounter int) (*beam.Solid, error) {
	solid, err := beam.NewSolid(nelements, fixedCounter)
	if err != nil {
		return nil, err
	}
	for i := 0; i <= nelements; i++ {
		frac := float64(i) / float64(nelements)
		n := beam.Node{X: frac * p.Chord, Z: 0, S: frac}
		solid.Nodes0[i] = n
		solid.NodesNew[i] = n
		solid.Nodes[i] = n
	}
	for e := 0; e < nelements; e++ {
		mid := (float64(e) + 0.5) / float64(nelements) * p.Chord
		arg := 1 - math.Pow(2*mid/p.Chord-1, 2)
		if arg < 0 {
			arg = 0
		}
		t := 0.5 * p.Thickness * math.Sqrt(arg) * 2
		solid.TBeam[e] = t
		solid.TBeamStruct[e] = t
	}
	x, _ := p.referencePoints()
	solid.MeanlineP0 = make([]float64, p.N+1)
	for i := 0; i <= p.N; i++ {
		solid.MeanlineP0[i] = x[i] / p.Chord
	}
	solid.MeanlineC0 = make([]float64, p.N)
	for i := 0; i < p.N; i++ {
		solid.MeanlineC0[i] = 0.5 * (x[i] + x[i+1]) / p.Chord
	}
	return solid, nil
}

// HeavePitch is the demo kinematics: sinusoidal heave and pitch about the
// leading edge superposed on steady swimming at speed U in the -x direction.
type HeavePitch struct {
	Plate    PlateSpec
	U        float64
	HeaveAmp float64
	PitchAmp float64
	Freq     float64
	Phase    float64
	Dt       float64
}

// pose returns the plate endpoints and edge endpoints at time t in the
// global frame, plus pitch, heave and the leading-edge translation.
func (h HeavePitch) pose(t float64) (x, z, ex, ez []float64, theta, heave, xle float64) {
	omega := 2 * math.Pi * h.Freq
	theta = h.PitchAmp * math.Sin(omega*t+h.Phase)
	heave = h.HeaveAmp * math.Sin(omega*t)
	xle = -h.U * t

	xr, zr := h.Plate.referencePoints()
	ct, st := math.Cos(theta), math.Sin(theta)
	x = make([]float64, len(xr))
	z = make([]float64, len(zr))
	for i := range xr {
		x[i] = xr[i]*ct - zr[i]*st + xle
		z[i] = xr[i]*st + zr[i]*ct + heave
	}
	exr := []float64{h.Plate.Chord, h.Plate.Chord + h.Plate.EdgeLen, h.Plate.Chord + 2*h.Plate.EdgeLen}
	ex = make([]float64, 3)
	ez = make([]float64, 3)
	for i := range exr {
		ex[i] = exr[i]*ct + xle
		ez[i] = exr[i]*st + heave
	}
	return x, z, ex, ez, theta, heave, xle
}

// Update implements Kinematics: it poses the body and trailing edge at time
// t, refreshes the structural kinematic nodes, and computes the panel source
// strengths from the no-penetration condition using the panel velocity
// (backward difference over dt) minus the wake-particle induced velocity.
func (h HeavePitch) Update(s *swimmer.Swimmer, solid *beam.Solid, t float64) (float64, float64, error) {
	if h.Dt <= 0 {
		return 0, 0, fmt.Errorf("kinematics needs a positive dt")
	}
	x, z, ex, ez, theta, heave, xle := h.pose(t)
	prevXCol, prevZCol := colPoints(h, t-h.Dt)
	if err := s.Body.SetGeometry(x, z); err != nil {
		return 0, 0, err
	}
	copy(s.Edge.X, ex)
	copy(s.Edge.Z, ez)
	s.Body.XLe = xle
	s.Body.ZLe = 0

	pg, err := geom.PanelVectors(s.Body.X, s.Body.Z)
	if err != nil {
		return 0, 0, err
	}
	for j := 0; j < s.Body.N; j++ {
		vx := (s.Body.XCol[j] - prevXCol[j]) / h.Dt
		vz := (s.Body.ZCol[j] - prevZCol[j]) / h.Dt
		s.Body.Sigma[j] = pg.Nx[j]*(vx-s.Body.UPsiX[j]) + pg.Nz[j]*(vz-s.Body.UPsiZ[j])
	}

	if solid != nil {
		for i := range solid.NodesNew {
			frac := solid.Nodes0[i].S
			solid.NodesNew[i].X = frac * h.Plate.Chord
			solid.NodesNew[i].Z = 0
		}
	}
	return theta, heave, nil
}

func colPoints(h HeavePitch, t float64) (xc, zc []float64) {
	x, z, _, _, _, _, _ := h.pose(t)
	n := len(x) - 1
	xc = make([]float64, n)
	zc = make([]float64, n)
	for j := 0; j < n; j++ {
		xc[j] = 0.5 * (x[j] + x[j+1])
		zc[j] = 0.5 * (z[j] + z[j+1])
	}
	return xc, zc
}
