// Package fsi drives the outer-iteration coupling between the panel-method
// flow solution and the structural beam solver. Each sub-iteration transfers
// panel pressure loads onto the structural mesh, hands off to the beam
// solver, maps the resulting deformation back onto the fluid panels, and
// under-relaxes the interface displacement until the two domains agree.
package fsi

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/flexswim/bem2d/beam"
	"github.com/flexswim/bem2d/geom"
	"github.com/flexswim/bem2d/swimmer"
)

// Scheme selects the under-relaxation update applied between sub-iterations.
type Scheme int

const (
	SchemeFixedRelaxation Scheme = iota
	SchemeAitken
)

// ParseScheme maps a configuration string onto a Scheme. Unknown names are a
// fatal configuration error.
func ParseScheme(name string) (Scheme, error) {
	switch name {
	case "FixedRelaxation":
		return SchemeFixedRelaxation, nil
	case "Aitken":
		return SchemeAitken, nil
	default:
		return 0, fmt.Errorf("invalid coupling scheme %q: valid schemes are \"FixedRelaxation\" and \"Aitken\"", name)
	}
}

func (s Scheme) String() string {
	switch s {
	case SchemeFixedRelaxation:
		return "FixedRelaxation"
	case SchemeAitken:
		return "Aitken"
	default:
		return fmt.Sprintf("Scheme(%d)", int(s))
	}
}

// InterpMethod selects how loads and displacements are interpolated between
// the fluid-panel and structural-node arclength grids.
type InterpMethod int

const (
	MethodLinear InterpMethod = iota
	MethodCubicSpline
)

// ParseInterpMethod maps a configuration string onto an InterpMethod.
func ParseInterpMethod(name string) (InterpMethod, error) {
	switch name {
	case "linear":
		return MethodLinear, nil
	case "spline":
		return MethodCubicSpline, nil
	default:
		return 0, fmt.Errorf("invalid interpolation method %q: valid methods are \"linear\" and \"spline\"", name)
	}
}

func (m InterpMethod) String() string {
	switch m {
	case MethodLinear:
		return "linear"
	case MethodCubicSpline:
		return "spline"
	default:
		return fmt.Sprintf("InterpMethod(%d)", int(m))
	}
}

// Coupling holds the interface displacement and residual state across FSI
// sub-iterations. All point fields are flattened component pairs: index 2i
// is the x component of point i, 2i+1 the z component. Fluid fields span the
// N+1 fluid panel nodes, node fields the structural nodes. The *Old fields
// always hold the prior sub-iteration's values at the moment the residual is
// computed, which is what the Aitken secant update needs.
type Coupling struct {
	FluidDispl    []float64
	FluidDisplOld []float64
	SolidDispl    []float64
	NodeDispl     []float64
	NodeDisplOld  []float64

	Residual        []float64
	ResidualOld     []float64
	NodeResidual    []float64
	NodeResidualOld []float64

	InitialNorm    float64
	MaxInitialNorm float64
	Norm           float64
	MaxNorm        float64
	MaxMagResidual float64

	DU    []float64
	MaxDU float64

	RelaxationFactor float64
	relaxSeed        float64
	MaxOuter         int
}

// NewCoupling allocates the coupling state for a body with bodyN panels and
// a structural mesh with nelements beam elements.
func NewCoupling(bodyN, nelements int) (*Coupling, error) {
	if bodyN < 2 || bodyN%2 != 0 {
		return nil, fmt.Errorf("panel count must be even and >= 2 to pair top/bottom surfaces, got %d", bodyN)
	}
	if nelements < 1 {
		return nil, fmt.Errorf("need at least one beam element, got %d", nelements)
	}
	nf := 2 * (bodyN + 1)
	nn := 2 * (nelements + 1)
	return &Coupling{
		FluidDispl:      make([]float64, nf),
		FluidDisplOld:   make([]float64, nf),
		SolidDispl:      make([]float64, nf),
		NodeDispl:       make([]float64, nn),
		NodeDisplOld:    make([]float64, nn),
		Residual:        make([]float64, nf),
		ResidualOld:     make([]float64, nf),
		NodeResidual:    make([]float64, nn),
		NodeResidualOld: make([]float64, nn),
		DU:              make([]float64, nf),
	}, nil
}

// ReadControls seeds the relaxation state: the fixed-point relaxation factor
// and the sub-iteration budget.
func (c *Coupling) ReadControls(fixedPtRelax float64, maxOuter int) error {
	if fixedPtRelax <= 0 || fixedPtRelax > 1 {
		return fmt.Errorf("relaxation factor must be in (0, 1], got %g", fixedPtRelax)
	}
	if maxOuter < 1 {
		return fmt.Errorf("need at least one outer sub-iteration, got %d", maxOuter)
	}
	c.relaxSeed = fixedPtRelax
	c.RelaxationFactor = fixedPtRelax
	c.MaxOuter = maxOuter
	return nil
}

// ResetRelaxation restores the seed relaxation factor at the start of a
// timestep, before the Aitken update has any residual history to work with.
func (c *Coupling) ResetRelaxation() {
	c.RelaxationFactor = c.relaxSeed
}

// SetInterfaceForce transfers the panel pressure distribution onto the
// structural mesh as a generalized load vector and prepares the beam
// solver's initial conditions for the timestep.
func (c *Coupling) SetInterfaceForce(solid *beam.Solid, body *swimmer.Body, st *beam.State,
	theta, heave float64, outerCorr int, delFs []float64, method InterpMethod, chord float64, step int) error {

	nn := solid.Nnodes
	// Superpose the sub-iteration displacement delta, or re-seed from the
	// prescribed kinematics on the first sub-iteration.
	if outerCorr > 1 {
		for i := 0; i < nn; i++ {
			solid.Nodes[i].X += c.NodeDispl[2*i] - c.NodeDisplOld[2*i]
			solid.Nodes[i].Z += c.NodeDispl[2*i+1] - c.NodeDisplOld[2*i+1]
		}
	} else {
		x0 := solid.NodesNew[0].X
		for i := 0; i < nn; i++ {
			dx := solid.NodesNew[i].X - x0
			solid.Nodes[i].X = dx*math.Cos(theta) + body.XLe
			solid.Nodes[i].Z = heave + dx*math.Sin(theta) + body.ZLe
		}
	}

	pg, err := geom.PanelVectors(body.X, body.Z)
	if err != nil {
		return err
	}
	if delFs != nil && len(delFs) != 2*body.N {
		return fmt.Errorf("viscous force array needs %d entries, got %d", 2*body.N, len(delFs))
	}

	// Panel pressure forces, optionally with the viscous correction.
	pFx := make([]float64, body.N)
	pFz := make([]float64, body.N)
	for j := 0; j < body.N; j++ {
		mag := body.P[j] * pg.Len[j]
		pFx[j] = -mag * pg.Nx[j]
		pFz[j] = -mag * pg.Nz[j]
		if delFs != nil {
			pFx[j] += delFs[2*j]
			pFz[j] += delFs[2*j+1]
		}
	}

	// Collapse mirrored top/bottom panels onto the camber line: summed force
	// plus the moment of both panel forces about the mean point.
	half := body.N / 2
	colFx := make([]float64, half)
	colFz := make([]float64, half)
	colM := make([]float64, half)
	for i := 0; i < half; i++ {
		k := body.N - 1 - i
		meanX := 0.5 * (body.XMid[i] + body.XMid[k])
		meanZ := 0.5 * (body.ZMid[i] + body.ZMid[k])
		colFx[i] = pFx[i] + pFx[k]
		colFz[i] = pFz[i] + pFz[k]
		colM[i] = -pFx[i]*(body.ZMid[i]-meanZ) + pFz[i]*(body.XMid[i]-meanX) +
			-pFx[k]*(body.ZMid[k]-meanZ) + pFz[k]*(body.XMid[k]-meanX)
	}
	reverse(colFx)
	reverse(colFz)
	reverse(colM)

	// Interpolate the collapsed loads from fluid arclength onto structural
	// node arclength. Loads outside the meanline range contribute nothing.
	if len(solid.MeanlineC0) != body.N {
		return fmt.Errorf("meanline parametrization needs %d entries, got %d", body.N, len(solid.MeanlineC0))
	}
	meanline := solid.MeanlineC0[half:]
	query := make([]float64, nn)
	for i := 0; i < nn; i++ {
		query[i] = solid.Nodes[i].S
	}
	nodalFx, err := interpolate(method, meanline, colFx, query, outsideZero)
	if err != nil {
		return err
	}
	nodalFz, err := interpolate(method, meanline, colFz, query, outsideZero)
	if err != nil {
		return err
	}
	nodalM, err := interpolate(method, meanline, colM, query, outsideZero)
	if err != nil {
		return err
	}

	// Rotate the forces into the structure's relative frame and assemble the
	// generalized load vector, 3 DOF per node.
	nodalFx, nodalFz = geom.RotatePts(nodalFx, nodalFz, -theta)
	st.Fload = make([]float64, 3*nn)
	for i := 0; i < nn; i++ {
		st.Fload[3*i] = nodalFx[i]
		st.Fload[3*i+1] = nodalFz[i]
		st.Fload[3*i+2] = nodalM[i]
	}

	st.A = append([]float64(nil), solid.TBeamStruct...)
	st.I = make([]float64, solid.Nelements)
	st.L = make([]float64, solid.Nelements)
	for e := 0; e < solid.Nelements; e++ {
		t := solid.TBeamStruct[e]
		st.I[e] = t * t * t / 12
		st.L[e] = chord / float64(solid.Nelements)
	}

	// Per-timestep initial conditions: zeroed on the very first step,
	// carried forward from the previous converged state otherwise. The
	// fixed (clamped) DOFs are excluded from the free solution vectors.
	free := 3*nn - 3*solid.FixedCounter
	if outerCorr <= 1 {
		if step <= 1 {
			st.UN = make([]float64, 3*nn)
			st.UdotN = make([]float64, 3*nn)
			st.UdotDotN = make([]float64, free)
			st.UNPlus = make([]float64, free)
			st.UdotNPlus = make([]float64, free)
			st.UddNPlus = make([]float64, free)
		} else {
			st.UN = make([]float64, 3*nn)
			st.UdotN = make([]float64, 3*nn)
			copy(st.UN[3*solid.FixedCounter:], st.UNPlus)
			copy(st.UdotN[3*solid.FixedCounter:], st.UdotNPlus)
		}
	}
	return nil
}

// GetDisplacements maps the structural solution back onto the fluid panel
// grid: absolute node positions from the beam DOFs, thickness offsets to the
// top and bottom surfaces, interpolation onto panel arclength, and a rigid
// override inside the leading-edge fraction. The resulting panel
// displacement deltas are stored in DU.
func (c *Coupling) GetDisplacements(solid *beam.Solid, body *swimmer.Body, st *beam.State,
	theta, heave float64, method InterpMethod, flexRatio float64) error {

	nn := solid.Nnodes
	fixed := solid.FixedCounter
	freeNodes := nn - fixed
	if len(st.UNPlus) < 3*freeNodes {
		return fmt.Errorf("structural solution has %d DOFs, need %d", len(st.UNPlus), 3*freeNodes)
	}

	// Absolute displacements from the linear and rotational DOFs.
	temp := make([]beam.Node, nn)
	copy(temp, solid.Nodes0)
	for i := 0; i < freeNodes; i++ {
		dz := st.UNPlus[3*i+1]
		rot := st.UNPlus[3*i+2]
		dx := (solid.Nodes0[fixed+i].Z + dz) * math.Sin(-rot)
		temp[fixed+i].X += dx
		temp[fixed+i].Z += dz
	}

	// Into the global frame: pitch rotation, heave, swimming translation.
	ct, stheta := math.Cos(theta), math.Sin(theta)
	for i := range temp {
		x, z := temp[i].X, temp[i].Z
		temp[i].X = x*ct - z*stheta + body.XLe
		temp[i].Z = x*stheta + z*ct + heave + body.ZLe
	}

	// Element normals of the deformed meanline.
	nx := make([]float64, solid.Nelements)
	nz := make([]float64, solid.Nelements)
	for e := 0; e < solid.Nelements; e++ {
		dx := temp[e+1].X - temp[e].X
		dz := temp[e+1].Z - temp[e].Z
		l := math.Hypot(dx, dz)
		if l == 0 {
			return fmt.Errorf("degenerate structural element %d after deformation", e)
		}
		nx[e] = -dz / l
		nz[e] = dx / l
	}

	// Offset the meanline by the local half-thickness to recover the top and
	// bottom surface curves. The trailing node has no element beyond it and
	// stays on the meanline.
	top := make([]beam.Node, nn)
	bottom := make([]beam.Node, nn)
	for i := 0; i < nn; i++ {
		top[i] = temp[i]
		bottom[i] = temp[i]
		if i < nn-1 {
			off := 0.5 * solid.TBeam[i]
			top[i].X += off * nx[i]
			top[i].Z += off * nz[i]
			bottom[i].X -= off * nx[i]
			bottom[i].Z -= off * nz[i]
		}
	}

	// Interpolate the surface curves back onto the fluid panel arclengths.
	if len(solid.MeanlineP0) != body.N+1 {
		return fmt.Errorf("panel meanline needs %d entries, got %d", body.N+1, len(solid.MeanlineP0))
	}
	half := (body.N + 1) / 2
	sTop := make([]float64, nn)
	xTop := make([]float64, nn)
	zTop := make([]float64, nn)
	sBot := make([]float64, nn)
	xBot := make([]float64, nn)
	zBot := make([]float64, nn)
	for i := 0; i < nn; i++ {
		sTop[i], xTop[i], zTop[i] = top[i].S, top[i].X, top[i].Z
		sBot[i], xBot[i], zBot[i] = bottom[i].S, bottom[i].X, bottom[i].Z
	}
	newX := make([]float64, body.N+1)
	newZ := make([]float64, body.N+1)
	botX, err := interpolate(method, sBot, xBot, solid.MeanlineP0[:half], outsideClamp)
	if err != nil {
		return err
	}
	botZ, err := interpolate(method, sBot, zBot, solid.MeanlineP0[:half], outsideClamp)
	if err != nil {
		return err
	}
	topX, err := interpolate(method, sTop, xTop, solid.MeanlineP0[half:], outsideClamp)
	if err != nil {
		return err
	}
	topZ, err := interpolate(method, sTop, zTop, solid.MeanlineP0[half:], outsideClamp)
	if err != nil {
		return err
	}
	copy(newX[:half], botX)
	copy(newZ[:half], botZ)
	copy(newX[half:], topX)
	copy(newZ[half:], topZ)

	// Panels inside the rigid leading-edge fraction keep their rigid-body
	// positions.
	for i := 0; i <= body.N; i++ {
		if solid.MeanlineP0[i] <= flexRatio {
			newX[i] = body.X[i]
			newZ[i] = body.Z[i]
		}
	}

	c.MaxDU = 0
	for i := 0; i <= body.N; i++ {
		dx := newX[i] - body.X[i]
		dz := newZ[i] - body.Z[i]
		c.DU[2*i] = dx
		c.DU[2*i+1] = dz
		if m := math.Hypot(dx, dz); m > c.MaxDU {
			c.MaxDU = m
		}
	}
	copy(solid.TempNodes, temp)
	return nil
}

// CalcResidual computes the interface residuals between the solid-induced
// and currently applied displacements, and the self-normalized convergence
// norms. On the first sub-iteration of a timestep the raw norms become the
// normalizing denominators, so the reported norms there are exactly 1.
func (c *Coupling) CalcResidual(solid *beam.Solid, outerCorr int) {
	copy(c.SolidDispl, c.DU)
	copy(c.ResidualOld, c.Residual)
	copy(c.NodeResidualOld, c.NodeResidual)

	floats.SubTo(c.Residual, c.SolidDispl, c.FluidDispl)
	for i := 0; i < solid.Nnodes; i++ {
		c.NodeResidual[2*i] = (solid.TempNodes[i].X - solid.Nodes[i].X) - c.NodeDispl[2*i]
		c.NodeResidual[2*i+1] = (solid.TempNodes[i].Z - solid.Nodes[i].Z) - c.NodeDispl[2*i+1]
	}

	l2 := floats.Norm(c.Residual, 2)
	linf := floats.Norm(c.Residual, math.Inf(1))
	if outerCorr == 1 {
		c.InitialNorm = l2
		c.MaxInitialNorm = linf
	}
	c.Norm = scaled(l2, c.InitialNorm)
	c.MaxNorm = scaled(linf, c.MaxInitialNorm)

	c.MaxMagResidual = 0
	for i := 0; i*2+1 < len(c.Residual); i++ {
		if m := math.Hypot(c.Residual[2*i], c.Residual[2*i+1]); m > c.MaxMagResidual {
			c.MaxMagResidual = m
		}
	}
}

// scaled normalizes a norm against the first sub-iteration's value. A zero
// denominator means the interface started fully converged, which reads as a
// zero residual rather than a division blowup.
func scaled(norm, initial float64) float64 {
	if initial == 0 {
		if norm == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return norm / initial
}

// SetInterfaceDisplacement applies the under-relaxed displacement update for
// the next sub-iteration. Fixed-point relaxation is always used for the
// first two sub-iterations; from the third onward the Aitken scheme rescales
// the factor from the two most recent residuals.
func (c *Coupling) SetInterfaceDisplacement(outerCorr int, scheme Scheme) error {
	switch {
	case outerCorr < 3 || scheme == SchemeFixedRelaxation:
		// fixed-point update below
	case scheme == SchemeAitken:
		diff := make([]float64, len(c.Residual))
		floats.SubTo(diff, c.ResidualOld, c.Residual)
		den := floats.Dot(diff, diff)
		if den != 0 {
			c.RelaxationFactor *= floats.Dot(c.ResidualOld, diff) / den
			c.RelaxationFactor = math.Abs(c.RelaxationFactor)
			if c.RelaxationFactor > 1 {
				c.RelaxationFactor = 1
			}
		}
	default:
		return fmt.Errorf("invalid coupling scheme %q: valid schemes are %q and %q",
			scheme.String(), SchemeFixedRelaxation.String(), SchemeAitken.String())
	}

	copy(c.FluidDisplOld, c.FluidDispl)
	copy(c.NodeDisplOld, c.NodeDispl)
	floats.AddScaled(c.FluidDispl, c.RelaxationFactor, c.Residual)
	floats.AddScaled(c.NodeDispl, c.RelaxationFactor, c.NodeResidual)
	return nil
}

func reverse(s []float64) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
