// Package beam defines the boundary to the structural collaborator: the
// structural mesh the coupling driver reads and writes, the generalized
// load/state vectors handed to the finite-element solver, and the solver
// interface itself. The beam assembly and solve are external; this package
// owns only the exchange format.
package beam

import "fmt"

// Node is one structural mesh node: position and its arclength along the
// meanline parametrization.
type Node struct {
	X, Z, S float64
}

// Solid is the structural counterpart of a fluid body: a chain of beam
// elements along the camber line. Positions exist in several frames at once
// during a coupling cycle, so the mesh carries reference, kinematic and
// trial copies.
type Solid struct {
	Nelements    int
	Nnodes       int
	FixedCounter int // Leading clamped nodes excluded from the free DOF set

	Nodes     []Node // Current positions in the global frame
	NodesNew  []Node // Kinematics-provided positions for this step
	Nodes0    []Node // Reference (undeformed) positions
	TempNodes []Node // Trial positions from the latest structural solve

	MeanlineC0 []float64 // Collocation-grid arclength parametrization (length N of fluid panels)
	MeanlineP0 []float64 // Panel-node-grid arclength parametrization (length N+1)

	TBeam       []float64 // Element thickness used for surface offsets
	TBeamStruct []float64 // Element thickness used for section properties
}

// NewSolid allocates a structural mesh with nelements beam elements.
func NewSolid(nelements, fixedCounter int) (*Solid, error) {
	if nelements < 1 {
		return nil, fmt.Errorf("need at least one beam element, got %d", nelements)
	}
	if fixedCounter < 0 || fixedCounter > nelements+1 {
		return nil, fmt.Errorf("fixed node count %d out of range [0, %d]", fixedCounter, nelements+1)
	}
	nn := nelements + 1
	return &Solid{
		Nelements:    nelements,
		Nnodes:       nn,
		FixedCounter: fixedCounter,
		Nodes:        make([]Node, nn),
		NodesNew:     make([]Node, nn),
		Nodes0:       make([]Node, nn),
		TempNodes:    make([]Node, nn),
		TBeam:        make([]float64, nelements),
		TBeamStruct:  make([]float64, nelements),
	}, nil
}

// State is the generalized load and displacement state exchanged with the
// finite-element solver. All DOF vectors are flattened 3 per node:
// [0::3] x-translation, [1::3] z-translation, [2::3] rotation. The *NPlus
// vectors cover only the free DOFs (fixed nodes removed).
type State struct {
	Fload []float64 // Generalized loads, 3*Nnodes
	A     []float64 // Element cross-section areas
	I     []float64 // Element second moments of area
	L     []float64 // Element rest lengths

	UN        []float64 // Displacement at step n, 3*Nnodes
	UdotN     []float64 // Velocity at step n, 3*Nnodes
	UdotDotN  []float64 // Acceleration at step n, free DOFs only
	UNPlus    []float64 // Solution displacement, free DOFs only
	UdotNPlus []float64 // Solution velocity, free DOFs only
	UddNPlus  []float64 // Solution acceleration, free DOFs only
}

// Solver advances the structural state one timestep under the loads in
// State, writing the *NPlus solution vectors.
type Solver interface {
	Solve(st *State, solid *Solid) error
}
