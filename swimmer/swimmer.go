// Package swimmer defines the data model for one simulated body: the panel
// discretization of its cross-section, its trailing-edge panel pair, and the
// wake of shed vortex elements. One Swimmer owns each of these exclusively;
// the solver phases mutate them strictly sequentially within a timestep.
package swimmer

import (
	"fmt"

	"github.com/flexswim/bem2d/geom"
)

// Body is an ordered sequence of N boundary panels around a cross-section.
// X and Z hold the N+1 panel endpoints in surface order (bottom trailing
// edge around the nose to the top trailing edge). Collocation points sit at
// panel midpoints.
type Body struct {
	N          int
	X, Z       []float64 // N+1 panel endpoints
	XCol, ZCol []float64 // N collocation points
	XMid, ZMid []float64 // N panel midpoints
	XLe, ZLe   float64   // Leading-edge position including swimming translation

	Sigma  []float64    // Source strengths, N
	Mu     []float64    // Doublet strengths, N
	MuPast [2][]float64 // Doublet strength history, [0] previous step, [1] two steps back
	Gamma  []float64    // Point-vortex strengths at the N+1 endpoints

	P  []float64 // Panel pressures
	Cp []float64 // Panel pressure coefficients

	UPsiX, UPsiZ []float64 // Wake-particle induced velocity at collocation points
}

// NewBody builds a body from its panel endpoints. Degenerate geometry
// (coincident consecutive endpoints) is rejected here; the influence kernels
// are undefined for zero-length panels.
func NewBody(x, z []float64) (*Body, error) {
	if _, err := geom.PanelVectors(x, z); err != nil {
		return nil, fmt.Errorf("body geometry: %w", err)
	}
	n := len(x) - 1
	b := &Body{
		N:     n,
		X:     append([]float64(nil), x...),
		Z:     append([]float64(nil), z...),
		Sigma: make([]float64, n),
		Mu:    make([]float64, n),
		Gamma: make([]float64, n+1),
		P:     make([]float64, n),
		Cp:    make([]float64, n),
		UPsiX: make([]float64, n),
		UPsiZ: make([]float64, n),
	}
	b.MuPast[0] = make([]float64, n)
	b.MuPast[1] = make([]float64, n)
	b.refreshPoints()
	return b, nil
}

// SetGeometry replaces the panel endpoints, recomputing collocation and
// midpoint arrays. Used by kinematics updates and the FSI displacement
// transfer. Panel count must not change.
func (b *Body) SetGeometry(x, z []float64) error {
	if len(x) != b.N+1 || len(z) != b.N+1 {
		return fmt.Errorf("geometry must keep %d endpoints, got %d", b.N+1, len(x))
	}
	if _, err := geom.PanelVectors(x, z); err != nil {
		return fmt.Errorf("body geometry: %w", err)
	}
	copy(b.X, x)
	copy(b.Z, z)
	b.refreshPoints()
	return nil
}

func (b *Body) refreshPoints() {
	b.XMid, b.ZMid = geom.MidPoints(b.X, b.Z)
	b.XCol = append([]float64(nil), b.XMid...)
	b.ZCol = append([]float64(nil), b.ZMid...)
}

// ShiftMuHistory rotates the doublet-strength history after a converged
// solve: two-steps-back takes the previous value, previous takes the current.
func (b *Body) ShiftMuHistory() {
	copy(b.MuPast[1], b.MuPast[0])
	copy(b.MuPast[0], b.Mu)
}

// Edge is the trailing-edge panel pair bridging the body's top and bottom
// trailing points: 3 endpoints forming 2 panels. Mu[0] is the current shed
// doublet strength, Mu[1] the previous step's.
type Edge struct {
	X, Z  []float64 // 3 endpoints
	Mu    [2]float64
	Gamma [2]float64
}

// EdgePanels is the number of trailing-edge panels per swimmer.
const EdgePanels = 2

// NewEdge builds the trailing-edge panel pair from its 3 endpoints.
func NewEdge(x, z []float64) (*Edge, error) {
	if len(x) != EdgePanels+1 || len(z) != EdgePanels+1 {
		return nil, fmt.Errorf("edge needs %d endpoints, got %d", EdgePanels+1, len(x))
	}
	if _, err := geom.PanelVectors(x, z); err != nil {
		return nil, fmt.Errorf("edge geometry: %w", err)
	}
	return &Edge{
		X: append([]float64(nil), x...),
		Z: append([]float64(nil), z...),
	}, nil
}

// Wake is the append-only sequence of shed vortex elements. Element k is the
// vortex shed at timestep k+1; elements are never removed or reordered.
type Wake struct {
	X, Z  []float64
	Alpha []float64 // Circulation strengths
	Mu    []float64 // Doublet strengths carried into the wake (panel-wake formulation)
}

// Append sheds one vortex element at (x, z) with zero strength. The Kutta
// solver assigns the strengths once the trailing-edge circulation is known.
func (w *Wake) Append(x, z float64) {
	w.X = append(w.X, x)
	w.Z = append(w.Z, z)
	w.Alpha = append(w.Alpha, 0)
	w.Mu = append(w.Mu, 0)
}

// Len returns the number of shed elements.
func (w *Wake) Len() int { return len(w.X) }

// Relevant returns the count of wake elements active at the given timestep:
// all elements with index < step, capped at the shed count.
func (w *Wake) Relevant(step int) int {
	if step < len(w.X) {
		return step
	}
	return len(w.X)
}

// Swimmer is one simulated body with its trailing edge, wake and per-step
// solver scalars. MuGuess/DeltaCp index 0 holds the current value, index 1
// the previous iterate.
type Swimmer struct {
	Body *Body
	Edge *Edge
	Wake *Wake

	KuttaEnabled bool
	DeltaCore    float64 // Vortex core regularization radius

	MuGuess [2]float64
	DeltaCp [2]float64
}

// New assembles a swimmer from its body and trailing-edge geometry.
func New(body *Body, edge *Edge, deltaCore float64, kutta bool) (*Swimmer, error) {
	if body == nil || edge == nil {
		return nil, fmt.Errorf("swimmer needs both body and edge geometry")
	}
	if deltaCore < 0 {
		return nil, fmt.Errorf("negative core radius %g", deltaCore)
	}
	return &Swimmer{
		Body:         body,
		Edge:         edge,
		Wake:         &Wake{},
		KuttaEnabled: kutta,
		DeltaCore:    deltaCore,
	}, nil
}
