// Package geom provides the coordinate transforms and panel vector
// computations shared by the influence assembler, the wake kernels and the
// FSI coupling driver. All panels are straight segments between consecutive
// (x, z) endpoints, traversed in surface order.
package geom

import (
	"fmt"
	"math"
)

// PanelGeometry holds the unit tangent and normal vectors and the length of
// each panel defined by N+1 endpoints.
type PanelGeometry struct {
	Tx, Tz []float64 // Unit tangents, panel start -> end
	Nx, Nz []float64 // Unit normals, 90 degrees counterclockwise from tangent
	Len    []float64 // Panel lengths
}

// PanelVectors computes tangents, normals and lengths for the panels defined
// by the endpoint arrays x and z. A zero-length panel makes the analytic
// influence kernels undefined, so it is rejected here rather than deep inside
// matrix assembly.
func PanelVectors(x, z []float64) (*PanelGeometry, error) {
	if len(x) != len(z) {
		return nil, fmt.Errorf("endpoint count mismatch: len(x)=%d, len(z)=%d", len(x), len(z))
	}
	if len(x) < 2 {
		return nil, fmt.Errorf("need at least 2 endpoints, got %d", len(x))
	}
	n := len(x) - 1
	pg := &PanelGeometry{
		Tx:  make([]float64, n),
		Tz:  make([]float64, n),
		Nx:  make([]float64, n),
		Nz:  make([]float64, n),
		Len: make([]float64, n),
	}
	for j := 0; j < n; j++ {
		dx := x[j+1] - x[j]
		dz := z[j+1] - z[j]
		l := math.Hypot(dx, dz)
		if l == 0 {
			return nil, fmt.Errorf("degenerate panel %d: coincident endpoints (%g, %g)", j, x[j], z[j])
		}
		pg.Tx[j] = dx / l
		pg.Tz[j] = dz / l
		pg.Nx[j] = -dz / l
		pg.Nz[j] = dx / l
		pg.Len[j] = l
	}
	return pg, nil
}

// LocalFrame holds target coordinates expressed in each source panel's local
// frame, where the panel lies on the local x-axis with its start at the
// origin. Indexed [panel][target].
type LocalFrame struct {
	Xp1 [][]float64 // Local x measured from panel start
	Xp2 [][]float64 // Local x measured from panel end
	Zp  [][]float64 // Local z (signed normal offset)
}

// Transformation expresses every target point (xt, zt) in the local frame of
// every source panel defined by endpoints (xi, zi).
func Transformation(xt, zt, xi, zi []float64) (*LocalFrame, error) {
	pg, err := PanelVectors(xi, zi)
	if err != nil {
		return nil, err
	}
	np := len(xi) - 1
	nt := len(xt)
	if len(zt) != nt {
		return nil, fmt.Errorf("target count mismatch: len(xt)=%d, len(zt)=%d", nt, len(zt))
	}
	lf := &LocalFrame{
		Xp1: make([][]float64, np),
		Xp2: make([][]float64, np),
		Zp:  make([][]float64, np),
	}
	for j := 0; j < np; j++ {
		lf.Xp1[j] = make([]float64, nt)
		lf.Xp2[j] = make([]float64, nt)
		lf.Zp[j] = make([]float64, nt)
		for t := 0; t < nt; t++ {
			dx := xt[t] - xi[j]
			dz := zt[t] - zi[j]
			xp := dx*pg.Tx[j] + dz*pg.Tz[j]
			lf.Xp1[j][t] = xp
			lf.Xp2[j][t] = xp - pg.Len[j]
			lf.Zp[j][t] = dx*pg.Nx[j] + dz*pg.Nz[j]
		}
	}
	return lf, nil
}

// RotatePts rotates point arrays by theta radians about the origin and
// returns the rotated copies.
func RotatePts(x, z []float64, theta float64) (xr, zr []float64) {
	c, s := math.Cos(theta), math.Sin(theta)
	xr = make([]float64, len(x))
	zr = make([]float64, len(z))
	for i := range x {
		xr[i] = x[i]*c - z[i]*s
		zr[i] = x[i]*s + z[i]*c
	}
	return xr, zr
}

// MidPoints returns the midpoint coordinates of each panel.
func MidPoints(x, z []float64) (xm, zm []float64) {
	n := len(x) - 1
	xm = make([]float64, n)
	zm = make([]float64, n)
	for j := 0; j < n; j++ {
		xm[j] = 0.5 * (x[j] + x[j+1])
		zm[j] = 0.5 * (z[j] + z[j+1])
	}
	return xm, zm
}
