// Package mesh extracts triangle surfaces from voxel volumes and writes
// them as binary STL. Each cell is split into six tetrahedra, which keeps
// the surface crack free without the full marching cubes case table.
package mesh

import (
	"math"

	"liverextract/pkg/volume"
)

// Triangle is one face of an extracted surface, in physical coordinates.
type Triangle struct {
	Normal  [3]float32
	Vertex1 [3]float32
	Vertex2 [3]float32
	Vertex3 [3]float32
}

// Marcher extracts the isosurface of a volume at a fixed level. Voxels with
// values at or above the level count as inside.
type Marcher struct {
	vol   *volume.Volume
	iso   float64
	scale [3]float64
}

// tets splits a cell into six tetrahedra around the corner 0 to corner 7
// diagonal. Corner i sits at (i&1, i>>1&1, i>>2&1). Using the same split in
// every cell keeps the diagonals on shared faces consistent between
// neighbors, so adjacent cells never disagree about the surface.
var tets = [6][4]int{
	{0, 1, 3, 7},
	{0, 3, 2, 7},
	{0, 2, 6, 7},
	{0, 6, 4, 7},
	{0, 4, 5, 7},
	{0, 5, 1, 7},
}

// NewMarcher prepares surface extraction at the given iso level. Vertex
// coordinates are scaled by the volume spacing unless SetScale overrides it.
func NewMarcher(vol *volume.Volume, iso float64) *Marcher {
	return &Marcher{vol: vol, iso: iso, scale: vol.Spacing}
}

// SetScale overrides the physical size of one voxel step per axis.
func (m *Marcher) SetScale(x, y, z float64) {
	m.scale = [3]float64{x, y, z}
}

// Triangles walks every cell of the volume and returns the extracted
// surface. A volume with no iso crossings yields an empty slice.
func (m *Marcher) Triangles() []Triangle {
	var tris []Triangle
	for z := 0; z < m.vol.Depth-1; z++ {
		for y := 0; y < m.vol.Height-1; y++ {
			for x := 0; x < m.vol.Width-1; x++ {
				m.marchCell(x, y, z, &tris)
			}
		}
	}
	return tris
}

func (m *Marcher) marchCell(x, y, z int, tris *[]Triangle) {
	var corners [8][3]int
	var vals [8]float64
	inside := 0
	for i := 0; i < 8; i++ {
		cx, cy, cz := x+(i&1), y+(i>>1&1), z+(i>>2&1)
		corners[i] = [3]int{cx, cy, cz}
		vals[i] = m.vol.At(cx, cy, cz)
		if vals[i] >= m.iso {
			inside++
		}
	}
	if inside == 0 || inside == 8 {
		return
	}
	for _, tet := range tets {
		m.marchTet(&corners, &vals, tet, tris)
	}
}

func (m *Marcher) marchTet(corners *[8][3]int, vals *[8]float64, tet [4]int, tris *[]Triangle) {
	var in, out [4]int
	ni, no := 0, 0
	for _, c := range tet {
		if vals[c] >= m.iso {
			in[ni] = c
			ni++
		} else {
			out[no] = c
			no++
		}
	}
	if ni == 0 || ni == 4 {
		return
	}

	hint := separation(corners, in[:ni], out[:no])
	switch ni {
	case 1:
		// One corner inside: the surface cuts off that corner.
		p1 := m.edgePoint(corners, vals, in[0], out[0])
		p2 := m.edgePoint(corners, vals, in[0], out[1])
		p3 := m.edgePoint(corners, vals, in[0], out[2])
		m.emit(tris, p1, p2, p3, hint)
	case 3:
		// One corner outside: same cut seen from the other side.
		p1 := m.edgePoint(corners, vals, out[0], in[0])
		p2 := m.edgePoint(corners, vals, out[0], in[1])
		p3 := m.edgePoint(corners, vals, out[0], in[2])
		m.emit(tris, p1, p2, p3, hint)
	case 2:
		// Two against two: the cut is a quad whose vertices walk the four
		// crossed edges in cyclic order, split along one diagonal.
		p1 := m.edgePoint(corners, vals, in[0], out[0])
		p2 := m.edgePoint(corners, vals, in[0], out[1])
		p3 := m.edgePoint(corners, vals, in[1], out[1])
		p4 := m.edgePoint(corners, vals, in[1], out[0])
		m.emit(tris, p1, p2, p3, hint)
		m.emit(tris, p1, p3, p4, hint)
	}
}

// edgePoint interpolates the iso crossing on the edge between two cell
// corners. Endpoints are ordered by linear index before interpolating so
// cells sharing the edge compute bit-identical vertices.
func (m *Marcher) edgePoint(corners *[8][3]int, vals *[8]float64, a, b int) [3]float64 {
	pa, pb := corners[a], corners[b]
	va, vb := vals[a], vals[b]
	if m.vol.Idx(pa[0], pa[1], pa[2]) > m.vol.Idx(pb[0], pb[1], pb[2]) {
		pa, pb = pb, pa
		va, vb = vb, va
	}
	t := (m.iso - va) / (vb - va)
	return [3]float64{
		float64(pa[0]) + t*float64(pb[0]-pa[0]),
		float64(pa[1]) + t*float64(pb[1]-pa[1]),
		float64(pa[2]) + t*float64(pb[2]-pa[2]),
	}
}

// emit appends one oriented triangle. The surface plane inside a
// tetrahedron separates the inside corners from the outside ones, so the
// hint vector always has a positive component along the outward normal.
func (m *Marcher) emit(tris *[]Triangle, p1, p2, p3, hint [3]float64) {
	if dot(cross(sub(p2, p1), sub(p3, p1)), hint) < 0 {
		p2, p3 = p3, p2
	}
	v1, v2, v3 := m.physical(p1), m.physical(p2), m.physical(p3)
	n := cross(sub(v2, v1), sub(v3, v1))
	length := math.Sqrt(dot(n, n))
	if length == 0 {
		return
	}
	*tris = append(*tris, Triangle{
		Normal:  toF32([3]float64{n[0] / length, n[1] / length, n[2] / length}),
		Vertex1: toF32(v1),
		Vertex2: toF32(v2),
		Vertex3: toF32(v3),
	})
}

func (m *Marcher) physical(p [3]float64) [3]float64 {
	return [3]float64{p[0] * m.scale[0], p[1] * m.scale[1], p[2] * m.scale[2]}
}

// separation points from the centroid of the inside corners toward the
// centroid of the outside corners, in grid coordinates.
func separation(corners *[8][3]int, in, out []int) [3]float64 {
	var d [3]float64
	for _, c := range out {
		for k := 0; k < 3; k++ {
			d[k] += float64(corners[c][k]) / float64(len(out))
		}
	}
	for _, c := range in {
		for k := 0; k < 3; k++ {
			d[k] -= float64(corners[c][k]) / float64(len(in))
		}
	}
	return d
}

func sub(a, b [3]float64) [3]float64 {
	return [3]float64{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

func cross(a, b [3]float64) [3]float64 {
	return [3]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func dot(a, b [3]float64) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func toF32(v [3]float64) [3]float32 {
	return [3]float32{float32(v[0]), float32(v[1]), float32(v[2])}
}
