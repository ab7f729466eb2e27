// Package mesh holds the fixed-topology base meshes the engine deforms.
package mesh

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/kozaktomas/face-sculptor/internal/geometry"
)

// ErrInvalidMesh is returned for meshes whose faces or anchors reference
// vertices that do not exist.
var ErrInvalidMesh = errors.New("invalid mesh")

// Base is an immutable base mesh: vertex positions, triangle faces and a table
// of named anchor regions (anchor name -> vertex index).
//
// Slices returned by accessors are shared and must be treated as read-only.
type Base struct {
	id          string
	model       string
	vertices    []geometry.Vec3
	faces       [][3]int
	anchors     map[string]int
	normals     []geometry.Vec3
	extent      float64
	fingerprint uint64
}

// New validates the geometry and precomputes normals, extent and the
// fingerprint. Inputs are copied.
func New(id, model string, vertices []geometry.Vec3, faces [][3]int, anchors map[string]int) (*Base, error) {
	if len(vertices) == 0 {
		return nil, fmt.Errorf("%w: no vertices", ErrInvalidMesh)
	}
	for i, v := range vertices {
		if !v.IsFinite() {
			return nil, fmt.Errorf("%w: vertex %d is not finite", ErrInvalidMesh, i)
		}
	}
	for i, f := range faces {
		for _, idx := range f {
			if idx < 0 || idx >= len(vertices) {
				return nil, fmt.Errorf("%w: face %d references vertex %d of %d", ErrInvalidMesh, i, idx, len(vertices))
			}
		}
	}
	for name, idx := range anchors {
		if idx < 0 || idx >= len(vertices) {
			return nil, fmt.Errorf("%w: anchor %q references vertex %d of %d", ErrInvalidMesh, name, idx, len(vertices))
		}
	}

	b := &Base{
		id:       id,
		model:    model,
		vertices: append([]geometry.Vec3(nil), vertices...),
		faces:    append([][3]int(nil), faces...),
		anchors:  make(map[string]int, len(anchors)),
	}
	for name, idx := range anchors {
		b.anchors[name] = idx
	}
	b.normals = computeNormals(b.vertices, b.faces)
	b.extent = boundingRadius(b.vertices)
	b.fingerprint = fingerprint(b.vertices, b.faces, b.anchors)
	return b, nil
}

// ID returns the mesh identifier.
func (b *Base) ID() string { return b.id }

// Model returns the anatomical base model name (e.g. "face", "torso").
func (b *Base) Model() string { return b.model }

// Vertices returns the base vertex positions (read-only).
func (b *Base) Vertices() []geometry.Vec3 { return b.vertices }

// Faces returns the triangle index triples (read-only).
func (b *Base) Faces() [][3]int { return b.faces }

// Normals returns area-weighted unit vertex normals (read-only).
func (b *Base) Normals() []geometry.Vec3 { return b.normals }

// VertexCount returns the number of vertices.
func (b *Base) VertexCount() int { return len(b.vertices) }

// Extent returns the largest vertex distance from the vertex centroid, the
// reference for displacement clamps. It does not depend on grid resolution.
func (b *Base) Extent() float64 { return b.extent }

// Fingerprint identifies vertex positions, topology and anchor table. Influence
// maps are only valid for the fingerprint they were built against.
func (b *Base) Fingerprint() uint64 { return b.fingerprint }

// Anchor resolves a named anchor to its vertex index.
func (b *Base) Anchor(name string) (int, bool) {
	idx, ok := b.anchors[name]
	return idx, ok
}

// AnchorNames returns the anchor names in sorted order.
func (b *Base) AnchorNames() []string {
	names := make([]string, 0, len(b.anchors))
	for name := range b.anchors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WithAnchors returns a copy of b whose anchor table is extended (and
// overridden) by anchors. Vertices and faces are shared; they are read-only.
func (b *Base) WithAnchors(anchors map[string]int) (*Base, error) {
	merged := make(map[string]int, len(b.anchors)+len(anchors))
	for name, idx := range b.anchors {
		merged[name] = idx
	}
	for name, idx := range anchors {
		if idx < 0 || idx >= len(b.vertices) {
			return nil, fmt.Errorf("%w: anchor %q references vertex %d of %d", ErrInvalidMesh, name, idx, len(b.vertices))
		}
		merged[name] = idx
	}

	nb := *b
	nb.anchors = merged
	nb.fingerprint = fingerprint(b.vertices, b.faces, merged)
	return &nb, nil
}

// Snapshot returns a displayable mesh with the given positions and the
// unchanged base faces.
func (b *Base) Snapshot(positions []geometry.Vec3) Snapshot {
	return Snapshot{MeshID: b.id, Vertices: positions, Faces: b.faces}
}

func computeNormals(vertices []geometry.Vec3, faces [][3]int) []geometry.Vec3 {
	normals := make([]geometry.Vec3, len(vertices))
	for _, f := range faces {
		a, b, c := vertices[f[0]], vertices[f[1]], vertices[f[2]]
		// Unnormalized cross product weights by triangle area.
		n := b.Sub(a).Cross(c.Sub(a))
		for _, idx := range f {
			normals[idx] = normals[idx].Add(n)
		}
	}
	for i := range normals {
		normals[i] = normals[i].Normalize()
	}
	return normals
}

func boundingRadius(vertices []geometry.Vec3) float64 {
	c := geometry.Centroid(vertices)
	var r float64
	for _, v := range vertices {
		r = math.Max(r, v.Dist(c))
	}
	return r
}

func fingerprint(vertices []geometry.Vec3, faces [][3]int, anchors map[string]int) uint64 {
	h := xxhash.New()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(len(vertices)))
	h.Write(buf[:])
	for _, v := range vertices {
		for _, c := range v {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(c))
			h.Write(buf[:])
		}
	}
	for _, f := range faces {
		for _, idx := range f {
			binary.LittleEndian.PutUint64(buf[:], uint64(idx))
			h.Write(buf[:])
		}
	}

	names := make([]string, 0, len(anchors))
	for name := range anchors {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		h.WriteString(name)
		binary.LittleEndian.PutUint64(buf[:], uint64(anchors[name]))
		h.Write(buf[:])
	}
	return h.Sum64()
}

// Snapshot is a displayable mesh: displaced vertex positions plus the
// unchanged face array of the base mesh.
type Snapshot struct {
	MeshID   string
	Vertices []geometry.Vec3
	Faces    [][3]int
}

// FlatMesh is the render-surface wire form of a Snapshot.
// All arrays are flat: vertices has 3 floats per vertex (x,y,z),
// indices has 3 uint32s per triangle.
type FlatMesh struct {
	MeshID   string    `json:"meshId"`
	Vertices []float32 `json:"vertices"`
	Indices  []uint32  `json:"indices"`
}

// Flat converts the snapshot into flat float32/uint32 buffers.
func (s Snapshot) Flat() FlatMesh {
	fm := FlatMesh{
		MeshID:   s.MeshID,
		Vertices: make([]float32, 0, 3*len(s.Vertices)),
		Indices:  make([]uint32, 0, 3*len(s.Faces)),
	}
	for _, v := range s.Vertices {
		fm.Vertices = append(fm.Vertices, float32(v[0]), float32(v[1]), float32(v[2]))
	}
	for _, f := range s.Faces {
		fm.Indices = append(fm.Indices, uint32(f[0]), uint32(f[1]), uint32(f[2]))
	}
	return fm
}

// Clone returns a snapshot whose vertex slice is independent of s.
func (s Snapshot) Clone() Snapshot {
	s.Vertices = append([]geometry.Vec3(nil), s.Vertices...)
	return s
}

// MaxDistance returns the largest per-vertex distance between two snapshots of
// the same topology, or +Inf if the vertex counts differ.
func MaxDistance(a, b Snapshot) float64 {
	if len(a.Vertices) != len(b.Vertices) {
		return math.Inf(1)
	}
	var maxD float64
	for i := range a.Vertices {
		maxD = math.Max(maxD, a.Vertices[i].Dist(b.Vertices[i]))
	}
	return maxD
}
