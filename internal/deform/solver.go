// Package deform computes displaced meshes from a base mesh, an influence
// map and a parameter value set.
package deform

import (
	"errors"
	"fmt"
	"sort"

	"github.com/kozaktomas/face-sculptor/internal/geometry"
	"github.com/kozaktomas/face-sculptor/internal/influence"
	"github.com/kozaktomas/face-sculptor/internal/mesh"
	"github.com/kozaktomas/face-sculptor/internal/params"
)

// ErrMismatch is returned when the map, mesh and values do not belong together.
var ErrMismatch = errors.New("influence map does not match mesh or values")

// Options bounds displacement. MaxDisplacement is absolute; when zero the
// bound is ClampFraction times the mesh extent.
type Options struct {
	MaxDisplacement float64
	ClampFraction   float64
}

// Solver is stateless apart from its options and safe for concurrent use.
type Solver struct {
	opts Options
}

func NewSolver(opts Options) *Solver {
	return &Solver{opts: opts}
}

// Limit returns the displacement bound for base.
func (s *Solver) Limit(base *mesh.Base) float64 {
	if s.opts.MaxDisplacement > 0 {
		return s.opts.MaxDisplacement
	}
	return s.opts.ClampFraction * base.Extent()
}

// Result is a solved mesh. It is owned by one caller; Update mutates it.
type Result struct {
	base   *mesh.Base
	m      *influence.Map
	limit  float64
	deltas []float64 // value - default per map parameter

	displacements []geometry.Vec3
	positions     []geometry.Vec3
}

// Apply computes the displaced mesh. Each vertex receives the sum of
// (value - default) * weight * direction over the parameters influencing it,
// in map parameter order, clamped to the displacement limit. Parameters of
// the map missing from values contribute nothing.
func (s *Solver) Apply(base *mesh.Base, m *influence.Map, values params.Values) (*Result, error) {
	if m.Fingerprint() != base.Fingerprint() || m.VertexCount() != base.VertexCount() {
		return nil, fmt.Errorf("%w: map built for %x, mesh is %x", ErrMismatch, m.Fingerprint(), base.Fingerprint())
	}
	deltas, err := deltasFor(m, values)
	if err != nil {
		return nil, err
	}

	res := &Result{
		base:          base,
		m:             m,
		limit:         s.Limit(base),
		deltas:        deltas,
		displacements: make([]geometry.Vec3, base.VertexCount()),
		positions:     make([]geometry.Vec3, base.VertexCount()),
	}
	for v := range res.positions {
		res.solveVertex(v)
	}
	return res, nil
}

// Update brings res in line with values, recomputing only the vertices
// influenced by parameters whose value changed. The result is identical to
// a fresh Apply with the same values. It returns the number of recomputed
// vertices.
func (s *Solver) Update(res *Result, values params.Values) (int, error) {
	deltas, err := deltasFor(res.m, values)
	if err != nil {
		return 0, err
	}

	var touched []int
	seen := make(map[int]struct{})
	for p, d := range deltas {
		if d == res.deltas[p] {
			continue
		}
		for _, e := range res.m.Params()[p].Entries {
			if _, ok := seen[e.Vertex]; !ok {
				seen[e.Vertex] = struct{}{}
				touched = append(touched, e.Vertex)
			}
		}
	}
	res.deltas = deltas
	sort.Ints(touched)
	for _, v := range touched {
		res.solveVertex(v)
	}
	return len(touched), nil
}

func deltasFor(m *influence.Map, values params.Values) ([]float64, error) {
	for id := range values {
		if _, ok := m.Index(id); !ok {
			return nil, fmt.Errorf("%w: parameter %q has no influence table", ErrMismatch, id)
		}
	}
	deltas := make([]float64, len(m.Params()))
	for p, inf := range m.Params() {
		if v, ok := values[inf.Param]; ok {
			deltas[p] = v - inf.Default
		}
	}
	return deltas, nil
}

// solveVertex is the single code path for both Apply and Update.
func (r *Result) solveVertex(v int) {
	var d geometry.Vec3
	for _, ref := range r.m.Refs(v) {
		delta := r.deltas[ref.Param]
		if delta == 0 {
			continue
		}
		e := r.m.Entry(ref)
		d = d.Add(e.Direction.Scale(delta * e.Weight))
	}
	d = d.ClampLen(r.limit)
	r.displacements[v] = d
	r.positions[v] = r.base.Vertices()[v].Add(d)
}

// Base returns the base mesh the result was solved on.
func (r *Result) Base() *mesh.Base { return r.base }

// Map returns the influence map the result was solved with.
func (r *Result) Map() *influence.Map { return r.m }

// Limit is the displacement bound applied to every vertex.
func (r *Result) Limit() float64 { return r.limit }

// Positions returns displaced vertex positions (read-only; Update mutates them).
func (r *Result) Positions() []geometry.Vec3 { return r.positions }

// Displacements returns per-vertex displacement vectors (read-only).
func (r *Result) Displacements() []geometry.Vec3 { return r.displacements }

// Snapshot returns an independent displayable copy.
func (r *Result) Snapshot() mesh.Snapshot {
	return r.base.Snapshot(append([]geometry.Vec3(nil), r.positions...))
}
