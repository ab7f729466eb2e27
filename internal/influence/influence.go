// Package influence builds the per-parameter vertex weight tables that drive
// deformation. A Map is computed once per base mesh (positions, topology and
// anchor table) and is read-only afterwards.
package influence

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/kozaktomas/face-sculptor/internal/geometry"
	"github.com/kozaktomas/face-sculptor/internal/mesh"
	"github.com/kozaktomas/face-sculptor/internal/params"
)

// ErrUnmappableParameter is returned when a parameter names an anchor region
// the base mesh does not have.
var ErrUnmappableParameter = errors.New("unmappable parameter")

// Options carries the engine-wide defaults for parameters that do not
// declare their own radius or falloff.
type Options struct {
	DefaultRadius float64
	Falloff       string
}

// Entry is the influence of one parameter on one vertex. Direction already
// includes the parameter gain, so the displacement contributed by the entry
// is (value - default) * Weight * Direction.
type Entry struct {
	Vertex    int
	Weight    float64
	Direction geometry.Vec3
}

// Influence is the weight table of one parameter, ordered by vertex.
type Influence struct {
	Param   string
	Default float64
	Entries []Entry
}

// Ref points from a vertex to one entry of one parameter.
type Ref struct {
	Param int // index into Map.Params()
	Entry int // index into that parameter's Entries
}

// Map holds the influence tables of a set of parameters over one base mesh.
type Map struct {
	fingerprint uint64
	vertexCount int
	params      []Influence
	index       map[string]int

	// Reverse index in compressed-row form: refs[offsets[v]:offsets[v+1]]
	// are the entries touching vertex v, in parameter order.
	offsets []int
	refs    []Ref
}

// Build computes influence tables for defs over base. Parameters are stored
// sorted by id, the fixed order the solver sums in.
func Build(ctx context.Context, base *mesh.Base, defs []params.Definition, opts Options) (*Map, error) {
	sorted := append([]params.Definition(nil), defs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	m := &Map{
		fingerprint: base.Fingerprint(),
		vertexCount: base.VertexCount(),
		params:      make([]Influence, 0, len(sorted)),
		index:       make(map[string]int, len(sorted)),
	}

	for _, def := range sorted {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, dup := m.index[def.ID]; dup {
			return nil, fmt.Errorf("duplicate parameter %q", def.ID)
		}
		inf, err := buildOne(base, def, opts)
		if err != nil {
			return nil, err
		}
		m.index[def.ID] = len(m.params)
		m.params = append(m.params, inf)
	}

	m.buildReverseIndex()
	return m, nil
}

func buildOne(base *mesh.Base, def params.Definition, opts Options) (Influence, error) {
	if len(def.Anchors) == 0 {
		return Influence{}, fmt.Errorf("%w: %q declares no anchor", ErrUnmappableParameter, def.ID)
	}
	centers := make([]geometry.Vec3, 0, len(def.Anchors))
	for _, name := range def.Anchors {
		idx, ok := base.Anchor(name)
		if !ok {
			return Influence{}, fmt.Errorf("%w: %q needs anchor %q missing on mesh %s", ErrUnmappableParameter, def.ID, name, base.ID())
		}
		centers = append(centers, base.Vertices()[idx])
	}

	radius := def.Radius
	if radius <= 0 {
		radius = opts.DefaultRadius
	}
	if radius <= 0 || math.IsNaN(radius) {
		return Influence{}, fmt.Errorf("parameter %q: radius must be positive", def.ID)
	}
	falloffName := def.Falloff
	if falloffName == "" {
		falloffName = opts.Falloff
	}
	if falloffName == "" {
		falloffName = FalloffCosine
	}
	falloff, err := ParseFalloff(falloffName)
	if err != nil {
		return Influence{}, fmt.Errorf("parameter %q: %w", def.ID, err)
	}

	inf := Influence{Param: def.ID, Default: def.Default}
	vertices, normals := base.Vertices(), base.Normals()
	for i, v := range vertices {
		center, dist := nearest(centers, v)
		if dist >= radius {
			continue
		}
		w := weight(falloff, dist/radius)
		if w <= 0 {
			continue
		}
		dir, err := direction(def.Direction, v, center, normals[i])
		if err != nil {
			return Influence{}, fmt.Errorf("parameter %q: %w", def.ID, err)
		}
		inf.Entries = append(inf.Entries, Entry{Vertex: i, Weight: w, Direction: dir.Scale(def.Gain)})
	}
	return inf, nil
}

// nearest returns the closest center; ties go to the earlier anchor.
func nearest(centers []geometry.Vec3, v geometry.Vec3) (geometry.Vec3, float64) {
	best, bestD := centers[0], v.Dist(centers[0])
	for _, c := range centers[1:] {
		if d := v.Dist(c); d < bestD {
			best, bestD = c, d
		}
	}
	return best, bestD
}

func direction(kind params.Direction, v, center, normal geometry.Vec3) (geometry.Vec3, error) {
	switch kind {
	case params.DirectionNormal:
		return normal, nil
	case params.DirectionRadial:
		return v.Sub(center).Normalize(), nil
	case params.DirectionLateral:
		switch {
		case v[0] > 0:
			return geometry.Vec3{1, 0, 0}, nil
		case v[0] < 0:
			return geometry.Vec3{-1, 0, 0}, nil
		}
		return geometry.Vec3{}, nil
	case params.DirectionVertical:
		return geometry.Vec3{0, 1, 0}, nil
	case params.DirectionForward:
		return geometry.Vec3{0, 0, 1}, nil
	case params.DirectionPitch:
		// Tangent of a rotation about +X through the center; its length
		// grows with the distance from the axis.
		d := v.Sub(center)
		return geometry.Vec3{0, -d[2], d[1]}, nil
	}
	return geometry.Vec3{}, fmt.Errorf("unknown direction %q", kind)
}

func (m *Map) buildReverseIndex() {
	counts := make([]int, m.vertexCount+1)
	for _, inf := range m.params {
		for _, e := range inf.Entries {
			counts[e.Vertex+1]++
		}
	}
	for v := 1; v <= m.vertexCount; v++ {
		counts[v] += counts[v-1]
	}
	m.offsets = counts
	m.refs = make([]Ref, counts[m.vertexCount])

	fill := append([]int(nil), counts[:m.vertexCount]...)
	for p, inf := range m.params {
		for e, entry := range inf.Entries {
			m.refs[fill[entry.Vertex]] = Ref{Param: p, Entry: e}
			fill[entry.Vertex]++
		}
	}
}

// Fingerprint is the base mesh fingerprint the map was built against.
func (m *Map) Fingerprint() uint64 { return m.fingerprint }

// VertexCount is the vertex count of the base mesh.
func (m *Map) VertexCount() int { return m.vertexCount }

// Params returns the influence tables in solver order (read-only).
func (m *Map) Params() []Influence { return m.params }

// Index returns the position of a parameter in Params.
func (m *Map) Index(id string) (int, bool) {
	i, ok := m.index[id]
	return i, ok
}

// Influence returns the table of one parameter.
func (m *Map) Influence(id string) (Influence, bool) {
	i, ok := m.index[id]
	if !ok {
		return Influence{}, false
	}
	return m.params[i], true
}

// Refs returns the entries touching vertex v (read-only).
func (m *Map) Refs(v int) []Ref {
	return m.refs[m.offsets[v]:m.offsets[v+1]]
}

// Entry resolves a reference.
func (m *Map) Entry(r Ref) Entry {
	return m.params[r.Param].Entries[r.Entry]
}

// EntryCount is the total number of (parameter, vertex) pairs.
func (m *Map) EntryCount() int { return len(m.refs) }
