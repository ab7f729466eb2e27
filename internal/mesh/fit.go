package mesh

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/coder/hnsw"
	"github.com/kozaktomas/face-sculptor/internal/geometry"
)

const (
	// fitCandidates is how many approximate neighbours are refined by exact distance.
	fitCandidates   = 8
	fitMaxNeighbors = 16
	// fitSeed keeps graph construction reproducible so identical captures
	// always produce identical anchor tables.
	fitSeed = 1
)

// FitAnchors returns a copy of base whose anchor table maps every named
// position to its nearest vertex. Positions must be in the base mesh space
// (canonical landmark space for face models).
//
// Lookup goes through an HNSW graph over the vertex positions; the top
// candidates are re-ranked by exact distance with ties broken by lower index.
func FitAnchors(base *Base, positions map[string]geometry.Vec3) (*Base, error) {
	if len(positions) == 0 {
		return base, nil
	}

	g := hnsw.NewGraph[int]()
	g.M = fitMaxNeighbors
	g.Ml = 1.0 / float64(fitMaxNeighbors)
	g.Distance = hnsw.EuclideanDistance
	g.Rng = rand.New(rand.NewSource(fitSeed))

	nodes := make([]hnsw.Node[int], len(base.vertices))
	for i, v := range base.vertices {
		nodes[i] = hnsw.MakeNode(i, v.Float32())
	}
	g.Add(nodes...)

	names := make([]string, 0, len(positions))
	for name := range positions {
		names = append(names, name)
	}
	sort.Strings(names)

	fitted := make(map[string]int, len(positions))
	for _, name := range names {
		p := positions[name]
		if !p.IsFinite() {
			return nil, fmt.Errorf("%w: anchor %q position is not finite", ErrInvalidMesh, name)
		}
		best, bestD := -1, math.Inf(1)
		for _, n := range g.Search(p.Float32(), fitCandidates) {
			d := base.vertices[n.Key].Dist(p)
			if d < bestD || (d == bestD && n.Key < best) {
				best, bestD = n.Key, d
			}
		}
		if best < 0 {
			return nil, fmt.Errorf("%w: no vertex found for anchor %q", ErrInvalidMesh, name)
		}
		fitted[name] = best
	}

	return base.WithAnchors(fitted)
}
