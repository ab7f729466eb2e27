package deform

import (
	"fmt"
	"math"

	"github.com/kozaktomas/face-sculptor/internal/mesh"
)

// changedEps is the distance below which a vertex counts as unchanged.
const changedEps = 1e-12

// Comparison summarizes per-vertex distances between two meshes of the
// same topology.
type Comparison struct {
	VertexCount     int     `json:"vertexCount"`
	ChangedVertices int     `json:"changedVertices"`
	MaxDistance     float64 `json:"maxDistance"`
	MeanDistance    float64 `json:"meanDistance"`
	RMSDistance     float64 `json:"rmsDistance"`
	MaxVertex       int     `json:"maxVertex"`
}

// Identical reports whether no vertex moved.
func (c Comparison) Identical() bool { return c.ChangedVertices == 0 }

// Compare measures how far each vertex of b is from the same vertex of a.
func Compare(a, b mesh.Snapshot) (Comparison, error) {
	if len(a.Vertices) != len(b.Vertices) {
		return Comparison{}, fmt.Errorf("%w: %d vs %d vertices", ErrMismatch, len(a.Vertices), len(b.Vertices))
	}

	c := Comparison{VertexCount: len(a.Vertices), MaxVertex: -1}
	var sum, sumSq float64
	for i := range a.Vertices {
		d := a.Vertices[i].Dist(b.Vertices[i])
		if d > changedEps {
			c.ChangedVertices++
		}
		if d > c.MaxDistance {
			c.MaxDistance = d
			c.MaxVertex = i
		}
		sum += d
		sumSq += d * d
	}
	if n := float64(len(a.Vertices)); n > 0 {
		c.MeanDistance = sum / n
		c.RMSDistance = math.Sqrt(sumSq / n)
	}
	return c, nil
}
