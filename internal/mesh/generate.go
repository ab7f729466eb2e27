package mesh

import (
	"fmt"
	"math"

	"github.com/kozaktomas/face-sculptor/internal/geometry"
)

// Anatomical base model names.
const (
	ModelFace  = "face"
	ModelTorso = "torso"
)

// Torso anchor names. Face anchors come from a landmark fit (see FitAnchors).
const (
	AnchorBreastLeft  = "breast-left"
	AnchorBreastRight = "breast-right"
	AnchorSternum     = "sternum"
)

// FaceGrid builds a cols×rows face patch in canonical landmark space
// (interocular distance 1, +Y up, +Z towards the viewer). The patch is the
// front half of an ellipsoid so vertex normals point outwards. The patch has
// no anchors until FitAnchors assigns them.
func FaceGrid(cols, rows int) (*Base, error) {
	return grid(fmt.Sprintf("face-%dx%d", cols, rows), ModelFace, cols, rows, 0.9, 1.1, func(x, y float64) float64 {
		u := 1 - (x/0.95)*(x/0.95) - (y/1.2)*(y/1.2)
		if u < 0 {
			u = 0
		}
		return 0.55 * math.Sqrt(u)
	}, nil)
}

// TorsoGrid builds a cols×rows chest patch with fixed breast and sternum anchors.
func TorsoGrid(cols, rows int) (*Base, error) {
	anchors := map[string]geometry.Vec3{
		AnchorBreastLeft:  {0.6, -0.2, 0},
		AnchorBreastRight: {-0.6, -0.2, 0},
		AnchorSternum:     {0, 0, 0},
	}
	return grid(fmt.Sprintf("torso-%dx%d", cols, rows), ModelTorso, cols, rows, 1.6, 1.2, func(x, _ float64) float64 {
		u := 1 - (x/1.8)*(x/1.8)
		if u < 0 {
			u = 0
		}
		return 0.4 * math.Sqrt(u)
	}, anchors)
}

// grid lays out a regular height-field patch over [-halfW,halfW]×[-halfH,halfH]
// and triangulates each cell into two counter-clockwise triangles. Anchor
// positions are snapped to the closest vertex in the XY plane.
func grid(id, model string, cols, rows int, halfW, halfH float64, depth func(x, y float64) float64, anchorPos map[string]geometry.Vec3) (*Base, error) {
	if cols < 2 || rows < 2 {
		return nil, fmt.Errorf("%w: grid needs at least 2x2 vertices, got %dx%d", ErrInvalidMesh, cols, rows)
	}

	vertices := make([]geometry.Vec3, 0, cols*rows)
	for r := 0; r < rows; r++ {
		y := -halfH + 2*halfH*float64(r)/float64(rows-1)
		for c := 0; c < cols; c++ {
			x := -halfW + 2*halfW*float64(c)/float64(cols-1)
			vertices = append(vertices, geometry.Vec3{x, y, depth(x, y)})
		}
	}

	faces := make([][3]int, 0, 2*(cols-1)*(rows-1))
	for r := 0; r < rows-1; r++ {
		for c := 0; c < cols-1; c++ {
			i := r*cols + c
			faces = append(faces, [3]int{i, i + 1, i + cols + 1}, [3]int{i, i + cols + 1, i + cols})
		}
	}

	anchors := make(map[string]int, len(anchorPos))
	for name, p := range anchorPos {
		best, bestD := 0, math.Inf(1)
		for i, v := range vertices {
			dx, dy := v[0]-p[0], v[1]-p[1]
			if d := dx*dx + dy*dy; d < bestD {
				best, bestD = i, d
			}
		}
		anchors[name] = best
	}

	return New(id, model, vertices, faces, anchors)
}
