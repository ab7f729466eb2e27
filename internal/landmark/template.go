package landmark

import (
	"math"

	"github.com/kozaktomas/face-sculptor/internal/geometry"
)

// TemplateSize matches the refined FaceMesh output (468 + 10 iris points).
const TemplateSize = 478

// templateAnchors are canonical anchor positions (interocular distance = 1,
// +Y up, +Z out of the face).
var templateAnchors = map[string]geometry.Vec3{
	"eye-right":   {-0.5, 0.35, 0},
	"eye-left":    {0.5, 0.35, 0},
	"nose-bridge": {0, 0.35, 0.15},
	"nose-tip":    {0, -0.05, 0.45},
	"upper-lip":   {0, -0.35, 0.3},
	"lower-lip":   {0, -0.5, 0.28},
	"mouth-right": {-0.25, -0.42, 0.2},
	"mouth-left":  {0.25, -0.42, 0.2},
	"chin":        {0, -0.85, 0.15},
	"forehead":    {0, 0.9, 0.2},
	"cheek-right": {-0.45, -0.1, 0.15},
	"cheek-left":  {0.45, -0.1, 0.15},
}

// Template returns a synthetic, deterministic landmark set in canonical pose.
// Non-anchor points are spread over the front half of an ellipsoid with a
// golden-angle spiral. It stands in for a detector in demos, benchmarks and tests.
func Template() Set {
	set := make(Set, TemplateSize)
	golden := math.Pi * (3 - math.Sqrt(5))
	n := float64(len(set))
	for i := range set {
		y := 1 - 2*(float64(i)+0.5)/n
		r := math.Sqrt(1 - y*y)
		theta := golden * float64(i)
		set[i] = geometry.Vec3{
			0.75 * math.Cos(theta) * r,
			y,
			0.55 * math.Abs(math.Sin(theta)*r),
		}
	}
	for name, idx := range Named {
		set[idx] = templateAnchors[name]
	}
	return set
}
