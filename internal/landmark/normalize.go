package landmark

import (
	"fmt"

	"github.com/kozaktomas/face-sculptor/internal/geometry"
)

// degenerateEps guards against coincident anchors and collinear axes.
const degenerateEps = 1e-9

// Frame is a rigid rotation plus uniform scale mapping capture space into the
// canonical unit frame: p' = Scale · Rotation · (p − Origin).
// Rotation rows are the lateral, up and forward axes expressed in capture space.
type Frame struct {
	Origin   geometry.Vec3 `json:"origin"`
	Rotation geometry.Mat3 `json:"rotation"`
	Scale    float64       `json:"scale"`
}

// Apply maps a capture-space point into the canonical frame.
func (f Frame) Apply(p geometry.Vec3) geometry.Vec3 {
	return f.Rotation.MulVec3(p.Sub(f.Origin)).Scale(f.Scale)
}

// Inverse maps a canonical point back into capture space.
func (f Frame) Inverse(q geometry.Vec3) geometry.Vec3 {
	return f.Rotation.Transpose().MulVec3(q.Scale(1 / f.Scale)).Add(f.Origin)
}

// Interocular returns the interocular distance in capture units.
func (f Frame) Interocular() float64 {
	return 1 / f.Scale
}

// Delta compares two frames: the ratio of their scales and the angle in
// radians between their rotations.
func (f Frame) Delta(other Frame) (scaleRatio, angle float64) {
	return f.Scale / other.Scale, geometry.RotationAngle(f.Rotation, other.Rotation)
}

// IsIdentity reports whether f is a near-identity transform within eps.
func (f Frame) IsIdentity(eps float64) bool {
	ratio, angle := f.Delta(Frame{Rotation: geometry.Mat3Identity(), Scale: 1})
	return f.Origin.Len() < eps && abs(ratio-1) < eps && angle < eps
}

// ComputeFrame derives the anchor frame from the fixed anchor subset.
func ComputeFrame(raw Set) (Frame, error) {
	if len(raw) < MinPoints {
		return Frame{}, fmt.Errorf("%w: got %d points, need at least %d", ErrInsufficientLandmarks, len(raw), MinPoints)
	}

	anchors := make([]geometry.Vec3, 0, len(anchorSubset))
	for _, idx := range anchorSubset {
		if !raw[idx].IsFinite() {
			return Frame{}, fmt.Errorf("%w: anchor %d is not finite", ErrInsufficientLandmarks, idx)
		}
		anchors = append(anchors, raw[idx])
	}

	eyes := raw[IndexLeftEyeOuter].Sub(raw[IndexRightEyeOuter])
	interocular := eyes.Len()
	if interocular < degenerateEps {
		return Frame{}, fmt.Errorf("%w: eye anchors coincide", ErrInsufficientLandmarks)
	}

	lateral := eyes.Scale(1 / interocular)
	upHint := raw[IndexNoseBridge].Sub(raw[IndexChin])
	forward := lateral.Cross(upHint)
	if forward.Len() < degenerateEps {
		return Frame{}, fmt.Errorf("%w: chin-bridge axis is parallel to the eye line", ErrInsufficientLandmarks)
	}
	forward = forward.Normalize()
	up := forward.Cross(lateral)

	return Frame{
		Origin:   geometry.Centroid(anchors),
		Rotation: geometry.Mat3FromRows(lateral, up, forward),
		Scale:    1 / interocular,
	}, nil
}

// Normalize computes the anchor frame of raw and applies it to every landmark.
// The input is not modified. Normalizing an already-normalized set yields a
// near-identity frame.
func Normalize(raw Set) (Frame, Set, error) {
	frame, err := ComputeFrame(raw)
	if err != nil {
		return Frame{}, nil, err
	}

	out := make(Set, len(raw))
	for i, p := range raw {
		out[i] = frame.Apply(p)
	}
	return frame, out, nil
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
