// Package landmark converts raw face-landmark detector output into a canonical,
// pose-independent anchor frame.
//
// Indices follow the MediaPipe FaceMesh topology (468 points, 478 with refined
// irises). Only the final, user-confirmed set of a scan is normalized here; the
// live per-frame stream stays with the detector.
package landmark

import (
	"errors"
	"time"

	"github.com/kozaktomas/face-sculptor/internal/geometry"
)

// ErrInsufficientLandmarks is returned when a set lacks the anchor subset or the
// anchors are too degenerate to define a frame. Callers should prompt a re-scan.
var ErrInsufficientLandmarks = errors.New("insufficient landmarks")

// Semantic FaceMesh indices used by the engine.
const (
	IndexUpperLip      = 0
	IndexNoseTip       = 1
	IndexForehead      = 10
	IndexLowerLip      = 17
	IndexRightEyeOuter = 33
	IndexMouthRight    = 61
	IndexChin          = 152
	IndexNoseBridge    = 168
	IndexRightCheek    = 205
	IndexLeftEyeOuter  = 263
	IndexMouthLeft     = 291
	IndexLeftCheek     = 425
)

// anchorSubset is the fixed subset the frame is derived from.
var anchorSubset = [...]int{IndexRightEyeOuter, IndexLeftEyeOuter, IndexNoseBridge, IndexChin}

// MinPoints is the smallest set that contains the anchor subset. Named anchors
// past the end of a shorter set are simply absent.
const MinPoints = IndexLeftEyeOuter + 1

// Named maps anchor names (as referenced by parameter presets) to landmark indices.
var Named = map[string]int{
	"upper-lip":   IndexUpperLip,
	"nose-tip":    IndexNoseTip,
	"forehead":    IndexForehead,
	"lower-lip":   IndexLowerLip,
	"eye-right":   IndexRightEyeOuter,
	"mouth-right": IndexMouthRight,
	"chin":        IndexChin,
	"nose-bridge": IndexNoseBridge,
	"cheek-right": IndexRightCheek,
	"eye-left":    IndexLeftEyeOuter,
	"mouth-left":  IndexMouthLeft,
	"cheek-left":  IndexLeftCheek,
}

// Set is an ordered landmark sequence with stable semantic indices.
type Set []geometry.Vec3

// Clone returns an independent copy of s.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	copy(out, s)
	return out
}

// Capture is the committed result of one scan: the anchor frame plus the
// normalized landmarks. It is immutable; accessors hand out copies.
type Capture struct {
	frame      Frame
	landmarks  Set
	capturedAt time.Time
}

// NewCapture normalizes raw and freezes the result.
func NewCapture(raw Set, capturedAt time.Time) (*Capture, error) {
	frame, normalized, err := Normalize(raw)
	if err != nil {
		return nil, err
	}
	return &Capture{frame: frame, landmarks: normalized, capturedAt: capturedAt}, nil
}

// Frame returns the anchor frame of the scan.
func (c *Capture) Frame() Frame { return c.frame }

// Landmarks returns a copy of the normalized landmark set.
func (c *Capture) Landmarks() Set { return c.landmarks.Clone() }

// CapturedAt returns when the scan was confirmed.
func (c *Capture) CapturedAt() time.Time { return c.capturedAt }

// Anchors resolves the named anchors present in the set to their normalized
// positions.
func (c *Capture) Anchors() map[string]geometry.Vec3 {
	out := make(map[string]geometry.Vec3, len(Named))
	for name, idx := range Named {
		if idx >= len(c.landmarks) {
			continue
		}
		out[name] = c.landmarks[idx]
	}
	return out
}
