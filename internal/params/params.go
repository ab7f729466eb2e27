// Package params is the typed registry of adjustable anatomical parameters.
//
// Parameters are grouped in categories. A category is a mutually exclusive
// variant set for one feature (e.g. the "round" and "gummy-bear" implant
// variants of the "breasts" feature); exactly one category is active in a
// registry at a time and only its parameters can be read or written.
package params

import (
	"errors"
	"math"
)

var (
	// ErrUnknownParameter is returned for ids that are not registered in the
	// active category (or in the snapshot's category).
	ErrUnknownParameter = errors.New("unknown parameter")
	// ErrIncompleteSnapshot is returned when a snapshot misses parameters of its category.
	ErrIncompleteSnapshot = errors.New("incomplete snapshot")
	// ErrUnknownCategory is returned for category ids not in the catalog.
	ErrUnknownCategory = errors.New("unknown category")
	// ErrValidation is returned for values that can never be stored (NaN,
	// infinities) and for snapshots that fail strict validation.
	ErrValidation = errors.New("validation error")
)

// Direction selects how a parameter displaces the vertices it influences.
type Direction string

const (
	DirectionNormal   Direction = "normal"   // along the base vertex normal
	DirectionRadial   Direction = "radial"   // away from the anchor centre
	DirectionLateral  Direction = "lateral"  // away from the mid-sagittal plane (x = 0)
	DirectionVertical Direction = "vertical" // +Y
	DirectionForward  Direction = "forward"  // +Z
	DirectionPitch    Direction = "pitch"    // small-angle rotation about the lateral axis through the anchor
)

// Definition declares one adjustable parameter and its deformation policy.
type Definition struct {
	ID       string  `json:"id"`
	Category string  `json:"category"`
	Name     string  `json:"name"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Step     float64 `json:"step"`
	Default  float64 `json:"default"`

	Anchors   []string  `json:"anchors"`
	Radius    float64   `json:"radius,omitempty"`
	Direction Direction `json:"direction"`
	Gain      float64   `json:"gain"`
	Falloff   string    `json:"falloff,omitempty"`
}

// Quantize clamps v to [Min, Max] and rounds it to the nearest value of the
// form Default + n*Step. The result is a fixed point: Quantize(Quantize(v))
// returns the same bits.
func (d Definition) Quantize(v float64) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrValidation
	}
	v = math.Max(d.Min, math.Min(d.Max, v))

	n := math.Round((v - d.Default) / d.Step)
	q := d.Default + n*d.Step
	tol := d.Step * 1e-9
	switch {
	case q > d.Max+tol:
		q = d.Default + (n-1)*d.Step
	case q < d.Min-tol:
		q = d.Default + (n+1)*d.Step
	}
	// Bounds that sit on the grid absorb floating point noise.
	if math.Abs(q-d.Max) <= tol {
		q = d.Max
	} else if math.Abs(q-d.Min) <= tol {
		q = d.Min
	}
	return q, nil
}

// OnGrid reports whether v is inside the bounds and a whole number of steps
// away from the default, within floating tolerance.
func (d Definition) OnGrid(v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	tol := d.Step * 1e-6
	if v < d.Min-tol || v > d.Max+tol {
		return false
	}
	n := (v - d.Default) / d.Step
	return math.Abs(n-math.Round(n)) <= 1e-6
}

// Category is one variant set of parameters.
type Category struct {
	ID         string       `json:"id"`
	Feature    string       `json:"feature"`
	Name       string       `json:"name"`
	Model      string       `json:"model"`
	Parameters []Definition `json:"parameters"`
}

// Values maps parameter id to value.
type Values map[string]float64

// Clone returns an independent copy.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	for id, val := range v {
		out[id] = val
	}
	return out
}

// Snapshot is the complete value set of one category.
type Snapshot struct {
	Category string `json:"category"`
	Values   Values `json:"values"`
}
