package influence

import (
	"fmt"
	"math"
)

// Falloff maps a normalized distance t = d/r in [0, 1] to a weight. Every
// curve is continuous, non-increasing, 1 at t = 0 and 0 at t = 1.
type Falloff func(t float64) float64

const (
	FalloffCosine    = "cosine"
	FalloffQuadratic = "quadratic"
	FalloffGaussian  = "gaussian"
)

// gaussianK sets the gaussian width; the curve is shifted and rescaled so it
// reaches exactly 0 at the boundary.
const gaussianK = 4.0

var falloffs = map[string]Falloff{
	FalloffCosine: func(t float64) float64 {
		return 0.5 * (1 + math.Cos(math.Pi*t))
	},
	FalloffQuadratic: func(t float64) float64 {
		return (1 - t) * (1 - t)
	},
	FalloffGaussian: func(t float64) float64 {
		floor := math.Exp(-gaussianK)
		return (math.Exp(-gaussianK*t*t) - floor) / (1 - floor)
	},
}

// ParseFalloff resolves a falloff curve by name.
func ParseFalloff(name string) (Falloff, error) {
	f, ok := falloffs[name]
	if !ok {
		return nil, fmt.Errorf("unknown falloff %q", name)
	}
	return f, nil
}

// weight evaluates f with t clamped to [0, 1].
func weight(f Falloff, t float64) float64 {
	switch {
	case t <= 0:
		return 1
	case t >= 1:
		return 0
	}
	return math.Max(0, math.Min(1, f(t)))
}
