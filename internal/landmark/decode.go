package landmark

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/kozaktomas/face-sculptor/internal/geometry"
)

// point is the object shape emitted by MediaPipe ({x, y, z}).
type point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Decode reads a landmark set either as [[x,y,z], ...] or as [{"x":..,"y":..,"z":..}, ...].
func Decode(r io.Reader) (Set, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding landmarks: %w", err)
	}
	return Parse(raw)
}

// Parse is Decode over an in-memory JSON document.
func Parse(data []byte) (Set, error) {
	var triples [][]float64
	if err := json.Unmarshal(data, &triples); err == nil {
		set := make(Set, len(triples))
		for i, t := range triples {
			if len(t) != 2 && len(t) != 3 {
				return nil, fmt.Errorf("landmark %d: expected 2 or 3 coordinates, got %d", i, len(t))
			}
			copy(set[i][:], t)
		}
		return set, nil
	}

	var objects []point
	if err := json.Unmarshal(data, &objects); err != nil {
		return nil, errors.New("landmarks must be an array of [x,y,z] triples or {x,y,z} objects")
	}
	set := make(Set, len(objects))
	for i, p := range objects {
		set[i] = geometry.Vec3{p.X, p.Y, p.Z}
	}
	return set, nil
}

// MarshalJSON encodes the set as [[x,y,z], ...].
func (s Set) MarshalJSON() ([]byte, error) {
	triples := make([][3]float64, len(s))
	for i, p := range s {
		triples[i] = p
	}
	return json.Marshal(triples)
}
