package landmark

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/kozaktomas/face-sculptor/internal/geometry"
)

// posed applies a rotation, uniform scale and translation to every point.
func posed(set Set, rot geometry.Mat3, scale float64, shift geometry.Vec3) Set {
	out := make(Set, len(set))
	for i, p := range set {
		out[i] = rot.MulVec3(p).Scale(scale).Add(shift)
	}
	return out
}

func TestNormalize_InsufficientLandmarks(t *testing.T) {
	tooShort := Template()[:100]

	coincident := Template()
	coincident[IndexLeftEyeOuter] = coincident[IndexRightEyeOuter]

	parallel := Template()
	parallel[IndexChin] = geometry.Vec3{-2, 0, 0}
	parallel[IndexNoseBridge] = geometry.Vec3{2, 0, 0}
	parallel[IndexRightEyeOuter] = geometry.Vec3{-1, 0, 0}
	parallel[IndexLeftEyeOuter] = geometry.Vec3{1, 0, 0}

	notFinite := Template()
	notFinite[IndexChin] = geometry.Vec3{math.NaN(), 0, 0}

	tests := []struct {
		name string
		set  Set
	}{
		{"too few points", tooShort},
		{"empty", nil},
		{"coincident eyes", coincident},
		{"chin-bridge parallel to eyes", parallel},
		{"non-finite anchor", notFinite},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Normalize(tt.set)
			if !errors.Is(err, ErrInsufficientLandmarks) {
				t.Errorf("Normalize() error = %v, want ErrInsufficientLandmarks", err)
			}
		})
	}
}

func TestNormalize_UnitInterocular(t *testing.T) {
	raw := posed(Template(), geometry.RotY(0.4), 37.5, geometry.Vec3{120, -40, 300})

	frame, out, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	d := out[IndexLeftEyeOuter].Dist(out[IndexRightEyeOuter])
	if math.Abs(d-1) > 1e-9 {
		t.Errorf("normalized interocular distance = %v, want 1", d)
	}
	if math.Abs(frame.Interocular()-37.5) > 1e-9 {
		t.Errorf("frame.Interocular() = %v, want 37.5", frame.Interocular())
	}
}

func TestNormalize_PoseIndependent(t *testing.T) {
	_, reference, err := Normalize(Template())
	if err != nil {
		t.Fatalf("Normalize(template) error = %v", err)
	}

	rot := geometry.Mat3Mul(geometry.RotX(0.2), geometry.Mat3Mul(geometry.RotY(-0.7), geometry.RotZ(0.15)))
	_, out, err := Normalize(posed(Template(), rot, 640, geometry.Vec3{320, 240, -10}))
	if err != nil {
		t.Fatalf("Normalize(posed) error = %v", err)
	}

	for i := range out {
		if out[i].Dist(reference[i]) > 1e-9 {
			t.Fatalf("landmark %d = %v, want %v", i, out[i], reference[i])
		}
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	raw := posed(Template(), geometry.RotZ(1.1), 0.002, geometry.Vec3{0.5, 0.5, 0})

	_, once, err := Normalize(raw)
	if err != nil {
		t.Fatalf("first Normalize() error = %v", err)
	}
	second, twice, err := Normalize(once)
	if err != nil {
		t.Fatalf("second Normalize() error = %v", err)
	}

	const eps = 1e-9
	if !second.IsIdentity(eps) {
		ratio, angle := second.Delta(Frame{Rotation: geometry.Mat3Identity(), Scale: 1})
		t.Errorf("re-normalization frame not near identity: origin=%v scale ratio=%v angle=%v", second.Origin, ratio, angle)
	}
	for i := range twice {
		if twice[i].Dist(once[i]) > eps {
			t.Fatalf("landmark %d moved on re-normalization: %v -> %v", i, once[i], twice[i])
		}
	}
}

func TestNormalize_Deterministic(t *testing.T) {
	raw := posed(Template(), geometry.RotX(-0.3), 3, geometry.Vec3{1, 2, 3})

	f1, a, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	f2, b, _ := Normalize(raw)

	if f1 != f2 {
		t.Errorf("frames differ between identical runs: %+v vs %+v", f1, f2)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("landmark %d differs between identical runs", i)
		}
	}
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	raw := posed(Template(), geometry.RotY(0.5), 10, geometry.Vec3{5, 5, 5})
	before := raw.Clone()

	if _, _, err := Normalize(raw); err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	for i := range raw {
		if raw[i] != before[i] {
			t.Fatalf("input landmark %d was modified", i)
		}
	}
}

func TestFrame_InverseRoundTrip(t *testing.T) {
	raw := posed(Template(), geometry.RotZ(-0.4), 12, geometry.Vec3{-3, 8, 1})
	frame, out, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	for _, idx := range []int{IndexNoseTip, IndexChin, 400} {
		back := frame.Inverse(out[idx])
		if back.Dist(raw[idx]) > 1e-9 {
			t.Errorf("Inverse(Apply(p%d)) = %v, want %v", idx, back, raw[idx])
		}
	}
}

func TestNewCapture_ReturnsCopies(t *testing.T) {
	c, err := NewCapture(Template(), time.Unix(100, 0))
	if err != nil {
		t.Fatalf("NewCapture() error = %v", err)
	}

	lm := c.Landmarks()
	lm[IndexNoseTip] = geometry.Vec3{99, 99, 99}

	if c.Landmarks()[IndexNoseTip] == lm[IndexNoseTip] {
		t.Error("mutating returned landmarks changed the capture")
	}
	if _, ok := c.Anchors()["nose-tip"]; !ok {
		t.Error("expected nose-tip anchor")
	}
}

func TestNewCapture_AnchorSubsetOnly(t *testing.T) {
	raw := Template()[:MinPoints]
	if MinPoints != IndexLeftEyeOuter+1 {
		t.Fatalf("MinPoints = %d, want %d", MinPoints, IndexLeftEyeOuter+1)
	}

	c, err := NewCapture(raw, time.Unix(100, 0))
	if err != nil {
		t.Fatalf("NewCapture() error = %v", err)
	}
	full, err := NewCapture(Template(), time.Unix(100, 0))
	if err != nil {
		t.Fatalf("NewCapture() error = %v", err)
	}
	if c.Frame() != full.Frame() {
		t.Errorf("frame of the truncated set = %+v, want %+v", c.Frame(), full.Frame())
	}

	anchors := c.Anchors()
	for name, idx := range Named {
		_, ok := anchors[name]
		if want := idx < len(raw); ok != want {
			t.Errorf("anchor %q (index %d) present = %v, want %v", name, idx, ok, want)
		}
	}
	if _, ok := anchors["cheek-left"]; ok {
		t.Error("cheek-left lies past the end of the set and must be omitted")
	}

	if _, err := NewCapture(Template()[:MinPoints-1], time.Unix(100, 0)); !errors.Is(err, ErrInsufficientLandmarks) {
		t.Errorf("NewCapture(%d points) error = %v, want ErrInsufficientLandmarks", MinPoints-1, err)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Set
		wantErr bool
	}{
		{
			name:  "triples",
			input: `[[1,2,3],[4,5,6]]`,
			want:  Set{{1, 2, 3}, {4, 5, 6}},
		},
		{
			name:  "pairs get zero depth",
			input: `[[1,2]]`,
			want:  Set{{1, 2, 0}},
		},
		{
			name:  "mediapipe objects",
			input: `[{"x":0.1,"y":0.2,"z":-0.3}]`,
			want:  Set{{0.1, 0.2, -0.3}},
		},
		{
			name:    "wrong arity",
			input:   `[[1]]`,
			wantErr: true,
		},
		{
			name:    "not an array",
			input:   `{"x":1}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse([]byte(tt.input))
			if tt.wantErr {
				if err == nil {
					t.Errorf("Parse(%s) expected error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%s) error = %v", tt.input, err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Parse(%s) len = %d, want %d", tt.input, len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Parse(%s)[%d] = %v, want %v", tt.input, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestDecode_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	data, err := Template().MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() error = %v", err)
	}
	buf.Write(data)

	got, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(got) != TemplateSize {
		t.Errorf("Decode() len = %d, want %d", len(got), TemplateSize)
	}

	if _, err := Decode(strings.NewReader("not json")); err == nil {
		t.Error("Decode(garbage) expected error")
	}
}
