package geometry

import (
	"math"
	"testing"
)

func TestVec3Cross(t *testing.T) {
	x := Vec3{1, 0, 0}
	y := Vec3{0, 1, 0}
	if got := x.Cross(y); got != (Vec3{0, 0, 1}) {
		t.Errorf("x × y = %v, want (0,0,1)", got)
	}
}

func TestVec3ClampLen(t *testing.T) {
	tests := []struct {
		name    string
		v       Vec3
		max     float64
		wantLen float64
	}{
		{"shorter than limit", Vec3{0.1, 0, 0}, 1, 0.1},
		{"longer than limit", Vec3{3, 4, 0}, 1, 1},
		{"zero vector", Vec3{}, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.v.ClampLen(tt.max).Len()
			if math.Abs(got-tt.wantLen) > 1e-12 {
				t.Errorf("ClampLen(%v).Len() = %v, want %v", tt.max, got, tt.wantLen)
			}
		})
	}
}

func TestNormalizeZero(t *testing.T) {
	if got := (Vec3{}).Normalize(); got != (Vec3{}) {
		t.Errorf("Normalize(zero) = %v, want zero", got)
	}
}

func TestCentroid(t *testing.T) {
	c := Centroid([]Vec3{{0, 0, 0}, {2, 0, 0}, {0, 4, 0}, {2, 4, 8}})
	want := Vec3{1, 2, 2}
	if c != want {
		t.Errorf("Centroid = %v, want %v", c, want)
	}
}

func TestRotationAngle(t *testing.T) {
	a := Mat3Identity()
	b := RotZ(Deg2Rad(30))
	got := RotationAngle(a, b)
	if math.Abs(got-Deg2Rad(30)) > 1e-9 {
		t.Errorf("RotationAngle = %v, want %v", got, Deg2Rad(30))
	}
	if RotationAngle(b, b) > 1e-6 {
		t.Errorf("RotationAngle(b, b) = %v, want ~0", RotationAngle(b, b))
	}
}

func TestRotationOrthonormal(t *testing.T) {
	m := Mat3Mul(RotX(0.3), Mat3Mul(RotY(-1.1), RotZ(2.0)))
	if math.Abs(m.Det()-1) > 1e-12 {
		t.Errorf("det = %v, want 1", m.Det())
	}
	p := Mat3Mul(m, m.Transpose())
	id := Mat3Identity()
	for i := range p {
		if math.Abs(p[i]-id[i]) > 1e-12 {
			t.Fatalf("M·Mᵀ = %v, want identity", p)
		}
	}
}
