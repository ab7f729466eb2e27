package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"DATABASE_URL", "DATABASE_MAX_OPEN_CONNS", "ENGINE_CLAMP_FRACTION", "ENGINE_MAX_DISPLACEMENT",
		"ENGINE_DEFAULT_RADIUS", "ENGINE_FALLOFF", "ENGINE_TICK_INTERVAL", "ENGINE_FACE_GRID",
		"WEB_PORT", "WEB_HOST", "WEB_ALLOWED_ORIGINS", "LOG_LEVEL", "REFERENCE_IMAGE_MAX_SIZE",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.Database.MaxOpenConns != 25 || cfg.Database.MaxIdleConns != 5 {
		t.Errorf("database pool defaults = %d/%d, want 25/5", cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
	}
	if cfg.Engine.ClampFraction != 0.35 {
		t.Errorf("ClampFraction = %v, want 0.35", cfg.Engine.ClampFraction)
	}
	if cfg.Engine.DefaultRadius != 0.35 {
		t.Errorf("DefaultRadius = %v, want 0.35", cfg.Engine.DefaultRadius)
	}
	if cfg.Engine.Falloff != "cosine" {
		t.Errorf("Falloff = %q, want cosine", cfg.Engine.Falloff)
	}
	if cfg.Engine.TickInterval != 16*time.Millisecond {
		t.Errorf("TickInterval = %v, want 16ms", cfg.Engine.TickInterval)
	}
	if cfg.Engine.FaceGrid != [2]int{40, 25} {
		t.Errorf("FaceGrid = %v, want [40 25]", cfg.Engine.FaceGrid)
	}
	if cfg.Web.Port != 8080 || cfg.Web.Host != "0.0.0.0" {
		t.Errorf("web = %s:%d, want 0.0.0.0:8080", cfg.Web.Host, cfg.Web.Port)
	}
	if len(cfg.Web.AllowedOrigins) != 0 {
		t.Errorf("AllowedOrigins = %v, want empty", cfg.Web.AllowedOrigins)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
	if cfg.ReferenceImage.MaxSize != 1024 {
		t.Errorf("ReferenceImage.MaxSize = %d, want 1024", cfg.ReferenceImage.MaxSize)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ENGINE_CLAMP_FRACTION", "0.5")
	t.Setenv("ENGINE_MAX_DISPLACEMENT", "0.02")
	t.Setenv("ENGINE_TICK_INTERVAL", "33ms")
	t.Setenv("ENGINE_FACE_GRID", "20X10")
	t.Setenv("WEB_ALLOWED_ORIGINS", "http://a.test, http://b.test,")
	t.Setenv("WEB_PORT", "9000")

	cfg := Load()

	if cfg.Engine.ClampFraction != 0.5 {
		t.Errorf("ClampFraction = %v, want 0.5", cfg.Engine.ClampFraction)
	}
	if cfg.Engine.MaxDisplacement != 0.02 {
		t.Errorf("MaxDisplacement = %v, want 0.02", cfg.Engine.MaxDisplacement)
	}
	if cfg.Engine.TickInterval != 33*time.Millisecond {
		t.Errorf("TickInterval = %v, want 33ms", cfg.Engine.TickInterval)
	}
	if cfg.Engine.FaceGrid != [2]int{20, 10} {
		t.Errorf("FaceGrid = %v, want [20 10]", cfg.Engine.FaceGrid)
	}
	if len(cfg.Web.AllowedOrigins) != 2 || cfg.Web.AllowedOrigins[1] != "http://b.test" {
		t.Errorf("AllowedOrigins = %v", cfg.Web.AllowedOrigins)
	}
	if cfg.Web.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Web.Port)
	}
}

func TestEnvHelpers_InvalidFallBack(t *testing.T) {
	tests := []struct {
		name  string
		value string
		check func() bool
	}{
		{"negative int", "-3", func() bool { return envInt("X_TEST_VAR", 7) == 7 }},
		{"garbage float", "abc", func() bool { return envFloat("X_TEST_VAR", 0.1) == 0.1 }},
		{"negative float", "-1", func() bool { return envFloat("X_TEST_VAR", 0.1) == 0.1 }},
		{"bad duration", "soon", func() bool { return envDuration("X_TEST_VAR", time.Second) == time.Second }},
		{"bad grid", "40by25", func() bool { return envGrid("X_TEST_VAR", [2]int{1, 1}) == [2]int{1, 1} }},
		{"tiny grid", "1x9", func() bool { return envGrid("X_TEST_VAR", [2]int{1, 1}) == [2]int{1, 1} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("X_TEST_VAR", tt.value)
			if !tt.check() {
				t.Errorf("helper did not fall back to default for %q", tt.value)
			}
		})
	}
}

func TestEmbeddedPresets(t *testing.T) {
	presets, err := ParsePresets(presetsYAML)
	if err != nil {
		t.Fatalf("ParsePresets() error: %v", err)
	}

	byID := map[string]CategoryPreset{}
	for _, c := range presets.Categories {
		byID[c.ID] = c
	}
	for _, id := range []string{"nose", "lips", "round", "gummy-bear"} {
		if _, ok := byID[id]; !ok {
			t.Errorf("missing category %q", id)
		}
	}

	round := byID["round"]
	if round.Feature != "breasts" || byID["gummy-bear"].Feature != "breasts" {
		t.Error("implant variants should share the breasts feature")
	}
	var size ParameterPreset
	for _, p := range round.Parameters {
		if p.ID == "implant-size" {
			size = p
		}
	}
	if size.Min != 200 || size.Max != 800 || size.Step != 25 || size.Default != 350 {
		t.Errorf("implant-size = %+v, want 200..800 step 25 default 350", size)
	}
}

func TestParsePresets_Invalid(t *testing.T) {
	if _, err := ParsePresets([]byte("categories: [")); err == nil {
		t.Error("ParsePresets() expected error for malformed yaml")
	}
}
