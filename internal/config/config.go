package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed presets.yaml
var presetsYAML []byte

type Config struct {
	Database       DatabaseConfig
	Engine         EngineConfig
	Web            WebConfig
	Log            LogConfig
	ReferenceImage ReferenceImageConfig
	Presets        PresetsConfig
}

type DatabaseConfig struct {
	URL          string // Session store URL; scheme selects the backend (empty = in-memory)
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

// EngineConfig holds deformation policy that is deliberately not hard-coded.
type EngineConfig struct {
	ClampFraction   float64       // Max displacement as a fraction of the mesh extent (default 0.35)
	MaxDisplacement float64       // Absolute max displacement; overrides ClampFraction when > 0
	DefaultRadius   float64       // Influence radius for parameters that do not declare one (default 0.35)
	Falloff         string        // Default falloff curve (default cosine)
	TickInterval    time.Duration // Render loop period (default 16ms)
	FaceGrid        [2]int        // Face base mesh resolution, cols x rows (default 40x25)
	TorsoGrid       [2]int        // Torso base mesh resolution, cols x rows (default 48x36)
}

type WebConfig struct {
	Host           string   // defaults to 0.0.0.0
	Port           int      // defaults to 8080
	AllowedOrigins []string // CORS origins; empty allows any origin
}

type LogConfig struct {
	Level string // logrus level name (default info)
	File  string // optional rotating log file
}

type ReferenceImageConfig struct {
	MaxSize int // longest edge in pixels (default 1024)
}

type PresetsConfig struct {
	Categories []CategoryPreset `yaml:"categories" validate:"required,min=1,dive"`
}

type CategoryPreset struct {
	ID         string            `yaml:"id" validate:"required"`
	Feature    string            `yaml:"feature" validate:"required"`
	Name       string            `yaml:"name" validate:"required"`
	Model      string            `yaml:"model" validate:"required,oneof=face torso"`
	Parameters []ParameterPreset `yaml:"parameters" validate:"required,min=1,dive"`
}

type ParameterPreset struct {
	ID        string   `yaml:"id" validate:"required"`
	Name      string   `yaml:"name" validate:"required"`
	Min       float64  `yaml:"min"`
	Max       float64  `yaml:"max" validate:"gtfield=Min"`
	Step      float64  `yaml:"step" validate:"gt=0"`
	Default   float64  `yaml:"default"`
	Anchors   []string `yaml:"anchors" validate:"required,min=1"`
	Radius    float64  `yaml:"radius" validate:"gte=0"`
	Direction string   `yaml:"direction" validate:"required,oneof=normal radial lateral vertical forward pitch"`
	Gain      float64  `yaml:"gain"`
	Falloff   string   `yaml:"falloff" validate:"omitempty,oneof=cosine quadratic gaussian"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads a non-negative float. Invalid values fall back to the default.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 {
		return f
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envGrid parses "COLSxROWS".
func envGrid(key string, defaultVal [2]int) [2]int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	cols, rows, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return defaultVal
	}
	c, errC := strconv.Atoi(cols)
	r, errR := strconv.Atoi(rows)
	if errC != nil || errR != nil || c < 2 || r < 2 {
		return defaultVal
	}
	return [2]int{c, r}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ParsePresets decodes a presets document.
func ParsePresets(data []byte) (PresetsConfig, error) {
	var presets PresetsConfig
	if err := yaml.Unmarshal(data, &presets); err != nil {
		return PresetsConfig{}, fmt.Errorf("failed to unmarshal presets: %w", err)
	}
	return presets, nil
}

func Load() *Config {
	presets, err := ParsePresets(presetsYAML)
	if err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded presets.yaml: " + err.Error())
	}

	return &Config{
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Engine: EngineConfig{
			ClampFraction:   envFloat("ENGINE_CLAMP_FRACTION", 0.35),
			MaxDisplacement: envFloat("ENGINE_MAX_DISPLACEMENT", 0),
			DefaultRadius:   envFloat("ENGINE_DEFAULT_RADIUS", 0.35),
			Falloff:         envString("ENGINE_FALLOFF", "cosine"),
			TickInterval:    envDuration("ENGINE_TICK_INTERVAL", 16*time.Millisecond),
			FaceGrid:        envGrid("ENGINE_FACE_GRID", [2]int{40, 25}),
			TorsoGrid:       envGrid("ENGINE_TORSO_GRID", [2]int{48, 36}),
		},
		Web: WebConfig{
			Host:           envString("WEB_HOST", "0.0.0.0"),
			Port:           envInt("WEB_PORT", 8080),
			AllowedOrigins: splitList(os.Getenv("WEB_ALLOWED_ORIGINS")),
		},
		Log: LogConfig{
			Level: envString("LOG_LEVEL", "info"),
			File:  os.Getenv("LOG_FILE"),
		},
		ReferenceImage: ReferenceImageConfig{
			MaxSize: envInt("REFERENCE_IMAGE_MAX_SIZE", 1024),
		},
		Presets: presets,
	}
}
