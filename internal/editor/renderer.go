package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kozaktomas/face-sculptor/internal/config"
	"github.com/kozaktomas/face-sculptor/internal/constants"
	"github.com/kozaktomas/face-sculptor/internal/deform"
	"github.com/kozaktomas/face-sculptor/internal/influence"
	"github.com/kozaktomas/face-sculptor/internal/landmark"
	"github.com/kozaktomas/face-sculptor/internal/mesh"
	"github.com/kozaktomas/face-sculptor/internal/metrics"
	"github.com/kozaktomas/face-sculptor/internal/params"
)

// ErrUnknownModel is returned for a category whose base model has no generator.
var ErrUnknownModel = errors.New("unknown base model")

var templateCapture = sync.OnceValues(func() (*landmark.Capture, error) {
	return landmark.NewCapture(landmark.Template(), time.Time{})
})

// Renderer turns a capture and a parameter snapshot into a solved mesh.
// Influence maps are immutable and cached by mesh fingerprint, so a map is
// rebuilt only when the vertex positions, topology or anchor table change.
type Renderer struct {
	catalog *params.Catalog
	cfg     config.EngineConfig
	solver  *deform.Solver
	metrics *metrics.Metrics

	mu    sync.Mutex
	maps  map[uint64]*influence.Map
	order []uint64
}

// NewRenderer creates a renderer. m may be nil.
func NewRenderer(catalog *params.Catalog, cfg config.EngineConfig, m *metrics.Metrics) *Renderer {
	return &Renderer{
		catalog: catalog,
		cfg:     cfg,
		solver: deform.NewSolver(deform.Options{
			MaxDisplacement: cfg.MaxDisplacement,
			ClampFraction:   cfg.ClampFraction,
		}),
		metrics: m,
		maps:    make(map[uint64]*influence.Map),
	}
}

// Catalog returns the parameter catalog.
func (r *Renderer) Catalog() *params.Catalog { return r.catalog }

// Solver returns the configured solver.
func (r *Renderer) Solver() *deform.Solver { return r.solver }

// Base generates the base mesh of model. Face meshes get their anchors
// fitted to capture, or to the synthetic template when capture is nil.
func (r *Renderer) Base(model string, capture *landmark.Capture) (*mesh.Base, error) {
	switch model {
	case mesh.ModelFace:
		base, err := mesh.FaceGrid(r.cfg.FaceGrid[0], r.cfg.FaceGrid[1])
		if err != nil {
			return nil, err
		}
		if capture == nil {
			if capture, err = templateCapture(); err != nil {
				return nil, fmt.Errorf("template capture: %w", err)
			}
		}
		return mesh.FitAnchors(base, capture.Anchors())
	case mesh.ModelTorso:
		return mesh.TorsoGrid(r.cfg.TorsoGrid[0], r.cfg.TorsoGrid[1])
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, model)
	}
}

// Map returns the influence map of every parameter deforming base's model.
func (r *Renderer) Map(ctx context.Context, base *mesh.Base) (*influence.Map, error) {
	r.mu.Lock()
	m, ok := r.maps[base.Fingerprint()]
	r.mu.Unlock()
	if ok {
		return m, nil
	}

	start := time.Now()
	m, err := influence.Build(ctx, base, r.catalog.ModelDefinitions(base.Model()), influence.Options{
		DefaultRadius: r.cfg.DefaultRadius,
		Falloff:       r.cfg.Falloff,
	})
	if !errors.Is(err, context.Canceled) {
		r.metrics.InfluenceBuilt(base.Model(), time.Since(start), err)
	}
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.maps[m.Fingerprint()]; !ok {
		if len(r.order) >= constants.MaxCachedInfluenceMaps {
			delete(r.maps, r.order[0])
			r.order = r.order[1:]
		}
		r.maps[m.Fingerprint()] = m
		r.order = append(r.order, m.Fingerprint())
	}
	return m, nil
}

// Prepare generates the base mesh of model and its influence map.
func (r *Renderer) Prepare(ctx context.Context, model string, capture *landmark.Capture) (*mesh.Base, *influence.Map, error) {
	base, err := r.Base(model, capture)
	if err != nil {
		return nil, nil, err
	}
	m, err := r.Map(ctx, base)
	if err != nil {
		return nil, nil, err
	}
	return base, m, nil
}

// Render solves snap from scratch on the base model of its category.
func (r *Renderer) Render(ctx context.Context, capture *landmark.Capture, snap params.Snapshot) (*deform.Result, error) {
	cat, ok := r.catalog.Category(snap.Category)
	if !ok {
		return nil, fmt.Errorf("%w: %q", params.ErrUnknownCategory, snap.Category)
	}
	base, m, err := r.Prepare(ctx, cat.Model, capture)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	res, err := r.solver.Apply(base, m, snap.Values)
	if err != nil {
		return nil, err
	}
	r.metrics.Solved(time.Since(start))
	return res, nil
}
