// Package editor runs one editing surface: it owns a parameter registry, the
// current landmark capture and a background influence fit, and serves
// deformed meshes to a render loop.
package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/face-sculptor/internal/config"
	"github.com/kozaktomas/face-sculptor/internal/constants"
	"github.com/kozaktomas/face-sculptor/internal/deform"
	"github.com/kozaktomas/face-sculptor/internal/landmark"
	"github.com/kozaktomas/face-sculptor/internal/logging"
	"github.com/kozaktomas/face-sculptor/internal/mesh"
	"github.com/kozaktomas/face-sculptor/internal/metrics"
	"github.com/kozaktomas/face-sculptor/internal/params"
	"github.com/kozaktomas/face-sculptor/internal/session"
	"github.com/sirupsen/logrus"
)

var (
	// ErrNotReady is returned by Tick while the influence map is being built.
	// The accompanying snapshot is the last valid one, if any.
	ErrNotReady = errors.New("influence map is not ready")
	ErrClosed   = errors.New("editor is closed")
)

// RenderTarget receives every new mesh produced by the render loop.
type RenderTarget interface {
	Present(mesh.Snapshot)
}

// RenderFunc adapts a function to RenderTarget.
type RenderFunc func(mesh.Snapshot)

func (f RenderFunc) Present(s mesh.Snapshot) { f(s) }

// Options configures a new editor.
type Options struct {
	// Category is the initially active category; empty selects the first one.
	Category string
	Log      *logrus.Entry
	Metrics  *metrics.Metrics
	// Renderer may be shared to reuse influence maps across editors.
	Renderer *Renderer
}

// Editor is safe for concurrent use. Tick and Run may run on one goroutine
// while parameter edits and scans arrive on others.
type Editor struct {
	id       string
	registry *params.Registry
	renderer *Renderer
	interval time.Duration
	log      *logrus.Entry
	metrics  *metrics.Metrics

	mu         sync.Mutex
	capture    *landmark.Capture
	parentID   string
	model      string
	generation uint64
	cancel     context.CancelFunc
	ready      chan struct{}
	pending    bool
	result     *deform.Result
	buildErr   error
	solved     uint64 // registry version the result reflects
	last       *mesh.Snapshot
	closed     bool

	// buildHook runs at the start of every build goroutine; tests use it.
	buildHook func(model string)
}

// New creates an editor and starts building the influence map of the
// initial category's base model in the background.
func New(catalog *params.Catalog, cfg config.EngineConfig, opts Options) (*Editor, error) {
	category := opts.Category
	if category == "" {
		cats := catalog.Categories()
		if len(cats) == 0 {
			return nil, fmt.Errorf("%w: catalog is empty", params.ErrUnknownCategory)
		}
		category = cats[0].ID
	}
	registry, err := params.NewRegistry(catalog, category)
	if err != nil {
		return nil, err
	}

	renderer := opts.Renderer
	if renderer == nil {
		renderer = NewRenderer(catalog, cfg, opts.Metrics)
	}
	interval := cfg.TickInterval
	if interval <= 0 {
		interval = constants.DefaultTickInterval
	}

	id := uuid.New().String()
	log := opts.Log
	if log == nil {
		log = logging.For("editor")
	}

	e := &Editor{
		id:       id,
		registry: registry,
		renderer: renderer,
		interval: interval,
		log:      log.WithField("editor", id[:8]),
		metrics:  opts.Metrics,
	}
	e.metrics.EditorOpened()

	e.mu.Lock()
	e.startBuildLocked(registry.Active().Model)
	e.mu.Unlock()
	return e, nil
}

// ID returns the editor id.
func (e *Editor) ID() string { return e.id }

// Registry returns the parameter registry of the editor.
func (e *Editor) Registry() *params.Registry { return e.registry }

// Capture returns the committed capture, or nil before the first scan.
func (e *Editor) Capture() *landmark.Capture {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.capture
}

// Commit normalizes a user-confirmed landmark set, makes it the current
// capture and refits the face mesh. On failure the previous capture stays.
func (e *Editor) Commit(raw landmark.Set) (*landmark.Capture, error) {
	capture, err := landmark.NewCapture(raw, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrClosed
	}
	e.capture = capture
	if e.model == mesh.ModelFace {
		e.startBuildLocked(mesh.ModelFace)
	}
	e.log.WithField("interocular", capture.Frame().Interocular()).Info("capture committed")
	return capture, nil
}

// SelectCategory switches the active category and rebuilds the influence
// map when the category uses a different base model.
func (e *Editor) SelectCategory(id string) error {
	if err := e.registry.SelectCategory(id); err != nil {
		return err
	}
	e.syncModel()
	return nil
}

// SetValue stores a parameter value; the change is visible at the next tick.
func (e *Editor) SetValue(id string, v float64) (float64, error) {
	return e.registry.SetValue(id, v)
}

// Snapshot returns the active category and its values.
func (e *Editor) Snapshot() params.Snapshot {
	return e.registry.Snapshot()
}

// LoadSnapshot replaces all current values atomically.
func (e *Editor) LoadSnapshot(s params.Snapshot) error {
	if err := e.registry.LoadSnapshot(s); err != nil {
		return err
	}
	e.syncModel()
	return nil
}

// LoadSession loads a saved session for further editing. When the saved
// values no longer fit the catalog, the session's category (or the active
// one, if the category is gone) is reset to its defaults and the returned
// notice explains why.
func (e *Editor) LoadSession(s *session.Session) (string, error) {
	var notice string
	if err := e.registry.LoadSnapshot(s.Snapshot()); err != nil {
		target := s.Category
		if _, ok := e.registry.Catalog().Category(target); !ok {
			target = e.registry.Active().ID
		}
		if err := e.registry.SelectDefaults(target); err != nil {
			return "", err
		}
		notice = fmt.Sprintf("saved values do not match category %q (%v); defaults loaded instead", target, err)
		e.log.WithField("session", s.ID).WithError(err).Warn("session values rejected, falling back to defaults")
	}

	e.mu.Lock()
	e.parentID = s.ID
	e.mu.Unlock()
	e.syncModel()
	return notice, nil
}

// Draft returns a session carrying the current values, ready to be saved.
// A draft of a loaded session points back to it through ParentID.
func (e *Editor) Draft() session.Session {
	snap := e.registry.Snapshot()
	e.mu.Lock()
	parent := e.parentID
	e.mu.Unlock()
	return session.Session{
		Category:   snap.Category,
		Values:     snap.Values,
		Selections: e.registry.Selections(),
		ParentID:   parent,
	}
}

// syncModel rebuilds when the active category moved to another base model.
func (e *Editor) syncModel() {
	model := e.registry.Active().Model
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed && model != e.model {
		e.startBuildLocked(model)
	}
}

// startBuildLocked supersedes any running build. Waiters on the previous
// ready channel are released and re-check state.
func (e *Editor) startBuildLocked(model string) {
	if e.cancel != nil {
		e.cancel()
	}
	if e.pending {
		close(e.ready)
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.generation++
	e.model = model
	e.cancel = cancel
	e.ready = make(chan struct{})
	e.pending = true
	e.result = nil
	e.buildErr = nil

	go e.build(ctx, e.generation, model, e.capture, e.buildHook)
}

func (e *Editor) build(ctx context.Context, gen uint64, model string, capture *landmark.Capture, hook func(string)) {
	if hook != nil {
		hook(model)
	}
	start := time.Now()
	base, m, err := e.renderer.Prepare(ctx, model, capture)

	var res *deform.Result
	var state params.State
	if err == nil {
		state = e.registry.State()
		if state.Model != model {
			// The category moved to another model while fitting.
			err = ErrNotReady
		} else {
			res, err = e.renderer.Solver().Apply(base, m, state.Values)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.generation || e.closed {
		return
	}
	if errors.Is(err, ErrNotReady) {
		e.startBuildLocked(e.registry.Active().Model)
		return
	}

	e.pending = false
	close(e.ready)
	if err != nil {
		e.buildErr = fmt.Errorf("build %s mesh: %w", model, err)
		e.log.WithError(err).WithField("model", model).Error("influence build failed")
		return
	}

	e.result = res
	e.solved = state.Version
	snap := res.Snapshot()
	e.last = &snap
	e.log.WithFields(logrus.Fields{
		"model":    model,
		"vertices": base.VertexCount(),
		"entries":  m.EntryCount(),
		"took":     time.Since(start).Round(time.Microsecond),
	}).Debug("influence map ready")
}

// Ready reports whether Tick can produce an up-to-date mesh.
func (e *Editor) Ready() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.result != nil
}

// WaitReady blocks until the current build finishes. It returns the build
// error if the build failed.
func (e *Editor) WaitReady(ctx context.Context) error {
	for {
		e.mu.Lock()
		switch {
		case e.closed:
			e.mu.Unlock()
			return ErrClosed
		case e.result != nil:
			e.mu.Unlock()
			return nil
		case e.buildErr != nil:
			err := e.buildErr
			e.mu.Unlock()
			return err
		}
		ready := e.ready
		e.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ready:
		}
	}
}

// Tick brings the mesh in line with the current parameter values. While a
// build is running it returns ErrNotReady with the last valid snapshot, which
// is nil before the first successful build. The returned snapshot is shared
// and must not be modified.
func (e *Editor) Tick() (*mesh.Snapshot, error) {
	state := e.registry.State()

	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case e.closed:
		return e.last, ErrClosed
	case e.buildErr != nil:
		return e.last, e.buildErr
	case e.result == nil, state.Model != e.model:
		return e.last, ErrNotReady
	case state.Version == e.solved:
		return e.last, nil
	}

	start := time.Now()
	touched, err := e.renderer.Solver().Update(e.result, state.Values)
	if err != nil {
		return e.last, err
	}
	e.metrics.Updated(time.Since(start), touched)
	e.solved = state.Version
	snap := e.result.Snapshot()
	e.last = &snap
	return e.last, nil
}

// Run ticks at the configured interval and presents every new snapshot to
// target until ctx is done or the editor is closed.
func (e *Editor) Run(ctx context.Context, target RenderTarget) error {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	var presented *mesh.Snapshot
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			snap, err := e.Tick()
			if errors.Is(err, ErrClosed) {
				return err
			}
			if snap != nil && snap != presented {
				target.Present(*snap)
				presented = snap
			}
		}
	}
}

// Compare solves both snapshots on the editor's current base mesh and
// reports per-vertex differences.
func (e *Editor) Compare(ctx context.Context, a, b params.Snapshot) (deform.Comparison, error) {
	capture := e.Capture()
	ra, err := e.renderer.Render(ctx, capture, a)
	if err != nil {
		return deform.Comparison{}, err
	}
	rb, err := e.renderer.Render(ctx, capture, b)
	if err != nil {
		return deform.Comparison{}, err
	}
	return deform.Compare(ra.Snapshot(), rb.Snapshot())
}

// Close stops any running build. Further ticks return ErrClosed.
func (e *Editor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	if e.cancel != nil {
		e.cancel()
	}
	if e.pending {
		e.pending = false
		close(e.ready)
	}
	e.metrics.EditorClosed()
}
