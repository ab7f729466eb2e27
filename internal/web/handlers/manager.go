package handlers

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kozaktomas/face-sculptor/internal/config"
	"github.com/kozaktomas/face-sculptor/internal/constants"
	"github.com/kozaktomas/face-sculptor/internal/editor"
	"github.com/kozaktomas/face-sculptor/internal/metrics"
	"github.com/kozaktomas/face-sculptor/internal/params"
	"github.com/sirupsen/logrus"
)

var (
	errEditorNotFound = errors.New("editor not found")
	errEditorNotOwner = errors.New("editor belongs to another owner")
)

// EditorEntry is one open editing surface with its render loop.
type EditorEntry struct {
	Editor *editor.Editor
	Owner  string
	Mesh   *MeshBroadcaster

	cancel   context.CancelFunc
	lastUsed atomic.Int64
}

func (e *EditorEntry) touch() {
	e.lastUsed.Store(time.Now().UnixNano())
}

// EditorManager owns the open editors. Each editor gets its own render loop
// goroutine publishing to its MeshBroadcaster; idle editors are closed.
type EditorManager struct {
	catalog *params.Catalog
	cfg     config.EngineConfig
	metrics *metrics.Metrics
	log     *logrus.Entry
	idle    time.Duration

	editors map[string]*EditorEntry
	mu      sync.RWMutex

	stop     chan struct{}
	stopOnce sync.Once
}

// NewEditorManager creates a manager. A positive idle duration starts a
// background sweep that closes editors unused for that long.
func NewEditorManager(catalog *params.Catalog, cfg config.EngineConfig, m *metrics.Metrics, log *logrus.Entry, idle time.Duration) *EditorManager {
	em := &EditorManager{
		catalog: catalog,
		cfg:     cfg,
		metrics: m,
		log:     log,
		idle:    idle,
		editors: make(map[string]*EditorEntry),
		stop:    make(chan struct{}),
	}
	if idle > 0 {
		go em.sweepLoop()
	}
	return em
}

// Create opens an editor for owner and starts its render loop.
func (em *EditorManager) Create(owner, category string) (*EditorEntry, error) {
	ed, err := editor.New(em.catalog, em.cfg, editor.Options{
		Category: category,
		Log:      em.log,
		Metrics:  em.metrics,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	entry := &EditorEntry{Editor: ed, Owner: owner, Mesh: &MeshBroadcaster{}, cancel: cancel}
	entry.touch()
	go ed.Run(ctx, entry.Mesh)

	em.mu.Lock()
	em.editors[ed.ID()] = entry
	em.mu.Unlock()

	em.log.WithFields(logrus.Fields{"editor": ed.ID(), "owner": sanitizeForLog(owner)}).Info("editor opened")
	return entry, nil
}

// Get returns the editor id if owner opened it.
func (em *EditorManager) Get(id, owner string) (*EditorEntry, error) {
	em.mu.RLock()
	entry, ok := em.editors[id]
	em.mu.RUnlock()
	if !ok {
		return nil, errEditorNotFound
	}
	if entry.Owner != owner {
		return nil, errEditorNotOwner
	}
	entry.touch()
	return entry, nil
}

// Delete closes the editor id if owner opened it.
func (em *EditorManager) Delete(id, owner string) error {
	em.mu.Lock()
	entry, ok := em.editors[id]
	switch {
	case !ok:
		em.mu.Unlock()
		return errEditorNotFound
	case entry.Owner != owner:
		em.mu.Unlock()
		return errEditorNotOwner
	}
	delete(em.editors, id)
	em.mu.Unlock()

	closeEntry(entry)
	return nil
}

// Count returns the number of open editors.
func (em *EditorManager) Count() int {
	em.mu.RLock()
	defer em.mu.RUnlock()
	return len(em.editors)
}

// Stop ends the sweep and closes every editor.
func (em *EditorManager) Stop() {
	em.stopOnce.Do(func() {
		close(em.stop)
		em.mu.Lock()
		entries := em.editors
		em.editors = make(map[string]*EditorEntry)
		em.mu.Unlock()
		for _, entry := range entries {
			closeEntry(entry)
		}
	})
}

func (em *EditorManager) sweepLoop() {
	ticker := time.NewTicker(constants.EditorSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-em.stop:
			return
		case now := <-ticker.C:
			em.sweep(now)
		}
	}
}

// sweep closes editors idle since before now minus the idle timeout.
func (em *EditorManager) sweep(now time.Time) int {
	cutoff := now.Add(-em.idle).UnixNano()
	var expired []*EditorEntry

	em.mu.Lock()
	for id, entry := range em.editors {
		if entry.lastUsed.Load() < cutoff {
			expired = append(expired, entry)
			delete(em.editors, id)
		}
	}
	em.mu.Unlock()

	for _, entry := range expired {
		em.log.WithField("editor", entry.Editor.ID()).Info("closing idle editor")
		closeEntry(entry)
	}
	return len(expired)
}

func closeEntry(entry *EditorEntry) {
	entry.cancel()
	entry.Editor.Close()
	entry.Mesh.CloseAll()
}
