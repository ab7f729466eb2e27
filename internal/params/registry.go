package params

import (
	"fmt"
	"sync"
)

// Registry is the single writer of current parameter values for one editor.
// It is safe for concurrent use; readers get consistent copies.
type Registry struct {
	mu      sync.RWMutex
	catalog *Catalog

	active  Category
	values  Values
	version uint64

	// stash holds values of categories edited earlier in this session.
	stash map[string]Values
	// selections maps feature -> most recently active category of that feature.
	selections map[string]string
}

// State is a consistent read of the registry.
type State struct {
	Category string
	Model    string
	Values   Values
	Version  uint64
}

// NewRegistry creates a registry with category active at its defaults.
func NewRegistry(catalog *Catalog, category string) (*Registry, error) {
	defaults, err := catalog.Defaults(category)
	if err != nil {
		return nil, err
	}
	cat, _ := catalog.Category(category)
	return &Registry{
		catalog:    catalog,
		active:     cat,
		values:     defaults.Values,
		stash:      make(map[string]Values),
		selections: map[string]string{cat.Feature: cat.ID},
		version:    1,
	}, nil
}

// Catalog returns the shared catalog.
func (r *Registry) Catalog() *Catalog { return r.catalog }

// Categories lists every selectable category.
func (r *Registry) Categories() []Category {
	return r.catalog.Categories()
}

// Active returns the active category.
func (r *Registry) Active() Category {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// SelectCategory makes id the active category. Values previously edited for
// id in this session are restored; otherwise the category starts at its
// defaults. Parameters of the previously active category become unknown.
func (r *Registry) SelectCategory(id string) error {
	cat, ok := r.catalog.Category(id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if cat.ID == r.active.ID {
		return nil
	}
	next, ok := r.stash[cat.ID]
	if !ok {
		defaults, err := r.catalog.Defaults(cat.ID)
		if err != nil {
			return err
		}
		next = defaults.Values
	}
	r.switchTo(cat, next)
	return nil
}

// SelectDefaults makes id the active category at its defaults in a single
// step, discarding any values stashed for it. Readers never observe the
// stashed values in between.
func (r *Registry) SelectDefaults(id string) error {
	defaults, err := r.catalog.Defaults(id)
	if err != nil {
		return err
	}
	cat, _ := r.catalog.Category(id)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.switchTo(cat, defaults.Values)
	return nil
}

// switchTo activates cat with values. Callers hold r.mu.
func (r *Registry) switchTo(cat Category, values Values) {
	if cat.ID != r.active.ID {
		r.stash[r.active.ID] = r.values
	}
	delete(r.stash, cat.ID)
	r.active = cat
	r.values = values
	r.selections[cat.Feature] = cat.ID
	r.version++
}

// SetValue stores v for parameter id of the active category after clamping
// to its bounds and rounding to its step grid, and returns the stored value.
func (r *Registry) SetValue(id string, v float64) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.values[id]; !ok {
		return 0, fmt.Errorf("%w: %q is not in category %q", ErrUnknownParameter, id, r.active.ID)
	}
	def, _ := r.catalog.Definition(id)
	q, err := def.Quantize(v)
	if err != nil {
		return 0, fmt.Errorf("parameter %q: %w", id, err)
	}
	if r.values[id] != q {
		r.values[id] = q
		r.version++
	}
	return q, nil
}

// Value returns the current value of a parameter of the active category.
func (r *Registry) Value(id string) (float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.values[id]
	if !ok {
		return 0, fmt.Errorf("%w: %q is not in category %q", ErrUnknownParameter, id, r.active.ID)
	}
	return v, nil
}

// Snapshot returns the full value set of the active category.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Snapshot{Category: r.active.ID, Values: r.values.Clone()}
}

// State returns the active category, its values and the version in one read.
func (r *Registry) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return State{Category: r.active.ID, Model: r.active.Model, Values: r.values.Clone(), Version: r.version}
}

// LoadSnapshot replaces the active category and all of its values at once.
// The registry is untouched when the snapshot is rejected.
func (r *Registry) LoadSnapshot(s Snapshot) error {
	normalized, err := r.catalog.Normalize(s)
	if err != nil {
		return err
	}
	cat, _ := r.catalog.Category(normalized.Category)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.switchTo(cat, normalized.Values)
	return nil
}

// Reset returns the active category to its defaults.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	defaults, _ := r.catalog.Defaults(r.active.ID)
	r.values = defaults.Values
	r.version++
}

// ResetSession forgets values stashed for other categories, so the next
// switch to them starts from defaults.
func (r *Registry) ResetSession() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stash = make(map[string]Values)
	r.selections = map[string]string{r.active.Feature: r.active.ID}
	r.version++
}

// Version increments on every mutation.
func (r *Registry) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

// Selections maps each feature touched in this session to its chosen variant.
func (r *Registry) Selections() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.selections))
	for f, c := range r.selections {
		out[f] = c
	}
	return out
}
