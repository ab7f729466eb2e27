package params

import (
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/kozaktomas/face-sculptor/internal/config"
)

// Catalog is the immutable set of categories an editor can switch between.
// It is shared by every registry.
type Catalog struct {
	categories []Category
	byCategory map[string]int
	byParam    map[string]Definition
}

// NewCatalog validates presets and builds a catalog. Category and parameter
// ids are normalized with NormalizeID and must be unique across the catalog.
func NewCatalog(presets config.PresetsConfig) (*Catalog, error) {
	if err := validator.New().Struct(presets); err != nil {
		return nil, fmt.Errorf("invalid presets: %w", err)
	}

	c := &Catalog{
		byCategory: make(map[string]int),
		byParam:    make(map[string]Definition),
	}
	for _, cp := range presets.Categories {
		cat := Category{
			ID:      NormalizeID(cp.ID),
			Feature: NormalizeID(cp.Feature),
			Name:    cp.Name,
			Model:   cp.Model,
		}
		if _, dup := c.byCategory[cat.ID]; dup {
			return nil, fmt.Errorf("duplicate category %q", cat.ID)
		}
		for _, pp := range cp.Parameters {
			def := Definition{
				ID:        NormalizeID(pp.ID),
				Category:  cat.ID,
				Name:      pp.Name,
				Min:       pp.Min,
				Max:       pp.Max,
				Step:      pp.Step,
				Default:   pp.Default,
				Anchors:   append([]string(nil), pp.Anchors...),
				Radius:    pp.Radius,
				Direction: Direction(pp.Direction),
				Gain:      pp.Gain,
				Falloff:   pp.Falloff,
			}
			if def.Default < def.Min || def.Default > def.Max {
				return nil, fmt.Errorf("parameter %q: default %v outside [%v, %v]", def.ID, def.Default, def.Min, def.Max)
			}
			if _, dup := c.byParam[def.ID]; dup {
				return nil, fmt.Errorf("duplicate parameter %q", def.ID)
			}
			c.byParam[def.ID] = def
			cat.Parameters = append(cat.Parameters, def)
		}
		// Fixed parameter order keeps solver summation reproducible.
		sort.Slice(cat.Parameters, func(i, j int) bool { return cat.Parameters[i].ID < cat.Parameters[j].ID })
		c.byCategory[cat.ID] = len(c.categories)
		c.categories = append(c.categories, cat)
	}
	return c, nil
}

// Categories lists categories in declaration order.
func (c *Catalog) Categories() []Category {
	return append([]Category(nil), c.categories...)
}

// Category returns the category with the given id.
func (c *Catalog) Category(id string) (Category, bool) {
	i, ok := c.byCategory[id]
	if !ok {
		return Category{}, false
	}
	return c.categories[i], true
}

// Definition returns the definition of a parameter in any category.
func (c *Catalog) Definition(id string) (Definition, bool) {
	d, ok := c.byParam[id]
	return d, ok
}

// ModelDefinitions returns the parameters of every category that deforms
// model. An influence map built over them serves any category switch that
// keeps the same base model.
func (c *Catalog) ModelDefinitions(model string) []Definition {
	var out []Definition
	for _, cat := range c.categories {
		if cat.Model == model {
			out = append(out, cat.Parameters...)
		}
	}
	return out
}

// Defaults returns the default value set of a category.
func (c *Catalog) Defaults(categoryID string) (Snapshot, error) {
	cat, ok := c.Category(categoryID)
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %q", ErrUnknownCategory, categoryID)
	}
	values := make(Values, len(cat.Parameters))
	for _, d := range cat.Parameters {
		values[d.ID] = d.Default
	}
	return Snapshot{Category: cat.ID, Values: values}, nil
}

// Normalize checks that s names a known category and carries exactly its
// parameters, and returns a copy with every value quantized.
func (c *Catalog) Normalize(s Snapshot) (Snapshot, error) {
	cat, ok := c.Category(s.Category)
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %q", ErrUnknownCategory, s.Category)
	}
	if err := checkIDs(cat, s.Values); err != nil {
		return Snapshot{}, err
	}

	out := Snapshot{Category: cat.ID, Values: make(Values, len(cat.Parameters))}
	for _, d := range cat.Parameters {
		q, err := d.Quantize(s.Values[d.ID])
		if err != nil {
			return Snapshot{}, fmt.Errorf("parameter %q: %w", d.ID, err)
		}
		out.Values[d.ID] = q
	}
	return out, nil
}

// Validate is the strict form of Normalize used before persisting: every
// value must already be in range and on its step grid.
func (c *Catalog) Validate(s Snapshot) error {
	cat, ok := c.Category(s.Category)
	if !ok {
		return fmt.Errorf("%w: %w: %q", ErrValidation, ErrUnknownCategory, s.Category)
	}
	if err := checkIDs(cat, s.Values); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	for _, d := range cat.Parameters {
		if v := s.Values[d.ID]; !d.OnGrid(v) {
			return fmt.Errorf("%w: parameter %q value %v not in [%v, %v] step %v", ErrValidation, d.ID, v, d.Min, d.Max, d.Step)
		}
	}
	return nil
}

func checkIDs(cat Category, values Values) error {
	known := make(map[string]struct{}, len(cat.Parameters))
	for _, d := range cat.Parameters {
		known[d.ID] = struct{}{}
		if _, ok := values[d.ID]; !ok {
			return fmt.Errorf("%w: category %q missing %q", ErrIncompleteSnapshot, cat.ID, d.ID)
		}
	}
	for id := range values {
		if _, ok := known[id]; !ok {
			return fmt.Errorf("%w: %q is not in category %q", ErrUnknownParameter, id, cat.ID)
		}
	}
	return nil
}
