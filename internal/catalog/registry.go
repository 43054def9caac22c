package catalog

import (
	"fmt"
	"sort"
	"strings"
)

// Registry is a read-only (category, stage) -> template table. It is safe for
// concurrent use because nothing mutates it after NewRegistry returns.
type Registry struct {
	entries map[CategoryKey][]StageTemplate
}

// NewRegistry validates and copies the given entries. Every category must have
// two or three stages, starting with intro and ending with confirmation.
func NewRegistry(entries map[CategoryKey][]StageTemplate) (*Registry, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no categories", ErrInvalidCatalog)
	}
	copied := make(map[CategoryKey][]StageTemplate, len(entries))
	for key, stages := range entries {
		if strings.TrimSpace(string(key)) == "" {
			return nil, fmt.Errorf("%w: empty category key", ErrInvalidCatalog)
		}
		if err := validateStages(key, stages); err != nil {
			return nil, err
		}
		out := make([]StageTemplate, len(stages))
		for i, st := range stages {
			out[i] = StageTemplate{Stage: st.Stage, Template: cloneTemplate(st.Template)}
		}
		copied[key] = out
	}
	return &Registry{entries: copied}, nil
}

// MustNewRegistry is NewRegistry for static tables built at process start.
func MustNewRegistry(entries map[CategoryKey][]StageTemplate) *Registry {
	reg, err := NewRegistry(entries)
	if err != nil {
		panic(err)
	}
	return reg
}

func validateStages(key CategoryKey, stages []StageTemplate) error {
	if len(stages) < 2 || len(stages) > 3 {
		return fmt.Errorf("%w: %s has %d stages, want 2 or 3", ErrInvalidCatalog, key, len(stages))
	}
	if stages[0].Stage != StageIntro {
		return fmt.Errorf("%w: %s must start with %s", ErrInvalidCatalog, key, StageIntro)
	}
	if stages[len(stages)-1].Stage != StageConfirmation {
		return fmt.Errorf("%w: %s must end with %s", ErrInvalidCatalog, key, StageConfirmation)
	}
	prev := 0
	for _, st := range stages {
		if st.Stage.Rank() <= prev {
			return fmt.Errorf("%w: %s stages out of order at %q", ErrInvalidCatalog, key, st.Stage)
		}
		prev = st.Stage.Rank()
		if strings.TrimSpace(st.Template.Name) == "" {
			return fmt.Errorf("%w: %s/%s has empty template name", ErrInvalidCatalog, key, st.Stage)
		}
	}
	return nil
}

// Lookup returns the template for the pair. It never falls back to another
// stage or category.
func (r *Registry) Lookup(category CategoryKey, stage Stage) (Template, error) {
	for _, st := range r.entries[category] {
		if st.Stage == stage {
			return cloneTemplate(st.Template), nil
		}
	}
	return Template{}, fmt.Errorf("%w: category=%s stage=%s", ErrMissingTemplate, category, stage)
}

// Stages lists the stages registered for category in flow order.
func (r *Registry) Stages(category CategoryKey) ([]Stage, error) {
	entries, ok := r.entries[category]
	if !ok {
		return nil, fmt.Errorf("%w: unknown category %s", ErrMissingTemplate, category)
	}
	out := make([]Stage, len(entries))
	for i, st := range entries {
		out[i] = st.Stage
	}
	return out, nil
}

// Next returns the stage following current and whether it is the final one.
func (r *Registry) Next(category CategoryKey, current Stage) (Stage, bool, error) {
	stages, err := r.Stages(category)
	if err != nil {
		return "", false, err
	}
	for i, st := range stages {
		if st != current {
			continue
		}
		if i == len(stages)-1 {
			return "", false, fmt.Errorf("%w: category=%s stage=%s", ErrNoNextStage, category, current)
		}
		return stages[i+1], i+1 == len(stages)-1, nil
	}
	return "", false, fmt.Errorf("%w: category=%s stage=%s", ErrMissingTemplate, category, current)
}

// Has reports whether category is registered.
func (r *Registry) Has(category CategoryKey) bool {
	_, ok := r.entries[category]
	return ok
}

// Categories returns every registered key, sorted.
func (r *Registry) Categories() []CategoryKey {
	keys := make([]CategoryKey, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func cloneTemplate(t Template) Template {
	return Template{
		Name:           t.Name,
		Buttons:        append([]string(nil), t.Buttons...),
		RequiredFields: append([]string(nil), t.RequiredFields...),
		Placeholders:   append([]string(nil), t.Placeholders...),
	}
}
