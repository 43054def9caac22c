// Package category resolves human-entered profession labels to catalog categories.
package category

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/wolfman30/missedcall-flow/internal/catalog"
)

var (
	// ErrUnknownCategory is returned in strict mode when a label has no mapping.
	ErrUnknownCategory = errors.New("category: unknown category")

	// ErrInvalidTable is returned when the label table or policy cannot be built.
	ErrInvalidTable = errors.New("category: invalid label table")
)

// Policy controls what happens to labels with no mapping. It is fixed per Resolver.
type Policy struct {
	// Strict rejects unknown labels. When false, Fallback is returned instead.
	Strict   bool
	Fallback catalog.CategoryKey
}

// StrictPolicy is the recommended production policy.
func StrictPolicy() Policy {
	return Policy{Strict: true}
}

// Resolver maps labels to categories. The table is built once and never
// mutated, so a Resolver is safe to share between goroutines.
type Resolver struct {
	table  map[string]catalog.CategoryKey
	policy Policy
}

// New builds a resolver from raw label -> category pairs. Labels are normalized
// at build time; two labels that normalize to the same string must agree.
func New(labels map[string]catalog.CategoryKey, policy Policy) (*Resolver, error) {
	if !policy.Strict && strings.TrimSpace(string(policy.Fallback)) == "" {
		return nil, fmt.Errorf("%w: lenient policy requires a fallback category", ErrInvalidTable)
	}
	table := make(map[string]catalog.CategoryKey, len(labels))
	for raw, key := range labels {
		norm := Normalize(raw)
		if norm == "" {
			return nil, fmt.Errorf("%w: empty label for %s", ErrInvalidTable, key)
		}
		if existing, ok := table[norm]; ok && existing != key {
			return nil, fmt.Errorf("%w: %q maps to both %s and %s", ErrInvalidTable, raw, existing, key)
		}
		table[norm] = key
	}
	return &Resolver{table: table, policy: policy}, nil
}

// NewFromCatalog builds a resolver over the catalog's profession labels plus
// every registered category key, so callers may send either form.
func NewFromCatalog(reg *catalog.Registry, policy Policy) (*Resolver, error) {
	if reg == nil {
		return nil, fmt.Errorf("%w: registry required", ErrInvalidTable)
	}
	labels := catalog.ProfessionLabels()
	for _, key := range reg.Categories() {
		labels[string(key)] = key
	}
	for label, key := range labels {
		if !reg.Has(key) {
			return nil, fmt.Errorf("%w: label %q maps to unregistered category %s", ErrInvalidTable, label, key)
		}
	}
	if !policy.Strict && !reg.Has(policy.Fallback) {
		return nil, fmt.Errorf("%w: fallback %s is not registered", ErrInvalidTable, policy.Fallback)
	}
	return New(labels, policy)
}

// Resolve returns the category for label.
func (r *Resolver) Resolve(label string) (catalog.CategoryKey, error) {
	if key, ok := r.table[Normalize(label)]; ok {
		return key, nil
	}
	if r.policy.Strict {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, label)
	}
	return r.policy.Fallback, nil
}

// Strict reports the resolver's policy.
func (r *Resolver) Strict() bool {
	return r.policy.Strict
}

// đ and Đ have no canonical decomposition, so NFD alone keeps them.
var strokeReplacer = strings.NewReplacer("đ", "d", "Đ", "D")

// Normalize trims, case-folds, strips diacritics and collapses whitespace.
func Normalize(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return ""
	}
	stripped, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		strokeReplacer.Replace(label),
	)
	if err != nil {
		stripped = label
	}
	folded := cases.Fold().String(stripped)
	return strings.Join(strings.Fields(folded), " ")
}
