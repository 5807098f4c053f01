// Package fields implements field-level permissions. Each scope of a model
// may grant a set of readable and writable fields; the grants of every
// scope the principal holds are unioned. Reads are filtered down to the
// readable set, writes touching fields outside the writable set are
// rejected.
package fields

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/scopegate/scopegate/internal/scopes"
)

// Grant lists the fields a scope makes readable and writable.
type Grant struct {
	Readable []string
	Writable []string
}

// Permissions holds the per-scope field grants of one model. The "all"
// scope always grants every field.
type Permissions struct {
	model  string
	fields []string
	grants map[scopes.ScopeSlug]Grant
}

// New creates field permissions for a model. fields is the full field set,
// granted in its entirety to the "all" scope.
func New(model string, fields []string, grants map[scopes.ScopeSlug]Grant) *Permissions {
	if grants == nil {
		grants = map[scopes.ScopeSlug]Grant{}
	}

	return &Permissions{model: model, fields: fields, grants: grants}
}

// Fields returns the model's full field set.
func (p *Permissions) Fields() []string {
	return p.fields
}

// Readable returns the union of the readable fields granted by the given
// scopes, sorted.
func (p *Permissions) Readable(granted []scopes.ScopeSlug) []string {
	return p.union(granted, func(g Grant) []string { return g.Readable })
}

// Writable returns the union of the writable fields granted by the given
// scopes, sorted.
func (p *Permissions) Writable(granted []scopes.ScopeSlug) []string {
	return p.union(granted, func(g Grant) []string { return g.Writable })
}

func (p *Permissions) union(granted []scopes.ScopeSlug, pick func(Grant) []string) []string {
	var result []string

	for _, slug := range granted {
		if slug == scopes.ScopeAll {
			return sorted(p.fields)
		}

		if grant, ok := p.grants[slug]; ok {
			result = append(result, pick(grant)...)
		}
	}

	return sorted(lo.Uniq(result))
}

// FilterRead returns a copy of the object stripped to the fields the given
// scopes make readable.
func (p *Permissions) FilterRead(granted []scopes.ScopeSlug, object map[string]any) map[string]any {
	readable := p.Readable(granted)

	filtered := make(map[string]any, len(readable))

	for _, field := range readable {
		if value, ok := object[field]; ok {
			filtered[field] = value
		}
	}

	return filtered
}

// CheckWrite returns a WriteError naming the offending fields if values
// touch fields the given scopes do not make writable.
func (p *Permissions) CheckWrite(granted []scopes.ScopeSlug, values map[string]any) error {
	writable := p.Writable(granted)

	allowed := make(map[string]bool, len(writable))
	for _, field := range writable {
		allowed[field] = true
	}

	var denied []string

	for field := range values {
		if !allowed[field] {
			denied = append(denied, field)
		}
	}

	if len(denied) > 0 {
		sort.Strings(denied)

		return &WriteError{Model: p.model, Fields: denied}
	}

	return nil
}

// WriteError reports a write touching non-writable fields.
type WriteError struct {
	Model  string
	Fields []string
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("fields not writable on model %s: %s", e.Model, strings.Join(e.Fields, ", "))
}

func sorted(values []string) []string {
	result := make([]string, len(values))
	copy(result, values)
	sort.Strings(result)

	return result
}
