// Package scopes manages the set of OAuth scopes an authorization server
// understands. A Registry maps scope names to human-readable descriptions,
// tracks which scopes are granted by default, and validates requested
// scope lists against the known set.
//
// The package-level helpers (Parse, Join, Subset, Intersect) operate on
// plain scope slices and are independent of any registry.
package scopes

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scope describes a single OAuth scope.
type Scope struct {
	// Name is the scope value as it appears on the wire (RFC 6749 Section 3.3)
	Name string `yaml:"name"`

	// Description is the human-readable explanation shown on consent pages
	Description string `yaml:"description"`

	// Default marks scopes granted when a request carries no scope parameter
	Default bool `yaml:"default"`
}

// Registry holds the scopes an authorization server supports.
// A nil or empty registry accepts any syntactically valid scope.
type Registry struct {
	scopes map[string]Scope
	order  []string
}

// NewRegistry creates a registry from the given scope definitions.
// Duplicate names are rejected.
func NewRegistry(defs ...Scope) (*Registry, error) {
	r := &Registry{scopes: make(map[string]Scope, len(defs))}
	for _, def := range defs {
		if err := validateScopeName(def.Name); err != nil {
			return nil, err
		}
		if _, exists := r.scopes[def.Name]; exists {
			return nil, fmt.Errorf("duplicate scope %q", def.Name)
		}
		r.scopes[def.Name] = def
		r.order = append(r.order, def.Name)
	}
	return r, nil
}

// LoadFile reads scope definitions from a YAML file and returns a registry.
//
// The file format is a list of scope entries:
//
//   - name: read
//     description: Read access to resources
//     default: true
//   - name: write
//     description: Write access to resources
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scope file: %w", err)
	}

	var defs []Scope
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("failed to parse scope file %s: %w", path, err)
	}

	return NewRegistry(defs...)
}

// Has reports whether the named scope is registered.
func (r *Registry) Has(name string) bool {
	if r == nil {
		return false
	}
	_, ok := r.scopes[name]
	return ok
}

// Describe returns the description for the named scope, or the empty
// string when the scope is not registered.
func (r *Registry) Describe(name string) string {
	if r == nil {
		return ""
	}
	return r.scopes[name].Description
}

// Descriptions maps each requested scope to its description, for
// rendering a consent page. Unregistered scopes map to the empty
// string.
func (r *Registry) Descriptions(requested []string) map[string]string {
	result := make(map[string]string, len(requested))
	for _, name := range requested {
		result[name] = r.Describe(name)
	}
	return result
}

// Names returns all registered scope names in registration order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Defaults returns the scopes marked as default, in registration order.
// These are granted when an authorization request omits the scope parameter.
func (r *Registry) Defaults() []string {
	if r == nil {
		return nil
	}
	var defaults []string
	for _, name := range r.order {
		if r.scopes[name].Default {
			defaults = append(defaults, name)
		}
	}
	return defaults
}

// Validate checks that every requested scope is registered. An empty
// registry accepts all scopes. The returned error names the first
// unknown scope.
func (r *Registry) Validate(requested []string) error {
	if r == nil || len(r.scopes) == 0 {
		return nil
	}
	for _, name := range requested {
		if !r.Has(name) {
			return fmt.Errorf("unknown scope: %s", name)
		}
	}
	return nil
}

// Parse splits a space-delimited scope string into individual scopes.
// Repeated and surrounding whitespace is tolerated. Duplicates are
// removed, first occurrence wins.
func Parse(scope string) []string {
	fields := strings.Fields(scope)
	if len(fields) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(fields))
	result := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		result = append(result, f)
	}
	return result
}

// Join renders a scope slice as a space-delimited string suitable for
// the scope parameter of a token response.
func Join(scopes []string) string {
	return strings.Join(scopes, " ")
}

// Subset reports whether every scope in sub is also present in super.
// An empty sub is a subset of anything.
func Subset(sub, super []string) bool {
	if len(sub) == 0 {
		return true
	}
	set := make(map[string]struct{}, len(super))
	for _, s := range super {
		set[s] = struct{}{}
	}
	for _, s := range sub {
		if _, ok := set[s]; !ok {
			return false
		}
	}
	return true
}

// Intersect returns the scopes present in both a and b, in sorted order.
func Intersect(a, b []string) []string {
	set := make(map[string]struct{}, len(b))
	for _, s := range b {
		set[s] = struct{}{}
	}
	var result []string
	for _, s := range a {
		if _, ok := set[s]; ok {
			result = append(result, s)
		}
	}
	sort.Strings(result)
	return result
}

// validateScopeName enforces the scope-token syntax from RFC 6749
// Section 3.3: printable ASCII excluding space, double quote, and
// backslash.
func validateScopeName(name string) error {
	if name == "" {
		return fmt.Errorf("scope name cannot be empty")
	}
	for i, c := range name {
		if c < 0x21 || c > 0x7E || c == '"' || c == '\\' {
			return fmt.Errorf("scope %q contains invalid character at position %d", name, i)
		}
	}
	return nil
}
