package types

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ResourceKey identifies a cacheable query: one collection plus the
// filter/sort/page parameters that select a slice of it. Keys are immutable
// after construction; the canonical form is the cache index.
type ResourceKey struct {
	collection string
	names      []string
	params     map[string]Param
	canonical  string
}

// Param is a primitive query parameter value.
type Param struct {
	value string
}

// StringParam wraps a string parameter value.
func StringParam(v string) Param {
	return Param{value: v}
}

// IntParam wraps an integer parameter value.
func IntParam(v int) Param {
	return Param{value: fmt.Sprintf("%d", v)}
}

// FloatParam wraps a float parameter value. The shortest round-trippable
// representation is used, so very small or very large values keep distinct
// canonical forms.
func FloatParam(v float64) Param {
	return Param{value: strconv.FormatFloat(v, 'g', -1, 64)}
}

// BoolParam wraps a boolean parameter value.
func BoolParam(v bool) Param {
	if v {
		return Param{value: "true"}
	}
	return Param{value: "false"}
}

// Value returns the parameter's string form.
func (p Param) Value() string {
	return p.value
}

// NewResourceKey creates a key for a collection with the given parameters.
// Parameter order does not matter: names are sorted during canonicalization,
// so two keys built from the same pairs in any order compare equal.
func NewResourceKey(collection string, params map[string]Param) ResourceKey {
	names := make([]string, 0, len(params))
	copied := make(map[string]Param, len(params))
	for name, value := range params {
		names = append(names, name)
		copied[name] = value
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(collection)
	for _, name := range names {
		b.WriteByte('?')
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(copied[name].value)
	}

	return ResourceKey{
		collection: collection,
		names:      names,
		params:     copied,
		canonical:  b.String(),
	}
}

// CollectionKey creates a key with no parameters.
func CollectionKey(collection string) ResourceKey {
	return NewResourceKey(collection, nil)
}

// Collection returns the collection name.
func (k ResourceKey) Collection() string {
	return k.collection
}

// Param returns the named parameter value.
func (k ResourceKey) Param(name string) (Param, bool) {
	p, ok := k.params[name]
	return p, ok
}

// ParamNames returns the sorted parameter names.
func (k ResourceKey) ParamNames() []string {
	out := make([]string, len(k.names))
	copy(out, k.names)
	return out
}

// WithParam returns a new key with one parameter added or replaced.
// The receiver is not modified.
func (k ResourceKey) WithParam(name string, value Param) ResourceKey {
	params := make(map[string]Param, len(k.params)+1)
	for n, v := range k.params {
		params[n] = v
	}
	params[name] = value
	return NewResourceKey(k.collection, params)
}

// Canonical returns the canonical string form used as the cache index.
func (k ResourceKey) Canonical() string {
	return k.canonical
}

// Equal reports whether two keys address the same query.
func (k ResourceKey) Equal(other ResourceKey) bool {
	return k.canonical == other.canonical
}

// String implements fmt.Stringer.
func (k ResourceKey) String() string {
	return k.canonical
}
