package diff

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
)

// Snapshot is a flat, insertion-ordered mapping of named counters or scalar
// fields, e.g. counts-by-status for a bookings dashboard. Snapshots are
// immutable from the differ's point of view: Diff never mutates its inputs.
type Snapshot struct {
	names  []string
	values map[string]any
}

// NewSnapshot creates an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{values: make(map[string]any)}
}

// Set adds or replaces a field, preserving first-seen order.
func (s *Snapshot) Set(name string, value any) *Snapshot {
	if _, ok := s.values[name]; !ok {
		s.names = append(s.names, name)
	}
	s.values[name] = value
	return s
}

// Get returns the named field value.
func (s *Snapshot) Get(name string) (any, bool) {
	v, ok := s.values[name]
	return v, ok
}

// Fields returns field names in first-seen order.
func (s *Snapshot) Fields() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Len returns the number of fields.
func (s *Snapshot) Len() int {
	return len(s.names)
}

// Clone returns an independent copy.
func (s *Snapshot) Clone() *Snapshot {
	c := NewSnapshot()
	for _, name := range s.names {
		c.Set(name, s.values[name])
	}
	return c
}

// FromCounts builds a snapshot from a counter map with field names sorted,
// so the result is deterministic regardless of map iteration order.
func FromCounts(counts map[string]int) *Snapshot {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	s := NewSnapshot()
	for _, name := range names {
		s.Set(name, counts[name])
	}
	return s
}

// FromJSON parses a flat JSON object into a snapshot, preserving the key
// order of the document. Nested objects and arrays are rejected: snapshots
// are aggregates of scalars by definition.
func FromJSON(data []byte) (*Snapshot, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errors.New("parse snapshot: document is not an object")
	}

	s := NewSnapshot()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("parse snapshot: %w", err)
		}
		name := keyTok.(string)

		valTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("parse snapshot: %w", err)
		}
		switch v := valTok.(type) {
		case json.Delim:
			return nil, fmt.Errorf("parse snapshot: field %q is not a scalar", name)
		case json.Number:
			if f, err := v.Float64(); err == nil {
				s.Set(name, f)
			} else {
				s.Set(name, v.String())
			}
		default:
			// string, bool, or nil
			s.Set(name, v)
		}
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}

	return s, nil
}

// coerce attempts to read a scalar as a number. Absent fields and JSON null
// coerce to zero, which is what keeps absent-vs-zero from producing spurious
// first-tick transitions.
func coerce(v any) (float64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}
