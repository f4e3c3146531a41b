package diff

import (
	"reflect"
)

// Direction classifies a field transition.
type Direction int

// Transition directions.
const (
	Unchanged Direction = iota
	Increase
	Decrease
)

// String implements fmt.Stringer.
func (d Direction) String() string {
	switch d {
	case Increase:
		return "increase"
	case Decrease:
		return "decrease"
	case Unchanged:
		return "unchanged"
	default:
		return "unknown"
	}
}

// Transition is a detected change between two snapshots for one field.
type Transition struct {
	Field     string
	Previous  any
	Next      any
	Direction Direction
}

// Changed reports whether the transition represents an actual change.
func (t Transition) Changed() bool {
	return t.Direction != Unchanged
}

// Diff computes the field-level transitions between two snapshots. It is a
// pure function: no I/O, inputs are never mutated, and calling it on every
// poll tick is safe even when nothing changed.
//
// Output order is the union of field names in first-seen order of next,
// followed by fields present only in previous, in their first-seen order.
// A field present in only one snapshot transitions from or to zero rather
// than being dropped; absent-versus-zero compares as Unchanged so a field
// appearing with a zero count on its first tick fires nothing.
func Diff(previous, next *Snapshot) []Transition {
	if previous == nil {
		previous = NewSnapshot()
	}
	if next == nil {
		next = NewSnapshot()
	}

	transitions := make([]Transition, 0, next.Len()+previous.Len())
	for _, name := range next.Fields() {
		prevValue, _ := previous.Get(name)
		nextValue, _ := next.Get(name)
		transitions = append(transitions, classify(name, prevValue, nextValue))
	}
	for _, name := range previous.Fields() {
		if _, ok := next.Get(name); ok {
			continue
		}
		prevValue, _ := previous.Get(name)
		transitions = append(transitions, classify(name, prevValue, nil))
	}
	return transitions
}

// classify determines the direction for one field. When both sides coerce to
// numbers the comparison is numeric (absent and null coerce to zero); when
// either side does not coerce, identical values are Unchanged and any other
// change reports Increase, there being no numeric ordering to consult.
func classify(name string, prevValue, nextValue any) Transition {
	t := Transition{Field: name, Previous: prevValue, Next: nextValue}

	prevNum, prevOK := coerce(prevValue)
	nextNum, nextOK := coerce(nextValue)
	if prevOK && nextOK {
		switch {
		case nextNum > prevNum:
			t.Direction = Increase
		case nextNum < prevNum:
			t.Direction = Decrease
		default:
			t.Direction = Unchanged
		}
		return t
	}

	if reflect.DeepEqual(prevValue, nextValue) {
		t.Direction = Unchanged
	} else {
		t.Direction = Increase
	}
	return t
}
