package diff

import (
	"testing"
)

func counts(pairs ...any) *Snapshot {
	s := NewSnapshot()
	for i := 0; i < len(pairs); i += 2 {
		s.Set(pairs[i].(string), pairs[i+1])
	}
	return s
}

func TestDiffIdenticalSnapshotsAllUnchanged(t *testing.T) {
	s := counts("pending", 3, "confirmed", 5, "completed", 12, "cancelled", 1)

	transitions := Diff(s, s)
	if len(transitions) != 4 {
		t.Fatalf("Expected 4 transitions, got %d", len(transitions))
	}
	for _, tr := range transitions {
		if tr.Direction != Unchanged {
			t.Errorf("Field %s: expected unchanged, got %s", tr.Field, tr.Direction)
		}
	}
}

func TestDiffBookingCounts(t *testing.T) {
	prev := counts("pending", 2, "confirmed", 1, "completed", 0, "cancelled", 0)
	next := counts("pending", 1, "confirmed", 2, "completed", 0, "cancelled", 0)

	transitions := Diff(prev, next)
	if len(transitions) != 4 {
		t.Fatalf("Expected 4 transitions, got %d", len(transitions))
	}

	changed := 0
	for _, tr := range transitions {
		switch tr.Field {
		case "pending":
			if tr.Direction != Decrease {
				t.Errorf("pending: expected decrease, got %s", tr.Direction)
			}
			changed++
		case "confirmed":
			if tr.Direction != Increase {
				t.Errorf("confirmed: expected increase, got %s", tr.Direction)
			}
			changed++
		case "completed", "cancelled":
			if tr.Direction != Unchanged {
				t.Errorf("%s: expected unchanged, got %s", tr.Field, tr.Direction)
			}
		}
	}
	if changed != 2 {
		t.Errorf("Expected exactly two changed fields, got %d", changed)
	}
}

func TestDiffOrderIndependentComparison(t *testing.T) {
	prev1 := counts("a", 1, "b", 2)
	prev2 := counts("b", 2, "a", 1)
	next := counts("a", 2, "b", 1)

	set1 := map[string]Direction{}
	for _, tr := range Diff(prev1, next) {
		set1[tr.Field] = tr.Direction
	}
	set2 := map[string]Direction{}
	for _, tr := range Diff(prev2, next) {
		set2[tr.Field] = tr.Direction
	}

	if len(set1) != len(set2) {
		t.Fatalf("Transition sets differ in size: %d vs %d", len(set1), len(set2))
	}
	for field, dir := range set1 {
		if set2[field] != dir {
			t.Errorf("Field %s: %s vs %s", field, dir, set2[field])
		}
	}
}

func TestDiffOutputOrderDeterministic(t *testing.T) {
	prev := counts("old", 1, "shared", 2)
	next := counts("shared", 2, "new", 3)

	transitions := Diff(prev, next)
	if len(transitions) != 3 {
		t.Fatalf("Expected 3 transitions, got %d", len(transitions))
	}
	// First-seen order of next, then previous-only fields.
	if transitions[0].Field != "shared" || transitions[1].Field != "new" || transitions[2].Field != "old" {
		t.Errorf("Unexpected order: %s, %s, %s", transitions[0].Field, transitions[1].Field, transitions[2].Field)
	}
}

func TestDiffFieldOnlyInNext(t *testing.T) {
	prev := counts("pending", 1)
	next := counts("pending", 1, "noshow", 2)

	transitions := Diff(prev, next)
	for _, tr := range transitions {
		if tr.Field == "noshow" {
			if tr.Direction != Increase {
				t.Errorf("New non-zero field should be an increase from zero, got %s", tr.Direction)
			}
			return
		}
	}
	t.Fatal("Field present only in next must not be dropped")
}

func TestDiffAbsentVersusZeroIsUnchanged(t *testing.T) {
	prev := counts("pending", 1)
	next := counts("pending", 1, "noshow", 0)

	for _, tr := range Diff(prev, next) {
		if tr.Field == "noshow" && tr.Direction != Unchanged {
			t.Errorf("Absent-vs-zero must be unchanged, got %s", tr.Direction)
		}
	}
}

func TestDiffFieldOnlyInPrevious(t *testing.T) {
	prev := counts("pending", 3)
	next := NewSnapshot()

	transitions := Diff(prev, next)
	if len(transitions) != 1 {
		t.Fatalf("Expected 1 transition, got %d", len(transitions))
	}
	if transitions[0].Direction != Decrease {
		t.Errorf("Disappearing non-zero field should decrease to zero, got %s", transitions[0].Direction)
	}
}

func TestDiffNumericToNull(t *testing.T) {
	prev := counts("rating", 4.5)
	next := counts("rating", nil)

	transitions := Diff(prev, next)
	// Null coerces to zero, so a positive value going null is a decrease.
	if transitions[0].Direction != Decrease {
		t.Errorf("Numeric to null should compare numerically, got %s", transitions[0].Direction)
	}
}

func TestDiffNonNumericChange(t *testing.T) {
	prev := counts("phase", "open")
	next := counts("phase", "closed")

	transitions := Diff(prev, next)
	if transitions[0].Direction == Unchanged {
		t.Error("A changed non-numeric value must not report unchanged")
	}

	same := Diff(counts("phase", "open"), counts("phase", "open"))
	if same[0].Direction != Unchanged {
		t.Errorf("Identical non-numeric values must be unchanged, got %s", same[0].Direction)
	}
}

func TestDiffDoesNotMutateInputs(t *testing.T) {
	prev := counts("a", 1)
	next := counts("b", 2)

	Diff(prev, next)

	if prev.Len() != 1 || next.Len() != 1 {
		t.Error("Diff must not mutate its inputs")
	}
	if _, ok := prev.Get("b"); ok {
		t.Error("Diff must not add fields to previous")
	}
}

func TestDiffNilSnapshots(t *testing.T) {
	next := counts("pending", 0)
	transitions := Diff(nil, next)
	if len(transitions) != 1 {
		t.Fatalf("Expected 1 transition, got %d", len(transitions))
	}
	if transitions[0].Direction != Unchanged {
		t.Errorf("Zero against missing baseline should be unchanged, got %s", transitions[0].Direction)
	}
}
