package relation

import (
	"reflect"
	"testing"
)

func TestPutAndLookups(t *testing.T) {
	r := New[string]()

	r.Put("s1", "", []string{"a", "b"})
	r.Put("s2", "g1", []string{"x", "y"})

	if !r.ContainsLabel("a") || !r.ContainsLabel("b") {
		t.Errorf("Expected labels a,b to be owned after Put")
	}
	if r.ContainsLabel("z") {
		t.Errorf("Expected label z to be unowned")
	}

	labels, ok := r.GroupLabels("g1")
	if !ok {
		t.Fatalf("Expected group g1 to be bound")
	}
	if !reflect.DeepEqual(labels, []string{"x", "y"}) {
		t.Errorf("Expected group labels [x y], got %v", labels)
	}

	if _, ok := r.GroupLabels("unknown"); ok {
		t.Errorf("Expected unknown group to be unbound")
	}

	if r.Len() != 2 {
		t.Errorf("Expected 2 subscribers, got %d", r.Len())
	}
}

func TestPutOverwritesPreviousClaim(t *testing.T) {
	r := New[string]()

	r.Put("s1", "g1", []string{"a"})
	r.Put("s1", "", []string{"b"})

	// The old claim must be fully gone from all indices
	if r.ContainsLabel("a") {
		t.Errorf("Expected label a to be released after overwrite")
	}
	if _, ok := r.GroupLabels("g1"); ok {
		t.Errorf("Expected group g1 to be unbound after overwrite")
	}
	if !r.ContainsLabel("b") {
		t.Errorf("Expected label b to be owned after overwrite")
	}
	if r.Len() != 1 {
		t.Errorf("Expected 1 subscriber, got %d", r.Len())
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	r := New[string]()

	r.Put("s1", "g1", []string{"a", "b"})
	r.Remove("s1")
	r.Remove("s1")
	r.Remove("never-registered")

	if r.Len() != 0 {
		t.Errorf("Expected empty relation, got %d entries", r.Len())
	}
	if r.ContainsLabel("a") || r.ContainsLabel("b") {
		t.Errorf("Expected no labels after Remove")
	}
	if _, ok := r.GroupLabels("g1"); ok {
		t.Errorf("Expected group g1 to be unbound after Remove")
	}
}

func TestOwnedOutsideGroup(t *testing.T) {
	r := New[string]()

	r.Put("s1", "g1", []string{"x", "y"})
	r.Put("s2", "", []string{"a"})

	// Same group: no conflict
	if r.OwnedOutsideGroup("x", "g1", "s3") {
		t.Errorf("Label x owned only by g1 members must not conflict for g1 joiners")
	}

	// Different group: conflict
	if !r.OwnedOutsideGroup("x", "g2", "s3") {
		t.Errorf("Label x owned by g1 must conflict for g2")
	}

	// Ungrouped declare against grouped owner: conflict
	if !r.OwnedOutsideGroup("x", "", "s3") {
		t.Errorf("Label x owned by g1 must conflict for ungrouped declare")
	}

	// The declaring subscriber itself never conflicts with its own claim
	if r.OwnedOutsideGroup("a", "", "s2") {
		t.Errorf("Redeclaration by the same subscriber must not self-conflict")
	}

	// Unknown label never conflicts
	if r.OwnedOutsideGroup("nope", "", "s3") {
		t.Errorf("Unowned label must not conflict")
	}
}

func TestEntriesSnapshot(t *testing.T) {
	r := New[string]()

	r.Put("s1", "", []string{"b", "a"})
	r.Put("s2", "g1", []string{"y", "x"})

	entries := r.Entries()
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}

	byID := make(map[string]Entry[string])
	for _, e := range entries {
		byID[e.Subscriber] = e
	}

	if !reflect.DeepEqual(byID["s1"].Labels, []string{"a", "b"}) {
		t.Errorf("Expected sorted labels [a b], got %v", byID["s1"].Labels)
	}
	if byID["s2"].Group != "g1" {
		t.Errorf("Expected group g1, got %q", byID["s2"].Group)
	}
}

func TestExportByGroupDeduplicates(t *testing.T) {
	r := New[string]()

	// Two members of the same group share one label set -> one literal
	r.Put("s1", "g1", []string{"x", "y"})
	r.Put("s2", "g1", []string{"x", "y"})
	r.Put("s3", "", []string{"a"})

	claims := r.ExportByGroup()
	if len(claims) != 2 {
		t.Fatalf("Expected 2 deduplicated claims, got %d: %v", len(claims), claims)
	}

	var grouped, ungrouped int
	for _, c := range claims {
		switch c.Group {
		case "g1":
			grouped++
			if !reflect.DeepEqual(c.Labels, []string{"x", "y"}) {
				t.Errorf("Expected g1 labels [x y], got %v", c.Labels)
			}
		case "":
			ungrouped++
			if !reflect.DeepEqual(c.Labels, []string{"a"}) {
				t.Errorf("Expected ungrouped labels [a], got %v", c.Labels)
			}
		}
	}
	if grouped != 1 || ungrouped != 1 {
		t.Errorf("Expected one grouped and one ungrouped claim, got %d/%d", grouped, ungrouped)
	}
}

func TestClear(t *testing.T) {
	r := New[string]()

	r.Put("s1", "g1", []string{"a"})
	r.Put("s2", "", []string{"b"})
	r.Clear()

	if r.Len() != 0 {
		t.Errorf("Expected empty relation after Clear, got %d", r.Len())
	}
	if r.ContainsLabel("a") || r.ContainsLabel("b") {
		t.Errorf("Expected no labels after Clear")
	}
	if len(r.Entries()) != 0 {
		t.Errorf("Expected no entries after Clear")
	}
}
