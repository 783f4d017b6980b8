package coordinator

import (
	"reflect"
	"testing"

	"github.com/ValentinKolb/dACK/lib/ddata"
)

func TestFoldFirstClaimantWinsGroup(t *testing.T) {
	snapshot := ddata.Snapshot{
		"node-a": {ddata.Literal{Group: "g", Labels: []string{"x"}}.Encode()},
		"node-b": {ddata.Literal{Group: "g", Labels: []string{"y"}}.Encode()},
	}

	state := foldRemote(snapshot, []string{"node-a", "node-b"}, nil)

	if !reflect.DeepEqual(state.groups["g"], []string{"x"}) {
		t.Errorf("Expected the smallest address to bind group g to [x], got %v", state.groups["g"])
	}

	// The losing claim's labels still count as claimed
	if _, ok := state.labels["y"]; !ok {
		t.Errorf("Expected label y of the losing claimant to be accumulated")
	}
}

func TestFoldSkipsUndecodableLiterals(t *testing.T) {
	snapshot := ddata.Snapshot{
		"node-a": {"no separator at all", ddata.Literal{Labels: []string{"x"}}.Encode()},
	}

	var bad []string
	state := foldRemote(snapshot, []string{"node-a"}, func(address, literal string, err error) {
		bad = append(bad, literal)
	})

	if len(bad) != 1 {
		t.Fatalf("Expected 1 undecodable literal, got %v", bad)
	}
	if _, ok := state.labels["x"]; !ok {
		t.Errorf("Expected the valid literal to survive the bad one")
	}
}

func TestConflictsWithUngrouped(t *testing.T) {
	snapshot := ddata.Snapshot{
		"node-a": {
			ddata.Literal{Labels: []string{"x"}}.Encode(),
			ddata.Literal{Group: "g", Labels: []string{"y"}}.Encode(),
		},
	}
	state := foldRemote(snapshot, []string{"node-a"}, nil)

	// Ungrouped claims tolerate no other owner, grouped or not
	if !state.conflictsWith("", []string{"x"}) {
		t.Errorf("Expected conflict with remotely owned ungrouped label")
	}
	if !state.conflictsWith("", []string{"y"}) {
		t.Errorf("Expected conflict with remotely group-owned label")
	}
	if state.conflictsWith("", []string{"z"}) {
		t.Errorf("Expected no conflict for an unclaimed label")
	}
}

func TestConflictsWithGrouped(t *testing.T) {
	snapshot := ddata.Snapshot{
		"node-a": {ddata.Literal{Group: "g", Labels: []string{"x", "y"}}.Encode()},
	}
	state := foldRemote(snapshot, []string{"node-a"}, nil)

	// Identical group claims cooperate
	if state.conflictsWith("g", []string{"y", "x"}) {
		t.Errorf("Expected identical group claim to be admissible")
	}
	// Same group, different label set
	if !state.conflictsWith("g", []string{"x"}) {
		t.Errorf("Expected conflict for a diverging group label set")
	}
	// Different group, overlapping label
	if !state.conflictsWith("h", []string{"x"}) {
		t.Errorf("Expected conflict for a label claimed under another group")
	}
	if state.conflictsWith("h", []string{"z"}) {
		t.Errorf("Expected no conflict for a disjoint claim")
	}
}

func TestEqualLabelSets(t *testing.T) {
	if !equalLabelSets([]string{"a", "b"}, []string{"b", "a"}) {
		t.Errorf("Expected order-independent equality")
	}
	if equalLabelSets([]string{"a"}, []string{"a", "b"}) {
		t.Errorf("Expected different sizes to be unequal")
	}
	if equalLabelSets([]string{"a", "b"}, []string{"a", "c"}) {
		t.Errorf("Expected different elements to be unequal")
	}
}
