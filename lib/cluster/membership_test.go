package cluster

import (
	"reflect"
	"testing"
)

func TestViewOrdering(t *testing.T) {
	v := NewView([]string{"node-c", "node-a", "node-b", "node-a"})

	if !reflect.DeepEqual(v.Members(), []string{"node-a", "node-b", "node-c"}) {
		t.Errorf("Expected sorted unique members, got %v", v.Members())
	}
	if v.Len() != 3 {
		t.Errorf("Expected 3 members, got %d", v.Len())
	}
}

func TestViewPeersAndMoreImportant(t *testing.T) {
	v := NewView([]string{"node-a", "node-b", "node-c"})

	if !reflect.DeepEqual(v.Peers("node-b"), []string{"node-a", "node-c"}) {
		t.Errorf("Expected peers [node-a node-c], got %v", v.Peers("node-b"))
	}
	if !reflect.DeepEqual(v.MoreImportant("node-c"), []string{"node-a", "node-b"}) {
		t.Errorf("Expected [node-a node-b] more important than node-c, got %v", v.MoreImportant("node-c"))
	}
	if len(v.MoreImportant("node-a")) != 0 {
		t.Errorf("Expected nothing more important than the smallest address")
	}

	// The own address does not have to be a member for either query
	if !reflect.DeepEqual(v.MoreImportant("node-bb"), []string{"node-a", "node-b"}) {
		t.Errorf("Expected [node-a node-b] more important than node-bb, got %v", v.MoreImportant("node-bb"))
	}
}

func TestLessIsDeterministic(t *testing.T) {
	if !Less("node-a", "node-b") || Less("node-b", "node-a") {
		t.Errorf("Expected node-a < node-b under the total order")
	}
	if Less("node-a", "node-a") {
		t.Errorf("Expected Less to be irreflexive")
	}
}

func TestRegistryRemoveNotifies(t *testing.T) {
	r := NewRegistry("node-a", "node-b")

	var removed []string
	r.SubscribeRemoved(func(address string) {
		removed = append(removed, address)
	})

	r.Remove("node-b")
	r.Remove("node-b")      // idempotent, no second notification
	r.Remove("never-added") // unknown, no notification

	if !reflect.DeepEqual(removed, []string{"node-b"}) {
		t.Errorf("Expected exactly one removal notification for node-b, got %v", removed)
	}
	if !reflect.DeepEqual(r.View().Members(), []string{"node-a"}) {
		t.Errorf("Expected remaining member node-a, got %v", r.View().Members())
	}
}

func TestRegistryAdd(t *testing.T) {
	r := NewRegistry()
	r.Add("node-b")
	r.Add("node-a")
	r.Add("node-a")

	if !reflect.DeepEqual(r.View().Members(), []string{"node-a", "node-b"}) {
		t.Errorf("Expected members [node-a node-b], got %v", r.View().Members())
	}
}
