package lmap

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/dACK/lib/ddata"
)

// waitFor polls the condition until it holds or the deadline passes
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timeout waiting for %s", what)
}

func TestWritePropagatesToAllHandles(t *testing.T) {
	bus := NewBus()
	a := bus.Join("node-a")
	b := bus.Join("node-b")
	defer a.Close()
	defer b.Close()

	var mu sync.Mutex
	var lastA, lastB ddata.Snapshot
	a.Subscribe(func(s ddata.Snapshot) { mu.Lock(); lastA = s; mu.Unlock() })
	b.Subscribe(func(s ddata.Snapshot) { mu.Lock(); lastB = s; mu.Unlock() })

	if err := a.Write(ddata.Update{Inserts: []string{"|x"}}, ddata.ConsistencyLocal); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	sees := func(s ddata.Snapshot) bool {
		return s != nil && len(s["node-a"]) == 1 && s["node-a"][0] == "|x"
	}
	waitFor(t, "propagation to both handles", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return sees(lastA) && sees(lastB)
	})
}

func TestWriteMergesDeltas(t *testing.T) {
	bus := NewBus()
	a := bus.Join("node-a")
	defer a.Close()

	a.Write(ddata.Update{Inserts: []string{"|x", "|y"}}, ddata.ConsistencyLocal)
	a.Write(ddata.Update{Inserts: []string{"|z"}, Deletes: []string{"|x"}}, ddata.ConsistencyLocal)

	snapshot := a.Snapshot()
	literals := append([]string(nil), snapshot["node-a"]...)
	sort.Strings(literals)

	if len(literals) != 2 || literals[0] != "|y" || literals[1] != "|z" {
		t.Errorf("Expected merged literals [|y |z], got %v", literals)
	}
}

func TestDeleteDropsContribution(t *testing.T) {
	bus := NewBus()
	a := bus.Join("node-a")
	b := bus.Join("node-b")
	defer a.Close()
	defer b.Close()

	a.Write(ddata.Update{Inserts: []string{"|x"}}, ddata.ConsistencyLocal)
	b.Write(ddata.Update{Inserts: []string{"|y"}}, ddata.ConsistencyLocal)

	// Any handle may prune a departed member's key
	if err := a.Delete("node-b"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	snapshot := a.Snapshot()
	if _, ok := snapshot["node-b"]; ok {
		t.Errorf("Expected node-b contribution to be dropped, got %v", snapshot)
	}
	if len(snapshot["node-a"]) != 1 {
		t.Errorf("Expected node-a contribution to survive, got %v", snapshot)
	}
}

func TestNoNotificationForNoopWrite(t *testing.T) {
	bus := NewBus()
	a := bus.Join("node-a")
	defer a.Close()

	notifications := 0
	var mu sync.Mutex
	a.Subscribe(func(ddata.Snapshot) { mu.Lock(); notifications++; mu.Unlock() })

	a.Write(ddata.Update{Inserts: []string{"|x"}}, ddata.ConsistencyLocal)
	waitFor(t, "first notification", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return notifications == 1
	})

	// Re-inserting an existing literal changes nothing and must not notify
	a.Write(ddata.Update{Inserts: []string{"|x"}}, ddata.ConsistencyLocal)
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if notifications != 1 {
		t.Errorf("Expected 1 notification, got %d", notifications)
	}
}

func TestClosedHandleRejectsWrites(t *testing.T) {
	bus := NewBus()
	a := bus.Join("node-a")
	a.Close()

	if err := a.Write(ddata.Update{Inserts: []string{"|x"}}, ddata.ConsistencyLocal); err == nil {
		t.Errorf("Expected write on closed handle to fail")
	}
}
