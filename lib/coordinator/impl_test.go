package coordinator

import (
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/dACK/lib/cluster"
	"github.com/ValentinKolb/dACK/lib/ddata"
	"github.com/ValentinKolb/dACK/lib/ddata/lmap"
	"github.com/ValentinKolb/dACK/lib/relation"
)

const testTick = 15 * time.Millisecond

// --------------------------------------------------------------------------
// Test Harness
// --------------------------------------------------------------------------

// waitFor polls the condition until it holds or the deadline passes
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(3 * time.Millisecond)
	}
	t.Fatalf("Timeout waiting for %s", what)
}

type testSubscriber struct {
	id   string
	done chan struct{}

	mu      sync.Mutex
	evicted []error
}

func newTestSubscriber(id string) *testSubscriber {
	return &testSubscriber{id: id, done: make(chan struct{})}
}

func (s *testSubscriber) ID() string { return s.id }

func (s *testSubscriber) Evict(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evicted = append(s.evicted, err)
}

func (s *testSubscriber) Done() <-chan struct{} { return s.done }

func (s *testSubscriber) evictions() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.evicted...)
}

// testListener serves as both local and remote listener
type testListener struct {
	done chan struct{}

	mu     sync.Mutex
	local  [][]relation.Claim
	remote []ddata.Snapshot
}

func newTestListener() *testListener {
	return &testListener{done: make(chan struct{})}
}

func (l *testListener) OnLocalChange(claims []relation.Claim) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.local = append(l.local, claims)
}

func (l *testListener) OnRemoteChange(snapshot ddata.Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.remote = append(l.remote, snapshot)
}

func (l *testListener) Done() <-chan struct{} { return l.done }

// lastRemote returns the most recent observed snapshot, or nil
func (l *testListener) lastRemote() ddata.Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.remote) == 0 {
		return nil
	}
	return l.remote[len(l.remote)-1]
}

// lastLocal returns the most recent local claim snapshot, or nil
func (l *testListener) lastLocal() []relation.Claim {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.local) == 0 {
		return nil
	}
	return l.local[len(l.local)-1]
}

type testCluster struct {
	bus      *lmap.Bus
	registry cluster.IMembership
	coords   map[string]ICoordinator
	stores   map[string]ddata.IMultimap
}

// newTestCluster wires one coordinator per address over a shared loopback
// bus and membership registry.
func newTestCluster(t *testing.T, addresses ...string) *testCluster {
	t.Helper()

	tc := &testCluster{
		bus:      lmap.NewBus(),
		registry: cluster.NewRegistry(addresses...),
		coords:   make(map[string]ICoordinator),
		stores:   make(map[string]ddata.IMultimap),
	}
	for _, address := range addresses {
		store := tc.bus.Join(address)
		tc.stores[address] = store
		tc.coords[address] = New(store, tc.registry, Options{TickInterval: testTick})
	}

	t.Cleanup(func() {
		for _, c := range tc.coords {
			c.Close()
		}
		for _, s := range tc.stores {
			s.Close()
		}
	})
	return tc
}

// observes reports whether the watcher node has seen the claimant's literal
func (tc *testCluster) observes(watcher *testListener, claimant string, literal ddata.Literal) bool {
	snapshot := watcher.lastRemote()
	if snapshot == nil {
		return false
	}
	encoded := literal.Encode()
	for _, l := range snapshot[claimant] {
		if l == encoded {
			return true
		}
	}
	return false
}

// --------------------------------------------------------------------------
// Local Admissibility
// --------------------------------------------------------------------------

func TestDeclareEmptyLabels(t *testing.T) {
	tc := newTestCluster(t, "node-a")

	err := tc.coords["node-a"].Declare(newTestSubscriber("s1"), "", nil)
	if Code(err) != RetCEmptyLabels {
		t.Errorf("Expected RetCEmptyLabels, got %v", err)
	}
}

func TestLocalLabelExclusive(t *testing.T) {
	tc := newTestCluster(t, "node-a")
	c := tc.coords["node-a"]

	if err := c.Declare(newTestSubscriber("s1"), "", []string{"x"}); err != nil {
		t.Fatalf("First declaration failed: %v", err)
	}
	if err := c.Declare(newTestSubscriber("s2"), "", []string{"x"}); Code(err) != RetCLocalConflict {
		t.Errorf("Expected RetCLocalConflict for an owned label, got %v", err)
	}
	if err := c.Declare(newTestSubscriber("s3"), "", []string{"y"}); err != nil {
		t.Errorf("Expected a free label to be admissible, got %v", err)
	}
}

func TestLocalGroupSharing(t *testing.T) {
	tc := newTestCluster(t, "node-a")
	c := tc.coords["node-a"]

	if err := c.Declare(newTestSubscriber("s1"), "g", []string{"x", "y"}); err != nil {
		t.Fatalf("First group member failed: %v", err)
	}
	// Identical label set joins the group
	if err := c.Declare(newTestSubscriber("s2"), "g", []string{"y", "x"}); err != nil {
		t.Errorf("Expected identical group claim to be admissible, got %v", err)
	}
	// Diverging label set for the same group
	if err := c.Declare(newTestSubscriber("s3"), "g", []string{"x"}); Code(err) != RetCLocalConflict {
		t.Errorf("Expected RetCLocalConflict for a diverging group label set, got %v", err)
	}
	// Group-owned label claimed under another group
	if err := c.Declare(newTestSubscriber("s4"), "h", []string{"x"}); Code(err) != RetCLocalConflict {
		t.Errorf("Expected RetCLocalConflict for a label owned by another group, got %v", err)
	}
}

func TestGroupRebindBySoleMember(t *testing.T) {
	tc := newTestCluster(t, "node-a")
	c := tc.coords["node-a"]
	s1 := newTestSubscriber("s1")

	if err := c.Declare(s1, "g", []string{"x"}); err != nil {
		t.Fatalf("Declaration failed: %v", err)
	}
	// The sole member may rebind its group
	if err := c.Declare(s1, "g", []string{"x", "y"}); err != nil {
		t.Errorf("Expected sole member rebind to succeed, got %v", err)
	}

	// With a second member the binding is fixed
	if err := c.Declare(newTestSubscriber("s2"), "g", []string{"x", "y"}); err != nil {
		t.Fatalf("Joining the group failed: %v", err)
	}
	if err := c.Declare(s1, "g", []string{"z"}); Code(err) != RetCLocalConflict {
		t.Errorf("Expected RetCLocalConflict for rebinding a shared group, got %v", err)
	}
}

// --------------------------------------------------------------------------
// Cross-Node Coordination
// --------------------------------------------------------------------------

func TestRemoteConflictAfterObservation(t *testing.T) {
	tc := newTestCluster(t, "node-a", "node-b")

	watcher := newTestListener()
	tc.coords["node-b"].RegisterRemoteListener(watcher)

	if err := tc.coords["node-a"].Declare(newTestSubscriber("a1"), "", []string{"x"}); err != nil {
		t.Fatalf("Declaration on node-a failed: %v", err)
	}

	waitFor(t, "node-b to observe node-a's claim", func() bool {
		return tc.observes(watcher, "node-a", ddata.Literal{Labels: []string{"x"}})
	})

	if err := tc.coords["node-b"].Declare(newTestSubscriber("b1"), "", []string{"x"}); Code(err) != RetCRemoteConflict {
		t.Errorf("Expected RetCRemoteConflict after observation, got %v", err)
	}
}

func TestConcurrentConflictEvictsLargerAddress(t *testing.T) {
	tc := newTestCluster(t, "node-a", "node-b")
	subA := newTestSubscriber("a1")
	subB := newTestSubscriber("b1")

	// Neither node has observed the other yet, both declarations pass
	if err := tc.coords["node-a"].Declare(subA, "", []string{"x"}); err != nil {
		t.Fatalf("Declaration on node-a failed: %v", err)
	}
	if err := tc.coords["node-b"].Declare(subB, "", []string{"x"}); err != nil {
		t.Fatalf("Declaration on node-b failed: %v", err)
	}

	// The larger address loses and evicts, the smaller one is undisturbed
	waitFor(t, "eviction of node-b's subscriber", func() bool {
		return len(subB.evictions()) > 0
	})
	if err := subB.evictions()[0]; Code(err) != RetCLateConflict {
		t.Errorf("Expected the terminal RetCLateConflict signal, got %v", err)
	}

	time.Sleep(10 * testTick)
	if len(subA.evictions()) != 0 {
		t.Errorf("Expected node-a's subscriber to keep its claim, got evictions %v", subA.evictions())
	}

	claims, err := tc.coords["node-b"].Claims()
	if err != nil || len(claims) != 0 {
		t.Errorf("Expected node-b to hold no claims after eviction, got %v (%v)", claims, err)
	}
}

func TestIdenticalGroupClaimsAcrossNodesCoexist(t *testing.T) {
	tc := newTestCluster(t, "node-a", "node-b")
	subA := newTestSubscriber("a1")
	subB := newTestSubscriber("b1")

	if err := tc.coords["node-a"].Declare(subA, "g", []string{"x", "y"}); err != nil {
		t.Fatalf("Declaration on node-a failed: %v", err)
	}
	if err := tc.coords["node-b"].Declare(subB, "g", []string{"x", "y"}); err != nil {
		t.Fatalf("Declaration on node-b failed: %v", err)
	}

	time.Sleep(10 * testTick)

	if len(subA.evictions()) != 0 || len(subB.evictions()) != 0 {
		t.Errorf("Expected identical group claims to coexist, got evictions %v / %v",
			subA.evictions(), subB.evictions())
	}
}

func TestGroupLabelMismatchAcrossNodes(t *testing.T) {
	tc := newTestCluster(t, "node-a", "node-b")
	subA := newTestSubscriber("a1")
	subB := newTestSubscriber("b1")

	if err := tc.coords["node-a"].Declare(subA, "g", []string{"x"}); err != nil {
		t.Fatalf("Declaration on node-a failed: %v", err)
	}
	if err := tc.coords["node-b"].Declare(subB, "g", []string{"y"}); err != nil {
		t.Fatalf("Declaration on node-b failed: %v", err)
	}

	// node-a's binding of g wins, node-b's diverging binding is evicted
	waitFor(t, "eviction of node-b's group claim", func() bool {
		return len(subB.evictions()) > 0
	})

	time.Sleep(10 * testTick)
	if len(subA.evictions()) != 0 {
		t.Errorf("Expected node-a's group binding to survive, got evictions %v", subA.evictions())
	}
}

func TestMemberRemovalFreesClaims(t *testing.T) {
	tc := newTestCluster(t, "node-a", "node-b")

	watcher := newTestListener()
	tc.coords["node-b"].RegisterRemoteListener(watcher)

	if err := tc.coords["node-a"].Declare(newTestSubscriber("a1"), "", []string{"x"}); err != nil {
		t.Fatalf("Declaration on node-a failed: %v", err)
	}
	waitFor(t, "node-b to observe node-a's claim", func() bool {
		return tc.observes(watcher, "node-a", ddata.Literal{Labels: []string{"x"}})
	})

	tc.registry.Remove("node-a")

	// The departed node's claims no longer block declarations
	subB := newTestSubscriber("b1")
	waitFor(t, "node-a's claims to be pruned", func() bool {
		return tc.coords["node-b"].Declare(subB, "", []string{"x"}) == nil
	})
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

func TestTerminationReleasesClaims(t *testing.T) {
	tc := newTestCluster(t, "node-a")
	c := tc.coords["node-a"]

	sub := newTestSubscriber("s1")
	if err := c.Declare(sub, "", []string{"x"}); err != nil {
		t.Fatalf("Declaration failed: %v", err)
	}

	close(sub.done)

	successor := newTestSubscriber("s2")
	waitFor(t, "the terminated subscriber's label to free up", func() bool {
		return c.Declare(successor, "", []string{"x"}) == nil
	})
}

func TestReleaseIsIdempotent(t *testing.T) {
	tc := newTestCluster(t, "node-a")
	c := tc.coords["node-a"]

	sub := newTestSubscriber("s1")
	if err := c.Declare(sub, "", []string{"x"}); err != nil {
		t.Fatalf("Declaration failed: %v", err)
	}

	c.Release(sub)
	c.Release(sub)                        // second release is a no-op
	c.Release(newTestSubscriber("never")) // unknown subscribers too

	if err := c.Declare(newTestSubscriber("s2"), "", []string{"x"}); err != nil {
		t.Errorf("Expected the released label to be free, got %v", err)
	}
}

func TestTickFlushesClaimsToStore(t *testing.T) {
	tc := newTestCluster(t, "node-a")
	c := tc.coords["node-a"]
	encoded := ddata.Literal{Group: "g", Labels: []string{"x"}}.Encode()

	sub := newTestSubscriber("s1")
	if err := c.Declare(sub, "g", []string{"x"}); err != nil {
		t.Fatalf("Declaration failed: %v", err)
	}

	contains := func() bool {
		for _, l := range tc.stores["node-a"].Snapshot()["node-a"] {
			if l == encoded {
				return true
			}
		}
		return false
	}
	waitFor(t, "the claim to be flushed", contains)

	c.Release(sub)
	waitFor(t, "the release to be flushed", func() bool { return !contains() })
}

func TestLocalListenerReceivesSnapshots(t *testing.T) {
	tc := newTestCluster(t, "node-a")
	c := tc.coords["node-a"]

	listener := newTestListener()
	c.RegisterLocalListener(listener)

	if err := c.Declare(newTestSubscriber("s1"), "g", []string{"x"}); err != nil {
		t.Fatalf("Declaration failed: %v", err)
	}

	waitFor(t, "a local change notification with the claim", func() bool {
		claims := listener.lastLocal()
		return len(claims) == 1 && claims[0].Group == "g"
	})
}

func TestLocalFeedLossEvictsEverything(t *testing.T) {
	tc := newTestCluster(t, "node-a")
	c := tc.coords["node-a"]

	listener := newTestListener()
	c.RegisterLocalListener(listener)

	subs := []*testSubscriber{
		newTestSubscriber("s1"),
		newTestSubscriber("s2"),
	}
	if err := c.Declare(subs[0], "", []string{"x"}); err != nil {
		t.Fatalf("Declaration failed: %v", err)
	}
	if err := c.Declare(subs[1], "g", []string{"y"}); err != nil {
		t.Fatalf("Declaration failed: %v", err)
	}

	close(listener.done)

	waitFor(t, "all subscribers to be evicted", func() bool {
		return len(subs[0].evictions()) > 0 && len(subs[1].evictions()) > 0
	})

	claims, err := c.Claims()
	if err != nil || len(claims) != 0 {
		t.Errorf("Expected an empty relation after feed loss, got %v (%v)", claims, err)
	}
}

func TestOperationsAfterClose(t *testing.T) {
	tc := newTestCluster(t, "node-a")
	c := tc.coords["node-a"]

	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := c.Declare(newTestSubscriber("s1"), "", []string{"x"}); Code(err) != RetCClosed {
		t.Errorf("Expected RetCClosed, got %v", err)
	}
	if _, err := c.Claims(); Code(err) != RetCClosed {
		t.Errorf("Expected RetCClosed from Claims, got %v", err)
	}
	c.Release(newTestSubscriber("s2")) // must not block
	if err := c.Close(); err != nil {  // idempotent
		t.Errorf("Second close failed: %v", err)
	}
}
