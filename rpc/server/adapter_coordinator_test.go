package server

import (
	"testing"

	"github.com/ValentinKolb/dACK/lib/coordinator"
	"github.com/ValentinKolb/dACK/lib/relation"
	"github.com/ValentinKolb/dACK/rpc/common"
)

// fakeCoordinator records calls so adapter behavior can be checked without
// a running cluster
type fakeCoordinator struct {
	declared   map[string]coordinator.Subscriber
	declareErr error
	released   []string
	claims     []relation.Claim
}

func newFakeCoordinator() *fakeCoordinator {
	return &fakeCoordinator{declared: make(map[string]coordinator.Subscriber)}
}

func (f *fakeCoordinator) Declare(sub coordinator.Subscriber, group string, labels []string) error {
	if f.declareErr != nil {
		return f.declareErr
	}
	f.declared[sub.ID()] = sub
	return nil
}

func (f *fakeCoordinator) Release(sub coordinator.Subscriber) {
	f.released = append(f.released, sub.ID())
}

func (f *fakeCoordinator) Claims() ([]relation.Claim, error) {
	return f.claims, nil
}

func (f *fakeCoordinator) RegisterLocalListener(coordinator.LocalListener)   {}
func (f *fakeCoordinator) RegisterRemoteListener(coordinator.RemoteListener) {}
func (f *fakeCoordinator) Close() error                                      { return nil }

func TestAdapterDeclare(t *testing.T) {
	adapter := NewAckServerAdapter()
	coord := newFakeCoordinator()

	resp := adapter.Handle(common.NewDeclareRequest("sub-1", "g", []string{"a"}), coord)
	if !resp.Ok || resp.Err != "" {
		t.Errorf("Expected successful declare, got %+v", resp)
	}
	if _, ok := coord.declared["sub-1"]; !ok {
		t.Errorf("Expected subscriber to be declared with the coordinator")
	}
}

func TestAdapterDeclareRequiresSubscriber(t *testing.T) {
	adapter := NewAckServerAdapter()

	resp := adapter.Handle(common.NewDeclareRequest("", "", []string{"a"}), newFakeCoordinator())
	if resp.MsgType != common.MsgTError {
		t.Errorf("Expected error response, got %+v", resp)
	}
}

func TestAdapterDeclareConflict(t *testing.T) {
	adapter := NewAckServerAdapter()
	coord := newFakeCoordinator()
	coord.declareErr = coordinator.NewError(coordinator.RetCLocalConflict, "label 'a' already owned")

	resp := adapter.Handle(common.NewDeclareRequest("sub-1", "", []string{"a"}), coord)
	if resp.Ok {
		t.Errorf("Expected declare to fail")
	}
	if resp.Err == "" {
		t.Errorf("Expected error message in response")
	}
}

func TestAdapterReleaseIsIdempotent(t *testing.T) {
	adapter := NewAckServerAdapter()
	coord := newFakeCoordinator()

	adapter.Handle(common.NewDeclareRequest("sub-1", "", []string{"a"}), coord)

	resp := adapter.Handle(common.NewReleaseRequest("sub-1"), coord)
	if !resp.Ok {
		t.Errorf("Expected successful release, got %+v", resp)
	}
	if len(coord.released) != 1 || coord.released[0] != "sub-1" {
		t.Errorf("Expected coordinator release for sub-1, got %v", coord.released)
	}

	// Second release of the same (now unknown) subscriber must not error
	resp = adapter.Handle(common.NewReleaseRequest("sub-1"), coord)
	if !resp.Ok {
		t.Errorf("Expected idempotent release, got %+v", resp)
	}
	if len(coord.released) != 1 {
		t.Errorf("Expected no second coordinator release, got %v", coord.released)
	}
}

func TestAdapterClaims(t *testing.T) {
	adapter := NewAckServerAdapter()
	coord := newFakeCoordinator()
	coord.claims = []relation.Claim{
		{Group: "g", Labels: []string{"a", "b"}},
		{Labels: []string{"c"}},
	}

	resp := adapter.Handle(common.NewClaimsRequest(), coord)
	if len(resp.Claims) != 2 {
		t.Fatalf("Expected 2 claims, got %d", len(resp.Claims))
	}
	if resp.Claims[0].Group != "g" || len(resp.Claims[0].Labels) != 2 {
		t.Errorf("Unexpected first claim: %+v", resp.Claims[0])
	}
}

func TestAdapterEventsAfterEviction(t *testing.T) {
	adapter := NewAckServerAdapter()
	coord := newFakeCoordinator()

	adapter.Handle(common.NewDeclareRequest("sub-1", "", []string{"a"}), coord)

	// Coordinator-side eviction of the remote handle
	coord.declared["sub-1"].Evict(coordinator.ErrLabelNotUnique)

	resp := adapter.Handle(common.NewEventsRequest("sub-1"), coord)
	if len(resp.Events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(resp.Events))
	}
	if resp.Events[0].Subscriber != "sub-1" {
		t.Errorf("Expected event for sub-1, got %+v", resp.Events[0])
	}
	if resp.Events[0].Err == "" {
		t.Errorf("Expected terminal error in event")
	}

	// Drained and terminated handles are dropped
	resp = adapter.Handle(common.NewEventsRequest(""), coord)
	if len(resp.Events) != 0 {
		t.Errorf("Expected no remaining events, got %v", resp.Events)
	}
}

func TestAdapterRedeclareAfterEvictionGetsFreshHandle(t *testing.T) {
	adapter := NewAckServerAdapter()
	coord := newFakeCoordinator()

	adapter.Handle(common.NewDeclareRequest("sub-1", "", []string{"a"}), coord)
	first := coord.declared["sub-1"]
	first.Evict(coordinator.ErrLabelNotUnique)

	adapter.Handle(common.NewDeclareRequest("sub-1", "", []string{"b"}), coord)
	second := coord.declared["sub-1"]
	if first == second {
		t.Errorf("Expected a fresh handle after eviction")
	}

	// The buffered event of the first incarnation is still drainable
	resp := adapter.Handle(common.NewEventsRequest(""), coord)
	if len(resp.Events) != 1 {
		t.Errorf("Expected the eviction event of the first incarnation, got %v", resp.Events)
	}
}
