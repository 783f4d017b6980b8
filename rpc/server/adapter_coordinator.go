package server

import (
	"fmt"
	"sync"

	"github.com/ValentinKolb/dACK/lib/coordinator"
	"github.com/ValentinKolb/dACK/rpc/common"
	"github.com/puzpuzpuz/xsync/v3"
)

// NewAckServerAdapter creates an adapter that translates RPC requests into
// coordinator calls. Remote subscribers are tracked per adapter so that
// eviction signals can be delivered over the pull-based events verb.
func NewAckServerAdapter() IRPCServerAdapter {
	return &ackServerAdapterImpl{
		subscribers: xsync.NewMapOf[string, *remoteSubscriber](),
	}
}

type ackServerAdapterImpl struct {
	subscribers *xsync.MapOf[string, *remoteSubscriber]
}

// --------------------------------------------------------------------------
// Interface Methods (docu see server.IRPCServerAdapter)
// --------------------------------------------------------------------------

func (adapter *ackServerAdapterImpl) Handle(req *common.Message, coord coordinator.ICoordinator) *common.Message {
	// Check for nil coordinator
	if coord == nil {
		return common.NewErrorResponse("handler: coordinator is nil")
	}

	// Handle different message types
	switch req.MsgType {
	case common.MsgTAckDeclare:
		if req.Subscriber == "" {
			return common.NewErrorResponse("declare: subscriber id required")
		}
		sub := adapter.subscriberFor(req.Subscriber)
		err := coord.Declare(sub, req.Group, req.Labels)
		return common.NewDeclareResponse(err)

	case common.MsgTAckRelease:
		if req.Subscriber == "" {
			return common.NewErrorResponse("release: subscriber id required")
		}
		if sub, ok := adapter.subscribers.LoadAndDelete(req.Subscriber); ok {
			coord.Release(sub)
			sub.terminate()
		}
		// Release is idempotent, unknown subscribers are not an error
		return common.NewReleaseResponse(nil)

	case common.MsgTAckClaims:
		claims, err := coord.Claims()
		converted := make([]common.Claim, len(claims))
		for i, claim := range claims {
			converted[i] = common.Claim{Group: claim.Group, Labels: claim.Labels}
		}
		return common.NewClaimsResponse(converted, err)

	case common.MsgTAckEvents:
		return common.NewEventsResponse(adapter.drainEvents(req.Subscriber), nil)

	default:
		return common.NewErrorResponse(
			fmt.Sprintf("RPC AckAdapter - Unsuported message type: %s", req.MsgType),
		)
	}
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// subscriberFor returns the live handle for the given id. A handle whose
// previous incarnation was evicted or released is replaced, the subscriber
// re-declares from scratch.
func (adapter *ackServerAdapterImpl) subscriberFor(id string) *remoteSubscriber {
	sub, loaded := adapter.subscribers.LoadOrStore(id, newRemoteSubscriber(id))
	if loaded && sub.terminated() {
		fresh := newRemoteSubscriber(id)
		// Keep undrained events of the previous incarnation
		fresh.pending = sub.drain()
		adapter.subscribers.Store(id, fresh)
		return fresh
	}
	return sub
}

// drainEvents collects the buffered eviction events of one subscriber, or of
// all subscribers if id is empty. Terminated handles with no remaining
// events are dropped from the registry.
func (adapter *ackServerAdapterImpl) drainEvents(id string) []common.Event {
	events := []common.Event{}

	drain := func(key string, sub *remoteSubscriber) {
		events = append(events, sub.drain()...)
		if sub.terminated() {
			adapter.subscribers.Delete(key)
		}
	}

	if id != "" {
		if sub, ok := adapter.subscribers.Load(id); ok {
			drain(id, sub)
		}
		return events
	}

	adapter.subscribers.Range(func(key string, sub *remoteSubscriber) bool {
		drain(key, sub)
		return true
	})
	return events
}

// --------------------------------------------------------------------------
// Remote Subscriber Handle
// --------------------------------------------------------------------------

// remoteSubscriber is the server-side stand-in for a subscriber living on
// the other end of the RPC connection. Eviction signals are buffered here
// until the client drains them with an events request.
type remoteSubscriber struct {
	id      string
	done    chan struct{}
	mu      sync.Mutex
	closed  bool
	pending []common.Event
}

func newRemoteSubscriber(id string) *remoteSubscriber {
	return &remoteSubscriber{
		id:   id,
		done: make(chan struct{}),
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see coordinator.Subscriber)
// --------------------------------------------------------------------------

func (s *remoteSubscriber) ID() string {
	return s.id
}

func (s *remoteSubscriber) Evict(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = append(s.pending, common.Event{Subscriber: s.id, Err: err.Error()})

	// Eviction is terminal for this incarnation
	if !s.closed {
		s.closed = true
		close(s.done)
	}
}

func (s *remoteSubscriber) Done() <-chan struct{} {
	return s.done
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// terminate closes the handle without buffering an event (explicit release)
func (s *remoteSubscriber) terminate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.done)
	}
}

// terminated reports whether this incarnation has ended
func (s *remoteSubscriber) terminated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// drain removes and returns all buffered events
func (s *remoteSubscriber) drain() []common.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	events := s.pending
	s.pending = nil
	return events
}
