package coordinator

import (
	"fmt"
	"time"

	"github.com/ValentinKolb/dACK/lib/ddata"
	"github.com/ValentinKolb/dACK/lib/relation"
)

// --------------------------------------------------------------------------
// Subscriber and Listener Contracts
// --------------------------------------------------------------------------

// Subscriber is the opaque handle under which acknowledgement labels are
// declared. Implementations must be comparable (pointer types are).
type Subscriber interface {
	// ID returns a process-locally unique identifier for the subscriber.
	ID() string
	// Evict delivers the terminal "label not unique" signal after the
	// subscriber lost a conflict. It must not block; the subscriber cannot
	// keep its claim and has to re-declare from scratch once the
	// conflicting label frees up.
	Evict(err error)
	// Done is closed when the subscriber terminates. The coordinator
	// monitors it and releases all claims of a terminated subscriber.
	Done() <-chan struct{}
}

// LocalListener receives the full local claim snapshot whenever the local
// ack set may have changed (every flush tick). Callbacks run on the
// coordinator goroutine and must not block.
//
// A LocalListener relays routing-relevant state downstream; if it
// terminates (Done closes), downstream consumers may already be operating
// on stale assumptions. The coordinator then evicts every local subscriber
// and clears its state, forcing a full resubscription.
type LocalListener interface {
	OnLocalChange(claims []relation.Claim)
	Done() <-chan struct{}
}

// RemoteListener receives the raw merged multimap whenever remote state is
// re-observed. Callbacks run on the coordinator goroutine and must not
// block.
type RemoteListener interface {
	OnRemoteChange(snapshot ddata.Snapshot)
	Done() <-chan struct{}
}

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// ICoordinator is the interface for one node's ack-label coordinator.
// There is exactly one coordinator instance per cluster node; it never
// migrates.
type ICoordinator interface {
	// Declare claims the label set for the subscriber, optionally under a
	// group (group == "" means ungrouped, each label individually
	// exclusive). Returns nil on acceptance or an *Error with code
	// RetCLocalConflict, RetCRemoteConflict, RetCEmptyLabels or RetCClosed.
	//
	// Acceptance is optimistic: the remote check runs against the last
	// merged observation, which may be stale by up to one tick interval.
	// A claim that later turns out to be dominated by a smaller-address
	// peer is revoked via Subscriber.Evict.
	Declare(sub Subscriber, group string, labels []string) error

	// Release unregisters the subscriber and all its claims. Idempotent,
	// never errors for unknown subscribers.
	Release(sub Subscriber)

	// Claims returns the deduplicated (group, label-set) snapshot of the
	// local relation.
	Claims() ([]relation.Claim, error)

	// RegisterLocalListener subscribes to local ack set changes.
	RegisterLocalListener(listener LocalListener)

	// RegisterRemoteListener subscribes to merged remote observations.
	RegisterRemoteListener(listener RemoteListener)

	// Close stops the coordinator. Pending claims are not flushed.
	Close() error
}

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

// Options configures a coordinator instance.
type Options struct {
	// TickInterval is the period of the replication flush tick.
	// Zero means DefaultTickInterval.
	TickInterval time.Duration
}

// DefaultTickInterval is the flush period used when none is configured.
const DefaultTickInterval = 3 * time.Second

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	errorCode := ""
	switch e.Code {
	case RetCEmptyLabels:
		errorCode = "EmptyLabels"
	case RetCLocalConflict:
		errorCode = "LocalConflict"
	case RetCRemoteConflict:
		errorCode = "RemoteConflict"
	case RetCLateConflict:
		errorCode = "LateConflict"
	case RetCClosed:
		errorCode = "Closed"
	case RetCInternalError:
		errorCode = "InternalError"
	default:
		errorCode = "Unknown"
	}

	return fmt.Sprintf("CoordinatorError (code %s): %s", errorCode, e.Msg)
}

// NewError creates a new coordinator Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// Code extracts the RetCode from an error returned by this package.
// Unknown errors map to RetCInternalError.
func Code(err error) RetCode {
	if err == nil {
		return RetCSuccess
	}
	if cerr, ok := err.(*Error); ok {
		return cerr.Code
	}
	return RetCInternalError
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess        RetCode = iota // 0: Operation executed successfully.
	RetCEmptyLabels                   // 1: Declaration without labels (caller error).
	RetCLocalConflict                 // 2: A local subscriber already owns a conflicting claim.
	RetCRemoteConflict                // 3: The last remote observation shows a peer's conflicting claim.
	RetCLateConflict                  // 4: A previously accepted claim lost against a smaller-address peer.
	RetCClosed                        // 5: The coordinator is closed.
	RetCInternalError                 // 6: Operation failed due to an internal error.
)

// ErrLabelNotUnique is the well-known terminal signal delivered to evicted
// subscribers: the acknowledgement label is not unique cluster-wide and the
// pub-sub association has been terminated.
var ErrLabelNotUnique = NewError(RetCLateConflict, "acknowledgement label not unique, pub-sub terminated")
