package ddata

import (
	"fmt"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// Snapshot is a merged observation of the whole multimap:
// cluster node address -> encoded literals claimed by that node.
// A Snapshot handed to listeners must not be mutated.
type Snapshot map[string][]string

// Consistency selects the write acknowledgement level.
type Consistency uint8

const (
	// ConsistencyLocal acknowledges as soon as the local replica applied the
	// write; propagation to peers is asynchronous. This is the level the
	// coordinator uses for its periodic flush - a lost write is superseded
	// by the next tick.
	ConsistencyLocal Consistency = iota
	// ConsistencyReplicated acknowledges only once the write is durable on a
	// majority of replicas.
	ConsistencyReplicated
)

// IMultimap is the interface for one node's handle on the replicated
// multimap. All writes go under the node's own address key.
type IMultimap interface {
	// OwnAddress returns the cluster node address this handle writes under.
	OwnAddress() string
	// Write merges a literal delta into this node's own key.
	Write(update Update, consistency Consistency) (err error)
	// Delete drops the full contribution of the given address from the map.
	// Used when a cluster member is removed.
	Delete(address string) (err error)
	// Subscribe registers a listener that receives the full merged Snapshot
	// whenever any node's contribution changes. Delivery is asynchronous and
	// may coalesce intermediate states, but always ends on the latest one.
	Subscribe(listener func(Snapshot))
	// Snapshot returns the current merged view.
	Snapshot() Snapshot
	// Close releases the handle. Registered listeners receive no further
	// notifications.
	Close() error
}

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
	case RetCInternalError:
		errorCode = "InternalError"
	case RetCClosed:
		errorCode = "Closed"
	case RetCTimeout:
		errorCode = "Timeout"
	case RetCInvalidLiteral:
		errorCode = "InvalidLiteral"
	default:
		errorCode = "Unknown"
	}

	return fmt.Sprintf("MultimapError (code %s): %s", errorCode, e.Msg)
}

// NewError creates a new multimap Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess        RetCode = iota // 0: Operation executed successfully.
	RetCInternalError                 // 1: Operation failed due to an internal error.
	RetCClosed                        // 2: The handle is closed.
	RetCTimeout                       // 3: The operation timed out.
	RetCInvalidLiteral                // 4: A literal could not be decoded.
)
