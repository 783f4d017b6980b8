package common

import (
	"encoding/json"
	"fmt"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// General fields
	Subscriber string   `json:"subscriber,omitempty"` // Used for: Declare, Release, Events
	Group      string   `json:"group,omitempty"`      // Used for: Declare ("" means ungrouped)
	Labels     []string `json:"labels,omitempty"`     // Used for: Declare

	// Response only fields
	Claims []Claim `json:"claims,omitempty"` // Used for: Claims responses
	Events []Event `json:"events,omitempty"` // Used for: Events responses
	Ok     bool    `json:"ok,omitempty"`     // Used for: Declare, Release responses
	Err    string  `json:"err,omitempty"`    // Empty if no error, otherwise contains the error message

	// Meta information
	Meta []byte `json:"meta,omitempty"` // Unused, can be used for additional Adapters
}

// Claim is one (group, label-set) entry of a node's local ack relation.
type Claim struct {
	Group  string   `json:"group,omitempty"`
	Labels []string `json:"labels"`
}

// Event is one buffered terminal signal for a remote subscriber.
type Event struct {
	Subscriber string `json:"subscriber"`
	Err        string `json:"err"`
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewDeclareRequest creates a new Declare request
func NewDeclareRequest(subscriber, group string, labels []string) *Message {
	return &Message{
		MsgType:    MsgTAckDeclare,
		Subscriber: subscriber,
		Group:      group,
		Labels:     labels,
	}
}

// NewDeclareResponse creates a new Declare response
func NewDeclareResponse(err error) *Message {
	msg := &Message{
		MsgType: MsgTAckDeclare,
		Ok:      err == nil,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewReleaseRequest creates a new Release request
func NewReleaseRequest(subscriber string) *Message {
	return &Message{
		MsgType:    MsgTAckRelease,
		Subscriber: subscriber,
	}
}

// NewReleaseResponse creates a new Release response
func NewReleaseResponse(err error) *Message {
	msg := &Message{
		MsgType: MsgTAckRelease,
		Ok:      err == nil,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewClaimsRequest creates a new Claims request
func NewClaimsRequest() *Message {
	return &Message{
		MsgType: MsgTAckClaims,
	}
}

// NewClaimsResponse creates a new Claims response
func NewClaimsResponse(claims []Claim, err error) *Message {
	msg := &Message{
		MsgType: MsgTAckClaims,
		Claims:  claims,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewEventsRequest creates a new Events request. An empty subscriber drains
// the events of all subscribers of the requesting domain.
func NewEventsRequest(subscriber string) *Message {
	return &Message{
		MsgType:    MsgTAckEvents,
		Subscriber: subscriber,
	}
}

// NewEventsResponse creates a new Events response
func NewEventsResponse(events []Event, err error) *Message {
	msg := &Message{
		MsgType: MsgTAckEvents,
		Events:  events,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewCustomRequest creates a new Custom request
func NewCustomRequest(meta []byte) *Message {
	return &Message{
		MsgType: MsgTCustom,
		Meta:    meta,
	}
}

// NewCustomResponse creates a new Custom response
func NewCustomResponse(meta []byte, err error) *Message {
	msg := &Message{
		MsgType: MsgTCustom,
		Meta:    meta,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(err string) *Message {
	return &Message{
		MsgType: MsgTError,
		Err:     err,
	}
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	switch t {
	case MsgTAckDeclare:
		return "declare"
	case MsgTAckRelease:
		return "release"
	case MsgTAckClaims:
		return "claims"
	case MsgTAckEvents:
		return "events"
	case MsgTCustom:
		return "custom"
	case MsgTError:
		return "error"
	case MsgTSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	// Convert string back to MessageType
	switch s {
	case "declare":
		*t = MsgTAckDeclare
	case "release":
		*t = MsgTAckRelease
	case "claims":
		*t = MsgTAckClaims
	case "events":
		*t = MsgTAckEvents
	case "custom":
		*t = MsgTCustom
	case "error":
		*t = MsgTError
	case "success":
		*t = MsgTSuccess
	default:
		return fmt.Errorf("unknown message type: %s", s)
	}

	return nil
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// ICoordinator operations

	MsgTAckDeclare // Declare acknowledgement labels for a subscriber
	MsgTAckRelease // Release all claims of a subscriber
	MsgTAckClaims  // List the node's local (group, label-set) claims
	MsgTAckEvents  // Drain buffered eviction events

	// Custom operations

	MsgTCustom // Custom operation type
)
