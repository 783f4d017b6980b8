package serializer

import (
	"reflect"
	"strings"
	"testing"

	"github.com/ValentinKolb/dACK/rpc/common"
)

// testSerializers holds a factory per implementation under test
var testSerializers = map[string]func() IRPCSerializer{
	"JSON":   NewJSONSerializer,
	"GOB":    NewGOBSerializer,
	"Binary": NewBinarySerializer,
}

// testMessages covers the message shapes actually sent by the system
func testMessages() map[string]common.Message {
	return map[string]common.Message{
		"DeclareRequest": {
			MsgType:    common.MsgTAckDeclare,
			Subscriber: "consumer-1",
			Group:      "billing",
			Labels:     []string{"invoice-service", "payment-service"},
		},
		"DeclareUngrouped": {
			MsgType:    common.MsgTAckDeclare,
			Subscriber: "consumer-2",
			Labels:     []string{"audit-log"},
		},
		"DeclareResponseOk": {
			MsgType: common.MsgTAckDeclare,
			Ok:      true,
		},
		"DeclareResponseConflict": {
			MsgType: common.MsgTAckDeclare,
			Err:     "CoordinatorError (code LocalConflict): label 'audit-log' is already owned locally",
		},
		"ClaimsResponse": {
			MsgType: common.MsgTAckClaims,
			Claims: []common.Claim{
				{Group: "billing", Labels: []string{"invoice-service", "payment-service"}},
				{Labels: []string{"audit-log"}},
			},
		},
		"EventsResponse": {
			MsgType: common.MsgTAckEvents,
			Events: []common.Event{
				{Subscriber: "consumer-1", Err: "acknowledgement label not unique, pub-sub terminated"},
			},
		},
		"ErrorResponse": {
			MsgType: common.MsgTError,
			Err:     "domain not found",
		},
		"CustomWithMeta": {
			MsgType: common.MsgTCustom,
			Meta:    []byte{0x00, 0x01, 0xff},
		},
	}
}

func TestRoundTrip(t *testing.T) {
	for name, factory := range testSerializers {
		for msgName, msg := range testMessages() {
			t.Run(name+"_"+msgName, func(t *testing.T) {
				s := factory()

				data, err := s.Serialize(msg)
				if err != nil {
					t.Fatalf("Serialize failed: %v", err)
				}

				var decoded common.Message
				if err := s.Deserialize(data, &decoded); err != nil {
					t.Fatalf("Deserialize failed: %v", err)
				}
				if !reflect.DeepEqual(msg, decoded) {
					t.Errorf("Expected %+v, got %+v", msg, decoded)
				}
			})
		}
	}
}

func TestJSONUsesReadableMessageTypes(t *testing.T) {
	s := NewJSONSerializer()

	data, err := s.Serialize(common.Message{MsgType: common.MsgTAckDeclare, Subscriber: "s"})
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}
	if !strings.Contains(string(data), `"msg_type":"declare"`) {
		t.Errorf("Expected readable message type in %s", data)
	}
}

func TestBinaryRejectsTruncatedData(t *testing.T) {
	s := NewBinarySerializer()

	data, err := s.Serialize(common.Message{
		MsgType:    common.MsgTAckDeclare,
		Subscriber: "consumer-1",
		Labels:     []string{"x", "y"},
	})
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}

	for _, n := range []int{0, 1, 5, len(data) - 1} {
		var decoded common.Message
		if err := s.Deserialize(data[:n], &decoded); err == nil {
			t.Errorf("Expected error for %d-byte prefix", n)
		}
	}
}

func TestBinaryRejectsTrailingBytes(t *testing.T) {
	s := NewBinarySerializer()

	data, err := s.Serialize(common.Message{MsgType: common.MsgTAckRelease, Subscriber: "s"})
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}

	var decoded common.Message
	if err := s.Deserialize(append(data, 0x42), &decoded); err == nil {
		t.Errorf("Expected error for trailing bytes")
	}
}
