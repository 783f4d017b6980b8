package internal

import (
	"reflect"
	"testing"
)

func TestCommandRoundTrip(t *testing.T) {
	original := Command{
		Type:    CommandTMerge,
		Address: "raft-node-1:8080",
		Inserts: []string{"g|x,y", "|solo"},
		Deletes: []string{"old|gone"},
	}

	data := original.Serialize()
	if len(data) != original.SizeBytes() {
		t.Errorf("Expected %d serialized bytes, got %d", original.SizeBytes(), len(data))
	}

	var decoded Command
	if err := decoded.Deserialize(data); err != nil {
		t.Fatalf("Deserialize failed: %v", err)
	}
	if !reflect.DeepEqual(original, decoded) {
		t.Errorf("Expected %+v, got %+v", original, decoded)
	}
}

func TestCommandRoundTripEmptyDeltas(t *testing.T) {
	original := Command{Type: CommandTPrune, Address: "raft-node-2:8080"}

	var decoded Command
	if err := decoded.Deserialize(original.Serialize()); err != nil {
		t.Fatalf("Deserialize failed: %v", err)
	}
	if decoded.Address != original.Address || decoded.Type != CommandTPrune {
		t.Errorf("Expected %+v, got %+v", original, decoded)
	}
	if len(decoded.Inserts) != 0 || len(decoded.Deletes) != 0 {
		t.Errorf("Expected empty deltas, got %+v", decoded)
	}
}

func TestCommandDeserializeTruncated(t *testing.T) {
	data := (&Command{Type: CommandTMerge, Address: "node", Inserts: []string{"g|x"}}).Serialize()

	for _, n := range []int{0, 3, len(data) - 1} {
		var decoded Command
		if err := decoded.Deserialize(data[:n]); err == nil {
			t.Errorf("Expected error for %d-byte prefix", n)
		}
	}
}

func TestCommandDeserializeTrailingBytes(t *testing.T) {
	data := (&Command{Type: CommandTPrune, Address: "node"}).Serialize()

	var decoded Command
	if err := decoded.Deserialize(append(data, 0xff)); err == nil {
		t.Errorf("Expected error for trailing bytes")
	}
}
