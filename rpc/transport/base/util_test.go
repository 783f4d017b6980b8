package base

import (
	"bytes"
	"net"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	payload := []byte("declare request payload")

	go func() {
		if err := writeFrame(client, 42, 7, payload); err != nil {
			t.Errorf("writeFrame failed: %v", err)
		}
	}()

	domainID, requestID, data, err := readFrame(server, make([]byte, 64))
	if err != nil {
		t.Fatalf("readFrame failed: %v", err)
	}
	if domainID != 42 {
		t.Errorf("Expected domain ID 42, got %d", domainID)
	}
	if requestID != 7 {
		t.Errorf("Expected request ID 7, got %d", requestID)
	}
	if !bytes.Equal(data, payload) {
		t.Errorf("Expected payload %q, got %q", payload, data)
	}
}

func TestFrameEmptyPayload(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	go func() {
		if err := writeFrame(client, 1, 2, nil); err != nil {
			t.Errorf("writeFrame failed: %v", err)
		}
	}()

	domainID, requestID, data, err := readFrame(server, nil)
	if err != nil {
		t.Fatalf("readFrame failed: %v", err)
	}
	if domainID != 1 || requestID != 2 {
		t.Errorf("Expected header (1, 2), got (%d, %d)", domainID, requestID)
	}
	if len(data) != 0 {
		t.Errorf("Expected empty payload, got %d bytes", len(data))
	}
}

func TestFrameLargerThanBuffer(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	payload := bytes.Repeat([]byte("x"), 1024)

	go func() {
		if err := writeFrame(client, 3, 4, payload); err != nil {
			t.Errorf("writeFrame failed: %v", err)
		}
	}()

	// Undersized buffer forces a temporary allocation
	_, _, data, err := readFrame(server, make([]byte, 32))
	if err != nil {
		t.Fatalf("readFrame failed: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Errorf("Payload mismatch for oversized frame")
	}
}
