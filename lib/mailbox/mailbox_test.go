package mailbox

import (
	"sync"
	"testing"
	"time"
)

// TestPushAndReceive tests basic push and consume functionality
func TestPushAndReceive(t *testing.T) {
	m := New[int]()
	defer m.Close()

	// Push 10 items
	for i := 0; i < 10; i++ {
		v := i
		if !m.Push(&v) {
			t.Fatalf("Failed to push item %d", i)
		}
	}

	// Consume 10 items
	for i := 0; i < 10; i++ {
		select {
		case val := <-m.Recv():
			if *val != i {
				t.Errorf("Expected %d, got %v", i, *val)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("Timeout waiting for item %d", i)
		}
	}

	// Make sure the mailbox is empty
	select {
	case val := <-m.Recv():
		t.Errorf("Mailbox should be empty, but got %v", val)
	case <-time.After(10 * time.Millisecond):
		// Expected timeout, mailbox is empty
	}
}

// TestConcurrentProducers verifies the mailbox works correctly with multiple producers
func TestConcurrentProducers(t *testing.T) {
	m := New[int]()
	defer m.Close()

	const numProducers = 8
	const itemsPerProducer = 500
	totalItems := numProducers * itemsPerProducer

	received := make(map[int]bool)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for len(received) < totalItems {
			select {
			case val := <-m.Recv():
				if val == nil {
					t.Errorf("Received nil item")
					return
				}
				if received[*val] {
					t.Errorf("Duplicate item received: %d", *val)
				}
				received[*val] = true
			case <-time.After(2 * time.Second):
				t.Errorf("Timeout waiting for items, received %d of %d", len(received), totalItems)
				return
			}
		}
	}()

	var wg sync.WaitGroup
	wg.Add(numProducers)
	for p := 0; p < numProducers; p++ {
		go func(producerID int) {
			defer wg.Done()
			base := producerID * itemsPerProducer
			for i := 0; i < itemsPerProducer; i++ {
				v := base + i
				if !m.Push(&v) {
					t.Errorf("Producer %d failed to push item %d", producerID, i)
				}
			}
		}(p)
	}

	wg.Wait()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("Timeout waiting for consumer to finish")
	}
}

// TestCloseDrainsRemainingItems verifies items pushed before Close are still delivered
func TestCloseDrainsRemainingItems(t *testing.T) {
	m := New[int]()

	for i := 0; i < 100; i++ {
		v := i
		if !m.Push(&v) {
			t.Fatalf("Failed to push item %d", i)
		}
	}

	m.Close()

	if !m.IsClosed() {
		t.Errorf("Expected mailbox to report closed")
	}

	// Push after close must be rejected
	v := 1000
	if m.Push(&v) {
		t.Errorf("Push succeeded on closed mailbox")
	}

	// All 100 items must still arrive, then the channel must close
	count := 0
	for val := range m.Recv() {
		if *val != count {
			t.Errorf("Expected %d, got %d", count, *val)
		}
		count++
	}
	if count != 100 {
		t.Errorf("Expected 100 drained items, got %d", count)
	}
}
