// Package mailbox provides a lock-free Multi-Producer Single-Consumer (MPSC)
// queue used to serialize all work of a coordinator onto one goroutine.
//
// Features and Guarantees:
//
//   - Lock-Free enqueue: atomic operations for low latency even under high contention
//   - Unbounded Size: the queue can grow as needed, limited only by available memory
//   - Thread-Safe writes: any number of goroutines can safely Push() concurrently
//   - Single Consumer: one goroutine consumes values via the Recv() channel
//   - Close-Drain: items already enqueued when Close() is called are still delivered
package mailbox

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// node represents a single element in the queue
type node[T any] struct {
	value *T
	next  atomic.Pointer[node[T]]
}

// Mailbox is a lock-free multi-producer single-consumer queue.
// Implementation uses a linked list of nodes with atomic operations
// for concurrent push operations without locks.
type Mailbox[T any] struct {
	head     atomic.Pointer[node[T]]
	tail     atomic.Pointer[node[T]]
	out      chan *T
	consumer sync.WaitGroup
	closed   atomic.Bool

	// Condition variable for efficient waiting
	mu   sync.Mutex
	cond *sync.Cond
}

// New creates a new mailbox and starts its internal consumer pump.
func New[T any]() *Mailbox[T] {
	// Sentinel node (dummy node at the beginning)
	sentinel := &node[T]{}

	m := &Mailbox[T]{
		out: make(chan *T),
	}

	m.cond = sync.NewCond(&m.mu)

	m.head.Store(sentinel)
	m.tail.Store(sentinel)

	m.consumer.Add(1)
	go m.pump()

	return m
}

// Push adds an item to the mailbox.
// Returns true if the item was added, or false if the mailbox is closed.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (m *Mailbox[T]) Push(value *T) bool {

	if value == nil {
		return false
	}

	if m.closed.Load() {
		return false
	}

	newNode := &node[T]{value: value}

	var tailNode *node[T]
	var backoff uint8 = 0

	for {
		tailNode = m.tail.Load()

		// try to atomically append our node to the current tail
		next := tailNode.next.Load()
		if next == nil {
			if tailNode.next.CompareAndSwap(nil, newNode) {
				/*
				 Successfully appended, now try to update tail.
				 Note: CAS may fail if another producer helps update tail,
				 but that's okay - tail will still be updated eventually.
				*/
				m.tail.CompareAndSwap(tailNode, newNode)

				// Signal the consumer that new data is available
				m.cond.Signal()

				return true
			}
		} else {
			// help update the tail pointer if another producer has already
			// appended a node but hasn't updated the tail yet
			m.tail.CompareAndSwap(tailNode, next)
		}

		// Exponential backoff to handle contention: spin at low retry counts,
		// yield the processor at higher ones.
		if backoff < 10 {
			backoff++
			for i := 0; i < 1<<backoff; i++ {
				runtime.Gosched()
			}
		}
		runtime.Gosched()
	}
}

// pump continuously moves items from the linked list to the output channel
func (m *Mailbox[T]) pump() {
	defer m.consumer.Done()
	defer close(m.out)

	for {
		hasItems := false

		for {
			head := m.head.Load()
			next := head.next.Load()

			if next == nil {
				break // No more items available
			}

			hasItems = true

			// Capture value before updating pointers
			value := next.value

			// move head pointer (free up memory)
			m.head.Store(next)

			// Send the value to the consumer
			m.out <- value

			// help go gc - safe to clear after sending
			next.value = nil
		}

		// Exit if closed and no more items
		if !hasItems && m.closed.Load() {
			return
		}

		// If no items were processed, wait for signal
		if !hasItems {
			m.mu.Lock()
			// Double-check condition after acquiring lock
			head := m.head.Load()
			if head.next.Load() == nil && !m.closed.Load() {
				m.cond.Wait()
			}
			m.mu.Unlock()
		}
	}
}

// Recv returns a receive-only channel for consuming from the mailbox.
// The channel is closed after Close() once all remaining items are delivered.
func (m *Mailbox[T]) Recv() <-chan *T {
	return m.out
}

// Close closes the mailbox, preventing further writes.
// Any items already in the mailbox will still be delivered to the consumer.
func (m *Mailbox[T]) Close() {
	m.closed.Store(true)

	// Wake up the consumer if it's waiting
	m.cond.Signal()
}

// IsClosed returns true if the mailbox is closed.
func (m *Mailbox[T]) IsClosed() bool {
	return m.closed.Load()
}
