package lmap

import (
	"sync"

	"github.com/ValentinKolb/dACK/lib/ddata"
	"github.com/ValentinKolb/dACK/lib/mailbox"
)

// --------------------------------------------------------------------------
// Bus
// --------------------------------------------------------------------------

// Bus is the shared merge point all loopback handles join.
//
// Thread-safety: all methods are safe for concurrent use.
type Bus struct {
	mu      sync.Mutex
	data    map[string]map[string]struct{} // address -> literal set
	handles []*mapImpl
}

// NewBus creates an empty loopback bus.
func NewBus() *Bus {
	return &Bus{
		data: make(map[string]map[string]struct{}),
	}
}

// Join creates a new multimap handle writing under the given address.
func (b *Bus) Join(ownAddress string) ddata.IMultimap {
	handle := &mapImpl{
		bus:        b,
		ownAddress: ownAddress,
		inbox:      mailbox.New[ddata.Snapshot](),
	}

	// One delivery goroutine per handle keeps listener callbacks off the
	// writer's goroutine.
	go handle.deliver()

	b.mu.Lock()
	b.handles = append(b.handles, handle)
	b.mu.Unlock()

	return handle
}

// apply merges an update under the given address key and fans the merged
// snapshot out to all joined handles.
func (b *Bus) apply(address string, mutate func(set map[string]struct{}) bool) {
	b.mu.Lock()

	set, ok := b.data[address]
	if !ok {
		set = make(map[string]struct{})
		b.data[address] = set
	}

	changed := mutate(set)
	if len(set) == 0 {
		delete(b.data, address)
	}

	if !changed {
		b.mu.Unlock()
		return
	}

	snapshot := b.snapshotLocked()
	handles := make([]*mapImpl, len(b.handles))
	copy(handles, b.handles)
	b.mu.Unlock()

	for _, handle := range handles {
		s := snapshot
		handle.inbox.Push(&s)
	}
}

// snapshotLocked builds a deep copy of the current merged state.
// Callers must hold b.mu.
func (b *Bus) snapshotLocked() ddata.Snapshot {
	snapshot := make(ddata.Snapshot, len(b.data))
	for address, set := range b.data {
		literals := make([]string, 0, len(set))
		for literal := range set {
			literals = append(literals, literal)
		}
		snapshot[address] = literals
	}
	return snapshot
}

// detach removes a closed handle from the fan-out list
func (b *Bus) detach(handle *mapImpl) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, h := range b.handles {
		if h == handle {
			b.handles = append(b.handles[:i], b.handles[i+1:]...)
			return
		}
	}
}

// --------------------------------------------------------------------------
// Handle
// --------------------------------------------------------------------------

type mapImpl struct {
	bus        *Bus
	ownAddress string
	inbox      *mailbox.Mailbox[ddata.Snapshot]

	listenersMu sync.Mutex
	listeners   []func(ddata.Snapshot)
}

// deliver pumps merged snapshots from the inbox to the registered listeners
func (m *mapImpl) deliver() {
	for snapshot := range m.inbox.Recv() {
		m.listenersMu.Lock()
		listeners := make([]func(ddata.Snapshot), len(m.listeners))
		copy(listeners, m.listeners)
		m.listenersMu.Unlock()

		for _, listener := range listeners {
			listener(*snapshot)
		}
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see ddata/interface.go)
// --------------------------------------------------------------------------

func (m *mapImpl) OwnAddress() string {
	return m.ownAddress
}

func (m *mapImpl) Write(update ddata.Update, _ ddata.Consistency) error {
	if m.inbox.IsClosed() {
		return ddata.NewError(ddata.RetCClosed, "write on closed multimap handle")
	}

	m.bus.apply(m.ownAddress, func(set map[string]struct{}) bool {
		changed := false
		for _, literal := range update.Deletes {
			if _, ok := set[literal]; ok {
				delete(set, literal)
				changed = true
			}
		}
		for _, literal := range update.Inserts {
			if _, ok := set[literal]; !ok {
				set[literal] = struct{}{}
				changed = true
			}
		}
		return changed
	})
	return nil
}

func (m *mapImpl) Delete(address string) error {
	if m.inbox.IsClosed() {
		return ddata.NewError(ddata.RetCClosed, "delete on closed multimap handle")
	}

	m.bus.apply(address, func(set map[string]struct{}) bool {
		if len(set) == 0 {
			return false
		}
		for literal := range set {
			delete(set, literal)
		}
		return true
	})
	return nil
}

func (m *mapImpl) Subscribe(listener func(ddata.Snapshot)) {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()
	m.listeners = append(m.listeners, listener)
}

func (m *mapImpl) Snapshot() ddata.Snapshot {
	m.bus.mu.Lock()
	defer m.bus.mu.Unlock()
	return m.bus.snapshotLocked()
}

func (m *mapImpl) Close() error {
	m.inbox.Close()
	m.bus.detach(m)
	return nil
}
