package cluster

import (
	"sort"
	"sync"
)

// Less is the deterministic total order over cluster node addresses.
// It must be identical on every node; byte-wise comparison of the address
// representation satisfies that without any coordination.
func Less(a, b string) bool {
	return a < b
}

// --------------------------------------------------------------------------
// View
// --------------------------------------------------------------------------

// View is an immutable, ascending-ordered set of member addresses.
type View struct {
	addresses []string // sorted ascending, unique
}

// NewView builds a view from the given addresses (deduplicated, sorted).
func NewView(addresses []string) View {
	seen := make(map[string]struct{}, len(addresses))
	unique := make([]string, 0, len(addresses))
	for _, address := range addresses {
		if _, ok := seen[address]; ok {
			continue
		}
		seen[address] = struct{}{}
		unique = append(unique, address)
	}
	sort.Strings(unique)
	return View{addresses: unique}
}

// Members returns all member addresses in ascending order.
func (v View) Members() []string {
	return append([]string(nil), v.addresses...)
}

// Contains reports whether the address is a member.
func (v View) Contains(address string) bool {
	i := sort.SearchStrings(v.addresses, address)
	return i < len(v.addresses) && v.addresses[i] == address
}

// Peers returns all members except the given own address, ascending.
func (v View) Peers(own string) []string {
	peers := make([]string, 0, len(v.addresses))
	for _, address := range v.addresses {
		if address != own {
			peers = append(peers, address)
		}
	}
	return peers
}

// MoreImportant returns all members strictly smaller than the given
// address, ascending. These are the peers whose claims dominate ours.
func (v View) MoreImportant(than string) []string {
	i := sort.SearchStrings(v.addresses, than)
	return append([]string(nil), v.addresses[:i]...)
}

// Len returns the number of members.
func (v View) Len() int {
	return len(v.addresses)
}

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IMembership is the interface for a mutable membership source.
type IMembership interface {
	// View returns the current membership view.
	View() View
	// Add registers a member address. Idempotent.
	Add(address string)
	// Remove unregisters a member address and notifies subscribers.
	// Idempotent; no notification fires for unknown addresses.
	Remove(address string)
	// SubscribeRemoved registers a listener for member removals.
	SubscribeRemoved(listener func(address string))
}

// --------------------------------------------------------------------------
// Registry Implementation
// --------------------------------------------------------------------------

type registryImpl struct {
	mu        sync.Mutex
	members   map[string]struct{}
	listeners []func(string)
}

// NewRegistry creates a membership registry seeded with the given addresses.
func NewRegistry(initial ...string) IMembership {
	members := make(map[string]struct{}, len(initial))
	for _, address := range initial {
		members[address] = struct{}{}
	}
	return &registryImpl{members: members}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see IMembership above)
// --------------------------------------------------------------------------

func (r *registryImpl) View() View {
	r.mu.Lock()
	defer r.mu.Unlock()

	addresses := make([]string, 0, len(r.members))
	for address := range r.members {
		addresses = append(addresses, address)
	}
	return NewView(addresses)
}

func (r *registryImpl) Add(address string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[address] = struct{}{}
}

func (r *registryImpl) Remove(address string) {
	r.mu.Lock()
	if _, ok := r.members[address]; !ok {
		r.mu.Unlock()
		return
	}
	delete(r.members, address)
	listeners := make([]func(string), len(r.listeners))
	copy(listeners, r.listeners)
	r.mu.Unlock()

	// Notify outside the lock, listeners may call back into the registry
	for _, listener := range listeners {
		listener(address)
	}
}

func (r *registryImpl) SubscribeRemoved(listener func(address string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, listener)
}
