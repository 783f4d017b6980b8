package relation

import (
	"sort"
	"strings"
)

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

// Entry is one subscriber's claim as returned by Entries().
type Entry[S comparable] struct {
	Subscriber S
	Group      string // "" means ungrouped
	Labels     []string
}

// Claim is a (group, label-set) pair without the owning subscriber,
// as returned by ExportByGroup().
type Claim struct {
	Group  string // "" means ungrouped
	Labels []string
}

// claim is the internal per-subscriber record
type claim struct {
	group  string
	labels map[string]struct{}
}

// --------------------------------------------------------------------------
// Relation
// --------------------------------------------------------------------------

// Relation is the local subscriber -> (group, label-set) mapping with
// derived label and group indices.
//
// Thread-safety: none. A Relation must be owned by a single goroutine.
type Relation[S comparable] struct {
	bySubscriber map[S]claim
	byLabel      map[string]map[S]struct{} // label -> owning subscribers
	byGroup      map[string]map[S]struct{} // group -> member subscribers (non-empty groups only)
}

// New creates an empty Relation.
func New[S comparable]() *Relation[S] {
	return &Relation[S]{
		bySubscriber: make(map[S]claim),
		byLabel:      make(map[string]map[S]struct{}),
		byGroup:      make(map[string]map[S]struct{}),
	}
}

// Put registers or overwrites the claim of a subscriber.
// No conflict checking is done here - callers must validate first.
func (r *Relation[S]) Put(subscriber S, group string, labels []string) {
	// Drop any previous claim of this subscriber first so the indices
	// never hold stale entries.
	r.Remove(subscriber)

	labelSet := make(map[string]struct{}, len(labels))
	for _, label := range labels {
		labelSet[label] = struct{}{}

		owners, ok := r.byLabel[label]
		if !ok {
			owners = make(map[S]struct{})
			r.byLabel[label] = owners
		}
		owners[subscriber] = struct{}{}
	}

	if group != "" {
		members, ok := r.byGroup[group]
		if !ok {
			members = make(map[S]struct{})
			r.byGroup[group] = members
		}
		members[subscriber] = struct{}{}
	}

	r.bySubscriber[subscriber] = claim{group: group, labels: labelSet}
}

// Remove unregisters a subscriber and all its claims. Idempotent.
func (r *Relation[S]) Remove(subscriber S) {
	c, ok := r.bySubscriber[subscriber]
	if !ok {
		return
	}

	for label := range c.labels {
		if owners, ok := r.byLabel[label]; ok {
			delete(owners, subscriber)
			if len(owners) == 0 {
				delete(r.byLabel, label)
			}
		}
	}

	if c.group != "" {
		if members, ok := r.byGroup[c.group]; ok {
			delete(members, subscriber)
			if len(members) == 0 {
				delete(r.byGroup, c.group)
			}
		}
	}

	delete(r.bySubscriber, subscriber)
}

// Clear empties all state.
func (r *Relation[S]) Clear() {
	r.bySubscriber = make(map[S]claim)
	r.byLabel = make(map[string]map[S]struct{})
	r.byGroup = make(map[string]map[S]struct{})
}

// Len returns the number of registered subscribers.
func (r *Relation[S]) Len() int {
	return len(r.bySubscriber)
}

// Contains reports whether the subscriber has a registered claim.
func (r *Relation[S]) Contains(subscriber S) bool {
	_, ok := r.bySubscriber[subscriber]
	return ok
}

// --------------------------------------------------------------------------
// Lookups
// --------------------------------------------------------------------------

// GroupLabels returns the label set currently bound to a group name,
// if any local group member exists. The returned slice is sorted.
func (r *Relation[S]) GroupLabels(group string) ([]string, bool) {
	members, ok := r.byGroup[group]
	if !ok || len(members) == 0 {
		return nil, false
	}

	// All members of a group share an identical label set, any member
	// record is therefore authoritative.
	for member := range members {
		return sortedLabels(r.bySubscriber[member].labels), true
	}
	return nil, false
}

// SoleMember reports whether the subscriber is currently the only member of
// the given group. A sole member may re-declare its group with a different
// label set without conflicting with itself.
func (r *Relation[S]) SoleMember(group string, subscriber S) bool {
	members, ok := r.byGroup[group]
	if !ok || len(members) != 1 {
		return false
	}
	_, ok = members[subscriber]
	return ok
}

// ContainsLabel reports whether any local subscriber (grouped or not)
// currently owns the label.
func (r *Relation[S]) ContainsLabel(label string) bool {
	owners, ok := r.byLabel[label]
	return ok && len(owners) > 0
}

// OwnedOutsideGroup reports whether the label is owned by a subscriber other
// than the given one whose claim is not under the given group. This is the
// local admissibility question for a declaration: same-group members sharing
// the label do not conflict, everyone else does.
func (r *Relation[S]) OwnedOutsideGroup(label string, group string, subscriber S) bool {
	owners, ok := r.byLabel[label]
	if !ok {
		return false
	}
	for owner := range owners {
		if owner == subscriber {
			continue
		}
		if group != "" && r.bySubscriber[owner].group == group {
			continue
		}
		return true
	}
	return false
}

// --------------------------------------------------------------------------
// Snapshots and Export
// --------------------------------------------------------------------------

// Entries returns a full local snapshot, used for export and eviction scans.
// Label slices are sorted; the order of entries is unspecified.
func (r *Relation[S]) Entries() []Entry[S] {
	entries := make([]Entry[S], 0, len(r.bySubscriber))
	for subscriber, c := range r.bySubscriber {
		entries = append(entries, Entry[S]{
			Subscriber: subscriber,
			Group:      c.group,
			Labels:     sortedLabels(c.labels),
		})
	}
	return entries
}

// ExportByGroup deduplicates the local claims by (group, label-set) and
// returns one Claim per distinct combination. Only one literal per group is
// transmitted to the replicated store since duplicate group claims are
// already prevented locally.
func (r *Relation[S]) ExportByGroup() []Claim {
	seen := make(map[string]struct{})
	claims := make([]Claim, 0, len(r.bySubscriber))

	for _, c := range r.bySubscriber {
		labels := sortedLabels(c.labels)
		key := c.group + "\x00" + strings.Join(labels, "\x00")
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		claims = append(claims, Claim{Group: c.group, Labels: labels})
	}
	return claims
}

// sortedLabels converts a label set into a sorted slice
func sortedLabels(set map[string]struct{}) []string {
	labels := make([]string, 0, len(set))
	for label := range set {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}
