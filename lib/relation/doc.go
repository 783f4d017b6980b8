// Package relation implements the local bookkeeping for exclusive
// acknowledgement-label ownership on a single node.
//
// A Relation is a many-to-many mapping between subscriber handles and
// (group, label-set) claims. It maintains derived indices so that the
// questions the coordinator asks most often - "is this label already owned
// locally?", "which label set is bound to this group?" - are answered
// without scanning all entries.
//
// The Relation performs no conflict checking itself: callers must validate
// a claim before calling Put. It also performs no locking - by design it is
// owned and mutated by exactly one goroutine (the coordinator mailbox loop).
//
// Core Functionality:
//   - Put/Remove of subscriber claims with index maintenance
//   - O(1)-ish existence checks for labels and group bindings
//   - Deduplicated export of (group, label-set) literals for replication
//
// Invariant: the full label ownership state is reconstructible from
// Entries() at all times; no stale index entries survive a Remove.
package relation
