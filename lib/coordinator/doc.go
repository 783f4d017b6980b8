/*
Package coordinator implements the per-node acknowledgement label
coordinator.

Subscribers declare sets of acknowledgement labels, optionally under a
named group. Labels are exclusive cluster-wide: an ungrouped label has at
most one owner, and a group name is bound to exactly one label set. Local
declarations are checked synchronously against the local relation and the
last observation of every peer's claims; accepted claims are flushed to the
replicated multimap on a periodic tick as a literal diff.

Conflicts between nodes that declared concurrently are resolved without any
coordination round: every node folds the merged multimap in ascending
address order, so all nodes agree that the smallest-address claimant of a
label or group wins. A node only ever evicts its own subscribers, and only
against peers with strictly smaller addresses - the winner is never
disturbed.

All coordinator state is owned by a single goroutine fed through a
lock-free mailbox; the public methods only enqueue messages. This removes
locking from the hot path and makes the eviction scans naturally atomic
with respect to declarations.

Thread-safety: all ICoordinator methods are safe for concurrent use.
*/
package coordinator
