/*
Package dmap implements the replicated multimap on top of Dragonboat RAFT.

Every cluster node writes its encoded literals under its own address key,
so concurrent writers never touch the same key and the merge function is a
plain per-key set union applied by the state machine. Deltas (inserts and
deletes of literals) travel through the raft log as compact binary
commands; the full map is only materialized for reads and snapshots.

Change notification is pull-based: the state machine keeps a revision
counter that is bumped on every effective mutation, and each handle polls
it, fanning out the merged snapshot to subscribers when the revision moved.
This trades latency (bounded by the poll interval) for a transport-free
implementation; the coordinator tolerates observation lag by design.

The loopback implementation in the sibling package lmap provides the same
interface for tests and single-process deployments.
*/
package dmap
