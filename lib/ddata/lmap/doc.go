// Package lmap provides an in-process implementation of the replicated
// multimap. All node handles join a shared Bus; writes are merged under the
// bus lock and the resulting merged snapshot is fanned out asynchronously to
// every joined handle.
//
// This implementation is not distributed and only works inside a single
// process. It serves two purposes: single-node deployments that do not need
// a raft-backed map, and multi-node simulation in tests, where several
// coordinator instances with distinct addresses join the same Bus and
// observe each other's claims exactly like they would through dmap.
//
// Delivery Guarantees:
//   - every handle observes a complete merged snapshot, never a partial key
//   - intermediate snapshots may be coalesced, the last one always arrives
//   - notification order per handle matches merge order on the bus
package lmap
