// Package ddata defines the replicated multimap abstraction the ack
// coordinator replicates its claims through, plus the literal codec used to
// serialize (group, label-set) claims into the map.
//
// The multimap is keyed by cluster node address; the value for a key is the
// set of literals that node currently claims. Each node only ever writes
// under its own address key, so the storage layer never sees cross-node
// write conflicts - merging is per-key set union. All semantic conflict
// resolution (label and group exclusivity) happens above this layer in the
// coordinator package.
//
// Two implementations are provided:
//   - lmap: an in-process loopback bus, for single-process deployments and
//     multi-node simulation in tests
//   - dmap: a dragonboat-replicated state machine, for real clusters
//
// All write operations return only an *Error (nil on success); observations
// are push-based via Subscribe and always deliver a complete merged view.
package ddata
