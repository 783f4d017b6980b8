// Package cluster provides the membership view the ack coordinator resolves
// conflicts against.
//
// Cluster node addresses are totally ordered by the fixed comparator Less
// (byte-wise lexicographic). This order is the sole conflict tie-break of
// the coordination algorithm: when two nodes claim a conflicting label or
// group, the node with the smaller address wins and the loser revokes its
// claim. Because the comparator is deterministic and identical on every
// node, no coordination round is needed to agree on a winner.
//
// The Registry is a plain membership list fed by whatever discovery
// mechanism hosts the coordinator (static configuration in the bundled
// server). Removal notifications are pushed to subscribers so a departed
// node's replicated contribution can be dropped from consideration.
package cluster
