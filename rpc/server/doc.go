// Package server implements the RPC server for the distributed acknowledgement
// coordination service. It provides an adapter for handling RPC requests against
// a coordination domain, along with the core server implementation that manages
// domains and request routing.
//
// The package focuses on:
//   - Server-side RPC request handling for the ack coordination verbs
//   - Adapter pattern to decouple coordination logic from RPC mechanisms
//   - Flexible domain configuration with support for local and replicated backends
//   - Pull-based delivery of eviction signals to remote subscribers
//
// Key Components:
//
//   - IRPCServerAdapter: Interface defining the contract for all server adapters,
//     with the Handle method that processes incoming requests against a
//     coordinator.ICoordinator.
//
//   - NewAckServerAdapter: Factory function creating an adapter for coordination
//     operations, translating RPC requests to coordinator method calls. The adapter
//     keeps a registry of remote subscriber handles; when the coordinator evicts
//     one, the terminal signal is buffered until the client drains it with an
//     events request.
//
//   - NewRPCServer: Factory function creating a configured server with the specified
//     transport and serializer mechanisms.
//
// Usage Example:
//
//	// Create server configuration
//	config := common.ServerConfig{
//	  Domains: []common.ServerDomain{
//	    {DomainID: 100, Type: common.DomainTypeLocal},
//	    {DomainID: 200, Type: common.DomainTypeReplicated},
//	  },
//	  TimeoutSecond: 5,
//	  LogLevel: "info",
//	}
//	config.Transport.Endpoint = "0.0.0.0:8080"
//
//	// Create and start the server
//	s := server.NewRPCServer(
//	  config,
//	  tcp.NewTCPServerTransport(),
//	  serializer.NewBinarySerializer(),
//	)
//
//	// Start the server
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// The server supports two types of domains, which can be mixed within a single server:
//
//   - DomainTypeLocal: A loopback domain whose multimap lives in process memory.
//     Suitable for single-node deployments or development environments.
//
//   - DomainTypeReplicated: A cluster-wide domain whose multimap is replicated via
//     Raft consensus. When using this type, RAFT configuration (RTTMillisecond,
//     SnapshotEntries, CompactionOverhead, DataDir, ReplicaID, and ClusterMembers)
//     must be properly configured.
//
// Thread Safety:
//
//	The server implementation is thread-safe and can handle concurrent requests
//	across multiple connections. Each request is processed independently.
//	The Serve method is not thread-safe and should be called only once.
package server
