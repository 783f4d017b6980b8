// Package tcp implements TCP socket-based transport for the acknowledgement
// coordination service's RPC system. It provides concrete implementations of the
// base package's connector interfaces optimized for TCP connections.
//
// This package builds on the base package's transport functionality, inheriting its
// performance optimizations including connection pooling, buffer reuse, and request
// routing. See the base package documentation for detailed information on the underlying
// transport mechanisms and performance characteristics.
//
// Key Components:
//
//   - clientConnector: TCP-specific implementation of base.IClientConnector
//
//   - serverConnector: TCP-specific implementation of base.IServerConnector
//
// Both connectors apply the same socket tuning (no-delay, keep-alive, linger,
// kernel buffer sizes) from the transport configuration when a connection is
// established or accepted.
package tcp
