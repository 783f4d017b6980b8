// Package client implements the RPC client for the distributed acknowledgement
// coordination service. It provides an implementation of the IAckClient interface
// that communicates with remote servers via RPC.
//
// The package focuses on:
//   - Transparent RPC access to a server node's coordination domain
//   - Integration with the transport and serialization layers
//   - Error handling and conversion between RPC and domain errors
//
// Key Components:
//
//   - IAckClient: The client-side contract for one coordination domain. Because
//     subscribers live on the client side, they are addressed by their string
//     identity instead of a handle; eviction signals are delivered pull-based
//     through the Events method.
//
//   - NewRPCAckClient: Factory function that creates a client for a single
//     coordination domain. All operations are forwarded to the remote server
//     via the configured transport layer.
//
// Usage Example:
//
//	// Configure the client
//	config := common.ClientConfig{TimeoutSecond: 5}
//	config.Transport.Endpoints = []string{"localhost:5000"}
//	config.Transport.RetryCount = 3
//
//	// Create the client for domain 100
//	ack, _ := client.NewRPCAckClient(100, config, tcp.NewTCPClientTransport(), serializer.NewBinarySerializer())
//
//	// Declare labels for a subscriber
//	if err := ack.Declare("consumer-1", "billing", []string{"invoice-service"}); err != nil {
//	  // conflicting claim, try different labels
//	}
//
//	// Periodically drain eviction signals
//	events, _ := ack.Events("consumer-1")
//	for _, ev := range events {
//	  // consumer-1 lost its claim and must re-declare
//	}
//
// Performance Considerations:
//
//   - For applications that frequently send large payloads, increasing ConnectionsPerEndpoint
//     can improve throughput by allowing parallel requests.
//
//   - The choice of serializer significantly affects performance. The binary serializer
//     provides the best performance and smallest payload size.
//
// Thread Safety:
//
//	All client implementations are thread-safe and can be used concurrently from
//	multiple goroutines without additional synchronization.
package client
