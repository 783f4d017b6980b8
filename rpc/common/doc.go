// Package common provides the shared building blocks of the RPC system:
// the wire message structure with its factory functions, the server and
// client configuration structs, and the logger setup.
//
// The Message struct is deliberately flat: one struct serves every request
// and response type, with the MsgType field selecting which fields carry
// meaning. This keeps the serializers simple and allows a single framed
// byte payload per operation.
//
// Configuration follows the convention of the rest of the system: a
// ServerConfig describes one node (its coordination domains, raft
// parameters and transport endpoint), a ClientConfig describes how to
// reach a set of nodes.
package common
