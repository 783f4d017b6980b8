// Package cmd implements the command-line interface for the dACK distributed
// acknowledgement coordination service. It provides a hierarchical command
// structure with operations for running the server and interacting with it
// as a client.
//
// The package is organized into several subpackages:
//
//   - ack: Commands for coordination operations (declare, release, claims, events)
//   - serve: Commands for starting and configuring the dACK server
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See dack -help for a list of all commands.
package cmd
