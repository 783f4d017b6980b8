package internal

import (
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/dACK/lib/ddata"
)

// CommandType defines the possible operations for the state machine.
type CommandType uint8

const (
	CommandTMerge CommandType = iota // Merge a literal delta into one address key.
	CommandTPrune                    // Drop the full contribution of one address.
)

func (ct CommandType) String() string {
	switch ct {
	case CommandTMerge:
		return "Merge"
	case CommandTPrune:
		return "Prune"
	default:
		return fmt.Sprintf("Unknown(%d)", ct)
	}
}

// Command represents a single entry in the raft log: one mutation of the
// replicated multimap.
type Command struct {
	Type    CommandType
	Address string   // the multimap key the mutation applies to
	Inserts []string // encoded literals to add (Merge only)
	Deletes []string // encoded literals to remove (Merge only)
}

// SizeBytes returns the exact number of bytes needed to serialize this command
func (command *Command) SizeBytes() int {
	size := 1 + 4 + len(command.Address) // Type + AddressLen + Address
	size += 4                            // Insert count
	for _, literal := range command.Inserts {
		size += 4 + len(literal)
	}
	size += 4 // Delete count
	for _, literal := range command.Deletes {
		size += 4 + len(literal)
	}
	return size
}

/*
 Serialized format:
 1 byte for operation type,
 4 bytes for address length (big endian) + N bytes address,
 4 bytes insert count, per insert 4 bytes length + N bytes literal,
 4 bytes delete count, per delete 4 bytes length + N bytes literal
*/

// Serialize serializes a command into a byte array.
func (command *Command) Serialize() []byte {
	result := make([]byte, 0, command.SizeBytes())

	result = append(result, byte(command.Type))
	result = appendString(result, command.Address)
	result = appendStringSlice(result, command.Inserts)
	result = appendStringSlice(result, command.Deletes)

	return result
}

// Deserialize extracts all Command fields from a byte array.
func (command *Command) Deserialize(data []byte) error {
	if len(data) < 1 {
		return fmt.Errorf("data too short for command")
	}
	command.Type = CommandType(data[0])

	rest := data[1:]
	var err error
	if command.Address, rest, err = readString(rest); err != nil {
		return fmt.Errorf("reading address: %w", err)
	}
	if command.Inserts, rest, err = readStringSlice(rest); err != nil {
		return fmt.Errorf("reading inserts: %w", err)
	}
	if command.Deletes, rest, err = readStringSlice(rest); err != nil {
		return fmt.Errorf("reading deletes: %w", err)
	}
	if len(rest) != 0 {
		return fmt.Errorf("%d trailing bytes after command", len(rest))
	}
	return nil
}

func appendString(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

func appendStringSlice(buf []byte, values []string) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(values)))
	for _, v := range values {
		buf = appendString(buf, v)
	}
	return buf
}

func readString(data []byte) (string, []byte, error) {
	if len(data) < 4 {
		return "", nil, fmt.Errorf("missing length prefix")
	}
	n := binary.BigEndian.Uint32(data)
	data = data[4:]
	if uint32(len(data)) < n {
		return "", nil, fmt.Errorf("truncated string (want %d bytes, have %d)", n, len(data))
	}
	return string(data[:n]), data[n:], nil
}

func readStringSlice(data []byte) ([]string, []byte, error) {
	if len(data) < 4 {
		return nil, nil, fmt.Errorf("missing count prefix")
	}
	count := binary.BigEndian.Uint32(data)
	data = data[4:]

	var values []string
	for i := uint32(0); i < count; i++ {
		var v string
		var err error
		if v, data, err = readString(data); err != nil {
			return nil, nil, err
		}
		values = append(values, v)
	}
	return values, data, nil
}

// --------------------------------------------------------------------------
// Queries
// --------------------------------------------------------------------------

// QueryType defines the possible read operations for the state machine.
type QueryType uint8

const (
	QueryTSnapshot QueryType = iota // Full merged snapshot plus revision.
	QueryTRevision                  // Revision counter only.
)

// Query represents a read-only request against the state machine.
type Query struct {
	Type QueryType
}

// SnapshotResult is the answer to a QueryTSnapshot request.
type SnapshotResult struct {
	Revision uint64
	Snapshot ddata.Snapshot
}
