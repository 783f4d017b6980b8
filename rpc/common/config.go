package common

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/lni/dragonboat/v4/config"
)

// --------------------------------------------------------------------------
// helper functions for to interface with Dragonboat (for the server util)
// --------------------------------------------------------------------------

// Dragonboat uses RTT (Round Trip Time) to determine the timing of elections and heartbeats.
// These default values are selected according to the RAFT Paper
const (
	electionRTTFactor  = 10
	heartbeatRTTFactor = 1
)

// ToDragonboatConfig converts the ServerConfig to Dragonboat Config
func (c *ServerConfig) ToDragonboatConfig(shardID uint64) config.Config {
	return config.Config{
		ReplicaID:          c.ReplicaID,
		ShardID:            shardID,
		ElectionRTT:        electionRTTFactor,
		HeartbeatRTT:       heartbeatRTTFactor,
		CheckQuorum:        true,
		SnapshotEntries:    c.SnapshotEntries,
		CompactionOverhead: c.CompactionOverhead,
		MaxInMemLogSize:    0,
	}
}

// ToNodeHostConfig creates a NodeHostConfig for Dragonboat
func (c *ServerConfig) ToNodeHostConfig() config.NodeHostConfig {
	return config.NodeHostConfig{
		WALDir:         c.DataDir,
		NodeHostDir:    c.DataDir,
		RTTMillisecond: c.RTTMillisecond,
		RaftAddress:    c.OwnAddress(),
	}
}

// --------------------------------------------------------------------------
// Shared transport configuration structs
// --------------------------------------------------------------------------

// SocketConf holds socket buffer settings shared by stream transports.
type SocketConf struct {
	WriteBufferSize int
	ReadBufferSize  int
}

// TCPConf holds TCP-specific tuning options.
type TCPConf struct {
	TCPNoDelay      bool
	TCPKeepAliveSec int
	TCPLingerSec    int
}

// ServerTransportConfig configures the listening side of a transport.
type ServerTransportConfig struct {
	// Endpoint the server listens on (address:port or socket path)
	Endpoint string
	// BufferSize is the per-request read buffer size in bytes
	BufferSize int
	// MaxWorkersPerConn limits concurrent in-flight requests per connection
	MaxWorkersPerConn int

	SocketConf
	TCPConf
}

// ClientTransportConfig configures the dialing side of a transport.
type ClientTransportConfig struct {
	Endpoints              []string
	RetryCount             int
	ConnectionsPerEndpoint int

	SocketConf
	TCPConf
}

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// ServerDomainType selects the multimap backend of a coordination domain.
type ServerDomainType string

const (
	// DomainTypeLocal serves a single-process domain over the loopback bus.
	DomainTypeLocal ServerDomainType = "local"
	// DomainTypeReplicated serves a cluster-wide domain backed by raft.
	DomainTypeReplicated ServerDomainType = "replicated"
)

// ServerDomain is one independent coordination namespace served by the node.
// The DomainID doubles as the raft shard ID for replicated domains.
type ServerDomain struct {
	DomainID uint64
	Type     ServerDomainType
}

// ServerConfig holds all configuration parameters for the ack server.
type ServerConfig struct {
	// Coordination domains served by this node
	Domains []ServerDomain

	// Dragonboat parameters
	RTTMillisecond     uint64
	SnapshotEntries    uint64
	CompactionOverhead uint64
	DataDir            string
	ReplicaID          uint64
	ClusterMembers     map[uint64]string

	// Coordination timing
	TimeoutSecond  int64
	TickIntervalMS int64 // coordinator flush period
	PollIntervalMS int64 // replicated multimap change poll period

	// Transport settings
	Transport ServerTransportConfig

	// Optional Prometheus metrics endpoint ("" disables it)
	MetricsEndpoint string

	// Logging configuration
	LogLevel string
}

// OwnAddress returns this node's cluster address. It is both the raft
// address and the conflict tie-break identity of the node.
func (c *ServerConfig) OwnAddress() string {
	return c.ClusterMembers[c.ReplicaID]
}

// HasReplicatedDomain checks if the configuration contains any raft-backed domains
func (c *ServerConfig) HasReplicatedDomain() bool {
	for _, domain := range c.Domains {
		if domain.Type == DomainTypeReplicated {
			return true
		}
	}
	return false
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// RPC settings
	addSection("RPC Server")
	addField("Endpoint", c.Transport.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	if c.MetricsEndpoint != "" {
		addField("Metrics Endpoint", c.MetricsEndpoint)
	}

	// Coordination settings
	addSection("Coordination")
	addField("Tick Interval", fmt.Sprintf("%d ms", c.TickIntervalMS))
	addField("Poll Interval", fmt.Sprintf("%d ms", c.PollIntervalMS))

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	// Domains
	addSection("Domains")
	for _, domain := range c.Domains {
		addField(strconv.FormatUint(domain.DomainID, 10), string(domain.Type))
	}

	if c.HasReplicatedDomain() {
		// Node Identity
		addSection("Node Identity")
		addField("RAFT Address", c.OwnAddress())
		addField("Node ID", strconv.FormatUint(c.ReplicaID, 10))

		// RAFT parameters
		addSection("RAFT Parameters")
		addField("Round Trip Time (ms)", fmt.Sprintf("%d ms", c.RTTMillisecond))
		addField("Election RTT (ms)", fmt.Sprintf("%d", c.RTTMillisecond*electionRTTFactor))
		addField("Heartbeat RTT (ms)", fmt.Sprintf("%d", c.RTTMillisecond*heartbeatRTTFactor))
		addField("Check Quorum", fmt.Sprintf("%t", true))
		addField("Snapshot Entries", fmt.Sprintf("%d", c.SnapshotEntries))
		addField("Compaction Overhead", fmt.Sprintf("%d", c.CompactionOverhead))

		// Storage
		addSection("Storage")
		addField("Data Directory", c.DataDir)

		// Cluster membership
		addSection("Cluster")
		sb.WriteString("  Initial Cluster Members:\n")

		// Sort keys for consistent output
		var keys []uint64
		for k := range c.ClusterMembers {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

		for _, k := range keys {
			sb.WriteString(fmt.Sprintf("    Node %d: %s\n", k, c.ClusterMembers[k]))
		}
	}
	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

type ClientConfig struct {
	TimeoutSecond int
	Transport     ClientTransportConfig
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// General Client Settings
	addSection("Client Configuration")
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Retry Count", strconv.Itoa(c.Transport.RetryCount))
	addField("Connections Per Endpoint", strconv.Itoa(int(math.Max(1, float64(c.Transport.ConnectionsPerEndpoint)))))

	// Endpoints
	addSection("Endpoints")
	for i, endpoint := range c.Transport.Endpoints {
		addField(strconv.Itoa(i), endpoint)
	}

	return sb.String()
}
