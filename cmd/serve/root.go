package serve

import (
	"fmt"
	"strconv"
	"strings"

	cmdUtil "github.com/ValentinKolb/dACK/cmd/util"
	"github.com/ValentinKolb/dACK/rpc/common"
	"github.com/ValentinKolb/dACK/rpc/serializer"
	"github.com/ValentinKolb/dACK/rpc/server"
	"github.com/ValentinKolb/dACK/rpc/transport"
	"github.com/ValentinKolb/dACK/rpc/transport/http"
	"github.com/ValentinKolb/dACK/rpc/transport/tcp"
	"github.com/ValentinKolb/dACK/rpc/transport/unix"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the dACK server",
		Long:    `Start the dACK server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is DACK_<flag> (e.g. DACK_TIMEOUT=15)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(initConfig)

	// add flags
	key := "domains"
	ServeCmd.PersistentFlags().String(key, "100=local", cmdUtil.WrapString("Comma-separated list of coordination domains to serve. Format: ID=TYPE where TYPE is one of: local, replicated"))

	key = "rtt-millisecond"
	ServeCmd.PersistentFlags().Int(key, 100, cmdUtil.WrapString("(Cluster Mode) RTTMillisecond defines the average Round Trip Time (RTT) in milliseconds between two NodeHost instances. \nOther raft configuration parameters (ElectionRTT=value/10, HeartbeatRTT=value/100) are derived from this value"))

	key = "snapshot-entries"
	ServeCmd.PersistentFlags().Int(key, 10, cmdUtil.WrapString("(Cluster Mode) SnapshotEntries defines how often the state machine should be snapshotted automatically. It is defined in terms of the number of applied Raft log entries. SnapshotEntries can be set to 0 to disable such automatic snapshotting (not recommended)"))

	key = "compaction-overhead"
	ServeCmd.PersistentFlags().Int(key, 5, cmdUtil.WrapString("(Cluster Mode) CompactionOverhead defines the number of snapshots that should be retained in the system. When a new snapshot is generated, the system will attempt to remove older snapshots that go beyond the specified number of retained snapshots. Recommended value is about 1/2 of SnapshotEntries"))

	key = "data-dir"
	ServeCmd.PersistentFlags().String(key, "data", cmdUtil.WrapString("(Cluster Mode) DataDir is the directory used for storing the snapshots"))

	key = "replica-id"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("(Cluster Mode) ReplicaID is the unique identifier for this NodeHost instance (e.g. 'node-1')"))

	key = "cluster-members"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("(Cluster Mode) ClusterMembers is a comma-separated list of NodeHost addresses in the format 'node-1=localhost:63001,node-2=localhost:63002,...'"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("Timeout in seconds for raft proposals and RPC handling"))

	key = "tick-interval"
	ServeCmd.PersistentFlags().Int64(key, 3000, cmdUtil.WrapString("Interval in milliseconds at which the coordinator flushes its local claims into the replicated multimap"))

	key = "poll-interval"
	ServeCmd.PersistentFlags().Int64(key, 500, cmdUtil.WrapString("(Cluster Mode) Interval in milliseconds at which the replicated multimap is polled for remote changes"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the API will listen (e.g. http:localhost:8080, /tmp/dack.sock, ...)"))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("The address on which Prometheus metrics are exposed (empty disables metrics)"))

	key = "buffer-size"
	ServeCmd.PersistentFlags().Int(key, 64, cmdUtil.WrapString("The per-request read buffer size of the server transport (in KB, ignored for http)"))

	key = "max-workers-per-conn"
	ServeCmd.PersistentFlags().Int(key, 16, cmdUtil.WrapString("Maximum number of concurrent in-flight requests per connection (ignored for http)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// parse domains
	domainsConfig := viper.GetString("domains")
	serveCmdConfig.Domains = []common.ServerDomain{}
	for _, domainConfig := range strings.Split(domainsConfig, ",") {
		parts := strings.Split(domainConfig, "=")
		if len(parts) != 2 {
			return fmt.Errorf("invalid domain format: %s (expected ID=TYPE)", domainConfig)
		}

		// Parse domain ID
		domainID, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid domain ID %s: %v", parts[0], err)
		}

		// Parse domain type
		domainType := strings.TrimSpace(parts[1])
		var serverDomainType common.ServerDomainType

		switch domainType {
		case "local":
			serverDomainType = common.DomainTypeLocal
		case "replicated":
			serverDomainType = common.DomainTypeReplicated
		default:
			return fmt.Errorf("invalid domain type: %s (expected one of: local, replicated)", domainType)
		}

		serveCmdConfig.Domains = append(serveCmdConfig.Domains, common.ServerDomain{
			DomainID: domainID,
			Type:     serverDomainType,
		})
	}

	// read the configuration from the command line flags and environment variables
	serveCmdConfig.RTTMillisecond = viper.GetUint64("rtt-millisecond")
	serveCmdConfig.SnapshotEntries = viper.GetUint64("snapshot-entries")
	serveCmdConfig.CompactionOverhead = viper.GetUint64("compaction-overhead")
	serveCmdConfig.DataDir = viper.GetString("data-dir")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.TickIntervalMS = viper.GetInt64("tick-interval")
	serveCmdConfig.PollIntervalMS = viper.GetInt64("poll-interval")
	serveCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")
	serveCmdConfig.Transport.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.Transport.BufferSize = viper.GetInt("buffer-size") * 1024
	serveCmdConfig.Transport.MaxWorkersPerConn = viper.GetInt("max-workers-per-conn")

	// parse replica id
	if id := viper.GetString("replica-id"); id != "" {
		serveCmdConfig.ReplicaID = cmdUtil.HashString(id, 0)
	} else if serveCmdConfig.HasReplicatedDomain() {
		// error only if cluster mode
		return fmt.Errorf("ReplicaId is required for replicated domains")
	}

	// parse cluster members
	if clusterMembers := viper.GetString("cluster-members"); clusterMembers != "" {
		serveCmdConfig.ClusterMembers = make(map[uint64]string)
		for _, member := range strings.Split(clusterMembers, ",") {
			parts := strings.Split(member, "=")
			if len(parts) != 2 {
				return fmt.Errorf("invalid cluster member format: %s (expected ID=address)", member)
			}
			idHash := cmdUtil.HashString(parts[0], 0)
			serveCmdConfig.ClusterMembers[idHash] = parts[1]
		}
	} else if serveCmdConfig.HasReplicatedDomain() {
		// error only if cluster mode
		return fmt.Errorf("ClusterMembers is required for replicated domains")
	}

	// test if the replica id is in the cluster members (only for cluster mode)
	if _, ok := serveCmdConfig.ClusterMembers[serveCmdConfig.ReplicaID]; !ok && serveCmdConfig.HasReplicatedDomain() {
		return fmt.Errorf("no address found for replica ID %d in cluster members", serveCmdConfig.ReplicaID)
	}

	return nil
}

// run starts the dACK server
func run(_ *cobra.Command, _ []string) error {

	// parse the serializer
	var s serializer.IRPCSerializer
	switch viper.GetString("serializer") {
	case "json":
		s = serializer.NewJSONSerializer()
	case "gob":
		s = serializer.NewGOBSerializer()
	case "binary":
		s = serializer.NewBinarySerializer()
	default:
		return fmt.Errorf("invalid serializer %s", viper.GetString("serializer"))
	}

	// Parse the transport
	var t transport.IRPCServerTransport
	switch viper.GetString("transport") {
	case "http":
		t = http.NewHttpServerTransport()
	case "tcp":
		t = tcp.NewTCPServerTransport()
	case "unix":
		t = unix.NewUnixServerTransport()
	default:
		return fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}

	serv := server.NewRPCServer(
		*serveCmdConfig,
		t,
		s,
	)

	return serv.Serve()
}

// initConfig reads in serveCmdConfig file and ENV variables if set.
func initConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("dack")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}
