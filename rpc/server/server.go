package server

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/ValentinKolb/dACK/lib/cluster"
	"github.com/ValentinKolb/dACK/lib/coordinator"
	"github.com/ValentinKolb/dACK/lib/ddata"
	"github.com/ValentinKolb/dACK/lib/ddata/dmap"
	"github.com/ValentinKolb/dACK/lib/ddata/lmap"
	"github.com/ValentinKolb/dACK/lib/relation"
	"github.com/ValentinKolb/dACK/rpc/common"
	"github.com/ValentinKolb/dACK/rpc/serializer"
	"github.com/ValentinKolb/dACK/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("rpc")

// localDomainAddress is the single member address of loopback domains
const localDomainAddress = "local"

// serverDomain is a struct that represents a coordination domain in the RPC
// server. It contains the coordinator it encapsulates and the adapter that
// handles requests for the coordinator
type serverDomain struct {
	Coordinator coordinator.ICoordinator
	Adapter     IRPCServerAdapter
}

// NewRPCServer creates a new RPC server
// It takes a config, transport and serializer as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		tcp.NewTCPServerTransport(),
//		serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	 }
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) rpcServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	// Create domains map
	domainMap := xsync.NewMapOf[uint64, serverDomain]()

	Logger.Infof("Created RPC Server")
	Logger.Infof(config.String())

	// Create the RPC server
	return rpcServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		domains:    domainMap,
	}
}

type rpcServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	domains    *xsync.MapOf[uint64, serverDomain]
}

func (s *rpcServer) registerTransportHandler() {
	s.transport.RegisterHandler(func(domainId uint64, req []byte) []byte {
		var msg common.Message
		var respMsg common.Message

		// Get appropriate domain
		domain, ok := s.domains.Load(domainId)

		// Case domain does not exist -> error
		if !ok {
			respMsg = common.Message{
				MsgType: common.MsgTError,
				Err:     "domain not found",
			}
		} else {
			// Decode the request
			err := s.serializer.Deserialize(req, &msg)

			if err != nil {
				respMsg = common.Message{
					MsgType: common.MsgTError,
					Err:     fmt.Sprintf("failed to deserialize request: %s", err),
				}
			} else {
				// Count the request per domain and verb
				metrics.GetOrCreateCounter(fmt.Sprintf(
					`ack_rpc_requests_total{domain=%q,verb=%q}`, fmt.Sprint(domainId), msg.MsgType,
				)).Inc()

				// Let the adapter handle the request
				respMsg = *domain.Adapter.Handle(&msg, domain.Coordinator)
			}
		}

		// Return result
		val, err := s.serializer.Serialize(respMsg)
		if err != nil {
			Logger.Errorf("failed to serialize response: %s", err)
			return nil
		}
		return val
	})
}

func (s *rpcServer) init() error {

	// Init logger
	common.InitLoggers(s.config)

	// Create the Dragonboat NodeHost
	var nodeHost *dragonboat.NodeHost
	var err error
	if s.config.HasReplicatedDomain() {
		// Only create the NodeHost if we have replicated domains
		nodeHost, err = dragonboat.NewNodeHost(s.config.ToNodeHostConfig())
		if err != nil {
			return fmt.Errorf("failed to create node host: %w", err)
		}
	}

	// Configure the timeouts for the replicated multimap and the coordinator
	timeout := time.Duration(s.config.TimeoutSecond) * time.Second
	pollInterval := time.Duration(s.config.PollIntervalMS) * time.Millisecond
	opts := coordinator.Options{
		TickInterval: time.Duration(s.config.TickIntervalMS) * time.Millisecond,
	}

	// CREATE DOMAINS

	/*
		Note: A single RPC Server can have any number of replicated and or local
		domains. Each domain is an independent coordination namespace with its
		own multimap backend and coordinator. The following loop creates all
		the domains and stores them for the RPC server.
	*/

	for _, domainConfig := range s.config.Domains {

		var store ddata.IMultimap
		var membership cluster.IMembership

		switch domainConfig.Type {

		// Case local domain: single-member loopback bus
		case common.DomainTypeLocal:
			store = lmap.NewBus().Join(localDomainAddress)
			membership = cluster.NewRegistry(localDomainAddress)
			Logger.Infof("created local domain %d", domainConfig.DomainID)

		// Case replicated domain: raft-backed multimap
		case common.DomainTypeReplicated:
			if nodeHost == nil {
				return fmt.Errorf("node host is nil, cannot create replicated domain")
			}

			// Start Raft for the domain
			if err := nodeHost.StartConcurrentReplica(
				s.config.ClusterMembers,
				false,
				dmap.CreateStateMachineFactory(),
				s.config.ToDragonboatConfig(domainConfig.DomainID),
			); err != nil {
				return fmt.Errorf("failed to start domain %v: %v", domainConfig.DomainID, err)
			}

			store = dmap.NewDistributedMultimap(nodeHost, domainConfig.DomainID, s.config.OwnAddress(), timeout, pollInterval)

			members := make([]string, 0, len(s.config.ClusterMembers))
			for _, address := range s.config.ClusterMembers {
				members = append(members, address)
			}
			membership = cluster.NewRegistry(members...)
			Logger.Infof("created replicated domain %d", domainConfig.DomainID)

		default:
			return fmt.Errorf("invalid domain type: %s", domainConfig.Type)
		}

		// Create the coordinator on top of the multimap
		coord := coordinator.New(store, membership, opts)
		coord.RegisterLocalListener(newClaimsRelay(domainConfig.DomainID))

		s.domains.Store(domainConfig.DomainID, serverDomain{
			Coordinator: coord,
			Adapter:     NewAckServerAdapter(),
		})
	}

	Logger.Infof("dACK setup completed successfully")

	// Start the metrics endpoint if configured
	s.serveMetrics()

	// Configure the transport layer
	s.registerTransportHandler()

	return nil
}

// Serve starts the RPC server
// This function will also initialize the server plus the domains and start the transport layer
func (s *rpcServer) Serve() error {
	err := s.init()
	if err != nil {
		return err
	}
	return s.transport.Listen(s.config)
}

// serveMetrics exposes all registered metrics in Prometheus text format
func (s *rpcServer) serveMetrics() {
	if s.config.MetricsEndpoint == "" {
		return
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w, true)
	})

	go func() {
		Logger.Infof("Starting metrics server on %s", s.config.MetricsEndpoint)
		if err := http.ListenAndServe(s.config.MetricsEndpoint, mux); err != nil {
			Logger.Errorf("metrics server failed: %v", err)
			os.Exit(1)
		}
	}()
}

// --------------------------------------------------------------------------
// Claims Relay (local listener for observability)
// --------------------------------------------------------------------------

// claimsRelay feeds the size of the local ack relation into a gauge. Its
// Done channel never closes, the relay lives as long as the server.
type claimsRelay struct {
	claimCount int64
	done       chan struct{}
}

func newClaimsRelay(domainID uint64) *claimsRelay {
	relay := &claimsRelay{done: make(chan struct{})}
	metrics.GetOrCreateGauge(fmt.Sprintf(`ack_local_claims{domain=%q}`, fmt.Sprint(domainID)), func() float64 {
		return float64(atomic.LoadInt64(&relay.claimCount))
	})
	return relay
}

// --------------------------------------------------------------------------
// Interface Methods (docu see coordinator.LocalListener)
// --------------------------------------------------------------------------

func (relay *claimsRelay) OnLocalChange(claims []relation.Claim) {
	atomic.StoreInt64(&relay.claimCount, int64(len(claims)))
}

func (relay *claimsRelay) Done() <-chan struct{} {
	return relay.done
}
