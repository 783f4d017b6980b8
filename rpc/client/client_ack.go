package client

import (
	"fmt"

	"github.com/ValentinKolb/dACK/rpc/common"
	"github.com/ValentinKolb/dACK/rpc/serializer"
	"github.com/ValentinKolb/dACK/rpc/transport"
)

// IAckClient is the client-side view of one coordination domain. Subscriber
// identity is passed explicitly since the subscriber itself lives on the
// client side of the connection.
type IAckClient interface {
	// Declare claims the label set for the subscriber, optionally under a
	// group (group == "" means ungrouped). A rejected declaration is
	// returned as an error carrying the server's conflict message.
	Declare(subscriber, group string, labels []string) error

	// Release unregisters the subscriber and all its claims. Idempotent.
	Release(subscriber string) error

	// Claims returns the server node's local (group, label-set) snapshot.
	Claims() ([]common.Claim, error)

	// Events drains the buffered eviction signals of the given subscriber,
	// or of all subscribers of this domain if subscriber is empty. A
	// subscriber that receives an event has lost its claims and must
	// re-declare from scratch.
	Events(subscriber string) ([]common.Event, error)

	// Close shuts down the underlying transport.
	Close() error
}

// NewRPCAckClient creates a new RPC ack client
// The function takes a domain ID, a config, a transport and a serializer as parameters
// It returns an IAckClient and an error
func NewRPCAckClient(
	domainId uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (IAckClient, error) {

	// Connect the transport
	err := transport.Connect(config)
	if err != nil {
		return nil, err
	}

	// Create a new RPC ack client
	c := ackClient{
		rpcClientAdapter{
			domainId:   domainId,
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
	}

	// Return the RPC ack client
	return &c, nil
}

type ackClient struct {
	rpcClientAdapter
}

// --------------------------------------------------------------------------
// Interface Methods (docu see IAckClient above)
// --------------------------------------------------------------------------

func (i *ackClient) Declare(subscriber, group string, labels []string) error {
	req := common.NewDeclareRequest(subscriber, group, labels)
	resp, err := invokeRPCRequest(i.domainId, req, i.transport, i.serializer)
	if err != nil {
		return err
	}
	if !resp.Ok {
		return fmt.Errorf("declare rejected: %s", resp.Err)
	}
	return nil
}

func (i *ackClient) Release(subscriber string) error {
	req := common.NewReleaseRequest(subscriber)
	resp, err := invokeRPCRequest(i.domainId, req, i.transport, i.serializer)
	if err != nil {
		return err
	}
	if !resp.Ok {
		return fmt.Errorf("release rejected: %s", resp.Err)
	}
	return nil
}

func (i *ackClient) Claims() ([]common.Claim, error) {
	req := common.NewClaimsRequest()
	resp, err := invokeRPCRequest(i.domainId, req, i.transport, i.serializer)
	if err != nil {
		return nil, err
	}
	if resp.Err != "" {
		return nil, fmt.Errorf("claims failed: %s", resp.Err)
	}
	return resp.Claims, nil
}

func (i *ackClient) Events(subscriber string) ([]common.Event, error) {
	req := common.NewEventsRequest(subscriber)
	resp, err := invokeRPCRequest(i.domainId, req, i.transport, i.serializer)
	if err != nil {
		return nil, err
	}
	if resp.Err != "" {
		return nil, fmt.Errorf("events failed: %s", resp.Err)
	}
	return resp.Events, nil
}

func (i *ackClient) Close() error {
	return i.transport.Close()
}
