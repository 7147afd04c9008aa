package grpcoracle

import (
	"context"
	"sync"
	"time"

	"github.com/kaspanet/reorgkeeper/domain/oracle"
	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
)

// DefaultConnectTimeout is how long Connect waits for the oracle server
// when the context has no earlier deadline
const DefaultConnectTimeout = 5 * time.Second

// Connector creates the oracle client lazily and hands it out once its
// connection is ready
type Connector struct {
	address string
	options []grpc.DialOption

	mtx    sync.Mutex
	client *Client
	closed bool
}

// ErrConnectorClosed is returned by Connect after Close
var ErrConnectorClosed = errors.New("oracle connector is closed")

// NewConnector returns a Connector for the oracle server at address
func NewConnector(address string, options ...grpc.DialOption) *Connector {
	return &Connector{address: address, options: options}
}

// Connect implements oracle.Connector. A server that cannot be reached in
// time is an oracle.TransportError. A closed connector or connection is not.
func (c *Connector) Connect(ctx context.Context) (oracle.ChainOracle, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	if c.closed {
		return nil, ErrConnectorClosed
	}
	if c.client == nil {
		client, err := NewClient(c.address, c.options...)
		if err != nil {
			return nil, err
		}
		c.client = client
	}

	ctx, cancel := context.WithTimeout(ctx, DefaultConnectTimeout)
	defer cancel()

	connection := c.client.connection
	connection.Connect()
	for {
		state := connection.GetState()
		if state == connectivity.Ready {
			return c.client, nil
		}
		if state == connectivity.Shutdown {
			return nil, errors.Errorf("connection to %s is shut down", c.address)
		}
		if !connection.WaitForStateChange(ctx, state) {
			return nil, oracle.NewTransportError(
				errors.Wrapf(ctx.Err(), "error connecting to %s, last state %s", c.address, state))
		}
	}
}

// Close closes the client, if one was created. The connector cannot be
// used afterwards.
func (c *Connector) Close() error {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	c.closed = true
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	return err
}
