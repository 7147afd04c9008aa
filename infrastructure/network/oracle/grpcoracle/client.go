package grpcoracle

import (
	"context"
	"net"
	"time"

	"github.com/btcsuite/go-socks/socks"
	"github.com/kaspanet/reorgkeeper/domain/model/externalapi"
	"github.com/kaspanet/reorgkeeper/domain/oracle"
	"github.com/kaspanet/reorgkeeper/domain/trackeditem"
	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client is a ChainOracle answering through a remote oracle server
type Client struct {
	connection *grpc.ClientConn
}

// DialOptions returns the dial options for reaching an oracle server,
// through the given SOCKS5 proxy if proxyAddress is not empty
func DialOptions(proxyAddress string) []grpc.DialOption {
	options := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(MaxMessageSize), grpc.MaxCallSendMsgSize(MaxMessageSize)),
	}
	if proxyAddress != "" {
		proxy := &socks.Proxy{Addr: proxyAddress}
		options = append(options, grpc.WithContextDialer(func(ctx context.Context, address string) (net.Conn, error) {
			timeout := time.Duration(0)
			if deadline, ok := ctx.Deadline(); ok {
				timeout = time.Until(deadline)
			}
			return proxy.DialTimeout("tcp", address, timeout)
		}))
	}
	return options
}

// NewClient creates a client for the oracle server at address. No
// connection is made until the first call.
func NewClient(address string, options ...grpc.DialOption) (*Client, error) {
	connection, err := grpc.NewClient(address, options...)
	if err != nil {
		return nil, errors.Wrapf(err, "error creating client for %s", address)
	}
	return &Client{connection: connection}, nil
}

// Close closes the underlying connection
func (c *Client) Close() error {
	return c.connection.Close()
}

// HeaderAtHeight implements oracle.ChainOracle
func (c *Client) HeaderAtHeight(ctx context.Context, height uint64) (*externalapi.DomainHash, error) {
	response := new(wrapperspb.BytesValue)
	err := c.connection.Invoke(ctx, getHeaderByHeightMethod, wrapperspb.UInt64(height), response)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, toOracleError(err)
	}
	hash, err := externalapi.NewDomainHashFromByteSlice(response.GetValue())
	if err != nil {
		return nil, oracle.NewMalformedResponseError(errors.Wrapf(err, "header at height %d", height))
	}
	return hash, nil
}

// QueryLocations implements oracle.ChainOracle
func (c *Client) QueryLocations(ctx context.Context, ids []trackeditem.ItemID) (*oracle.LocationsResponse, error) {
	response := new(oracle.LocationsResponse)
	err := c.connection.Invoke(ctx, queryLocationsMethod, &queryLocationsRequest{IDs: ids}, response,
		grpc.CallContentSubtype(jsonCodecName))
	if err != nil {
		return nil, toOracleError(err)
	}
	return response, nil
}

// QueryDeleted implements oracle.ChainOracle
func (c *Client) QueryDeleted(ctx context.Context, positions []uint64,
	anchor *externalapi.DomainHash) (*oracle.DeletedResponse, error) {

	response := new(oracle.DeletedResponse)
	err := c.connection.Invoke(ctx, queryDeletedMethod, &queryDeletedRequest{Positions: positions, Anchor: anchor},
		response, grpc.CallContentSubtype(jsonCodecName))
	if err != nil {
		return nil, toOracleError(err)
	}
	return response, nil
}

// toOracleError converts a gRPC status error into an oracle error. A message
// the codec could not decode is reported by gRPC as Internal and becomes an
// oracle.MalformedResponseError. Everything else is an
// oracle.TransportError, and deadline expiry keeps context.DeadlineExceeded
// in its chain.
func toOracleError(err error) error {
	st := status.Convert(err)
	switch st.Code() {
	case codes.Internal:
		return oracle.NewMalformedResponseError(errors.New(st.Message()))
	case codes.DeadlineExceeded:
		return oracle.NewTransportError(errors.Wrap(context.DeadlineExceeded, st.Message()))
	case codes.Canceled:
		return oracle.NewTransportError(errors.Wrap(context.Canceled, st.Message()))
	}
	return oracle.NewTransportError(errors.Errorf("%s: %s", st.Code(), st.Message()))
}
