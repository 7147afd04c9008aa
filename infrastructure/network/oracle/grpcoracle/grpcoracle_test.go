package grpcoracle

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/kaspanet/reorgkeeper/domain/model/externalapi"
	"github.com/kaspanet/reorgkeeper/domain/oracle"
	"github.com/kaspanet/reorgkeeper/domain/reconciliation"
	"github.com/kaspanet/reorgkeeper/domain/simchain"
	"github.com/kaspanet/reorgkeeper/domain/testutils"
	"github.com/kaspanet/reorgkeeper/domain/trackeditem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const bufferSize = 1024 * 1024

type testServer struct {
	chain     *simchain.Chain
	server    *Server
	listener  *bufconn.Listener
	connector *Connector
}

func newTestServer(t *testing.T) *testServer {
	chain := simchain.New()
	server := NewServer(chain, nil)
	listener := bufconn.Listen(bufferSize)
	server.Serve(listener)

	options := append(DialOptions(""), grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return listener.DialContext(ctx)
	}))
	connector := NewConnector("passthrough:///bufconn", options...)

	ts := &testServer{chain: chain, server: server, listener: listener, connector: connector}
	t.Cleanup(func() {
		_ = connector.Close()
		server.Stop()
	})
	return ts
}

func (ts *testServer) connect(t *testing.T) oracle.ChainOracle {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	chainOracle, err := ts.connector.Connect(ctx)
	require.NoError(t, err)
	return chainOracle
}

func TestHeaderAtHeight(t *testing.T) {
	ts := newTestServer(t)
	expected, err := ts.chain.AddBlock(&simchain.BlockTemplate{})
	require.NoError(t, err)
	client := ts.connect(t)

	hash, err := client.HeaderAtHeight(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, expected.Equal(hash))

	hash, err = client.HeaderAtHeight(context.Background(), 2)
	require.NoError(t, err)
	assert.Nil(t, hash)
}

func TestQueries(t *testing.T) {
	ts := newTestServer(t)
	mined := trackeditem.NewOutputItemID(testutils.RandomHash(t))
	pending := trackeditem.NewTransactionItemID(testutils.NewExcessSignature(t))
	missing := trackeditem.NewOutputItemID(testutils.RandomHash(t))
	ts.chain.AddToMempool(pending)
	_, err := ts.chain.AddBlock(&simchain.BlockTemplate{Outputs: []trackeditem.ItemID{mined}})
	require.NoError(t, err)
	spendHash, err := ts.chain.AddBlock(&simchain.BlockTemplate{Spends: []trackeditem.ItemID{mined}})
	require.NoError(t, err)
	client := ts.connect(t)

	locations, err := client.QueryLocations(context.Background(), []trackeditem.ItemID{mined, pending, missing})
	require.NoError(t, err)
	require.Len(t, locations.Locations, 3)
	assert.Equal(t, uint64(2), locations.TipHeight)
	assert.True(t, spendHash.Equal(locations.TipHash))

	assert.True(t, mined.Equal(locations.Locations[0].ID))
	assert.Equal(t, oracle.Mined, locations.Locations[0].Location)
	assert.Equal(t, uint64(1), locations.Locations[0].Height)
	assert.Equal(t, uint64(1), locations.Locations[0].Confirmations)
	require.NotNil(t, locations.Locations[0].MMRPosition)
	assert.Equal(t, uint64(0), *locations.Locations[0].MMRPosition)
	assert.Equal(t, oracle.InMempool, locations.Locations[1].Location)
	assert.Equal(t, oracle.NotStored, locations.Locations[2].Location)

	deleted, err := client.QueryDeleted(context.Background(), []uint64{0, 5}, spendHash)
	require.NoError(t, err)
	assert.Equal(t, []uint64{0}, deleted.DeletedPositions)
	assert.Equal(t, []uint64{2}, deleted.HeightsDeletedAt)
	require.Len(t, deleted.BlocksDeletedIn, 1)
	assert.True(t, spendHash.Equal(deleted.BlocksDeletedIn[0]))
	assert.Equal(t, []uint64{5}, deleted.NotDeletedPositions)

	_, err = client.QueryDeleted(context.Background(), []uint64{0}, testutils.RandomHash(t))
	require.Error(t, err)
	assert.True(t, oracle.IsTransportError(err))
}

func TestClientTimeout(t *testing.T) {
	ts := newTestServer(t)
	client := ts.connect(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)
	_, err := client.HeaderAtHeight(ctx, 0)
	require.Error(t, err)
	assert.True(t, oracle.IsTransportError(err))
	assert.True(t, oracle.IsTimeout(err))
}

func TestConnectFailure(t *testing.T) {
	listener := bufconn.Listen(bufferSize)
	require.NoError(t, listener.Close())
	options := append(DialOptions(""), grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return listener.DialContext(ctx)
	}))
	connector := NewConnector("passthrough:///bufconn", options...)
	defer connector.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := connector.Connect(ctx)
	require.Error(t, err)
	assert.True(t, oracle.IsTransportError(err))

	// An unreachable oracle may come back, so the engine failure is retryable
	store := trackeditem.NewMemoryStore()
	engine := reconciliation.New(reconciliation.DefaultConfig(), store, connector, nil)
	validateCtx, validateCancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer validateCancel()
	err = engine.Validate(validateCtx, 1)
	assert.ErrorIs(t, err, reconciliation.ErrTransport)
	assert.True(t, reconciliation.IsRetryable(err))
}

func TestConnectAfterClose(t *testing.T) {
	ts := newTestServer(t)
	ts.connect(t)
	require.NoError(t, ts.connector.Close())

	_, err := ts.connector.Connect(context.Background())
	require.ErrorIs(t, err, ErrConnectorClosed)
	assert.False(t, oracle.IsTransportError(err))

	engine := reconciliation.New(reconciliation.DefaultConfig(), trackeditem.NewMemoryStore(), ts.connector, nil)
	err = engine.Validate(context.Background(), 1)
	assert.ErrorIs(t, err, reconciliation.ErrShutdown)
	assert.False(t, reconciliation.IsRetryable(err))
}

// malformedServiceDesc answers every header request with a hash one byte
// short and every location query with a body that does not decode
var malformedServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*interface{})(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetHeaderByHeight",
			Handler: func(_ interface{}, _ context.Context, dec func(interface{}) error,
				_ grpc.UnaryServerInterceptor) (interface{}, error) {

				if err := dec(new(wrapperspb.UInt64Value)); err != nil {
					return nil, err
				}
				return wrapperspb.Bytes(make([]byte, externalapi.DomainHashSize-1)), nil
			},
		},
		{
			MethodName: "QueryLocations",
			Handler: func(_ interface{}, _ context.Context, dec func(interface{}) error,
				_ grpc.UnaryServerInterceptor) (interface{}, error) {

				if err := dec(new(queryLocationsRequest)); err != nil {
					return nil, err
				}
				return map[string]interface{}{"locations": "none"}, nil
			},
		},
	},
	Metadata: "grpcoracle",
}

func newMalformedServer(t *testing.T) *Connector {
	server := grpc.NewServer()
	server.RegisterService(&malformedServiceDesc, struct{}{})
	listener := bufconn.Listen(bufferSize)
	go func() {
		_ = server.Serve(listener)
	}()

	options := append(DialOptions(""), grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return listener.DialContext(ctx)
	}))
	connector := NewConnector("passthrough:///bufconn", options...)
	t.Cleanup(func() {
		_ = connector.Close()
		server.Stop()
	})
	return connector
}

func TestMalformedResponses(t *testing.T) {
	connector := newMalformedServer(t)
	client, err := connector.Connect(context.Background())
	require.NoError(t, err)

	_, err = client.HeaderAtHeight(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, oracle.IsMalformedResponse(err))
	assert.False(t, oracle.IsTransportError(err))

	_, err = client.QueryLocations(context.Background(), []trackeditem.ItemID{trackeditem.NewOutputItemID(testutils.RandomHash(t))})
	require.Error(t, err)
	assert.True(t, oracle.IsMalformedResponse(err))
	assert.False(t, oracle.IsTransportError(err))

	// A mined item makes the engine ask for its header, which is malformed
	hash := testutils.RandomHash(t)
	output := &trackeditem.TrackedItem{
		ID:     trackeditem.NewOutputItemID(testutils.RandomHash(t)),
		Kind:   trackeditem.KindOutput,
		Status: trackeditem.Mined(1, hash, 1, 3),
	}
	store := trackeditem.NewMemoryStore()
	require.NoError(t, store.Add(output))
	engine := reconciliation.New(reconciliation.DefaultConfig(), store, connector, nil)

	err = engine.Validate(context.Background(), 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, reconciliation.ErrInconsistentData)
	assert.False(t, reconciliation.IsRetryable(err))
}

func TestEngineOverGRPC(t *testing.T) {
	ts := newTestServer(t)
	output := &trackeditem.TrackedItem{
		ID:     trackeditem.NewOutputItemID(testutils.RandomHash(t)),
		Kind:   trackeditem.KindOutput,
		Status: trackeditem.PendingUnmined(),
	}
	store := trackeditem.NewMemoryStore()
	require.NoError(t, store.Add(output))

	_, err := ts.chain.AddBlock(&simchain.BlockTemplate{Outputs: []trackeditem.ItemID{output.ID}})
	require.NoError(t, err)
	_, err = ts.chain.AddBlock(&simchain.BlockTemplate{Spends: []trackeditem.ItemID{output.ID}})
	require.NoError(t, err)

	config := reconciliation.DefaultConfig()
	config.OracleCallTimeout = time.Second
	engine := reconciliation.New(config, store, ts.connector, nil)
	require.NoError(t, engine.Validate(context.Background(), 1))

	item, err := store.Get(output.ID)
	require.NoError(t, err)
	assert.Equal(t, trackeditem.StateSpent, item.Status.State)
	assert.Equal(t, uint64(2), item.Status.SpentHeight)

	// Reorg the spend away and validate again through the same connection
	require.NoError(t, ts.chain.Reorg(2, []*simchain.BlockTemplate{{}}))
	require.NoError(t, engine.Validate(context.Background(), 2))
	item, err = store.Get(output.ID)
	require.NoError(t, err)
	assert.Equal(t, trackeditem.StateMinedUnconfirmed, item.Status.State)
}
