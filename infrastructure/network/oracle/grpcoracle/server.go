package grpcoracle

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/kaspanet/reorgkeeper/domain/oracle"
	"github.com/kaspanet/reorgkeeper/util/panics"
	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// MaxMessageSize is the max message size the oracle server and client send
// and receive
const MaxMessageSize = 64 * 1024 * 1024

// Server serves a ChainOracle over gRPC
type Server struct {
	oracle             oracle.ChainOracle
	listeningAddresses []string
	server             *grpc.Server
}

// NewServer creates a Server answering with chainOracle
func NewServer(chainOracle oracle.ChainOracle, listeningAddresses []string) *Server {
	s := &Server{
		oracle:             chainOracle,
		listeningAddresses: listeningAddresses,
		server:             grpc.NewServer(grpc.MaxRecvMsgSize(MaxMessageSize), grpc.MaxSendMsgSize(MaxMessageSize)),
	}
	s.server.RegisterService(&serviceDesc, &serviceHandler{oracle: chainOracle})
	return s
}

// Start listens on all the listening addresses
func (s *Server) Start() error {
	for _, listenAddress := range s.listeningAddresses {
		listener, err := net.Listen("tcp", listenAddress)
		if err != nil {
			return errors.Wrapf(err, "error listening on %s", listenAddress)
		}
		s.Serve(listener)
		log.Infof("Oracle server listening on %s", listenAddress)
	}
	return nil
}

// Serve serves requests arriving on listener in the background
func (s *Server) Serve(listener net.Listener) {
	address := listener.Addr().String()
	spawn("grpcoracle.Server.Serve", func() {
		err := s.server.Serve(listener)
		if err != nil {
			panics.Exit(log, fmt.Sprintf("error serving oracle on %s: %+v", address, err))
		}
	})
}

// Stop stops the server, forcefully if it does not stop gracefully in time
func (s *Server) Stop() {
	const stopTimeout = 2 * time.Second

	stopChan := make(chan struct{})
	spawn("grpcoracle.Server.Stop", func() {
		s.server.GracefulStop()
		close(stopChan)
	})

	select {
	case <-stopChan:
	case <-time.After(stopTimeout):
		log.Warnf("Could not gracefully stop the oracle server: timed out after %s", stopTimeout)
		s.server.Stop()
	}
}

type serviceHandler struct {
	oracle oracle.ChainOracle
}

func (h *serviceHandler) GetHeaderByHeight(ctx context.Context,
	request *wrapperspb.UInt64Value) (*wrapperspb.BytesValue, error) {

	hash, err := h.oracle.HeaderAtHeight(ctx, request.GetValue())
	if err != nil {
		return nil, toStatusError(err)
	}
	if hash == nil {
		return nil, status.Errorf(codes.NotFound, "no header at height %d", request.GetValue())
	}
	return wrapperspb.Bytes(hash.ByteSlice()), nil
}

func (h *serviceHandler) QueryLocations(ctx context.Context,
	request *queryLocationsRequest) (*oracle.LocationsResponse, error) {

	response, err := h.oracle.QueryLocations(ctx, request.IDs)
	if err != nil {
		return nil, toStatusError(err)
	}
	return response, nil
}

func (h *serviceHandler) QueryDeleted(ctx context.Context,
	request *queryDeletedRequest) (*oracle.DeletedResponse, error) {

	response, err := h.oracle.QueryDeleted(ctx, request.Positions, request.Anchor)
	if err != nil {
		return nil, toStatusError(err)
	}
	return response, nil
}

func toStatusError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	}
	log.Debugf("Oracle request failed: %s", err)
	return status.Error(codes.FailedPrecondition, err.Error())
}
