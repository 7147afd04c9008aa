package grpcoracle

import (
	"context"

	"github.com/kaspanet/reorgkeeper/domain/model/externalapi"
	"github.com/kaspanet/reorgkeeper/domain/oracle"
	"github.com/kaspanet/reorgkeeper/domain/trackeditem"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const serviceName = "reorgkeeper.oracle.ChainOracle"

const (
	getHeaderByHeightMethod = "/" + serviceName + "/GetHeaderByHeight"
	queryLocationsMethod    = "/" + serviceName + "/QueryLocations"
	queryDeletedMethod      = "/" + serviceName + "/QueryDeleted"
)

type queryLocationsRequest struct {
	IDs []trackeditem.ItemID `json:"ids"`
}

type queryDeletedRequest struct {
	Positions []uint64                `json:"positions"`
	Anchor    *externalapi.DomainHash `json:"anchor,omitempty"`
}

// oracleService is the server side of the chain oracle service
type oracleService interface {
	GetHeaderByHeight(ctx context.Context, request *wrapperspb.UInt64Value) (*wrapperspb.BytesValue, error)
	QueryLocations(ctx context.Context, request *queryLocationsRequest) (*oracle.LocationsResponse, error)
	QueryDeleted(ctx context.Context, request *queryDeletedRequest) (*oracle.DeletedResponse, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*oracleService)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetHeaderByHeight",
			Handler:    getHeaderByHeightHandler,
		},
		{
			MethodName: "QueryLocations",
			Handler:    queryLocationsHandler,
		},
		{
			MethodName: "QueryDeleted",
			Handler:    queryDeletedHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "grpcoracle",
}

func getHeaderByHeightHandler(srv interface{}, ctx context.Context, dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor) (interface{}, error) {

	request := new(wrapperspb.UInt64Value)
	if err := dec(request); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(oracleService).GetHeaderByHeight(ctx, request)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getHeaderByHeightMethod}
	handler := func(ctx context.Context, request interface{}) (interface{}, error) {
		return srv.(oracleService).GetHeaderByHeight(ctx, request.(*wrapperspb.UInt64Value))
	}
	return interceptor(ctx, request, info, handler)
}

func queryLocationsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor) (interface{}, error) {

	request := new(queryLocationsRequest)
	if err := dec(request); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(oracleService).QueryLocations(ctx, request)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: queryLocationsMethod}
	handler := func(ctx context.Context, request interface{}) (interface{}, error) {
		return srv.(oracleService).QueryLocations(ctx, request.(*queryLocationsRequest))
	}
	return interceptor(ctx, request, info, handler)
}

func queryDeletedHandler(srv interface{}, ctx context.Context, dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor) (interface{}, error) {

	request := new(queryDeletedRequest)
	if err := dec(request); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(oracleService).QueryDeleted(ctx, request)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: queryDeletedMethod}
	handler := func(ctx context.Context, request interface{}) (interface{}, error) {
		return srv.(oracleService).QueryDeleted(ctx, request.(*queryDeletedRequest))
	}
	return interceptor(ctx, request, info, handler)
}
