package fitd

import (
	"context"
	"fmt"

	"github.com/GoSim-25-26J-441/mcfit-core/pkg/logger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ResultServiceName is the full gRPC name of the read-only result service
const ResultServiceName = "mcfit.v1.ResultService"

const (
	getFitMethod     = "/" + ResultServiceName + "/GetFit"
	getSummaryMethod = "/" + ResultServiceName + "/GetSummary"
)

// ResultServiceServer reports fit jobs. Requests carry the fit id; responses use the same
// field layout as the HTTP API.
type ResultServiceServer interface {
	GetFit(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	GetSummary(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
}

func unaryHandler(method string, call func(ResultServiceServer, context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(wrapperspb.StringValue)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ResultServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ResultServiceServer), ctx, req.(*wrapperspb.StringValue))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ResultServiceDesc describes the result service for grpc registration
var ResultServiceDesc = grpc.ServiceDesc{
	ServiceName: ResultServiceName,
	HandlerType: (*ResultServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetFit",
			Handler: unaryHandler(getFitMethod, func(s ResultServiceServer, ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
				return s.GetFit(ctx, in)
			}),
		},
		{
			MethodName: "GetSummary",
			Handler: unaryHandler(getSummaryMethod, func(s ResultServiceServer, ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
				return s.GetSummary(ctx, in)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "mcfit/v1/result.proto",
}

// RegisterResultServiceServer registers srv on a grpc server
func RegisterResultServiceServer(s grpc.ServiceRegistrar, srv ResultServiceServer) {
	s.RegisterService(&ResultServiceDesc, srv)
}

// ResultGRPCServer implements ResultServiceServer on top of a JobStore.
type ResultGRPCServer struct {
	store *JobStore
}

// NewResultGRPCServer creates a ResultGRPCServer backed by store.
func NewResultGRPCServer(store *JobStore) *ResultGRPCServer {
	return &ResultGRPCServer{store: store}
}

func (s *ResultGRPCServer) lookup(req *wrapperspb.StringValue) (*FitRecord, error) {
	if req == nil || req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "fit id is required")
	}
	rec, ok := s.store.Get(req.GetValue())
	if !ok {
		return nil, status.Error(codes.NotFound, "fit not found")
	}
	return rec, nil
}

func (s *ResultGRPCServer) GetFit(_ context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	rec, err := s.lookup(req)
	if err != nil {
		return nil, err
	}
	out, err := structpb.NewStruct(convertFitToJSON(rec))
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func (s *ResultGRPCServer) GetSummary(_ context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	rec, err := s.lookup(req)
	if err != nil {
		return nil, err
	}
	if rec.Summary == nil {
		return nil, status.Error(codes.FailedPrecondition, "summary not available")
	}
	out, err := structpb.NewStruct(convertSummaryToJSON(rec.Summary))
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// NewGRPCServer builds a grpc server exposing the result service and the standard
// health service
func NewGRPCServer(store *JobStore, opts ...grpc.ServerOption) *grpc.Server {
	srv := grpc.NewServer(opts...)
	RegisterResultServiceServer(srv, NewResultGRPCServer(store))

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ResultServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	logger.Debug("gRPC services registered", "service", ResultServiceName)
	return srv
}

// ResultServiceClient calls a remote result service
type ResultServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewResultServiceClient(cc grpc.ClientConnInterface) *ResultServiceClient {
	return &ResultServiceClient{cc: cc}
}

func (c *ResultServiceClient) GetFit(ctx context.Context, id string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, getFitMethod, wrapperspb.String(id), out, opts...); err != nil {
		return nil, fmt.Errorf("get fit %s: %w", id, err)
	}
	return out, nil
}

func (c *ResultServiceClient) GetSummary(ctx context.Context, id string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, getSummaryMethod, wrapperspb.String(id), out, opts...); err != nil {
		return nil, fmt.Errorf("get summary of fit %s: %w", id, err)
	}
	return out, nil
}
