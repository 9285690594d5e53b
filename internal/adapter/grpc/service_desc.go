package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified gRPC service name
const ServiceName = "equityflow.v1.FinancingService"

// FinancingServiceServer is the server API for the financing service.
// Requests and responses are google.protobuf.Struct messages; money fields are
// strings of integer minor units.
type FinancingServiceServer interface {
	CreateSchedule(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RecordPayment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetPosition(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ReconcileLedger(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetPortfolio(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(FinancingServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(name string, call unaryMethod) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(FinancingServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + ServiceName + "/" + name,
			}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(FinancingServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// FinancingServiceDesc describes the service for grpc.Server.RegisterService
var FinancingServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*FinancingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("CreateSchedule", FinancingServiceServer.CreateSchedule),
		unaryHandler("RecordPayment", FinancingServiceServer.RecordPayment),
		unaryHandler("GetPosition", FinancingServiceServer.GetPosition),
		unaryHandler("ReconcileLedger", FinancingServiceServer.ReconcileLedger),
		unaryHandler("GetPortfolio", FinancingServiceServer.GetPortfolio),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "equityflow/v1/financing.proto",
}

// RegisterFinancingServiceServer registers srv on s
func RegisterFinancingServiceServer(s grpc.ServiceRegistrar, srv FinancingServiceServer) {
	s.RegisterService(&FinancingServiceDesc, srv)
}

// FinancingServiceClient is the client API for the financing service
type FinancingServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewFinancingServiceClient creates a client on top of an established connection
func NewFinancingServiceClient(cc grpc.ClientConnInterface) *FinancingServiceClient {
	return &FinancingServiceClient{cc: cc}
}

func (c *FinancingServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *FinancingServiceClient) CreateSchedule(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "CreateSchedule", in, opts...)
}

func (c *FinancingServiceClient) RecordPayment(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "RecordPayment", in, opts...)
}

func (c *FinancingServiceClient) GetPosition(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetPosition", in, opts...)
}

func (c *FinancingServiceClient) ReconcileLedger(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "ReconcileLedger", in, opts...)
}

func (c *FinancingServiceClient) GetPortfolio(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetPortfolio", in, opts...)
}
