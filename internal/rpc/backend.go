// Package rpc declares the noteloom.v1.Backend gRPC service shared by the server and
// the client. Messages are google.protobuf.Struct; field layout lives in internal/convert.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "noteloom.v1.Backend"

// Method names.
const (
	MethodSignUp     = "SignUp"
	MethodSignIn     = "SignIn"
	MethodGetUser    = "GetUser"
	MethodUpdateUser = "UpdateUser"
	MethodSelectRow  = "SelectRow"
	MethodInsertRow  = "InsertRow"
	MethodUpdateRow  = "UpdateRow"
	MethodDeleteRows = "DeleteRows"
	MethodCountRows  = "CountRows"
)

// FullMethod returns "/noteloom.v1.Backend/<method>".
func FullMethod(method string) string { return "/" + ServiceName + "/" + method }

// BackendServer is the server API for the Backend service.
type BackendServer interface {
	SignUp(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SignIn(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetUser(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateUser(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SelectRow(context.Context, *structpb.Struct) (*structpb.Struct, error)
	InsertRow(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateRow(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteRows(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CountRows(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type serverMethod func(BackendServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func handler(method string, call serverMethod) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(BackendServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
			h := func(ctx context.Context, req any) (any, error) {
				return call(srv.(BackendServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, h)
		},
	}
}

// ServiceDesc describes the Backend service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BackendServer)(nil),
	Methods: []grpc.MethodDesc{
		handler(MethodSignUp, BackendServer.SignUp),
		handler(MethodSignIn, BackendServer.SignIn),
		handler(MethodGetUser, BackendServer.GetUser),
		handler(MethodUpdateUser, BackendServer.UpdateUser),
		handler(MethodSelectRow, BackendServer.SelectRow),
		handler(MethodInsertRow, BackendServer.InsertRow),
		handler(MethodUpdateRow, BackendServer.UpdateRow),
		handler(MethodDeleteRows, BackendServer.DeleteRows),
		handler(MethodCountRows, BackendServer.CountRows),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "noteloom/v1/backend.proto",
}

// RegisterBackendServer registers srv on s.
func RegisterBackendServer(s grpc.ServiceRegistrar, srv BackendServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// BackendClient calls the Backend service over a client connection.
type BackendClient struct {
	cc grpc.ClientConnInterface
}

// NewBackendClient wraps cc.
func NewBackendClient(cc grpc.ClientConnInterface) *BackendClient {
	return &BackendClient{cc: cc}
}

// Call invokes method with in and returns the response struct.
func (c *BackendClient) Call(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if in == nil {
		in = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
