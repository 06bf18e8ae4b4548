package proto

import (
	"context"

	"google.golang.org/grpc"
)

// RegistrationServiceServer is implemented by the Align/AlignSequence RPC
// handlers, mirroring what protoc-gen-go-grpc would emit from
// registration.proto's service definition.
type RegistrationServiceServer interface {
	Align(ctx context.Context, req *AlignRequest) (*AlignResponse, error)
	AlignSequence(stream RegistrationService_AlignSequenceServer) error
}

// RegistrationService_AlignSequenceServer is the server-side handle on a
// bidirectional AlignSequence stream: one AlignRequest per consecutive
// frame pair in, one AlignResponse per pair out.
type RegistrationService_AlignSequenceServer interface {
	Send(*AlignResponse) error
	Recv() (*AlignRequest, error)
	grpc.ServerStream
}

type registrationServiceAlignSequenceServer struct {
	grpc.ServerStream
}

func (s *registrationServiceAlignSequenceServer) Send(resp *AlignResponse) error {
	return s.ServerStream.SendMsg(resp)
}

func (s *registrationServiceAlignSequenceServer) Recv() (*AlignRequest, error) {
	req := new(AlignRequest)
	if err := s.ServerStream.RecvMsg(req); err != nil {
		return nil, err
	}
	return req, nil
}

func alignHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(AlignRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RegistrationServiceServer).Align(ctx, req)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/registration.RegistrationService/Align",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RegistrationServiceServer).Align(ctx, req.(*AlignRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func alignSequenceHandler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(RegistrationServiceServer).AlignSequence(&registrationServiceAlignSequenceServer{stream})
}

// ServiceDesc is the grpc.ServiceDesc a server registers
// RegistrationServiceServer implementations under.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: "registration.RegistrationService",
	HandlerType: (*RegistrationServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Align",
			Handler:    alignHandler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "AlignSequence",
			Handler:       alignSequenceHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "registration.proto",
}

// RegisterRegistrationServiceServer registers srv as the implementation of
// the RegistrationService service on s.
func RegisterRegistrationServiceServer(s grpc.ServiceRegistrar, srv RegistrationServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// RegistrationServiceClient is a client for the RegistrationService service.
type RegistrationServiceClient interface {
	Align(ctx context.Context, req *AlignRequest, opts ...grpc.CallOption) (*AlignResponse, error)
	AlignSequence(ctx context.Context, opts ...grpc.CallOption) (RegistrationService_AlignSequenceClient, error)
}

type registrationServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewRegistrationServiceClient wraps a grpc.ClientConn as a
// RegistrationServiceClient.
func NewRegistrationServiceClient(cc grpc.ClientConnInterface) RegistrationServiceClient {
	return &registrationServiceClient{cc}
}

func (c *registrationServiceClient) Align(ctx context.Context, req *AlignRequest, opts ...grpc.CallOption) (*AlignResponse, error) {
	resp := new(AlignResponse)
	if err := c.cc.Invoke(ctx, "/registration.RegistrationService/Align", req, resp, opts...); err != nil {
		return nil, err
	}
	return resp, nil
}

// RegistrationService_AlignSequenceClient is the client-side handle on a
// bidirectional AlignSequence stream.
type RegistrationService_AlignSequenceClient interface {
	Send(*AlignRequest) error
	Recv() (*AlignResponse, error)
	grpc.ClientStream
}

type registrationServiceAlignSequenceClient struct {
	grpc.ClientStream
}

func (c *registrationServiceAlignSequenceClient) Send(req *AlignRequest) error {
	return c.ClientStream.SendMsg(req)
}

func (c *registrationServiceAlignSequenceClient) Recv() (*AlignResponse, error) {
	resp := new(AlignResponse)
	if err := c.ClientStream.RecvMsg(resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *registrationServiceClient) AlignSequence(ctx context.Context, opts ...grpc.CallOption) (RegistrationService_AlignSequenceClient, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], "/registration.RegistrationService/AlignSequence", opts...)
	if err != nil {
		return nil, err
	}
	return &registrationServiceAlignSequenceClient{stream}, nil
}
