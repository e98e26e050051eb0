package protocol

import (
	"context"

	"google.golang.org/grpc"
)

const (
	ServiceName = "driftsync.v1.Sync"

	subscribeMethod = "/" + ServiceName + "/Subscribe"
	dropMethod      = "/" + ServiceName + "/Drop"
	teleportMethod  = "/" + ServiceName + "/Teleport"
	disappearMethod = "/" + ServiceName + "/Disappear"
	appearMethod    = "/" + ServiceName + "/Appear"
	listMethod      = "/" + ServiceName + "/List"
)

// SyncServer is the server API of the sync service.
type SyncServer interface {
	// Subscribe streams world info, entity lifecycle and transform updates
	// until the client goes away or the server shuts down.
	Subscribe(req *SubscribeRequest, stream SubscribeStream) error
	Drop(ctx context.Context, req *EntityRequest) (*Ack, error)
	Teleport(ctx context.Context, req *EntityRequest) (*Ack, error)
	Disappear(ctx context.Context, req *EntityRequest) (*Ack, error)
	Appear(ctx context.Context, req *EntityRequest) (*Ack, error)
	List(ctx context.Context, req *ListRequest) (*ListResponse, error)
}

// SubscribeStream is the server side of a Subscribe call.
type SubscribeStream interface {
	Send(*ServerEvent) error
	grpc.ServerStream
}

type subscribeServerStream struct {
	grpc.ServerStream
}

func (s *subscribeServerStream) Send(ev *ServerEvent) error {
	return s.ServerStream.SendMsg(ev)
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	req := new(SubscribeRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(SyncServer).Subscribe(req, &subscribeServerStream{stream})
}

func unary[Req any, PReq interface {
	*Req
	Message
}, Resp Message](name string, call func(SyncServer, context.Context, PReq) (Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			req := PReq(new(Req))
			if err := dec(req); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(SyncServer), ctx, req)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			return interceptor(ctx, req, info, func(ctx context.Context, r any) (any, error) {
				return call(srv.(SyncServer), ctx, r.(PReq))
			})
		},
	}
}

// ServiceDesc describes the sync service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SyncServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Drop", SyncServer.Drop),
		unary("Teleport", SyncServer.Teleport),
		unary("Disappear", SyncServer.Disappear),
		unary("Appear", SyncServer.Appear),
		unary("List", SyncServer.List),
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Subscribe", Handler: subscribeHandler, ServerStreams: true},
	},
	Metadata: "driftsync/v1/sync",
}

// RegisterSyncServer registers srv on s. The server must be created with
// grpc.ForceServerCodec(Codec{}).
func RegisterSyncServer(s grpc.ServiceRegistrar, srv SyncServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// SyncClient is the client API of the sync service.
type SyncClient struct {
	cc grpc.ClientConnInterface
}

// NewSyncClient wraps a connection. Every call forces the driftwire codec.
func NewSyncClient(cc grpc.ClientConnInterface) *SyncClient {
	return &SyncClient{cc: cc}
}

// EventStream is the client side of a Subscribe call.
type EventStream struct {
	grpc.ClientStream
}

// Recv blocks until the next server event arrives.
func (s *EventStream) Recv() (*ServerEvent, error) {
	ev := new(ServerEvent)
	if err := s.ClientStream.RecvMsg(ev); err != nil {
		return nil, err
	}
	return ev, nil
}

func (c *SyncClient) Subscribe(ctx context.Context, req *SubscribeRequest, opts ...grpc.CallOption) (*EventStream, error) {
	desc := &ServiceDesc.Streams[0]
	stream, err := c.cc.NewStream(ctx, desc, subscribeMethod, withCodec(opts)...)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(req); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &EventStream{stream}, nil
}

func (c *SyncClient) Drop(ctx context.Context, req *EntityRequest, opts ...grpc.CallOption) (*Ack, error) {
	out := new(Ack)
	return out, c.cc.Invoke(ctx, dropMethod, req, out, withCodec(opts)...)
}

func (c *SyncClient) Teleport(ctx context.Context, req *EntityRequest, opts ...grpc.CallOption) (*Ack, error) {
	out := new(Ack)
	return out, c.cc.Invoke(ctx, teleportMethod, req, out, withCodec(opts)...)
}

func (c *SyncClient) Disappear(ctx context.Context, req *EntityRequest, opts ...grpc.CallOption) (*Ack, error) {
	out := new(Ack)
	return out, c.cc.Invoke(ctx, disappearMethod, req, out, withCodec(opts)...)
}

func (c *SyncClient) Appear(ctx context.Context, req *EntityRequest, opts ...grpc.CallOption) (*Ack, error) {
	out := new(Ack)
	return out, c.cc.Invoke(ctx, appearMethod, req, out, withCodec(opts)...)
}

func (c *SyncClient) List(ctx context.Context, req *ListRequest, opts ...grpc.CallOption) (*ListResponse, error) {
	out := new(ListResponse)
	return out, c.cc.Invoke(ctx, listMethod, req, out, withCodec(opts)...)
}

func withCodec(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.ForceCodec(Codec{})}, opts...)
}
