package chanserver

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "seclink.channel.v1.Channel"

const (
	transmitMethod  = "/" + ServiceName + "/Transmit"
	receiveMethod   = "/" + ServiceName + "/Receive"
	configureMethod = "/" + ServiceName + "/Configure"
)

// channelService is the wire-level surface; the well-known wrapper types stand in for
// dedicated messages.
type channelService interface {
	Transmit(context.Context, *wrapperspb.BytesValue) (*emptypb.Empty, error)
	Receive(context.Context, *emptypb.Empty) (*wrapperspb.BytesValue, error)
	Configure(context.Context, *wrapperspb.DoubleValue) (*emptypb.Empty, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*channelService)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Transmit", Handler: transmitHandler},
		{MethodName: "Receive", Handler: receiveHandler},
		{MethodName: "Configure", Handler: configureHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "seclink/channel/v1/channel.proto",
}

// Register exposes s on r.
func Register(r grpc.ServiceRegistrar, s *Server) {
	r.RegisterService(&serviceDesc, &channelGRPC{inner: s})
}

// channelGRPC wraps Server into the wire interface.
type channelGRPC struct {
	inner *Server
}

func (c *channelGRPC) Transmit(ctx context.Context, in *wrapperspb.BytesValue) (*emptypb.Empty, error) {
	if err := c.inner.Transmit(ctx, in.GetValue()); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

func (c *channelGRPC) Receive(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.BytesValue, error) {
	cw, err := c.inner.Receive(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.Bytes(cw), nil
}

func (c *channelGRPC) Configure(ctx context.Context, in *wrapperspb.DoubleValue) (*emptypb.Empty, error) {
	if err := c.inner.Configure(ctx, in.GetValue()); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, ErrBadRate), errors.Is(err, ErrEmpty):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

func transmitHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(channelService).Transmit(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: transmitMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(channelService).Transmit(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

func receiveHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(channelService).Receive(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: receiveMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(channelService).Receive(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func configureHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.DoubleValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(channelService).Configure(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: configureMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(channelService).Configure(ctx, req.(*wrapperspb.DoubleValue))
	}
	return interceptor(ctx, in, info, handler)
}

// Client is a typed stub for the channel service.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client { return &Client{cc: cc} }

func (c *Client) Transmit(ctx context.Context, cw []byte) error {
	return c.cc.Invoke(ctx, transmitMethod, wrapperspb.Bytes(cw), new(emptypb.Empty))
}

func (c *Client) Receive(ctx context.Context) ([]byte, error) {
	out := new(wrapperspb.BytesValue)
	if err := c.cc.Invoke(ctx, receiveMethod, &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	return out.GetValue(), nil
}

func (c *Client) Configure(ctx context.Context, ber float64) error {
	return c.cc.Invoke(ctx, configureMethod, wrapperspb.Double(ber), new(emptypb.Empty))
}
