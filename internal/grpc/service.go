package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// LinkServiceName is the fully qualified gRPC service name
const LinkServiceName = "linkgate.v1.LinkService"

// Full method names
const (
	MethodIssueLinkURL  = "/" + LinkServiceName + "/IssueLinkURL"
	MethodGetLinkStatus = "/" + LinkServiceName + "/GetLinkStatus"
	MethodPreLogin      = "/" + LinkServiceName + "/PreLogin"
	MethodReviewTicket  = "/" + LinkServiceName + "/ReviewTicket"
	MethodCreateLink    = "/" + LinkServiceName + "/CreateLink"
)

// LinkServiceServer is the server API for LinkService.
// Requests and responses are protobuf Structs so that chat bots in any language can call
// the service without generated stubs.
type LinkServiceServer interface {
	IssueLinkURL(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetLinkStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
	PreLogin(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ReviewTicket(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateLink(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(LinkServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryMethod) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(LinkServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(LinkServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// LinkServiceDesc is the grpc.ServiceDesc for LinkService
var LinkServiceDesc = grpc.ServiceDesc{
	ServiceName: LinkServiceName,
	HandlerType: (*LinkServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "IssueLinkURL", Handler: unaryHandler(MethodIssueLinkURL, LinkServiceServer.IssueLinkURL)},
		{MethodName: "GetLinkStatus", Handler: unaryHandler(MethodGetLinkStatus, LinkServiceServer.GetLinkStatus)},
		{MethodName: "PreLogin", Handler: unaryHandler(MethodPreLogin, LinkServiceServer.PreLogin)},
		{MethodName: "ReviewTicket", Handler: unaryHandler(MethodReviewTicket, LinkServiceServer.ReviewTicket)},
		{MethodName: "CreateLink", Handler: unaryHandler(MethodCreateLink, LinkServiceServer.CreateLink)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "linkgate/v1/link_service.proto",
}

// RegisterLinkServiceServer registers srv with s
func RegisterLinkServiceServer(s grpc.ServiceRegistrar, srv LinkServiceServer) {
	s.RegisterService(&LinkServiceDesc, srv)
}

// LinkServiceClient is the client API for LinkService
type LinkServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewLinkServiceClient creates a client on cc
func NewLinkServiceClient(cc grpc.ClientConnInterface) *LinkServiceClient {
	return &LinkServiceClient{cc: cc}
}

func (c *LinkServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// IssueLinkURL calls LinkService.IssueLinkURL
func (c *LinkServiceClient) IssueLinkURL(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodIssueLinkURL, in, opts...)
}

// GetLinkStatus calls LinkService.GetLinkStatus
func (c *LinkServiceClient) GetLinkStatus(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodGetLinkStatus, in, opts...)
}

// PreLogin calls LinkService.PreLogin
func (c *LinkServiceClient) PreLogin(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodPreLogin, in, opts...)
}

// ReviewTicket calls LinkService.ReviewTicket
func (c *LinkServiceClient) ReviewTicket(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodReviewTicket, in, opts...)
}

// CreateLink calls LinkService.CreateLink
func (c *LinkServiceClient) CreateLink(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodCreateLink, in, opts...)
}
