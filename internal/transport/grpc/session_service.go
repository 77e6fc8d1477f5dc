package transportgrpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	grpcinterceptors "github.com/arklim/social-login-auth/internal/transport/grpc/interceptors"
)

const (
	// SessionServiceName is the fully qualified name of the introspection service.
	SessionServiceName = "auth.v1.SessionService"
	// IntrospectMethod lets sibling services check a bearer token against the
	// signer and the revocation store without sharing the signing secret.
	IntrospectMethod = "/" + SessionServiceName + "/Introspect"
)

// SessionIntrospector answers token introspection calls. The caller is already
// authenticated by the auth interceptor when Introspect runs.
type SessionIntrospector interface {
	Introspect(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
}

// SessionServer implements SessionIntrospector from the claims on the context.
type SessionServer struct{}

// Introspect returns the subject and lifetime of the presented access token.
func (SessionServer) Introspect(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	claims, ok := grpcinterceptors.ClaimsFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "authentication required")
	}

	return structpb.NewStruct(map[string]any{
		"active":     true,
		"user_id":    claims.UserID(),
		"token_id":   claims.ID,
		"issuer":     claims.Issuer,
		"expires_at": claims.Expiry().Unix(),
	})
}

func registerSessionService(s *grpc.Server, srv SessionIntrospector) {
	s.RegisterService(&sessionServiceDesc, srv)
}

var sessionServiceDesc = grpc.ServiceDesc{
	ServiceName: SessionServiceName,
	HandlerType: (*SessionIntrospector)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Introspect", Handler: introspectHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "auth/v1/session.proto",
}

func introspectHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SessionIntrospector).Introspect(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: IntrospectMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SessionIntrospector).Introspect(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}
