package grpc

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/parsascontentcorner/linkgate/internal/auth"
)

// Server wraps the gRPC server
type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
	listener   net.Listener
	logger     *zap.Logger
	port       string
}

// TokenVerifier validates service bearer tokens
type TokenVerifier interface {
	Verify(token string) (*auth.ServiceClaims, error)
}

// methodScopes is the scope each LinkService method requires
var methodScopes = map[string]string{
	MethodIssueLinkURL:  auth.ScopeLinksRead,
	MethodGetLinkStatus: auth.ScopeLinksRead,
	MethodPreLogin:      auth.ScopeLinksRead,
	MethodReviewTicket:  auth.ScopeLinksReview,
	MethodCreateLink:    auth.ScopeLinksWrite,
}

// NewServer creates a new gRPC server
func NewServer(linkService *LinkServer, tokens TokenVerifier, port string, logger *zap.Logger) (*Server, error) {
	// Create listener - net.Listen is standard for gRPC server setup
	lis, err := net.Listen("tcp", ":"+port) //nolint:noctx // Server initialization doesn't require context
	if err != nil {
		return nil, fmt.Errorf("failed to listen on port %s: %w", port, err)
	}

	s := newServer(linkService, tokens, logger)
	s.listener = lis
	s.port = port

	logger.Info("gRPC server configured", zap.String("port", port))

	return s, nil
}

func newServer(linkService *LinkServer, tokens TokenVerifier, logger *zap.Logger) *Server {
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			loggingInterceptor(logger),
			authInterceptor(tokens, logger),
		),
	)

	RegisterLinkServiceServer(grpcServer, linkService)

	healthServer := health.NewServer()
	healthServer.SetServingStatus(LinkServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	return &Server{
		grpcServer: grpcServer,
		health:     healthServer,
		logger:     logger,
	}
}

// Serve starts the gRPC server
func (s *Server) Serve() error {
	s.logger.Info("starting gRPC server", zap.String("address", s.listener.Addr().String()))

	if err := s.grpcServer.Serve(s.listener); err != nil {
		return fmt.Errorf("failed to serve gRPC: %w", err)
	}

	return nil
}

// GracefulStop gracefully stops the gRPC server
func (s *Server) GracefulStop() {
	s.logger.Info("gracefully stopping gRPC server")
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}

// Stop immediately stops the gRPC server
func (s *Server) Stop() {
	s.logger.Info("stopping gRPC server")
	s.grpcServer.Stop()
}

// loggingInterceptor logs all gRPC requests
func loggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()

		resp, err := handler(ctx, req)

		if err != nil {
			logger.Warn("gRPC request failed",
				zap.String("method", info.FullMethod),
				zap.String("code", status.Code(err).String()),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err),
			)
		} else {
			logger.Debug("gRPC request completed",
				zap.String("method", info.FullMethod),
				zap.Duration("duration", time.Since(start)),
			)
		}

		return resp, err
	}
}

// authInterceptor requires a service bearer token with the method's scope.
// Methods outside LinkService, such as health checks, are left open.
func authInterceptor(tokens TokenVerifier, logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		scope, guarded := methodScopes[info.FullMethod]
		if !guarded {
			return handler(ctx, req)
		}

		md, _ := metadata.FromIncomingContext(ctx)
		var header string
		if values := md.Get("authorization"); len(values) > 0 {
			header = values[0]
		}
		token, ok := auth.BearerToken(header)
		if !ok {
			return nil, status.Errorf(codes.Unauthenticated, "missing bearer token")
		}

		claims, err := tokens.Verify(token)
		if err != nil {
			logger.Info("rejected service token",
				zap.String("method", info.FullMethod),
				zap.Error(err),
			)
			return nil, status.Errorf(codes.Unauthenticated, "invalid bearer token")
		}
		if !claims.HasScope(scope) {
			return nil, status.Errorf(codes.PermissionDenied, "token lacks scope %s", scope)
		}

		logger.Debug("authorized service call",
			zap.String("method", info.FullMethod),
			zap.String("subject", claims.Subject),
		)

		return handler(ctx, req)
	}
}

// bearerCredentials attaches a service token to outgoing calls
type bearerCredentials struct {
	token    string
	insecure bool
}

// BearerCredentials returns per-RPC credentials carrying token. allowInsecure permits
// plaintext transports such as a local socket.
func BearerCredentials(token string, allowInsecure bool) grpc.DialOption {
	return grpc.WithPerRPCCredentials(bearerCredentials{token: token, insecure: allowInsecure})
}

func (c bearerCredentials) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + c.token}, nil
}

func (c bearerCredentials) RequireTransportSecurity() bool {
	return !c.insecure
}
