package grpc

import (
	"context"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/paperclip/paperclip/internal/common"
	"github.com/paperclip/paperclip/internal/server/metrics"
	"github.com/paperclip/paperclip/internal/server/models"
)

// SessionResolver is satisfied by *auth.Resolver.
type SessionResolver interface {
	ResolveRequired(ctx context.Context, header string) (*models.User, error)
}

type ctxKey string

const userKey ctxKey = "user"

const modeGRPC = "grpc"

// publicPrefixes lists services callable without a session.
var publicPrefixes = []string{
	"/grpc.health.v1.Health/",
}

// UserFromContext returns the user attached by the session interceptor.
func UserFromContext(ctx context.Context) *models.User {
	u, _ := ctx.Value(userKey).(*models.User)
	return u
}

func isPublic(method string) bool {
	for _, p := range publicPrefixes {
		if strings.HasPrefix(method, p) {
			return true
		}
	}
	return false
}

// sessionInterceptor resolves the "authorization" metadata the same way the
// HTTP API resolves its header.
func (s *GRPCServer) sessionInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {

	if isPublic(info.FullMethod) {
		return handler(ctx, req)
	}

	var header string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(strings.ToLower(common.AuthorizationHeaderName)); len(values) > 0 {
			header = values[0]
		}
	}

	user, err := s.resolver.ResolveRequired(ctx, header)
	switch {
	case err == nil:
		s.observe(metrics.OutcomeAuthenticated)
	case common.IsAuthRejection(err):
		s.observe(metrics.OutcomeRejected)
		return nil, status.Error(codes.Unauthenticated, "unauthorized")
	default:
		s.observe(metrics.OutcomeError)
		s.logger.Error(ctx, "session lookup failed", "method", info.FullMethod, "error", err)
		return nil, status.Error(codes.Internal, "internal error")
	}

	return handler(context.WithValue(ctx, userKey, user), req)
}

func (s *GRPCServer) observe(outcome string) {
	if s.metrics != nil {
		s.metrics.AuthResolutions.WithLabelValues(modeGRPC, outcome).Inc()
	}
}

func (s *GRPCServer) loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.logger.Info(ctx, "grpc request",
		"method", info.FullMethod,
		"code", status.Code(err).String(),
		"duration", time.Since(start),
	)
	return resp, err
}
