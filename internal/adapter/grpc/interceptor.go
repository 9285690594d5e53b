package grpc

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/simaogato/equityflow-backend/internal/auth"
)

// AuthInterceptor returns a gRPC unary server interceptor that validates
// the bearer token from request metadata.
// If the token is missing or invalid, it returns status.Unauthenticated.
// If valid, it calls the handler with the token subject on the context.
func AuthInterceptor(tokens *auth.TokenManager) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}

		authHeaders := md.Get("authorization")
		if len(authHeaders) == 0 {
			return nil, status.Error(codes.Unauthenticated, "missing authorization header")
		}

		subject, err := tokens.Verify(auth.BearerToken(authHeaders[0]))
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}

		if call, ok := ctx.Value(callLogKey{}).(*callLog); ok {
			call.subject = subject
		}
		return handler(auth.WithSubject(ctx, subject), req)
	}
}

// callLog carries what inner interceptors learn about a call back out to
// LoggingInterceptor, which runs first so rejected calls are logged too.
type callLog struct {
	subject string
}

type callLogKey struct{}

// LoggingInterceptor logs every unary call with its status code and duration.
// Chain it before AuthInterceptor.
func LoggingInterceptor(log *logrus.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()
		call := &callLog{}
		if subject, ok := auth.SubjectFromContext(ctx); ok {
			call.subject = subject
		}
		resp, err := handler(context.WithValue(ctx, callLogKey{}, call), req)

		entry := log.WithFields(logrus.Fields{
			"method":      info.FullMethod,
			"code":        status.Code(err).String(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
		if call.subject != "" {
			entry = entry.WithField("subject", call.subject)
		}
		switch status.Code(err) {
		case codes.Internal:
			entry.WithError(err).Error("rpc failed")
		case codes.Unauthenticated:
			entry.Warn("rpc rejected")
		default:
			entry.Debug("rpc handled")
		}

		return resp, err
	}
}
