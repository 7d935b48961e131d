// Package grpcmw provides gRPC server interceptors for rate limiting,
// adapting the unary/stream RPC context to halt.Request.
//
// Usage:
//
//	limiter := halt.NewLimiter(policy, store)
//	server := grpc.NewServer(
//	    grpc.ChainUnaryInterceptor(grpcmw.UnaryServerInterceptor(limiter)),
//	    grpc.ChainStreamInterceptor(grpcmw.StreamServerInterceptor(limiter)),
//	)
package grpcmw

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/krishna-kudari/halt"
)

// rpcRequest adapts a unary or streaming RPC's context and method name to
// halt.Request.
type rpcRequest struct {
	ctx    context.Context
	method string
}

func (r rpcRequest) Path() string      { return r.method }
func (r rpcRequest) RemoteAddr() string { return peerAddr(r.ctx) }

func (r rpcRequest) Header(name string) string {
	md, ok := metadata.FromIncomingContext(r.ctx)
	if !ok {
		return ""
	}
	if vals := md.Get(name); len(vals) > 0 {
		return vals[0]
	}
	return ""
}

func (r rpcRequest) UserID() (string, bool) {
	if v := r.Header("x-user-id"); v != "" {
		return v, true
	}
	return "", false
}

// DeniedHandler produces the gRPC error returned when a request is rate
// limited. Default: codes.ResourceExhausted with retry info.
type DeniedHandler func(ctx context.Context, decision halt.Decision) error

// Config holds full configuration for gRPC rate limit interceptors.
type Config struct {
	// Limiter is the rate limiter instance (required).
	Limiter *halt.Limiter

	// DeniedHandler produces the error returned on denial.
	DeniedHandler DeniedHandler

	// ExcludeMethods are full method names (e.g. "/pkg.Service/Method")
	// that bypass rate limiting.
	ExcludeMethods map[string]bool
}

// ─── Unary Interceptors ──────────────────────────────────────────────────────

// UnaryServerInterceptor creates a unary server interceptor with default settings.
func UnaryServerInterceptor(limiter *halt.Limiter) grpc.UnaryServerInterceptor {
	return UnaryServerInterceptorWithConfig(Config{Limiter: limiter})
}

// UnaryServerInterceptorWithConfig creates a unary server interceptor with full
// configuration control.
func UnaryServerInterceptorWithConfig(cfg Config) grpc.UnaryServerInterceptor {
	if cfg.Limiter == nil {
		panic("grpcmw: Limiter is required")
	}
	if cfg.DeniedHandler == nil {
		cfg.DeniedHandler = defaultDeniedHandler
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if cfg.ExcludeMethods != nil && cfg.ExcludeMethods[info.FullMethod] {
			return handler(ctx, req)
		}

		decision, err := cfg.Limiter.Check(ctx, rpcRequest{ctx, info.FullMethod})
		if err != nil {
			return handler(ctx, req)
		}

		setRateLimitMetadata(ctx, decision)

		if !decision.Allowed {
			return nil, cfg.DeniedHandler(ctx, decision)
		}

		return handler(ctx, req)
	}
}

// ─── Stream Interceptors ─────────────────────────────────────────────────────

// StreamServerInterceptor creates a stream server interceptor with default settings.
func StreamServerInterceptor(limiter *halt.Limiter) grpc.StreamServerInterceptor {
	return StreamServerInterceptorWithConfig(Config{Limiter: limiter})
}

// StreamServerInterceptorWithConfig creates a stream server interceptor with full
// configuration control.
func StreamServerInterceptorWithConfig(cfg Config) grpc.StreamServerInterceptor {
	if cfg.Limiter == nil {
		panic("grpcmw: Limiter is required")
	}
	if cfg.DeniedHandler == nil {
		cfg.DeniedHandler = defaultDeniedHandler
	}

	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx := ss.Context()

		if cfg.ExcludeMethods != nil && cfg.ExcludeMethods[info.FullMethod] {
			return handler(srv, ss)
		}

		decision, err := cfg.Limiter.Check(ctx, rpcRequest{ctx, info.FullMethod})
		if err != nil {
			return handler(srv, ss)
		}

		setRateLimitMetadata(ctx, decision)

		if !decision.Allowed {
			return cfg.DeniedHandler(ctx, decision)
		}

		return handler(srv, ss)
	}
}

// ─── Internals ───────────────────────────────────────────────────────────────

func peerAddr(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if ok && p.Addr != nil {
		return p.Addr.String()
	}
	return "unknown"
}

func setRateLimitMetadata(ctx context.Context, d halt.Decision) {
	md := metadata.Pairs()
	for _, h := range d.Headers() {
		md.Append(h.Name, h.Value)
	}
	_ = grpc.SetHeader(ctx, md)
}

func defaultDeniedHandler(_ context.Context, decision halt.Decision) error {
	return status.Errorf(codes.ResourceExhausted,
		"rate limit exceeded, retry after %ds", decision.RetryAfter)
}
