// Package grpc serves the gRPC health protocol for the booking core.
package grpc

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the name the booking service reports health under, next
// to the overall "" entry.
const ServiceName = "sessionbook.v1.Booking"

// Check probes one dependency, such as the database.
type Check struct {
	Name string
	Run  func(ctx context.Context) error
}

// NewServer builds a gRPC server whose unary calls get timeout unless the
// caller already set a deadline.
func NewServer(timeout time.Duration, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{grpc.UnaryInterceptor(defaultRequestTimeoutInterceptor(timeout))}, opts...)
	return grpc.NewServer(opts...)
}

func defaultRequestTimeoutInterceptor(timeout time.Duration) grpc.UnaryServerInterceptor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if _, ok := ctx.Deadline(); ok {
			return handler(ctx, req)
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		return handler(ctx, req)
	}
}

// HealthReporter runs dependency checks on an interval and publishes the
// result through the standard health service.
type HealthReporter struct {
	srv      *health.Server
	checks   []Check
	interval time.Duration
	timeout  time.Duration
	log      *slog.Logger
}

func NewHealthReporter(interval time.Duration, log *slog.Logger, checks ...Check) *HealthReporter {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &HealthReporter{
		srv:      health.NewServer(),
		checks:   checks,
		interval: interval,
		timeout:  interval / 2,
		log:      log.With(slog.String("component", "grpc.health")),
	}
}

func (r *HealthReporter) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, r.srv)
}

// CheckOnce runs every check and reports SERVING only if all pass.
func (r *HealthReporter) CheckOnce(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	for _, c := range r.checks {
		cctx, cancel := context.WithTimeout(ctx, r.timeout)
		err := c.Run(cctx)
		cancel()
		if err != nil {
			r.log.Warn("health check failed", slog.String("check", c.Name), slog.Any("err", err))
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	r.srv.SetServingStatus("", status)
	r.srv.SetServingStatus(ServiceName, status)
	return status
}

// Run checks until ctx is done, then marks everything NOT_SERVING.
func (r *HealthReporter) Run(ctx context.Context) {
	r.CheckOnce(ctx)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.srv.Shutdown()
			return
		case <-ticker.C:
			r.CheckOnce(ctx)
		}
	}
}
