package grpc

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/gooseberrytechnovision/schooniverse-checkout/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service key load balancers probe.
const ServiceName = "schooniverse.checkout"

// Pinger is a dependency whose reachability gates readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthServer serves grpc.health.v1 and flips the checkout service
// between SERVING and NOT_SERVING as its dependencies come and go.
type HealthServer struct {
	srv      *grpc.Server
	health   *health.Server
	deps     map[string]Pinger
	interval time.Duration
	log      *slog.Logger
}

func NewHealthServer(deps map[string]Pinger, interval time.Duration) *HealthServer {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	hs := &HealthServer{
		srv:      grpc.NewServer(),
		health:   health.NewServer(),
		deps:     deps,
		interval: interval,
		log:      logging.New("grpc-health"),
	}
	healthpb.RegisterHealthServer(hs.srv, hs.health)
	reflection.Register(hs.srv)
	hs.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return hs
}

// Probe pings every dependency once and publishes the result.
func (hs *HealthServer) Probe(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	for name, dep := range hs.deps {
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := dep.Ping(pctx)
		cancel()
		if err != nil {
			hs.log.Warn("dependency unhealthy", "dep", name, "err", err)
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	hs.health.SetServingStatus(ServiceName, status)
	return status
}

// Serve blocks until ctx is done, probing dependencies on an interval.
func (hs *HealthServer) Serve(ctx context.Context, lis net.Listener) error {
	go func() {
		t := time.NewTicker(hs.interval)
		defer t.Stop()
		hs.Probe(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				hs.Probe(ctx)
			}
		}
	}()
	go func() {
		<-ctx.Done()
		hs.health.Shutdown()
		hs.srv.GracefulStop()
	}()
	return hs.srv.Serve(lis)
}

func (hs *HealthServer) Check(ctx context.Context) (healthpb.HealthCheckResponse_ServingStatus, error) {
	resp, err := hs.health.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}
