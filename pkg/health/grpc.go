package health

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// GRPCChecker queries the standard gRPC health service of a pod
type GRPCChecker struct {
	// Address is the target template, e.g. "{pod}.internal:50051"
	Address string

	// Service is the service name sent in the request ("" = whole server)
	Service string

	// DialOptions override the default insecure transport
	DialOptions []grpc.DialOption
}

// NewGRPCChecker creates a new gRPC health checker
func NewGRPCChecker(address, service string) *GRPCChecker {
	return &GRPCChecker{
		Address: address,
		Service: service,
		DialOptions: []grpc.DialOption{
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		},
	}
}

// Check calls grpc.health.v1.Health/Check. The deadline comes from ctx.
func (g *GRPCChecker) Check(ctx context.Context, podID string) Result {
	start := time.Now()
	address := Expand(g.Address, podID)

	conn, err := grpc.NewClient(address, g.DialOptions...)
	if err != nil {
		return failed(start, "failed to create client: %v", err)
	}
	defer conn.Close()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{
		Service: g.Service,
	})
	if err != nil {
		return failed(start, "health rpc failed: %v", err)
	}

	status := resp.GetStatus()
	return Result{
		Healthy:   status == healthpb.HealthCheckResponse_SERVING,
		Message:   fmt.Sprintf("gRPC health %s", status),
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}

// Type returns the health check type
func (g *GRPCChecker) Type() CheckType {
	return CheckTypeGRPC
}
