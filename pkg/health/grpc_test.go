package health

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func startHealthServer(t *testing.T) (string, *grpchealth.Server) {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := grpc.NewServer()
	hs := grpchealth.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	return lis.Addr().String(), hs
}

func TestGRPCChecker(t *testing.T) {
	addr, hs := startHealthServer(t)
	hs.SetServingStatus("inference", healthpb.HealthCheckResponse_SERVING)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	result := NewGRPCChecker(addr, "inference").Check(ctx, "pod-1")
	assert.True(t, result.Healthy, result.Message)

	hs.SetServingStatus("inference", healthpb.HealthCheckResponse_NOT_SERVING)
	result = NewGRPCChecker(addr, "inference").Check(ctx, "pod-1")
	assert.False(t, result.Healthy)
	assert.Contains(t, result.Message, "NOT_SERVING")
}

func TestGRPCChecker_UnknownService(t *testing.T) {
	addr, _ := startHealthServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	result := NewGRPCChecker(addr, "missing").Check(ctx, "pod-1")
	assert.False(t, result.Healthy)
	assert.Contains(t, result.Message, "health rpc failed")
}

func TestTCPChecker(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer lis.Close()

	go func() {
		for {
			conn, err := lis.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	_, port, _ := strings.Cut(lis.Addr().String(), ":")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	result := NewTCPChecker("{pod}:"+port).Check(ctx, "127.0.0.1")
	assert.True(t, result.Healthy, result.Message)

	lis.Close()
	result = NewTCPChecker("{pod}:"+port).Check(ctx, "127.0.0.1")
	assert.False(t, result.Healthy)
}

func TestExecChecker(t *testing.T) {
	ctx := context.Background()

	result := NewExecChecker([]string{"sh", "-c", `test "$GINGO_POD_ID" = "$0"`, "{pod}"}).Check(ctx, "pod-4")
	assert.True(t, result.Healthy, result.Message)

	result = NewExecChecker([]string{"sh", "-c", "exit 3"}).Check(ctx, "pod-4")
	assert.False(t, result.Healthy)

	result = NewExecChecker(nil).Check(ctx, "pod-4")
	assert.False(t, result.Healthy)
	assert.Equal(t, "no command specified", result.Message)
}
