package api

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"turfhub/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type stubPinger struct {
	err error
}

func (p *stubPinger) Ping(context.Context) error { return p.err }

func startBufconnServer(t *testing.T, pinger Pinger) (*GRPCServer, healthpb.HealthClient) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	logger := zerolog.New(io.Discard)
	cfg := &config.APIConfig{GRPC: config.APIGRPCConfig{Reflection: true, HealthInterval: time.Hour}}

	srv := newGRPCServer(cfg, pinger, lis, &logger)
	go func() { _ = srv.Serve() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) { return lis.Dial() }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return srv, healthpb.NewHealthClient(conn)
}

func healthStatus(t *testing.T, client healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestGRPCHealth_NotServingUntilChecked(t *testing.T) {
	_, client := startBufconnServer(t, &stubPinger{})
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, healthStatus(t, client, HealthServiceName))
}

func TestGRPCHealth_FollowsStorePing(t *testing.T) {
	pinger := &stubPinger{}
	srv, client := startBufconnServer(t, pinger)

	srv.checkHealth(context.Background())
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, healthStatus(t, client, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, healthStatus(t, client, HealthServiceName))

	pinger.err = errors.New("connection refused")
	srv.checkHealth(context.Background())
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, healthStatus(t, client, HealthServiceName))
}

func TestGRPCHealth_UnknownService(t *testing.T) {
	_, client := startBufconnServer(t, nil)

	_, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "bookings"})
	require.Error(t, err)
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestGRPCServer_WatchHealthStopsOnCancel(t *testing.T) {
	srv, client := startBufconnServer(t, &stubPinger{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		srv.WatchHealth(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return healthStatus(t, client, HealthServiceName) == healthpb.HealthCheckResponse_SERVING
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WatchHealth did not return after cancel")
	}
}

func TestChainUnaryInterceptors_Order(t *testing.T) {
	var calls []string
	mark := func(name string) grpc.UnaryServerInterceptor {
		return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
			calls = append(calls, name)
			return handler(ctx, req)
		}
	}

	chain := ChainUnaryInterceptors(mark("first"), mark("second"))
	resp, err := chain(context.Background(), "req", &grpc.UnaryServerInfo{FullMethod: "/test"}, func(context.Context, any) (any, error) {
		calls = append(calls, "handler")
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
	assert.Equal(t, []string{"first", "second", "handler"}, calls)
}

func TestRecoveryUnaryInterceptor(t *testing.T) {
	logger := zerolog.New(io.Discard)
	interceptor := RecoveryUnaryInterceptor(&logger)

	_, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/test"}, func(context.Context, any) (any, error) {
		panic("boom")
	})
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestRequestIDFromMetadata(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(requestIDMetadataKey, "req-42"))
	assert.Equal(t, "req-42", requestIDFromMetadata(ctx))

	generated := requestIDFromMetadata(context.Background())
	assert.Len(t, generated, 36)
}
