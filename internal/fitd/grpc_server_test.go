package fitd

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func dialBufconn(t *testing.T, s *JobStore) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := NewGRPCServer(s)
	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestGRPCGetFitAndSummary(t *testing.T) {
	s := NewJobStore()
	e := NewFitExecutor(s, "", nil)
	_, err := s.Create("g1", quickRequest())
	require.NoError(t, err)
	_, err = s.Create("g2", quickRequest())
	require.NoError(t, err)
	_, err = e.Start("g1")
	require.NoError(t, err)
	e.Wait()

	client := NewResultServiceClient(dialBufconn(t, s))
	ctx := context.Background()

	fit, err := client.GetFit(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "completed", fit.Fields["status"].GetStringValue())
	assert.True(t, fit.Fields["has_summary"].GetBoolValue())

	summary, err := client.GetSummary(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "sphere", summary.Fields["model_name"].GetStringValue())
	assert.Equal(t, 2.0, summary.Fields["completed"].GetNumberValue())
	assert.Len(t, summary.Fields["ranges"].GetListValue().GetValues(), 1)

	_, err = client.GetSummary(ctx, "g2")
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	_, err = client.GetFit(ctx, "missing")
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = client.GetFit(ctx, "")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGRPCHealth(t *testing.T) {
	conn := dialBufconn(t, NewJobStore())
	hc := healthpb.NewHealthClient(conn)

	for _, service := range []string{"", ResultServiceName} {
		resp, err := hc.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
		require.NoError(t, err)
		assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
	}
}

func TestResultGRPCServerDirect(t *testing.T) {
	srv := NewResultGRPCServer(NewJobStore())
	_, err := srv.GetFit(context.Background(), nil)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	_, err = srv.GetSummary(context.Background(), wrapperspb.String("nope"))
	assert.Equal(t, codes.NotFound, status.Code(err))
}
