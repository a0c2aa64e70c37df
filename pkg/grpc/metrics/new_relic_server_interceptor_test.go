package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	grpc_core "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestCustomNewRelicUnaryServerInterceptor_NoApp(t *testing.T) {
	interceptor := CustomNewRelicUnaryServerInterceptor(nil)

	info := &grpc_core.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

	resp, err := interceptor(context.Background(), "req", info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return "resp", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "resp", resp)

	_, err = interceptor(context.Background(), "req", info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, status.Error(codes.Unavailable, "unavailable")
	})
	assert.Equal(t, codes.Unavailable, status.Code(err))
}

func TestGetURL(t *testing.T) {
	u := getURL("grpc.health.v1.Health/Check", "dns:///localhost:8086")
	assert.Equal(t, "grpc", u.Scheme)
	assert.Equal(t, "localhost:8086", u.Host)
	assert.Equal(t, "grpc.health.v1.Health/Check", u.Path)

	u = getURL("grpc.health.v1.Health/Check", "unix:/tmp/socket")
	assert.Equal(t, "localhost", u.Host)
}
