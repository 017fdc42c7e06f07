package app

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/gooseberrytechnovision/schooniverse-checkout/configs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	require.NoError(t, lis.Close())
	return addr
}

func TestRun_GRPCBindFailureStartsNothing(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()

	var cfg configs.Config
	cfg.GRPC.Addr = taken.Addr().String()
	httpAddr := freeAddr(t)
	a := &App{cfg: cfg, http: &http.Server{Addr: httpAddr, Handler: http.NotFoundHandler()}}

	err = a.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "grpc listen")

	conn, err := net.DialTimeout("tcp", httpAddr, 200*time.Millisecond)
	if err == nil {
		conn.Close()
	}
	assert.Error(t, err, "http must not be serving after a failed start")
}
