// Package remotetest runs an in-process backend over bufconn for client-side tests.
package remotetest

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/and161185/noteloom/internal/remote"
	"github.com/and161185/noteloom/internal/repository/memory"
	"github.com/and161185/noteloom/internal/rpc"
	grpcserver "github.com/and161185/noteloom/internal/server/grpc"
	"github.com/and161185/noteloom/internal/service"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
)

// APIKey is the key the test server expects.
const APIKey = "test-anon-key"

// Server is a running backend backed by memory repositories.
type Server struct {
	Accounts *memory.Accounts
	Rows     *memory.Rows

	lis *bufconn.Listener
	gs  *grpc.Server
}

// Start launches a backend; it is stopped when tb finishes.
func Start(tb testing.TB) *Server {
	tb.Helper()
	signKey := []byte("remotetest-signing-key")
	accounts := memory.NewAccounts()
	rows := memory.NewRows()
	app := grpcserver.New(
		service.NewAuthService(accounts, signKey, time.Hour, nil),
		service.NewRowService(rows, accounts, 0),
		signKey,
	)
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(
		grpcserver.RecoverUnary(zap.NewNop()),
		grpcserver.APIKeyUnary(APIKey),
		app.AuthUnary(),
	))
	rpc.RegisterBackendServer(gs, app)

	s := &Server{Accounts: accounts, Rows: rows, lis: bufconn.Listen(1 << 20), gs: gs}
	go func() { _ = gs.Serve(s.lis) }()
	tb.Cleanup(s.Stop)
	return s
}

// Stop shuts the backend down; clients see ErrUnavailable afterwards.
func (s *Server) Stop() {
	s.gs.Stop()
	_ = s.lis.Close()
}

// Client returns a fresh client (own connection, no session).
func (s *Server) Client(tb testing.TB) *remote.GRPC {
	tb.Helper()
	dialer := func(context.Context, string) (net.Conn, error) { return s.lis.Dial() }
	cc, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(dialer), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		tb.Fatalf("dial: %v", err)
	}
	tb.Cleanup(func() { _ = cc.Close() })
	return remote.NewGRPC(cc, APIKey, zap.NewNop())
}
