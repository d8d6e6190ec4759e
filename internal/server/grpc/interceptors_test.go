package grpcserver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

type fakeAddr struct{}

func (fakeAddr) Network() string { return "tcp" }
func (fakeAddr) String() string  { return "127.0.0.1:12345" }

func TestLoggingUnary_Passthrough(t *testing.T) {
	t.Parallel()

	log := zaptest.NewLogger(t)
	ic := LoggingUnary(log)

	ctx := context.Background()

	ctx = peer.NewContext(ctx, &peer.Peer{Addr: fakeAddr{}})

	h := func(ctx context.Context, req any) (any, error) { return "ok", nil }
	info := &grpc.UnaryServerInfo{FullMethod: "/noteloom.v1.Backend/Method"}

	resp, err := ic(ctx, "req", info, h)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if s, _ := resp.(string); s != "ok" {
		t.Fatalf("resp mismatch: %v", resp)
	}

	wantErr := errors.New("boom")
	hErr := func(ctx context.Context, req any) (any, error) { return nil, wantErr }
	_, err = ic(ctx, "req", info, hErr)
	if !errors.Is(err, wantErr) {
		t.Fatalf("want original error, got: %v", err)
	}
}

func TestRecoverUnary_CatchesPanic(t *testing.T) {
	t.Parallel()

	log := zaptest.NewLogger(t)
	ic := RecoverUnary(log)

	ctx := context.Background()
	info := &grpc.UnaryServerInfo{FullMethod: "/noteloom.v1.Backend/Panic"}

	panicH := func(ctx context.Context, req any) (any, error) {
		panic("oh no")
	}

	_, err := ic(ctx, "req", info, panicH)
	if err == nil {
		t.Fatalf("expected error from panic")
	}
	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.Internal {
		t.Fatalf("want codes.Internal, got: %v", err)
	}
}

func TestRecoverUnary_NoPanicPassThrough(t *testing.T) {
	t.Parallel()

	log := zaptest.NewLogger(t)
	ic := RecoverUnary(log)

	ctx := context.Background()
	info := &grpc.UnaryServerInfo{FullMethod: "/noteloom.v1.Backend/Ok"}

	h := func(ctx context.Context, req any) (any, error) { return 42, nil }

	resp, err := ic(ctx, "req", info, h)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if resp.(int) != 42 {
		t.Fatalf("resp mismatch: %v", resp)
	}
}

func TestLoggingUnary_DurationFieldDoesNotBlock(t *testing.T) {
	t.Parallel()

	log := zaptest.NewLogger(t)
	ic := LoggingUnary(log)

	ctx := context.Background()
	info := &grpc.UnaryServerInfo{FullMethod: "/noteloom.v1.Backend/Sleep"}
	h := func(ctx context.Context, req any) (any, error) {
		time.Sleep(5 * time.Millisecond)
		return "done", nil
	}

	start := time.Now()
	resp, err := ic(ctx, "req", info, h)
	if err != nil || resp.(string) != "done" {
		t.Fatalf("unexpected result: %v, %v", resp, err)
	}
	if time.Since(start) < 5*time.Millisecond {
		t.Fatalf("duration should reflect handler time")
	}
}

func TestAPIKeyUnary(t *testing.T) {
	t.Parallel()

	h := func(ctx context.Context, req any) (any, error) { return "ok", nil }
	info := &grpc.UnaryServerInfo{FullMethod: "/noteloom.v1.Backend/CountRows"}

	ic := APIKeyUnary("k1")
	_, err := ic(context.Background(), nil, info, h)
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("want Unauthenticated without key, got %v", err)
	}
	bad := metadata.NewIncomingContext(context.Background(), metadata.Pairs(APIKeyHeader, "k2"))
	if _, err := ic(bad, nil, info, h); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("want Unauthenticated on wrong key, got %v", err)
	}
	good := metadata.NewIncomingContext(context.Background(), metadata.Pairs(APIKeyHeader, "k1"))
	if resp, err := ic(good, nil, info, h); err != nil || resp != "ok" {
		t.Fatalf("resp=%v err=%v", resp, err)
	}

	if _, err := APIKeyUnary("")(context.Background(), nil, info, h); err != nil {
		t.Fatalf("empty key must disable the check: %v", err)
	}
}

func TestAuthUnary_PublicAndProtected(t *testing.T) {
	t.Parallel()

	s := &Server{signKey: []byte("k")}
	ic := s.AuthUnary()
	var seen bool
	h := func(ctx context.Context, req any) (any, error) {
		_, seen = AccountIDFrom(ctx)
		return nil, nil
	}

	if _, err := ic(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/noteloom.v1.Backend/SignIn"}, h); err != nil {
		t.Fatalf("public method rejected: %v", err)
	}
	if seen {
		t.Fatalf("public method must not carry an account id")
	}

	protected := &grpc.UnaryServerInfo{FullMethod: "/noteloom.v1.Backend/SelectRow"}
	if _, err := ic(context.Background(), nil, protected, h); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("want Unauthenticated, got %v", err)
	}

	tok := jwtFor(t, uuid.Must(uuid.NewV4()).String(), s.signKey, time.Minute)
	if _, err := ic(ctxAuth(tok), nil, protected, h); err != nil {
		t.Fatalf("valid token rejected: %v", err)
	}
	if !seen {
		t.Fatalf("account id not stored in ctx")
	}
}
