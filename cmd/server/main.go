// Command noteloom-server starts the NoteLoom sync backend gRPC server.
package main

import (
	"context"
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/and161185/noteloom/internal/limiter"
	"github.com/and161185/noteloom/internal/migrate"
	"github.com/and161185/noteloom/internal/repository"
	"github.com/and161185/noteloom/internal/repository/memory"
	"github.com/and161185/noteloom/internal/repository/postgres"
	"github.com/and161185/noteloom/internal/rpc"
	grpcserver "github.com/and161185/noteloom/internal/server/grpc"
	"github.com/and161185/noteloom/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

const drainTimeout = 5 * time.Second

// main parses configuration, runs migrations, and starts the gRPC server.
func main() {
	addr := flag.String("addr", ":8443", "listen address")
	dsn := flag.String("dsn", os.Getenv("NOTELOOM_DSN"), "PostgreSQL DSN (empty: in-memory store, dev only)")
	jwtKey := flag.String("jwt-key", os.Getenv("NOTELOOM_JWT_KEY"), "HS256 signing key (required)")
	apiKey := flag.String("api-key", os.Getenv("NOTELOOM_API_KEY"), "project api key expected in \"apikey\" metadata (empty: not checked)")
	accessTTL := flag.Duration("access-ttl", time.Hour, "access token TTL")
	maxConns := flag.Int("max-conns", 0, "max PostgreSQL connections (0: pgx default)")
	maxRow := flag.Int("max-row-bytes", 4<<20, "max JSON payload per row")
	certFile := flag.String("tls-cert", "", "TLS certificate (PEM); empty serves plaintext")
	keyFile := flag.String("tls-key", "", "TLS private key (PEM)")
	dev := flag.Bool("dev", false, "enable server reflection (dev only)")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", *addr),
	)

	if *jwtKey == "" {
		logger.Fatal("missing jwt signing key (--jwt-key)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		accounts repository.AccountRepository
		rows     repository.RowRepository
		lim      limiter.Limiter = limiter.Nop{}
	)
	if *dsn == "" {
		logger.Warn("no --dsn given, using in-memory store; data is lost on exit")
		accounts, rows = memory.NewAccounts(), memory.NewRows()
	} else {
		if err := migrate.Up(ctx, *dsn); err != nil {
			logger.Fatal("migrate up", zap.Error(err))
		}
		db, pool, err := postgres.Open(ctx, *dsn, int32(*maxConns))
		if err != nil {
			logger.Fatal("open postgres", zap.Error(err))
		}
		defer db.Close()

		accounts = postgres.NewAccountRepo(db)
		rows = postgres.NewRowRepo(db)
		lim = limiter.NewPG(pool, 15*time.Minute, 5, 15*time.Minute)
	}

	authSvc := service.NewAuthService(accounts, []byte(*jwtKey), *accessTTL, lim)
	rowSvc := service.NewRowService(rows, accounts, *maxRow)
	app := grpcserver.New(authSvc, rowSvc, []byte(*jwtKey))

	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			grpcserver.RecoverUnary(logger),
			grpcserver.LoggingUnary(logger),
			grpcserver.APIKeyUnary(*apiKey),
			app.AuthUnary(),
		),
	}
	if *certFile != "" {
		creds, err := credentials.NewServerTLSFromFile(*certFile, *keyFile)
		if err != nil {
			logger.Fatal("failed to load TLS cert/key", zap.Error(err))
		}
		opts = append(opts, grpc.Creds(creds))
	}
	s := grpc.NewServer(opts...)
	rpc.RegisterBackendServer(s, app)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	if *dev {
		reflection.Register(s)
	}

	lis, err := net.Listen("tcp", *addr)
	if err != nil {
		logger.Fatal("listen", zap.Error(err))
	}

	if err := serve(ctx, s, hs, lis, logger); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

// serve blocks until ctx is cancelled or the listener fails. On cancel the
// health status flips to NOT_SERVING and in-flight calls get drainTimeout to finish.
func serve(ctx context.Context, s *grpc.Server, hs *health.Server, lis net.Listener, log *zap.Logger) error {
	hs.SetServingStatus(rpc.ServiceName, healthpb.HealthCheckResponse_SERVING)

	served := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", lis.Addr().String()))
		served <- s.Serve(lis)
	}()

	select {
	case err := <-served:
		return err
	case <-ctx.Done():
	}

	hs.Shutdown()
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		s.GracefulStop()
	}()
	t := time.NewTimer(drainTimeout)
	defer t.Stop()
	select {
	case <-drained:
	case <-t.C:
		log.Warn("drain timeout, closing open calls")
		s.Stop()
	}
	return nil
}
