package main

import (
	"context"
	"database/sql"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"fuelgrid.org/internal/access"
	"fuelgrid.org/internal/audit"
	"fuelgrid.org/internal/config"
	"fuelgrid.org/internal/httpapi"
	"fuelgrid.org/internal/obs"
	"fuelgrid.org/internal/stream"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	var (
		db    *sql.DB
		store access.Store
	)
	if cfg.Database.DSN != "" {
		db, err = sql.Open("pgx", cfg.Database.DSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
		store = access.NewPGStore(db)
	}

	opts := httpapi.Options{
		DefaultTenant: cfg.Auth.Tenant,
		MaxBodyBytes:  cfg.Server.MaxBodyBytes,
		RateBurst:     cfg.Server.RateBurst,
		RatePerSecond: cfg.Server.RatePerSecond,
		Stream:        stream.New(),
	}

	if store != nil {
		recorder, err := audit.NewRecorder(store.Audit(context.Background()), opts.Stream)
		if err != nil {
			log.Fatalf("audit recorder: %v", err)
		}
		roles, err := access.NewRoles(store, recorder)
		if err != nil {
			log.Fatalf("role manager: %v", err)
		}
		users, err := access.NewUsers(store, recorder)
		if err != nil {
			log.Fatalf("user manager: %v", err)
		}
		sessions, err := access.NewSessions(store,
			access.WithAccessTTL(cfg.Auth.AccessTTL),
			access.WithRefreshTTL(cfg.Auth.RefreshTTL),
		)
		if err != nil {
			log.Fatalf("session manager: %v", err)
		}
		if cfg.Auth.TokenSecret == "" {
			log.Fatal("missing token secret: set FUELGRID_AUTH_TOKEN_SECRET or auth.token_secret")
		}
		tokens, err := access.NewTokenIssuer(cfg.Auth.TokenSecret, nil)
		if err != nil {
			log.Fatalf("token issuer: %v", err)
		}

		if cfg.Auth.Tenant != "" {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := roles.EnsureBuiltins(ctx, cfg.Auth.Tenant); err != nil {
				cancel()
				log.Fatalf("ensure builtin roles: %v", err)
			}
			cancel()
		}

		opts.Store = store
		opts.Roles = roles
		opts.Users = users
		opts.Sessions = sessions
		opts.Tokens = tokens
	}

	api := httpapi.New(httpapi.ReadyProbe{DB: db}, version, opts)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	obs.Log("info", "starting fuelgrid-api", map[string]any{"version": version, "addr": srv.Addr})

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	// gRPC health endpoint for infrastructure probes.
	var grpcSrv *grpc.Server
	if cfg.Server.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			log.Fatalf("grpc listen: %v", err)
		}
		grpcSrv = grpc.NewServer()
		healthSrv := health.NewServer()
		healthSrv.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
		grpc_health_v1.RegisterHealthServer(grpcSrv, healthSrv)
		go func() {
			if err := grpcSrv.Serve(lis); err != nil {
				log.Fatalf("grpc serve: %v", err)
			}
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	obs.Log("info", "shutting down", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}
	if db != nil {
		_ = db.Close()
	}
	api.Close()
	obs.Log("info", "stopped", nil)
}
