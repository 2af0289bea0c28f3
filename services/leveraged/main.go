package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	recordconfig "leverageloop/config"
	"leverageloop/native/devnet"
	"leverageloop/observability/logging"
	telemetry "leverageloop/observability/otel"
	"leverageloop/services/leveraged/config"
	"leverageloop/services/leveraged/server"
	"leverageloop/services/leveraged/storage"
	ledgerstore "leverageloop/storage"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "services/leveraged/config.yaml", "path to leveraged config")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("LEVERAGE_ENV"))
	logger := logging.Setup("leveraged", env)
	telemetryCfg := telemetry.ConfigFromEnv("leveraged", env)
	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetryCfg)
	if err != nil {
		log.Fatalf("init telemetry: %v", err)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	record, err := recordconfig.Load(cfg.RecordPath)
	if err != nil {
		log.Fatalf("load deployment record: %v", err)
	}
	if cfg.Faucet.Enabled && !strings.EqualFold(env, "dev") {
		logger.Warn("faucet enabled outside dev environment", slog.String("env", env))
	}

	var db ledgerstore.Database
	if cfg.InMemory {
		db = ledgerstore.NewMemDB()
	} else {
		ldb, err := ledgerstore.NewLevelDB(record.DataDir)
		if err != nil {
			log.Fatalf("open ledger database %s: %v", record.DataDir, err)
		}
		db = ldb
	}
	defer db.Close()

	chain, err := devnet.Deploy(context.Background(), db, record, devnet.WithLogger(logger))
	if err != nil {
		log.Fatalf("deploy devnet: %v", err)
	}
	receipts, err := storage.Open(cfg.Receipts.DSN)
	if err != nil {
		log.Fatalf("open receipts: %v", err)
	}
	defer receipts.Close()

	srv, err := server.New(server.Config{Devnet: chain, Receipts: receipts, Logger: logger, Settings: cfg})
	if err != nil {
		log.Fatalf("build server: %v", err)
	}
	handler := instrument(srv.Handler(), telemetryCfg.Traces)
	if err := serve(cfg.ListenAddress, handler, logger); err != nil {
		log.Fatalf("serve: %v", err)
	}
}

// instrument wraps handler in a server span per request when tracing is on.
func instrument(handler http.Handler, tracing bool, opts ...otelhttp.Option) http.Handler {
	if !tracing {
		return handler
	}
	return otelhttp.NewHandler(handler, "leveraged", opts...)
}

func serve(addr string, handler http.Handler, logger *slog.Logger) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	httpServer := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("leveraged listening", slog.String("addr", listener.Addr().String()))
		serverErr <- httpServer.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("forcing server stop", slog.String("error", err.Error()))
			return httpServer.Close()
		}
		return nil
	case err := <-serverErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
