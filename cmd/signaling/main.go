package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"

	"chat-relay/infrastructure/ws"
	"chat-relay/internal"
	"chat-relay/observability"
	"chat-relay/runtime"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// The signaling relay is its own process with its own registry: it shares
// the routing core with the chat relay but deploys independently, so a
// chat node restart never drops an in-flight call setup.
type config struct {
	Host                 string `env:"HOST"`
	SignalingPort        int    `env:"SIGNALING_PORT,required=true"`
	LogLevel             string `env:"LOG_LEVEL,required=true"`
	ConnectionBufferSize int    `env:"CONNECTION_BUFFER_SIZE,required=true"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Signaling relay terminated with error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	_ = godotenv.Load()

	var cfg config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	logger := internal.GetLoggerFromString(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	monitor := observability.NewRelayMonitor()
	registry := runtime.NewRegistry()
	router := runtime.NewRouter(logger, registry, monitor)
	handler := ws.NewSignalingHandler(logger, registry, router, monitor, cfg.ConnectionBufferSize)

	mux := http.NewServeMux()
	mux.Handle("/", handler)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.SignalingPort),
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Signaling relay listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return exitRuntime, err
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	return exitOK, nil
}
