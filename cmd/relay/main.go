package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"

	"chat-relay/auth"
	"chat-relay/infrastructure/httpapi"
	"chat-relay/infrastructure/ws"
	"chat-relay/internal"
	"chat-relay/observability"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/services"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper.
	// Its only responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Relay terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting, so every defer (like the database close)
// executes before the process exits.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()

	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	logger := internal.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Database (BadgerDB)
	options := badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING)
	db, err := badger.Open(options)
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		// Defer ensures the database lock is released and buffers are
		// flushed before the function returns.
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Routing core
	monitor := observability.NewRelayMonitor()
	registry := runtime.NewRegistry()
	router := runtime.NewRouter(logger, registry, monitor)
	statusRepository := repositories.NewStatusRepository(db)
	tracker := runtime.NewTracker(logger, router, statusRepository)

	// 4. Services
	verifier := auth.NewVerifier(config.JWTSecret, config.AuthTokenDuration)
	userRepository := repositories.NewUserRepository(db)
	messageRepository := repositories.NewMessageRepository(db, logger, config.LimitMessages)
	chatRepository := repositories.NewChatRepository(db)
	authService := services.NewAuthService(userRepository, verifier)
	chatService := services.NewChatService(messageRepository, chatRepository, router)

	// 5. Transport
	chatHandler := ws.NewChatHandler(logger, registry, tracker, router, chatService,
		verifier, monitor, config.ConnectionBufferSize)
	api := httpapi.NewServer(logger, authService, chatService, userRepository, tracker,
		verifier, monitor, config.UploadDir, config.MaxContentLength)

	mux := http.NewServeMux()
	mux.Handle("/ws", chatHandler)
	api.Routes(mux)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", config.Host, config.ChatPort),
		Handler: mux,
	}

	// 6. Background workers
	supervisor := workers.NewSupervisor(logger)
	supervisor.Add(workers.NewHeartbeatWorker(logger, monitor, config.MetricInterval))
	go supervisor.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Relay listening", "addr", server.Addr)
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
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Forced shutdown", slog.Any("error", err))
	}
	return exitOK, nil
}
