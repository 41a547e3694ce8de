package main

import (
	"chatwire/internal"
	"chatwire/moderation"
	"chatwire/repositories"
	"chatwire/runtime"
	"chatwire/runtime/workers"
	"chatwire/server"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and centralizes
// error reporting. This pattern is preferred over calling os.Exit or panic
// directly because it ensures all 'defer' statements (like database cleanup)
// are executed before the program exits, and it decouples the initialization
// logic from the main entry point.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := internal.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	repository, err := repositories.NewMessageRepository(db, log)
	if err != nil {
		return err
	}
	defer func() { _ = repository.Close() }()

	// 3. Moderation
	censored, err := runtime.LoadCensoredWords()
	if err != nil {
		return fmt.Errorf("loading censored words: %w", err)
	}
	log.Info(fmt.Sprintf("%d censored words loaded [%s]",
		len(censored.Words), strings.Join(censored.Languages, ",")))

	replacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return err
	}
	moderator, err := moderation.NewModerator(censored.Words, replacement, log)
	if err != nil {
		return fmt.Errorf("building moderator: %w", err)
	}

	// 4. Registry (loads the recent-message window from the store)
	registry, err := runtime.NewRegistry(log, repository, &moderator,
		lo.FromPtr(config.LimitMessages))
	if err != nil {
		return err
	}

	// 5. Supervised workers: listener + telemetry
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	listener := server.NewServer(log, registry, address,
		config.ConnectionBufferSize, config.MaxFrameSize)
	telemetry := workers.NewTelemetryWorker(log, registry, config.TelemetryInterval)

	supervisor := workers.NewSupervisor(log, config.RestartInterval)
	supervisor.Add(listener, telemetry)

	// 6. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry.Notice("Server has started")

	done := make(chan struct{})
	go func() {
		supervisor.Run(ctx)
		close(done)
	}()

	// 7. Wait for Stop
	<-ctx.Done()
	log.Info("Shutting down gracefully...")
	registry.Notice("Server is shutting down")
	supervisor.Stop()
	<-done

	log.Info("Program stopped cleanly")
	return nil
}
