package main

import (
	"chat-relay/infrastructure/grpc/server"
	httpserver "chat-relay/infrastructure/http/server"
	"chat-relay/infrastructure/storage"
	"chat-relay/infrastructure/transport"
	"chat-relay/internal"
	"chat-relay/moderation"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/services"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/database"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Relay terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires every component, serves until a signal arrives and reports an exit code.
// Deferred cleanups run before main exits.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}

	logger := logs.GetLoggerFromString(config.LogLevel)

	// 2. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Database (BadgerDB)
	db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	if logger.Enabled(ctx, slog.LevelDebug) {
		endpoint := "/inspect"
		url := fmt.Sprintf("http://localhost:%d%s", config.DebugPort, endpoint)
		logger.Info("Debug Badger inspector available", "url", url)
		database.StartDebugServer(db, config.DebugPort, endpoint, RecordMapper)
	}

	// 4. Repositories & Services
	userRepository := storage.NewUserRepository(db)
	chatRepository, err := storage.NewChatRepository(db, logger)
	if err != nil {
		return exitRuntime, fmt.Errorf("chat repository: %w", err)
	}
	defer func() { _ = chatRepository.Close() }()
	messageRepository := storage.NewMessageRepository(db, logger)

	authService := services.NewAuthService(userRepository, []byte(config.JWTSecret), config.AuthTokenDuration)
	chatService := services.NewChatService(userRepository, chatRepository, messageRepository, logger)
	accessService := services.NewAccessService(chatRepository, logger)

	// 5. Relay
	rooms := runtime.NewRooms(logger)
	relay := runtime.NewRelay(logger, rooms, authService, accessService, chatService, config.DuplicateInterval)

	if words := config.Words(); len(words) > 0 {
		moderator, err := moderation.NewModerator(words, charReplacement, logger)
		if err != nil {
			return exitConfig, fmt.Errorf("moderation setup failed: %w", err)
		}
		relay.WithCensor(moderation.NewFilter(moderator, logger))
		logger.Info("Moderation enabled", "words", len(words))
	}

	httpServer := httpserver.NewServer(logger, relay, rooms, authService, chatService, httpserver.Options{
		Address: config.Address(),
		Secret:  []byte(config.JWTSecret),
		Transport: transport.Options{
			WriteTimeout:   config.WriteTimeout,
			PingInterval:   config.PingInterval,
			MaxMessageSize: config.MaxMessageSize,
		},
		Origins:         config.Origins(),
		ShutdownTimeout: config.ShutdownTimeout,
	})
	healthServer := server.NewHealthServer(logger, config.HealthAddress())
	presence := workers.NewPresenceWorker(logger, rooms, config.PresenceInterval)

	// 6. Supervision
	// Blocks until the signal context is cancelled and every worker returned.
	sup := workers.NewSupervisor(logger, config.RestartInterval)
	sup.Add(httpServer, healthServer, presence).Run(ctx)

	logger.Info("Program stopped cleanly")
	return exitOK, nil
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)

	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG)
	} else {
		options = options.WithLoggingLevel(badger.INFO)
	}

	return options
}

// RecordMapper shows decoded users, chats and messages in the debug inspector.
func RecordMapper(key string, val []byte) database.InspectRow {
	row := database.DefaultMapper(key, val)
	row.Type, row.Detail = storage.Describe(key, val)
	return row
}
