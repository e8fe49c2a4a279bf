package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/medsc/clinic-chat-bridge/internal/api"
	"github.com/medsc/clinic-chat-bridge/internal/cli"
	"github.com/medsc/clinic-chat-bridge/internal/config"
	"github.com/medsc/clinic-chat-bridge/internal/domain"
	"github.com/medsc/clinic-chat-bridge/internal/logger"
	"github.com/medsc/clinic-chat-bridge/internal/repository"
	"github.com/medsc/clinic-chat-bridge/internal/service"
	"github.com/medsc/clinic-chat-bridge/internal/socket"
	mcpTransport "github.com/medsc/clinic-chat-bridge/internal/transport/mcp"
)

// RunMode defines how the application runs
type RunMode string

const (
	RunModeServer      RunMode = "server"
	RunModeInteractive RunMode = "interactive"
	RunModeHeadless    RunMode = "headless"
)

func main() {
	cfg := config.Load()

	// Quiet logging for CLI modes so stdout stays usable
	level := cfg.LogLevel
	if RunMode(cfg.Mode) != RunModeServer && level == "info" {
		level = "error"
	}
	logger.Init(level)

	db, err := initDatabase(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	ctx := context.Background()

	msgRepo := repository.NewMessageRepository(db)
	docRepo := repository.NewDoctorRepository(db)

	eventBus := domain.NewEventBus()

	header := http.Header{}
	if cfg.AuthToken != "" {
		header.Set("Authorization", "Bearer "+cfg.AuthToken)
	}
	sock := socket.NewClient(socket.Config{
		URL:    cfg.SocketURL,
		Header: header,
	}, logger.Module("socket"))

	apiClient := api.New(api.Config{
		BaseURL: cfg.ServerURL,
		Token:   cfg.AuthToken,
	}, logger.Module("api"))

	session := service.NewSession()

	chatSvc := service.NewChatService(
		sock,
		apiClient,
		session,
		msgRepo,
		docRepo,
		eventBus,
		logger.Module("chat"),
		service.Options{},
	)

	switch RunMode(cfg.Mode) {
	case RunModeInteractive:
		runInteractiveMode(ctx, chatSvc, eventBus)
	case RunModeHeadless:
		runHeadlessMode(ctx, chatSvc, eventBus)
	default:
		runServerMode(ctx, cfg, chatSvc)
	}
}

func runServerMode(ctx context.Context, cfg *config.Config, chatSvc *service.ChatService) {
	log.Printf("Clinic chat bridge starting...")
	log.Printf("Backend: %s", cfg.ServerURL)
	log.Printf("Push channel: %s", cfg.SocketURL)
	log.Printf("Database: %s", cfg.DatabasePath)
	log.Printf("MCP address: %s", cfg.MCPAddress)

	mcpServer := mcpTransport.NewServer(
		chatSvc,
		mcpTransport.ServerConfig{
			Address: cfg.MCPAddress,
		},
	)

	errCh := make(chan error, 1)

	go func() {
		log.Printf("Starting MCP SSE server on %s", cfg.MCPAddress)
		if err := mcpServer.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("MCP server error: %w", err)
		}
	}()

	// Connect and load the directory in the background; the servers stay up
	// even when the backend is unreachable.
	go func() {
		time.Sleep(1 * time.Second)
		if err := chatSvc.Start(context.Background()); err != nil {
			log.Printf("Chat service start failed: %v", err)
		}
	}()

	// Print ready message for subprocess coordination
	fmt.Println("ready")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Printf("Server error: %v", err)
	case sig := <-sigCh:
		log.Printf("Received signal %v, shutting down...", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Printf("Stopping chat service...")
	chatSvc.Stop()

	log.Printf("Stopping MCP server...")
	if err := mcpServer.Stop(shutdownCtx); err != nil {
		log.Printf("MCP server stop error: %v", err)
	}

	log.Printf("Shutdown complete")
}

func runInteractiveMode(ctx context.Context, chatSvc *service.ChatService, bus domain.EventBus) {
	if err := chatSvc.Start(ctx); err != nil {
		log.Printf("Chat service start failed: %v", err)
	}

	handler := cli.NewCommandHandler(chatSvc, bus)
	interactiveCLI := cli.NewInteractiveCLI(handler)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		cancel()
	}()

	if err := interactiveCLI.Run(ctx); err != nil && err != context.Canceled {
		log.Printf("CLI error: %v", err)
	}

	chatSvc.Stop()
}

func runHeadlessMode(ctx context.Context, chatSvc *service.ChatService, bus domain.EventBus) {
	if err := chatSvc.Start(ctx); err != nil {
		log.Printf("Chat service start failed: %v", err)
	}

	handler := cli.NewCommandHandler(chatSvc, bus)
	headlessCLI := cli.NewHeadlessCLI(handler)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		cancel()
	}()

	if err := headlessCLI.Run(ctx); err != nil && err != context.Canceled {
		log.Printf("CLI error: %v", err)
	}

	chatSvc.Stop()
}

func initDatabase(dbPath string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	db.Exec("PRAGMA journal_mode=WAL")

	err = db.AutoMigrate(
		&repository.MessageModel{},
		&repository.DoctorModel{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}
