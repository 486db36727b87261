package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"agriguard/internal/config"
	"agriguard/internal/database/postgres"
	"agriguard/internal/event"
	"agriguard/internal/handlers"
	"agriguard/internal/repository"
	"agriguard/internal/services"
	"agriguard/internal/token"

	"github.com/gofiber/fiber/v3"
)

func setupLogging() (*os.File, error) {
	logDir := filepath.Join("/agriguard", "log", "ledger_server")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %v", err)
	}

	logFileName := fmt.Sprintf("log_%s.log", time.Now().Format("2006-01-02"))
	file, err := os.OpenFile(filepath.Join(logDir, logFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %v", err)
	}

	handler := slog.NewJSONHandler(io.MultiWriter(os.Stdout, file), nil)
	slog.SetDefault(slog.New(handler))

	return file, nil
}

func main() {
	logFile, err := setupLogging()
	if err != nil {
		fmt.Printf("Failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()

	cfg := config.New()
	slog.Info("Connecting to PostgreSQL",
		"host", cfg.PostgresCfg.Host, "port", cfg.PostgresCfg.Port, "user", cfg.PostgresCfg.Username, "dbname", cfg.PostgresCfg.DBname)

	db, err := postgres.ConnectAndCreateDB(cfg.PostgresCfg)
	if err != nil {
		slog.Error("Error connecting to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Best-effort event bus: the ledger keeps serving when RabbitMQ is down.
	var publisher services.LedgerEventPublisher
	rabbit, err := event.ConnectRabbitMQ(cfg.RabbitMQCfg)
	if err != nil {
		slog.Error("RabbitMQ unavailable, ledger events disabled", "error", err)
	} else {
		defer rabbit.Close()
		publisher = event.NewLedgerPublisher(rabbit)
	}

	// repositories
	policyRepo := repository.NewPolicyRepository(db)
	claimRepo := repository.NewClaimRepository(db)
	payoutRepo := repository.NewPayoutRepository(db)
	obsRepo := repository.NewObservationRepository(db)
	oracleRepo := repository.NewOracleRepository(db)
	statsRepo := repository.NewStatsRepository(db)
	stationRepo := repository.NewStationRepository(db)

	// services
	tokenClient := token.NewClient(cfg.TokenCfg)
	policyService := services.NewPolicyService(policyRepo, statsRepo, stationRepo, publisher)
	settlementService := services.NewSettlementService(policyRepo, statsRepo, cfg.TokenCfg.IssuerID, publisher)
	oracleService := services.NewOracleService(oracleRepo, obsRepo, cfg.AdminID, publisher)
	claimService := services.NewClaimService(claimRepo, policyRepo, obsRepo, payoutRepo, statsRepo, tokenClient, publisher, cfg.MonitorCfg.OracleID)

	// handlers
	policyHandler := handlers.NewPolicyHandler(policyService)
	claimHandler := handlers.NewClaimHandler(claimService, cfg.AdminID)
	oracleHandler := handlers.NewOracleHandler(oracleService)
	settlementHandler := handlers.NewSettlementHandler(settlementService, claimService, cfg.TokenCfg.CallbackSecret)

	app := fiber.New()
	app.Get("/checkhealth", func(c fiber.Ctx) error {
		return c.Status(fiber.StatusOK).SendString("AgriGuard ledger is healthy")
	})

	policyHandler.Register(app)
	claimHandler.Register(app)
	oracleHandler.Register(app)
	settlementHandler.Register(app)

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("Starting ledger server", "port", cfg.Port)
		if err := app.Listen(fmt.Sprintf("0.0.0.0:%s", cfg.Port)); err != nil {
			slog.Error("Error starting server", "error", err)
			os.Exit(1)
		}
	}()

	<-shutdownChan
	slog.Info("Shutting down server...")
	if err := app.Shutdown(); err != nil {
		slog.Error("Error during shutdown", "error", err)
	}
}
