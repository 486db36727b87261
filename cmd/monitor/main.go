package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"agriguard/internal/config"
	"agriguard/internal/database/minio"
	"agriguard/internal/database/postgres"
	"agriguard/internal/database/redis"
	"agriguard/internal/event"
	"agriguard/internal/monitor"
	"agriguard/internal/repository"
	"agriguard/internal/services"
	"agriguard/internal/token"
	"agriguard/internal/weather"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func setupLogging() (*os.File, error) {
	logDir := filepath.Join("/agriguard", "log", "monitor")
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

	anchors, err := minio.NewAnchorStore(cfg.MinioCfg)
	if err != nil {
		slog.Error("Error connecting to MinIO", "error", err)
		os.Exit(1)
	}

	// The cycle lock is advisory: a single-instance deployment runs fine
	// without Redis, it just loses cross-instance serialization.
	var locker monitor.CycleLocker
	redisClient, err := redis.NewRedisClient(cfg.RedisCfg)
	if err != nil {
		slog.Error("Redis unavailable, cross-instance cycle locks disabled", "error", err)
	} else {
		defer redisClient.Close()
		locker = redisClient
	}

	var publisher services.LedgerEventPublisher
	rabbit, err := event.ConnectRabbitMQ(cfg.RabbitMQCfg)
	if err != nil {
		slog.Error("RabbitMQ unavailable, ledger events disabled", "error", err)
	} else {
		defer rabbit.Close()
		publisher = event.NewLedgerPublisher(rabbit)
	}

	policyRepo := repository.NewPolicyRepository(db)
	claimRepo := repository.NewClaimRepository(db)
	payoutRepo := repository.NewPayoutRepository(db)
	obsRepo := repository.NewObservationRepository(db)
	oracleRepo := repository.NewOracleRepository(db)
	statsRepo := repository.NewStatsRepository(db)
	stationRepo := repository.NewStationRepository(db)

	tokenClient := token.NewClient(cfg.TokenCfg)
	policyService := services.NewPolicyService(policyRepo, statsRepo, stationRepo, publisher)
	oracleService := services.NewOracleService(oracleRepo, obsRepo, cfg.AdminID, publisher)
	claimService := services.NewClaimService(claimRepo, policyRepo, obsRepo, payoutRepo, statsRepo, tokenClient, publisher, cfg.MonitorCfg.OracleID)

	metrics := monitor.NewMetrics()
	loop := monitor.NewLoop(monitor.Deps{
		Stations:     stationRepo,
		Policies:     policyRepo,
		Observations: obsRepo,
		Fetcher:      weather.NewClient(cfg.WeatherCfg),
		Anchors:      anchors,
		Submitter:    oracleService,
		Claims:       claimService,
		Expirer:      policyService,
		Locker:       locker,
		Metrics:      metrics,
	}, cfg.MonitorCfg.OracleID, cfg.MonitorCfg.Cadence, cfg.MonitorCfg.AnchorTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsServer := &http.Server{
		Addr:    fmt.Sprintf("0.0.0.0:%s", cfg.MonitorCfg.MetricsPort),
		Handler: promhttp.Handler(),
	}
	go func() {
		slog.Info("Starting metrics server", "port", cfg.MonitorCfg.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Metrics server error", "error", err)
		}
	}()

	doneChan := make(chan error, 1)
	go func() {
		doneChan <- loop.Run(ctx)
	}()

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-shutdownChan:
		slog.Info("Shutting down monitor...")
		cancel()
		<-doneChan
	case err := <-doneChan:
		if err != nil {
			slog.Error("Automation loop stopped", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Error shutting down metrics server", "error", err)
	}
}
