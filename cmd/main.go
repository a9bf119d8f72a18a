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

	"github.com/Dosada05/grid-league/config"
	"github.com/Dosada05/grid-league/db"
	"github.com/Dosada05/grid-league/handlers"
	"github.com/Dosada05/grid-league/live"
	"github.com/Dosada05/grid-league/logging"
	"github.com/Dosada05/grid-league/middleware"
	"github.com/Dosada05/grid-league/repositories"
	api "github.com/Dosada05/grid-league/routes"
	"github.com/Dosada05/grid-league/services"
	"github.com/Dosada05/grid-league/storage"
	"github.com/go-chi/chi/v5"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	// Настройка логгера
	logger := logging.New(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("configuration loaded",
		slog.Int("port", cfg.ServerPort),
		slog.String("average_policy", string(cfg.Rules.Average)),
		slog.String("tie_policy", string(cfg.TiePolicy)),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Подключение к базе данных
	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	if err := db.Migrate(ctx, dbConn); err != nil {
		logger.Error("failed to migrate database", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("database connection established")

	// Хранилище (Cloudflare R2) необязательно: без него отключены загрузки и экспорт.
	var uploader storage.FileUploader
	if cfg.R2.Enabled() {
		uploader, err = storage.NewCloudflareR2Uploader(ctx, storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2.AccountID,
			AccessKeyID:     cfg.R2.AccessKeyID,
			SecretAccessKey: cfg.R2.SecretAccessKey,
			BucketName:      cfg.R2.BucketName,
			PublicBaseURL:   cfg.R2.PublicBaseURL,
		}, logger)
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("Cloudflare R2 uploader initialized")
	} else {
		logger.Warn("R2 storage is not configured, uploads and exports are disabled")
	}

	// Инициализация WebSocket Hub
	wsHub := live.NewHub(logger)
	go wsHub.Run(ctx)
	logger.Info("WebSocket Hub started")

	// Инициализация репозиториев
	tx := repositories.NewSQLTransactor(dbConn)
	driverRepo := repositories.NewPostgresDriverRepository(dbConn)
	teamRepo := repositories.NewPostgresTeamRepository(dbConn)
	seasonRepo := repositories.NewPostgresSeasonRepository(dbConn)
	raceRepo := repositories.NewPostgresRaceRepository(dbConn)
	resultRepo := repositories.NewPostgresRaceResultRepository(dbConn)
	standingRepo := repositories.NewPostgresStandingRepository(dbConn)
	penaltyRepo := repositories.NewPostgresPenaltyRepository(dbConn)

	// Инициализация сервисов
	standingsService, err := services.NewStandingsService(
		tx,
		seasonRepo,
		raceRepo,
		resultRepo,
		driverRepo,
		teamRepo,
		standingRepo,
		uploader,
		wsHub,
		services.StandingsConfig{
			Rules:              cfg.Rules,
			TiePolicy:          cfg.TiePolicy,
			RecentResultsLimit: cfg.RecentResultsLimit,
		},
		logger,
	)
	if err != nil {
		logger.Error("failed to initialize standings service", slog.Any("error", err))
		os.Exit(1)
	}
	driverService := services.NewDriverService(driverRepo, uploader, logger)
	teamService := services.NewTeamService(teamRepo, driverRepo, uploader, logger)
	seasonService := services.NewSeasonService(tx, seasonRepo, standingsService, wsHub, logger)
	raceService := services.NewRaceService(raceRepo, seasonRepo, resultRepo, driverRepo)
	exportService := services.NewExportService(standingsService, uploader, logger)
	penaltyService := services.NewPenaltyService(penaltyRepo, driverRepo, raceRepo, standingsService, logger)
	logger.Info("Services initialized")

	// Таблица строится из сохранённых результатов до приёма запросов.
	if err := standingsService.Reload(ctx); err != nil {
		logger.Error("failed to build standings", slog.Any("error", err))
		os.Exit(1)
	}

	// Периодическая сверка с БД: подхватывает правки, сделанные в обход API.
	go func() {
		ticker := time.NewTicker(cfg.ReloadInterval)
		defer ticker.Stop()
		logger.Info("standings reload scheduler started", slog.Duration("interval", cfg.ReloadInterval))

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := standingsService.Reload(ctx); err != nil {
					logger.Error("scheduler: standings reload failed", slog.Any("error", err))
				}
			}
		}
	}()

	// Инициализация обработчиков HTTP
	standingsHandler := handlers.NewStandingsHandler(standingsService, exportService)
	driverHandler := handlers.NewDriverHandler(driverService, standingsService)
	teamHandler := handlers.NewTeamHandler(teamService, standingsService)
	seasonHandler := handlers.NewSeasonHandler(seasonService, raceService)
	penaltyHandler := handlers.NewPenaltyHandler(penaltyService)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub, standingsService, cfg.CORSAllowedOrigins)
	healthHandler := handlers.NewHealthHandler(dbConn)
	logger.Info("HTTP handlers initialized")

	// Настройка маршрутизатора
	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		api.RouterConfig{
			JWTSecret:      []byte(cfg.JWTSecretKey),
			APIKeys:        middleware.NewAPIKeyAuth(cfg.APIKeyHashes),
			RateLimit:      middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow),
			AllowedOrigins: cfg.CORSAllowedOrigins,
			RequestTimeout: 10 * time.Second,
		},
		standingsHandler,
		driverHandler,
		teamHandler,
		seasonHandler,
		penaltyHandler,
		webSocketHandler,
		healthHandler,
	)
	logger.Info("Routes configured")

	// Настройка и запуск HTTP-сервера
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	// Ожидание сигнала завершения
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			stop()
			return
		}
		logger.Info("server stopped gracefully")
	case <-ctx.Done():
		logger.Info("shutdown signal received")

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		logger.Info("shutting down server", slog.Duration("timeout", 15*time.Second))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
		} else {
			logger.Info("server shutdown complete")
		}
	}
	logger.Info("application exited")
}
