package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"destiny-server/internal/config"
	"destiny-server/internal/database"
	"destiny-server/internal/generation"
	"destiny-server/internal/handler"
	"destiny-server/internal/logger"
	"destiny-server/internal/messaging"
	"destiny-server/internal/middleware"
	"destiny-server/internal/preview"
	"destiny-server/internal/progress"
	"destiny-server/internal/repository"
	"destiny-server/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"
)

const (
	rabbitMQMaxRetries = 10
	rabbitMQRetryDelay = 3 * time.Second
	redisMaxRetries    = 10
	redisRetryDelay    = 2 * time.Second
)

func main() {
	cfg, err := config.LoadConfig(".env")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Encoding:    cfg.LogEncoding,
		Service:     "destiny-server",
		Development: cfg.Env == "development",
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()
	zap.ReplaceGlobals(zapLogger)

	zapLogger.Info("Starting destiny report server",
		zap.String("env", cfg.Env),
		zap.String("ai_client", cfg.AIClientType),
		zap.String("ai_model", cfg.AIModel),
		zap.String("progress_store", cfg.ProgressStore),
	)

	ctx := context.Background()

	// --- PostgreSQL ---
	zapLogger.Info("Connecting to PostgreSQL", zap.String("dsn", cfg.GetMaskedDSN()))
	dbPool, err := database.Connect(ctx, database.PoolConfig{
		DSN:         cfg.GetDSN(),
		MaxConns:    cfg.DBMaxConns,
		IdleTimeout: cfg.DBIdleTimeout,
		MaxRetries:  cfg.DBConnRetries,
		RetryDelay:  cfg.DBConnRetryGap,
	}, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer dbPool.Close()

	if err := database.ApplyMigrations(dbPool, zapLogger); err != nil {
		zapLogger.Fatal("Failed to apply migrations", zap.Error(err))
	}
	reportRepo := repository.NewPgReportRepository(dbPool, zapLogger)

	// --- Progress store ---
	var progressStore progress.Store
	switch cfg.ProgressStore {
	case "redis":
		redisClient, err := setupRedis(ctx, cfg, zapLogger)
		if err != nil {
			zapLogger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		progressStore = progress.NewRedisStore(redisClient, cfg.ProgressTTL, zapLogger)
	default:
		progressStore = progress.NewMemoryStore(cfg.ProgressTTL, zapLogger)
	}

	// --- RabbitMQ (опционально) ---
	var notifier generation.Notifier = messaging.NoopNotifier{}
	if cfg.RabbitMQURL != "" {
		mqConn, err := messaging.Connect(cfg.RabbitMQURL, rabbitMQMaxRetries, rabbitMQRetryDelay, zapLogger.Named("RabbitMQ"))
		if err != nil {
			zapLogger.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
		}
		defer mqConn.Close()
		ch, err := mqConn.Channel()
		if err != nil {
			zapLogger.Fatal("Failed to open RabbitMQ channel", zap.Error(err))
		}
		defer ch.Close()
		rabbitNotifier, err := messaging.NewRabbitMQNotifier(ch, cfg.ReportEventsQueue, zapLogger)
		if err != nil {
			zapLogger.Fatal("Failed to create report notifier", zap.Error(err))
		}
		notifier = rabbitNotifier
	} else {
		zapLogger.Info("RABBITMQ_URL is empty, report notifications are disabled")
	}

	// --- Генерация ---
	aiClient, err := service.NewAIClient(cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to initialize AI client", zap.Error(err))
	}
	prompts, err := service.NewPromptBuilder(cfg.ReportLanguage, cfg.PromptsDir, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to load prompts", zap.Error(err))
	}
	temperature, maxTokens := cfg.AITemperature, cfg.AIMaxTokens
	tokenSource := service.NewReportTokenSource(aiClient, prompts, cfg.ReportLanguage, service.GenerationParams{
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	}, zapLogger)

	orchestrator := generation.NewOrchestrator(tokenSource, reportRepo, orchestratorConfig(cfg), zapLogger, generation.WithNotifier(notifier))
	reportService := service.NewReportService(reportRepo, orchestrator, generation.NewRegistry(), zapLogger)

	// --- HTTP ---
	gin.SetMode(gin.ReleaseMode)
	if cfg.Env == "development" {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(middleware.GinZapLogger(zapLogger))
	router.Use(gin.Recovery())
	router.Use(cors.New(corsConfig(cfg)))

	apiHandler := handler.NewHandler(
		reportService,
		progressStore,
		middleware.NewAuthenticator(cfg.JWTSecret, zapLogger),
		middleware.NewInterServiceAuthenticator(cfg.InterServiceSecret, zapLogger),
		handler.Options{SinkBufferSize: cfg.SinkBufferSize, AllowedOrigins: cfg.GetAllowedOrigins()},
		zapLogger,
	)
	apiHandler.RegisterRoutes(router)

	// Prometheus middleware вешается после регистрации роутов, он же отдает /metrics.
	ginprometheus.NewPrometheus("gin").Use(router)

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	go func() {
		zapLogger.Info("Starting HTTP server", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("HTTP Server listen error", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	zapLogger.Info("Shutting down server...", zap.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("HTTP Server forced to shutdown", zap.Error(err))
	}

	// Прогоны переживают своих клиентов: ждем финальных сбросов до закрытия пула.
	// Отсчет начинается после остановки HTTP, долгие SSE-соединения его не съедают.
	drainCtx, drainCancel := context.WithTimeout(context.Background(), cfg.GenerationDrain)
	defer drainCancel()
	if err := reportService.Shutdown(drainCtx); err != nil {
		zapLogger.Error("Generation runs did not finish before drain timeout",
			zap.Duration("drain_timeout", cfg.GenerationDrain), zap.Error(err))
	}

	zapLogger.Info("Server exiting")
}

func orchestratorConfig(cfg *config.Config) generation.Config {
	suffix := cfg.PreviewSuffix
	if suffix == "" {
		suffix = preview.DefaultSuffix
	}
	return generation.Config{
		PreviewThreshold:   cfg.PreviewThreshold,
		PreviewSuffix:      suffix,
		FlushSizeThreshold: cfg.FlushSizeThreshold,
		FlushTimeThreshold: cfg.FlushTimeThreshold,
		WriteTimeout:       cfg.FlushWriteTimeout,
		FinalFlushAttempts: cfg.FinalFlushAttempts,
		FinalFlushBackoff:  cfg.FinalFlushRetryDelay,
		RunTimeout:         cfg.GenerationTimeout,
	}
}

func corsConfig(cfg *config.Config) cors.Config {
	corsCfg := cors.DefaultConfig()
	if origins := cfg.GetAllowedOrigins(); len(origins) > 0 {
		corsCfg.AllowOrigins = origins
	} else {
		corsCfg.AllowOrigins = []string{"http://localhost:3000"}
		zap.L().Info("CORSAllowedOrigins not set, allowing default", zap.String("origin", "http://localhost:3000"))
	}
	corsCfg.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Request-ID", middleware.InterServiceTokenHeader}
	corsCfg.ExposeHeaders = []string{"X-Request-ID"}
	corsCfg.AllowCredentials = true
	corsCfg.MaxAge = 12 * time.Hour
	return corsCfg
}

// setupRedis создает клиента Redis и ждет, пока он ответит на PING.
func setupRedis(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*redis.Client, error) {
	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
	logger.Info("Redis connection options configured", zap.String("address", opts.Addr), zap.Int("db", opts.DB))

	client := redis.NewClient(opts)
	var lastErr error
	for attempt := 1; attempt <= redisMaxRetries; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		lastErr = client.Ping(pingCtx).Err()
		cancel()
		if lastErr == nil {
			logger.Info("Successfully connected and pinged Redis", zap.Int("attempt", attempt))
			return client, nil
		}
		logger.Warn("Redis ping failed, retrying...", zap.Int("attempt", attempt), zap.Error(lastErr))
		if attempt < redisMaxRetries {
			time.Sleep(redisRetryDelay)
		}
	}
	_ = client.Close()
	return nil, fmt.Errorf("failed to connect to redis after %d attempts: %w", redisMaxRetries, lastErr)
}
