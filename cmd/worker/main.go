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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	amqp "github.com/rabbitmq/amqp091-go"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"after2am-server/internal/agents"
	"after2am-server/internal/cache"
	"after2am-server/internal/config"
	"after2am-server/internal/logger"
	"after2am-server/internal/repository"
	"after2am-server/internal/service"
	"after2am-server/internal/worker"
	"after2am-server/internal/workflow"
)

func main() {
	// --- Configuration ---
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// --- Logger Setup ---
	log, err := logger.New(logger.Config{
		Level:    cfg.LogLevel,
		Encoding: "json",
	})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	zap.ReplaceGlobals(log)
	zap.L().Info("Logger initialized", zap.String("logLevel", cfg.LogLevel))

	// --- External Connections ---
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	connectCtx, connectCancel := context.WithTimeout(ctx, 10*time.Second)
	defer connectCancel()

	pgPool, err := setupPostgres(connectCtx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer pgPool.Close()
	zap.L().Info("Connected to PostgreSQL")

	redisClient, err := setupRedis(connectCtx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	zap.L().Info("Connected to Redis")

	mqConn, err := connectRabbitMQ(cfg.RabbitMQURL, log)
	if err != nil {
		zap.L().Fatal("Failed to connect to RabbitMQ", zap.Error(err))
	}
	defer mqConn.Close()
	zap.L().Info("Connected to RabbitMQ")

	// --- Dependencies ---
	requestRepo := repository.NewPgStoryRequestRepository(log)
	storyRepo := repository.NewPgStoryRepository(log)
	txRunner := repository.NewTransactionHelper(pgPool, log)
	cacheStore := cache.NewRedisStore(redisClient, log)

	runStore := workflow.NewPgRunStore(pgPool, log)
	runner := workflow.NewRunner(runStore, log)
	pacer := workflow.NewRedisPacer(redisClient, log)

	aiClient := agents.NewOpenAIClient(cfg.AIBaseURL, cfg.AIAPIKey, cfg.AITimeout, log)
	editor := agents.NewNightEditor(aiClient, cfg.AIEditorModel, log)
	writer := agents.NewNightWriter(aiClient, cfg.AIWriterModel, log)

	moderation := service.NewModerationWorkflow(runner, pgPool, txRunner, requestRepo, storyRepo, editor, cacheStore, log)
	generation := service.NewGenerationWorkflow(runner, pgPool, storyRepo, writer, cacheStore, log)

	// --- Consumer Setup ---
	consumer := worker.NewConsumer(
		mqConn, runStore, pacer,
		cfg.WorkflowQueue, cfg.WorkflowWaitQueue, cfg.WorkflowDLX, cfg.WorkflowDLQ,
		cfg.WorkflowPrefetch, cfg.WorkflowMaxRetry,
		log,
	)
	consumer.Register(service.WorkflowWriteStory, func(ctx context.Context, env workflow.TaskEnvelope) error {
		return moderation.Execute(ctx, env.RunID, env.Payload)
	})
	consumer.Register(service.WorkflowGenerateStory, func(ctx context.Context, env workflow.TaskEnvelope) error {
		return generation.Execute(ctx, env.RunID, env.Payload)
	})

	if err := consumer.Start(ctx); err != nil {
		zap.L().Fatal("Failed to start workflow consumer", zap.Error(err))
	}

	// --- Служебный HTTP (/health, /metrics) ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:         ":" + cfg.WorkerPort,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	go func() {
		zap.L().Info("Starting worker HTTP server", zap.String("port", cfg.WorkerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Fatal("Worker HTTP server listen error", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zap.L().Info("Shutting down worker...")

	consumer.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.L().Error("Worker HTTP server forced to shutdown", zap.Error(err))
	}

	zap.L().Info("Worker exiting")
}

// setupPostgres инициализирует пул соединений PostgreSQL с ретраями.
func setupPostgres(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("unable to parse postgres config: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.DBMaxConns)

	var pool *pgxpool.Pool
	var lastErr error
	maxRetries := 10
	retryDelay := 3 * time.Second

	for i := 0; i < maxRetries; i++ {
		connectCtx, connectCancel := context.WithTimeout(ctx, 5*time.Second)
		pool, err = pgxpool.NewWithConfig(connectCtx, poolConfig)
		if err == nil {
			err = pool.Ping(connectCtx)
		}
		connectCancel()

		if err == nil {
			return pool, nil
		}
		lastErr = err
		zap.L().Warn("Postgres connection failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Int("max_retries", maxRetries),
			zap.Error(err))
		time.Sleep(retryDelay)
	}
	return nil, fmt.Errorf("unable to connect to postgres after %d attempts: %w", maxRetries, lastErr)
}

// setupRedis инициализирует клиент Redis.
func setupRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("unable to ping redis: %w", err)
	}
	return client, nil
}

// connectRabbitMQ подключается к RabbitMQ с ретраями.
func connectRabbitMQ(url string, log *zap.Logger) (*amqp.Connection, error) {
	var conn *amqp.Connection
	var err error
	maxRetries := 10
	retryDelay := 3 * time.Second

	for i := 0; i < maxRetries; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			return conn, nil
		}
		log.Warn("RabbitMQ connection failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Int("max_retries", maxRetries),
			zap.Error(err))
		time.Sleep(retryDelay)
	}
	return nil, fmt.Errorf("unable to connect to rabbitmq after %d attempts: %w", maxRetries, err)
}
