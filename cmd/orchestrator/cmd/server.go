package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/paklog/orchestration/internal/api"
	"github.com/paklog/orchestration/internal/cache"
	"github.com/paklog/orchestration/internal/config"
	"github.com/paklog/orchestration/internal/database/mongodb"
	"github.com/paklog/orchestration/internal/event"
	"github.com/paklog/orchestration/internal/execution"
	"github.com/paklog/orchestration/internal/health"
	"github.com/paklog/orchestration/internal/health/checks"
	servicecall "github.com/paklog/orchestration/internal/integration"
	"github.com/paklog/orchestration/internal/loadbalance"
	"github.com/paklog/orchestration/internal/lock"
	"github.com/paklog/orchestration/internal/repository"
	"github.com/paklog/orchestration/internal/saga"
	"github.com/paklog/orchestration/internal/waveless"
	"github.com/paklog/orchestration/pkg/logging"
	"github.com/paklog/orchestration/pkg/metrics"
)

var (
	// serverAddr overrides the HTTP listen address
	serverAddr string
	// mongoURI overrides the MongoDB connection string
	mongoURI string
	// mongoDatabase overrides the MongoDB database name
	mongoDatabase string
	// redisAddr overrides the Redis address for locks and retries
	redisAddr string
	// rebalanceInterval is how often the load rebalancer runs
	rebalanceInterval time.Duration
)

// newServerCmd creates the server command.
func newServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start the orchestration server",
		Long: `Start the orchestration server.

One process runs the HTTP API, the waveless admission scheduler, the
load rebalancer, and the asynq worker that re-admits failed steps
after their backoff. Configuration comes from the environment; flags
override the most common settings.`,
		Example: `  orchestrator server
  orchestrator server --addr :9090
  orchestrator server --mongo-uri mongodb://mongo:27017 --redis-addr redis:6379`,
		RunE: runServer,
	}

	cmd.Flags().StringVar(&serverAddr, "addr", "", "HTTP listen address (overrides HTTP_ADDR)")
	cmd.Flags().StringVar(&mongoURI, "mongo-uri", "", "MongoDB connection string (overrides MONGODB_URI)")
	cmd.Flags().StringVar(&mongoDatabase, "mongo-db", "", "MongoDB database name (overrides MONGODB_DATABASE)")
	cmd.Flags().StringVar(&redisAddr, "redis-addr", "", "Redis address (overrides REDIS_ADDR)")
	cmd.Flags().DurationVar(&rebalanceInterval, "rebalance-interval", 30*time.Second, "load rebalancer interval")

	return cmd
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg := config.FromEnv()
	if serverAddr != "" {
		cfg.HTTP.Addr = serverAddr
	}
	if mongoURI != "" {
		cfg.Mongo.URI = mongoURI
	}
	if mongoDatabase != "" {
		cfg.Mongo.Database = mongoDatabase
	}
	if redisAddr != "" {
		cfg.Redis.Addr = redisAddr
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.New(cfg.Logging)
	logger.SetDefault()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage
	mongoClient, err := mongodb.New(ctx, cfg.Mongo, logger.Logger)
	if err != nil {
		return fmt.Errorf("mongodb connection failed: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = mongoClient.Close(shutdownCtx)
	}()

	repo := repository.NewMongoRepository(mongoClient.Database(), logger.Logger)
	if err := repo.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	locks := lock.NewRedisLock(redisClient, logger.Logger)

	cacheBackend, err := cache.New(cfg.Cache)
	if err != nil {
		return fmt.Errorf("cache init failed: %w", err)
	}
	defer cacheBackend.Close()
	workflowCache := cache.NewWorkflowCache(cacheBackend, cfg.Cache.DefaultTTL)

	// Execution services
	caller := servicecall.NewCaller(logger.Logger)
	for _, svc := range cfg.Services {
		if err := caller.RegisterService(svc); err != nil {
			return err
		}
	}

	// Engine
	bus := event.NewBus(logger.Logger)
	coordinator := saga.NewCoordinator(logger.Logger)

	asynqOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
	asynqClient := asynq.NewClient(asynqOpt)
	defer asynqClient.Close()
	retries := waveless.NewRetryScheduler(asynqClient, logger.Logger)

	clock := execution.SystemClock{}
	engine := execution.NewService(repo, locks, bus, coordinator, caller, retries, clock, cfg.Execution, logger.Logger)

	loadController := loadbalance.NewController(cfg.LoadBalance, logger.Logger)
	scheduler := waveless.NewScheduler(engine, repo, loadController, bus, clock, cfg.Waveless, logger.Logger)

	// Delayed-retry worker
	worker := asynq.NewServer(asynqOpt, asynq.Config{
		Concurrency: cfg.Workers,
		Queues:      map[string]int{waveless.QueueRetries: 1},
	})
	mux := asynq.NewServeMux()
	waveless.RegisterHandlers(mux, engine, logger.Logger)

	// Health and metrics
	registry := health.NewRegistry(Version)
	registry.Register(checks.NewDatabaseChecker(mongodb.NewHealthCheck(mongoClient, logger.Logger)))
	registry.Register(checks.NewCacheChecker(cacheBackend))
	registry.Register(checks.NewCustomChecker("waveless_scheduler", func(ctx context.Context) health.CheckResult {
		m, err := scheduler.QueueMetrics(ctx)
		if err != nil {
			return health.CheckResult{Status: health.StatusUnhealthy, Message: err.Error()}
		}
		return health.CheckResult{
			Status: health.StatusHealthy,
			Details: map[string]any{
				"pending": m.PendingTotal,
				"active":  m.ActiveTotal,
			},
		}
	}))

	// HTTP surface
	authValidator := api.NewTokenValidator(api.AuthConfig{
		Secret: cfg.Auth.Secret,
		Issuer: cfg.Auth.Issuer,
	})
	handler := api.NewHandler(engine, scheduler, repo, workflowCache, logger.Logger)
	router := api.NewRouter(handler, api.RouterConfig{
		Auth:           authValidator,
		HealthHandler:  health.NewHandler(registry),
		Metrics:        metrics.Global(),
		Logger:         logger,
		RequestTimeout: cfg.HTTP.RequestTimeout,
	})
	server := api.NewServer(router, cfg.HTTP.Addr)

	errCh := make(chan error, 5)

	go func() {
		logger.Info("http server listening", "addr", cfg.HTTP.Addr)
		if err := server.Start(); err != nil {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		if err := worker.Start(mux); err != nil {
			errCh <- fmt.Errorf("retry worker: %w", err)
		}
	}()
	go func() {
		if err := scheduler.Run(ctx); err != nil && ctx.Err() == nil {
			errCh <- fmt.Errorf("waveless scheduler: %w", err)
		}
	}()
	go func() {
		if err := scheduler.RunRebalancer(ctx, rebalanceInterval); err != nil && ctx.Err() == nil {
			errCh <- fmt.Errorf("load rebalancer: %w", err)
		}
	}()
	go func() {
		if err := scheduler.RunLoadMonitor(ctx, cfg.Waveless.SampleInterval); err != nil && ctx.Err() == nil {
			errCh <- fmt.Errorf("load monitor: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		stop()
		logger.Error("component failed, shutting down", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
	worker.Shutdown()

	logger.Info("orchestrator stopped")
	return nil
}
