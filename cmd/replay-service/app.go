package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	"switchyard/internal/api"
	"switchyard/internal/config"
	"switchyard/internal/constants"
	"switchyard/internal/delivery"
	"switchyard/internal/directory"
	"switchyard/internal/eventlog"
	"switchyard/internal/logger"
	"switchyard/internal/notify"
	"switchyard/internal/recovery"
	"switchyard/internal/replay"
	"switchyard/pkg/bootstrap"
	"switchyard/pkg/cel"
	"switchyard/pkg/health"
	"switchyard/pkg/logging"
	"switchyard/pkg/metrics"
	"switchyard/pkg/middleware"
	"switchyard/pkg/ratelimit"
	"switchyard/pkg/schema"
	"switchyard/pkg/tracing"
)

const serviceName = "replay-service"

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	db             *sql.DB
	redisClient    *redis.Client
	mongoClient    *mongo.Client
	mongoDB        *mongo.Database
	bus            *notify.Bus
	registry       *directory.Registry
	feed           *directory.Feed
	engine         *replay.Engine
	executor       *recovery.Executor
	scheduler      *recovery.Scheduler
	tracerProvider *tracing.TracerProvider
	server         *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName(serviceName)
	}
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
		bus:         notify.NewBus(),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := a.initDatabases(ctx); err != nil {
		return fmt.Errorf("failed to initialize databases: %w", err)
	}

	if err := a.InitBroker(serviceName); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	if err := a.InitNATS(serviceName); err != nil {
		return fmt.Errorf("failed to initialize notifications: %w", err)
	}
	a.initNotifications()

	a.registry = directory.NewRegistry(a.bus)
	a.feed = directory.NewFeed(a.Consumer, a.Config.Broker.Kafka.DirectoryTopic, a.registry, a.Logger.Named("directory"))

	validator, err := schema.New()
	if err != nil {
		return err
	}

	if err := a.initReplay(validator); err != nil {
		return fmt.Errorf("failed to initialize replay engine: %w", err)
	}

	if err := a.initRecovery(ctx, validator); err != nil {
		return fmt.Errorf("failed to initialize recovery executor: %w", err)
	}

	tp, err := tracing.Init(a.Config.Tracing, serviceName)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.RegisterReplayMetrics()
	metrics.RegisterRecoveryMetrics()
	metrics.RegisterDeliveryMetrics()
	metrics.RegisterNotificationMetrics()
	metrics.RegisterBrokerMetrics()
	metrics.RegisterAPIMetrics()
	if a.Config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	if err := a.initHTTPServer(ctx); err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	return nil
}

func (a *App) initDatabases(ctx context.Context) error {
	db, err := a.dbConnector.InitPostgreSQL(ctx)
	if err != nil {
		return err
	}
	a.db = db

	rdb, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		return err
	}
	a.redisClient = rdb

	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	client, mdb, err := a.dbConnector.InitMongoDB(initCtx)
	if err != nil {
		return err
	}
	a.mongoClient, a.mongoDB = client, mdb
	return nil
}

func (a *App) initNotifications() {
	a.bus.Subscribe(notify.LogSink(a.Logger))
	if a.NATS != nil {
		sink := notify.NewNATSSink(a.NATS, a.Config.NATS.SubjectPrefix, a.Logger)
		a.bus.Subscribe(sink.Handle)
	}
}

// deliverer builds the delivery chain: idempotency guard, then per-service breaker, then
// the service's Kafka topic.
func (a *App) deliverer() delivery.Channel {
	var ch delivery.Channel = delivery.NewKafkaChannel(a.Producer, a.Config.Broker.Kafka.DeliveryTopicPrefix)
	if a.Config.CircuitBreaker.Enabled {
		ch = delivery.NewBreakerChannel(ch, a.Config.CircuitBreaker)
	}
	if a.Config.Delivery.Idempotency.Enabled {
		if a.redisClient == nil {
			a.Logger.Warnw("Delivery idempotency requires Redis, continuing without it")
		} else {
			ch = delivery.NewIdempotentChannel(ch, delivery.NewRedisGuard(a.redisClient), a.Config.Delivery.Idempotency, a.Logger)
		}
	}
	return ch
}

func (a *App) initReplay(validator *schema.Validator) error {
	eval, err := cel.NewEvaluator()
	if err != nil {
		return fmt.Errorf("failed to create expression evaluator: %w", err)
	}

	deps := replay.Dependencies{
		Directory:  a.registry,
		Deliverer:  a.deliverer(),
		DeadLetter: delivery.NewDeadLetter(a.Producer, a.Config.Broker.Kafka.DLQTopic, "replay"),
		Evaluator:  eval,
		Schema:     validator,
	}

	if a.db != nil {
		deps.Log = eventlog.NewPostgres(a.db)
	} else {
		a.Logger.Warnw("No event log database configured, replaying from an empty in-memory log")
		deps.Log = eventlog.NewMemory()
	}

	if a.redisClient != nil {
		cfg := a.Config.Replay
		deps.Checkpoints = replay.NewRedisCheckpoints(a.redisClient, time.Duration(cfg.CheckpointTTLSeconds)*time.Second)
		deps.Sessions = replay.NewRedisSessions(a.redisClient, time.Duration(cfg.SessionTTLSeconds)*time.Second)
	}

	if a.mongoDB != nil {
		deps.Configs = replay.NewMongoConfigs(a.mongoDB)
	}

	a.engine = replay.NewEngine(deps,
		replay.WithLogger(a.Logger.Named("replay")),
		replay.WithNotifier(a.bus),
		replay.WithMaxConcurrencyLimit(a.Config.Replay.MaxConcurrencyLimit),
		replay.WithProgressEvery(a.Config.Replay.ProgressEveryBatches),
	)
	return nil
}

func (a *App) initRecovery(ctx context.Context, validator *schema.Validator) error {
	eval, err := cel.NewMapEvaluator(recovery.ExpressionVariables)
	if err != nil {
		return fmt.Errorf("failed to create plan expression evaluator: %w", err)
	}

	deps := recovery.Dependencies{
		Directory: a.registry,
		Evaluator: eval,
		Schema:    validator,
	}
	if a.mongoDB != nil {
		deps.Plans = recovery.NewMongoPlans(a.mongoDB)
		deps.Executions = recovery.NewMongoExecutions(a.mongoDB)
	}

	a.executor = recovery.NewExecutor(deps,
		recovery.WithLogger(a.Logger.Named("recovery")),
		recovery.WithNotifier(a.bus),
		recovery.WithConfig(a.Config.Recovery),
		recovery.WithReplays(a.engine),
	)

	commands := recovery.NewCommandStep(a.Producer, a.Config.Broker.Kafka.CommandTopic)
	for _, t := range []recovery.StepType{recovery.StepRestore, recovery.StepMigrate, recovery.StepRollback} {
		a.executor.RegisterStepHandler(t, commands)
	}
	a.executor.Subscribe(a.bus)

	if a.Config.Recovery.EnableScheduledTriggers {
		s, err := recovery.NewScheduler(a.executor.TriggerScheduled, a.Logger.Named("scheduler"))
		if err != nil {
			return err
		}
		if err := a.executor.UseSchedules(ctx, s); err != nil {
			return fmt.Errorf("failed to schedule recovery plans: %w", err)
		}
		a.scheduler = s
	}
	return nil
}

func (a *App) initHTTPServer(ctx context.Context) error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if a.Config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware(serviceName))
	}

	router.Use(middleware.RecoveryMiddleware(a.Logger))
	router.Use(middleware.LoggerMiddleware(a.Logger))
	router.Use(middleware.RequestIDMiddleware())

	if a.Config.API.RateLimit.Enabled {
		rateLimitConfig := ratelimit.FromConfig(a.Config.API.RateLimit)
		router.Use(ratelimit.RateLimitMiddleware(rateLimitConfig))
		a.Logger.InfowCtx(ctx, "Rate limiting enabled", "rps", rateLimitConfig.RPS, "burst", rateLimitConfig.Burst)
	}

	api.Mount(router,
		api.NewReplayHandler(a.engine, a.Logger),
		api.NewRecoveryHandler(a.executor, a.Logger),
	)

	healthRegistry := health.NewCheckerRegistry()
	if a.db != nil {
		healthRegistry.Register(health.NewPostgreSQLChecker(a.db))
	}
	if a.redisClient != nil {
		healthRegistry.Register(health.NewRedisChecker(a.redisClient))
	}
	if a.mongoClient != nil {
		healthRegistry.Register(health.NewMongoDBChecker(a.mongoClient))
	}
	if a.NATS != nil {
		healthRegistry.RegisterOptional(health.NewNATSChecker(a.NATS))
	}

	router.GET("/health", func(c *gin.Context) {
		h := healthRegistry.Check(c.Request.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, h)
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      router,
		ReadTimeout:  a.Config.Server.ReadTimeout(),
		WriteTimeout: a.Config.Server.WriteTimeout(),
	}
	return nil
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		feedCtx := logging.WithServiceName(gCtx, serviceName)
		a.Logger.InfowCtx(feedCtx, "Consuming service directory changes", "topic", a.Config.Broker.Kafka.DirectoryTopic)
		return a.feed.Run(gCtx)
	})

	if a.scheduler != nil {
		a.scheduler.Start()
	}

	g.Go(func() error {
		<-gCtx.Done()
		return a.Shutdown(ctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx := logging.WithServiceName(ctx, serviceName)
	a.Logger.InfowCtx(shutdownCtx, "Shutting down replay service")

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		stopCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()

		if a.server != nil {
			if err := a.server.Shutdown(stopCtx); err != nil {
				errs = append(errs, fmt.Errorf("HTTP server shutdown error: %w", err))
			}
		}

		if a.scheduler != nil {
			if err := a.scheduler.Stop(); err != nil {
				errs = append(errs, fmt.Errorf("scheduler shutdown error: %w", err))
			}
		}

		// plans drive replay sessions, so they stop first
		if a.executor != nil {
			if err := a.executor.Shutdown(stopCtx); err != nil {
				errs = append(errs, fmt.Errorf("recovery executor shutdown error: %w", err))
			}
		}
		if a.engine != nil {
			if err := a.engine.Shutdown(stopCtx); err != nil {
				errs = append(errs, fmt.Errorf("replay engine shutdown error: %w", err))
			}
		}

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(stopCtx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		errs = append(errs, a.dbConnector.ShutdownDatabases(stopCtx, a.redisClient, a.db, a.mongoClient)...)
		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
