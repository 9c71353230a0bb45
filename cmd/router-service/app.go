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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"golang.org/x/sync/errgroup"

	"switchyard/internal/api"
	"switchyard/internal/config"
	"switchyard/internal/constants"
	"switchyard/internal/delivery"
	"switchyard/internal/eventlog"
	"switchyard/internal/logger"
	"switchyard/internal/notify"
	"switchyard/internal/routing"
	"switchyard/pkg/bootstrap"
	"switchyard/pkg/cel"
	"switchyard/pkg/health"
	"switchyard/pkg/logging"
	"switchyard/pkg/metrics"
	"switchyard/pkg/middleware"
	"switchyard/pkg/models"
	"switchyard/pkg/ratelimit"
	"switchyard/pkg/schema"
	"switchyard/pkg/tracing"
)

const serviceName = "router-service"

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	db             *sql.DB
	bus            *notify.Bus
	evaluator      *cel.Evaluator
	schema         *schema.Validator
	router         *routing.Router
	ingest         *ingest
	watcher        *routing.DefinitionsWatcher
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
	if err := a.initDatabase(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := a.InitBroker(serviceName); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	if err := a.InitNATS(serviceName); err != nil {
		return fmt.Errorf("failed to initialize notifications: %w", err)
	}
	a.initNotifications()

	if err := a.initRouter(ctx); err != nil {
		return fmt.Errorf("failed to initialize router: %w", err)
	}

	tp, err := tracing.Init(a.Config.Tracing, serviceName)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.RegisterRoutingMetrics()
	metrics.RegisterDeliveryMetrics()
	metrics.RegisterNotificationMetrics()
	metrics.RegisterBrokerMetrics()
	metrics.RegisterAPIMetrics()

	if err := a.initHTTPServer(ctx); err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	return nil
}

func (a *App) initDatabase(ctx context.Context) error {
	db, err := a.dbConnector.InitPostgreSQL(ctx)
	if err != nil {
		return err
	}
	a.db = db
	return nil
}

func (a *App) initNotifications() {
	a.bus.Subscribe(notify.LogSink(a.Logger))
	if a.NATS != nil {
		sink := notify.NewNATSSink(a.NATS, a.Config.NATS.SubjectPrefix, a.Logger)
		a.bus.Subscribe(sink.Handle)
	}
}

func (a *App) initRouter(ctx context.Context) error {
	var opts []cel.Option
	if a.Config.Routing.ExpressionCostMax > 0 {
		opts = append(opts, cel.WithCostLimit(a.Config.Routing.ExpressionCostMax))
	}
	eval, err := cel.NewEvaluator(opts...)
	if err != nil {
		return fmt.Errorf("failed to create expression evaluator: %w", err)
	}
	a.evaluator = eval

	validator, err := schema.New()
	if err != nil {
		return err
	}
	a.schema = validator

	a.router = routing.NewRouter(eval,
		routing.WithCacheSize(a.Config.Routing.CacheSize),
		routing.WithLogger(a.Logger.Named("routing")),
		routing.WithNotifier(a.bus),
		routing.WithEventNotifications(a.Config.Routing.NotifyRoutedEvents),
	)

	dlq := delivery.NewDeadLetter(a.Producer, a.Config.Broker.Kafka.DLQTopic, a.Config.Broker.Kafka.InputTopic)
	deadLetter := routing.HandlerFunc(func(ctx context.Context, ev models.Event) error {
		return dlq.DeadLetter(ctx, ev, "", fmt.Errorf("dispatch failed"))
	})
	if err := a.router.RegisterHandler(routing.DeadLetterRoute, deadLetter); err != nil {
		return err
	}

	if path := a.Config.Routing.DefinitionsFile; path != "" {
		if err := a.reloadDefinitions(ctx); err != nil {
			return err
		}
		if a.Config.Routing.WatchDefinitions {
			debounce := time.Duration(a.Config.Routing.ReloadDebounceMs) * time.Millisecond
			w, err := routing.NewDefinitionsWatcher(path, debounce, a.reloadDefinitions, a.Logger)
			if err != nil {
				return err
			}
			a.watcher = w
		}
	} else {
		a.Logger.WarnwCtx(ctx, "No routing definitions file configured, starting with an empty router")
	}

	var events eventlog.Writer
	if a.db != nil && a.Config.Routing.RecordToEventLog {
		events = eventlog.NewPostgres(a.db)
	} else {
		a.Logger.InfowCtx(ctx, "Live events are not recorded to the event log")
	}
	a.ingest = &ingest{events: events, router: a.router, logger: a.Logger}
	return nil
}

// reloadDefinitions replaces every table and filter with the file's content. A file that
// fails to parse or compile leaves the current configuration in place.
func (a *App) reloadDefinitions(ctx context.Context) error {
	path := a.Config.Routing.DefinitionsFile
	defs, err := routing.LoadDefinitions(path, a.schema)
	if err != nil {
		return fmt.Errorf("failed to load routing definitions: %w", err)
	}
	if err := a.router.ApplyDefinitions(ctx, defs, a.evaluator, delivery.TopicHandlers(a.Producer)); err != nil {
		return fmt.Errorf("failed to apply routing definitions: %w", err)
	}
	a.Logger.InfowCtx(ctx, "Routing definitions loaded",
		"path", path,
		"tables", len(defs.Tables),
		"filters", len(defs.Filters),
		"destinations", len(defs.Destinations),
		"generation", a.router.Generation(),
	)
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

	api.Mount(router, api.NewRoutingHandler(a.router, a.Logger))

	healthRegistry := health.NewCheckerRegistry()
	if a.db != nil {
		healthRegistry.Register(health.NewPostgreSQLChecker(a.db))
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

	if a.watcher != nil {
		if err := a.watcher.Start(gCtx); err != nil {
			a.Logger.WarnwCtx(ctx, "Definitions hot reload disabled", "error", err)
		}
	}

	inputTopic := a.Config.Broker.Kafka.InputTopic
	g.Go(func() error {
		consumeCtx := logging.WithServiceName(gCtx, serviceName)
		a.Logger.InfowCtx(consumeCtx, "Consuming live events", "topic", inputTopic)
		return a.Consumer.Consume(gCtx, inputTopic, a.ingest.handleMessage)
	})

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
	a.Logger.InfowCtx(shutdownCtx, "Shutting down router service")

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		if a.watcher != nil {
			if err := a.watcher.Stop(); err != nil {
				errs = append(errs, fmt.Errorf("definitions watcher stop error: %w", err))
			}
		}

		if a.server != nil {
			serverCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()
			if err := a.server.Shutdown(serverCtx); err != nil {
				errs = append(errs, fmt.Errorf("HTTP server shutdown error: %w", err))
			}
		}

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(context.Background()); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		errs = append(errs, a.dbConnector.ShutdownDatabases(ctx, nil, a.db, nil)...)
		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
