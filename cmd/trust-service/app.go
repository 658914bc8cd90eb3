package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	"trustcore/internal/action"
	"trustcore/internal/anchoring"
	"trustcore/internal/audit"
	"trustcore/internal/blockchain"
	"trustcore/internal/condition"
	"trustcore/internal/config"
	"trustcore/internal/constants"
	"trustcore/internal/ledger"
	"trustcore/internal/logger"
	"trustcore/internal/plugin"
	"trustcore/internal/rules"
	"trustcore/pkg/bootstrap"
	"trustcore/pkg/cel"
	"trustcore/pkg/circuitbreaker"
	"trustcore/pkg/health"
	"trustcore/pkg/metrics"
	"trustcore/pkg/middleware"
	"trustcore/pkg/retry"
	"trustcore/pkg/tracing"
)

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	db             *sql.DB
	redisClient    *redis.Client
	mongoClient    *mongo.Client
	mongoDB        *mongo.Database
	tracerProvider *tracing.TracerProvider

	auditRecorder  *audit.Recorder
	ledgerRepo     ledger.Repository
	pluginRegistry plugin.Registry
	chain          blockchain.Client

	rulesService  *rules.Service
	rulesEngine   *rules.Engine
	anchorService *anchoring.Service
	scheduler     *anchoring.Scheduler

	router *gin.Engine
	server *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

// Initialize wires every component. withConsumer controls whether the inbound event consumer is created;
// one-shot commands only need the producer.
func (a *App) Initialize(ctx context.Context, withConsumer bool) error {
	tp, err := tracing.Init(a.Config.Tracing, constants.ServiceName)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.Register()

	if err := a.initDatabases(ctx); err != nil {
		return fmt.Errorf("failed to initialize databases: %w", err)
	}

	if err := a.InitBroker(constants.ServiceName, withConsumer && a.Config.Broker.Kafka.InputTopic != ""); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	a.initBlockchain()

	if err := a.initRules(); err != nil {
		return fmt.Errorf("failed to initialize rules: %w", err)
	}

	if err := a.initAnchoring(); err != nil {
		return fmt.Errorf("failed to initialize anchoring: %w", err)
	}

	return nil
}

func (a *App) initDatabases(ctx context.Context) error {
	db, err := a.dbConnector.InitPostgreSQL(ctx)
	if err != nil {
		return err
	}
	a.db = db

	redisClient, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		return err
	}
	a.redisClient = redisClient

	mongoClient, mongoDB, err := a.dbConnector.InitMongoDB(ctx)
	if err != nil {
		a.Logger.WarnwCtx(ctx, "MongoDB connection failed, plugin actions disabled", "error", err)
	}
	a.mongoClient, a.mongoDB = mongoClient, mongoDB

	if a.Config.Database.RunMigrations {
		if err := a.dbConnector.Migrate(ctx, a.db, a.mongoDB); err != nil {
			return err
		}
	}

	a.auditRecorder = audit.NewRecorder(audit.NewRepository(a.db))
	a.ledgerRepo = ledger.NewRepository(a.db)
	if a.mongoDB != nil {
		a.pluginRegistry = plugin.NewMongoRegistry(a.mongoDB)
	}
	return nil
}

func (a *App) initBlockchain() {
	if !a.Config.Blockchain.Enabled {
		a.Logger.Info("Blockchain anchoring disabled, anchor actions fall back and batches stay pending")
		return
	}

	var breaker *circuitbreaker.Wrapper
	if a.Config.CircuitBreaker.Enabled {
		breaker = circuitbreaker.NewWrapper(circuitbreaker.FromConfig("blockchain", a.Config.CircuitBreaker))
	}

	a.chain = blockchain.NewResilientClient(
		blockchain.NewHTTPClient(a.Config.Blockchain),
		breaker,
		retry.FromConfig(a.Config.Blockchain.Retry),
		a.Logger,
	)
}

func (a *App) initRules() error {
	opts := []action.Option{
		action.WithLedger(a.ledgerRepo),
		action.WithHTTPClient(&http.Client{Timeout: a.Config.Webhook.Timeout}),
		action.WithUserAgent(a.Config.Webhook.UserAgent),
	}
	if a.chain != nil {
		opts = append(opts, action.WithBlockchain(a.chain))
	}
	if a.pluginRegistry != nil && a.Producer != nil {
		runtime := plugin.NewKafkaRuntime(a.Producer, a.Config.Broker.Kafka.PluginTopicPrefix, a.Logger)
		opts = append(opts, action.WithPlugins(a.pluginRegistry, runtime))
	}
	if a.Config.Webhook.AEADKey != "" {
		aead, err := action.NewAEAD(a.Config.Webhook.AEADKey)
		if err != nil {
			return fmt.Errorf("invalid webhook aead key: %w", err)
		}
		opts = append(opts, action.WithAEAD(aead))
	}
	dispatcher := action.NewDispatcher(a.Logger, opts...)

	celEval, err := cel.NewEvaluator()
	if err != nil {
		return fmt.Errorf("failed to create CEL evaluator: %w", err)
	}
	evaluator := condition.NewEvaluator(celEval)

	repo := rules.NewRepository(a.db)
	a.rulesEngine = rules.NewEngine(repo, evaluator, dispatcher, a.Logger)
	a.rulesService = rules.NewService(repo, a.rulesEngine, evaluator, a.Logger, rules.WithAudit(a.auditRecorder))
	return nil
}

func (a *App) initAnchoring() error {
	cache, err := anchoring.NewProofCache(a.Config.Anchoring.Cache, a.redisClient, a.Logger)
	if err != nil {
		return err
	}

	opts := []anchoring.ServiceOption{
		anchoring.WithBestEffortProofScan(a.Config.Anchoring.BestEffortProofScan),
	}
	if a.chain != nil {
		opts = append(opts, anchoring.WithBlockchain(a.chain))
	}
	if a.Producer != nil {
		opts = append(opts, anchoring.WithPublisher(
			anchoring.NewEventPublisher(a.Producer, a.Config.Broker.Kafka.AnchorEventsTopic, a.Logger)))
	}

	a.anchorService = anchoring.NewService(a.auditRecorder, anchoring.NewBatchRepository(a.db), cache, a.Logger, opts...)

	var lock anchoring.WindowLock = anchoring.NewLocalWindowLock()
	if a.redisClient != nil {
		lock = anchoring.NewRedisWindowLock(a.redisClient, a.Config.Anchoring.LockTTL, a.Logger)
	}
	a.scheduler = anchoring.NewScheduler(a.anchorService, lock, a.Config.Anchoring, a.Logger)
	return nil
}

func (a *App) initRouter() {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if a.Config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware(constants.ServiceName))
	}
	router.Use(middleware.RecoveryMiddleware(a.Logger))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware(a.Logger))

	rules.NewHandler(a.rulesService, a.Logger).RegisterRoutes(router)
	anchoring.NewHandler(a.anchorService, a.Logger).RegisterRoutes(router)
	audit.NewHandler(a.auditRecorder, a.Logger).RegisterRoutes(router)
	ledger.NewHandler(a.ledgerRepo, a.Logger).RegisterRoutes(router)
	if a.pluginRegistry != nil {
		plugin.NewHandler(a.pluginRegistry, a.Logger).RegisterRoutes(router)
	}

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewPostgreSQLChecker(a.db))
	if a.redisClient != nil {
		healthRegistry.RegisterOptional(health.NewRedisChecker(a.redisClient))
	}
	if a.mongoClient != nil {
		healthRegistry.RegisterOptional(health.NewMongoDBChecker(a.mongoClient))
	}

	router.GET("/health", func(c *gin.Context) {
		h := healthRegistry.Check(c.Request.Context())
		c.JSON(h.HTTPStatus(), h)
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	a.router = router
	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      router,
		ReadTimeout:  a.Config.Server.ReadTimeoutSeconds,
		WriteTimeout: a.Config.Server.WriteTimeoutSeconds,
	}
}

// Run serves HTTP and runs the event consumer, the anchoring scheduler and the seed watcher
// until ctx is cancelled or one of them fails.
func (a *App) Run(ctx context.Context) error {
	a.initRouter()

	var seeder *rules.Seeder
	if a.Config.Rules.SeedFile != "" {
		seeder = rules.NewSeeder(a.rulesService, a.Config.Rules.SeedFile, a.Logger)
		if _, err := seeder.Seed(ctx); err != nil {
			return fmt.Errorf("failed to seed rules: %w", err)
		}
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(gCtx, "Server listening", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	if a.Consumer != nil {
		handler := rules.NewEventHandler(a.rulesEngine, a.Logger)
		g.Go(func() error {
			a.Logger.InfowCtx(gCtx, "Consuming trust events", "topic", a.Config.Broker.Kafka.InputTopic)
			return a.Consumer.Consume(gCtx, a.Config.Broker.Kafka.InputTopic, handler.HandleMessage)
		})
	}

	if a.Config.Anchoring.Enabled {
		g.Go(func() error {
			return a.scheduler.Start(gCtx)
		})
	}

	if seeder != nil && a.Config.Rules.WatchSeedFile {
		g.Go(func() error {
			// a broken watcher must not take the service down
			if err := seeder.Watch(gCtx); err != nil && !errors.Is(err, context.Canceled) {
				a.Logger.ErrorwCtx(gCtx, "Seed file watcher stopped", "error", err)
			}
			return nil
		})
	}

	err := g.Wait()
	if shutdownErr := a.Shutdown(context.Background(), a.shutdownResources); shutdownErr != nil {
		a.Logger.Errorw("Shutdown failed", "error", shutdownErr)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (a *App) shutdownResources(ctx context.Context) []error {
	var errs []error
	if a.tracerProvider != nil {
		if err := a.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
		}
	}
	return append(errs, a.dbConnector.ShutdownDatabases(ctx, a.redisClient, a.db, a.mongoClient)...)
}

// Close releases resources after a one-shot command.
func (a *App) Close() error {
	return a.Shutdown(context.Background(), a.shutdownResources)
}
