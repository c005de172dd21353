package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/pantheon-ops/tenantd/pkg/access"
	"github.com/pantheon-ops/tenantd/pkg/api"
	"github.com/pantheon-ops/tenantd/pkg/config"
	"github.com/pantheon-ops/tenantd/pkg/idp"
	"github.com/pantheon-ops/tenantd/pkg/kv"
	"github.com/pantheon-ops/tenantd/pkg/license"
	"github.com/pantheon-ops/tenantd/pkg/notify"
	"github.com/pantheon-ops/tenantd/pkg/observability"
	"github.com/pantheon-ops/tenantd/pkg/rbac"
	"github.com/pantheon-ops/tenantd/pkg/reconcile"
	"github.com/pantheon-ops/tenantd/pkg/users"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	handlerLog := logrus.New()
	handlerLog.SetFormatter(&logrus.JSONFormatter{})

	ctx := context.Background()

	store, cleanup, err := buildStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	logger.WithField("type", cfg.Store.Type).Info("directory store initialized")

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		opts, err := redis.ParseURL(cfg.Cache.RedisURL)
		if err != nil {
			log.Fatalf("Failed to parse redis URL: %v", err)
		}
		redisClient = redis.NewClient(opts)
	}

	provider, err := buildProvider(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize identity provider: %v", err)
	}
	if !provider.IsConfigured() {
		logger.Warn("identity provider not configured; provisioning and reconciliation are disabled")
	}

	notifier, err := buildNotifier(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize notifier: %v", err)
	}

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(prometheus.NewRegistry())
		store = observability.NewInstrumentedStore(store, metrics)
	}

	gate := license.NewGate(store)
	orchestrator := users.NewOrchestrator(store, gate, provider, notifier, logger)
	resolver := rbac.NewResolver(store, logger)
	var permissions api.PermissionResolver = resolver
	var invalidator api.CacheInvalidator
	if redisClient != nil {
		cached := rbac.NewCachedResolver(resolver, redisClient, cfg.Cache.TTL, logger, metrics)
		permissions = cached
		invalidator = cached
	}
	accessResolver := access.NewResolver(store, logger, cfg.Access.PlatformAdminEmail, cfg.Access.SuperAdminGroup, cfg.Access.NameCacheSize)
	engine := reconcile.NewEngine(store, provider, notifier, logger, metrics)

	server := api.NewServer(api.Deps{
		Users:       orchestrator,
		Gate:        gate,
		Permissions: permissions,
		Access:      accessResolver,
		Reconciler:  engine,
		Invalidator: invalidator,
		Logger:      logger,
		Metrics:     metrics,
		HandlerLog:  handlerLog,
	})

	// Health and metrics on a separate port for k8s probes.
	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(store, redisClient))
	if metrics != nil {
		healthMux.Handle("/metrics", metrics.Handler())
	}
	healthServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.HealthPort),
		Handler: healthMux,
	}
	go func() {
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("health server failed")
		}
	}()

	var scheduler *reconcile.Scheduler
	if cfg.Reconcile.Schedule != "" {
		scheduler = reconcile.NewScheduler(engine, reconcile.Options{
			IncludeInactive: cfg.Reconcile.IncludeInactive,
		}, cfg.Reconcile.Timeout, logger)
		if err := scheduler.Start(cfg.Reconcile.Schedule); err != nil {
			log.Fatalf("Failed to start reconciliation scheduler: %v", err)
		}
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.WithField("addr", httpServer.Addr).Info("tenantd listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("server failed")
			os.Exit(1)
		}
	}()

	err = observability.GracefulShutdown(logger, httpServer,
		func(ctx context.Context) error {
			if scheduler != nil {
				scheduler.Stop()
			}
			return nil
		},
		func(ctx context.Context) error {
			return healthServer.Shutdown(ctx)
		},
		func(ctx context.Context) error {
			if redisClient != nil {
				return redisClient.Close()
			}
			return nil
		},
		func(ctx context.Context) error {
			return cleanup()
		},
	)
	if err != nil {
		logger.WithError(err).Error("shutdown finished with errors")
		os.Exit(1)
	}
}

// buildStore constructs the configured store backend. The returned cleanup
// releases backend connections on shutdown.
func buildStore(ctx context.Context, cfg *config.Config) (kv.Store, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Store.Type {
	case config.StoreTypeDynamo:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Store.DynamoRegion))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load AWS configuration: %w", err)
		}
		client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
			if cfg.Store.DynamoEndpoint != "" {
				o.BaseEndpoint = &cfg.Store.DynamoEndpoint
			}
		})
		return kv.NewDynamoStore(client, cfg.Store.DynamoTable), noop, nil
	case config.StoreTypePostgres:
		store, err := kv.NewPostgresStore(cfg.Store.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case config.StoreTypeMemory:
		return kv.NewMemoryStore(), noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown store type %q", cfg.Store.Type)
	}
}

// buildProvider constructs the Cognito adapter. An empty user pool id
// yields an unconfigured adapter that skips every call.
func buildProvider(ctx context.Context, cfg *config.Config) (idp.Adapter, error) {
	if cfg.Cognito.UserPoolID == "" {
		return idp.NewCognitoAdapter(nil, ""), nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Cognito.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	return idp.NewCognitoAdapter(cognitoidentityprovider.NewFromConfig(awsCfg), cfg.Cognito.UserPoolID), nil
}

// buildNotifier constructs the SES dispatcher, or a noop when no sender is
// configured.
func buildNotifier(ctx context.Context, cfg *config.Config) (notify.Dispatcher, error) {
	if cfg.SES.Sender == "" {
		return notify.NoopDispatcher{}, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.SES.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	return notify.NewSESDispatcher(sesv2.NewFromConfig(awsCfg), cfg.SES.Sender), nil
}
