package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront-service/catalog"
	"storefront-service/controllers"
	"storefront-service/database"
	"storefront-service/middleware"
	aws_pkg "storefront-service/pkg/aws"
	"storefront-service/pkg/logger"
	"storefront-service/providers"
	"storefront-service/proxy"
	"storefront-service/repository"
	"storefront-service/routes"
	"storefront-service/services"
	"storefront-service/workflow"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

const serviceName = "storefront-service"

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// AWS clients
	awsCfg, awsErr := aws_pkg.LoadAWSConfig(ctx)

	// ── CloudWatch Logs + Metrics ──
	var cwWriter *aws_pkg.CloudWatchLogsClient
	var metrics aws_pkg.MetricsRecorder
	if cfg.CloudWatchEnabled && awsErr == nil {
		cwWriter, err = aws_pkg.NewCloudWatchLogsClient(ctx, awsCfg, serviceName, cfg.CloudWatchLogGroup, true)
		if err != nil {
			log.Printf("CloudWatch Logs init failed: %v", err)
			cwWriter = nil
		}
		metrics = aws_pkg.NewMetricsClient(awsCfg, cfg.CloudWatchNamespace, true)
	}

	var zapLogger *zap.Logger
	if cwWriter != nil {
		zapLogger, err = logger.InitializeWithWriter(cfg.AppEnv, cwWriter)
	} else {
		zapLogger, err = logger.Initialize(cfg.AppEnv)
	}
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync() //nolint:errcheck

	var snsClient aws_pkg.SNSPublisher
	if awsErr != nil {
		zapLogger.Warn("AWS config unavailable, SNS and CloudWatch disabled", zap.Error(awsErr))
	} else if cfg.LabelSNSTopicARN != "" {
		snsClient = aws_pkg.NewSNSClient(awsCfg)
	}

	if cfg.ShipEngineAPIKey == "" {
		zapLogger.Warn("SHIPENGINE_API_KEY not set, carrier proxy will reject requests")
	}

	// Label history (optional)
	var labelRepo repository.LabelRepository
	var db *gorm.DB
	if pg := cfg.Postgres(); pg.Enabled() {
		db, err = database.ConnectPostgres(pg, zapLogger)
		if err != nil {
			zapLogger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer database.Close(db) //nolint:errcheck
		labelRepo = repository.NewGormLabelRepository(db)
	} else {
		zapLogger.Warn("Postgres not configured, purchased labels will not be stored")
	}

	// Product cache (optional)
	var productCache catalog.ProductCache
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			zapLogger.Fatal("Invalid REDIS_URL", zap.Error(err))
		}
		redisClient := redis.NewClient(opts)
		defer redisClient.Close() //nolint:errcheck
		if err := redisClient.Ping(ctx).Err(); err != nil {
			zapLogger.Warn("Redis unreachable, product listing will read through", zap.Error(err))
		} else {
			zapLogger.Info("Connected to Redis")
		}
		productCache = catalog.NewRedisCache(redisClient, cfg.ProductCacheTTL)
	}

	// Provider and DI chain
	carrier := providers.NewShipEngineProvider(cfg.CarrierProxyURL, cfg.CarrierPublicURL, cfg.CarrierTimeout, zapLogger)
	shippingService := services.NewShippingService(carrier, labelRepo, snsClient, cfg.LabelSNSTopicARN, metrics, zapLogger)
	registry := workflow.NewRegistry(
		shippingService,
		services.NewShipmentInputValidator(cfg.DefaultSender()),
		cfg.DefaultCarrierID,
		cfg.WorkflowIdleTTL,
		zapLogger,
	)
	catalogService := catalog.NewService(
		catalog.NewSanityClient(cfg.Sanity(), cfg.CarrierTimeout),
		productCache,
		metrics,
		zapLogger,
	)
	limiter := middleware.NewRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst, 3*time.Minute)

	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		zapLogger.Fatal("Invalid TRUSTED_PROXIES", zap.Error(err))
	}
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(zapLogger))
	r.Use(middleware.MetricsMiddleware(metrics, serviceName))

	routes.Register(r, routes.Handlers{
		Workflows: controllers.NewWorkflowController(registry, shippingService),
		Shipping:  controllers.NewShippingController(shippingService),
		Products:  controllers.NewProductController(catalogService),
		Proxy:     proxy.NewForwarder(cfg.CarrierBaseURL, cfg.ShipEngineAPIKey, cfg.ProxyTimeout, zapLogger),
	}, routes.Options{
		ServiceName:    serviceName,
		AllowedOrigins: cfg.AllowedOrigins,
		Limiter:        limiter,
		WebhookSecret:  cfg.SanityWebhookSecret,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zapLogger.Info("Storefront service started", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error { return registry.Run(gctx) })
	g.Go(func() error { return limiter.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		zapLogger.Info("Shutting down storefront service...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		zapLogger.Error("Server stopped with error", zap.Error(err))
		os.Exit(1)
	}
	zapLogger.Info("Server exited cleanly")
}
