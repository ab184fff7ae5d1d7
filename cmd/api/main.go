package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	"github.com/greenmart/api/internal/handlers"
	"github.com/greenmart/api/internal/platform/auth"
	"github.com/greenmart/api/internal/platform/config"
	pfirestore "github.com/greenmart/api/internal/platform/firestore"
	"github.com/greenmart/api/internal/platform/idempotency"
	"github.com/greenmart/api/internal/platform/jobs"
	"github.com/greenmart/api/internal/platform/observability"
	"github.com/greenmart/api/internal/platform/secrets"
	platformstorage "github.com/greenmart/api/internal/platform/storage"
	"github.com/greenmart/api/internal/repositories"
	firestoreRepo "github.com/greenmart/api/internal/repositories/firestore"
	"github.com/greenmart/api/internal/services"
)

const (
	idempotencyCleanupInterval = 10 * time.Minute
	idempotencyCleanupBatch    = 200
	loginRateWindow            = time.Minute
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	envValues, err := config.EnvironmentValues()
	if err != nil {
		logger.Fatal("failed to read environment values", zap.Error(err))
	}

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
		config.WithRequiredSecrets("Auth.SigningKey"),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.Names()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	buildInfo := buildInfoFromEnv(envValues, cfg, startedAt)

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	firestoreClient, err := firestoreProvider.Client(ctx)
	if err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := firestoreProvider.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	unitOfWork, err := pfirestore.NewUnitOfWork(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise unit of work", zap.Error(err))
	}

	var media services.MediaStore
	if strings.TrimSpace(cfg.Storage.MediaBucket) != "" {
		mediaClient, err := platformstorage.NewMediaClient(ctx, cfg.Storage.MediaBucket, cfg.Storage.PublicBaseURL)
		if err != nil {
			logger.Fatal("failed to initialise media storage", zap.Error(err))
		}
		media = mediaClient
		defer func() {
			if err := mediaClient.Close(); err != nil {
				logger.Warn("media storage close error", zap.Error(err))
			}
		}()
	} else {
		logger.Warn("media bucket not configured; catalog image uploads disabled")
	}

	pubsubClient, err := pubsub.NewClient(ctx, cfg.Events.ProjectID)
	if err != nil {
		logger.Fatal("failed to initialise pubsub client", zap.Error(err))
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logger.Warn("pubsub close error", zap.Error(err))
		}
	}()

	orderTopic := pubsubClient.Topic(cfg.Events.OrderTopic)
	emailTopic := pubsubClient.Topic(cfg.Events.EmailTopic)
	defer orderTopic.Stop()
	defer emailTopic.Stop()

	orderEvents, err := jobs.NewPubSubOrderEventPublisher(orderTopic)
	if err != nil {
		logger.Fatal("failed to initialise order event publisher", zap.Error(err))
	}
	emailJobs, err := jobs.NewPubSubEmailPublisher(emailTopic)
	if err != nil {
		logger.Fatal("failed to initialise email job publisher", zap.Error(err))
	}

	tokenManager, err := auth.NewTokenManager(cfg.Auth.SigningKey, cfg.Auth.Issuer, cfg.Auth.TokenTTL, time.Now)
	if err != nil {
		logger.Fatal("failed to initialise token manager", zap.Error(err))
	}
	authenticator := auth.NewAuthenticator(tokenManager)

	productRepo, err := firestoreRepo.NewProductRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise product repository", zap.Error(err))
	}
	categoryRepo, err := firestoreRepo.NewCategoryRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise category repository", zap.Error(err))
	}
	cartRepo, err := firestoreRepo.NewCartRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise cart repository", zap.Error(err))
	}
	favouriteRepo, err := firestoreRepo.NewFavouriteRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise favourite repository", zap.Error(err))
	}
	orderRepo, err := firestoreRepo.NewOrderRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise order repository", zap.Error(err))
	}
	reviewRepo, err := firestoreRepo.NewReviewRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise review repository", zap.Error(err))
	}
	userRepo, err := firestoreRepo.NewUserRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise user repository", zap.Error(err))
	}
	adminRepo, err := firestoreRepo.NewAdminRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise admin repository", zap.Error(err))
	}
	auditRepo, err := firestoreRepo.NewAuditLogRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise audit log repository", zap.Error(err))
	}
	stockLedger, err := firestoreRepo.NewStockLedger(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise stock ledger", zap.Error(err))
	}

	auditService, err := services.NewAuditLogService(services.AuditLogServiceDeps{
		Repository: auditRepo,
		Logger:     logger.Named("audit").Sugar(),
		HashSalt:   strings.TrimSpace(envValues["API_AUDIT_HASH_SALT"]),
	})
	if err != nil {
		logger.Fatal("failed to initialise audit log service", zap.Error(err))
	}

	authService, err := services.NewAuthService(services.AuthServiceDeps{
		Users:    userRepo,
		Admins:   adminRepo,
		Tokens:   tokenManager,
		TokenTTL: cfg.Auth.TokenTTL,
	})
	if err != nil {
		logger.Fatal("failed to initialise auth service", zap.Error(err))
	}

	catalogService, err := services.NewCatalogService(services.CatalogServiceDeps{
		Products:   productRepo,
		Categories: categoryRepo,
		Media:      media,
	})
	if err != nil {
		logger.Fatal("failed to initialise catalog service", zap.Error(err))
	}

	categoryService, err := services.NewCategoryService(services.CategoryServiceDeps{
		Categories: categoryRepo,
	})
	if err != nil {
		logger.Fatal("failed to initialise category service", zap.Error(err))
	}

	cartService, err := services.NewCartService(services.CartServiceDeps{
		Carts:    cartRepo,
		Products: productRepo,
	})
	if err != nil {
		logger.Fatal("failed to initialise cart service", zap.Error(err))
	}

	favouriteService, err := services.NewFavouriteService(services.FavouriteServiceDeps{
		Favourites: favouriteRepo,
		Products:   productRepo,
	})
	if err != nil {
		logger.Fatal("failed to initialise favourite service", zap.Error(err))
	}

	reviewService, err := services.NewReviewService(services.ReviewServiceDeps{
		Reviews:    reviewRepo,
		Products:   productRepo,
		UnitOfWork: unitOfWork,
	})
	if err != nil {
		logger.Fatal("failed to initialise review service", zap.Error(err))
	}

	notifications, err := services.NewNotificationService(services.NotificationServiceDeps{
		Users:     userRepo,
		Publisher: emailJobs,
	})
	if err != nil {
		logger.Fatal("failed to initialise notification dispatcher", zap.Error(err))
	}

	orderLogger := logger.Named("orders")
	orderService, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:        orderRepo,
		Products:      productRepo,
		Stock:         stockLedger,
		Carts:         cartRepo,
		UnitOfWork:    unitOfWork,
		Events:        orderEvents,
		Notifications: notifications,
		ShippingCost:  cfg.Orders.ShippingCost,
		Logger: func(_ context.Context, event string, fields map[string]any) {
			zFields := make([]zap.Field, 0, len(fields)+1)
			zFields = append(zFields, zap.String("event", event))
			for k, v := range fields {
				zFields = append(zFields, zap.Any(k, v))
			}
			orderLogger.Debug("order event", zFields...)
		},
	})
	if err != nil {
		logger.Fatal("failed to initialise order service", zap.Error(err))
	}

	analyticsService, err := services.NewAnalyticsService(services.AnalyticsServiceDeps{
		Orders:   orderRepo,
		Products: productRepo,
		Users:    userRepo,
	})
	if err != nil {
		logger.Fatal("failed to initialise analytics service", zap.Error(err))
	}

	systemService, err := newSystemService(firestoreClient, orderTopic)
	if err != nil {
		logger.Warn("health: system service init failed", zap.Error(err))
	}

	idempotencyStore := idempotency.NewFirestoreStore(firestoreClient)
	idempotencyMiddleware := idempotency.Middleware(
		idempotencyStore,
		idempotency.WithLogger(observability.NewPrintfAdapter(logger.Named("idempotency"))),
	)

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	var cleanupWG sync.WaitGroup
	cleanupTicker := time.NewTicker(idempotencyCleanupInterval)
	cleanupWG.Add(1)
	go func() {
		defer cleanupWG.Done()
		cleanupLogger := logger.Named("idempotency")
		for {
			select {
			case <-cleanupTicker.C:
				runCtx, cancel := context.WithTimeout(cleanupCtx, time.Minute)
				removed, err := idempotencyStore.CleanupExpired(runCtx, time.Now().UTC(), idempotencyCleanupBatch)
				cancel()
				if err != nil {
					cleanupLogger.Error("idempotency cleanup error", zap.Error(err))
					continue
				}
				if removed > 0 {
					cleanupLogger.Info("idempotency cleanup removed records", zap.Int("count", removed))
				}
			case <-cleanupCtx.Done():
				return
			}
		}
	}()

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(buildInfo),
		handlers.WithHealthSystemService(systemService),
	)
	loginLimiter := handlers.NewRateLimiter(cfg.RateLimits.LoginPerMinute, loginRateWindow, nil)
	authHandlers := handlers.NewAuthHandlers(authService, loginLimiter)
	productHandlers := handlers.NewProductHandlers(authenticator, catalogService, reviewService)
	categoryHandlers := handlers.NewCategoryHandlers(categoryService)
	cartHandlers := handlers.NewCartHandlers(authenticator, cartService)
	favouriteHandlers := handlers.NewFavouriteHandlers(authenticator, favouriteService)
	orderHandlers := handlers.NewOrderHandlers(authenticator, orderService, auditService)
	adminCatalogHandlers := handlers.NewAdminCatalogHandlers(catalogService, categoryService, auditService)
	adminInsightsHandlers := handlers.NewAdminInsightsHandlers(analyticsService, auditService)

	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(cfg.Firestore.ProjectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(cfg.Firestore.ProjectID),
		idempotencyMiddleware,
	}

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithAuthRoutes(authHandlers.Routes),
		handlers.WithProductRoutes(productHandlers.Routes),
		handlers.WithCategoryRoutes(categoryHandlers.Routes),
		handlers.WithCartRoutes(cartHandlers.Routes),
		handlers.WithFavouriteRoutes(favouriteHandlers.Routes),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithAdminRoutes(handlers.AdminRoutes(authenticator,
			adminCatalogHandlers.Routes,
			adminInsightsHandlers.Routes,
		)),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("greenmart api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	cleanupTicker.Stop()
	cleanupCancel()
	cleanupWG.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func buildInfoFromEnv(env map[string]string, cfg config.Config, started time.Time) services.BuildInfo {
	version := strings.TrimSpace(env["API_BUILD_VERSION"])
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(env["API_BUILD_COMMIT_SHA"])
	if commit == "" {
		commit = "unknown"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "local"
	}
	return services.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: environment,
		StartedAt:   started,
	}
}

func newSystemService(client *firestore.Client, orderTopic *pubsub.Topic) (services.SystemService, error) {
	checks := make([]repositories.DependencyCheck, 0, 2)
	if client != nil {
		c := client
		checks = append(checks, repositories.DependencyCheck{
			Name:    "firestore",
			Timeout: 1500 * time.Millisecond,
			Check: func(ctx context.Context) error {
				iter := c.Collections(ctx)
				_, err := iter.Next()
				if errors.Is(err, iterator.Done) {
					return nil
				}
				return err
			},
		})
	}
	if orderTopic != nil {
		topic := orderTopic
		checks = append(checks, repositories.DependencyCheck{
			Name:    "pubsub",
			Timeout: 2 * time.Second,
			Check: func(ctx context.Context) error {
				exists, err := topic.Exists(ctx)
				if err != nil {
					return err
				}
				if !exists {
					return fmt.Errorf("topic %s not found", topic.ID())
				}
				return nil
			},
		})
	}
	if len(checks) == 0 {
		return nil, errors.New("health: no dependency checks configured")
	}
	repo, err := repositories.NewDependencyHealthRepository(checks)
	if err != nil {
		return nil, err
	}
	return services.NewSystemService(services.SystemServiceDeps{Health: repo})
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		if env == nil {
			return ""
		}
		return strings.TrimSpace(env[key])
	}

	project := lookup("API_SECRET_PROJECT_ID")
	if project == "" {
		project = lookup("API_FIRESTORE_PROJECT_ID")
	}
	fallbackPath := lookup("API_SECRET_FALLBACK_FILE")
	if fallbackPath == "" {
		fallbackPath = ".secrets.local"
	}

	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(fallbackPath),
	}
	if project != "" {
		opts = append(opts, secrets.WithProject(project))
	}

	return secrets.NewFetcher(ctx, opts...)
}
