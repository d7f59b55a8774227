package di

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"gorm.io/gorm"

	"github.com/catalogsync/api/internal/handlers"
	"github.com/catalogsync/api/internal/platform/auth"
	"github.com/catalogsync/api/internal/platform/config"
	pfirestore "github.com/catalogsync/api/internal/platform/firestore"
	"github.com/catalogsync/api/internal/platform/jobs"
	"github.com/catalogsync/api/internal/platform/metrics"
	"github.com/catalogsync/api/internal/repositories"
	firestoreRepo "github.com/catalogsync/api/internal/repositories/firestore"
	"github.com/catalogsync/api/internal/repositories/postgres"
	"github.com/catalogsync/api/internal/services"
)

const (
	backgroundTaskTimeout = 10 * time.Second
	postgresCheck         = "postgres"
)

// Repositories groups the storage adapters shared by the services.
type Repositories struct {
	APIKeys       repositories.APIKeyRepository
	Products      repositories.ProductRepository
	History       repositories.ApprovalHistoryRepository
	Listings      repositories.ListingRepository
	Integrations  repositories.IntegrationRepository
	Notifications repositories.NotificationRepository
	RequestLogs   repositories.RequestLogRepository
	Health        repositories.HealthRepository
}

// Services bundles the service-layer contracts that handlers rely upon.
type Services struct {
	APIKeys       services.APIKeyService
	Products      services.ProductService
	Approvals     services.ApprovalService
	Listings      services.ListingService
	Tokens        services.TokenMonitorService
	Notifications services.NotificationService
	RequestLogger services.RequestLogger
	System        services.SystemService
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories Repositories
	Services     Services
	Metrics      *metrics.Registry
	Router       http.Handler

	logger     *zap.Logger
	background *services.BackgroundTasks
	sweeper    *services.TokenExpirySweeper
	firestore  *pfirestore.Provider
	pubsub     *pubsub.Client
	topic      *pubsub.Topic
	db         *gorm.DB
}

// NewContainer constructs the runtime dependencies from cfg. Clients are released by Close, also
// when construction fails halfway.
func NewContainer(ctx context.Context, cfg config.Config, logger *zap.Logger, build services.BuildInfo) (_ *Container, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Container{
		Config:     cfg,
		logger:     logger,
		background: services.NewBackgroundTasks(backgroundTaskTimeout),
		firestore:  pfirestore.NewProvider(cfg.Firestore),
	}
	if cfg.Metrics.Enabled {
		c.Metrics = metrics.New()
	}
	defer func() {
		if err != nil {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = c.Close(closeCtx)
		}
	}()

	if err := c.buildRepositories(ctx); err != nil {
		return nil, err
	}
	if err := c.buildServices(); err != nil {
		return nil, err
	}
	if err := c.buildSweeper(); err != nil {
		return nil, err
	}
	c.Router = c.buildRouter(build)
	return c, nil
}

func (c *Container) buildRepositories(ctx context.Context) error {
	var err error
	repos := &c.Repositories

	if repos.APIKeys, err = firestoreRepo.NewAPIKeyRepository(c.firestore); err != nil {
		return fmt.Errorf("build api key repository: %w", err)
	}
	if repos.Products, err = firestoreRepo.NewProductRepository(c.firestore); err != nil {
		return fmt.Errorf("build product repository: %w", err)
	}
	if repos.History, err = firestoreRepo.NewApprovalHistoryRepository(c.firestore); err != nil {
		return fmt.Errorf("build approval history repository: %w", err)
	}
	if repos.Listings, err = firestoreRepo.NewListingRepository(c.firestore); err != nil {
		return fmt.Errorf("build listing repository: %w", err)
	}
	if repos.Integrations, err = firestoreRepo.NewIntegrationRepository(c.firestore); err != nil {
		return fmt.Errorf("build integration repository: %w", err)
	}
	if repos.Notifications, err = firestoreRepo.NewNotificationRepository(c.firestore); err != nil {
		return fmt.Errorf("build notification repository: %w", err)
	}

	switch c.Config.RequestLog.Driver {
	case config.RequestLogDriverPostgres:
		db, err := postgres.Open(c.Config.RequestLog.PostgresDSN, c.logger.Named("postgres"))
		if err != nil {
			return err
		}
		c.db = db
		pg, err := postgres.NewRequestLogRepository(db)
		if err != nil {
			return err
		}
		if err := pg.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate request log table: %w", err)
		}
		repos.RequestLogs = pg
	case config.RequestLogDriverFirestore:
		fs, err := firestoreRepo.NewRequestLogRepository(c.firestore)
		if err != nil {
			return fmt.Errorf("build request log repository: %w", err)
		}
		repos.RequestLogs = fs
	}

	health, err := repositories.NewDependencyHealthRepository(c.dependencyChecks())
	if err != nil {
		return fmt.Errorf("build health repository: %w", err)
	}
	repos.Health = health
	return nil
}

func (c *Container) dependencyChecks() []repositories.DependencyCheck {
	checks := []repositories.DependencyCheck{{
		Name:  "firestore",
		Check: c.firestore.Ping,
	}}
	if c.db != nil {
		db := c.db
		checks = append(checks, repositories.DependencyCheck{
			Name:  postgresCheck,
			Check: func(ctx context.Context) error { return postgres.Ping(ctx, db) },
		})
	}
	return checks
}

// notificationPublisher dials Pub/Sub when a topic is configured. A nil publisher keeps
// notifications in-app only.
func (c *Container) notificationPublisher() (services.NotificationPublisher, error) {
	topicID := strings.TrimSpace(c.Config.PubSub.NotificationsTopic)
	projectID := strings.TrimSpace(c.Config.PubSub.ProjectID)
	if topicID == "" || projectID == "" {
		c.logger.Info("pubsub notifications disabled")
		return nil, nil
	}

	var opts []option.ClientOption
	if host := strings.TrimSpace(c.Config.PubSub.EmulatorHost); host != "" {
		opts = append(opts,
			option.WithoutAuthentication(),
			option.WithEndpoint(host),
			option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
	}
	client, err := pubsub.NewClient(context.Background(), projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	c.pubsub = client
	c.topic = client.Topic(topicID)
	publisher, err := jobs.NewPubSubNotificationPublisher(c.topic)
	if err != nil {
		return nil, err
	}
	return publisher, nil
}

func (c *Container) buildServices() error {
	var err error
	repos := c.Repositories
	svc := &c.Services

	svc.APIKeys, err = services.NewAPIKeyService(services.APIKeyServiceDeps{
		Keys:       repos.APIKeys,
		Background: c.background,
		Logger:     c.logger.Named("apikeys"),
	})
	if err != nil {
		return fmt.Errorf("build api key service: %w", err)
	}

	publisher, err := c.notificationPublisher()
	if err != nil {
		return err
	}
	svc.Notifications, err = services.NewNotificationService(services.NotificationServiceDeps{
		Repository: repos.Notifications,
		Publisher:  publisher,
	})
	if err != nil {
		return fmt.Errorf("build notification service: %w", err)
	}

	svc.Products, err = services.NewProductService(services.ProductServiceDeps{
		Products: repos.Products,
	})
	if err != nil {
		return fmt.Errorf("build product service: %w", err)
	}

	approvals := services.ApprovalServiceDeps{
		Products:      repos.Products,
		History:       repos.History,
		Notifications: svc.Notifications,
		Logger:        c.logger.Named("approvals"),
	}
	if c.Metrics != nil {
		approvals.Metrics = c.Metrics
	}
	svc.Approvals, err = services.NewApprovalService(approvals)
	if err != nil {
		return fmt.Errorf("build approval service: %w", err)
	}

	svc.Listings, err = services.NewListingService(services.ListingServiceDeps{
		Listings: repos.Listings,
		Products: repos.Products,
		Logger:   c.logger.Named("listings"),
	})
	if err != nil {
		return fmt.Errorf("build listing service: %w", err)
	}

	svc.Tokens, err = services.NewTokenMonitorService(services.TokenMonitorServiceDeps{
		Integrations: repos.Integrations,
	})
	if err != nil {
		return fmt.Errorf("build token monitor service: %w", err)
	}

	if repos.RequestLogs != nil {
		deps := services.RequestLoggerDeps{
			Repository:       repos.RequestLogs,
			Background:       c.background,
			Logger:           c.logger,
			MaxBodyChars:     c.Config.RequestLog.MaxBodyChars,
			MaxResponseChars: c.Config.RequestLog.MaxResponseChars,
		}
		if c.Metrics != nil {
			deps.Metrics = c.Metrics
		}
		svc.RequestLogger, err = services.NewRequestLogger(deps)
		if err != nil {
			return fmt.Errorf("build request logger: %w", err)
		}
	}

	svc.System, err = services.NewSystemService(services.SystemServiceDeps{
		HealthRepository: repos.Health,
		NonBlocking:      []string{postgresCheck},
	})
	if err != nil {
		return fmt.Errorf("build system service: %w", err)
	}
	return nil
}

func (c *Container) buildSweeper() error {
	monitor := c.Config.Monitor
	if !monitor.SweepEnabled {
		return nil
	}
	sweeper, err := services.NewTokenExpirySweeper(
		c.Services.Tokens,
		c.Services.Notifications,
		monitor.SweepSchedule,
		monitor.SweepWindowMinutes,
		c.logger,
	)
	if err != nil {
		return err
	}
	c.sweeper = sweeper
	return nil
}

func (c *Container) buildRouter(build services.BuildInfo) http.Handler {
	authOpts := []auth.Option{auth.WithHeader(c.Config.Gateway.APIKeyHeader)}
	if c.Metrics != nil {
		authOpts = append(authOpts, auth.WithFailureObserver(c.Metrics.AuthFailure))
	}
	authenticator := auth.NewAuthenticator(c.Services.APIKeys, authOpts...)

	health := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(build),
		handlers.WithHealthSystemService(c.Services.System),
	)

	opts := []handlers.Option{
		handlers.WithLogger(c.logger.Named("http")),
		handlers.WithTraceProject(c.Config.Firestore.ProjectID),
		handlers.WithHealthHandlers(health),
		handlers.WithAuthenticator(authenticator),
		handlers.WithPublicInfo(c.Config.Gateway.PublicInfo),
		handlers.WithProductRoutes(handlers.NewProductHandlers(c.Services.Products, c.Services.Approvals).Routes),
		handlers.WithListingRoutes(handlers.NewListingHandlers(c.Services.Listings).Routes),
		handlers.WithIntegrationRoutes(handlers.NewIntegrationHandlers(c.Services.Tokens).Routes),
	}
	if c.Services.RequestLogger != nil {
		opts = append(opts, handlers.WithRequestLogger(c.Services.RequestLogger, handlers.RequestLogOptions{
			MaxBodyBytes:     c.Config.RequestLog.MaxBodyChars * utf8.UTFMax,
			MaxResponseBytes: c.Config.RequestLog.MaxResponseChars * utf8.UTFMax,
		}))
	}
	if c.Metrics != nil {
		opts = append(opts, handlers.WithMetrics(c.Metrics, c.Config.Metrics.Path))
	}
	return handlers.NewRouter(opts...)
}

// Start launches background schedules.
func (c *Container) Start() {
	if c != nil && c.sweeper != nil {
		c.sweeper.Start()
	}
}

// Close stops the schedules, waits for pending request log and key usage writes, then releases
// clients. ctx bounds the whole sequence.
func (c *Container) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.sweeper != nil {
		if err := c.sweeper.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop token sweeper: %w", err))
		}
	}
	if c.Services.RequestLogger != nil {
		if err := c.Services.RequestLogger.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("drain request log: %w", err))
		}
	}
	if c.background != nil {
		if err := c.background.Wait(ctx); err != nil {
			errs = append(errs, fmt.Errorf("drain background tasks: %w", err))
		}
	}
	if c.topic != nil {
		c.topic.Stop()
	}
	if c.pubsub != nil {
		if err := c.pubsub.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pubsub: %w", err))
		}
	}
	if c.db != nil {
		if err := postgres.Close(c.db); err != nil {
			errs = append(errs, fmt.Errorf("close postgres: %w", err))
		}
	}
	if c.firestore != nil {
		if err := c.firestore.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close firestore: %w", err))
		}
	}
	return errors.Join(errs...)
}
