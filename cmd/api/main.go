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

	"go.uber.org/zap"

	"github.com/catalogsync/api/internal/di"
	"github.com/catalogsync/api/internal/platform/config"
	"github.com/catalogsync/api/internal/platform/observability"
	"github.com/catalogsync/api/internal/platform/secrets"
	"github.com/catalogsync/api/internal/services"
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger(os.Getenv("API_LOG_LEVEL"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()
	logger := baseLogger.Named("api")

	secretResolver := newLazySecretResolver(logger.Named("secrets"))
	defer func() {
		if err := secretResolver.Close(); err != nil {
			logger.Warn("secret resolver close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx, config.WithSecretResolver(secretResolver))
	if err != nil {
		var validation *config.ValidationError
		if errors.As(err, &validation) {
			logger.Fatal("invalid configuration", zap.Strings("fields", validation.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}
	if level := cfg.Observability.LogLevel; level != "" {
		if leveled, err := observability.NewLogger(level); err == nil {
			baseLogger = leveled
			logger = baseLogger.Named("api")
		}
	}

	container, err := di.NewContainer(ctx, cfg, logger, buildInfo(cfg, startedAt))
	if err != nil {
		logger.Fatal("failed to initialise dependencies", zap.Error(err))
	}
	container.Start()

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      container.Router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("catalog gateway listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	// Request log writes scheduled by the last requests finish here.
	if err := container.Close(shutdownCtx); err != nil {
		logger.Warn("dependency shutdown incomplete", zap.Error(err))
	}
}

func buildInfo(cfg config.Config, started time.Time) services.BuildInfo {
	version := strings.TrimSpace(os.Getenv("API_BUILD_VERSION"))
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(os.Getenv("API_BUILD_COMMIT_SHA"))
	if commit == "" {
		commit = "unknown"
	}
	return services.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: cfg.Observability.Environment,
		StartedAt:   started,
	}
}

// lazySecretResolver dials Secret Manager only when configuration references a secret.
type lazySecretResolver struct {
	logger *zap.Logger

	mu       sync.Mutex
	resolver *secrets.Resolver
}

func newLazySecretResolver(logger *zap.Logger) *lazySecretResolver {
	return &lazySecretResolver{logger: logger}
}

func (l *lazySecretResolver) ResolveSecret(ctx context.Context, ref string) (string, error) {
	l.mu.Lock()
	if l.resolver == nil {
		project := strings.TrimSpace(os.Getenv("API_SECRETS_PROJECT_ID"))
		if project == "" {
			project = strings.TrimSpace(os.Getenv("GOOGLE_CLOUD_PROJECT"))
		}
		resolver, err := secrets.NewResolver(ctx,
			secrets.WithDefaultProject(project),
			secrets.WithLogger(l.logger),
		)
		if err != nil {
			l.mu.Unlock()
			return "", err
		}
		l.resolver = resolver
	}
	resolver := l.resolver
	l.mu.Unlock()
	return resolver.ResolveSecret(ctx, ref)
}

func (l *lazySecretResolver) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.resolver == nil {
		return nil
	}
	return l.resolver.Close()
}
