package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const metricNamespace = "github.com/catalogsync/api/internal/platform/secrets"

// ErrSecretNotFound is returned when the referenced secret or version does not exist.
var ErrSecretNotFound = errors.New("secrets: secret not found")

type secretManagerClient interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

// Resolver reads secret:// references from Google Secret Manager and caches the values for the
// lifetime of the process. It satisfies config.SecretResolver.
type Resolver struct {
	client         secretManagerClient
	defaultProject string
	logger         *zap.Logger
	latency        metric.Float64Histogram

	mu    sync.Mutex
	cache map[string]string
}

// Option customises a Resolver.
type Option func(*resolverConfig)

type resolverConfig struct {
	client         secretManagerClient
	clientOpts     []option.ClientOption
	defaultProject string
	logger         *zap.Logger
	meter          metric.Meter
}

// WithDefaultProject is used for references that omit the project segment.
func WithDefaultProject(projectID string) Option {
	return func(cfg *resolverConfig) { cfg.defaultProject = strings.TrimSpace(projectID) }
}

// WithLogger sets the diagnostic logger.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *resolverConfig) { cfg.logger = logger }
}

// WithMeter injects an OpenTelemetry meter.
func WithMeter(m metric.Meter) Option {
	return func(cfg *resolverConfig) { cfg.meter = m }
}

// WithClientOptions forwards options to the Secret Manager client constructor.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(cfg *resolverConfig) { cfg.clientOpts = append(cfg.clientOpts, opts...) }
}

func withClient(client secretManagerClient) Option {
	return func(cfg *resolverConfig) { cfg.client = client }
}

// NewResolver creates a Resolver, dialing Secret Manager unless a client was injected.
func NewResolver(ctx context.Context, opts ...Option) (*Resolver, error) {
	cfg := resolverConfig{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	if cfg.meter == nil {
		cfg.meter = otel.GetMeterProvider().Meter(metricNamespace)
	}

	client := cfg.client
	if client == nil {
		c, err := secretmanager.NewClient(ctx, cfg.clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("secrets: create secret manager client: %w", err)
		}
		client = c
	}

	latency, err := cfg.meter.Float64Histogram(
		"secrets.fetch.latency",
		metric.WithUnit("ms"),
		metric.WithDescription("Latency in milliseconds for secret fetch attempts"),
	)
	if err != nil {
		cfg.logger.Warn("secrets: unable to register latency metric", zap.Error(err))
	}

	return &Resolver{
		client:         client,
		defaultProject: cfg.defaultProject,
		logger:         cfg.logger,
		latency:        latency,
		cache:          make(map[string]string),
	}, nil
}

// ResolveSecret returns the payload of ref, formatted as secret://[project/]name[#version].
func (r *Resolver) ResolveSecret(ctx context.Context, ref string) (string, error) {
	name, err := r.versionName(ref)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	if value, ok := r.cache[name]; ok {
		r.mu.Unlock()
		return value, nil
	}
	r.mu.Unlock()

	start := time.Now()
	resp, err := r.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	r.record(ctx, start, err)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return "", fmt.Errorf("%w: %s", ErrSecretNotFound, name)
		}
		return "", fmt.Errorf("secrets: access %s: %w", name, err)
	}

	value := string(resp.GetPayload().GetData())
	r.mu.Lock()
	r.cache[name] = value
	r.mu.Unlock()

	r.logger.Debug("secret resolved", zap.String("secret", name))
	return value, nil
}

// Close releases the Secret Manager client.
func (r *Resolver) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}

func (r *Resolver) versionName(ref string) (string, error) {
	trimmed := strings.TrimSpace(ref)
	path, ok := strings.CutPrefix(trimmed, "secret://")
	if !ok {
		path, ok = strings.CutPrefix(trimmed, "sm://")
	}
	if !ok || path == "" {
		return "", fmt.Errorf("secrets: unsupported reference %q", ref)
	}

	path, version, _ := strings.Cut(path, "#")
	if version == "" {
		version = "latest"
	}

	project, secret, found := strings.Cut(path, "/")
	if !found {
		project, secret = r.defaultProject, path
	}
	if project == "" || secret == "" || strings.Contains(secret, "/") {
		return "", fmt.Errorf("secrets: reference %q must be secret://project/name", ref)
	}
	return fmt.Sprintf("projects/%s/secrets/%s/versions/%s", project, secret, version), nil
}

func (r *Resolver) record(ctx context.Context, start time.Time, err error) {
	if r.latency == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.latency.Record(ctx, float64(time.Since(start).Microseconds())/1000,
		metric.WithAttributes(attribute.String("outcome", outcome)))
}
