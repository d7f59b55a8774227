package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultEnvFile            = ".env"
	defaultPort               = "8080"
	defaultReadTimeout        = 15 * time.Second
	defaultWriteTimeout       = 30 * time.Second
	defaultIdleTimeout        = 120 * time.Second
	defaultShutdownTimeout    = 10 * time.Second
	defaultNotificationsTopic = "catalog-notifications"
	defaultRequestLogDriver   = RequestLogDriverFirestore
	defaultMaxBodyChars       = 2000
	defaultMaxResponseChars   = 500
	defaultAPIKeyHeader       = "X-API-Key"
	defaultMetricsPath        = "/metrics"
	defaultSweepSchedule      = "@every 15m"
	defaultSweepWindowMinutes = 60
	defaultLogLevel           = "info"
	defaultEnvironment        = "local"
)

// Request log sinks.
const (
	RequestLogDriverFirestore = "firestore"
	RequestLogDriverPostgres  = "postgres"
	RequestLogDriverNone      = "none"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server        ServerConfig
	Firestore     FirestoreConfig
	PubSub        PubSubConfig
	RequestLog    RequestLogConfig
	Gateway       GatewayConfig
	Metrics       MetricsConfig
	Monitor       MonitorConfig
	Observability ObservabilityConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// PubSubConfig configures the notification fan-out topic.
type PubSubConfig struct {
	ProjectID          string
	NotificationsTopic string
	EmulatorHost       string
}

// RequestLogConfig selects the request log sink and truncation limits.
type RequestLogConfig struct {
	Driver           string
	PostgresDSN      string
	MaxBodyChars     int
	MaxResponseChars int
}

// GatewayConfig controls the API key gateway surface.
type GatewayConfig struct {
	APIKeyHeader string
	PublicInfo   bool
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// MonitorConfig drives the periodic expiring-token sweep.
type MonitorConfig struct {
	SweepEnabled       bool
	SweepSchedule      string
	SweepWindowMinutes int
}

// ObservabilityConfig controls logging.
type ObservabilityConfig struct {
	LogLevel    string
	Environment string
}

// SecretResolver resolves references to external secrets (e.g. Secret Manager URIs).
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret resolves the secret using the wrapped function.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// SecretError describes failures while resolving a secret reference.
type SecretError struct {
	Ref string
	Err error
}

// Error implements the error interface.
func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

// Unwrap exposes the underlying error.
func (e *SecretError) Unwrap() error { return e.Err }

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
	secret       SecretResolver
}

// WithEnvFile overrides the .env file path used for local overrides. An empty path disables it.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map that takes precedence over the system environment.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// WithSecretResolver sets the resolver used for sm:// and secret:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

// Load assembles the configuration from defaults, the .env file, the environment and
// optional Secret Manager lookups. Precedence: env map > process env > .env.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if value, ok := options.envMap[key]; ok {
			return value, true
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		value, ok := dotEnvValues[key]
		return value, ok
	}

	cfg := Config{
		Server: ServerConfig{
			Port:            stringWithDefault(lookup, "API_SERVER_PORT", stringWithDefault(lookup, "PORT", defaultPort)),
			ReadTimeout:     durationWithDefault(lookup, "API_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:    durationWithDefault(lookup, "API_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:     durationWithDefault(lookup, "API_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			ShutdownTimeout: durationWithDefault(lookup, "API_SERVER_SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
		},
		Firestore: FirestoreConfig{
			ProjectID:    stringWithDefault(lookup, "API_FIRESTORE_PROJECT_ID", stringWithDefault(lookup, "GOOGLE_CLOUD_PROJECT", "")),
			EmulatorHost: stringWithDefault(lookup, "API_FIRESTORE_EMULATOR_HOST", ""),
		},
		PubSub: PubSubConfig{
			ProjectID:          stringWithDefault(lookup, "API_PUBSUB_PROJECT_ID", ""),
			NotificationsTopic: stringWithDefault(lookup, "API_PUBSUB_NOTIFICATIONS_TOPIC", defaultNotificationsTopic),
			EmulatorHost:       stringWithDefault(lookup, "API_PUBSUB_EMULATOR_HOST", ""),
		},
		RequestLog: RequestLogConfig{
			Driver:           strings.ToLower(stringWithDefault(lookup, "API_REQUESTLOG_DRIVER", defaultRequestLogDriver)),
			PostgresDSN:      stringWithDefault(lookup, "API_REQUESTLOG_POSTGRES_DSN", ""),
			MaxBodyChars:     intWithDefault(lookup, "API_REQUESTLOG_MAX_BODY_CHARS", defaultMaxBodyChars),
			MaxResponseChars: intWithDefault(lookup, "API_REQUESTLOG_MAX_RESPONSE_CHARS", defaultMaxResponseChars),
		},
		Gateway: GatewayConfig{
			APIKeyHeader: stringWithDefault(lookup, "API_GATEWAY_KEY_HEADER", defaultAPIKeyHeader),
			PublicInfo:   boolWithDefault(lookup, "API_GATEWAY_PUBLIC_INFO", true),
		},
		Metrics: MetricsConfig{
			Enabled: boolWithDefault(lookup, "API_METRICS_ENABLED", true),
			Path:    stringWithDefault(lookup, "API_METRICS_PATH", defaultMetricsPath),
		},
		Monitor: MonitorConfig{
			SweepEnabled:       boolWithDefault(lookup, "API_MONITOR_SWEEP_ENABLED", false),
			SweepSchedule:      stringWithDefault(lookup, "API_MONITOR_SWEEP_CRON", defaultSweepSchedule),
			SweepWindowMinutes: intWithDefault(lookup, "API_MONITOR_SWEEP_WINDOW_MINUTES", defaultSweepWindowMinutes),
		},
		Observability: ObservabilityConfig{
			LogLevel:    strings.ToLower(stringWithDefault(lookup, "API_LOG_LEVEL", stringWithDefault(lookup, "LOG_LEVEL", defaultLogLevel))),
			Environment: strings.ToLower(stringWithDefault(lookup, "API_ENVIRONMENT", defaultEnvironment)),
		},
	}

	// Pub/Sub lives in the same project unless told otherwise.
	if cfg.PubSub.ProjectID == "" {
		cfg.PubSub.ProjectID = cfg.Firestore.ProjectID
	}

	dsn, err := resolveSecret(ctx, cfg.RequestLog.PostgresDSN, options.secret)
	if err != nil {
		return Config{}, err
	}
	cfg.RequestLog.PostgresDSN = dsn

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	if value == "" || !isSecretReference(value) {
		return value, nil
	}
	normalized := normalizeSecretReference(value)
	if resolver == nil {
		return "", &SecretError{Ref: normalized, Err: errSecretResolverNotConfigured}
	}
	secret, err := resolver.ResolveSecret(ctx, normalized)
	if err != nil {
		return "", &SecretError{Ref: normalized, Err: err}
	}
	return strings.TrimSpace(secret), nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	if cfg.Firestore.ProjectID == "" {
		missing = append(missing, "Firestore.ProjectID")
	}
	switch cfg.RequestLog.Driver {
	case RequestLogDriverFirestore, RequestLogDriverNone:
	case RequestLogDriverPostgres:
		if cfg.RequestLog.PostgresDSN == "" {
			missing = append(missing, "RequestLog.PostgresDSN")
		}
	default:
		missing = append(missing, "RequestLog.Driver")
	}
	if cfg.RequestLog.MaxBodyChars <= 0 {
		missing = append(missing, "RequestLog.MaxBodyChars")
	}
	if cfg.RequestLog.MaxResponseChars <= 0 {
		missing = append(missing, "RequestLog.MaxResponseChars")
	}
	if strings.TrimSpace(cfg.Gateway.APIKeyHeader) == "" {
		missing = append(missing, "Gateway.APIKeyHeader")
	}
	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		missing = append(missing, "Metrics.Path")
	}
	if cfg.Monitor.SweepEnabled {
		if strings.TrimSpace(cfg.Monitor.SweepSchedule) == "" {
			missing = append(missing, "Monitor.SweepSchedule")
		}
		if cfg.Monitor.SweepWindowMinutes <= 0 {
			missing = append(missing, "Monitor.SweepWindowMinutes")
		}
		if cfg.PubSub.NotificationsTopic == "" {
			missing = append(missing, "PubSub.NotificationsTopic")
		}
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func isSecretReference(value string) bool {
	trimmed := strings.TrimSpace(value)
	return strings.HasPrefix(trimmed, "secret://") || strings.HasPrefix(trimmed, "sm://")
}

func normalizeSecretReference(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "sm://") {
		return "secret://" + strings.TrimPrefix(trimmed, "sm://")
	}
	return trimmed
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}
	values, err := godotenv.Read(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}
