package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/catalogsync/api/internal/domain"
	"github.com/catalogsync/api/internal/platform/auth"
	"github.com/catalogsync/api/internal/platform/httpx"
	"github.com/catalogsync/api/internal/platform/metrics"
	"github.com/catalogsync/api/internal/platform/observability"
	"github.com/catalogsync/api/internal/services"
)

// RouteRegistrar registers a set of routes against the provided router.
type RouteRegistrar func(r chi.Router)

type routerConfig struct {
	middlewares []func(http.Handler) http.Handler
	health      *HealthHandlers
	auth        *auth.Authenticator
	logger      *zap.Logger
	projectID   string
	publicInfo  bool

	requestLog    RequestLogOptions
	requestLogger services.RequestLogger

	metrics     *metrics.Registry
	metricsPath string

	products     RouteRegistrar
	listings     RouteRegistrar
	integrations RouteRegistrar
}

// Option customises the router configuration before construction.
type Option func(*routerConfig)

const (
	defaultMetricsPath = "/metrics"
	endpointNotFound   = "Endpoint não encontrado"
)

// NewRouter constructs the gateway router. Every request passes through the shared chain
// before reaching a resource group guarded by API key authentication.
func NewRouter(opts ...Option) chi.Router {
	cfg := routerConfig{
		metricsPath: defaultMetricsPath,
		publicInfo:  true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.health == nil {
		cfg.health = NewHealthHandlers()
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if cfg.requestLogger != nil {
		logOpts := cfg.requestLog
		logOpts.SkipPaths = append([]string{"/healthz", "/readyz", cfg.metricsPath}, logOpts.SkipPaths...)
		r.Use(RequestLogMiddleware(cfg.requestLogger, logOpts))
	}
	r.Use(observability.TraceMiddleware(cfg.projectID))
	r.Use(observability.InjectLoggerMiddleware(cfg.logger))
	r.Use(observability.RequestLoggerMiddleware())
	r.Use(observability.RecoveryMiddleware(cfg.logger))
	if cfg.metrics != nil {
		r.Use(cfg.metrics.Middleware())
	}
	r.Use(CORSMiddleware())
	for _, mw := range cfg.middlewares {
		if mw != nil {
			r.Use(mw)
		}
	}

	notFound := func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError(http.StatusNotFound, endpointNotFound))
	}
	// Set before any group is mounted so subrouters inherit them.
	r.NotFound(notFound)
	r.MethodNotAllowed(notFound)

	if cfg.publicInfo {
		r.Get("/", cfg.health.Info)
	}
	r.Get("/healthz", cfg.health.Healthz)
	r.Get("/readyz", cfg.health.Readyz)
	if cfg.metrics != nil {
		r.Method(http.MethodGet, cfg.metricsPath, cfg.metrics.Handler())
	}

	mount := func(path, function string, resource domain.Resource, registrar RouteRegistrar) {
		if registrar == nil {
			return
		}
		r.Route(path, func(group chi.Router) {
			group.Use(FunctionName(function))
			group.Use(cfg.guard(resource))
			registrar(group)
		})
	}
	mount("/products", FunctionProducts, domain.ResourceProducts, cfg.products)
	mount("/marketplace", FunctionMarketplaceProducts, domain.ResourceListings, cfg.listings)
	mount("/mercadolivre", FunctionExpiringTokens, domain.ResourceIntegrations, cfg.integrations)

	return r
}

// guard returns the authentication middleware for a resource. Without an authenticator
// every request to the group is refused.
func (cfg *routerConfig) guard(resource domain.Resource) func(http.Handler) http.Handler {
	if cfg.auth != nil {
		return cfg.auth.Require(resource)
	}
	return func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			httpx.WriteError(req.Context(), w, httpx.NewError(http.StatusServiceUnavailable, "Autenticação indisponível"))
		})
	}
}

// WithMiddlewares appends additional global middleware after CORS.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithHealthHandlers overrides the handlers used for the anonymous endpoints.
func WithHealthHandlers(h *HealthHandlers) Option {
	return func(cfg *routerConfig) {
		cfg.health = h
	}
}

// WithAuthenticator configures API key authentication for every resource group.
func WithAuthenticator(a *auth.Authenticator) Option {
	return func(cfg *routerConfig) {
		cfg.auth = a
	}
}

// WithRequestLogger enables the per-request log entry.
func WithRequestLogger(logger services.RequestLogger, opts RequestLogOptions) Option {
	return func(cfg *routerConfig) {
		cfg.requestLogger = logger
		cfg.requestLog = opts
	}
}

// WithLogger sets the base logger injected into request contexts.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *routerConfig) {
		cfg.logger = logger
	}
}

// WithTraceProject sets the GCP project used to format trace resource names.
func WithTraceProject(projectID string) Option {
	return func(cfg *routerConfig) {
		cfg.projectID = projectID
	}
}

// WithMetrics records request metrics and exposes them at path.
func WithMetrics(registry *metrics.Registry, path string) Option {
	return func(cfg *routerConfig) {
		cfg.metrics = registry
		if path != "" {
			cfg.metricsPath = path
		}
	}
}

// WithPublicInfo toggles the anonymous service description served at GET /.
func WithPublicInfo(enabled bool) Option {
	return func(cfg *routerConfig) {
		cfg.publicInfo = enabled
	}
}

// WithProductRoutes configures the registrar for /products.
func WithProductRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.products = reg
	}
}

// WithListingRoutes configures the registrar for /marketplace.
func WithListingRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.listings = reg
	}
}

// WithIntegrationRoutes configures the registrar for /mercadolivre.
func WithIntegrationRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.integrations = reg
	}
}
