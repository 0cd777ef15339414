package app

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/flowcraft/plugin-sources/internal/api"
	"github.com/flowcraft/plugin-sources/internal/app/storage"
	"github.com/flowcraft/plugin-sources/internal/config"
	"github.com/flowcraft/plugin-sources/internal/importer"
	"github.com/flowcraft/plugin-sources/internal/loader"
	"github.com/flowcraft/plugin-sources/internal/secrets"
	"github.com/flowcraft/plugin-sources/internal/service"
	"github.com/flowcraft/plugin-sources/internal/sources"
	"github.com/flowcraft/plugin-sources/internal/telemetry"
)

const (
	defaultHTTPAddress    = ":8080"
	defaultRequestTimeout = 5 * time.Minute
	defaultReadTimeout    = 10 * time.Second
	defaultWriteTimeout   = defaultRequestTimeout + 15*time.Second
	defaultIdleTimeout    = 60 * time.Second
)

// SourcesAppOptions is a function that configures the sources app builder
type SourcesAppOptions func(*sourcesAppConfig) error

type sourcesAppConfig struct {
	config     *config.Config
	configPath string

	// Optional component overrides
	storageFactory  storage.Factory
	registry        *sources.Registry
	cipher          secrets.Cipher
	importerOptions []importer.Option

	// HTTP server options
	address        string
	middlewares    []func(http.Handler) http.Handler
	requestTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration
	metricsHandler http.Handler

	// Telemetry components
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

func baseConfig(opts ...SourcesAppOptions) (*sourcesAppConfig, error) {
	cfg := &sourcesAppConfig{
		address:        defaultHTTPAddress,
		requestTimeout: defaultRequestTimeout,
		readTimeout:    defaultReadTimeout,
		writeTimeout:   defaultWriteTimeout,
		idleTimeout:    defaultIdleTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	return cfg, nil
}

// NewSourcesApp wires storage, loader, service and HTTP server from the given options
func NewSourcesApp(ctx context.Context, opts ...SourcesAppOptions) (*SourcesApp, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}

	if cfg.storageFactory == nil {
		cfg.storageFactory, err = storage.NewStorageFactory(ctx, cfg.config)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage factory: %w", err)
		}
	}

	cleanupNeeded := true
	defer func() {
		if cleanupNeeded {
			cfg.storageFactory.Cleanup()
		}
	}()

	l, err := buildLoader(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build loader: %w", err)
	}

	svc := service.New(cfg.storageFactory.Reader(), cfg.registry, l)
	httpServer := buildHTTPServer(cfg, svc)

	appCtx, cancel := context.WithCancel(ctx)
	cleanupNeeded = false

	return &SourcesApp{
		config:     cfg.config,
		configPath: cfg.configPath,
		components: &AppComponents{
			Storage:       cfg.storageFactory,
			Loader:        l,
			SourceService: svc,
		},
		httpServer: httpServer,
		ctx:        appCtx,
		cancelFunc: func() {
			cfg.storageFactory.Cleanup()
			cancel()
		},
	}, nil
}

// NewLoader builds a loader from the configuration and options without the HTTP server.
// Only configuration, registry, cipher, importer and telemetry options apply.
func NewLoader(opts ...SourcesAppOptions) (*loader.Loader, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}
	return buildLoader(cfg)
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) SourcesAppOptions {
	return func(cfg *sourcesAppConfig) error {
		cfg.config = c
		return nil
	}
}

// WithConfigPath enables reloading the sources when the configuration file changes
func WithConfigPath(path string) SourcesAppOptions {
	return func(cfg *sourcesAppConfig) error {
		cfg.configPath = path
		return nil
	}
}

// WithAddress sets the HTTP server address
func WithAddress(addr string) SourcesAppOptions {
	return func(cfg *sourcesAppConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return fmt.Errorf("address is not a valid host:port: %w", err)
		}
		if port == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		if host == "localhost" {
			host = "127.0.0.1"
		}
		if host == "" {
			host = "0.0.0.0"
		}

		if _, err := netip.ParseAddrPort(net.JoinHostPort(host, port)); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares sets custom HTTP middlewares
func WithMiddlewares(mw ...func(http.Handler) http.Handler) SourcesAppOptions {
	return func(cfg *sourcesAppConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithRequestTimeout bounds the duration of a request, loads included
func WithRequestTimeout(d time.Duration) SourcesAppOptions {
	return func(cfg *sourcesAppConfig) error {
		if d <= 0 {
			return fmt.Errorf("request timeout must be positive")
		}
		cfg.requestTimeout = d
		cfg.writeTimeout = d + 15*time.Second
		return nil
	}
}

// WithStorageFactory allows injecting a custom storage factory
func WithStorageFactory(f storage.Factory) SourcesAppOptions {
	return func(cfg *sourcesAppConfig) error {
		cfg.storageFactory = f
		return nil
	}
}

// WithRegistry replaces the default source type registry
func WithRegistry(r *sources.Registry) SourcesAppOptions {
	return func(cfg *sourcesAppConfig) error {
		cfg.registry = r
		return nil
	}
}

// WithCipher sets the cipher opening sealed secrets, instead of the configured key file
func WithCipher(c secrets.Cipher) SourcesAppOptions {
	return func(cfg *sourcesAppConfig) error {
		cfg.cipher = c
		return nil
	}
}

// WithImporterOptions appends importer options after the configured ones
func WithImporterOptions(opts ...importer.Option) SourcesAppOptions {
	return func(cfg *sourcesAppConfig) error {
		cfg.importerOptions = append(cfg.importerOptions, opts...)
		return nil
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider for loads and HTTP requests
func WithTracerProvider(tp trace.TracerProvider) SourcesAppOptions {
	return func(cfg *sourcesAppConfig) error {
		cfg.tracerProvider = tp
		return nil
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider for loader metrics
func WithMeterProvider(mp metric.MeterProvider) SourcesAppOptions {
	return func(cfg *sourcesAppConfig) error {
		cfg.meterProvider = mp
		return nil
	}
}

// WithMetricsHandler serves h on /metrics
func WithMetricsHandler(h http.Handler) SourcesAppOptions {
	return func(cfg *sourcesAppConfig) error {
		cfg.metricsHandler = h
		return nil
	}
}

func buildLoader(b *sourcesAppConfig) (*loader.Loader, error) {
	if b.registry == nil {
		b.registry = sources.DefaultRegistry()
	}

	if b.cipher == nil && b.config.Encryption != nil {
		c, err := secrets.NewCipherFromKeyFile(b.config.Encryption.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load encryption key: %w", err)
		}
		b.cipher = c
	}

	opts := []loader.Option{
		loader.WithConcurrency(b.config.GetConcurrency()),
		loader.WithTracerProvider(b.tracerProvider),
	}
	if b.meterProvider != nil {
		metrics, err := telemetry.NewLoaderMetrics(b.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create loader metrics: %w", err)
		}
		opts = append(opts, loader.WithMetrics(metrics))
		slog.Info("Loader metrics enabled")
	}

	settings := sources.SettingsFromConfig(b.config, b.cipher, b.importerOptions...)
	return loader.New(b.registry, settings, opts...), nil
}

func buildHTTPServer(b *sourcesAppConfig, svc service.SourceService) *http.Server {
	if b.middlewares == nil {
		b.middlewares = api.DefaultMiddlewares(b.requestTimeout)
	}
	// Tracing wraps the whole chain so that request ids and logs carry the span
	middlewares := append([]func(http.Handler) http.Handler{
		telemetry.TracingMiddleware(b.tracerProvider),
	}, b.middlewares...)

	serverOpts := []api.ServerOption{api.WithMiddlewares(middlewares...)}
	if b.metricsHandler != nil {
		serverOpts = append(serverOpts, api.WithMetricsHandler(b.metricsHandler))
	}
	router := api.NewServer(svc, serverOpts...)

	slog.Info("HTTP server configured", "address", b.address)
	return &http.Server{
		Addr:         b.address,
		Handler:      router,
		ReadTimeout:  b.readTimeout,
		WriteTimeout: b.writeTimeout,
		IdleTimeout:  b.idleTimeout,
	}
}
