package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"golang.org/x/sync/errgroup"

	"tellcocli/internal/analysis"
	"tellcocli/internal/config"
	apierrors "tellcocli/internal/errors"
	"tellcocli/internal/exporter"
	"tellcocli/internal/files"
	"tellcocli/internal/infrastructure"
	customMiddleware "tellcocli/internal/middleware"
	"tellcocli/internal/services"
	"tellcocli/internal/store"
	handlers "tellcocli/internal/transport/http"
	"tellcocli/pkg/contracts"
)

// AppName is reported in startup logs
const AppName = "TellCo Usage EDA"

// Options overrides parts of the application wiring
type Options struct {
	// Logger replaces the configured logger
	Logger *slog.Logger
	// OTel replaces the default OpenTelemetry configuration
	OTel *infrastructure.OTelConfig
}

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Paths         *config.Paths
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.BusinessMetrics
	History       *store.Store // nil when run history is disabled
	Analyzer      *analysis.Analyzer
	UsageService  *services.UsageService
	HealthService *services.HealthService
	ErrorHandler  *apierrors.ErrorHandler
	Router        *chi.Mux
	Server        *http.Server

	stopOnce sync.Once
	stopErr  error
}

// NewApplication wires the application. A nil cfg loads the configuration
// from the config file and environment.
func NewApplication(ctx context.Context, cfg *config.Config, opts Options) (*Application, error) {
	if cfg == nil {
		loaded, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		cfg = loaded
	}

	paths, err := cfg.Paths.Resolve()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}

	// Relative log files live in the logs directory
	if cfg.Logging.FilePath != "" && !filepath.IsAbs(cfg.Logging.FilePath) {
		cfg.Logging.FilePath = paths.GetLogPath(filepath.Base(cfg.Logging.FilePath))
	}

	logger := opts.Logger
	if logger == nil {
		l, err := infrastructure.InitializeLogger(cfg.Logging)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = l
	}

	logger.InfoContext(ctx, "Application starting",
		slog.String("name", AppName),
		slog.String("version", contracts.GetFullVersionString()))

	paths.LogPathResolution(logger)

	providers, err := infrastructure.InitializeOTel(opts.OTel, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	metrics, err := infrastructure.CreateBusinessMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}

	a := &Application{
		Config:        cfg,
		Paths:         paths,
		Logger:        logger,
		OTelProviders: providers,
		Metrics:       metrics,
		ErrorHandler:  apierrors.NewErrorHandler(logger, false),
	}

	if err := a.initializeServices(ctx); err != nil {
		_ = a.shutdownComponents(ctx)
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	a.setupRouter()
	a.createServer()
	return a, nil
}

// initializeServices opens the run history and builds the analyzer and
// services on top of it
func (a *Application) initializeServices(ctx context.Context) error {
	var history services.RunHistory
	var pinger services.Pinger
	analyzerOpts := []analysis.Option{
		analysis.WithLogger(a.Logger),
		analysis.WithTracer(a.OTelProviders.Tracer),
		analysis.WithMetrics(a.Metrics),
	}

	if a.Paths.HistoryDB != "" {
		st, err := store.Open(ctx, a.Paths.HistoryDB, store.Options{
			Retention: config.MaxRunHistory,
			Logger:    a.Logger,
		})
		if err != nil {
			return apierrors.NewStorageError("failed to open run history", err).
				WithContext("path", a.Paths.HistoryDB)
		}
		a.History = st
		history, pinger = st, st
		analyzerOpts = append(analyzerOpts, analysis.WithRecorder(st))
	} else {
		a.Logger.InfoContext(ctx, "Run history disabled")
	}

	opts, err := analysis.OptionsFromConfig(a.Config.Analysis)
	if err != nil {
		return apierrors.NewConfigError("invalid analysis configuration", err).
			WithContext("schema_file", a.Config.Analysis.SchemaFile)
	}
	analyzer, err := analysis.New(opts, analyzerOpts...)
	if err != nil {
		return err
	}
	a.Analyzer = analyzer

	a.UsageService = services.NewUsageService(services.UsageServiceConfig{
		Analyzer:    analyzer,
		Discovery:   files.NewDiscovery(a.Paths.DataDir, a.Logger),
		Manager:     files.NewManager(a.Paths.DataDir, a.Logger),
		Exporter:    exporter.New(a.Paths, a.Logger),
		History:     history,
		MaxFileSize: a.Config.Analysis.MaxFileSize,
		Logger:      a.Logger,
	})
	a.HealthService = services.NewHealthService(a.Paths.DataDir, pinger, a.Logger)
	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()
	r.NotFound(a.ErrorHandler.NotFound)
	r.MethodNotAllowed(a.ErrorHandler.MethodNotAllowed)

	// RequestID → RealIP → OTel → Logger → Recovery → headers → CORS → rate limit
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.OTelProviders, a.Metrics)
	if err != nil {
		a.Logger.Error("Failed to create OpenTelemetry middleware", slog.String("error", err.Error()))
	} else {
		r.Use(otelMiddleware.Handler)
	}

	r.Use(customMiddleware.StructuredLogger(a.Logger))
	r.Use(apierrors.RecoveryMiddleware(a.ErrorHandler))
	r.Use(customMiddleware.SecurityHeaders)

	if a.Config.Security.EnableCORS {
		r.Use(customMiddleware.CORS(customMiddleware.CORSConfig{
			AllowedOrigins: a.Config.Security.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID", "X-Requested-With"},
			ExposedHeaders: []string{"X-Request-ID", "X-Run-ID", "Content-Disposition"},
			MaxAge:         300,
			Logger:         a.Logger,
		}))
	}

	if rl := a.Config.Security.RateLimit; rl.Enabled {
		r.Use(customMiddleware.NewRateLimiter(rl.RPS, rl.Burst, a.Logger, a.ErrorHandler).Handler)
	}

	r.Handle(config.MetricsEndpoint, handlers.NewMetricsHandler(a.OTelProviders.PrometheusHTTP))
	a.setupAPIRoutes(r)

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	validator := customMiddleware.NewQueryParamValidator(a.Logger, a.ErrorHandler)

	healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)
	datasetHandler := handlers.NewDatasetHandler(a.UsageService, validator, a.ErrorHandler, a.Config.Analysis.MaxFileSize, a.Logger)
	runsHandler := handlers.NewRunsHandler(a.UsageService, validator, a.ErrorHandler, a.Logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Mount("/health", healthHandler.Routes())
		r.Get("/version", healthHandler.Version)

		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout, a.Logger))
			r.Use(customMiddleware.Compress(5))

			r.Mount("/datasets", datasetHandler.Routes())
			r.Mount("/runs", runsHandler.Routes())
		})
	})
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Run serves HTTP until ctx is cancelled or SIGINT/SIGTERM arrives, then
// shuts down gracefully
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfoContext(gctx, "HTTP server listening",
			slog.String("address", a.Server.Addr),
			slog.String("data_dir", a.Paths.DataDir),
			slog.Bool("history", a.History != nil))
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return a.Stop(context.WithoutCancel(gctx))
	})

	return g.Wait()
}

// Stop shuts down the server, flushes telemetry and closes the run
// history. It is safe to call more than once.
func (a *Application) Stop(ctx context.Context) error {
	a.stopOnce.Do(func() {
		a.Logger.InfoContext(ctx, "Shutting down application")

		shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
		}
		if err := a.shutdownComponents(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		a.stopErr = errors.Join(errs...)

		a.Logger.InfoContext(ctx, "Application stopped")
	})
	return a.stopErr
}

func (a *Application) shutdownComponents(ctx context.Context) error {
	var errs []error
	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.History != nil {
		if err := a.History.Close(); err != nil {
			errs = append(errs, fmt.Errorf("run history close: %w", err))
		}
	}
	return errors.Join(errs...)
}
