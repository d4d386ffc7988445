package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/pkg/dependencies"
	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/project"
	"github.com/Ramsey-B/fern/pkg/routes/graph"
	"github.com/Ramsey-B/fern/pkg/routes/health"
	"github.com/Ramsey-B/fern/pkg/startup"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(opts *rootOptions) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the canvas API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.config()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides PORT)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, logger ectologger.Logger) error {
	svc := project.NewFromConfig(cfg, logger)
	checker := health.NewChecker(cfg.ManifestPath(), cfg.DataModelFile(), cfg.Version)
	e, err := newServer(cfg, svc, checker, logger)
	if err != nil {
		return err
	}

	var provider *sdktrace.TracerProvider
	deps := startup.New(logger, cfg.StartupMaxAttempts)
	deps.Add(startup.Func{
		Name: "tracing",
		StartFunc: func(ctx context.Context) error {
			if !cfg.TracingEnabled {
				return nil
			}
			tp, err := tracing.NewProvider(ctx, tracing.ProviderConfig{
				ServiceName: cfg.AppName,
				Endpoint:    cfg.OTLPEndpoint,
				Protocol:    cfg.OTLPProtocol,
				Insecure:    cfg.OTLPInsecure,
				Timeout:     5 * time.Second,
			})
			provider = tp
			return err
		},
		StopFunc: func(ctx context.Context) error {
			if provider == nil {
				return nil
			}
			return provider.Shutdown(ctx)
		},
	})
	deps.Add(startup.Func{
		Name:     "project",
		Requires: []string{"tracing"},
		StartFunc: func(ctx context.Context) error {
			// a malformed data model should fail fast instead of on the first request
			g, err := svc.LoadGraph(ctx)
			if err != nil {
				return err
			}
			logger.WithContext(ctx).WithFields(map[string]any{
				"project_dir":        cfg.DbtProjectDir,
				"project_configured": g.ProjectConfigured,
				"entities":           len(g.Entities),
				"warnings":           len(g.Warnings),
			}).Info("Loaded data model")
			return nil
		},
	})
	deps.Add(startup.Func{
		Name:     "http",
		Requires: []string{"project"},
		StartFunc: func(context.Context) error {
			go func() {
				addr := fmt.Sprintf(":%d", cfg.Port)
				logger.WithField("addr", addr).Info("Starting HTTP server")
				if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.WithError(err).Error("HTTP server stopped")
				}
			}()
			checker.SetReady(true)
			return nil
		},
		StopFunc: func(ctx context.Context) error {
			checker.SetReady(false)
			return e.Shutdown(ctx)
		},
	})

	if err := deps.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return deps.Stop(shutdownCtx)
}

func newServer(cfg *config.Config, svc *project.Service, checker *health.Checker, logger ectologger.Logger) (*echo.Echo, error) {
	containerID, err := dependencies.NewContainer(svc, logger)
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(logger)

	e.Server.ReadTimeout = time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second
	e.Server.WriteTimeout = time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second
	e.Server.IdleTimeout = time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second
	e.Server.MaxHeaderBytes = cfg.MaxHeaderBytes

	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{AllowOrigins: cfg.AllowOrigins}))
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context(cfg.DbtProjectDir, containerID))
	e.Use(middleware.Logger(logger))

	checker.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	graph.NewHandler(nil).Register(e.Group("/api/v1"))
	return e, nil
}
