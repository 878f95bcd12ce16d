package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"clynto/backend/internal/api"
	"clynto/backend/internal/auth"
	"clynto/backend/internal/mcp"
	"clynto/backend/internal/metrics"
	"clynto/backend/internal/repository"
	"clynto/backend/internal/retry"
	"clynto/backend/internal/seed"
	"clynto/backend/internal/services"
	"clynto/backend/internal/tls"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func init() {
	serveCmd.Flags().Int("port", 8080, "HTTP port")
	serveCmd.Flags().Bool("tls", false, "serve HTTPS on the TLS port")
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("tls.enable", serveCmd.Flags().Lookup("tls"))
}

// openStore connects the configured storage driver, migrating Postgres when
// auto_migrate is set.
func openStore(ctx context.Context) (repository.Repository, error) {
	switch cfg.Storage.Driver {
	case "memory":
		logger.Warn("using in-memory storage, data is lost on restart")
		return repository.NewMemoryStore(), nil
	case "postgres", "":
		pool, err := repository.Connect(ctx, cfg.DSN(), cfg.DB.MaxConns)
		if err != nil {
			return nil, err
		}
		if cfg.Storage.AutoMigrate {
			if err := repository.Migrate(ctx, pool); err != nil {
				pool.Close()
				return nil, err
			}
		}
		logger.Info("database connected", "host", cfg.DB.Host, "name", cfg.DB.Name)
		return repository.NewPostgresStore(pool), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func serve(ctx context.Context) error {
	if cfg.Auth.SwaggerClientID != "" && cfg.Auth.SwaggerClientID == cfg.Auth.ClientID {
		logger.Warn("swagger client id matches the backend client id; PKCE login from /docs will fail if the backend app requires a secret")
	}

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	policy := retry.Policy{
		MaxAttempts:     cfg.Retry.MaxAttempts,
		InitialInterval: cfg.Retry.InitialInterval,
		MaxInterval:     cfg.Retry.MaxInterval,
	}

	playbooks := services.NewPlaybookService(store, logger, policy)
	if cfg.Storage.SeedTemplates {
		n, err := playbooks.SeedBuiltin(ctx)
		if err != nil {
			return fmt.Errorf("seed playbook templates: %w", err)
		}
		logger.Info("playbook templates ready", "added", n)
	}
	if cfg.Storage.Driver == "memory" && cfg.IsDev() {
		if _, err := seed.Run(ctx, store, logger, time.Now()); err != nil {
			return fmt.Errorf("seed demo data: %w", err)
		}
	}

	var validator services.IntegrationValidator = services.LocalValidator{}
	if cfg.Integrations.ValidationURL != "" {
		validator = services.NewHTTPIntegrationValidator(cfg.Integrations.ValidationURL, cfg.Integrations.Timeout)
	}

	onboarding := services.NewOnboardingService(store, validator, logger, policy)
	if cfg.Integrations.Timeout > 0 {
		// A pending check outlives every attempt plus the backoff between them.
		onboarding.SetPendingTimeout(time.Duration(policy.MaxAttempts+1)*cfg.Integrations.Timeout + policy.MaxInterval*time.Duration(policy.MaxAttempts))
	}

	orchestrator := services.NewOrchestratorService(store, logger, policy)
	apiServer := &api.Server{
		Orchestrator: orchestrator,
		Playbooks:    playbooks,
		Canvas:       services.NewCanvasService(store, store, policy),
		Onboarding:   onboarding,
		Store:        store,
		Logger:       logger,
		Version:      version,
	}
	logger.Info("service layer initialized")

	authz, err := auth.New(ctx, cfg, store, logger)
	if err != nil {
		return fmt.Errorf("auth initialization failed: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = api.HTTPErrorHandler(logger)
	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())
	e.Use(otelecho.Middleware("clynto-backend"))
	e.Use(metrics.Middleware())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			args := []any{"method", v.Method, "uri", v.URI, "status", v.Status,
				"latency", v.Latency, "request_id", v.RequestID}
			if v.Error != nil {
				logger.Warn("request", append(args, "error", v.Error)...)
			} else {
				logger.Info("request", args...)
			}
			return nil
		},
	}))

	e.GET("/health", apiServer.HandleHealth)
	e.GET("/ready", apiServer.HandleReady)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	e.GET("/login", echo.WrapHandler(http.HandlerFunc(authz.LoginHandler)))
	e.GET("/auth/callback", echo.WrapHandler(http.HandlerFunc(authz.CallbackHandler)))
	e.GET("/logout", echo.WrapHandler(http.HandlerFunc(authz.LogoutHandler)))

	api.Docs{Issuer: cfg.Auth.OktaDomain, ClientID: cfg.Auth.SwaggerClientID, Scopes: auth.AllScopes}.Register(e)

	api.RegisterHandlers(e.Group("/api/v1", authz.Middleware()), apiServer)
	logger.Info("REST API handlers mounted")

	if cfg.MCP.Enable {
		mcpServer := mcp.NewServer(orchestrator, playbooks, logger, version)
		mcp.Mount(e.Group("/mcp", authz.Middleware()), mcpServer.GetMCPServer())
		logger.Info("MCP protocol handlers mounted")
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	if cfg.TLS.Enable {
		if cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "" {
			return errors.New("tls enabled but cert_file or key_file is not set")
		}
		if len(cfg.TLS.Hostnames) > 0 {
			written, err := tls.EnsureCertificate(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.Hostnames)
			if err != nil {
				return fmt.Errorf("self-signed certificate: %w", err)
			}
			if written {
				logger.Info("generated self-signed certificate", "cert", cfg.TLS.CertFile, "hosts", cfg.TLS.Hostnames)
			}
		}
		addr = fmt.Sprintf(":%d", cfg.Server.TLSPort)
	}

	server := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server starting", "address", addr, "tls", cfg.TLS.Enable, "version", version)
		if cfg.TLS.Enable {
			serverErrors <- server.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		} else {
			serverErrors <- server.ListenAndServe()
		}
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		if err := server.Close(); err != nil {
			logger.Error("server close error", "error", err)
		}
		return err
	}
	logger.Info("server stopped gracefully")
	return nil
}
