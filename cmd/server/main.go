package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"n8n-mcp-bridge/internal/api"
	"n8n-mcp-bridge/internal/config"
	"n8n-mcp-bridge/internal/logging"
	"n8n-mcp-bridge/internal/mcp"
	"n8n-mcp-bridge/internal/registry"
	"n8n-mcp-bridge/internal/tls"
)

var (
	envFile  string
	modeFlag string
	portFlag int
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "n8n-mcp-bridge",
		Short:        "MCP server bridging AI agents to one or more n8n instances",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}
	rootCmd.Flags().StringVar(&envFile, "env", "", "Path to a .env file to load before reading the environment")
	rootCmd.Flags().StringVar(&modeFlag, "mode", "", "Transport mode: stdio or sse (overrides MCP_MODE)")
	rootCmd.Flags().IntVar(&portFlag, "port", 0, "Listen port in sse mode (overrides PORT)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the server version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s %s\n", mcp.ServerName, mcp.ServerVersion)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	logger := logging.NewLogger()

	cfg, v, err := config.Load(envFile)
	if err != nil {
		logger.Error("failed to load configuration: %v", err)
		return err
	}
	if modeFlag != "" {
		cfg.Mode = modeFlag
	}
	if portFlag != 0 {
		cfg.Port = portFlag
	}

	instances := registry.Load(v, logger)
	reg := registry.New(instances, logger)
	logger.Info("loaded %d n8n instance(s)", reg.Count())

	srv := mcp.NewServer(reg, logger)

	switch cfg.Mode {
	case config.ModeStdio:
		logger.Info("starting %s %s in stdio mode", mcp.ServerName, mcp.ServerVersion)
		if err := srv.ServeStdio(); err != nil {
			logger.Error("stdio server error: %v", err)
			return err
		}
		return nil
	case config.ModeSSE:
		return serveSSE(cfg, reg, srv, logger)
	default:
		return fmt.Errorf("invalid mode %q", cfg.Mode)
	}
}

func serveSSE(cfg *config.Config, reg *registry.Registry, srv *mcp.Server, logger *logging.Logger) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(otelecho.Middleware(mcp.ServerName))

	handler := api.NewHandler(reg)
	e.GET("/", handler.Root)
	e.GET("/health", handler.Health)

	manager := mcp.NewSessionManager(srv.NewMCPServer, logger)
	e.GET("/sse", manager.HandleSSE)
	e.POST("/messages", manager.HandleMessage)

	// WriteTimeout stays zero: SSE streams are open-ended.
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           e,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting %s %s in sse mode on %s (tls: %v)", mcp.ServerName, mcp.ServerVersion, server.Addr, cfg.TLS.Enable)
		if cfg.TLS.Enable {
			if cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "" {
				serverErrors <- fmt.Errorf("tls enabled but cert_file/key_file not configured")
				return
			}
			if _, err := os.Stat(cfg.TLS.CertFile); os.IsNotExist(err) && len(cfg.TLS.Hostnames) > 0 {
				if err := tls.GenerateSelfSignedCert(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.Hostnames); err != nil {
					logger.Error("failed to generate self-signed cert: %v", err)
				}
			}
			serverErrors <- server.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		} else {
			serverErrors <- server.ListenAndServe()
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error: %v", err)
			return err
		}
	case sig := <-shutdown:
		logger.Info("shutdown signal received: %v", sig)

		// Shutdown waits for open SSE streams, which never end on their
		// own; after the grace period the server is closed outright.
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				logger.Error("server close error: %v", err)
			}
		}
		logger.Info("server stopped")
	}
	return nil
}
