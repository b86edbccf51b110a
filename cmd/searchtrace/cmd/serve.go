package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/solatis/searchtrace/internal/core/api"
	"github.com/solatis/searchtrace/internal/core/auth"
	"github.com/solatis/searchtrace/internal/core/config"
	"github.com/solatis/searchtrace/internal/core/server"
	"github.com/solatis/searchtrace/internal/graph"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a local graph backend over gRPC",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "0.0.0.0", "gRPC server host")
	serveCmd.Flags().Int("port", 50061, "gRPC server port")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if cmd.Flags().Changed("host") {
		host, _ := cmd.Flags().GetString("host")
		cfg.Server.Host = host
	}
	if cmd.Flags().Changed("port") {
		port, _ := cmd.Flags().GetInt("port")
		cfg.Server.Port = port
	}
	if cfg.Trace.Backend == graph.BackendRemote {
		return fmt.Errorf("serve needs a local backend, got %q", cfg.Trace.Backend)
	}

	g, err := graph.Open(ctx, cfg.Trace.Backend, graph.Options{
		Location: cfg.Trace.DataDir,
		DBURL:    cfg.Trace.DBURL,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer g.Close()

	authenticator, err := newAuthenticator(logger)
	if err != nil {
		return err
	}

	service, err := api.NewGraphService(g, logger)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	grpcServer, err := server.NewGRPCServer(&cfg.Server, service, authenticator, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	logger.Info("starting searchtrace graph service",
		zap.String("version", Version),
		zap.String("backend", cfg.Trace.Backend),
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port))
	errChan := make(chan error, 1)
	go func() {
		errChan <- grpcServer.Start(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case <-sigChan:
		logger.Info("shutting down gracefully")
		return grpcServer.Shutdown(context.Background())
	}
}

// newAuthenticator builds the HMAC authenticator from the environment.
// Without configured secrets the service runs unauthenticated.
func newAuthenticator(logger *zap.Logger) (*auth.Authenticator, error) {
	secrets, err := config.HMACSecrets()
	if err != nil {
		return nil, fmt.Errorf("failed to load HMAC secrets: %w", err)
	}
	if len(secrets) == 0 {
		logger.Warn("no HMAC secrets configured, serving without authentication (set ST_HMAC_SECRET)")
		return nil, nil
	}
	return auth.NewAuthenticator(secrets, logger), nil
}
