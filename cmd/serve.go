package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/theapemachine/toolgate/pkg/config"
	"github.com/theapemachine/toolgate/pkg/endpoint"
	"github.com/theapemachine/toolgate/pkg/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gateway",
	Long:  longServe,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		manager := endpoint.NewManagerWithRestartDelay(cfg.MCP.RestartDelay())

		if err := registerEndpoints(cmd.Context(), cfg, manager); err != nil {
			return err
		}

		gateway := service.NewGateway(cfg, manager)

		errCh := make(chan error, 1)
		go func() {
			errCh <- gateway.Start()
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return err
		case sig := <-quit:
			log.Info("shutting down", "signal", sig)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		manager.Shutdown(ctx)
		return gateway.Shutdown(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// registerEndpoints registers every configured endpoint with the manager,
// auto-starting the ones configured to come up with the gateway.
func registerEndpoints(ctx context.Context, cfg *config.Config, manager *endpoint.Manager) error {
	for _, ep := range cfg.Endpoints {
		switch ep.Type {
		case config.KindLocal:
			err := manager.RegisterLocal(ctx, ep.Name, ep.Path, endpoint.LocalSettings{
				Command: ep.Command,
				Args:    ep.Args,
				Env:     ep.Env,
			}, ep.Filter(), ep.ShouldAutoStart())
			if err != nil {
				return err
			}
		case config.KindRemote:
			if err := manager.RegisterRemote(ep.Name, ep.Path, endpoint.RemoteSettings{
				URL: ep.URL,
			}, ep.Filter()); err != nil {
				return err
			}
			if ep.ShouldAutoStart() {
				if err := manager.Start(ctx, ep.Name); err != nil {
					log.Error("failed to auto-start endpoint", "endpoint", ep.Name, "error", err)
				}
			}
		}
	}
	return nil
}

var longServe = `
Run the gateway with the endpoints declared in the config file.

Examples:
  # Run with the default config (~/.toolgate/config.yml)
  toolgate serve

  # Run with an alternative config file
  toolgate serve --config staging.yml
`
