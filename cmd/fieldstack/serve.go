package main

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/kingrea/fieldstack/internal/api"
	"github.com/kingrea/fieldstack/internal/config"
	"github.com/kingrea/fieldstack/internal/logging"
	"github.com/kingrea/fieldstack/internal/watch"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(flags *rootFlags) *cobra.Command {
	var (
		addr      string
		hotReload bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Mount every enabled module's API and serve the route manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.config()
			if err != nil {
				return err
			}
			logger, err := flags.logger(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer logger.Close()

			settings := api.ServerSettingsFromConfig(cfg)
			if addr != "" {
				host, port, err := net.SplitHostPort(addr)
				if err != nil {
					return err
				}
				settings.Host = host
				if settings.Port, err = strconv.Atoi(port); err != nil {
					return err
				}
			}

			ctx := cmd.Context()
			srv := api.NewServer(settings, logger)
			if err := loadModules(ctx, srv, cfg, logger); err != nil {
				return err
			}
			if hotReload {
				w, err := watch.New(watch.Config{
					Dir:    cfg.ModulesDir(),
					Logger: logger,
					OnReload: func(ctx context.Context, changed []string) error {
						return loadModules(ctx, srv, cfg, logger)
					},
				})
				if err != nil {
					return err
				}
				if err := w.Start(ctx); err != nil {
					return err
				}
				defer w.Stop()
			}
			if err := srv.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			logger.Info("shutting down")
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.host/server.port")
	cmd.Flags().BoolVar(&hotReload, "watch", false, "remount modules when descriptors change")
	return cmd
}

// loadModules bootstraps the module set and hands it to the server.
func loadModules(ctx context.Context, srv *api.Server, cfg *config.Config, logger *logging.Logger) error {
	runtime, err := api.Bootstrap(ctx, cfg, logger)
	if err != nil {
		return err
	}
	return srv.Load(runtime)
}
