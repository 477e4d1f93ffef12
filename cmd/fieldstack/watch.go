package main

import (
	"context"
	"strings"

	"github.com/kingrea/fieldstack/internal/api"
	"github.com/kingrea/fieldstack/internal/watch"
	"github.com/spf13/cobra"
)

func newWatchCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Reload and re-check modules whenever descriptors change",
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

			reload := func(ctx context.Context, changed []string) error {
				if len(changed) > 0 {
					logger.Info("reloading", "changed", strings.Join(changed, ","))
				}
				runtime, err := api.Bootstrap(ctx, cfg, logger)
				if err != nil {
					return err
				}
				logger.Info("modules ready", "count", len(runtime.Manifests), "issues", len(runtime.Issues))
				return nil
			}
			if err := reload(cmd.Context(), nil); err != nil {
				logger.Error("initial load", "err", err)
			}
			w, err := watch.New(watch.Config{
				Dir:      cfg.ModulesDir(),
				Logger:   logger,
				OnReload: reload,
			})
			if err != nil {
				return err
			}
			return w.Run(cmd.Context())
		},
	}
}
