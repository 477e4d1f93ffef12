package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/kingrea/fieldstack/internal/tui"
	"github.com/spf13/cobra"
)

func newBrowseCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Browse installed modules in a terminal UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.config()
			if err != nil {
				return err
			}
			p := tea.NewProgram(
				tui.NewApp(cfg),
				tea.WithAltScreen(),
				tea.WithContext(cmd.Context()),
			)
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("run browser: %w", err)
			}
			return nil
		},
	}
}
