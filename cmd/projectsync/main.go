// Command projectsync is a terminal client for the collaborative project
// manager. It keeps a live view of one project in sync over the
// notification channel and can run the reference backend locally.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/steveyegge/projectsync/internal/config"
	"github.com/steveyegge/projectsync/internal/logging"
	"github.com/steveyegge/projectsync/internal/ui"
)

var (
	configPath string
	verbose    bool
	noColor    bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "projectsync",
	Short: "Real-time client for collaborative project management",
	Long: `projectsync keeps a local view of a project (tasks, members, dashboard)
in sync with the backend. Changes made by other collaborators arrive over a
per-project notification channel and trigger targeted reloads.

Configuration is read from --config, ./.projectsync/config.yaml or
~/.projectsync/config.yaml, and PROJECTSYNC_* environment variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if noColor {
			ui.SetPlain(true)
		}

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		logger, err = logging.New(cfg.Log, verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: ./.projectsync/config.yaml, then ~/.projectsync/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddGroup(
		&cobra.Group{ID: "client", Title: "Client Commands:"},
		&cobra.Group{ID: "server", Title: "Server Commands:"},
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", ui.RenderFail("Error:"), err)
		os.Exit(1)
	}
}
