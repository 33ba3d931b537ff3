package main

import (
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/steveyegge/projectsync/internal/api"
	"github.com/steveyegge/projectsync/internal/devserver/loadtest"
	"github.com/steveyegge/projectsync/internal/realtime/channel"
	"github.com/steveyegge/projectsync/internal/realtime/core"
	"github.com/steveyegge/projectsync/internal/ui"
)

var loadtestCmd = &cobra.Command{
	Use:     "loadtest",
	GroupID: "server",
	Short:   "Check that many clients converge on one project",
	Long: `Seed a project on the configured backend, connect several clients to it,
create tasks from all of them at once and wait until every client has
every task. Prints mutation latency and time to convergence.

Example:
  projectsync serve &
  projectsync loadtest --clients 20 --mutations 5`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		clients, _ := cmd.Flags().GetInt("clients")
		mutations, _ := cmd.Flags().GetInt("mutations")
		seedTasks, _ := cmd.Flags().GetInt("tasks")
		subtaskPct, _ := cmd.Flags().GetFloat64("subtasks")

		tokens, err := cfg.Auth.TokenSource(logger)
		if err != nil {
			return err
		}
		if c, ok := tokens.(io.Closer); ok {
			defer c.Close()
		}
		newClient := func(clientID string) (*api.HTTPClient, error) {
			return api.NewHTTPClient(api.HTTPConfig{
				BaseURL:  cfg.Server.URL,
				Tokens:   tokens,
				Timeout:  cfg.Server.Timeout,
				ClientID: clientID,
				Logger:   logger,
			})
		}

		seeder, err := newClient("")
		if err != nil {
			return err
		}
		fmt.Printf("%s Seeding %d tasks...\n", ui.RenderAccent("→"), seedTasks)
		fixture, err := loadtest.Seed(cmd.Context(), seeder, seedTasks, subtaskPct)
		if err != nil {
			return err
		}

		backoff := cfg.Reconnect.Backoff()
		newCore := func(int) (*core.Core, error) {
			clientID := uuid.NewString()
			client, err := newClient(clientID)
			if err != nil {
				return nil, err
			}
			return core.New(core.Config{
				Client:        client,
				Transport:     &channel.WebSocketTransport{URL: cfg.ChannelURL()},
				Tokens:        tokens,
				Backoff:       &backoff,
				ClientID:      clientID,
				ReloadTimeout: cfg.Server.ReloadTimeout,
				Logger:        logger,
			})
		}

		fmt.Printf("%s Running %d clients x %d mutations on %s...\n", ui.RenderAccent("→"), clients, mutations, fixture.Project.ID)
		report, err := loadtest.Run(cmd.Context(), fixture.Project.ID, len(fixture.TaskIDs), newCore, loadtest.Options{
			Clients:            clients,
			MutationsPerClient: mutations,
		})
		if err != nil {
			return err
		}

		fmt.Printf("\n%s Converged\n\n", ui.RenderPass("✓"))
		report.Print(os.Stdout)
		return nil
	},
}

func init() {
	loadtestCmd.Flags().Int("clients", 10, "Number of concurrent clients")
	loadtestCmd.Flags().Int("mutations", 5, "Tasks created per client")
	loadtestCmd.Flags().Int("tasks", 100, "Tasks to seed")
	loadtestCmd.Flags().Float64("subtasks", 0.3, "Fraction of seeded tasks nested as subtasks")
	rootCmd.AddCommand(loadtestCmd)
}
