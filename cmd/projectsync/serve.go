package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/steveyegge/projectsync/internal/devserver/db"
	"github.com/steveyegge/projectsync/internal/devserver/rest"
	"github.com/steveyegge/projectsync/internal/ui"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	GroupID: "server",
	Short:   "Run the reference backend",
	Long: `Start the reference backend: the REST API over a local SQLite database
and the per-project notification channel.

Endpoints:
  http://<addr>/api/...               REST API
  ws://<addr>/ws/projects/<id>        notification channel
  http://<addr>/health                health check

Without devserver.users in the config, any bearer token is accepted and
used as the caller's user id.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = cfg.DevServer.Addr
		}
		dbPath, _ := cmd.Flags().GetString("db")
		if dbPath == "" {
			dbPath = cfg.DevServer.DBPath
		}

		database, err := db.Open(dbPath)
		if err != nil {
			return err
		}
		defer database.Close()

		server, err := rest.New(database, &rest.Config{
			Addr:   addr,
			Tokens: cfg.DevServer.Tokens(),
			Logger: logger,
		})
		if err != nil {
			return err
		}
		if err := server.Start(); err != nil {
			return err
		}

		bound := server.Addr()
		fmt.Printf("%s Backend started on http://%s\n", ui.RenderPass("✓"), bound)
		fmt.Printf("  Channel endpoint: ws://%s/ws/projects/<id>\n", bound)
		fmt.Printf("  Database: %s\n", database.Path())
		fmt.Println(ui.RenderMuted("\nPress Ctrl+C to stop..."))

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		<-ctx.Done()

		fmt.Println("\nShutting down...")
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelShutdown()
		if err := server.Stop(shutdownCtx); err != nil {
			return err
		}
		fmt.Println("Backend stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (default: devserver.addr)")
	serveCmd.Flags().String("db", "", "SQLite database path (default: devserver.db_path)")
	rootCmd.AddCommand(serveCmd)
}
