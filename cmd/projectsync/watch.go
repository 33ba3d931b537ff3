package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/steveyegge/projectsync/internal/realtime/channel"
	"github.com/steveyegge/projectsync/internal/realtime/core"
	"github.com/steveyegge/projectsync/internal/realtime/notify"
	"github.com/steveyegge/projectsync/internal/realtime/store"
	"github.com/steveyegge/projectsync/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:     "watch <project-id>",
	GroupID: "client",
	Short:   "Follow a project live",
	Long: `Select a project, open its notification channel and print changes as
they arrive: task and member reloads, dashboard totals, presence and
connection state.

Press Ctrl+C to stop.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		return withProject(ctx, args[0], func(c *core.Core) error {
			printSummary(c)

			unsubscribe := c.Store().Subscribe(func(change store.Change) {
				printChange(c, change)
			})
			defer unsubscribe()

			stopNotes := c.Notifications().Subscribe(printNotification)
			defer stopNotes()

			c.Connection().OnStateChange(func(s channel.State) {
				fmt.Printf("%s channel %s\n", ui.RenderMuted("·"), renderState(s))
			})

			fmt.Println(ui.RenderMuted("\nWatching for changes. Press Ctrl+C to stop..."))
			<-ctx.Done()
			fmt.Println("\nStopping...")
			return nil
		})
	},
}

func printSummary(c *core.Core) {
	p, ok := c.Store().Project()
	if !ok {
		return
	}
	fmt.Printf("%s %s %s\n", ui.RenderAccent("▶"), ui.RenderBold(p.Title), ui.RenderMuted("("+p.ID+")"))
	if d, ok := c.Store().Dashboard(); ok {
		fmt.Printf("  %d tasks, %d done, %d overdue, %d members\n",
			d.TotalTasks, d.CompletedTasks, d.OverdueTasks, d.MemberCount)
	}
}

func printChange(c *core.Core, change store.Change) {
	s := c.Store()
	switch change {
	case store.ChangeTasks:
		fmt.Printf("%s tasks reloaded (%d)\n", ui.RenderAccent("↻"), len(s.Tasks()))
	case store.ChangeMembers:
		fmt.Printf("%s members reloaded (%d)\n", ui.RenderAccent("↻"), len(s.Members()))
	case store.ChangeDashboard:
		if d, ok := s.Dashboard(); ok {
			fmt.Printf("%s dashboard: %d/%d done\n", ui.RenderAccent("↻"), d.CompletedTasks, d.TotalTasks)
		}
	case store.ChangeProject:
		if p, ok := s.Project(); ok {
			fmt.Printf("%s project is now %q (%s)\n", ui.RenderAccent("↻"), p.Title, p.Status)
		}
	case store.ChangeError:
		if err := s.Err(); err != nil {
			fmt.Printf("%s %v\n", ui.RenderFail("✗"), err)
		}
	}
}

func printNotification(n notify.Notification) {
	var icon string
	switch n.Kind {
	case notify.KindSuccess:
		icon = ui.RenderPass("✓")
	case notify.KindError:
		icon = ui.RenderFail("✗")
	case notify.KindWarning:
		icon = ui.RenderWarn("⚠")
	default:
		icon = ui.RenderAccent("ℹ")
	}
	fmt.Printf("%s %s\n", icon, n.Message)
}

func renderState(s channel.State) string {
	switch s {
	case channel.Connected:
		return ui.RenderPass(s.String())
	case channel.Failed:
		return ui.RenderFail(s.String())
	case channel.Reconnecting:
		return ui.RenderWarn(s.String())
	default:
		return ui.RenderMuted(s.String())
	}
}

var projectsCmd = &cobra.Command{
	Use:     "projects",
	GroupID: "client",
	Short:   "List projects",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, closeCore, err := openCore()
		if err != nil {
			return err
		}
		defer closeCore()

		if err := c.LoadProjects(cmd.Context()); err != nil {
			return err
		}
		projects := c.Store().Projects()
		if len(projects) == 0 {
			fmt.Println(ui.RenderMuted("No projects"))
			return nil
		}
		for _, p := range projects {
			fmt.Printf("%-10s %-12s %-8s %s\n", p.ID, p.Status, ui.RenderPriority(p.Priority), p.Title)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(projectsCmd)
}
