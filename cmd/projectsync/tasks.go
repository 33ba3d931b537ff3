package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/steveyegge/projectsync/internal/model"
	"github.com/steveyegge/projectsync/internal/realtime/core"
	"github.com/steveyegge/projectsync/internal/ui"
)

var tasksCmd = &cobra.Command{
	Use:     "tasks <project-id>",
	GroupID: "client",
	Short:   "List a project's tasks",
	Long: `List tasks as a tree of subtasks, optionally filtered.

The --due filter accepts overdue, today, week, or a date such as
"2026-03-01" or "next friday" (tasks due on or before it).

Examples:
  projectsync tasks p1 --status in_progress
  projectsync tasks p1 --assignee alice --due "next friday"
  projectsync tasks p1 --search login --flat`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := model.DefaultTaskFilter()
		filter.Status, _ = cmd.Flags().GetString("status")
		filter.Priority, _ = cmd.Flags().GetString("priority")
		filter.Assignee, _ = cmd.Flags().GetString("assignee")
		filter.DueDate, _ = cmd.Flags().GetString("due")
		filter.Search, _ = cmd.Flags().GetString("search")
		flat, _ := cmd.Flags().GetBool("flat")

		return withProject(cmd.Context(), args[0], func(c *core.Core) error {
			if err := c.SetFilter(filter); err != nil {
				return err
			}
			tasks := c.Store().FilteredTasks()
			if len(tasks) == 0 {
				fmt.Println(ui.RenderMuted("No matching tasks"))
				return nil
			}
			if flat {
				for i := range tasks {
					printTask(os.Stdout, &tasks[i], 0)
				}
				return nil
			}
			printForest(os.Stdout, model.BuildForest(tasks), 0)
			return nil
		})
	},
}

var taskCmd = &cobra.Command{
	Use:     "task",
	GroupID: "client",
	Short:   "Create and change tasks",
}

var taskCreateCmd = &cobra.Command{
	Use:   "create <project-id> <title>",
	Short: "Create a task or subtask",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := model.TaskInput{Title: args[1], Status: model.StatusTodo}
		in.Description, _ = cmd.Flags().GetString("description")
		in.Priority, _ = cmd.Flags().GetString("priority")
		in.ParentID, _ = cmd.Flags().GetString("parent")
		in.Assignees, _ = cmd.Flags().GetStringSlice("assign")

		if due, _ := cmd.Flags().GetString("due"); due != "" {
			t, err := model.ParseDueDate(due, time.Now())
			if err != nil {
				return err
			}
			in.DueDate = &t
		}

		return withProject(cmd.Context(), args[0], func(c *core.Core) error {
			task, err := c.Mutations().CreateTask(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Printf("%s Created %s %s\n", ui.RenderPass("✓"), task.ID, task.Title)
			return nil
		})
	},
}

var taskStatusCmd = &cobra.Command{
	Use:   "status <project-id> <task-id> <status>",
	Short: "Change a task's status (todo, in_progress, review, done)",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withProject(cmd.Context(), args[0], func(c *core.Core) error {
			task, err := c.Mutations().SetTaskStatus(cmd.Context(), args[1], args[2])
			if err != nil {
				return err
			}
			fmt.Printf("%s %s is now %s\n", ui.RenderPass("✓"), task.Title, ui.RenderStatus(task.Status))
			return nil
		})
	},
}

var taskGenerateCmd = &cobra.Command{
	Use:   "generate <project-id> <description>",
	Short: "Propose tasks from a description",
	Long: `Ask the backend to propose tasks for a free-text description. With
--commit every suggestion is created; otherwise they are only printed.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		commit, _ := cmd.Flags().GetBool("commit")

		return withProject(cmd.Context(), args[0], func(c *core.Core) error {
			suggestions, err := c.Mutations().GenerateTasks(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			for _, s := range suggestions {
				fmt.Printf("  %s %s %s\n", ui.RenderMuted("-"), s.Title, ui.RenderPriority(s.Priority))
			}
			if !commit || len(suggestions) == 0 {
				return nil
			}
			created, err := c.Mutations().CommitGeneratedTasks(cmd.Context(), suggestions)
			if err != nil {
				return err
			}
			fmt.Printf("%s Created %d tasks\n", ui.RenderPass("✓"), len(created))
			return nil
		})
	},
}

func printForest(w io.Writer, nodes []*model.TaskNode, depth int) {
	for _, n := range nodes {
		printTask(w, &n.Task, depth)
		printForest(w, n.Children, depth+1)
	}
}

func printTask(w io.Writer, t *model.Task, depth int) {
	line := fmt.Sprintf("%s%s %-11s %-6s %s", strings.Repeat("  ", depth),
		ui.RenderMuted(t.ID), ui.RenderStatus(t.Status), ui.RenderPriority(t.Priority), t.Title)
	if len(t.Assignees) > 0 {
		line += ui.RenderMuted(" @" + strings.Join(t.Assignees, " @"))
	}
	if t.DueDate != nil {
		line += ui.RenderMuted(" due " + t.DueDate.Format("2006-01-02"))
	}
	fmt.Fprintln(w, line)
}

func init() {
	tasksCmd.Flags().String("status", model.FilterAll, "Filter by status")
	tasksCmd.Flags().String("priority", model.FilterAll, "Filter by priority")
	tasksCmd.Flags().String("assignee", model.FilterAll, "Filter by assignee user id")
	tasksCmd.Flags().String("due", model.FilterAll, "Filter by due date (overdue, today, week, or a date)")
	tasksCmd.Flags().String("search", "", "Case-insensitive text search")
	tasksCmd.Flags().Bool("flat", false, "List without nesting subtasks")

	taskCreateCmd.Flags().StringP("description", "d", "", "Task description")
	taskCreateCmd.Flags().StringP("priority", "p", model.PriorityMedium, "Priority (low, medium, high, urgent)")
	taskCreateCmd.Flags().String("parent", "", "Parent task id for a subtask")
	taskCreateCmd.Flags().StringSlice("assign", nil, "Assignee user ids")
	taskCreateCmd.Flags().String("due", "", "Due date, e.g. 2026-03-01 or \"next friday\"")

	taskGenerateCmd.Flags().Bool("commit", false, "Create every suggestion")

	taskCmd.AddCommand(taskCreateCmd, taskStatusCmd, taskGenerateCmd)
	rootCmd.AddCommand(tasksCmd, taskCmd)
}
