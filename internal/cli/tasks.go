package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/p-blackswan/tally/internal/matcher"
	"github.com/p-blackswan/tally/internal/models"
)

func newTasksCmd() *cobra.Command {
	var (
		workflow string
		status   string
		assignee string
		limit    int
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List tasks, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := models.TaskFilter{
				WorkflowType: workflow,
				Status:       models.Status(status),
				Assignee:     assignee,
				Limit:        limit,
			}
			if f.Status != "" && !f.Status.Valid() {
				return fmt.Errorf("unknown status %q", status)
			}
			tasks, err := appFrom(cmd).Store.ListTasks(cmd.Context(), f)
			if err != nil {
				return err
			}
			if asJSON {
				if tasks == nil {
					tasks = []models.Task{}
				}
				return writeJSON(cmd.OutOrStdout(), tasks)
			}
			return printTasks(cmd, tasks)
		},
	}
	cmd.Flags().StringVar(&workflow, "workflow", "", "Filter by workflow type")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status")
	cmd.Flags().StringVar(&assignee, "assignee", "", "Filter by assignee user id")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of tasks")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")

	cmd.AddCommand(newTasksSearchCmd())
	return cmd
}

func newTasksSearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <reference>",
		Short: "Rank tasks against a free-text reference",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, err := appFrom(cmd).Store.ListTasks(cmd.Context(), models.TaskFilter{})
			if err != nil {
				return err
			}
			ranked := matcher.Rank(strings.Join(args, " "), pool)
			if len(ranked) == 0 {
				printf(cmd.OutOrStdout(), "no matching tasks\n")
				return nil
			}
			if limit > 0 && len(ranked) > limit {
				ranked = ranked[:limit]
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			printf(tw, "SCORE\tID\tSTATUS\tTITLE\n")
			for _, s := range ranked {
				printf(tw, "%d\t%s\t%s\t%s\n", s.Score, s.Task.ID, s.Task.Status, displayTitle(s.Task))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of matches")
	return cmd
}

func printTasks(cmd *cobra.Command, tasks []models.Task) error {
	if len(tasks) == 0 {
		printf(cmd.OutOrStdout(), "no tasks\n")
		return nil
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	printf(tw, "ID\tSTATUS\tPRIORITY\tWORKFLOW\tTITLE\n")
	for _, t := range tasks {
		printf(tw, "%s\t%s\t%s\t%s\t%s\n", t.ID, t.Status, t.Priority, t.WorkflowType, displayTitle(t))
	}
	return tw.Flush()
}
