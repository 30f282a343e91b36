package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/p-blackswan/tally/internal/models"
)

func newClassifyCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "classify <message>",
		Short: "Show how a message would be read, without storing anything",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			ext, err := a.Intake.Classify(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), ext)
			}
			printExtraction(cmd, ext)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw extraction as JSON")
	return cmd
}

func printExtraction(cmd *cobra.Command, ext *models.Extraction) {
	w := cmd.OutOrStdout()
	printf(w, "type:        %s\n", ext.MessageType)
	printf(w, "task-worthy: %t (confidence %.2f, %s)\n", ext.IsTaskWorthy, ext.Confidence, ext.Source)
	field := func(name, value string) {
		if value != "" {
			printf(w, "%-12s %s\n", name+":", value)
		}
	}
	field("action", string(ext.Action))
	field("title", ext.TaskTitle)
	field("reference", ext.TaskReference)
	field("workflow", ext.WorkflowType)
	field("status", string(ext.Status))
	field("priority", string(ext.Priority))
	field("blocked by", ext.BlockedBy)
	field("new title", ext.NewTaskTitle)
	field("comment", ext.CommentText)
	if ext.Deadline != nil {
		field("deadline", ext.Deadline.Format("2006-01-02"))
	}
	if len(ext.Assignees) > 0 {
		field("assignees", strings.Join(ext.Assignees, ", "))
	}
	if len(ext.BatchItems) > 0 {
		field("batch", strings.Join(ext.BatchItems, ", "))
	}
	if len(ext.NewTags) > 0 {
		field("tags", strings.Join(ext.NewTags, ", "))
	}
	for k, v := range ext.Metadata {
		field("meta."+k, fmt.Sprint(v))
	}
}

func newProcessCmd() *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "process <message>",
		Short: "Process a message as a team member and store the result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			userID := user
			if strings.Contains(user, "@") {
				u, err := a.Store.UserByEmail(cmd.Context(), strings.ToLower(user))
				if err != nil {
					return err
				}
				if u == nil {
					return fmt.Errorf("no user with email %q", user)
				}
				userID = u.ID
			}

			res, err := a.Intake.Process(cmd.Context(), userID, strings.Join(args, " "))
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			printf(w, "message %s stored\n", res.Message.ID)
			for _, t := range res.Created {
				printf(w, "created  %s  %s\n", t.ID, displayTitle(t))
			}
			for _, t := range res.Updated {
				printf(w, "updated  %s  %s  [%s]\n", t.ID, displayTitle(t), t.Status)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "Sender: user id or email")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func displayTitle(t models.Task) string {
	if s, ok := t.Metadata.String(models.MetaDisplayTitle); ok {
		return s
	}
	return t.Title
}
