package cli

import (
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/p-blackswan/tally/internal/models"
)

func newMessagesCmd() *cobra.Command {
	var (
		limit  int
		offset int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "messages",
		Short: "List stored messages, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			msgs, err := appFrom(cmd).Store.ListMessages(cmd.Context(), limit, offset)
			if err != nil {
				return err
			}
			if asJSON {
				if msgs == nil {
					msgs = []models.Message{}
				}
				return writeJSON(cmd.OutOrStdout(), msgs)
			}
			if len(msgs) == 0 {
				printf(cmd.OutOrStdout(), "no messages\n")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			printf(tw, "TIME\tUSER\tTYPE\tTASKS\tCONTENT\n")
			for _, m := range msgs {
				kind := "-"
				if m.ParsedData != nil {
					kind = string(m.ParsedData.MessageType)
				}
				printf(tw, "%s\t%s\t%s\t%d\t%s\n",
					m.Timestamp.Format(time.RFC3339), m.UserName, kind, len(m.RelatedTaskIDs), oneLine(m.Content, 60))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of messages")
	cmd.Flags().IntVar(&offset, "offset", 0, "Messages to skip")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func newUsersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List the team directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			users, err := appFrom(cmd).Store.ListUsers(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			printf(tw, "ID\tNAME\tEMAIL\n")
			for _, u := range users {
				printf(tw, "%s\t%s\t%s\n", u.ID, u.Name, u.Email)
			}
			return tw.Flush()
		},
	}
}

func newCorrectionsCmd() *cobra.Command {
	var (
		workflow string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "corrections",
		Short: "List recorded naming corrections, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := appFrom(cmd).Store.RecentCorrections(cmd.Context(), workflow, limit)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				printf(cmd.OutOrStdout(), "no corrections\n")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			printf(tw, "WORKFLOW\tORIGINAL\tCORRECTED\n")
			for _, c := range list {
				printf(tw, "%s\t%s\t%s\n", c.WorkflowType, c.OriginalTitle, c.CorrectedTitle)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&workflow, "workflow", "", "Filter by workflow type")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of corrections")
	return cmd
}

// oneLine collapses whitespace and truncates s to max runes.
func oneLine(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
