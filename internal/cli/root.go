// Package cli implements tallyctl, a command-line front end that runs the
// pipeline directly against a store file.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/p-blackswan/tally/internal/app"
	"github.com/p-blackswan/tally/internal/config"
)

type appKey struct{}

// NewRootCmd builds the tallyctl command tree.
func NewRootCmd(version string) *cobra.Command {
	var (
		dbPath   string
		provider string
		verbose  bool
	)

	cmd := &cobra.Command{
		Use:          "tallyctl",
		Short:        "Classify chat messages and inspect a tally store",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" || !cmd.Runnable() {
				return nil
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if dbPath != "" {
				cfg.DBPath = dbPath
			}
			if provider != "" {
				cfg.ExtractorProvider = provider
				if err := cfg.Validate(); err != nil {
					return err
				}
			}

			level := "error"
			if verbose {
				level = "debug"
			}
			logger := app.NewLogger("", level, cmd.ErrOrStderr())

			a, err := app.Build(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, a))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a, ok := cmd.Context().Value(appKey{}).(*app.App); ok {
				return a.Close()
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite store path (default: DB_PATH or data/tally.db)")
	cmd.PersistentFlags().StringVar(&provider, "provider", "", "Extractor provider: anthropic, openai, ollama or none (default: EXTRACTOR_PROVIDER)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log pipeline activity to stderr")

	cmd.AddCommand(newClassifyCmd())
	cmd.AddCommand(newProcessCmd())
	cmd.AddCommand(newTasksCmd())
	cmd.AddCommand(newMessagesCmd())
	cmd.AddCommand(newUsersCmd())
	cmd.AddCommand(newCorrectionsCmd())

	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.SetVersionTemplate("{{.Version}}\n")
	if version != "" {
		cmd.Version = version
	} else {
		cmd.Version = "dev"
	}
	return cmd
}

// appFrom returns the pipeline built by the root command.
func appFrom(cmd *cobra.Command) *app.App {
	a, ok := cmd.Context().Value(appKey{}).(*app.App)
	if !ok {
		panic("tallyctl: pipeline not initialized")
	}
	return a
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
