package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/steveyegge/cookbook/internal/repl"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start interactive REPL shell",
	Long: `Start an interactive shell. The first line you type generates an app;
every later line edits it and updates the same sandbox.

Type '/help' in the REPL for available commands.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		a, err := buildApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		r, err := repl.New(&repl.Config{
			Runner:   a.pipeline,
			Registry: a.registry,
			UseFixer: cfg.Fixer.Enabled(),
		})
		if err != nil {
			return err
		}
		return r.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(replCmd)
}
