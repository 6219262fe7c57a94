package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/steveyegge/cookbook/internal/history"
	"github.com/steveyegge/cookbook/internal/repl"
)

var (
	runsLimit   int
	runsSession string
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded pipeline runs",
	Long: `List recorded runs, newest first. History lives in memory unless
history.dsn points at a file, so this is mostly useful with a durable DSN.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.List(cmd.Context(), runsSession, runsLimit)
		if err != nil {
			return err
		}
		repl.PrintRuns(os.Stdout, runs)
		return nil
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show [run-id]",
	Short: "Print one run with its full result as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		run, err := store.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

var runsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete runs older than the configured retention",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.History.Retention() == 0 {
			fmt.Println("history pruning is disabled (retention_hours = 0)")
			return nil
		}
		store, err := openHistory(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		n, err := store.Prune(cmd.Context(), time.Now().Add(-cfg.History.Retention()), cfg.History.Keep)
		if err != nil {
			return err
		}
		fmt.Printf("deleted %d runs\n", n)
		return nil
	},
}

func openHistory(ctx context.Context) (*history.Store, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	return history.Open(ctx, cfg.History.DSN, logger.Named("history"))
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "maximum number of runs to list")
	runsCmd.Flags().StringVar(&runsSession, "session", "", "only runs of this session")
	runsCmd.AddCommand(runsShowCmd, runsPruneCmd)
	rootCmd.AddCommand(runsCmd)
}
