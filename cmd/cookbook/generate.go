package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/steveyegge/cookbook/internal/files"
	"github.com/steveyegge/cookbook/internal/pipeline"
	"github.com/steveyegge/cookbook/internal/repl"
)

var (
	genFixer   bool
	genDebug   bool
	genOut     string
	genJSON    bool
	genSession string
)

var generateCmd = &cobra.Command{
	Use:   "generate [description]",
	Short: "Generate an app from a description and run it in a sandbox",
	Example: `  cookbook generate "a pricing page with three tiers"
  cookbook generate --debug --sandbox memory
  cookbook generate "a todo list" --out ./todo --json`,
	Args: func(cmd *cobra.Command, args []string) error {
		if genDebug {
			return nil
		}
		return cobra.MinimumNArgs(1)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		req := pipeline.Request{
			Description: strings.Join(args, " "),
			Debug:       genDebug,
			UseFixer:    genFixer,
			SessionID:   genSession,
		}
		return runRequest(cmd.Context(), req, genOut, genJSON)
	},
}

// runRequest runs one pipeline request with live progress and prints the result
func runRequest(ctx context.Context, req pipeline.Request, outDir string, asJSON bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}
	if !asJSON {
		printer := repl.NewProgressPrinter(os.Stdout)
		unsubscribe := a.registry.Subscribe(req.SessionID, printer.Update)
		defer unsubscribe()
	}

	res := a.pipeline.Run(ctx, req)

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		repl.PrintResult(os.Stdout, res)
	}
	if res.Failed() {
		return fmt.Errorf("%s", res.Error)
	}
	if outDir != "" {
		if err := files.WriteDir(outDir, res.RepairedFiles); err != nil {
			return fmt.Errorf("failed to write files: %w", err)
		}
		if !asJSON {
			fmt.Printf("wrote %d files to %s\n", len(res.RepairedFiles), outDir)
		}
	}
	return nil
}

func init() {
	generateCmd.Flags().BoolVar(&genFixer, "fixer", false, "run the repair service before the build")
	generateCmd.Flags().BoolVar(&genDebug, "debug", false, "use the built-in counter app instead of the LLM")
	generateCmd.Flags().StringVarP(&genOut, "out", "o", "", "write the final files to this directory")
	generateCmd.Flags().BoolVar(&genJSON, "json", false, "print the result as JSON")
	generateCmd.Flags().StringVar(&genSession, "session", "", "session id (default: random)")
	rootCmd.AddCommand(generateCmd)
}
