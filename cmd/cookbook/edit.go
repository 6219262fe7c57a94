package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/steveyegge/cookbook/internal/files"
	"github.com/steveyegge/cookbook/internal/pipeline"
)

var (
	editDir     string
	editSandbox string
	editFixer   bool
	editOut     string
	editJSON    bool
)

var editCmd = &cobra.Command{
	Use:   "edit [instruction]",
	Short: "Edit a generated app and re-run it",
	Long: `Edit reads the app in --dir, asks the LLM for the files that need to
change and merges them over the existing set. With --sandbox the running
sandbox is updated in place and relies on hot reload.`,
	Example: `  cookbook edit --dir ./todo "add a dark mode toggle"
  cookbook edit --dir ./todo --sandbox cookbook-1a2b3c4d "make the header sticky"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		existing, err := files.ReadDir(editDir)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", editDir, err)
		}
		if len(existing) == 0 {
			return fmt.Errorf("no source files found in %s", editDir)
		}
		out := editOut
		if out == "" {
			out = editDir
		}
		req := pipeline.Request{
			ExistingFiles:   existing,
			EditInstruction: strings.Join(args, " "),
			SandboxID:       editSandbox,
			UseFixer:        editFixer,
		}
		return runRequest(cmd.Context(), req, out, editJSON)
	},
}

func init() {
	editCmd.Flags().StringVarP(&editDir, "dir", "d", ".", "directory holding the app to edit")
	editCmd.Flags().StringVar(&editSandbox, "sandbox", "", "id of a running sandbox to update in place")
	editCmd.Flags().BoolVar(&editFixer, "fixer", false, "run the repair service before the build")
	editCmd.Flags().StringVarP(&editOut, "out", "o", "", "write the final files here (default: --dir)")
	editCmd.Flags().BoolVar(&editJSON, "json", false, "print the result as JSON")
	rootCmd.AddCommand(editCmd)
}
