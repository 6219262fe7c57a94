package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/cookbook/internal/classify"
)

var (
	classifyJSON bool
	classifyRoot string
)

var classifyCmd = &cobra.Command{
	Use:   "classify [log-file]",
	Short: "Extract build errors from dev server or compiler output",
	Long: `Classify reads captured output (a file, or stdin when no file is given)
and prints the code errors it contains. Sandbox infrastructure noise such as
permission errors on cache directories is reported separately and never as
a code error.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var in io.Reader = os.Stdin
		if len(args) == 1 {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}
		raw, err := io.ReadAll(in)
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}

		c := classify.New()
		if classifyRoot != "" {
			c.Root = classifyRoot
		}
		report := c.Classify(string(raw))

		if classifyJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}

		green := color.New(color.FgGreen).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		switch {
		case report.HasErrors:
			fmt.Printf("%s %d code errors\n", red("✗"), len(report.Errors))
			for _, e := range report.Errors {
				fmt.Printf("  %s\n", e.String())
			}
		case report.IsInfrastructureOnly:
			fmt.Printf("%s only sandbox infrastructure noise, no code errors\n", yellow("ℹ"))
		default:
			fmt.Printf("%s no errors\n", green("✓"))
		}
		return nil
	},
}

func init() {
	classifyCmd.Flags().BoolVar(&classifyJSON, "json", false, "print the report as JSON")
	classifyCmd.Flags().StringVar(&classifyRoot, "root", "", "project root prefix stripped from file paths (default /app/)")
	rootCmd.AddCommand(classifyCmd)
}
