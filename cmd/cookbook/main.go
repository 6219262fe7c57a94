package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/steveyegge/cookbook/internal/config"
	"github.com/steveyegge/cookbook/internal/logging"
)

var (
	configPath      string
	verbose         bool
	llmProvider     string
	sandboxProvider string

	cfg    config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "cookbook",
	Short: "Generate and preview React apps from plain-English descriptions",
	Long: `cookbook turns a description into a React + TypeScript + Tailwind app,
runs it in a sandbox and reports build errors. Later instructions edit the
same app in place.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("llm") {
			loaded.LLM.Provider = llmProvider
		}
		if cmd.Flags().Changed("sandbox") {
			loaded.Sandbox.Provider = sandboxProvider
		}
		if err := loaded.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		cfg = loaded

		l, err := logging.New(cfg.Log, verbose)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&llmProvider, "llm", "", "LLM provider: anthropic or gemini")
	rootCmd.PersistentFlags().StringVar(&sandboxProvider, "sandbox", "", "sandbox provider: docker or memory")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		red := color.New(color.FgRed).SprintFunc()
		fmt.Fprintf(os.Stderr, "%s %v\n", red("Error:"), err)
		os.Exit(1)
	}
}
