// Package repl is the interactive shell: the first description generates an
// app, every later line edits it in the same sandbox.
package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/steveyegge/cookbook/internal/files"
	"github.com/steveyegge/cookbook/internal/pipeline"
	"github.com/steveyegge/cookbook/internal/progress"
	"github.com/steveyegge/cookbook/internal/types"
)

// errExit is returned by the exit command to end the loop
var errExit = errors.New("exit")

// Runner executes pipeline requests
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) *pipeline.Result
}

// CommandHandler handles a specific command
type CommandHandler func(args []string) error

// Config holds REPL configuration
type Config struct {
	Runner   Runner             // required
	Registry *progress.Registry // optional; enables live step output
	UseFixer bool
	Out      io.Writer // default os.Stdout
}

// REPL represents the interactive shell
type REPL struct {
	runner   Runner
	registry *progress.Registry
	out      io.Writer
	rl       *readline.Instance
	ctx      context.Context
	commands map[string]CommandHandler

	useFixer  bool
	files     []types.File
	sandboxID string
	preview   string
}

// New creates a new REPL instance
func New(cfg *Config) (*REPL, error) {
	if cfg.Runner == nil {
		return nil, fmt.Errorf("runner is required")
	}
	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}
	r := &REPL{
		runner:   cfg.Runner,
		registry: cfg.Registry,
		out:      out,
		ctx:      context.Background(),
		useFixer: cfg.UseFixer,
		commands: make(map[string]CommandHandler),
	}
	r.registerCommands()
	return r, nil
}

// Run starts the REPL loop
func (r *REPL) Run(ctx context.Context) error {
	r.ctx = ctx

	cyan := color.New(color.FgCyan).SprintFunc()
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            cyan("cookbook> "),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
		AutoComplete:      r.completer(),
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()
	r.rl = rl

	r.printWelcome()

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			} else if errors.Is(err, io.EOF) {
				fmt.Fprintln(r.out, "\nGoodbye!")
				return nil
			}
			return err
		}

		if err := r.processInput(line); err != nil {
			if errors.Is(err, errExit) {
				return nil
			}
			red := color.New(color.FgRed).SprintFunc()
			fmt.Fprintf(r.out, "%s %v\n", red("Error:"), err)
		}
	}
}

// processInput handles one line: a /command or a description
func (r *REPL) processInput(line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if strings.HasPrefix(line, "/") {
		parts := strings.Fields(line[1:])
		if len(parts) == 0 {
			return nil
		}
		handler, ok := r.commands[parts[0]]
		if !ok {
			return fmt.Errorf("unknown command /%s (try /help)", parts[0])
		}
		return handler(parts[1:])
	}
	return r.submit(line)
}

// submit generates from text, or edits the current files when there are any
func (r *REPL) submit(text string) error {
	req := pipeline.Request{
		SessionID: uuid.NewString(),
		UseFixer:  r.useFixer,
	}
	if len(r.files) > 0 {
		req.ExistingFiles = r.files
		req.EditInstruction = text
		req.SandboxID = r.sandboxID
	} else {
		req.Description = text
	}
	return r.execute(req)
}

func (r *REPL) execute(req pipeline.Request) error {
	if r.registry != nil {
		printer := NewProgressPrinter(r.out)
		unsubscribe := r.registry.Subscribe(req.SessionID, printer.Update)
		defer unsubscribe()
	}

	res := r.runner.Run(r.ctx, req)
	PrintResult(r.out, res)
	if res.Failed() {
		return nil
	}
	r.files = res.RepairedFiles
	r.sandboxID = res.SandboxID
	r.preview = res.PreviewURL
	return nil
}

// registerCommands registers all built-in commands
func (r *REPL) registerCommands() {
	r.commands["help"] = r.cmdHelp
	r.commands["?"] = r.cmdHelp
	r.commands["exit"] = r.cmdExit
	r.commands["quit"] = r.cmdExit
	r.commands["files"] = r.cmdFiles
	r.commands["show"] = r.cmdShow
	r.commands["status"] = r.cmdStatus
	r.commands["fixer"] = r.cmdFixer
	r.commands["reset"] = r.cmdReset
	r.commands["save"] = r.cmdSave
	r.commands["debug"] = r.cmdDebug
}

func (r *REPL) completer() readline.AutoCompleter {
	items := make([]readline.PrefixCompleterInterface, 0, len(r.commands))
	for name := range r.commands {
		items = append(items, readline.PcItem("/"+name))
	}
	return readline.NewPrefixCompleter(items...)
}

// printWelcome prints the welcome message
func (r *REPL) printWelcome() {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Fprintf(r.out, "\n%s\n", cyan("cookbook"))
	fmt.Fprintln(r.out, "Describe a UI to generate it, then keep typing to change it.")
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, "Type '/help' for available commands, '/exit' to quit")
	fmt.Fprintln(r.out)
}

// cmdHelp shows help information
func (r *REPL) cmdHelp(args []string) error {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Fprintf(r.out, "\n%s\n\n", cyan("Available Commands:"))

	commands := []struct {
		name string
		desc string
	}{
		{"/help, /?", "Show this help message"},
		{"/files", "List the current files"},
		{"/show <path>", "Print one file"},
		{"/status", "Show the current sandbox and preview URL"},
		{"/fixer on|off", "Toggle the repair step"},
		{"/save <dir>", "Write the current files to a local directory"},
		{"/debug", "Run the built-in fixture app"},
		{"/reset", "Forget the current app and start over"},
		{"/exit, /quit", "Exit the REPL"},
	}
	for _, cmd := range commands {
		fmt.Fprintf(r.out, "  %-16s %s\n", green(cmd.name), cmd.desc)
	}
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, "Anything else is a description (first time) or an edit instruction:")
	fmt.Fprintln(r.out, "  'A pricing page with three tiers'")
	fmt.Fprintln(r.out, "  'Make the middle tier stand out'")
	fmt.Fprintln(r.out)
	return nil
}

// cmdExit exits the REPL
func (r *REPL) cmdExit(args []string) error {
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Fprintf(r.out, "\n%s Goodbye!\n", green("✓"))
	return errExit
}

func (r *REPL) cmdFiles(args []string) error {
	PrintFiles(r.out, r.files)
	return nil
}

func (r *REPL) cmdShow(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: /show <path>")
	}
	f, ok := files.Find(r.files, args[0])
	if !ok {
		return fmt.Errorf("no file %s", args[0])
	}
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Fprintf(r.out, "\n%s\n%s\n", cyan("=== "+f.Path+" ==="), f.Content)
	return nil
}

func (r *REPL) cmdStatus(args []string) error {
	if r.sandboxID == "" {
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Fprintf(r.out, "\n%s No sandbox yet.\n\n", yellow("ℹ"))
		return nil
	}
	fmt.Fprintf(r.out, "\n  Sandbox: %s\n  Preview: %s\n  Files:   %d\n  Fixer:   %t\n\n", r.sandboxID, r.preview, len(r.files), r.useFixer)
	return nil
}

func (r *REPL) cmdFixer(args []string) error {
	if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
		return fmt.Errorf("usage: /fixer on|off")
	}
	r.useFixer = args[0] == "on"
	fmt.Fprintf(r.out, "repair step %s\n", args[0])
	return nil
}

func (r *REPL) cmdReset(args []string) error {
	r.files = nil
	r.sandboxID = ""
	r.preview = ""
	fmt.Fprintln(r.out, "started over")
	return nil
}

func (r *REPL) cmdSave(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: /save <dir>")
	}
	if len(r.files) == 0 {
		return fmt.Errorf("nothing to save")
	}
	if err := files.WriteDir(args[0], r.files); err != nil {
		return fmt.Errorf("failed to save files: %w", err)
	}
	fmt.Fprintf(r.out, "wrote %d files to %s\n", len(r.files), args[0])
	return nil
}

func (r *REPL) cmdDebug(args []string) error {
	return r.execute(pipeline.Request{
		SessionID: uuid.NewString(),
		Debug:     true,
		UseFixer:  r.useFixer,
		SandboxID: r.sandboxID,
	})
}
