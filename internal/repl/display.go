package repl

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/steveyegge/cookbook/internal/history"
	"github.com/steveyegge/cookbook/internal/pipeline"
	"github.com/steveyegge/cookbook/internal/progress"
	"github.com/steveyegge/cookbook/internal/types"
)

// ProgressPrinter renders step transitions as they arrive. It is a
// progress.Listener and prints each status of a step at most once.
type ProgressPrinter struct {
	w       io.Writer
	mu      sync.Mutex
	printed map[string]progress.Status
}

// NewProgressPrinter creates a printer writing to w
func NewProgressPrinter(w io.Writer) *ProgressPrinter {
	return &ProgressPrinter{w: w, printed: make(map[string]progress.Status)}
}

// Update prints the steps whose status changed since the last snapshot
func (p *ProgressPrinter) Update(st progress.State) {
	p.mu.Lock()
	defer p.mu.Unlock()

	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	for _, step := range st.Steps {
		if step.Status == progress.StatusPending || p.printed[step.ID] == step.Status {
			continue
		}
		p.printed[step.ID] = step.Status
		switch step.Status {
		case progress.StatusInProgress:
			fmt.Fprintf(p.w, "  %s %s...\n", yellow("⚡"), step.Label)
		case progress.StatusCompleted:
			fmt.Fprintf(p.w, "  %s %s %s\n", green("✓"), step.Label, gray(fmt.Sprintf("(%s)", step.Duration().Round(100*time.Millisecond))))
		case progress.StatusError:
			fmt.Fprintf(p.w, "  %s %s: %s\n", red("✗"), step.Label, step.Error)
		}
	}
}

// PrintResult renders a pipeline result
func PrintResult(w io.Writer, res *pipeline.Result) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	if res.Failed() {
		fmt.Fprintf(w, "\n%s %s: %s\n\n", red("✗"), res.Error, res.Message)
		return
	}

	fmt.Fprintf(w, "\n%s\n", cyan("Preview ready"))
	fmt.Fprintf(w, "  URL:     %s\n", green(res.PreviewURL))
	fmt.Fprintf(w, "  Sandbox: %s\n", res.SandboxID)
	fmt.Fprintf(w, "  Files:   %d\n", len(res.RepairedFiles))

	if res.HasErrors {
		fmt.Fprintf(w, "\n%s\n", red(fmt.Sprintf("%d build errors", len(res.BuildErrors))))
		for i, e := range res.BuildErrors {
			if i >= 10 {
				fmt.Fprintf(w, "  ... and %d more\n", len(res.BuildErrors)-10)
				break
			}
			fmt.Fprintf(w, "  %s\n", e.String())
		}
	}
	if res.BuildOutput != "" {
		fmt.Fprintln(w)
		for _, line := range strings.Split(res.BuildOutput, "\n") {
			fmt.Fprintf(w, "  %s\n", gray(line))
		}
	}
	fmt.Fprintln(w)
}

// PrintFiles lists paths with their sizes
func PrintFiles(w io.Writer, set []types.File) {
	if len(set) == 0 {
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Fprintf(w, "\n%s No files yet. Describe a UI to generate one.\n\n", yellow("ℹ"))
		return
	}
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Fprintf(w, "\n%s\n", cyan("Files"))
	for _, f := range set {
		fmt.Fprintf(w, "  %-40s %6d bytes\n", f.Path, len(f.Content))
	}
	fmt.Fprintln(w)
}

// PrintRuns renders the run history, newest first
func PrintRuns(w io.Writer, runs []history.Run) {
	if len(runs) == 0 {
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Fprintf(w, "\n%s No runs recorded.\n\n", yellow("ℹ"))
		return
	}
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	for _, r := range runs {
		mark := green("✓")
		if r.Error != "" {
			mark = red("✗")
		} else if r.ErrorCount > 0 {
			mark = color.New(color.FgYellow).Sprint("!")
		}
		fmt.Fprintf(w, "%s %s %-8s %s\n", mark, gray(r.FinishedAt.Format(time.DateTime)), r.Mode, truncate(r.Description, 60))
		fmt.Fprintf(w, "    %s  files=%d errors=%d", r.ID, r.FileCount, r.ErrorCount)
		if r.PreviewURL != "" {
			fmt.Fprintf(w, "  %s", r.PreviewURL)
		}
		fmt.Fprintln(w)
		if r.Error != "" {
			fmt.Fprintf(w, "    %s\n", red(r.Error))
		}
	}
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
