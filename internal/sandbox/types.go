package sandbox

import (
	"errors"
	"time"
)

// ErrProvision wraps failures that leave no usable sandbox: the environment
// could not be created, connected to or written to.
var ErrProvision = errors.New("sandbox provisioning failed")

// Mode is how the orchestrator obtained its sandbox
type Mode string

const (
	// ModeFresh creates a new sandbox from the template
	ModeFresh Mode = "fresh"

	// ModeUpdate reuses a running sandbox and relies on hot reload
	ModeUpdate Mode = "update"
)

// Step ids reported while provisioning
const (
	StepSandbox = "sandbox"
	StepInstall = "install"
	StepStart   = "start"
	StepReload  = "reload"
	StepVerify  = "verify"
)

// RunOptions controls a single command execution
type RunOptions struct {
	// Background starts the command and returns without waiting for it
	Background bool

	// Timeout bounds a foreground command (0 = no limit beyond ctx)
	Timeout time.Duration

	// Cwd is the working directory inside the sandbox
	Cwd string
}

// CommandResult is the captured outcome of a command
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Output joins stdout and stderr
func (r CommandResult) Output() string {
	switch {
	case r.Stderr == "":
		return r.Stdout
	case r.Stdout == "":
		return r.Stderr
	default:
		return r.Stdout + "\n" + r.Stderr
	}
}

// Entry is one item of a directory listing
type Entry struct {
	Name  string
	Path  string
	IsDir bool
}

// StepReporter receives step transitions while the orchestrator works
type StepReporter interface {
	StartStep(id string)
	CompleteStep(id string)
	ErrorStep(id, message string)
}

type nopReporter struct{}

func (nopReporter) StartStep(string)          {}
func (nopReporter) CompleteStep(string)       {}
func (nopReporter) ErrorStep(string, string) {}

// NopReporter discards step transitions
var NopReporter StepReporter = nopReporter{}
