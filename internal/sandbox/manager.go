package sandbox

import (
	"context"

	"github.com/steveyegge/cookbook/internal/types"
)

// Provider is a remote execution environment that can hold a project,
// run commands in it and expose its ports.
type Provider interface {
	// Create starts a new sandbox from the named template
	Create(ctx context.Context, template string) (types.SandboxHandle, error)

	// Connect attaches to a running sandbox by id.
	// Returns an error if the sandbox does not exist or is not running.
	Connect(ctx context.Context, id string) (types.SandboxHandle, error)

	// WriteFiles writes files under dir, creating parent directories
	WriteFiles(ctx context.Context, h types.SandboxHandle, dir string, files []types.File) error

	// Run executes a shell command. A non-zero exit is reported in the
	// result, not as an error.
	Run(ctx context.Context, h types.SandboxHandle, command string, opts RunOptions) (CommandResult, error)

	// ListFiles lists the direct children of dir
	ListFiles(ctx context.Context, h types.SandboxHandle, dir string) ([]Entry, error)

	// ReadFile returns the content of the file at path
	ReadFile(ctx context.Context, h types.SandboxHandle, path string) (string, error)

	// Host returns the externally reachable URL for port
	Host(ctx context.Context, h types.SandboxHandle, port int) (string, error)
}

// Destroyer is implemented by providers that can tear a sandbox down
type Destroyer interface {
	Destroy(ctx context.Context, id string) error
}
