package classify

import (
	"fmt"
	"strings"

	"github.com/steveyegge/cookbook/internal/types"
)

// InstallFailure records a dependency install that exited non-zero
func InstallFailure(command string, exitCode int, output string) types.BuildError {
	msg := fmt.Sprintf("dependency install failed (exit %d): %s", exitCode, command)
	if tail := lastLines(output, 5); tail != "" {
		msg += "\n" + tail
	}
	return types.BuildError{Kind: types.ErrorKindBuild, Message: msg}
}

// RuntimeFailure records a dev server that never answered its health check
func RuntimeFailure(format string, args ...any) types.BuildError {
	return types.BuildError{Kind: types.ErrorKindRuntime, Message: fmt.Sprintf(format, args...)}
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
