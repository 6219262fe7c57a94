package pipeline

import (
	"github.com/steveyegge/cookbook/internal/progress"
	"github.com/steveyegge/cookbook/internal/sandbox"
)

// Mode is how a run obtains its files
type Mode string

const (
	ModeGenerate Mode = "generate"
	ModeEdit     Mode = "edit"
	ModeDebug    Mode = "debug"
)

// Step ids owned by the pipeline; the sandbox steps come from the orchestrator
const (
	StepGenerate = "generate"
	StepEdit     = "edit"
	StepFixture  = "fixture"
	StepRepair   = "repair"
)

// StepsFor returns the progress steps a run walks through.
// update selects hot reload instead of a dev server start.
func StepsFor(mode Mode, useFixer, update bool) []progress.StepDef {
	var steps []progress.StepDef
	switch mode {
	case ModeEdit:
		steps = append(steps, progress.StepDef{ID: StepEdit, Label: "Editing code", Description: "Applying your changes to the existing files"})
	case ModeDebug:
		steps = append(steps, progress.StepDef{ID: StepFixture, Label: "Loading fixture", Description: "Using the built-in counter app"})
	default:
		steps = append(steps, progress.StepDef{ID: StepGenerate, Label: "Generating code", Description: "Writing components from your description"})
	}
	if useFixer {
		steps = append(steps, progress.StepDef{ID: StepRepair, Label: "Repairing code", Description: "Fixing common issues before the build"})
	}
	steps = append(steps,
		progress.StepDef{ID: sandbox.StepSandbox, Label: "Preparing sandbox", Description: "Uploading files to the sandbox"},
		progress.StepDef{ID: sandbox.StepInstall, Label: "Installing dependencies", Description: "Installing packages the code needs"},
	)
	if update {
		steps = append(steps, progress.StepDef{ID: sandbox.StepReload, Label: "Reloading", Description: "Waiting for hot reload to pick up the changes"})
	} else {
		steps = append(steps, progress.StepDef{ID: sandbox.StepStart, Label: "Starting dev server", Description: "Booting the preview server"})
	}
	steps = append(steps, progress.StepDef{ID: sandbox.StepVerify, Label: "Checking build", Description: "Waiting for the preview and collecting errors"})
	return steps
}
