// Package pipeline runs one generate or edit request end to end: LLM call,
// optional repair, sandbox provisioning, with progress reported per step.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/steveyegge/cookbook/internal/files"
	"github.com/steveyegge/cookbook/internal/fixer"
	"github.com/steveyegge/cookbook/internal/history"
	"github.com/steveyegge/cookbook/internal/progress"
	"github.com/steveyegge/cookbook/internal/sandbox"
	"github.com/steveyegge/cookbook/internal/transform"
	"github.com/steveyegge/cookbook/internal/types"
)

var (
	// ErrGeneration wraps every failure of the generate, edit or fixture step
	ErrGeneration = errors.New("generation failed")

	// ErrEmptyGeneration is returned when the generator produced no files
	ErrEmptyGeneration = errors.New("generator returned no files")
)

// Generator produces files from a description or edits an existing set.
// Edit returns only the files that changed.
type Generator interface {
	Generate(ctx context.Context, description string) ([]types.File, error)
	Edit(ctx context.Context, existing []types.File, instruction string) ([]types.File, error)
}

// Repairer fixes common problems in generated files
type Repairer interface {
	Repair(ctx context.Context, set []types.File) (*fixer.Result, error)
}

// Provisioner runs files in a sandbox
type Provisioner interface {
	Provision(ctx context.Context, set []types.File, existing *types.SandboxHandle, reporter sandbox.StepReporter) (*types.SandboxResult, error)
}

// Recorder stores finished runs
type Recorder interface {
	Record(ctx context.Context, run history.Run) error
}

// Request is one generate or edit request
type Request struct {
	Description     string       `json:"description"`
	ExistingFiles   []types.File `json:"existingFiles,omitempty"`
	EditInstruction string       `json:"editInstruction,omitempty"`
	UseFixer        bool         `json:"useFixer,omitempty"`
	Debug           bool         `json:"debug,omitempty"`
	SessionID       string       `json:"sessionId,omitempty"`
	SandboxID       string       `json:"sandboxId,omitempty"`
}

// Mode decides how the request obtains its files
func (r Request) Mode() Mode {
	switch {
	case len(r.ExistingFiles) > 0 && strings.TrimSpace(r.EditInstruction) != "":
		return ModeEdit
	case r.Debug:
		return ModeDebug
	default:
		return ModeGenerate
	}
}

// Result is what a run hands back. Failed runs only carry Error, Message and SessionID.
type Result struct {
	OriginalFiles []types.File       `json:"originalFiles,omitempty"`
	RepairedFiles []types.File       `json:"repairedFiles,omitempty"`
	BuildOutput   string             `json:"buildOutput,omitempty"`
	PreviewURL    string             `json:"previewUrl"`
	SandboxID     string             `json:"sandboxId,omitempty"`
	BuildErrors   []types.BuildError `json:"buildErrors"`
	HasErrors     bool               `json:"hasErrors"`
	SessionID     string             `json:"sessionId"`
	Mode          Mode               `json:"mode,omitempty"`
	Error         string             `json:"error,omitempty"`
	Message       string             `json:"message,omitempty"`
}

// Failed reports whether the run aborted
func (r *Result) Failed() bool {
	return r.Error != ""
}

// Config holds the pipeline collaborators
type Config struct {
	Generator Generator   // required
	Sandbox   Provisioner // required
	Registry  *progress.Registry

	// Repairer is optional; requests asking for repair without one skip the step
	Repairer Repairer

	// History is optional
	History Recorder

	Transform *transform.Pipeline
	Now       func() time.Time
	Logger    *zap.Logger
}

// Pipeline runs requests. It is safe for concurrent use; runs share only the
// progress registry and the history store.
type Pipeline struct {
	cfg Config
}

// New creates a pipeline
func New(cfg Config) (*Pipeline, error) {
	if cfg.Generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if cfg.Sandbox == nil {
		return nil, fmt.Errorf("sandbox provisioner is required")
	}
	if cfg.Registry == nil {
		cfg.Registry = progress.NewRegistry(progress.Config{Logger: cfg.Logger})
	}
	if cfg.Transform == nil {
		cfg.Transform = transform.Default
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Pipeline{cfg: cfg}, nil
}

// Registry returns the progress registry runs report to
func (p *Pipeline) Registry() *progress.Registry {
	return p.cfg.Registry
}

// Run executes req and always returns a result. Failures are reported in
// Result.Error and on the progress step that was active.
func (p *Pipeline) Run(ctx context.Context, req Request) (res *Result) {
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	mode := req.Mode()
	useFixer := req.UseFixer && p.cfg.Repairer != nil
	logger := p.cfg.Logger.With(zap.String("session_id", sessionID), zap.String("mode", string(mode)))
	started := p.cfg.Now()

	tracker := p.cfg.Registry.Create(sessionID, StepsFor(mode, useFixer, req.SandboxID != ""))
	defer tracker.Cleanup()

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("pipeline panicked", zap.Any("panic", rec), zap.Stack("stack"))
			res = fail(tracker, sessionID, mode, fmt.Errorf("internal error: %v", rec))
		}
		p.record(ctx, req, res, started, logger)
	}()

	r := &runState{p: p, ctx: ctx, req: req, mode: mode, tracker: tracker, logger: logger}
	res, err := r.execute(useFixer)
	if err != nil {
		logger.Warn("pipeline failed", zap.Error(err))
		return fail(tracker, sessionID, mode, err)
	}
	res.SessionID = sessionID
	res.Mode = mode
	logger.Info("pipeline completed",
		zap.String("sandbox_id", res.SandboxID),
		zap.Int("files", len(res.RepairedFiles)),
		zap.Int("build_errors", len(res.BuildErrors)),
		zap.Duration("duration", p.cfg.Now().Sub(started)))
	return res
}

// runState is the per-call state of one Run
type runState struct {
	p       *Pipeline
	ctx     context.Context
	req     Request
	mode    Mode
	tracker *progress.Tracker
	logger  *zap.Logger
	notes   []string
}

func (r *runState) note(format string, args ...any) {
	r.notes = append(r.notes, fmt.Sprintf(format, args...))
}

func (r *runState) execute(useFixer bool) (*Result, error) {
	original, err := r.produce()
	if err != nil {
		return nil, err
	}

	working := r.p.cfg.Transform.Apply(original)
	if useFixer {
		working = r.repair(working)
	} else if r.req.UseFixer {
		r.note("repair skipped: no repair service configured")
	}

	var existing *types.SandboxHandle
	if r.req.SandboxID != "" {
		existing = &types.SandboxHandle{ID: r.req.SandboxID}
	}
	sb, err := r.p.cfg.Sandbox.Provision(r.ctx, working, existing, r.tracker)
	if err != nil {
		return nil, err
	}

	buildErrors := sb.BuildErrors
	if buildErrors == nil {
		buildErrors = []types.BuildError{}
	}
	final := sb.Files
	if len(final) == 0 {
		final = working
	}
	if sb.BuildOutput != "" {
		r.notes = append(r.notes, sb.BuildOutput)
	}

	return &Result{
		OriginalFiles: original,
		RepairedFiles: final,
		BuildOutput:   strings.Join(r.notes, "\n"),
		PreviewURL:    sb.Handle.PreviewURL,
		SandboxID:     sb.Handle.ID,
		BuildErrors:   buildErrors,
		HasErrors:     sb.HasErrors,
	}, nil
}

// produce runs the generation step for the request mode
func (r *runState) produce() ([]types.File, error) {
	var (
		step string
		set  []types.File
		err  error
	)
	switch r.mode {
	case ModeEdit:
		step = StepEdit
		r.tracker.StartStep(step)
		var changed []types.File
		changed, err = r.p.cfg.Generator.Edit(r.ctx, r.req.ExistingFiles, r.req.EditInstruction)
		if err == nil && len(changed) == 0 {
			err = ErrEmptyGeneration
		}
		if err == nil {
			set = files.Merge(r.req.ExistingFiles, changed)
			r.note("edited %d of %d files", len(files.Changed(r.req.ExistingFiles, set)), len(set))
		}
	case ModeDebug:
		step = StepFixture
		r.tracker.StartStep(step)
		set = Fixture()
		r.note("using debug fixture")
	default:
		step = StepGenerate
		r.tracker.StartStep(step)
		set, err = r.p.cfg.Generator.Generate(r.ctx, r.req.Description)
		if err == nil && len(set) == 0 {
			err = ErrEmptyGeneration
		}
		if err == nil {
			set = files.Merge(nil, set)
			r.note("generated %d files", len(set))
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrGeneration, step, err)
	}
	r.tracker.CompleteStep(step)
	return set, nil
}

// repair submits the set to the repair service. Any failure keeps the input set.
func (r *runState) repair(set []types.File) []types.File {
	r.tracker.StartStep(StepRepair)
	defer r.tracker.CompleteStep(StepRepair)

	res, err := r.p.cfg.Repairer.Repair(r.ctx, set)
	switch {
	case err != nil:
		r.logger.Warn("repair failed, keeping generated files", zap.Error(err))
		r.note("repair skipped: %v", err)
		return set
	case res == nil || !res.Success || len(res.Files) == 0:
		r.note("repair skipped: no suggested files")
		return set
	}
	repaired := r.p.cfg.Transform.Apply(files.Merge(set, res.Files))
	r.note("repair changed %d files", len(files.Changed(set, repaired)))
	return repaired
}

// fail marks the active step as failed and builds the error result
func fail(tracker *progress.Tracker, sessionID string, mode Mode, err error) *Result {
	tracker.FailActive(err.Error())
	label := "pipeline failed"
	switch {
	case errors.Is(err, ErrGeneration):
		label = "generation failed"
	case errors.Is(err, sandbox.ErrProvision):
		label = "sandbox provisioning failed"
	}
	return &Result{
		Error:       label,
		Message:     err.Error(),
		SessionID:   sessionID,
		Mode:        mode,
		BuildErrors: []types.BuildError{},
	}
}

// record stores the run in history; failures are logged and ignored
func (p *Pipeline) record(ctx context.Context, req Request, res *Result, started time.Time, logger *zap.Logger) {
	if p.cfg.History == nil || res == nil {
		return
	}
	payload, err := json.Marshal(res)
	if err != nil {
		logger.Warn("failed to encode run result", zap.Error(err))
		return
	}
	description := req.Description
	if res.Mode == ModeEdit {
		description = req.EditInstruction
	}
	run := history.Run{
		ID:          uuid.NewString(),
		SessionID:   res.SessionID,
		Mode:        string(res.Mode),
		Description: description,
		PreviewURL:  res.PreviewURL,
		SandboxID:   res.SandboxID,
		FileCount:   len(res.RepairedFiles),
		ErrorCount:  len(res.BuildErrors),
		Error:       res.Message,
		StartedAt:   started,
		FinishedAt:  p.cfg.Now(),
		Result:      payload,
	}
	if err := p.cfg.History.Record(context.WithoutCancel(ctx), run); err != nil {
		logger.Warn("failed to record run", zap.Error(err))
	}
}
