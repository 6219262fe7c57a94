package sandbox

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/steveyegge/cookbook/internal/classify"
	"github.com/steveyegge/cookbook/internal/files"
	"github.com/steveyegge/cookbook/internal/retry"
	"github.com/steveyegge/cookbook/internal/transform"
	"github.com/steveyegge/cookbook/internal/types"
)

// Config holds configuration for the orchestrator
type Config struct {
	// Provider runs the sandboxes (required)
	Provider Provider

	// Template is the base image new sandboxes start from
	Template string

	// WorkDir is the project directory inside the sandbox
	WorkDir string

	// Port is the dev server port
	Port int

	// DevLog receives the dev server output
	DevLog string

	// BasePackages are preinstalled in the template and never reinstalled
	BasePackages []string

	// FreshPolicy bounds the health poll after a cold start
	FreshPolicy retry.Policy

	// UpdatePolicy bounds the health poll after a hot reload
	UpdatePolicy retry.Policy

	// ReloadDelay is how long to wait for hot reload before polling
	ReloadDelay time.Duration

	// CommandTimeout bounds short commands (health checks, listings)
	CommandTimeout time.Duration

	// InstallTimeout bounds dependency installs and the type check
	InstallTimeout time.Duration

	// Clock drives polling and delays (default: real time)
	Clock retry.Clock

	// Transform is re-applied to files before they are written (default: transform.Default)
	Transform *transform.Pipeline

	// Classifier inspects type-check and dev server output (default: classify.New())
	Classifier *classify.Classifier

	Logger *zap.Logger
}

// DefaultConfig returns the configuration for the vite template
func DefaultConfig() Config {
	return Config{
		Template:       "cookbook-vite",
		WorkDir:        "/app",
		Port:           5173,
		DevLog:         "/tmp/cookbook-dev.log",
		BasePackages:   files.DefaultNPMBase,
		FreshPolicy:    retry.Policy{MaxAttempts: 30, Interval: time.Second},
		UpdatePolicy:   retry.Policy{MaxAttempts: 10, Interval: time.Second},
		ReloadDelay:    2 * time.Second,
		CommandTimeout: 10 * time.Second,
		InstallTimeout: 3 * time.Minute,
	}
}

// Orchestrator provisions sandboxes for generated projects
type Orchestrator struct {
	cfg    Config
	logger *zap.Logger
}

// NewOrchestrator creates an orchestrator. Zero-valued fields of cfg fall back
// to DefaultConfig.
func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("sandbox provider is required")
	}
	def := DefaultConfig()
	if cfg.Template == "" {
		cfg.Template = def.Template
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = def.WorkDir
	}
	if cfg.Port == 0 {
		cfg.Port = def.Port
	}
	if cfg.DevLog == "" {
		cfg.DevLog = def.DevLog
	}
	if cfg.BasePackages == nil {
		cfg.BasePackages = def.BasePackages
	}
	if cfg.FreshPolicy == (retry.Policy{}) {
		cfg.FreshPolicy = def.FreshPolicy
	}
	if cfg.UpdatePolicy == (retry.Policy{}) {
		cfg.UpdatePolicy = def.UpdatePolicy
	}
	if cfg.ReloadDelay == 0 {
		cfg.ReloadDelay = def.ReloadDelay
	}
	if cfg.CommandTimeout == 0 {
		cfg.CommandTimeout = def.CommandTimeout
	}
	if cfg.InstallTimeout == 0 {
		cfg.InstallTimeout = def.InstallTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = retry.RealClock
	}
	if cfg.Transform == nil {
		cfg.Transform = transform.Default
	}
	if cfg.Classifier == nil {
		cfg.Classifier = classify.New()
		cfg.Classifier.Root = strings.TrimSuffix(cfg.WorkDir, "/") + "/"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if err := cfg.FreshPolicy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid fresh health policy: %w", err)
	}
	if err := cfg.UpdatePolicy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid update health policy: %w", err)
	}
	return &Orchestrator{cfg: cfg, logger: cfg.Logger}, nil
}

// Config returns the effective configuration
func (o *Orchestrator) Config() Config {
	return o.cfg
}

// run is the per-call state of one Provision
type run struct {
	o        *Orchestrator
	ctx      context.Context
	mode     Mode
	handle   types.SandboxHandle
	reporter StepReporter
	logger   *zap.Logger

	// previous is the sandbox tree before this run wrote to it (update mode)
	previous []types.File

	errors  []types.BuildError
	summary []string
}

func (r *run) note(format string, args ...any) {
	r.summary = append(r.summary, fmt.Sprintf(format, args...))
}

// Provision runs files in a sandbox. With a nil or empty existing handle a
// fresh sandbox is created; otherwise the running sandbox is updated in place.
// Install and health failures are reported as build errors in the result;
// only failures that leave no usable sandbox are returned as errors.
func (o *Orchestrator) Provision(ctx context.Context, set []types.File, existing *types.SandboxHandle, reporter StepReporter) (*types.SandboxResult, error) {
	if reporter == nil {
		reporter = NopReporter
	}
	r := &run{o: o, ctx: ctx, mode: ModeFresh, reporter: reporter, logger: o.logger}
	if existing != nil && existing.ID != "" {
		r.mode = ModeUpdate
	}

	written := o.cfg.Transform.Apply(files.Merge(nil, set))

	reporter.StartStep(StepSandbox)
	if err := r.acquire(existing); err != nil {
		reporter.ErrorStep(StepSandbox, err.Error())
		return nil, err
	}
	r.logger = o.logger.With(zap.String("sandbox_id", r.handle.ID), zap.String("mode", string(r.mode)))
	if err := r.write(written); err != nil {
		reporter.ErrorStep(StepSandbox, err.Error())
		return nil, err
	}
	reporter.CompleteStep(StepSandbox)

	r.install(written)

	if r.mode == ModeFresh {
		r.start()
	} else {
		r.reload()
	}

	r.verify()

	final := r.readBack(written)

	return &types.SandboxResult{
		Handle:      r.handle,
		Files:       final,
		BuildErrors: r.errors,
		HasErrors:   len(r.errors) > 0,
		BuildOutput: strings.Join(r.summary, "\n"),
	}, nil
}

func (r *run) acquire(existing *types.SandboxHandle) error {
	p := r.o.cfg.Provider
	var err error
	if r.mode == ModeUpdate {
		r.handle, err = p.Connect(r.ctx, existing.ID)
		if err != nil {
			return fmt.Errorf("%w: connect to %s: %w", ErrProvision, existing.ID, err)
		}
		r.note("reusing sandbox %s", r.handle.ID)
	} else {
		r.handle, err = p.Create(r.ctx, r.o.cfg.Template)
		if err != nil {
			return fmt.Errorf("%w: create from template %s: %w", ErrProvision, r.o.cfg.Template, err)
		}
		r.note("created sandbox %s from %s", r.handle.ID, r.o.cfg.Template)
	}

	if r.handle.PreviewURL == "" {
		url, err := p.Host(r.ctx, r.handle, r.o.cfg.Port)
		if err != nil {
			return fmt.Errorf("%w: resolve preview host: %w", ErrProvision, err)
		}
		r.handle.PreviewURL = url
	}
	return nil
}

// write sends the file set. In update mode only files that differ from the
// sandbox copy are written.
func (r *run) write(set []types.File) error {
	toWrite := set
	if r.mode == ModeUpdate {
		if current, err := r.harvest(); err == nil {
			r.previous = current
			toWrite = files.Changed(current, set)
		} else {
			r.logger.Warn("could not read sandbox tree, rewriting every file", zap.Error(err))
		}
	}
	if len(toWrite) == 0 {
		r.note("no file changes")
		return nil
	}
	if err := r.o.cfg.Provider.WriteFiles(r.ctx, r.handle, r.o.cfg.WorkDir, toWrite); err != nil {
		return fmt.Errorf("%w: write files: %w", ErrProvision, err)
	}
	r.note("wrote %d files", len(toWrite))
	r.logger.Debug("files written", zap.Int("count", len(toWrite)))
	return nil
}

func (r *run) install(set []types.File) {
	r.reporter.StartStep(StepInstall)

	manifest, err := files.DetectManifest(set)
	if err != nil {
		r.errors = append(r.errors, classify.InstallFailure("read manifest", 1, err.Error()))
		r.reporter.ErrorStep(StepInstall, err.Error())
		return
	}
	pkgs := manifest.NewPackages(r.installed())
	cmd := manifest.InstallCommand(r.o.cfg.WorkDir, pkgs)
	if cmd == "" {
		r.note("no new dependencies")
		r.reporter.CompleteStep(StepInstall)
		return
	}

	r.logger.Info("installing dependencies", zap.Int("count", len(pkgs)), zap.String("manifest", manifest.Path))
	res, err := r.o.cfg.Provider.Run(r.ctx, r.handle, cmd, RunOptions{Timeout: r.o.cfg.InstallTimeout, Cwd: r.o.cfg.WorkDir})
	if err != nil || res.ExitCode != 0 {
		output := res.Output()
		exit := res.ExitCode
		if err != nil {
			output = err.Error()
			if exit == 0 {
				exit = -1
			}
		}
		be := classify.InstallFailure(cmd, exit, output)
		r.errors = append(r.errors, be)
		r.note("dependency install failed (exit %d)", exit)
		r.logger.Warn("dependency install failed", zap.Int("exit_code", exit), zap.Error(err))
		r.reporter.ErrorStep(StepInstall, be.Message)
		return
	}
	r.note("installed %d packages", len(pkgs))
	r.reporter.CompleteStep(StepInstall)
}

// installed lists packages already present: the template base plus, in
// update mode, whatever the sandbox manifest declared before this run.
func (r *run) installed() []string {
	base := append([]string(nil), r.o.cfg.BasePackages...)
	prev, err := files.DetectManifest(r.previous)
	if err != nil || prev == nil {
		return base
	}
	for _, p := range prev.Packages {
		base = append(base, p.Name)
	}
	return base
}

func (r *run) start() {
	r.reporter.StartStep(StepStart)
	cmd := fmt.Sprintf("npm run dev -- --host 0.0.0.0 --port %d > %s 2>&1", r.o.cfg.Port, r.o.cfg.DevLog)
	_, err := r.o.cfg.Provider.Run(r.ctx, r.handle, cmd, RunOptions{Background: true, Cwd: r.o.cfg.WorkDir})
	if err != nil {
		be := classify.RuntimeFailure("failed to start dev server: %v", err)
		r.errors = append(r.errors, be)
		r.reporter.ErrorStep(StepStart, be.Message)
		return
	}
	r.note("dev server started on port %d", r.o.cfg.Port)
	r.reporter.CompleteStep(StepStart)
}

func (r *run) reload() {
	r.reporter.StartStep(StepReload)
	if err := retry.Sleep(r.ctx, r.o.cfg.Clock, r.o.cfg.ReloadDelay); err != nil {
		r.reporter.ErrorStep(StepReload, err.Error())
		return
	}
	r.reporter.CompleteStep(StepReload)
}

func (r *run) verify() {
	r.reporter.StartStep(StepVerify)

	policy := r.o.cfg.FreshPolicy
	if r.mode == ModeUpdate {
		policy = r.o.cfg.UpdatePolicy
	}

	ready, attempts := r.waitReady(policy)
	if ready {
		r.note("dev server ready after %d checks", attempts)
		r.logger.Info("dev server ready", zap.Int("attempts", attempts))
		r.reporter.CompleteStep(StepVerify)
		return
	}

	r.logger.Warn("dev server not ready, running type check", zap.Int("attempts", attempts))
	r.errors = append(r.errors, classify.RuntimeFailure("dev server on port %d did not answer 200 after %d checks", r.o.cfg.Port, attempts))

	report := r.o.cfg.Classifier.Classify(r.diagnostics())
	switch {
	case report.HasErrors:
		r.errors = append(r.errors, report.Errors...)
		r.note("type check found %d errors", len(report.Errors))
	case report.IsInfrastructureOnly:
		r.note("sandbox reported infrastructure noise only")
	default:
		r.note("type check clean")
	}
	r.reporter.ErrorStep(StepVerify, fmt.Sprintf("%d build errors", len(r.errors)))
}

func (r *run) waitReady(policy retry.Policy) (bool, int) {
	health := fmt.Sprintf(`curl -s -o /dev/null -w "%%{http_code}" http://localhost:%d`, r.o.cfg.Port)
	attempts := 0
	err := retry.Poll(r.ctx, r.o.cfg.Clock, policy, func(ctx context.Context, attempt int) (bool, error) {
		attempts = attempt
		res, err := r.o.cfg.Provider.Run(ctx, r.handle, health, RunOptions{Timeout: r.o.cfg.CommandTimeout})
		if err != nil {
			r.logger.Debug("health check failed", zap.Int("attempt", attempt), zap.Error(err))
			return false, nil
		}
		return strings.TrimSpace(res.Stdout) == "200", nil
	})
	return err == nil, attempts
}

// diagnostics collects the type checker output and the tail of the dev log
func (r *run) diagnostics() string {
	var b strings.Builder
	p := r.o.cfg.Provider
	tsc, err := p.Run(r.ctx, r.handle, "npx tsc --noEmit --pretty false", RunOptions{Timeout: r.o.cfg.InstallTimeout, Cwd: r.o.cfg.WorkDir})
	if err != nil {
		r.logger.Warn("type check did not run", zap.Error(err))
	} else {
		b.WriteString(tsc.Output())
		b.WriteString("\n")
	}
	tail, err := p.Run(r.ctx, r.handle, "tail -n 100 "+r.o.cfg.DevLog, RunOptions{Timeout: r.o.cfg.CommandTimeout})
	if err == nil {
		b.WriteString(tail.Stdout)
	}
	return b.String()
}

// readBack returns the sandbox's view of the project, or the written set
// when the tree cannot be read.
func (r *run) readBack(written []types.File) []types.File {
	got, err := r.harvest()
	if err != nil || len(got) == 0 {
		r.logger.Warn("read-back failed, returning written files", zap.Error(err))
		return written
	}
	return got
}

func (r *run) harvest() ([]types.File, error) {
	root := r.o.cfg.WorkDir
	var out []types.File
	var walk func(dir string) error
	walk = func(dir string) error {
		entries, err := r.o.cfg.Provider.ListFiles(r.ctx, r.handle, dir)
		if err != nil {
			return fmt.Errorf("list %s: %w", dir, err)
		}
		for _, e := range entries {
			p := e.Path
			if p == "" {
				p = path.Join(dir, e.Name)
			}
			rel := strings.TrimPrefix(strings.TrimPrefix(p, root), "/")
			if e.IsDir {
				if files.SkipDir(e.Name) {
					continue
				}
				if err := walk(p); err != nil {
					return err
				}
				continue
			}
			if !files.Harvestable(rel) {
				continue
			}
			content, err := r.o.cfg.Provider.ReadFile(r.ctx, r.handle, p)
			if err != nil {
				return fmt.Errorf("read %s: %w", rel, err)
			}
			out = append(out, types.File{Path: rel, Content: content})
		}
		return nil
	}
	if err := walk(root); err != nil {
		return nil, err
	}
	return files.Merge(nil, out), nil
}

// IsProvisionError reports whether err left no usable sandbox
func IsProvisionError(err error) bool {
	return errors.Is(err, ErrProvision)
}
