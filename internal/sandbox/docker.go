package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/steveyegge/cookbook/internal/files"
	"github.com/steveyegge/cookbook/internal/types"
)

// DockerConfig configures the docker provider
type DockerConfig struct {
	// Images maps template names to images. Unknown templates are used as image names.
	Images map[string]string

	// Ports are published on random host ports at creation
	Ports []int

	// Scaffold is written to ScaffoldDir in a new container before Setup runs
	Scaffold    []types.File
	ScaffoldDir string

	// Setup runs once in a new container, e.g. to install the scaffold's packages
	Setup string

	// NamePrefix is prepended to container names
	NamePrefix string

	Logger *zap.Logger
}

// DefaultDockerConfig runs the vite template on the stock node image
func DefaultDockerConfig() DockerConfig {
	return DockerConfig{
		Images:      map[string]string{"cookbook-vite": "node:20-bookworm"},
		Ports:       []int{5173},
		Scaffold:    ViteTemplate(),
		ScaffoldDir: "/app",
		Setup:       ViteSetup,
		NamePrefix:  "cookbook-",
	}
}

// commandRunner runs docker with args, feeding stdin when non-nil
type commandRunner func(ctx context.Context, stdin io.Reader, args ...string) (CommandResult, error)

// DockerProvider runs sandboxes as local containers through the docker CLI
type DockerProvider struct {
	cfg    DockerConfig
	run    commandRunner
	logger *zap.Logger
}

// NewDockerProvider checks that docker is on PATH and returns a provider
func NewDockerProvider(cfg DockerConfig) (*DockerProvider, error) {
	if _, err := exec.LookPath("docker"); err != nil {
		return nil, fmt.Errorf("docker command not found: %w", err)
	}
	return newDockerProvider(cfg, runDocker), nil
}

func newDockerProvider(cfg DockerConfig, run commandRunner) *DockerProvider {
	if cfg.NamePrefix == "" {
		cfg.NamePrefix = "cookbook-"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &DockerProvider{cfg: cfg, run: run, logger: cfg.Logger}
}

func runDocker(ctx context.Context, stdin io.Reader, args ...string) (CommandResult, error) {
	cmd := exec.CommandContext(ctx, "docker", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdin = stdin
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()

	result := CommandResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return result, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	return result, err
}

// mustSucceed runs docker and turns a non-zero exit into an error
func (d *DockerProvider) mustSucceed(ctx context.Context, stdin io.Reader, args ...string) (CommandResult, error) {
	res, err := d.run(ctx, stdin, args...)
	if err != nil {
		return res, fmt.Errorf("docker %s: %w", args[0], err)
	}
	if res.ExitCode != 0 {
		return res, fmt.Errorf("docker %s exited with code %d: %s", args[0], res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return res, nil
}

// image maps a template name to the image to run
func (d *DockerProvider) image(template string) string {
	if img, ok := d.cfg.Images[template]; ok {
		return img
	}
	return template
}

// Create starts a detached container from the template image and scaffolds it
func (d *DockerProvider) Create(ctx context.Context, template string) (types.SandboxHandle, error) {
	name := d.cfg.NamePrefix + uuid.NewString()[:8]
	args := []string{"run", "-d", "--name", name, "--label", "cookbook.template=" + template}
	for _, port := range d.cfg.Ports {
		args = append(args, "-p", fmt.Sprintf("127.0.0.1:0:%d", port))
	}
	args = append(args, d.image(template), "sleep", "infinity")

	if _, err := d.mustSucceed(ctx, nil, args...); err != nil {
		return types.SandboxHandle{}, err
	}
	d.logger.Info("container started", zap.String("name", name), zap.String("image", d.image(template)))

	h := types.SandboxHandle{ID: name}
	if err := d.setup(ctx, h); err != nil {
		_ = d.Destroy(context.WithoutCancel(ctx), name)
		return types.SandboxHandle{}, fmt.Errorf("sandbox setup failed: %w", err)
	}
	return h, nil
}

// setup scaffolds a new container and runs the setup command
func (d *DockerProvider) setup(ctx context.Context, h types.SandboxHandle) error {
	if len(d.cfg.Scaffold) > 0 {
		dir := d.cfg.ScaffoldDir
		if dir == "" {
			dir = "/app"
		}
		if err := d.WriteFiles(ctx, h, dir, d.cfg.Scaffold); err != nil {
			return err
		}
	}
	if d.cfg.Setup == "" {
		return nil
	}
	res, err := d.Run(ctx, h, d.cfg.Setup, RunOptions{})
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("exit code %d: %s", res.ExitCode, strings.TrimSpace(res.Output()))
	}
	return nil
}

// Connect attaches to a running container by id
func (d *DockerProvider) Connect(ctx context.Context, id string) (types.SandboxHandle, error) {
	res, err := d.mustSucceed(ctx, nil, "inspect", "-f", "{{.State.Running}}", id)
	if err != nil {
		return types.SandboxHandle{}, err
	}
	if strings.TrimSpace(res.Stdout) != "true" {
		return types.SandboxHandle{}, fmt.Errorf("container %s is not running", id)
	}
	return types.SandboxHandle{ID: id}, nil
}

// WriteFiles stages the set on the host and copies it into the container
func (d *DockerProvider) WriteFiles(ctx context.Context, h types.SandboxHandle, dir string, set []types.File) error {
	staging, err := os.MkdirTemp("", "cookbook-write-*")
	if err != nil {
		return fmt.Errorf("failed to create staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	if err := files.WriteDir(staging, set); err != nil {
		return err
	}
	if _, err := d.mustSucceed(ctx, nil, "exec", h.ID, "mkdir", "-p", dir); err != nil {
		return err
	}
	_, err = d.mustSucceed(ctx, nil, "cp", staging+"/.", h.ID+":"+dir)
	return err
}

// Run executes command with sh -lc inside the container
func (d *DockerProvider) Run(ctx context.Context, h types.SandboxHandle, command string, opts RunOptions) (CommandResult, error) {
	args := []string{"exec"}
	if opts.Background {
		args = append(args, "-d")
	}
	if opts.Cwd != "" {
		args = append(args, "-w", opts.Cwd)
	}
	args = append(args, h.ID, "sh", "-lc", command)

	if opts.Timeout > 0 && !opts.Background {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	d.logger.Debug("docker exec", zap.String("sandbox_id", h.ID), zap.String("command", command))
	return d.run(ctx, nil, args...)
}

// ListFiles uses GNU find; %y is f or d, %p the full path
func (d *DockerProvider) ListFiles(ctx context.Context, h types.SandboxHandle, dir string) ([]Entry, error) {
	res, err := d.mustSucceed(ctx, nil, "exec", h.ID, "find", dir, "-mindepth", "1", "-maxdepth", "1", "-printf", `%y %p\n`)
	if err != nil {
		return nil, err
	}
	return parseFindOutput(res.Stdout), nil
}

func parseFindOutput(out string) []Entry {
	var entries []Entry
	for _, line := range strings.Split(out, "\n") {
		kind, p, ok := strings.Cut(strings.TrimRight(line, "\r"), " ")
		if !ok || p == "" {
			continue
		}
		switch kind {
		case "f", "d":
			entries = append(entries, Entry{Name: path.Base(p), Path: p, IsDir: kind == "d"})
		}
	}
	return entries
}

// ReadFile returns the content of p inside the container
func (d *DockerProvider) ReadFile(ctx context.Context, h types.SandboxHandle, p string) (string, error) {
	res, err := d.mustSucceed(ctx, nil, "exec", h.ID, "cat", p)
	if err != nil {
		return "", err
	}
	return res.Stdout, nil
}

// Host resolves the published host port, e.g. 127.0.0.1:49153
func (d *DockerProvider) Host(ctx context.Context, h types.SandboxHandle, port int) (string, error) {
	res, err := d.mustSucceed(ctx, nil, "port", h.ID, fmt.Sprintf("%d/tcp", port))
	if err != nil {
		return "", err
	}
	addr := strings.TrimSpace(strings.SplitN(res.Stdout, "\n", 2)[0])
	if addr == "" {
		return "", fmt.Errorf("port %d is not published on %s", port, h.ID)
	}
	addr = strings.Replace(addr, "0.0.0.0:", "127.0.0.1:", 1)
	return "http://" + addr, nil
}

// Destroy force-removes the container
func (d *DockerProvider) Destroy(ctx context.Context, id string) error {
	_, err := d.mustSucceed(ctx, nil, "rm", "-f", id)
	return err
}
