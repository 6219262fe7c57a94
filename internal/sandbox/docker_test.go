package sandbox

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/cookbook/internal/types"
)

// fakeDocker records docker invocations and answers from a script
type fakeDocker struct {
	calls  [][]string
	answer func(args []string) CommandResult
}

func (f *fakeDocker) run(ctx context.Context, stdin io.Reader, args ...string) (CommandResult, error) {
	f.calls = append(f.calls, args)
	if f.answer != nil {
		return f.answer(args), nil
	}
	return CommandResult{}, nil
}

func TestDockerCreate(t *testing.T) {
	fake := &fakeDocker{}
	cfg := DefaultDockerConfig()
	cfg.Scaffold = nil
	cfg.Setup = ""
	d := newDockerProvider(cfg, fake.run)

	h, err := d.Create(context.Background(), "cookbook-vite")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(h.ID, "cookbook-"))
	require.Len(t, fake.calls, 1)
	assert.Equal(t, []string{
		"run", "-d", "--name", h.ID, "--label", "cookbook.template=cookbook-vite",
		"-p", "127.0.0.1:0:5173",
		"node:20-bookworm", "sleep", "infinity",
	}, fake.calls[0])
}

func TestDockerCreateScaffoldsTemplate(t *testing.T) {
	fake := &fakeDocker{}
	d := newDockerProvider(DefaultDockerConfig(), fake.run)

	h, err := d.Create(context.Background(), "cookbook-vite")
	require.NoError(t, err)

	require.Len(t, fake.calls, 4)
	assert.Equal(t, []string{"exec", h.ID, "mkdir", "-p", "/app"}, fake.calls[1])
	assert.Equal(t, "cp", fake.calls[2][0])
	assert.Equal(t, h.ID+":/app", fake.calls[2][2])
	assert.Equal(t, []string{"exec", h.ID, "sh", "-lc", ViteSetup}, fake.calls[3])
}

func TestDockerCreateSetupFailureRemovesContainer(t *testing.T) {
	fake := &fakeDocker{answer: func(args []string) CommandResult {
		if args[0] == "exec" {
			return CommandResult{Stderr: "npm ERR!", ExitCode: 1}
		}
		return CommandResult{}
	}}
	cfg := DefaultDockerConfig()
	cfg.Setup = "npm create vite@latest . -- --template react-ts"
	d := newDockerProvider(cfg, fake.run)

	_, err := d.Create(context.Background(), "cookbook-vite")
	require.Error(t, err)

	last := fake.calls[len(fake.calls)-1]
	assert.Equal(t, []string{"rm", "-f"}, last[:2])
}

func TestDockerCreateFailure(t *testing.T) {
	fake := &fakeDocker{answer: func(args []string) CommandResult {
		return CommandResult{Stderr: "Unable to find image", ExitCode: 125}
	}}
	d := newDockerProvider(DefaultDockerConfig(), fake.run)

	_, err := d.Create(context.Background(), "custom-image")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "125")
	assert.Contains(t, fake.calls[0], "custom-image")
}

func TestDockerConnect(t *testing.T) {
	running := "true\n"
	fake := &fakeDocker{answer: func(args []string) CommandResult {
		return CommandResult{Stdout: running}
	}}
	d := newDockerProvider(DefaultDockerConfig(), fake.run)

	h, err := d.Connect(context.Background(), "cookbook-abc")
	require.NoError(t, err)
	assert.Equal(t, types.SandboxHandle{ID: "cookbook-abc"}, h)

	running = "false\n"
	_, err = d.Connect(context.Background(), "cookbook-abc")
	assert.Error(t, err)
}

func TestDockerRun(t *testing.T) {
	fake := &fakeDocker{}
	d := newDockerProvider(DefaultDockerConfig(), fake.run)
	h := types.SandboxHandle{ID: "cookbook-abc"}

	_, err := d.Run(context.Background(), h, "npm run dev", RunOptions{Background: true, Cwd: "/app"})
	require.NoError(t, err)
	_, err = d.Run(context.Background(), h, "ls", RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"exec", "-d", "-w", "/app", "cookbook-abc", "sh", "-lc", "npm run dev"}, fake.calls[0])
	assert.Equal(t, []string{"exec", "cookbook-abc", "sh", "-lc", "ls"}, fake.calls[1])
}

func TestDockerHost(t *testing.T) {
	fake := &fakeDocker{answer: func(args []string) CommandResult {
		return CommandResult{Stdout: "0.0.0.0:49153\n[::]:49153\n"}
	}}
	d := newDockerProvider(DefaultDockerConfig(), fake.run)

	url, err := d.Host(context.Background(), types.SandboxHandle{ID: "cookbook-abc"}, 5173)
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:49153", url)
	assert.Equal(t, []string{"port", "cookbook-abc", "5173/tcp"}, fake.calls[0])
}

func TestParseFindOutput(t *testing.T) {
	out := "d /app/src\nf /app/package.json\nl /app/link\n\nf /app/my file.txt\n"

	assert.Equal(t, []Entry{
		{Name: "src", Path: "/app/src", IsDir: true},
		{Name: "package.json", Path: "/app/package.json"},
		{Name: "my file.txt", Path: "/app/my file.txt"},
	}, parseFindOutput(out))
}

func TestDockerWriteFiles(t *testing.T) {
	fake := &fakeDocker{}
	d := newDockerProvider(DefaultDockerConfig(), fake.run)

	err := d.WriteFiles(context.Background(), types.SandboxHandle{ID: "cookbook-abc"}, "/app", []types.File{
		{Path: "src/App.tsx", Content: "x"},
	})
	require.NoError(t, err)

	require.Len(t, fake.calls, 2)
	assert.Equal(t, []string{"exec", "cookbook-abc", "mkdir", "-p", "/app"}, fake.calls[0])
	assert.Equal(t, "cp", fake.calls[1][0])
	assert.Equal(t, "cookbook-abc:/app", fake.calls[1][2])
}

func TestDockerWriteFilesRejectsBadPaths(t *testing.T) {
	fake := &fakeDocker{}
	d := newDockerProvider(DefaultDockerConfig(), fake.run)

	err := d.WriteFiles(context.Background(), types.SandboxHandle{ID: "cookbook-abc"}, "/app", []types.File{
		{Path: "../etc/passwd", Content: "x"},
	})
	assert.Error(t, err)
	assert.Empty(t, fake.calls)
}
