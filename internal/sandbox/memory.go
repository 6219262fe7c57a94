package sandbox

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/steveyegge/cookbook/internal/types"
)

// Responder scripts the result of a command run in a MemoryProvider.
// Returning ok=false falls through to the default behaviour.
type Responder func(id, command string) (res CommandResult, ok bool)

// MemoryProvider keeps sandboxes in process. Commands are recorded, not
// executed: health checks answer 200 and everything else exits 0 unless a
// Responder says otherwise. Used for dry runs and tests.
type MemoryProvider struct {
	mu        sync.Mutex
	sandboxes map[string]*memorySandbox

	// Templates seeds new sandboxes, keyed by template name, paths absolute
	Templates map[string][]types.File

	Responder Responder

	// HostPattern formats preview URLs from the sandbox id and port
	HostPattern string

	CreateErr error
	WriteErr  error
	ListErr   error
}

type memorySandbox struct {
	template string
	files    map[string]string
	commands []string
}

// NewMemoryProvider creates an empty in-memory provider
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		sandboxes:   make(map[string]*memorySandbox),
		Templates:   make(map[string][]types.File),
		HostPattern: "https://%s-%d.sandbox.local",
	}
}

// Create seeds a new sandbox with the template's files
func (m *MemoryProvider) Create(ctx context.Context, template string) (types.SandboxHandle, error) {
	if err := ctx.Err(); err != nil {
		return types.SandboxHandle{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return types.SandboxHandle{}, m.CreateErr
	}
	id := "mem-" + uuid.NewString()[:8]
	sb := &memorySandbox{template: template, files: make(map[string]string)}
	for _, f := range m.Templates[template] {
		sb.files[path.Clean("/"+f.Path)] = f.Content
	}
	m.sandboxes[id] = sb
	return types.SandboxHandle{ID: id}, nil
}

// Connect returns the handle of an existing sandbox
func (m *MemoryProvider) Connect(ctx context.Context, id string) (types.SandboxHandle, error) {
	if err := ctx.Err(); err != nil {
		return types.SandboxHandle{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sandboxes[id]; !ok {
		return types.SandboxHandle{}, fmt.Errorf("sandbox %s not found", id)
	}
	return types.SandboxHandle{ID: id}, nil
}

// WriteFiles stores the set under dir
func (m *MemoryProvider) WriteFiles(ctx context.Context, h types.SandboxHandle, dir string, set []types.File) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	sb, err := m.get(h.ID)
	if err != nil {
		return err
	}
	for _, f := range set {
		if err := f.Validate(); err != nil {
			return err
		}
		sb.files[path.Join(dir, f.Path)] = f.Content
	}
	return nil
}

// Run records command and answers through the Responder, if any
func (m *MemoryProvider) Run(ctx context.Context, h types.SandboxHandle, command string, opts RunOptions) (CommandResult, error) {
	if err := ctx.Err(); err != nil {
		return CommandResult{}, err
	}
	m.mu.Lock()
	sb, err := m.get(h.ID)
	if err == nil {
		sb.commands = append(sb.commands, command)
	}
	responder := m.Responder
	m.mu.Unlock()
	if err != nil {
		return CommandResult{}, err
	}

	if responder != nil {
		if res, ok := responder(h.ID, command); ok {
			return res, nil
		}
	}
	if strings.Contains(command, "http_code") {
		return CommandResult{Stdout: "200"}, nil
	}
	return CommandResult{}, nil
}

// ListFiles lists the direct children of dir
func (m *MemoryProvider) ListFiles(ctx context.Context, h types.SandboxHandle, dir string) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	sb, err := m.get(h.ID)
	if err != nil {
		return nil, err
	}
	dir = path.Clean(dir)
	seen := make(map[string]Entry)
	for p := range sb.files {
		rel := strings.TrimPrefix(p, dir+"/")
		if rel == p || rel == "" {
			continue
		}
		name, _, nested := strings.Cut(rel, "/")
		seen[name] = Entry{Name: name, Path: path.Join(dir, name), IsDir: nested}
	}
	out := make([]Entry, 0, len(seen))
	for _, e := range seen {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ReadFile returns the stored content of p
func (m *MemoryProvider) ReadFile(ctx context.Context, h types.SandboxHandle, p string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sb, err := m.get(h.ID)
	if err != nil {
		return "", err
	}
	content, ok := sb.files[path.Clean(p)]
	if !ok {
		return "", fmt.Errorf("%s: no such file", p)
	}
	return content, nil
}

// Host formats a preview URL with HostPattern
func (m *MemoryProvider) Host(ctx context.Context, h types.SandboxHandle, port int) (string, error) {
	return fmt.Sprintf(m.HostPattern, h.ID, port), nil
}

// Destroy forgets a sandbox
func (m *MemoryProvider) Destroy(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.get(id); err != nil {
		return err
	}
	delete(m.sandboxes, id)
	return nil
}

// Commands returns the commands run in sandbox id, in order
func (m *MemoryProvider) Commands(id string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	sb, ok := m.sandboxes[id]
	if !ok {
		return nil
	}
	return append([]string(nil), sb.commands...)
}

// Files returns the absolute path -> content map of sandbox id
func (m *MemoryProvider) Files(id string) map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	sb, ok := m.sandboxes[id]
	if !ok {
		return nil
	}
	out := make(map[string]string, len(sb.files))
	for k, v := range sb.files {
		out[k] = v
	}
	return out
}

// IDs lists live sandboxes
func (m *MemoryProvider) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sandboxes))
	for id := range m.sandboxes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// get must be called with m.mu held
func (m *MemoryProvider) get(id string) (*memorySandbox, error) {
	sb, ok := m.sandboxes[id]
	if !ok {
		return nil, fmt.Errorf("sandbox %s not found", id)
	}
	return sb, nil
}
