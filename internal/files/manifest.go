package files

import (
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"

	"golang.org/x/mod/modfile"

	"github.com/steveyegge/cookbook/internal/types"
)

// ManifestKind identifies the package ecosystem of a dependency manifest
type ManifestKind string

const (
	ManifestNPM ManifestKind = "npm"
	ManifestGo  ManifestKind = "go"
)

// Package is a declared dependency
type Package struct {
	Name    string
	Version string
}

// Spec renders the package as name@version, which both npm and go get accept.
// Go modules without a version resolve to @latest.
func (p Package) Spec(kind ManifestKind) string {
	if p.Version != "" {
		return p.Name + "@" + p.Version
	}
	if kind == ManifestGo {
		return p.Name + "@latest"
	}
	return p.Name
}

// Manifest is a parsed dependency manifest found in a file set
type Manifest struct {
	Kind     ManifestKind
	Path     string
	Packages []Package
}

// DefaultNPMBase lists the packages preinstalled in the vite sandbox template
var DefaultNPMBase = []string{
	"react",
	"react-dom",
	"vite",
	"@vitejs/plugin-react",
	"tailwindcss",
	"@tailwindcss/vite",
	"typescript",
	"@types/react",
	"@types/react-dom",
}

// DetectManifest looks for a top-level package.json or go.mod.
// Returns (nil, nil) when the set has no manifest.
func DetectManifest(set []types.File) (*Manifest, error) {
	if f, ok := Find(set, "package.json"); ok {
		return parsePackageJSON(f)
	}
	if f, ok := Find(set, "go.mod"); ok {
		return parseGoMod(f)
	}
	return nil, nil
}

// NewPackages returns the declared packages that are not part of base, sorted by name
func (m *Manifest) NewPackages(base []string) []Package {
	if m == nil {
		return nil
	}
	known := make(map[string]bool, len(base))
	for _, b := range base {
		known[b] = true
	}
	var out []Package
	for _, p := range m.Packages {
		if !known[p.Name] {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// InstallCommand builds the shell command that installs pkgs in dir.
// Returns "" when there is nothing to install.
func (m *Manifest) InstallCommand(dir string, pkgs []Package) string {
	if m == nil || len(pkgs) == 0 {
		return ""
	}
	specs := make([]string, 0, len(pkgs))
	for _, p := range pkgs {
		specs = append(specs, shellQuote(p.Spec(m.Kind)))
	}
	workDir := path.Join(dir, path.Dir(m.Path))
	switch m.Kind {
	case ManifestGo:
		return fmt.Sprintf("cd %s && go get %s", shellQuote(workDir), strings.Join(specs, " "))
	default:
		return fmt.Sprintf("cd %s && npm install --no-audit --no-fund %s", shellQuote(workDir), strings.Join(specs, " "))
	}
}

type packageJSON struct {
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

func parsePackageJSON(f types.File) (*Manifest, error) {
	var pj packageJSON
	if err := json.Unmarshal([]byte(f.Content), &pj); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", f.Path, err)
	}
	m := &Manifest{Kind: ManifestNPM, Path: NormalizePath(f.Path)}
	seen := make(map[string]bool)
	for _, deps := range []map[string]string{pj.Dependencies, pj.DevDependencies} {
		for name, version := range deps {
			if seen[name] {
				continue
			}
			seen[name] = true
			m.Packages = append(m.Packages, Package{Name: name, Version: npmVersion(version)})
		}
	}
	sort.Slice(m.Packages, func(i, j int) bool { return m.Packages[i].Name < m.Packages[j].Name })
	return m, nil
}

// npmVersion keeps exact and caret/tilde ranges, drops tags like "latest" and "*"
func npmVersion(v string) string {
	v = strings.TrimSpace(v)
	switch v {
	case "", "*", "latest":
		return ""
	}
	return v
}

func parseGoMod(f types.File) (*Manifest, error) {
	mf, err := modfile.Parse(f.Path, []byte(f.Content), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", f.Path, err)
	}
	m := &Manifest{Kind: ManifestGo, Path: NormalizePath(f.Path)}
	for _, r := range mf.Require {
		if r.Indirect {
			continue
		}
		m.Packages = append(m.Packages, Package{Name: r.Mod.Path, Version: r.Mod.Version})
	}
	sort.Slice(m.Packages, func(i, j int) bool { return m.Packages[i].Name < m.Packages[j].Name })
	return m, nil
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("@/._-+=:^~", r)) {
			safe = false
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
