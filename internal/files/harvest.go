package files

import (
	"path"
	"strings"
)

// skippedDirs are never descended into when reading a sandbox tree back
var skippedDirs = map[string]bool{
	"node_modules": true,
	"dist":         true,
	"build":        true,
	"vendor":       true,
}

// skippedFiles are boilerplate the user never edits
var skippedFiles = map[string]bool{
	"package-lock.json": true,
	"yarn.lock":         true,
	"pnpm-lock.yaml":    true,
	"bun.lockb":         true,
	"go.sum":            true,
}

var binaryExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".ico": true, ".webp": true,
	".woff": true, ".woff2": true, ".ttf": true, ".eot": true, ".otf": true,
	".zip": true, ".gz": true, ".tar": true, ".pdf": true, ".mp4": true, ".mp3": true,
	".wasm": true, ".so": true, ".dylib": true, ".exe": true,
}

// Hidden reports whether any segment of p starts with a dot
func Hidden(p string) bool {
	for _, part := range strings.Split(NormalizePath(p), "/") {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}

// SkipDir reports whether a directory named name should be excluded from read-back
func SkipDir(name string) bool {
	return skippedDirs[name] || strings.HasPrefix(name, ".")
}

// Harvestable reports whether a file at relative path p should be read back
// from a sandbox into the authoritative file set.
func Harvestable(p string) bool {
	p = NormalizePath(p)
	if p == "" || Hidden(p) {
		return false
	}
	dir, name := path.Split(p)
	for _, part := range strings.Split(strings.Trim(dir, "/"), "/") {
		if skippedDirs[part] {
			return false
		}
	}
	if skippedFiles[name] {
		return false
	}
	return !binaryExts[strings.ToLower(path.Ext(name))]
}
