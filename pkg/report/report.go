// Package report names and saves run artifacts.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileName returns "<prefix>_<name>.txt". The name is lowercased and
// spaces and path separators become underscores. An empty name gives
// "<prefix>.txt".
func FileName(prefix, name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '/', '\\':
			return '_'
		}
		return r
	}, name)
	prefix = strings.TrimSpace(prefix)
	switch {
	case prefix == "" && name == "":
		return "artifact.txt"
	case name == "":
		return prefix + ".txt"
	case prefix == "":
		return name + ".txt"
	}
	return prefix + "_" + name + ".txt"
}

// Save writes artifact to dir/FileName(prefix, name) and returns the path.
// The directory is created when missing.
func Save(dir, prefix, name, artifact string) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, FileName(prefix, name))
	if err := os.WriteFile(path, []byte(artifact), 0o644); err != nil {
		return "", fmt.Errorf("save report: %w", err)
	}
	return path, nil
}
