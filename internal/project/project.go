// Package project resolves the on-disk identity of a project directory:
// its canonical absolute path, the sole unit by which §3 says projects
// are identified.
package project

import (
	"fmt"
	"os"
	"path/filepath"
)

// Project is a directory on disk, identified by its canonical absolute
// path (§3).
type Project struct {
	Root string
}

// Locate resolves dir (or the current working directory, if dir is empty
// — the behavior of the global -C flag when absent) to a Project with a
// canonical root path.
func Locate(dir string) (Project, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Project{}, fmt.Errorf("determining working directory: %w", err)
		}
		dir = wd
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return Project{}, fmt.Errorf("resolving absolute path for %s: %w", dir, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return Project{}, fmt.Errorf("locating project %s: %w", abs, err)
	}
	if !info.IsDir() {
		return Project{}, fmt.Errorf("project path %s is not a directory", abs)
	}

	canon, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return Project{}, fmt.Errorf("canonicalising project path %s: %w", abs, err)
	}

	return Project{Root: canon}, nil
}

// EnvrcPath returns the path of the project's .envrc file.
func (p Project) EnvrcPath() string {
	return filepath.Join(p.Root, ".envrc")
}

// Name is the project's basename, used to compose the vault directory
// name (§3: "<project-basename>-<sentinel-id>").
func (p Project) Name() string {
	return filepath.Base(p.Root)
}

// Contains reports whether rel (a path, possibly with ".." segments)
// stays within the project's canonical root once joined and cleaned.
func (p Project) Contains(relOrAbs string) bool {
	var full string
	if filepath.IsAbs(relOrAbs) {
		full = filepath.Clean(relOrAbs)
	} else {
		full = filepath.Clean(filepath.Join(p.Root, relOrAbs))
	}
	rel, err := filepath.Rel(p.Root, full)
	if err != nil {
		return false
	}
	return rel != ".." && rel != "." && !hasDotDotPrefix(rel)
}

func hasDotDotPrefix(rel string) bool {
	return len(rel) >= 2 && rel[0] == '.' && rel[1] == '.'
}
