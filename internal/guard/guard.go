// Package guard implements the Guard Engine (§4.3): atomic, reversible
// relocation of a project file into its vault, leaving a symlink behind.
package guard

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/sysid/rs-env/internal/errs"
	"github.com/sysid/rs-env/internal/fsx"
	"github.com/sysid/rs-env/internal/vault"
)

// Engine performs guard operations against FS.
type Engine struct {
	FS fsx.FS
}

// New returns an Engine backed by fs.
func New(fs fsx.FS) *Engine { return &Engine{FS: fs} }

// Record is one guard relocation: P is the project-relative path the
// symlink lives at; VaultRel is the dotfile-renamed path under the
// vault's guarded/ directory.
type Record struct {
	ProjectRel string
	VaultRel   string
}

// VaultRelPath applies the dotfile-name rule (§4.3) to the final path
// component only — directory components are unchanged.
func VaultRelPath(projectRel string) string {
	dir, base := filepath.Split(projectRel)
	return filepath.Join(dir, dotfileRename(base))
}

func dotfileRename(base string) string {
	if strings.HasPrefix(base, ".") {
		return "dot" + base
	}
	return base
}

// Add relocates <projectRoot>/relPath into <vaultRoot>/guarded/, leaving
// a symlink at the original path (§4.3). Preconditions: the project file
// exists, is a regular file (not a symlink), lies within projectRoot, and
// the computed vault target does not already exist. Any partial failure
// rolls back completed steps.
func (e *Engine) Add(projectRoot, vaultRoot, relPath string, style vault.LinkStyle) error {
	v := vault.Vault{Root: vaultRoot}
	projectPath := filepath.Join(projectRoot, relPath)

	info, err := e.FS.Lstat(projectPath)
	if err != nil {
		return errs.Infrastructure(errs.ExitNoInput, fmt.Sprintf("locating %s", projectPath), err)
	}
	if info.Mode&fs.ModeSymlink != 0 {
		return errs.Application(errs.ExitUsageBSD, fmt.Sprintf("%s is already a symlink", projectPath), errs.ErrNotASymlink)
	}
	if info.IsDir {
		return errs.Application(errs.ExitUsageBSD, fmt.Sprintf("%s is a directory, guard only relocates files", projectPath), nil)
	}

	rel := filepath.Clean(relPath)
	full := filepath.Join(projectRoot, rel)
	within, err := filepath.Rel(projectRoot, full)
	if err != nil || strings.HasPrefix(within, "..") {
		return errs.Application(errs.ExitUsageBSD, fmt.Sprintf("%s is outside the project root", relPath), nil)
	}

	vaultRel := VaultRelPath(rel)
	vaultPath := filepath.Join(v.GuardedPath(), vaultRel)
	if e.FS.Exists(vaultPath) {
		return errs.Domain(errs.ExitUsageBSD, fmt.Sprintf("%s already exists in vault", vaultRel), errs.ErrGuardTargetExists)
	}

	var undo []func() error
	fail := func(stage string, cause error) error {
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
		return errs.Infrastructure(errs.ExitIOErr, fmt.Sprintf("guard add %s: %s", relPath, stage), cause)
	}

	if err := e.FS.MkdirAll(filepath.Dir(vaultPath), 0o755); err != nil {
		return fail("creating vault parent directories", err)
	}

	if err := moveFile(e.FS, projectPath, vaultPath); err != nil {
		return fail("moving file into vault", err)
	}
	undo = append(undo, func() error { return moveFile(e.FS, vaultPath, projectPath) })

	if err := e.FS.Chmod(vaultPath, info.Mode.Perm()); err != nil {
		return fail("restoring file mode", err)
	}

	target := vaultPath
	if style == vault.StyleRelative {
		rel, err := filepath.Rel(filepath.Dir(projectPath), vaultPath)
		if err != nil {
			return fail("computing relative symlink target", err)
		}
		target = rel
	}
	if err := e.FS.Symlink(target, projectPath); err != nil {
		return fail("creating symlink", err)
	}

	return nil
}

// List walks the project tree for symlinks whose target resolves into
// <vaultRoot>/guarded/, reporting each as a Record (§4.3 list()).
func (e *Engine) List(projectRoot, vaultRoot string) ([]Record, error) {
	v := vault.Vault{Root: vaultRoot}
	guardedRoot := v.GuardedPath()

	var records []Record
	err := e.FS.Walk(projectRoot, func(path string, info fsx.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode&fs.ModeSymlink == 0 {
			return nil
		}
		target, err := e.FS.Readlink(path)
		if err != nil {
			return nil
		}
		resolved := target
		if !filepath.IsAbs(resolved) {
			resolved = filepath.Join(filepath.Dir(path), target)
		}
		resolved = filepath.Clean(resolved)
		rel, err := filepath.Rel(guardedRoot, resolved)
		if err != nil || strings.HasPrefix(rel, "..") {
			return nil
		}
		projRel, err := filepath.Rel(projectRoot, path)
		if err != nil {
			return nil
		}
		records = append(records, Record{ProjectRel: projRel, VaultRel: rel})
		return nil
	})
	if err != nil {
		return nil, errs.Infrastructure(errs.ExitIOErr, fmt.Sprintf("walking %s", projectRoot), err)
	}
	return records, nil
}

// ListRelPaths returns the project-relative paths of every guard record.
// Its signature structurally satisfies vault.GuardRestorer, letting
// cmd/rsenv wire an *Engine into vault.Binder.Reset without either
// package importing the other.
func (e *Engine) ListRelPaths(projectRoot, vaultRoot string) ([]string, error) {
	records, err := e.List(projectRoot, vaultRoot)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ProjectRel
	}
	return out, nil
}

// Restore moves <vaultRoot>/guarded/<relPath-renamed> back to
// <projectRoot>/<relPath>, removing the symlink first (§4.3 restore()).
// It refuses if the project path is not a symlink to the expected vault
// location, or if the vault file is missing.
func (e *Engine) Restore(projectRoot, vaultRoot, relPath string) error {
	v := vault.Vault{Root: vaultRoot}
	projectPath := filepath.Join(projectRoot, relPath)
	vaultRel := VaultRelPath(filepath.Clean(relPath))
	vaultPath := filepath.Join(v.GuardedPath(), vaultRel)

	info, err := e.FS.Lstat(projectPath)
	if err != nil {
		return errs.Infrastructure(errs.ExitNoInput, fmt.Sprintf("locating %s", projectPath), err)
	}
	if info.Mode&fs.ModeSymlink == 0 {
		return errs.Application(errs.ExitUsageBSD, fmt.Sprintf("%s is not a symlink", projectPath), errs.ErrNotASymlink)
	}
	target, err := e.FS.Readlink(projectPath)
	if err != nil {
		return errs.Infrastructure(errs.ExitIOErr, fmt.Sprintf("reading symlink %s", projectPath), err)
	}
	resolved := target
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(filepath.Dir(projectPath), target)
	}
	if filepath.Clean(resolved) != filepath.Clean(vaultPath) {
		return errs.Application(errs.ExitUsageBSD,
			fmt.Sprintf("%s does not resolve to the expected vault location", projectPath), errs.ErrNotGuardSymlink)
	}
	if !e.FS.Exists(vaultPath) {
		return errs.Infrastructure(errs.ExitNoInput, fmt.Sprintf("vault file %s is missing", vaultPath), nil)
	}

	vaultInfo, err := e.FS.Stat(vaultPath)
	if err != nil {
		return errs.Infrastructure(errs.ExitNoInput, fmt.Sprintf("statting %s", vaultPath), err)
	}

	if err := e.FS.Remove(projectPath); err != nil {
		return errs.Infrastructure(errs.ExitIOErr, fmt.Sprintf("removing symlink %s", projectPath), err)
	}
	if err := moveFile(e.FS, vaultPath, projectPath); err != nil {
		// best-effort: the symlink is gone, recreate it so the project
		// isn't left in a worse state than before the attempt.
		e.FS.Symlink(target, projectPath)
		return errs.Infrastructure(errs.ExitIOErr, fmt.Sprintf("restoring %s", projectPath), err)
	}
	if err := e.FS.Chmod(projectPath, vaultInfo.Mode.Perm()); err != nil {
		return errs.Infrastructure(errs.ExitIOErr, fmt.Sprintf("restoring mode on %s", projectPath), err)
	}
	return nil
}

// moveFile relocates src to dst, preferring a same-filesystem rename.
// When that fails with EXDEV (src and dst are on different filesystems --
// the common case for a vault living outside the project), it falls back
// to copy-then-delete, preserving mode bits and mtime (§4.3).
func moveFile(fsys fsx.FS, src, dst string) error {
	err := fsys.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return err
	}

	info, err := fsys.Lstat(src)
	if err != nil {
		return err
	}
	data, err := fsys.ReadFile(src)
	if err != nil {
		return err
	}
	if err := fsys.WriteFile(dst, data, info.Mode.Perm()); err != nil {
		return err
	}
	if err := fsys.Chtimes(dst, info.ModTime, info.ModTime); err != nil {
		return err
	}
	return fsys.Remove(src)
}
