// Package swap implements the Swap Engine (§4.4): a per-file, per-host
// state machine that overlays a vault-held alternate version onto a
// project file while preserving the original.
package swap

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sysid/rs-env/internal/errs"
	"github.com/sysid/rs-env/internal/fsx"
	"github.com/sysid/rs-env/internal/project"
	"github.com/sysid/rs-env/internal/vault"
)

const (
	originalSuffix = ".rsenv_original"
	activeSuffix   = "rsenv_active"
	newSeparator   = "@@"
)

// Engine performs swap operations against FS.
type Engine struct {
	FS       fsx.FS
	Hostname func() (string, error)
}

// New returns an Engine backed by fs, using the OS-reported short
// hostname (falling back to "unknown" per §8's host-identity note).
func New(fs fsx.FS) *Engine {
	return &Engine{FS: fs, Hostname: defaultHostname}
}

func defaultHostname() (string, error) {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "unknown", nil
	}
	return h, nil
}

// sentinel describes one active-swap marker found on disk.
type sentinel struct {
	name   string // file basename
	host   string
	legacy bool
}

func swapPath(vaultRoot, rel string) string       { return filepath.Join(vault.Vault{Root: vaultRoot}.SwapPath(), rel) }
func backupPath(vaultRoot, rel string) string     { return swapPath(vaultRoot, rel) + originalSuffix }
func sentinelName(base, host string) string       { return base + newSeparator + host + newSeparator + activeSuffix }
func legacySentinelName(base, host string) string { return base + "." + host + "." + activeSuffix }

// sentinelsFor lists every active sentinel (current and legacy form) for
// rel, regardless of host.
func (e *Engine) sentinelsFor(vaultRoot, rel string) ([]sentinel, error) {
	dir := filepath.Dir(swapPath(vaultRoot, rel))
	base := filepath.Base(rel)

	entries, err := e.FS.ReadDir(dir)
	if err != nil {
		if !e.FS.Exists(dir) {
			return nil, nil
		}
		return nil, err
	}

	newPrefix := base + newSeparator
	newSuffix := newSeparator + activeSuffix
	legacyPrefix := base + "."
	legacySuffix := "." + activeSuffix

	var found []sentinel
	for _, entry := range entries {
		if entry.IsDir {
			continue
		}
		name := entry.Name
		if strings.HasPrefix(name, newPrefix) && strings.HasSuffix(name, newSuffix) {
			host := strings.TrimSuffix(strings.TrimPrefix(name, newPrefix), newSuffix)
			found = append(found, sentinel{name: name, host: host})
			continue
		}
		if name != base && strings.HasPrefix(name, legacyPrefix) && strings.HasSuffix(name, legacySuffix) {
			host := strings.TrimSuffix(strings.TrimPrefix(name, legacyPrefix), legacySuffix)
			found = append(found, sentinel{name: name, host: host, legacy: true})
		}
	}
	return found, nil
}

// Init seeds <vault>/swap/P from the current project file, if any (§4.4
// swap init). It refuses if <vault>/swap/P already exists.
func (e *Engine) Init(projectRoot, vaultRoot, rel string) error {
	dest := swapPath(vaultRoot, rel)
	if e.FS.Exists(dest) {
		return errs.Domain(errs.ExitUsageBSD, fmt.Sprintf("swap/%s already exists", rel), errs.ErrSwapConflict)
	}
	if err := e.FS.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return errs.Infrastructure(errs.ExitIOErr, "creating swap parent directories", err)
	}

	src := filepath.Join(projectRoot, rel)
	if !e.FS.Exists(src) {
		return nil
	}
	if err := e.FS.Rename(src, dest); err != nil {
		return errs.Infrastructure(errs.ExitIOErr, fmt.Sprintf("seeding swap/%s", rel), err)
	}
	return nil
}

// In swaps P's alternate version into the project (§4.4 swap in). force
// overrides a sentinel held by another host.
func (e *Engine) In(projectRoot, vaultRoot, rel string, force bool) error {
	altPath := swapPath(vaultRoot, rel)
	if !e.FS.Exists(altPath) {
		return errs.Application(errs.ExitNoInput, fmt.Sprintf("swap/%s does not exist, run swap init first", rel), nil)
	}

	host, err := e.Hostname()
	if err != nil {
		return errs.Infrastructure(errs.ExitIOErr, "determining hostname", err)
	}

	existing, err := e.sentinelsFor(vaultRoot, rel)
	if err != nil {
		return errs.Infrastructure(errs.ExitIOErr, "listing swap sentinels", err)
	}
	for _, s := range existing {
		if s.host != host && !force {
			return errs.Domain(errs.ExitUsageBSD,
				fmt.Sprintf("swap already in on host %s; use --force to override", s.host), errs.ErrSwapConflict)
		}
	}
	dir := filepath.Dir(altPath)
	for _, s := range existing {
		if err := e.FS.Remove(filepath.Join(dir, s.name)); err != nil {
			return errs.Infrastructure(errs.ExitIOErr, "removing stale swap sentinel", err)
		}
	}

	base := filepath.Base(rel)
	projectPath := filepath.Join(projectRoot, rel)
	backup := backupPath(vaultRoot, rel)

	var disabledGitignore string
	if base == ".gitignore" {
		plain := filepath.Join(dir, ".gitignore")
		if plain != altPath && e.FS.Exists(plain) {
			disabledGitignore = plain + ".rsenv-disabled"
			if err := e.FS.Rename(plain, disabledGitignore); err != nil {
				return errs.Infrastructure(errs.ExitIOErr, "disabling sibling .gitignore", err)
			}
		}
	}

	if e.FS.Exists(projectPath) {
		if err := e.FS.MkdirAll(filepath.Dir(backup), 0o755); err != nil {
			return errs.Infrastructure(errs.ExitIOErr, "creating backup directory", err)
		}
		if err := e.FS.Rename(projectPath, backup); err != nil {
			return errs.Infrastructure(errs.ExitIOErr, fmt.Sprintf("backing up %s", rel), err)
		}
	}

	if err := copyFile(e.FS, altPath, projectPath); err != nil {
		if e.FS.Exists(backup) {
			e.FS.Rename(backup, projectPath)
		}
		return errs.Infrastructure(errs.ExitIOErr, fmt.Sprintf("copying swap/%s into project", rel), err)
	}

	sentinelPath := filepath.Join(dir, sentinelName(base, host))
	if err := e.FS.WriteFile(sentinelPath, nil, 0o644); err != nil {
		return errs.Infrastructure(errs.ExitIOErr, "creating swap sentinel", err)
	}

	if disabledGitignore != "" {
		if err := e.FS.Rename(disabledGitignore, strings.TrimSuffix(disabledGitignore, ".rsenv-disabled")); err != nil {
			return errs.Infrastructure(errs.ExitIOErr, "restoring sibling .gitignore", err)
		}
	}

	if err := e.markSwapped(vaultRoot, true); err != nil {
		return err
	}
	return nil
}

// Out reverses a swap-in for P (§4.4 swap out). Preconditions: a
// sentinel for this host exists.
func (e *Engine) Out(projectRoot, vaultRoot, rel string) error {
	host, err := e.Hostname()
	if err != nil {
		return errs.Infrastructure(errs.ExitIOErr, "determining hostname", err)
	}

	existing, err := e.sentinelsFor(vaultRoot, rel)
	if err != nil {
		return errs.Infrastructure(errs.ExitIOErr, "listing swap sentinels", err)
	}
	var mine *sentinel
	for i := range existing {
		if existing[i].host == host {
			mine = &existing[i]
			break
		}
	}
	if mine == nil {
		return errs.Application(errs.ExitUsageBSD, fmt.Sprintf("no swap-in for %s on this host", rel), errs.ErrNotBound)
	}

	altPath := swapPath(vaultRoot, rel)
	projectPath := filepath.Join(projectRoot, rel)
	backup := backupPath(vaultRoot, rel)
	dir := filepath.Dir(altPath)

	if e.FS.Exists(projectPath) {
		if err := copyFile(e.FS, projectPath, altPath); err != nil {
			return errs.Infrastructure(errs.ExitIOErr, fmt.Sprintf("saving edits back to swap/%s", rel), err)
		}
		if err := e.FS.Remove(projectPath); err != nil {
			return errs.Infrastructure(errs.ExitIOErr, fmt.Sprintf("removing %s", rel), err)
		}
	}
	if e.FS.Exists(backup) {
		if err := e.FS.Rename(backup, projectPath); err != nil {
			return errs.Infrastructure(errs.ExitIOErr, fmt.Sprintf("restoring original %s", rel), err)
		}
	}
	if err := e.FS.Remove(filepath.Join(dir, mine.name)); err != nil {
		return errs.Infrastructure(errs.ExitIOErr, "removing swap sentinel", err)
	}

	host2, path2, active, err := e.AnyActive(vaultRoot)
	if err != nil {
		return err
	}
	_ = host2
	_ = path2
	if !active {
		if err := e.markSwapped(vaultRoot, false); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes the swap records for rels entirely (§4.4 swap delete).
// It validates every path in the batch before touching any file: if any
// path is IN on any host, the whole call is refused and nothing is
// removed ("If any path in a batch fails validation, no file is touched
// (all-or-nothing)").
func (e *Engine) Delete(vaultRoot string, rels []string) error {
	for _, rel := range rels {
		existing, err := e.sentinelsFor(vaultRoot, rel)
		if err != nil {
			return errs.Infrastructure(errs.ExitIOErr, "listing swap sentinels", err)
		}
		if len(existing) > 0 {
			return errs.Domain(errs.ExitUsageBSD, fmt.Sprintf("swap/%s is IN on host %s", rel, existing[0].host), errs.ErrSwapActive)
		}
	}

	for _, rel := range rels {
		altPath := swapPath(vaultRoot, rel)
		if err := e.FS.Remove(altPath); err != nil && e.FS.Exists(altPath) {
			return errs.Infrastructure(errs.ExitIOErr, fmt.Sprintf("removing swap/%s", rel), err)
		}
		backup := backupPath(vaultRoot, rel)
		if e.FS.Exists(backup) {
			if err := e.FS.Remove(backup); err != nil {
				return errs.Infrastructure(errs.ExitIOErr, "removing swap backup", err)
			}
		}
	}
	return nil
}

// Record is one swap entry's status (§4.4 swap status).
type Record struct {
	Rel    string
	In     bool
	Host   string
	Legacy bool
}

// Status enumerates every swap record reachable from vaultRoot.
func (e *Engine) Status(vaultRoot string) ([]Record, error) {
	root := vault.Vault{Root: vaultRoot}.SwapPath()
	if !e.FS.Exists(root) {
		return nil, nil
	}

	var records []Record
	err := e.FS.Walk(root, func(path string, info fsx.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir {
			return nil
		}
		name := info.Name
		if strings.HasSuffix(name, originalSuffix) {
			return nil
		}
		if isSentinelName(name) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		sentinels, err := e.sentinelsFor(vaultRoot, rel)
		if err != nil {
			return err
		}
		if len(sentinels) == 0 {
			records = append(records, Record{Rel: rel})
		} else {
			records = append(records, Record{Rel: rel, In: true, Host: sentinels[0].host, Legacy: sentinels[0].legacy})
		}
		return nil
	})
	if err != nil {
		return nil, errs.Infrastructure(errs.ExitIOErr, "walking swap tree", err)
	}
	return records, nil
}

func isSentinelName(name string) bool {
	if strings.HasSuffix(name, newSeparator+activeSuffix) {
		return true
	}
	if strings.HasSuffix(name, "."+activeSuffix) {
		return true
	}
	return false
}

// AnyActive reports whether any sentinel exists anywhere in the vault's
// swap tree, satisfying vault.SwapActiveChecker.
func (e *Engine) AnyActive(vaultRoot string) (host string, path string, active bool, err error) {
	root := vault.Vault{Root: vaultRoot}.SwapPath()
	if !e.FS.Exists(root) {
		return "", "", false, nil
	}

	walkErr := e.FS.Walk(root, func(p string, info fsx.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.IsDir || active {
			return nil
		}
		name := info.Name
		if !isSentinelName(name) {
			return nil
		}
		h, base, ok := parseSentinelName(name)
		if !ok {
			return nil
		}
		host = h
		path = filepath.Join(filepath.Dir(p), base)
		if rel, relErr := filepath.Rel(root, path); relErr == nil {
			path = rel
		}
		active = true
		return nil
	})
	if walkErr != nil {
		return "", "", false, errs.Infrastructure(errs.ExitIOErr, "scanning swap tree for active sentinels", walkErr)
	}
	return host, path, active, nil
}

func parseSentinelName(name string) (host, base string, ok bool) {
	if strings.HasSuffix(name, newSeparator+activeSuffix) {
		trimmed := strings.TrimSuffix(name, newSeparator+activeSuffix)
		idx := strings.LastIndex(trimmed, newSeparator)
		if idx < 0 {
			return "", "", false
		}
		return trimmed[idx+len(newSeparator):], trimmed[:idx], true
	}
	if strings.HasSuffix(name, "."+activeSuffix) {
		trimmed := strings.TrimSuffix(name, "."+activeSuffix)
		idx := strings.LastIndex(trimmed, ".")
		if idx < 0 {
			return "", "", false
		}
		return trimmed[idx+1:], trimmed[:idx], true
	}
	return "", "", false
}

// markSwapped sets or clears RSENV_SWAPPED=1 inside the vault's
// dot.envrc managed section (§4.4 step 5, §8 invariant 5).
func (e *Engine) markSwapped(vaultRoot string, swapped bool) error {
	envrcPath := vault.Vault{Root: vaultRoot}.EnvrcPath()
	data, err := e.FS.ReadFile(envrcPath)
	if err != nil {
		return errs.Infrastructure(errs.ExitIOErr, "reading vault dot.envrc", err)
	}
	meta, found, err := vault.ParseManagedSection(string(data))
	if err != nil {
		return errs.Application(errs.ExitDataErr, "malformed managed section", err)
	}
	if !found {
		return errs.Application(errs.ExitDataErr, "vault dot.envrc has no managed section", errs.ErrNotManagedEnvrc)
	}
	if meta.Swapped == swapped {
		return nil
	}
	meta.Swapped = swapped
	updated, err := vault.InjectManagedSection(string(data), meta)
	if err != nil {
		return errs.Application(errs.ExitDataErr, "updating managed section", err)
	}
	if err := e.FS.WriteFile(envrcPath, []byte(updated), 0o644); err != nil {
		return errs.Infrastructure(errs.ExitIOErr, "writing vault dot.envrc", err)
	}
	return nil
}

// AllOutResult is one project's outcome from AllOut.
type AllOutResult struct {
	ProjectRoot string
	SwappedOut  []string
	Err         error
}

// AllOut walks the immediate subdirectories of base, and for each bound
// project, swaps out every file currently IN on this host (§4.4 swap
// all-out). A failure on one project is recorded but does not stop the
// traversal.
func (e *Engine) AllOut(base string) ([]AllOutResult, error) {
	entries, err := e.FS.ReadDir(base)
	if err != nil {
		return nil, errs.Infrastructure(errs.ExitIOErr, fmt.Sprintf("listing %s", base), err)
	}

	binder := vault.New(e.FS)
	host, err := e.Hostname()
	if err != nil {
		return nil, errs.Infrastructure(errs.ExitIOErr, "determining hostname", err)
	}

	var results []AllOutResult
	for _, entry := range entries {
		if !entry.IsDir {
			continue
		}
		root := filepath.Join(base, entry.Name)
		proj, err := project.Locate(root)
		if err != nil {
			continue
		}
		binding, err := binder.Verify(proj)
		if err != nil {
			continue
		}

		records, err := e.Status(binding.Vault.Root)
		if err != nil {
			results = append(results, AllOutResult{ProjectRoot: proj.Root, Err: err})
			continue
		}

		res := AllOutResult{ProjectRoot: proj.Root}
		var outErr error
		for _, r := range records {
			if r.In && r.Host == host {
				if err := e.Out(proj.Root, binding.Vault.Root, r.Rel); err != nil {
					outErr = err
					continue
				}
				res.SwappedOut = append(res.SwappedOut, r.Rel)
			}
		}
		res.Err = outErr
		results = append(results, res)
	}
	return results, nil
}

func copyFile(fsys fsx.FS, src, dst string) error {
	data, err := fsys.ReadFile(src)
	if err != nil {
		return err
	}
	info, err := fsys.Stat(src)
	if err != nil {
		return err
	}
	if err := fsys.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return fsys.WriteFile(dst, data, info.Mode.Perm())
}
