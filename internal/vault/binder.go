// Package vault implements the Vault Binder (§4.1): creating, verifying,
// reconnecting, and dissolving the project↔vault binding described in
// §3's binding invariant.
package vault

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/sysid/rs-env/internal/errs"
	"github.com/sysid/rs-env/internal/fsx"
	"github.com/sysid/rs-env/internal/project"
)

// seedEnvs names the env files seeded with their RUN_ENV content (§4.1 step e).
var seedEnvs = []string{"local", "test", "int", "prod"}

// GuardRestorer is the narrow seam Binder.Reset uses to restore every
// guard record before dissolving the binding (§4.1). It is satisfied by
// guard.Engine without vault importing the guard package, keeping the
// dependency direction of §2 intact (the four core concerns depend on
// the Binder, not the reverse).
type GuardRestorer interface {
	ListRelPaths(projectRoot, vaultRoot string) ([]string, error)
	Restore(projectRoot, vaultRoot, relPath string) error
}

// SwapActiveChecker is the narrow seam Binder.Reset uses to refuse
// dissolving a binding while any swap record is IN (§4.1, §8 seed
// scenario 6). Satisfied by swap.Engine.
type SwapActiveChecker interface {
	AnyActive(vaultRoot string) (host string, path string, active bool, err error)
}

// Binder implements the Vault Binder component (§4.1).
type Binder struct {
	FS fsx.FS
}

// New returns a Binder using fs for all disk access.
func New(fs fsx.FS) *Binder {
	return &Binder{FS: fs}
}

// Binding is the resolved, verified state of a project↔vault pairing.
type Binding struct {
	Vault Vault
	Meta  Metadata
}

// Verify checks the binding invariant (§3) for proj and returns the
// resolved Binding if it holds. Any partial state is returned as an
// error — never silently repaired.
func (b *Binder) Verify(proj project.Project) (Binding, error) {
	envrcPath := proj.EnvrcPath()

	info, err := b.FS.Lstat(envrcPath)
	if err != nil {
		return Binding{}, errs.Application(errs.ExitDataErr, "project has no .envrc", errs.ErrNotBound)
	}
	if info.Mode&fs.ModeSymlink == 0 {
		return Binding{}, errs.Application(errs.ExitDataErr, ".envrc is not a symlink", errs.ErrPartialBinding)
	}

	target, err := b.FS.Readlink(envrcPath)
	if err != nil {
		return Binding{}, errs.Infrastructure(errs.ExitIOErr, "reading .envrc symlink target", err)
	}
	resolvedTarget := target
	if !filepath.IsAbs(resolvedTarget) {
		resolvedTarget = filepath.Join(filepath.Dir(envrcPath), resolvedTarget)
	}
	resolvedTarget = filepath.Clean(resolvedTarget)

	vaultRoot := filepath.Dir(resolvedTarget)
	if filepath.Base(resolvedTarget) != DotEnvrc {
		return Binding{}, errs.Application(errs.ExitDataErr, ".envrc does not resolve to a dot.envrc", errs.ErrPartialBinding)
	}

	vaultInfo, err := b.FS.Stat(vaultRoot)
	if err != nil || !vaultInfo.IsDir {
		return Binding{}, errs.Application(errs.ExitDataErr, "vault directory is missing", errs.ErrPartialBinding)
	}

	content, err := b.FS.ReadFile(resolvedTarget)
	if err != nil {
		return Binding{}, errs.Infrastructure(errs.ExitIOErr, "reading vault dot.envrc", err)
	}

	meta, found, err := ParseManagedSection(string(content))
	if err != nil {
		return Binding{}, errs.Application(errs.ExitDataErr, "malformed managed section", err)
	}
	if !found {
		return Binding{}, errs.Application(errs.ExitDataErr, "dot.envrc has no managed section", errs.ErrPartialBinding)
	}
	if meta.Sentinel == "" {
		return Binding{}, errs.Application(errs.ExitDataErr, "managed section missing sentinel", errs.ErrPartialBinding)
	}
	if meta.Sentinel != SentinelFromDirName(filepath.Base(vaultRoot)) {
		return Binding{}, errs.Application(errs.ExitDataErr, "sentinel mismatch between vault name and managed section", errs.ErrPartialBinding)
	}

	return Binding{Vault: Vault{Root: vaultRoot}, Meta: meta}, nil
}

// IsBound reports whether proj currently has a valid binding.
func (b *Binder) IsBound(proj project.Project) bool {
	_, err := b.Verify(proj)
	return err == nil
}

// Init creates a fresh vault for proj and binds it (§4.1). baseDir is the
// configured vault_base_dir. Every mutation is sequenced behind an undo
// stack so a failure at step N rolls back steps 1..N-1, mirroring the
// cleanup-function pattern used for sandboxed subprocess setup elsewhere
// in the retrieval pack.
func (b *Binder) Init(proj project.Project, baseDir string, style LinkStyle, now time.Time) (Binding, error) {
	if b.IsBound(proj) {
		return Binding{}, errs.Application(errs.ExitDataErr, "init refused", errs.ErrAlreadyBound)
	}

	sentinel, err := NewSentinel()
	if err != nil {
		return Binding{}, errs.Infrastructure(errs.ExitIOErr, "generating sentinel", err)
	}

	vaultRoot := filepath.Join(baseDir, DirName(proj.Name(), sentinel))
	v := Vault{Root: vaultRoot}

	var undo []func() error
	rollback := func() {
		for i := len(undo) - 1; i >= 0; i-- {
			_ = undo[i]()
		}
	}
	fail := func(code int, msg string, cause error) (Binding, error) {
		rollback()
		return Binding{}, errs.Infrastructure(code, msg, cause)
	}

	if err := b.FS.MkdirAll(vaultRoot, 0755); err != nil {
		return fail(errs.ExitIOErr, "creating vault root", err)
	}
	undo = append(undo, func() error { return b.FS.RemoveAll(vaultRoot) })

	for _, sub := range []string{EnvsDir, GuardedDir, SwapDir} {
		if err := b.FS.MkdirAll(v.PathIn(sub), 0755); err != nil {
			return fail(errs.ExitIOErr, fmt.Sprintf("creating vault/%s", sub), err)
		}
	}

	existingEnvrc := proj.EnvrcPath()
	var dotEnvrcBody string
	if info, err := b.FS.Lstat(existingEnvrc); err == nil && info.Mode&fs.ModeSymlink == 0 && !info.IsDir {
		data, err := b.FS.ReadFile(existingEnvrc)
		if err != nil {
			return fail(errs.ExitIOErr, "reading existing .envrc", err)
		}
		dotEnvrcBody = string(data)
		if err := b.FS.Remove(existingEnvrc); err != nil {
			return fail(errs.ExitIOErr, "moving existing .envrc into vault", err)
		}
		removedBody := dotEnvrcBody
		removedPath := existingEnvrc
		undo = append(undo, func() error { return b.FS.WriteFile(removedPath, []byte(removedBody), 0644) })
	}

	if err := b.FS.WriteFile(v.EnvrcPath(), []byte(dotEnvrcBody), 0644); err != nil {
		return fail(errs.ExitIOErr, "writing vault dot.envrc", err)
	}
	undo = append(undo, func() error { return b.FS.Remove(v.EnvrcPath()) })

	for _, name := range seedEnvs {
		p := v.PathIn(EnvsDir, name+".env")
		if b.FS.Exists(p) {
			continue
		}
		content := fmt.Sprintf("export RUN_ENV=%q\n", name)
		if err := b.FS.WriteFile(p, []byte(content), 0644); err != nil {
			return fail(errs.ExitIOErr, fmt.Sprintf("seeding envs/%s.env", name), err)
		}
		sp := p
		undo = append(undo, func() error { return b.FS.Remove(sp) })
	}

	meta := Metadata{
		ConfigRelative: style == StyleRelative,
		ConfigVersion:  2,
		Sentinel:       sentinel,
		Timestamp:      now.UTC().Format(time.RFC3339),
		SourceDir:      proj.Root,
		VaultPath:      vaultRoot,
	}
	injected, err := InjectManagedSection(dotEnvrcBody, meta)
	if err != nil {
		return fail(errs.ExitIOErr, "injecting managed section", err)
	}
	if err := b.FS.WriteFile(v.EnvrcPath(), []byte(injected), 0644); err != nil {
		return fail(errs.ExitIOErr, "writing managed dot.envrc", err)
	}

	symlinkTarget := v.EnvrcPath()
	if style == StyleRelative {
		rel, err := filepath.Rel(filepath.Dir(existingEnvrc), v.EnvrcPath())
		if err != nil {
			return fail(errs.ExitIOErr, "computing relative symlink target", err)
		}
		symlinkTarget = rel
	}
	if err := b.FS.Symlink(symlinkTarget, existingEnvrc); err != nil {
		return fail(errs.ExitIOErr, "creating project .envrc symlink", err)
	}

	return Binding{Vault: v, Meta: meta}, nil
}

// Reset dissolves proj's binding (§4.1). guard and swap are the narrow
// collaborators used to restore guarded files and check for active swaps
// before the binding is torn down; the vault directory itself is left on
// disk (§4.1: "The vault directory itself is not deleted").
func (b *Binder) Reset(proj project.Project, guard GuardRestorer, swap SwapActiveChecker) error {
	binding, err := b.Verify(proj)
	if err != nil {
		return err
	}
	v := binding.Vault

	relPaths, err := guard.ListRelPaths(proj.Root, v.Root)
	if err != nil {
		return errs.Infrastructure(errs.ExitIOErr, "listing guard records", err)
	}
	for _, rel := range relPaths {
		if err := guard.Restore(proj.Root, v.Root, rel); err != nil {
			return errs.Application(errs.ExitDataErr, fmt.Sprintf("restoring guarded file %s", rel), err)
		}
	}

	if host, path, active, err := swap.AnyActive(v.Root); err != nil {
		return errs.Infrastructure(errs.ExitIOErr, "checking swap state", err)
	} else if active {
		return errs.Application(errs.ExitDataErr,
			fmt.Sprintf("swap currently active on host %s for %s", host, path), errs.ErrSwapActive)
	}

	content, err := b.FS.ReadFile(v.EnvrcPath())
	if err != nil {
		return errs.Infrastructure(errs.ExitIOErr, "reading vault dot.envrc", err)
	}
	stripped, err := RemoveManagedSection(string(content))
	if err != nil {
		return errs.Application(errs.ExitDataErr, "removing managed section", err)
	}

	if err := b.FS.Remove(proj.EnvrcPath()); err != nil {
		return errs.Infrastructure(errs.ExitIOErr, "removing project .envrc symlink", err)
	}
	if err := b.FS.WriteFile(proj.EnvrcPath(), []byte(stripped), 0644); err != nil {
		return errs.Infrastructure(errs.ExitIOErr, "restoring project .envrc", err)
	}
	if err := b.FS.Remove(v.EnvrcPath()); err != nil {
		return errs.Infrastructure(errs.ExitIOErr, "removing vault dot.envrc", err)
	}

	return nil
}

// Reconnect creates only the project .envrc symlink, pointing at
// vaultEnvrcPath, after verifying the target is a well-formed dot.envrc
// (§4.1).
func (b *Binder) Reconnect(proj project.Project, vaultEnvrcPath string, style LinkStyle) error {
	content, err := b.FS.ReadFile(vaultEnvrcPath)
	if err != nil {
		return errs.Infrastructure(errs.ExitIOErr, "reading vault dot.envrc", err)
	}
	if filepath.Base(vaultEnvrcPath) != DotEnvrc {
		return errs.Application(errs.ExitDataErr, "reconnect target is not named dot.envrc", errs.ErrPartialBinding)
	}
	_, found, err := ParseManagedSection(string(content))
	if err != nil {
		return errs.Application(errs.ExitDataErr, "reconnect target has a malformed managed section", err)
	}
	if !found {
		return errs.Application(errs.ExitDataErr, "reconnect target has no managed section", errs.ErrPartialBinding)
	}

	envrcPath := proj.EnvrcPath()
	if b.FS.Exists(envrcPath) {
		return errs.Application(errs.ExitDataErr, "project already has a .envrc", errs.ErrAlreadyBound)
	}

	target := vaultEnvrcPath
	if style == StyleRelative {
		rel, err := filepath.Rel(filepath.Dir(envrcPath), vaultEnvrcPath)
		if err != nil {
			return errs.Infrastructure(errs.ExitIOErr, "computing relative symlink target", err)
		}
		target = rel
	}
	if err := b.FS.Symlink(target, envrcPath); err != nil {
		return errs.Infrastructure(errs.ExitIOErr, "creating project .envrc symlink", err)
	}
	return nil
}

// Info is the structured status Binder.InfoFor returns (§4.1).
type Info struct {
	Bound        bool
	VaultPath    string
	Sentinel     string
	Timestamp    string
	GuardedCount int
	SwapCount    int
	Violation    string
}

// InfoFor reports the binding status of proj, including any invariant
// violation detected along the way (§4.1). guardCount/swapCount are
// supplied by the caller (Guard.List / Swap.Status) when the binding is
// valid; they are left at zero otherwise.
func (b *Binder) InfoFor(proj project.Project, guardCount, swapCount int) Info {
	binding, err := b.Verify(proj)
	if err != nil {
		violation := err.Error()
		return Info{Bound: false, Violation: violation}
	}
	return Info{
		Bound:        true,
		VaultPath:    binding.Vault.Root,
		Sentinel:     binding.Meta.Sentinel,
		Timestamp:    binding.Meta.Timestamp,
		GuardedCount: guardCount,
		SwapCount:    swapCount,
	}
}
