// Package sops implements the SOPS Wrapper & gitignore Update (§4.5): it
// identifies candidate files, shells out to the external sops binary for
// the actual cryptographic transform, and maintains the vault's
// .gitignore managed block. The encryption transform itself is an
// external collaborator — this package owns only the wrapper's contract.
package sops

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sysid/rs-env/internal/config"
	"github.com/sysid/rs-env/internal/errs"
	"github.com/sysid/rs-env/internal/fsx"
)

// PoolSize bounds the number of concurrent per-file SOPS invocations
// (§5: "bounded pool, default size 8").
const PoolSize = 8

// Runner invokes the external sops process. The default implementation
// shells out via os/exec; tests substitute a fake.
type Runner interface {
	Encrypt(ctx context.Context, plainPath, encPath, inputType string) error
	Decrypt(ctx context.Context, encPath, plainPath string) error
}

// ExecRunner is the os/exec-backed default Runner.
type ExecRunner struct {
	Binary string // defaults to "sops" via NewExecRunner
}

// NewExecRunner returns an ExecRunner invoking the "sops" binary on PATH.
func NewExecRunner() *ExecRunner { return &ExecRunner{Binary: "sops"} }

func (r *ExecRunner) Encrypt(ctx context.Context, plainPath, encPath, inputType string) error {
	args := []string{"--input-type", inputType, "-e", plainPath}
	cmd := exec.CommandContext(ctx, r.Binary, args...)
	out, err := cmd.Output()
	if err != nil {
		return fmt.Errorf("sops encrypt %s: %w", plainPath, err)
	}
	return os.WriteFile(encPath, out, 0o644)
}

func (r *ExecRunner) Decrypt(ctx context.Context, encPath, plainPath string) error {
	cmd := exec.CommandContext(ctx, r.Binary, "-d", encPath)
	out, err := cmd.Output()
	if err != nil {
		return fmt.Errorf("sops decrypt %s: %w", encPath, err)
	}
	return os.WriteFile(plainPath, out, 0o644)
}

// Wrapper is the SOPS Wrapper component. VaultRoot locates the
// .gitignore the managed block lives in (§4.5); it is independent of
// whichever directory a given Encrypt/Decrypt/Clean call targets.
type Wrapper struct {
	FS        fsx.FS
	SOPS      config.SOPS
	Runner    Runner
	VaultRoot string
}

// New returns a Wrapper using the exec-backed default Runner.
func New(fs fsx.FS, cfg config.SOPS, vaultRoot string) *Wrapper {
	return &Wrapper{FS: fs, SOPS: cfg, Runner: NewExecRunner(), VaultRoot: vaultRoot}
}

func inputTypeFor(name string) string {
	switch filepath.Ext(name) {
	case ".env", ".envrc":
		return "dotenv"
	}
	if name == ".envrc" {
		return "dotenv"
	}
	return "binary"
}

// candidateRule reports whether name matches the configured extension or
// exact-name encrypt rules (§4.5), independent of whether name currently
// exists as a plaintext file on disk.
func (w *Wrapper) candidateRule(name string) bool {
	for _, e := range w.SOPS.FileExtensionsEnc {
		if filepath.Ext(name) == "."+strings.TrimPrefix(e, ".") {
			return true
		}
	}
	for _, n := range w.SOPS.FileNamesEnc {
		if name == n {
			return true
		}
	}
	return false
}

// candidates lists plaintext files in dir matching the configured
// extension or exact-name rules.
func (w *Wrapper) candidates(dir string) ([]string, error) {
	entries, err := w.FS.ReadDir(dir)
	if err != nil {
		return nil, errs.Infrastructure(errs.ExitNoInput, fmt.Sprintf("listing %s", dir), err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir {
			continue
		}
		if w.candidateRule(e.Name) {
			out = append(out, e.Name)
		}
	}
	sort.Strings(out)
	return out, nil
}

// FileResult is one file's outcome from a batch operation.
type FileResult struct {
	Name string
	Err  error
}

// Encrypt runs encrypt(dir) (§4.5): every plaintext candidate without a
// `.enc` sibling is encrypted, up to PoolSize files concurrently. Per-file
// failure is reported but does not stop the batch.
func (w *Wrapper) Encrypt(ctx context.Context, dir string) ([]FileResult, error) {
	names, err := w.candidates(dir)
	if err != nil {
		return nil, err
	}

	var pending []string
	for _, name := range names {
		if !w.FS.Exists(filepath.Join(dir, name+".enc")) {
			pending = append(pending, name)
		}
	}

	results := w.runBatch(pending, func(name string) error {
		plain := filepath.Join(dir, name)
		enc := plain + ".enc"
		return w.Runner.Encrypt(ctx, plain, enc, inputTypeFor(name))
	})

	if err := w.updateGitignore(dir); err != nil {
		return results, err
	}
	return results, nil
}

// Decrypt runs decrypt(dir) (§4.5): every `.enc` file is decrypted back
// to its plaintext sibling.
func (w *Wrapper) Decrypt(ctx context.Context, dir string) ([]FileResult, error) {
	entries, err := w.FS.ReadDir(dir)
	if err != nil {
		return nil, errs.Infrastructure(errs.ExitNoInput, fmt.Sprintf("listing %s", dir), err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir && strings.HasSuffix(e.Name, ".enc") {
			names = append(names, e.Name)
		}
	}
	sort.Strings(names)

	return w.runBatch(names, func(name string) error {
		enc := filepath.Join(dir, name)
		plain := filepath.Join(dir, strings.TrimSuffix(name, ".enc"))
		return w.Runner.Decrypt(ctx, enc, plain)
	}), nil
}

// Clean removes plaintext siblings of existing .enc files (§4.5 clean).
func (w *Wrapper) Clean(dir string) ([]FileResult, error) {
	entries, err := w.FS.ReadDir(dir)
	if err != nil {
		return nil, errs.Infrastructure(errs.ExitNoInput, fmt.Sprintf("listing %s", dir), err)
	}
	var results []FileResult
	for _, e := range entries {
		if e.IsDir || !strings.HasSuffix(e.Name, ".enc") {
			continue
		}
		plain := filepath.Join(dir, strings.TrimSuffix(e.Name, ".enc"))
		if !w.FS.Exists(plain) {
			continue
		}
		if err := w.FS.Remove(plain); err != nil {
			results = append(results, FileResult{Name: e.Name, Err: err})
			continue
		}
		results = append(results, FileResult{Name: e.Name})
	}
	return results, nil
}

// Bucket is a status(dir) category (§4.5).
type Bucket string

const (
	BucketCurrent        Bucket = "current"
	BucketStale          Bucket = "stale"
	BucketPendingEncrypt Bucket = "pending_encrypt"
	BucketOrphaned       Bucket = "orphaned"
)

// StatusEntry is one candidate's reported bucket.
type StatusEntry struct {
	Name   string
	Bucket Bucket
}

// Status reports status(dir): every candidate's bucket (§4.5).
func (w *Wrapper) Status(dir string) ([]StatusEntry, error) {
	plainNames, err := w.candidates(dir)
	if err != nil {
		return nil, err
	}
	entries, err := w.FS.ReadDir(dir)
	if err != nil {
		return nil, errs.Infrastructure(errs.ExitNoInput, fmt.Sprintf("listing %s", dir), err)
	}
	encSet := map[string]bool{}
	for _, e := range entries {
		if !e.IsDir && strings.HasSuffix(e.Name, ".enc") {
			encSet[e.Name] = true
		}
	}
	plainSet := map[string]bool{}
	for _, n := range plainNames {
		plainSet[n] = true
	}

	seen := map[string]bool{}
	var out []StatusEntry
	for _, name := range plainNames {
		seen[name] = true
		encName := name + ".enc"
		if !encSet[encName] {
			out = append(out, StatusEntry{Name: name, Bucket: BucketPendingEncrypt})
			continue
		}
		plainT, errP := w.modTime(dir, name)
		encT, errE := w.modTime(dir, encName)
		if errP != nil || errE != nil {
			continue
		}
		if plainT.After(encT) {
			out = append(out, StatusEntry{Name: name, Bucket: BucketStale})
		} else {
			out = append(out, StatusEntry{Name: name, Bucket: BucketCurrent})
		}
	}
	for encName := range encSet {
		name := strings.TrimSuffix(encName, ".enc")
		if seen[name] {
			continue
		}
		if plainSet[name] {
			continue
		}
		// Plaintext is absent. §4.5: current when the .enc sibling exists
		// and "the plaintext is absent" *and* name is still a configured
		// candidate (the normal encrypt-then-clean steady state); orphaned
		// only when name matches no configured extension/name rule at all.
		if w.candidateRule(name) {
			out = append(out, StatusEntry{Name: name, Bucket: BucketCurrent})
		} else {
			out = append(out, StatusEntry{Name: name, Bucket: BucketOrphaned})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (w *Wrapper) modTime(dir, name string) (time.Time, error) {
	info, err := w.FS.Stat(filepath.Join(dir, name))
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime, nil
}

// runBatch runs fn over names with up to PoolSize goroutines concurrently
// (§5), collecting one FileResult per name regardless of failure.
func (w *Wrapper) runBatch(names []string, fn func(name string) error) []FileResult {
	results := make([]FileResult, len(names))
	sem := make(chan struct{}, PoolSize)
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, name string) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = FileResult{Name: name, Err: fn(name)}
		}(i, name)
	}
	wg.Wait()
	return results
}
