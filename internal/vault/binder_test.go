package vault

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sysid/rs-env/internal/errs"
	"github.com/sysid/rs-env/internal/fsx"
	"github.com/sysid/rs-env/internal/project"
)

type noGuardRecords struct{}

func (noGuardRecords) ListRelPaths(projectRoot, vaultRoot string) ([]string, error) { return nil, nil }
func (noGuardRecords) Restore(projectRoot, vaultRoot, relPath string) error          { return nil }

type noActiveSwaps struct{}

func (noActiveSwaps) AnyActive(vaultRoot string) (string, string, bool, error) {
	return "", "", false, nil
}

type alwaysActiveSwaps struct{}

func (alwaysActiveSwaps) AnyActive(vaultRoot string) (string, string, bool, error) {
	return "otherhost", "local.env", true, nil
}

func newProject(t *testing.T) project.Project {
	t.Helper()
	root := t.TempDir()
	proj, err := project.Locate(root)
	if err != nil {
		t.Fatalf("project.Locate: %v", err)
	}
	return proj
}

func TestInitCreatesBindingAndVaultLayout(t *testing.T) {
	fs := fsx.NewOS()
	proj := newProject(t)
	baseDir := t.TempDir()
	b := New(fs)

	binding, err := b.Init(proj, baseDir, StyleRelative, time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	for _, sub := range []string{EnvsDir, GuardedDir, SwapDir} {
		if info, err := os.Stat(binding.Vault.PathIn(sub)); err != nil || !info.IsDir() {
			t.Errorf("expected vault/%s to be a directory: %v", sub, err)
		}
	}
	for _, seed := range []string{"local.env", "test.env", "int.env", "prod.env"} {
		if _, err := os.Stat(binding.Vault.PathIn(EnvsDir, seed)); err != nil {
			t.Errorf("expected seeded %s: %v", seed, err)
		}
	}

	target, err := os.Readlink(proj.EnvrcPath())
	if err != nil {
		t.Fatalf("Readlink: %v", err)
	}
	if filepath.IsAbs(target) {
		t.Errorf("expected a relative symlink target, got %q", target)
	}
}

func TestInitRefusesDoubleInit(t *testing.T) {
	fs := fsx.NewOS()
	proj := newProject(t)
	baseDir := t.TempDir()
	b := New(fs)

	if _, err := b.Init(proj, baseDir, StyleRelative, time.Now()); err != nil {
		t.Fatalf("first Init: %v", err)
	}
	_, err := b.Init(proj, baseDir, StyleRelative, time.Now())
	if !errors.Is(err, errs.ErrAlreadyBound) {
		t.Fatalf("second Init: expected ErrAlreadyBound, got %v", err)
	}
}

func TestInitPreservesExistingEnvrcContent(t *testing.T) {
	fs := fsx.NewOS()
	proj := newProject(t)
	baseDir := t.TempDir()
	if err := os.WriteFile(proj.EnvrcPath(), []byte("export LEGACY=1\n"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	b := New(fs)
	binding, err := b.Init(proj, baseDir, StyleRelative, time.Now())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	data, err := os.ReadFile(binding.Vault.EnvrcPath())
	if err != nil {
		t.Fatalf("reading vault dot.envrc: %v", err)
	}
	if !containsLine(string(data), "export LEGACY=1") {
		t.Errorf("expected prior .envrc content to survive inside the vault dot.envrc, got:\n%s", data)
	}
}

func containsLine(content, line string) bool {
	for _, l := range splitLines(content) {
		if l == line {
			return true
		}
	}
	return false
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i, c := range s {
		if c == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

func TestVerifyRoundTripsWithInit(t *testing.T) {
	fs := fsx.NewOS()
	proj := newProject(t)
	baseDir := t.TempDir()
	b := New(fs)

	binding, err := b.Init(proj, baseDir, StyleRelative, time.Now())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	verified, err := b.Verify(proj)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if verified.Vault.Root != binding.Vault.Root {
		t.Errorf("Verify Vault.Root = %q, want %q", verified.Vault.Root, binding.Vault.Root)
	}
	if !b.IsBound(proj) {
		t.Error("IsBound should be true after Init")
	}
}

func TestVerifyFailsForUnboundProject(t *testing.T) {
	b := New(fsx.NewOS())
	proj := newProject(t)
	if _, err := b.Verify(proj); !errors.Is(err, errs.ErrNotBound) {
		t.Fatalf("expected ErrNotBound, got %v", err)
	}
	if b.IsBound(proj) {
		t.Error("IsBound should be false for an unbound project")
	}
}

func TestResetRestoresOriginalEnvrcAndLeavesVaultDir(t *testing.T) {
	fs := fsx.NewOS()
	proj := newProject(t)
	baseDir := t.TempDir()
	if err := os.WriteFile(proj.EnvrcPath(), []byte("export LEGACY=1\n"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	b := New(fs)
	binding, err := b.Init(proj, baseDir, StyleRelative, time.Now())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	if err := b.Reset(proj, noGuardRecords{}, noActiveSwaps{}); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	info, err := os.Lstat(proj.EnvrcPath())
	if err != nil {
		t.Fatalf("Lstat after reset: %v", err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		t.Error("project .envrc should be a plain file after reset, not a symlink")
	}
	data, err := os.ReadFile(proj.EnvrcPath())
	if err != nil {
		t.Fatalf("reading restored .envrc: %v", err)
	}
	if !containsLine(string(data), "export LEGACY=1") {
		t.Errorf("expected restored .envrc to contain prior content, got:\n%s", data)
	}
	if _, err := os.Stat(binding.Vault.Root); err != nil {
		t.Error("the vault directory itself should not be deleted by Reset")
	}
}

func TestResetRefusesWhileSwapActive(t *testing.T) {
	fs := fsx.NewOS()
	proj := newProject(t)
	baseDir := t.TempDir()
	b := New(fs)
	if _, err := b.Init(proj, baseDir, StyleRelative, time.Now()); err != nil {
		t.Fatalf("Init: %v", err)
	}

	err := b.Reset(proj, noGuardRecords{}, alwaysActiveSwaps{})
	if !errors.Is(err, errs.ErrSwapActive) {
		t.Fatalf("expected ErrSwapActive, got %v", err)
	}
}

func TestReconnectRecreatesSymlink(t *testing.T) {
	fs := fsx.NewOS()
	proj := newProject(t)
	baseDir := t.TempDir()
	b := New(fs)

	binding, err := b.Init(proj, baseDir, StyleRelative, time.Now())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := os.Remove(proj.EnvrcPath()); err != nil {
		t.Fatalf("removing symlink: %v", err)
	}

	if err := b.Reconnect(proj, binding.Vault.EnvrcPath(), StyleAbsolute); err != nil {
		t.Fatalf("Reconnect: %v", err)
	}
	if _, err := b.Verify(proj); err != nil {
		t.Fatalf("Verify after Reconnect: %v", err)
	}
}

func TestReconnectRefusesWhenEnvrcAlreadyExists(t *testing.T) {
	fs := fsx.NewOS()
	proj := newProject(t)
	baseDir := t.TempDir()
	b := New(fs)

	binding, err := b.Init(proj, baseDir, StyleRelative, time.Now())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	err = b.Reconnect(proj, binding.Vault.EnvrcPath(), StyleAbsolute)
	if !errors.Is(err, errs.ErrAlreadyBound) {
		t.Fatalf("expected ErrAlreadyBound, got %v", err)
	}
}
