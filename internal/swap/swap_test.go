package swap

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sysid/rs-env/internal/errs"
	"github.com/sysid/rs-env/internal/fsx"
	"github.com/sysid/rs-env/internal/project"
	"github.com/sysid/rs-env/internal/vault"
)

func hostnameFunc(name string) func() (string, error) {
	return func() (string, error) { return name, nil }
}

func seedVaultEnvrc(fs fsx.FS, vaultRoot string) {
	fs.MkdirAll(vaultRoot, 0o755)
	managed := vault.RenderManagedSection(vault.Metadata{
		ConfigVersion: 2,
		Sentinel:      "a1b2c3d4",
		Timestamp:     "2026-07-31T00:00:00Z",
		SourceDir:     "/project",
		VaultPath:     vault.Vault{Root: vaultRoot}.EnvrcPath(),
	})
	fs.WriteFile(vault.Vault{Root: vaultRoot}.EnvrcPath(), []byte(managed), 0o644)
}

func TestInitSeedsSwapFromExistingProjectFile(t *testing.T) {
	fs := fsx.NewMemory()
	fs.WriteFile("/project/app.yml", []byte("original"), 0o644)
	e := New(fs)
	e.Hostname = hostnameFunc("hostX")

	if err := e.Init("/project", "/vault", "app.yml"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if fs.Exists("/project/app.yml") {
		t.Error("expected the project file to be moved into the swap tree")
	}
	data, err := fs.ReadFile("/vault/swap/app.yml")
	if err != nil || string(data) != "original" {
		t.Errorf("swap/app.yml = %q, %v", data, err)
	}
}

func TestInitRefusesWhenSwapAlreadyExists(t *testing.T) {
	fs := fsx.NewMemory()
	fs.WriteFile("/vault/swap/app.yml", []byte("x"), 0o644)
	e := New(fs)
	err := e.Init("/project", "/vault", "app.yml")
	if !errors.Is(err, errs.ErrSwapConflict) {
		t.Fatalf("expected ErrSwapConflict, got %v", err)
	}
}

func TestInWithoutExistingSwapFails(t *testing.T) {
	fs := fsx.NewMemory()
	e := New(fs)
	e.Hostname = hostnameFunc("hostX")
	if err := e.In("/project", "/vault", "app.yml", false); err == nil {
		t.Fatal("expected an error when swap/app.yml has not been initialised")
	}
}

func TestInBacksUpAndOverlaysThenMarksSwapped(t *testing.T) {
	fs := fsx.NewMemory()
	fs.WriteFile("/project/app.yml", []byte("current"), 0o644)
	fs.WriteFile("/vault/swap/app.yml", []byte("alternate"), 0o644)
	seedVaultEnvrc(fs, "/vault")

	e := New(fs)
	e.Hostname = hostnameFunc("hostX")

	if err := e.In("/project", "/vault", "app.yml", false); err != nil {
		t.Fatalf("In: %v", err)
	}

	data, err := fs.ReadFile("/project/app.yml")
	if err != nil || string(data) != "alternate" {
		t.Errorf("project app.yml = %q, %v, want the swapped-in alternate content", data, err)
	}
	backup, err := fs.ReadFile("/vault/swap/app.yml.rsenv_original")
	if err != nil || string(backup) != "current" {
		t.Errorf("backup = %q, %v, want the original content preserved", backup, err)
	}
	if !fs.Exists("/vault/swap/app.yml@@hostX@@rsenv_active") {
		t.Error("expected a sentinel naming hostX")
	}

	envrcData, _ := fs.ReadFile(vault.Vault{Root: "/vault"}.EnvrcPath())
	meta, found, err := vault.ParseManagedSection(string(envrcData))
	if err != nil || !found {
		t.Fatalf("parsing managed section after In: found=%v err=%v", found, err)
	}
	if !meta.Swapped {
		t.Error("expected RSENV_SWAPPED to be set after a successful swap in")
	}
}

func TestInRefusesAnotherHostsSentinelWithoutForce(t *testing.T) {
	fs := fsx.NewMemory()
	fs.WriteFile("/project/app.yml", []byte("current"), 0o644)
	fs.WriteFile("/vault/swap/app.yml", []byte("alternate"), 0o644)
	fs.WriteFile("/vault/swap/app.yml@@hostX@@rsenv_active", nil, 0o644)
	seedVaultEnvrc(fs, "/vault")

	e := New(fs)
	e.Hostname = hostnameFunc("hostY")

	err := e.In("/project", "/vault", "app.yml", false)
	if !errors.Is(err, errs.ErrSwapConflict) {
		t.Fatalf("expected ErrSwapConflict, got %v", err)
	}
	data, readErr := fs.ReadFile("/project/app.yml")
	if readErr != nil || string(data) != "current" {
		t.Errorf("project file should be unchanged after a refused swap in, got %q, %v", data, readErr)
	}
}

func TestInWithForceTakesOverSentinel(t *testing.T) {
	fs := fsx.NewMemory()
	fs.WriteFile("/project/app.yml", []byte("current"), 0o644)
	fs.WriteFile("/vault/swap/app.yml", []byte("alternate"), 0o644)
	fs.WriteFile("/vault/swap/app.yml@@hostX@@rsenv_active", nil, 0o644)
	seedVaultEnvrc(fs, "/vault")

	e := New(fs)
	e.Hostname = hostnameFunc("hostY")

	if err := e.In("/project", "/vault", "app.yml", true); err != nil {
		t.Fatalf("In with force: %v", err)
	}
	if fs.Exists("/vault/swap/app.yml@@hostX@@rsenv_active") {
		t.Error("expected the stale sentinel for hostX to be removed")
	}
	if !fs.Exists("/vault/swap/app.yml@@hostY@@rsenv_active") {
		t.Error("expected a new sentinel naming hostY")
	}
}

func TestOutRestoresOriginalAndClearsSentinel(t *testing.T) {
	fs := fsx.NewMemory()
	fs.WriteFile("/project/app.yml", []byte("current"), 0o644)
	fs.WriteFile("/vault/swap/app.yml", []byte("alternate"), 0o644)
	seedVaultEnvrc(fs, "/vault")

	e := New(fs)
	e.Hostname = hostnameFunc("hostX")
	if err := e.In("/project", "/vault", "app.yml", false); err != nil {
		t.Fatalf("In: %v", err)
	}

	if err := e.Out("/project", "/vault", "app.yml"); err != nil {
		t.Fatalf("Out: %v", err)
	}

	data, err := fs.ReadFile("/project/app.yml")
	if err != nil || string(data) != "current" {
		t.Errorf("project app.yml = %q, %v, want the original restored", data, err)
	}
	if fs.Exists("/vault/swap/app.yml@@hostX@@rsenv_active") {
		t.Error("expected the sentinel to be removed")
	}
	envrcData, _ := fs.ReadFile(vault.Vault{Root: "/vault"}.EnvrcPath())
	meta, _, _ := vault.ParseManagedSection(string(envrcData))
	if meta.Swapped {
		t.Error("expected RSENV_SWAPPED to be cleared once no sentinel remains active")
	}
}

func TestOutWithoutSentinelForThisHostFails(t *testing.T) {
	fs := fsx.NewMemory()
	e := New(fs)
	e.Hostname = hostnameFunc("hostX")
	if err := e.Out("/project", "/vault", "app.yml"); err == nil {
		t.Fatal("expected an error when there is no swap-in for this host")
	}
}

func TestDeleteRefusesWhileActive(t *testing.T) {
	fs := fsx.NewMemory()
	fs.WriteFile("/vault/swap/app.yml", []byte("alternate"), 0o644)
	fs.WriteFile("/vault/swap/app.yml@@hostX@@rsenv_active", nil, 0o644)
	e := New(fs)

	err := e.Delete("/vault", []string{"app.yml"})
	if !errors.Is(err, errs.ErrSwapActive) {
		t.Fatalf("expected ErrSwapActive, got %v", err)
	}
}

func TestDeleteRemovesRecordWhenInactive(t *testing.T) {
	fs := fsx.NewMemory()
	fs.WriteFile("/vault/swap/app.yml", []byte("alternate"), 0o644)
	e := New(fs)

	if err := e.Delete("/vault", []string{"app.yml"}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if fs.Exists("/vault/swap/app.yml") {
		t.Error("expected swap/app.yml to be gone")
	}
}

func TestDeleteBatchIsAllOrNothing(t *testing.T) {
	fs := fsx.NewMemory()
	fs.WriteFile("/vault/swap/app.yml", []byte("alternate"), 0o644)
	fs.WriteFile("/vault/swap/other.yml", []byte("alternate"), 0o644)
	fs.WriteFile("/vault/swap/other.yml@@hostX@@rsenv_active", nil, 0o644)
	e := New(fs)

	err := e.Delete("/vault", []string{"app.yml", "other.yml"})
	if !errors.Is(err, errs.ErrSwapActive) {
		t.Fatalf("expected ErrSwapActive, got %v", err)
	}
	if !fs.Exists("/vault/swap/app.yml") {
		t.Error("app.yml should be untouched when a later path in the batch fails validation")
	}
}

func TestStatusReportsInAndOutRecords(t *testing.T) {
	fs := fsx.NewMemory()
	fs.WriteFile("/vault/swap/app.yml", []byte("a"), 0o644)
	fs.WriteFile("/vault/swap/other.yml", []byte("b"), 0o644)
	fs.WriteFile("/vault/swap/app.yml@@hostX@@rsenv_active", nil, 0o644)
	e := New(fs)

	records, err := e.Status("/vault")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	byRel := map[string]Record{}
	for _, r := range records {
		byRel[r.Rel] = r
	}
	if !byRel["app.yml"].In || byRel["app.yml"].Host != "hostX" {
		t.Errorf("app.yml record = %+v, want In with hostX", byRel["app.yml"])
	}
	if byRel["other.yml"].In {
		t.Errorf("other.yml record = %+v, want not In", byRel["other.yml"])
	}
}

func TestAnyActiveReportsMultiHostSentinel(t *testing.T) {
	fs := fsx.NewMemory()
	fs.WriteFile("/vault/swap/app.yml", []byte("a"), 0o644)
	fs.WriteFile("/vault/swap/app.yml@@hostX@@rsenv_active", nil, 0o644)
	e := New(fs)

	host, path, active, err := e.AnyActive("/vault")
	if err != nil {
		t.Fatalf("AnyActive: %v", err)
	}
	if !active || host != "hostX" || path != "app.yml" {
		t.Errorf("AnyActive() = %q, %q, %v, want hostX, app.yml, true", host, path, active)
	}
}

func TestAllOutSwapsOutEveryBoundProjectOnThisHost(t *testing.T) {
	fs := fsx.NewOS()
	base := t.TempDir()
	projRoot := filepath.Join(base, "proj1")
	if err := os.MkdirAll(projRoot, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(projRoot, "app.yml"), []byte("current"), 0o644); err != nil {
		t.Fatalf("seed app.yml: %v", err)
	}

	proj, err := project.Locate(projRoot)
	if err != nil {
		t.Fatalf("project.Locate: %v", err)
	}
	vaultBase := t.TempDir()
	binder := vault.New(fs)
	binding, err := binder.Init(proj, vaultBase, vault.StyleRelative, time.Now())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	if err := os.WriteFile(filepath.Join(binding.Vault.SwapPath(), "app.yml"), []byte("alternate"), 0o644); err != nil {
		t.Fatalf("seeding swap/app.yml: %v", err)
	}

	e := New(fs)
	e.Hostname = hostnameFunc("hostX")
	if err := e.In(proj.Root, binding.Vault.Root, "app.yml", false); err != nil {
		t.Fatalf("In: %v", err)
	}

	results, err := e.AllOut(base)
	if err != nil {
		t.Fatalf("AllOut: %v", err)
	}
	if len(results) != 1 || len(results[0].SwappedOut) != 1 || results[0].SwappedOut[0] != "app.yml" {
		t.Fatalf("AllOut() = %+v, want one result swapping out app.yml", results)
	}

	data, err := os.ReadFile(filepath.Join(projRoot, "app.yml"))
	if err != nil || string(data) != "current" {
		t.Errorf("project app.yml after AllOut = %q, %v, want the original restored", data, err)
	}
}
