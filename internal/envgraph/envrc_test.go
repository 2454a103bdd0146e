package envgraph

import (
	"os"
	"strings"
	"testing"

	"github.com/sysid/rs-env/internal/vault"
)

func TestFormatFilesJoinsWithTrailingNewline(t *testing.T) {
	got := FormatFiles([]string{"/a/base.env", "/a/leaf.env"})
	if got != "/a/base.env\n/a/leaf.env\n" {
		t.Errorf("FormatFiles = %q", got)
	}
}

func TestFormatFilesEmpty(t *testing.T) {
	if got := FormatFiles(nil); got != "" {
		t.Errorf("FormatFiles(nil) = %q, want empty string", got)
	}
}

func TestWriteEnvrcInjectsVarsBlock(t *testing.T) {
	dir := t.TempDir()
	leaf := writeFile(t, dir, "leaf.env", "export A=1\nexport B=2\n")

	envrcPath := dir + "/dot.envrc"
	managed := vault.RenderManagedSection(vault.Metadata{
		ConfigVersion: 2,
		Sentinel:      "a1b2c3d4",
		Timestamp:     "2026-07-31T00:00:00Z",
		SourceDir:     "/projects/app",
		VaultPath:     envrcPath,
	})
	if err := os.WriteFile(envrcPath, []byte(managed), 0o644); err != nil {
		t.Fatalf("writing dot.envrc: %v", err)
	}

	if err := WriteEnvrc(leaf, envrcPath); err != nil {
		t.Fatalf("WriteEnvrc: %v", err)
	}

	data, err := os.ReadFile(envrcPath)
	if err != nil {
		t.Fatalf("reading dot.envrc: %v", err)
	}
	if !strings.Contains(string(data), "export A=1") || !strings.Contains(string(data), "export B=2") {
		t.Errorf("expected merged bindings in dot.envrc, got:\n%s", data)
	}
}

func TestWriteEnvrcIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	leaf := writeFile(t, dir, "leaf.env", "export A=1\n")

	envrcPath := dir + "/dot.envrc"
	managed := vault.RenderManagedSection(vault.Metadata{
		ConfigVersion: 2,
		Sentinel:      "a1b2c3d4",
		Timestamp:     "2026-07-31T00:00:00Z",
		SourceDir:     "/projects/app",
		VaultPath:     envrcPath,
	})
	if err := os.WriteFile(envrcPath, []byte(managed), 0o644); err != nil {
		t.Fatalf("writing dot.envrc: %v", err)
	}

	if err := WriteEnvrc(leaf, envrcPath); err != nil {
		t.Fatalf("WriteEnvrc (first): %v", err)
	}
	first, err := os.ReadFile(envrcPath)
	if err != nil {
		t.Fatalf("reading after first write: %v", err)
	}

	if err := WriteEnvrc(leaf, envrcPath); err != nil {
		t.Fatalf("WriteEnvrc (second): %v", err)
	}
	second, err := os.ReadFile(envrcPath)
	if err != nil {
		t.Fatalf("reading after second write: %v", err)
	}

	if string(first) != string(second) {
		t.Errorf("WriteEnvrc is not idempotent:\nfirst:\n%s\nsecond:\n%s", first, second)
	}
}
