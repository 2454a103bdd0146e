package vault

import (
	"errors"
	"strings"
	"testing"

	"github.com/sysid/rs-env/internal/errs"
)

func sampleMeta() Metadata {
	return Metadata{
		ConfigRelative: true,
		ConfigVersion:  2,
		Sentinel:       "a1b2c3d4",
		Timestamp:      "2026-07-31T00:00:00Z",
		SourceDir:      "/projects/app",
		VaultPath:      "/vaults/app-a1b2c3d4/dot.envrc",
	}
}

func TestRenderThenParseRoundTrips(t *testing.T) {
	meta := sampleMeta()
	rendered := RenderManagedSection(meta)

	got, found, err := ParseManagedSection(rendered)
	if err != nil {
		t.Fatalf("ParseManagedSection: %v", err)
	}
	if !found {
		t.Fatal("expected a managed section to be found")
	}
	if got.Sentinel != meta.Sentinel || got.ConfigVersion != meta.ConfigVersion ||
		got.ConfigRelative != meta.ConfigRelative || got.SourceDir != meta.SourceDir {
		t.Errorf("round-tripped metadata = %+v, want %+v", got, meta)
	}
}

func TestParseManagedSectionNotFound(t *testing.T) {
	_, found, err := ParseManagedSection("export FOO=bar\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Fatal("expected no managed section to be found")
	}
}

func TestParseManagedSectionUnterminated(t *testing.T) {
	content := FenceStart + "\n# config.version = 2\n"
	_, _, err := ParseManagedSection(content)
	if err == nil {
		t.Fatal("expected an error for an unterminated section")
	}
}

func TestParseManagedSectionMultiple(t *testing.T) {
	one := RenderManagedSection(sampleMeta())
	content := one + "\n" + one
	_, _, err := ParseManagedSection(content)
	if !errors.Is(err, errs.ErrMultipleManagedSections) {
		t.Fatalf("expected ErrMultipleManagedSections, got %v", err)
	}
}

func TestInjectManagedSectionAppendsWhenAbsent(t *testing.T) {
	out, err := InjectManagedSection("export PATH=/usr/bin\n", sampleMeta())
	if err != nil {
		t.Fatalf("InjectManagedSection: %v", err)
	}
	if !strings.Contains(out, "export PATH=/usr/bin") {
		t.Error("existing content should be preserved")
	}
	if !strings.Contains(out, FenceStart) || !strings.Contains(out, FenceEnd) {
		t.Error("expected the managed section to be appended")
	}
}

func TestInjectManagedSectionReplacesInPlace(t *testing.T) {
	before := "export PATH=/usr/bin\n" + RenderManagedSection(sampleMeta()) + "\nexport TAIL=1\n"

	updated := sampleMeta()
	updated.Sentinel = "deadbeef"
	after, err := InjectManagedSection(before, updated)
	if err != nil {
		t.Fatalf("InjectManagedSection: %v", err)
	}
	if !strings.Contains(after, "export PATH=/usr/bin") || !strings.Contains(after, "export TAIL=1") {
		t.Error("content outside the managed section should survive untouched")
	}
	if !strings.Contains(after, "deadbeef") {
		t.Error("expected the new sentinel to appear")
	}
	if strings.Contains(after, "state.sentinel = 'a1b2c3d4'") {
		t.Error("old sentinel should have been replaced, not duplicated")
	}
}

func TestRemoveManagedSection(t *testing.T) {
	content := "export PATH=/usr/bin\n" + RenderManagedSection(sampleMeta()) + "\nexport TAIL=1\n"
	stripped, err := RemoveManagedSection(content)
	if err != nil {
		t.Fatalf("RemoveManagedSection: %v", err)
	}
	if strings.Contains(stripped, FenceStart) {
		t.Error("fences should be gone")
	}
	if !strings.Contains(stripped, "export PATH=/usr/bin") || !strings.Contains(stripped, "export TAIL=1") {
		t.Error("surrounding content should be preserved")
	}
}

func TestReplaceVarsBlockIsIdempotent(t *testing.T) {
	content := RenderManagedSection(sampleMeta())
	lines := []string{"export A=1", "export B=2"}

	first, err := ReplaceVarsBlock(content, lines)
	if err != nil {
		t.Fatalf("ReplaceVarsBlock: %v", err)
	}
	second, err := ReplaceVarsBlock(first, lines)
	if err != nil {
		t.Fatalf("ReplaceVarsBlock (second): %v", err)
	}
	if first != second {
		t.Errorf("ReplaceVarsBlock is not idempotent:\nfirst:\n%s\nsecond:\n%s", first, second)
	}
	if !strings.Contains(first, "export A=1") || !strings.Contains(first, "export B=2") {
		t.Error("expected the vars block to contain the new lines")
	}
}

func TestReplaceVarsBlockRequiresManagedSection(t *testing.T) {
	_, err := ReplaceVarsBlock("export FOO=bar\n", []string{"export A=1"})
	if !errors.Is(err, errs.ErrNotManagedEnvrc) {
		t.Fatalf("expected ErrNotManagedEnvrc, got %v", err)
	}
}
