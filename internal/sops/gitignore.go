package sops

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sysid/rs-env/internal/errs"
)

// Fences delimiting the managed gitignore block (§4.5).
const (
	gitignoreFenceStart = "# ---- rsenv-sops-start ----"
	gitignoreFenceEnd   = "# ---- rsenv-sops-end ----"
)

// updateGitignore rewrites the managed block inside <VaultRoot>/.gitignore
// with one pattern per configured extension and filename. The block is
// removed entirely once nothing is configured to encrypt.
func (w *Wrapper) updateGitignore(_ string) error {
	if w.VaultRoot == "" {
		return nil
	}
	path := filepath.Join(w.VaultRoot, ".gitignore")

	var patterns []string
	for _, ext := range w.SOPS.FileExtensionsEnc {
		patterns = append(patterns, "*."+strings.TrimPrefix(ext, "."))
	}
	patterns = append(patterns, w.SOPS.FileNamesEnc...)
	sort.Strings(patterns)

	var content string
	if w.FS.Exists(path) {
		data, err := w.FS.ReadFile(path)
		if err != nil {
			return errs.Infrastructure(errs.ExitIOErr, fmt.Sprintf("reading %s", path), err)
		}
		content = string(data)
	}

	updated, err := injectGitignoreBlock(content, patterns)
	if err != nil {
		return err
	}
	if updated == content {
		return nil
	}
	if err := w.FS.WriteFile(path, []byte(updated), 0o644); err != nil {
		return errs.Infrastructure(errs.ExitIOErr, fmt.Sprintf("writing %s", path), err)
	}
	return nil
}

func injectGitignoreBlock(content string, patterns []string) (string, error) {
	lines := strings.Split(content, "\n")
	var out []string
	inBlock := false
	found := false
	for _, line := range lines {
		switch {
		case line == gitignoreFenceStart:
			if inBlock {
				return "", fmt.Errorf("nested rsenv-sops gitignore fence")
			}
			inBlock = true
			found = true
			if len(patterns) > 0 {
				out = append(out, renderGitignoreBlock(patterns)...)
			}
		case line == gitignoreFenceEnd:
			if !inBlock {
				return "", fmt.Errorf("rsenv-sops gitignore end fence without start")
			}
			inBlock = false
		default:
			if !inBlock {
				out = append(out, line)
			}
		}
	}
	if inBlock {
		return "", fmt.Errorf("unterminated rsenv-sops gitignore block")
	}
	if !found && len(patterns) > 0 {
		if len(out) > 0 && out[len(out)-1] != "" {
			out = append(out, "")
		}
		out = append(out, renderGitignoreBlock(patterns)...)
	}
	return strings.Join(out, "\n"), nil
}

func renderGitignoreBlock(patterns []string) []string {
	lines := []string{gitignoreFenceStart}
	lines = append(lines, patterns...)
	lines = append(lines, gitignoreFenceEnd)
	return lines
}
