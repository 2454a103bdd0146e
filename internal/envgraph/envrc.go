package envgraph

import (
	"fmt"
	"os"
	"strings"

	"github.com/sysid/rs-env/internal/errs"
	"github.com/sysid/rs-env/internal/vault"
)

// WriteEnvrc merges leaf's hierarchy and rewrites the `# vars` sub-section
// of envrcPath's managed section with the merged bindings (§4.2). It is
// idempotent: calling it twice in a row with unchanged inputs produces a
// byte-identical file.
func WriteEnvrc(leaf, envrcPath string) error {
	g, err := Load(leaf)
	if err != nil {
		return err
	}
	bindings := g.Build()

	varLines := make([]string, 0, len(bindings))
	for _, v := range bindings {
		varLines = append(varLines, "export "+v.Name+"="+formatValue(v))
	}

	data, err := os.ReadFile(envrcPath)
	if err != nil {
		return errs.Infrastructure(errs.ExitNoInput, fmt.Sprintf("reading %s", envrcPath), err)
	}

	updated, err := vault.ReplaceVarsBlock(string(data), varLines)
	if err != nil {
		return err
	}
	if updated == string(data) {
		return nil
	}
	if err := os.WriteFile(envrcPath, []byte(updated), 0644); err != nil {
		return errs.Infrastructure(errs.ExitIOErr, fmt.Sprintf("writing %s", envrcPath), err)
	}
	return nil
}

// FormatFiles renders a linearisation as one canonical path per line, the
// form `env files` emits.
func FormatFiles(paths []string) string {
	if len(paths) == 0 {
		return ""
	}
	return strings.Join(paths, "\n") + "\n"
}
