package vault

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sysid/rs-env/internal/errs"
)

// Fence lines delimiting the managed section inside dot.envrc (§3, §4.1).
// The spacing and dash counts are exact — a line matches the fence only
// when it equals one of these two strings verbatim.
const (
	FenceStart = "#------------------------------- rsenv start --------------------------------"
	FenceEnd   = "#-------------------------------- rsenv end ---------------------------------"
)

// Sub-fence delimiting the rewritable "# vars" block that `env envrc`
// maintains inside the managed section (§4.2).
const (
	VarsFenceStart = "# rsenv vars start"
	VarsFenceEnd   = "# rsenv vars end"
)

var metaLineRe = regexp.MustCompile(`^#\s*([A-Za-z][A-Za-z0-9_]*(?:\.[A-Za-z][A-Za-z0-9_]*)*)\s*=\s*(.+?)\s*$`)

// Metadata is the parsed content of a managed section (§3, §4.1).
type Metadata struct {
	ConfigRelative bool
	ConfigVersion  int
	Sentinel       string
	Timestamp      string
	SourceDir      string
	VaultPath      string
	Swapped        bool
	VarsLines      []string
}

// ParseManagedSection scans content for the fenced managed section and
// parses its metadata. found is false if no fence pair exists. An error
// is returned if more than one managed section is present, or if a
// section is malformed (unterminated fence, unparsable metadata value).
func ParseManagedSection(content string) (meta Metadata, found bool, err error) {
	lines := strings.Split(content, "\n")

	var sections [][]string
	var cur []string
	inSection := false
	for _, line := range lines {
		switch {
		case line == FenceStart:
			if inSection {
				return Metadata{}, true, fmt.Errorf("nested rsenv start fence")
			}
			inSection = true
			cur = nil
		case line == FenceEnd:
			if !inSection {
				return Metadata{}, true, fmt.Errorf("rsenv end fence without matching start")
			}
			inSection = false
			sections = append(sections, cur)
		default:
			if inSection {
				cur = append(cur, line)
			}
		}
	}
	if inSection {
		return Metadata{}, true, fmt.Errorf("unterminated rsenv managed section (missing end fence)")
	}
	if len(sections) == 0 {
		return Metadata{}, false, nil
	}
	if len(sections) > 1 {
		return Metadata{}, true, errs.ErrMultipleManagedSections
	}

	meta, err = parseSectionBody(sections[0])
	return meta, true, err
}

func parseSectionBody(body []string) (Metadata, error) {
	var meta Metadata
	var inVars bool
	for _, line := range body {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == VarsFenceStart:
			inVars = true
			continue
		case trimmed == VarsFenceEnd:
			inVars = false
			continue
		case inVars:
			meta.VarsLines = append(meta.VarsLines, line)
			continue
		}

		if strings.HasPrefix(trimmed, "export RSENV_VAULT=") {
			meta.VaultPath = unquoteExportValue(strings.TrimPrefix(trimmed, "export RSENV_VAULT="))
			continue
		}
		if strings.HasPrefix(trimmed, "export RSENV_SWAPPED=") {
			v := unquoteExportValue(strings.TrimPrefix(trimmed, "export RSENV_SWAPPED="))
			meta.Swapped = v == "1"
			continue
		}
		if m := metaLineRe.FindStringSubmatch(trimmed); m != nil {
			key, raw := m[1], m[2]
			val, err := parseMetaValue(raw)
			if err != nil {
				return Metadata{}, fmt.Errorf("parsing metadata %q: %w", key, err)
			}
			switch key {
			case "config.relative":
				b, _ := val.(bool)
				meta.ConfigRelative = b
			case "config.version":
				n, _ := val.(int64)
				meta.ConfigVersion = int(n)
			case "state.sentinel":
				meta.Sentinel, _ = val.(string)
			case "state.timestamp":
				meta.Timestamp, _ = val.(string)
			case "state.sourceDir":
				meta.SourceDir, _ = val.(string)
			}
		}
	}
	return meta, nil
}

func parseMetaValue(raw string) (interface{}, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "'") && strings.HasSuffix(raw, "'") && len(raw) >= 2 {
		return strings.TrimSuffix(strings.TrimPrefix(raw, "'"), "'"), nil
	}
	if raw == "true" {
		return true, nil
	}
	if raw == "false" {
		return false, nil
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n, nil
	}
	return nil, fmt.Errorf("unrecognised metadata value %q", raw)
}

func unquoteExportValue(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"' {
		return v[1 : len(v)-1]
	}
	return v
}

// RenderManagedSection renders meta into the fenced managed-section text
// (without a trailing newline after the end fence).
func RenderManagedSection(meta Metadata) string {
	var b strings.Builder
	b.WriteString(FenceStart + "\n")
	fmt.Fprintf(&b, "# config.relative = %t\n", meta.ConfigRelative)
	fmt.Fprintf(&b, "# config.version = %d\n", meta.ConfigVersion)
	fmt.Fprintf(&b, "# state.sentinel = '%s'\n", meta.Sentinel)
	fmt.Fprintf(&b, "# state.timestamp = '%s'\n", meta.Timestamp)
	fmt.Fprintf(&b, "# state.sourceDir = '%s'\n", meta.SourceDir)
	fmt.Fprintf(&b, "export RSENV_VAULT=%s\n", meta.VaultPath)
	b.WriteString("#dotenv $RSENV_VAULT/envs/local.env\n")
	if meta.Swapped {
		b.WriteString("export RSENV_SWAPPED=1\n")
	}
	if meta.VarsLines != nil {
		b.WriteString(VarsFenceStart + "\n")
		for _, l := range meta.VarsLines {
			b.WriteString(l + "\n")
		}
		b.WriteString(VarsFenceEnd + "\n")
	}
	b.WriteString(FenceEnd)
	return b.String()
}

// InjectManagedSection returns content with its managed section replaced
// by meta's rendering, or the section appended if none exists yet. It
// refuses (returning an error) if more than one section is already
// present.
func InjectManagedSection(content string, meta Metadata) (string, error) {
	_, found, err := ParseManagedSection(content)
	if err != nil && err != errs.ErrMultipleManagedSections {
		// malformed existing section: still refuse, the caller must not
		// silently repair it (§3 "Any partial state is an error").
		return "", err
	}
	if err == errs.ErrMultipleManagedSections {
		return "", err
	}

	rendered := RenderManagedSection(meta)

	if !found {
		if content != "" && !strings.HasSuffix(content, "\n") {
			content += "\n"
		}
		return content + rendered + "\n", nil
	}

	lines := strings.Split(content, "\n")
	var out []string
	skipping := false
	injected := false
	for _, line := range lines {
		if line == FenceStart {
			skipping = true
			out = append(out, strings.Split(rendered, "\n")...)
			injected = true
			continue
		}
		if line == FenceEnd {
			skipping = false
			continue
		}
		if skipping {
			continue
		}
		out = append(out, line)
	}
	if !injected {
		out = append(out, strings.Split(rendered, "\n")...)
	}
	return strings.Join(out, "\n"), nil
}

// RemoveManagedSection strips the fenced managed section from content
// entirely (used by reset, §4.1).
func RemoveManagedSection(content string) (string, error) {
	_, found, err := ParseManagedSection(content)
	if err != nil {
		return "", err
	}
	if !found {
		return content, nil
	}
	lines := strings.Split(content, "\n")
	var out []string
	skipping := false
	for _, line := range lines {
		if line == FenceStart {
			skipping = true
			continue
		}
		if line == FenceEnd {
			skipping = false
			continue
		}
		if skipping {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n"), nil
}

// ReplaceVarsBlock rewrites the "# vars" sub-section inside content's
// managed section (used by `env envrc`, §4.2). It is idempotent: calling
// it twice with the same lines produces byte-identical output.
func ReplaceVarsBlock(content string, varLines []string) (string, error) {
	meta, found, err := ParseManagedSection(content)
	if err != nil {
		return "", err
	}
	if !found {
		return "", errs.Application(errs.ExitDataErr, "target .envrc has no managed section", errs.ErrNotManagedEnvrc)
	}
	meta.VarsLines = varLines
	return InjectManagedSection(content, meta)
}
