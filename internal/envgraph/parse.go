// Package envgraph implements the EnvGraph Resolver (§4.2): parsing .env
// files, following `# rsenv:` parent directives into a DAG, detecting
// cycles, and producing the deterministic merged variable set.
package envgraph

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/sysid/rs-env/internal/errs"
)

// Quote records how a variable's value was quoted in its source file, so
// `env build` can re-emit it with minimal re-quoting (§4.2).
type Quote int

const (
	QuoteNone Quote = iota
	QuoteSingle
	QuoteDouble
)

// Binding is one `export NAME=VALUE` line.
type Binding struct {
	Name  string
	Value string
	Quote Quote
}

// Node is a parsed .env file, identified by its canonical path (§3).
type Node struct {
	Path    string
	Vars    []Binding
	Parents []string // canonical paths, in file order
}

var (
	varHeadRe  = regexp.MustCompile(`^export\s+([A-Za-z_][A-Za-z0-9_]*)\s*=\s*`)
	trailingRe = regexp.MustCompile(`^\s*(#.*)?$`)
	directiveRe = regexp.MustCompile(`^\s*#\s*rsenv\s*:\s*(.*?)\s*$`)
)

// ParseNode reads and parses the .env file at canonicalPath (already
// resolved to its canonical form by the caller).
func ParseNode(canonicalPath string) (*Node, error) {
	data, err := os.ReadFile(canonicalPath)
	if err != nil {
		return nil, errs.Infrastructure(errs.ExitNoInput, fmt.Sprintf("reading %s", canonicalPath), err)
	}

	node := &Node{Path: canonicalPath}
	lines := strings.Split(string(data), "\n")
	dir := filepath.Dir(canonicalPath)

	for lineNo, raw := range lines {
		line := strings.TrimRight(raw, "\r")
		trimmed := strings.TrimLeft(line, " \t")

		if m := directiveRe.FindStringSubmatch(line); m != nil {
			paths, err := resolveParentList(m[1], dir)
			if err != nil {
				return nil, errs.Domain(errs.ExitDataErr,
					fmt.Sprintf("%s:%d: %v", canonicalPath, lineNo+1, err), err)
			}
			node.Parents = append(node.Parents, paths...)
			continue
		}

		if !strings.HasPrefix(trimmed, "export") {
			continue
		}
		head := varHeadRe.FindStringSubmatch(trimmed)
		if head == nil {
			continue // not an export line at all (e.g. "exported" or similar prefix collision)
		}
		rest := trimmed[len(head[0]):]
		value, quote, leftover, ok := parseValue(rest)
		if !ok || !trailingRe.MatchString(leftover) {
			return nil, errs.Application(errs.ExitDataErr,
				fmt.Sprintf("%s:%d: malformed export line", canonicalPath, lineNo+1), nil)
		}
		node.Vars = append(node.Vars, Binding{Name: head[1], Value: value, Quote: quote})
	}

	return node, nil
}

// parseValue consumes a VALUE token (double-quoted, single-quoted, or
// bare) from the front of s, returning the decoded value, its quote
// style, and whatever remains of s after the VALUE.
func parseValue(s string) (value string, quote Quote, rest string, ok bool) {
	if len(s) == 0 {
		return "", QuoteNone, s, true
	}
	switch s[0] {
	case '"':
		return parseDoubleQuoted(s)
	case '\'':
		return parseSingleQuoted(s)
	default:
		end := strings.IndexAny(s, " \t#")
		if end == -1 {
			return s, QuoteNone, "", true
		}
		return s[:end], QuoteNone, s[end:], true
	}
}

func parseDoubleQuoted(s string) (string, Quote, string, bool) {
	var b strings.Builder
	i := 1
	for i < len(s) {
		c := s[i]
		if c == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case '"':
				b.WriteByte('"')
			case '\\':
				b.WriteByte('\\')
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			default:
				b.WriteByte('\\')
				b.WriteByte(s[i+1])
			}
			i += 2
			continue
		}
		if c == '"' {
			return b.String(), QuoteDouble, s[i+1:], true
		}
		b.WriteByte(c)
		i++
	}
	return "", QuoteDouble, "", false
}

func parseSingleQuoted(s string) (string, Quote, string, bool) {
	end := strings.IndexByte(s[1:], '\'')
	if end == -1 {
		return "", QuoteSingle, "", false
	}
	return s[1 : 1+end], QuoteSingle, s[1+end+1:], true
}

// resolveParentList expands and resolves each whitespace-separated path
// token in raw, relative to dir (the directory of the file containing
// the directive), per §4.2.
func resolveParentList(raw string, dir string) ([]string, error) {
	tokens := strings.Fields(raw)
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		expanded, err := expandToken(tok)
		if err != nil {
			return nil, err
		}
		var full string
		if filepath.IsAbs(expanded) {
			full = expanded
		} else {
			full = filepath.Join(dir, expanded)
		}
		canon, err := filepath.EvalSymlinks(full)
		if err != nil {
			return nil, fmt.Errorf("parent path %q does not exist: %w", tok, err)
		}
		out = append(out, canon)
	}
	return out, nil
}

// expandToken expands $VAR, ${VAR}, and a leading ~ (current user's home
// only — ~user is rejected, SPEC_FULL.md Open Question (b)).
func expandToken(tok string) (string, error) {
	if strings.HasPrefix(tok, "~") && !strings.HasPrefix(tok, "~/") && tok != "~" {
		return "", errs.Domain(errs.ExitDataErr, fmt.Sprintf("unsupported path expansion in %q", tok), errs.ErrUnsupportedPathExpansion)
	}
	if tok == "~" || strings.HasPrefix(tok, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			tok = filepath.Join(home, strings.TrimPrefix(tok, "~"))
		}
	}
	return os.Expand(tok, os.Getenv), nil
}
