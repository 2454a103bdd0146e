package envgraph

import (
	"sort"
	"strings"
)

// Build returns the merged bindings ordered alphabetically by name, the
// form `env build` emits (§4.2).
func (g *Graph) Build() []Binding {
	merged := g.Merge()
	sort.Slice(merged, func(i, j int) bool { return merged[i].Name < merged[j].Name })
	return merged
}

// RenderExports formats bindings as `export NAME=VALUE` lines, one per
// binding, each re-quoted per its recorded Quote style with minimal
// re-quoting for bare values that now require it.
func RenderExports(bindings []Binding) string {
	var b strings.Builder
	for _, v := range bindings {
		b.WriteString("export ")
		b.WriteString(v.Name)
		b.WriteByte('=')
		b.WriteString(formatValue(v))
		b.WriteByte('\n')
	}
	return b.String()
}

func formatValue(v Binding) string {
	switch v.Quote {
	case QuoteSingle:
		return "'" + v.Value + "'"
	case QuoteDouble:
		return quoteDouble(v.Value)
	default:
		if needsQuoting(v.Value) {
			return quoteDouble(v.Value)
		}
		return v.Value
	}
}

func needsQuoting(s string) bool {
	return strings.ContainsAny(s, " \t#'\"")
}

func quoteDouble(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, c := range s {
		switch c {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteRune(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}
