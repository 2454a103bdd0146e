package envgraph

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// DirIndex is the local forest of .env files directly inside one
// directory, used by `env tree`/`branches`/`leaves` (§4.2). Unlike Graph,
// edges are restricted to files that are themselves members of the
// directory — a parent directive pointing outside dir does not pull in
// that file as a node.
type DirIndex struct {
	Dir          string
	Nodes        map[string]*Node
	LocalParents map[string][]string
	Children     map[string][]string
	Errors       []error
}

// BuildDirIndex globs dir for *.env files and parses each. A file that
// fails to parse is recorded in Errors and excluded from the node set;
// traversal continues for the rest (§ Propagation (c)).
func BuildDirIndex(dir string) (*DirIndex, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.env"))
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}

	idx := &DirIndex{
		Dir:          dir,
		Nodes:        map[string]*Node{},
		LocalParents: map[string][]string{},
		Children:     map[string][]string{},
	}

	canonSet := map[string]string{} // canonical path -> original glob match
	for _, m := range matches {
		canon, err := filepath.EvalSymlinks(m)
		if err != nil {
			idx.Errors = append(idx.Errors, fmt.Errorf("%s: %w", m, err))
			continue
		}
		node, err := ParseNode(canon)
		if err != nil {
			idx.Errors = append(idx.Errors, fmt.Errorf("%s: %w", m, err))
			continue
		}
		idx.Nodes[canon] = node
		canonSet[canon] = m
	}

	for p, node := range idx.Nodes {
		var local []string
		for _, parent := range node.Parents {
			if _, ok := idx.Nodes[parent]; ok {
				local = append(local, parent)
			}
		}
		idx.LocalParents[p] = local
		for _, parent := range local {
			idx.Children[parent] = append(idx.Children[parent], p)
		}
	}

	return idx, nil
}

// Roots are nodes with no locally-resolved parent.
func (idx *DirIndex) Roots() []string {
	var roots []string
	for p := range idx.Nodes {
		if len(idx.LocalParents[p]) == 0 {
			roots = append(roots, p)
		}
	}
	sort.Strings(roots)
	return roots
}

// Leaves are nodes never named as a parent by any other node in the
// directory (§4.2: "named as parent by no other file in <dir>").
func (idx *DirIndex) Leaves() []string {
	var leaves []string
	for p := range idx.Nodes {
		if len(idx.Children[p]) == 0 {
			leaves = append(leaves, p)
		}
	}
	sort.Strings(leaves)
	return leaves
}

// Branches enumerates every root-to-leaf path as a slice of canonical
// paths, root first.
func (idx *DirIndex) Branches() [][]string {
	var branches [][]string
	var walk func(path []string, node string)
	walk = func(path []string, node string) {
		path = append(path, node)
		children := idx.Children[node]
		if len(children) == 0 {
			cp := make([]string, len(path))
			copy(cp, path)
			branches = append(branches, cp)
			return
		}
		sort.Strings(children)
		for _, c := range children {
			walk(path, c)
		}
	}
	for _, r := range idx.Roots() {
		walk(nil, r)
	}
	return branches
}

// Tree renders an ASCII tree of the forest, one root per top-level
// entry, children nested beneath with box-drawing connectors.
func (idx *DirIndex) Tree() string {
	var b strings.Builder
	roots := idx.Roots()
	for i, r := range roots {
		b.WriteString(filepath.Base(r))
		b.WriteByte('\n')
		idx.writeChildren(&b, r, "", i == len(roots)-1)
	}
	return b.String()
}

func (idx *DirIndex) writeChildren(b *strings.Builder, node, prefix string, _ bool) {
	children := append([]string(nil), idx.Children[node]...)
	sort.Strings(children)
	for i, c := range children {
		last := i == len(children)-1
		connector := "├── "
		nextPrefix := prefix + "│   "
		if last {
			connector = "└── "
			nextPrefix = prefix + "    "
		}
		b.WriteString(prefix)
		b.WriteString(connector)
		b.WriteString(filepath.Base(c))
		b.WriteByte('\n')
		idx.writeChildren(b, c, nextPrefix, last)
	}
}
