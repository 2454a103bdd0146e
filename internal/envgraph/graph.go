package envgraph

import (
	"fmt"
	"path/filepath"

	"github.com/sysid/rs-env/internal/errs"
)

// Graph is the set of parsed nodes reachable from a leaf file (§4.2).
type Graph struct {
	Leaf  string
	Nodes map[string]*Node // keyed by canonical path
}

// Load parses leafPath and BFS-walks its `# rsenv:` parent directives,
// building the full DAG. A cycle anywhere in the reachable set is an
// error (§4.2 "a cycle ... is a hard error").
func Load(leafPath string) (*Graph, error) {
	canon, err := filepath.EvalSymlinks(leafPath)
	if err != nil {
		return nil, errs.Infrastructure(errs.ExitNoInput, fmt.Sprintf("resolving %s", leafPath), err)
	}

	g := &Graph{Leaf: canon, Nodes: map[string]*Node{}}
	queue := []string{canon}
	for len(queue) > 0 {
		path := queue[0]
		queue = queue[1:]
		if _, ok := g.Nodes[path]; ok {
			continue
		}
		node, err := ParseNode(path)
		if err != nil {
			return nil, err
		}
		g.Nodes[path] = node
		queue = append(queue, node.Parents...)
	}

	if err := g.detectCycle(); err != nil {
		return nil, err
	}
	return g, nil
}

// detectCycle runs a three-color DFS from the leaf over the parent edges.
func (g *Graph) detectCycle() error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(g.Nodes))
	var path []string

	var visit func(string) error
	visit = func(p string) error {
		color[p] = gray
		path = append(path, p)
		node := g.Nodes[p]
		for _, parent := range node.Parents {
			switch color[parent] {
			case gray:
				return errs.Domain(errs.ExitDataErr,
					fmt.Sprintf("cycle detected: %s", cycleDescription(append(path, parent))),
					errs.ErrCycle)
			case white:
				if err := visit(parent); err != nil {
					return err
				}
			}
		}
		color[p] = black
		path = path[:len(path)-1]
		return nil
	}

	return visit(g.Leaf)
}

func cycleDescription(path []string) string {
	s := ""
	for i, p := range path {
		if i > 0 {
			s += " -> "
		}
		s += filepath.Base(p)
	}
	return s
}

// Linearize returns the canonical paths of all nodes reachable from the
// leaf in post-order (parents before children along each branch), with
// duplicates collapsed to their LAST occurrence — the order in which
// `env files`/`env build` apply bindings so that closer-to-leaf values
// win (§4.2).
func (g *Graph) Linearize() []string {
	var order []string
	visited := map[string]bool{}

	var visit func(string)
	visit = func(p string) {
		node := g.Nodes[p]
		for _, parent := range node.Parents {
			visit(parent)
		}
		if visited[p] {
			// remove the earlier occurrence; the later (closer to leaf in
			// traversal terms, but identical node) position wins.
			for i, q := range order {
				if q == p {
					order = append(order[:i], order[i+1:]...)
					break
				}
			}
		}
		visited[p] = true
		order = append(order, p)
	}
	visit(g.Leaf)
	return order
}

// Merge applies each node's bindings along the linearization in order,
// last-write-wins per variable name, and returns the merged bindings in
// first-introduced order (stable for `env build`'s output, §4.2).
func (g *Graph) Merge() []Binding {
	order := g.Linearize()
	index := map[string]int{}
	var merged []Binding
	for _, p := range order {
		node := g.Nodes[p]
		for _, v := range node.Vars {
			if i, ok := index[v.Name]; ok {
				merged[i] = v
				continue
			}
			index[v.Name] = len(merged)
			merged = append(merged, v)
		}
	}
	return merged
}
