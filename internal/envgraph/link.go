package envgraph

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sysid/rs-env/internal/errs"
)

// Link appends `# rsenv: <relpath>` directives chaining files[0..n] so that
// files[i] names files[i-1] as parent, for i = 1..len(files)-1, skipping
// any pair that is already directly linked. It refuses if the resulting
// graph would be cyclic (§4.2).
func Link(files []string) error {
	if len(files) < 2 {
		return nil
	}
	canon := make([]string, len(files))
	for i, f := range files {
		c, err := filepath.EvalSymlinks(f)
		if err != nil {
			return errs.Infrastructure(errs.ExitNoInput, fmt.Sprintf("resolving %s", f), err)
		}
		canon[i] = c
	}

	originals := map[string][]byte{}
	for i := 1; i < len(canon); i++ {
		child, parent := canon[i], canon[i-1]
		node, err := ParseNode(child)
		if err != nil {
			return err
		}
		if containsPath(node.Parents, parent) {
			continue
		}
		rel, err := filepath.Rel(filepath.Dir(child), parent)
		if err != nil {
			return fmt.Errorf("computing relative path from %s to %s: %w", child, parent, err)
		}
		if _, saved := originals[child]; !saved {
			data, err := os.ReadFile(child)
			if err != nil {
				return errs.Infrastructure(errs.ExitNoInput, fmt.Sprintf("reading %s", child), err)
			}
			originals[child] = data
		}
		if err := appendDirective(child, rel); err != nil {
			return err
		}
	}

	if _, err := Load(canon[len(canon)-1]); err != nil {
		for path, data := range originals {
			os.WriteFile(path, data, 0644)
		}
		return err
	}
	return nil
}

// Unlink removes every `# rsenv:` directive line from file.
func Unlink(file string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return errs.Infrastructure(errs.ExitNoInput, fmt.Sprintf("reading %s", file), err)
	}
	lines := strings.Split(string(data), "\n")
	var out []string
	for _, line := range lines {
		if directiveRe.MatchString(line) {
			continue
		}
		out = append(out, line)
	}
	if err := os.WriteFile(file, []byte(strings.Join(out, "\n")), 0644); err != nil {
		return errs.Infrastructure(errs.ExitIOErr, fmt.Sprintf("writing %s", file), err)
	}
	return nil
}

func containsPath(paths []string, target string) bool {
	for _, p := range paths {
		if p == target {
			return true
		}
	}
	return false
}

func appendDirective(file, rel string) error {
	f, err := os.OpenFile(file, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return errs.Infrastructure(errs.ExitNoInput, fmt.Sprintf("opening %s", file), err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "\n# rsenv: %s\n", rel)
	if err := w.Flush(); err != nil {
		return errs.Infrastructure(errs.ExitIOErr, fmt.Sprintf("writing %s", file), err)
	}
	return nil
}
