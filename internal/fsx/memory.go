package fsx

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

// Memory is an in-memory FS substitute for unit tests. Paths are treated as
// slash-separated regardless of host OS, which is sufficient for the pure
// path-manipulation logic under test; rsenv's business logic never relies
// on OS-specific path semantics beyond filepath.Join/Dir/Base, which Memory
// callers pass in already-joined form.
type Memory struct {
	files    map[string][]byte
	modes    map[string]fs.FileMode
	dirs     map[string]bool
	symlinks map[string]string // newname -> target
	modTimes map[string]time.Time
}

// NewMemory returns an empty in-memory filesystem rooted at "/".
func NewMemory() *Memory {
	return &Memory{
		files:    make(map[string][]byte),
		modes:    make(map[string]fs.FileMode),
		dirs:     map[string]bool{"/": true},
		symlinks: make(map[string]string),
		modTimes: make(map[string]time.Time),
	}
}

func clean(p string) string {
	return path.Clean(strings.ReplaceAll(p, "\\", "/"))
}

func (m *Memory) ensureParents(p string) {
	d := path.Dir(clean(p))
	for d != "/" && d != "." {
		m.dirs[d] = true
		d = path.Dir(d)
	}
	m.dirs["/"] = true
}

func (m *Memory) ReadFile(p string) ([]byte, error) {
	p = clean(p)
	if target, ok := m.symlinks[p]; ok {
		return m.ReadFile(target)
	}
	data, ok := m.files[p]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: p, Err: fs.ErrNotExist}
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *Memory) WriteFile(p string, data []byte, perm fs.FileMode) error {
	p = clean(p)
	m.ensureParents(p)
	buf := make([]byte, len(data))
	copy(buf, data)
	m.files[p] = buf
	if _, exists := m.modes[p]; !exists || perm != 0 {
		m.modes[p] = perm
	}
	m.modTimes[p] = time.Now()
	return nil
}

func (m *Memory) Remove(p string) error {
	p = clean(p)
	if _, ok := m.symlinks[p]; ok {
		delete(m.symlinks, p)
		return nil
	}
	if _, ok := m.files[p]; ok {
		delete(m.files, p)
		delete(m.modes, p)
		delete(m.modTimes, p)
		return nil
	}
	if m.dirs[p] {
		for fp := range m.files {
			if strings.HasPrefix(fp, p+"/") {
				return fmt.Errorf("remove %s: directory not empty", p)
			}
		}
		delete(m.dirs, p)
		return nil
	}
	return &fs.PathError{Op: "remove", Path: p, Err: fs.ErrNotExist}
}

func (m *Memory) RemoveAll(p string) error {
	p = clean(p)
	for fp := range m.files {
		if fp == p || strings.HasPrefix(fp, p+"/") {
			delete(m.files, fp)
			delete(m.modes, fp)
			delete(m.modTimes, fp)
		}
	}
	for sp := range m.symlinks {
		if sp == p || strings.HasPrefix(sp, p+"/") {
			delete(m.symlinks, sp)
		}
	}
	for dp := range m.dirs {
		if dp == p || strings.HasPrefix(dp, p+"/") {
			delete(m.dirs, dp)
		}
	}
	return nil
}

func (m *Memory) Rename(oldpath, newpath string) error {
	oldpath, newpath = clean(oldpath), clean(newpath)
	m.ensureParents(newpath)
	if target, ok := m.symlinks[oldpath]; ok {
		delete(m.symlinks, oldpath)
		m.symlinks[newpath] = target
		return nil
	}
	if data, ok := m.files[oldpath]; ok {
		m.files[newpath] = data
		m.modes[newpath] = m.modes[oldpath]
		m.modTimes[newpath] = m.modTimes[oldpath]
		delete(m.files, oldpath)
		delete(m.modes, oldpath)
		delete(m.modTimes, oldpath)
		return nil
	}
	if m.dirs[oldpath] {
		prefix := oldpath + "/"
		for fp, data := range m.files {
			if strings.HasPrefix(fp, prefix) {
				np := newpath + "/" + strings.TrimPrefix(fp, prefix)
				m.files[np] = data
				m.modes[np] = m.modes[fp]
				delete(m.files, fp)
				delete(m.modes, fp)
			}
		}
		for dp := range m.dirs {
			if strings.HasPrefix(dp, prefix) {
				np := newpath + "/" + strings.TrimPrefix(dp, prefix)
				m.dirs[np] = true
				delete(m.dirs, dp)
			}
		}
		delete(m.dirs, oldpath)
		m.dirs[newpath] = true
		return nil
	}
	return &fs.PathError{Op: "rename", Path: oldpath, Err: fs.ErrNotExist}
}

func (m *Memory) MkdirAll(p string, perm fs.FileMode) error {
	p = clean(p)
	m.dirs[p] = true
	m.ensureParents(p)
	return nil
}

func (m *Memory) Stat(p string) (FileInfo, error) {
	p = clean(p)
	if target, ok := m.symlinks[p]; ok {
		return m.Stat(target)
	}
	return m.Lstat(p)
}

func (m *Memory) Lstat(p string) (FileInfo, error) {
	p = clean(p)
	if _, ok := m.symlinks[p]; ok {
		return FileInfo{Name: path.Base(p), Mode: fs.ModeSymlink, ModTime: m.modTimes[p]}, nil
	}
	if data, ok := m.files[p]; ok {
		return FileInfo{Name: path.Base(p), Size: int64(len(data)), Mode: m.modes[p], ModTime: m.modTimes[p]}, nil
	}
	if m.dirs[p] {
		return FileInfo{Name: path.Base(p), Mode: fs.ModeDir | 0755, IsDir: true}, nil
	}
	return FileInfo{}, &fs.PathError{Op: "stat", Path: p, Err: fs.ErrNotExist}
}

func (m *Memory) Symlink(oldname, newname string) error {
	newname = clean(newname)
	m.ensureParents(newname)
	m.symlinks[newname] = oldname
	return nil
}

func (m *Memory) Readlink(name string) (string, error) {
	name = clean(name)
	target, ok := m.symlinks[name]
	if !ok {
		return "", &fs.PathError{Op: "readlink", Path: name, Err: fs.ErrInvalid}
	}
	return target, nil
}

func (m *Memory) ReadDir(p string) ([]DirEntry, error) {
	p = clean(p)
	if !m.dirs[p] {
		return nil, &fs.PathError{Op: "open", Path: p, Err: fs.ErrNotExist}
	}
	seen := make(map[string]DirEntry)
	prefix := p + "/"
	if p == "/" {
		prefix = "/"
	}
	collect := func(full string, isDir bool) {
		if !strings.HasPrefix(full, prefix) || full == p {
			return
		}
		rest := strings.TrimPrefix(full, prefix)
		if rest == "" {
			return
		}
		name := strings.SplitN(rest, "/", 2)[0]
		if strings.Contains(rest, "/") {
			isDir = true
		}
		if _, ok := seen[name]; !ok {
			seen[name] = DirEntry{Name: name, IsDir: isDir}
		} else if isDir {
			seen[name] = DirEntry{Name: name, IsDir: true}
		}
	}
	for fp := range m.files {
		collect(fp, false)
	}
	for sp := range m.symlinks {
		collect(sp, false)
	}
	for dp := range m.dirs {
		collect(dp, true)
	}
	out := make([]DirEntry, 0, len(seen))
	for _, e := range seen {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) Chmod(p string, mode fs.FileMode) error {
	p = clean(p)
	if _, ok := m.files[p]; !ok {
		return &fs.PathError{Op: "chmod", Path: p, Err: fs.ErrNotExist}
	}
	m.modes[p] = mode
	return nil
}

// Chtimes sets p's recorded modification time. atime is accepted for
// interface symmetry with os.Chtimes but Memory tracks only mtime.
func (m *Memory) Chtimes(p string, atime, mtime time.Time) error {
	p = clean(p)
	if _, ok := m.files[p]; !ok {
		return &fs.PathError{Op: "chtimes", Path: p, Err: fs.ErrNotExist}
	}
	m.modTimes[p] = mtime
	return nil
}

func (m *Memory) Exists(p string) bool {
	p = clean(p)
	if _, ok := m.symlinks[p]; ok {
		return true
	}
	if _, ok := m.files[p]; ok {
		return true
	}
	return m.dirs[p]
}

func (m *Memory) Walk(root string, fn WalkFunc) error {
	root = clean(root)
	var paths []string
	paths = append(paths, root)
	for fp := range m.files {
		if fp == root || strings.HasPrefix(fp, root+"/") {
			paths = append(paths, fp)
		}
	}
	for sp := range m.symlinks {
		if sp == root || strings.HasPrefix(sp, root+"/") {
			paths = append(paths, sp)
		}
	}
	for dp := range m.dirs {
		if dp == root || strings.HasPrefix(dp, root+"/") {
			paths = append(paths, dp)
		}
	}
	sort.Strings(paths)
	seen := make(map[string]bool)
	var skipped []string
	for _, p := range paths {
		if seen[p] {
			continue
		}
		seen[p] = true
		underSkipped := false
		for _, s := range skipped {
			if strings.HasPrefix(p, s) {
				underSkipped = true
				break
			}
		}
		if underSkipped {
			continue
		}
		info, err := m.Lstat(p)
		if walkErr := fn(p, info, err); walkErr != nil {
			if walkErr == SkipDir {
				if err == nil && info.IsDir {
					skipped = append(skipped, p+"/")
				}
				continue
			}
			return walkErr
		}
	}
	return nil
}

var _ FS = (*Memory)(nil)
