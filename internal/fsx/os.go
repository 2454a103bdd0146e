package fsx

import (
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// OS is the real-disk implementation of FS.
type OS struct{}

// NewOS returns an FS backed by the host filesystem.
func NewOS() OS { return OS{} }

func (OS) ReadFile(path string) ([]byte, error) { return os.ReadFile(path) }

func (OS) WriteFile(path string, data []byte, perm fs.FileMode) error {
	return os.WriteFile(path, data, perm)
}

func (OS) Remove(path string) error { return os.Remove(path) }

func (OS) RemoveAll(path string) error { return os.RemoveAll(path) }

func (OS) Rename(oldpath, newpath string) error { return os.Rename(oldpath, newpath) }

func (OS) MkdirAll(path string, perm fs.FileMode) error { return os.MkdirAll(path, perm) }

func (OS) Stat(path string) (FileInfo, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return FileInfo{}, err
	}
	return infoFromOS(fi), nil
}

func (OS) Lstat(path string) (FileInfo, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		return FileInfo{}, err
	}
	return infoFromOS(fi), nil
}

func (OS) Symlink(oldname, newname string) error { return os.Symlink(oldname, newname) }

func (OS) Readlink(name string) (string, error) { return os.Readlink(name) }

func (OS) ReadDir(path string) ([]DirEntry, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	out := make([]DirEntry, len(entries))
	for i, e := range entries {
		out[i] = DirEntry{Name: e.Name(), IsDir: e.IsDir()}
	}
	return out, nil
}

func (OS) Chmod(path string, mode fs.FileMode) error { return os.Chmod(path, mode) }

func (OS) Chtimes(path string, atime, mtime time.Time) error { return os.Chtimes(path, atime, mtime) }

func (OS) Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

func (OS) Walk(root string, fn WalkFunc) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return fn(path, FileInfo{}, err)
		}
		return fn(path, infoFromOS(info), nil)
	})
}
