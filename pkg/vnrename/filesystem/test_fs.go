package filesystem

import (
	"io/fs"
	"path"
	"time"

	"testing/fstest"
)

// TestFileSystem extends fstest.MapFS with the write operations the
// rename services need. Rename preserves file content, mode and mtime,
// which the undo validator depends on.
type TestFileSystem struct {
	fstest.MapFS
}

// NewTestFileSystem creates an empty in-memory filesystem.
func NewTestFileSystem() *TestFileSystem {
	return &TestFileSystem{MapFS: make(fstest.MapFS)}
}

// AddFile creates a file with the given content, mode and mtime.
func (tfs *TestFileSystem) AddFile(name string, data []byte, mode fs.FileMode, mtime time.Time) {
	tfs.MapFS[name] = &fstest.MapFile{Data: data, Mode: mode, ModTime: mtime}
}

// WriteFile implements WriteFS.
func (tfs *TestFileSystem) WriteFile(name string, data []byte, perm fs.FileMode) error {
	if !fs.ValidPath(name) {
		return &fs.PathError{Op: "writefile", Path: name, Err: fs.ErrInvalid}
	}
	tfs.MapFS[name] = &fstest.MapFile{Data: data, Mode: perm, ModTime: time.Now()}
	return nil
}

// MkdirAll implements WriteFS.
func (tfs *TestFileSystem) MkdirAll(p string, perm fs.FileMode) error {
	if !fs.ValidPath(p) {
		return &fs.PathError{Op: "mkdirall", Path: p, Err: fs.ErrInvalid}
	}
	tfs.MapFS[p] = &fstest.MapFile{Mode: perm | fs.ModeDir, ModTime: time.Now()}
	return nil
}

// Remove implements WriteFS.
func (tfs *TestFileSystem) Remove(name string) error {
	if !fs.ValidPath(name) {
		return &fs.PathError{Op: "remove", Path: name, Err: fs.ErrInvalid}
	}
	if _, exists := tfs.MapFS[name]; !exists {
		return &fs.PathError{Op: "remove", Path: name, Err: fs.ErrNotExist}
	}
	delete(tfs.MapFS, name)
	return nil
}

// Rename implements WriteFS. The entry moves wholesale: data, mode and
// modification time travel with it, matching os.Rename semantics.
func (tfs *TestFileSystem) Rename(oldpath, newpath string) error {
	if !fs.ValidPath(oldpath) || !fs.ValidPath(newpath) {
		return &fs.PathError{Op: "rename", Path: newpath, Err: fs.ErrInvalid}
	}
	entry, exists := tfs.MapFS[oldpath]
	if !exists {
		return &fs.PathError{Op: "rename", Path: oldpath, Err: fs.ErrNotExist}
	}
	if dir := path.Dir(newpath); dir != "." {
		if _, ok := tfs.MapFS[dir]; !ok {
			return &fs.PathError{Op: "rename", Path: newpath, Err: fs.ErrNotExist}
		}
	}
	tfs.MapFS[newpath] = entry
	delete(tfs.MapFS, oldpath)
	return nil
}

// Chmod implements WriteFS.
func (tfs *TestFileSystem) Chmod(name string, mode fs.FileMode) error {
	entry, exists := tfs.MapFS[name]
	if !exists {
		return &fs.PathError{Op: "chmod", Path: name, Err: fs.ErrNotExist}
	}
	entry.Mode = (entry.Mode &^ fs.ModePerm) | (mode & fs.ModePerm)
	return nil
}

// Chtimes implements WriteFS. atime is ignored; MapFS only tracks mtime.
func (tfs *TestFileSystem) Chtimes(name string, _, mtime time.Time) error {
	entry, exists := tfs.MapFS[name]
	if !exists {
		return &fs.PathError{Op: "chtimes", Path: name, Err: fs.ErrNotExist}
	}
	entry.ModTime = mtime
	return nil
}
