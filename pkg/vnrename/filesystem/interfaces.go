package filesystem

import (
	"io/fs"
	"time"
)

// ReadFS is an alias for fs.FS, representing a read-only file system.
type ReadFS = fs.FS

// WriteFS defines the write operations the rename services need.
type WriteFS interface {
	WriteFile(name string, data []byte, perm fs.FileMode) error
	MkdirAll(path string, perm fs.FileMode) error
	Remove(name string) error
	Rename(oldpath, newpath string) error
	Chmod(name string, mode fs.FileMode) error
	Chtimes(name string, atime, mtime time.Time) error
}

// FileSystem combines read and write operations.
type FileSystem interface {
	ReadFS
	WriteFS
}

// StatFS extends ReadFS with Stat capabilities for better io/fs compatibility.
type StatFS interface {
	ReadFS
	Stat(name string) (fs.FileInfo, error)
}

// FullFileSystem provides the complete filesystem interface including Stat.
type FullFileSystem interface {
	FileSystem
	Stat(name string) (fs.FileInfo, error)
}

// Exists reports whether name can be stat'ed on fsys.
func Exists(fsys StatFS, name string) bool {
	_, err := fsys.Stat(name)
	return err == nil
}

// IsReadOnly reports whether name exists and lacks owner write
// permission.
func IsReadOnly(fsys StatFS, name string) bool {
	info, err := fsys.Stat(name)
	if err != nil {
		return false
	}
	return info.Mode().Perm()&0200 == 0
}
