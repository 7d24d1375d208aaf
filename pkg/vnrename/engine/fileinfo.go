package engine

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/vnrename/vnrename/pkg/vnrename/filesystem"
)

// FileInfo describes one candidate entry for renaming. Paths are
// slash-separated and relative to the filesystem root.
type FileInfo struct {
	Name     string
	Path     string
	Dir      string
	Size     int64
	ModTime  time.Time
	IsDir    bool
	ReadOnly bool
}

// ScanOptions controls folder scanning.
type ScanOptions struct {
	Recursive     bool
	IncludeHidden bool
	IncludeDirs   bool
}

// ScanFolder lists the renameable entries under dir ("." for the
// filesystem root), in sorted order for deterministic batches.
func ScanFolder(fsys filesystem.FullFileSystem, dir string, opts ScanOptions) ([]FileInfo, error) {
	if dir == "" {
		dir = "."
	}
	info, err := fsys.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot scan %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", dir)
	}

	var files []FileInfo
	collect := func(entryPath string, d fs.DirEntry) error {
		name := d.Name()
		if !opts.IncludeHidden && strings.HasPrefix(name, ".") {
			return nil
		}
		if d.IsDir() && !opts.IncludeDirs {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return nil // entry vanished mid-scan, skip it
		}
		files = append(files, FileInfo{
			Name:     name,
			Path:     entryPath,
			Dir:      path.Dir(entryPath),
			Size:     fi.Size(),
			ModTime:  fi.ModTime(),
			IsDir:    d.IsDir(),
			ReadOnly: fi.Mode().Perm()&0200 == 0,
		})
		return nil
	}

	if opts.Recursive {
		err = fs.WalkDir(fsys, dir, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if p == dir {
				return nil
			}
			if !opts.IncludeHidden && strings.HasPrefix(d.Name(), ".") && d.IsDir() {
				return fs.SkipDir
			}
			return collect(p, d)
		})
	} else {
		var entries []fs.DirEntry
		entries, err = fs.ReadDir(fsys, dir)
		if err == nil {
			for _, d := range entries {
				if cerr := collect(path.Join(dir, d.Name()), d); cerr != nil {
					err = cerr
					break
				}
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}
