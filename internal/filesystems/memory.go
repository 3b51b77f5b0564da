package filesystems

import (
	"fmt"
	"io/fs"
	"iter"
	"path"
	"sort"
	"strings"
	"time"
)

// MemoryFS implements FileSystem for in-memory project trees
type MemoryFS struct {
	files map[string]memoryFile
	dirs  map[string]bool
}

type memoryFile struct {
	content []byte
	mode    fs.FileMode
}

// NewMemoryFS creates a new MemoryFS instance
func NewMemoryFS() *MemoryFS {
	return &MemoryFS{
		files: make(map[string]memoryFile),
		dirs:  map[string]bool{".": true},
	}
}

// AddFile adds a regular file with mode 0644
func (mfs *MemoryFS) AddFile(name string, content []byte) {
	mfs.AddFileMode(name, content, 0644)
}

// AddFileMode adds a file with the given permission bits
func (mfs *MemoryFS) AddFileMode(name string, content []byte, mode fs.FileMode) {
	name = path.Clean(name)
	mfs.files[name] = memoryFile{content: content, mode: mode}
	mfs.addParents(name)
}

// AddDir adds an empty directory
func (mfs *MemoryFS) AddDir(name string) {
	name = path.Clean(name)
	mfs.dirs[name] = true
	mfs.addParents(name)
}

func (mfs *MemoryFS) addParents(name string) {
	for dir := path.Dir(name); dir != "." && dir != "/"; dir = path.Dir(dir) {
		mfs.dirs[dir] = true
	}
}

func (mfs *MemoryFS) ReadFile(name string) ([]byte, error) {
	f, ok := mfs.files[path.Clean(name)]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", name, fs.ErrNotExist)
	}
	return f.content, nil
}

func (mfs *MemoryFS) Stat(name string) (FileInfo, error) {
	name = path.Clean(name)
	if f, ok := mfs.files[name]; ok {
		return &memoryFileInfo{name: path.Base(name), size: int64(len(f.content)), mode: f.mode}, nil
	}
	if mfs.dirs[name] {
		return &memoryFileInfo{name: path.Base(name), mode: fs.ModeDir | 0755}, nil
	}
	return nil, fmt.Errorf("stat %s: %w", name, fs.ErrNotExist)
}

func (mfs *MemoryFS) ReadDir(name string) iter.Seq2[DirEntry, error] {
	return func(yield func(DirEntry, error) bool) {
		dir := path.Clean(name)
		if !mfs.dirs[dir] {
			yield(nil, fmt.Errorf("open %s: %w", name, fs.ErrNotExist))
			return
		}

		children := make(map[string]bool)
		collect := func(p string, isDir bool) {
			if p == dir {
				return
			}
			rest := p
			if dir != "." {
				if !strings.HasPrefix(p, dir+"/") {
					return
				}
				rest = strings.TrimPrefix(p, dir+"/")
			}
			child, _, nested := strings.Cut(rest, "/")
			children[child] = children[child] || isDir || nested
		}
		for p := range mfs.files {
			collect(p, false)
		}
		for p := range mfs.dirs {
			collect(p, true)
		}

		names := make([]string, 0, len(children))
		for child := range children {
			names = append(names, child)
		}
		sort.Strings(names)

		for _, child := range names {
			full := path.Join(dir, child)
			if !yield(&memoryDirEntry{name: child, isDir: children[child], mfs: mfs, fullPath: full}, nil) {
				return
			}
		}
	}
}

func (mfs *MemoryFS) Join(elem ...string) string {
	return path.Join(elem...)
}

func (mfs *MemoryFS) Rel(basepath, targpath string) (string, error) {
	base := path.Clean(basepath)
	target := path.Clean(targpath)

	switch {
	case base == target:
		return ".", nil
	case base == ".":
		return target, nil
	case strings.HasPrefix(target, base+"/"):
		return strings.TrimPrefix(target, base+"/"), nil
	}
	return "", fmt.Errorf("%s is not under %s", targpath, basepath)
}

// memoryDirEntry implements DirEntry for memory filesystem
type memoryDirEntry struct {
	name     string
	isDir    bool
	mfs      *MemoryFS
	fullPath string
}

func (e *memoryDirEntry) Name() string { return e.name }

func (e *memoryDirEntry) IsDir() bool { return e.isDir }

func (e *memoryDirEntry) Info() (FileInfo, error) {
	return e.mfs.Stat(e.fullPath)
}

// memoryFileInfo implements FileInfo for memory filesystem
type memoryFileInfo struct {
	name string
	size int64
	mode fs.FileMode
}

func (fi *memoryFileInfo) Name() string       { return fi.name }
func (fi *memoryFileInfo) Size() int64        { return fi.size }
func (fi *memoryFileInfo) Mode() fs.FileMode  { return fi.mode }
func (fi *memoryFileInfo) ModTime() time.Time { return time.Time{} }
func (fi *memoryFileInfo) IsDir() bool        { return fi.mode.IsDir() }
