package filesystems

import (
	"io/fs"
	"iter"
	"time"
)

// FileSystem abstracts the project tree a package is built from
type FileSystem interface {
	// ReadFile reads the named file and returns its contents
	ReadFile(name string) ([]byte, error)

	// ReadDir returns an iterator over the entries of the named directory,
	// sorted by name
	ReadDir(name string) iter.Seq2[DirEntry, error]

	// Stat returns file info for the named path
	Stat(name string) (FileInfo, error)

	// Join joins path elements into a single path
	Join(elem ...string) string

	// Rel returns a relative path from basepath to targpath
	Rel(basepath, targpath string) (string, error)
}

// DirEntry provides information about a directory entry
type DirEntry interface {
	Name() string
	IsDir() bool
	Info() (FileInfo, error)
}

// FileInfo provides information about a file
type FileInfo interface {
	Name() string
	Size() int64
	Mode() fs.FileMode
	ModTime() time.Time
	IsDir() bool
}

// Exists reports whether name can be stat'ed.
func Exists(fsys FileSystem, name string) bool {
	_, err := fsys.Stat(name)
	return err == nil
}
