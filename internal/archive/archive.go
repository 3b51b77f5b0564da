// Package archive collects the project files that belong in a deployment
// package and writes them into a seekable in-memory archive.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/railwayapp/funcpush/internal/filesystems"
	"github.com/railwayapp/funcpush/internal/ignore"
)

// Directories and files that never ship, whatever the ignore file says.
var (
	excludedDirs  = []string{".git", ".vscode"}
	excludedFiles = []string{ignore.FileName, ".gitignore", "local.settings.json", "project.lock.json"}
)

// Entry is one file selected for packaging.
type Entry struct {
	// Source is the path of the file inside the project filesystem.
	Source string
	// Path is relative to the project root, forward-slash separated.
	Path string
	Mode fs.FileMode
}

// Builder walks a project tree and selects files for a package.
type Builder struct {
	fsys        filesystems.FileSystem
	root        string
	matcher     *ignore.Matcher
	extraDirs   []string
	executables map[string]bool
	log         logrus.FieldLogger
}

// Option configures a Builder.
type Option func(*Builder)

// WithIgnore filters files through m. A nil matcher accepts everything.
func WithIgnore(m *ignore.Matcher) Option {
	return func(b *Builder) { b.matcher = m }
}

// WithExcludedDirs skips additional directory names at any depth.
func WithExcludedDirs(names ...string) Option {
	return func(b *Builder) { b.extraDirs = append(b.extraDirs, names...) }
}

// WithExecutables marks relative paths that are stored with mode 0755.
func WithExecutables(paths ...string) Option {
	return func(b *Builder) {
		for _, p := range paths {
			b.executables[normalize(p)] = true
		}
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(log logrus.FieldLogger) Option {
	return func(b *Builder) { b.log = log }
}

// NewBuilder creates a builder for the project at root.
func NewBuilder(fsys filesystems.FileSystem, root string, opts ...Option) *Builder {
	b := &Builder{
		fsys:        fsys,
		root:        root,
		executables: make(map[string]bool),
		log:         logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// LoadIgnore reads the project's ignore file. It returns nil when the
// project has none.
func LoadIgnore(fsys filesystems.FileSystem, root string) (*ignore.Matcher, error) {
	content, err := fsys.ReadFile(fsys.Join(root, ignore.FileName))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", ignore.FileName, err)
	}
	m, err := ignore.Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", ignore.FileName, err)
	}
	return m, nil
}

// Entries returns the files that go into the package, in walk order.
func (b *Builder) Entries(ctx context.Context) ([]Entry, error) {
	return b.collect(ctx, false)
}

// Ignored returns the files the ignore file filters out. Hard-excluded
// files are not reported.
func (b *Builder) Ignored(ctx context.Context) ([]Entry, error) {
	if b.matcher == nil {
		return nil, nil
	}
	return b.collect(ctx, true)
}

func (b *Builder) collect(ctx context.Context, ignored bool) ([]Entry, error) {
	var entries []Entry
	err := b.walk(ctx, b.root, func(e Entry) {
		pass := true
		if b.matcher != nil {
			if ignored {
				pass = b.matcher.Denies(e.Path)
			} else {
				pass = b.matcher.Accepts(e.Path)
			}
		}
		if pass {
			entries = append(entries, e)
		}
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// walk visits the files of dir before descending into its subdirectories.
func (b *Builder) walk(ctx context.Context, dir string, visit func(Entry)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var subdirs []string
	for entry, err := range b.fsys.ReadDir(dir) {
		if err != nil {
			return fmt.Errorf("failed to read directory %s: %w", dir, err)
		}
		name := entry.Name()
		full := b.fsys.Join(dir, name)

		if entry.IsDir() {
			if !b.excludedDir(name) {
				subdirs = append(subdirs, full)
			}
			continue
		}
		if containsFold(excludedFiles, name) {
			continue
		}

		rel, err := b.fsys.Rel(b.root, full)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", full, err)
		}
		rel = normalize(rel)

		mode := fs.FileMode(0644)
		if b.executables[rel] {
			mode = 0755
		}
		visit(Entry{Source: full, Path: rel, Mode: mode})
	}

	for _, sub := range subdirs {
		if err := b.walk(ctx, sub, visit); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) excludedDir(name string) bool {
	return containsFold(excludedDirs, name) || containsFold(b.extraDirs, name)
}

func containsFold(list []string, name string) bool {
	return slices.ContainsFunc(list, func(s string) bool { return strings.EqualFold(s, name) })
}

func normalize(p string) string {
	return strings.Trim(filepath.ToSlash(p), "/")
}
