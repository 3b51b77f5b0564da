package filesystems

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// NewFileSystem resolves a project location to a filesystem and the absolute
// root inside it. Supports:
// - /path/to/project or a relative path
// - file:///path/to/project
func NewFileSystem(uri string) (FileSystem, string, error) {
	p := uri
	if strings.Contains(uri, "://") {
		parsedURL, err := url.Parse(uri)
		if err != nil {
			return nil, "", fmt.Errorf("invalid URI %s: %w", uri, err)
		}
		if parsedURL.Scheme != "file" {
			return nil, "", fmt.Errorf("unsupported scheme: %s", parsedURL.Scheme)
		}
		p = parsedURL.Path
	}

	root, err := filepath.Abs(p)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get absolute path for %s: %w", uri, err)
	}

	lfs := NewLocalFS()
	info, err := lfs.Stat(root)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open project directory %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, "", fmt.Errorf("%s is not a directory", root)
	}
	return lfs, root, nil
}
