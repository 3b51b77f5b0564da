package filesystems

import (
	"strings"
)

// FindFile looks for a file with the given name (case-insensitive) in dir.
// Returns the actual path with correct case if found, empty string if not found.
func FindFile(filesystem FileSystem, dir, filename string) (string, error) {
	for entry, err := range filesystem.ReadDir(dir) {
		if err != nil {
			return "", err
		}
		if !entry.IsDir() && strings.EqualFold(entry.Name(), filename) {
			return filesystem.Join(dir, entry.Name()), nil
		}
	}

	return "", nil
}

// FindBySuffix returns the first file in dir whose name ends with suffix,
// compared case-insensitively.
func FindBySuffix(filesystem FileSystem, dir, suffix string) (string, error) {
	suffix = strings.ToLower(suffix)
	for entry, err := range filesystem.ReadDir(dir) {
		if err != nil {
			return "", err
		}
		if !entry.IsDir() && strings.HasSuffix(strings.ToLower(entry.Name()), suffix) {
			return filesystem.Join(dir, entry.Name()), nil
		}
	}

	return "", nil
}
