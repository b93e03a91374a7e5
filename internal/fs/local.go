package fs

import (
	"os"
	"path/filepath"
)

// LocalFS implements FileSystem using the local filesystem.
//
// An empty root means paths are used exactly as given, relative to the
// working directory or absolute.
type LocalFS struct {
	root string
}

// NewLocalFS creates a LocalFS rooted at the given directory.
func NewLocalFS(root string) *LocalFS {
	return &LocalFS{root: root}
}

func (l *LocalFS) abs(path string) string {
	if path == "" || path == "." {
		if l.root == "" {
			return "."
		}
		return l.root
	}
	if l.root == "" {
		return filepath.FromSlash(path)
	}
	return filepath.Join(l.root, filepath.FromSlash(path))
}

// ReadFile reads the contents of the file at the given path relative to the root.
func (l *LocalFS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(l.abs(path))
}

// Stat returns metadata for the file or directory at the given path relative to the root.
func (l *LocalFS) Stat(path string) (FileInfo, error) {
	info, err := os.Stat(l.abs(path))
	if err != nil {
		return FileInfo{}, err
	}
	return FileInfo{
		Name:    info.Name(),
		IsDir:   info.IsDir(),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// ReadDir lists the immediate children of the directory at the given path relative to the root.
func (l *LocalFS) ReadDir(path string) ([]DirEntry, error) {
	entries, err := os.ReadDir(l.abs(path))
	if err != nil {
		return nil, err
	}
	result := make([]DirEntry, len(entries))
	for i, e := range entries {
		result[i] = DirEntry{
			Name:  e.Name(),
			IsDir: e.IsDir(),
		}
	}
	return result, nil
}

// Glob returns the paths matching pattern, relative to the root when one is set.
func (l *LocalFS) Glob(pattern string) ([]string, error) {
	if pattern == "" {
		return nil, nil
	}
	matches, err := filepath.Glob(l.abs(pattern))
	if err != nil {
		return nil, err
	}
	if l.root == "" {
		for i, m := range matches {
			matches[i] = filepath.ToSlash(m)
		}
		return matches, nil
	}
	result := make([]string, 0, len(matches))
	for _, m := range matches {
		rel, err := filepath.Rel(l.root, m)
		if err != nil {
			return nil, err
		}
		result = append(result, filepath.ToSlash(rel))
	}
	return result, nil
}
