// Package fs provides filesystem abstractions for locating and reading data
// files from local disk or from a git repository.
package fs

import "time"

// FileInfo holds file metadata.
type FileInfo struct {
	Name    string
	IsDir   bool
	Size    int64
	ModTime time.Time
}

// DirEntry represents a single directory entry.
type DirEntry struct {
	Name  string
	IsDir bool
}

// FileSystem abstracts file operations so callers can work with either
// the local filesystem or a git object database.
//
// Paths are slash-separated. Glob uses shell-style wildcards with the
// semantics of path.Match and returns matches in lexical order.
type FileSystem interface {
	ReadFile(path string) ([]byte, error)
	Stat(path string) (FileInfo, error)
	ReadDir(path string) ([]DirEntry, error)
	Glob(pattern string) ([]string, error)
}
