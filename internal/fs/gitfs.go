package fs

import (
	"fmt"
	"os"
	"os/exec"
	"path"
	"strconv"
	"strings"
	"time"
)

// GitFS implements FileSystem by reading from a git ref (branch, tag, or commit),
// so archived observation runs can be browsed without a checkout.
type GitFS struct {
	repoPath string
	ref      string
}

// NewGitFS creates a GitFS that reads files from the given ref in the repository at repoPath.
func NewGitFS(repoPath, ref string) *GitFS {
	return &GitFS{repoPath: repoPath, ref: ref}
}

func (g *GitFS) git(args ...string) ([]byte, error) {
	cmd := exec.Command("git", append([]string{"-C", g.repoPath}, args...)...)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("git %s: %s", strings.Join(args, " "), strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, err
	}
	return out, nil
}

// treeEntry is one parsed line of `git ls-tree` output.
type treeEntry struct {
	objType string
	name    string
}

// lsTree runs ls-tree with the given extra arguments and parses
// "<mode> <type> <hash>\t<name>" lines.
func (g *GitFS) lsTree(args ...string) ([]treeEntry, error) {
	out, err := g.git(append([]string{"ls-tree"}, append(args[:len(args):len(args)], g.ref)...)...)
	if err != nil {
		return nil, err
	}
	var entries []treeEntry
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		tabIdx := strings.IndexByte(line, '\t')
		if tabIdx < 0 {
			continue
		}
		fields := strings.Fields(line[:tabIdx])
		if len(fields) < 3 {
			continue
		}
		entries = append(entries, treeEntry{objType: fields[1], name: line[tabIdx+1:]})
	}
	return entries, nil
}

// ReadFile reads the contents of the file at the given path from the git ref.
func (g *GitFS) ReadFile(p string) ([]byte, error) {
	if p == "" || p == "." {
		return nil, fmt.Errorf("cannot read directory as file")
	}
	out, err := g.git("show", g.ref+":"+p)
	if err != nil {
		if strings.Contains(err.Error(), "exist") {
			return nil, os.ErrNotExist
		}
		return nil, err
	}
	return out, nil
}

// Stat returns metadata for the file or directory at the given path in the git ref.
func (g *GitFS) Stat(p string) (FileInfo, error) {
	if p == "" || p == "." {
		if _, err := g.git("rev-parse", "--verify", g.ref); err != nil {
			return FileInfo{}, os.ErrNotExist
		}
		return FileInfo{Name: g.ref, IsDir: true, ModTime: g.modTime("")}, nil
	}

	p = strings.TrimSuffix(p, "/")
	parent := path.Dir(p)
	var entries []treeEntry
	var err error
	if parent == "." {
		entries, err = g.lsTree()
	} else {
		entries, err = g.lsTree("--full-tree", "-r", "-t")
	}
	if err != nil {
		return FileInfo{}, os.ErrNotExist
	}

	for _, e := range entries {
		if e.name != p {
			continue
		}
		info := FileInfo{Name: path.Base(p), IsDir: e.objType == "tree", ModTime: g.modTime(p)}
		if !info.IsDir {
			if out, err := g.git("cat-file", "-s", g.ref+":"+p); err == nil {
				info.Size, _ = strconv.ParseInt(strings.TrimSpace(string(out)), 10, 64)
			}
		}
		return info, nil
	}
	return FileInfo{}, os.ErrNotExist
}

// ReadDir lists the immediate children of the directory at the given path in the git ref.
func (g *GitFS) ReadDir(p string) ([]DirEntry, error) {
	var out []byte
	var err error
	if p == "" || p == "." {
		out, err = g.git("ls-tree", g.ref)
	} else {
		out, err = g.git("ls-tree", g.ref, strings.TrimSuffix(p, "/")+"/")
	}
	if err != nil {
		return nil, os.ErrNotExist
	}

	entries := []DirEntry{}
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		tabIdx := strings.IndexByte(line, '\t')
		if tabIdx < 0 {
			continue
		}
		fields := strings.Fields(line[:tabIdx])
		if len(fields) < 3 {
			continue
		}
		entries = append(entries, DirEntry{
			Name:  path.Base(line[tabIdx+1:]),
			IsDir: fields[1] == "tree",
		})
	}
	return entries, nil
}

// Glob matches pattern against every blob and tree path in the ref.
func (g *GitFS) Glob(pattern string) ([]string, error) {
	if pattern == "" {
		return nil, nil
	}
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, err
	}
	pattern = strings.TrimSuffix(strings.TrimPrefix(pattern, "./"), "/")
	if pattern == "" || pattern == "." {
		if _, err := g.Stat("."); err != nil {
			return nil, nil
		}
		return []string{"."}, nil
	}
	entries, err := g.lsTree("--full-tree", "-r", "-t")
	if err != nil {
		return nil, err
	}
	var matches []string
	for _, e := range entries {
		if ok, _ := path.Match(pattern, e.name); ok {
			matches = append(matches, e.name)
		}
	}
	return matches, nil
}

func (g *GitFS) modTime(p string) time.Time {
	args := []string{"log", "-1", "--format=%ct", g.ref}
	if p != "" {
		args = append(args, "--", p)
	}
	out, err := g.git(args...)
	if err != nil {
		return time.Time{}
	}
	sec, err := strconv.ParseInt(strings.TrimSpace(string(out)), 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}
