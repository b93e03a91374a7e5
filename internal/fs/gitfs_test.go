package fs

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRepo creates a temporary git repository holding a small night of
// observations.
func setupTestRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	dir := t.TempDir()

	git := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
		cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, "git %v\n%s", args, out)
	}

	git("init")
	git("config", "user.email", "test@test.com")
	git("config", "user.name", "Test")

	nightDir := filepath.Join(dir, "night1")
	require.NoError(t, os.MkdirAll(nightDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.txt"), []byte("observing log\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(nightDir, "bias.fits"), []byte("bias"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(nightDir, "flat.fits"), []byte("flat"), 0o644))

	git("add", "-A")
	git("commit", "-m", "initial commit")

	return dir
}

func TestGitFS_Stat_Root(t *testing.T) {
	g := NewGitFS(setupTestRepo(t), "HEAD")

	info, err := g.Stat("")
	require.NoError(t, err)
	assert.True(t, info.IsDir)
}

func TestGitFS_Stat(t *testing.T) {
	g := NewGitFS(setupTestRepo(t), "HEAD")

	info, err := g.Stat("night1")
	require.NoError(t, err)
	assert.True(t, info.IsDir)
	assert.Equal(t, "night1", info.Name)

	info, err = g.Stat("night1/flat.fits")
	require.NoError(t, err)
	assert.False(t, info.IsDir)
	assert.Equal(t, int64(4), info.Size)

	_, err = g.Stat("night2")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestGitFS_ReadDir(t *testing.T) {
	g := NewGitFS(setupTestRepo(t), "HEAD")

	entries, err := g.ReadDir("")
	require.NoError(t, err)
	assert.Equal(t, []DirEntry{{Name: "README.txt"}, {Name: "night1", IsDir: true}}, entries)

	entries, err = g.ReadDir("night1")
	require.NoError(t, err)
	assert.Equal(t, []DirEntry{{Name: "bias.fits"}, {Name: "flat.fits"}}, entries)
}

func TestGitFS_ReadFile(t *testing.T) {
	g := NewGitFS(setupTestRepo(t), "HEAD")

	content, err := g.ReadFile("night1/bias.fits")
	require.NoError(t, err)
	assert.Equal(t, "bias", string(content))

	_, err = g.ReadFile("nonexistent.fits")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestGitFS_Glob(t *testing.T) {
	g := NewGitFS(setupTestRepo(t), "HEAD")

	tests := []struct {
		pattern string
		want    []string
	}{
		{"night1/*.fits", []string{"night1/bias.fits", "night1/flat.fits"}},
		{"night*", []string{"night1"}},
		{"./night1/f*", []string{"night1/flat.fits"}},
		{"*.fits", nil},
		{".", []string{"."}},
		{"./", []string{"."}},
		{"", nil},
	}
	for _, tt := range tests {
		got, err := g.Glob(tt.pattern)
		require.NoError(t, err, tt.pattern)
		assert.Equal(t, tt.want, got, tt.pattern)
	}

	_, err := g.Glob("[")
	assert.Error(t, err)
}
