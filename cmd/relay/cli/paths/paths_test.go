package paths

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizePathForClaude(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  string
	}{
		{"/Users/test/myrepo", "-Users-test-myrepo"},
		{"/home/user/my.project", "-home-user-my-project"},
		{"simple", "simple"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, SanitizePathForClaude(tt.input))
		})
	}
}

func TestClaudeProjectDir_Override(t *testing.T) {
	t.Setenv(ClaudeProjectDirEnvVar, "/tmp/transcripts")

	dir, err := ClaudeProjectDir("/any/path")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/transcripts", dir)
}

func TestClaudeProjectDir_Default(t *testing.T) {
	t.Setenv(ClaudeProjectDirEnvVar, "")

	homeDir, err := os.UserHomeDir()
	require.NoError(t, err)

	dir, err := ClaudeProjectDir("/Users/test/myrepo")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(homeDir, ".claude", "projects", "-Users-test-myrepo"), dir)
}

func TestClaudeProjectDir_RequiresPath(t *testing.T) {
	t.Setenv(ClaudeProjectDirEnvVar, "")

	_, err := ClaudeProjectDir("")
	assert.Error(t, err)
}

func TestHome_Override(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv(HomeEnvVar, tmp)

	home, err := Home()
	require.NoError(t, err)
	assert.Equal(t, tmp, home)

	p, err := HomePath(SocketFileName)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tmp, SocketFileName), p)
}

func TestEnsureHome_CreatesDirectory(t *testing.T) {
	tmp := filepath.Join(t.TempDir(), "state")
	t.Setenv(HomeEnvVar, tmp)

	home, err := EnsureHome()
	require.NoError(t, err)

	info, err := os.Stat(home)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestProjectRoot_OutsideRepoFallsBackToCwd(t *testing.T) {
	tmp := t.TempDir()
	t.Chdir(tmp)
	ClearProjectRootCache()
	t.Cleanup(ClearProjectRootCache)

	root, err := ProjectRoot()
	require.NoError(t, err)

	want, err := filepath.EvalSymlinks(tmp)
	require.NoError(t, err)
	got, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
