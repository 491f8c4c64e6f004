package gitsync

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		require.NoError(t, cmd.Run())
	}
	run("init", "-q")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "test")
	return dir
}

func TestIsGitModuleTrueForInitializedRepo(t *testing.T) {
	dir := initRepo(t)
	assert.True(t, IsGitModule(context.Background(), dir))
}

func TestIsGitModuleFalseForPlainDirectory(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, IsGitModule(context.Background(), dir))
}

func TestCheckReportsUnsyncedWithUncommittedChanges(t *testing.T) {
	dir := initRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o644))

	result, err := Check(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, StatusUnsynced, result.Status)
}

func TestCommitAndPushCommitsWithoutRemote(t *testing.T) {
	dir := initRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o644))

	err := CommitAndPush(context.Background(), dir, "test commit")
	// No remote configured in this fixture, so the push leg fails; the
	// commit itself must still have succeeded.
	assert.Error(t, err)

	status, statusErr := runGit(context.Background(), dir, "status", "--porcelain")
	require.NoError(t, statusErr)
	assert.Empty(t, status)
}
