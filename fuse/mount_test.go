package fuse

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/brettbedarf/sfm/config"
	"github.com/brettbedarf/sfm/filesystem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipWithoutFuse(t *testing.T) {
	t.Helper()
	if _, err := os.Stat("/dev/fuse"); err != nil {
		t.Skip("/dev/fuse not available")
	}
	if _, err := exec.LookPath("fusermount"); err != nil {
		if _, err := exec.LookPath("fusermount3"); err != nil {
			t.Skip("fusermount not installed")
		}
	}
}

func TestMountRoundTrip(t *testing.T) {
	skipWithoutFuse(t)

	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, "existing.txt"), []byte("on disk"), 0o644))

	cfg := config.NewDefaultConfig()
	cfg.Root = root
	d, err := filesystem.NewDispatcher(cfg)
	require.NoError(t, err)

	mnt := t.TempDir()
	srv, err := Mount(d, config.MountOptions{MountPoint: mnt, FsName: "sfm-test", Name: "sfm"})
	if err != nil {
		t.Skipf("mount failed: %v", err)
	}
	t.Cleanup(func() { _ = srv.Unmount() })

	got, err := os.ReadFile(filepath.Join(mnt, "existing.txt"))
	require.NoError(t, err)
	assert.Equal(t, "on disk", string(got))

	require.NoError(t, os.Mkdir(filepath.Join(mnt, "reports"), 0o755))
	assert.DirExists(t, filepath.Join(root, "reports"))

	require.NoError(t, os.WriteFile(filepath.Join(mnt, "reports", "q1.txt"), []byte("numbers"), 0o644))
	got, err = os.ReadFile(filepath.Join(root, "reports", "q1.txt"))
	require.NoError(t, err)
	assert.Equal(t, "numbers", string(got))

	entries, err := os.ReadDir(filepath.Join(mnt, "reports"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "q1.txt", entries[0].Name())

	assert.Error(t, os.Remove(filepath.Join(mnt, "reports")), "rmdir of a non-empty dir")
	require.NoError(t, os.Remove(filepath.Join(mnt, "reports", "q1.txt")))
	require.NoError(t, os.Remove(filepath.Join(mnt, "reports")))
	assert.NoDirExists(t, filepath.Join(root, "reports"))

	_, err = os.Stat(filepath.Join(mnt, "missing"))
	assert.True(t, os.IsNotExist(err))
}
