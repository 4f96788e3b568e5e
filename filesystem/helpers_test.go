package filesystem

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/brettbedarf/sfm/config"
	"github.com/brettbedarf/sfm/internal/util"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// skipIfRoot skips tests that rely on permission bits; access(2) grants
// everything to uid 0.
func skipIfRoot(t *testing.T) {
	t.Helper()
	if os.Geteuid() == 0 {
		t.Skip("permission checks are bypassed for root")
	}
}

// newTestRoot returns a canonical temp directory.
func newTestRoot(t *testing.T) string {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return root
}

// writeFile creates rel under root with the given content, making parents.
func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

// mkdirs creates rel under root.
func mkdirs(t *testing.T, root, rel string) string {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(p, 0o755))
	return p
}

// chmod changes mode and restores 0755 at cleanup so TempDir removal works.
func chmod(t *testing.T, p string, mode os.FileMode) {
	t.Helper()
	require.NoError(t, os.Chmod(p, mode))
	t.Cleanup(func() { _ = os.Chmod(p, 0o755) })
}

func newTestOps(t *testing.T, root string, readOnly bool, hidden ...string) *Ops {
	t.Helper()
	res, err := NewResolver(root, hidden...)
	require.NoError(t, err)
	var fsys afero.Fs = afero.NewOsFs()
	if readOnly {
		fsys = afero.NewReadOnlyFs(fsys)
	}
	return NewOps(fsys, res, NewOracle(res.Root(), readOnly, res.Hidden()...))
}

func createTestConfig(root string) *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.Root = root
	cfg.LogLvl = util.InfoLevel
	return cfg
}

func newTestDispatcher(t *testing.T, root string, mutate ...func(*config.Config)) *Dispatcher {
	t.Helper()
	cfg := createTestConfig(root)
	for _, fn := range mutate {
		fn(cfg)
	}
	d, err := NewDispatcher(cfg)
	require.NoError(t, err)
	return d
}
