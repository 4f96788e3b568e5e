package davfs

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/brettbedarf/sfm"
	"github.com/brettbedarf/sfm/config"
	"github.com/brettbedarf/sfm/filesystem"
	"github.com/brettbedarf/sfm/internal/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (string, *httptest.Server) {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	cfg := config.NewDefaultConfig()
	cfg.Root = root
	d, err := filesystem.NewDispatcher(cfg)
	require.NoError(t, err)

	srv := httptest.NewServer(NewHandler(d, "/dav/"))
	t.Cleanup(srv.Close)
	return root, srv
}

func do(t *testing.T, method, url string, body io.Reader, hdr map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestWebDAVRoundTrip(t *testing.T) {
	t.Parallel()
	root, srv := newTestServer(t)

	resp := do(t, "MKCOL", srv.URL+"/dav/reports", nil, nil)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.DirExists(t, filepath.Join(root, "reports"))

	resp = do(t, http.MethodPut, srv.URL+"/dav/reports/q1.txt", strings.NewReader("numbers"), nil)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	got, err := os.ReadFile(filepath.Join(root, "reports", "q1.txt"))
	require.NoError(t, err)
	assert.Equal(t, "numbers", string(got))

	resp = do(t, http.MethodGet, srv.URL+"/dav/reports/q1.txt", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "numbers", string(body))

	resp = do(t, "PROPFIND", srv.URL+"/dav/reports/", nil, map[string]string{"Depth": "1"})
	require.Equal(t, http.StatusMultiStatus, resp.StatusCode)
	body, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "q1.txt")

	resp = do(t, http.MethodDelete, srv.URL+"/dav/reports", nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.NoDirExists(t, filepath.Join(root, "reports"))
}

func TestWebDAVConfinement(t *testing.T) {
	t.Parallel()
	root, srv := newTestServer(t)
	outside, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret"), []byte("s"), 0o644))
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "escape")))

	resp := do(t, http.MethodGet, srv.URL+"/dav/escape/secret", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, http.MethodPut, srv.URL+"/dav/escape/new.txt", strings.NewReader("x"), nil)
	assert.GreaterOrEqual(t, resp.StatusCode, 400)
	assert.NoFileExists(t, filepath.Join(outside, "new.txt"))

	resp = do(t, http.MethodDelete, srv.URL+"/dav/", nil, nil)
	assert.GreaterOrEqual(t, resp.StatusCode, 400)
	assert.DirExists(t, root)
}

func TestWebDAVMoveRefused(t *testing.T) {
	t.Parallel()
	root, srv := newTestServer(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("a"), 0o644))

	resp := do(t, "MOVE", srv.URL+"/dav/a.txt", nil, map[string]string{"Destination": srv.URL + "/dav/b.txt"})
	assert.GreaterOrEqual(t, resp.StatusCode, 400)
	assert.FileExists(t, filepath.Join(root, "a.txt"))
	assert.NoFileExists(t, filepath.Join(root, "b.txt"))
}

func TestErrorMapping(t *testing.T) {
	t.Parallel()
	op := &mocks.MockOperator{}
	op.On("Dispatch", mock.Anything, mocks.MatchVerb(sfm.VerbStat)).Return(nil, sfm.NewError(sfm.KindForbidden, nil))
	op.On("Dispatch", mock.Anything, mocks.MatchVerb(sfm.VerbDelete)).Return(nil, sfm.NewError(sfm.KindForbidden, nil))
	op.On("Dispatch", mock.Anything, mocks.MatchVerb(sfm.VerbMkdir)).Return(nil, sfm.NewError(sfm.KindOperationFailed, nil))
	fsys := New(op)
	ctx := context.Background()

	_, err := fsys.Stat(ctx, "/missing")
	assert.True(t, os.IsNotExist(err))

	err = fsys.RemoveAll(ctx, "/locked")
	assert.True(t, os.IsPermission(err))

	err = fsys.Mkdir(ctx, "/a/b", 0o755)
	assert.Error(t, err)
	assert.False(t, os.IsNotExist(err))

	assert.ErrorIs(t, fsys.Rename(ctx, "/a", "/b"), os.ErrPermission)

	_, err = fsys.OpenFile(ctx, "/x.txt", os.O_WRONLY|os.O_APPEND, 0)
	assert.ErrorIs(t, err, os.ErrPermission)
	op.AssertExpectations(t)
}

func TestMkdirSplitsParent(t *testing.T) {
	t.Parallel()
	op := &mocks.MockOperator{}
	op.On("Dispatch", mock.Anything, mock.MatchedBy(func(req *sfm.Request) bool {
		return req.Path == "/a/" && req.Op == sfm.MkdirOp{Name: "b"}
	})).Return(&sfm.Result{}, nil).Once()

	require.NoError(t, New(op).Mkdir(context.Background(), "a/b/", 0o755))
	op.AssertExpectations(t)
}

func TestDirReaddirPaging(t *testing.T) {
	t.Parallel()
	entries := []sfm.Entry{{Name: "a"}, {Name: "b"}, {Name: "c"}}
	op := &mocks.MockOperator{}
	op.On("Dispatch", mock.Anything, mocks.MatchVerb(sfm.VerbList)).Return(&sfm.Result{Entries: entries}, nil).Once()

	d := &dirFile{ctx: context.Background(), fs: New(op), path: "/"}
	page, err := d.Readdir(2)
	require.NoError(t, err)
	assert.Len(t, page, 2)
	page, err = d.Readdir(2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "c", page[0].Name())
	_, err = d.Readdir(2)
	assert.ErrorIs(t, err, io.EOF)
	op.AssertExpectations(t)
}

func TestUploadFileReportsFailureOnClose(t *testing.T) {
	t.Parallel()
	op := &mocks.MockOperator{}
	op.On("Dispatch", mock.Anything, mocks.MatchVerb(sfm.VerbUpload)).Return(nil, sfm.NewError(sfm.KindForbidden, nil))

	u := newUploadFile(context.Background(), op, "/", "x.txt")
	// the operator never reads, so writes fail once it has returned
	_, _ = u.Write([]byte("data"))
	err := u.Close()
	assert.True(t, os.IsPermission(err))
	assert.Equal(t, err, u.Close())
}
