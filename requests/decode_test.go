package requests

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/brettbedarf/sfm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func formRequest(values url.Values) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/api/x", strings.NewReader(values.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

func TestDecodeQueryVerbs(t *testing.T) {
	t.Parallel()
	r := httptest.NewRequest(http.MethodGet, "/api/list?file=docs%2Fsub", nil)

	req, err := DecodeList(r)
	require.NoError(t, err)
	assert.Equal(t, "docs/sub", req.Path)
	assert.IsType(t, sfm.ListOp{}, req.Op)

	req, err = DecodeDownload(r)
	require.NoError(t, err)
	assert.IsType(t, sfm.DownloadOp{}, req.Op)

	req, err = DecodeStat(httptest.NewRequest(http.MethodGet, "/api/stat", nil))
	require.NoError(t, err)
	assert.Equal(t, "", req.Path)
}

func TestDecodeMkdirAndDelete(t *testing.T) {
	t.Parallel()

	req, err := DecodeMkdir(formRequest(url.Values{FieldFile: {"a"}, FieldName: {"reports"}}))
	require.NoError(t, err)
	assert.Equal(t, "a", req.Path)
	assert.Equal(t, sfm.MkdirOp{Name: "reports"}, req.Op)

	req, err = DecodeDelete(formRequest(url.Values{FieldFile: {"a/b"}}))
	require.NoError(t, err)
	assert.Equal(t, "a/b", req.Path)
	assert.Equal(t, sfm.DeleteOp{}, req.Op)
}

func multipartRequest(t *testing.T, path, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	require.NoError(t, w.WriteField(FieldFile, path))
	if filename != "" {
		part, err := w.CreateFormFile(FieldData, filename)
		require.NoError(t, err)
		_, err = io.WriteString(part, content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	r := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	r.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, r.ParseMultipartForm(1<<20))
	return r
}

func TestDecodeUpload(t *testing.T) {
	t.Parallel()
	r := multipartRequest(t, "sub", "hello.txt", "hello")

	req, err := DecodeUpload(r)
	require.NoError(t, err)
	assert.Equal(t, "sub", req.Path)

	op, ok := req.Op.(sfm.UploadOp)
	require.True(t, ok)
	assert.Equal(t, "hello.txt", op.Name)
	assert.EqualValues(t, 5, op.Size)
	require.NotNil(t, op.Data)
	data, err := io.ReadAll(op.Data)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestDecodeUploadMissingPart(t *testing.T) {
	t.Parallel()
	r := multipartRequest(t, "sub", "", "")

	req, err := DecodeUpload(r)
	require.NoError(t, err)
	op := req.Op.(sfm.UploadOp)
	assert.Nil(t, op.Data)
	assert.EqualValues(t, -1, op.Size)
}

func TestDTOs(t *testing.T) {
	t.Parallel()
	mtime := time.Unix(1700000000, 0)
	dto := NewEntryDTO(sfm.Entry{
		Name: "a.txt", Path: "d/a.txt", Size: 3, ModTime: mtime,
		Flags:     sfm.Flags{Readable: true},
		Deletable: true,
	})
	assert.Equal(t, int64(1700000000), dto.Mtime)
	assert.True(t, dto.Deletable)
	assert.False(t, dto.Writable)

	list := NewListResponse(nil)
	assert.True(t, list.Success)
	assert.NotNil(t, list.Results)

	resp := NewErrorResponse(sfm.Errorf(sfm.KindForbidden, nil, "XSRF Failure"))
	assert.Equal(t, ErrorDTO{Code: 403, Kind: "forbidden", Msg: "XSRF Failure"}, resp.Error)
}
