package davfs

import (
	"context"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"
	"sync"
	"time"

	"github.com/brettbedarf/sfm"
	"golang.org/x/net/webdav"
)

// fileInfo renders an Entry as fs.FileInfo.
type fileInfo struct {
	e sfm.Entry
}

var (
	_ fs.FileInfo         = fileInfo{}
	_ webdav.ContentTyper = fileInfo{}
)

func newFileInfo(e sfm.Entry) fileInfo {
	return fileInfo{e: e}
}

func (fi fileInfo) Name() string {
	if fi.e.Name == "" {
		return "/"
	}
	return fi.e.Name
}
func (fi fileInfo) Size() int64        { return fi.e.Size }
func (fi fileInfo) Mode() fs.FileMode  { return fi.e.Mode }
func (fi fileInfo) ModTime() time.Time { return fi.e.ModTime }
func (fi fileInfo) IsDir() bool        { return fi.e.IsDir }
func (fi fileInfo) Sys() any           { return nil }

// ContentType guesses from the extension so PROPFIND does not have to open
// every file; unknown extensions fall back to sniffing in the handler.
func (fi fileInfo) ContentType(context.Context) (string, error) {
	if ct := mime.TypeByExtension(path.Ext(fi.e.Name)); ct != "" {
		return ct, nil
	}
	return "", webdav.ErrNotImplemented
}

// readFile is an open download.
type readFile struct {
	sfm.File
	info fileInfo
}

func (f *readFile) Stat() (fs.FileInfo, error) { return f.info, nil }

func (f *readFile) Readdir(int) ([]fs.FileInfo, error) {
	return nil, &fs.PathError{Op: "readdir", Path: f.info.Name(), Err: fs.ErrInvalid}
}

func (f *readFile) Write([]byte) (int, error) { return 0, os.ErrPermission }

// dirFile lists lazily through the operator.
type dirFile struct {
	ctx     context.Context
	fs      *FS
	path    string
	info    fileInfo
	entries []fs.FileInfo
	loaded  bool
	pos     int
}

func (d *dirFile) Close() error { return nil }
func (d *dirFile) Read([]byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.path, Err: fs.ErrInvalid}
}
func (d *dirFile) Write([]byte) (int, error)      { return 0, os.ErrPermission }
func (d *dirFile) Seek(int64, int) (int64, error) { return 0, nil }
func (d *dirFile) Stat() (fs.FileInfo, error)     { return d.info, nil }

// Readdir follows the os.File contract: count <= 0 returns everything left,
// otherwise at most count entries and io.EOF once exhausted.
func (d *dirFile) Readdir(count int) ([]fs.FileInfo, error) {
	if !d.loaded {
		res, err := d.fs.dispatch(d.ctx, d.path, sfm.ListOp{})
		if err != nil {
			return nil, toOSError(err, false)
		}
		d.entries = make([]fs.FileInfo, 0, len(res.Entries))
		for _, e := range res.Entries {
			d.entries = append(d.entries, newFileInfo(e))
		}
		d.loaded = true
	}

	rest := d.entries[d.pos:]
	if count <= 0 {
		d.pos = len(d.entries)
		return rest, nil
	}
	if len(rest) == 0 {
		return nil, io.EOF
	}
	n := min(count, len(rest))
	d.pos += n
	return rest[:n], nil
}

// uploadFile streams writes into an UploadOp running on its own goroutine.
type uploadFile struct {
	name    string
	pw      *io.PipeWriter
	done    chan error
	written int64
	opened  time.Time

	closeOnce sync.Once
	closeErr  error
}

func newUploadFile(ctx context.Context, op sfm.Operator, dir, name string) *uploadFile {
	pr, pw := io.Pipe()
	u := &uploadFile{name: name, pw: pw, done: make(chan error, 1), opened: time.Now()}
	go func() {
		_, err := op.Dispatch(ctx, sfm.NewRequest(dir, sfm.UploadOp{Name: name, Data: pr, Size: -1}))
		// unblock writers if the operator stopped reading early
		pr.CloseWithError(err)
		u.done <- err
	}()
	return u
}

func (u *uploadFile) Write(p []byte) (int, error) {
	n, err := u.pw.Write(p)
	u.written += int64(n)
	return n, err
}

// Close finishes the upload and reports its outcome.
func (u *uploadFile) Close() error {
	u.closeOnce.Do(func() {
		u.pw.Close()
		u.closeErr = toOSError(<-u.done, false)
	})
	return u.closeErr
}

// Stat describes the file as written so far; the handler asks before Close.
func (u *uploadFile) Stat() (fs.FileInfo, error) {
	return newFileInfo(sfm.Entry{
		Name:    u.name,
		Size:    u.written,
		ModTime: u.opened,
		Mode:    0o644,
	}), nil
}

func (u *uploadFile) Read([]byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: u.name, Err: fs.ErrInvalid}
}

func (u *uploadFile) Seek(offset int64, whence int) (int64, error) {
	if offset == 0 && (whence == io.SeekCurrent || whence == io.SeekEnd) {
		return u.written, nil
	}
	return 0, &fs.PathError{Op: "seek", Path: u.name, Err: fs.ErrInvalid}
}

func (u *uploadFile) Readdir(int) ([]fs.FileInfo, error) {
	return nil, &fs.PathError{Op: "readdir", Path: u.name, Err: fs.ErrInvalid}
}
