// Package davfs exposes an [sfm.Operator] as a WebDAV filesystem. Every
// WebDAV call is turned into one or more operator requests, so confinement
// and permission checks are never bypassed.
package davfs

import (
	"context"
	"net/http"
	"os"
	"path"
	"strings"
	"syscall"

	"github.com/brettbedarf/sfm"
	"github.com/brettbedarf/sfm/internal/util"
	"golang.org/x/net/webdav"
)

// FS implements webdav.FileSystem over an Operator.
type FS struct {
	op     sfm.Operator
	logger util.Logger
}

var _ webdav.FileSystem = (*FS)(nil)

func New(op sfm.Operator) *FS {
	return &FS{op: op, logger: util.GetLogger("WebDAV")}
}

// NewHandler mounts FS under prefix with an in-memory lock system.
func NewHandler(op sfm.Operator, prefix string) *webdav.Handler {
	fsys := New(op)
	return &webdav.Handler{
		Prefix:     strings.TrimSuffix(prefix, "/"),
		FileSystem: fsys,
		LockSystem: webdav.NewMemLS(),
		Logger: func(r *http.Request, err error) {
			if err != nil {
				fsys.logger.Debug().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("WebDAV request failed")
			}
		},
	}
}

// clean maps a WebDAV name onto a root relative path.
func clean(name string) string {
	return path.Clean("/" + name)
}

func (f *FS) dispatch(ctx context.Context, p string, op sfm.Op) (*sfm.Result, error) {
	return f.op.Dispatch(ctx, sfm.NewRequest(p, op))
}

// toOSError converts core errors into the os errors the webdav handler
// inspects. missing turns Forbidden into not-exist for calls where the
// caller must be able to tell "absent" from "refused" to create things.
func toOSError(err error, missing bool) error {
	if err == nil {
		return nil
	}
	switch sfm.KindOf(err) {
	case sfm.KindForbidden:
		if missing {
			return os.ErrNotExist
		}
		return os.ErrPermission
	case sfm.KindNotFound:
		return os.ErrNotExist
	case sfm.KindNotADirectory:
		return syscall.ENOTDIR
	case sfm.KindInvalidName:
		return os.ErrInvalid
	}
	return err
}

// Stat reports refused paths as missing; the core does not distinguish them.
func (f *FS) Stat(ctx context.Context, name string) (os.FileInfo, error) {
	res, err := f.dispatch(ctx, clean(name), sfm.StatOp{})
	if err != nil {
		return nil, toOSError(err, true)
	}
	return newFileInfo(*res.Entry), nil
}

func (f *FS) Mkdir(ctx context.Context, name string, _ os.FileMode) error {
	dir, base := path.Split(clean(name))
	_, err := f.dispatch(ctx, dir, sfm.MkdirOp{Name: base})
	return toOSError(err, true)
}

func (f *FS) RemoveAll(ctx context.Context, name string) error {
	_, err := f.dispatch(ctx, clean(name), sfm.DeleteOp{})
	return toOSError(err, false)
}

// Rename is not an operation of the core; MOVE is refused.
func (f *FS) Rename(context.Context, string, string) error {
	return os.ErrPermission
}

const writeFlags = os.O_WRONLY | os.O_RDWR | os.O_CREATE | os.O_TRUNC | os.O_APPEND

// OpenFile opens directories and files for reading. Any write flag starts a
// streaming upload that replaces the file and completes on Close.
func (f *FS) OpenFile(ctx context.Context, name string, flag int, _ os.FileMode) (webdav.File, error) {
	p := clean(name)
	if flag&writeFlags != 0 {
		if flag&os.O_APPEND != 0 {
			return nil, os.ErrPermission
		}
		dir, base := path.Split(p)
		if _, err := f.dispatch(ctx, dir, sfm.StatOp{}); err != nil {
			return nil, toOSError(err, true)
		}
		return newUploadFile(ctx, f.op, dir, base), nil
	}

	res, err := f.dispatch(ctx, p, sfm.StatOp{})
	if err != nil {
		return nil, toOSError(err, true)
	}
	info := newFileInfo(*res.Entry)
	if info.IsDir() {
		return &dirFile{ctx: ctx, fs: f, path: p, info: info}, nil
	}

	res, err = f.dispatch(ctx, p, sfm.DownloadOp{})
	if err != nil {
		return nil, toOSError(err, false)
	}
	return &readFile{File: res.Download.Body, info: info}, nil
}
