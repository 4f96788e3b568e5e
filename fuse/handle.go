package fuse

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"syscall"

	"github.com/brettbedarf/sfm"
	gofs "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// readHandle serves reads straight from an open download.
type readHandle struct {
	body sfm.File
}

var (
	_ gofs.FileReader   = (*readHandle)(nil)
	_ gofs.FileReleaser = (*readHandle)(nil)
)

func (h *readHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	n, err := h.body.ReadAt(dest, off)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, syscall.EIO
	}
	return fuse.ReadResultData(dest[:n]), gofs.OK
}

func (h *readHandle) Release(ctx context.Context) syscall.Errno {
	if err := h.body.Close(); err != nil {
		return syscall.EIO
	}
	return gofs.OK
}

// writeHandle buffers the whole file and uploads it on flush. The core only
// replaces whole files, so random writes are applied to the buffer, which
// never grows past max bytes.
type writeHandle struct {
	op   sfm.Operator
	dir  string
	name string
	max  int64

	mu    sync.Mutex
	buf   []byte
	dirty bool
}

var (
	_ gofs.FileReader  = (*writeHandle)(nil)
	_ gofs.FileWriter  = (*writeHandle)(nil)
	_ gofs.FileFlusher = (*writeHandle)(nil)
	_ gofs.FileFsyncer = (*writeHandle)(nil)
)

func newWriteHandle(op sfm.Operator, dir, name string, maxSize int64) *writeHandle {
	return &writeHandle{op: op, dir: dir, name: name, max: maxSize}
}

// preload fills the buffer with the current contents of p.
func (h *writeHandle) preload(ctx context.Context, p string) syscall.Errno {
	res, err := h.op.Dispatch(ctx, sfm.NewRequest(p, sfm.DownloadOp{}))
	if err != nil {
		return toErrno(err)
	}
	defer res.Download.Body.Close()
	data, err := io.ReadAll(res.Download.Body)
	if err != nil {
		return syscall.EIO
	}
	h.buf = data
	return gofs.OK
}

func (h *writeHandle) size() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return uint64(len(h.buf))
}

func (h *writeHandle) truncate(sz uint64) syscall.Errno {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sz > uint64(h.max) {
		return syscall.EFBIG
	}
	if int(sz) <= len(h.buf) {
		h.buf = h.buf[:sz]
	} else {
		h.buf = append(h.buf, make([]byte, int(sz)-len(h.buf))...)
	}
	h.dirty = true
	return gofs.OK
}

func (h *writeHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if off >= int64(len(h.buf)) {
		return fuse.ReadResultData(nil), gofs.OK
	}
	n := copy(dest, h.buf[off:])
	return fuse.ReadResultData(dest[:n]), gofs.OK
}

func (h *writeHandle) Write(ctx context.Context, data []byte, off int64) (uint32, syscall.Errno) {
	h.mu.Lock()
	defer h.mu.Unlock()
	end := off + int64(len(data))
	if off < 0 || end > h.max {
		return 0, syscall.EFBIG
	}
	if end > int64(len(h.buf)) {
		h.buf = append(h.buf, make([]byte, end-int64(len(h.buf)))...)
	}
	copy(h.buf[off:], data)
	h.dirty = true
	return uint32(len(data)), gofs.OK
}

// Flush uploads the buffer if it changed since the last flush.
func (h *writeHandle) Flush(ctx context.Context) syscall.Errno {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.dirty {
		return gofs.OK
	}
	data := bytes.NewReader(h.buf)
	req := sfm.NewRequest(h.dir, sfm.UploadOp{Name: h.name, Data: data, Size: int64(len(h.buf))})
	if _, err := h.op.Dispatch(ctx, req); err != nil {
		return toErrno(err)
	}
	h.dirty = false
	return gofs.OK
}

func (h *writeHandle) Fsync(ctx context.Context, flags uint32) syscall.Errno {
	return h.Flush(ctx)
}
