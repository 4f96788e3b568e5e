// Package fuse mounts an [sfm.Operator] as a FUSE filesystem. Every kernel
// callback is served by dispatching core requests; the node tree holds no
// file data of its own.
package fuse

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"path"
	"syscall"
	"time"

	"github.com/brettbedarf/sfm"
	"github.com/brettbedarf/sfm/internal/util"
	gofs "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// Node is one path in the mounted tree.
type Node struct {
	gofs.Inode
	op      sfm.Operator
	path    string // relative to the served root, '/' separated; "" for the root
	maxSize int64  // cap on buffered writes
	logger  util.Logger
}

var (
	_ gofs.InodeEmbedder = (*Node)(nil)
	_ gofs.NodeLookuper  = (*Node)(nil)
	_ gofs.NodeGetattrer = (*Node)(nil)
	_ gofs.NodeSetattrer = (*Node)(nil)
	_ gofs.NodeReaddirer = (*Node)(nil)
	_ gofs.NodeOpener    = (*Node)(nil)
	_ gofs.NodeCreater   = (*Node)(nil)
	_ gofs.NodeMkdirer   = (*Node)(nil)
	_ gofs.NodeUnlinker  = (*Node)(nil)
	_ gofs.NodeRmdirer   = (*Node)(nil)
)

// NewRoot returns the root node for op. Files written through the mount may
// grow to at most maxSize bytes.
func NewRoot(op sfm.Operator, maxSize int64) *Node {
	return &Node{op: op, maxSize: maxSize, logger: util.GetLogger("FUSE")}
}

func (n *Node) child(name string) string {
	return path.Join(n.path, name)
}

func (n *Node) dispatch(ctx context.Context, p string, op sfm.Op) (*sfm.Result, error) {
	res, err := n.op.Dispatch(ctx, sfm.NewRequest(p, op))
	if err != nil {
		n.logger.Trace().Err(err).Str("path", p).Str("verb", string(op.Verb())).Msg("Dispatch failed")
	}
	return res, err
}

func (n *Node) stat(ctx context.Context, p string) (*sfm.Entry, syscall.Errno) {
	res, err := n.dispatch(ctx, p, sfm.StatOp{})
	if err != nil {
		return nil, lookupErrno(err)
	}
	return res.Entry, gofs.OK
}

func (n *Node) newChild(ctx context.Context, name string, e *sfm.Entry, out *fuse.EntryOut) *gofs.Inode {
	fillAttr(e, &out.Attr)
	node := &Node{op: n.op, path: n.child(name), maxSize: n.maxSize, logger: n.logger}
	return n.NewInode(ctx, node, gofs.StableAttr{Mode: typeBits(e.Mode)})
}

func (n *Node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofs.Inode, syscall.Errno) {
	e, errno := n.stat(ctx, n.child(name))
	if errno != gofs.OK {
		return nil, errno
	}
	return n.newChild(ctx, name, e, out), gofs.OK
}

func (n *Node) Getattr(ctx context.Context, f gofs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	e, errno := n.stat(ctx, n.path)
	if errno != gofs.OK {
		return errno
	}
	fillAttr(e, &out.Attr)
	if w, ok := f.(*writeHandle); ok {
		out.Size = w.size()
	}
	return gofs.OK
}

// Setattr supports truncation only; mode, owner and time changes are
// accepted and ignored.
func (n *Node) Setattr(ctx context.Context, f gofs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	if sz, ok := in.GetSize(); ok {
		if w, ok := f.(*writeHandle); ok {
			if errno := w.truncate(sz); errno != gofs.OK {
				return errno
			}
		} else if sz == 0 {
			dir, name := path.Split(n.path)
			if _, err := n.dispatch(ctx, dir, sfm.UploadOp{Name: name, Data: bytes.NewReader(nil), Size: 0}); err != nil {
				return toErrno(err)
			}
		} else {
			return syscall.ENOTSUP
		}
	}
	return n.Getattr(ctx, f, out)
}

func (n *Node) Readdir(ctx context.Context) (gofs.DirStream, syscall.Errno) {
	res, err := n.dispatch(ctx, n.path, sfm.ListOp{})
	if err != nil {
		return nil, toErrno(err)
	}
	entries := make([]fuse.DirEntry, 0, len(res.Entries))
	for _, e := range res.Entries {
		entries = append(entries, fuse.DirEntry{Name: e.Name, Mode: typeBits(e.Mode)})
	}
	return gofs.NewListDirStream(entries), gofs.OK
}

func (n *Node) Open(ctx context.Context, flags uint32) (gofs.FileHandle, uint32, syscall.Errno) {
	if flags&syscall.O_ACCMODE == syscall.O_RDONLY {
		res, err := n.dispatch(ctx, n.path, sfm.DownloadOp{})
		if err != nil {
			return nil, 0, toErrno(err)
		}
		return &readHandle{body: res.Download.Body}, 0, gofs.OK
	}

	dir, name := path.Split(n.path)
	w := newWriteHandle(n.op, dir, name, n.maxSize)
	if flags&syscall.O_TRUNC != 0 {
		w.dirty = true
	} else if errno := w.preload(ctx, n.path); errno != gofs.OK {
		return nil, 0, errno
	}
	return w, fuse.FOPEN_DIRECT_IO, gofs.OK
}

func (n *Node) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*gofs.Inode, gofs.FileHandle, uint32, syscall.Errno) {
	if _, err := n.dispatch(ctx, n.path, sfm.UploadOp{Name: name, Data: bytes.NewReader(nil), Size: 0}); err != nil {
		return nil, nil, 0, toErrno(err)
	}
	e, errno := n.stat(ctx, n.child(name))
	if errno != gofs.OK {
		return nil, nil, 0, errno
	}
	return n.newChild(ctx, name, e, out), newWriteHandle(n.op, n.path, name, n.maxSize), fuse.FOPEN_DIRECT_IO, gofs.OK
}

func (n *Node) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*gofs.Inode, syscall.Errno) {
	if _, err := n.dispatch(ctx, n.path, sfm.MkdirOp{Name: name}); err != nil {
		return nil, toErrno(err)
	}
	e, errno := n.stat(ctx, n.child(name))
	if errno != gofs.OK {
		return nil, errno
	}
	return n.newChild(ctx, name, e, out), gofs.OK
}

func (n *Node) Unlink(ctx context.Context, name string) syscall.Errno {
	p := n.child(name)
	e, errno := n.stat(ctx, p)
	if errno != gofs.OK {
		return errno
	}
	if e.IsDir {
		return syscall.EISDIR
	}
	_, err := n.dispatch(ctx, p, sfm.DeleteOp{})
	return errnoOf(err)
}

// Rmdir only removes empty directories even though the core deletes
// recursively.
func (n *Node) Rmdir(ctx context.Context, name string) syscall.Errno {
	p := n.child(name)
	res, err := n.dispatch(ctx, p, sfm.ListOp{})
	if err != nil {
		return lookupErrno(err)
	}
	if len(res.Entries) > 0 {
		return syscall.ENOTEMPTY
	}
	_, err = n.dispatch(ctx, p, sfm.DeleteOp{})
	return errnoOf(err)
}

// toErrno maps a core error onto the closest errno.
func toErrno(err error) syscall.Errno {
	switch sfm.KindOf(err) {
	case sfm.KindForbidden:
		return syscall.EACCES
	case sfm.KindNotFound:
		return syscall.ENOENT
	case sfm.KindNotADirectory:
		return syscall.ENOTDIR
	case sfm.KindInvalidName, sfm.KindMissingUpload:
		return syscall.EINVAL
	}
	return syscall.EIO
}

// errnoOf is toErrno with nil mapped to OK.
func errnoOf(err error) syscall.Errno {
	if err == nil {
		return gofs.OK
	}
	return toErrno(err)
}

// lookupErrno reports refused paths as missing; the core does not tell them
// apart and the kernel needs ENOENT before it will create a name.
func lookupErrno(err error) syscall.Errno {
	if sfm.KindOf(err) == sfm.KindForbidden {
		return syscall.ENOENT
	}
	return toErrno(err)
}

func typeBits(m fs.FileMode) uint32 {
	switch {
	case m.IsDir():
		return syscall.S_IFDIR
	case m&fs.ModeSymlink != 0:
		return syscall.S_IFLNK
	default:
		return syscall.S_IFREG
	}
}

func fillAttr(e *sfm.Entry, out *fuse.Attr) {
	mtime := e.ModTime
	if mtime.IsZero() {
		mtime = time.Now()
	}
	out.Mode = typeBits(e.Mode) | uint32(e.Mode.Perm())
	out.Size = uint64(e.Size)
	out.Blocks = (out.Size + 511) / 512
	out.Nlink = 1
	out.Owner = fuse.Owner{Uid: uint32(os.Getuid()), Gid: uint32(os.Getgid())}
	out.SetTimes(&mtime, &mtime, &mtime)
}
