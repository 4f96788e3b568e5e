package filesystem

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/brettbedarf/sfm"
	"github.com/spf13/afero"
)

const (
	dirPerm  os.FileMode = 0o755
	filePerm os.FileMode = 0o644

	// stagePrefix names the temporary files uploads are written to.
	stagePrefix = ".sfm-upload-"

	sniffLen           = 512
	defaultContentType = "application/octet-stream"
)

// Ops performs the filesystem side of each verb. Every path it is handed must
// already be resolved and confined by a [Resolver]; Ops only re-checks
// children it creates or opens by name.
type Ops struct {
	fs     afero.Fs
	res    *Resolver
	oracle *Oracle
}

// NewOps wires Ops over fsys. fsys must address the same tree as res, with
// absolute paths (an [afero.OsFs] or a wrapper of one).
func NewOps(fsys afero.Fs, res *Resolver, oracle *Oracle) *Ops {
	return &Ops{fs: fsys, res: res, oracle: oracle}
}

// SanitizeName reduces a caller supplied name to a single path component.
func SanitizeName(name string) (string, error) {
	if strings.ContainsRune(name, 0) {
		return "", sfm.Errorf(sfm.KindInvalidName, nil, "Invalid name")
	}
	n := strings.TrimSpace(path.Base(filepath.ToSlash(name)))
	switch n {
	case "", ".", "..", "/":
		return "", sfm.Errorf(sfm.KindInvalidName, nil, "Invalid name")
	}
	return n, nil
}

func (o *Ops) lstat(p string) (os.FileInfo, error) {
	if l, ok := o.fs.(afero.Lstater); ok {
		info, _, err := l.LstatIfPossible(p)
		return info, err
	}
	return o.fs.Stat(p)
}

// entry builds a fresh Entry for p.
func (o *Ops) entry(p string, info os.FileInfo) sfm.Entry {
	return sfm.Entry{
		Name:      info.Name(),
		Path:      o.res.Rel(p),
		Size:      info.Size(),
		ModTime:   info.ModTime(),
		Mode:      info.Mode(),
		IsDir:     info.IsDir(),
		Flags:     o.oracle.Flags(p),
		Deletable: o.oracle.Deletable(p),
	}
}

// Stat describes a single resolved path.
func (o *Ops) Stat(p string) (*sfm.Entry, error) {
	info, err := o.fs.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, sfm.NewError(sfm.KindNotFound, err)
		}
		return nil, sfm.NewError(sfm.KindOperationFailed, err)
	}
	e := o.entry(p, info)
	if p == o.res.Root() {
		e.Name = ""
	}
	return &e, nil
}

// List returns one Entry per visible child of dir, in the order the backing
// filesystem enumerates them. Children that disappear while listing are
// skipped.
func (o *Ops) List(dir string) ([]sfm.Entry, error) {
	if err := o.requireDir(dir); err != nil {
		return nil, err
	}
	f, err := o.fs.Open(dir)
	if err != nil {
		return nil, sfm.NewError(sfm.KindOperationFailed, fmt.Errorf("failed to open dir: %w", err))
	}
	names, err := f.Readdirnames(-1)
	f.Close()
	if err != nil {
		return nil, sfm.NewError(sfm.KindOperationFailed, fmt.Errorf("failed to read dir: %w", err))
	}

	entries := make([]sfm.Entry, 0, len(names))
	for _, name := range names {
		child := filepath.Join(dir, name)
		if o.res.IsHidden(child) {
			continue
		}
		info, err := o.fs.Stat(child)
		if err != nil {
			// dangling symlink; describe the link itself
			if info, err = o.lstat(child); err != nil {
				continue
			}
		}
		entries = append(entries, o.entry(child, info))
	}
	return entries, nil
}

// Mkdir creates directory name inside dir.
func (o *Ops) Mkdir(dir, name string) error {
	if err := o.writableDir(dir); err != nil {
		return err
	}
	target, err := o.childTarget(dir, name)
	if err != nil {
		return err
	}
	if err := o.fs.Mkdir(target, dirPerm); err != nil {
		return sfm.NewError(sfm.KindOperationFailed, fmt.Errorf("failed to mkdir %s: %w", target, err))
	}
	return nil
}

// RemoveAll deletes p and everything beneath it, depth first. Symlinks are
// removed as links. A path that is already gone counts as removed. The first
// failure aborts the walk; whatever was removed before it stays removed.
func (o *Ops) RemoveAll(p string) error {
	if err := o.removeAll(p); err != nil {
		return sfm.NewError(sfm.KindOperationFailed, err)
	}
	return nil
}

func (o *Ops) removeAll(p string) error {
	info, err := o.lstat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	if info.IsDir() {
		f, err := o.fs.Open(p)
		if err != nil {
			return err
		}
		names, err := f.Readdirnames(-1)
		f.Close()
		if err != nil {
			return err
		}
		for _, name := range names {
			if err := o.removeAll(filepath.Join(p, name)); err != nil {
				return err
			}
		}
	}
	if err := o.fs.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Store writes src to dir/name, replacing any existing file. size is the
// declared length of src; when non-negative the bytes written must match it.
// A nil src fails with MissingUpload once dir is known to be a writable
// directory.
//
// The data is staged in a temporary file next to the target and renamed over
// it only after the copy succeeds, so a failed upload leaves an existing file
// untouched. A replaced file keeps its permission bits. When dir/name is a
// symlink inside the root the file it points to is replaced and the link kept.
func (o *Ops) Store(dir, name string, src io.Reader, size int64) (err error) {
	if err := o.writableDir(dir); err != nil {
		return err
	}
	if src == nil {
		return sfm.NewError(sfm.KindMissingUpload, nil)
	}
	target, err := o.childTarget(dir, name)
	if err != nil {
		return err
	}

	perm := filePerm
	if info, err := o.fs.Stat(target); err == nil {
		if !info.Mode().IsRegular() {
			return sfm.NewError(sfm.KindUploadFailed, fmt.Errorf("not a regular file: %s", target))
		}
		if !o.oracle.Writable(target) {
			return sfm.NewError(sfm.KindUploadFailed, fmt.Errorf("existing file is not writable: %s", target))
		}
		perm = info.Mode().Perm()
	}

	f, err := afero.TempFile(o.fs, filepath.Dir(target), stagePrefix+"*")
	if err != nil {
		return sfm.NewError(sfm.KindUploadFailed, fmt.Errorf("failed to stage %s: %w", target, err))
	}
	staged := f.Name()
	defer func() {
		if err != nil {
			f.Close()
			_ = o.fs.Remove(staged)
		}
	}()

	n, err := io.Copy(f, src)
	if err != nil {
		return sfm.NewError(sfm.KindUploadFailed, fmt.Errorf("failed to write %s: %w", target, err))
	}
	if size >= 0 && n != size {
		return sfm.NewError(sfm.KindUploadFailed, fmt.Errorf("short upload: wrote %d of %d bytes", n, size))
	}
	if err = f.Close(); err != nil {
		return sfm.NewError(sfm.KindUploadFailed, fmt.Errorf("failed to close %s: %w", staged, err))
	}
	if err = o.fs.Chmod(staged, perm); err != nil {
		return sfm.NewError(sfm.KindUploadFailed, fmt.Errorf("failed to chmod %s: %w", staged, err))
	}
	if err = o.fs.Rename(staged, target); err != nil {
		return sfm.NewError(sfm.KindUploadFailed, fmt.Errorf("failed to replace %s: %w", target, err))
	}
	return nil
}

// Open opens a readable regular file for download.
func (o *Ops) Open(p string) (*sfm.Download, error) {
	info, err := o.fs.Stat(p)
	if err != nil || !info.Mode().IsRegular() || !o.oracle.Readable(p) {
		return nil, sfm.NewError(sfm.KindNotFound, err)
	}
	f, err := o.fs.Open(p)
	if err != nil {
		return nil, sfm.NewError(sfm.KindNotFound, err)
	}
	return &sfm.Download{
		Name:        filepath.Base(p),
		Size:        info.Size(),
		ContentType: contentType(p, f),
		ModTime:     info.ModTime(),
		Body:        f,
	}, nil
}

// contentType guesses from the extension first and falls back to sniffing
// the head of the file.
func contentType(p string, r io.ReaderAt) string {
	if ct := mime.TypeByExtension(filepath.Ext(p)); ct != "" {
		return ct
	}
	buf := make([]byte, sniffLen)
	n, err := r.ReadAt(buf, 0)
	if n == 0 && err != nil {
		return defaultContentType
	}
	return http.DetectContentType(buf[:n])
}

// requireDir fails with NotADirectory unless dir is a directory.
func (o *Ops) requireDir(dir string) error {
	info, err := o.fs.Stat(dir)
	if err != nil {
		return sfm.NewError(sfm.KindOperationFailed, err)
	}
	if !info.IsDir() {
		return sfm.NewError(sfm.KindNotADirectory, nil)
	}
	return nil
}

// writableDir fails with NotADirectory unless dir is a directory and with
// Forbidden unless the process may create entries in it.
func (o *Ops) writableDir(dir string) error {
	if err := o.requireDir(dir); err != nil {
		return err
	}
	if !o.oracle.Writable(dir) {
		return sfm.NewError(sfm.KindForbidden, nil)
	}
	return nil
}

// childTarget sanitizes name and returns the path a create-in-dir request
// writes. An existing symlink is followed only if it stays inside the root
// and away from hidden artifacts.
func (o *Ops) childTarget(dir, name string) (string, error) {
	n, err := SanitizeName(name)
	if err != nil {
		return "", err
	}
	target := filepath.Join(dir, n)
	if o.res.IsHidden(target) {
		return "", sfm.NewError(sfm.KindForbidden, nil)
	}
	dst, err := o.followLink(target)
	if err != nil || !o.res.Within(dst) || o.res.IsHidden(dst) {
		return "", sfm.NewError(sfm.KindForbidden, err)
	}
	return dst, nil
}

// followLink returns where p points when it is a symlink and p otherwise.
func (o *Ops) followLink(p string) (string, error) {
	info, err := o.lstat(p)
	if err != nil || info.Mode()&os.ModeSymlink == 0 {
		return p, nil
	}
	return filepath.EvalSymlinks(p)
}

// ChildPath returns the path a create-in-dir request would write, for callers
// that need to lock it. Links are followed like Store does; one that cannot
// be followed yields the link itself and Store refuses it later.
func (o *Ops) ChildPath(dir, name string) (string, error) {
	n, err := SanitizeName(name)
	if err != nil {
		return "", err
	}
	target := filepath.Join(dir, n)
	if dst, err := o.followLink(target); err == nil && o.res.Within(dst) {
		return dst, nil
	}
	return target, nil
}
