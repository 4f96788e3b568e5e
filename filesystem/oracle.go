package filesystem

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/brettbedarf/sfm"
	"golang.org/x/sys/unix"
)

// Oracle answers permission questions about resolved paths using the
// process's own credentials. Nothing is cached; every call asks the OS.
type Oracle struct {
	root     string
	readOnly bool
	hidden   []string // canonical paths whose ancestors are never deletable
}

// NewOracle returns an Oracle for the tree rooted at root. When readOnly is
// set every path reports as not writable and nothing is deletable. hidden
// lists canonical paths that must survive any delete.
func NewOracle(root string, readOnly bool, hidden ...string) *Oracle {
	return &Oracle{root: root, readOnly: readOnly, hidden: hidden}
}

func access(p string, mode uint32) bool {
	return unix.Access(p, mode) == nil
}

// Readable reports whether the process may read p.
func (o *Oracle) Readable(p string) bool {
	return access(p, unix.R_OK)
}

// Writable reports whether the process may write p.
func (o *Oracle) Writable(p string) bool {
	if o.readOnly {
		return false
	}
	return access(p, unix.W_OK)
}

// Executable reports whether the process may execute (or search) p.
func (o *Oracle) Executable(p string) bool {
	return access(p, unix.X_OK)
}

// Flags collects the three permission bits of p.
func (o *Oracle) Flags(p string) sfm.Flags {
	return sfm.Flags{
		Readable:   o.Readable(p),
		Writable:   o.Writable(p),
		Executable: o.Executable(p),
	}
}

// Deletable reports whether a recursive delete of p is expected to succeed.
// The root is never deletable, nor is a hidden path or any directory holding
// one. Non-directories need a writable parent;
// directories additionally need every directory in their subtree to be
// readable, writable and searchable. Symlinks are judged as links, never
// followed.
//
// The verdict is advisory: the tree can change between the check and the
// delete.
func (o *Oracle) Deletable(p string) bool {
	if o.readOnly || p == o.root || o.guardsHidden(p) {
		return false
	}
	info, err := os.Lstat(p)
	if err != nil {
		return false
	}
	if !o.Writable(filepath.Dir(p)) {
		return false
	}
	if !info.IsDir() {
		return true
	}
	return o.treeDeletable(p)
}

// treeDeletable walks dir depth first and stops at the first directory that
// cannot be emptied.
func (o *Oracle) treeDeletable(dir string) bool {
	if !o.Readable(dir) || !o.Writable(dir) || !o.Executable(dir) {
		return false
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		// DirEntry.IsDir reports the link itself for symlinks.
		if !e.IsDir() {
			continue
		}
		if !o.treeDeletable(filepath.Join(dir, e.Name())) {
			return false
		}
	}
	return true
}

// guardsHidden reports whether p is a hidden path or one of its ancestors.
func (o *Oracle) guardsHidden(p string) bool {
	prefix := p + string(filepath.Separator)
	for _, h := range o.hidden {
		if h == p || strings.HasPrefix(h, prefix) {
			return true
		}
	}
	return false
}
