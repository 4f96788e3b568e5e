package filesystem

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/brettbedarf/sfm"
)

// Resolver canonicalizes caller supplied paths against a fixed root and
// rejects anything that would land outside it.
//
// A Resolver is immutable after construction and safe for concurrent use.
type Resolver struct {
	root   string   // canonical absolute root
	hidden []string // canonical absolute paths that are never served, with their subtrees
}

// NewResolver canonicalizes root (absolute, symlinks resolved) and returns a
// Resolver confined to it. hidden lists paths, absolute or relative to root,
// of the manager's own artifacts; entries outside root or that do not exist
// are ignored.
func NewResolver(root string, hidden ...string) (*Resolver, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to make root absolute: %w", err)
	}
	canon, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root %s: %w", root, err)
	}
	info, err := os.Stat(canon)
	if err != nil {
		return nil, fmt.Errorf("failed to stat root %s: %w", canon, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root is not a directory: %s", canon)
	}

	r := &Resolver{root: canon}
	for _, h := range hidden {
		if h == "" {
			continue
		}
		if !filepath.IsAbs(h) {
			h = filepath.Join(canon, h)
		}
		p, err := filepath.EvalSymlinks(h)
		if err != nil || !r.Within(p) || p == canon {
			continue
		}
		r.hidden = append(r.hidden, p)
	}
	return r, nil
}

// Root returns the canonical root directory.
func (r *Resolver) Root() string {
	return r.root
}

// Resolve maps raw onto a canonical absolute path that is the root itself or
// one of its descendants. Every failure, including a path that does not
// exist, is reported as Forbidden so callers cannot probe for existence.
func (r *Resolver) Resolve(raw string) (string, error) {
	if strings.ContainsRune(raw, 0) {
		return "", sfm.Errorf(sfm.KindForbidden, nil, "Forbidden")
	}
	rel := strings.Trim(raw, "/")
	if rel == "" {
		rel = "."
	}

	canon, err := filepath.EvalSymlinks(filepath.Join(r.root, rel))
	if err != nil {
		return "", sfm.NewError(sfm.KindForbidden, err)
	}
	if !r.Within(canon) {
		return "", sfm.NewError(sfm.KindForbidden, fmt.Errorf("path escapes root: %s", canon))
	}
	if r.IsHidden(canon) {
		return "", sfm.NewError(sfm.KindForbidden, fmt.Errorf("hidden path: %s", canon))
	}
	return canon, nil
}

// Within reports whether the clean absolute path p is the root or below it.
// The separator suffix keeps /srv/data-evil from matching /srv/data.
func (r *Resolver) Within(p string) bool {
	if p == r.root {
		return true
	}
	prefix := r.root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(p, prefix)
}

// IsHidden reports whether p is one of the manager's own artifacts or lies
// inside a hidden directory.
func (r *Resolver) IsHidden(p string) bool {
	for _, h := range r.hidden {
		if p == h || strings.HasPrefix(p, h+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// Hidden returns the canonical hidden paths.
func (r *Resolver) Hidden() []string {
	return append([]string(nil), r.hidden...)
}

// Rel returns p relative to the root with '/' separators; "" for the root.
func (r *Resolver) Rel(p string) string {
	rel, err := filepath.Rel(r.root, p)
	if err != nil || rel == "." {
		return ""
	}
	return filepath.ToSlash(rel)
}
