package filesystem

import (
	"path/filepath"
	"sync"

	"github.com/puzpuzpuz/xsync/v4"
)

type pathLock struct {
	mu   sync.RWMutex
	refs int // guarded by the owning map entry via Compute
}

// PathLocker serializes in-process operations on overlapping subtrees.
// Locks are keyed by canonical path and taken root first, so two requests
// always acquire shared ancestors in the same order. Entries are reference
// counted and dropped when idle. Keys are the paths callers pass in, so a
// write through a symlink must be locked on the file it points to.
//
// A nil *PathLocker is valid and locks nothing.
type PathLocker struct {
	root  string
	locks *xsync.Map[string, *pathLock]
}

// NewPathLocker returns a locker for paths at or below root.
func NewPathLocker(root string) *PathLocker {
	return &PathLocker{
		root:  root,
		locks: xsync.NewMap[string, *pathLock](),
	}
}

// Read locks every ancestor of p and p itself for reading.
func (l *PathLocker) Read(p string) *LockContext {
	return l.lock(p, false)
}

// Write read-locks every ancestor of p and locks p exclusively.
func (l *PathLocker) Write(p string) *LockContext {
	return l.lock(p, true)
}

// Size returns the number of paths currently held or waited on.
func (l *PathLocker) Size() int {
	if l == nil {
		return 0
	}
	return l.locks.Size()
}

func (l *PathLocker) lock(p string, exclusive bool) *LockContext {
	ctx := &LockContext{path: p}
	if l == nil {
		return ctx
	}
	for _, a := range l.ancestors(p) {
		pl := l.acquire(a)
		pl.mu.RLock()
		ctx.AddClose(func() {
			pl.mu.RUnlock()
			l.release(a)
		})
	}
	pl := l.acquire(p)
	if exclusive {
		pl.mu.Lock()
		ctx.AddClose(func() {
			pl.mu.Unlock()
			l.release(p)
		})
	} else {
		pl.mu.RLock()
		ctx.AddClose(func() {
			pl.mu.RUnlock()
			l.release(p)
		})
	}
	return ctx
}

// ancestors returns the chain from the root down to p's parent. Paths
// outside the root have no ancestors.
func (l *PathLocker) ancestors(p string) []string {
	if p == l.root {
		return nil
	}
	var chain []string
	for dir := filepath.Dir(p); ; dir = filepath.Dir(dir) {
		chain = append(chain, dir)
		if dir == l.root || dir == filepath.Dir(dir) {
			break
		}
	}
	if chain[len(chain)-1] != l.root {
		return nil
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

func (l *PathLocker) acquire(p string) *pathLock {
	pl, _ := l.locks.Compute(p, func(old *pathLock, loaded bool) (*pathLock, xsync.ComputeOp) {
		if !loaded {
			old = &pathLock{}
		}
		old.refs++
		return old, xsync.UpdateOp
	})
	return pl
}

func (l *PathLocker) release(p string) {
	l.locks.Compute(p, func(old *pathLock, loaded bool) (*pathLock, xsync.ComputeOp) {
		if !loaded {
			return old, xsync.CancelOp
		}
		old.refs--
		if old.refs <= 0 {
			return old, xsync.DeleteOp
		}
		return old, xsync.UpdateOp
	})
}
