package filesystem

// LockContext holds the locks taken for a single request.
// Calling LockContext.Close() unwinds all unlocking/cleanup callbacks in
// reverse order, leaf first.
//
// NOTE: LockContext itself is **not** thread-safe meaning references
// to it should not be shared between goroutines
type LockContext struct {
	path     string
	closeFns []func()
}

// Path returns the canonical path the context was opened for.
func (ctx *LockContext) Path() string {
	if ctx == nil {
		return ""
	}
	return ctx.path
}

// AddClose pushes a cleanup callback (e.g., unlock) onto the end of the stack.
func (ctx *LockContext) AddClose(fn func()) {
	ctx.closeFns = append(ctx.closeFns, fn)
}

// Close unwinds all cleanup callbacks in reverse order.
// Safe to call even if ctx is nil or no locks were acquired; it is
// a no-op in those cases, so you can `defer ctx.Close()` unconditionally.
//
// Example:
//
//	ctx := locker.Write(target)
//	defer ctx.Close()
func (ctx *LockContext) Close() {
	if ctx == nil {
		return
	}
	for i := len(ctx.closeFns) - 1; i >= 0; i-- {
		ctx.closeFns[i]()
	}
	ctx.closeFns = nil
}
