// Package sfm contains core domain types and interfaces for the sandboxed file
// manager: the operation variants a caller can request, the records it gets
// back and the error kinds every layer agrees on.
package sfm

import "context"

// Operator executes a single logical operation against the served tree.
// Implementations resolve and confine the request path before any I/O.
//
// Callers (HTTP, WebDAV, FUSE) are expected to have authenticated the remote
// end already; an Operator only enforces confinement and OS permissions.
type Operator interface {
	Dispatch(ctx context.Context, req *Request) (*Result, error)
}
