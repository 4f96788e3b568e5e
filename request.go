package sfm

import (
	"fmt"
	"io"
)

// Verb names an operation on the wire. Only the values below are valid.
type Verb string

const (
	VerbList     Verb = "list"
	VerbStat     Verb = "stat"
	VerbDelete   Verb = "delete"
	VerbMkdir    Verb = "mkdir"
	VerbUpload   Verb = "upload"
	VerbDownload Verb = "download"
)

// ParseVerb validates a caller supplied verb.
func ParseVerb(s string) (Verb, error) {
	switch v := Verb(s); v {
	case VerbList, VerbStat, VerbDelete, VerbMkdir, VerbUpload, VerbDownload:
		return v, nil
	}
	return "", fmt.Errorf("unknown verb: %q", s)
}

// Mutates reports whether the verb changes the served tree.
func (v Verb) Mutates() bool {
	return v == VerbDelete || v == VerbMkdir || v == VerbUpload
}

// Op is the closed set of operations a [Request] can carry. The unexported
// method seals the interface to the variants in this package.
type Op interface {
	Verb() Verb
	sealed()
}

// ListOp lists the immediate children of a directory.
type ListOp struct{}

// StatOp describes a single path.
type StatOp struct{}

// DeleteOp recursively deletes a path after a fresh deletability check.
type DeleteOp struct{}

// MkdirOp creates directory Name inside the request path.
type MkdirOp struct {
	Name string
}

// UploadOp stores Data as file Name inside the request path.
// Size is the declared length of Data; negative means unknown.
type UploadOp struct {
	Name string
	Data io.Reader
	Size int64
}

// DownloadOp opens a regular file for streaming.
type DownloadOp struct{}

func (ListOp) Verb() Verb     { return VerbList }
func (StatOp) Verb() Verb     { return VerbStat }
func (DeleteOp) Verb() Verb   { return VerbDelete }
func (MkdirOp) Verb() Verb    { return VerbMkdir }
func (UploadOp) Verb() Verb   { return VerbUpload }
func (DownloadOp) Verb() Verb { return VerbDownload }

func (ListOp) sealed()     {}
func (StatOp) sealed()     {}
func (DeleteOp) sealed()   {}
func (MkdirOp) sealed()    {}
func (UploadOp) sealed()   {}
func (DownloadOp) sealed() {}

// Request is a logical operation handed to an [Operator].
type Request struct {
	ID   string // Optional correlation ID; assigned by the Operator when empty
	Path string // Untrusted path relative to the served root
	Op   Op
}

// NewRequest is a convenience constructor.
func NewRequest(path string, op Op) *Request {
	return &Request{Path: path, Op: op}
}

// Result carries the verb specific success payload. Fields not relevant to the
// verb are zero.
type Result struct {
	Entries  []Entry   // list
	Entry    *Entry    // stat
	Download *Download // download
}
