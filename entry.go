package sfm

import (
	"io"
	"io/fs"
	"time"
)

// Flags are the OS permission bits of a path as seen by this process.
type Flags struct {
	Readable   bool
	Writable   bool
	Executable bool
}

// Entry is one listed filesystem object. Entries are produced fresh for
// every call and never persisted. The JSON form lives in package requests.
type Entry struct {
	Name    string
	Path    string // relative to the served root, '/' separated
	Size    int64
	ModTime time.Time
	Mode    fs.FileMode
	IsDir   bool
	Flags
	Deletable bool
}

// File is an open, seekable, random access file body.
type File interface {
	io.Reader
	io.ReaderAt
	io.Seeker
	io.Closer
}

// Download is an open regular file ready to stream to the remote end.
// The caller owns Body and must close it.
type Download struct {
	Name        string // final path component, never the raw caller input
	Size        int64
	ContentType string
	ModTime     time.Time
	Body        File
}
