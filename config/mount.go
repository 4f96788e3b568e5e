package config

// MountOptions holds high-level settings for the optional FUSE mount.
// No go-fuse types are exposed here.
type MountOptions struct {
	MountPoint  string // where to mount the served tree; empty disables FUSE
	Debug       bool   // fuse debug logs
	FsName      string // mount's FsName
	Name        string // mount's Name
	MaxFileSize int64  // largest file a write handle may buffer; <= 0 uses DefaultMaxUploadSize
}
