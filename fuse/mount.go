package fuse

import (
	"os"
	"time"

	"github.com/brettbedarf/sfm"
	"github.com/brettbedarf/sfm/config"
	"github.com/brettbedarf/sfm/internal/util"
	gofs "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// attrTimeout is short because the tree can change underneath the mount.
const attrTimeout = time.Second

// Mount serves op at opts.MountPoint and returns once the kernel has the
// mount. The caller unmounts through the returned server.
func Mount(op sfm.Operator, opts config.MountOptions) (*fuse.Server, error) {
	timeout := attrTimeout
	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = config.DefaultMaxUploadSize
	}
	root := NewRoot(op, maxSize)
	return gofs.Mount(opts.MountPoint, root, &gofs.Options{
		MountOptions: fuse.MountOptions{
			FsName: opts.FsName,
			Name:   opts.Name,
			Debug:  opts.Debug,
			Logger: util.NewLogLogger("FuseServer", util.DebugLevel),
		},
		EntryTimeout: &timeout,
		AttrTimeout:  &timeout,
		UID:          uint32(os.Getuid()),
		GID:          uint32(os.Getgid()),
		Logger:       util.NewLogLogger("FuseFS", util.WarnLevel),
	})
}
