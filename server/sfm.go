package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/brettbedarf/sfm/config"
	"github.com/brettbedarf/sfm/filesystem"
	sfuse "github.com/brettbedarf/sfm/fuse"
	"github.com/brettbedarf/sfm/internal/util"
	"github.com/hanwen/go-fuse/v2/fuse"
)

const readHeaderTimeout = 10 * time.Second

// SFM wires the dispatcher to its callers: the HTTP API (with WebDAV) and an
// optional FUSE mount.
type SFM struct {
	*filesystem.Dispatcher
	cfg    *config.Config
	mu     sync.Mutex // guards http
	http   *http.Server
	fuse   *fuse.Server
	logger util.Logger
}

// New creates an SFM instance given your config.
func New(cfg *config.Config) (*SFM, error) {
	d, err := filesystem.NewDispatcher(cfg)
	if err != nil {
		return nil, err
	}
	return &SFM{
		Dispatcher: d,
		cfg:        cfg,
		logger:     util.GetLogger("Server"),
	}, nil
}

// Handler returns the HTTP surface backed by this instance.
func (s *SFM) Handler() http.Handler {
	return NewHandler(s.Dispatcher, s.cfg)
}

// Serve listens on cfg.Listen and blocks until Shutdown.
func (s *SFM) Serve() error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return err
	}
	return s.ServeListener(ln)
}

// ServeListener serves HTTP on ln and blocks until Shutdown.
func (s *SFM) ServeListener(ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ErrorLog:          util.NewLogLogger("HTTPServer", util.WarnLevel),
	}
	s.mu.Lock()
	s.http = srv
	s.mu.Unlock()

	s.logger.Info().Str("addr", ln.Addr().String()).Str("root", s.Root()).Msg("Serving HTTP")
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *SFM) ServeAsync() <-chan error {
	done := make(chan error, 1)

	go func() {
		done <- s.Serve()
		close(done)
	}()

	return done
}

// Mount mounts the served tree at mountPoint (cfg.MountPoint when empty).
func (s *SFM) Mount(mountPoint string) error {
	opts := s.cfg.MountOptions
	opts.MaxFileSize = s.cfg.MaxUploadSize
	if mountPoint != "" {
		opts.MountPoint = mountPoint
	}
	srv, err := sfuse.Mount(s.Dispatcher, opts)
	if err != nil {
		return err
	}
	s.fuse = srv
	s.logger.Info().Str("mountpoint", opts.MountPoint).Msg("Filesystem mounted")
	return nil
}

// Unmount cleanly unmounts the filesystem.
func (s *SFM) Unmount() error {
	if s.fuse == nil {
		return nil
	}
	err := s.fuse.Unmount()
	s.fuse = nil
	return err
}

// Shutdown stops HTTP gracefully and unmounts FUSE.
func (s *SFM) Shutdown(ctx context.Context) error {
	var errs []error
	s.mu.Lock()
	srv := s.http
	s.mu.Unlock()
	if srv != nil {
		errs = append(errs, srv.Shutdown(ctx))
	}
	errs = append(errs, s.Unmount())
	return errors.Join(errs...)
}
