package filesystem

import (
	"context"
	"fmt"
	"io"

	"github.com/brettbedarf/sfm"
	"github.com/brettbedarf/sfm/config"
	"github.com/brettbedarf/sfm/internal/util"
	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// Dispatcher is the [sfm.Operator] over a local directory tree. It resolves
// the request path, takes the path locks for the verb, re-checks permissions
// and then runs exactly one [Ops] call.
type Dispatcher struct {
	res    *Resolver
	oracle *Oracle
	ops    *Ops
	locks  *PathLocker // nil when path locking is disabled
	logger util.Logger
}

var _ sfm.Operator = (*Dispatcher)(nil)

// NewDispatcher builds a Dispatcher serving cfg.Root.
func NewDispatcher(cfg *config.Config) (*Dispatcher, error) {
	res, err := NewResolver(cfg.Root, cfg.Hidden...)
	if err != nil {
		return nil, err
	}
	var fsys afero.Fs = afero.NewOsFs()
	if cfg.ReadOnly {
		fsys = afero.NewReadOnlyFs(fsys)
	}
	oracle := NewOracle(res.Root(), cfg.ReadOnly, res.Hidden()...)

	d := &Dispatcher{
		res:    res,
		oracle: oracle,
		ops:    NewOps(fsys, res, oracle),
		logger: util.GetLogger("Dispatcher"),
	}
	if cfg.PathLocks {
		d.locks = NewPathLocker(res.Root())
	}
	d.logger.Info().
		Str("root", res.Root()).
		Bool("readOnly", cfg.ReadOnly).
		Bool("pathLocks", cfg.PathLocks).
		Msg("Dispatcher ready")
	return d, nil
}

// Root returns the canonical served root.
func (d *Dispatcher) Root() string {
	return d.res.Root()
}

// Dispatch runs req. Failures are always *sfm.Error. A Download result
// outlives the request's locks; the caller owns and must close its Body.
func (d *Dispatcher) Dispatch(ctx context.Context, req *sfm.Request) (*sfm.Result, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	logger := d.logger.With().Str("req", req.ID).Str("path", req.Path).Logger()
	if req.Op != nil {
		logger = logger.With().Str("verb", string(req.Op.Verb())).Logger()
	}

	res, err := d.dispatch(ctx, req)
	if err != nil {
		e := sfm.AsError(err)
		ev := logger.Debug()
		if e.Kind == sfm.KindOperationFailed || e.Kind == sfm.KindUploadFailed {
			ev = logger.Warn()
		}
		ev.Err(e.Err).Str("kind", string(e.Kind)).Msg("Request failed")
		return nil, e
	}
	logger.Trace().Msg("Request done")
	return res, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, req *sfm.Request) (*sfm.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, sfm.NewError(sfm.KindOperationFailed, err)
	}
	if req.Op == nil {
		return nil, sfm.NewError(sfm.KindNotFound, fmt.Errorf("no operation"))
	}
	p, err := d.res.Resolve(req.Path)
	if err != nil {
		return nil, err
	}

	switch op := req.Op.(type) {
	case sfm.ListOp:
		lc := d.locks.Read(p)
		defer lc.Close()
		entries, err := d.ops.List(p)
		if err != nil {
			return nil, err
		}
		return &sfm.Result{Entries: entries}, nil

	case sfm.StatOp:
		lc := d.locks.Read(p)
		defer lc.Close()
		entry, err := d.ops.Stat(p)
		if err != nil {
			return nil, err
		}
		return &sfm.Result{Entry: entry}, nil

	case sfm.DeleteOp:
		if p == d.res.Root() {
			return nil, sfm.Errorf(sfm.KindForbidden, nil, "Forbidden")
		}
		lc := d.locks.Write(p)
		defer lc.Close()
		if !d.oracle.Deletable(p) {
			return nil, sfm.NewError(sfm.KindForbidden, nil)
		}
		if err := d.ops.RemoveAll(p); err != nil {
			return nil, err
		}
		return &sfm.Result{}, nil

	case sfm.MkdirOp:
		lc := d.lockChild(p, op.Name)
		defer lc.Close()
		if err := d.ops.Mkdir(p, op.Name); err != nil {
			return nil, err
		}
		return &sfm.Result{}, nil

	case sfm.UploadOp:
		lc := d.lockChild(p, op.Name)
		defer lc.Close()
		var src io.Reader
		if op.Data != nil {
			src = &ctxReader{ctx: ctx, r: op.Data}
		}
		if err := d.ops.Store(p, op.Name, src, op.Size); err != nil {
			return nil, err
		}
		return &sfm.Result{}, nil

	case sfm.DownloadOp:
		lc := d.locks.Read(p)
		defer lc.Close()
		dl, err := d.ops.Open(p)
		if err != nil {
			return nil, err
		}
		return &sfm.Result{Download: dl}, nil

	default:
		return nil, sfm.NewError(sfm.KindNotFound, fmt.Errorf("unsupported operation %T", op))
	}
}

// lockChild locks the path a create-in-dir request will write, which is the
// file a symlinked name points to. A name that does not sanitize only needs
// the directory read-locked; Ops reports the error in its usual order.
func (d *Dispatcher) lockChild(dir, name string) *LockContext {
	child, err := d.ops.ChildPath(dir, name)
	if err != nil {
		return d.locks.Read(dir)
	}
	return d.locks.Write(child)
}

// ctxReader stops an upload copy once the request is cancelled.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
