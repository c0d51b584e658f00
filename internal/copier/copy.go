// Package copier copies collections and data objects between store paths,
// idempotently and verified by checksum.
package copier

import (
	"context"
	"fmt"
	"path"

	"github.com/rs/zerolog"

	"github.com/gridkeeper/gridkeeper/internal/grid"
	"github.com/gridkeeper/gridkeeper/internal/integrity"
)

// Options selects what a copy carries and how it treats existing
// destinations.
type Options struct {
	// AVU copies each entry's metadata to its destination.
	AVU bool

	// ACL copies each entry's access control list to its destination.
	ACL bool

	// Recurse descends into sub-collections. Copying a non-empty collection
	// without it is an error.
	Recurse bool

	// ExistOK skips destination objects whose checksum already matches the
	// source instead of failing.
	ExistOK bool
}

// Engine performs copy runs. A run is one sequential walk; any structural
// conflict or checksum mismatch aborts the whole run so that nothing is
// copied past an unresolved conflict.
type Engine struct {
	logger zerolog.Logger
}

// NewEngine creates a copy engine.
func NewEngine(logger zerolog.Logger) *Engine {
	return &Engine{logger: logger.With().Str("component", "copier").Logger()}
}

// Copy copies src to dst. It returns the number of entries visited and the
// number actually written; the destination root collection is not counted.
// Re-running a partially completed copy with ExistOK continues past entries
// already copied.
func (e *Engine) Copy(ctx context.Context, c grid.Client, src, dst string, opts Options) (processed, copied int, err error) {
	kind, err := c.Stat(ctx, src)
	if err != nil {
		return 0, 0, err
	}
	if kind == grid.KindNone {
		return 0, 0, fmt.Errorf("%w: %s", grid.ErrNotFound, src)
	}

	r := &run{c: c, opts: opts, logger: e.logger}
	switch kind {
	case grid.KindCollection:
		err = r.copyCollection(ctx, src, dst, true)
	default:
		err = r.copyObject(ctx, src, dst)
	}
	return r.processed, r.copied, err
}

type run struct {
	c         grid.Client
	opts      Options
	processed int
	copied    int
	logger    zerolog.Logger
}

func (r *run) copyCollection(ctx context.Context, src, dst string, root bool) error {
	if !root {
		r.processed++
	}

	kind, err := r.c.Stat(ctx, dst)
	if err != nil {
		return err
	}
	if kind == grid.KindDataObject {
		return fmt.Errorf("cannot copy collection %s onto data object %s", src, dst)
	}
	if kind == grid.KindNone {
		if err := r.c.CreateCollection(ctx, dst); err != nil {
			return err
		}
		if !root {
			r.copied++
		}
		r.logger.Info().Str("src", src).Str("dst", dst).Msg("Created collection")
	}

	if err := r.copyAttributes(ctx, src, dst); err != nil {
		return err
	}

	children, err := r.c.ListChildren(ctx, src)
	if err != nil {
		return err
	}
	if !r.opts.Recurse {
		if len(children) > 0 {
			return fmt.Errorf("%s is a non-empty collection: copying it requires recursion", src)
		}
		return nil
	}

	for _, child := range children {
		childDst := path.Join(dst, path.Base(child.Path))
		if child.Kind == grid.KindCollection {
			err = r.copyCollection(ctx, child.Path, childDst, false)
		} else {
			err = r.copyObject(ctx, child.Path, childDst)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *run) copyObject(ctx context.Context, src, dst string) error {
	r.processed++

	kind, err := r.c.Stat(ctx, dst)
	if err != nil {
		return err
	}
	if kind == grid.KindCollection {
		// Copying an object to a collection lands it inside.
		dst = path.Join(dst, path.Base(src))
		if kind, err = r.c.Stat(ctx, dst); err != nil {
			return err
		}
	}

	if kind != grid.KindNone {
		if !r.opts.ExistOK {
			return &ExistsError{Path: dst}
		}
		expected, observed, err := r.compareChecksums(ctx, src, dst)
		if err != nil {
			return err
		}
		if expected != observed {
			return &ChecksumError{Path: dst, Expected: expected, Observed: observed}
		}
		r.logger.Debug().Str("src", src).Str("dst", dst).
			Str("checksum", expected).Msg("Destination matches, skipping")
	} else {
		if err := r.c.CopyObject(ctx, src, dst); err != nil {
			return err
		}
		r.copied++
		r.logger.Info().Str("src", src).Str("dst", dst).Msg("Copied data object")
	}

	return r.copyAttributes(ctx, src, dst)
}

// compareChecksums resolves the consistent replica checksum of both paths.
// Either side being internally inconsistent is an error in its own right.
func (r *run) compareChecksums(ctx context.Context, src, dst string) (expected, observed string, err error) {
	for _, side := range []struct {
		path string
		out  *string
	}{{src, &expected}, {dst, &observed}} {
		replicas, err := r.c.GetReplicas(ctx, side.path)
		if err != nil {
			return "", "", err
		}
		sum, err := integrity.ReplicaChecksum(side.path, replicas)
		if err != nil {
			return "", "", err
		}
		*side.out = sum
	}
	return expected, observed, nil
}

// copyAttributes brings dst's metadata and ACL in line with src, as selected
// by the options. Skipped entries get this too, which is what makes a
// resumed run converge.
func (r *run) copyAttributes(ctx context.Context, src, dst string) error {
	if r.opts.AVU {
		if err := r.copyMetadata(ctx, src, dst); err != nil {
			return err
		}
	}
	if r.opts.ACL {
		acl, err := r.c.GetACL(ctx, src)
		if err != nil {
			return err
		}
		if len(acl) > 0 {
			if err := r.c.SetACL(ctx, dst, acl...); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *run) copyMetadata(ctx context.Context, src, dst string) error {
	srcMeta, err := r.c.GetMetadata(ctx, src)
	if err != nil {
		return err
	}
	if len(srcMeta) == 0 {
		return nil
	}
	dstMeta, err := r.c.GetMetadata(ctx, dst)
	if err != nil {
		return err
	}

	have := map[grid.AVU]struct{}{}
	for _, avu := range dstMeta {
		have[avu] = struct{}{}
	}
	var missing []grid.AVU
	for _, avu := range srcMeta {
		if _, ok := have[avu]; !ok {
			missing = append(missing, avu)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return r.c.AddMetadata(ctx, dst, missing...)
}
