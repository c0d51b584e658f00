package batch

import (
	"context"
	"io"

	"github.com/rs/zerolog"

	"github.com/gridkeeper/gridkeeper/internal/grid"
	"github.com/gridkeeper/gridkeeper/internal/integrity"
)

// CheckChecksums verifies replica checksum consistency for each input path.
// requireRecord makes a missing checksum record a failure rather than a pass.
func CheckChecksums(ctx context.Context, pool *grid.Pool, opts Options, r io.Reader, w io.Writer,
	requireRecord bool, logger zerolog.Logger) (*Summary, error) {

	checker := integrity.NewChecker(requireRecord, logger)
	runner := NewRunner(pool, opts, logger)
	return runner.Run(ctx, r, w, func(ctx context.Context, c grid.Client, path string) integrity.Outcome {
		return checker.Check(ctx, c, path)
	})
}

// CheckReplicas verifies, read-only, that each input path has the target
// number of valid replicas and no invalid ones.
func CheckReplicas(ctx context.Context, pool *grid.Pool, opts Options, r io.Reader, w io.Writer,
	resources []string, target int, logger zerolog.Logger) (*Summary, error) {

	repairer := integrity.NewReplicaRepairer(resources, logger)
	runner := NewRunner(pool, opts, logger)
	return runner.Run(ctx, r, w, func(ctx context.Context, c grid.Client, path string) integrity.Outcome {
		return repairer.Check(ctx, c, path, target)
	})
}

// RepairReplicas trims invalid replicas and restores missing ones for each
// input path.
func RepairReplicas(ctx context.Context, pool *grid.Pool, opts Options, r io.Reader, w io.Writer,
	resources []string, target int, logger zerolog.Logger) (*Summary, error) {

	repairer := integrity.NewReplicaRepairer(resources, logger)
	runner := NewRunner(pool, opts, logger)
	return runner.Run(ctx, r, w, func(ctx context.Context, c grid.Client, path string) integrity.Outcome {
		return repairer.Repair(ctx, c, path, target)
	})
}

// CheckMetadata verifies, read-only, the common metadata of each input path.
func CheckMetadata(ctx context.Context, pool *grid.Pool, opts Options, r io.Reader, w io.Writer,
	creator string, logger zerolog.Logger) (*Summary, error) {

	repairer := integrity.NewMetadataRepairer(creator, logger)
	runner := NewRunner(pool, opts, logger)
	return runner.Run(ctx, r, w, func(ctx context.Context, c grid.Client, path string) integrity.Outcome {
		return repairer.Check(ctx, c, path)
	})
}

// RepairMetadata rewrites absent or incorrect common metadata for each input
// path.
func RepairMetadata(ctx context.Context, pool *grid.Pool, opts Options, r io.Reader, w io.Writer,
	creator string, logger zerolog.Logger) (*Summary, error) {

	repairer := integrity.NewMetadataRepairer(creator, logger)
	runner := NewRunner(pool, opts, logger)
	return runner.Run(ctx, r, w, func(ctx context.Context, c grid.Client, path string) integrity.Outcome {
		return repairer.Repair(ctx, c, path)
	})
}
