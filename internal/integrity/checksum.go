package integrity

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/gridkeeper/gridkeeper/internal/grid"
)

// ReplicaChecksum returns the checksum shared by all valid replicas. It fails
// with ErrNoValidReplicas when none are valid, and with
// InconsistentReplicasError when the valid replicas disagree or any is
// missing its checksum.
func ReplicaChecksum(path string, replicas []grid.Replica) (string, error) {
	seen := map[string]struct{}{}
	for _, r := range replicas {
		if r.Valid {
			seen[r.Checksum] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoValidReplicas, path)
	}

	checksums := make([]string, 0, len(seen))
	for sum := range seen {
		checksums = append(checksums, sum)
	}
	sort.Strings(checksums)

	if len(checksums) > 1 || checksums[0] == "" {
		return "", &InconsistentReplicasError{Path: path, Checksums: checksums}
	}
	return checksums[0], nil
}

// Checker verifies that a data object's valid replicas agree on a checksum
// and that the checksum record matches. It never mutates the store.
type Checker struct {
	// RequireRecord fails objects that have no checksum record. When false
	// (the default policy) agreement among valid replicas is enough.
	RequireRecord bool

	logger zerolog.Logger
}

// NewChecker creates a read-only checksum checker.
func NewChecker(requireRecord bool, logger zerolog.Logger) *Checker {
	return &Checker{
		RequireRecord: requireRecord,
		logger:        logger.With().Str("component", "checksum-checker").Logger(),
	}
}

// Check verifies one path.
func (ck *Checker) Check(ctx context.Context, c grid.Client, path string) Outcome {
	replicas, err := c.GetReplicas(ctx, path)
	if err != nil {
		return Failed(path, err)
	}

	sum, err := ReplicaChecksum(path, replicas)
	if err != nil {
		return Failed(path, err)
	}

	records, err := c.GetChecksumRecord(ctx, path)
	if err != nil {
		return Failed(path, err)
	}

	switch {
	case len(records) == 0:
		if ck.RequireRecord {
			return Failed(path, &NoChecksumRecordError{Path: path})
		}
		ck.logger.Debug().Str("path", path).Str("checksum", sum).
			Msg("No checksum record, replicas agree")
		return Passed(path)
	case len(records) > 1 || records[0] != sum:
		return Failed(path, &ChecksumMismatchError{Path: path, Records: records, Replica: sum})
	default:
		return Passed(path)
	}
}
