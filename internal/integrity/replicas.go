package integrity

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/gridkeeper/gridkeeper/internal/grid"
)

const defaultRepairAttempts = 3

// ReplicaRepairer brings a data object's replica set to the target count:
// invalid replicas are trimmed and missing valid replicas are restored on the
// configured resources. Surplus valid replicas are reported, never deleted.
type ReplicaRepairer struct {
	// Resources are the storage resources eligible to receive restored
	// replicas. A resource already holding a valid replica is skipped.
	Resources []string

	// MaxAttempts bounds replica-creation requests per path.
	MaxAttempts int

	logger zerolog.Logger
}

// NewReplicaRepairer creates a repairer placing new replicas on resources.
func NewReplicaRepairer(resources []string, logger zerolog.Logger) *ReplicaRepairer {
	return &ReplicaRepairer{
		Resources:   resources,
		MaxAttempts: defaultRepairAttempts,
		logger:      logger.With().Str("component", "replica-repairer").Logger(),
	}
}

// Check verifies, without mutating the store, that the object has exactly
// target valid replicas, no invalid replicas, consistent checksums and a
// matching checksum record if one exists.
func (rr *ReplicaRepairer) Check(ctx context.Context, c grid.Client, path string, target int) Outcome {
	replicas, err := c.GetReplicas(ctx, path)
	if err != nil {
		return Failed(path, err)
	}

	valid, invalid := partition(replicas)
	if len(invalid) > 0 {
		return Failed(path, fmt.Errorf("%s has %d invalid replicas", path, len(invalid)))
	}
	if len(valid) != target {
		return Failed(path, fmt.Errorf("%s has %d valid replicas, expected %d", path, len(valid), target))
	}
	if err := rr.verify(ctx, c, path, replicas); err != nil {
		return Failed(path, err)
	}
	return Passed(path)
}

// Repair mutates the object toward the target replica count. It is
// idempotent: on an already-correct object it performs no store mutation and
// returns a passed outcome.
func (rr *ReplicaRepairer) Repair(ctx context.Context, c grid.Client, path string, target int) Outcome {
	replicas, err := c.GetReplicas(ctx, path)
	if err != nil {
		return Failed(path, err)
	}

	valid, invalid := partition(replicas)
	mutated := false

	// Trim invalid replicas first. A failed removal is recorded but does not
	// stop work on the remaining replicas.
	trimFailures := 0
	for _, r := range invalid {
		if err := c.RemoveReplica(ctx, path, r.Number); err != nil {
			trimFailures++
			rr.logger.Warn().Str("path", path).Int("replica", r.Number).Err(err).
				Msg("Failed to trim invalid replica")
			continue
		}
		mutated = true
		rr.logger.Info().Str("path", path).Int("replica", r.Number).
			Str("resource", r.Resource).Msg("Trimmed invalid replica")
	}

	// Restore missing replicas until the target count is met or the attempt
	// budget runs out.
	attempts := 0
	for len(valid) < target && attempts < rr.maxAttempts() {
		resource := rr.pickResource(valid)
		if resource == "" {
			break
		}
		attempts++
		if err := c.CreateReplica(ctx, path, resource); err != nil {
			rr.logger.Warn().Str("path", path).Str("resource", resource).Err(err).
				Msg("Failed to create replica")
			continue
		}
		mutated = true
		rr.logger.Info().Str("path", path).Str("resource", resource).
			Msg("Created replica")

		replicas, err = c.GetReplicas(ctx, path)
		if err != nil {
			return Failed(path, err)
		}
		valid, _ = partition(replicas)
	}

	if len(valid) < target {
		return Failed(path, &RepairExhaustedError{Path: path, Valid: len(valid), Target: target})
	}

	// Surplus valid replicas are an anomaly to report; deleting a valid
	// replica is never done here.
	if len(valid) > target {
		rr.logger.Warn().Str("path", path).Int("valid", len(valid)).Int("target", target).
			Msg("Surplus valid replicas, not trimming")
	}

	if trimFailures > 0 {
		return Failed(path, fmt.Errorf("%s still has %d invalid replicas after repair", path, trimFailures))
	}
	if err := rr.verify(ctx, c, path, replicas); err != nil {
		return Failed(path, err)
	}

	if mutated {
		return Repaired(path)
	}
	return Passed(path)
}

// verify applies the data-model invariant: all valid replicas share one
// checksum, equal to the checksum record if one exists.
func (rr *ReplicaRepairer) verify(ctx context.Context, c grid.Client, path string, replicas []grid.Replica) error {
	sum, err := ReplicaChecksum(path, replicas)
	if err != nil {
		return err
	}
	records, err := c.GetChecksumRecord(ctx, path)
	if err != nil {
		return err
	}
	if len(records) > 1 || (len(records) == 1 && records[0] != sum) {
		return &ChecksumMismatchError{Path: path, Records: records, Replica: sum}
	}
	return nil
}

func (rr *ReplicaRepairer) pickResource(valid []grid.Replica) string {
	occupied := map[string]struct{}{}
	for _, r := range valid {
		occupied[r.Resource] = struct{}{}
	}
	for _, res := range rr.Resources {
		if _, ok := occupied[res]; !ok {
			return res
		}
	}
	return ""
}

func (rr *ReplicaRepairer) maxAttempts() int {
	if rr.MaxAttempts < 1 {
		return defaultRepairAttempts
	}
	return rr.MaxAttempts
}

func partition(replicas []grid.Replica) (valid, invalid []grid.Replica) {
	for _, r := range replicas {
		if r.Valid {
			valid = append(valid, r)
		} else {
			invalid = append(invalid, r)
		}
	}
	return valid, invalid
}
