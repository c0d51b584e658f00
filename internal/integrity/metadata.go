package integrity

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gridkeeper/gridkeeper/internal/grid"
)

// MetadataRepairer ensures every data object carries the common metadata
// set: creation pair (creator, created), checksum record and file type.
// Writes are minimized: a field already correct is left untouched.
type MetadataRepairer struct {
	// Creator is recorded on objects missing creation metadata. Empty falls
	// back to the placeholder identity.
	Creator string

	logger zerolog.Logger
	now    func() time.Time
}

// NewMetadataRepairer creates a repairer attributing new creation metadata
// to creator.
func NewMetadataRepairer(creator string, logger zerolog.Logger) *MetadataRepairer {
	if creator == "" {
		creator = grid.PlaceholderCreator
	}
	return &MetadataRepairer{
		Creator: creator,
		logger:  logger.With().Str("component", "metadata-repairer").Logger(),
		now:     time.Now,
	}
}

// Check verifies the common metadata without mutating the store.
func (mr *MetadataRepairer) Check(ctx context.Context, c grid.Client, p string) Outcome {
	plan, err := mr.plan(ctx, c, p)
	if err != nil {
		return Failed(p, err)
	}
	if len(plan.add) > 0 || len(plan.remove) > 0 {
		return Failed(p, &incompleteMetadataError{path: p, missing: plan.missing()})
	}
	return Passed(p)
}

// Repair rewrites any common-metadata field that is absent or incorrect.
func (mr *MetadataRepairer) Repair(ctx context.Context, c grid.Client, p string) Outcome {
	plan, err := mr.plan(ctx, c, p)
	if err != nil {
		return Failed(p, err)
	}
	if len(plan.add) == 0 && len(plan.remove) == 0 {
		return Passed(p)
	}

	if len(plan.remove) > 0 {
		if err := c.RemoveMetadata(ctx, p, plan.remove...); err != nil {
			return Failed(p, err)
		}
	}
	if len(plan.add) > 0 {
		if err := c.AddMetadata(ctx, p, plan.add...); err != nil {
			return Failed(p, err)
		}
	}

	mr.logger.Info().Str("path", p).
		Int("added", len(plan.add)).Int("removed", len(plan.remove)).
		Msg("Repaired common metadata")
	return Repaired(p)
}

type metadataPlan struct {
	add    []grid.AVU
	remove []grid.AVU
}

func (pl *metadataPlan) missing() []string {
	var fields []string
	for _, avu := range pl.add {
		fields = append(fields, avu.Attribute)
	}
	return fields
}

// plan computes the writes needed to make the common metadata correct. The
// authoritative checksum comes from the object's valid replicas, the creation
// time from its oldest replica, and the type from the path suffix.
func (mr *MetadataRepairer) plan(ctx context.Context, c grid.Client, p string) (*metadataPlan, error) {
	replicas, err := c.GetReplicas(ctx, p)
	if err != nil {
		return nil, err
	}
	sum, err := ReplicaChecksum(p, replicas)
	if err != nil {
		return nil, err
	}
	meta, err := c.GetMetadata(ctx, p)
	if err != nil {
		return nil, err
	}

	byAttr := map[string][]grid.AVU{}
	for _, avu := range meta {
		byAttr[avu.Attribute] = append(byAttr[avu.Attribute], avu)
	}

	plan := &metadataPlan{}

	// Checksum: exactly one record, equal to the replica checksum.
	checksums := byAttr[grid.AttrChecksum]
	if len(checksums) != 1 || checksums[0].Value != sum {
		plan.remove = append(plan.remove, checksums...)
		plan.add = append(plan.add, grid.AVU{Attribute: grid.AttrChecksum, Value: sum})
	}

	// Creation pair: presence is enough; recorded provenance is never
	// clobbered with a guess.
	if len(byAttr[grid.AttrCreator]) == 0 {
		plan.add = append(plan.add, grid.AVU{Attribute: grid.AttrCreator, Value: mr.Creator})
	}
	created := byAttr[grid.AttrCreated]
	if !hasParseableTime(created) {
		plan.remove = append(plan.remove, created...)
		plan.add = append(plan.add, grid.AVU{
			Attribute: grid.AttrCreated,
			Value:     mr.creationTime(replicas).Format(time.RFC3339),
		})
	}

	// Type: derived from the path suffix; paths without one need no type.
	if ext := strings.TrimPrefix(path.Ext(p), "."); ext != "" {
		types := byAttr[grid.AttrType]
		if len(types) != 1 || types[0].Value != ext {
			plan.remove = append(plan.remove, types...)
			plan.add = append(plan.add, grid.AVU{Attribute: grid.AttrType, Value: ext})
		}
	}

	return plan, nil
}

// creationTime estimates when the object was created from the store's record
// of its oldest replica.
func (mr *MetadataRepairer) creationTime(replicas []grid.Replica) time.Time {
	var oldest time.Time
	for _, r := range replicas {
		if !r.Created.IsZero() && (oldest.IsZero() || r.Created.Before(oldest)) {
			oldest = r.Created
		}
	}
	if oldest.IsZero() {
		return mr.now()
	}
	return oldest
}

func hasParseableTime(avus []grid.AVU) bool {
	for _, avu := range avus {
		if _, err := time.Parse(time.RFC3339, avu.Value); err == nil {
			return true
		}
	}
	return false
}

type incompleteMetadataError struct {
	path    string
	missing []string
}

func (e *incompleteMetadataError) Error() string {
	return "incomplete common metadata on " + e.path + ": " + strings.Join(e.missing, ", ")
}
