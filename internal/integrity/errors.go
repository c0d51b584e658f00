package integrity

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoValidReplicas is reported for objects with zero valid replicas,
// a terminal state that replica creation cannot recover from.
var ErrNoValidReplicas = errors.New("data object has no valid replicas")

// InconsistentReplicasError reports valid replicas that disagree on their
// checksum (or are missing one). Checksums holds the distinct values seen,
// sorted, with the empty string standing in for a missing checksum.
type InconsistentReplicasError struct {
	Path      string
	Checksums []string
}

func (e *InconsistentReplicasError) Error() string {
	return fmt.Sprintf("valid replicas of %s have inconsistent checksums [%s]",
		e.Path, strings.Join(e.Checksums, ", "))
}

// ChecksumMismatchError reports a checksum record that disagrees with the
// (consistent) replica checksum, or an object with multiple records.
type ChecksumMismatchError struct {
	Path    string
	Records []string // All checksum record values found on the object
	Replica string   // The checksum shared by the valid replicas
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum record [%s] on %s does not match replica checksum %s",
		strings.Join(e.Records, ", "), e.Path, e.Replica)
}

// NoChecksumRecordError reports an object with no checksum record, under the
// policy that requires one.
type NoChecksumRecordError struct {
	Path string
}

func (e *NoChecksumRecordError) Error() string {
	return fmt.Sprintf("no checksum record on %s", e.Path)
}

// RepairExhaustedError reports that the target replica count could not be
// reached within the repair attempt budget.
type RepairExhaustedError struct {
	Path   string
	Valid  int
	Target int
}

func (e *RepairExhaustedError) Error() string {
	return fmt.Sprintf("repair of %s exhausted: %d valid replicas, target %d",
		e.Path, e.Valid, e.Target)
}
