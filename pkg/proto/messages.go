// Package proto defines the JSON messages exchanged with the grid gateway.
package proto

import (
	"time"
)

// Replica describes one stored copy of a data object.
type Replica struct {
	Resource string    `json:"resource"` // Storage resource holding the copy
	Number   int       `json:"number"`   // Replica index, unique per object
	Checksum string    `json:"checksum"` // Content checksum, may be empty
	Valid    bool      `json:"valid"`    // False when the store marks the copy stale
	Created  time.Time `json:"created"`  // Store-recorded creation time
}

// AVU is an attribute-value-units metadata triple.
type AVU struct {
	Attribute string `json:"attribute"`
	Value     string `json:"value"`
	Units     string `json:"units,omitempty"`
}

// ACE grants a permission level to a principal.
type ACE struct {
	Principal  string `json:"principal"`
	Permission string `json:"permission"` // "own", "write", "read", "null"
}

// Entry is one child of a collection.
type Entry struct {
	Path string `json:"path"`
	Kind string `json:"kind"` // "object" or "collection"
}

// StatResponse reports whether a path exists and what it is.
type StatResponse struct {
	Exists bool   `json:"exists"`
	Kind   string `json:"kind,omitempty"` // "object" or "collection" when Exists
}

// ReplicasResponse lists an object's replicas.
type ReplicasResponse struct {
	Replicas []Replica `json:"replicas"`
}

// MetadataResponse lists a path's metadata AVUs.
type MetadataResponse struct {
	AVUs []AVU `json:"avus"`
}

// ACLResponse lists a path's access control entries.
type ACLResponse struct {
	Entries []ACE `json:"entries"`
}

// ChildrenResponse lists the direct children of a collection.
type ChildrenResponse struct {
	Children []Entry `json:"children"`
}

// CreateReplicaRequest asks the store to materialize a new replica.
type CreateReplicaRequest struct {
	Path     string `json:"path"`
	Resource string `json:"resource"`
}

// RemoveReplicaRequest asks the store to trim one replica by index.
type RemoveReplicaRequest struct {
	Path   string `json:"path"`
	Number int    `json:"number"`
}

// MetadataRequest adds or removes AVUs on a path.
type MetadataRequest struct {
	Path string `json:"path"`
	AVUs []AVU  `json:"avus"`
}

// ACLRequest replaces the access control entries on a path.
type ACLRequest struct {
	Path    string `json:"path"`
	Entries []ACE  `json:"entries"`
}

// CopyObjectRequest copies a single data object server-side. The gateway
// verifies the destination checksum against the source before returning.
type CopyObjectRequest struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
}

// CreateCollectionRequest creates a collection, including missing parents.
type CreateCollectionRequest struct {
	Path string `json:"path"`
}

// ErrorResponse is the gateway's error body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"` // Store-level error code when known
}
