// Package grid provides the client interface to the data grid: a hierarchical
// namespace of collections and data objects where each object is replicated
// across one or more storage resources.
package grid

import (
	"time"
)

// Kind classifies a path in the grid namespace.
type Kind int

const (
	KindNone Kind = iota // Path does not exist
	KindDataObject
	KindCollection
)

func (k Kind) String() string {
	switch k {
	case KindDataObject:
		return "object"
	case KindCollection:
		return "collection"
	default:
		return "none"
	}
}

// Replica is one stored copy of a data object on a specific resource.
type Replica struct {
	Resource string
	Number   int
	Checksum string // Empty when the store has not recorded one
	Valid    bool
	Created  time.Time
}

// AVU is an attribute-value-units metadata triple attached to a path.
type AVU struct {
	Attribute string
	Value     string
	Units     string
}

// ACE grants a permission level to a principal.
type ACE struct {
	Principal  string
	Permission string
}

// Entry is a direct child of a collection.
type Entry struct {
	Path string
	Kind Kind
}

// Common metadata attribute names. Every data object under curation should
// carry the creation pair, a checksum record and (when the path has a
// recognizable suffix) a file type.
const (
	AttrChecksum = "md5"
	AttrCreator  = "creator"
	AttrCreated  = "created"
	AttrType     = "type"
)

// PlaceholderCreator is recorded when no creator identity is supplied.
const PlaceholderCreator = "unknown"
