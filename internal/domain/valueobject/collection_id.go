package valueobject

import (
	"fmt"
	"strings"
)

// collectionIDSeparator joins a collection name and version into a single identifier.
const collectionIDSeparator = "___"

// CollectionID identifies a collection by its natural key.
type CollectionID struct {
	name    string
	version string
}

// NewCollectionID creates a CollectionID from its name and version.
func NewCollectionID(name, version string) (CollectionID, error) {
	if strings.TrimSpace(name) == "" {
		return CollectionID{}, fmt.Errorf("collection name cannot be empty")
	}
	if strings.TrimSpace(version) == "" {
		return CollectionID{}, fmt.Errorf("collection version cannot be empty")
	}
	return CollectionID{name: name, version: version}, nil
}

// ParseCollectionID splits an identifier of the form "<name>___<version>".
// The last separator wins, so names may themselves contain the separator.
func ParseCollectionID(id string) (CollectionID, error) {
	idx := strings.LastIndex(id, collectionIDSeparator)
	if idx < 0 {
		return CollectionID{}, fmt.Errorf("invalid collection id %q: missing %q separator", id, collectionIDSeparator)
	}
	return NewCollectionID(id[:idx], id[idx+len(collectionIDSeparator):])
}

// Name returns the collection name.
func (c CollectionID) Name() string {
	return c.name
}

// Version returns the collection version.
func (c CollectionID) Version() string {
	return c.version
}

// String returns the joined "<name>___<version>" form.
func (c CollectionID) String() string {
	return c.name + collectionIDSeparator + c.version
}

// IsZero reports whether the identifier is unset.
func (c CollectionID) IsZero() bool {
	return c.name == "" && c.version == ""
}
