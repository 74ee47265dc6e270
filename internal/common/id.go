package common

import (
	"strings"

	"github.com/google/uuid"
)

// NewGroupID generates an opaque 16-character hex token for similarity
// groups and perceptually-merged exact groups.
func NewGroupID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:16]
}

// NewUnitID generates a unique queue unit ID
func NewUnitID() string {
	return uuid.New().String()
}
