// -----------------------------------------------------------------------
// Tag - labels derived from directory names and filename tag syntax
// -----------------------------------------------------------------------

package models

import "time"

// TagSource records where a tag came from
type TagSource string

const (
	TagSourcePath     TagSource = "path"     // directory component of the source path
	TagSourceFilename TagSource = "filename" // {tag1,tag2} syntax in the filename
	TagSourceUser     TagSource = "user"     // added through the API
)

// Tag is one label attached to a file.
type Tag struct {
	ID        int64     `json:"id"`
	FileID    string    `json:"file_id"`
	Name      string    `json:"name"`
	Source    TagSource `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// TagUsage is one tag name with the number of files carrying it.
type TagUsage struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}
