// Package tagging derives labels from {tag1,tag2} filename syntax and
// from the directory hierarchy under the import root.
package tagging

import (
	"path/filepath"
	"regexp"
	"strings"
)

var braceTagRegex = regexp.MustCompile(`\{([^}]+)\}`)

// Folder names too generic to be useful as tags
var genericFolderNames = map[string]bool{
	"camera": true, "dcim": true, "thumbnails": true, "thumb": true,
	"thumbs": true, "misc": true, "temp": true, "tmp": true,
	"cache": true, "backup": true, "100andro": true, "100apple": true,
}

// FilenameTags extracts tags from {tag1,tag2} syntax in a filename.
// Tags are lowercased and trimmed; empty entries are dropped.
func FilenameTags(fileName string) []string {
	var tags []string
	for _, match := range braceTagRegex.FindAllStringSubmatch(fileName, -1) {
		for _, tag := range strings.Split(match[1], ",") {
			tag = strings.ToLower(strings.TrimSpace(tag))
			if tag != "" {
				tags = append(tags, tag)
			}
		}
	}
	return tags
}

// FolderTags derives tags from the directory components between the
// import root and the file. Single letters, bare numbers (years are
// carried by the timestamp already) and generic camera folder names
// are skipped.
func FolderTags(sourcePath, importRoot string) []string {
	rel, err := filepath.Rel(importRoot, sourcePath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return nil
	}

	dir := filepath.Dir(rel)
	if dir == "." {
		return nil
	}

	var tags []string
	for _, part := range strings.Split(dir, string(filepath.Separator)) {
		if len(part) <= 1 {
			continue
		}
		if isDigits(part) {
			continue
		}
		lower := strings.ToLower(part)
		if genericFolderNames[lower] {
			continue
		}
		tags = append(tags, lower)
	}
	return tags
}

// AutoTags combines filename and folder tags, deduplicated with order
// preserved (filename tags first).
func AutoTags(fileName, sourcePath, importRoot string) []string {
	var tags []string
	seen := make(map[string]bool)

	for _, tag := range FilenameTags(fileName) {
		if !seen[tag] {
			tags = append(tags, tag)
			seen[tag] = true
		}
	}
	for _, tag := range FolderTags(sourcePath, importRoot) {
		if !seen[tag] {
			tags = append(tags, tag)
			seen[tag] = true
		}
	}
	return tags
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
