package image

import (
	"path/filepath"
	"strings"
)

// ID identifies an image by registry path and tag, e.g. "library/alpine:latest".
type ID struct {
	Name string
	Tag  string
}

// ParseID parses "name[:tag]" into an ID. A name with no "/" is
// prefixed "library/"; a missing tag defaults to "latest".
func ParseID(s string) ID {
	name, tag, ok := strings.Cut(s, ":")
	if !ok {
		tag = "latest"
	}
	if !strings.Contains(name, "/") {
		name = "library/" + name
	}
	return ID{Name: name, Tag: tag}
}

// String renders the ID back to "name:tag" form.
func (id ID) String() string {
	return id.Name + ":" + id.Tag
}

// Dir returns the on-disk ImageRoot for id: <cwd>/<name>/, with no tag
// segment — a pulled name is shared by every tag of that name, matching
// the reference CLI's own current_dir().join(name) layout.
func Dir(cwd string, id ID) string {
	return filepath.Join(cwd, id.Name)
}
