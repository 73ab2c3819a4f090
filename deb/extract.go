package deb

import (
	"path"
	"strings"
)

// EntryType is the kind of an entry of the data archive.
type EntryType string

const (
	EntryFile      EntryType = "file"
	EntryDirectory EntryType = "directory"
	EntrySymlink   EntryType = "symlink"
	EntryLink      EntryType = "link"
	EntryOther     EntryType = "other"
)

// Entry is an entry of the data archive as seen by a Filter.
// Path is slash separated, cleaned, and already stripped of leading segments.
type Entry struct {
	Path string
	Type EntryType
	Mode int64
}

// Filter decides whether an entry is extracted. It may rewrite e.Path to change
// where the entry is written, relative to the destination directory.
type Filter func(e *Entry) bool

// ExtractOptions configures how a data archive is unpacked.
type ExtractOptions struct {
	// Strip is the number of leading path segments removed before filtering.
	Strip int
	// Filter selects entries. A nil Filter accepts every regular file as is.
	Filter Filter
}

// DirFilter accepts regular files whose parent directory is one of dirs and
// flattens them: the accepted entry is written under its base name only.
func DirFilter(dirs ...string) Filter {
	allowed := make(map[string]bool, len(dirs))
	for _, d := range dirs {
		allowed[path.Clean(d)] = true
	}
	return func(e *Entry) bool {
		if e.Type != EntryFile {
			return false
		}
		if !allowed[path.Dir(e.Path)] {
			return false
		}
		e.Path = path.Base(e.Path)
		return true
	}
}

// StripComponents cleans p and removes its first n segments.
// It returns "" when nothing is left.
func StripComponents(p string, n int) string {
	p = strings.TrimPrefix(path.Clean("/"+p), "/")
	if p == "" {
		return ""
	}
	parts := strings.Split(p, "/")
	if n < 0 {
		n = 0
	}
	if n >= len(parts) {
		return ""
	}
	return strings.Join(parts[n:], "/")
}
