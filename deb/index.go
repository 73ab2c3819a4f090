package deb

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Record is one stanza of a Packages index.
// Keys are lower-cased field names, values are trimmed.
//
// Reference: https://wiki.debian.org/DebianRepository/Format#Packages_Indices
type Record map[string]string

// Get returns the value of a field, or "" if absent.
func (r Record) Get(f Field) string { return r[string(f)] }

// Name returns the Package field.
func (r Record) Name() string { return r.Get(FieldPackage) }

// Filename returns the path of the artifact relative to the repository root.
func (r Record) Filename() string { return r.Get(FieldFilename) }

// SHA256 returns the declared hex digest of the artifact.
func (r Record) SHA256() string { return r.Get(FieldSHA256) }

// Size returns the declared byte count of the artifact.
func (r Record) Size() (int64, error) {
	v, ok := r[string(FieldSize)]
	if !ok {
		return 0, &MissingFieldError{Package: r.Name(), Field: FieldSize}
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("package %s: invalid size %q: %w", r.Name(), v, err)
	}
	return n, nil
}

// Depends returns the trimmed entries of the Depends field, in order.
// Entries are returned as written, see Alternatives to get bare package names.
func (r Record) Depends() []string {
	return splitList(r.Get(FieldDepends))
}

// String renders the record as an index stanza, Package first and the other
// fields in lexical order.
func (r Record) String() string {
	keys := make([]string, 0, len(r))
	for k := range r {
		if k != string(FieldPackage) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if _, ok := r[string(FieldPackage)]; ok {
		keys = append([]string{string(FieldPackage)}, keys...)
	}

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\n", canonicalField(k), r[k])
	}
	return b.String()
}

// canonicalField turns a lower-cased key back into its usual spelling.
func canonicalField(k string) string {
	switch k {
	case "sha256", "sha1", "sha512":
		return strings.ToUpper(k)
	case "md5sum":
		return "MD5sum"
	}
	parts := strings.Split(k, "-")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, "-")
}

// Index maps package names to their record.
type Index map[string]Record

// Merge returns a new index holding every record of base and overlay.
// On a name collision the overlay record wins.
func Merge(base, overlay Index) Index {
	merged := make(Index, len(base)+len(overlay))
	for name, r := range base {
		merged[name] = r
	}
	for name, r := range overlay {
		merged[name] = r
	}
	return merged
}

// ParseIndexString parses the text of a Packages index.
func ParseIndexString(content string) (Index, error) {
	return ParseIndex(strings.NewReader(content))
}

// ParseIndex parses a Packages index.
//
// Stanzas are separated by blank lines. Each line is split on its first colon into a
// lower-cased field name and a trimmed value; a non-blank line without a field name
// is a *MalformedIndexError. The last stanza does not need a terminating blank line.
func ParseIndex(r io.Reader) (Index, error) {
	idx := make(Index)

	scanner := bufio.NewScanner(r)
	// Increase buffer for long lines
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	var (
		current  Record
		lineNo   int
		lastLine int
	)

	flush := func() error {
		if current == nil {
			return nil
		}
		name := current.Name()
		if name == "" {
			return &MissingPackageNameError{Line: lastLine}
		}
		if _, exists := idx[name]; exists {
			return &DuplicatePackageError{Line: lastLine, Name: name}
		}
		idx[name] = current
		current = nil
		return nil
	}

	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}
		lastLine = lineNo

		key, value, ok := strings.Cut(line, ":")
		key = strings.ToLower(strings.TrimSpace(key))
		if !ok || key == "" {
			return nil, &MalformedIndexError{Line: lineNo, Text: line}
		}
		if current == nil {
			current = make(Record)
		}
		current[key] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return idx, nil
}

// splitList splits a comma-separated string into a slice of strings, trimming whitespace from each element.
// It returns nil if the input string is empty.
func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	var res []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			res = append(res, p)
		}
	}
	return res
}
