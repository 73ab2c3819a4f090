package deb

import "fmt"

// MalformedIndexError reports a non-blank index line that is not of the form "Key: value".
type MalformedIndexError struct {
	Line int // 1-based
	Text string
}

func (e *MalformedIndexError) Error() string {
	return fmt.Sprintf("line %d, invalid line: %q", e.Line, e.Text)
}

// DuplicatePackageError reports a stanza whose package name was already recorded.
// Line is the last line of the offending stanza.
type DuplicatePackageError struct {
	Line int
	Name string
}

func (e *DuplicatePackageError) Error() string {
	return fmt.Sprintf("line %d, duplicate package: %s", e.Line, e.Name)
}

// MissingPackageNameError reports a stanza without a Package field.
// Line is the last line of the offending stanza.
type MissingPackageNameError struct {
	Line int
}

func (e *MissingPackageNameError) Error() string {
	return fmt.Sprintf("line %d, missing package name", e.Line)
}

// MissingPackageError reports a package name that is not in the index.
type MissingPackageError struct {
	Name string
}

func (e *MissingPackageError) Error() string {
	return fmt.Sprintf("missing package: %s", e.Name)
}

// MissingFieldError reports a record lacking a field required to download it.
type MissingFieldError struct {
	Package string
	Field   Field
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("package %s has no %s field", e.Package, e.Field)
}

// SizeMismatchError reports a downloaded file whose length differs from the declared Size.
type SizeMismatchError struct {
	Expected int64
	Actual   int64
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("invalid file size: expected %db but got %db", e.Expected, e.Actual)
}

// HashMismatchError reports a downloaded file whose SHA256 differs from the declared one.
type HashMismatchError struct {
	Expected string
	Actual   string
}

func (e *HashMismatchError) Error() string {
	return fmt.Sprintf("invalid hash: expected %s but got %s", e.Expected, e.Actual)
}
