package deb

// Field is a field name of a Packages stanza, as stored in a Record.
// Records are keyed by the lower-cased field name, whatever the case used in the index.
type Field string

const (
	FieldPackage      Field = "package"
	FieldVersion      Field = "version"
	FieldArchitecture Field = "architecture"
	FieldDepends      Field = "depends"
	FieldFilename     Field = "filename"
	FieldSize         Field = "size"
	FieldSHA256       Field = "sha256"
	FieldDescription  Field = "description"
)

// arMagic is the global header of an ar archive.
const arMagic = "!<arch>\n"

// Member is the name of a member of the .deb ar container.
type Member string

const (
	MemberDebianBinary Member = "debian-binary"
	// MemberDataTarXz is the payload member as written by GNU ar, with its
	// trailing name terminator.
	MemberDataTarXz Member = "data.tar.xz/"
)

// ReleaseField represents a standard field in a Debian Release file.
type ReleaseField string

const (
	RelOrigin        ReleaseField = "Origin"
	RelLabel         ReleaseField = "Label"
	RelSuite         ReleaseField = "Suite"
	RelCodename      ReleaseField = "Codename"
	RelDate          ReleaseField = "Date"
	RelArchitectures ReleaseField = "Architectures"
	RelComponents    ReleaseField = "Components"
	RelDescription   ReleaseField = "Description"
	RelSHA256        ReleaseField = "SHA256"
)
