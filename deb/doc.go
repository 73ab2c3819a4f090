// Package deb provides the in-memory Debian formats used to fetch packages from an
// APT repository: the Packages index, dependency closures, and .deb artifacts.
//
// # Design Philosophy
//
// Everything in this package operates on byte slices and io.Readers. Network access
// lives in the apt package and orchestration lives in the manifest package, so the
// parsing, resolution and verification logic here can be tested without a server.
//
// # Features
//
// Index handling:
//   - Parse RFC822-style Packages stanzas into records keyed by package name.
//   - Merge an architecture-specific index over the architecture-independent one.
//   - Parse Release files and verify clearsigned InRelease files with OpenPGP.
//
// Resolution:
//   - Compute the transitive Depends closure of a root package, cycle and diamond safe.
//
// Artifacts:
//   - Verify the declared Size and SHA256 of a downloaded .deb.
//   - Locate the data.tar.xz member of the ar container and unpack it through a
//     filter that selects and renames entries.
package deb
