package deb

import (
	"archive/tar"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/blakesmith/ar"
	"github.com/ulikunitz/xz"
)

// Verify checks content against the Size and SHA256 declared by r.
// The size is checked first so that a truncated download is reported without
// hashing it.
func Verify(content []byte, r Record) error {
	size, err := r.Size()
	if err != nil {
		return err
	}
	if int64(len(content)) != size {
		return &SizeMismatchError{Expected: size, Actual: int64(len(content))}
	}

	expected := r.SHA256()
	if expected == "" {
		return &MissingFieldError{Package: r.Name(), Field: FieldSHA256}
	}
	hash := sha256.Sum256(content)
	actual := hex.EncodeToString(hash[:])
	if !strings.EqualFold(actual, expected) {
		return &HashMismatchError{Expected: expected, Actual: actual}
	}
	return nil
}

// DataMember iterates through the AR archive structure of a .deb file to locate
// the data.tar.xz member. The boolean is false when there is no such member.
func DataMember(content []byte) ([]byte, bool, error) {
	if !bytes.HasPrefix(content, []byte(arMagic)) {
		return nil, false, fmt.Errorf("not a debian archive")
	}
	arR := ar.NewReader(bytes.NewReader(content))
	for {
		header, err := arR.Next()
		if err == io.EOF {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, fmt.Errorf("reading ar archive: %w", err)
		}
		if !isDataMember(header.Name) {
			continue
		}
		data := make([]byte, header.Size)
		if _, err := io.ReadFull(arR, data); err != nil {
			return nil, false, fmt.Errorf("reading %s: %w", header.Name, err)
		}
		return data, true, nil
	}
}

func isDataMember(name string) bool {
	name = strings.TrimRight(name, " ")
	return name == string(MemberDataTarXz) || name == strings.TrimSuffix(string(MemberDataTarXz), "/")
}

// Unpack decompresses an xz-compressed tar stream and writes the entries accepted
// by opts under dest. It returns the written paths, relative to dest, in archive
// order.
func Unpack(data []byte, dest string, opts ExtractOptions) ([]string, error) {
	xzr, err := xz.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("opening xz stream: %w", err)
	}
	tr := tar.NewReader(xzr)

	var written []string
	for {
		th, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return written, fmt.Errorf("reading tar: %w", err)
		}

		p := StripComponents(th.Name, opts.Strip)
		if p == "" {
			continue
		}
		e := &Entry{Path: p, Type: entryType(th.Typeflag), Mode: th.Mode}
		if opts.Filter != nil && !opts.Filter(e) {
			continue
		}
		// Only regular files are written, whatever the filter says.
		if e.Type != EntryFile {
			continue
		}

		target, err := within(dest, e.Path)
		if err != nil {
			return written, err
		}
		if err := writeFile(target, tr, os.FileMode(e.Mode).Perm()); err != nil {
			return written, fmt.Errorf("extracting %s: %w", th.Name, err)
		}
		written = append(written, filepath.ToSlash(e.Path))
	}
	return written, nil
}

func entryType(flag byte) EntryType {
	switch flag {
	case tar.TypeReg, tar.TypeRegA:
		return EntryFile
	case tar.TypeDir:
		return EntryDirectory
	case tar.TypeSymlink:
		return EntrySymlink
	case tar.TypeLink:
		return EntryLink
	default:
		return EntryOther
	}
}

// within joins rel to dest and rejects results outside of dest.
func within(dest, rel string) (string, error) {
	target := filepath.Join(dest, filepath.FromSlash(rel))
	r, err := filepath.Rel(dest, target)
	if err != nil || r == "." || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("entry %q escapes destination %s", rel, dest)
	}
	return target, nil
}

func writeFile(target string, r io.Reader, perm os.FileMode) error {
	if perm == 0 {
		perm = 0644
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
