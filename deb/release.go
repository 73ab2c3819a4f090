package deb

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/clearsign"
)

// Release holds the fields of a Release file used to check the indices.
//
// Reference: https://wiki.debian.org/DebianRepository/Format#Release_file
type Release struct {
	Origin        string
	Label         string
	Suite         string
	Codename      string
	Date          string
	Architectures string
	Components    string
	Description   string
	// SHA256 maps index paths relative to the suite directory (e.g.
	// "main/binary-arm/Packages") to their checksum entry.
	SHA256 map[string]ReleaseEntry
}

// ReleaseEntry is one line of the SHA256 section of a Release file.
type ReleaseEntry struct {
	Hash string
	Size int64
}

// Check verifies content against the entry recorded for path.
func (r *Release) Check(path string, content []byte) error {
	e, ok := r.SHA256[path]
	if !ok {
		return fmt.Errorf("%s is not listed in Release", path)
	}
	return Verify(content, Record{
		string(FieldPackage): path,
		string(FieldSize):    strconv.FormatInt(e.Size, 10),
		string(FieldSHA256):  e.Hash,
	})
}

// ParseRelease parses the content of a Release file.
// It maps standard Release fields to the struct fields and reads the SHA256 section.
func ParseRelease(content string) (*Release, error) {
	info := &Release{SHA256: make(map[string]ReleaseEntry)}
	inSHA256 := false
	for i, line := range strings.Split(content, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.HasPrefix(line, " ") {
			if !inSHA256 {
				continue
			}
			fields := strings.Fields(line)
			if len(fields) != 3 {
				return nil, fmt.Errorf("line %d, invalid checksum line: %q", i+1, line)
			}
			size, err := strconv.ParseInt(fields[1], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d, invalid size: %w", i+1, err)
			}
			info.SHA256[fields[2]] = ReleaseEntry{Hash: fields[0], Size: size}
			continue
		}
		inSHA256 = false
		if line == "" {
			continue
		}
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		val = strings.TrimSpace(val)

		switch ReleaseField(strings.TrimSpace(key)) {
		case RelOrigin:
			info.Origin = val
		case RelLabel:
			info.Label = val
		case RelSuite:
			info.Suite = val
		case RelCodename:
			info.Codename = val
		case RelDate:
			info.Date = val
		case RelArchitectures:
			info.Architectures = val
		case RelComponents:
			info.Components = val
		case RelDescription:
			info.Description = val
		case RelSHA256:
			inSHA256 = true
		}
	}
	return info, nil
}

// VerifyInRelease checks the clearsigned InRelease content against the
// ASCII-armored public keyring and returns the signed Release text.
func VerifyInRelease(inRelease []byte, keyring string) ([]byte, error) {
	keys, err := openpgp.ReadArmoredKeyRing(strings.NewReader(keyring))
	if err != nil {
		return nil, fmt.Errorf("reading keyring: %w", err)
	}
	block, _ := clearsign.Decode(inRelease)
	if block == nil {
		return nil, fmt.Errorf("InRelease is not a clearsigned message")
	}
	if _, err := openpgp.CheckDetachedSignature(keys, bytes.NewReader(block.Bytes), block.ArmoredSignature.Body, nil); err != nil {
		return nil, fmt.Errorf("InRelease signature: %w", err)
	}
	return block.Plaintext, nil
}
