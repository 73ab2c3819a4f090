package deb

import (
	"archive/tar"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"testing"
	"time"

	"github.com/blakesmith/ar"
	"github.com/ulikunitz/xz"
)

// tarEntry describes one entry of a mock data archive.
type tarEntry struct {
	Name    string
	Type    byte
	Mode    int64
	Content string
}

// createDataTarXz builds an xz-compressed tar stream holding entries.
func createDataTarXz(t *testing.T, entries []tarEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	xzw, err := xz.NewWriter(&buf)
	if err != nil {
		t.Fatalf("xz.NewWriter failed: %v", err)
	}
	tw := tar.NewWriter(xzw)
	for _, e := range entries {
		hdr := &tar.Header{
			Name:     e.Name,
			Typeflag: e.Type,
			Mode:     e.Mode,
			Size:     int64(len(e.Content)),
			ModTime:  time.Unix(0, 0),
		}
		if e.Type == 0 {
			hdr.Typeflag = tar.TypeReg
		}
		if e.Mode == 0 {
			hdr.Mode = 0644
		}
		if hdr.Typeflag != tar.TypeReg {
			hdr.Size = 0
		}
		if hdr.Typeflag == tar.TypeSymlink {
			hdr.Linkname = e.Content
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("WriteHeader failed: %v", err)
		}
		if hdr.Typeflag == tar.TypeReg {
			if _, err := tw.Write([]byte(e.Content)); err != nil {
				t.Fatalf("Write failed: %v", err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("tar close failed: %v", err)
	}
	if err := xzw.Close(); err != nil {
		t.Fatalf("xz close failed: %v", err)
	}
	return buf.Bytes()
}

// arMember is a named member of a mock .deb.
type arMember struct {
	Name string
	Body []byte
}

// createMockDebBytes builds an ar container holding members, in order.
func createMockDebBytes(t *testing.T, members ...arMember) []byte {
	t.Helper()
	var buf bytes.Buffer
	arW := ar.NewWriter(&buf)
	if err := arW.WriteGlobalHeader(); err != nil {
		t.Fatalf("WriteGlobalHeader failed: %v", err)
	}
	for _, m := range members {
		header := &ar.Header{
			Name:    m.Name,
			Size:    int64(len(m.Body)),
			Mode:    0644,
			ModTime: time.Unix(0, 0),
		}
		if err := arW.WriteHeader(header); err != nil {
			t.Fatalf("WriteHeader failed: %v", err)
		}
		if _, err := arW.Write(m.Body); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	return buf.Bytes()
}

// recordFor returns a record declaring the size and digest of content.
func recordFor(name, filename string, content []byte) Record {
	h := sha256.Sum256(content)
	return Record{
		"package":  name,
		"filename": filename,
		"size":     strconv.Itoa(len(content)),
		"sha256":   hex.EncodeToString(h[:]),
	}
}
