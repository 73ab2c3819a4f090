package apt

import (
	"archive/tar"
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/ProtonMail/go-crypto/openpgp/clearsign"
	"github.com/blakesmith/ar"
	"github.com/etnz/apt-fetch/deb"
	"github.com/ulikunitz/xz"
)

// mockRepo serves files from memory and counts requests.
type mockRepo struct {
	mu       sync.Mutex
	files    map[string][]byte
	requests atomic.Int32
}

func (m *mockRepo) set(path string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = content
}

func newMockRepo(t *testing.T, files map[string][]byte) (*mockRepo, *httptest.Server) {
	m := &mockRepo{files: files}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.requests.Add(1)
		m.mu.Lock()
		content, ok := m.files[r.URL.Path]
		m.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write(content)
	}))
	t.Cleanup(ts.Close)
	return m, ts
}

// createMockDeb builds a .deb whose data.tar.xz holds the given files (path -> content).
func createMockDeb(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var data bytes.Buffer
	xzw, err := xz.NewWriter(&data)
	if err != nil {
		t.Fatal(err)
	}
	tw := tar.NewWriter(xzw)
	for name, content := range files {
		hdr := &tar.Header{Name: name, Mode: 0644, Size: int64(len(content)), Typeflag: tar.TypeReg}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		tw.Write([]byte(content))
	}
	tw.Close()
	xzw.Close()

	return createMockAr(t, map[string][]byte{
		"debian-binary": []byte("2.0\n"),
		"data.tar.xz/":  data.Bytes(),
	})
}

func createMockAr(t *testing.T, members map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	arW := ar.NewWriter(&buf)
	arW.WriteGlobalHeader()
	for _, name := range []string{"debian-binary", "control.tar.xz/", "data.tar.xz/"} {
		body, ok := members[name]
		if !ok {
			continue
		}
		arW.WriteHeader(&ar.Header{Name: name, Size: int64(len(body)), Mode: 0644, ModTime: time.Unix(0, 0)})
		arW.Write(body)
	}
	return buf.Bytes()
}

func stanza(name, depends, filename string, content []byte) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Package: %s\n", name)
	if depends != "" {
		fmt.Fprintf(&b, "Depends: %s\n", depends)
	}
	fmt.Fprintf(&b, "Filename: %s\nSize: %d\nSHA256: %x\n\n", filename, len(content), sha256.Sum256(content))
	return b.String()
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(RepoConfig{URL: "http://termux.net/"})
	if c.Repo.Suite != "stable" || c.Repo.Component != "main" {
		t.Errorf("unexpected defaults: %+v", c.Repo)
	}
	if got, want := c.IndexURL("aarch64"), "http://termux.net/dists/stable/main/binary-aarch64/Packages"; got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
	if got, want := c.IndexURL(AllArchitectures), "http://termux.net/dists/stable/main/binary-all/Packages"; got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
	if got, want := c.ArtifactURL(deb.Record{"filename": "dists/stable/main/binary-arm/a.deb"}), "http://termux.net/dists/stable/main/binary-arm/a.deb"; got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestFetchIndex(t *testing.T) {
	_, ts := newMockRepo(t, map[string][]byte{
		"/dists/stable/main/binary-arm/Packages": []byte("Package: a\nFilename: a.deb\n\nPackage: b\n"),
	})
	c := NewClient(RepoConfig{URL: ts.URL})

	idx, err := c.FetchIndex(context.Background(), "arm")
	if err != nil {
		t.Fatalf("FetchIndex failed: %v", err)
	}
	if len(idx) != 2 {
		t.Errorf("expected 2 packages, got %d", len(idx))
	}

	if _, err := c.FetchIndex(context.Background(), "mips"); err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("expected status error, got %v", err)
	}
}

func TestFetchIndex_Malformed(t *testing.T) {
	_, ts := newMockRepo(t, map[string][]byte{
		"/dists/stable/main/binary-arm/Packages": []byte("Package: a\ngarbage\n"),
	})
	c := NewClient(RepoConfig{URL: ts.URL})

	_, err := c.FetchIndex(context.Background(), "arm")
	var mErr *deb.MalformedIndexError
	if !errors.As(err, &mErr) || mErr.Line != 2 {
		t.Fatalf("expected MalformedIndexError on line 2, got %v", err)
	}
}

func TestFetchAndVerify(t *testing.T) {
	debContent := createMockDeb(t, map[string]string{
		"./data/data/com.termux/files/usr/bin/tool":      "binary",
		"./data/data/com.termux/files/usr/share/man/x.1": "man",
	})
	_, ts := newMockRepo(t, map[string][]byte{"/pool/tool.deb": debContent})
	c := NewClient(RepoConfig{URL: ts.URL})
	c.Progress = &bytes.Buffer{}

	idx, err := deb.ParseIndexString(stanza("tool", "", "pool/tool.deb", debContent))
	if err != nil {
		t.Fatal(err)
	}
	dest := t.TempDir()
	opts := deb.ExtractOptions{Strip: 4, Filter: deb.DirFilter("usr/bin", "usr/lib")}

	written, err := c.FetchAndVerify(context.Background(), idx["tool"], dest, opts)
	if err != nil {
		t.Fatalf("FetchAndVerify failed: %v", err)
	}
	if !reflect.DeepEqual(written, []string{"tool"}) {
		t.Errorf("expected [tool], got %v", written)
	}
	got, err := os.ReadFile(filepath.Join(dest, "tool"))
	if err != nil || string(got) != "binary" {
		t.Errorf("unexpected extracted content %q (%v)", got, err)
	}
}

func TestFetchAndVerify_Integrity(t *testing.T) {
	debContent := createMockDeb(t, map[string]string{"usr/bin/tool": "binary"})
	_, ts := newMockRepo(t, map[string][]byte{"/tool.deb": debContent})
	c := NewClient(RepoConfig{URL: ts.URL})

	t.Run("size", func(t *testing.T) {
		rec := deb.Record{"package": "tool", "filename": "tool.deb", "size": fmt.Sprint(len(debContent) + 1), "sha256": "00"}
		dest := t.TempDir()
		_, err := c.FetchAndVerify(context.Background(), rec, dest, deb.ExtractOptions{})
		var sErr *deb.SizeMismatchError
		if !errors.As(err, &sErr) {
			t.Fatalf("expected SizeMismatchError, got %v", err)
		}
		if entries, _ := os.ReadDir(dest); len(entries) != 0 {
			t.Error("nothing should be extracted on a size mismatch")
		}
	})

	t.Run("hash", func(t *testing.T) {
		rec := deb.Record{"package": "tool", "filename": "tool.deb", "size": fmt.Sprint(len(debContent)), "sha256": fmt.Sprintf("%x", sha256.Sum256(nil))}
		_, err := c.FetchAndVerify(context.Background(), rec, t.TempDir(), deb.ExtractOptions{})
		var hErr *deb.HashMismatchError
		if !errors.As(err, &hErr) {
			t.Fatalf("expected HashMismatchError, got %v", err)
		}
	})

	t.Run("missing filename", func(t *testing.T) {
		_, err := c.FetchAndVerify(context.Background(), deb.Record{"package": "tool"}, t.TempDir(), deb.ExtractOptions{})
		var fErr *deb.MissingFieldError
		if !errors.As(err, &fErr) || fErr.Field != deb.FieldFilename {
			t.Fatalf("expected MissingFieldError for filename, got %v", err)
		}
	})
}

func TestFetchAndVerify_NoDataMember(t *testing.T) {
	debContent := createMockAr(t, map[string][]byte{
		"debian-binary":   []byte("2.0\n"),
		"control.tar.xz/": []byte("control"),
	})
	_, ts := newMockRepo(t, map[string][]byte{"/empty.deb": debContent})
	c := NewClient(RepoConfig{URL: ts.URL})

	idx, _ := deb.ParseIndexString(stanza("empty", "", "empty.deb", debContent))
	written, err := c.FetchAndVerify(context.Background(), idx["empty"], t.TempDir(), deb.ExtractOptions{})
	if err != nil {
		t.Fatalf("missing data member should not be an error: %v", err)
	}
	if len(written) != 0 {
		t.Errorf("expected nothing written, got %v", written)
	}
}

// Helper to generate a temporary GPG key and its armored public keyring.
func generateTestKey(t *testing.T) (*openpgp.Entity, string) {
	entity, err := openpgp.NewEntity("Test User", "test", "test@example.com", nil)
	if err != nil {
		t.Fatal(err)
	}
	var keyBuf bytes.Buffer
	w, _ := armor.Encode(&keyBuf, openpgp.PublicKeyType, nil)
	entity.Serialize(w)
	w.Close()
	return entity, keyBuf.String()
}

func signBytes(t *testing.T, signer *openpgp.Entity, input []byte) []byte {
	var out bytes.Buffer
	w, err := clearsign.Encode(&out, signer.PrivateKey, nil)
	if err != nil {
		t.Fatal(err)
	}
	w.Write(input)
	w.Close()
	return out.Bytes()
}

func TestFetchIndex_SignedRelease(t *testing.T) {
	signer, public := generateTestKey(t)
	packages := []byte("Package: a\n\n")
	release := fmt.Sprintf("Origin: test\nSuite: stable\nSHA256:\n %x %d main/binary-arm/Packages\n", sha256.Sum256(packages), len(packages))

	files := map[string][]byte{
		"/dists/stable/InRelease":                signBytes(t, signer, []byte(release)),
		"/dists/stable/main/binary-arm/Packages": packages,
		"/dists/stable/main/binary-all/Packages": []byte("Package: b\n\n"),
	}
	m, ts := newMockRepo(t, files)

	c := NewClient(RepoConfig{URL: ts.URL})
	c.Keyring = public

	idx, err := c.FetchIndex(context.Background(), "arm")
	if err != nil {
		t.Fatalf("FetchIndex failed: %v", err)
	}
	if _, ok := idx["a"]; !ok {
		t.Error("package a not found")
	}
	if got := m.requests.Load(); got != 2 {
		t.Errorf("expected 2 requests (InRelease + Packages), got %d", got)
	}

	// binary-all is not listed in the signed Release.
	if _, err := c.FetchIndex(context.Background(), AllArchitectures); err == nil {
		t.Error("expected error for an index missing from Release")
	}

	// A tampered index is rejected.
	m.set("/dists/stable/main/binary-arm/Packages", []byte("Package: x\n\n"))
	var hErr *deb.HashMismatchError
	if _, err := c.FetchIndex(context.Background(), "arm"); !errors.As(err, &hErr) {
		t.Errorf("expected HashMismatchError, got %v", err)
	}
}

func TestFetchRelease_BadSignature(t *testing.T) {
	signer, _ := generateTestKey(t)
	_, other := generateTestKey(t)
	_, ts := newMockRepo(t, map[string][]byte{
		"/dists/stable/InRelease": signBytes(t, signer, []byte("Origin: test\n")),
	})
	c := NewClient(RepoConfig{URL: ts.URL})
	c.Keyring = other

	if _, err := c.FetchRelease(context.Background()); err == nil {
		t.Error("expected signature error")
	}
	if _, err := c.FetchIndex(context.Background(), "arm"); err == nil {
		t.Error("FetchIndex must fail when the Release cannot be verified")
	}
}

func TestFetchRelease_NoKeyring(t *testing.T) {
	c := NewClient(RepoConfig{URL: "http://localhost"})
	if _, err := c.FetchRelease(context.Background()); err == nil {
		t.Error("expected error without keyring")
	}
}
