package bundle

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"

	"github.com/klauspost/compress/zip"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0755); err != nil {
			t.Fatal(err)
		}
	}
}

func readZip(t *testing.T, path string) map[string]string {
	t.Helper()
	r, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("failed to open %s: %v", path, err)
	}
	defer r.Close()
	got := make(map[string]string)
	for _, f := range r.File {
		if f.Method != zip.Deflate {
			t.Errorf("%s: expected deflate, got method %d", f.Name, f.Method)
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		b, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatal(err)
		}
		got[f.Name] = string(b)
	}
	return got
}

func TestDir(t *testing.T) {
	src := t.TempDir()
	files := map[string]string{
		"node":             "#!node",
		"libc++_shared.so": "lib",
		"sub/nested.txt":   "nested",
	}
	writeFiles(t, src, files)

	dst := filepath.Join(t.TempDir(), "arm64-v8a.zip")
	if err := Dir(src, dst, 9); err != nil {
		t.Fatalf("Dir failed: %v", err)
	}
	if got := readZip(t, dst); !reflect.DeepEqual(got, files) {
		t.Errorf("expected %v, got %v", files, got)
	}
}

func TestDir_MissingSource(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "out.zip")
	if err := Dir(filepath.Join(t.TempDir(), "missing"), dst, 9); err == nil {
		t.Error("expected error for a missing source")
	}
}

func TestAll(t *testing.T) {
	in := t.TempDir()
	writeFiles(t, in, map[string]string{
		"arm64-v8a/node": "arm64",
		"armeabi/node":   "arm",
		"x86/node":       "x86",
		"stray.txt":      "not a directory",
	})
	out := filepath.Join(t.TempDir(), "zip")

	archives, err := All(context.Background(), in, out, 9)
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	sort.Strings(archives)
	want := []string{
		filepath.Join(out, "arm64-v8a.zip"),
		filepath.Join(out, "armeabi.zip"),
		filepath.Join(out, "x86.zip"),
	}
	if !reflect.DeepEqual(archives, want) {
		t.Errorf("expected %v, got %v", want, archives)
	}
	if got := readZip(t, filepath.Join(out, "armeabi.zip")); got["node"] != "arm" {
		t.Errorf("unexpected armeabi content %v", got)
	}
}

func TestAll_MissingInput(t *testing.T) {
	if _, err := All(context.Background(), filepath.Join(t.TempDir(), "missing"), t.TempDir(), 9); err == nil {
		t.Error("expected error for a missing input root")
	}
}
