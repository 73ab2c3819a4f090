// Package bundle packs extracted architecture directories into zip archives.
package bundle

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/etnz/apt-fetch/logger"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
	"golang.org/x/sync/errgroup"
)

// Dir writes the regular files below src into a new zip archive at dst.
// Entry names are relative to src and slash separated; level is a deflate level.
func Dir(src, dst string, level int) (err error) {
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	defer func() {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	zw := zip.NewWriter(out)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, level)
	})

	err = filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		return addFile(zw, p, filepath.ToSlash(rel))
	})
	if err != nil {
		zw.Close()
		return fmt.Errorf("failed to zip %s: %w", src, err)
	}
	return zw.Close()
}

func addFile(zw *zip.Writer, path, name string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = name
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

// All zips every top-level directory of inputRoot into outputRoot/<name>.zip,
// one goroutine per directory. It waits for all of them and returns the first
// error.
func All(ctx context.Context, inputRoot, outputRoot string, level int) ([]string, error) {
	entries, err := os.ReadDir(inputRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", inputRoot, err)
	}
	if err := os.MkdirAll(outputRoot, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", outputRoot, err)
	}

	var archives []string
	g, ctx := errgroup.WithContext(ctx)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		src := filepath.Join(inputRoot, e.Name())
		dst := filepath.Join(outputRoot, e.Name()+".zip")
		archives = append(archives, dst)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			logger.Logger().Infof("Zipping %s into %s...", src, dst)
			return Dir(src, dst, level)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return archives, nil
}
