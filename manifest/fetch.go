package manifest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/etnz/apt-fetch/apt"
	"github.com/etnz/apt-fetch/deb"
	"github.com/etnz/apt-fetch/logger"
)

// Precondition is the outcome of the output directory check preceding a run.
type Precondition int

const (
	// Proceed means the output directory is absent and the run must happen.
	Proceed Precondition = iota
	// Skip means the output directory already exists and the run is a no-op.
	Skip
)

func (p Precondition) String() string {
	switch p {
	case Proceed:
		return "proceed"
	case Skip:
		return "skip"
	}
	return fmt.Sprintf("Precondition(%d)", int(p))
}

// CheckOutput decides whether a run targeting dir must proceed.
// Any error other than dir not existing is returned as is.
func CheckOutput(dir string) (Precondition, error) {
	_, err := os.Stat(dir)
	switch {
	case err == nil:
		return Skip, nil
	case os.IsNotExist(err):
		return Proceed, nil
	default:
		return Proceed, fmt.Errorf("failed to check output %s: %w", dir, err)
	}
}

// Fetch runs the configuration against client: for each architecture in order it
// merges the architecture index over the architecture-independent one, resolves
// the closure of Package, and downloads, verifies and unpacks every member into
// Output/<arch.Output>.
//
// Nothing is fetched when Output already exists. The first failure aborts the
// run; files already written are left in place.
func (c *Config) Fetch(ctx context.Context, client *apt.Client, l Listener) error {
	if l == nil {
		l = func(fmt.Stringer) {}
	}
	log := logger.Logger()

	pre, err := CheckOutput(c.Output)
	if err != nil {
		return err
	}
	if pre == Skip {
		log.Infof("%s already exists, skipping", c.Output)
		l(EventRunSkipped{Output: c.Output})
		return nil
	}

	all, err := client.FetchIndex(ctx, apt.AllArchitectures)
	if err != nil {
		return fmt.Errorf("failed to fetch %s index: %w", apt.AllArchitectures, err)
	}
	l(EventIndexFetched{URL: client.IndexURL(apt.AllArchitectures), Architecture: apt.AllArchitectures, Packages: len(all)})

	opts := c.ExtractOptions()
	for _, arch := range c.Architectures {
		if err := c.fetchArch(ctx, client, all, arch, opts, l); err != nil {
			return fmt.Errorf("architecture %s: %w", arch.Input, err)
		}
	}
	return nil
}

func (c *Config) fetchArch(ctx context.Context, client *apt.Client, all deb.Index, arch Arch, opts deb.ExtractOptions, l Listener) error {
	log := logger.Logger()

	idx, err := client.FetchIndex(ctx, arch.Input)
	if err != nil {
		return fmt.Errorf("failed to fetch index: %w", err)
	}
	l(EventIndexFetched{URL: client.IndexURL(arch.Input), Architecture: arch.Input, Packages: len(idx)})

	closure, err := deb.Resolve(deb.Merge(all, idx), c.Package)
	if err != nil {
		return err
	}
	log.Infof("%s: %d packages to fetch for %s", arch.Input, closure.Len(), c.Package)
	l(EventClosureResolved{Architecture: arch.Input, Root: c.Package, Packages: closure.Names()})

	dest := filepath.Join(c.Output, arch.Output)
	if err := os.MkdirAll(dest, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}

	files := 0
	for _, r := range closure.Records() {
		if err := ctx.Err(); err != nil {
			return err
		}
		written, err := client.FetchAndVerify(ctx, r, dest, opts)
		if err != nil {
			return fmt.Errorf("package %s: %w", r.Name(), err)
		}
		l(EventPackageVerified{Package: r.Name(), Version: r.Get(deb.FieldVersion), Architecture: r.Get(deb.FieldArchitecture), Files: len(written)})
		if len(written) == 0 {
			l(EventPackageEmpty{Package: r.Name(), Architecture: arch.Input})
		}
		for _, w := range written {
			l(EventFileExtracted{Path: filepath.Join(dest, w), Package: r.Name()})
		}
		files += len(written)
	}
	l(EventArchitectureDone{Architecture: arch.Input, Output: dest, Packages: closure.Len(), Files: files})
	return nil
}
