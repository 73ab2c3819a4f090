package apt

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/etnz/apt-fetch/deb"
	"github.com/etnz/apt-fetch/logger"
	"github.com/schollz/progressbar/v3"
)

// RepoConfig defines a source APT repository with the standard hierarchical layout
// (e.g., deb http://termux.net stable main).
type RepoConfig struct {
	URL       string
	Suite     string
	Component string
}

// AllArchitectures is the architecture of the architecture-independent index.
const AllArchitectures = "all"

// Client downloads indices and artifacts from one repository.
type Client struct {
	Repo RepoConfig
	HTTP *http.Client

	// Keyring is an ASCII-armored public keyring. When set, the suite's InRelease
	// is verified with it and every fetched index is checked against the signed
	// Release checksums.
	Keyring string

	// Progress receives a download progress bar per artifact when not nil.
	Progress io.Writer

	release *deb.Release
}

// NewClient returns a client for r, filling Suite and Component with "stable"
// and "main" when empty.
func NewClient(r RepoConfig) *Client {
	if r.Suite == "" {
		r.Suite = "stable"
	}
	if r.Component == "" {
		r.Component = "main"
	}
	r.URL = strings.TrimSuffix(r.URL, "/")
	return &Client{Repo: r, HTTP: NewSecureHTTPClient()}
}

// IndexPath returns the path of the Packages index of arch, relative to the suite directory.
// This is the path listed in the Release file.
func (c *Client) IndexPath(arch string) string {
	return fmt.Sprintf("%s/binary-%s/Packages", c.Repo.Component, arch)
}

// IndexURL returns the URL of the Packages index of arch.
// Standard layout: dists/<suite>/<component>/binary-<arch>/Packages
func (c *Client) IndexURL(arch string) string {
	return fmt.Sprintf("%s/dists/%s/%s", c.Repo.URL, c.Repo.Suite, c.IndexPath(arch))
}

// ArtifactURL returns the URL of the artifact of r.
func (c *Client) ArtifactURL(r deb.Record) string {
	return c.Repo.URL + "/" + strings.TrimPrefix(r.Filename(), "/")
}

// FetchRelease downloads the suite's InRelease, verifies its signature against
// the Keyring and parses it. The result is kept for subsequent index checks.
func (c *Client) FetchRelease(ctx context.Context) (*deb.Release, error) {
	if c.Keyring == "" {
		return nil, fmt.Errorf("no keyring configured")
	}
	u := fmt.Sprintf("%s/dists/%s/InRelease", c.Repo.URL, c.Repo.Suite)
	logger.Logger().Infof("Downloading %s...", u)
	content, err := c.get(ctx, u, false)
	if err != nil {
		return nil, err
	}
	plain, err := deb.VerifyInRelease(content, c.Keyring)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", u, err)
	}
	rel, err := deb.ParseRelease(string(plain))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", u, err)
	}
	c.release = rel
	return rel, nil
}

// FetchIndex downloads and parses the Packages index of arch.
func (c *Client) FetchIndex(ctx context.Context, arch string) (deb.Index, error) {
	if c.Keyring != "" && c.release == nil {
		if _, err := c.FetchRelease(ctx); err != nil {
			return nil, err
		}
	}

	u := c.IndexURL(arch)
	logger.Logger().Infof("Downloading %s...", u)
	content, err := c.get(ctx, u, false)
	if err != nil {
		return nil, err
	}
	if c.release != nil {
		if err := c.release.Check(c.IndexPath(arch), content); err != nil {
			return nil, fmt.Errorf("%s: %w", u, err)
		}
	}
	idx, err := deb.ParseIndex(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", u, err)
	}
	logger.Logger().Debugf("%s: %d packages", u, len(idx))
	return idx, nil
}

// FetchArtifact downloads the raw .deb of r without checking it.
func (c *Client) FetchArtifact(ctx context.Context, r deb.Record) ([]byte, error) {
	if r.Filename() == "" {
		return nil, &deb.MissingFieldError{Package: r.Name(), Field: deb.FieldFilename}
	}
	u := c.ArtifactURL(r)
	logger.Logger().Infof("Downloading %s...", u)
	return c.get(ctx, u, true)
}

// FetchAndVerify downloads the artifact of r, verifies its size and SHA256, and
// unpacks the accepted entries of its data.tar.xz member into destDir.
// It returns the written paths relative to destDir. An artifact without a
// data.tar.xz member is not an error: nothing is written and a warning is logged.
func (c *Client) FetchAndVerify(ctx context.Context, r deb.Record, destDir string, opts deb.ExtractOptions) ([]string, error) {
	log := logger.Logger()

	content, err := c.FetchArtifact(ctx, r)
	if err != nil {
		return nil, err
	}
	u := c.ArtifactURL(r)

	log.Infof("Checking %s...", u)
	if err := deb.Verify(content, r); err != nil {
		return nil, fmt.Errorf("%s: %w", u, err)
	}

	log.Infof("Processing %s...", u)
	data, found, err := deb.DataMember(content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", u, err)
	}
	if !found {
		log.Warnf("%s has no %s member, nothing extracted", u, deb.MemberDataTarXz)
		return nil, nil
	}
	written, err := deb.Unpack(data, destDir, opts)
	if err != nil {
		return written, fmt.Errorf("%s: %w", u, err)
	}
	for _, w := range written {
		log.Debugf("- %s", w)
	}
	return written, nil
}

// get downloads u entirely in memory.
func (c *Client) get(ctx context.Context, u string, progress bool) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch %s: status %d", u, resp.StatusCode)
	}

	var buf bytes.Buffer
	var w io.Writer = &buf
	if progress && c.Progress != nil {
		bar := progressbar.NewOptions64(resp.ContentLength,
			progressbar.OptionSetWriter(c.Progress),
			progressbar.OptionSetDescription(path.Base(u)),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(40),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
		defer bar.Finish()
		w = io.MultiWriter(&buf, bar)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return nil, fmt.Errorf("reading %s: %w", u, err)
	}
	return buf.Bytes(), nil
}
