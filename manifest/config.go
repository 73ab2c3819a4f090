// Package manifest provides the declarative configuration of a fetch run and the
// orchestration of a run across several architectures.
package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/etnz/apt-fetch/apt"
	"github.com/etnz/apt-fetch/deb"
	"go.yaml.in/yaml/v3"
)

// Arch pairs a repository architecture with the name of its output directory.
type Arch struct {
	// Input selects the binary-<Input> index of the repository.
	Input string `json:"input" yaml:"input"`
	// Output is the directory name, under Output, receiving the extracted files.
	Output string `json:"output" yaml:"output"`
}

// Config describes one fetch run.
type Config struct {
	// Defines is a map of variables available to templates in the other string fields.
	Defines map[string]string `json:"defines" yaml:"defines"`

	// URL is the base URL of the repository.
	URL       string `json:"url" yaml:"url"`
	Suite     string `json:"suite" yaml:"suite"`
	Component string `json:"component" yaml:"component"`
	// Keyring is the path to an ASCII-armored public keyring used to verify the
	// suite's InRelease. Empty disables the verification.
	Keyring string `json:"keyring" yaml:"keyring"`

	// Package is the root package whose dependency closure is fetched.
	Package       string `json:"package" yaml:"package"`
	Architectures []Arch `json:"architectures" yaml:"architectures"`

	// Output is the root directory of the extracted files. The run is skipped
	// when it already exists.
	Output string `json:"output" yaml:"output"`
	// Strip is the number of leading path segments removed from data archive entries.
	Strip int `json:"strip" yaml:"strip"`
	// Dirs lists the directories, after stripping, whose regular files are extracted.
	Dirs []string `json:"dirs" yaml:"dirs"`

	// Zip is the directory receiving one <arch>.zip per output directory.
	Zip string `json:"zip" yaml:"zip"`
	// ZipLevel is the deflate compression level of the zip archives.
	ZipLevel int `json:"zip_level" yaml:"zip_level"`

	filePath string
}

// Default returns the configuration fetching Node.js for the four Android ABIs
// from the Termux repository.
func Default() *Config {
	return &Config{
		URL:       "http://termux.net",
		Suite:     "stable",
		Component: "main",
		Package:   "nodejs-current",
		Architectures: []Arch{
			{Input: "aarch64", Output: "arm64-v8a"},
			{Input: "arm", Output: "armeabi"},
			{Input: "i686", Output: "x86"},
			{Input: "x86_64", Output: "x86_64"},
		},
		Output:   "binaries",
		Strip:    4,
		Dirs:     []string{"usr/lib", "usr/bin"},
		Zip:      "zip",
		ZipLevel: 9,
	}
}

// Load reads a configuration file. It supports both JSON and YAML formats based
// on the file extension. Fields absent from the file keep their Default value;
// relative paths are resolved against the file's directory.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	c := Default()
	if err := unmarshal(path, content, c); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	c.filePath = path

	if err := c.render(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	c.Output = c.resolve(c.Output)
	c.Zip = c.resolve(c.Zip)
	if c.Keyring != "" {
		c.Keyring = c.resolve(c.Keyring)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return c, nil
}

// render expands the templates of the string fields with Defines.
func (c *Config) render() error {
	engine := newTemplateEngine(c.Defines)
	fields := map[string]*string{
		"url":       &c.URL,
		"suite":     &c.Suite,
		"component": &c.Component,
		"keyring":   &c.Keyring,
		"package":   &c.Package,
		"output":    &c.Output,
		"zip":       &c.Zip,
	}
	for name, f := range fields {
		v, err := engine.render(name, *f)
		if err != nil {
			return fmt.Errorf("rendering %s %q: %w", name, *f, err)
		}
		*f = v
	}
	for i := range c.Architectures {
		for _, f := range []*string{&c.Architectures[i].Input, &c.Architectures[i].Output} {
			v, err := engine.render("architecture", *f)
			if err != nil {
				return fmt.Errorf("rendering architecture %q: %w", *f, err)
			}
			*f = v
		}
	}
	return nil
}

// Validate reports the first inconsistency of the configuration.
func (c *Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("config must specify 'url'")
	}
	if c.Package == "" {
		return fmt.Errorf("config must specify 'package'")
	}
	if c.Output == "" {
		return fmt.Errorf("config must specify 'output'")
	}
	if len(c.Architectures) == 0 {
		return fmt.Errorf("config must specify at least one architecture")
	}
	seen := make(map[string]bool)
	for _, a := range c.Architectures {
		if a.Input == "" || a.Output == "" {
			return fmt.Errorf("architecture %+v must specify 'input' and 'output'", a)
		}
		if strings.ContainsAny(a.Output, `/\`) || a.Output == "." || a.Output == ".." {
			return fmt.Errorf("architecture output %q must be a plain directory name", a.Output)
		}
		if seen[a.Output] {
			return fmt.Errorf("duplicate architecture output %q", a.Output)
		}
		seen[a.Output] = true
	}
	if c.Strip < 0 {
		return fmt.Errorf("strip must not be negative")
	}
	if c.ZipLevel < -2 || c.ZipLevel > 9 {
		return fmt.Errorf("zip_level %d out of range [-2, 9]", c.ZipLevel)
	}
	return nil
}

// ExtractOptions returns the extraction policy of the run.
func (c *Config) ExtractOptions() deb.ExtractOptions {
	return deb.ExtractOptions{Strip: c.Strip, Filter: deb.DirFilter(c.Dirs...)}
}

// Client returns a repository client for the run, loading the keyring if any.
func (c *Config) Client() (*apt.Client, error) {
	client := apt.NewClient(apt.RepoConfig{URL: c.URL, Suite: c.Suite, Component: c.Component})
	if c.Keyring != "" {
		key, err := os.ReadFile(c.Keyring)
		if err != nil {
			return nil, fmt.Errorf("failed to read keyring: %w", err)
		}
		client.Keyring = string(key)
	}
	return client, nil
}

func (c *Config) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || c.filePath == "" {
		return path
	}
	return filepath.Join(filepath.Dir(c.filePath), path)
}

// unmarshal parses JSON or YAML based on file extension.
// An empty document leaves v untouched.
func unmarshal(path string, data []byte, v interface{}) error {
	ext := strings.ToLower(filepath.Ext(path))
	r := bytes.NewReader(data)
	var err error
	if ext == ".yaml" || ext == ".yml" {
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		err = dec.Decode(v)
	} else {
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		err = dec.Decode(v)
	}
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
