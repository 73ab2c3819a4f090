package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/etnz/apt-fetch/bundle"
	"github.com/etnz/apt-fetch/logger"
	"github.com/etnz/apt-fetch/manifest"
	"github.com/spf13/cobra"
)

// Command flags
var (
	configPath string
	logLevel   string
	verbose    bool
	progress   bool

	packageName string
	outputDir   string
	zipDir      string
	zipLevel    int
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	code := run(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command line args and returns the process exit code.
// Errors raised before the logger is initialized, such as flag parsing errors,
// are written to stderr.
func run(ctx context.Context, args []string, stderr io.Writer) int {
	root := createRootCommand()
	root.SetArgs(args)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		if logger.Initialized() {
			logger.Logger().Errorf("%v", err)
		} else {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

// createRootCommand creates the apt-fetch command tree. Without a subcommand it
// behaves like run.
func createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "apt-fetch",
		Short: "Fetches a package and its dependencies from an APT repository",
		Long: `apt-fetch downloads the dependency closure of a package from a
Debian-style repository for several architectures, verifies every artifact
against the index checksums and extracts the selected files into one
directory per architecture.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: initLogger,
		RunE:              executeRun,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Path to a YAML or JSON config file (default: built-in Termux Node.js config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level: debug, info, warn or error (default: info)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable debug logging")

	addRunFlags(rootCmd)
	rootCmd.AddCommand(createRunCommand(), createZipCommand())
	return rootCmd
}

func createRunCommand() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Fetches, verifies and extracts the configured package for every architecture",
		Args:  cobra.NoArgs,
		RunE:  executeRun,
	}
	addRunFlags(runCmd)
	return runCmd
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&progress, "progress", false, "Show a progress bar per download")
	cmd.Flags().StringVar(&packageName, "package", "", "Override the root package")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Override the output directory")
}

func createZipCommand() *cobra.Command {
	zipCmd := &cobra.Command{
		Use:   "zip",
		Short: "Zips every architecture directory of the output into <zip>/<arch>.zip",
		Args:  cobra.NoArgs,
		RunE:  executeZip,
	}
	zipCmd.Flags().StringVarP(&outputDir, "input", "i", "", "Override the directory to zip")
	zipCmd.Flags().StringVarP(&zipDir, "output", "o", "", "Override the zip output directory")
	zipCmd.Flags().IntVar(&zipLevel, "level", -3, "Override the deflate level (-2 to 9)")
	return zipCmd
}

// resolveRequestedLogLevel returns the explicit --log-level, "debug" when
// --verbose is set, or "" otherwise.
func resolveRequestedLogLevel(cmd *cobra.Command) string {
	if logLevel != "" {
		return logLevel
	}
	if cmd != nil {
		if v, err := cmd.Flags().GetBool("verbose"); err == nil && v {
			return "debug"
		}
	}
	return ""
}

func initLogger(cmd *cobra.Command, _ []string) error {
	level := resolveRequestedLogLevel(cmd)
	if level == "" {
		level = "info"
	}
	z, err := logger.New(level)
	if err != nil {
		return err
	}
	logger.Init(z)
	return nil
}

// loadConfig loads --config, or the default configuration, and applies the
// command line overrides.
func loadConfig() (*manifest.Config, error) {
	c := manifest.Default()
	if configPath != "" {
		var err error
		if c, err = manifest.Load(configPath); err != nil {
			return nil, err
		}
	}
	if packageName != "" {
		c.Package = packageName
	}
	if outputDir != "" {
		c.Output = outputDir
	}
	if zipDir != "" {
		c.Zip = zipDir
	}
	if zipLevel != -3 {
		c.ZipLevel = zipLevel
	}
	return c, c.Validate()
}

func executeRun(cmd *cobra.Command, _ []string) error {
	c, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := c.Client()
	if err != nil {
		return err
	}
	if progress {
		client.Progress = cmd.ErrOrStderr()
	}
	log := logger.Logger()
	return c.Fetch(cmd.Context(), client, func(e fmt.Stringer) {
		log.Debugf("%s", e)
		switch e := e.(type) {
		case manifest.EventRunSkipped:
			log.Infof("Output %s already exists, nothing to do", e.Output)
		case manifest.EventClosureResolved:
			log.Infof("%s: %v", e.Architecture, e.Packages)
		case manifest.EventArchitectureDone:
			log.Infof("%s: %d files from %d packages in %s", e.Architecture, e.Files, e.Packages, e.Output)
		}
	})
}

func executeZip(cmd *cobra.Command, _ []string) error {
	c, err := loadConfig()
	if err != nil {
		return err
	}
	archives, err := bundle.All(cmd.Context(), c.Output, c.Zip, c.ZipLevel)
	if err != nil {
		return err
	}
	for _, a := range archives {
		logger.Logger().Infof("Created %s", a)
	}
	return nil
}
