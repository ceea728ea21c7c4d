package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/at-ishikawa/labloom/internal/config"
	"github.com/at-ishikawa/labloom/internal/logger"
)

// BackendFlag selects the local fallback backend.
type BackendFlag string

// Set implements pflag.Value.
func (b *BackendFlag) Set(v string) error {
	switch v {
	case "memory", "file", "redis", "sqlite":
		*b = BackendFlag(v)
	default:
		return fmt.Errorf("invalid value %q, valid values are memory, file, redis or sqlite", v)
	}
	return nil
}

// String implements pflag.Value.
func (b *BackendFlag) String() string {
	if b == nil {
		return ""
	}
	return string(*b)
}

// Type implements pflag.Value.
func (b *BackendFlag) Type() string {
	return "BackendFlag"
}

var (
	_ pflag.Value = (*BackendFlag)(nil)
)

// cliContext carries the global flags and the loaded configuration to the
// subcommands.
type cliContext struct {
	configFile   string
	debugMode    bool
	remoteURL    string
	preferRemote bool
	backend      BackendFlag

	cfg *config.Config
	out io.Writer
}

func main() {
	if err := newRootCommand(os.Stdout).Execute(); err != nil {
		if _, fprintfErr := fmt.Fprintf(os.Stderr, "failed to execute a command: %+v\n", err); fprintfErr != nil {
			panic(fmt.Errorf("failed to output an error: %w. Reason: %w", err, fprintfErr))
		}
		os.Exit(1)
	}
	os.Exit(0)
}

func newRootCommand(out io.Writer) *cobra.Command {
	c := &cliContext{out: out}
	rootCommand := &cobra.Command{
		Use:           "labloom",
		Short:         "Markdown notes with attachments, synced to a notes API with a local fallback",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd.Flags())
		},
	}
	flags := rootCommand.PersistentFlags()
	flags.StringVar(&c.configFile, "config", os.Getenv("LABLOOM_CONFIG"), "config file path")
	flags.BoolVar(&c.debugMode, "debug", false, "Enable debug mode")
	flags.StringVar(&c.remoteURL, "remote-url", "", "Base URL of the notes API")
	flags.BoolVar(&c.preferRemote, "prefer-remote", false, "Load notes from the notes API first")
	flags.Var(&c.backend, "backend", "Local store backend. Options: memory, file, redis, sqlite")

	rootCommand.AddCommand(
		newListCommand(c),
		newShowCommand(c),
		newNewCommand(c),
		newEditCommand(c),
		newDeleteCommand(c),
		newSyncCommand(c),
		newStatusCommand(c),
	)
	return rootCommand
}

// setup loads the .env file and the configuration, applies the global
// flags and configures logging.
func (c *cliContext) setup(flags *pflag.FlagSet) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("godotenv.Load() > %w", err)
	}

	if c.cfg == nil {
		cfg, err := config.Load(c.configFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		c.cfg = cfg
	}

	if flags.Changed("remote-url") {
		c.cfg.Remote.URL = c.remoteURL
	}
	if flags.Changed("prefer-remote") {
		c.cfg.Remote.PreferRemote = c.preferRemote
	}
	if flags.Changed("backend") {
		c.cfg.Local.Backend = c.backend.String()
	}

	return logger.Setup(logger.Options{
		Level:  c.cfg.Log.Level,
		Debug:  c.debugMode,
		Format: logger.FormatText,
	})
}

func (c *cliContext) newApp() (*app, error) {
	return newApp(c.cfg, c.out)
}
