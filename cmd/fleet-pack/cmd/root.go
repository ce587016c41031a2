package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/sternelee/fleet-chat/internal/config"
	"github.com/sternelee/fleet-chat/internal/logger"
	"github.com/sternelee/fleet-chat/internal/service/packager"
	"github.com/sternelee/fleet-chat/internal/version"
)

// errUsage marks argument errors, for which cobra has already printed usage.
var errUsage = errors.New("invalid arguments")

// newRootCmd builds the fleet-pack command tree.
func newRootCmd() *cobra.Command {
	var (
		options  = new(packager.Options)
		logLevel string
	)

	rootCmd := &cobra.Command{
		Use:   "fleet-pack <plugin-dir> <output-file>",
		Short: "Package a Fleet Chat plugin into a .fcp archive",
		Long: `Packages the build output of a Fleet Chat plugin into a single .fcp archive.

The plugin directory must contain a package.json with name, version, description
and author. The dist and assets directories and the declared icon are copied into
the archive together with manifest.json and metadata.json. metadata.json carries
the SHA-256 checksum of the archive as it was before the checksum was recorded.`,
		Args:          usageArgs(cobra.ExactArgs(2)),
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Arguments are valid from here on; failures are packaging errors.
			cmd.SilenceUsage = true

			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			cfg, err := loadSettings(options.ConfigPath, logLevel)
			if err != nil {
				return err
			}

			options.Config = cfg
			options.SourceDir = args[0]
			options.OutputPath = args[1]

			return packager.Run(ctx, options)
		},
	}

	rootCmd.Flags().StringVarP(&options.ConfigPath, "config", "c", "",
		"path to settings file (default "+config.DefaultConfigFilename+" if present)")
	rootCmd.Flags().StringVar(&options.FleetChatVersion, "fleet-chat-version", "",
		"host compatibility version recorded in metadata.json")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "",
		"log level: debug, info, warn or error")

	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %w", errUsage, err)
	})

	version.AttachCobraVersionCommand(rootCmd)
	rootCmd.AddCommand(newInitConfigCmd())

	return rootCmd
}

// loadSettings resolves the settings file, applies the log level flag and
// configures the global logger.
func loadSettings(path, logLevel string) (*config.Config, error) {
	cfg, err := config.Resolve(afero.NewOsFs(), path)
	if err != nil {
		return nil, fmt.Errorf("%w: load settings: %w", packager.ErrPackaging, err)
	}

	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	if err = config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("%w: load settings: %w", packager.ErrPackaging, err)
	}

	level, _ := logger.ParseLogLevel(cfg.LogLevel)
	logger.SetLevel(level)

	return cfg, nil
}

// newInitConfigCmd builds the command writing a settings file with defaults.
func newInitConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config [path]",
		Short: "Write a settings file with default values",
		Args:  usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			path := config.DefaultConfigFilename
			if len(args) > 0 {
				path = args[0]
			}

			if err := config.Save(afero.NewOsFs(), path, config.Default()); err != nil {
				return err
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Settings written to", path)

			return nil
		},
	}
}

// usageArgs tags positional argument errors with errUsage.
func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return fmt.Errorf("%w: %w", errUsage, err)
		}

		return nil
	}
}

// execute runs the command tree and maps the outcome to a process exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	executed, err := rootCmd.ExecuteContextC(ctx)
	if err == nil {
		return 0
	}

	switch {
	case errors.Is(err, errUsage):
		_, _ = fmt.Fprintln(stderr, "Error:", err)
	case executed == rootCmd:
		_, _ = fmt.Fprintln(stderr, "❌ Failed to pack plugin:", err)
	default:
		_, _ = fmt.Fprintf(stderr, "❌ %s failed: %v\n", executed.Name(), err)
	}

	return 1
}

// Execute runs the fleet-pack CLI and exits with non-zero status on error.
func Execute() {
	if code := execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr); code != 0 {
		os.Exit(code)
	}
}
