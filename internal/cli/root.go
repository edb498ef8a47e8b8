package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/opsbox/opsbox/api/v1beta1/configs"
	"github.com/opsbox/opsbox/pkg/config"
	"github.com/opsbox/opsbox/pkg/log"
	"github.com/opsbox/opsbox/pkg/tracing"
	"github.com/opsbox/opsbox/pkg/version"
)

const (
	cmdName = "opsbox"
	cmdDesc = `Home-lab operations toolbox for reverse proxy manifests and video transcripts.`

	cmdExamples = `  # Generate Traefik manifests for every service in the config:
  opsbox proxy generate

  # Preview the changes a CSV file would make:
  opsbox proxy generate --csv services.csv --diff --dry-run

  # Apply the manifests of one service:
  opsbox proxy apply plex

  # Transcribe a video:
  opsbox transcribe talk.mp4 talk.txt`

	shutdownTimeout = 5 * time.Second
)

type RootArgs struct {
	shutdown      tracing.ShutdownFunc
	LogLevel      string
	LogFormat     string
	ConfigPath    string
	TraceEndpoint string
	TraceInsecure bool
}

func NewRootArgs() *RootArgs {
	return &RootArgs{}
}

func (ra *RootArgs) AddFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().
		StringVar(&ra.LogLevel, "log-level", "info", fmt.Sprintf("Log level, one of: %s", log.AllLevels))
	cmd.PersistentFlags().
		StringVar(&ra.LogFormat, "log-format", "text", fmt.Sprintf("Log format, one of: %s", log.AllFormats))
	cmd.PersistentFlags().
		StringVar(&ra.ConfigPath, "config", "", "Path to the opsbox configuration file")
	cmd.PersistentFlags().
		StringVar(&ra.TraceEndpoint, "trace-endpoint", "", "OTLP/gRPC endpoint (host:port) to export traces to")
	cmd.PersistentFlags().
		BoolVar(&ra.TraceInsecure, "trace-insecure", true, "Export traces without TLS")

	must(cmd.RegisterFlagCompletionFunc("log-format",
		cobra.FixedCompletions(log.AllFormats, cobra.ShellCompDirectiveNoFileComp),
	))
	must(cmd.RegisterFlagCompletionFunc("log-level",
		cobra.FixedCompletions(log.AllLevels, cobra.ShellCompDirectiveNoFileComp),
	))
	must(cmd.MarkPersistentFlagFilename("config", "yaml", "yml"))
}

// Execute runs opsbox and returns the process exit code.
func Execute(ctx context.Context, args []string) int {
	ra := NewRootArgs()
	cmd := newRootCmd(ra)
	cmd.SetArgs(args)

	err := fang.Execute(ctx, cmd,
		fang.WithVersion(version.String()),
		fang.WithErrorHandler(ErrorHandler),
	)

	if ra.shutdown != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if serr := ra.shutdown(shutdownCtx); serr != nil {
			slog.Warn("flush traces", slog.Any("err", serr))
		}
	}

	return ExitCode(err)
}

func NewRootCmd() *cobra.Command {
	return newRootCmd(NewRootArgs())
}

func newRootCmd(ra *RootArgs) *cobra.Command {
	cmd := &cobra.Command{
		Use:               cmdName,
		Short:             cmdDesc,
		Example:           cmdExamples,
		PersistentPreRunE: setup(ra),
	}

	ra.AddFlags(cmd)

	cmd.AddCommand(
		NewProxyCmd(ra),
		NewTranscribeCmd(NewTranscribeArgs(ra)),
		NewConfigCmd(ra),
	)

	bindEnvVars(cmd)

	return cmd
}

func setup(ra *RootArgs) func(cmd *cobra.Command, _ []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		logHandler, err := log.CreateHandlerWithStrings(cmd.ErrOrStderr(), ra.LogLevel, ra.LogFormat)
		if err != nil {
			return fmt.Errorf("create log handler: %w", err)
		}

		slog.SetDefault(slog.New(logHandler))

		_, shutdown, err := tracing.Setup(cmd.Context(), ra.TraceEndpoint,
			tracing.WithInsecure(ra.TraceInsecure),
		)
		if err != nil {
			return fmt.Errorf("setup tracing: %w", err)
		}

		ra.shutdown = shutdown

		return nil
	}
}

// LoadConfig reads the configuration file. Without --config, the default
// file is created on first use, and a missing file falls back to defaults.
func (ra *RootArgs) LoadConfig() (*configs.Config, error) {
	path := ra.ConfigPath
	if path == "" {
		path = configs.GetPath()

		if err := configs.WriteDefault(path, false); err != nil {
			slog.Warn("write default config", slog.Any("err", err))
		}
	}

	cl, err := config.NewLoaderFromFile(path, configs.New, configs.DefaultValidator)
	if err != nil {
		if ra.ConfigPath == "" && errors.Is(err, fs.ErrNotExist) {
			slog.Warn("could not read config, using defaults", slog.Any("err", err))

			return configs.New(), nil
		}

		return nil, fmt.Errorf("read config %q: %w", path, err)
	}

	cfg, err := cl.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid config %q: %w", path, err)
	}

	slog.Debug("loaded config", slog.String("path", path))

	return cfg, nil
}
