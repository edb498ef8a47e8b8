package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/opsbox/opsbox/pkg/apply"
	"github.com/opsbox/opsbox/pkg/execs"
	"github.com/opsbox/opsbox/pkg/kube"
	"github.com/opsbox/opsbox/pkg/proxy"
)

// ErrNotConfirmed is returned when --confirm needs a terminal it does not
// have.
var ErrNotConfirmed = errors.New("confirmation requires an interactive terminal")

func NewProxyCmd(ra *RootArgs) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "proxy",
		Short: "Generate and apply Traefik reverse proxy manifests",
	}

	cmd.AddCommand(
		NewProxyGenerateCmd(NewProxyGenerateArgs(ra)),
		NewProxyApplyCmd(NewProxyApplyArgs(ra)),
	)

	return cmd
}

type ProxyGenerateArgs struct {
	*RootArgs

	CSVPath string
	OutDir  string
	DryRun  bool
	Diff    bool
	Lint    bool
}

func NewProxyGenerateArgs(ra *RootArgs) *ProxyGenerateArgs {
	return &ProxyGenerateArgs{RootArgs: ra}
}

func (ga *ProxyGenerateArgs) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&ga.CSVPath, "csv", "", "Service CSV file, or - for stdin; defaults to proxy.services in the config")
	cmd.Flags().StringVar(&ga.OutDir, "out-dir", "", "Directory to write service folders to; defaults to proxy.baseDir")
	cmd.Flags().BoolVar(&ga.DryRun, "dry-run", false, "Print the manifests instead of writing them")
	cmd.Flags().BoolVar(&ga.Diff, "diff", false, "Print a unified diff against the files on disk")
	cmd.Flags().BoolVar(&ga.Lint, "lint", true, "Validate the rendered manifests before writing")

	must(cmd.MarkFlagFilename("csv", "csv"))
	must(cmd.MarkFlagDirname("out-dir"))
}

func NewProxyGenerateCmd(ga *ProxyGenerateArgs) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Render Service, Endpoints, ServersTransport and IngressRoute manifests per service",
		Example: `  # Write manifests for the services in the config:
  opsbox proxy generate

  # Show what a CSV file would change, without writing:
  opsbox proxy generate --csv services.csv --dry-run --diff`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return generate(cmd, ga)
		},
	}
	ga.AddFlags(cmd)

	bindEnvVars(cmd)

	return cmd
}

func generate(cmd *cobra.Command, ga *ProxyGenerateArgs) error {
	cfg, err := ga.LoadConfig()
	if err != nil {
		return err
	}

	services, err := readServices(cmd.InOrStdin(), ga.CSVPath, cfg.Proxy.Services)
	if err != nil {
		return err
	}

	if len(services) == 0 {
		slog.Warn("no services defined")

		return nil
	}

	renderer, err := proxy.NewRenderer(cfg.Proxy.Settings(), cfg.Proxy.TemplatePath())
	if err != nil {
		return fmt.Errorf("create renderer: %w", err)
	}

	baseDir := ga.OutDir
	if baseDir == "" {
		baseDir = cfg.Proxy.Dir()
	}

	gen := proxy.NewGenerator(renderer, baseDir,
		proxy.WithLint(ga.Lint),
		proxy.WithDryRun(ga.DryRun),
	)

	results, err := gen.Generate(cmd.Context(), services)
	if err != nil {
		return fmt.Errorf("generate manifests: %w", err)
	}

	return printResults(cmd.OutOrStdout(), results, ga.DryRun, ga.Diff)
}

func printResults(w io.Writer, results []proxy.Result, dryRun, diff bool) error {
	for _, r := range results {
		for _, f := range r.Files {
			switch {
			case diff:
				if !f.Changed {
					continue
				}

				if _, err := io.WriteString(w, f.Diff); err != nil {
					return fmt.Errorf("write diff: %w", err)
				}

			case dryRun && !f.Removed:
				err := writeYAML(w, fmt.Sprintf("# %s\n%s", f.Path, f.Content))
				if err != nil {
					return err
				}

			case dryRun:
				slog.Info("would remove", slog.String("path", f.Path))
			}
		}
	}

	return nil
}

func readServices(stdin io.Reader, path, fallback string) ([]proxy.Service, error) {
	var r io.Reader

	switch path {
	case "":
		r = strings.NewReader(fallback)
	case "-":
		r = stdin
	default:
		f, err := os.Open(path) //nolint:gosec // G304: User supplied path.
		if err != nil {
			return nil, fmt.Errorf("open services: %w", err)
		}

		defer func() {
			if err := f.Close(); err != nil {
				slog.Debug("close services file", slog.Any("err", err))
			}
		}()

		r = f
	}

	services, err := proxy.ParseCSV(r)
	if err != nil {
		return nil, fmt.Errorf("parse services: %w", err)
	}

	return services, nil
}

type ProxyApplyArgs struct {
	*RootArgs

	Dir         string
	Kubectl     string
	KubeContext string
	DryRun      string
	Watch       bool
	Confirm     bool
}

func NewProxyApplyArgs(ra *RootArgs) *ProxyApplyArgs {
	return &ProxyApplyArgs{RootArgs: ra}
}

func (aa *ProxyApplyArgs) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&aa.Dir, "dir", "", "Directory holding the service folders; defaults to proxy.baseDir")
	cmd.Flags().StringVar(&aa.Kubectl, "kubectl", "", "kubectl command as one shell-quoted string; defaults to apply.kubectl")
	cmd.Flags().StringVar(&aa.KubeContext, "context", "", "Kubeconfig context passed to kubectl")
	cmd.Flags().StringVar(&aa.DryRun, "dry-run", apply.DryRunNone,
		fmt.Sprintf("kubectl dry-run mode, one of: %s", apply.DryRunModes))
	cmd.Flags().BoolVarP(&aa.Watch, "watch", "w", false, "Re-apply manifests when they change")
	cmd.Flags().BoolVar(&aa.Confirm, "confirm", false, "Ask before applying")

	must(cmd.MarkFlagDirname("dir"))
	must(cmd.RegisterFlagCompletionFunc("dry-run",
		cobra.FixedCompletions(apply.DryRunModes, cobra.ShellCompDirectiveNoFileComp),
	))
}

func NewProxyApplyCmd(aa *ProxyApplyArgs) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply SERVICE",
		Short: "Apply a service's manifests with kubectl, in file name order",
		Example: `  # Apply the manifests in <baseDir>/plex:
  opsbox proxy apply plex

  # Check the manifests against the API server without persisting them:
  opsbox proxy apply plex --dry-run server`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return applyService(cmd, aa, args[0])
		},
	}
	aa.AddFlags(cmd)

	bindEnvVars(cmd)

	return cmd
}

func applyService(cmd *cobra.Command, aa *ProxyApplyArgs, service string) error {
	ctx := cmd.Context()

	if err := apply.ValidateDryRun(aa.DryRun); err != nil {
		return err //nolint:wrapcheck // Already descriptive.
	}

	cfg, err := aa.LoadConfig()
	if err != nil {
		return err
	}

	baseDir := aa.Dir
	if baseDir == "" {
		baseDir = cfg.Proxy.Dir()
	}

	kubeContext, err := kube.CurrentContext("", aa.KubeContext)
	if err != nil {
		slog.Warn("could not resolve kube context", slog.Any("err", err))
	} else {
		slog.Info("using kube context", slog.String("context", kubeContext))
	}

	kubectl := cfg.Apply.Kubectl
	if aa.Kubectl != "" {
		kubectl, err = execs.Parse(aa.Kubectl)
		if err != nil {
			return fmt.Errorf("parse --kubectl: %w", err)
		}

		kubectl.EnvFrom = cfg.Apply.Kubectl.EnvFrom
	}

	executor := execs.NewExecutor(kubectl,
		execs.WithOutput(cmd.OutOrStdout(), cmd.ErrOrStderr()),
	)

	applier, err := apply.NewApplier(executor, baseDir,
		apply.WithSelector(cfg.Apply.Select),
		apply.WithReload(cfg.Apply.Reload),
		apply.WithKubeContext(aa.KubeContext),
		apply.WithDryRun(aa.DryRun),
	)
	if err != nil {
		return fmt.Errorf("create applier: %w", err)
	}

	if aa.Confirm {
		ok, err := confirmApply(applier, service, kubeContext)
		if err != nil {
			return err
		}

		if !ok {
			slog.Info("apply cancelled")

			return nil
		}
	}

	if aa.Watch {
		return applier.Watch(ctx, service) //nolint:wrapcheck // Already descriptive.
	}

	return applier.Apply(ctx, service) //nolint:wrapcheck // Keep the exit code error intact.
}

func confirmApply(applier *apply.Applier, service, kubeContext string) (bool, error) {
	dir, err := applier.ServiceDir(service)
	if err != nil {
		return false, err //nolint:wrapcheck // Already descriptive.
	}

	files, err := applier.Manifests(dir)
	if err != nil {
		return false, err //nolint:wrapcheck // Already descriptive.
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false, ErrNotConfirmed
	}

	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, filepath.Base(f))
	}

	target := kubeContext
	if target == "" {
		target = "the current context"
	}

	ok := false

	err = huh.NewConfirm().
		Title(fmt.Sprintf("Apply %d manifests for %s to %s?", len(files), filepath.Base(dir), target)).
		Description(strings.Join(names, "\n")).
		Affirmative("Apply").
		Negative("Cancel").
		Value(&ok).
		Run()
	if err != nil {
		return false, fmt.Errorf("confirm: %w", err)
	}

	return ok, nil
}
