package apply

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/opsbox/opsbox/pkg/execs"
	"github.com/opsbox/opsbox/pkg/expr"
	"github.com/opsbox/opsbox/pkg/log"
)

var (
	// ErrNotDirectory is returned when a service directory is missing.
	ErrNotDirectory = errors.New("does not exist or is not a directory")

	// ErrNoManifests is returned when a service directory has nothing to apply.
	ErrNoManifests = errors.New("no manifests found")

	// ErrEmptyService is returned for a blank service name.
	ErrEmptyService = errors.New("empty service name")

	// ErrInvalidDryRun is returned for an unknown dry-run mode.
	ErrInvalidDryRun = errors.New("invalid dry-run mode")
)

// DryRun modes accepted by kubectl's --dry-run flag.
const (
	DryRunNone   = "none"
	DryRunClient = "client"
	DryRunServer = "server"
)

// DryRunModes lists the valid dry-run modes.
var DryRunModes = []string{DryRunNone, DryRunClient, DryRunServer}

// ExitError reports the manifest kubectl failed on and its exit code.
type ExitError struct {
	Err  error
	File string
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("kubectl failed on %s: exit code %d", filepath.Base(e.File), e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// Applier applies the manifests of a service directory.
type Applier struct {
	runner    execs.Runner
	selector  *expr.Program
	reload    *expr.Program
	selectSrc string
	reloadSrc string
	baseDir   string
	extraArgs []string
	debounce  time.Duration
}

// ApplierOpt configures an [Applier].
type ApplierOpt func(*Applier)

// WithSelector sets the CEL expression selecting manifests.
func WithSelector(expression string) ApplierOpt {
	return func(a *Applier) {
		a.selectSrc = expression
	}
}

// WithReload sets the CEL expression filtering watch events.
func WithReload(expression string) ApplierOpt {
	return func(a *Applier) {
		a.reloadSrc = expression
	}
}

// WithKubeContext passes --context to kubectl.
func WithKubeContext(name string) ApplierOpt {
	return func(a *Applier) {
		if name != "" {
			a.extraArgs = append(a.extraArgs, "--context", name)
		}
	}
}

// WithDryRun passes --dry-run=<mode> to kubectl unless mode is empty or
// [DryRunNone].
func WithDryRun(mode string) ApplierOpt {
	return func(a *Applier) {
		if mode != "" && mode != DryRunNone {
			a.extraArgs = append(a.extraArgs, "--dry-run="+mode)
		}
	}
}

// WithDebounce sets how long watch mode waits for events to settle before
// re-applying.
func WithDebounce(d time.Duration) ApplierOpt {
	return func(a *Applier) {
		a.debounce = d
	}
}

// NewApplier creates an [Applier] that runs runner once per manifest with
// the manifest path as the final argument.
func NewApplier(runner execs.Runner, baseDir string, opts ...ApplierOpt) (*Applier, error) {
	a := &Applier{
		runner:    runner,
		baseDir:   baseDir,
		selectSrc: DefaultSelect,
		reloadSrc: DefaultReload,
		debounce:  200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(a)
	}

	var err error

	a.selector, err = compileSelector(a.selectSrc)
	if err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}

	a.reload, err = compileReload(a.reloadSrc)
	if err != nil {
		return nil, fmt.Errorf("reload: %w", err)
	}

	return a, nil
}

// ValidateDryRun checks a dry-run mode.
func ValidateDryRun(mode string) error {
	if mode == "" || slices.Contains(DryRunModes, mode) {
		return nil
	}

	return fmt.Errorf("%w %q, want one of %s", ErrInvalidDryRun, mode, strings.Join(DryRunModes, ", "))
}

// ServiceDir resolves a service name to its directory. Trailing slashes and
// spaces are ignored.
func (a *Applier) ServiceDir(service string) (string, error) {
	name := strings.TrimRight(service, "/ ")
	if name == "" {
		return "", ErrEmptyService
	}

	dir := filepath.Join(a.baseDir, name)

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("%s %w", dir, ErrNotDirectory)
	}

	return dir, nil
}

// Manifests returns the selected regular files of dir, sorted by base name.
func (a *Applier) Manifests(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}

	candidates := make([]string, 0, len(entries))
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())

		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}

		candidates = append(candidates, path)
	}

	selected, err := a.selector.EvalStrings(map[string]any{
		"files":   candidates,
		"dir":     dir,
		"service": filepath.Base(dir),
	})
	if err != nil {
		return nil, fmt.Errorf("select manifests: %w", err)
	}

	files := make([]string, 0, len(selected))
	for _, f := range selected {
		if slices.Contains(candidates, f) && !slices.Contains(files, f) {
			files = append(files, f)
		}
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoManifests, dir)
	}

	slices.SortStableFunc(files, func(x, y string) int {
		return strings.Compare(filepath.Base(x), filepath.Base(y))
	})

	return files, nil
}

// Apply applies every selected manifest of service in order, stopping at the
// first failure.
func (a *Applier) Apply(ctx context.Context, service string) error {
	dir, err := a.ServiceDir(service)
	if err != nil {
		return err
	}

	ctx = log.WithService(ctx, filepath.Base(dir))

	files, err := a.Manifests(dir)
	if err != nil {
		return err
	}

	log.WithContext(ctx).InfoContext(ctx, "applying manifests", slog.Int("files", len(files)))

	return a.ApplyFiles(ctx, dir, files)
}

// ApplyFiles applies files in the given order, stopping at the first
// failure.
func (a *Applier) ApplyFiles(ctx context.Context, dir string, files []string) error {
	for _, f := range files {
		if err := a.applyFile(ctx, dir, f); err != nil {
			return err
		}
	}

	return nil
}

func (a *Applier) applyFile(ctx context.Context, dir, file string) error {
	logger := log.WithContext(ctx)

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("apply %s: %w", filepath.Base(file), err)
	}

	logger.InfoContext(ctx, "kubectl apply", slog.String("file", file))

	args := append([]string{file}, a.extraArgs...)

	result, err := a.runner.Exec(ctx, dir, args...)
	if err == nil {
		return nil
	}

	code, ok := execs.ExitCode(err)
	if !ok && result != nil && result.ExitCode != 0 {
		code, ok = result.ExitCode, true
	}

	if !ok {
		return fmt.Errorf("apply %s: %w", filepath.Base(file), err)
	}

	return &ExitError{File: file, Code: code, Err: err}
}
