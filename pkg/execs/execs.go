package execs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/opsbox/opsbox/pkg/log"
)

const tracerName = "github.com/opsbox/opsbox/pkg/execs"

// Runner runs a command with per-invocation arguments.
type Runner interface {
	Exec(ctx context.Context, dir string, args ...string) (*Result, error)
}

// Executor runs a [Command].
type Executor struct {
	tracer trace.Tracer
	stdout io.Writer
	stderr io.Writer
	cmd    *Command
}

// ExecutorOpt configures an [Executor].
type ExecutorOpt func(*Executor)

// WithTracerProvider sets the provider spans are created from. Defaults to
// the global provider.
func WithTracerProvider(tp trace.TracerProvider) ExecutorOpt {
	return func(e *Executor) {
		e.tracer = tp.Tracer(tracerName)
	}
}

// WithOutput copies the command's output to the given writers as it runs,
// in addition to capturing it in the [Result]. Nil writers are ignored.
func WithOutput(stdout, stderr io.Writer) ExecutorOpt {
	return func(e *Executor) {
		e.stdout = stdout
		e.stderr = stderr
	}
}

func NewExecutor(cmd *Command, opts ...ExecutorOpt) *Executor {
	e := &Executor{
		tracer: otel.Tracer(tracerName),
		cmd:    cmd,
	}
	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Exec runs the command in dir, appending args to the command's own
// arguments. A non-nil [Result] is returned whenever the process started,
// including when it exited non-zero.
func (e *Executor) Exec(ctx context.Context, dir string, args ...string) (*Result, error) {
	allArgs := append(append([]string{}, e.cmd.Args...), args...)

	ctx, span := e.tracer.Start(ctx, "exec", trace.WithAttributes(
		attribute.String("command", e.cmd.Command),
		attribute.StringSlice("args", allArgs),
		attribute.String("path", dir),
	))
	defer span.End()

	if e.cmd.Command == "" {
		span.SetStatus(codes.Error, ErrEmptyCommand.Error())

		return nil, ErrEmptyCommand
	}

	logger := log.WithContext(ctx).With(
		slog.String("command", e.cmd.Command),
		slog.String("args", strings.Join(allArgs, " ")),
	)

	start := time.Now()

	//nolint:gosec // G204: Arguments come from configuration and the caller.
	cmd := exec.CommandContext(ctx, e.cmd.Command, allArgs...)
	cmd.Dir = dir
	cmd.Env = e.cmd.GetEnv()

	var stdout, stderr bytes.Buffer

	cmd.Stdout = teeWriter(&stdout, e.stdout)
	cmd.Stderr = teeWriter(&stderr, e.stderr)

	err := cmd.Run()
	result := &Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		logger.DebugContext(ctx, "command failed",
			slog.Duration("duration", time.Since(start)),
			slog.Any("error", err),
		)

		code, ok := ExitCode(err)
		if !ok {
			// The process never started.
			return nil, fmt.Errorf("%w: %w", ErrCommandExecution, err)
		}

		result.ExitCode = code
		span.SetAttributes(attribute.Int("exit_code", code))

		return result, fmt.Errorf("%w: %s: %w", ErrCommandExecution, e.cmd.Command, err)
	}

	logger.DebugContext(ctx, "command executed",
		slog.Duration("duration", time.Since(start)),
	)

	return result, nil
}

func (e *Executor) String() string {
	return e.cmd.String()
}

// ExitCode extracts the process exit code from an error returned by
// [Executor.Exec]. It reports false when the error carries no exit status.
func ExitCode(err error) (int, bool) {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), true
	}

	return 0, false
}

func teeWriter(buf *bytes.Buffer, w io.Writer) io.Writer {
	if w == nil {
		return buf
	}

	return io.MultiWriter(buf, w)
}
