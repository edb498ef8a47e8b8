package transcribe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/opsbox/opsbox/pkg/execs"
)

// ErrTranscribe is returned when the speech recognition step fails.
var ErrTranscribe = errors.New("transcribe")

// Request is a single transcription job.
type Request struct {
	AudioPath string
	Model     string
	// Language is optional; empty lets the model detect it.
	Language string
}

// Engine converts speech in an audio file into text.
type Engine interface {
	Transcribe(ctx context.Context, req Request) (string, error)
}

// Whisper runs the openai-whisper CLI.
type Whisper struct {
	runner  execs.Runner
	tempDir string
}

// NewWhisper creates a [Whisper] engine. Its text output is written under
// tempDir, or the system temp dir when empty.
func NewWhisper(runner execs.Runner, tempDir string) *Whisper {
	return &Whisper{
		runner:  runner,
		tempDir: tempDir,
	}
}

// Args returns the whisper arguments writing a txt transcript into outDir.
func (w *Whisper) Args(req Request, outDir string) []string {
	args := []string{
		req.AudioPath,
		"--model", req.Model,
		"--output_format", "txt",
		"--output_dir", outDir,
	}
	if req.Language != "" {
		args = append(args, "--language", req.Language)
	}

	return args
}

func (w *Whisper) Transcribe(ctx context.Context, req Request) (string, error) {
	outDir, err := os.MkdirTemp(w.tempDir, "opsbox-whisper-*")
	if err != nil {
		return "", fmt.Errorf("%w: create output dir: %w", ErrTranscribe, err)
	}

	defer os.RemoveAll(outDir) //nolint:errcheck // Best effort.

	result, err := w.runner.Exec(ctx, "", w.Args(req, outDir)...)
	if err != nil {
		if result != nil && result.Stderr != "" {
			return "", fmt.Errorf("%w: %w: %s", ErrTranscribe, err, lastLine(result.Stderr))
		}

		return "", fmt.Errorf("%w: %w", ErrTranscribe, err)
	}

	stem := strings.TrimSuffix(filepath.Base(req.AudioPath), filepath.Ext(req.AudioPath))

	text, err := os.ReadFile(filepath.Join(outDir, stem+".txt")) //nolint:gosec // G304: Path is in our temp dir.
	if err != nil {
		return "", fmt.Errorf("%w: read output: %w", ErrTranscribe, err)
	}

	return string(text), nil
}
