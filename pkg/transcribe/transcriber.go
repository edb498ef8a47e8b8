package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/unicode/norm"

	"github.com/opsbox/opsbox/pkg/log"
)

// ErrVideoNotFound is returned when the input video does not exist.
var ErrVideoNotFound = errors.New("video not found")

// StdoutPath writes the transcript to stdout instead of a file.
const StdoutPath = "-"

// Result describes a completed transcription.
type Result struct {
	Text   string
	Output string
}

// Transcriber runs the extract, transcribe and write pipeline.
type Transcriber struct {
	extractor AudioExtractor
	engine    Engine
	stdout    io.Writer
	model     string
	language  string
	tempDir   string
}

// TranscriberOpt configures a [Transcriber].
type TranscriberOpt func(*Transcriber)

// WithModel sets the model size. Defaults to [DefaultModel].
func WithModel(model string) TranscriberOpt {
	return func(t *Transcriber) {
		if model != "" {
			t.model = model
		}
	}
}

// WithLanguage sets the spoken language.
func WithLanguage(language string) TranscriberOpt {
	return func(t *Transcriber) {
		t.language = language
	}
}

// WithTempDir sets where the intermediate audio file is created.
func WithTempDir(dir string) TranscriberOpt {
	return func(t *Transcriber) {
		t.tempDir = dir
	}
}

// WithStdout sets the writer used when the output path is [StdoutPath].
func WithStdout(w io.Writer) TranscriberOpt {
	return func(t *Transcriber) {
		t.stdout = w
	}
}

func NewTranscriber(extractor AudioExtractor, engine Engine, opts ...TranscriberOpt) *Transcriber {
	t := &Transcriber{
		extractor: extractor,
		engine:    engine,
		stdout:    os.Stdout,
		model:     DefaultModel,
	}
	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Run transcribes video into output ([DefaultOutput] when empty). The
// intermediate audio file is always removed before Run returns.
func (t *Transcriber) Run(ctx context.Context, video, output string) (*Result, error) {
	logger := log.WithContext(ctx)

	if output == "" {
		output = DefaultOutput
	}

	info, err := os.Stat(video)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrVideoNotFound, video)
	}
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", video, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrVideoNotFound, video)
	}

	audio, err := os.CreateTemp(t.tempDir, "opsbox-audio-*.wav")
	if err != nil {
		return nil, fmt.Errorf("create temp audio: %w", err)
	}

	audioPath := audio.Name()
	if err := audio.Close(); err != nil {
		return nil, fmt.Errorf("close temp audio: %w", err)
	}

	defer func() {
		err := os.Remove(audioPath)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.WarnContext(ctx, "remove temp audio", slog.String("path", audioPath), slog.Any("error", err))
		}
	}()

	logger.DebugContext(ctx, "extracting audio",
		slog.String("video", video),
		slog.String("video_size", humanize.IBytes(uint64(info.Size()))), //nolint:gosec // G115: Sizes are non-negative.
		slog.String("audio", audioPath),
	)

	if err := t.extractor.Extract(ctx, video, audioPath); err != nil {
		return nil, err //nolint:wrapcheck // Extractor errors are already wrapped.
	}

	if audioInfo, err := os.Stat(audioPath); err == nil {
		logger.DebugContext(ctx, "extracted audio",
			slog.String("audio_size", humanize.IBytes(uint64(audioInfo.Size()))), //nolint:gosec // G115: Sizes are non-negative.
		)
	}

	logger.InfoContext(ctx, "transcribing using whisper model", slog.String("model", t.model))

	text, err := t.engine.Transcribe(ctx, Request{
		AudioPath: audioPath,
		Model:     t.model,
		Language:  t.language,
	})
	if err != nil {
		return nil, err //nolint:wrapcheck // Engine errors are already wrapped.
	}

	text = Normalize(text)

	if err := t.write(output, text); err != nil {
		return nil, err
	}

	if output != StdoutPath {
		logger.InfoContext(ctx, "transcript saved",
			slog.String("path", output),
			slog.String("size", humanize.Bytes(uint64(len(text)))),
		)
	}

	return &Result{Text: text, Output: output}, nil
}

func (t *Transcriber) write(output, text string) error {
	content := text + "\n"

	if output == StdoutPath {
		if _, err := io.WriteString(t.stdout, content); err != nil {
			return fmt.Errorf("write transcript: %w", err)
		}

		return nil
	}

	if err := os.WriteFile(output, []byte(content), 0o644); err != nil { //nolint:gosec // G306: Transcripts are not secret.
		return fmt.Errorf("write transcript: %w", err)
	}

	return nil
}

// Normalize returns text as trimmed NFC UTF-8, replacing invalid byte
// sequences.
func Normalize(text string) string {
	text = strings.ToValidUTF8(text, "\uFFFD")

	return strings.TrimSpace(norm.NFC.String(text))
}
