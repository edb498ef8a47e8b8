package transcribe_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsbox/opsbox/pkg/execs"
	"github.com/opsbox/opsbox/pkg/transcribe"
)

// runnerFunc adapts a function to [execs.Runner].
type runnerFunc func(args []string) (*execs.Result, error)

func (f runnerFunc) Exec(_ context.Context, _ string, args ...string) (*execs.Result, error) {
	return f(args)
}

func TestFFmpeg_Args(t *testing.T) {
	t.Parallel()

	f := transcribe.NewFFmpeg(nil, 16000, 1)
	assert.Equal(t,
		[]string{"-i", "talk.mp4", "-ar", "16000", "-ac", "1", "-f", "wav", "/tmp/a.wav", "-y"},
		f.Args("talk.mp4", "/tmp/a.wav"))
}

func TestFFmpeg_Extract(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		write   []byte
		result  *execs.Result
		err     error
		wantErr error
		wantMsg string
	}{
		"success": {
			write:  []byte("RIFF"),
			result: &execs.Result{},
		},
		"command fails": {
			result:  &execs.Result{Stderr: "ffmpeg version 7\ntalk.mp4: Invalid data found when processing input\n", ExitCode: 1},
			err:     errors.New("exit status 1"),
			wantErr: transcribe.ErrExtract,
			wantMsg: "Invalid data found",
		},
		"no audio stream": {
			write:   []byte{},
			result:  &execs.Result{},
			wantErr: transcribe.ErrNoAudio,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			audio := filepath.Join(t.TempDir(), "a.wav")
			f := transcribe.NewFFmpeg(runnerFunc(func(args []string) (*execs.Result, error) {
				if tc.write != nil {
					require.NoError(t, os.WriteFile(args[len(args)-2], tc.write, 0o600))
				}

				return tc.result, tc.err
			}), 16000, 1)

			err := f.Extract(t.Context(), "talk.mp4", audio)
			if tc.wantErr == nil {
				require.NoError(t, err)

				return
			}

			require.ErrorIs(t, err, tc.wantErr)
			assert.ErrorContains(t, err, tc.wantMsg)
		})
	}
}

func TestWhisper_Args(t *testing.T) {
	t.Parallel()

	w := transcribe.NewWhisper(nil, "")

	assert.Equal(t,
		[]string{"/tmp/a.wav", "--model", "base", "--output_format", "txt", "--output_dir", "/out"},
		w.Args(transcribe.Request{AudioPath: "/tmp/a.wav", Model: "base"}, "/out"))
	assert.Equal(t,
		[]string{"/tmp/a.wav", "--model", "small", "--output_format", "txt", "--output_dir", "/out", "--language", "en"},
		w.Args(transcribe.Request{AudioPath: "/tmp/a.wav", Model: "small", Language: "en"}, "/out"))
}

func TestWhisper_Transcribe(t *testing.T) {
	t.Parallel()

	tempDir := t.TempDir()

	var outDir string

	w := transcribe.NewWhisper(runnerFunc(func(args []string) (*execs.Result, error) {
		outDir = args[slices.Index(args, "--output_dir")+1]

		return &execs.Result{}, os.WriteFile(filepath.Join(outDir, "opsbox-audio-1.txt"), []byte(" Hello.\n"), 0o600)
	}), tempDir)

	text, err := w.Transcribe(t.Context(), transcribe.Request{AudioPath: "/tmp/opsbox-audio-1.wav", Model: "base"})
	require.NoError(t, err)
	assert.Equal(t, " Hello.\n", text)

	assert.Equal(t, tempDir, filepath.Dir(outDir))
	assert.NoDirExists(t, outDir)
}

func TestWhisper_TranscribeErrors(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		runner  runnerFunc
		wantMsg string
	}{
		"command fails": {
			runner: func([]string) (*execs.Result, error) {
				return &execs.Result{Stderr: "RuntimeError: model not found\n"}, errors.New("exit status 1")
			},
			wantMsg: "model not found",
		},
		"not started": {
			runner: func([]string) (*execs.Result, error) {
				return nil, execs.ErrCommandExecution
			},
			wantMsg: "run",
		},
		"no output file": {
			runner: func([]string) (*execs.Result, error) {
				return &execs.Result{}, nil
			},
			wantMsg: "read output",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			w := transcribe.NewWhisper(tc.runner, t.TempDir())

			_, err := w.Transcribe(t.Context(), transcribe.Request{AudioPath: "/tmp/a.wav", Model: "base"})
			require.ErrorIs(t, err, transcribe.ErrTranscribe)
			assert.ErrorContains(t, err, tc.wantMsg)
		})
	}
}

func TestConfig(t *testing.T) {
	t.Parallel()

	c := transcribe.NewConfig()
	assert.Equal(t, "ffmpeg", c.FFmpeg.Command)
	assert.Equal(t, "whisper", c.Whisper.Command)
	assert.Equal(t, transcribe.DefaultModel, c.Model)
	assert.Equal(t, transcribe.DefaultOutput, c.Output)
	assert.Equal(t, 16000, c.SampleRate)
	assert.Equal(t, 1, c.Channels)
	require.NoError(t, c.Validate())

	c.Channels = 6
	require.ErrorIs(t, c.Validate(), transcribe.ErrInvalidConfig)

	c = transcribe.NewConfig()
	c.FFmpeg = &execs.Command{}
	require.ErrorIs(t, c.Validate(), execs.ErrEmptyCommand)
}
