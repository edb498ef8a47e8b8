package transcribe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/opsbox/opsbox/pkg/execs"
)

var (
	// ErrExtract is returned when audio extraction fails.
	ErrExtract = errors.New("extract audio")

	// ErrNoAudio is returned when extraction produced no audio.
	ErrNoAudio = errors.New("no audio produced")
)

// AudioExtractor decodes the audio track of a video into a WAV file.
type AudioExtractor interface {
	Extract(ctx context.Context, video, audio string) error
}

// FFmpeg extracts audio with the ffmpeg CLI.
type FFmpeg struct {
	runner     execs.Runner
	sampleRate int
	channels   int
}

func NewFFmpeg(runner execs.Runner, sampleRate, channels int) *FFmpeg {
	return &FFmpeg{
		runner:     runner,
		sampleRate: sampleRate,
		channels:   channels,
	}
}

// Args returns the ffmpeg arguments converting video into audio, overwriting
// audio if it exists.
func (f *FFmpeg) Args(video, audio string) []string {
	return []string{
		"-i", video,
		"-ar", strconv.Itoa(f.sampleRate),
		"-ac", strconv.Itoa(f.channels),
		"-f", "wav",
		audio,
		"-y",
	}
}

func (f *FFmpeg) Extract(ctx context.Context, video, audio string) error {
	result, err := f.runner.Exec(ctx, "", f.Args(video, audio)...)
	if err != nil {
		if result != nil && result.Stderr != "" {
			return fmt.Errorf("%w: %w: %s", ErrExtract, err, lastLine(result.Stderr))
		}

		return fmt.Errorf("%w: %w", ErrExtract, err)
	}

	info, err := os.Stat(audio)
	if err != nil || info.Size() == 0 {
		return fmt.Errorf("%w: %s", ErrNoAudio, audio)
	}

	return nil
}

// lastLine returns the last non-empty line of s; ffmpeg prints the reason
// for a failure last.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")

	return strings.TrimSpace(lines[len(lines)-1])
}
