package transcribe

import (
	"errors"
	"fmt"

	"github.com/opsbox/opsbox/pkg/execs"
)

const (
	DefaultModel      = "base"
	DefaultOutput     = "transcript.txt"
	DefaultSampleRate = 16000
	DefaultChannels   = 1
)

// ErrInvalidConfig is returned for out-of-range settings.
var ErrInvalidConfig = errors.New("invalid transcribe config")

// Config defines the transcription pipeline.
type Config struct {
	// FFmpeg is the audio extraction command.
	FFmpeg *execs.Command `json:"ffmpeg,omitempty" jsonschema:"title=FFmpeg Command"`
	// Whisper is the speech recognition command.
	Whisper *execs.Command `json:"whisper,omitempty" jsonschema:"title=Whisper Command"`
	// Model is the Whisper model size, e.g. tiny, base, small, medium or large.
	Model string `json:"model,omitempty" jsonschema:"title=Model,default=base"`
	// Language skips Whisper's language detection when set, e.g. "en".
	Language string `json:"language,omitempty" jsonschema:"title=Language"`
	// Output is the default transcript path; "-" writes to stdout.
	Output string `json:"output,omitempty" jsonschema:"title=Output,default=transcript.txt"`
	// TempDir holds the intermediate audio. Defaults to the system temp dir.
	TempDir string `json:"tempDir,omitempty" jsonschema:"title=Temporary Directory"`
	// SampleRate of the extracted audio in Hz.
	SampleRate int `json:"sampleRate,omitempty" jsonschema:"title=Sample Rate,default=16000,minimum=8000,maximum=192000"`
	// Channels of the extracted audio.
	Channels int `json:"channels,omitempty" jsonschema:"title=Channels,default=1,minimum=1,maximum=2"`
}

func NewConfig() *Config {
	c := &Config{}
	c.EnsureDefaults()

	return c
}

// EnsureDefaults sets unset fields to their default values.
func (c *Config) EnsureDefaults() {
	if c.FFmpeg == nil {
		c.FFmpeg = execs.NewCommand("ffmpeg")
	}
	if c.Whisper == nil {
		c.Whisper = execs.NewCommand("whisper")
		c.Whisper.AddEnvFrom(execs.EnvFromSource{
			CallerRef: &execs.CallerRef{Pattern: "^(CUDA_|XDG_CACHE_HOME$)"},
		})
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.Output == "" {
		c.Output = DefaultOutput
	}
	if c.SampleRate == 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.Channels == 0 {
		c.Channels = DefaultChannels
	}
}

// Validate checks the commands and audio settings.
func (c *Config) Validate() error {
	if c.FFmpeg != nil {
		if err := c.FFmpeg.Validate(); err != nil {
			return fmt.Errorf("ffmpeg: %w", err)
		}
	}

	if c.Whisper != nil {
		if err := c.Whisper.Validate(); err != nil {
			return fmt.Errorf("whisper: %w", err)
		}
	}

	if c.SampleRate < 0 {
		return fmt.Errorf("%w: sampleRate %d", ErrInvalidConfig, c.SampleRate)
	}

	if c.Channels < 0 || c.Channels > 2 {
		return fmt.Errorf("%w: channels %d", ErrInvalidConfig, c.Channels)
	}

	return nil
}
