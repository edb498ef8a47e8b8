package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opsbox/opsbox/pkg/execs"
	"github.com/opsbox/opsbox/pkg/transcribe"
)

type TranscribeArgs struct {
	*RootArgs

	Model    string
	Language string
}

func NewTranscribeArgs(ra *RootArgs) *TranscribeArgs {
	return &TranscribeArgs{RootArgs: ra}
}

func (ta *TranscribeArgs) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&ta.Model, "model", "m", "", "Whisper model size, e.g. tiny, base, small; defaults to transcribe.model")
	cmd.Flags().StringVarP(&ta.Language, "language", "l", "", "Spoken language code, skips detection; defaults to transcribe.language")

	must(cmd.RegisterFlagCompletionFunc("model", cobra.FixedCompletions(
		[]string{"tiny", "base", "small", "medium", "large", "turbo"},
		cobra.ShellCompDirectiveNoFileComp,
	)))
}

func NewTranscribeCmd(ta *TranscribeArgs) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transcribe VIDEO [OUTPUT]",
		Short: "Transcribe the speech in a video file with Whisper",
		Example: `  # Write transcript.txt:
  opsbox transcribe talk.mp4

  # Use a larger model and print to stdout:
  opsbox transcribe talk.mp4 - --model small`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := ""
			if len(args) > 1 {
				output = args[1]
			}

			return runTranscribe(cmd, ta, args[0], output)
		},
	}
	ta.AddFlags(cmd)

	bindEnvVars(cmd)

	return cmd
}

func runTranscribe(cmd *cobra.Command, ta *TranscribeArgs, video, output string) error {
	cfg, err := ta.LoadConfig()
	if err != nil {
		return err
	}

	tc := cfg.Transcribe

	if output == "" {
		output = tc.Output
	}

	model := ta.Model
	if model == "" {
		model = tc.Model
	}

	language := ta.Language
	if language == "" {
		language = tc.Language
	}

	ffmpeg := transcribe.NewFFmpeg(
		execs.NewExecutor(tc.FFmpeg),
		tc.SampleRate,
		tc.Channels,
	)
	whisper := transcribe.NewWhisper(
		execs.NewExecutor(tc.Whisper, execs.WithOutput(nil, cmd.ErrOrStderr())),
		tc.TempDir,
	)

	t := transcribe.NewTranscriber(ffmpeg, whisper,
		transcribe.WithModel(model),
		transcribe.WithLanguage(language),
		transcribe.WithTempDir(tc.TempDir),
		transcribe.WithStdout(cmd.OutOrStdout()),
	)

	if _, err := t.Run(cmd.Context(), video, output); err != nil {
		return fmt.Errorf("transcribe %s: %w", video, err)
	}

	return nil
}
