package cli_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsbox/opsbox/internal/cli"
	"github.com/opsbox/opsbox/pkg/apply"
	"github.com/opsbox/opsbox/pkg/proxy"
)

const servicesCSV = `Name,Source,Protocol,IP,Port
plex,plex.example.com,https,192.168.1.20,32400
grafana,grafana.example.com,http,192.168.1.21,3000
`

// execute runs the root command without fang and returns its output.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	cmd := cli.NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	err := cmd.ExecuteContext(t.Context())

	return out.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "apiVersion: opsbox.dev/v1beta1\nkind: Configuration\n" + body
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	return path
}

//nolint:paralleltest // Commands replace the default logger.
func TestProxyGenerate(t *testing.T) {
	tcs := map[string]struct {
		check func(t *testing.T, outDir, output string)
		stdin string
		args  []string
	}{
		"csv file": {
			args: []string{"--csv", "services.csv"},
			check: func(t *testing.T, outDir, _ string) {
				t.Helper()

				assert.FileExists(t, filepath.Join(outDir, "plex", proxy.FileServiceEndpoints))
				assert.FileExists(t, filepath.Join(outDir, "plex", proxy.FileTransport))
				assert.FileExists(t, filepath.Join(outDir, "plex", proxy.FileIngressRoute))
				assert.FileExists(t, filepath.Join(outDir, "grafana", proxy.FileIngressRoute))
				assert.NoFileExists(t, filepath.Join(outDir, "grafana", proxy.FileTransport))
			},
		},
		"stdin": {
			args:  []string{"--csv", "-"},
			stdin: servicesCSV,
			check: func(t *testing.T, outDir, _ string) {
				t.Helper()

				assert.FileExists(t, filepath.Join(outDir, "plex", proxy.FileTransport))
			},
		},
		"dry run prints manifests": {
			args: []string{"--csv", "services.csv", "--dry-run"},
			check: func(t *testing.T, outDir, output string) {
				t.Helper()

				assert.NoDirExists(t, filepath.Join(outDir, "plex"))
				assert.Contains(t, output, "kind: ServersTransport")
				assert.Contains(t, output, "name: plex-transport")
			},
		},
		"diff": {
			args: []string{"--csv", "services.csv", "--diff"},
			check: func(t *testing.T, _, output string) {
				t.Helper()

				assert.Contains(t, output, "+++ ")
				assert.Contains(t, output, "+kind: IngressRoute")
			},
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			t.Chdir(dir)
			require.NoError(t, os.WriteFile("services.csv", []byte(servicesCSV), 0o600))

			outDir := filepath.Join(dir, "out")
			cfg := writeConfig(t, "")

			args := append([]string{"proxy", "generate", "--config", cfg, "--out-dir", outDir}, tc.args...)

			output, err := execute(t, tc.stdin, args...)
			require.NoError(t, err)
			tc.check(t, outDir, output)
		})
	}
}

//nolint:paralleltest // Commands replace the default logger.
func TestProxyGenerate_InvalidCSV(t *testing.T) {
	cfg := writeConfig(t, "")

	_, err := execute(t, "Name,Source,Protocol,IP,Port\nBAD_NAME,x.example.com,http,10.0.0.1,80\n",
		"proxy", "generate", "--config", cfg, "--out-dir", t.TempDir(), "--csv", "-")
	require.ErrorIs(t, err, proxy.ErrInvalidService)
	assert.Equal(t, 1, cli.ExitCode(err))
}

//nolint:paralleltest // Commands replace the default logger.
func TestProxyApply(t *testing.T) {
	tcs := map[string]struct {
		script   string
		args     []string
		wantOut  []string
		wantCode int
	}{
		"applies in order": {
			script:  `echo "applied $(basename $1) $2"`,
			wantOut: []string{"applied 01-a.yaml", "applied 02-b.yml"},
		},
		"stops at first failure with kubectl exit code": {
			script:   `echo "applied $(basename $1)"; exit 3`,
			wantOut:  []string{"applied 01-a.yaml"},
			wantCode: 3,
		},
		"dry run flag": {
			script:  `echo "applied $(basename $1) $2"`,
			args:    []string{"--dry-run", "client"},
			wantOut: []string{"applied 01-a.yaml --dry-run=client"},
		},
		"invalid dry run": {
			script:   `echo unreachable`,
			args:     []string{"--dry-run", "maybe"},
			wantCode: 1,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			base := t.TempDir()
			svc := filepath.Join(base, "plex")
			require.NoError(t, os.Mkdir(svc, 0o755))

			for _, f := range []string{"02-b.yml", "01-a.yaml", "notes.txt"} {
				require.NoError(t, os.WriteFile(filepath.Join(svc, f), []byte("{}\n"), 0o600))
			}

			cfg := writeConfig(t, "apply:\n  kubectl:\n    command: sh\n    args: [-c, '"+tc.script+"', sh]\n")

			args := append([]string{"proxy", "apply", "plex/", "--config", cfg, "--dir", base}, tc.args...)

			output, err := execute(t, "", args...)
			assert.Equal(t, tc.wantCode, cli.ExitCode(err))

			for _, want := range tc.wantOut {
				assert.Contains(t, output, want)
			}

			if tc.wantCode == 3 {
				var exitErr *apply.ExitError
				require.ErrorAs(t, err, &exitErr)
				assert.Equal(t, "01-a.yaml", filepath.Base(exitErr.File))
				assert.NotContains(t, output, "02-b.yml")
			}

			assert.NotContains(t, output, "applied notes.txt")
		})
	}
}

//nolint:paralleltest // Commands replace the default logger.
func TestProxyApply_KubectlFlag(t *testing.T) {
	base := t.TempDir()
	svc := filepath.Join(base, "plex")
	require.NoError(t, os.Mkdir(svc, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(svc, "01-a.yaml"), []byte("{}\n"), 0o600))

	cfg := writeConfig(t, "")

	output, err := execute(t, "", "proxy", "apply", "plex", "--config", cfg, "--dir", base,
		"--kubectl", `sh -c 'echo "custom $(basename $1)"' sh`)
	require.NoError(t, err)
	assert.Contains(t, output, "custom 01-a.yaml")
}

//nolint:paralleltest // Commands replace the default logger.
func TestProxyApply_MissingService(t *testing.T) {
	cfg := writeConfig(t, "")

	_, err := execute(t, "", "proxy", "apply", "nope", "--config", cfg, "--dir", t.TempDir())
	require.ErrorIs(t, err, apply.ErrNotDirectory)
	assert.Equal(t, 1, cli.ExitCode(err))
}

//nolint:paralleltest // Commands replace the default logger.
func TestTranscribe(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "talk.mp4")
	require.NoError(t, os.WriteFile(video, []byte("video"), 0o600))

	tmp := filepath.Join(dir, "tmp")
	require.NoError(t, os.Mkdir(tmp, 0o700))

	cfg := writeConfig(t, `transcribe:
  tempDir: `+tmp+`
  ffmpeg:
    command: sh
    args: [-c, 'printf RIFF > "$9"', sh]
  whisper:
    command: sh
    args: [-c, 'printf " Hello from $3 \n" > "$7/$(basename "$1" .wav).txt"', sh]
`)

	out := filepath.Join(dir, "talk.txt")

	_, err := execute(t, "", "transcribe", video, out, "--config", cfg, "--model", "tiny")
	require.NoError(t, err)

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "Hello from tiny\n", string(got))

	leftovers, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

//nolint:paralleltest // Commands replace the default logger.
func TestTranscribe_Stdout(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "talk.mp4")
	require.NoError(t, os.WriteFile(video, []byte("video"), 0o600))

	cfg := writeConfig(t, `transcribe:
  ffmpeg:
    command: sh
    args: [-c, 'printf RIFF > "$9"', sh]
  whisper:
    command: sh
    args: [-c, 'printf "hi" > "$7/$(basename "$1" .wav).txt"', sh]
`)

	output, err := execute(t, "", "transcribe", video, "-", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, output, "hi\n")
}

//nolint:paralleltest // Commands replace the default logger.
func TestTranscribe_MissingVideo(t *testing.T) {
	cfg := writeConfig(t, "")

	_, err := execute(t, "", "transcribe", filepath.Join(t.TempDir(), "nope.mp4"), "--config", cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "video not found")
}

//nolint:paralleltest // Commands replace the default logger.
func TestConfigCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "opsbox", "config.yaml")

	_, err := execute(t, "", "config", "init", "--config", path)
	require.NoError(t, err)
	assert.FileExists(t, path)

	output, err := execute(t, "", "config", "show", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, output, "kind: Configuration")
	assert.Contains(t, output, "namespace: external")

	output, err = execute(t, "", "config", "schema")
	require.NoError(t, err)
	assert.Contains(t, output, `"apiVersion"`)

	_, err = execute(t, "", "config", "init", "--config", path, "--force")
	require.NoError(t, err)

	backups, err := filepath.Glob(path + ".*.old")
	require.NoError(t, err)
	assert.Len(t, backups, 1)
}

func TestCommandTree(t *testing.T) {
	t.Parallel()

	root := cli.NewRootCmd()

	for _, path := range [][]string{
		{"proxy", "generate"},
		{"proxy", "apply"},
		{"transcribe"},
		{"config", "init"},
		{"config", "show"},
		{"config", "schema"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}
