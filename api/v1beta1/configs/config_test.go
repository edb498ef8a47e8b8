package configs_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsbox/opsbox/api/v1beta1"
	"github.com/opsbox/opsbox/api/v1beta1/configs"
	"github.com/opsbox/opsbox/pkg/apply"
	"github.com/opsbox/opsbox/pkg/config"
	"github.com/opsbox/opsbox/pkg/proxy"
	"github.com/opsbox/opsbox/pkg/transcribe"
)

func TestNew(t *testing.T) {
	t.Parallel()

	cfg := configs.New()

	assert.Equal(t, v1beta1.APIVersion, cfg.GetAPIVersion())
	assert.Equal(t, configs.Kind, cfg.GetKind())
	require.NotNil(t, cfg.Proxy)
	require.NotNil(t, cfg.Apply)
	require.NotNil(t, cfg.Transcribe)
	assert.Equal(t, proxy.DefaultNamespace, cfg.Proxy.Namespace)
	assert.Equal(t, apply.DefaultSelect, cfg.Apply.Select)
	assert.Equal(t, transcribe.DefaultModel, cfg.Transcribe.Model)
	require.NoError(t, cfg.Validate())
}

func TestConfig_EnsureDefaults(t *testing.T) {
	t.Parallel()

	cfg := &configs.Config{
		Proxy: &proxy.Config{Namespace: "edge"},
	}
	cfg.EnsureDefaults()

	assert.Equal(t, "edge", cfg.Proxy.Namespace)
	assert.Equal(t, proxy.DefaultEntryPoint, cfg.Proxy.EntryPoint)
	assert.NotNil(t, cfg.Apply)
	assert.NotNil(t, cfg.Transcribe)
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		mutate  func(*configs.Config)
		wantErr error
		errMsg  string
	}{
		"defaults": {
			mutate: func(*configs.Config) {},
		},
		"wrong kind": {
			mutate:  func(c *configs.Config) { c.Kind = "Policy" },
			wantErr: v1beta1.ErrUnknownKind,
		},
		"wrong version": {
			mutate:  func(c *configs.Config) { c.APIVersion = "opsbox.dev/v1" },
			wantErr: v1beta1.ErrUnknownAPIVersion,
		},
		"bad services": {
			mutate:  func(c *configs.Config) { c.Proxy.Services = "Name,Source\n" },
			wantErr: proxy.ErrMissingColumn,
			errMsg:  "proxy: services",
		},
		"bad select": {
			mutate: func(c *configs.Config) { c.Apply.Select = "files.(" },
			errMsg: "apply: select",
		},
		"bad channels": {
			mutate:  func(c *configs.Config) { c.Transcribe.Channels = 6 },
			wantErr: transcribe.ErrInvalidConfig,
			errMsg:  "transcribe:",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			cfg := configs.New()
			tc.mutate(cfg)

			err := cfg.Validate()
			if tc.wantErr == nil && tc.errMsg == "" {
				require.NoError(t, err)

				return
			}

			require.Error(t, err)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
			}
			if tc.errMsg != "" {
				assert.Contains(t, err.Error(), tc.errMsg)
			}
		})
	}
}

func TestDefaultYAML(t *testing.T) {
	t.Parallel()

	cfg, err := config.NewLoaderFromBytes(configs.DefaultYAML(), configs.New, configs.DefaultValidator).Load()
	require.NoError(t, err)
	assert.NotContains(t, string(configs.DefaultYAML()), "$schema=")

	want := configs.New()
	assert.Equal(t, want.Proxy, cfg.Proxy)
	assert.Equal(t, want.Apply.Select, cfg.Apply.Select)
	assert.Equal(t, want.Apply.Reload, cfg.Apply.Reload)
	assert.Equal(t, want.Apply.Kubectl.String(), cfg.Apply.Kubectl.String())
	assert.Equal(t, want.Transcribe.Model, cfg.Transcribe.Model)
	assert.Equal(t, want.Transcribe.SampleRate, cfg.Transcribe.SampleRate)
}

func TestSchema(t *testing.T) {
	t.Parallel()

	var schema map[string]any
	require.NoError(t, json.Unmarshal(configs.Schema(), &schema))

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)

	for _, key := range []string{"apiVersion", "kind", "proxy", "apply", "transcribe"} {
		assert.Contains(t, props, key)
	}

	assert.NotContains(t, props, "ffmpeg")

	kind, ok := props["kind"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{configs.Kind}, kind["enum"])
}

func TestConfig_MarshalYAML(t *testing.T) {
	t.Parallel()

	b, err := configs.New().MarshalYAML()
	require.NoError(t, err)

	cfg, err := config.NewLoaderFromBytes(b, configs.New, configs.DefaultValidator).Load()
	require.NoError(t, err)
	assert.Equal(t, configs.New().Proxy, cfg.Proxy)
}

func TestWriteDefault(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		setup      func(t *testing.T, path string)
		force      bool
		wantBackup bool
		wantErr    string
	}{
		"new file": {},
		"existing file is kept": {
			setup: func(t *testing.T, path string) {
				t.Helper()
				require.NoError(t, os.WriteFile(path, []byte("existing"), 0o600))
			},
		},
		"force backs up existing file": {
			setup: func(t *testing.T, path string) {
				t.Helper()
				require.NoError(t, os.WriteFile(path, []byte("existing"), 0o600))
			},
			force:      true,
			wantBackup: true,
		},
		"path is directory": {
			setup: func(t *testing.T, path string) {
				t.Helper()
				require.NoError(t, os.Mkdir(path, 0o700))
			},
			wantErr: "path is a directory",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			path := filepath.Join(dir, "opsbox", "config.yaml")
			require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))

			var existing []byte
			if tc.setup != nil {
				tc.setup(t, path)
				existing, _ = os.ReadFile(path) //nolint:errcheck // May be a directory.
			}

			err := configs.WriteDefault(path, tc.force)
			if tc.wantErr != "" {
				require.ErrorContains(t, err, tc.wantErr)

				return
			}

			require.NoError(t, err)

			got, err := os.ReadFile(path)
			require.NoError(t, err)

			if existing != nil && !tc.force {
				assert.Equal(t, existing, got)
			} else {
				assert.Equal(t, configs.DefaultYAML(), got)
			}

			backups, err := filepath.Glob(path + ".*.old")
			require.NoError(t, err)

			if tc.wantBackup {
				require.Len(t, backups, 1)

				old, err := os.ReadFile(backups[0])
				require.NoError(t, err)
				assert.Equal(t, existing, old)
			} else {
				assert.Empty(t, backups)
			}
		})
	}
}

func TestGetPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")

	assert.Equal(t, filepath.Join("/xdg", "opsbox", "config.yaml"), configs.GetPath())
}
