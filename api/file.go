// Package api holds the file helpers shared by every opsbox configuration
// kind.
package api

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/opsbox/opsbox/pkg/yaml"
)

// AppName names the per-user configuration directory.
const AppName = "opsbox"

// GetConfigPath returns the path to filename in the opsbox config directory:
// $XDG_CONFIG_HOME/opsbox, then ~/.config/opsbox, then a temp directory.
func GetConfigPath(filename string) string {
	if xdgHome := os.Getenv("XDG_CONFIG_HOME"); xdgHome != "" {
		return filepath.Join(xdgHome, AppName, filename)
	}

	usrHome, err := os.UserHomeDir()
	if err == nil && usrHome != "" {
		return filepath.Join(usrHome, ".config", AppName, filename)
	}

	tmpPath := filepath.Join(os.TempDir(), AppName, filename)

	slog.Warn("could not determine user config directory, using temp path",
		slog.String("path", tmpPath),
		slog.Any("error", err),
	)

	return tmpPath
}

// ReadFile reads a regular file.
func ReadFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}

	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s: not a regular file", path)
	}

	data, err := os.ReadFile(path) //nolint:gosec // G304: Config paths are user supplied.
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	return data, nil
}

// MarshalYAML serializes an object with the opsbox YAML style.
func MarshalYAML(obj any) ([]byte, error) {
	b, err := yaml.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("marshal yaml: %w", err)
	}

	return b, nil
}

// WriteDefaultFile writes defaultData to path unless a file already exists.
// With force, an existing file is renamed to <name>.<unixnano>.old first.
func WriteDefaultFile(path string, defaultData []byte, force bool, kind string) error {
	exists := false

	info, err := os.Stat(path)
	switch {
	case err == nil && info.Mode().IsRegular():
		exists = true
	case err == nil && info.IsDir():
		return fmt.Errorf("%s: path is a directory", path)
	case err == nil:
		return fmt.Errorf("%s: unknown file state", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create directories: %w", err)
	}

	if exists && !force {
		slog.Debug("file already exists, skipping write",
			slog.String("type", kind),
			slog.String("path", path),
		)

		return nil
	}

	if exists {
		backupPath := fmt.Sprintf("%s.%d.old", path, time.Now().UnixNano())
		slog.Info("backing up existing file",
			slog.String("type", kind),
			slog.String("path", backupPath),
		)

		if err := os.Rename(path, backupPath); err != nil {
			return fmt.Errorf("back up %s file: %w", kind, err)
		}
	}

	slog.Info("write default file",
		slog.String("type", kind),
		slog.String("path", path),
	)

	if err := os.WriteFile(path, defaultData, 0o600); err != nil {
		return fmt.Errorf("write %s file: %w", kind, err)
	}

	return nil
}
