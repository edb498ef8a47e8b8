package log_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsbox/opsbox/pkg/log"
)

func TestCreateHandlerWithStrings(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		level   string
		format  string
		wantErr error
	}{
		"text info":        {level: "info", format: "text"},
		"json debug":       {level: "debug", format: "json"},
		"logfmt warning":   {level: "WARNING", format: "logfmt"},
		"unknown level":    {level: "loud", format: "text", wantErr: log.ErrUnknownLogLevel},
		"unknown format":   {level: "info", format: "xml", wantErr: log.ErrUnknownLogFormat},
		"upper case input": {level: "ERROR", format: "JSON"},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			h, err := log.CreateHandlerWithStrings(&bytes.Buffer{}, tc.level, tc.format)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				require.ErrorIs(t, err, log.ErrInvalidArgument)
				assert.Nil(t, h)

				return
			}

			require.NoError(t, err)
			assert.NotNil(t, h)
		})
	}
}

func TestCreateHandler_JSONRespectsLevel(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	logger := slog.New(log.CreateHandler(buf, slog.LevelWarn, log.FormatJSON))

	logger.Info("dropped")
	logger.Warn("kept", slog.String("service", "grafana"))

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, `"msg":"kept"`)
	assert.Contains(t, out, `"service":"grafana"`)
}

func TestWithContext(t *testing.T) {
	t.Parallel()

	assert.Equal(t, slog.Default(), log.WithContext(context.Background()))

	logger := slog.New(slog.DiscardHandler)
	ctx := log.NewContext(context.Background(), logger)
	assert.Same(t, logger, log.WithContext(ctx))
}

func TestWithService(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger := slog.New(log.CreateHandler(&buf, slog.LevelInfo, log.FormatJSON))
	ctx := log.NewContext(context.Background(), logger)

	ctx = log.WithService(ctx, "plex")
	ctx = log.WithService(ctx, "plex")
	log.WithContext(ctx).Info("applying")

	out := buf.String()
	assert.Contains(t, out, `"service":"plex"`)
	assert.Equal(t, 1, strings.Count(out, `"service"`))

	buf.Reset()
	log.WithContext(log.WithService(ctx, "nas")).Info("applying")
	assert.Contains(t, buf.String(), `"service":"nas"`)
}
