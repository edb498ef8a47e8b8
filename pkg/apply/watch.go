package apply

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/opsbox/opsbox/pkg/log"
)

// Watch applies the service once and then re-applies selected manifests
// whose file events pass the reload expression, until ctx is cancelled.
// Failures after startup are logged and watching continues.
func (a *Applier) Watch(ctx context.Context, service string) error {
	dir, err := a.ServiceDir(service)
	if err != nil {
		return err
	}

	ctx = log.WithService(ctx, filepath.Base(dir))
	logger := log.WithContext(ctx)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	defer func() {
		if err := watcher.Close(); err != nil {
			logger.ErrorContext(ctx, "close watcher", slog.Any("error", err))
		}
	}()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	if err := a.Apply(ctx, service); err != nil {
		logger.ErrorContext(ctx, "initial apply failed", slog.Any("error", err))
	}

	logger.InfoContext(ctx, "watching for changes", slog.String("dir", dir))

	timer := time.NewTimer(a.debounce)
	timer.Stop()

	defer timer.Stop()

	pending := map[string]bool{}

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			reload, err := a.reload.EvalBool(map[string]any{
				"file": evt.Name,
				"op":   int64(evt.Op),
			})
			if err != nil {
				logger.ErrorContext(ctx, "evaluate reload expression", slog.Any("error", err))

				continue
			}

			logger.DebugContext(ctx, "file event",
				slog.String("file", evt.Name),
				slog.String("op", evt.Op.String()),
				slog.Bool("reload", reload),
			)

			if reload {
				pending[evt.Name] = true
				timer.Reset(a.debounce)
			}

		case <-timer.C:
			a.reapply(ctx, dir, pending)
			clear(pending)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			logger.ErrorContext(ctx, "watcher error", slog.Any("error", err))
		}
	}
}

// reapply applies the pending files that are still selected, in order.
func (a *Applier) reapply(ctx context.Context, dir string, pending map[string]bool) {
	logger := log.WithContext(ctx)

	files, err := a.Manifests(dir)
	if err != nil {
		logger.ErrorContext(ctx, "select manifests", slog.Any("error", err))

		return
	}

	changed := slices.DeleteFunc(files, func(f string) bool {
		return !pending[f]
	})
	if len(changed) == 0 {
		logger.DebugContext(ctx, "no selected manifests changed",
			slog.Any("files", slices.Sorted(maps.Keys(pending))),
		)

		return
	}

	if err := a.ApplyFiles(ctx, dir, changed); err != nil {
		logger.ErrorContext(ctx, "apply failed", slog.Any("error", err))
	}
}
