package proxy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aymanbagabas/go-udiff"

	"github.com/opsbox/opsbox/pkg/kube"
	"github.com/opsbox/opsbox/pkg/log"
)

// FileResult describes what happened, or would happen, to one file.
type FileResult struct {
	Path    string
	Diff    string
	Content []byte
	Changed bool
	// Removed is set for a previously generated file the service no longer
	// needs, e.g. a transport after switching to http.
	Removed bool
}

// Result is the outcome of generating one service.
type Result struct {
	Dir     string
	Service Service
	Files   []FileResult
}

// Changed reports whether any file differs from what is on disk.
func (r Result) Changed() bool {
	for _, f := range r.Files {
		if f.Changed {
			return true
		}
	}

	return false
}

// Generator writes rendered manifests into per-service directories.
type Generator struct {
	renderer *Renderer
	baseDir  string
	lint     bool
	dryRun   bool
}

// GeneratorOpt configures a [Generator].
type GeneratorOpt func(*Generator)

// WithLint validates every rendered resource before anything is written.
func WithLint(lint bool) GeneratorOpt {
	return func(g *Generator) {
		g.lint = lint
	}
}

// WithDryRun computes results without touching the file system.
func WithDryRun(dryRun bool) GeneratorOpt {
	return func(g *Generator) {
		g.dryRun = dryRun
	}
}

func NewGenerator(renderer *Renderer, baseDir string, opts ...GeneratorOpt) *Generator {
	g := &Generator{
		renderer: renderer,
		baseDir:  baseDir,
	}
	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Generate renders every service and writes its files to
// <baseDir>/<name>/. All services are rendered (and linted) before the
// first write.
func (g *Generator) Generate(ctx context.Context, services []Service) ([]Result, error) {
	rendered := make([][]File, len(services))
	for i, svc := range services {
		files, err := g.renderer.Render(svc)
		if err != nil {
			return nil, err
		}

		if g.lint {
			err = lintFiles(svc, files)
			if err != nil {
				return nil, err
			}
		}

		rendered[i] = files
	}

	results := make([]Result, 0, len(services))
	for i, svc := range services {
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("generate: %w", err)
		}

		result, err := g.write(svc, rendered[i])
		if err != nil {
			return results, err
		}

		results = append(results, result)

		if !g.dryRun {
			log.WithContext(log.WithService(ctx, svc.Name)).InfoContext(ctx, "wrote manifests",
				slog.String("dir", result.Dir),
				slog.Bool("changed", result.Changed()),
			)
		}
	}

	return results, nil
}

func (g *Generator) write(svc Service, files []File) (Result, error) {
	result := Result{
		Service: svc,
		Dir:     filepath.Join(g.baseDir, svc.Name),
	}

	if !g.dryRun {
		if err := os.MkdirAll(result.Dir, 0o755); err != nil {
			return result, fmt.Errorf("create %s: %w", result.Dir, err)
		}
	}

	wanted := make(map[string]bool, len(files))
	for _, f := range files {
		wanted[f.Name] = true

		path := filepath.Join(result.Dir, f.Name)

		old, err := readExisting(path)
		if err != nil {
			return result, err
		}

		fr := FileResult{
			Path:    path,
			Content: f.Content,
			Changed: !bytes.Equal(old, f.Content),
		}
		if fr.Changed {
			fr.Diff = udiff.Unified(path, path, string(old), string(f.Content))
		}

		if fr.Changed && !g.dryRun {
			if err := os.WriteFile(path, f.Content, 0o644); err != nil { //nolint:gosec // G306: Manifests are not secret.
				return result, fmt.Errorf("write %s: %w", path, err)
			}
		}

		result.Files = append(result.Files, fr)
	}

	for _, name := range ManagedFiles {
		if wanted[name] {
			continue
		}

		path := filepath.Join(result.Dir, name)

		old, err := readExisting(path)
		if err != nil {
			return result, err
		}
		if old == nil {
			continue
		}

		result.Files = append(result.Files, FileResult{
			Path:    path,
			Changed: true,
			Removed: true,
			Diff:    udiff.Unified(path, path, string(old), ""),
		})

		if !g.dryRun {
			if err := os.Remove(path); err != nil {
				return result, fmt.Errorf("remove %s: %w", path, err)
			}
		}
	}

	return result, nil
}

func readExisting(path string) ([]byte, error) {
	b, err := os.ReadFile(path) //nolint:gosec // G304: Path is built from the base dir.
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return b, nil
}

func lintFiles(svc Service, files []File) error {
	var resources []*kube.Resource
	for _, f := range files {
		docs, err := kube.SplitYAML(f.Name, f.Content)
		if err != nil {
			return fmt.Errorf("service %q: %w", svc.Name, err)
		}

		resources = append(resources, docs...)
	}

	if err := kube.Lint(resources); err != nil {
		return fmt.Errorf("service %q: %w", svc.Name, err)
	}

	return nil
}
