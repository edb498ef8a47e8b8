package proxy

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// Generated file names, in apply order.
const (
	FileServiceEndpoints = "01-service-endpoints.yaml"
	FileTransport        = "02-transport.yaml"
	FileIngressRoute     = "03-ingressroute.yaml"
)

// ManagedFiles lists every file name the generator may write.
var ManagedFiles = []string{FileServiceEndpoints, FileTransport, FileIngressRoute}

// ErrTemplate is returned when templates cannot be loaded or executed.
var ErrTemplate = errors.New("template")

//go:embed templates/*.tmpl
var templatesFS embed.FS

// templateFiles maps each generated file to its template.
var templateFiles = map[string]string{
	FileServiceEndpoints: "service-endpoints.tmpl",
	FileTransport:        "transport.tmpl",
	FileIngressRoute:     "ingressroute.tmpl",
}

// Settings are the cluster-wide values shared by every service.
type Settings struct {
	Namespace    string
	EntryPoint   string
	CertResolver string
}

// File is a rendered manifest.
type File struct {
	Name    string
	Content []byte
}

// Renderer renders the manifests for a [Service].
type Renderer struct {
	tmpl     *template.Template
	settings Settings
}

// NewRenderer loads the built-in templates. When templateDir is set, any
// *.tmpl file in it replaces the built-in template of the same name.
func NewRenderer(settings Settings, templateDir string) (*Renderer, error) {
	tmpl, err := template.New("proxy").
		Option("missingkey=error").
		Funcs(sprig.TxtFuncMap()).
		ParseFS(templatesFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("%w: parse built-in templates: %w", ErrTemplate, err)
	}

	if templateDir != "" {
		tmpl, err = parseOverrides(tmpl, os.DirFS(templateDir))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrTemplate, templateDir, err)
		}
	}

	return &Renderer{tmpl: tmpl, settings: settings}, nil
}

func parseOverrides(tmpl *template.Template, fsys fs.FS) (*template.Template, error) {
	matches, err := fs.Glob(fsys, "*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}

	if len(matches) == 0 {
		return tmpl, nil
	}

	tmpl, err = tmpl.ParseFS(fsys, matches...)
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	return tmpl, nil
}

type templateData struct {
	Service
	Settings
}

// Render returns the files for svc in file name order. The transport file is
// only rendered for secure back-ends.
func (r *Renderer) Render(svc Service) ([]File, error) {
	data := templateData{Service: svc, Settings: r.settings}

	files := make([]File, 0, len(ManagedFiles))
	for _, name := range ManagedFiles {
		if name == FileTransport && !svc.Secure() {
			continue
		}

		var buf bytes.Buffer

		err := r.tmpl.ExecuteTemplate(&buf, templateFiles[name], data)
		if err != nil {
			return nil, fmt.Errorf("%w: render %s for %q: %w", ErrTemplate, name, svc.Name, err)
		}

		files = append(files, File{
			Name:    name,
			Content: []byte(strings.TrimRight(buf.String(), " \t\r\n") + "\n"),
		})
	}

	return files, nil
}
