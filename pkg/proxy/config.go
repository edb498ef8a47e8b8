package proxy

import (
	"fmt"
	"os"
	"strings"
)

const (
	DefaultBaseDir      = "${HOME}/reverse-proxy"
	DefaultNamespace    = "external"
	DefaultEntryPoint   = "websecure"
	DefaultCertResolver = "cloudflare"
	DefaultServices     = "Name,Source,Protocol,IP,Port\n#FILL IN THIS SECTION WITH YOUR REQUIRED PROXIES\n"
)

// Config defines the proxy generator and applier settings.
type Config struct {
	// BaseDir holds one directory per service. Environment variables are
	// expanded.
	BaseDir string `json:"baseDir,omitempty" jsonschema:"title=Base Directory,default=${HOME}/reverse-proxy"`
	// Namespace for every generated resource.
	Namespace string `json:"namespace,omitempty" jsonschema:"title=Namespace,default=external"`
	// EntryPoint is the Traefik entry point the IngressRoute binds to.
	EntryPoint string `json:"entryPoint,omitempty" jsonschema:"title=Entry Point,default=websecure"`
	// CertResolver is the Traefik ACME resolver used for TLS.
	CertResolver string `json:"certResolver,omitempty" jsonschema:"title=Certificate Resolver,default=cloudflare"`
	// TemplateDir optionally overrides the built-in templates.
	TemplateDir string `json:"templateDir,omitempty" jsonschema:"title=Template Directory"`
	// Services is the CSV service table, header included.
	Services string `json:"services,omitempty" jsonschema:"title=Services"`
}

func NewConfig() *Config {
	c := &Config{}
	c.EnsureDefaults()

	return c
}

// EnsureDefaults sets unset fields to their default values.
func (c *Config) EnsureDefaults() {
	if c.BaseDir == "" {
		c.BaseDir = DefaultBaseDir
	}
	if c.Namespace == "" {
		c.Namespace = DefaultNamespace
	}
	if c.EntryPoint == "" {
		c.EntryPoint = DefaultEntryPoint
	}
	if c.CertResolver == "" {
		c.CertResolver = DefaultCertResolver
	}
	if c.Services == "" {
		c.Services = DefaultServices
	}
}

// Validate checks the settings and the service table.
func (c *Config) Validate() error {
	if _, err := ParseCSV(strings.NewReader(c.Services)); err != nil {
		return fmt.Errorf("services: %w", err)
	}

	return nil
}

// Dir returns BaseDir with environment variables expanded.
func (c *Config) Dir() string {
	return os.ExpandEnv(c.BaseDir)
}

// TemplatePath returns TemplateDir with environment variables expanded.
func (c *Config) TemplatePath() string {
	return os.ExpandEnv(c.TemplateDir)
}

// Settings returns the renderer settings.
func (c *Config) Settings() Settings {
	return Settings{
		Namespace:    c.Namespace,
		EntryPoint:   c.EntryPoint,
		CertResolver: c.CertResolver,
	}
}
