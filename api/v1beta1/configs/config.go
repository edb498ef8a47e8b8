// Package configs provides the opsbox Configuration kind.
package configs

import (
	"fmt"

	"github.com/invopop/jsonschema"

	_ "embed"

	"github.com/opsbox/opsbox/api"
	"github.com/opsbox/opsbox/api/v1beta1"
	"github.com/opsbox/opsbox/pkg/apply"
	"github.com/opsbox/opsbox/pkg/proxy"
	"github.com/opsbox/opsbox/pkg/transcribe"
	"github.com/opsbox/opsbox/pkg/yaml"
)

// Kind is the kind of the global configuration document.
const Kind = "Configuration"

//go:generate go run ../../../internal/schemagen -root ../../.. -o configs.v1beta1.json

// SchemaURL identifies the schema when compiling and publishing it.
const SchemaURL = "/configs.v1beta1.json"

var (
	//go:embed config.yaml
	defaultConfigYAML []byte

	// ValidKinds contains the valid kind values for global configurations.
	ValidKinds = []string{Kind}

	// DefaultValidator validates a configuration document against the schema
	// reflected from [Config].
	DefaultValidator = yaml.MustNewValidator(SchemaURL, Schema())

	_ v1beta1.Object = (*Config)(nil)
)

// Config is the opsbox configuration file.
//
//nolint:recvcheck // Must satisfy the jsonschema interface.
type Config struct {
	// Proxy configures `opsbox proxy generate` and `opsbox proxy apply`.
	Proxy *proxy.Config `json:"proxy,omitempty" jsonschema:"title=Proxy"`
	// Apply configures how manifests are applied to the cluster.
	Apply *apply.Config `json:"apply,omitempty" jsonschema:"title=Apply"`
	// Transcribe configures `opsbox transcribe`.
	Transcribe       *transcribe.Config `json:"transcribe,omitempty" jsonschema:"title=Transcribe"`
	v1beta1.TypeMeta `json:",inline"`
}

// New creates a [Config] with default values.
func New() *Config {
	c := &Config{
		TypeMeta: v1beta1.TypeMeta{
			APIVersion: v1beta1.APIVersion,
			Kind:       Kind,
		},
	}
	c.EnsureDefaults()

	return c
}

// EnsureDefaults initializes nil sections and their unset fields.
func (c *Config) EnsureDefaults() {
	if c.Proxy == nil {
		c.Proxy = proxy.NewConfig()
	} else {
		c.Proxy.EnsureDefaults()
	}

	if c.Apply == nil {
		c.Apply = apply.NewConfig()
	} else {
		c.Apply.EnsureDefaults()
	}

	if c.Transcribe == nil {
		c.Transcribe = transcribe.NewConfig()
	} else {
		c.Transcribe.EnsureDefaults()
	}
}

// Validate checks the document type and every section.
func (c *Config) Validate() error {
	if err := c.Check(ValidKinds...); err != nil {
		return err //nolint:wrapcheck // Already descriptive.
	}

	if c.Proxy != nil {
		if err := c.Proxy.Validate(); err != nil {
			return fmt.Errorf("proxy: %w", err)
		}
	}

	if c.Apply != nil {
		if err := c.Apply.Validate(); err != nil {
			return fmt.Errorf("apply: %w", err)
		}
	}

	if c.Transcribe != nil {
		if err := c.Transcribe.Validate(); err != nil {
			return fmt.Errorf("transcribe: %w", err)
		}
	}

	return nil
}

func (c Config) JSONSchemaExtend(jss *jsonschema.Schema) {
	v1beta1.ExtendSchema(jss, v1beta1.ValidAPIVersions, ValidKinds)
}

// MarshalYAML serializes the config to YAML.
func (c Config) MarshalYAML() ([]byte, error) {
	type alias Config

	b, err := api.MarshalYAML(alias(c))
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}

	return b, nil
}

// Schema returns the JSON schema for [Config].
func Schema() []byte {
	return yaml.MustGenerateSchema(&Config{})
}

// DefaultYAML returns the commented default configuration.
func DefaultYAML() []byte {
	return defaultConfigYAML
}

// WriteDefault writes the default configuration to path. An existing file is
// kept unless force is set, in which case it is backed up first.
func WriteDefault(path string, force bool) error {
	err := api.WriteDefaultFile(path, defaultConfigYAML, force, "configuration")
	if err != nil {
		return fmt.Errorf("write default config: %w", err)
	}

	return nil
}

// GetPath returns the path to the global configuration file.
func GetPath() string {
	return api.GetConfigPath("config.yaml")
}
