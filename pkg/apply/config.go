package apply

import (
	"fmt"

	"github.com/opsbox/opsbox/pkg/execs"
	"github.com/opsbox/opsbox/pkg/expr"
)

const (
	// DefaultSelect selects every YAML file in the service directory.
	DefaultSelect = `files.filter(f, pathExt(f) in [".yaml", ".yml"])`

	// DefaultReload re-applies a manifest when it is written or created.
	DefaultReload = `op.has(fs.WRITE, fs.CREATE)`
)

// Config defines how manifests are selected and applied.
type Config struct {
	// Kubectl is the command run for each manifest; the file path is
	// appended to its arguments.
	Kubectl *execs.Command `json:"kubectl,omitempty" jsonschema:"title=Kubectl Command"`
	// Select is a CEL expression returning the manifests to apply.
	Select string `json:"select,omitempty" jsonschema:"title=Select Expression"`
	// Reload is a CEL expression deciding whether a file event in watch mode
	// re-applies the file.
	Reload string `json:"reload,omitempty" jsonschema:"title=Reload Expression"`
}

func NewConfig() *Config {
	c := &Config{}
	c.EnsureDefaults()

	return c
}

// DefaultKubectl returns `kubectl apply -f`, passing through the caller's
// KUBE* variables such as KUBECONFIG.
func DefaultKubectl() *execs.Command {
	cmd := execs.NewCommand("kubectl", "apply", "-f")
	cmd.AddEnvFrom(execs.EnvFromSource{
		CallerRef: &execs.CallerRef{Pattern: "^KUBE"},
	})

	return cmd
}

// EnsureDefaults sets unset fields to their default values.
func (c *Config) EnsureDefaults() {
	if c.Kubectl == nil {
		c.Kubectl = DefaultKubectl()
	}
	if c.Select == "" {
		c.Select = DefaultSelect
	}
	if c.Reload == "" {
		c.Reload = DefaultReload
	}
}

// Validate checks the command and compiles both expressions.
func (c *Config) Validate() error {
	if c.Kubectl != nil {
		if err := c.Kubectl.Validate(); err != nil {
			return fmt.Errorf("kubectl: %w", err)
		}
	}

	if c.Select != "" {
		if _, err := compileSelector(c.Select); err != nil {
			return fmt.Errorf("select: %w", err)
		}
	}

	if c.Reload != "" {
		if _, err := compileReload(c.Reload); err != nil {
			return fmt.Errorf("reload: %w", err)
		}
	}

	return nil
}

func compileSelector(expression string) (*expr.Program, error) {
	env, err := expr.NewSelectorEnvironment()
	if err != nil {
		return nil, err //nolint:wrapcheck // Already wrapped.
	}

	return env.Compile(expression) //nolint:wrapcheck // Already wrapped.
}

func compileReload(expression string) (*expr.Program, error) {
	env, err := expr.NewReloadEnvironment()
	if err != nil {
		return nil, err //nolint:wrapcheck // Already wrapped.
	}

	return env.Compile(expression) //nolint:wrapcheck // Already wrapped.
}
