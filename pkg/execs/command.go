package execs

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"

	"github.com/mattn/go-shellwords"
)

var (
	// ErrCommandExecution is returned when command execution fails.
	ErrCommandExecution = errors.New("run")

	// ErrEmptyCommand is returned when a command is empty.
	ErrEmptyCommand = errors.New("empty command")
)

// essentialVars are always passed through from the caller.
var essentialVars = []string{"PATH", "HOME", "USER", "TERM", "COLORTERM"}

// Result represents the result of a command execution.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// EnvFromSource represents a source for inheriting environment variables.
type EnvFromSource struct {
	// CallerRef specifies how to inherit environment variables from the caller process.
	CallerRef *CallerRef `json:"callerRef,omitempty" jsonschema:"title=Caller Reference"`
}

// CallerRef represents a reference to environment variables from the caller process.
type CallerRef struct {
	compiled *LazyRegexp

	// Pattern is a regex pattern for matching environment variable names.
	Pattern string `json:"pattern,omitempty" jsonschema:"title=Pattern,format=regex"`
	// Name is the specific environment variable name to inherit.
	Name string `json:"name,omitempty" jsonschema:"title=Name"`
}

// Regexp returns the compiled Pattern, or nil if no pattern is set.
func (c *CallerRef) Regexp() (*regexp.Regexp, error) {
	if c.compiled == nil {
		c.compiled = NewLazyRegexp(c.Pattern)
	}

	return c.compiled.Get()
}

// EnvVar represents an environment variable definition.
type EnvVar struct {
	// ValueFrom specifies a source for the environment variable value.
	ValueFrom *EnvVarSource `json:"valueFrom,omitempty" jsonschema:"title=Value From"`
	// Name is the environment variable name.
	Name string `json:"name" jsonschema:"title=Name"`
	// Value is the environment variable value.
	Value string `json:"value,omitempty" jsonschema:"title=Value"`
}

// EnvVarSource represents a source for an environment variable value.
type EnvVarSource struct {
	// CallerRef specifies how to get the value from the caller process environment.
	CallerRef *CallerRef `json:"callerRef,omitempty" jsonschema:"title=Caller Reference"`
}

// Command describes an external program and the environment it runs with.
type Command struct {
	baseEnv map[string]string

	// Command is the executable name or path.
	Command string `json:"command" jsonschema:"title=Command,pattern=^\\S+$"`
	// Args are passed before any per-invocation arguments.
	Args []string `json:"args,omitempty" jsonschema:"title=Arguments" yaml:"args,flow,omitempty"`
	// Env contains environment variable definitions.
	Env []EnvVar `json:"env,omitempty" jsonschema:"title=Environment Variables"`
	// EnvFrom contains sources for inheriting environment variables.
	EnvFrom []EnvFromSource `json:"envFrom,omitempty" jsonschema:"title=Environment Variables From"`
}

// NewCommand creates a new [Command] for the given program and arguments.
func NewCommand(command string, args ...string) *Command {
	return &Command{
		Command: command,
		Args:    args,
	}
}

// Parse splits a shell-quoted command line into a [Command], e.g.
// `kubectl --context "home lab"`.
func Parse(line string) (*Command, error) {
	words, err := shellwords.Parse(line)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", line, err)
	}

	if len(words) == 0 {
		return nil, ErrEmptyCommand
	}

	var args []string
	if len(words) > 1 {
		args = words[1:]
	}

	return NewCommand(words[0], args...), nil
}

// SetBaseEnv sets the caller environment, in [os.Environ] form, that env and
// envFrom are resolved against. When unset, [os.Environ] is used.
func (c *Command) SetBaseEnv(baseEnv []string) {
	c.baseEnv = make(map[string]string, len(baseEnv))
	for _, kv := range baseEnv {
		key, value, ok := strings.Cut(kv, "=")
		if ok {
			c.baseEnv[key] = value
		}
	}
}

// AddEnvVar adds a single environment variable.
func (c *Command) AddEnvVar(envVar EnvVar) {
	c.Env = append(c.Env, envVar)
}

// AddEnvFrom adds environment variable sources.
func (c *Command) AddEnvFrom(envFrom ...EnvFromSource) {
	c.EnvFrom = append(c.EnvFrom, envFrom...)
}

// Validate checks the command and compiles every envFrom pattern.
func (c *Command) Validate() error {
	if c.Command == "" {
		return ErrEmptyCommand
	}

	for i, src := range c.EnvFrom {
		if src.CallerRef == nil {
			continue
		}

		_, err := src.CallerRef.Regexp()
		if err != nil {
			return fmt.Errorf("envFrom[%d]: %w", i, err)
		}
	}

	return nil
}

// GetEnv returns the environment for the command, sorted by name.
func (c *Command) GetEnv() []string {
	if c.baseEnv == nil {
		c.SetBaseEnv(os.Environ())
	}

	envMap := make(map[string]string)
	for _, key := range essentialVars {
		if value, ok := c.baseEnv[key]; ok {
			envMap[key] = value
		}
	}

	c.applyEnvFrom(envMap)
	c.applyEnv(envMap)

	env := make([]string, 0, len(envMap))
	for key, value := range envMap {
		env = append(env, key+"="+value)
	}

	slices.Sort(env)

	return env
}

func (c *Command) String() string {
	return strings.Join(append([]string{c.Command}, c.Args...), " ")
}

func (c *Command) applyEnvFrom(envMap map[string]string) {
	for _, src := range c.EnvFrom {
		if src.CallerRef == nil {
			continue
		}

		re, err := src.CallerRef.Regexp()
		if err == nil && re != nil {
			for key, value := range c.baseEnv {
				if re.MatchString(key) {
					envMap[key] = value
				}
			}
		}

		if name := src.CallerRef.Name; name != "" {
			if value, ok := c.baseEnv[name]; ok {
				envMap[name] = value
			}
		}
	}
}

func (c *Command) applyEnv(envMap map[string]string) {
	for _, envVar := range c.Env {
		if envVar.Name == "" {
			continue
		}

		if envVar.Value != "" {
			envMap[envVar.Name] = envVar.Value

			continue
		}

		if envVar.ValueFrom == nil || envVar.ValueFrom.CallerRef == nil {
			continue
		}

		if value, ok := c.baseEnv[envVar.ValueFrom.CallerRef.Name]; ok {
			envMap[envVar.Name] = value
		}
	}
}
