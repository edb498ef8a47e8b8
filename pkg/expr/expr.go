package expr

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/google/cel-go/cel"
)

// ErrResultType is returned when an expression evaluates to an unexpected type.
var ErrResultType = errors.New("unexpected result type")

// Protect CEL environment creation and compilation from concurrent access.
var celMutex sync.Mutex

// Environment wraps a [*cel.Env] with the opsbox function library.
type Environment struct {
	env *cel.Env
}

// NewEnvironment creates a new [Environment] with the given variables.
func NewEnvironment(opts ...cel.EnvOption) (*Environment, error) {
	celMutex.Lock()
	defer celMutex.Unlock()

	env, err := cel.NewEnv(append(opts, cel.Lib(&lib{}))...)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}

	return &Environment{env: env}, nil
}

// NewSelectorEnvironment creates the [Environment] used to select manifests.
func NewSelectorEnvironment() (*Environment, error) {
	return NewEnvironment(
		cel.Variable("files", cel.ListType(cel.StringType)),
		cel.Variable("dir", cel.StringType),
		cel.Variable("service", cel.StringType),
	)
}

// NewReloadEnvironment creates the [Environment] used to filter watch events.
func NewReloadEnvironment() (*Environment, error) {
	return NewEnvironment(
		cel.Variable("file", cel.StringType),
		cel.Variable("op", cel.IntType),
	)
}

// Compile compiles a CEL expression into a [Program].
func (e *Environment) Compile(expression string) (*Program, error) {
	celMutex.Lock()
	defer celMutex.Unlock()

	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile expression: %w", issues.Err())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("create program: %w", err)
	}

	return &Program{program: program, source: expression}, nil
}

// Program is a compiled expression.
type Program struct {
	program cel.Program
	source  string
}

func (p *Program) String() string {
	return p.source
}

// EvalStrings evaluates the program and converts the result to a list of
// strings.
func (p *Program) EvalStrings(vars map[string]any) ([]string, error) {
	out, _, err := p.program.Eval(vars)
	if err != nil {
		return nil, fmt.Errorf("evaluate %q: %w", p.source, err)
	}

	native, err := out.ConvertToNative(reflect.TypeFor[[]string]())
	if err != nil {
		return nil, fmt.Errorf("%w: %q: want list<string>, got %s", ErrResultType, p.source, out.Type().TypeName())
	}

	files, ok := native.([]string)
	if !ok {
		return nil, fmt.Errorf("%w: %q: want list<string>", ErrResultType, p.source)
	}

	return files, nil
}

// EvalBool evaluates the program and converts the result to a bool.
func (p *Program) EvalBool(vars map[string]any) (bool, error) {
	out, _, err := p.program.Eval(vars)
	if err != nil {
		return false, fmt.Errorf("evaluate %q: %w", p.source, err)
	}

	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("%w: %q: want bool, got %s", ErrResultType, p.source, out.Type().TypeName())
	}

	return b, nil
}
