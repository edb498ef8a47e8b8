package yaml

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/invopop/jsonschema"
)

// SchemaGenerator reflects a JSON schema from Go types.
// Uses [github.com/invopop/jsonschema].
type SchemaGenerator struct {
	v          any
	modulePath string
	dirs       []string
}

// NewSchemaGenerator creates a [SchemaGenerator] for v.
func NewSchemaGenerator(v any) *SchemaGenerator {
	return &SchemaGenerator{v: v}
}

// WithComments reads Go doc comments from the source directories (relative to
// the working directory) and uses them as schema descriptions. The module path
// is the import path prefix of those directories.
func (g *SchemaGenerator) WithComments(modulePath string, dirs ...string) *SchemaGenerator {
	g.modulePath = modulePath
	g.dirs = dirs

	return g
}

// Generate returns the indented JSON schema.
func (g *SchemaGenerator) Generate() ([]byte, error) {
	r := &jsonschema.Reflector{
		ExpandedStruct: true,
		DoNotReference: true,
		Anonymous:      true,
		Namer:          qualifiedTypeName,
	}

	for _, dir := range g.dirs {
		err := r.AddGoComments(g.modulePath, dir)
		if err != nil {
			return nil, fmt.Errorf("add go comments for %s: %w", dir, err)
		}
	}

	js := r.Reflect(g.v)

	data, err := json.MarshalIndent(js, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}

	return data, nil
}

// qualifiedTypeName names definitions by import path, so that types sharing a
// name across packages (e.g. several Config structs) do not replace each other.
func qualifiedTypeName(t reflect.Type) string {
	if t.Name() == "" {
		return ""
	}

	return t.PkgPath() + "." + t.Name()
}

// MustGenerateSchema reflects v into a JSON schema and panics on failure.
func MustGenerateSchema(v any) []byte {
	data, err := NewSchemaGenerator(v).Generate()
	if err != nil {
		panic(err)
	}

	return data
}
