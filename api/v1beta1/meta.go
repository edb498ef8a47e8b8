// Package v1beta1 contains the metadata shared by opsbox configuration kinds.
package v1beta1

import (
	"errors"
	"fmt"
	"slices"

	"github.com/invopop/jsonschema"
)

// APIVersion is the current API version for all opsbox configuration kinds.
const APIVersion = "opsbox.dev/v1beta1"

// ValidAPIVersions contains all valid API versions.
var ValidAPIVersions = []string{APIVersion}

var (
	// ErrUnknownAPIVersion is returned for an unsupported apiVersion.
	ErrUnknownAPIVersion = errors.New("unknown apiVersion")

	// ErrUnknownKind is returned for an unsupported kind.
	ErrUnknownKind = errors.New("unknown kind")
)

// TypeMeta identifies the kind and version of a configuration document.
type TypeMeta struct {
	APIVersion string `json:"apiVersion" jsonschema:"title=API Version"`
	Kind       string `json:"kind" jsonschema:"title=Kind"`
}

func (tm TypeMeta) GetAPIVersion() string {
	return tm.APIVersion
}

func (tm TypeMeta) GetKind() string {
	return tm.Kind
}

// Check reports whether the document is a supported version of one of kinds.
func (tm TypeMeta) Check(kinds ...string) error {
	if !slices.Contains(ValidAPIVersions, tm.APIVersion) {
		return fmt.Errorf("%w %q, want %s", ErrUnknownAPIVersion, tm.APIVersion, APIVersion)
	}

	if !slices.Contains(kinds, tm.Kind) {
		return fmt.Errorf("%w %q, want one of %v", ErrUnknownKind, tm.Kind, kinds)
	}

	return nil
}

// Object is implemented by every configuration kind.
type Object interface {
	GetAPIVersion() string
	GetKind() string
	EnsureDefaults()
	Validate() error
}

// ExtendSchema restricts apiVersion and kind to the given values. It panics
// if the schema lacks either property, which only happens for types that do
// not embed [TypeMeta].
func ExtendSchema(jss *jsonschema.Schema, apiVersions, kinds []string) {
	restrict := func(name string, values []string) {
		prop, ok := jss.Properties.Get(name)
		if !ok {
			panic(name + " property not found in schema")
		}

		prop.Enum = make([]any, 0, len(values))
		for _, v := range values {
			prop.Enum = append(prop.Enum, v)
		}
	}

	restrict("apiVersion", apiVersions)
	restrict("kind", kinds)
}
