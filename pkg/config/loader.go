package config

import (
	"bytes"
	"fmt"

	"github.com/opsbox/opsbox/api"
	"github.com/opsbox/opsbox/api/v1beta1"
	"github.com/opsbox/opsbox/pkg/yaml"
)

// Validator validates configuration data against a schema.
type Validator interface {
	Validate(data any) error
}

// LoaderOpt configures a [Loader].
type LoaderOpt func(*loaderOptions)

type loaderOptions struct {
	validator Validator
	strict    bool
}

// WithValidator replaces the default schema validator. A nil validator
// disables schema validation.
func WithValidator(v Validator) LoaderOpt {
	return func(o *loaderOptions) {
		o.validator = v
	}
}

// WithStrict rejects fields that do not exist in the target type.
func WithStrict(strict bool) LoaderOpt {
	return func(o *loaderOptions) {
		o.strict = strict
	}
}

// Loader decodes and validates a configuration of type T.
type Loader[T v1beta1.Object] struct {
	validator Validator
	newFunc   func() T
	yamlError *yaml.ErrorWrapper
	data      []byte
	strict    bool
}

// NewLoaderFromBytes creates a [Loader] for data. newFunc returns a T with
// its defaults applied, e.g. configs.New.
func NewLoaderFromBytes[T v1beta1.Object](
	data []byte,
	newFunc func() T,
	defaultValidator Validator,
	opts ...LoaderOpt,
) *Loader[T] {
	options := &loaderOptions{
		validator: defaultValidator,
		strict:    true,
	}
	for _, opt := range opts {
		opt(options)
	}

	return &Loader[T]{
		data:      data,
		newFunc:   newFunc,
		validator: options.validator,
		strict:    options.strict,
		yamlError: yaml.NewErrorWrapper(yaml.WithSource(data)),
	}
}

// NewLoaderFromFile creates a [Loader] for the file at path.
func NewLoaderFromFile[T v1beta1.Object](
	path string,
	newFunc func() T,
	defaultValidator Validator,
	opts ...LoaderOpt,
) (*Loader[T], error) {
	data, err := api.ReadFile(path)
	if err != nil {
		return nil, err //nolint:wrapcheck // Return the original error.
	}

	return NewLoaderFromBytes(data, newFunc, defaultValidator, opts...), nil
}

// Validate checks the raw document against the schema.
func (l *Loader[T]) Validate() error {
	var doc any

	err := yaml.NewDecoder(bytes.NewReader(l.data), false).Decode(&doc)
	if err != nil {
		return l.yamlError.Wrap(err)
	}

	if l.validator != nil {
		err = l.validator.Validate(doc)
		if err != nil {
			return l.yamlError.Wrap(err)
		}
	}

	return nil
}

// Load validates and decodes the configuration, then applies defaults and
// the type's own validation.
//
//nolint:ireturn // Generic type parameter return is intentional.
func (l *Loader[T]) Load() (T, error) {
	var zero T

	if err := l.Validate(); err != nil {
		return zero, err
	}

	cfg := l.newFunc()

	err := yaml.NewDecoder(bytes.NewReader(l.data), l.strict).Decode(cfg)
	if err != nil {
		return zero, l.yamlError.Wrap(err)
	}

	cfg.EnsureDefaults()

	if err := cfg.Validate(); err != nil {
		return zero, fmt.Errorf("validate %s: %w", cfg.GetKind(), err)
	}

	return cfg, nil
}
