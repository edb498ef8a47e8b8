// Package config loads opsbox configuration files.
//
// A [Loader] decodes YAML into any [v1beta1.Object], validating the raw
// document against a JSON schema first so that errors point at the
// offending line of the file.
package config
