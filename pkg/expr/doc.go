// Package expr compiles and evaluates the CEL expressions opsbox accepts in
// configuration.
//
// Two environments are provided:
//   - [NewSelectorEnvironment] selects the manifests to apply from a service
//     directory. Variables: `files` (list<string>), `dir` (string) and
//     `service` (string). The expression returns list<string>.
//   - [NewReloadEnvironment] decides whether a file system event should
//     trigger a re-apply in watch mode. Variables: `file` (string) and
//     `op` (int). The expression returns bool.
//
// Both include the path helpers pathBase, pathDir and pathExt, the yamlPath
// file lookup, the fs.* event constants and the `has` macro.
package expr
