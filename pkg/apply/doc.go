// Package apply applies the manifests of one service directory to the
// cluster with kubectl, one file at a time in file name order.
//
// Files are selected with a CEL expression (see [expr.NewSelectorEnvironment])
// and sorted lexicographically by base name. The first kubectl failure stops
// the run and is reported as an [*ExitError] carrying kubectl's exit code.
package apply
