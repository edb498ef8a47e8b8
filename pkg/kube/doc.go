// Package kube holds the Kubernetes-facing helpers opsbox needs without
// talking to a cluster: splitting multi-document manifests, linting the
// resources the proxy generator emits against their typed definitions, and
// resolving the active kubeconfig context.
package kube
