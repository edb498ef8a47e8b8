package kube

import (
	"errors"
	"fmt"

	"k8s.io/client-go/tools/clientcmd"
)

var (
	// ErrNoContext is returned when no kubeconfig context is selected.
	ErrNoContext = errors.New("no current context")

	// ErrContextNotFound is returned when the selected context does not exist.
	ErrContextNotFound = errors.New("context not found")
)

// CurrentContext resolves the kubeconfig context kubectl will use. An empty
// kubeconfig follows client-go's default loading rules ($KUBECONFIG, then
// ~/.kube/config); a non-empty override takes precedence over the file's
// current-context.
func CurrentContext(kubeconfig, override string) (string, error) {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if kubeconfig != "" {
		rules.ExplicitPath = kubeconfig
	}

	cfg, err := rules.Load()
	if err != nil {
		return "", fmt.Errorf("load kubeconfig: %w", err)
	}

	name := cfg.CurrentContext
	if override != "" {
		name = override
	}

	if name == "" {
		return "", ErrNoContext
	}

	if _, ok := cfg.Contexts[name]; !ok {
		return "", fmt.Errorf("%w: %q", ErrContextNotFound, name)
	}

	return name, nil
}
