package apply_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsbox/opsbox/pkg/apply"
	"github.com/opsbox/opsbox/pkg/execs"
)

func TestConfig(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		mutate  func(*apply.Config)
		wantErr string
	}{
		"defaults": {
			mutate: func(*apply.Config) {},
		},
		"bad select": {
			mutate:  func(c *apply.Config) { c.Select = "files.filter(" },
			wantErr: "select",
		},
		"select wrong variable": {
			mutate:  func(c *apply.Config) { c.Select = "op.has(fs.WRITE)" },
			wantErr: "select",
		},
		"bad reload": {
			mutate:  func(c *apply.Config) { c.Reload = "files" },
			wantErr: "reload",
		},
		"empty kubectl": {
			mutate:  func(c *apply.Config) { c.Kubectl = &execs.Command{} },
			wantErr: "kubectl",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			c := apply.NewConfig()
			tc.mutate(c)

			err := c.Validate()
			if tc.wantErr == "" {
				require.NoError(t, err)

				return
			}

			require.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestDefaultKubectl(t *testing.T) {
	t.Parallel()

	cmd := apply.DefaultKubectl()
	assert.Equal(t, "kubectl apply -f", cmd.String())

	cmd.SetBaseEnv([]string{"KUBECONFIG=/etc/k3s.yaml", "SECRET=x", "PATH=/bin"})
	assert.Equal(t, []string{"KUBECONFIG=/etc/k3s.yaml", "PATH=/bin"}, cmd.GetEnv())
}
