package apply_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/opsbox/opsbox/pkg/apply"
)

func TestApplier_Watch(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	base := t.TempDir()
	dir := filepath.Join(base, "nas")
	writeFiles(t, dir, "01-service-endpoints.yaml", "03-ingressroute.yaml")

	runner := &fakeRunner{}
	a, err := apply.NewApplier(runner, base, apply.WithDebounce(20*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)

	go func() {
		done <- a.Watch(ctx, "nas")
	}()

	require.Eventually(t, func() bool {
		return len(runner.files()) == 2
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"01-service-endpoints.yaml", "03-ingressroute.yaml"}, runner.files())

	// A non-manifest file passes the reload filter but is not selected.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))
	// A new manifest is applied on its own.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "02-transport.yaml"), []byte("kind: ServersTransport\n"), 0o600))

	require.Eventually(t, func() bool {
		return len(runner.files()) == 3
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, "02-transport.yaml", runner.files()[2])

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}

	for _, f := range runner.files()[2:] {
		assert.Equal(t, "02-transport.yaml", f)
	}
}

func TestApplier_WatchFailuresAreLogged(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	base := t.TempDir()
	dir := filepath.Join(base, "nas")
	writeFiles(t, dir, "01-service-endpoints.yaml")

	runner := &fakeRunner{fail: map[string]int{"01-service-endpoints.yaml": 1}}
	a, err := apply.NewApplier(runner, base, apply.WithDebounce(20*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)

	go func() {
		done <- a.Watch(ctx, "nas")
	}()

	require.Eventually(t, func() bool {
		return len(runner.files()) == 1
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "01-service-endpoints.yaml"), []byte("kind: Service\n# edit\n"), 0o600))

	require.Eventually(t, func() bool {
		return len(runner.files()) == 2
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestApplier_WatchMissingService(t *testing.T) {
	t.Parallel()

	a, err := apply.NewApplier(&fakeRunner{}, t.TempDir())
	require.NoError(t, err)

	err = a.Watch(t.Context(), "nas")
	require.ErrorIs(t, err, apply.ErrNotDirectory)
}
