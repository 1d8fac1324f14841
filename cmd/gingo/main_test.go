package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/cuemby/gingo/pkg/config"
	"github.com/cuemby/gingo/pkg/connector/fake"
	"github.com/cuemby/gingo/pkg/health"
	"github.com/cuemby/gingo/pkg/reconciler"
	"github.com/cuemby/gingo/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validClusters = `
clusters:
  - id: chat
    enabled: true
    targetCount: 2
    checkIntervalMinutes: 1
    checkTimeoutSeconds: 10
    healthyThreshold: 2
    unhealthyThreshold: 3
    restartAttemptsToDrop: 1
    probe:
      type: http
      endpoint: http://{pod}:8000/health
  - id: batch
    enabled: false
    targetCount: 1
    checkIntervalMinutes: 5
    checkTimeoutSeconds: 30
    healthyThreshold: 1
    unhealthyThreshold: 1
    restartAttemptsToDrop: 0
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestValidateCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clusters.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validClusters), 0o644))

	out, err := execute(t, "validate", "-f", path)
	require.NoError(t, err)
	assert.Contains(t, out, "(2 clusters)")
	assert.Contains(t, out, "probe=http enabled")
	assert.Contains(t, out, "probe=none disabled")
}

func TestValidateCommandRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clusters.yaml")
	bad := "clusters:\n  - id: chat\n    targetCount: 0\n"
	require.NoError(t, os.WriteFile(path, []byte(bad), 0o644))

	_, err := execute(t, "validate", "-f", path)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestNewConnectorLocal(t *testing.T) {
	conn, err := newConnector(config.ConnectorSettings{
		Kind:    config.ConnectorLocal,
		DataDir: t.TempDir(),
	})
	require.NoError(t, err)
	require.Implements(t, (*io.Closer)(nil), conn)
	assert.NoError(t, conn.(io.Closer).Close())
}

func TestNewConnectorUnknown(t *testing.T) {
	_, err := newConnector(config.ConnectorSettings{Kind: "ec2"})
	assert.Error(t, err)
}

func TestReloaderSwapsCheckersOnlyWithAcceptedConfig(t *testing.T) {
	router := health.NewRouter(nil)
	recon, err := reconciler.NewReconciler(fake.New(), types.Hooks{CheckPodHealth: router.Check})
	require.NoError(t, err)
	t.Cleanup(recon.Stop)

	ctx := context.Background()
	require.NoError(t, recon.Start(ctx, nil))
	reload := reloader(ctx, recon, router)
	cfg := types.ClusterConfig{ID: "batch"}

	// Rejected by validation: the router keeps its old (empty) checker set.
	rejected, err := config.ParseClusters([]byte(`
clusters:
  - id: batch
    targetCount: 0
    probe:
      type: exec
      command: ["true"]
`))
	require.NoError(t, err)
	require.ErrorIs(t, reload(rejected), config.ErrInvalidConfig)
	_, err = router.Check(ctx, cfg, "pod-1")
	assert.ErrorContains(t, err, "no health checker")
	assert.Empty(t, recon.Clusters())

	accepted, err := config.ParseClusters([]byte(`
clusters:
  - id: batch
    enabled: false
    targetCount: 1
    checkIntervalMinutes: 5
    checkTimeoutSeconds: 5
    healthyThreshold: 1
    unhealthyThreshold: 1
    probe:
      type: exec
      command: ["true"]
`))
	require.NoError(t, err)
	require.NoError(t, reload(accepted))
	assert.Equal(t, []string{"batch"}, recon.Clusters())

	ok, err := router.Check(ctx, cfg, "pod-1")
	require.NoError(t, err)
	assert.True(t, ok)
}
