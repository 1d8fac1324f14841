package containerd

import (
	"context"
	"os"
	"testing"

	"github.com/cuemby/gingo/pkg/connector"
	"github.com/cuemby/gingo/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusesMapToKnownStatuses(t *testing.T) {
	require.NoError(t, Statuses.Validate())

	status, err := Statuses.Resolve("running")
	require.NoError(t, err)
	assert.Equal(t, types.PodStatusGrey, status)

	status, err = Statuses.Resolve(stateNoTask)
	require.NoError(t, err)
	assert.Equal(t, types.PodStatusStarting, status)

	_, err = Statuses.Resolve("exploded")
	assert.ErrorIs(t, err, connector.ErrUnmappedStatus)
}

func TestParseParams(t *testing.T) {
	p, err := ParseParams(map[string]any{
		"image":  "docker.io/library/nginx:latest",
		"env":    map[string]any{"PORT": 8080},
		"mounts": []any{"/data:/data", "/etc/model:/model:ro"},
	})
	require.NoError(t, err)

	assert.Equal(t, "docker.io/library/nginx:latest", p.Image)
	assert.Equal(t, []string{"PORT=8080"}, p.Env)
	require.Len(t, p.Mounts, 2)
	assert.Equal(t, "/data", p.Mounts[0].Source)
	assert.Equal(t, "/data", p.Mounts[0].Destination)
	assert.Equal(t, "bind", p.Mounts[0].Type)
	assert.Equal(t, []string{"rbind", "rw"}, p.Mounts[0].Options)
	assert.Equal(t, []string{"rbind", "ro"}, p.Mounts[1].Options)
}

func TestParseParamsErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
	}{
		{"missing image", map[string]any{}},
		{"env not a map", map[string]any{"image": "x", "env": []any{"A=1"}}},
		{"mounts not a list", map[string]any{"image": "x", "mounts": "/a:/b"}},
		{"mount not a string", map[string]any{"image": "x", "mounts": []any{1}}},
		{"mount without destination", map[string]any{"image": "x", "mounts": []any{"/a"}}},
		{"bad mount option", map[string]any{"image": "x", "mounts": []any{"/a:/b:rx"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseParams(tt.raw)
			assert.Error(t, err)
		})
	}
}

// TestConnectorLifecycle needs a running containerd and permission to use it
func TestConnectorLifecycle(t *testing.T) {
	socket := os.Getenv("GINGO_CONTAINERD_SOCKET")
	if socket == "" {
		t.Skip("GINGO_CONTAINERD_SOCKET not set")
	}

	c, err := New(socket, "gingo-test")
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	cfg := types.ClusterConfig{
		ID:                  "it",
		BackendCreateParams: map[string]any{"image": "docker.io/library/busybox:latest"},
	}

	pod, err := c.Create(ctx, cfg)
	require.NoError(t, err)
	defer c.Remove(ctx, pod)

	status, err := c.Status(ctx, pod)
	require.NoError(t, err)
	assert.Contains(t, []types.PodStatus{types.PodStatusGrey, types.PodStatusUnhealthy}, status)

	listed, err := c.List(ctx, []string{"it"})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.NotEmpty(t, listed[0].Pods)

	require.NoError(t, c.Restart(ctx, pod))
}
