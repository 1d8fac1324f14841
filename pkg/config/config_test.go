package config

import (
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cuemby/gingo/pkg/health"
	"github.com/cuemby/gingo/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleClusters = `
clusters:
  - id: chat
    enabled: true
    targetCount: 2
    checkIntervalMinutes: 0.5
    checkTimeoutSeconds: 10
    healthyThreshold: 2
    unhealthyThreshold: 3
    restartAttemptsToDrop: 1
    startGraceMinutes: 10
    restartGraceMinutes: 5
    backendCreateParams:
      imageName: ghcr.io/acme/llm:1
      containerDiskInGb: 40
      nested:
        anything: goes
    probe:
      type: http
      endpoint: https://{pod}-8000.proxy.runpod.net/health
      statusMin: 200
      statusMax: 299
  - id: embed
    enabled: false
    targetCount: 1
    checkIntervalMinutes: 1
    checkTimeoutSeconds: 5
    healthyThreshold: 1
    unhealthyThreshold: 1
    restartAttemptsToDrop: 0
`

func validConfig(id string) types.ClusterConfig {
	return types.ClusterConfig{
		ID:                   id,
		Enabled:              true,
		TargetCount:          1,
		CheckIntervalMinutes: 1,
		CheckTimeoutSeconds:  5,
		HealthyThreshold:     1,
		UnhealthyThreshold:   1,
	}
}

func TestParseClusters(t *testing.T) {
	f, err := ParseClusters([]byte(sampleClusters))
	require.NoError(t, err)
	require.Len(t, f.Clusters, 2)

	chat := f.Clusters[0]
	assert.Equal(t, "chat", chat.ID)
	assert.True(t, chat.Enabled)
	assert.Equal(t, 0.5, chat.CheckIntervalMinutes)
	assert.Equal(t, 30*time.Second, chat.CheckInterval())
	assert.Equal(t, "ghcr.io/acme/llm:1", chat.BackendCreateParams["imageName"])
	assert.Equal(t, 40, chat.BackendCreateParams["containerDiskInGb"])
	assert.Contains(t, chat.BackendCreateParams, "nested")
	require.NotNil(t, chat.Probe)
	assert.Equal(t, health.CheckTypeHTTP, chat.Probe.Type)
	assert.Nil(t, f.Clusters[1].Probe)

	require.NoError(t, f.Validate())

	cfgs := f.Configs()
	require.Len(t, cfgs, 2)
	assert.Equal(t, "embed", cfgs[1].ID)
	assert.False(t, cfgs[1].Enabled)
}

func TestParseClustersRejectsUnknownFields(t *testing.T) {
	_, err := ParseClusters([]byte("clusters:\n  - id: chat\n    targetCuont: 2\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "targetCuont")
}

func TestParseClustersEmptyDocument(t *testing.T) {
	f, err := ParseClusters(nil)
	require.NoError(t, err)
	assert.Empty(t, f.Clusters)
}

func TestCheckers(t *testing.T) {
	f, err := ParseClusters([]byte(sampleClusters))
	require.NoError(t, err)

	checkers, err := f.Checkers()
	require.NoError(t, err)
	require.Len(t, checkers, 1)

	c, ok := checkers["chat"].(*health.HTTPChecker)
	require.True(t, ok)
	assert.Equal(t, 200, c.ExpectedStatusMin)
	assert.Equal(t, 299, c.ExpectedStatusMax)
}

func TestProbeSpecChecker(t *testing.T) {
	tests := []struct {
		name    string
		spec    ProbeSpec
		want    health.CheckType
		wantErr bool
	}{
		{"http", ProbeSpec{Type: health.CheckTypeHTTP, Endpoint: "http://{pod}/"}, health.CheckTypeHTTP, false},
		{"tcp", ProbeSpec{Type: health.CheckTypeTCP, Endpoint: "{pod}:22"}, health.CheckTypeTCP, false},
		{"grpc", ProbeSpec{Type: health.CheckTypeGRPC, Endpoint: "{pod}:50051"}, health.CheckTypeGRPC, false},
		{"exec", ProbeSpec{Type: health.CheckTypeExec, Command: []string{"true"}}, health.CheckTypeExec, false},
		{"http without endpoint", ProbeSpec{Type: health.CheckTypeHTTP}, "", true},
		{"exec without command", ProbeSpec{Type: health.CheckTypeExec}, "", true},
		{"bad status range", ProbeSpec{Type: health.CheckTypeHTTP, Endpoint: "x", StatusMin: 300, StatusMax: 200}, "", true},
		{"unknown type", ProbeSpec{Type: "carrier-pigeon"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := tt.spec.Checker()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.Type())
		})
	}
}

func TestValidateClusters(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func([]types.ClusterConfig) []types.ClusterConfig
		wantErr string
	}{
		{"valid", func(c []types.ClusterConfig) []types.ClusterConfig { return c }, ""},
		{"empty list", func([]types.ClusterConfig) []types.ClusterConfig { return nil }, ""},
		{"missing id", func(c []types.ClusterConfig) []types.ClusterConfig {
			c[0].ID = ""
			return c
		}, "clusters[0]: id is required"},
		{"duplicate id", func(c []types.ClusterConfig) []types.ClusterConfig {
			c[1].ID = "a"
			return c
		}, "duplicate id"},
		{"zero target", func(c []types.ClusterConfig) []types.ClusterConfig {
			c[0].TargetCount = 0
			return c
		}, "targetCount must be positive"},
		{"zero interval", func(c []types.ClusterConfig) []types.ClusterConfig {
			c[0].CheckIntervalMinutes = 0
			return c
		}, "checkIntervalMinutes must be positive"},
		{"negative timeout", func(c []types.ClusterConfig) []types.ClusterConfig {
			c[1].CheckTimeoutSeconds = -1
			return c
		}, "checkTimeoutSeconds must be positive"},
		{"zero threshold", func(c []types.ClusterConfig) []types.ClusterConfig {
			c[0].UnhealthyThreshold = 0
			return c
		}, "unhealthyThreshold must be positive"},
		{"negative grace", func(c []types.ClusterConfig) []types.ClusterConfig {
			c[0].StartGraceMinutes = -1
			return c
		}, "startGraceMinutes must be finite and not negative"},
		{"zero grace", func(c []types.ClusterConfig) []types.ClusterConfig {
			c[0].StartGraceMinutes = 0
			c[0].RestartGraceMinutes = 0
			return c
		}, ""},
		{"infinite interval", func(c []types.ClusterConfig) []types.ClusterConfig {
			c[0].CheckIntervalMinutes = math.Inf(1)
			return c
		}, "checkIntervalMinutes must be positive and finite"},
		{"NaN interval", func(c []types.ClusterConfig) []types.ClusterConfig {
			c[0].CheckIntervalMinutes = math.NaN()
			return c
		}, "checkIntervalMinutes must be positive and finite"},
		{"interval below one nanosecond", func(c []types.ClusterConfig) []types.ClusterConfig {
			c[0].CheckIntervalMinutes = 1e-12
			return c
		}, "checkIntervalMinutes must be positive and finite"},
		{"interval overflows duration", func(c []types.ClusterConfig) []types.ClusterConfig {
			c[0].CheckIntervalMinutes = 1e300
			return c
		}, "checkIntervalMinutes must be positive and finite"},
		{"timeout below one nanosecond", func(c []types.ClusterConfig) []types.ClusterConfig {
			c[1].CheckTimeoutSeconds = 1e-10
			return c
		}, "checkTimeoutSeconds must be positive and finite"},
		{"infinite timeout", func(c []types.ClusterConfig) []types.ClusterConfig {
			c[1].CheckTimeoutSeconds = math.Inf(1)
			return c
		}, "checkTimeoutSeconds must be positive and finite"},
		{"NaN grace", func(c []types.ClusterConfig) []types.ClusterConfig {
			c[0].RestartGraceMinutes = math.NaN()
			return c
		}, "restartGraceMinutes must be finite and not negative"},
		{"infinite grace", func(c []types.ClusterConfig) []types.ClusterConfig {
			c[0].StartGraceMinutes = math.Inf(1)
			return c
		}, "startGraceMinutes must be finite and not negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfgs := tt.mutate([]types.ClusterConfig{validConfig("a"), validConfig("b")})
			err := ValidateClusters(cfgs)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateRejectsInfiniteIntervalFromYAML(t *testing.T) {
	f, err := ParseClusters([]byte(`
clusters:
  - id: chat
    enabled: true
    targetCount: 1
    checkIntervalMinutes: .inf
    checkTimeoutSeconds: 5
    healthyThreshold: 1
    unhealthyThreshold: 1
`))
	require.NoError(t, err)
	require.True(t, math.IsInf(f.Clusters[0].CheckIntervalMinutes, 1))

	err = f.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "checkIntervalMinutes")
}

func TestValidateClustersReportsEveryViolation(t *testing.T) {
	bad := types.ClusterConfig{ID: "x"}
	err := ValidateClusters([]types.ClusterConfig{bad})
	require.Error(t, err)
	for _, msg := range []string{"targetCount", "checkIntervalMinutes", "checkTimeoutSeconds", "healthyThreshold", "unhealthyThreshold"} {
		assert.Contains(t, err.Error(), msg)
	}
}

func TestLoadSettingsDefaults(t *testing.T) {
	s, err := LoadSettings(NewViper(), "")
	require.NoError(t, err)
	assert.Equal(t, Default(), s)
}

func TestLoadSettingsFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gingo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
listen_addr: 0.0.0.0:9100
connector:
  kind: runpod
  boot_delay: 5s
`), 0o644))
	t.Setenv("GINGO_CONNECTOR_API_KEY", "secret")

	s, err := LoadSettings(NewViper(), path)
	require.NoError(t, err)
	assert.Equal(t, "debug", s.LogLevel)
	assert.Equal(t, "0.0.0.0:9100", s.ListenAddr)
	assert.Equal(t, ConnectorRunPod, s.Connector.Kind)
	assert.Equal(t, "secret", s.Connector.APIKey)
	assert.Equal(t, 5*time.Second, s.Connector.BootDelay)
}

func TestLoadSettingsRejectsMissingAPIKey(t *testing.T) {
	t.Setenv("GINGO_CONNECTOR_KIND", "runpod")

	_, err := LoadSettings(NewViper(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key")
}

func TestWatcherReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clusters.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleClusters), 0o644))

	var mu sync.Mutex
	var reloads []*ClustersFile
	w, err := NewWatcher(path, func(f *ClustersFile) error {
		mu.Lock()
		defer mu.Unlock()
		reloads = append(reloads, f)
		return nil
	}, 20*time.Millisecond)
	require.NoError(t, err)
	w.Start()
	defer w.Stop()

	updated := sampleClusters + `
  - id: rerank
    enabled: true
    targetCount: 1
    checkIntervalMinutes: 1
    checkTimeoutSeconds: 5
    healthyThreshold: 1
    unhealthyThreshold: 1
`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(reloads) > 0 && len(reloads[len(reloads)-1].Clusters) == 3
	}, 3*time.Second, 10*time.Millisecond)
}

func TestWatcherIgnoresBrokenFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clusters.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleClusters), 0o644))

	var mu sync.Mutex
	calls := 0
	w, err := NewWatcher(path, func(*ClustersFile) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return nil
	}, 20*time.Millisecond)
	require.NoError(t, err)
	w.Start()
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("clusters: [\n"), 0o644))
	// Unrelated files in the same directory are ignored too.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1"), 0o644))

	time.Sleep(200 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, calls)
}
