package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cuemby/gingo/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestRunProbe(t *testing.T) {
	cfg := testConfig()
	cfg.CheckTimeoutSeconds = 0.05

	tests := []struct {
		name    string
		fn      types.HealthFunc
		outcome Outcome
		wantErr bool
	}{
		{
			name:    "passes",
			fn:      func(context.Context, types.ClusterConfig, string) (bool, error) { return true, nil },
			outcome: OutcomePass,
		},
		{
			name:    "false verdict",
			fn:      func(context.Context, types.ClusterConfig, string) (bool, error) { return false, nil },
			outcome: OutcomeFail,
		},
		{
			name:    "error",
			fn:      func(context.Context, types.ClusterConfig, string) (bool, error) { return true, errors.New("boom") },
			outcome: OutcomeError,
			wantErr: true,
		},
		{
			name:    "panic",
			fn:      func(context.Context, types.ClusterConfig, string) (bool, error) { panic("bad probe") },
			outcome: OutcomeError,
			wantErr: true,
		},
		{
			name: "ignores deadline and answers late",
			fn: func(context.Context, types.ClusterConfig, string) (bool, error) {
				time.Sleep(200 * time.Millisecond)
				return true, nil
			},
			outcome: OutcomeTimeout,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, err := RunProbe(context.Background(), tt.fn, cfg, "pod-1")
			assert.Equal(t, tt.outcome, outcome)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRunProbeTimeoutIsNotPass(t *testing.T) {
	cfg := testConfig()
	cfg.CheckTimeoutSeconds = 0.01

	_, err := RunProbe(context.Background(), func(ctx context.Context, _ types.ClusterConfig, _ string) (bool, error) {
		<-ctx.Done()
		return true, nil
	}, cfg, "pod-1")

	assert.ErrorIs(t, err, ErrProbeTimeout)
}

func TestRunProbePassesPodAndConfig(t *testing.T) {
	cfg := testConfig()

	var gotPod, gotCluster string
	_, err := RunProbe(context.Background(), func(_ context.Context, c types.ClusterConfig, podID string) (bool, error) {
		gotPod, gotCluster = podID, c.ID
		return true, nil
	}, cfg, "pod-9")

	assert.NoError(t, err)
	assert.Equal(t, "pod-9", gotPod)
	assert.Equal(t, "chat", gotCluster)
}
