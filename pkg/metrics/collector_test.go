package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource []ClusterView

func (s staticSource) ClusterViews() []ClusterView { return s }

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	return m.GetGauge().GetValue()
}

func TestCollectorCollect(t *testing.T) {
	source := staticSource{
		{ID: "chat", Aggregate: "ok", Pods: map[string]int{"healthy": 1, "grey": 2}},
		{ID: "embed", Aggregate: "healthy", Pods: map[string]int{"healthy": 3}},
	}

	c := NewCollector(source, 0)
	c.Collect()

	assert.Equal(t, 2.0, gaugeValue(t, ClustersTotal))
	assert.Equal(t, 2.0, gaugeValue(t, PodsTotal.WithLabelValues("chat", "grey")))
	assert.Equal(t, 1.0, gaugeValue(t, ClusterStatus.WithLabelValues("chat", "ok")))
	assert.Equal(t, 0.0, gaugeValue(t, ClusterStatus.WithLabelValues("chat", "healthy")))
	assert.Equal(t, 1.0, gaugeValue(t, ClusterStatus.WithLabelValues("embed", "healthy")))
}

func TestCollectorStartStop(t *testing.T) {
	c := NewCollector(staticSource{{ID: "solo", Aggregate: "unhealthy"}}, 0)
	c.Start()
	c.Stop()

	assert.Equal(t, 1.0, gaugeValue(t, ClustersTotal))
}
