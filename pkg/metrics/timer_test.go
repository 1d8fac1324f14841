package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func TestNewTimer(t *testing.T) {
	timer := NewTimer()

	assert.False(t, timer.start.IsZero())
	assert.Less(t, time.Since(timer.start), time.Second)
}

func TestTimerDuration(t *testing.T) {
	timer := NewTimer()

	sleepDuration := 20 * time.Millisecond
	time.Sleep(sleepDuration)

	assert.GreaterOrEqual(t, timer.Duration(), sleepDuration)
}

func TestTimerObserveDurationVec(t *testing.T) {
	histogramVec := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "test_cycle_duration_seconds",
			Help:    "Test duration histogram vec",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"cluster"},
	)

	timer := NewTimer()
	timer.ObserveDurationVec(histogramVec, "chat")

	ch := make(chan prometheus.Metric, 2)
	histogramVec.Collect(ch)
	assert.Len(t, ch, 1)
}

func TestResultLabel(t *testing.T) {
	assert.Equal(t, ResultSuccess, ResultLabel(nil))
	assert.Equal(t, ResultFailure, ResultLabel(assert.AnError))
}
