package metrics

import (
	"time"
)

// ClusterView is the part of a cluster's state published as gauges
type ClusterView struct {
	ID        string
	Aggregate string
	Pods      map[string]int // pod count by status
}

// Source provides point-in-time cluster views
type Source interface {
	ClusterViews() []ClusterView
}

// aggregateStatuses are the values of the status label of ClusterStatus
var aggregateStatuses = []string{"healthy", "ok", "unhealthy"}

// Collector periodically publishes cluster gauges from a Source
type Collector struct {
	source   Source
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(source Source, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Collector{
		source:   source,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		defer close(c.doneCh)
		defer ticker.Stop()

		c.Collect()

		for {
			select {
			case <-ticker.C:
				c.Collect()
			case <-c.stopCh:
				return
			}
		}
	}()
}

// Stop stops the collector and waits for its loop to exit
func (c *Collector) Stop() {
	close(c.stopCh)
	<-c.doneCh
}

// Collect publishes the current views. Gauges of clusters that are no
// longer present are dropped.
func (c *Collector) Collect() {
	views := c.source.ClusterViews()

	PodsTotal.Reset()
	ClusterStatus.Reset()
	ClustersTotal.Set(float64(len(views)))

	for _, view := range views {
		for status, count := range view.Pods {
			PodsTotal.WithLabelValues(view.ID, status).Set(float64(count))
		}
		for _, status := range aggregateStatuses {
			value := 0.0
			if status == view.Aggregate {
				value = 1
			}
			ClusterStatus.WithLabelValues(view.ID, status).Set(value)
		}
	}
}
