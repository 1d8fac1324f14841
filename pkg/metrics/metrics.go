package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Cluster metrics
	ClustersTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gingo_clusters_total",
			Help: "Total number of clusters in the registry",
		},
	)

	PodsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gingo_pods_total",
			Help: "Number of pods by cluster and status",
		},
		[]string{"cluster", "status"},
	)

	ClusterStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gingo_cluster_status",
			Help: "Aggregate cluster status (1 for the current status, 0 otherwise)",
		},
		[]string{"cluster", "status"},
	)

	// Cycle metrics
	CyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gingo_cycles_total",
			Help: "Total number of check cycles by cluster and result",
		},
		[]string{"cluster", "result"},
	)

	CyclesSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gingo_cycles_skipped_total",
			Help: "Cycles skipped because the cluster was disabled or busy",
		},
		[]string{"cluster", "reason"},
	)

	CycleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gingo_cycle_duration_seconds",
			Help:    "Duration of a check-and-remediate cycle in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"cluster"},
	)

	// Probe metrics
	ProbesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gingo_probes_total",
			Help: "Health probe rounds by cluster and outcome",
		},
		[]string{"cluster", "outcome"},
	)

	// Backend operation metrics
	PodOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gingo_pod_ops_total",
			Help: "Backend pod operations by cluster, op and result",
		},
		[]string{"cluster", "op", "result"},
	)

	// Reconciler metrics
	ReconfigurationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gingo_reconfigurations_total",
			Help: "Total number of configuration reloads by result",
		},
		[]string{"result"},
	)

	ReconfigurationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gingo_reconfiguration_duration_seconds",
			Help:    "Time taken by the reconfiguration barrier in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(ClustersTotal)
	prometheus.MustRegister(PodsTotal)
	prometheus.MustRegister(ClusterStatus)
	prometheus.MustRegister(CyclesTotal)
	prometheus.MustRegister(CyclesSkipped)
	prometheus.MustRegister(CycleDuration)
	prometheus.MustRegister(ProbesTotal)
	prometheus.MustRegister(PodOpsTotal)
	prometheus.MustRegister(ReconfigurationsTotal)
	prometheus.MustRegister(ReconfigurationDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Result label values
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// ResultLabel maps an error to a result label value
func ResultLabel(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}
