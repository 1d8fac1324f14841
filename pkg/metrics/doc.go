/*
Package metrics provides Prometheus metrics and process health for gingo.

All metrics are registered on the default registry at package init and
served by Handler.

# Metrics

Clusters and pods (gauges, refreshed by Collector):

	gingo_clusters_total
	gingo_pods_total{cluster,status}
	gingo_cluster_status{cluster,status}     1 for the current aggregate

Cycles:

	gingo_cycles_total{cluster,result}
	gingo_cycles_skipped_total{cluster,reason}       disabled | busy
	gingo_cycle_duration_seconds{cluster}
	gingo_probes_total{cluster,outcome}              pass | fail | timeout | error

Backend operations:

	gingo_pod_ops_total{cluster,op,result}           add | remove | restart

Reconfiguration:

	gingo_reconfigurations_total{result}
	gingo_reconfiguration_duration_seconds

# Timing

	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.CycleDuration, cfg.ID)

# Collector

Collector polls a Source (the reconciler) and rewrites the cluster gauges on
every tick. Gauges are reset first so dropped clusters disappear.

# Health

Components report their state with UpdateComponent. /ready is OK once every
critical component (reconciler and connector by default) is healthy; /health
fails as soon as any reported component is unhealthy.
*/
package metrics
