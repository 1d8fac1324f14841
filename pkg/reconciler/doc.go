/*
Package reconciler owns the set of clusters, drives their periodic cycles
and applies configuration changes without losing live pod state.

# Architecture

Each registered cluster has a controller and a ticker goroutine. Every tick
starts RunCycle in a tracked goroutine; if the previous cycle is still
running the new one is skipped by the controller's busy flag rather than
queued.

	            Reconciler
	                │
	   ┌────────────┼────────────┐
	   ▼            ▼            ▼
	 ticker       ticker       ticker        one per cluster
	   │            │            │
	   ▼            ▼            ▼
	RunCycle     RunCycle     RunCycle       tracked in-flight
	   │            │            │
	   └────────────┴────────────┴──► Connector

# Reconfiguration Barrier

SetClusterConfigs replaces the whole cluster list in eight steps:

 1. disarm every ticker and wait until none can start a cycle
 2. wait for every tracked in-flight cycle
 3. fail with ErrClusterBusy if any cluster is still busy
 4. validate the new list (config.ValidateClusters)
 5. reconcile by ID: drop, keep pods and replace config, or create empty
 6. seed empty clusters from Connector.List
 7. run one cycle per cluster, errors logged only
 8. re-arm tickers with the new intervals

Steps 3 and 4 reject the call before anything changes. The old tickers are
re-armed in that case so the running configuration keeps being enforced.
Calls are serialized; Stop shares the same lock. SetClusterConfigsFunc
takes a commit callback that runs after step 4 only when the list is
accepted, for state that must switch together with the clusters.

# Limitations

Pods of a dropped cluster are not removed from the backend. A cluster whose
seeding List call fails starts empty and will scale up on its next cycle.

# Observability

Every reconfiguration is counted in gingo_reconfigurations_total, timed in
gingo_reconfiguration_duration_seconds and published as a
cluster.reconfigured event. ClusterViews feeds the metrics collector.
*/
package reconciler
