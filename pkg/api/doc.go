/*
Package api serves the controller's HTTP surface.

Endpoints:

	GET /health          liveness (always 200 while the process runs)
	GET /ready           readiness of the reconciler and the connector
	GET /metrics         Prometheus metrics
	GET /clusters        every cluster: phase, aggregate, counts, usable pods
	GET /clusters/{id}   one cluster

Cluster views are built from reconciler snapshots, so the API never holds a
cluster lock for longer than one copy.
*/
package api
