/*
Package containerd implements a connector that runs pods as containerd
containers on the local host.

Each pod is one container plus one task. The container carries two labels,
gingo.name (the gingo-<cluster> pod name) and gingo.cluster, so List can
find the pods of a cluster after a controller restart. Restart replaces the
task and keeps the container's snapshot and OCI spec.

Clusters configure the container through BackendCreateParams:

	backendCreateParams:
	  image: docker.io/library/nginx:latest
	  env:
	    PORT: 8080
	  mounts:
	    - /srv/models:/models:ro

Task states map to pod statuses as follows: created and a missing task are
starting, running is grey, everything else is unhealthy.
*/
package containerd
