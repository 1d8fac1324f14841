/*
Package local implements a single-host provisioning backend whose pod
inventory lives in a BoltDB file.

It plays the role of a real provider for development and demos: pods are
records, not processes. A created or restarted pod reports "created" or
"restarting" until BootDelay has elapsed and "running" afterwards. Kill
simulates a crashed pod. Because the inventory survives process restarts,
a controller restarted against the same data directory seeds its clusters
from List exactly as it would against a cloud provider.

State mapping:

	created    → starting
	running    → grey
	restarting → restarting
	exited     → unhealthy
*/
package local
