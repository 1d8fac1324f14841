/*
Package ops executes remediation actions against a provisioning backend for
one cluster.

Single actions (AddPod, RemovePod, RestartPod) either fully succeed and
update the cluster, or fail and leave the pod list exactly as it was; the
next cycle sees the same situation and retries. Batch actions never stop at
the first failure:

	ScaleUp    sequential   one Create at a time, in order
	ScaleDown  concurrent   tiered, capped selection from policy
	Bulk       concurrent   remove, restart or restart-or-remove by status

Every action is counted in gingo_pod_ops_total, logged, and announced on the
event broker when one is configured. AfterPodStart and AfterPodRestart run
synchronously right after the backend call succeeds.
*/
package ops
