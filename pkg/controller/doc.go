/*
Package controller runs the check-and-remediate cycle of a single cluster.

A cycle is:

 1. skip if the cluster is disabled or a cycle already holds it
 2. for every pod, concurrently: query the backend, run the probe unless the
    backend already reports the pod unhealthy, apply health.Transition
 3. compute a policy.Plan and carry it out through ops.Executor
 4. hand the usable pod IDs to OnPodListUpdate

The busy flag is taken with compare-and-swap and released by a deferred
call, so neither a failed backend query nor a panicking callback can leave
the cluster wedged. Pod checks settle independently: one pod's failure never
cancels the others. A pod whose backend status query fails sits out the
round with its previous state; the rest of the cycle still runs and the
joined errors are returned at the end. A pod the backend reports as not
found counts as unhealthy on the backend, so policy restarts or drops it.

The controller has no timer of its own. The reconciler decides when
RunCycle is called.
*/
package controller
