/*
Package policy decides what a cluster needs after a round of health checks.

Everything here is pure: functions read pod statuses and the cluster config
and return counts, classifications and selections. The ops executor performs
the resulting actions.

# Aggregate Status

	healthy    Healthy >= targetCount
	ok         OK      >= targetCount   (OK = every pod not unhealthy)
	unhealthy  otherwise

# Remediation

	aggregate   bulk step                         then
	─────────   ───────────────────────────────   ─────────────────────────────
	healthy     remove every non-healthy pod      remove Healthy-target healthy pods
	ok          remove every unhealthy pod        remove OK-target pods, tiers
	                                              starting → restarting → grey
	unhealthy   restart unhealthy pods below      add Deficit pods if still
	            restartAttemptsToDrop, remove     unhealthy after the bulk step
	            the rest

SelectScaleDown takes exactly min(n, available) pods and never more than n
across all tiers combined.

After remediation the controller publishes Usable: the healthy and grey pods.
*/
package policy
