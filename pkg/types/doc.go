/*
Package types defines the core data structures used throughout gingo.

The package holds the domain model shared by every other package: pods, their
statuses, the per-cluster configuration, and the callback surface through which
the application plugs its own health probe and notifications into the
controller.

# Core Types

Pods:
  - Pod: one remotely provisioned compute unit owned by a single cluster
  - PodStatus: starting, restarting, grey, healthy, unhealthy

Configuration:
  - ClusterConfig: immutable cluster definition, replaced wholesale on reload

Callbacks:
  - Hooks: CheckPodHealth, OnPodListUpdate, AfterPodStart, AfterPodRestart

# Pod Lifecycle

A pod enters the system in the starting state when it is created by the
controller, or with the backend-reported status when it is discovered while
seeding an empty cluster. It never reaches a terminal state; the only way out
is an explicit removal.

	   create
	     │
	     ▼
	┌──────────┐  probe rounds   ┌─────────┐
	│ starting ├────────────────►│  grey   │◄──────┐
	└──────────┘                 └────┬────┘       │
	                                  │            │
	              healthy threshold   │  unhealthy threshold
	                       ┌──────────┴──────────┐ │
	                       ▼                     ▼ │
	                 ┌─────────┐          ┌───────────┐
	                 │ healthy │          │ unhealthy │
	                 └─────────┘          └─────┬─────┘
	                                            │ restart
	                                            ▼
	                                     ┌────────────┐
	                                     │ restarting │
	                                     └────────────┘

Timestamps are pointers so that "never happened" is distinguishable from the
zero time. Use Clone before handing a pod to code outside the owning
controller.

# Durations

ClusterConfig stores intervals in the units operators write them in
(minutes and seconds, fractional values allowed). The CheckInterval,
CheckTimeout, StartGrace and RestartGrace helpers convert them to
time.Duration.
*/
package types
