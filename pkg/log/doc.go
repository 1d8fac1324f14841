/*
Package log provides structured logging for gingo using zerolog.

The package wraps a single global zerolog.Logger. Every other package derives a
component logger from it once, at construction time, and attaches cluster and
pod identifiers as structured fields rather than formatting them into
messages.

# Usage

Initializing the logger (done once by cmd/gingo):

	log.Init(log.Config{
		Level:      log.ParseLevel("debug"),
		JSONOutput: true,
		Output:     os.Stdout,
	})

Component loggers:

	logger := log.WithComponent("controller")
	logger.Info().
		Str("cluster_id", cfg.ID).
		Int("pods", n).
		Msg("Cycle complete")

# Levels

  - Debug: individual probe outcomes, skipped cycles
  - Info: pods added, removed or restarted, reconfigurations
  - Warn: a backend action failed and will be retried next cycle
  - Error: a cycle was degraded by a backend query failure

# Fields

Common field names used across packages:

	component    package emitting the entry (controller, ops, reconciler, ...)
	cluster_id   ClusterConfig.ID
	pod_id       Pod.ID
	op           add, remove, restart
	status       PodStatus or aggregate status

Before Init is called the logger writes JSON to stdout, which keeps tests and
library use quiet enough without extra setup.
*/
package log
