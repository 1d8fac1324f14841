/*
Package config loads gingo's two configuration sources.

Daemon settings (log level, listen address, connector selection) are read
with viper from an optional file and GINGO_ environment variables:

	log_level: info
	listen_addr: 127.0.0.1:9090
	clusters_file: clusters.yaml
	connector:
	  kind: runpod          # local | containerd | runpod
	  api_key: ...          # or GINGO_CONNECTOR_API_KEY

Cluster definitions live in a separate YAML file that is watched and
hot-reloaded. Each entry is a ClusterConfig plus an optional probe:

	clusters:
	  - id: chat
	    enabled: true
	    targetCount: 2
	    checkIntervalMinutes: 1
	    checkTimeoutSeconds: 10
	    healthyThreshold: 2
	    unhealthyThreshold: 3
	    restartAttemptsToDrop: 2
	    startGraceMinutes: 10
	    restartGraceMinutes: 5
	    backendCreateParams:
	      imageName: ghcr.io/acme/llm:1
	    probe:
	      type: http
	      endpoint: https://{pod}-8000.proxy.runpod.net/health

ValidateClusters is the schema check applied by the reconciler before any
state changes. Unknown keys are rejected at parse time except under
backendCreateParams, which is handed to the connector untouched.
*/
package config
