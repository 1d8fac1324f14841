/*
Package health implements the per-pod health state machine and the reusable
probe checkers that applications can plug into it.

# Architecture

Every check cycle feeds one Round per pod into Transition:

	┌────────────────────────────────────────────────────────────┐
	│                     One pod, one round                     │
	└────────────────┬───────────────────────────────────────────┘
	                 │
	                 ▼
	     connector.Status(pod) ── unhealthy ──► status = unhealthy
	                 │                          (probe never runs)
	                 ▼
	     RunProbe(CheckPodHealth, timeout)
	                 │
	     ┌───────────┴───────────┐
	     ▼                       ▼
	   pass                fail / timeout / error
	  healthyStreak++        unhealthyStreak++
	  lastHealthyAt = now        │
	     │                       ▼
	     │              inside start or restart grace?
	     │                 yes ──► starting / restarting
	     │                       │ no
	     └───────────┬───────────┘
	                 ▼
	   healthyStreak   >= healthyThreshold   ► healthy (restartAttempts = 0)
	   unhealthyStreak >= unhealthyThreshold ► unhealthy
	   otherwise                             ► grey

Transition is pure: it mutates only the pod it is given and performs no I/O,
so the controller applies it under the cluster lock after the slow parts of
the round (backend query and probe) have completed.

# Probe Timeout

RunProbe races the probe against CheckTimeout. The probe runs in its own
goroutine and reports on a channel with capacity one, so a probe that ignores
its context and answers after the deadline never blocks and its verdict is
simply dropped. A timed out round is a failed round.

# Checkers

The Checker implementations turn common endpoint types into probes. Endpoint
strings are templates in which {pod} is replaced by the pod ID:

	router := health.NewRouter(nil)
	router.Set("chat", health.NewHTTPChecker("https://{pod}-8000.proxy.runpod.net/health"))
	router.Set("embed", health.NewGRPCChecker("{pod}.internal:50051", "embedder"))

	hooks := types.Hooks{CheckPodHealth: router.Check}

Available checkers:

  - HTTPChecker: status code within an expected range (default 200-399)
  - TCPChecker: a TCP connection can be established
  - GRPCChecker: grpc.health.v1 reports SERVING
  - ExecChecker: a local command exits with code 0

Checkers take their deadline from the context passed by RunProbe.
*/
package health
