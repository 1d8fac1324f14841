package health

import (
	"time"

	"github.com/cuemby/gingo/pkg/types"
)

// Round is what one check cycle observed for a pod
type Round struct {
	// Backend is the status reported by the connector
	Backend types.PodStatus

	// Outcome of the health probe. Ignored when Backend is unhealthy,
	// in which case the probe is never run.
	Outcome Outcome
}

// IsStarting reports whether the pod has never been confirmed healthy since
// it was created
func IsStarting(p *types.Pod) bool {
	return p.LastStarted != nil && p.RestartAttempts == 0 && p.LastHealthyAt == nil
}

// IsRestarting reports whether the pod has not been confirmed healthy since
// its most recent restart
func IsRestarting(p *types.Pod) bool {
	if p.LastRestarted == nil || p.RestartAttempts <= 0 {
		return false
	}
	return p.LastHealthyAt == nil || p.LastHealthyAt.Before(*p.LastRestarted)
}

// SkipsProbe reports whether a backend status vetoes the health probe
func SkipsProbe(backend types.PodStatus) bool {
	return backend == types.PodStatusUnhealthy
}

// Transition applies one round to the pod and reclassifies it
func Transition(p *types.Pod, cfg types.ClusterConfig, r Round, now time.Time) {
	if SkipsProbe(r.Backend) {
		p.Status = types.PodStatusUnhealthy
		p.LastCheckedAt = types.TimePtr(now)
		return
	}

	passed := r.Outcome.Passed()
	if passed {
		p.UnhealthyStreak = 0
		p.HealthyStreak++
		p.LastHealthyAt = types.TimePtr(now)
	} else {
		p.HealthyStreak = 0
		p.UnhealthyStreak++
	}
	p.LastCheckedAt = types.TimePtr(now)

	if !passed {
		if IsStarting(p) && now.Sub(*p.LastStarted) < cfg.StartGrace() {
			p.Status = types.PodStatusStarting
			return
		}
		if IsRestarting(p) && now.Sub(*p.LastRestarted) < cfg.RestartGrace() {
			p.Status = types.PodStatusRestarting
			return
		}
	}

	switch {
	case p.HealthyStreak >= cfg.HealthyThreshold:
		p.Status = types.PodStatusHealthy
		p.RestartAttempts = 0
	case p.UnhealthyStreak >= cfg.UnhealthyThreshold:
		p.Status = types.PodStatusUnhealthy
	default:
		p.Status = types.PodStatusGrey
	}
}
