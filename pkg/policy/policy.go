package policy

import (
	"github.com/cuemby/gingo/pkg/types"
)

// Status is the aggregate classification of a cluster
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusOK        Status = "ok"
	StatusUnhealthy Status = "unhealthy"
)

// AllStatuses lists the aggregate statuses in a stable order
var AllStatuses = []Status{StatusHealthy, StatusOK, StatusUnhealthy}

// Scale-down tiers, most expendable first
var (
	HealthyTiers = []types.PodStatus{types.PodStatusHealthy}
	OKTiers      = []types.PodStatus{types.PodStatusStarting, types.PodStatusRestarting, types.PodStatusGrey}
)

// Counts summarizes the pods of a cluster
type Counts struct {
	ByStatus map[types.PodStatus]int
	Total    int
	Healthy  int
	// OK counts every pod not confirmed unhealthy
	OK int
}

// Count tallies pods by status
func Count(pods []*types.Pod) Counts {
	c := Counts{ByStatus: make(map[types.PodStatus]int, len(types.AllPodStatuses))}
	for _, p := range pods {
		c.ByStatus[p.Status]++
		c.Total++
		if p.Status == types.PodStatusHealthy {
			c.Healthy++
		}
		if p.Status != types.PodStatusUnhealthy {
			c.OK++
		}
	}
	return c
}

// Aggregate classifies a cluster against its target size
func Aggregate(c Counts, target int) Status {
	switch {
	case c.Healthy >= target:
		return StatusHealthy
	case c.OK >= target:
		return StatusOK
	default:
		return StatusUnhealthy
	}
}

// Action is a bulk operation applied to every pod in a set of statuses
type Action string

const (
	ActionNone            Action = ""
	ActionRemove          Action = "remove"
	ActionRestart         Action = "restart"
	ActionRestartOrRemove Action = "restart-or-remove"
)

// Plan is the first remediation step for one cycle. Scale-up is not part of
// it: it depends on how the bulk step went and is decided afterwards with
// Deficit.
type Plan struct {
	Aggregate Status
	Counts    Counts

	// Bulk action over every pod whose status is in BulkStatuses
	Bulk         Action
	BulkStatuses []types.PodStatus

	// ScaleDown pods are removed from ScaleDownTiers in tier order
	ScaleDown      int
	ScaleDownTiers []types.PodStatus

	// ScaleUpAllowed reports whether Deficit should be consulted once the
	// bulk step is done
	ScaleUpAllowed bool
}

// NewPlan computes the remediation plan for the current pods
func NewPlan(pods []*types.Pod, cfg types.ClusterConfig) Plan {
	counts := Count(pods)
	plan := Plan{
		Aggregate: Aggregate(counts, cfg.TargetCount),
		Counts:    counts,
	}

	switch plan.Aggregate {
	case StatusHealthy:
		plan.Bulk = ActionRemove
		plan.BulkStatuses = []types.PodStatus{
			types.PodStatusStarting,
			types.PodStatusRestarting,
			types.PodStatusGrey,
			types.PodStatusUnhealthy,
		}
		plan.ScaleDown = max(counts.Healthy-cfg.TargetCount, 0)
		plan.ScaleDownTiers = HealthyTiers

	case StatusOK:
		// Removing unhealthy pods leaves OK unchanged, and since Healthy is
		// below target the OK tiers always hold enough pods for the excess.
		plan.Bulk = ActionRemove
		plan.BulkStatuses = []types.PodStatus{types.PodStatusUnhealthy}
		plan.ScaleDown = max(counts.OK-cfg.TargetCount, 0)
		plan.ScaleDownTiers = OKTiers

	case StatusUnhealthy:
		plan.Bulk = ActionRestartOrRemove
		plan.BulkStatuses = []types.PodStatus{types.PodStatusUnhealthy}
		plan.ScaleUpAllowed = true
	}

	if !hasAny(counts, plan.BulkStatuses) {
		plan.Bulk = ActionNone
		plan.BulkStatuses = nil
	}
	return plan
}

func hasAny(c Counts, statuses []types.PodStatus) bool {
	for _, s := range statuses {
		if c.ByStatus[s] > 0 {
			return true
		}
	}
	return false
}

// ShouldRestart reports whether an unhealthy pod gets another restart or is
// dropped
func ShouldRestart(p *types.Pod, cfg types.ClusterConfig) bool {
	return p.RestartAttempts < cfg.RestartAttemptsToDrop
}

// Select returns the pods whose status is in statuses, in list order
func Select(pods []*types.Pod, statuses ...types.PodStatus) []*types.Pod {
	var out []*types.Pod
	for _, p := range pods {
		for _, s := range statuses {
			if p.Status == s {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

// SelectScaleDown picks up to n pods, exhausting each tier in order before
// moving to the next. Within a tier pods are taken in list order. The
// result never holds more than n pods.
func SelectScaleDown(pods []*types.Pod, n int, tiers []types.PodStatus) []*types.Pod {
	if n <= 0 {
		return nil
	}

	out := make([]*types.Pod, 0, n)
	for _, tier := range tiers {
		for _, p := range pods {
			if len(out) == n {
				return out
			}
			if p.Status == tier {
				out = append(out, p)
			}
		}
	}
	return out
}

// Deficit returns how many pods must be added to bring a cluster that is
// still unhealthy back to its target
func Deficit(pods []*types.Pod, target int) int {
	counts := Count(pods)
	if Aggregate(counts, target) != StatusUnhealthy {
		return 0
	}
	return target - counts.OK
}

// Usable returns the IDs of pods fit for traffic: healthy and grey
func Usable(pods []*types.Pod) []string {
	ids := []string{}
	for _, p := range pods {
		if p.Status == types.PodStatusHealthy || p.Status == types.PodStatusGrey {
			ids = append(ids, p.ID)
		}
	}
	return ids
}
