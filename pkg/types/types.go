package types

import (
	"context"
	"time"
)

// PodStatus is the controller's classification of a pod
type PodStatus string

const (
	PodStatusStarting   PodStatus = "starting"
	PodStatusRestarting PodStatus = "restarting"
	PodStatusGrey       PodStatus = "grey"
	PodStatusHealthy    PodStatus = "healthy"
	PodStatusUnhealthy  PodStatus = "unhealthy"
)

// AllPodStatuses lists every status in a stable order
var AllPodStatuses = []PodStatus{
	PodStatusStarting,
	PodStatusRestarting,
	PodStatusGrey,
	PodStatusHealthy,
	PodStatusUnhealthy,
}

// Valid reports whether s is one of the five known statuses
func (s PodStatus) Valid() bool {
	for _, known := range AllPodStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Pod is one remotely provisioned compute unit tracked by a cluster.
// A pod belongs to exactly one cluster and is only mutated by the
// controller that owns that cluster.
type Pod struct {
	ID     string    `json:"id"`
	Status PodStatus `json:"status"`

	// Consecutive probe outcomes. At most one of them is positive.
	HealthyStreak   int `json:"healthyStreak"`
	UnhealthyStreak int `json:"unhealthyStreak"`

	// RestartAttempts counts restarts since the pod was last healthy
	RestartAttempts int `json:"restartAttempts"`

	LastStarted   *time.Time `json:"lastStarted,omitempty"`
	LastRestarted *time.Time `json:"lastRestarted,omitempty"`
	LastHealthyAt *time.Time `json:"lastHealthyAt,omitempty"`
	LastCheckedAt *time.Time `json:"lastCheckedAt,omitempty"`

	// Extra is backend metadata needed for a later restart. The controller
	// never inspects it.
	Extra map[string]any `json:"extra,omitempty"`
}

// NewPod creates a pod with the given backend ID
func NewPod(id string) *Pod {
	return &Pod{
		ID:     id,
		Status: PodStatusGrey,
		Extra:  make(map[string]any),
	}
}

// Clone returns a deep copy of the pod
func (p *Pod) Clone() *Pod {
	c := *p
	c.LastStarted = cloneTime(p.LastStarted)
	c.LastRestarted = cloneTime(p.LastRestarted)
	c.LastHealthyAt = cloneTime(p.LastHealthyAt)
	c.LastCheckedAt = cloneTime(p.LastCheckedAt)
	if p.Extra != nil {
		c.Extra = make(map[string]any, len(p.Extra))
		for k, v := range p.Extra {
			c.Extra[k] = v
		}
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// TimePtr returns a pointer to t
func TimePtr(t time.Time) *time.Time {
	return &t
}

// ClusterConfig is the immutable definition of one cluster. It is replaced
// wholesale on reconfiguration.
type ClusterConfig struct {
	ID                    string         `yaml:"id" json:"id" mapstructure:"id"`
	Enabled               bool           `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	TargetCount           int            `yaml:"targetCount" json:"targetCount" mapstructure:"targetCount"`
	CheckIntervalMinutes  float64        `yaml:"checkIntervalMinutes" json:"checkIntervalMinutes" mapstructure:"checkIntervalMinutes"`
	CheckTimeoutSeconds   float64        `yaml:"checkTimeoutSeconds" json:"checkTimeoutSeconds" mapstructure:"checkTimeoutSeconds"`
	HealthyThreshold      int            `yaml:"healthyThreshold" json:"healthyThreshold" mapstructure:"healthyThreshold"`
	UnhealthyThreshold    int            `yaml:"unhealthyThreshold" json:"unhealthyThreshold" mapstructure:"unhealthyThreshold"`
	RestartAttemptsToDrop int            `yaml:"restartAttemptsToDrop" json:"restartAttemptsToDrop" mapstructure:"restartAttemptsToDrop"`
	StartGraceMinutes     float64        `yaml:"startGraceMinutes" json:"startGraceMinutes" mapstructure:"startGraceMinutes"`
	RestartGraceMinutes   float64        `yaml:"restartGraceMinutes" json:"restartGraceMinutes" mapstructure:"restartGraceMinutes"`
	BackendCreateParams   map[string]any `yaml:"backendCreateParams,omitempty" json:"backendCreateParams,omitempty" mapstructure:"backendCreateParams"`
}

// CheckInterval returns the timer period of the cluster
func (c ClusterConfig) CheckInterval() time.Duration {
	return minutes(c.CheckIntervalMinutes)
}

// CheckTimeout returns the deadline applied to a single health probe
func (c ClusterConfig) CheckTimeout() time.Duration {
	return time.Duration(c.CheckTimeoutSeconds * float64(time.Second))
}

// StartGrace returns the grace window after a pod is created
func (c ClusterConfig) StartGrace() time.Duration {
	return minutes(c.StartGraceMinutes)
}

// RestartGrace returns the grace window after a pod is restarted
func (c ClusterConfig) RestartGrace() time.Duration {
	return minutes(c.RestartGraceMinutes)
}

func minutes(m float64) time.Duration {
	return time.Duration(m * float64(time.Minute))
}

// HealthFunc is the application-defined probe. It reports whether the pod
// is fit for use.
type HealthFunc func(ctx context.Context, cfg ClusterConfig, podID string) (bool, error)

// PodListFunc receives the usable pod IDs after each cycle
type PodListFunc func(ctx context.Context, cfg ClusterConfig, podIDs []string)

// PodFunc is a one-shot notification about a single pod
type PodFunc func(ctx context.Context, cfg ClusterConfig, podID string)

// Hooks is the callback surface supplied by the application. Only
// CheckPodHealth is required.
type Hooks struct {
	CheckPodHealth  HealthFunc
	OnPodListUpdate PodListFunc
	AfterPodStart   PodFunc
	AfterPodRestart PodFunc
}
