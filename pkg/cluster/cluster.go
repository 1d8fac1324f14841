package cluster

import (
	"sync"
	"sync/atomic"

	"github.com/cuemby/gingo/pkg/types"
)

// Phase of a cluster's check cycle
type Phase string

const (
	PhaseIdle Phase = "idle"
	PhaseBusy Phase = "busy"
)

// State is the live state of one cluster: its config, its pods and the
// busy flag that keeps cycles from overlapping. The pod list is guarded by
// a mutex; the busy flag is only ever flipped with compare-and-swap.
type State struct {
	mu     sync.RWMutex
	config types.ClusterConfig
	pods   []*types.Pod

	busy atomic.Bool
}

// New creates an idle cluster with no pods
func New(cfg types.ClusterConfig) *State {
	return &State{config: cfg, pods: []*types.Pod{}}
}

// ID returns the cluster ID
func (s *State) ID() string {
	return s.Config().ID
}

// Config returns the current config
func (s *State) Config() types.ClusterConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// SetConfig replaces the config, leaving pods untouched
func (s *State) SetConfig(cfg types.ClusterConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = cfg
}

// TryAcquire marks the cluster busy. It returns false if a cycle already
// holds it.
func (s *State) TryAcquire() bool {
	return s.busy.CompareAndSwap(false, true)
}

// Release marks the cluster idle
func (s *State) Release() {
	s.busy.Store(false)
}

// Phase returns the current phase
func (s *State) Phase() Phase {
	if s.busy.Load() {
		return PhaseBusy
	}
	return PhaseIdle
}

// Pods returns copies of the pods in list order
func (s *State) Pods() []*types.Pod {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.Pod, len(s.pods))
	for i, p := range s.pods {
		out[i] = p.Clone()
	}
	return out
}

// Len returns the number of pods
func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pods)
}

// Append adds pods to the end of the list
func (s *State) Append(pods ...*types.Pod) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pods = append(s.pods, pods...)
}

// Seed adds pods only if the cluster has none. It reports whether the pods
// were added.
func (s *State) Seed(pods []*types.Pod) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pods) > 0 {
		return false
	}
	s.pods = append(s.pods, pods...)
	return true
}

// Delete removes the pod with the given ID, reporting whether it existed
func (s *State) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, p := range s.pods {
		if p.ID == id {
			s.pods = append(s.pods[:i], s.pods[i+1:]...)
			return true
		}
	}
	return false
}

// Update applies fn to the live pod with the given ID while holding the
// lock, reporting whether the pod exists
func (s *State) Update(id string, fn func(*types.Pod)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.pods {
		if p.ID == id {
			fn(p)
			return true
		}
	}
	return false
}

// Snapshot is a read-only copy of a cluster
type Snapshot struct {
	Config types.ClusterConfig `json:"config"`
	Phase  Phase               `json:"phase"`
	Pods   []*types.Pod        `json:"pods"`
}

// Snapshot returns a consistent copy of the cluster
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pods := make([]*types.Pod, len(s.pods))
	for i, p := range s.pods {
		pods[i] = p.Clone()
	}
	return Snapshot{Config: s.config, Phase: s.Phase(), Pods: pods}
}
