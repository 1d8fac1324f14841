package connector

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/cuemby/gingo/pkg/types"
)

// NamePrefix is prepended to the cluster ID to name backend pods
const NamePrefix = "gingo-"

var (
	// ErrUnmappedStatus is returned when a backend reports a status value
	// with no entry in its StatusMap
	ErrUnmappedStatus = errors.New("unmapped backend status")

	// ErrPodNotFound is returned when the backend does not know the pod
	ErrPodNotFound = errors.New("pod not found")
)

// Connector is the provisioning backend port. Every method either fully
// succeeds or returns an error.
type Connector interface {
	// Status returns the backend's view of the pod. A pod the backend no
	// longer knows yields ErrPodNotFound.
	Status(ctx context.Context, pod *types.Pod) (types.PodStatus, error)

	// List returns the existing pods of each named cluster. It is only
	// used to seed clusters that have no pods.
	List(ctx context.Context, clusterIDs []string) ([]ClusterPods, error)

	// Create provisions a new pod for the cluster. The returned pod carries
	// the backend ID and whatever Extra a later Restart needs.
	Create(ctx context.Context, cfg types.ClusterConfig) (*types.Pod, error)

	// Remove terminates the pod. ErrPodNotFound means it is already gone.
	Remove(ctx context.Context, pod *types.Pod) error

	// Restart restarts the pod from its stored Extra
	Restart(ctx context.Context, pod *types.Pod) error
}

// ClusterPods is the List result for one cluster
type ClusterPods struct {
	ClusterID string
	Pods      []*types.Pod
}

// PodName returns the backend name of pods belonging to a cluster
func PodName(clusterID string) string {
	return NamePrefix + clusterID
}

// ClusterFromName returns the cluster ID encoded in a backend pod name
func ClusterFromName(name string) (string, bool) {
	id, ok := strings.CutPrefix(name, NamePrefix)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// StatusMap maps backend-native status values to pod statuses. Lookups of
// values not in the map fail rather than guessing.
type StatusMap map[string]types.PodStatus

// Resolve maps one backend value
func (m StatusMap) Resolve(native string) (types.PodStatus, error) {
	status, ok := m[native]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnmappedStatus, native)
	}
	return status, nil
}

// Validate checks that every entry maps to a known pod status
func (m StatusMap) Validate() error {
	var errs []error
	for _, native := range m.Natives() {
		if !m[native].Valid() {
			errs = append(errs, fmt.Errorf("backend status %q maps to invalid status %q", native, m[native]))
		}
	}
	return errors.Join(errs...)
}

// Natives returns the backend values of the map, sorted
func (m StatusMap) Natives() []string {
	natives := make([]string, 0, len(m))
	for native := range m {
		natives = append(natives, native)
	}
	sort.Strings(natives)
	return natives
}

// GroupByCluster builds List results in the order of clusterIDs, matching
// each named pod to its cluster through the naming convention. Pods whose
// name matches no requested cluster are ignored.
func GroupByCluster(clusterIDs []string, names []string, pods []*types.Pod) []ClusterPods {
	index := make(map[string]int, len(clusterIDs))
	out := make([]ClusterPods, len(clusterIDs))
	for i, id := range clusterIDs {
		index[id] = i
		out[i] = ClusterPods{ClusterID: id, Pods: []*types.Pod{}}
	}

	for i, pod := range pods {
		id, ok := ClusterFromName(names[i])
		if !ok {
			continue
		}
		if j, ok := index[id]; ok {
			out[j].Pods = append(out[j].Pods, pod)
		}
	}
	return out
}
