// Package fake provides a scriptable in-memory Connector for tests.
package fake

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cuemby/gingo/pkg/connector"
	"github.com/cuemby/gingo/pkg/types"
)

// Op names recorded in Calls
const (
	OpStatus  = "status"
	OpList    = "list"
	OpCreate  = "create"
	OpRemove  = "remove"
	OpRestart = "restart"
)

// Call records one connector invocation
type Call struct {
	Op    string
	PodID string
}

type record struct {
	clusterID string
	status    types.PodStatus
	extra     map[string]any
}

// Connector is an in-memory backend. The zero value is not usable; use New.
type Connector struct {
	mu     sync.Mutex
	pods   map[string]*record
	order  []string
	nextID int
	calls  []Call

	// Errors injected per operation. Map keys are pod IDs.
	CreateErr   error
	ListErr     error
	StatusErrs  map[string]error
	RemoveErrs  map[string]error
	RestartErrs map[string]error

	// StatusHook runs at the start of every Status call, outside the lock
	StatusHook func(ctx context.Context, pod *types.Pod)
}

var _ connector.Connector = (*Connector)(nil)

// New creates an empty fake backend
func New() *Connector {
	return &Connector{
		pods:        make(map[string]*record),
		StatusErrs:  make(map[string]error),
		RemoveErrs:  make(map[string]error),
		RestartErrs: make(map[string]error),
	}
}

// Seed registers an existing pod for a cluster, as if created earlier
func (c *Connector) Seed(clusterID, podID string, status types.PodStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pods[podID] = &record{clusterID: clusterID, status: status, extra: map[string]any{"image": "seeded"}}
	c.order = append(c.order, podID)
}

// SetStatus changes the backend status reported for a pod
func (c *Connector) SetStatus(podID string, status types.PodStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if r, ok := c.pods[podID]; ok {
		r.status = status
	}
}

// SetAllStatuses changes the status of every known pod
func (c *Connector) SetAllStatuses(status types.PodStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range c.pods {
		r.status = status
	}
}

// PodIDs returns the IDs of live pods of a cluster in creation order
func (c *Connector) PodIDs(clusterID string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var ids []string
	for _, id := range c.order {
		if r, ok := c.pods[id]; ok && r.clusterID == clusterID {
			ids = append(ids, id)
		}
	}
	return ids
}

// Calls returns a copy of the recorded calls
func (c *Connector) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.calls...)
}

// CallsOf returns the pod IDs of recorded calls for one op, sorted
func (c *Connector) CallsOf(op string) []string {
	var ids []string
	for _, call := range c.Calls() {
		if call.Op == op {
			ids = append(ids, call.PodID)
		}
	}
	sort.Strings(ids)
	return ids
}

func (c *Connector) record(op, podID string) {
	c.calls = append(c.calls, Call{Op: op, PodID: podID})
}

// Status implements connector.Connector
func (c *Connector) Status(ctx context.Context, pod *types.Pod) (types.PodStatus, error) {
	if c.StatusHook != nil {
		c.StatusHook(ctx, pod)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.record(OpStatus, pod.ID)
	if err := c.StatusErrs[pod.ID]; err != nil {
		return "", err
	}
	r, ok := c.pods[pod.ID]
	if !ok {
		return "", fmt.Errorf("%w: %s", connector.ErrPodNotFound, pod.ID)
	}
	return r.status, nil
}

// List implements connector.Connector
func (c *Connector) List(_ context.Context, clusterIDs []string) ([]connector.ClusterPods, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.record(OpList, "")
	if c.ListErr != nil {
		return nil, c.ListErr
	}

	var names []string
	var pods []*types.Pod
	for _, id := range c.order {
		r, ok := c.pods[id]
		if !ok {
			continue
		}
		pod := types.NewPod(id)
		pod.Status = r.status
		for k, v := range r.extra {
			pod.Extra[k] = v
		}
		names = append(names, connector.PodName(r.clusterID))
		pods = append(pods, pod)
	}
	return connector.GroupByCluster(clusterIDs, names, pods), nil
}

// Create implements connector.Connector
func (c *Connector) Create(_ context.Context, cfg types.ClusterConfig) (*types.Pod, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.CreateErr != nil {
		c.record(OpCreate, "")
		return nil, c.CreateErr
	}

	c.nextID++
	id := fmt.Sprintf("%s-pod-%d", cfg.ID, c.nextID)
	c.record(OpCreate, id)

	extra := map[string]any{"image": "fake"}
	for k, v := range cfg.BackendCreateParams {
		extra[k] = v
	}
	c.pods[id] = &record{clusterID: cfg.ID, status: types.PodStatusStarting, extra: extra}
	c.order = append(c.order, id)

	pod := types.NewPod(id)
	for k, v := range extra {
		pod.Extra[k] = v
	}
	return pod, nil
}

// Remove implements connector.Connector
func (c *Connector) Remove(_ context.Context, pod *types.Pod) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.record(OpRemove, pod.ID)
	if err := c.RemoveErrs[pod.ID]; err != nil {
		return err
	}
	delete(c.pods, pod.ID)
	return nil
}

// Restart implements connector.Connector
func (c *Connector) Restart(_ context.Context, pod *types.Pod) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.record(OpRestart, pod.ID)
	if err := c.RestartErrs[pod.ID]; err != nil {
		return err
	}
	r, ok := c.pods[pod.ID]
	if !ok {
		return fmt.Errorf("%w: %s", connector.ErrPodNotFound, pod.ID)
	}
	r.status = types.PodStatusRestarting
	return nil
}
