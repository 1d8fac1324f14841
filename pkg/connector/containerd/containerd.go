package containerd

import (
	"context"
	"fmt"
	"syscall"
	"time"

	"github.com/containerd/containerd"
	"github.com/containerd/containerd/cio"
	"github.com/containerd/containerd/namespaces"
	"github.com/containerd/containerd/oci"
	"github.com/containerd/errdefs"
	"github.com/cuemby/gingo/pkg/connector"
	"github.com/cuemby/gingo/pkg/log"
	"github.com/cuemby/gingo/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// DefaultNamespace is the containerd namespace for gingo pods
	DefaultNamespace = "gingo"

	// DefaultSocketPath is the default containerd socket
	DefaultSocketPath = "/run/containerd/containerd.sock"

	// DefaultStopTimeout is how long a task gets to exit after SIGTERM
	DefaultStopTimeout = 10 * time.Second
)

// Container labels
const (
	LabelName    = "gingo.name"
	LabelCluster = "gingo.cluster"
)

// stateNoTask is reported for a container whose task has not been created
const stateNoTask = "no-task"

// Statuses maps containerd task states to pod statuses
var Statuses = connector.StatusMap{
	stateNoTask:                types.PodStatusStarting,
	string(containerd.Created): types.PodStatusStarting,
	string(containerd.Running): types.PodStatusGrey,
	string(containerd.Pausing): types.PodStatusUnhealthy,
	string(containerd.Paused):  types.PodStatusUnhealthy,
	string(containerd.Stopped): types.PodStatusUnhealthy,
	string(containerd.Unknown): types.PodStatusUnhealthy,
}

// Connector runs pods as containerd containers on the local host
type Connector struct {
	client      *containerd.Client
	namespace   string
	stopTimeout time.Duration
	logger      zerolog.Logger
}

var _ connector.Connector = (*Connector)(nil)

// New connects to containerd
func New(socketPath, namespace string) (*Connector, error) {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}

	client, err := containerd.New(socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to containerd: %w", err)
	}

	return &Connector{
		client:      client,
		namespace:   namespace,
		stopTimeout: DefaultStopTimeout,
		logger:      log.WithComponent("containerd"),
	}, nil
}

// Close closes the containerd client connection
func (c *Connector) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func (c *Connector) ctx(ctx context.Context) context.Context {
	return namespaces.WithNamespace(ctx, c.namespace)
}

func (c *Connector) load(ctx context.Context, id string) (containerd.Container, error) {
	container, err := c.client.LoadContainer(ctx, id)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", connector.ErrPodNotFound, id)
		}
		return nil, fmt.Errorf("failed to load container %s: %w", id, err)
	}
	return container, nil
}

// taskState returns the native state of a container's task
func taskState(ctx context.Context, container containerd.Container) (string, error) {
	task, err := container.Task(ctx, nil)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return stateNoTask, nil
		}
		return "", fmt.Errorf("failed to get task: %w", err)
	}

	status, err := task.Status(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get task status: %w", err)
	}
	return string(status.Status), nil
}

// Status implements connector.Connector
func (c *Connector) Status(ctx context.Context, pod *types.Pod) (types.PodStatus, error) {
	ctx = c.ctx(ctx)

	container, err := c.load(ctx, pod.ID)
	if err != nil {
		return "", err
	}
	state, err := taskState(ctx, container)
	if err != nil {
		return "", err
	}
	return Statuses.Resolve(state)
}

// List implements connector.Connector
func (c *Connector) List(ctx context.Context, clusterIDs []string) ([]connector.ClusterPods, error) {
	ctx = c.ctx(ctx)

	containers, err := c.client.Containers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	var names []string
	var pods []*types.Pod
	for _, container := range containers {
		labels, err := container.Labels(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read labels of %s: %w", container.ID(), err)
		}
		name, ok := labels[LabelName]
		if !ok {
			continue
		}

		state, err := taskState(ctx, container)
		if err != nil {
			return nil, err
		}
		status, err := Statuses.Resolve(state)
		if err != nil {
			return nil, err
		}

		pod := types.NewPod(container.ID())
		pod.Status = status
		if info, err := container.Info(ctx); err == nil {
			pod.Extra[ParamImage] = info.Image
		}
		names = append(names, name)
		pods = append(pods, pod)
	}

	return connector.GroupByCluster(clusterIDs, names, pods), nil
}

// Create implements connector.Connector. The image is pulled if it is not
// present yet.
func (c *Connector) Create(ctx context.Context, cfg types.ClusterConfig) (*types.Pod, error) {
	ctx = c.ctx(ctx)

	params, err := ParseParams(cfg.BackendCreateParams)
	if err != nil {
		return nil, err
	}

	image, err := c.client.GetImage(ctx, params.Image)
	if err != nil {
		if !errdefs.IsNotFound(err) {
			return nil, fmt.Errorf("failed to get image %s: %w", params.Image, err)
		}
		image, err = c.client.Pull(ctx, params.Image, containerd.WithPullUnpack)
		if err != nil {
			return nil, fmt.Errorf("failed to pull image %s: %w", params.Image, err)
		}
	}

	id := cfg.ID + "-" + uuid.New().String()[:8]
	specOpts := []oci.SpecOpts{
		oci.WithImageConfig(image),
		oci.WithEnv(append(params.Env, "GINGO_POD_ID="+id, "GINGO_CLUSTER_ID="+cfg.ID)),
		oci.WithHostname(id),
	}
	if len(params.Mounts) > 0 {
		specOpts = append(specOpts, oci.WithMounts(params.Mounts))
	}

	container, err := c.client.NewContainer(
		ctx,
		id,
		containerd.WithImage(image),
		containerd.WithNewSnapshot(id+"-snapshot", image),
		containerd.WithNewSpec(specOpts...),
		containerd.WithContainerLabels(map[string]string{
			LabelName:    connector.PodName(cfg.ID),
			LabelCluster: cfg.ID,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create container: %w", err)
	}

	if err := startTask(ctx, container); err != nil {
		if derr := container.Delete(ctx, containerd.WithSnapshotCleanup); derr != nil {
			c.logger.Warn().Err(derr).Str("pod_id", id).Msg("Failed to clean up container after start failure")
		}
		return nil, err
	}

	pod := types.NewPod(id)
	pod.Extra[ParamImage] = params.Image
	return pod, nil
}

func startTask(ctx context.Context, container containerd.Container) error {
	task, err := container.NewTask(ctx, cio.NullIO)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	if err := task.Start(ctx); err != nil {
		_, _ = task.Delete(ctx)
		return fmt.Errorf("failed to start task: %w", err)
	}
	return nil
}

// stopTask stops and deletes the container's task if it has one
func (c *Connector) stopTask(ctx context.Context, container containerd.Container) error {
	task, err := container.Task(ctx, nil)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to get task: %w", err)
	}

	status, err := task.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to get task status: %w", err)
	}

	if status.Status != containerd.Stopped {
		stopCtx, cancel := context.WithTimeout(ctx, c.stopTimeout)
		defer cancel()

		statusC, err := task.Wait(stopCtx)
		if err != nil {
			return fmt.Errorf("failed to wait for task: %w", err)
		}

		// Graceful shutdown first
		if err := task.Kill(stopCtx, syscall.SIGTERM); err != nil && !errdefs.IsNotFound(err) {
			return fmt.Errorf("failed to kill task: %w", err)
		}

		select {
		case <-statusC:
		case <-stopCtx.Done():
			if err := task.Kill(ctx, syscall.SIGKILL); err != nil && !errdefs.IsNotFound(err) {
				return fmt.Errorf("failed to force kill task: %w", err)
			}
		}
	}

	if _, err := task.Delete(ctx, containerd.WithProcessKill); err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return nil
}

// Remove implements connector.Connector
func (c *Connector) Remove(ctx context.Context, pod *types.Pod) error {
	ctx = c.ctx(ctx)

	container, err := c.load(ctx, pod.ID)
	if err != nil {
		return err
	}
	if err := c.stopTask(ctx, container); err != nil {
		return err
	}
	if err := container.Delete(ctx, containerd.WithSnapshotCleanup); err != nil {
		return fmt.Errorf("failed to delete container: %w", err)
	}
	return nil
}

// Restart implements connector.Connector. The container keeps its snapshot
// and OCI spec; only the task is replaced.
func (c *Connector) Restart(ctx context.Context, pod *types.Pod) error {
	ctx = c.ctx(ctx)

	container, err := c.load(ctx, pod.ID)
	if err != nil {
		return err
	}
	if err := c.stopTask(ctx, container); err != nil {
		return err
	}
	return startTask(ctx, container)
}
