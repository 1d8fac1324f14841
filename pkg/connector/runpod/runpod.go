package runpod

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cuemby/gingo/pkg/connector"
	"github.com/cuemby/gingo/pkg/log"
	"github.com/cuemby/gingo/pkg/types"
	"github.com/rs/zerolog"
)

// DefaultEndpoint is the RunPod GraphQL API
const DefaultEndpoint = "https://api.runpod.io/graphql"

// DefaultTimeout bounds a single API call
const DefaultTimeout = 30 * time.Second

// Keys stored in Pod.Extra and replayed on restart
const (
	ExtraImageName         = "imageName"
	ExtraContainerDiskInGb = "containerDiskInGb"
	ExtraVolumeInGb        = "volumeInGb"
)

// Statuses maps RunPod desiredStatus values to pod statuses
var Statuses = connector.StatusMap{
	"CREATED":    types.PodStatusStarting,
	"RUNNING":    types.PodStatusGrey,
	"RESTARTING": types.PodStatusRestarting,
	"EXITED":     types.PodStatusUnhealthy,
	"PAUSED":     types.PodStatusUnhealthy,
	"DEAD":       types.PodStatusUnhealthy,
	"TERMINATED": types.PodStatusUnhealthy,
}

const (
	queryPod = `query Pod($input: PodFilter) {
  pod(input: $input) { id name desiredStatus imageName containerDiskInGb volumeInGb }
}`

	queryPods = `query Pods {
  myself { pods { id name desiredStatus imageName containerDiskInGb volumeInGb } }
}`

	mutationDeploy = `mutation Deploy($input: PodFindAndDeployOnDemandInput) {
  podFindAndDeployOnDemand(input: $input) { id imageName containerDiskInGb volumeInGb }
}`

	mutationTerminate = `mutation Terminate($input: PodTerminateInput!) {
  podTerminate(input: $input)
}`

	mutationEdit = `mutation Edit($input: PodEditJobInput!) {
  podEditJob(input: $input) { id }
}`
)

// Connector provisions pods on RunPod
type Connector struct {
	apiKey   string
	endpoint string
	client   *http.Client
	logger   zerolog.Logger
}

var _ connector.Connector = (*Connector)(nil)

// Option configures a Connector
type Option func(*Connector)

// WithEndpoint overrides the API endpoint
func WithEndpoint(endpoint string) Option {
	return func(c *Connector) { c.endpoint = endpoint }
}

// WithHTTPClient overrides the HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Connector) { c.client = client }
}

// New creates a RunPod connector
func New(apiKey string, opts ...Option) (*Connector, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("runpod api key is required")
	}

	c := &Connector{
		apiKey:   apiKey,
		endpoint: DefaultEndpoint,
		client:   &http.Client{Timeout: DefaultTimeout},
		logger:   log.WithComponent("runpod"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// remotePod is the subset of the RunPod Pod type gingo reads
type remotePod struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	DesiredStatus     string  `json:"desiredStatus"`
	ImageName         string  `json:"imageName"`
	ContainerDiskInGb float64 `json:"containerDiskInGb"`
	VolumeInGb        float64 `json:"volumeInGb"`
}

func (r *remotePod) toPod() *types.Pod {
	pod := types.NewPod(r.ID)
	pod.Extra[ExtraImageName] = r.ImageName
	pod.Extra[ExtraContainerDiskInGb] = r.ContainerDiskInGb
	pod.Extra[ExtraVolumeInGb] = r.VolumeInGb
	return pod
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type gqlError struct {
	Message string `json:"message"`
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []gqlError      `json:"errors"`
}

// call posts one GraphQL operation and decodes its data into out
func (c *Connector) call(ctx context.Context, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(gqlRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("runpod request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("runpod returned %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}

	var gr gqlResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if len(gr.Errors) > 0 {
		msgs := make([]string, len(gr.Errors))
		for i, e := range gr.Errors {
			msgs[i] = e.Message
		}
		return fmt.Errorf("runpod error: %s", strings.Join(msgs, "; "))
	}

	c.logger.Debug().RawJSON("data", gr.Data).Msg("RunPod response")

	if out == nil || len(gr.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(gr.Data, out); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}

// Status implements connector.Connector
func (c *Connector) Status(ctx context.Context, pod *types.Pod) (types.PodStatus, error) {
	var out struct {
		Pod *remotePod `json:"pod"`
	}
	if err := c.call(ctx, queryPod, map[string]any{"input": map[string]any{"podId": pod.ID}}, &out); err != nil {
		return "", err
	}
	if out.Pod == nil {
		return "", fmt.Errorf("%w: %s", connector.ErrPodNotFound, pod.ID)
	}
	return Statuses.Resolve(out.Pod.DesiredStatus)
}

// List implements connector.Connector
func (c *Connector) List(ctx context.Context, clusterIDs []string) ([]connector.ClusterPods, error) {
	var out struct {
		Myself struct {
			Pods []remotePod `json:"pods"`
		} `json:"myself"`
	}
	if err := c.call(ctx, queryPods, nil, &out); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(out.Myself.Pods))
	pods := make([]*types.Pod, 0, len(out.Myself.Pods))
	for i := range out.Myself.Pods {
		remote := &out.Myself.Pods[i]
		if _, ok := connector.ClusterFromName(remote.Name); !ok {
			continue
		}
		status, err := Statuses.Resolve(remote.DesiredStatus)
		if err != nil {
			return nil, err
		}
		pod := remote.toPod()
		pod.Status = status
		names = append(names, remote.Name)
		pods = append(pods, pod)
	}

	return connector.GroupByCluster(clusterIDs, names, pods), nil
}

// Create implements connector.Connector. BackendCreateParams is passed
// through as the deploy input with the pod name added.
func (c *Connector) Create(ctx context.Context, cfg types.ClusterConfig) (*types.Pod, error) {
	input := make(map[string]any, len(cfg.BackendCreateParams)+1)
	for k, v := range cfg.BackendCreateParams {
		input[k] = v
	}
	input["name"] = connector.PodName(cfg.ID)

	var out struct {
		Deployed *remotePod `json:"podFindAndDeployOnDemand"`
	}
	if err := c.call(ctx, mutationDeploy, map[string]any{"input": input}, &out); err != nil {
		return nil, err
	}
	if out.Deployed == nil || out.Deployed.ID == "" {
		return nil, fmt.Errorf("runpod returned no pod for cluster %s", cfg.ID)
	}

	return out.Deployed.toPod(), nil
}

// Remove implements connector.Connector
func (c *Connector) Remove(ctx context.Context, pod *types.Pod) error {
	return c.call(ctx, mutationTerminate, map[string]any{"input": map[string]any{"podId": pod.ID}}, nil)
}

// Restart implements connector.Connector. It re-applies the image and disk
// sizes captured when the pod was created or listed.
func (c *Connector) Restart(ctx context.Context, pod *types.Pod) error {
	input := map[string]any{"podId": pod.ID}
	for _, key := range []string{ExtraImageName, ExtraContainerDiskInGb, ExtraVolumeInGb} {
		v, ok := pod.Extra[key]
		if !ok {
			return fmt.Errorf("pod %s has no %s to restart with", pod.ID, key)
		}
		input[key] = v
	}
	return c.call(ctx, mutationEdit, map[string]any{"input": input}, nil)
}
