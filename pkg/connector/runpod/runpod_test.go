package runpod

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/cuemby/gingo/pkg/connector"
	"github.com/cuemby/gingo/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI answers GraphQL requests by operation keyword
type fakeAPI struct {
	mu       sync.Mutex
	requests []gqlRequest
	replies  map[string]string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer secret" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req gqlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	for keyword, reply := range f.replies {
		if strings.Contains(req.Query, keyword) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(reply))
			return
		}
	}
	http.Error(w, "no reply", http.StatusInternalServerError)
}

func (f *fakeAPI) last() gqlRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func newTestConnector(t *testing.T, replies map[string]string) (*Connector, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{replies: replies}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	c, err := New("secret", WithEndpoint(srv.URL), WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c, api
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}

func TestStatus(t *testing.T) {
	c, api := newTestConnector(t, map[string]string{
		"pod(input": `{"data":{"pod":{"id":"p1","desiredStatus":"EXITED"}}}`,
	})

	status, err := c.Status(context.Background(), types.NewPod("p1"))
	require.NoError(t, err)
	assert.Equal(t, types.PodStatusUnhealthy, status)

	input := api.last().Variables["input"].(map[string]any)
	assert.Equal(t, "p1", input["podId"])
}

func TestStatusMissingPod(t *testing.T) {
	c, _ := newTestConnector(t, map[string]string{
		"pod(input": `{"data":{"pod":null}}`,
	})

	_, err := c.Status(context.Background(), types.NewPod("gone"))
	assert.ErrorIs(t, err, connector.ErrPodNotFound)
}

func TestStatusUnmapped(t *testing.T) {
	c, _ := newTestConnector(t, map[string]string{
		"pod(input": `{"data":{"pod":{"id":"p1","desiredStatus":"MIGRATING"}}}`,
	})

	_, err := c.Status(context.Background(), types.NewPod("p1"))
	assert.ErrorIs(t, err, connector.ErrUnmappedStatus)
}

func TestGraphQLErrors(t *testing.T) {
	c, _ := newTestConnector(t, map[string]string{
		"podTerminate": `{"errors":[{"message":"pod not found"},{"message":"try again"}]}`,
	})

	err := c.Remove(context.Background(), types.NewPod("p1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pod not found; try again")
}

func TestHTTPErrors(t *testing.T) {
	c, _ := newTestConnector(t, nil)
	c.apiKey = "wrong"

	err := c.Remove(context.Background(), types.NewPod("p1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestList(t *testing.T) {
	c, _ := newTestConnector(t, map[string]string{
		"myself": `{"data":{"myself":{"pods":[
			{"id":"a1","name":"gingo-chat","desiredStatus":"RUNNING","imageName":"img","containerDiskInGb":5,"volumeInGb":0},
			{"id":"b1","name":"gingo-embed","desiredStatus":"CREATED","imageName":"img2","containerDiskInGb":10,"volumeInGb":20},
			{"id":"x1","name":"jupyter","desiredStatus":"WHATEVER"},
			{"id":"a2","name":"gingo-chat","desiredStatus":"RESTARTING","imageName":"img","containerDiskInGb":5,"volumeInGb":0}
		]}}}`,
	})

	got, err := c.List(context.Background(), []string{"chat", "embed", "empty"})
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "chat", got[0].ClusterID)
	require.Len(t, got[0].Pods, 2)
	assert.Equal(t, "a1", got[0].Pods[0].ID)
	assert.Equal(t, types.PodStatusGrey, got[0].Pods[0].Status)
	assert.Equal(t, types.PodStatusRestarting, got[0].Pods[1].Status)
	assert.Equal(t, "img", got[0].Pods[0].Extra[ExtraImageName])

	require.Len(t, got[1].Pods, 1)
	assert.Equal(t, types.PodStatusStarting, got[1].Pods[0].Status)
	assert.Equal(t, float64(20), got[1].Pods[0].Extra[ExtraVolumeInGb])

	assert.Empty(t, got[2].Pods)
}

func TestCreateAndRestartReplayExtra(t *testing.T) {
	c, api := newTestConnector(t, map[string]string{
		"podFindAndDeployOnDemand": `{"data":{"podFindAndDeployOnDemand":{"id":"n1","imageName":"runpod/base:0.5.1-cpu","containerDiskInGb":5,"volumeInGb":0}}}`,
		"podEditJob":               `{"data":{"podEditJob":{"id":"n1"}}}`,
	})
	ctx := context.Background()

	cfg := types.ClusterConfig{
		ID:                  "chat",
		BackendCreateParams: map[string]any{"gpuCount": 1, "cloudType": "SECURE"},
	}
	pod, err := c.Create(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, "n1", pod.ID)

	input := api.last().Variables["input"].(map[string]any)
	assert.Equal(t, "gingo-chat", input["name"])
	assert.Equal(t, "SECURE", input["cloudType"])
	assert.Equal(t, float64(1), input["gpuCount"])
	assert.NotContains(t, cfg.BackendCreateParams, "name")

	require.NoError(t, c.Restart(ctx, pod))
	input = api.last().Variables["input"].(map[string]any)
	assert.Equal(t, "n1", input["podId"])
	assert.Equal(t, "runpod/base:0.5.1-cpu", input[ExtraImageName])
	assert.Equal(t, float64(5), input[ExtraContainerDiskInGb])
	assert.Equal(t, float64(0), input[ExtraVolumeInGb])
}

func TestRestartWithoutExtra(t *testing.T) {
	c, _ := newTestConnector(t, nil)

	pod := types.NewPod("p1")
	err := c.Restart(context.Background(), pod)
	assert.Error(t, err)
}

func TestStatusesMapToKnownStatuses(t *testing.T) {
	assert.NoError(t, Statuses.Validate())
}
