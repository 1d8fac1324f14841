package local

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cuemby/gingo/pkg/connector"
	"github.com/cuemby/gingo/pkg/types"
	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

var bucketPods = []byte("pods")

// Native pod states stored by the local backend
const (
	StateCreated    = "created"
	StateRunning    = "running"
	StateRestarting = "restarting"
	StateExited     = "exited"
)

// Statuses maps local states to pod statuses
var Statuses = connector.StatusMap{
	StateCreated:    types.PodStatusStarting,
	StateRunning:    types.PodStatusGrey,
	StateRestarting: types.PodStatusRestarting,
	StateExited:     types.PodStatusUnhealthy,
}

// DefaultBootDelay is how long a created or restarted pod takes to run
const DefaultBootDelay = 30 * time.Second

// podRecord is the persisted form of a pod
type podRecord struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	State     string         `json:"state"`
	Extra     map[string]any `json:"extra,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	BootedAt  time.Time      `json:"bootedAt"`
}

// Connector is a single-host backend that keeps its pod inventory in a
// BoltDB file. Pods are bookkeeping only; they boot after BootDelay.
type Connector struct {
	db        *bolt.DB
	bootDelay time.Duration
	now       func() time.Time
}

var _ connector.Connector = (*Connector)(nil)

// Option configures a Connector
type Option func(*Connector)

// WithBootDelay sets how long pods stay created or restarting
func WithBootDelay(d time.Duration) Option {
	return func(c *Connector) { c.bootDelay = d }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(c *Connector) { c.now = now }
}

// New opens (or creates) the inventory in dataDir
func New(dataDir string, opts ...Option) (*Connector, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	db, err := bolt.Open(filepath.Join(dataDir, "pods.db"), 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketPods); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketPods, err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	c := &Connector{
		db:        db,
		bootDelay: DefaultBootDelay,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Close closes the database
func (c *Connector) Close() error {
	return c.db.Close()
}

func (c *Connector) get(tx *bolt.Tx, id string) (*podRecord, error) {
	data := tx.Bucket(bucketPods).Get([]byte(id))
	if data == nil {
		return nil, fmt.Errorf("%w: %s", connector.ErrPodNotFound, id)
	}
	var rec podRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode pod %s: %w", id, err)
	}
	return &rec, nil
}

func (c *Connector) put(tx *bolt.Tx, rec *podRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return tx.Bucket(bucketPods).Put([]byte(rec.ID), data)
}

// state advances a booting pod once its boot delay has elapsed
func (c *Connector) state(rec *podRecord) string {
	switch rec.State {
	case StateCreated, StateRestarting:
		if c.now().Sub(rec.BootedAt) >= c.bootDelay {
			return StateRunning
		}
	}
	return rec.State
}

// Status implements connector.Connector
func (c *Connector) Status(_ context.Context, pod *types.Pod) (types.PodStatus, error) {
	var state string
	err := c.db.View(func(tx *bolt.Tx) error {
		rec, err := c.get(tx, pod.ID)
		if err != nil {
			return err
		}
		state = c.state(rec)
		return nil
	})
	if err != nil {
		return "", err
	}
	return Statuses.Resolve(state)
}

// List implements connector.Connector
func (c *Connector) List(_ context.Context, clusterIDs []string) ([]connector.ClusterPods, error) {
	var names []string
	var pods []*types.Pod

	err := c.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPods).ForEach(func(k, v []byte) error {
			var rec podRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("failed to decode pod %s: %w", k, err)
			}
			status, err := Statuses.Resolve(c.state(&rec))
			if err != nil {
				return err
			}
			pod := types.NewPod(rec.ID)
			pod.Status = status
			for key, value := range rec.Extra {
				pod.Extra[key] = value
			}
			names = append(names, rec.Name)
			pods = append(pods, pod)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pods: %w", err)
	}

	return connector.GroupByCluster(clusterIDs, names, pods), nil
}

// Create implements connector.Connector
func (c *Connector) Create(_ context.Context, cfg types.ClusterConfig) (*types.Pod, error) {
	now := c.now()
	rec := &podRecord{
		ID:        uuid.New().String(),
		Name:      connector.PodName(cfg.ID),
		State:     StateCreated,
		Extra:     make(map[string]any, len(cfg.BackendCreateParams)),
		CreatedAt: now,
		BootedAt:  now,
	}
	for k, v := range cfg.BackendCreateParams {
		rec.Extra[k] = v
	}

	if err := c.db.Update(func(tx *bolt.Tx) error { return c.put(tx, rec) }); err != nil {
		return nil, fmt.Errorf("failed to create pod: %w", err)
	}

	pod := types.NewPod(rec.ID)
	for k, v := range rec.Extra {
		pod.Extra[k] = v
	}
	return pod, nil
}

// Remove implements connector.Connector
func (c *Connector) Remove(_ context.Context, pod *types.Pod) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		if _, err := c.get(tx, pod.ID); err != nil {
			return err
		}
		return tx.Bucket(bucketPods).Delete([]byte(pod.ID))
	})
}

// Restart implements connector.Connector
func (c *Connector) Restart(_ context.Context, pod *types.Pod) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		rec, err := c.get(tx, pod.ID)
		if err != nil {
			return err
		}
		rec.State = StateRestarting
		rec.BootedAt = c.now()
		if len(pod.Extra) > 0 {
			rec.Extra = pod.Extra
		}
		return c.put(tx, rec)
	})
}

// Kill marks a pod as exited, as if its process died
func (c *Connector) Kill(podID string) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		rec, err := c.get(tx, podID)
		if err != nil {
			return err
		}
		rec.State = StateExited
		return c.put(tx, rec)
	})
}
