package ops

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cuemby/gingo/pkg/cluster"
	"github.com/cuemby/gingo/pkg/connector"
	"github.com/cuemby/gingo/pkg/events"
	"github.com/cuemby/gingo/pkg/log"
	"github.com/cuemby/gingo/pkg/metrics"
	"github.com/cuemby/gingo/pkg/policy"
	"github.com/cuemby/gingo/pkg/types"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"
)

// Op names a backend pod operation
type Op string

const (
	OpAdd     Op = "add"
	OpRemove  Op = "remove"
	OpRestart Op = "restart"
)

// Executor applies remediation actions for one cluster. Each action is
// isolated: a failure is logged and counted, and the pod list is left as it
// was before the action so the next cycle retries naturally.
type Executor struct {
	state  *cluster.State
	conn   connector.Connector
	hooks  types.Hooks
	broker *events.Broker
	now    func() time.Time
	logger zerolog.Logger
}

// Option configures an Executor
type Option func(*Executor)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// WithBroker publishes pod events to broker
func WithBroker(broker *events.Broker) Option {
	return func(e *Executor) { e.broker = broker }
}

// New creates an executor for a cluster
func New(state *cluster.State, conn connector.Connector, hooks types.Hooks, opts ...Option) *Executor {
	e := &Executor{
		state:  state,
		conn:   conn,
		hooks:  hooks,
		now:    time.Now,
		logger: log.WithComponent("ops").With().Str("cluster_id", state.ID()).Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Executor) record(cfg types.ClusterConfig, op Op, podID string, err error) {
	metrics.PodOpsTotal.WithLabelValues(cfg.ID, string(op), metrics.ResultLabel(err)).Inc()
	if err != nil {
		e.logger.Warn().Err(err).Str("op", string(op)).Str("pod_id", podID).Msg("Pod operation failed")
		return
	}
	e.logger.Info().Str("op", string(op)).Str("pod_id", podID).Msg("Pod operation succeeded")
}

func (e *Executor) publish(t events.EventType, cfg types.ClusterConfig, podID, msg string) {
	e.broker.Publish(&events.Event{
		Type:      t,
		ClusterID: cfg.ID,
		PodID:     podID,
		Message:   msg,
	})
}

// AddPod creates a pod and appends it to the cluster as starting
func (e *Executor) AddPod(ctx context.Context) error {
	cfg := e.state.Config()

	pod, err := e.conn.Create(ctx, cfg)
	if err == nil && pod == nil {
		err = fmt.Errorf("backend returned no pod")
	}
	if err != nil {
		err = fmt.Errorf("failed to create pod: %w", err)
		e.record(cfg, OpAdd, "", err)
		return err
	}

	pod.Status = types.PodStatusStarting
	pod.LastStarted = types.TimePtr(e.now())
	if pod.Extra == nil {
		pod.Extra = make(map[string]any)
	}
	e.state.Append(pod)
	e.record(cfg, OpAdd, pod.ID, nil)
	e.publish(events.EventPodAdded, cfg, pod.ID, "pod added")

	if e.hooks.AfterPodStart != nil {
		e.hooks.AfterPodStart(ctx, cfg, pod.ID)
	}
	return nil
}

// RemovePod terminates a pod and drops it from the cluster
func (e *Executor) RemovePod(ctx context.Context, pod *types.Pod) error {
	cfg := e.state.Config()

	err := e.conn.Remove(ctx, pod)
	if errors.Is(err, connector.ErrPodNotFound) {
		e.logger.Debug().Str("pod_id", pod.ID).Msg("Pod already gone from the backend")
		err = nil
	}
	if err != nil {
		err = fmt.Errorf("failed to remove pod %s: %w", pod.ID, err)
		e.record(cfg, OpRemove, pod.ID, err)
		return err
	}

	e.state.Delete(pod.ID)
	e.record(cfg, OpRemove, pod.ID, nil)
	e.publish(events.EventPodRemoved, cfg, pod.ID, "pod removed")
	return nil
}

// RestartPod restarts a pod from its stored Extra and puts it back in the
// restarting state with fresh streaks
func (e *Executor) RestartPod(ctx context.Context, pod *types.Pod) error {
	cfg := e.state.Config()

	if err := e.conn.Restart(ctx, pod); err != nil {
		err = fmt.Errorf("failed to restart pod %s: %w", pod.ID, err)
		e.record(cfg, OpRestart, pod.ID, err)
		return err
	}

	now := e.now()
	e.state.Update(pod.ID, func(p *types.Pod) {
		p.RestartAttempts++
		p.HealthyStreak = 0
		p.UnhealthyStreak = 0
		p.Status = types.PodStatusRestarting
		p.LastRestarted = types.TimePtr(now)
		p.LastHealthyAt = nil
	})
	e.record(cfg, OpRestart, pod.ID, nil)
	e.publish(events.EventPodRestarted, cfg, pod.ID, "pod restarted")

	if e.hooks.AfterPodRestart != nil {
		e.hooks.AfterPodRestart(ctx, cfg, pod.ID)
	}
	return nil
}

// RestartOrRemove restarts the pod while it has restart attempts left and
// removes it otherwise. A pod the backend no longer knows cannot be
// restarted and is removed.
func (e *Executor) RestartOrRemove(ctx context.Context, pod *types.Pod) error {
	if policy.ShouldRestart(pod, e.state.Config()) {
		err := e.RestartPod(ctx, pod)
		if !errors.Is(err, connector.ErrPodNotFound) {
			return err
		}
	}
	return e.RemovePod(ctx, pod)
}

// ScaleUp adds n pods one after another and returns how many were added
func (e *Executor) ScaleUp(ctx context.Context, n int) int {
	added := 0
	for i := 0; i < n; i++ {
		if e.AddPod(ctx) == nil {
			added++
		}
	}
	return added
}

// ScaleDown removes up to n pods, exhausting each tier in order, and
// returns how many were removed. Removals run concurrently.
func (e *Executor) ScaleDown(ctx context.Context, n int, tiers []types.PodStatus) int {
	selected := policy.SelectScaleDown(e.state.Pods(), n, tiers)
	return e.each(selected, func(pod *types.Pod) error {
		return e.RemovePod(ctx, pod)
	})
}

// Bulk applies action to every pod whose status is in statuses
// concurrently and returns how many succeeded
func (e *Executor) Bulk(ctx context.Context, action policy.Action, statuses ...types.PodStatus) int {
	var fn func(context.Context, *types.Pod) error
	switch action {
	case policy.ActionRemove:
		fn = e.RemovePod
	case policy.ActionRestart:
		fn = e.RestartPod
	case policy.ActionRestartOrRemove:
		fn = e.RestartOrRemove
	default:
		return 0
	}

	selected := policy.Select(e.state.Pods(), statuses...)
	return e.each(selected, func(pod *types.Pod) error {
		return fn(ctx, pod)
	})
}

// each runs fn for every pod concurrently and settles all of them
func (e *Executor) each(pods []*types.Pod, fn func(*types.Pod) error) int {
	var ok atomic.Int64
	var wg conc.WaitGroup
	for _, pod := range pods {
		wg.Go(func() {
			if fn(pod) == nil {
				ok.Add(1)
			}
		})
	}
	if r := wg.WaitAndRecover(); r != nil {
		e.logger.Error().Str("panic", fmt.Sprint(r.Value)).Msg("Pod operation panicked")
	}
	return int(ok.Load())
}
