package controller

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/cuemby/gingo/pkg/cluster"
	"github.com/cuemby/gingo/pkg/connector"
	"github.com/cuemby/gingo/pkg/events"
	"github.com/cuemby/gingo/pkg/health"
	"github.com/cuemby/gingo/pkg/log"
	"github.com/cuemby/gingo/pkg/metrics"
	"github.com/cuemby/gingo/pkg/ops"
	"github.com/cuemby/gingo/pkg/policy"
	"github.com/cuemby/gingo/pkg/types"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"
)

var (
	// ErrDisabled is returned when a cycle is requested for a disabled cluster
	ErrDisabled = errors.New("cluster is disabled")

	// ErrBusy is returned when a cycle is already running for the cluster
	ErrBusy = errors.New("cycle already in progress")
)

// Skip reasons used as metric labels
const (
	skipDisabled = "disabled"
	skipBusy     = "busy"
)

// Controller runs the check-and-remediate cycle of one cluster
type Controller struct {
	state  *cluster.State
	conn   connector.Connector
	hooks  types.Hooks
	ops    *ops.Executor
	broker *events.Broker
	now    func() time.Time
	logger zerolog.Logger
}

// Option configures a Controller
type Option func(*Controller)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithBroker publishes cycle and pod events to broker
func WithBroker(broker *events.Broker) Option {
	return func(c *Controller) { c.broker = broker }
}

// New creates a controller for state
func New(state *cluster.State, conn connector.Connector, hooks types.Hooks, opts ...Option) *Controller {
	c := &Controller{
		state:  state,
		conn:   conn,
		hooks:  hooks,
		now:    time.Now,
		logger: log.WithComponent("controller").With().Str("cluster_id", state.ID()).Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.ops = ops.New(state, conn, hooks, ops.WithClock(c.now), ops.WithBroker(c.broker))
	return c
}

// State returns the cluster state driven by this controller
func (c *Controller) State() *cluster.State {
	return c.state
}

// RunCycle runs one check-and-remediate cycle. It returns ErrDisabled or
// ErrBusy without doing anything when the cycle is skipped. A pod whose
// backend status query fails sits out this round with its previous state;
// remediation and notification still run for the cluster and the query
// errors are returned. The cluster is released on every path.
func (c *Controller) RunCycle(ctx context.Context) (err error) {
	cfg := c.state.Config()

	if !cfg.Enabled {
		metrics.CyclesSkipped.WithLabelValues(cfg.ID, skipDisabled).Inc()
		return ErrDisabled
	}
	if !c.state.TryAcquire() {
		metrics.CyclesSkipped.WithLabelValues(cfg.ID, skipBusy).Inc()
		c.logger.Debug().Msg("Cycle skipped, previous cycle still running")
		return ErrBusy
	}
	defer c.state.Release()

	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDurationVec(metrics.CycleDuration, cfg.ID)
		metrics.CyclesTotal.WithLabelValues(cfg.ID, metrics.ResultLabel(err)).Inc()
	}()

	checkErr := c.checkAll(ctx, cfg)
	if checkErr != nil {
		c.logger.Error().Err(checkErr).Msg("Some pods could not be checked, they keep their previous state")
	}

	plan := c.remediate(ctx, cfg)

	usable := policy.Usable(c.state.Pods())
	if c.hooks.OnPodListUpdate != nil {
		c.hooks.OnPodListUpdate(ctx, cfg, usable)
	}

	c.logger.Info().
		Str("status", string(plan.Aggregate)).
		Int("pods", c.state.Len()).
		Int("usable", len(usable)).
		Dur("duration", timer.Duration()).
		Msg("Cycle complete")

	c.broker.Publish(&events.Event{
		Type:      events.EventClusterCycle,
		ClusterID: cfg.ID,
		Message:   "cycle complete",
		Metadata: map[string]string{
			"aggregate": string(plan.Aggregate),
			"usable":    strconv.Itoa(len(usable)),
		},
	})

	if checkErr != nil {
		return fmt.Errorf("cluster %s: %w", cfg.ID, checkErr)
	}
	return nil
}

// checkAll runs one health round for every pod concurrently. Each pod's
// backend query and probe run without the cluster lock; the transition is
// applied to the live pod afterwards. A pod whose status query fails keeps
// its previous state and does not hold back the others.
func (c *Controller) checkAll(ctx context.Context, cfg types.ClusterConfig) error {
	var (
		mu   sync.Mutex
		errs []error
		wg   conc.WaitGroup
	)

	for _, pod := range c.state.Pods() {
		wg.Go(func() {
			round, err := c.check(ctx, cfg, pod)
			if err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return
			}
			now := c.now()
			c.state.Update(pod.ID, func(p *types.Pod) {
				health.Transition(p, cfg, round, now)
			})
		})
	}

	if r := wg.WaitAndRecover(); r != nil {
		errs = append(errs, fmt.Errorf("health check panicked: %v", r.Value))
	}
	return errors.Join(errs...)
}

func (c *Controller) check(ctx context.Context, cfg types.ClusterConfig, pod *types.Pod) (health.Round, error) {
	backend, err := c.conn.Status(ctx, pod)
	switch {
	case errors.Is(err, connector.ErrPodNotFound):
		// Gone from the backend: treat as dead so policy restarts or drops it
		c.logger.Warn().Str("pod_id", pod.ID).Msg("Pod no longer exists on the backend")
		backend = types.PodStatusUnhealthy
	case err != nil:
		return health.Round{}, fmt.Errorf("failed to get status of pod %s: %w", pod.ID, err)
	}

	round := health.Round{Backend: backend}
	if health.SkipsProbe(backend) {
		c.logger.Debug().Str("pod_id", pod.ID).Msg("Backend reports pod unhealthy, probe skipped")
		return round, nil
	}

	if c.hooks.CheckPodHealth == nil {
		round.Outcome = health.OutcomeError
	} else {
		outcome, perr := health.RunProbe(ctx, c.hooks.CheckPodHealth, cfg, pod.ID)
		round.Outcome = outcome
		if perr != nil {
			c.logger.Debug().Err(perr).Str("pod_id", pod.ID).Msg("Health probe failed")
		}
	}
	metrics.ProbesTotal.WithLabelValues(cfg.ID, string(round.Outcome)).Inc()
	return round, nil
}

// remediate applies the policy plan through the ops executor
func (c *Controller) remediate(ctx context.Context, cfg types.ClusterConfig) policy.Plan {
	plan := policy.NewPlan(c.state.Pods(), cfg)

	if plan.Bulk != policy.ActionNone {
		c.ops.Bulk(ctx, plan.Bulk, plan.BulkStatuses...)
	}
	if plan.ScaleDown > 0 {
		removed := c.ops.ScaleDown(ctx, plan.ScaleDown, plan.ScaleDownTiers)
		c.logger.Info().Int("requested", plan.ScaleDown).Int("removed", removed).Msg("Scaled down")
	}
	if plan.ScaleUpAllowed {
		if deficit := policy.Deficit(c.state.Pods(), cfg.TargetCount); deficit > 0 {
			added := c.ops.ScaleUp(ctx, deficit)
			c.logger.Info().Int("requested", deficit).Int("added", added).Msg("Scaled up")
		}
	}
	return plan
}
