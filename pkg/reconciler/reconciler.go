package reconciler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/cuemby/gingo/pkg/cluster"
	"github.com/cuemby/gingo/pkg/config"
	"github.com/cuemby/gingo/pkg/connector"
	"github.com/cuemby/gingo/pkg/controller"
	"github.com/cuemby/gingo/pkg/events"
	"github.com/cuemby/gingo/pkg/log"
	"github.com/cuemby/gingo/pkg/metrics"
	"github.com/cuemby/gingo/pkg/policy"
	"github.com/cuemby/gingo/pkg/types"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"
)

var (
	// ErrClusterBusy is returned when a cluster is still busy after every
	// in-flight cycle has been drained. It indicates a broken invariant.
	ErrClusterBusy = errors.New("cluster still busy after drain")

	// ErrMissingProbe is returned when no CheckPodHealth hook is supplied
	ErrMissingProbe = errors.New("CheckPodHealth hook is required")
)

// entry is one registered cluster and its periodic timer
type entry struct {
	ctrl  *controller.Controller
	timer *ticker
}

// ticker drives RunCycle for one cluster. stop is closed to disarm; done
// is closed once the goroutine has exited and can start no more cycles.
type ticker struct {
	stop chan struct{}
	done chan struct{}
}

// Reconciler owns every cluster, runs their timers and applies
// configuration changes behind a full barrier
type Reconciler struct {
	conn   connector.Connector
	hooks  types.Hooks
	broker *events.Broker
	now    func() time.Time
	logger zerolog.Logger

	// reconfigMu serializes SetClusterConfigs and Stop
	reconfigMu sync.Mutex

	mu       sync.RWMutex
	clusters map[string]*entry
	order    []string

	// inflight tracks cycles started by timers. It is replaced after every
	// drain so a recovered panic is reported once.
	inflight *conc.WaitGroup

	runCtx  context.Context
	running bool
}

// Option configures a Reconciler
type Option func(*Reconciler)

// WithClock overrides the time source of every controller
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// WithBroker publishes events to broker
func WithBroker(broker *events.Broker) Option {
	return func(r *Reconciler) { r.broker = broker }
}

// NewReconciler creates a reconciler with no clusters
func NewReconciler(conn connector.Connector, hooks types.Hooks, opts ...Option) (*Reconciler, error) {
	if hooks.CheckPodHealth == nil {
		return nil, ErrMissingProbe
	}

	r := &Reconciler{
		conn:     conn,
		hooks:    hooks,
		now:      time.Now,
		logger:   log.WithComponent("reconciler"),
		clusters: make(map[string]*entry),
		inflight: conc.NewWaitGroup(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Start loads the initial configuration and arms the timers. Cycles run
// with ctx until Stop is called.
func (r *Reconciler) Start(ctx context.Context, cfgs []types.ClusterConfig) error {
	r.reconfigMu.Lock()
	r.runCtx = ctx
	r.running = true
	r.reconfigMu.Unlock()

	if err := r.SetClusterConfigs(ctx, cfgs); err != nil {
		metrics.UpdateComponent(metrics.ComponentReconciler, false, err.Error())
		return err
	}
	metrics.UpdateComponent(metrics.ComponentReconciler, true, "running")
	return nil
}

// Stop disarms every timer and waits for in-flight cycles to finish
func (r *Reconciler) Stop() {
	r.reconfigMu.Lock()
	defer r.reconfigMu.Unlock()

	r.running = false
	r.disarmAll()
	r.drain()
	metrics.UpdateComponent(metrics.ComponentReconciler, false, "stopped")
	r.logger.Info().Msg("Reconciler stopped")
}

// SetClusterConfigs replaces the cluster set. Clusters present before and
// after keep their pods; only their config changes. New clusters start
// empty and are seeded from the backend. Clusters no longer listed are
// dropped and their pods abandoned on the backend.
//
// The call is a barrier: no cycle runs between disarming the timers and
// the end of seeding. It fails without touching any state when the configs
// do not validate or a cluster is still busy after the drain.
func (r *Reconciler) SetClusterConfigs(ctx context.Context, cfgs []types.ClusterConfig) error {
	return r.SetClusterConfigsFunc(ctx, cfgs, nil)
}

// SetClusterConfigsFunc is SetClusterConfigs with a commit callback. commit
// runs inside the barrier once cfgs are accepted and before any cluster is
// changed, so state that cycles read (such as the probe router) can be
// swapped together with the configs. It is not called when the
// reconfiguration is rejected.
func (r *Reconciler) SetClusterConfigsFunc(ctx context.Context, cfgs []types.ClusterConfig, commit func()) (err error) {
	r.reconfigMu.Lock()
	defer r.reconfigMu.Unlock()

	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDuration(metrics.ReconfigurationDuration)
		metrics.ReconfigurationsTotal.WithLabelValues(metrics.ResultLabel(err)).Inc()
	}()

	// 1-2. Stop scheduling and wait for running cycles
	r.disarmAll()
	r.drain()
	defer r.armAll()

	// 3. Nothing may still hold a cluster
	if err := r.assertIdle(); err != nil {
		r.logger.Error().Err(err).Msg("Reconfiguration aborted")
		return err
	}

	// 4. Validate before mutating anything
	if err := config.ValidateClusters(cfgs); err != nil {
		r.logger.Error().Err(err).Msg("Reconfiguration rejected")
		return err
	}

	if commit != nil {
		commit()
	}

	// 5. Reconcile by ID
	added, kept, dropped := r.apply(cfgs)

	// 6. Seed empty clusters from the backend
	r.seed(ctx)

	// 7. One immediate cycle per cluster
	r.runAll(ctx)

	r.logger.Info().
		Int("added", added).
		Int("kept", kept).
		Int("dropped", dropped).
		Dur("duration", timer.Duration()).
		Msg("Clusters reconfigured")
	r.broker.Publish(&events.Event{
		Type:    events.EventClusterReconfigured,
		Message: "clusters reconfigured",
		Metadata: map[string]string{
			"added":   strconv.Itoa(added),
			"kept":    strconv.Itoa(kept),
			"dropped": strconv.Itoa(dropped),
		},
	})

	// 8. Timers are re-armed by the deferred armAll
	return nil
}

func (r *Reconciler) assertIdle() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []error
	for _, id := range r.order {
		if r.clusters[id].ctrl.State().Phase() == cluster.PhaseBusy {
			errs = append(errs, fmt.Errorf("%w: %s", ErrClusterBusy, id))
		}
	}
	return errors.Join(errs...)
}

func (r *Reconciler) apply(cfgs []types.ClusterConfig) (added, kept, dropped int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make(map[string]*entry, len(cfgs))
	order := make([]string, 0, len(cfgs))

	for _, cfg := range cfgs {
		if e, ok := r.clusters[cfg.ID]; ok {
			e.ctrl.State().SetConfig(cfg)
			next[cfg.ID] = e
			kept++
		} else {
			state := cluster.New(cfg)
			next[cfg.ID] = &entry{
				ctrl: controller.New(state, r.conn, r.hooks,
					controller.WithClock(r.now),
					controller.WithBroker(r.broker)),
			}
			added++
		}
		order = append(order, cfg.ID)
	}

	for _, id := range r.order {
		if _, ok := next[id]; ok {
			continue
		}
		dropped++
		r.logger.Warn().
			Str("cluster_id", id).
			Int("pods", r.clusters[id].ctrl.State().Len()).
			Msg("Cluster dropped, its pods are left running on the backend")
	}

	r.clusters = next
	r.order = order
	return added, kept, dropped
}

// seed fills clusters that have no pods from the backend listing. A
// cluster that already has pods is never touched.
func (r *Reconciler) seed(ctx context.Context) {
	states := make(map[string]*cluster.State)
	var empty []string
	for _, e := range r.entries() {
		state := e.ctrl.State()
		if state.Len() == 0 {
			empty = append(empty, state.ID())
			states[state.ID()] = state
		}
	}
	if len(empty) == 0 {
		return
	}

	listed, err := r.conn.List(ctx, empty)
	if err != nil {
		r.logger.Error().Err(err).Strs("clusters", empty).Msg("Failed to list pods for seeding")
		return
	}

	for _, cp := range listed {
		state, ok := states[cp.ClusterID]
		if !ok || len(cp.Pods) == 0 {
			continue
		}
		if state.Seed(cp.Pods) {
			r.logger.Info().Str("cluster_id", cp.ClusterID).Int("pods", len(cp.Pods)).Msg("Cluster seeded from backend")
		}
	}
}

// runAll runs one cycle for every cluster concurrently and waits
func (r *Reconciler) runAll(ctx context.Context) {
	var wg conc.WaitGroup
	for _, e := range r.entries() {
		wg.Go(func() {
			r.runCycle(ctx, e.ctrl)
		})
	}
	if rec := wg.WaitAndRecover(); rec != nil {
		r.logger.Error().Str("panic", fmt.Sprint(rec.Value)).Msg("Cycle panicked during reconfiguration")
	}
}

func (r *Reconciler) runCycle(ctx context.Context, ctrl *controller.Controller) {
	err := ctrl.RunCycle(ctx)
	switch {
	case err == nil, errors.Is(err, controller.ErrDisabled), errors.Is(err, controller.ErrBusy):
	default:
		r.logger.Error().Err(err).Str("cluster_id", ctrl.State().ID()).Msg("Cycle failed")
	}
}

func (r *Reconciler) entries() []*entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*entry, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.clusters[id])
	}
	return out
}

// armAll starts a timer for every cluster using its current interval
func (r *Reconciler) armAll() {
	if !r.running {
		return
	}
	for _, e := range r.entries() {
		r.arm(e)
	}
}

func (r *Reconciler) arm(e *entry) {
	interval := e.ctrl.State().Config().CheckInterval()
	if interval <= 0 {
		// Unreachable after validation; time.NewTicker would panic
		r.logger.Error().
			Str("cluster_id", e.ctrl.State().ID()).
			Dur("interval", interval).
			Msg("Cluster timer not armed, invalid check interval")
		return
	}

	t := &ticker{stop: make(chan struct{}), done: make(chan struct{})}
	e.timer = t

	ctx := r.runCtx
	inflight := r.inflight
	go func() {
		defer close(t.done)

		tick := time.NewTicker(interval)
		defer tick.Stop()

		for {
			select {
			case <-tick.C:
				// A cycle still running makes this one a skip, never a queue
				inflight.Go(func() {
					r.runCycle(ctx, e.ctrl)
				})
			case <-t.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// disarmAll stops every timer and returns once none can start a cycle
func (r *Reconciler) disarmAll() {
	for _, e := range r.entries() {
		if e.timer == nil {
			continue
		}
		close(e.timer.stop)
		<-e.timer.done
		e.timer = nil
	}
}

// drain waits for every timer-started cycle to finish
func (r *Reconciler) drain() {
	if rec := r.inflight.WaitAndRecover(); rec != nil {
		r.logger.Error().Str("panic", fmt.Sprint(rec.Value)).Msg("Cycle panicked")
	}
	r.inflight = conc.NewWaitGroup()
}

// Clusters returns the registered cluster IDs in configuration order
func (r *Reconciler) Clusters() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Snapshot returns copies of every cluster in configuration order
func (r *Reconciler) Snapshot() []cluster.Snapshot {
	entries := r.entries()
	out := make([]cluster.Snapshot, len(entries))
	for i, e := range entries {
		out[i] = e.ctrl.State().Snapshot()
	}
	return out
}

// Get returns a copy of one cluster
func (r *Reconciler) Get(id string) (cluster.Snapshot, bool) {
	r.mu.RLock()
	e, ok := r.clusters[id]
	r.mu.RUnlock()
	if !ok {
		return cluster.Snapshot{}, false
	}
	return e.ctrl.State().Snapshot(), true
}

// ClusterViews implements metrics.Source
func (r *Reconciler) ClusterViews() []metrics.ClusterView {
	snaps := r.Snapshot()
	views := make([]metrics.ClusterView, len(snaps))
	for i, s := range snaps {
		counts := policy.Count(s.Pods)
		pods := make(map[string]int, len(counts.ByStatus))
		for status, n := range counts.ByStatus {
			pods[string(status)] = n
		}
		views[i] = metrics.ClusterView{
			ID:        s.Config.ID,
			Aggregate: string(policy.Aggregate(counts, s.Config.TargetCount)),
			Pods:      pods,
		}
	}
	return views
}
