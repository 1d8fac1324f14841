package health

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cuemby/gingo/pkg/types"
)

// CheckType represents the type of health check
type CheckType string

const (
	CheckTypeHTTP CheckType = "http"
	CheckTypeTCP  CheckType = "tcp"
	CheckTypeGRPC CheckType = "grpc"
	CheckTypeExec CheckType = "exec"
)

// PodPlaceholder is replaced by the pod ID in checker endpoints
const PodPlaceholder = "{pod}"

// Result represents the outcome of a health check
type Result struct {
	Healthy   bool
	Message   string
	CheckedAt time.Time
	Duration  time.Duration
}

// Checker is the interface that all health checkers must implement
type Checker interface {
	// Check performs the health check against one pod
	Check(ctx context.Context, podID string) Result

	// Type returns the type of health check
	Type() CheckType
}

// Expand substitutes the pod ID into an endpoint template
func Expand(template, podID string) string {
	return strings.ReplaceAll(template, PodPlaceholder, podID)
}

// ProbeFunc adapts a Checker into the application probe callback. An
// unhealthy result carries the checker message as its error.
func ProbeFunc(c Checker) types.HealthFunc {
	return func(ctx context.Context, _ types.ClusterConfig, podID string) (bool, error) {
		result := c.Check(ctx, podID)
		if !result.Healthy {
			return false, fmt.Errorf("%s check failed: %s", c.Type(), result.Message)
		}
		return true, nil
	}
}

// Router dispatches probes to a per-cluster checker
type Router struct {
	mu       sync.RWMutex
	checkers map[string]Checker
	fallback types.HealthFunc
}

// NewRouter creates a router. fallback handles clusters without a checker
// and may be nil, in which case such probes fail.
func NewRouter(fallback types.HealthFunc) *Router {
	return &Router{
		checkers: make(map[string]Checker),
		fallback: fallback,
	}
}

// Set registers the checker for a cluster
func (r *Router) Set(clusterID string, c Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers[clusterID] = c
}

// Replace swaps the whole checker set, as after a configuration reload
func (r *Router) Replace(checkers map[string]Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers = make(map[string]Checker, len(checkers))
	for id, c := range checkers {
		r.checkers[id] = c
	}
}

// Check implements types.HealthFunc
func (r *Router) Check(ctx context.Context, cfg types.ClusterConfig, podID string) (bool, error) {
	r.mu.RLock()
	c, ok := r.checkers[cfg.ID]
	r.mu.RUnlock()

	if ok {
		return ProbeFunc(c)(ctx, cfg, podID)
	}
	if r.fallback != nil {
		return r.fallback(ctx, cfg, podID)
	}
	return false, fmt.Errorf("no health checker for cluster %s", cfg.ID)
}
