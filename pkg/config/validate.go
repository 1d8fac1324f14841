package config

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/cuemby/gingo/pkg/types"
)

// ErrInvalidConfig wraps every schema violation
var ErrInvalidConfig = errors.New("invalid cluster config")

// ValidateClusters checks a full cluster list. All violations are reported
// together. BackendCreateParams is passed through unchecked.
func ValidateClusters(cfgs []types.ClusterConfig) error {
	var errs []error
	seen := make(map[string]int, len(cfgs))

	for i, cfg := range cfgs {
		where := fmt.Sprintf("clusters[%d]", i)
		if cfg.ID == "" {
			errs = append(errs, fmt.Errorf("%w: %s: id is required", ErrInvalidConfig, where))
		} else {
			where = fmt.Sprintf("cluster %q", cfg.ID)
			if j, dup := seen[cfg.ID]; dup {
				errs = append(errs, fmt.Errorf("%w: %s: duplicate id (also clusters[%d])", ErrInvalidConfig, where, j))
			}
			seen[cfg.ID] = i
		}

		for _, check := range []struct {
			name string
			ok   bool
		}{
			{"targetCount must be positive", cfg.TargetCount > 0},
			{"checkIntervalMinutes must be positive and finite", positiveDuration(cfg.CheckIntervalMinutes, time.Minute)},
			{"checkTimeoutSeconds must be positive and finite", positiveDuration(cfg.CheckTimeoutSeconds, time.Second)},
			{"healthyThreshold must be positive", cfg.HealthyThreshold > 0},
			{"unhealthyThreshold must be positive", cfg.UnhealthyThreshold > 0},
			{"restartAttemptsToDrop must not be negative", cfg.RestartAttemptsToDrop >= 0},
			{"startGraceMinutes must be finite and not negative", durationInRange(cfg.StartGraceMinutes, time.Minute, 0)},
			{"restartGraceMinutes must be finite and not negative", durationInRange(cfg.RestartGraceMinutes, time.Minute, 0)},
		} {
			if !check.ok {
				errs = append(errs, fmt.Errorf("%w: %s: %s", ErrInvalidConfig, where, check.name))
			}
		}
	}

	return errors.Join(errs...)
}

// positiveDuration reports whether v units converts to a time.Duration of
// at least one nanosecond
func positiveDuration(v float64, unit time.Duration) bool {
	return durationInRange(v, unit, 1)
}

// durationInRange reports whether v units converts to a time.Duration no
// smaller than minNanos without overflowing
func durationInRange(v float64, unit time.Duration, minNanos float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	d := v * float64(unit)
	return d >= minNanos && d < math.MaxInt64
}
