package health

import (
	"context"
	"errors"
	"fmt"

	"github.com/cuemby/gingo/pkg/types"
)

// Outcome classifies one probe round
type Outcome string

const (
	OutcomePass    Outcome = "pass"
	OutcomeFail    Outcome = "fail"
	OutcomeTimeout Outcome = "timeout"
	OutcomeError   Outcome = "error"
)

// Passed reports whether the round counts as passed
func (o Outcome) Passed() bool {
	return o == OutcomePass
}

// ErrProbeTimeout is returned when the probe gave no verdict in time
var ErrProbeTimeout = errors.New("health probe timed out")

type verdict struct {
	ok  bool
	err error
}

// RunProbe runs the probe for one pod bounded by the cluster check timeout.
// Whichever of the probe and the timeout finishes first decides the round.
// A verdict arriving after the timeout lands in a buffered channel nobody
// reads and is dropped.
func RunProbe(ctx context.Context, fn types.HealthFunc, cfg types.ClusterConfig, podID string) (Outcome, error) {
	probeCtx, cancel := context.WithTimeout(ctx, cfg.CheckTimeout())
	defer cancel()

	ch := make(chan verdict, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- verdict{err: fmt.Errorf("health probe panicked: %v", r)}
			}
		}()
		ok, err := fn(probeCtx, cfg, podID)
		ch <- verdict{ok: ok, err: err}
	}()

	select {
	case v := <-ch:
		switch {
		case v.err != nil:
			return OutcomeError, v.err
		case !v.ok:
			return OutcomeFail, nil
		default:
			return OutcomePass, nil
		}
	case <-probeCtx.Done():
		if errors.Is(probeCtx.Err(), context.DeadlineExceeded) {
			return OutcomeTimeout, ErrProbeTimeout
		}
		return OutcomeError, probeCtx.Err()
	}
}
