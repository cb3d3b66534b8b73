package container

import (
	"context"
	"fmt"
	"time"
)

// sampleState carries the sliding "continuously healthy/alive since"
// timestamp across SAMPLE iterations.
type sampleState struct {
	stableSince time.Time
	haveStable  bool
}

// evaluateSample implements one iteration of the SAMPLE loop in §4.5's
// verify state machine. baseline is the snapshot taken right after
// start; current is a freshly refreshed snapshot. now is the sample
// time. It returns (settled, ok, reason): settled is true once the
// machine has reached OK or FAIL; reason explains a FAIL.
func evaluateSample(baseline, current ContainerSnapshot, st *sampleState, policy VerifyPolicy, now time.Time) (settled bool, ok bool, reason string) {
	if current.RestartCount > baseline.RestartCount {
		return true, false, "restarted"
	}
	if !current.StartedAt.Equal(baseline.StartedAt) {
		return true, false, "manually restarted"
	}
	if current.Status != "running" && current.Status != "starting" {
		return true, false, "not running"
	}

	hasHealth := current.Healthcheck != nil
	if hasHealth {
		switch current.Health {
		case "healthy":
			if !st.haveStable {
				st.haveStable = true
				st.stableSince = now
			}
			if now.Sub(st.stableSince) >= policy.StableTime {
				return true, true, ""
			}
			return false, false, ""
		case "unhealthy":
			return true, false, "unhealthy"
		default:
			st.haveStable = false
			return false, false, ""
		}
	}

	if !st.haveStable {
		st.haveStable = true
		st.stableSince = now
	}
	if now.Sub(st.stableSince) >= policy.StableTime {
		return true, true, ""
	}
	return false, false, ""
}

// VerifyStart drives the SAMPLE loop against a live driver: it waits
// out the grace period, then polls Inspect every Interval until either
// the machine settles or MaxWait elapses.
func VerifyStart(ctx context.Context, d Driver, id string, baseline ContainerSnapshot, policy VerifyPolicy) (bool, error) {
	select {
	case <-time.After(policy.Grace):
	case <-ctx.Done():
		return false, ctx.Err()
	}

	deadline := time.Now().Add(policy.MaxWait)
	st := &sampleState{}
	ticker := time.NewTicker(policy.Interval)
	defer ticker.Stop()

	for {
		current, err := d.Inspect(ctx, id)
		if err != nil {
			return false, fmt.Errorf("verify: inspecting %s: %w", id, err)
		}

		now := time.Now()
		settled, ok, reason := evaluateSample(baseline, current, st, policy, now)
		if settled {
			if ok {
				return true, nil
			}
			return false, fmt.Errorf("verify failed: %s", reason)
		}

		if now.After(deadline) {
			return false, fmt.Errorf("verify failed: timeout")
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
}
