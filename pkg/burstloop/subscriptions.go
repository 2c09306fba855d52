package burstloop

import (
	"fmt"
	"time"

	"github.com/corticodb/burstcore/pkg/wire"
)

// Granularity is the visualization voxel-binning factor applied to a
// large cortical area; it is a re-export of wire.Granularity so callers
// configuring the runner don't need to import pkg/wire directly.
type Granularity = wire.Granularity

type vizSubscriber struct {
	agentID     string
	rateHz      float64
	lastPublish time.Time
}

type motorSubscriber struct {
	agentID     string
	corticalIDs map[string]bool
	rateHz      float64
	lastPublish time.Time
}

// RegisterVisualizationSubscriptionsWithRate adds or updates a
// visualization subscriber. Registration fails if rateHz is non-positive
// or exceeds the runner's current burst frequency.
func (r *Runner) RegisterVisualizationSubscriptionsWithRate(agentID string, rateHz float64) error {
	if rateHz <= 0 {
		return fmt.Errorf("burstloop: visualization rate must be positive, got %v", rateHz)
	}
	if rateHz > r.GetFrequency() {
		return fmt.Errorf("burstloop: visualization rate %v exceeds burst frequency %v", rateHz, r.GetFrequency())
	}

	r.subMu.Lock()
	defer r.subMu.Unlock()
	r.viz[agentID] = &vizSubscriber{agentID: agentID, rateHz: rateHz}
	r.resetMissingAgentWarning(agentID)
	return nil
}

// UnregisterVisualizationSubscriptions removes a visualization subscriber,
// if present.
func (r *Runner) UnregisterVisualizationSubscriptions(agentID string) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	delete(r.viz, agentID)
}

// RegisterMotorSubscriptionsWithRate adds or updates a motor subscriber
// filtered to corticalIDs. Registration fails if rateHz is non-positive
// or exceeds the runner's current burst frequency.
func (r *Runner) RegisterMotorSubscriptionsWithRate(agentID string, corticalIDs []string, rateHz float64) error {
	if rateHz <= 0 {
		return fmt.Errorf("burstloop: motor rate must be positive, got %v", rateHz)
	}
	if rateHz > r.GetFrequency() {
		return fmt.Errorf("burstloop: motor rate %v exceeds burst frequency %v", rateHz, r.GetFrequency())
	}

	set := make(map[string]bool, len(corticalIDs))
	for _, id := range corticalIDs {
		set[id] = true
	}

	r.subMu.Lock()
	defer r.subMu.Unlock()
	r.motor[agentID] = &motorSubscriber{agentID: agentID, corticalIDs: set, rateHz: rateHz}
	r.resetMissingAgentWarning(agentID)
	return nil
}

// UnregisterMotorSubscriptions removes a motor subscriber, if present.
func (r *Runner) UnregisterMotorSubscriptions(agentID string) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	delete(r.motor, agentID)
}

// dueVisualizationAgents returns the subscribers whose rate-gate allows a
// publish at now, without mutating lastPublish (that happens only after a
// successful publish).
func (r *Runner) dueVisualizationAgents(now time.Time) []*vizSubscriber {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	due := make([]*vizSubscriber, 0, len(r.viz))
	for _, s := range r.viz {
		if s.lastPublish.IsZero() || now.Sub(s.lastPublish) >= time.Duration(float64(time.Second)/s.rateHz) {
			due = append(due, s)
		}
	}
	return due
}

func (r *Runner) dueMotorAgents(now time.Time) []*motorSubscriber {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	due := make([]*motorSubscriber, 0, len(r.motor))
	for _, s := range r.motor {
		if s.lastPublish.IsZero() || now.Sub(s.lastPublish) >= time.Duration(float64(time.Second)/s.rateHz) {
			due = append(due, s)
		}
	}
	return due
}

func (r *Runner) markVizPublished(agentID string, at time.Time) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	if s, ok := r.viz[agentID]; ok {
		s.lastPublish = at
	}
}

func (r *Runner) markMotorPublished(agentID string, at time.Time) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	if s, ok := r.motor[agentID]; ok {
		s.lastPublish = at
	}
}

// hasAnyVisualizationSubscriber reports whether any visualization
// subscriber is registered, independent of per-agent rate gating. Attached
// SHM writers are not considered here.
func (r *Runner) hasAnyVisualizationSubscriber() bool {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	return len(r.viz) > 0
}

func (r *Runner) hasAnyMotorSubscriber() bool {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	return len(r.motor) > 0
}

// resetMissingAgentWarning clears the once-only "missing agent" dedupe
// state so a re-registered agent's next failure logs again.
func (r *Runner) resetMissingAgentWarning(agentID string) {
	r.missingAgentWarned.Delete(agentID)
}
