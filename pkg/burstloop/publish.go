package burstloop

import (
	"log"
	"time"

	"github.com/corticodb/burstcore/pkg/core"
	"github.com/corticodb/burstcore/pkg/npu"
	"github.com/corticodb/burstcore/pkg/paramqueue"
	"github.com/corticodb/burstcore/pkg/wire"
)

// tick runs one full burst: phase 0 (parameter drain, sensory intake),
// process_burst, then publication. It is the scheduler's only entry point
// into NPU mutation.
func (r *Runner) tick() {
	paramqueue.ApplyAll(r.manager, r.paramQueue)

	r.cbMu.RLock()
	intake := r.sensoryIntake
	r.cbMu.RUnlock()
	if intake != nil {
		if err := r.pollSensory(intake); err != nil {
			log.Printf("burstloop: sensory intake error: %v", err)
		}
	}

	needSample := r.needsSample()

	r.cbMu.RLock()
	plasticityCB := r.plasticityCB
	postBurstCB := r.postBurstCB
	r.cbMu.RUnlock()

	var notify func(core.BurstCount)
	if plasticityCB != nil {
		notify = plasticityCB
	}

	result, err := r.npu.ProcessBurst(needSample, notify)
	if err != nil {
		log.Printf("burstloop: process_burst failed: %v", err)
		return
	}
	r.burstCount.Store(uint64(r.npu.GetBurstCount()))

	if result.FireQueueSample != nil {
		r.publish(result.FireQueueSample)
	}

	if postBurstCB != nil {
		postBurstCB(r.GetBurstCount())
	}
}

func (r *Runner) pollSensory(intake SensoryIntake) error {
	payload, ok, err := intake.PollSensoryData()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	c, err := wire.Decode(payload)
	if err != nil {
		return err
	}
	for corticalID, pts := range c.Areas {
		id, err := core.CorticalIDFromString(corticalID)
		if err != nil {
			log.Printf("burstloop: sensory intake: malformed cortical id %q: %v", corticalID, err)
			continue
		}
		area, ok := r.manager.GetArea(id)
		if !ok {
			continue
		}
		for i := range pts.X {
			id, ok := r.npu.GetNeuronAtVoxel(area.Index, pts.X[i], pts.Y[i], pts.Z[i])
			if !ok {
				continue
			}
			r.npu.StageInjection(id, pts.P[i])
		}
	}
	return nil
}

// needsSample reports whether phase 6 of process_burst should run: some
// subscriber is due, or a SHM writer is attached to either path (SHM
// writers always want the current tick's sample, independent of rate
// gating, since rate gating only governs when a writer is re-offered a
// frame — the runner always serializes into it once a sample exists).
func (r *Runner) needsSample() bool {
	r.shmMu.Lock()
	vizAttached := r.vizWriter != nil
	motorAttached := r.motorWriter != nil
	r.shmMu.Unlock()

	now := time.Now()
	return vizAttached || motorAttached || len(r.dueVisualizationAgents(now)) > 0 || len(r.dueMotorAgents(now)) > 0
}

// publish fans the sample out to exactly one visualization path (SHM or
// publisher trait, never both) and to every due motor subscriber.
func (r *Runner) publish(sample *npu.FireQueueSample) {
	now := time.Now()
	resolve, granularities := r.resolverAndGranularities()

	r.publishVisualization(sample, now, resolve, granularities)
	r.publishMotor(sample, now, resolve)
}

func (r *Runner) resolverAndGranularities() (wire.IDResolver, map[uint32]Granularity) {
	r.idMu.RLock()
	defer r.idMu.RUnlock()

	indexToID := r.indexToID
	resolve := func(idx uint32) (string, bool) {
		id, ok := indexToID[core.CorticalIndex(idx)]
		return id, ok
	}

	granularities := make(map[uint32]Granularity, len(r.granularities))
	for idx, g := range r.granularities {
		granularities[uint32(idx)] = g
	}
	return resolve, granularities
}

func (r *Runner) publishVisualization(sample *npu.FireQueueSample, now time.Time, resolve wire.IDResolver, granularities map[uint32]Granularity) {
	r.shmMu.Lock()
	writer := r.vizWriter
	r.shmMu.Unlock()

	if writer != nil {
		c, err := wire.FromSample(sample, resolve, nil, granularities)
		if err != nil {
			log.Printf("burstloop: building visualization container: %v", err)
			return
		}
		data, err := wire.Encode(c)
		if err != nil {
			log.Printf("burstloop: encoding visualization container: %v", err)
			return
		}
		if err := writer.WriteAt(data, 0); err != nil {
			log.Printf("burstloop: writing visualization SHM: %v", err)
		}
		return
	}

	r.cbMu.RLock()
	publisher := r.vizPublisher
	r.cbMu.RUnlock()
	if publisher == nil {
		return
	}

	for _, sub := range r.dueVisualizationAgents(now) {
		c, err := wire.FromSample(sample, resolve, nil, granularities)
		if err != nil {
			log.Printf("burstloop: building visualization container for %s: %v", sub.agentID, err)
			continue
		}
		data, err := wire.Encode(c)
		if err != nil {
			log.Printf("burstloop: encoding visualization container for %s: %v", sub.agentID, err)
			continue
		}
		if err := publisher.PublishRawFireQueueForAgent(sub.agentID, data); err != nil {
			r.warnMissingAgentOnce(sub.agentID, err)
			continue
		}
		r.markVizPublished(sub.agentID, now)
	}
}

func (r *Runner) publishMotor(sample *npu.FireQueueSample, now time.Time, resolve wire.IDResolver) {
	r.shmMu.Lock()
	writer := r.motorWriter
	r.shmMu.Unlock()

	r.cbMu.RLock()
	publisher := r.motorPublisher
	r.cbMu.RUnlock()

	for _, sub := range r.dueMotorAgents(now) {
		if len(sub.corticalIDs) == 0 {
			// Empty filter: publish nothing, per the "no empty frames" rule.
			continue
		}
		c, err := wire.FromSample(sample, resolve, sub.corticalIDs, nil)
		if err != nil {
			log.Printf("burstloop: building motor container for %s: %v", sub.agentID, err)
			continue
		}
		if len(c.Areas) == 0 {
			continue
		}
		data, err := wire.Encode(c)
		if err != nil {
			log.Printf("burstloop: encoding motor container for %s: %v", sub.agentID, err)
			continue
		}

		if writer != nil {
			if err := writer.WriteAt(data, 0); err != nil {
				log.Printf("burstloop: writing motor SHM for %s: %v", sub.agentID, err)
				continue
			}
			r.markMotorPublished(sub.agentID, now)
			continue
		}

		if publisher == nil {
			continue
		}
		if err := publisher.PublishMotor(sub.agentID, data); err != nil {
			r.warnMissingAgentOnce(sub.agentID, err)
			continue
		}
		r.markMotorPublished(sub.agentID, now)
	}
}

// warnMissingAgentOnce logs a publish failure at most once per agent per
// disconnection window; the subscription is kept so it self-heals once
// the agent reattaches (RegisterVisualization/MotorSubscriptionsWithRate
// clears the dedupe state).
func (r *Runner) warnMissingAgentOnce(agentID string, err error) {
	if _, already := r.missingAgentWarned.LoadOrStore(agentID, struct{}{}); !already {
		log.Printf("burstloop: publish to agent %s failed, keeping subscription: %v", agentID, err)
	}
}
