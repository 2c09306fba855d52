package npu

import (
	"sync/atomic"

	"github.com/corticodb/burstcore/pkg/backend"
	"github.com/corticodb/burstcore/pkg/core"
)

// BurstResult is returned by ProcessBurst, summarizing everything that
// happened during the tick's phases.
type BurstResult struct {
	FiredCount         int
	PowerInjections     int
	SynapticInjections  int
	NeuronsProcessed    int
	RefractoryCount     int
	FireQueueSample     *FireQueueSample
}

// NPU owns the neuron/synapse SoA storage and the compute backend, and
// exposes the single per-tick process_burst entry point plus CRUD and
// query operations consumed by the Connectome Manager and external
// callers. It is guarded by a single write-preferring RWLock: the
// scheduler holds the writer lock for an entire tick body, external
// readers take the reader lock for queries, and external writers
// (sensory injection staging, the per-neuron setters that apply parameter
// updates) take the writer lock only briefly. Pushing onto the parameter
// queue does not take this lock.
type NPU struct {
	lock    *RWLock
	storage *Storage
	be      backend.Backend

	burstCount atomic.Uint64

	cachedNeuronCount  atomic.Int64
	cachedSynapseCount atomic.Int64

	lastFired []core.NeuronID
	lastFCL   FCL

	powerDrive float32
}

// New constructs an NPU over the given storage and compute backend.
// powerDrive is the fixed charge added every tick to neurons registered in
// the reserved power area.
func New(storage *Storage, be backend.Backend, powerDrive float32) *NPU {
	return &NPU{
		lock:       NewRWLock(),
		storage:    storage,
		be:         be,
		lastFCL:    NewFCL(),
		powerDrive: powerDrive,
	}
}

// AddNeuron adds a single neuron to the store.
func (n *NPU) AddNeuron(p NeuronParams) (core.NeuronID, error) {
	n.lock.Lock()
	defer n.lock.Unlock()
	id, err := n.storage.AddNeuron(p)
	if err != nil {
		return 0, err
	}
	n.refreshCachedCountsLocked()
	return id, nil
}

// AddNeuronsBatch adds a batch of neurons built from parallel parameter
// values, returning the count created and the first assigned id.
func (n *NPU) AddNeuronsBatch(params []NeuronParams) (int, core.NeuronID, error) {
	n.lock.Lock()
	defer n.lock.Unlock()
	count, first, err := n.storage.AddNeuronsBatch(params)
	n.refreshCachedCountsLocked()
	return count, first, err
}

// DeleteNeuron tombstones a neuron slot.
func (n *NPU) DeleteNeuron(id core.NeuronID) bool {
	n.lock.Lock()
	defer n.lock.Unlock()
	ok := n.storage.DeleteNeuron(id)
	n.refreshCachedCountsLocked()
	return ok
}

// AddSynapse adds a synapse between two existing neurons.
func (n *NPU) AddSynapse(src, tgt core.NeuronID, weight, conductance, synType uint8) (core.SynapseIndex, error) {
	n.lock.Lock()
	defer n.lock.Unlock()
	idx, err := n.storage.AddSynapse(src, tgt, weight, conductance, synType)
	if err != nil {
		return 0, err
	}
	n.refreshCachedCountsLocked()
	return idx, nil
}

// UpdateSynapseWeight rewrites an existing synapse's weight.
func (n *NPU) UpdateSynapseWeight(src, tgt core.NeuronID, weight uint8) bool {
	n.lock.Lock()
	defer n.lock.Unlock()
	return n.storage.UpdateSynapseWeight(src, tgt, weight)
}

// RemoveSynapse tombstones a synapse.
func (n *NPU) RemoveSynapse(src, tgt core.NeuronID) bool {
	n.lock.Lock()
	defer n.lock.Unlock()
	ok := n.storage.RemoveSynapse(src, tgt)
	n.refreshCachedCountsLocked()
	return ok
}

// GetOutgoingSynapses returns every live synapse sourced at src.
func (n *NPU) GetOutgoingSynapses(src core.NeuronID) []SynapseView {
	n.lock.RLock()
	defer n.lock.RUnlock()
	return n.storage.GetOutgoingSynapses(src)
}

// GetIncomingSynapses returns every live synapse targeting tgt.
func (n *NPU) GetIncomingSynapses(tgt core.NeuronID) []SynapseView {
	n.lock.RLock()
	defer n.lock.RUnlock()
	return n.storage.GetIncomingSynapses(tgt)
}

// RegisterCorticalArea records the index -> id label used for neuron
// labeling.
func (n *NPU) RegisterCorticalArea(index core.CorticalIndex, idBase64 string) {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.storage.RegisterCorticalArea(index, idBase64)
}

// StageInjection stages a sensory injection to be applied at the start of
// the next tick, acquiring the writer lock only briefly.
func (n *NPU) StageInjection(id core.NeuronID, potential float32) {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.storage.StageInjection(id, potential)
}

// IsNeuronValid reports whether id refers to a live neuron.
func (n *NPU) IsNeuronValid(id core.NeuronID) bool {
	n.lock.RLock()
	defer n.lock.RUnlock()
	return n.storage.IsNeuronValid(id)
}

// GetNeuronCoordinates returns the voxel position of a live neuron.
func (n *NPU) GetNeuronCoordinates(id core.NeuronID) (x, y, z uint32, ok bool) {
	n.lock.RLock()
	defer n.lock.RUnlock()
	return n.storage.GetNeuronCoordinates(id)
}

// NeuronsInArea returns the sorted set of live neuron ids registered at a
// cortical index.
func (n *NPU) NeuronsInArea(index core.CorticalIndex) []core.NeuronID {
	n.lock.RLock()
	defer n.lock.RUnlock()
	return n.storage.NeuronsInArea(index)
}

// GetNeuronAtVoxel resolves the neuron occupying a cortical area's voxel,
// for sensory intake's coordinate-addressed injection.
func (n *NPU) GetNeuronAtVoxel(index core.CorticalIndex, x, y, z uint32) (core.NeuronID, bool) {
	n.lock.RLock()
	defer n.lock.RUnlock()
	return n.storage.NeuronAtVoxel(index, x, y, z)
}

// NeuronThreshold returns one neuron's current firing threshold.
func (n *NPU) NeuronThreshold(id core.NeuronID) (float32, bool) {
	n.lock.RLock()
	defer n.lock.RUnlock()
	return n.storage.GetNeuronThreshold(id)
}

// SetNeuronThreshold overwrites one neuron's firing threshold.
func (n *NPU) SetNeuronThreshold(id core.NeuronID, v float32) bool {
	n.lock.Lock()
	defer n.lock.Unlock()
	return n.storage.SetNeuronThreshold(id, v)
}

// SetNeuronThresholdLimit overwrites one neuron's threshold ceiling.
func (n *NPU) SetNeuronThresholdLimit(id core.NeuronID, v float32) bool {
	n.lock.Lock()
	defer n.lock.Unlock()
	return n.storage.SetNeuronThresholdLimit(id, v)
}

// SetNeuronRefractoryPeriod overwrites one neuron's refractory period.
func (n *NPU) SetNeuronRefractoryPeriod(id core.NeuronID, v uint16) bool {
	n.lock.Lock()
	defer n.lock.Unlock()
	return n.storage.SetNeuronRefractoryPeriod(id, v)
}

// SetNeuronLeakCoefficient overwrites one neuron's leak coefficient.
func (n *NPU) SetNeuronLeakCoefficient(id core.NeuronID, v float32) bool {
	n.lock.Lock()
	defer n.lock.Unlock()
	return n.storage.SetNeuronLeakCoefficient(id, v)
}

// SetNeuronConsecutiveFireLimit overwrites one neuron's consecutive-fire
// snooze limit.
func (n *NPU) SetNeuronConsecutiveFireLimit(id core.NeuronID, v uint16) bool {
	n.lock.Lock()
	defer n.lock.Unlock()
	return n.storage.SetNeuronConsecutiveFireLimit(id, v)
}

// SetNeuronSnoozePeriod overwrites one neuron's post-limit snooze period.
func (n *NPU) SetNeuronSnoozePeriod(id core.NeuronID, v uint16) bool {
	n.lock.Lock()
	defer n.lock.Unlock()
	return n.storage.SetNeuronSnoozePeriod(id, v)
}

// SetNeuronExcitability overwrites one neuron's excitability scalar.
func (n *NPU) SetNeuronExcitability(id core.NeuronID, v float32) bool {
	n.lock.Lock()
	defer n.lock.Unlock()
	return n.storage.SetNeuronExcitability(id, v)
}

// SetNeuronMPChargeAccumulation overwrites one neuron's charge accumulation
// drive mode flag.
func (n *NPU) SetNeuronMPChargeAccumulation(id core.NeuronID, v bool) bool {
	n.lock.Lock()
	defer n.lock.Unlock()
	return n.storage.SetNeuronMPChargeAccumulation(id, v)
}

// GetNeuronCount returns the cached live neuron count via a lock-free
// atomic read; it never blocks. The cache is refreshed by every mutating
// call above and by RefreshCachedCounts.
func (n *NPU) GetNeuronCount() int {
	return int(n.cachedNeuronCount.Load())
}

// GetSynapseCount returns the cached live synapse count via a lock-free
// atomic read.
func (n *NPU) GetSynapseCount() int {
	return int(n.cachedSynapseCount.Load())
}

// GetBurstCount returns the current tick counter via a lock-free atomic
// read.
func (n *NPU) GetBurstCount() core.BurstCount {
	return core.BurstCount(n.burstCount.Load())
}

// RefreshCachedCounts opportunistically refreshes the cached neuron/synapse
// counts via a non-blocking try-lock; on failure it leaves the last cached
// values in place. External readers use this instead of blocking against
// the scheduler.
func (n *NPU) RefreshCachedCounts() {
	if !n.lock.TryLock() {
		return
	}
	defer n.lock.Unlock()
	n.refreshCachedCountsLocked()
}

func (n *NPU) refreshCachedCountsLocked() {
	n.cachedNeuronCount.Store(int64(n.storage.NeuronCount()))
	n.cachedSynapseCount.Store(int64(n.storage.SynapseCount()))
}

// ProcessBurst runs the single per-tick entry point: pending sensory
// injection, power drive, synaptic propagation over the previous tick's
// fired set, an idle-neuron sweep, neural dynamics, last-fired rotation,
// optional fire-queue sampling, and the burst counter increment. needSample
// should reflect
// whether any downstream subscriber is currently due or attached; when
// false, phase 6 is skipped entirely. plasticityNotify, if non-nil, is
// invoked with the post-increment burst count before the writer lock is
// released, so a plasticity module observes FireLedger-consistent state.
func (n *NPU) ProcessBurst(needSample bool, plasticityNotify func(core.BurstCount)) (*BurstResult, error) {
	n.lock.Lock()
	defer n.lock.Unlock()

	fcl := NewFCL()

	// Phase 1: apply pending sensory injections (overwrite, not add).
	pending := n.storage.drainPending()
	for _, p := range pending {
		fcl[p.neuron] = p.potential
	}

	// Phase 2: power / drive injection.
	powerInjections := 0
	for id := range n.storage.areaNeurons[core.PowerCorticalIndex] {
		fcl[id] += n.powerDrive
		powerInjections++
	}

	// Phase 3: synaptic propagation over the previous tick's fired set.
	synapticInjections := 0
	if len(n.lastFired) > 0 {
		touched, err := n.be.ProcessSynapticPropagation(n.lastFired, n.storage.synapseColumns(), n.storage.sourceIndex, fcl)
		if err != nil {
			return nil, err
		}
		synapticInjections = touched
	}

	// Phase 3b: seed the FCL with neurons that need a dynamics pass despite
	// receiving no input this tick, so refractory countdowns keep decrementing
	// and leaking membrane potentials keep converging toward rest while idle.
	for _, id := range n.storage.IdleDynamicsNeurons() {
		if _, ok := fcl[id]; !ok {
			fcl[id] = 0
		}
	}

	// Phase 4: neural dynamics over the FCL.
	dynamics, err := n.be.ProcessNeuralDynamics(fcl, n.storage.neuronColumns(), n.GetBurstCount())
	if err != nil {
		return nil, err
	}

	// Phase 5: rotate last_fired and save the FCL snapshot.
	n.lastFired = dynamics.FiredNeurons
	n.lastFCL = fcl

	// Phase 6: fire queue sampling.
	var sample *FireQueueSample
	if needSample {
		preFire := make(map[core.NeuronID]float32, len(dynamics.FiredNeurons))
		for i, id := range dynamics.FiredNeurons {
			preFire[id] = dynamics.FiredPotentials[i]
		}
		sample = buildFireQueueSample(dynamics.FiredNeurons, n.storage, n.GetBurstCount(), preFire)
	}

	// Phase 7: increment burst counter.
	n.burstCount.Add(1)

	if plasticityNotify != nil {
		plasticityNotify(n.GetBurstCount())
	}

	return &BurstResult{
		FiredCount:         len(dynamics.FiredNeurons),
		PowerInjections:    powerInjections,
		SynapticInjections: synapticInjections,
		NeuronsProcessed:   dynamics.FCLInCount,
		RefractoryCount:    dynamics.RefractoryCount,
		FireQueueSample:    sample,
	}, nil
}

// LastFCL returns the FCL snapshot from the most recently completed tick,
// for inspection.
func (n *NPU) LastFCL() FCL {
	n.lock.RLock()
	defer n.lock.RUnlock()
	out := make(FCL, len(n.lastFCL))
	for k, v := range n.lastFCL {
		out[k] = v
	}
	return out
}
