// Package npu implements the structure-of-arrays neuron/synapse store and
// its per-tick process_burst state machine.
package npu

import (
	"log"
	"sort"

	"github.com/corticodb/burstcore/pkg/backend"
	"github.com/corticodb/burstcore/pkg/core"
)

// NeuronParams are the caller-supplied static fields for a new neuron; the
// dynamic fields (membrane potential, countdowns) start at their rest
// values.
type NeuronParams struct {
	Threshold            float32
	ThresholdLimit       float32
	LeakCoefficient      float32
	RestingPotential     float32
	Excitability         float32
	RefractoryPeriod     uint16
	ConsecutiveFireLimit uint16
	SnoozePeriod         uint16
	NeuronType           int8
	MPChargeAccumulation bool
	CorticalIndex        core.CorticalIndex
	X, Y, Z              uint32
}

type voxelKey struct {
	corticalIndex core.CorticalIndex
	x, y, z       uint32
}

type pendingInjection struct {
	neuron    core.NeuronID
	potential float32
}

// Storage holds the fixed-capacity neuron/synapse SoA columns plus the
// per-area and per-voxel reverse indices described in the component design.
// It is not safe for concurrent use on its own; callers serialize access
// through the NPU's write-preferring lock.
type Storage struct {
	maxNeurons  int
	maxSynapses int

	membranePotential    []float32
	threshold            []float32
	thresholdLimit       []float32
	leakCoefficient      []float32
	restingPotential     []float32
	excitability         []float32
	refractoryPeriod     []uint16
	consecutiveFireLimit []uint16
	snoozePeriod         []uint16
	refractoryCountdown  []uint16
	consecutiveFireCount []uint16
	neuronType           []int8
	mpChargeAccumulation []bool
	neuronCorticalIndex  []uint32
	x, y, z              []uint32
	neuronValid          []bool
	neuronLen            int
	liveNeurons          int
	freeNeuronSlots      []core.NeuronID

	synSource      []uint32
	synTarget      []uint32
	synWeight      []uint8
	synConductance []uint8
	synType        []uint8
	synValid       []bool
	synLen         int
	liveSynapses   int
	freeSynSlots   []core.SynapseIndex

	areaNeurons  map[core.CorticalIndex]map[core.NeuronID]struct{}
	voxelNeurons map[voxelKey]core.NeuronID
	sourceIndex  backend.SourceIndex

	corticalLabels map[core.CorticalIndex]string

	pending    []pendingInjection
	maxPending int
}

// NewStorage allocates a Storage with the given fixed capacities.
func NewStorage(maxNeurons, maxSynapses, maxPendingInjections int) *Storage {
	return &Storage{
		maxNeurons:     maxNeurons,
		maxSynapses:    maxSynapses,
		areaNeurons:    make(map[core.CorticalIndex]map[core.NeuronID]struct{}),
		voxelNeurons:   make(map[voxelKey]core.NeuronID),
		sourceIndex:    make(backend.SourceIndex),
		corticalLabels: make(map[core.CorticalIndex]string),
		maxPending:     maxPendingInjections,
	}
}

// RegisterCorticalArea records the index -> base64 id label used for
// downstream labeling of neurons added to that area.
func (s *Storage) RegisterCorticalArea(index core.CorticalIndex, idBase64 string) {
	s.corticalLabels[index] = idBase64
	if _, ok := s.areaNeurons[index]; !ok {
		s.areaNeurons[index] = make(map[core.NeuronID]struct{})
	}
}

// AddNeuron appends or reuses a tombstoned slot for a single neuron.
func (s *Storage) AddNeuron(p NeuronParams) (core.NeuronID, error) {
	id, err := s.allocNeuronSlot()
	if err != nil {
		return 0, err
	}
	s.writeNeuron(id, p)
	return id, nil
}

// AddNeuronsBatch appends one neuron per entry of params. Batch adds are always appended past the current
// column length rather than reusing tombstoned slots, so the assigned ids
// form a contiguous range starting at the returned first id; callers (e.g.
// area neurogenesis) rely on synthesizing the full id range as
// first..first+count-1 rather than tracking each id individually.
func (s *Storage) AddNeuronsBatch(params []NeuronParams) (int, core.NeuronID, error) {
	if len(params) == 0 {
		return 0, 0, nil
	}
	if s.neuronLen+len(params) > s.maxNeurons {
		return 0, 0, core.CapacityExceeded("neurons")
	}
	first := core.NeuronID(s.neuronLen)
	for _, p := range params {
		id := core.NeuronID(s.neuronLen)
		s.growNeuronColumns()
		s.writeNeuron(id, p)
	}
	return len(params), first, nil
}

func (s *Storage) allocNeuronSlot() (core.NeuronID, error) {
	if n := len(s.freeNeuronSlots); n > 0 {
		id := s.freeNeuronSlots[n-1]
		s.freeNeuronSlots = s.freeNeuronSlots[:n-1]
		return id, nil
	}
	if s.neuronLen >= s.maxNeurons {
		return 0, core.CapacityExceeded("neurons")
	}
	id := core.NeuronID(s.neuronLen)
	s.growNeuronColumns()
	return id, nil
}

func (s *Storage) growNeuronColumns() {
	s.membranePotential = append(s.membranePotential, 0)
	s.threshold = append(s.threshold, 0)
	s.thresholdLimit = append(s.thresholdLimit, 0)
	s.leakCoefficient = append(s.leakCoefficient, 0)
	s.restingPotential = append(s.restingPotential, 0)
	s.excitability = append(s.excitability, 0)
	s.refractoryPeriod = append(s.refractoryPeriod, 0)
	s.consecutiveFireLimit = append(s.consecutiveFireLimit, 0)
	s.snoozePeriod = append(s.snoozePeriod, 0)
	s.refractoryCountdown = append(s.refractoryCountdown, 0)
	s.consecutiveFireCount = append(s.consecutiveFireCount, 0)
	s.neuronType = append(s.neuronType, 0)
	s.mpChargeAccumulation = append(s.mpChargeAccumulation, false)
	s.neuronCorticalIndex = append(s.neuronCorticalIndex, 0)
	s.x = append(s.x, 0)
	s.y = append(s.y, 0)
	s.z = append(s.z, 0)
	s.neuronValid = append(s.neuronValid, false)
	s.neuronLen++
}

func (s *Storage) writeNeuron(id core.NeuronID, p NeuronParams) {
	i := int(id)
	s.membranePotential[i] = p.RestingPotential
	s.threshold[i] = p.Threshold
	s.thresholdLimit[i] = p.ThresholdLimit
	s.leakCoefficient[i] = p.LeakCoefficient
	s.restingPotential[i] = p.RestingPotential
	s.excitability[i] = p.Excitability
	s.refractoryPeriod[i] = p.RefractoryPeriod
	s.consecutiveFireLimit[i] = p.ConsecutiveFireLimit
	s.snoozePeriod[i] = p.SnoozePeriod
	s.refractoryCountdown[i] = 0
	s.consecutiveFireCount[i] = 0
	s.neuronType[i] = p.NeuronType
	s.mpChargeAccumulation[i] = p.MPChargeAccumulation
	s.neuronCorticalIndex[i] = uint32(p.CorticalIndex)
	s.x[i] = p.X
	s.y[i] = p.Y
	s.z[i] = p.Z
	s.neuronValid[i] = true
	s.liveNeurons++

	if _, ok := s.areaNeurons[p.CorticalIndex]; !ok {
		s.areaNeurons[p.CorticalIndex] = make(map[core.NeuronID]struct{})
	}
	s.areaNeurons[p.CorticalIndex][id] = struct{}{}
	s.voxelNeurons[voxelKey{p.CorticalIndex, p.X, p.Y, p.Z}] = id
}

// DeleteNeuron tombstones a neuron slot, releasing it for future reuse.
// It does not touch synapses referencing the neuron: they stay valid in the
// synapse columns, and neural dynamics skips the tombstoned slot.
func (s *Storage) DeleteNeuron(id core.NeuronID) bool {
	i := int(id)
	if i < 0 || i >= s.neuronLen || !s.neuronValid[i] {
		return false
	}
	area := core.CorticalIndex(s.neuronCorticalIndex[i])
	delete(s.areaNeurons[area], id)
	delete(s.voxelNeurons, voxelKey{area, s.x[i], s.y[i], s.z[i]})
	s.neuronValid[i] = false
	s.liveNeurons--
	s.freeNeuronSlots = append(s.freeNeuronSlots, id)
	return true
}

// AddSynapse appends or reuses a tombstoned slot for a new synapse and
// updates the source fan-out index.
func (s *Storage) AddSynapse(src, tgt core.NeuronID, weight, conductance, synType uint8) (core.SynapseIndex, error) {
	if !s.IsNeuronValid(src) || !s.IsNeuronValid(tgt) {
		return 0, core.InvalidSynapse(src, tgt)
	}

	var idx core.SynapseIndex
	if n := len(s.freeSynSlots); n > 0 {
		idx = s.freeSynSlots[n-1]
		s.freeSynSlots = s.freeSynSlots[:n-1]
	} else {
		if s.synLen >= s.maxSynapses {
			return 0, core.CapacityExceeded("synapses")
		}
		idx = core.SynapseIndex(s.synLen)
		s.synSource = append(s.synSource, 0)
		s.synTarget = append(s.synTarget, 0)
		s.synWeight = append(s.synWeight, 0)
		s.synConductance = append(s.synConductance, 0)
		s.synType = append(s.synType, 0)
		s.synValid = append(s.synValid, false)
		s.synLen++
	}

	i := int(idx)
	s.synSource[i] = uint32(src)
	s.synTarget[i] = uint32(tgt)
	s.synWeight[i] = weight
	s.synConductance[i] = conductance
	s.synType[i] = synType
	s.synValid[i] = true
	s.liveSynapses++

	s.sourceIndex[src] = append(s.sourceIndex[src], idx)
	return idx, nil
}

// rebuildSourceIndex recomputes the source -> synapse-index fan-out from
// scratch; RemoveSynapse calls it after each removal.
func (s *Storage) rebuildSourceIndex() {
	s.sourceIndex = make(backend.SourceIndex, len(s.sourceIndex))
	for i := 0; i < s.synLen; i++ {
		if !s.synValid[i] {
			continue
		}
		src := core.NeuronID(s.synSource[i])
		s.sourceIndex[src] = append(s.sourceIndex[src], core.SynapseIndex(i))
	}
}

// findSynapse returns the index of the live synapse src->tgt, if any.
func (s *Storage) findSynapse(src, tgt core.NeuronID) (core.SynapseIndex, bool) {
	for _, idx := range s.sourceIndex[src] {
		i := int(idx)
		if s.synValid[i] && core.NeuronID(s.synTarget[i]) == tgt {
			return idx, true
		}
	}
	return 0, false
}

// UpdateSynapseWeight rewrites the weight of an existing src->tgt synapse.
func (s *Storage) UpdateSynapseWeight(src, tgt core.NeuronID, weight uint8) bool {
	idx, ok := s.findSynapse(src, tgt)
	if !ok {
		return false
	}
	s.synWeight[idx] = weight
	return true
}

// RemoveSynapse tombstones the src->tgt synapse if present.
func (s *Storage) RemoveSynapse(src, tgt core.NeuronID) bool {
	idx, ok := s.findSynapse(src, tgt)
	if !ok {
		return false
	}
	i := int(idx)
	s.synValid[i] = false
	s.liveSynapses--
	s.freeSynSlots = append(s.freeSynSlots, idx)
	s.rebuildSourceIndex()
	return true
}

// SynapseView is a read-only projection of one synapse record.
type SynapseView struct {
	Source      core.NeuronID
	Target      core.NeuronID
	Weight      uint8
	Conductance uint8
	SynapseType uint8
}

// GetOutgoingSynapses returns every live synapse whose source is src,
// O(1) fan-out via the source index.
func (s *Storage) GetOutgoingSynapses(src core.NeuronID) []SynapseView {
	idxs := s.sourceIndex[src]
	out := make([]SynapseView, 0, len(idxs))
	for _, idx := range idxs {
		i := int(idx)
		if !s.synValid[i] {
			continue
		}
		out = append(out, SynapseView{
			Source:      core.NeuronID(s.synSource[i]),
			Target:      core.NeuronID(s.synTarget[i]),
			Weight:      s.synWeight[i],
			Conductance: s.synConductance[i],
			SynapseType: s.synType[i],
		})
	}
	return out
}

// GetIncomingSynapses returns every live synapse whose target is tgt.
// There is no O(1) index for this direction in the component design, so
// this scans the synapse columns.
func (s *Storage) GetIncomingSynapses(tgt core.NeuronID) []SynapseView {
	out := []SynapseView{}
	for i := 0; i < s.synLen; i++ {
		if !s.synValid[i] || core.NeuronID(s.synTarget[i]) != tgt {
			continue
		}
		out = append(out, SynapseView{
			Source:      core.NeuronID(s.synSource[i]),
			Target:      core.NeuronID(s.synTarget[i]),
			Weight:      s.synWeight[i],
			Conductance: s.synConductance[i],
			SynapseType: s.synType[i],
		})
	}
	return out
}

// IsNeuronValid reports whether id refers to a live (non-tombstoned) slot.
func (s *Storage) IsNeuronValid(id core.NeuronID) bool {
	i := int(id)
	return i >= 0 && i < s.neuronLen && s.neuronValid[i]
}

// GetNeuronCoordinates returns the (x, y, z) voxel position of a live
// neuron.
func (s *Storage) GetNeuronCoordinates(id core.NeuronID) (x, y, z uint32, ok bool) {
	if !s.IsNeuronValid(id) {
		return 0, 0, 0, false
	}
	i := int(id)
	return s.x[i], s.y[i], s.z[i], true
}

// IdleDynamicsNeurons returns live neurons that must still pass through
// ProcessNeuralDynamics on a tick even though they received no pending
// injection, power drive, or synaptic contribution this tick: those still
// counting down a refractory period, and charge-accumulating neurons whose
// membrane potential has not yet settled at resting_potential under leak.
// Without this sweep those neurons never reappear in the FCL once their
// one contributing tick has passed, so their refractory countdown freezes
// and their potential never leaks back down.
func (s *Storage) IdleDynamicsNeurons() []core.NeuronID {
	var out []core.NeuronID
	for i := 0; i < s.neuronLen; i++ {
		if !s.neuronValid[i] {
			continue
		}
		if s.refractoryCountdown[i] > 0 {
			out = append(out, core.NeuronID(i))
			continue
		}
		if s.mpChargeAccumulation[i] && s.leakCoefficient[i] > 0 && s.membranePotential[i] != s.restingPotential[i] {
			out = append(out, core.NeuronID(i))
		}
	}
	return out
}

// NeuronsInArea returns the sorted set of live neuron ids registered in a
// cortical area.
func (s *Storage) NeuronsInArea(index core.CorticalIndex) []core.NeuronID {
	set := s.areaNeurons[index]
	out := make([]core.NeuronID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// NeuronAtVoxel looks up the neuron occupying a given (cortical_index, x,
// y, z) coordinate, used for sensory injection by voxel.
func (s *Storage) NeuronAtVoxel(index core.CorticalIndex, x, y, z uint32) (core.NeuronID, bool) {
	id, ok := s.voxelNeurons[voxelKey{index, x, y, z}]
	return id, ok
}

// NeuronCount returns the number of live (non-tombstoned) neurons.
func (s *Storage) NeuronCount() int { return s.liveNeurons }

// SynapseCount returns the number of live (non-tombstoned) synapses.
func (s *Storage) SynapseCount() int { return s.liveSynapses }

// GetNeuronThreshold returns a live neuron's current firing threshold.
func (s *Storage) GetNeuronThreshold(id core.NeuronID) (float32, bool) {
	if !s.IsNeuronValid(id) {
		return 0, false
	}
	return s.threshold[id], true
}

// SetNeuronThreshold overwrites a live neuron's firing threshold.
func (s *Storage) SetNeuronThreshold(id core.NeuronID, v float32) bool {
	if !s.IsNeuronValid(id) {
		return false
	}
	s.threshold[id] = v
	return true
}

// SetNeuronThresholdLimit overwrites a live neuron's threshold ceiling.
func (s *Storage) SetNeuronThresholdLimit(id core.NeuronID, v float32) bool {
	if !s.IsNeuronValid(id) {
		return false
	}
	s.thresholdLimit[id] = v
	return true
}

// SetNeuronRefractoryPeriod overwrites a live neuron's refractory period.
func (s *Storage) SetNeuronRefractoryPeriod(id core.NeuronID, v uint16) bool {
	if !s.IsNeuronValid(id) {
		return false
	}
	s.refractoryPeriod[id] = v
	return true
}

// SetNeuronLeakCoefficient overwrites a live neuron's leak coefficient.
func (s *Storage) SetNeuronLeakCoefficient(id core.NeuronID, v float32) bool {
	if !s.IsNeuronValid(id) {
		return false
	}
	s.leakCoefficient[id] = v
	return true
}

// SetNeuronConsecutiveFireLimit overwrites a live neuron's consecutive-fire
// snooze limit.
func (s *Storage) SetNeuronConsecutiveFireLimit(id core.NeuronID, v uint16) bool {
	if !s.IsNeuronValid(id) {
		return false
	}
	s.consecutiveFireLimit[id] = v
	return true
}

// SetNeuronSnoozePeriod overwrites a live neuron's post-limit snooze period.
func (s *Storage) SetNeuronSnoozePeriod(id core.NeuronID, v uint16) bool {
	if !s.IsNeuronValid(id) {
		return false
	}
	s.snoozePeriod[id] = v
	return true
}

// SetNeuronExcitability overwrites a live neuron's excitability scalar.
func (s *Storage) SetNeuronExcitability(id core.NeuronID, v float32) bool {
	if !s.IsNeuronValid(id) {
		return false
	}
	s.excitability[id] = v
	return true
}

// SetNeuronMPChargeAccumulation overwrites a live neuron's charge
// accumulation flag.
func (s *Storage) SetNeuronMPChargeAccumulation(id core.NeuronID, v bool) bool {
	if !s.IsNeuronValid(id) {
		return false
	}
	s.mpChargeAccumulation[id] = v
	return true
}

// StageInjection appends a pending sensory injection, dropping the oldest
// entry and logging once if the bounded list is full.
func (s *Storage) StageInjection(id core.NeuronID, potential float32) {
	if len(s.pending) >= s.maxPending {
		s.pending = s.pending[1:]
		core.LogOnce("npu.pending_injections", "overflow", func() {
			log.Printf("npu: pending injection queue full (cap %d), dropping oldest", s.maxPending)
		})
	}
	s.pending = append(s.pending, pendingInjection{neuron: id, potential: potential})
}

// drainPending returns and clears the staged injection list.
func (s *Storage) drainPending() []pendingInjection {
	out := s.pending
	s.pending = nil
	return out
}

// neuronColumns builds a by-reference backend view over the neuron SoA.
func (s *Storage) neuronColumns() *backend.NeuronColumns {
	return &backend.NeuronColumns{
		MembranePotential:    s.membranePotential,
		Threshold:            s.threshold,
		ThresholdLimit:       s.thresholdLimit,
		LeakCoefficient:      s.leakCoefficient,
		RestingPotential:     s.restingPotential,
		Excitability:         s.excitability,
		RefractoryPeriod:     s.refractoryPeriod,
		ConsecutiveFireLimit: s.consecutiveFireLimit,
		SnoozePeriod:         s.snoozePeriod,
		RefractoryCountdown:  s.refractoryCountdown,
		ConsecutiveFireCount: s.consecutiveFireCount,
		NeuronType:           s.neuronType,
		MPChargeAccumulation: s.mpChargeAccumulation,
		CorticalIndex:        s.neuronCorticalIndex,
		X:                    s.x,
		Y:                    s.y,
		Z:                    s.z,
		Valid:                s.neuronValid,
	}
}

// synapseColumns builds a by-reference backend view over the synapse SoA.
func (s *Storage) synapseColumns() *backend.SynapseColumns {
	return &backend.SynapseColumns{
		Source:      s.synSource,
		Target:      s.synTarget,
		Weight:      s.synWeight,
		Conductance: s.synConductance,
		SynapseType: s.synType,
		Valid:       s.synValid,
	}
}
