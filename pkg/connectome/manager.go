// Package connectome owns cortical-area and brain-region metadata, assigns
// cortical indices, and drives neurogenesis/synaptogenesis against an NPU
// handle. It never acquires the NPU's lock itself for longer than a single
// call; mutations that touch both locks take the Connectome lock first,
// then the NPU lock, per the ordering §5 requires.
package connectome

import (
	"fmt"
	"sort"
	"sync"

	"github.com/corticodb/burstcore/pkg/core"
	"github.com/corticodb/burstcore/pkg/morphology"
	"github.com/corticodb/burstcore/pkg/npu"
)

type mappingKey struct {
	src, dst core.CorticalID
}

// Manager is the cortical area/region registry and synaptogenesis driver.
// It is guarded by a single reader-writer lock; the burst loop scheduler
// must never hold it across ticks.
type Manager struct {
	mu sync.RWMutex

	npu *npu.NPU

	areas     map[core.CorticalID]*Area
	indexToID map[core.CorticalIndex]core.CorticalID
	nextIndex core.CorticalIndex

	mappings map[mappingKey][]morphology.Rule

	regions map[string]*Region

	callbacks lifecycleCallbacks
}

// NewManager constructs a Manager driving neurogenesis/synaptogenesis
// against the given NPU handle.
func NewManager(n *npu.NPU) *Manager {
	return &Manager{
		npu:       n,
		areas:     make(map[core.CorticalID]*Area),
		indexToID: make(map[core.CorticalIndex]core.CorticalID),
		nextIndex: core.FirstRegularCorticalIndex,
		mappings:  make(map[mappingKey][]morphology.Rule),
		regions:   make(map[string]*Region),
	}
}

// AddCorticalArea registers a new area, assigning or validating its index
// per the reserved-index policy in §4.4, and returns the assigned index.
func (m *Manager) AddCorticalArea(a Area) (core.CorticalIndex, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addCorticalAreaLocked(a)
}

func (m *Manager) addCorticalAreaLocked(a Area) (core.CorticalIndex, error) {
	if _, exists := m.areas[a.ID]; exists {
		return 0, core.DuplicateCorticalArea(a.ID.String())
	}

	category := a.ID.Category()
	reservedIdx, isCore := category.ReservedIndex()

	switch {
	case isCore:
		if a.Index != 0 && a.Index != reservedIdx {
			return 0, core.CorticalIndexInUse(a.Index)
		}
		a.Index = reservedIdx
		if existing, taken := m.indexToID[a.Index]; taken && existing != a.ID {
			return 0, core.CorticalIndexInUse(a.Index)
		}
	case a.Index != 0 && a.Index.IsReserved():
		return 0, core.CorticalIndexInUse(a.Index)
	case a.Index != 0:
		if _, taken := m.indexToID[a.Index]; taken {
			return 0, core.CorticalIndexInUse(a.Index)
		}
	default:
		a.Index = m.nextIndex
		m.nextIndex++
	}

	a.State = StateEmpty
	m.areas[a.ID] = &a
	m.indexToID[a.Index] = a.ID
	m.npu.RegisterCorticalArea(a.Index, a.ID.String())
	m.advance(m.areas[a.ID], StateRegistered)
	return a.Index, nil
}

// RemoveCorticalArea releases an area's index and marks it removed; neuron
// and synapse slots it owns are not reclaimed (tombstoning happens lazily
// as NPU operations touch them). Removing an unknown id is a no-op success
// on repeated calls, matching §8's idempotence property.
func (m *Manager) RemoveCorticalArea(id core.CorticalID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.areas[id]
	if !ok {
		return nil
	}
	if a.State == StateRemoved {
		return nil
	}
	delete(m.indexToID, a.Index)
	a.State = StateRemoved
	m.fireCallback(id, StateRemoved)
	delete(m.areas, id)
	return nil
}

// NPU returns the NPU handle this manager drives neurogenesis/synaptogenesis
// against, for callers (the burst loop, the parameter queue) that need
// direct tick-level access alongside area bookkeeping.
func (m *Manager) NPU() *npu.NPU {
	return m.npu
}

// GetArea returns a copy of the area's current metadata.
func (m *Manager) GetArea(id core.CorticalID) (Area, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.areas[id]
	if !ok {
		return Area{}, false
	}
	return *a, true
}

// AreaIDForIndex resolves the id registered at a cortical index.
func (m *Manager) AreaIDForIndex(index core.CorticalIndex) (core.CorticalID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.indexToID[index]
	return id, ok
}

// ListAreas returns every registered area's id, sorted by index for stable
// iteration order.
func (m *Manager) ListAreas() []core.CorticalID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]core.CorticalID, 0, len(m.areas))
	for id := range m.areas {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return m.areas[ids[i]].Index < m.areas[ids[j]].Index })
	return ids
}

// CreateNeuronsForArea computes voxels * neurons_per_voxel neurons from the
// area's defaults and dispatches one batched add to the NPU, recording the
// created ids on the area and advancing its lifecycle state to Populated.
func (m *Manager) CreateNeuronsForArea(id core.CorticalID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createNeuronsForAreaLocked(id)
}

func (m *Manager) createNeuronsForAreaLocked(id core.CorticalID) (int, error) {
	a, ok := m.areas[id]
	if !ok {
		return 0, core.UnknownCorticalArea(id.String())
	}

	perVoxel := a.Defaults.NeuronsPerVoxel
	if perVoxel == 0 {
		perVoxel = 1
	}
	total := a.voxelCount() * uint64(perVoxel)
	if total == 0 {
		return 0, nil
	}

	params := make([]npu.NeuronParams, 0, total)
	for x := uint32(0); x < a.Dimensions.Width; x++ {
		for y := uint32(0); y < a.Dimensions.Height; y++ {
			for z := uint32(0); z < a.Dimensions.Depth; z++ {
				for v := uint32(0); v < perVoxel; v++ {
					params = append(params, npu.NeuronParams{
						Threshold:            a.Defaults.Threshold,
						ThresholdLimit:       a.Defaults.ThresholdLimit,
						LeakCoefficient:      a.Defaults.LeakCoefficient,
						RestingPotential:     a.Defaults.RestingPotential,
						Excitability:         a.Defaults.Excitability,
						RefractoryPeriod:     a.Defaults.RefractoryPeriod,
						ConsecutiveFireLimit: a.Defaults.ConsecutiveFireLimit,
						SnoozePeriod:         a.Defaults.SnoozePeriod,
						NeuronType:           a.Defaults.NeuronType,
						MPChargeAccumulation: a.Defaults.MPChargeAccumulation,
						CorticalIndex:        a.Index,
						X:                    x, Y: y, Z: z,
					})
				}
			}
		}
	}

	count, first, err := m.npu.AddNeuronsBatch(params)
	if err != nil {
		return count, fmt.Errorf("connectome: creating neurons for area %s: %w", id.String(), err)
	}

	a.NeuronIDs = make([]core.NeuronID, count)
	for i := 0; i < count; i++ {
		a.NeuronIDs[i] = first + core.NeuronID(i)
	}
	m.advance(a, StatePopulated)
	return count, nil
}

// UpdateCorticalMapping replaces the destination-mapping rule set between
// src and dst, deleting the matching synapse subset and regenerating it. An
// empty rule set means "disconnect": matching synapses are removed and no
// new ones are generated.
func (m *Manager) UpdateCorticalMapping(src, dst core.CorticalID, rules []morphology.Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := mappingKey{src, dst}
	if err := m.disconnectLocked(src, dst); err != nil {
		return err
	}
	if len(rules) == 0 {
		delete(m.mappings, key)
		return nil
	}
	m.mappings[key] = rules
	_, err := m.regenerateSynapsesForMappingLocked(src, dst)
	return err
}

// disconnectLocked removes every live synapse from src's neurons to dst's
// neurons; each NPU.RemoveSynapse call rebuilds the source index itself.
func (m *Manager) disconnectLocked(src, dst core.CorticalID) error {
	srcArea, ok := m.areas[src]
	if !ok {
		return core.UnknownCorticalArea(src.String())
	}
	dstArea, ok := m.areas[dst]
	if !ok {
		return core.UnknownCorticalArea(dst.String())
	}
	dstSet := make(map[core.NeuronID]struct{}, len(dstArea.NeuronIDs))
	for _, id := range dstArea.NeuronIDs {
		dstSet[id] = struct{}{}
	}
	for _, s := range srcArea.NeuronIDs {
		for _, syn := range m.npu.GetOutgoingSynapses(s) {
			if _, ok := dstSet[syn.Target]; ok {
				m.npu.RemoveSynapse(s, syn.Target)
			}
		}
	}
	return nil
}

// RegenerateSynapsesForMapping rebuilds the synapse set for one src->dst
// mapping from its currently staged rules.
func (m *Manager) RegenerateSynapsesForMapping(src, dst core.CorticalID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.regenerateSynapsesForMappingLocked(src, dst)
}

func (m *Manager) regenerateSynapsesForMappingLocked(src, dst core.CorticalID) (int, error) {
	rules, ok := m.mappings[mappingKey{src, dst}]
	if !ok || len(rules) == 0 {
		return 0, nil
	}
	srcArea, ok := m.areas[src]
	if !ok {
		return 0, core.UnknownCorticalArea(src.String())
	}
	dstArea, ok := m.areas[dst]
	if !ok {
		return 0, core.UnknownCorticalArea(dst.String())
	}

	srcVoxels := voxelsForArea(m.npu, srcArea)
	dstVoxels := voxelsForArea(m.npu, dstArea)

	created := 0
	for _, rule := range rules {
		synapses, err := morphology.Build(rule, srcVoxels, dstVoxels)
		if err != nil {
			return created, fmt.Errorf("connectome: mapping %s->%s: %w", src.String(), dst.String(), err)
		}
		for _, syn := range synapses {
			if _, err := m.npu.AddSynapse(syn.Source, syn.Target, syn.Weight, syn.Conductance, syn.SynapseType); err != nil {
				return created, err
			}
			created++
		}
	}
	m.advance(srcArea, StateConnected)
	return created, nil
}

// ApplyCorticalMapping regenerates synapses for every mapping whose source
// is src, returning the total synapse count created.
func (m *Manager) ApplyCorticalMapping(src core.CorticalID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for key := range m.mappings {
		if key.src != src {
			continue
		}
		n, err := m.regenerateSynapsesForMappingLocked(key.src, key.dst)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// UpdateAreaThreshold overwrites every neuron in an area's firing threshold,
// returning the number of neurons touched.
func (m *Manager) UpdateAreaThreshold(id core.CorticalID, threshold float32) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.areas[id]
	if !ok {
		return 0
	}
	count := 0
	for _, nid := range a.NeuronIDs {
		if m.npu.SetNeuronThreshold(nid, threshold) {
			count++
		}
	}
	return count
}

// UpdateAreaThresholdWithGradient sets every neuron's threshold to
// base + gx*x + gy*y + gz*z, clamped to [0, threshold_limit].
func (m *Manager) UpdateAreaThresholdWithGradient(id core.CorticalID, base, gx, gy, gz float32) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.areas[id]
	if !ok {
		return 0
	}
	count := 0
	for _, nid := range a.NeuronIDs {
		x, y, z, ok := m.npu.GetNeuronCoordinates(nid)
		if !ok {
			continue
		}
		limit := a.Defaults.ThresholdLimit
		v := base + gx*float32(x) + gy*float32(y) + gz*float32(z)
		if v < 0 {
			v = 0
		}
		if limit > 0 && v > limit {
			v = limit
		}
		if m.npu.SetNeuronThreshold(nid, v) {
			count++
		}
	}
	return count
}

// UpdateAreaThresholdLimit overwrites every neuron in an area's threshold
// ceiling, returning the number of neurons touched.
func (m *Manager) UpdateAreaThresholdLimit(id core.CorticalID, limit float32) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.areas[id]
	if !ok {
		return 0
	}
	count := 0
	for _, nid := range a.NeuronIDs {
		if m.npu.SetNeuronThresholdLimit(nid, limit) {
			count++
		}
	}
	return count
}

// UpdateAreaRefractoryPeriod overwrites every neuron in an area's refractory
// period.
func (m *Manager) UpdateAreaRefractoryPeriod(id core.CorticalID, v uint16) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.areas[id]
	if !ok {
		return 0
	}
	count := 0
	for _, nid := range a.NeuronIDs {
		if m.npu.SetNeuronRefractoryPeriod(nid, v) {
			count++
		}
	}
	return count
}

// UpdateAreaLeakCoefficient overwrites every neuron in an area's leak
// coefficient.
func (m *Manager) UpdateAreaLeakCoefficient(id core.CorticalID, v float32) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.areas[id]
	if !ok {
		return 0
	}
	count := 0
	for _, nid := range a.NeuronIDs {
		if m.npu.SetNeuronLeakCoefficient(nid, v) {
			count++
		}
	}
	return count
}

// UpdateAreaConsecutiveFireLimit overwrites every neuron in an area's
// consecutive-fire snooze limit.
func (m *Manager) UpdateAreaConsecutiveFireLimit(id core.CorticalID, v uint16) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.areas[id]
	if !ok {
		return 0
	}
	count := 0
	for _, nid := range a.NeuronIDs {
		if m.npu.SetNeuronConsecutiveFireLimit(nid, v) {
			count++
		}
	}
	return count
}

// UpdateAreaSnoozePeriod overwrites every neuron in an area's post-limit
// snooze period.
func (m *Manager) UpdateAreaSnoozePeriod(id core.CorticalID, v uint16) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.areas[id]
	if !ok {
		return 0
	}
	count := 0
	for _, nid := range a.NeuronIDs {
		if m.npu.SetNeuronSnoozePeriod(nid, v) {
			count++
		}
	}
	return count
}

// UpdateAreaExcitability overwrites every neuron in an area's excitability
// scalar.
func (m *Manager) UpdateAreaExcitability(id core.CorticalID, v float32) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.areas[id]
	if !ok {
		return 0
	}
	count := 0
	for _, nid := range a.NeuronIDs {
		if m.npu.SetNeuronExcitability(nid, v) {
			count++
		}
	}
	return count
}

// UpdateAreaMPChargeAccumulation overwrites every neuron in an area's charge
// accumulation flag.
func (m *Manager) UpdateAreaMPChargeAccumulation(id core.CorticalID, v bool) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.areas[id]
	if !ok {
		return 0
	}
	count := 0
	for _, nid := range a.NeuronIDs {
		if m.npu.SetNeuronMPChargeAccumulation(nid, v) {
			count++
		}
	}
	return count
}

// UpdateAreaPostsynapticCurrent rewrites every outgoing synapse weight from
// every neuron in src to w (u8-clamped by the caller), returning the number
// of synapses touched.
func (m *Manager) UpdateAreaPostsynapticCurrent(src core.CorticalID, w uint8) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.areas[src]
	if !ok {
		return 0
	}
	count := 0
	for _, nid := range a.NeuronIDs {
		for _, syn := range m.npu.GetOutgoingSynapses(nid) {
			if m.npu.UpdateSynapseWeight(nid, syn.Target, w) {
				count++
			}
		}
	}
	return count
}

// SetMPDrivenPSP toggles an area's mp_driven_psp flag, returning 1 if the
// area exists and 0 otherwise.
func (m *Manager) SetMPDrivenPSP(id core.CorticalID, enabled bool) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.areas[id]
	if !ok {
		return 0
	}
	a.MPDrivenPSP = enabled
	return 1
}

// SetPSPUniformDistribution toggles an area's psp_uniform_distribution flag,
// returning 1 if the area exists and 0 otherwise.
func (m *Manager) SetPSPUniformDistribution(id core.CorticalID, enabled bool) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.areas[id]
	if !ok {
		return 0
	}
	a.PSPUniformDistribution = enabled
	return 1
}

func voxelsForArea(n *npu.NPU, a *Area) []morphology.Voxel {
	out := make([]morphology.Voxel, 0, len(a.NeuronIDs))
	for _, id := range a.NeuronIDs {
		x, y, z, ok := n.GetNeuronCoordinates(id)
		if !ok {
			continue
		}
		out = append(out, morphology.Voxel{ID: id, X: x, Y: y, Z: z})
	}
	return out
}
