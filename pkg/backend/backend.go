// Package backend defines the compute-backend capability set the NPU core
// drives once per tick, and the CPU implementation that is always
// available. The storage owner (pkg/npu) constructs the column views below
// from its own slices and passes them by reference, so backend
// implementations mutate neuron/synapse state in place without copying.
package backend

import "github.com/corticodb/burstcore/pkg/core"

// NeuronColumns is a by-reference view over the neuron SoA columns a
// backend needs to run neural dynamics. Slices share the owner's backing
// array; writes are visible to the owner immediately.
type NeuronColumns struct {
	MembranePotential    []float32
	Threshold            []float32
	ThresholdLimit       []float32
	LeakCoefficient      []float32
	RestingPotential     []float32
	Excitability         []float32
	RefractoryPeriod     []uint16
	ConsecutiveFireLimit []uint16
	SnoozePeriod         []uint16
	RefractoryCountdown  []uint16
	ConsecutiveFireCount []uint16
	NeuronType           []int8
	MPChargeAccumulation []bool
	CorticalIndex        []uint32
	X, Y, Z              []uint32
	Valid                []bool
}

// SynapseColumns is a by-reference view over the synapse SoA columns.
type SynapseColumns struct {
	Source       []uint32
	Target       []uint32
	Weight       []uint8
	Conductance  []uint8
	SynapseType  []uint8
	Valid        []bool
}

// SourceIndex maps a fired source neuron to the indices of its outgoing
// synapses, mirroring the spec's "hash of source -> [synapse_index, ...]"
// auxiliary index.
type SourceIndex map[core.NeuronID][]core.SynapseIndex

// FCL is the Fire Candidate List: neurons that received synaptic input
// this tick, mapped to their accumulated potential.
type FCL map[core.NeuronID]float32

// DynamicsResult is the outcome of one ProcessNeuralDynamics call.
type DynamicsResult struct {
	FiredNeurons    []core.NeuronID
	FiredPotentials []float32 // mp' at the instant of firing, parallel to FiredNeurons
	FCLInCount      int
	RefractoryCount int
}

// Backend is the polymorphic compute engine over {CPU, GPU}. Concrete
// variants: CPUBackend (always available) and GPUBackend (pluggable stub).
type Backend interface {
	// InitializePersistentData performs one-time upload/indexing of the
	// full neuron/synapse state. Called once at startup and again after
	// any OnGenomeChange invalidation.
	InitializePersistentData(neurons *NeuronColumns, synapses *SynapseColumns) error

	// OnGenomeChange invalidates all persistent backend-side state (GPU
	// buffers, hash tables) so the next InitializePersistentData rebuilds
	// it from scratch.
	OnGenomeChange() error

	// ProcessSynapticPropagation accumulates, for each fired source
	// neuron, sign(type)*weight*conductance_scale into fcl[target] for
	// every valid outgoing synapse. Returns the number of synapses
	// touched.
	ProcessSynapticPropagation(firedSources []core.NeuronID, synapses *SynapseColumns, index SourceIndex, fcl FCL) (int, error)

	// ProcessNeuralDynamics applies the per-FCL-entry state machine from
	// the component design: refractory decrement, snooze arming,
	// membrane integration, and fire/no-fire resolution.
	ProcessNeuralDynamics(fcl FCL, neurons *NeuronColumns, burst core.BurstCount) (DynamicsResult, error)
}
