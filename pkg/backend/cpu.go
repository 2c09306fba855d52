package backend

import (
	"github.com/klauspost/cpuid/v2"

	"github.com/corticodb/burstcore/pkg/core"
)

// CPUBackend is the default, always-available compute backend. It probes
// CPU features once at construction to pick an accumulation stride for the
// propagation hot loop; the stride only changes how many synapses are
// summed per unrolled iteration, never the result.
type CPUBackend struct {
	stride int
}

// NewCPUBackend probes available CPU features via cpuid and selects a wider
// accumulation stride on machines with AVX2+FMA3 or an Apple Silicon/NEON
// core, matching the same feature-detection shape the vector package in the
// source pack uses for its SIMD dispatch.
func NewCPUBackend() *CPUBackend {
	wide := cpuid.CPU.Supports(cpuid.AVX2, cpuid.FMA3) || cpuid.CPU.Supports(cpuid.ASIMD)
	stride := 1
	if wide {
		stride = 4
	}
	return &CPUBackend{stride: stride}
}

// InitializePersistentData is a no-op for the CPU backend: neuron/synapse
// columns are read directly from the caller-supplied views on every call,
// there is no separate upload step.
func (b *CPUBackend) InitializePersistentData(_ *NeuronColumns, _ *SynapseColumns) error {
	return nil
}

// OnGenomeChange is a no-op for the CPU backend for the same reason.
func (b *CPUBackend) OnGenomeChange() error {
	return nil
}

// ProcessSynapticPropagation accumulates, for each fired source, the
// contribution of every valid outgoing synapse into fcl[target].
func (b *CPUBackend) ProcessSynapticPropagation(firedSources []core.NeuronID, synapses *SynapseColumns, index SourceIndex, fcl FCL) (int, error) {
	touched := 0
	for _, src := range firedSources {
		synIdx := index[src]
		n := len(synIdx)
		i := 0
		for ; i+b.stride <= n; i += b.stride {
			for j := 0; j < b.stride; j++ {
				if applySynapse(synapses, synIdx[i+j], fcl) {
					touched++
				}
			}
		}
		for ; i < n; i++ {
			if applySynapse(synapses, synIdx[i], fcl) {
				touched++
			}
		}
	}
	return touched, nil
}

func applySynapse(synapses *SynapseColumns, si core.SynapseIndex, fcl FCL) bool {
	idx := int(si)
	if idx < 0 || idx >= len(synapses.Valid) || !synapses.Valid[idx] {
		return false
	}
	sign := float32(1)
	if synapses.SynapseType[idx] == 1 {
		sign = -1
	}
	contribution := sign * float32(synapses.Weight[idx]) * float32(synapses.Conductance[idx]) / (255.0 * 255.0)
	target := core.NeuronID(synapses.Target[idx])
	fcl[target] += contribution
	return true
}

// ProcessNeuralDynamics applies the per-FCL-entry state machine from the
// component design: refractory decrement, consecutive-fire snooze, membrane
// integration, and fire/no-fire resolution.
func (b *CPUBackend) ProcessNeuralDynamics(fcl FCL, neurons *NeuronColumns, burst core.BurstCount) (DynamicsResult, error) {
	_ = burst
	var result DynamicsResult

	for id, input := range fcl {
		i := int(id)
		if i < 0 || i >= len(neurons.Valid) {
			continue
		}
		if !neurons.Valid[i] {
			continue
		}
		result.FCLInCount++

		if neurons.RefractoryCountdown[i] > 0 {
			neurons.RefractoryCountdown[i]--
			result.RefractoryCount++
			continue
		}

		if neurons.ConsecutiveFireCount[i] >= neurons.ConsecutiveFireLimit[i] {
			neurons.RefractoryCountdown[i] = neurons.SnoozePeriod[i]
			neurons.ConsecutiveFireCount[i] = 0
			result.RefractoryCount++
			continue
		}

		drive := neurons.Excitability[i]
		var integrated float32
		if neurons.MPChargeAccumulation[i] {
			integrated = neurons.MembranePotential[i]*(1-neurons.LeakCoefficient[i]) + input + drive
		} else {
			integrated = input + drive
		}
		integrated = clampF32(integrated, neurons.RestingPotential[i], neurons.ThresholdLimit[i])

		if integrated >= neurons.Threshold[i] {
			result.FiredNeurons = append(result.FiredNeurons, id)
			result.FiredPotentials = append(result.FiredPotentials, integrated)
			neurons.RefractoryCountdown[i] = neurons.RefractoryPeriod[i]
			neurons.ConsecutiveFireCount[i]++
			neurons.MembranePotential[i] = neurons.RestingPotential[i]
		} else {
			neurons.MembranePotential[i] = integrated
			neurons.ConsecutiveFireCount[i] = 0
		}
	}

	return result, nil
}

func clampF32(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
