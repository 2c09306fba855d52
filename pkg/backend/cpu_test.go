package backend

import (
	"testing"

	"github.com/corticodb/burstcore/pkg/core"
)

func newTestNeuron() *NeuronColumns {
	return &NeuronColumns{
		MembranePotential:    []float32{0},
		Threshold:            []float32{1.0},
		ThresholdLimit:       []float32{5.0},
		LeakCoefficient:      []float32{0},
		RestingPotential:     []float32{0},
		Excitability:         []float32{0},
		RefractoryPeriod:     []uint16{2},
		ConsecutiveFireLimit: []uint16{100},
		SnoozePeriod:         []uint16{5},
		RefractoryCountdown:  []uint16{0},
		ConsecutiveFireCount: []uint16{0},
		NeuronType:           []int8{0},
		MPChargeAccumulation: []bool{true},
		CorticalIndex:        []uint32{3},
		X:                    []uint32{0},
		Y:                    []uint32{0},
		Z:                    []uint32{0},
		Valid:                []bool{true},
	}
}

func TestProcessNeuralDynamicsFires(t *testing.T) {
	b := NewCPUBackend()
	neurons := newTestNeuron()
	fcl := FCL{0: 1.5}

	result, err := b.ProcessNeuralDynamics(fcl, neurons, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.FiredNeurons) != 1 || result.FiredNeurons[0] != 0 {
		t.Fatalf("expected neuron 0 to fire, got %v", result.FiredNeurons)
	}
	if neurons.MembranePotential[0] != 0 {
		t.Errorf("expected membrane reset to resting potential, got %f", neurons.MembranePotential[0])
	}
	if neurons.RefractoryCountdown[0] != 2 {
		t.Errorf("expected refractory countdown 2, got %d", neurons.RefractoryCountdown[0])
	}
}

func TestProcessNeuralDynamicsRefractorySkipsFiring(t *testing.T) {
	b := NewCPUBackend()
	neurons := newTestNeuron()
	neurons.RefractoryCountdown[0] = 2
	fcl := FCL{0: 10.0}

	result, err := b.ProcessNeuralDynamics(fcl, neurons, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.FiredNeurons) != 0 {
		t.Error("neuron in refractory period should not fire")
	}
	if neurons.RefractoryCountdown[0] != 1 {
		t.Errorf("expected refractory countdown decremented to 1, got %d", neurons.RefractoryCountdown[0])
	}
}

func TestProcessNeuralDynamicsSnoozeOnConsecutiveLimit(t *testing.T) {
	b := NewCPUBackend()
	neurons := newTestNeuron()
	neurons.ConsecutiveFireLimit[0] = 3
	neurons.ConsecutiveFireCount[0] = 3
	neurons.SnoozePeriod[0] = 5
	fcl := FCL{0: 10.0}

	result, err := b.ProcessNeuralDynamics(fcl, neurons, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.FiredNeurons) != 0 {
		t.Error("neuron at consecutive-fire limit should not fire")
	}
	if neurons.RefractoryCountdown[0] != 5 {
		t.Errorf("expected snooze to set refractory countdown to 5, got %d", neurons.RefractoryCountdown[0])
	}
	if neurons.ConsecutiveFireCount[0] != 0 {
		t.Errorf("expected consecutive fire count reset to 0, got %d", neurons.ConsecutiveFireCount[0])
	}
}

func TestProcessNeuralDynamicsInvalidSlotSkipped(t *testing.T) {
	b := NewCPUBackend()
	neurons := newTestNeuron()
	neurons.Valid[0] = false
	fcl := FCL{0: 10.0}

	result, err := b.ProcessNeuralDynamics(fcl, neurons, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.FiredNeurons) != 0 || result.FCLInCount != 0 {
		t.Error("invalid neuron slot must be skipped entirely")
	}
}

func TestProcessNeuralDynamicsReplacesWithoutAccumulation(t *testing.T) {
	b := NewCPUBackend()
	neurons := newTestNeuron()
	neurons.MPChargeAccumulation[0] = false
	neurons.MembranePotential[0] = 3.0
	neurons.Threshold[0] = 10.0
	fcl := FCL{0: 0.5}

	if _, err := b.ProcessNeuralDynamics(fcl, neurons, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if neurons.MembranePotential[0] != 0.5 {
		t.Errorf("expected mp replaced by accumulated input (0.5), got %f", neurons.MembranePotential[0])
	}
}

func TestProcessSynapticPropagationExcitatory(t *testing.T) {
	b := NewCPUBackend()
	synapses := &SynapseColumns{
		Source:      []uint32{0},
		Target:      []uint32{1},
		Weight:      []uint8{255},
		Conductance: []uint8{255},
		SynapseType: []uint8{0},
		Valid:       []bool{true},
	}
	index := SourceIndex{0: {0}}
	fcl := FCL{}

	touched, err := b.ProcessSynapticPropagation([]core.NeuronID{0}, synapses, index, fcl)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if touched != 1 {
		t.Errorf("expected 1 synapse touched, got %d", touched)
	}
	if got := fcl[1]; got < 0.999 || got > 1.001 {
		t.Errorf("expected full-strength contribution ~1.0, got %f", got)
	}
}

func TestProcessSynapticPropagationInhibitoryIsNegative(t *testing.T) {
	b := NewCPUBackend()
	synapses := &SynapseColumns{
		Source:      []uint32{0},
		Target:      []uint32{1},
		Weight:      []uint8{255},
		Conductance: []uint8{255},
		SynapseType: []uint8{1},
		Valid:       []bool{true},
	}
	index := SourceIndex{0: {0}}
	fcl := FCL{}

	if _, err := b.ProcessSynapticPropagation([]core.NeuronID{0}, synapses, index, fcl); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fcl[1] >= 0 {
		t.Errorf("expected negative contribution from inhibitory synapse, got %f", fcl[1])
	}
}

func TestProcessSynapticPropagationSkipsInvalidSynapse(t *testing.T) {
	b := NewCPUBackend()
	synapses := &SynapseColumns{
		Source:      []uint32{0},
		Target:      []uint32{1},
		Weight:      []uint8{255},
		Conductance: []uint8{255},
		SynapseType: []uint8{0},
		Valid:       []bool{false},
	}
	index := SourceIndex{0: {0}}
	fcl := FCL{}

	touched, err := b.ProcessSynapticPropagation([]core.NeuronID{0}, synapses, index, fcl)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if touched != 0 {
		t.Error("invalid synapse must not be counted as touched")
	}
	if _, ok := fcl[1]; ok {
		t.Error("invalid synapse must not contribute to fcl")
	}
}
