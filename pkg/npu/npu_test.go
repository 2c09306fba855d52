package npu

import (
	"testing"

	"github.com/corticodb/burstcore/pkg/backend"
	"github.com/corticodb/burstcore/pkg/core"
)

func newTestNPU(t *testing.T) (*NPU, *Storage) {
	t.Helper()
	storage := NewStorage(16, 16, 16)
	n := New(storage, backend.NewCPUBackend(), 1.0)
	return n, storage
}

func fireableParams(area core.CorticalIndex, x, y, z uint32) NeuronParams {
	return NeuronParams{
		Threshold:            1.0,
		ThresholdLimit:       10.0,
		LeakCoefficient:      0,
		RestingPotential:     0,
		Excitability:         0,
		RefractoryPeriod:     2,
		ConsecutiveFireLimit: 100,
		SnoozePeriod:         5,
		MPChargeAccumulation: true,
		CorticalIndex:        area,
		X:                    x, Y: y, Z: z,
	}
}

func TestProcessBurstSingleNeuronFiresUnderInjection(t *testing.T) {
	n, _ := newTestNPU(t)
	id, err := n.AddNeuron(fireableParams(3, 0, 0, 0))
	if err != nil {
		t.Fatalf("AddNeuron: %v", err)
	}

	n.StageInjection(id, 5.0)

	result, err := n.ProcessBurst(true, nil)
	if err != nil {
		t.Fatalf("ProcessBurst: %v", err)
	}
	if result.FiredCount != 1 {
		t.Fatalf("expected 1 fired neuron, got %d", result.FiredCount)
	}
	if result.FireQueueSample == nil || len(result.FireQueueSample.Groups) != 1 {
		t.Fatalf("expected one fire group in sample, got %+v", result.FireQueueSample)
	}
	g := result.FireQueueSample.Groups[0]
	if g.CorticalIndex != 3 || len(g.NeuronIDs) != 1 || g.NeuronIDs[0] != id {
		t.Errorf("unexpected fire group contents: %+v", g)
	}
	if n.GetBurstCount() != 1 {
		t.Errorf("expected burst count 1, got %d", n.GetBurstCount())
	}
}

func TestProcessBurstNoInjectionNoFire(t *testing.T) {
	n, _ := newTestNPU(t)
	if _, err := n.AddNeuron(fireableParams(3, 0, 0, 0)); err != nil {
		t.Fatalf("AddNeuron: %v", err)
	}

	result, err := n.ProcessBurst(false, nil)
	if err != nil {
		t.Fatalf("ProcessBurst: %v", err)
	}
	if result.FiredCount != 0 {
		t.Errorf("expected no fires without injection or drive, got %d", result.FiredCount)
	}
	if result.FireQueueSample != nil {
		t.Error("expected nil sample when needSample is false")
	}
}

func TestProcessBurstPowerAreaDrivesEveryTick(t *testing.T) {
	n, _ := newTestNPU(t)
	p := fireableParams(core.PowerCorticalIndex, 0, 0, 0)
	p.Threshold = 0.5
	id, err := n.AddNeuron(p)
	if err != nil {
		t.Fatalf("AddNeuron: %v", err)
	}

	result, err := n.ProcessBurst(false, nil)
	if err != nil {
		t.Fatalf("ProcessBurst: %v", err)
	}
	if result.PowerInjections != 1 {
		t.Errorf("expected 1 power injection, got %d", result.PowerInjections)
	}
	if result.FiredCount != 1 {
		t.Errorf("expected power-driven neuron to fire, got %d fired", result.FiredCount)
	}
	_ = id
}

func TestProcessBurstSynapticPropagationFollowsPriorFire(t *testing.T) {
	n, _ := newTestNPU(t)
	src, err := n.AddNeuron(fireableParams(3, 0, 0, 0))
	if err != nil {
		t.Fatalf("AddNeuron src: %v", err)
	}
	tgt, err := n.AddNeuron(fireableParams(3, 1, 0, 0))
	if err != nil {
		t.Fatalf("AddNeuron tgt: %v", err)
	}
	if _, err := n.AddSynapse(src, tgt, 255, 255, 0); err != nil {
		t.Fatalf("AddSynapse: %v", err)
	}

	n.StageInjection(src, 5.0)
	if _, err := n.ProcessBurst(false, nil); err != nil {
		t.Fatalf("first ProcessBurst: %v", err)
	}

	result, err := n.ProcessBurst(false, nil)
	if err != nil {
		t.Fatalf("second ProcessBurst: %v", err)
	}
	if result.SynapticInjections != 1 {
		t.Errorf("expected 1 synaptic injection on the tick after src fired, got %d", result.SynapticInjections)
	}
	if result.FiredCount != 1 {
		t.Errorf("expected target to fire from full-strength synapse, got %d fired", result.FiredCount)
	}
}

func TestProcessBurstConsecutiveFireLimitSnoozes(t *testing.T) {
	n, _ := newTestNPU(t)
	p := fireableParams(3, 0, 0, 0)
	p.ConsecutiveFireLimit = 1
	p.SnoozePeriod = 4
	p.RefractoryPeriod = 0
	id, err := n.AddNeuron(p)
	if err != nil {
		t.Fatalf("AddNeuron: %v", err)
	}

	n.StageInjection(id, 5.0)
	r1, err := n.ProcessBurst(false, nil)
	if err != nil {
		t.Fatalf("burst 1: %v", err)
	}
	if r1.FiredCount != 1 {
		t.Fatalf("expected first burst to fire, got %d", r1.FiredCount)
	}

	n.StageInjection(id, 5.0)
	r2, err := n.ProcessBurst(false, nil)
	if err != nil {
		t.Fatalf("burst 2: %v", err)
	}
	if r2.FiredCount != 0 {
		t.Errorf("expected neuron at consecutive-fire limit to snooze instead of firing again, got %d", r2.FiredCount)
	}
	if r2.RefractoryCount != 1 {
		t.Errorf("expected snooze to count as a refractory event, got %d", r2.RefractoryCount)
	}
}

// TestProcessBurstRefractoryRecoversWithoutFurtherInput is §8 scenario 1:
// a neuron that fires and then receives no input for the remainder of its
// refractory period must still recover and be fireable again, even though
// it never reappears in the FCL from injection, power, or synaptic input.
func TestProcessBurstRefractoryRecoversWithoutFurtherInput(t *testing.T) {
	n, _ := newTestNPU(t)
	p := fireableParams(3, 0, 0, 0)
	p.RefractoryPeriod = 2
	id, err := n.AddNeuron(p)
	if err != nil {
		t.Fatalf("AddNeuron: %v", err)
	}

	n.StageInjection(id, 1.5)
	r1, err := n.ProcessBurst(false, nil)
	if err != nil {
		t.Fatalf("tick 1: %v", err)
	}
	if r1.FiredCount != 1 {
		t.Fatalf("expected tick 1 to fire, got %d", r1.FiredCount)
	}

	for tick := 2; tick <= 3; tick++ {
		r, err := n.ProcessBurst(false, nil)
		if err != nil {
			t.Fatalf("tick %d: %v", tick, err)
		}
		if r.FiredCount != 0 {
			t.Fatalf("tick %d: expected no fire while refractory, got %d", tick, r.FiredCount)
		}
	}

	n.StageInjection(id, 1.5)
	r4, err := n.ProcessBurst(false, nil)
	if err != nil {
		t.Fatalf("tick 4: %v", err)
	}
	if r4.FiredCount != 1 {
		t.Fatalf("expected tick 4 to fire once the refractory period recovered without further input, got %d", r4.FiredCount)
	}
}

// TestProcessBurstLeakConvergesToRestingWithoutInput is the §8 invariant:
// with no sensory/synaptic input and leak_coefficient > 0, a charge
// accumulating neuron's membrane potential must keep decaying toward
// resting_potential on every idle tick, not freeze at its last value.
func TestProcessBurstLeakConvergesToRestingWithoutInput(t *testing.T) {
	n, s := newTestNPU(t)
	p := fireableParams(3, 0, 0, 0)
	p.Threshold = 100 // never fires, isolates the leak behavior
	p.LeakCoefficient = 0.5
	id, err := n.AddNeuron(p)
	if err != nil {
		t.Fatalf("AddNeuron: %v", err)
	}

	n.StageInjection(id, 10.0)
	if _, err := n.ProcessBurst(false, nil); err != nil {
		t.Fatalf("tick 1: %v", err)
	}

	prev := s.membranePotential[int(id)]
	for tick := 2; tick <= 5; tick++ {
		if _, err := n.ProcessBurst(false, nil); err != nil {
			t.Fatalf("tick %d: %v", tick, err)
		}
		cur := s.membranePotential[int(id)]
		if cur >= prev {
			t.Fatalf("tick %d: expected membrane potential to keep decaying with no input, got %v (was %v)", tick, cur, prev)
		}
		prev = cur
	}
	if prev == 0 {
		t.Errorf("expected membrane potential still above resting_potential partway through decay, got 0")
	}
}

func TestGetNeuronCountTracksAddAndDelete(t *testing.T) {
	n, _ := newTestNPU(t)
	id, err := n.AddNeuron(fireableParams(3, 0, 0, 0))
	if err != nil {
		t.Fatalf("AddNeuron: %v", err)
	}
	if n.GetNeuronCount() != 1 {
		t.Fatalf("expected count 1 after add, got %d", n.GetNeuronCount())
	}
	if !n.DeleteNeuron(id) {
		t.Fatal("expected delete to succeed")
	}
	if n.GetNeuronCount() != 0 {
		t.Errorf("expected count 0 after delete, got %d", n.GetNeuronCount())
	}
}

func TestGetOutgoingAndIncomingSynapses(t *testing.T) {
	n, _ := newTestNPU(t)
	src, _ := n.AddNeuron(fireableParams(3, 0, 0, 0))
	tgt, _ := n.AddNeuron(fireableParams(3, 1, 0, 0))
	if _, err := n.AddSynapse(src, tgt, 128, 200, 1); err != nil {
		t.Fatalf("AddSynapse: %v", err)
	}

	out := n.GetOutgoingSynapses(src)
	if len(out) != 1 || out[0].Target != tgt {
		t.Fatalf("unexpected outgoing synapses: %+v", out)
	}
	in := n.GetIncomingSynapses(tgt)
	if len(in) != 1 || in[0].Source != src {
		t.Fatalf("unexpected incoming synapses: %+v", in)
	}
}

func TestStageInjectionAppliedOnceThenCleared(t *testing.T) {
	n, _ := newTestNPU(t)
	id, _ := n.AddNeuron(fireableParams(3, 0, 0, 0))
	n.StageInjection(id, 5.0)

	r1, err := n.ProcessBurst(false, nil)
	if err != nil {
		t.Fatalf("burst 1: %v", err)
	}
	if r1.FiredCount != 1 {
		t.Fatalf("expected injected neuron to fire on burst 1, got %d", r1.FiredCount)
	}

	r2, err := n.ProcessBurst(false, nil)
	if err != nil {
		t.Fatalf("burst 2: %v", err)
	}
	if r2.FiredCount != 0 {
		t.Errorf("expected no fire on burst 2 since the injection was already consumed, got %d", r2.FiredCount)
	}
}
