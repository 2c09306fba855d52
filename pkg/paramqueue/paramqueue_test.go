package paramqueue

import (
	"testing"

	"github.com/corticodb/burstcore/pkg/backend"
	"github.com/corticodb/burstcore/pkg/connectome"
	"github.com/corticodb/burstcore/pkg/core"
	"github.com/corticodb/burstcore/pkg/npu"
)

func newTestSetup(t *testing.T, w, h, d uint32) (*connectome.Manager, core.CorticalID) {
	t.Helper()
	storage := npu.NewStorage(256, 256, 64)
	n := npu.New(storage, backend.NewCPUBackend(), 1.0)
	m := connectome.NewManager(n)

	id := core.NewCustomCorticalID("pq-area")
	a := connectome.Area{
		ID:         id,
		Name:       "pq-area",
		Dimensions: connectome.Dimensions{Width: w, Height: h, Depth: d},
		Defaults: connectome.NeuronDefaults{
			Threshold:       1.0,
			ThresholdLimit:  10.0,
			NeuronsPerVoxel: 1,
		},
	}
	if _, err := m.AddCorticalArea(a); err != nil {
		t.Fatalf("AddCorticalArea: %v", err)
	}
	if _, err := m.CreateNeuronsForArea(id); err != nil {
		t.Fatalf("CreateNeuronsForArea: %v", err)
	}
	return m, id
}

func TestPushNonBlockingAndDropsOnFull(t *testing.T) {
	q := NewQueue(2)
	if !q.Push(&ParameterUpdate{ParameterName: FiringThreshold}) {
		t.Fatal("expected first push to succeed")
	}
	if !q.Push(&ParameterUpdate{ParameterName: FiringThreshold}) {
		t.Fatal("expected second push to succeed")
	}
	if q.Push(&ParameterUpdate{ParameterName: FiringThreshold}) {
		t.Fatal("expected third push to be dropped once the queue is full")
	}
	if q.Dropped() != 1 {
		t.Fatalf("expected 1 dropped update, got %d", q.Dropped())
	}
	if len(q.DrainAll()) != 2 {
		t.Fatal("expected drain to return the 2 buffered updates")
	}
	if len(q.DrainAll()) != 0 {
		t.Fatal("expected a second drain on an empty queue to return nothing")
	}
}

func TestApplyFiringThreshold(t *testing.T) {
	m, id := newTestSetup(t, 2, 1, 1)
	n := Apply(m, &ParameterUpdate{CorticalID: id, ParameterName: FiringThreshold, Value: 3.5})
	if n != 2 {
		t.Fatalf("expected 2 neurons updated, got %d", n)
	}
}

func TestApplySpatialGradient(t *testing.T) {
	m, id := newTestSetup(t, 3, 1, 1)
	base := 1.0
	n := Apply(m, &ParameterUpdate{
		CorticalID:    id,
		ParameterName: FiringThresholdIncrement,
		BaseThreshold: &base,
		Gradient:      [3]float64{1.0, 0, 0},
	})
	if n != 3 {
		t.Fatalf("expected 3 neurons updated, got %d", n)
	}

	a, _ := m.GetArea(id)
	want := map[[3]uint32]float32{
		{0, 0, 0}: 1.0,
		{1, 0, 0}: 2.0,
		{2, 0, 0}: 3.0,
	}
	got := make(map[[3]uint32]float32, len(a.NeuronIDs))
	for _, nid := range a.NeuronIDs {
		x, y, z, ok := m.NPU().GetNeuronCoordinates(nid)
		if !ok {
			t.Fatalf("expected neuron %d to be valid", nid)
		}
		th, ok := m.NPU().NeuronThreshold(nid)
		if !ok {
			t.Fatalf("expected neuron %d to have a readable threshold", nid)
		}
		got[[3]uint32{x, y, z}] = th
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("voxel %v: expected threshold %v, got %v", k, v, got[k])
		}
	}
}

func TestApplyMissingAreaIsSoftFailure(t *testing.T) {
	m, _ := newTestSetup(t, 1, 1, 1)
	unknown := core.NewCustomCorticalID("does-not-exist")
	n := Apply(m, &ParameterUpdate{CorticalID: unknown, ParameterName: FiringThreshold, Value: 5})
	if n != 0 {
		t.Fatalf("expected 0 applied for an unknown area, got %d", n)
	}
}

func TestApplyUnsupportedNameIsIgnored(t *testing.T) {
	m, id := newTestSetup(t, 1, 1, 1)
	n := Apply(m, &ParameterUpdate{CorticalID: id, ParameterName: "not_a_real_parameter", Value: 1})
	if n != 0 {
		t.Fatalf("expected 0 applied for an unsupported parameter name, got %d", n)
	}
}

func TestApplyExcitabilityOutOfRangeRejected(t *testing.T) {
	m, id := newTestSetup(t, 1, 1, 1)
	if n := Apply(m, &ParameterUpdate{CorticalID: id, ParameterName: Excitability, Value: 1.5}); n != 0 {
		t.Fatalf("expected out-of-range excitability to be rejected, got %d applied", n)
	}
	if n := Apply(m, &ParameterUpdate{CorticalID: id, ParameterName: Excitability, Value: 0.5}); n != 1 {
		t.Fatalf("expected in-range excitability to apply to 1 neuron, got %d", n)
	}
}

func TestApplyPostsynapticCurrentRewritesOutgoingWeights(t *testing.T) {
	m, src := newTestSetup(t, 1, 1, 1)

	dstID := core.NewCustomCorticalID("pq-dst")
	dst := connectome.Area{
		ID:         dstID,
		Name:       "pq-dst",
		Dimensions: connectome.Dimensions{Width: 1, Height: 1, Depth: 1},
		Defaults:   connectome.NeuronDefaults{Threshold: 1.0, ThresholdLimit: 10.0, NeuronsPerVoxel: 1},
	}
	if _, err := m.AddCorticalArea(dst); err != nil {
		t.Fatalf("AddCorticalArea dst: %v", err)
	}
	if _, err := m.CreateNeuronsForArea(dstID); err != nil {
		t.Fatalf("CreateNeuronsForArea dst: %v", err)
	}
	if err := m.UpdateCorticalMapping(src, dstID, nil); err != nil {
		t.Fatalf("unexpected error on empty mapping: %v", err)
	}

	srcArea, _ := m.GetArea(src)
	dstArea, _ := m.GetArea(dstID)
	if _, err := m.NPU().AddSynapse(srcArea.NeuronIDs[0], dstArea.NeuronIDs[0], 10, 255, 0); err != nil {
		t.Fatalf("AddSynapse: %v", err)
	}

	n := Apply(m, &ParameterUpdate{CorticalID: src, ParameterName: PostsynapticCurrent, Value: 999})
	if n != 1 {
		t.Fatalf("expected 1 synapse rewritten, got %d", n)
	}
	syns := m.NPU().GetOutgoingSynapses(srcArea.NeuronIDs[0])
	if len(syns) != 1 || syns[0].Weight != 255 {
		t.Fatalf("expected outgoing weight clamped to 255, got %+v", syns)
	}
}

func TestApplyMPDrivenPSPAndUniformDistributionFlags(t *testing.T) {
	m, id := newTestSetup(t, 1, 1, 1)
	if n := Apply(m, &ParameterUpdate{CorticalID: id, ParameterName: MPDrivenPSP, Value: 1}); n != 1 {
		t.Fatalf("expected mp_driven_psp to apply, got %d", n)
	}
	if n := Apply(m, &ParameterUpdate{CorticalID: id, ParameterName: PSPUniformDistribution, Value: 1}); n != 1 {
		t.Fatalf("expected psp_uniform_distribution to apply, got %d", n)
	}
	a, _ := m.GetArea(id)
	if !a.MPDrivenPSP || !a.PSPUniformDistribution {
		t.Fatalf("expected both flags set on the area, got %+v", a)
	}
}
