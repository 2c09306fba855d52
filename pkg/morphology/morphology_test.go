package morphology

import (
	"testing"

	"github.com/corticodb/burstcore/pkg/core"
)

func grid(ids []core.NeuronID, coords [][3]uint32) []Voxel {
	out := make([]Voxel, len(ids))
	for i, id := range ids {
		out[i] = Voxel{ID: id, X: coords[i][0], Y: coords[i][1], Z: coords[i][2]}
	}
	return out
}

func TestProjectorConnectsAllPairs(t *testing.T) {
	sources := grid([]core.NeuronID{1, 2}, [][3]uint32{{0, 0, 0}, {1, 0, 0}})
	targets := grid([]core.NeuronID{10, 11, 12}, [][3]uint32{{0, 0, 0}, {1, 0, 0}, {2, 0, 0}})

	out, err := Build(Rule{Kind: "projector", Weight: 100}, sources, targets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != len(sources)*len(targets) {
		t.Fatalf("expected %d synapses, got %d", len(sources)*len(targets), len(out))
	}
}

func TestDirectConnectsMatchingCoordinatesOnly(t *testing.T) {
	sources := grid([]core.NeuronID{1, 2}, [][3]uint32{{0, 0, 0}, {5, 5, 5}})
	targets := grid([]core.NeuronID{10, 11}, [][3]uint32{{0, 0, 0}, {1, 1, 1}})

	out, err := Build(Rule{Kind: "direct"}, sources, targets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0].Source != 1 || out[0].Target != 10 {
		t.Fatalf("expected exactly the (0,0,0)->(0,0,0) pair, got %+v", out)
	}
}

func TestVectorConnectsAtFixedOffset(t *testing.T) {
	sources := grid([]core.NeuronID{1, 2}, [][3]uint32{{0, 0, 0}, {3, 0, 0}})
	targets := grid([]core.NeuronID{10, 11}, [][3]uint32{{1, 0, 0}, {4, 0, 0}})

	rule := Rule{Kind: "vector", Params: map[string]float64{"vector_x": 1}}
	out, err := Build(rule, sources, targets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 synapses via +1 offset, got %d", len(out))
	}
}

func TestBlockToBlockGroupsByBlockCoordinate(t *testing.T) {
	sources := grid([]core.NeuronID{1, 2, 3}, [][3]uint32{{0, 0, 0}, {1, 0, 0}, {2, 0, 0}})
	targets := grid([]core.NeuronID{10, 11}, [][3]uint32{{0, 0, 0}, {2, 0, 0}})

	rule := Rule{Kind: "block_to_block", Params: map[string]float64{"block_size": 2}}
	out, err := Build(rule, sources, targets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// block 0 contains sources {0,1} and target {0}; block 1 contains source {2} and target {2}.
	if len(out) != 3 {
		t.Fatalf("expected 3 synapses (2 from block 0, 1 from block 1), got %d: %+v", len(out), out)
	}
}

func TestUnknownMorphologyKindFails(t *testing.T) {
	_, err := Build(Rule{Kind: "nonexistent"}, nil, nil)
	if err == nil {
		t.Fatal("expected InvalidMorphology error for unknown kind")
	}
}
