package wire

import (
	"testing"

	"github.com/corticodb/burstcore/pkg/core"
	"github.com/corticodb/burstcore/pkg/npu"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	c := NewContainer()
	if err := c.Put("area1", []uint32{1, 2}, []uint32{0, 0}, []uint32{0, 0}, []float32{0.5, 0.75}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	data, err := Encode(c)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got, ok := decoded.Areas["area1"]
	if !ok {
		t.Fatal("expected area1 to round-trip")
	}
	if len(got.X) != 2 || got.P[1] != 0.75 {
		t.Fatalf("unexpected round-tripped payload: %+v", got)
	}
}

func TestPutRejectsMismatchedLengths(t *testing.T) {
	c := NewContainer()
	if err := c.Put("bad", []uint32{1}, []uint32{1, 2}, []uint32{1}, []float32{1}); err == nil {
		t.Fatal("expected an error for mismatched array lengths")
	}
}

func TestFromSampleAppliesMotorFilter(t *testing.T) {
	sample := &npu.FireQueueSample{
		BurstCount: 1,
		Groups: []npu.FireGroup{
			{CorticalIndex: 3, NeuronIDs: []core.NeuronID{0}, X: []uint32{0}, Y: []uint32{0}, Z: []uint32{0}, Potentials: []float32{1.0}},
			{CorticalIndex: 4, NeuronIDs: []core.NeuronID{1}, X: []uint32{0}, Y: []uint32{0}, Z: []uint32{0}, Potentials: []float32{1.0}},
		},
	}
	resolve := func(idx uint32) (string, bool) {
		switch idx {
		case 3:
			return "areaA", true
		case 4:
			return "areaB", true
		}
		return "", false
	}

	c, err := FromSample(sample, resolve, map[string]bool{"areaA": true}, nil)
	if err != nil {
		t.Fatalf("FromSample: %v", err)
	}
	if len(c.Areas) != 1 {
		t.Fatalf("expected filter to keep exactly 1 area, got %d", len(c.Areas))
	}
	if _, ok := c.Areas["areaA"]; !ok {
		t.Fatal("expected areaA to survive the filter")
	}
}

func TestFromSampleBinsByGranularity(t *testing.T) {
	sample := &npu.FireQueueSample{
		BurstCount: 1,
		Groups: []npu.FireGroup{
			{
				CorticalIndex: 3,
				NeuronIDs:     []core.NeuronID{0, 1, 2, 3},
				X:             []uint32{0, 1, 2, 3},
				Y:             []uint32{0, 0, 0, 0},
				Z:             []uint32{0, 0, 0, 0},
				Potentials:    []float32{1.0, 2.0, 3.0, 4.0},
			},
		},
	}
	resolve := func(idx uint32) (string, bool) { return "areaA", true }

	c, err := FromSample(sample, resolve, nil, map[uint32]Granularity{3: {GX: 2, GY: 1, GZ: 1}})
	if err != nil {
		t.Fatalf("FromSample: %v", err)
	}
	pts := c.Areas["areaA"]
	if len(pts.X) != 2 {
		t.Fatalf("expected 2 bins for 4 points at granularity 2, got %d", len(pts.X))
	}
}
