package npu

import "github.com/corticodb/burstcore/pkg/core"

// FireGroup is one cortical area's worth of fired neurons in a single
// FireQueueSample.
type FireGroup struct {
	CorticalIndex core.CorticalIndex
	NeuronIDs     []core.NeuronID
	X, Y, Z       []uint32
	Potentials    []float32
}

// FireQueueSample is the per-tick snapshot of neurons that fired, grouped
// by cortical index. It is the sole authoritative per-tick output of the
// NPU; it is built once and shared (never resampled) across every
// downstream publisher for the tick.
type FireQueueSample struct {
	BurstCount core.BurstCount
	Groups     []FireGroup
}

// buildFireQueueSample groups fired neurons by cortical area, recording
// their position and the membrane potential they fired at: the integrated
// potential at the instant of firing, taken from preFirePotential, not the
// resting potential the neuron is reset to afterwards.
func buildFireQueueSample(fired []core.NeuronID, s *Storage, burst core.BurstCount, preFirePotential map[core.NeuronID]float32) *FireQueueSample {
	byArea := make(map[core.CorticalIndex]*FireGroup)
	order := make([]core.CorticalIndex, 0)

	for _, id := range fired {
		i := int(id)
		if i < 0 || i >= s.neuronLen {
			continue
		}
		area := core.CorticalIndex(s.neuronCorticalIndex[i])
		g, ok := byArea[area]
		if !ok {
			g = &FireGroup{CorticalIndex: area}
			byArea[area] = g
			order = append(order, area)
		}
		g.NeuronIDs = append(g.NeuronIDs, id)
		g.X = append(g.X, s.x[i])
		g.Y = append(g.Y, s.y[i])
		g.Z = append(g.Z, s.z[i])
		g.Potentials = append(g.Potentials, preFirePotential[id])
	}

	groups := make([]FireGroup, 0, len(order))
	for _, area := range order {
		groups = append(groups, *byArea[area])
	}
	return &FireQueueSample{BurstCount: burst, Groups: groups}
}
