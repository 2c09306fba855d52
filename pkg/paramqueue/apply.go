package paramqueue

import (
	"github.com/corticodb/burstcore/pkg/connectome"
	"github.com/corticodb/burstcore/pkg/core"
)

var idZero core.CorticalID

// Apply applies a single update against m, returning the number of neurons
// (or synapses, for PostsynapticCurrent) touched. A missing cortical area,
// an unsupported parameter name, or an out-of-range value for a clamped
// parameter is a soft failure: it returns 0 applied, never an error.
func Apply(m *connectome.Manager, u *ParameterUpdate) int {
	id := u.CorticalID
	if id == (idZero) {
		resolved, ok := m.AreaIDForIndex(u.CorticalIndex)
		if !ok {
			return 0
		}
		id = resolved
	}
	if _, ok := m.GetArea(id); !ok {
		return 0
	}

	switch u.ParameterName {
	case FiringThreshold:
		return m.UpdateAreaThreshold(id, float32(u.Value))

	case FiringThresholdIncrement:
		if u.BaseThreshold == nil {
			return 0
		}
		return m.UpdateAreaThresholdWithGradient(id, float32(*u.BaseThreshold),
			float32(u.Gradient[0]), float32(u.Gradient[1]), float32(u.Gradient[2]))

	case FiringThresholdLimit:
		return m.UpdateAreaThresholdLimit(id, float32(u.Value))

	case RefractoryPeriod:
		return m.UpdateAreaRefractoryPeriod(id, clampU16(u.Value))

	case LeakCoefficient:
		if u.Value < 0 || u.Value > 1 {
			return 0
		}
		return m.UpdateAreaLeakCoefficient(id, float32(u.Value))

	case ConsecutiveFireCount:
		return m.UpdateAreaConsecutiveFireLimit(id, clampU16(u.Value))

	case SnoozePeriod:
		return m.UpdateAreaSnoozePeriod(id, clampU16(u.Value))

	case Excitability:
		if u.Value < 0 || u.Value > 1 {
			return 0
		}
		return m.UpdateAreaExcitability(id, float32(u.Value))

	case MPChargeAccumulation:
		return m.UpdateAreaMPChargeAccumulation(id, u.Value != 0)

	case PostsynapticCurrent:
		return m.UpdateAreaPostsynapticCurrent(id, clampU8(u.Value))

	case MPDrivenPSP:
		return m.SetMPDrivenPSP(id, u.Value != 0)

	case PSPUniformDistribution:
		return m.SetPSPUniformDistribution(id, u.Value != 0)

	default:
		return 0
	}
}

// ApplyAll drains and applies every update currently queued, returning the
// total number of neurons/synapses touched across all of them.
func ApplyAll(m *connectome.Manager, q *Queue) int {
	total := 0
	for _, u := range q.DrainAll() {
		total += Apply(m, u)
	}
	return total
}

func clampU16(v float64) uint16 {
	if v < 0 {
		return 0
	}
	if v > 65535 {
		return 65535
	}
	return uint16(v)
}

func clampU8(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
