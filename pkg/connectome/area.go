package connectome

import "github.com/corticodb/burstcore/pkg/core"

// AreaState is the lifecycle state of a cortical area.
type AreaState int

const (
	StateEmpty AreaState = iota
	StateRegistered
	StatePopulated
	StateConnected
	StateRemoved
)

func (s AreaState) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateRegistered:
		return "registered"
	case StatePopulated:
		return "populated"
	case StateConnected:
		return "connected"
	case StateRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Dimensions is an area's voxel extent, each component at least 1.
type Dimensions struct {
	Width, Height, Depth uint32
}

// NeuronDefaults are the per-neuron physiological defaults read from an
// area's property bag and applied to every neuron created during
// neurogenesis.
type NeuronDefaults struct {
	Threshold            float32
	ThresholdLimit       float32
	LeakCoefficient      float32
	RestingPotential     float32
	Excitability         float32
	RefractoryPeriod     uint16
	ConsecutiveFireLimit uint16
	SnoozePeriod         uint16
	NeuronType           int8
	MPChargeAccumulation bool
	NeuronsPerVoxel      uint32
}

// Granularity is a visualization voxel-binning factor; zero on all axes
// means "no aggregation".
type Granularity struct {
	GX, GY, GZ uint32
}

// Area is a cortical area's metadata, owned exclusively by the Connectome
// Manager (the NPU only sees the neurons it creates).
type Area struct {
	ID            core.CorticalID
	Index         core.CorticalIndex
	Name          string
	Category      core.CorticalCategory
	Dimensions    Dimensions
	Position      [3]int32
	Defaults      NeuronDefaults
	Granularity   Granularity
	State         AreaState
	NeuronIDs     []core.NeuronID // populated after neurogenesis, in creation order

	// MPDrivenPSP and PSPUniformDistribution are area-wide synaptic transmission
	// flags, set via the parameter queue rather than at neurogenesis time.
	MPDrivenPSP            bool
	PSPUniformDistribution bool
}

func (a *Area) voxelCount() uint64 {
	return uint64(a.Dimensions.Width) * uint64(a.Dimensions.Height) * uint64(a.Dimensions.Depth)
}
