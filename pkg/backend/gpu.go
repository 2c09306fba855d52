package backend

import "github.com/corticodb/burstcore/pkg/core"

// GPUBackend is a pluggable-interface-only stand-in: the GPU backend's
// kernel internals are out of scope here (only its shape as a compute
// interface matters). Every method fails with ErrBackendUnavailable unless
// a real implementation has been installed via RegisterGPU.
type GPUBackend struct {
	delegate Backend
}

// GPUFactory constructs a real GPU backend implementation. Call
// RegisterGPU once at process startup to plug one in.
type GPUFactory func() (Backend, error)

var gpuFactory GPUFactory

// RegisterGPU installs the factory used by NewGPUBackend to build a real
// GPU-backed implementation. Call this from an init function in a build
// that links a GPU toolchain; without it, GPUBackend always reports
// ErrBackendUnavailable.
func RegisterGPU(factory GPUFactory) {
	gpuFactory = factory
}

// NewGPUBackend builds a GPUBackend. If RegisterGPU has not been called,
// every method on the returned backend fails with ErrBackendUnavailable.
func NewGPUBackend() (*GPUBackend, error) {
	if gpuFactory == nil {
		return &GPUBackend{}, nil
	}
	delegate, err := gpuFactory()
	if err != nil {
		return nil, core.BackendErrorf("gpu factory: %v", err)
	}
	return &GPUBackend{delegate: delegate}, nil
}

func (g *GPUBackend) InitializePersistentData(neurons *NeuronColumns, synapses *SynapseColumns) error {
	if g.delegate == nil {
		return core.BackendErrorf("no GPU backend registered")
	}
	return g.delegate.InitializePersistentData(neurons, synapses)
}

func (g *GPUBackend) OnGenomeChange() error {
	if g.delegate == nil {
		return core.BackendErrorf("no GPU backend registered")
	}
	return g.delegate.OnGenomeChange()
}

func (g *GPUBackend) ProcessSynapticPropagation(firedSources []core.NeuronID, synapses *SynapseColumns, index SourceIndex, fcl FCL) (int, error) {
	if g.delegate == nil {
		return 0, core.BackendErrorf("no GPU backend registered")
	}
	return g.delegate.ProcessSynapticPropagation(firedSources, synapses, index, fcl)
}

func (g *GPUBackend) ProcessNeuralDynamics(fcl FCL, neurons *NeuronColumns, burst core.BurstCount) (DynamicsResult, error) {
	if g.delegate == nil {
		return DynamicsResult{}, core.BackendErrorf("no GPU backend registered")
	}
	return g.delegate.ProcessNeuralDynamics(fcl, neurons, burst)
}
