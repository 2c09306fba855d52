package backend

import (
	"errors"
	"testing"

	"github.com/corticodb/burstcore/pkg/core"
)

func TestGPUBackendUnavailableWithoutRegistration(t *testing.T) {
	gpuFactory = nil
	g, err := NewGPUBackend()
	if err != nil {
		t.Fatalf("unexpected error constructing stub: %v", err)
	}

	if err := g.InitializePersistentData(nil, nil); !errors.Is(err, core.ErrBackendUnavailable) {
		t.Errorf("expected ErrBackendUnavailable, got %v", err)
	}
	if _, err := g.ProcessNeuralDynamics(nil, nil, 0); !errors.Is(err, core.ErrBackendUnavailable) {
		t.Errorf("expected ErrBackendUnavailable, got %v", err)
	}
}

type fakeGPUBackend struct{ calls int }

func (f *fakeGPUBackend) InitializePersistentData(*NeuronColumns, *SynapseColumns) error {
	f.calls++
	return nil
}
func (f *fakeGPUBackend) OnGenomeChange() error { f.calls++; return nil }
func (f *fakeGPUBackend) ProcessSynapticPropagation([]core.NeuronID, *SynapseColumns, SourceIndex, FCL) (int, error) {
	f.calls++
	return 0, nil
}
func (f *fakeGPUBackend) ProcessNeuralDynamics(FCL, *NeuronColumns, core.BurstCount) (DynamicsResult, error) {
	f.calls++
	return DynamicsResult{}, nil
}

func TestGPUBackendDelegatesWhenRegistered(t *testing.T) {
	fake := &fakeGPUBackend{}
	RegisterGPU(func() (Backend, error) { return fake, nil })
	defer RegisterGPU(nil)

	g, err := NewGPUBackend()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := g.OnGenomeChange(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fake.calls != 1 {
		t.Errorf("expected delegate to be called once, got %d", fake.calls)
	}
}
